package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/example/wa-storefront/internal/domain/cart"
)

// PostgresCartStore keeps one JSON cart blob per session, the server-side
// equivalent of the browser's local-storage "cart" key.
type PostgresCartStore struct {
	db *sql.DB
}

func NewPostgresCartStore(db *sql.DB) *PostgresCartStore {
	return &PostgresCartStore{db: db}
}

func (s *PostgresCartStore) Load(ctx context.Context, sessionID string) (*cart.Cart, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM carts WHERE session_id = $1`, sessionID,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var c cart.Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cart %s: %w", sessionID, err)
	}
	return &c, nil
}

func (s *PostgresCartStore) Save(ctx context.Context, sessionID string, c *cart.Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal cart %s: %w", sessionID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO carts (session_id, data, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (session_id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		sessionID, data,
	)
	return err
}
