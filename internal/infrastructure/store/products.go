package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/example/wa-storefront/internal/domain/product"
)

var ErrProductNotFound = errors.New("product not found")

// ProductStore is the PostgreSQL catalog.
type ProductStore struct {
	db *sql.DB
}

func NewProductStore(db *sql.DB) *ProductStore {
	return &ProductStore{db: db}
}

func (s *ProductStore) Upsert(ctx context.Context, p product.Product) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO products (id, name, category, unit_price, pack_price, bulk_price, in_stock)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			unit_price = EXCLUDED.unit_price,
			pack_price = EXCLUDED.pack_price,
			bulk_price = EXCLUDED.bulk_price,
			in_stock = EXCLUDED.in_stock`,
		p.ID, p.Name, p.Category, p.UnitPrice, p.PackPrice, p.BulkPrice, p.InStock,
	)
	return err
}

func (s *ProductStore) Get(ctx context.Context, id string) (*product.Product, error) {
	var p product.Product
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, category, unit_price, pack_price, bulk_price, in_stock
		 FROM products WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Category, &p.UnitPrice, &p.PackPrice, &p.BulkPrice, &p.InStock)
	if err == sql.ErrNoRows {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *ProductStore) List(ctx context.Context) ([]product.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, category, unit_price, pack_price, bulk_price, in_stock
		 FROM products ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []product.Product
	for rows.Next() {
		var p product.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.UnitPrice, &p.PackPrice, &p.BulkPrice, &p.InStock); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}
