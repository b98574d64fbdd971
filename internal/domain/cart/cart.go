package cart

import (
	"context"
	"errors"
)

// Purchase types a line can be sold as.
const (
	PurchaseUnit = "unidad"
	PurchasePack = "paquete"
	PurchaseBulk = "bulto"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrInvalidProduct  = errors.New("product id is required")
	ErrLineNotFound    = errors.New("cart line not found")
)

// Line is one cart entry. Price is the unit price resolved when the item was
// added, so later catalog changes do not reprice a cart.
type Line struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Price             float64 `json:"price"`
	Quantity          int     `json:"quantity"`
	PurchaseType      string  `json:"purchaseType"`
	SelectedColor     string  `json:"selectedColor,omitempty"`
	SelectedCondition string  `json:"selectedCondition,omitempty"`
	SelectedVariant   string  `json:"selectedVariant,omitempty"`
}

// Key identifies a line for merge-on-add. Two adds with the same key
// increment quantity; any difference appends a new line. SelectedVariant is
// deliberately not part of the key.
type Key struct {
	ID                string
	PurchaseType      string
	SelectedColor     string
	SelectedCondition string
}

func (l Line) Key() Key {
	return Key{
		ID:                l.ID,
		PurchaseType:      l.PurchaseType,
		SelectedColor:     l.SelectedColor,
		SelectedCondition: l.SelectedCondition,
	}
}

// Cart is the ordered list of lines for one session, persisted under the
// session's "cart" key.
type Cart struct {
	Lines []Line `json:"lines"`
}

// Add merges a line into the cart: an existing line with the same key gets
// its quantity incremented, otherwise the line is appended.
func (c *Cart) Add(line Line) error {
	if line.ID == "" {
		return ErrInvalidProduct
	}
	if line.Quantity <= 0 {
		return ErrInvalidQuantity
	}

	key := line.Key()
	for i := range c.Lines {
		if c.Lines[i].Key() == key {
			c.Lines[i].Quantity += line.Quantity
			return nil
		}
	}

	c.Lines = append(c.Lines, line)
	return nil
}

// SetQuantity replaces a line's quantity; zero or less removes the line.
func (c *Cart) SetQuantity(key Key, quantity int) error {
	for i := range c.Lines {
		if c.Lines[i].Key() == key {
			if quantity <= 0 {
				c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
				return nil
			}
			c.Lines[i].Quantity = quantity
			return nil
		}
	}
	return ErrLineNotFound
}

// Remove drops a line regardless of quantity.
func (c *Cart) Remove(key Key) error {
	return c.SetQuantity(key, 0)
}

// Clear empties the cart wholesale, as after a successful checkout.
func (c *Cart) Clear() {
	c.Lines = nil
}

// Total is the sum of line price times quantity.
func (c *Cart) Total() float64 {
	var total float64
	for _, l := range c.Lines {
		total += l.Price * float64(l.Quantity)
	}
	return total
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// Store persists carts keyed by session ID.
type Store interface {
	Load(ctx context.Context, sessionID string) (*Cart, error)
	Save(ctx context.Context, sessionID string, c *Cart) error
}

// Service wraps a Store with load-modify-save cart operations.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) Get(ctx context.Context, sessionID string) (*Cart, error) {
	c, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		c = &Cart{}
	}
	return c, nil
}

func (s *Service) AddItem(ctx context.Context, sessionID string, line Line) (*Cart, error) {
	c, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := c.Add(line); err != nil {
		return nil, err
	}
	return c, s.store.Save(ctx, sessionID, c)
}

func (s *Service) SetQuantity(ctx context.Context, sessionID string, key Key, quantity int) (*Cart, error) {
	c, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := c.SetQuantity(key, quantity); err != nil {
		return nil, err
	}
	return c, s.store.Save(ctx, sessionID, c)
}

func (s *Service) RemoveItem(ctx context.Context, sessionID string, key Key) (*Cart, error) {
	return s.SetQuantity(ctx, sessionID, key, 0)
}

func (s *Service) Clear(ctx context.Context, sessionID string) error {
	c, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	c.Clear()
	return s.store.Save(ctx, sessionID, c)
}
