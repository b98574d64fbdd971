package product

import (
	"errors"

	"github.com/example/wa-storefront/internal/domain/cart"
)

var ErrUnknownPurchaseType = errors.New("unknown purchase type")

// Product is one catalog entry with a price per purchase type. Pack and bulk
// prices of zero mean the product is not sold that way.
type Product struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Category  string  `json:"category,omitempty"`
	UnitPrice float64 `json:"unit_price"`
	PackPrice float64 `json:"pack_price,omitempty"`
	BulkPrice float64 `json:"bulk_price,omitempty"`
	InStock   bool    `json:"in_stock"`
}

// PriceFor resolves the unit price for a purchase type at add-to-cart time.
func (p Product) PriceFor(purchaseType string) (float64, error) {
	switch purchaseType {
	case cart.PurchaseUnit, "":
		return p.UnitPrice, nil
	case cart.PurchasePack:
		if p.PackPrice <= 0 {
			return 0, ErrUnknownPurchaseType
		}
		return p.PackPrice, nil
	case cart.PurchaseBulk:
		if p.BulkPrice <= 0 {
			return 0, ErrUnknownPurchaseType
		}
		return p.BulkPrice, nil
	default:
		return 0, ErrUnknownPurchaseType
	}
}
