// Package whatsapp builds wa.me deep links for handing a placed order over
// to the shop's WhatsApp line.
package whatsapp

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/example/wa-storefront/internal/domain/order"
)

// Link returns a wa.me URL opening a chat with the given phone, pre-filled
// with text. The phone is reduced to digits as wa.me requires.
func Link(phone, text string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	return fmt.Sprintf("https://wa.me/%s?text=%s", digits.String(), url.QueryEscape(text))
}

// OrderMessage renders the order summary the customer sends to the shop.
func OrderMessage(o *order.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hola! Quiero confirmar mi pedido #%s\n\n", shortID(o.ID))
	for _, it := range o.Items {
		fmt.Fprintf(&b, "- %s x%d ($%.2f c/u)\n", it.ProductName, it.Quantity, it.Price)
	}
	fmt.Fprintf(&b, "\nTotal: $%.2f\n", o.Total)
	fmt.Fprintf(&b, "Nombre: %s\n", o.CustomerInfo.Name)
	if o.CustomerInfo.Address != "" {
		fmt.Fprintf(&b, "Direccion: %s\n", o.CustomerInfo.Address)
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
