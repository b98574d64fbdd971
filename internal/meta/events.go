package meta

import "time"

// Standard event names recognized by Meta's pixel and Conversions API.
const (
	EventViewContent          = "ViewContent"
	EventAddToCart            = "AddToCart"
	EventInitiateCheckout     = "InitiateCheckout"
	EventPurchase             = "Purchase"
	EventCompleteRegistration = "CompleteRegistration"
	EventSearch               = "Search"
	EventContact              = "Contact"
)

const (
	actionSourceWebsite  = "website"
	deliveryHomeDelivery = "home_delivery"

	DefaultCurrency    = "ARS"
	defaultContentType = "product"
)

// Content is one commerce line item inside custom_data.contents.
type Content struct {
	ID               string  `json:"id"`
	Quantity         int     `json:"quantity"`
	ItemPrice        float64 `json:"item_price,omitempty"`
	Title            string  `json:"title,omitempty"`
	DeliveryCategory string  `json:"delivery_category,omitempty"`
}

// CustomData is the commerce section of an event payload.
type CustomData struct {
	Value       float64   `json:"value,omitempty"`
	Currency    string    `json:"currency,omitempty"`
	ContentName string    `json:"content_name,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	ContentIDs  []string  `json:"content_ids,omitempty"`
	Contents    []Content `json:"contents,omitempty"`
	NumItems    int       `json:"num_items,omitempty"`
}

// Event is one tracked event as sent on the wire. It is created fresh per
// user action and never persisted.
type Event struct {
	EventName      string      `json:"event_name"`
	EventID        string      `json:"event_id"`
	EventTime      int64       `json:"event_time"`
	EventSourceURL string      `json:"event_source_url,omitempty"`
	ActionSource   string      `json:"action_source"`
	UserData       UserData    `json:"user_data"`
	CustomData     *CustomData `json:"custom_data,omitempty"`
}

// NewEvent fills in the envelope fields shared by every builder.
func NewEvent(name, eventID, sourceURL string, ud UserData, cd *CustomData) Event {
	return Event{
		EventName:      name,
		EventID:        eventID,
		EventTime:      time.Now().Unix(),
		EventSourceURL: sourceURL,
		ActionSource:   actionSourceWebsite,
		UserData:       ud,
		CustomData:     cd,
	}
}

// Domain inputs for the per-event builders.

type Product struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Category string  `json:"category,omitempty"`
}

type CartSummary struct {
	Items []CartSummaryItem `json:"items"`
	Total float64           `json:"total"`
}

type CartSummaryItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

type OrderSummary struct {
	ID    string             `json:"id"`
	Total float64            `json:"total"`
	Items []OrderSummaryItem `json:"items"`
}

type OrderSummaryItem struct {
	ProductID   string  `json:"product_id"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
	ProductName string  `json:"product_name"`
}

// ViewContentData maps a viewed product to custom_data.
func ViewContentData(p Product) *CustomData {
	return &CustomData{
		Value:       p.Price,
		Currency:    DefaultCurrency,
		ContentName: p.Name,
		ContentType: defaultContentType,
		ContentIDs:  []string{p.ID},
	}
}

// AddToCartData maps a product plus the added quantity to custom_data.
func AddToCartData(p Product, quantity int) *CustomData {
	if quantity <= 0 {
		quantity = 1
	}
	return &CustomData{
		Value:       p.Price * float64(quantity),
		Currency:    DefaultCurrency,
		ContentName: p.Name,
		ContentType: defaultContentType,
		ContentIDs:  []string{p.ID},
		Contents: []Content{{
			ID:       p.ID,
			Quantity: quantity,
		}},
	}
}

// InitiateCheckoutData maps the whole cart to custom_data.
func InitiateCheckoutData(c CartSummary) *CustomData {
	cd := &CustomData{
		Value:       c.Total,
		Currency:    DefaultCurrency,
		ContentType: defaultContentType,
		NumItems:    len(c.Items),
	}
	for _, it := range c.Items {
		cd.ContentIDs = append(cd.ContentIDs, it.ID)
		cd.Contents = append(cd.Contents, Content{
			ID:       it.ID,
			Quantity: it.Quantity,
			Title:    it.Name,
		})
	}
	return cd
}

// PurchaseData maps a placed order to custom_data. Every line is tagged with
// the fixed home-delivery category. The order total is intentionally not
// forwarded into custom_data.value; see DESIGN.md for the rationale behind
// keeping that asymmetry with the other builders.
func PurchaseData(o OrderSummary) *CustomData {
	cd := &CustomData{
		Currency:    DefaultCurrency,
		ContentType: defaultContentType,
	}
	for _, it := range o.Items {
		cd.ContentIDs = append(cd.ContentIDs, it.ProductID)
		cd.Contents = append(cd.Contents, Content{
			ID:               it.ProductID,
			Quantity:         it.Quantity,
			ItemPrice:        it.Price,
			Title:            it.ProductName,
			DeliveryCategory: deliveryHomeDelivery,
		})
	}
	return cd
}

// RegistrationData is the custom_data for CompleteRegistration.
func RegistrationData() *CustomData {
	return &CustomData{Currency: DefaultCurrency}
}
