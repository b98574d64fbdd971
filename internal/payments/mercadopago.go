// Package payments wraps Mercado Pago preference creation. A preference is
// the hosted-checkout session the customer is redirected to; its init point
// URL is attached to the order response.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/example/wa-storefront/internal/domain/order"
)

const (
	defaultBaseURL = "https://api.mercadopago.com"
	requestTimeout = 10 * time.Second
)

var ErrNotConfigured = errors.New("mercado pago access token not configured")

// PreferenceItem is one line of the preference request.
type PreferenceItem struct {
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

type preferenceRequest struct {
	Items             []PreferenceItem `json:"items"`
	ExternalReference string           `json:"external_reference"`
}

// Preference is the relevant subset of Mercado Pago's response.
type Preference struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point,omitempty"`
}

// Client talks to the Mercado Pago REST API.
type Client struct {
	accessToken string
	baseURL     string
	httpClient  *http.Client
}

// NewClient builds a client; an empty token yields a client whose calls
// fail with ErrNotConfigured so checkout can degrade to WhatsApp-only.
func NewClient(accessToken, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		accessToken: accessToken,
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: requestTimeout},
	}
}

// CreatePreference registers a hosted-checkout preference for an order.
func (c *Client) CreatePreference(ctx context.Context, o *order.Order) (*Preference, error) {
	if c.accessToken == "" {
		return nil, ErrNotConfigured
	}

	req := preferenceRequest{ExternalReference: o.ID}
	for _, it := range o.Items {
		req.Items = append(req.Items, PreferenceItem{
			Title:      it.ProductName,
			Quantity:   it.Quantity,
			UnitPrice:  it.Price,
			CurrencyID: "ARS",
		})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/checkout/preferences", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("preference request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("mercado pago returned status %d: %s", resp.StatusCode, respBody)
	}

	var pref Preference
	if err := json.Unmarshal(respBody, &pref); err != nil {
		return nil, fmt.Errorf("failed to parse preference response: %w", err)
	}
	return &pref, nil
}
