package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultCheckoutEndpoint = "https://api.stripe.com/v1/checkout/sessions"

// CheckoutClient creates hosted checkout sessions with the payment
// provider. The provider's API takes form-encoded requests and returns
// JSON.
type CheckoutClient struct {
	httpClient *http.Client
	apiKey     string
	endpoint   string
	successURL string
	cancelURL  string
}

// CheckoutParams describes a purchase to start a session for. The user
// and price land in the session metadata so the fulfillment webhook can
// attribute the purchase without a second lookup.
type CheckoutParams struct {
	UserID   string
	PriceID  string
	Quantity int
}

// Session is the subset of the provider's session object we use.
type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// NewCheckoutClient builds a client against the real provider endpoint.
// successURL and cancelURL are where the hosted page sends the buyer
// afterwards. endpoint may be empty to use the default, or point at a
// test server.
func NewCheckoutClient(apiKey, successURL, cancelURL, endpoint string) (*CheckoutClient, error) {
	if apiKey == "" {
		return nil, errors.New("billing API key is required")
	}
	if endpoint == "" {
		endpoint = defaultCheckoutEndpoint
	}
	return &CheckoutClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiKey:     apiKey,
		endpoint:   endpoint,
		successURL: successURL,
		cancelURL:  cancelURL,
	}, nil
}

// CreateSession starts a checkout session and returns its id and hosted
// page URL.
func (c *CheckoutClient) CreateSession(ctx context.Context, params CheckoutParams) (Session, error) {
	if params.UserID == "" || params.PriceID == "" {
		return Session{}, errors.New("checkout requires a user id and a price id")
	}
	quantity := params.Quantity
	if quantity < 1 {
		quantity = 1
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", c.successURL)
	form.Set("cancel_url", c.cancelURL)
	form.Set("line_items[0][price]", params.PriceID)
	form.Set("line_items[0][quantity]", strconv.Itoa(quantity))
	form.Set("metadata[userId]", params.UserID)
	form.Set("metadata[priceId]", params.PriceID)
	form.Set("metadata[quantity]", strconv.Itoa(quantity))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Session{}, fmt.Errorf("failed to create checkout request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Session{}, fmt.Errorf("checkout request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Session{}, fmt.Errorf("failed to read checkout response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Session{}, fmt.Errorf("checkout API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var session Session
	if err := json.Unmarshal(body, &session); err != nil {
		return Session{}, fmt.Errorf("failed to parse checkout response: %w", err)
	}
	if session.URL == "" {
		return Session{}, errors.New("checkout response has no session URL")
	}
	return session, nil
}
