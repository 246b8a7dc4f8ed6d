// Package stripe is a minimal client for tokenizing cards against a connected
// Stripe account using only the venue's publishable key.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const baseURL = "https://api.stripe.com"

type Client struct {
	hc      *http.Client
	baseURL string
}

func New() *Client {
	return &Client{
		hc:      &http.Client{Timeout: 30 * time.Second},
		baseURL: baseURL,
	}
}

// NewWithBase is used by tests to point the client at a local server.
func NewWithBase(base string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{hc: hc, baseURL: strings.TrimRight(base, "/")}
}

type Card struct {
	Number   string
	ExpMonth string
	ExpYear  string
	CVC      string
}

type PaymentMethod struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// CreatePaymentMethod tokenizes a card for the given connected account. The
// publishable key is the venue's client-side key, not a secret key.
func (c *Client) CreatePaymentMethod(ctx context.Context, publishableKey, stripeAccount, email string, card Card) (PaymentMethod, error) {
	form := url.Values{}
	form.Set("allow_redisplay", "unspecified")
	form.Set("billing_details[email]", email)
	form.Set("card[cvc]", card.CVC)
	form.Set("card[exp_month]", card.ExpMonth)
	form.Set("card[exp_year]", card.ExpYear)
	form.Set("card[number]", card.Number)
	form.Set("payment_user_agent", "stripe-ios/24.0.0")
	form.Set("type", "card")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payment_methods", strings.NewReader(form.Encode()))
	if err != nil {
		return PaymentMethod{}, err
	}
	req.Header.Set("Authorization", "Bearer "+publishableKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Stripe-Account", stripeAccount)

	res, err := c.hc.Do(req)
	if err != nil {
		return PaymentMethod{}, fmt.Errorf("stripe payment method request: %w", err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return PaymentMethod{}, err
	}
	if res.StatusCode >= 400 {
		var e struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.Unmarshal(body, &e)
		if e.Error.Message != "" {
			return PaymentMethod{}, fmt.Errorf("stripe rejected payment method: %s (status=%d)", e.Error.Message, res.StatusCode)
		}
		return PaymentMethod{}, fmt.Errorf("stripe rejected payment method (status=%d)", res.StatusCode)
	}

	var pm PaymentMethod
	if err := json.Unmarshal(body, &pm); err != nil {
		return PaymentMethod{}, err
	}
	if pm.ID == "" {
		return PaymentMethod{}, fmt.Errorf("stripe response missing payment method id")
	}
	return pm, nil
}
