// Package better books leisure-centre activities on Better (GLL) venues:
// bearer-token login, activity/slot lookup, cart management, credit
// application, and an Opayo card sub-protocol for the paid remainder.
package better

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	baseURL      = "https://better-admin.org.uk/api"
	opayoBaseURL = "https://live.opayo.eu.elavon.com/api/v1"

	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
	origin    = "https://bookings.better.org.uk"
)

// Client talks to the Better API as one member. Login happens lazily on the
// first authenticated request.
type Client struct {
	hc       *http.Client
	baseURL  string
	opayoURL string

	username string
	password string
	token    string
}

func New(username, password string) *Client {
	return &Client{
		hc:       &http.Client{Timeout: 30 * time.Second},
		baseURL:  baseURL,
		opayoURL: opayoBaseURL,
		username: username,
		password: password,
	}
}

// NewWithBase points both the API and the Opayo endpoint at a test server.
func NewWithBase(base string, username, password string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	base = strings.TrimRight(base, "/")
	return &Client{
		hc:       hc,
		baseURL:  base,
		opayoURL: base + "/opayo",
		username: username,
		password: password,
	}
}

// ActivityTimes lists the activity windows for a venue/activity on a date
// (YYYY-MM-DD).
func (c *Client) ActivityTimes(ctx context.Context, venueSlug, activitySlug, date string) ([]Activity, error) {
	path := fmt.Sprintf("/activities/venue/%s/activity/%s/times?date=%s", venueSlug, activitySlug, url.QueryEscape(date))
	var out struct {
		Data []Activity `json:"data"`
	}
	err := c.request(ctx, http.MethodGet, path, nil, &out)
	return out.Data, err
}

// Slots lists the concrete courts within one activity window.
func (c *Client) Slots(ctx context.Context, venueSlug, activitySlug string, a Activity) ([]Slot, error) {
	q := url.Values{}
	q.Set("date", a.Date)
	q.Set("start_time", a.StartsAt.Format24)
	q.Set("end_time", a.EndsAt.Format24)
	q.Set("composite_key", a.CompositeKey)
	path := fmt.Sprintf("/activities/venue/%s/activity/%s/slots?%s", venueSlug, activitySlug, q.Encode())
	var out struct {
		Data []Slot `json:"data"`
	}
	err := c.request(ctx, http.MethodGet, path, nil, &out)
	return out.Data, err
}

func (c *Client) GetCart(ctx context.Context) (Cart, error) {
	var out Cart
	err := c.request(ctx, http.MethodGet, "/activities/cart", nil, &out)
	return out, err
}

// ClearCart removes any stale items left from a previous attempt.
func (c *Client) ClearCart(ctx context.Context) (Cart, error) {
	cart, err := c.GetCart(ctx)
	if err != nil {
		return Cart{}, err
	}
	if len(cart.Items) == 0 {
		return cart, nil
	}
	ids := make([]int64, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ID)
	}
	payload := map[string]any{"cart_item_ids": ids}
	var out Cart
	err = c.request(ctx, http.MethodPost, "/activities/cart/remove", payload, &out)
	return out, err
}

func (c *Client) AddToCart(ctx context.Context, slot Slot) (Cart, error) {
	payload := map[string]any{
		"items": []map[string]any{{
			"id":                       slot.ID,
			"type":                     "activity",
			"pricing_option_id":        slot.PricingOptionID,
			"apply_benefit":            true,
			"activity_restriction_ids": []any{},
		}},
		"membership_user_id": nil,
		"selected_user_id":   nil,
	}
	var out Cart
	err := c.request(ctx, http.MethodPost, "/activities/cart/add", payload, &out)
	return out, err
}

func (c *Client) ApplyCredits(ctx context.Context, amount int) error {
	payload := map[string]any{
		"credits_to_reserve": []map[string]any{{"amount": amount, "type": "general"}},
		"cart_source":        "activity-booking",
		"selected_user_id":   nil,
	}
	return c.request(ctx, http.MethodPost, "/activities/cart/apply-credits", payload, nil)
}

func (c *Client) PrepareCheckout(ctx context.Context) (PrepareCheckout, error) {
	var out PrepareCheckout
	err := c.request(ctx, http.MethodGet, "/checkout/prepare", nil, &out)
	return out, err
}

// ValidateCVC runs the card security-code check against Opayo using the
// checkout session key.
func (c *Client) ValidateCVC(ctx context.Context, opayoCardID, cvc, sessionKey string) error {
	payload := map[string]any{"securityCode": cvc}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/card-identifiers/%s/security-code", c.opayoURL, opayoCardID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+sessionKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("opayo cvc check: %w", err)
	}
	defer res.Body.Close()
	io.Copy(io.Discard, res.Body)
	if res.StatusCode >= 400 {
		return fmt.Errorf("card security code validation failed (status=%d)", res.StatusCode)
	}
	return nil
}

type AuthoriseRequest struct {
	CardID         string
	CreditsToUse   int
	CartHash       string
	SessionKey     string
	CardHolderName string
}

func (c *Client) AuthoriseCheckout(ctx context.Context, r AuthoriseRequest) (AuthoriseCheckout, error) {
	payload := map[string]any{
		"billing_address_line_one":    "",
		"billing_address_line_two":    "",
		"billing_city":                "",
		"billing_first_name":          "",
		"billing_last_name":           "",
		"billing_postcode":            "",
		"browser_colour_depth":        30,
		"browser_java_enabled":        0,
		"browser_javascript_enabled":  1,
		"browser_language":            "en-GB",
		"browser_screen_height":       1080,
		"browser_screen_width":        1920,
		"browser_timezone_offset":     0,
		"card_identifier":             r.CardID,
		"card_holder_name":            r.CardHolderName,
		"completed_waivers":           []any{},
		"payments":                    []map[string]any{{"tender_type": "credit", "amount": r.CreditsToUse}},
		"session_key":                 r.SessionKey,
		"source":                      "activity-booking",
		"terms":                       []int{1},
		"save_card":                   false,
		"item_hash":                   r.CartHash,
		"saved_card_id":               r.CardID,
	}
	var out AuthoriseCheckout
	err := c.request(ctx, http.MethodPost, "/checkout/authorise", payload, &out)
	return out, err
}

func (c *Client) CompleteBooking(ctx context.Context, transactionID string, creditsToUse int, cartHash string) error {
	payments := []map[string]any{}
	if creditsToUse > 0 {
		payments = append(payments, map[string]any{"tender_type": "credit", "amount": creditsToUse})
	}
	var txn any
	if transactionID != "" {
		txn = transactionID
	}
	payload := map[string]any{
		"completed_waivers": []any{},
		"payments":          payments,
		"terms":             []int{1},
		"transaction_uuid":  txn,
		"source":            "activity-booking",
		"item_hash":         cartHash,
	}
	return c.request(ctx, http.MethodPost, "/checkout/complete", payload, nil)
}

func (c *Client) request(ctx context.Context, method, path string, payload, out any) error {
	if c.token == "" {
		if err := c.login(ctx); err != nil {
			return err
		}
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	c.setHeaders(req)
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("better %s %s: %w", method, path, err)
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode >= 400 {
		return fmt.Errorf("better %s %s failed (status=%d)", method, path, res.StatusCode)
	}
	if out == nil || res.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func (c *Client) login(ctx context.Context) error {
	payload := map[string]string{"username": c.username, "password": c.password}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/customer/login", bytes.NewReader(raw))
	if err != nil {
		return err
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("better login: %w", err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode >= 400 {
		return fmt.Errorf("better authentication failed (status=%d)", res.StatusCode)
	}
	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &login); err != nil {
		return err
	}
	if login.Token == "" {
		return fmt.Errorf("better auth response missing token")
	}
	c.token = login.Token
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Origin", origin)
	req.Header.Set("Accept", "application/json")
}
