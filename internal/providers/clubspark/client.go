// Package clubspark books courts on ClubSpark venues (LTA platform): OAuth
// password-grant token, availability lookup, payment creation and session
// request, with card tokenization delegated to Stripe.
package clubspark

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	tokenURL = "https://account.lta.org.uk/issue/oauth2/token"
	baseURL  = "https://api.clubspark.uk"

	// Public mobile-app OAuth client, not a user secret.
	clientID     = "clubspark-app"
	clientSecret = "VA7VqUK4DTECuy9vcDEdzFZZx/rl6iD8eEfL+yfbr1U="
)

// Client talks to the ClubSpark API as one member. The auth token is fetched
// lazily on the first request and reused afterwards.
type Client struct {
	hc       *http.Client
	baseURL  string
	tokenURL string

	username string
	password string
	token    string
}

func New(username, password string) *Client {
	return &Client{
		hc:       &http.Client{Timeout: 30 * time.Second},
		baseURL:  baseURL,
		tokenURL: tokenURL,
		username: username,
		password: password,
	}
}

// NewWithBase points both the API and the token endpoint at a test server.
func NewWithBase(base string, username, password string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	base = strings.TrimRight(base, "/")
	return &Client{
		hc:       hc,
		baseURL:  base,
		tokenURL: base + "/token",
		username: username,
		password: password,
	}
}

func (c *Client) CurrentUser(ctx context.Context) (CurrentUser, error) {
	var out CurrentUser
	err := c.request(ctx, http.MethodGet, "/v2/User/GetCurrentUser", nil, &out)
	return out, err
}

func (c *Client) AppSettings(ctx context.Context, venueSlug string) (AppSettings, error) {
	var out AppSettings
	err := c.request(ctx, http.MethodGet, fmt.Sprintf("/v0/VenueBooking/%s/GetAppSettings", venueSlug), nil, &out)
	return out, err
}

// AvailabilityTimes lists courts for the date (YYYY-MM-DD) at the given
// session duration in minutes.
func (c *Client) AvailabilityTimes(ctx context.Context, venueSlug, date string, duration int) (Availability, error) {
	path := fmt.Sprintf("/v1/VenueBooking/%s/GetAvailabilityTimes?Duration=%d&Date=%s&resourceCategory=1", venueSlug, duration, date)
	var out Availability
	err := c.request(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

type CreatePaymentRequest struct {
	UserName        string
	Cost            float64
	Scope           string
	PaymentMethodID string
	VenueID         string
}

func (c *Client) CreatePayment(ctx context.Context, r CreatePaymentRequest) (Payment, error) {
	payload := map[string]any{
		"Description":     r.UserName,
		"Cost":            r.Cost,
		"PaymentParams":   `["booking-default"]`,
		"PaymentMethodID": r.PaymentMethodID,
		"ScopeID":         r.Scope,
		"VenueID":         r.VenueID,
	}
	var out Payment
	err := c.request(ctx, http.MethodPost, "/Payment/CreatePayment", payload, &out)
	return out, err
}

type RequestSessionRequest struct {
	PaymentToken string
	Duration     int
	Date         string
	TotalPaid    float64
	StartTime    int
	ResourceID   string
	SessionID    string
}

func (c *Client) RequestSession(ctx context.Context, venueSlug string, r RequestSessionRequest) (Session, error) {
	amount := fmt.Sprintf("%g", r.TotalPaid)
	payload := map[string]any{
		"CreditsApplied": "0",
		"PaymentToken":   r.PaymentToken,
		"Date":           r.Date,
		"Duration":       r.Duration,
		"Source":         "iOS",
		"TotalPaid":      amount,
		"StartTime":      r.StartTime,
		"GrossAmount":    amount,
		"ResourceID":     r.ResourceID,
		"SessionID":      r.SessionID,
		"NetAmount":      amount,
	}
	var out Session
	err := c.request(ctx, http.MethodPost, fmt.Sprintf("/v0/VenueBooking/%s/RequestSession", venueSlug), payload, &out)
	return out, err
}

func (c *Client) request(ctx context.Context, method, path string, payload any, out any) error {
	if c.token == "" {
		token, err := c.fetchToken(ctx)
		if err != nil {
			return err
		}
		c.token = token
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
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Appname", "cspl")
	req.Header.Set("Appversion", "2.0")
	req.Header.Set("User-Agent", "ClubSparkPlayers/3.7.0")
	req.Header.Set("Authorization", "Lta-Auth "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("clubspark %s %s: %w", method, path, err)
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode >= 400 {
		return fmt.Errorf("clubspark %s %s failed (status=%d)", method, path, res.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func (c *Client) fetchToken(ctx context.Context) (string, error) {
	payload := map[string]string{
		"grant_type": "password",
		"scope":      "https://api.clubspark.uk/token/",
		"username":   c.username,
		"password":   c.password,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	basic := base64.StdEncoding.EncodeToString([]byte(clientID + ":" + clientSecret))
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("User-Agent", "ClubSpark Booker/1.0")

	res, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("clubspark token request: %w", err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", err
	}
	if res.StatusCode >= 400 {
		return "", fmt.Errorf("clubspark authentication failed (status=%d)", res.StatusCode)
	}
	var tok struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", err
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("clubspark token response missing access_token")
	}
	return tok.AccessToken, nil
}
