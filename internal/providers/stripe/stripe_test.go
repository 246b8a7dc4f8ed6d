package stripe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePaymentMethod(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/payment_methods", r.URL.Path)
		assert.Equal(t, "Bearer pk_test_1", r.Header.Get("Authorization"))
		assert.Equal(t, "acct_1", r.Header.Get("Stripe-Account"))

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "card", r.PostForm.Get("type"))
		assert.Equal(t, "4242424242424242", r.PostForm.Get("card[number]"))
		assert.Equal(t, "04", r.PostForm.Get("card[exp_month]"))
		assert.Equal(t, "2028", r.PostForm.Get("card[exp_year]"))
		assert.Equal(t, "ann@example.com", r.PostForm.Get("billing_details[email]"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pm_123","type":"card"}`))
	}))
	defer srv.Close()

	c := NewWithBase(srv.URL, srv.Client())
	pm, err := c.CreatePaymentMethod(context.Background(), "pk_test_1", "acct_1", "ann@example.com", Card{
		Number:   "4242424242424242",
		ExpMonth: "04",
		ExpYear:  "2028",
		CVC:      "123",
	})
	require.NoError(t, err)
	assert.Equal(t, "pm_123", pm.ID)
}

func TestCreatePaymentMethodRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"message":"Your card was declined."}}`))
	}))
	defer srv.Close()

	c := NewWithBase(srv.URL, srv.Client())
	_, err := c.CreatePaymentMethod(context.Background(), "pk_test_1", "acct_1", "ann@example.com", Card{Number: "4000000000000002"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Your card was declined.")
}

func TestCreatePaymentMethodMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewWithBase(srv.URL, srv.Client())
	_, err := c.CreatePaymentMethod(context.Background(), "pk_test_1", "acct_1", "ann@example.com", Card{})
	assert.Error(t, err)
}
