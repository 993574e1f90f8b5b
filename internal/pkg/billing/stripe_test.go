package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/greenfoldhq/greenfold/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCheckoutSession(t *testing.T) {
	var gotForm map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/checkout/sessions", r.URL.Path)
		require.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{}
		for k := range r.PostForm {
			gotForm[k] = r.PostForm.Get(k)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"id":  "cs_1",
			"url": "https://checkout.example/cs_1",
		})
	}))
	defer server.Close()

	t.Setenv("STRIPE_PRICE_PROFESSIONAL_MONTHLY", "price_pro_m")

	client := &StripeClient{
		SecretKey:  "sk_test_123",
		APIBaseURL: server.URL,
		PublicURL:  "https://app.example",
		HTTPClient: server.Client(),
	}

	org := &models.Organization{UUID: "org-uuid-1", Name: "Acme"}
	session, err := client.CreateCheckoutSession(context.Background(), org, "professional", "month")
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example/cs_1", session.URL)

	assert.Equal(t, "subscription", gotForm["mode"])
	assert.Equal(t, "price_pro_m", gotForm["line_items[0][price]"])
	assert.Equal(t, "org-uuid-1", gotForm["metadata[organization_id]"])
	assert.Equal(t, "professional", gotForm["metadata[tier]"])
}

func TestCreateCheckoutSession_Validation(t *testing.T) {
	client := &StripeClient{SecretKey: "sk_test", APIBaseURL: "http://127.0.0.1:0"}
	org := &models.Organization{UUID: "org-uuid-1"}

	_, err := client.CreateCheckoutSession(context.Background(), org, "platinum", "month")
	assert.Error(t, err)

	_, err = client.CreateCheckoutSession(context.Background(), org, "starter", "weekly")
	assert.Error(t, err)

	unconfigured := &StripeClient{APIBaseURL: "http://127.0.0.1:0"}
	_, err = unconfigured.CreateCheckoutSession(context.Background(), org, "starter", "month")
	assert.Error(t, err)
}

func TestCancelSubscription(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.Equal(t, http.MethodDelete, r.Method)
		w.Write([]byte(`{"id":"sub_1","status":"canceled"}`))
	}))
	defer server.Close()

	client := &StripeClient{
		SecretKey:  "sk_test_123",
		APIBaseURL: server.URL,
		HTTPClient: server.Client(),
	}

	require.NoError(t, client.CancelSubscription(context.Background(), "sub_1"))
	assert.Equal(t, "/subscriptions/sub_1", gotPath)

	assert.Error(t, client.CancelSubscription(context.Background(), ""))
}

func TestFormatInvoiceNumber(t *testing.T) {
	assert.Equal(t, "INV-2026-000042", FormatInvoiceNumber(2026, 42))
}
