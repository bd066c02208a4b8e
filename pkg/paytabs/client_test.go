package paytabs

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newGatewayStub(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{
		ProfileID: 12345,
		ServerKey: "SJJ9test",
		Currency:  "USD",
		BaseURL:   srv.URL,
	})
	require.NoError(t, err)
	return client
}

func TestConfigValidate(t *testing.T) {
	require.Error(t, Config{}.Validate())
	require.Error(t, Config{ProfileID: 1}.Validate())
	require.Error(t, Config{ProfileID: 1, ServerKey: "k", Region: "ATLANTIS"}.Validate())
	require.NoError(t, Config{ProfileID: 1, ServerKey: "k", Region: "GLOBAL"}.Validate())
	require.NoError(t, Config{ProfileID: 1, ServerKey: "k", BaseURL: "http://localhost"}.Validate())
}

func TestCreatePaymentPage(t *testing.T) {
	client := newGatewayStub(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/payment/request", r.URL.Path)
		require.Equal(t, "SJJ9test", r.Header.Get("Authorization"))

		var req PaymentPageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, 12345, req.ProfileID)
		require.Equal(t, "sale", req.TranType)
		require.Equal(t, "ecom", req.TranClass)
		require.Equal(t, "USD", req.CartCurrency)

		json.NewEncoder(w).Encode(PaymentPageResponse{
			TranRef:     "TST0001",
			RedirectURL: "https://hosted.example/pay",
			CartID:      req.CartID,
		})
	})

	resp, err := client.CreatePaymentPage(context.Background(), PaymentPageRequest{
		CartID:          "cart-1",
		CartDescription: "starter plan",
		CartAmount:      49.99,
	})
	require.NoError(t, err)
	require.Equal(t, "TST0001", resp.TranRef)
	require.Equal(t, "https://hosted.example/pay", resp.RedirectURL)
}

func TestCreatePaymentPageValidation(t *testing.T) {
	client := newGatewayStub(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	ctx := context.Background()

	_, err := client.CreatePaymentPage(ctx, PaymentPageRequest{CartAmount: 10})
	require.Error(t, err)

	_, err = client.CreatePaymentPage(ctx, PaymentPageRequest{CartID: "cart-1"})
	require.Error(t, err)
}

func TestCreatePaymentPageGatewayRejection(t *testing.T) {
	client := newGatewayStub(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(PaymentPageResponse{Code: 2, Message: "invalid profile"})
	})

	_, err := client.CreatePaymentPage(context.Background(), PaymentPageRequest{
		CartID:     "cart-1",
		CartAmount: 10,
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid profile")
}

func TestQueryTransaction(t *testing.T) {
	client := newGatewayStub(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/payment/query", r.URL.Path)

		var req QueryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "TST0001", req.TranRef)

		json.NewEncoder(w).Encode(TransactionResponse{
			TranRef: "TST0001",
			CartID:  "cart-1",
			PaymentResult: PaymentResult{
				ResponseStatus:  "A",
				ResponseMessage: "Authorised",
			},
		})
	})

	resp, err := client.QueryTransaction(context.Background(), "TST0001")
	require.NoError(t, err)
	require.True(t, resp.PaymentResult.Authorised())
}

func TestRefundDeclined(t *testing.T) {
	client := newGatewayStub(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(TransactionResponse{
			TranRef: "TST0002",
			PaymentResult: PaymentResult{
				ResponseStatus:  "D",
				ResponseMessage: "Declined",
			},
		})
	})

	_, err := client.Refund(context.Background(), "TST0001", "cart-1", "customer request", "USD", 10)
	require.ErrorIs(t, err, ErrDeclined)
}

func TestRefundAuthorised(t *testing.T) {
	client := newGatewayStub(t, func(w http.ResponseWriter, r *http.Request) {
		var req RefundRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "refund", req.TranType)
		require.Equal(t, "TST0001", req.TranRef)

		json.NewEncoder(w).Encode(TransactionResponse{
			TranRef:         "TST0002",
			PreviousTranRef: "TST0001",
			PaymentResult: PaymentResult{
				ResponseStatus:  "A",
				ResponseMessage: "Authorised",
			},
		})
	})

	resp, err := client.Refund(context.Background(), "TST0001", "cart-1", "", "", 10)
	require.NoError(t, err)
	require.Equal(t, "TST0002", resp.TranRef)
	require.Equal(t, "TST0001", resp.PreviousTranRef)
}

func TestPostSurfacesHTTPErrors(t *testing.T) {
	client := newGatewayStub(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "server key mismatch", http.StatusUnauthorized)
	})

	_, err := client.QueryTransaction(context.Background(), "TST0001")
	require.Error(t, err)
	require.Contains(t, err.Error(), "401")
}

func TestVerifySignature(t *testing.T) {
	client := newGatewayStub(t, func(w http.ResponseWriter, r *http.Request) {})
	body := []byte(`{"cart_id":"cart-1","payment_result":{"response_status":"A"}}`)

	mac := hmac.New(sha256.New, []byte("SJJ9test"))
	mac.Write(body)
	signature := hex.EncodeToString(mac.Sum(nil))

	require.True(t, client.VerifySignature(body, signature))
	require.True(t, client.VerifySignature(body, "  "+strings.ToUpper(signature)+"  "))

	require.False(t, client.VerifySignature(body, ""))
	require.False(t, client.VerifySignature(body, "deadbeef"))
	require.False(t, client.VerifySignature([]byte(`{"cart_id":"cart-2"}`), signature))
}
