package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/entrelaunch/platform/internal/database/testutil"
	"github.com/entrelaunch/platform/internal/models"
	"github.com/entrelaunch/platform/internal/services"
	"github.com/entrelaunch/platform/pkg/paytabs"
)

const callbackServerKey = "SJJ9test"

func newCallbackRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	// The callback path never calls out to the gateway, so an unreachable
	// base URL keeps the test honest about that.
	gateway, err := paytabs.NewClient(paytabs.Config{
		ProfileID: 12345,
		ServerKey: callbackServerKey,
		Currency:  "USD",
		BaseURL:   "http://localhost:1",
	})
	require.NoError(t, err)

	payments, err := services.NewPaymentService(db, gateway, nil)
	require.NoError(t, err)

	require.NoError(t, db.Create(&models.PaymentTransaction{
		UserID:   "u1",
		CartID:   "cart-1",
		Amount:   49.99,
		Currency: "USD",
		Status:   models.PaymentPending,
	}).Error)

	router := gin.New()
	router.POST("/api/payments/callback", NewPaymentHandler(payments).Callback)
	return router, db
}

func signCallback(body []byte) string {
	mac := hmac.New(sha256.New, []byte(callbackServerKey))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func postCallback(router *gin.Engine, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/payments/callback", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("Signature", signature)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func callbackStatus(t *testing.T, db *gorm.DB) string {
	t.Helper()
	var txn models.PaymentTransaction
	require.NoError(t, db.First(&txn, "cart_id = ?", "cart-1").Error)
	return txn.Status
}

func TestCallbackRejectsUnsignedSettlement(t *testing.T) {
	router, db := newCallbackRouter(t)
	body := []byte(`{"cart_id":"cart-1","payment_result":{"response_status":"A"}}`)

	rec := postCallback(router, body, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "INVALID_CALLBACK_SIGNATURE")
	require.Equal(t, models.PaymentPending, callbackStatus(t, db))
}

func TestCallbackRejectsForgedSignature(t *testing.T) {
	router, db := newCallbackRouter(t)
	body := []byte(`{"cart_id":"cart-1","payment_result":{"response_status":"A"}}`)

	mac := hmac.New(sha256.New, []byte("guessed-key"))
	mac.Write(body)
	forged := hex.EncodeToString(mac.Sum(nil))

	rec := postCallback(router, body, forged)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, models.PaymentPending, callbackStatus(t, db))
}

func TestCallbackSettlesSignedPayment(t *testing.T) {
	router, db := newCallbackRouter(t)
	body := []byte(`{"cart_id":"cart-1","tran_ref":"TST0001","payment_result":{"response_status":"A","response_code":"G04402"}}`)

	rec := postCallback(router, body, signCallback(body))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, models.PaymentPaid, callbackStatus(t, db))

	// A signature only covers the body it was computed for.
	tampered := []byte(`{"cart_id":"cart-1","payment_result":{"response_status":"A"}}`)
	rec = postCallback(router, tampered, signCallback(body))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCallbackValidatesPayload(t *testing.T) {
	router, _ := newCallbackRouter(t)

	body := []byte(`{not json`)
	rec := postCallback(router, body, signCallback(body))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body = []byte(`{"payment_result":{"response_status":"A"}}`)
	rec = postCallback(router, body, signCallback(body))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
