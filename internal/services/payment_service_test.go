package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/entrelaunch/platform/internal/database/testutil"
	"github.com/entrelaunch/platform/internal/models"
	"github.com/entrelaunch/platform/pkg/paytabs"
)

func newTestPaymentService(t *testing.T, handler http.HandlerFunc) (*PaymentService, *gorm.DB, *models.User) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	gateway, err := paytabs.NewClient(paytabs.Config{
		ProfileID: 12345,
		ServerKey: "SJJ9test",
		Currency:  "USD",
		BaseURL:   srv.URL,
	})
	require.NoError(t, err)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewPaymentService(db, gateway, nil)
	require.NoError(t, err)

	user := &models.User{
		Username:  "payer",
		Email:     "payer@example.com",
		Password:  "x",
		FirstName: "Pat",
		LastName:  "Payer",
		Country:   "US",
		IsActive:  true,
	}
	require.NoError(t, db.Create(user).Error)
	return svc, db, user
}

func hostedPageStub(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req paytabs.PaymentPageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		json.NewEncoder(w).Encode(paytabs.PaymentPageResponse{
			TranRef:     "TST0001",
			RedirectURL: "https://hosted.example/pay",
			CartID:      req.CartID,
		})
	}
}

func TestCreatePaymentPageRecordsPendingTransaction(t *testing.T) {
	svc, db, user := newTestPaymentService(t, hostedPageStub(t))

	txn, err := svc.CreatePaymentPage(context.Background(), CreatePaymentInput{
		UserID:      user.ID,
		Amount:      49.99,
		Description: "starter plan",
	})
	require.NoError(t, err)
	require.NotEmpty(t, txn.CartID)
	require.Equal(t, "TST0001", txn.TranRef)
	require.Equal(t, "https://hosted.example/pay", txn.RedirectURL)
	require.Equal(t, models.PaymentPending, txn.Status)
	require.Equal(t, "USD", txn.Currency)

	var stored models.PaymentTransaction
	require.NoError(t, db.First(&stored, "cart_id = ?", txn.CartID).Error)
	require.Equal(t, models.PaymentPending, stored.Status)
	require.Equal(t, "TST0001", stored.TranRef)
}

func TestCreatePaymentPageValidatesInput(t *testing.T) {
	svc, _, user := newTestPaymentService(t, hostedPageStub(t))
	ctx := context.Background()

	_, err := svc.CreatePaymentPage(ctx, CreatePaymentInput{UserID: user.ID, Amount: 0})
	require.Error(t, err)

	_, err = svc.CreatePaymentPage(ctx, CreatePaymentInput{UserID: "missing", Amount: 10})
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestHandleCallbackSettlesPayment(t *testing.T) {
	svc, _, user := newTestPaymentService(t, hostedPageStub(t))
	ctx := context.Background()

	txn, err := svc.CreatePaymentPage(ctx, CreatePaymentInput{UserID: user.ID, Amount: 10})
	require.NoError(t, err)

	settled, err := svc.HandleCallback(ctx, txn.CartID, "TST0001", paytabs.PaymentResult{
		ResponseStatus:  "A",
		ResponseCode:    "G1234",
		ResponseMessage: "Authorised",
	})
	require.NoError(t, err)
	require.Equal(t, models.PaymentPaid, settled.Status)
	require.Equal(t, "G1234", settled.GatewayCode)
}

func TestHandleCallbackDeclined(t *testing.T) {
	svc, _, user := newTestPaymentService(t, hostedPageStub(t))
	ctx := context.Background()

	txn, err := svc.CreatePaymentPage(ctx, CreatePaymentInput{UserID: user.ID, Amount: 10})
	require.NoError(t, err)

	settled, err := svc.HandleCallback(ctx, txn.CartID, "TST0001", paytabs.PaymentResult{
		ResponseStatus:  "D",
		ResponseMessage: "Declined",
	})
	require.NoError(t, err)
	require.Equal(t, models.PaymentDeclined, settled.Status)
}

func TestHandleCallbackIsIdempotent(t *testing.T) {
	svc, _, user := newTestPaymentService(t, hostedPageStub(t))
	ctx := context.Background()

	txn, err := svc.CreatePaymentPage(ctx, CreatePaymentInput{UserID: user.ID, Amount: 10})
	require.NoError(t, err)

	_, err = svc.HandleCallback(ctx, txn.CartID, "TST0001", paytabs.PaymentResult{ResponseStatus: "A"})
	require.NoError(t, err)

	// A late declined callback cannot flip a settled transaction.
	settled, err := svc.HandleCallback(ctx, txn.CartID, "TST0001", paytabs.PaymentResult{ResponseStatus: "D"})
	require.NoError(t, err)
	require.Equal(t, models.PaymentPaid, settled.Status)
}

func TestHandleCallbackUnknownCart(t *testing.T) {
	svc, _, _ := newTestPaymentService(t, hostedPageStub(t))

	_, err := svc.HandleCallback(context.Background(), "no-such-cart", "", paytabs.PaymentResult{})
	require.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestRefundOnlyPaidTransactions(t *testing.T) {
	refunds := 0
	svc, _, user := newTestPaymentService(t, func(w http.ResponseWriter, r *http.Request) {
		var probe map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&probe))

		if probe["tran_type"] == "refund" {
			refunds++
			json.NewEncoder(w).Encode(paytabs.TransactionResponse{
				TranRef:         "TST0002",
				PreviousTranRef: "TST0001",
				PaymentResult:   paytabs.PaymentResult{ResponseStatus: "A"},
			})
			return
		}
		json.NewEncoder(w).Encode(paytabs.PaymentPageResponse{
			TranRef:     "TST0001",
			RedirectURL: "https://hosted.example/pay",
		})
	})
	ctx := context.Background()

	txn, err := svc.CreatePaymentPage(ctx, CreatePaymentInput{UserID: user.ID, Amount: 10})
	require.NoError(t, err)

	// Pending transactions cannot be refunded.
	_, err = svc.Refund(ctx, txn.CartID, "customer request")
	require.ErrorIs(t, err, ErrTransactionNotRefundable)

	_, err = svc.HandleCallback(ctx, txn.CartID, "TST0001", paytabs.PaymentResult{ResponseStatus: "A"})
	require.NoError(t, err)

	refunded, err := svc.Refund(ctx, txn.CartID, "customer request")
	require.NoError(t, err)
	require.Equal(t, models.PaymentRefunded, refunded.Status)
	require.Equal(t, 1, refunds)
}

func TestListForUserNewestFirst(t *testing.T) {
	svc, db, user := newTestPaymentService(t, hostedPageStub(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.CreatePaymentPage(ctx, CreatePaymentInput{UserID: user.ID, Amount: 10})
		require.NoError(t, err)
	}

	other := &models.User{Username: "other", Email: "other@example.com", Password: "x", IsActive: true}
	require.NoError(t, db.Create(other).Error)
	require.NoError(t, db.Create(&models.PaymentTransaction{
		UserID: other.ID, CartID: "cart-other", Amount: 5, Currency: "USD", Status: models.PaymentPending,
	}).Error)

	rows, err := svc.ListForUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for _, row := range rows {
		require.Equal(t, user.ID, row.UserID)
	}
}
