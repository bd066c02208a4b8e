package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/entrelaunch/platform/internal/geo"
	"github.com/entrelaunch/platform/internal/models"
	apperrors "github.com/entrelaunch/platform/pkg/errors"
	"github.com/entrelaunch/platform/pkg/logger"
	"github.com/entrelaunch/platform/pkg/metrics"
	"github.com/entrelaunch/platform/pkg/paytabs"
)

var (
	// ErrTransactionNotFound indicates no payment row matches the reference.
	ErrTransactionNotFound = apperrors.New("TRANSACTION_NOT_FOUND", "Payment transaction not found", http.StatusNotFound)
	// ErrTransactionNotRefundable rejects refunds of non-captured payments.
	ErrTransactionNotRefundable = apperrors.New("TRANSACTION_NOT_REFUNDABLE", "Only paid transactions can be refunded", http.StatusBadRequest)
	// ErrInvalidCallbackSignature rejects settlement callbacks that were not
	// signed with the merchant server key.
	ErrInvalidCallbackSignature = apperrors.New("INVALID_CALLBACK_SIGNATURE", "Callback signature verification failed", http.StatusUnauthorized)
)

// CreatePaymentInput describes a hosted payment page request.
type CreatePaymentInput struct {
	UserID      string
	Amount      float64
	Description string
	ClientIP    string
	CallbackURL string
	ReturnURL   string
}

// PaymentService drives the hosted payment flow: it records a pending
// transaction, asks the gateway for a payment page, and settles the row when
// the gateway reports back.
type PaymentService struct {
	db      *gorm.DB
	gateway *paytabs.Client
	geo     *geo.Client
	log     *zap.Logger
}

// NewPaymentService constructs a PaymentService. The geo client is optional;
// without it customer countries are left blank.
func NewPaymentService(db *gorm.DB, gateway *paytabs.Client, geoClient *geo.Client) (*PaymentService, error) {
	if db == nil {
		return nil, errors.New("payment service: db is required")
	}
	if gateway == nil {
		return nil, errors.New("payment service: gateway client is required")
	}
	return &PaymentService{
		db:      db,
		gateway: gateway,
		geo:     geoClient,
		log:     logger.WithModule("payments"),
	}, nil
}

// CreatePaymentPage opens a gateway payment page for the user and records
// the pending transaction.
func (s *PaymentService) CreatePaymentPage(ctx context.Context, input CreatePaymentInput) (*models.PaymentTransaction, error) {
	if input.Amount <= 0 {
		return nil, apperrors.NewBadRequest("amount must be positive")
	}

	var user models.User
	err := s.db.WithContext(ctx).
		First(&user, "id = ? AND deleted_at IS NULL", input.UserID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("payment service: load user: %w", err)
	}

	customer := paytabs.CustomerDetails{
		Name:    strings.TrimSpace(user.FirstName + " " + user.LastName),
		Email:   user.Email,
		Phone:   user.Phone,
		Country: user.Country,
		IP:      input.ClientIP,
	}
	if customer.Country == "" && s.geo != nil {
		if loc, err := s.geo.Lookup(ctx, input.ClientIP); err == nil {
			customer.Country = loc.CountryCode
			customer.City = loc.City
		}
	}

	txn := models.PaymentTransaction{
		UserID:      user.ID,
		CartID:      uuid.NewString(),
		Description: input.Description,
		Amount:      input.Amount,
		Currency:    s.gateway.Currency(),
		Status:      models.PaymentPending,
	}
	if err := s.db.WithContext(ctx).Create(&txn).Error; err != nil {
		return nil, fmt.Errorf("payment service: record transaction: %w", err)
	}

	page, err := s.gateway.CreatePaymentPage(ctx, paytabs.PaymentPageRequest{
		CartID:          txn.CartID,
		CartDescription: txn.Description,
		CartAmount:      txn.Amount,
		Callback:        input.CallbackURL,
		Return:          input.ReturnURL,
		HideShipping:    true,
		Customer:        customer,
	})
	if err != nil {
		metrics.GatewayCalls.WithLabelValues("create_page", "error").Inc()
		return nil, apperrors.ErrGatewayUnavailable.WithInternal(err)
	}
	metrics.GatewayCalls.WithLabelValues("create_page", "success").Inc()

	err = s.db.WithContext(ctx).Model(&txn).
		Update("tran_ref", page.TranRef).Error
	if err != nil {
		return nil, fmt.Errorf("payment service: store gateway ref: %w", err)
	}

	txn.TranRef = page.TranRef
	txn.RedirectURL = page.RedirectURL
	return &txn, nil
}

// VerifyCallbackSignature checks that a raw callback body carries a valid
// gateway signature. Settlements must never be accepted without it: the payer
// knows their own cart id and could otherwise settle a pending transaction
// themselves.
func (s *PaymentService) VerifyCallbackSignature(body []byte, signature string) bool {
	return s.gateway.VerifySignature(body, signature)
}

// HandleCallback settles the transaction named by the gateway callback. The
// update is idempotent: a transaction already settled keeps its status.
func (s *PaymentService) HandleCallback(ctx context.Context, cartID, tranRef string, result paytabs.PaymentResult) (*models.PaymentTransaction, error) {
	txn, err := s.byCartID(ctx, cartID)
	if err != nil {
		return nil, err
	}

	if txn.Status != models.PaymentPending {
		return txn, nil
	}

	status := models.PaymentDeclined
	if result.Authorised() {
		status = models.PaymentPaid
	}

	updates := map[string]any{
		"status":          status,
		"gateway_code":    result.ResponseCode,
		"gateway_message": result.ResponseMessage,
	}
	if tranRef != "" {
		updates["tran_ref"] = tranRef
	}
	if err := s.db.WithContext(ctx).Model(txn).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("payment service: settle transaction: %w", err)
	}

	s.log.Info("payment settled",
		zap.String("cart_id", txn.CartID),
		zap.String("status", status),
		zap.String("gateway_code", result.ResponseCode),
	)
	return s.byCartID(ctx, cartID)
}

// Query fetches the gateway's current view of a transaction.
func (s *PaymentService) Query(ctx context.Context, cartID string) (*paytabs.TransactionResponse, error) {
	txn, err := s.byCartID(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if txn.TranRef == "" {
		return nil, ErrTransactionNotFound
	}

	resp, err := s.gateway.QueryTransaction(ctx, txn.TranRef)
	if err != nil {
		metrics.GatewayCalls.WithLabelValues("query", "error").Inc()
		return nil, apperrors.ErrGatewayUnavailable.WithInternal(err)
	}
	metrics.GatewayCalls.WithLabelValues("query", "success").Inc()
	return resp, nil
}

// Refund reverses a paid transaction through the gateway and marks the row.
func (s *PaymentService) Refund(ctx context.Context, cartID, reason string) (*models.PaymentTransaction, error) {
	txn, err := s.byCartID(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if txn.Status != models.PaymentPaid {
		return nil, ErrTransactionNotRefundable
	}

	_, err = s.gateway.Refund(ctx, txn.TranRef, txn.CartID, reason, txn.Currency, txn.Amount)
	if err != nil {
		metrics.GatewayCalls.WithLabelValues("refund", "error").Inc()
		if errors.Is(err, paytabs.ErrDeclined) {
			return nil, apperrors.NewBadRequest("gateway declined the refund")
		}
		return nil, apperrors.ErrGatewayUnavailable.WithInternal(err)
	}
	metrics.GatewayCalls.WithLabelValues("refund", "success").Inc()

	if err := s.db.WithContext(ctx).Model(txn).Update("status", models.PaymentRefunded).Error; err != nil {
		return nil, fmt.Errorf("payment service: mark refunded: %w", err)
	}
	return s.byCartID(ctx, cartID)
}

// ListForUser returns the user's transactions, newest first.
func (s *PaymentService) ListForUser(ctx context.Context, userID string) ([]models.PaymentTransaction, error) {
	var rows []models.PaymentTransaction
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("payment service: list transactions: %w", err)
	}
	return rows, nil
}

func (s *PaymentService) byCartID(ctx context.Context, cartID string) (*models.PaymentTransaction, error) {
	cartID = strings.TrimSpace(cartID)
	if cartID == "" {
		return nil, ErrTransactionNotFound
	}

	var txn models.PaymentTransaction
	err := s.db.WithContext(ctx).First(&txn, "cart_id = ?", cartID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("payment service: load transaction: %w", err)
	}
	return &txn, nil
}
