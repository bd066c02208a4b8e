package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/entrelaunch/platform/internal/middleware"
	"github.com/entrelaunch/platform/internal/services"
	"github.com/entrelaunch/platform/pkg/errors"
	"github.com/entrelaunch/platform/pkg/paytabs"
	"github.com/entrelaunch/platform/pkg/response"
)

// PaymentHandler exposes the hosted payment flow.
type PaymentHandler struct {
	payments *services.PaymentService
}

func NewPaymentHandler(payments *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// Register mounts the payment routes. The gateway callback stays outside the
// authenticated group because PayTabs calls it directly.
func (h *PaymentHandler) Register(group *gin.RouterGroup, guard func(permission string) gin.HandlerFunc) {
	group.POST("/create-page", guard("payment.create"), h.CreatePage)
	group.GET("/all", guard("payment.view"), h.List)
	group.GET("/query/:cartId", guard("payment.view"), h.Query)
	group.POST("/refund/:cartId", guard("payment.refund"), h.Refund)
}

type createPageRequest struct {
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	Description string  `json:"description" validate:"required"`
	CallbackURL string  `json:"callback_url"`
	ReturnURL   string  `json:"return_url"`
}

// POST /api/payments/create-page
func (h *PaymentHandler) CreatePage(c *gin.Context) {
	var req createPageRequest
	if !bindAndValidate(c, &req) {
		return
	}

	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	txn, err := h.payments.CreatePaymentPage(c.Request.Context(), services.CreatePaymentInput{
		UserID:      userID,
		Amount:      req.Amount,
		Description: req.Description,
		ClientIP:    c.ClientIP(),
		CallbackURL: req.CallbackURL,
		ReturnURL:   req.ReturnURL,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, txn)
}

type callbackRequest struct {
	CartID        string                `json:"cart_id" validate:"required"`
	TranRef       string                `json:"tran_ref"`
	PaymentResult paytabs.PaymentResult `json:"payment_result"`
}

// POST /api/payments/callback
//
// Mounted without authentication; the gateway posts the settlement here.
// The HMAC signature over the raw body is the only thing standing between
// this route and a self-settled payment, so it is checked before the payload
// is even decoded.
func (h *PaymentHandler) Callback(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		response.Error(c, errors.NewBadRequest("unreadable callback payload"))
		return
	}
	if !h.payments.VerifyCallbackSignature(body, c.GetHeader("Signature")) {
		response.Error(c, services.ErrInvalidCallbackSignature)
		return
	}

	var req callbackRequest
	if err := json.Unmarshal(body, &req); err != nil {
		response.Error(c, errors.NewBadRequest("invalid JSON payload"))
		return
	}
	if req.CartID == "" {
		response.Error(c, errors.NewBadRequest("cart_id is required"))
		return
	}

	txn, err := h.payments.HandleCallback(c.Request.Context(), req.CartID, req.TranRef, req.PaymentResult)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, txn)
}

// GET /api/payments/all
func (h *PaymentHandler) List(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	rows, err := h.payments.ListForUser(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, rows)
}

// GET /api/payments/query/:cartId
func (h *PaymentHandler) Query(c *gin.Context) {
	resp, err := h.payments.Query(c.Request.Context(), c.Param("cartId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp)
}

type refundRequest struct {
	Reason string `json:"reason"`
}

// POST /api/payments/refund/:cartId
func (h *PaymentHandler) Refund(c *gin.Context) {
	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req.Reason = ""
	}

	txn, err := h.payments.Refund(c.Request.Context(), c.Param("cartId"), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, txn)
}
