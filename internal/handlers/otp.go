package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/entrelaunch/platform/internal/services"
	"github.com/entrelaunch/platform/pkg/response"
)

// OtpHandler exposes SMS verification endpoints. Both routes are public:
// phone verification happens before the caller has an account.
type OtpHandler struct {
	otp *services.OtpService
}

func NewOtpHandler(otp *services.OtpService) *OtpHandler {
	return &OtpHandler{otp: otp}
}

type otpRequestBody struct {
	Phone string `json:"phone" validate:"required,e164"`
}

// POST /api/otp/request
func (h *OtpHandler) Request(c *gin.Context) {
	var req otpRequestBody
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.otp.Request(c.Request.Context(), req.Phone); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "verification code sent", nil)
}

type otpVerifyBody struct {
	Phone string `json:"phone" validate:"required,e164"`
	Code  string `json:"code" validate:"required,len=6"`
}

// POST /api/otp/verify
func (h *OtpHandler) Verify(c *gin.Context) {
	var req otpVerifyBody
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.otp.Verify(c.Request.Context(), req.Phone, req.Code); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "phone verified", gin.H{"verified": true})
}
