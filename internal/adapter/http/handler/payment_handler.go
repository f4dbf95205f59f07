package handler

import (
	"crypto/subtle"
	"io"
	"net/http"

	"paylor/internal/adapter/http/dto"
	"paylor/internal/adapter/http/middleware"
	"paylor/internal/adapter/provider/mpesa"
	"paylor/internal/core/domain"
	"paylor/internal/core/ports"
	"paylor/pkg/apperror"
	"paylor/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// callbackAck is the fixed answer the provider expects for every callback.
var callbackAck = gin.H{"ResultCode": 0, "ResultDesc": "Accepted"}

// PaymentHandler handles STK push initiation, callbacks and transaction reads.
type PaymentHandler struct {
	paymentSvc    ports.PaymentService
	callbackToken string
	log           zerolog.Logger
}

func NewPaymentHandler(paymentSvc ports.PaymentService, callbackToken string, log zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc, callbackToken: callbackToken, log: log}
}

// Initiate handles POST /merchants/payments/stk-push.
func (h *PaymentHandler) Initiate(c *gin.Context) {
	merchantID, ok := middleware.MerchantID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.STKPushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, dto.BindError(err))
		return
	}
	amount, err := domain.ParseAmount(string(req.Amount))
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}
	channelID, err := uuid.Parse(req.ChannelID)
	if err != nil {
		response.Error(c, apperror.ErrChannelNotFound())
		return
	}

	consents := make([]ports.ConsentInput, 0, len(req.Consents))
	for _, f := range req.Consents {
		consents = append(consents, ports.ConsentInput{Type: f.Type, Granted: f.Granted})
	}

	result, err := h.paymentSvc.Initiate(c.Request.Context(), ports.InitiateRequest{
		MerchantID:  merchantID,
		Phone:       req.Phone,
		Amount:      amount,
		ChannelID:   channelID,
		Reference:   req.Reference,
		Description: req.Description,
		CallbackURL: req.CallbackURL,
		Consents:    consents,
		ClientIP:    c.ClientIP(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.STKPushResponse{
		TransactionID: result.TransactionID.String(),
		Status:        string(result.Status),
		Message:       result.Message,
	})
}

// Callback handles POST /public/payments/callback. The provider always gets
// the fixed acknowledgement; failures are logged and never retried. Requests
// without the configured callback token are acknowledged and dropped.
func (h *PaymentHandler) Callback(c *gin.Context) {
	if !h.callbackAuthorized(c) {
		h.log.Warn().Str("client_ip", c.ClientIP()).Msg("provider callback rejected: bad token")
		c.JSON(http.StatusOK, callbackAck)
		return
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.log.Warn().Err(err).Msg("failed to read provider callback")
		c.JSON(http.StatusOK, callbackAck)
		return
	}

	res, err := h.paymentSvc.Reconcile(c.Request.Context(), payload)
	switch {
	case err != nil:
		h.log.Warn().Err(err).Str("client_ip", c.ClientIP()).Msg("provider callback not applied")
	case res.Duplicate:
		h.log.Info().Str("tx_id", res.IntentID.String()).Msg("duplicate provider callback acknowledged")
	}
	c.JSON(http.StatusOK, callbackAck)
}

func (h *PaymentHandler) callbackAuthorized(c *gin.Context) bool {
	if h.callbackToken == "" {
		return true
	}
	got := c.Query(mpesa.CallbackTokenParam)
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.callbackToken)) == 1
}

// GetTransaction handles GET /merchants/payments/transactions/:id.
func (h *PaymentHandler) GetTransaction(c *gin.Context) {
	merchantID, ok := middleware.MerchantID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrNotFound("transaction"))
		return
	}

	intent, err := h.paymentSvc.Query(c.Request.Context(), merchantID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewIntentResponse(intent))
}

// ListTransactions handles GET /merchants/payments/transactions.
func (h *PaymentHandler) ListTransactions(c *gin.Context) {
	merchantID, ok := middleware.MerchantID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var q dto.ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, dto.BindError(err))
		return
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PageSize == 0 {
		q.PageSize = 20
	}

	params := ports.IntentListParams{
		MerchantID: merchantID,
		Page:       q.Page,
		PageSize:   q.PageSize,
	}
	if q.Status != "" {
		status := domain.IntentStatus(q.Status)
		params.Status = &status
	}

	items, total, err := h.paymentSvc.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]dto.IntentResponse, 0, len(items))
	for i := range items {
		out = append(out, dto.NewIntentResponse(&items[i]))
	}
	response.OK(c, dto.IntentListResponse{
		Items:    out,
		Total:    total,
		Page:     q.Page,
		PageSize: q.PageSize,
	})
}
