package handler

import (
	"paylor/internal/adapter/http/dto"
	"paylor/internal/adapter/http/middleware"
	"paylor/internal/core/domain"
	"paylor/internal/core/ports"
	"paylor/pkg/apperror"
	"paylor/pkg/response"

	"github.com/gin-gonic/gin"
)

// ConsentHandler serves the consent ledger, scoped to the calling merchant.
type ConsentHandler struct {
	consentSvc ports.ConsentService
}

func NewConsentHandler(consentSvc ports.ConsentService) *ConsentHandler {
	return &ConsentHandler{consentSvc: consentSvc}
}

// Record handles POST /merchants/consents.
func (h *ConsentHandler) Record(c *gin.Context) {
	merchantID, ok := middleware.MerchantID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.ConsentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, dto.BindError(err))
		return
	}

	record, err := h.consentSvc.Record(c.Request.Context(), ports.RecordConsentRequest{
		MerchantID:  merchantID,
		Phone:       req.Phone,
		ConsentType: req.ConsentType,
		Granted:     *req.Granted,
		Metadata:    req.Metadata,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewConsentResponse(record))
}

// Latest handles GET /merchants/consents/latest?phone=&consentType=.
func (h *ConsentHandler) Latest(c *gin.Context) {
	q, ok := h.query(c)
	if !ok {
		return
	}

	record, err := h.consentSvc.Latest(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	if record == nil {
		response.Error(c, apperror.ErrNotFound("consent"))
		return
	}
	response.OK(c, dto.NewConsentResponse(record))
}

// History handles GET /merchants/consents?phone=&consentType=.
func (h *ConsentHandler) History(c *gin.Context) {
	q, ok := h.query(c)
	if !ok {
		return
	}

	records, err := h.consentSvc.History(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]dto.ConsentResponse, 0, len(records))
	for i := range records {
		out = append(out, dto.NewConsentResponse(&records[i]))
	}
	response.OK(c, dto.ConsentHistoryResponse{Items: out})
}

func (h *ConsentHandler) query(c *gin.Context) (domain.ConsentQuery, bool) {
	merchantID, ok := middleware.MerchantID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return domain.ConsentQuery{}, false
	}

	var q dto.ConsentQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, dto.BindError(err))
		return domain.ConsentQuery{}, false
	}

	scope := merchantID
	return domain.ConsentQuery{
		MerchantID:  &scope,
		Phone:       q.Phone,
		ConsentType: q.ConsentType,
	}, true
}
