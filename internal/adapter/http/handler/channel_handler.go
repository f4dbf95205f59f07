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

// ChannelHandler serves the merchant's channel directory.
type ChannelHandler struct {
	channelSvc ports.ChannelService
}

func NewChannelHandler(channelSvc ports.ChannelService) *ChannelHandler {
	return &ChannelHandler{channelSvc: channelSvc}
}

// List handles GET /merchants/channels.
func (h *ChannelHandler) List(c *gin.Context) {
	merchantID, ok := middleware.MerchantID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	channels, err := h.channelSvc.List(c.Request.Context(), merchantID)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]dto.ChannelResponse, 0, len(channels))
	for i := range channels {
		out = append(out, dto.NewChannelResponse(&channels[i]))
	}
	response.OK(c, dto.ChannelListResponse{Channels: out})
}

// Create handles POST /merchants/channels.
func (h *ChannelHandler) Create(c *gin.Context) {
	merchantID, ok := middleware.MerchantID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.ChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, dto.BindError(err))
		return
	}
	dto.SanitizeStruct(&req)

	channel, err := h.channelSvc.Create(c.Request.Context(), ports.CreateChannelRequest{
		MerchantID: merchantID,
		Name:       req.Name,
		Number:     req.Number,
		Type:       domain.ChannelType(req.Type),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewChannelResponse(channel))
}
