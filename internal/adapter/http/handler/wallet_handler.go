package handler

import (
	"paylor/internal/adapter/http/dto"
	"paylor/internal/adapter/http/middleware"
	"paylor/internal/core/ports"
	"paylor/pkg/apperror"
	"paylor/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler exposes the merchant's wallet balance.
type WalletHandler struct {
	walletSvc ports.WalletService
}

func NewWalletHandler(walletSvc ports.WalletService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc}
}

// GetBalance handles GET /merchants/wallet.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	merchantID, ok := middleware.MerchantID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	wallet, err := h.walletSvc.GetBalance(c.Request.Context(), merchantID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewWalletResponse(wallet))
}
