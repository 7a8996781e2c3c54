package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/sitepass/sitepass-backend/internal/apperr"
	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/middleware"
	"github.com/sitepass/sitepass-backend/internal/services"
)

type AuthHandler struct {
	log         *logger.Logger
	authService services.AuthService
}

func NewAuthHandler(log *logger.Logger, authService services.AuthService) *AuthHandler {
	return &AuthHandler{
		log:         log.With("handler", "AuthHandler"),
		authService: authService,
	}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, apperr.Validation("invalid login payload"))
		return
	}
	result, err := h.authService.Login(c.Request.Context(), req.Username, req.Password,
		middleware.RequestIDFrom(c), c.ClientIP())
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, result)
}

func (h *AuthHandler) WechatLogin(c *gin.Context) {
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, apperr.Validation("code is required"))
		return
	}
	result, err := h.authService.WechatLogin(c.Request.Context(), req.Code)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, result)
}

func (h *AuthHandler) Bind(c *gin.Context) {
	var req struct {
		Code        string `json:"code" binding:"required"`
		Name        string `json:"name" binding:"required"`
		IDNo        string `json:"id_no" binding:"required"`
		PhotoBase64 string `json:"photo_base64" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, apperr.Validation("invalid binding payload"))
		return
	}
	result, err := h.authService.BindWorker(c.Request.Context(), services.BindWorkerInput{
		Code:        req.Code,
		Name:        req.Name,
		IDNo:        req.IDNo,
		PhotoBase64: req.PhotoBase64,
	}, middleware.RequestIDFrom(c), c.ClientIP())
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, result)
}

func (h *AuthHandler) Me(c *gin.Context) {
	tctx, ok := middleware.TenantFrom(c)
	if !ok {
		RespondError(c, apperr.ErrUnauthorized)
		return
	}
	RespondOK(c, gin.H{
		"user_id":          tctx.UserID,
		"role":             tctx.Role,
		"contractor_id":    tctx.ContractorID,
		"accessible_sites": tctx.AccessibleSites,
	})
}
