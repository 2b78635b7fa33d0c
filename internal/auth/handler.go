package auth

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/seminar-portal/pkg/response"
)

// CustomerLoginRequest is the body for POST /auth/login.
type CustomerLoginRequest struct {
	CustomerID string `json:"customer_id" binding:"required"`
}

// AdminLoginRequest is the body for POST /auth/admin/login.
type AdminLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req CustomerLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	res, err := h.svc.LoginCustomer(c.Request.Context(), req.CustomerID)
	if err != nil {
		response.Error(c, err, "login failed")
		return
	}
	response.OK(c, res)
}

// AdminLogin handles POST /auth/admin/login.
func (h *Handler) AdminLogin(c *gin.Context) {
	var req AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	res, err := h.svc.LoginAdmin(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		response.Unauthorized(c, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("admin login", zap.Error(err))
		response.Internal(c, "login failed")
		return
	}
	response.OK(c, res)
}
