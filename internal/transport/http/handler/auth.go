package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"botdesk/internal/app"
	"botdesk/internal/logger"
	"botdesk/internal/model"
	"botdesk/internal/transport/http/response"
)

type AuthHandler struct {
	authService *app.AuthService
	log         logger.Logger
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"max=128"`
	Email    string `json:"email" binding:"required,email,max=128"`
	Password string `json:"password" binding:"required,min=8,max=128"`
	Role     string `json:"role" binding:"omitempty,role"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=128"`
	Password string `json:"password" binding:"required,max=128"`
}

func NewAuthHandler(authService *app.AuthService, log logger.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, log: log}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.authService.Register(c.Request.Context(), app.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     model.Role(req.Role),
	})
	if err != nil {
		writeError(c, h.log, err, "register failed")
		return
	}
	response.Created(c, result)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.authService.Login(c.Request.Context(), app.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(c, h.log, err, "login failed")
		return
	}
	response.OK(c, result)
}

func (h *AuthHandler) Me(c *gin.Context) {
	principal, ok := principalOf(c)
	if !ok {
		return
	}

	user, err := h.authService.Me(c.Request.Context(), principal.ID)
	if err != nil {
		writeError(c, h.log, err, "fetch current user failed")
		return
	}
	response.OK(c, user)
}
