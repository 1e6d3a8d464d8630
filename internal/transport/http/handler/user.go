package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"botdesk/internal/app"
	"botdesk/internal/logger"
	"botdesk/internal/model"
	"botdesk/internal/transport/http/response"
)

type UserHandler struct {
	users *app.UserService
	log   logger.Logger
}

type UpdateUserRequest struct {
	Name  string `json:"name" binding:"required,max=128"`
	Email string `json:"email" binding:"required,email,max=128"`
	Role  string `json:"role" binding:"omitempty,role"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=8,max=128"`
}

func NewUserHandler(users *app.UserService, log logger.Logger) *UserHandler {
	return &UserHandler{users: users, log: log}
}

func (h *UserHandler) List(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err, "list users failed")
		return
	}
	response.OK(c, users)
}

func (h *UserHandler) Get(c *gin.Context) {
	id, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}
	user, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, err, "fetch user failed")
		return
	}
	response.OK(c, user)
}

func (h *UserHandler) Update(c *gin.Context) {
	id, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "name and email are required")
		return
	}

	user, err := h.users.Update(c.Request.Context(), id, app.UpdateUserInput{
		Name:  req.Name,
		Email: req.Email,
		Role:  model.Role(req.Role),
	})
	if err != nil {
		writeError(c, h.log, err, "update user failed")
		return
	}
	response.OK(c, user)
}

func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}
	if err := h.users.Delete(c.Request.Context(), id); err != nil {
		writeError(c, h.log, err, "delete user failed")
		return
	}
	response.OK(c, gin.H{"deleted": true})
}

func (h *UserHandler) ChangePassword(c *gin.Context) {
	principal, ok := principalOf(c)
	if !ok {
		return
	}
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "old and new password are required, new password at least 8 characters")
		return
	}

	err := h.users.ChangePassword(c.Request.Context(), principal.ID, app.ChangePasswordInput{
		OldPassword: req.OldPassword,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		writeError(c, h.log, err, "change password failed")
		return
	}
	response.OK(c, gin.H{"changed": true})
}
