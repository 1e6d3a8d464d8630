package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"botdesk/internal/app"
	"botdesk/internal/logger"
	"botdesk/internal/transport/http/response"
)

type PlatformHandler struct {
	platform *app.PlatformService
	log      logger.Logger
}

func NewPlatformHandler(platform *app.PlatformService, log logger.Logger) *PlatformHandler {
	return &PlatformHandler{platform: platform, log: log}
}

func (h *PlatformHandler) GetLogo(c *gin.Context) {
	setting, err := h.platform.Get(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err, "fetch platform logo failed")
		return
	}
	response.OK(c, setting)
}

func (h *PlatformHandler) UploadLogo(c *gin.Context) {
	fh, err := c.FormFile("logo")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "logo file is required")
		return
	}
	upload, err := readUpload(fh, app.MaxChatbotUploadBytes)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		return
	}

	setting, err := h.platform.SetLogo(c.Request.Context(), upload)
	if err != nil {
		writeError(c, h.log, err, "upload platform logo failed")
		return
	}
	response.OK(c, setting)
}

func (h *PlatformHandler) DeleteLogo(c *gin.Context) {
	setting, err := h.platform.DeleteLogo(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err, "delete platform logo failed")
		return
	}
	response.OK(c, setting)
}
