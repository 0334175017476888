package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hschub/hschub-backend/internal/platform/logger"
	"github.com/hschub/hschub-backend/internal/services"
)

type GenerationHandler struct {
	log *logger.Logger
	svc services.GenerationService
}

func NewGenerationHandler(svc services.GenerationService, log *logger.Logger) *GenerationHandler {
	return &GenerationHandler{
		log: log.With("handler", "GenerationHandler"),
		svc: svc,
	}
}

type revampImage struct {
	ID     string   `json:"id"`
	Base64 string   `json:"base64"`
	Text   string   `json:"text"`
	Topics []string `json:"topics"`
}

type revampRequest struct {
	Img     revampImage `json:"img"`
	Subject string      `json:"subject"`
}

func (h *GenerationHandler) Revamp(c *gin.Context) {
	var req revampRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_payload", err)
		return
	}

	result, err := h.svc.Revamp(c.Request.Context(), req.Subject, req.Img.Text, req.Img.Topics)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, result)
}

func (h *GenerationHandler) GenerateByTopics(c *gin.Context) {
	var req services.GenerateByTopicsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_payload", err)
		return
	}

	result, err := h.svc.GenerateByTopics(c.Request.Context(), req)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, result)
}
