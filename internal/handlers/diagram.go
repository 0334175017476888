package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hschub/hschub-backend/internal/platform/logger"
	"github.com/hschub/hschub-backend/internal/services"
)

type DiagramHandler struct {
	log *logger.Logger
	svc services.DiagramService
}

func NewDiagramHandler(svc services.DiagramService, log *logger.Logger) *DiagramHandler {
	return &DiagramHandler{
		log: log.With("handler", "DiagramHandler"),
		svc: svc,
	}
}

func (h *DiagramHandler) Generate(c *gin.Context) {
	var req services.DiagramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_payload", err)
		return
	}

	result, err := h.svc.Generate(c.Request.Context(), req)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, result)
}
