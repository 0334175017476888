package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hschub/hschub-backend/internal/platform/logger"
	"github.com/hschub/hschub-backend/internal/services"
)

type CorrectionsHandler struct {
	log *logger.Logger
	svc services.ClassificationService
}

func NewCorrectionsHandler(svc services.ClassificationService, log *logger.Logger) *CorrectionsHandler {
	return &CorrectionsHandler{
		log: log.With("handler", "CorrectionsHandler"),
		svc: svc,
	}
}

type submitCorrectionsRequest struct {
	Subject     string                `json:"subject"`
	Corrections []services.Correction `json:"corrections"`
}

func (h *CorrectionsHandler) Submit(c *gin.Context) {
	var req submitCorrectionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_payload", err)
		return
	}

	updated, added, err := h.svc.SubmitCorrections(c.Request.Context(), req.Subject, req.Corrections)
	if err != nil {
		RespondServiceError(c, err)
		return
	}

	RespondOK(c, gin.H{
		"message": fmt.Sprintf("Corrections saved. Updated %d docs, added %d new.", updated, added),
		"subject": req.Subject,
		"updated": updated,
		"added":   added,
	})
}
