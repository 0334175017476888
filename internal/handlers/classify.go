package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hschub/hschub-backend/internal/platform/logger"
	"github.com/hschub/hschub-backend/internal/services"
)

type ClassifyHandler struct {
	log *logger.Logger
	svc services.ClassificationService
}

func NewClassifyHandler(svc services.ClassificationService, log *logger.Logger) *ClassifyHandler {
	return &ClassifyHandler{
		log: log.With("handler", "ClassifyHandler"),
		svc: svc,
	}
}

// Classify accepts a multipart upload (file + subject) and returns the
// classified question objects.
func (h *ClassifyHandler) Classify(c *gin.Context) {
	subject := c.PostForm("subject")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "missing_file", fmt.Errorf("missing 'file' field in form data"))
		return
	}

	// Preserve the extension so the extractor can detect PDFs.
	tmpPath := filepath.Join(os.TempDir(),
		fmt.Sprintf("upload_%s%s", uuid.NewString(), filepath.Ext(fileHeader.Filename)))
	if err := c.SaveUploadedFile(fileHeader, tmpPath); err != nil {
		RespondError(c, http.StatusInternalServerError, "upload_failed", err)
		return
	}
	defer func() {
		if err := os.Remove(tmpPath); err != nil {
			h.log.Warn("Failed to remove temp upload", "path", tmpPath, "error", err.Error())
		}
	}()

	result, err := h.svc.ClassifyUpload(c.Request.Context(), tmpPath, subject)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"result": result})
}
