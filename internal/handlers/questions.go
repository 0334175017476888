package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hschub/hschub-backend/internal/platform/logger"
	"github.com/hschub/hschub-backend/internal/services"
)

type QuestionsHandler struct {
	log *logger.Logger
	svc services.QuestionQueryService
}

func NewQuestionsHandler(svc services.QuestionQueryService, log *logger.Logger) *QuestionsHandler {
	return &QuestionsHandler{
		log: log.With("handler", "QuestionsHandler"),
		svc: svc,
	}
}

type getQuestionsRequest struct {
	Topics []string `json:"topics"`
	Count  int      `json:"count"`
}

func (h *QuestionsHandler) GetQuestions(c *gin.Context) {
	var req getQuestionsRequest

	if c.Request.Method == http.MethodGet {
		req.Topics = splitTopicsParam(c.QueryArray("topics"))
		if raw := c.Query("count"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				req.Count = n
			}
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_payload", err)
		return
	}

	questions, err := h.svc.GetQuestions(c.Request.Context(), req.Topics, req.Count)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"questions": questions})
}

// splitTopicsParam accepts both repeated ?topics= params and a single
// comma-separated value.
func splitTopicsParam(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
