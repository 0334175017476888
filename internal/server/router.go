package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/hschub/hschub-backend/internal/handlers"
	"github.com/hschub/hschub-backend/internal/middleware"
	"github.com/hschub/hschub-backend/internal/platform/envutil"
	"github.com/hschub/hschub-backend/internal/platform/logger"
)

type Handlers struct {
	Classify    *handlers.ClassifyHandler
	Corrections *handlers.CorrectionsHandler
	Generation  *handlers.GenerationHandler
	Diagram     *handlers.DiagramHandler
	Questions   *handlers.QuestionsHandler
}

func NewRouter(h Handlers, log *logger.Logger) *gin.Engine {
	if envutil.Str("APP_MODE", "dev") == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLog(log))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: false,
	}))

	r.GET("/healthcheck", handlers.HealthCheck)

	r.POST("/classify", h.Classify.Classify)
	r.POST("/submit_corrections", h.Corrections.Submit)
	r.POST("/revamp_question", h.Generation.Revamp)
	r.POST("/generate-question-by-topics", h.Generation.GenerateByTopics)
	r.POST("/generate-diagram-for-question", h.Diagram.Generate)
	r.GET("/get-questions", h.Questions.GetQuestions)
	r.POST("/get-questions", h.Questions.GetQuestions)

	return r
}
