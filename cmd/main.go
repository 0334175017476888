package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"github.com/hschub/hschub-backend/internal/db"
	"github.com/hschub/hschub-backend/internal/handlers"
	"github.com/hschub/hschub-backend/internal/platform/envutil"
	"github.com/hschub/hschub-backend/internal/platform/logger"
	"github.com/hschub/hschub-backend/internal/platform/openai"
	"github.com/hschub/hschub-backend/internal/repos"
	"github.com/hschub/hschub-backend/internal/server"
	"github.com/hschub/hschub-backend/internal/services"
	"github.com/hschub/hschub-backend/internal/simindex"
)

func main() {
	_ = godotenv.Load()

	appLog, err := logger.New(envutil.Str("APP_MODE", "dev"))
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer appLog.Sync()

	ctx := context.Background()

	pg, err := db.NewPostgresService(appLog)
	if err != nil {
		appLog.Fatal("Failed to connect to postgres", "error", err.Error())
	}
	if err := db.AutoMigrateAll(pg.DB); err != nil {
		appLog.Fatal("Failed to migrate schema", "error", err.Error())
	}

	questionRepo := repos.NewQuestionRepo(pg.DB, appLog)
	topicRepo := repos.NewTopicRepo(pg.DB, appLog)
	classificationRepo := repos.NewClassificationRepo(pg.DB, appLog)

	aiClient, err := openai.NewClient(appLog)
	if err != nil {
		appLog.Fatal("Failed to init OpenAI client", "error", err.Error())
	}

	ocr, err := services.NewVisionOCRService(ctx, appLog)
	if err != nil {
		appLog.Fatal("Failed to init Vision OCR", "error", err.Error())
	}
	defer ocr.Close()

	indexRoot := envutil.Str("SIMINDEX_ROOT", "simindex_data")
	registry := simindex.NewRegistry(indexRoot, aiClient, questionRepo, topicRepo, classificationRepo, appLog)

	subjects, err := topicRepo.DistinctSubjects(nil)
	if err != nil {
		appLog.Fatal("Failed to list subjects", "error", err.Error())
	}
	if err := registry.LoadAll(ctx, subjects); err != nil {
		appLog.Fatal("Failed to load similarity indexes", "error", err.Error())
	}

	extraction := services.NewExtractionService(ocr, appLog)
	classification := services.NewClassificationService(
		aiClient, extraction, registry, questionRepo, topicRepo, classificationRepo, appLog)
	generation := services.NewGenerationService(
		aiClient, questionRepo, topicRepo, classificationRepo, appLog)
	diagram := services.NewDiagramService(aiClient, appLog)
	questionQuery := services.NewQuestionQueryService(
		questionRepo, topicRepo, classificationRepo, appLog)

	router := server.NewRouter(server.Handlers{
		Classify:    handlers.NewClassifyHandler(classification, appLog),
		Corrections: handlers.NewCorrectionsHandler(classification, appLog),
		Generation:  handlers.NewGenerationHandler(generation, appLog),
		Diagram:     handlers.NewDiagramHandler(diagram, appLog),
		Questions:   handlers.NewQuestionsHandler(questionQuery, appLog),
	}, appLog)

	addr := ":" + envutil.Str("PORT", "8000")
	appLog.Info("Starting server", "addr", addr)
	if err := router.Run(addr); err != nil {
		appLog.Fatal("Server exited", "error", err.Error())
	}
}
