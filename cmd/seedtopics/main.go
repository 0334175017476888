// Command seedtopics loads the curriculum topic vocabulary from a YAML
// file into the database, replacing each subject's existing topics.
package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hschub/hschub-backend/internal/db"
	"github.com/hschub/hschub-backend/internal/platform/envutil"
	"github.com/hschub/hschub-backend/internal/platform/logger"
	"github.com/hschub/hschub-backend/internal/repos"
	"github.com/hschub/hschub-backend/internal/types"
)

type topicsFile struct {
	Topics []struct {
		TopicID string `yaml:"topic_id"`
		Name    string `yaml:"name"`
		Subject string `yaml:"subject"`
	} `yaml:"topics"`
}

func main() {
	_ = godotenv.Load()

	appLog, err := logger.New(envutil.Str("APP_MODE", "dev"))
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer appLog.Sync()

	path := envutil.Str("TOPICS_FILE", "seed/topics.yaml")
	raw, err := os.ReadFile(path)
	if err != nil {
		appLog.Fatal("Failed to read topics file", "path", path, "error", err.Error())
	}

	var file topicsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		appLog.Fatal("Failed to parse topics file", "path", path, "error", err.Error())
	}

	bySubject := make(map[string][]types.Topic)
	for _, t := range file.Topics {
		bySubject[t.Subject] = append(bySubject[t.Subject], types.Topic{
			TopicID: t.TopicID,
			Name:    t.Name,
			Subject: t.Subject,
		})
	}

	pg, err := db.NewPostgresService(appLog)
	if err != nil {
		appLog.Fatal("Failed to connect to postgres", "error", err.Error())
	}
	if err := db.AutoMigrateAll(pg.DB); err != nil {
		appLog.Fatal("Failed to migrate schema", "error", err.Error())
	}

	topicRepo := repos.NewTopicRepo(pg.DB, appLog)
	for subject, topics := range bySubject {
		if err := topicRepo.ReplaceAll(nil, subject, topics); err != nil {
			appLog.Fatal("Failed to seed topics", "subject", subject, "error", err.Error())
		}
		appLog.Info("Seeded topics", "subject", subject, "count", len(topics))
	}
}
