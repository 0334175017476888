package repos

import (
	"path/filepath"
	"sort"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/hschub/hschub-backend/internal/platform/logger"
	"github.com/hschub/hschub-backend/internal/types"
)

func testDB(t *testing.T) (*gorm.DB, *logger.Logger) {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := gdb.AutoMigrate(&types.Question{}, &types.Topic{}, &types.Classification{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return gdb, log
}

func linkedTopicIDs(t *testing.T, repo ClassificationRepo, questionID string) []string {
	t.Helper()
	links, err := repo.GetByQuestionID(nil, questionID)
	if err != nil {
		t.Fatalf("GetByQuestionID: %v", err)
	}
	out := make([]string, 0, len(links))
	for _, l := range links {
		out = append(out, l.TopicID)
	}
	sort.Strings(out)
	return out
}

func TestReplaceForQuestionIdempotent(t *testing.T) {
	gdb, log := testDB(t)
	repo := NewClassificationRepo(gdb, log)

	if err := repo.ReplaceForQuestion(nil, "123456", []string{"MA-C1", "MA-C2"}); err != nil {
		t.Fatalf("first replace: %v", err)
	}
	if err := repo.ReplaceForQuestion(nil, "123456", []string{"MA-F1"}); err != nil {
		t.Fatalf("second replace: %v", err)
	}

	got := linkedTopicIDs(t, repo, "123456")
	if len(got) != 1 || got[0] != "MA-F1" {
		t.Fatalf("leftover links after replace: %v", got)
	}

	// Replacing with the same set again is a no-op in effect.
	if err := repo.ReplaceForQuestion(nil, "123456", []string{"MA-F1"}); err != nil {
		t.Fatalf("third replace: %v", err)
	}
	if got := linkedTopicIDs(t, repo, "123456"); len(got) != 1 || got[0] != "MA-F1" {
		t.Fatalf("replace not idempotent: %v", got)
	}
}

func TestReplaceForQuestionEmptyAndDuplicates(t *testing.T) {
	gdb, log := testDB(t)
	repo := NewClassificationRepo(gdb, log)

	if err := repo.ReplaceForQuestion(nil, "222222", []string{"MA-C1", "MA-C1", ""}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if got := linkedTopicIDs(t, repo, "222222"); len(got) != 1 || got[0] != "MA-C1" {
		t.Fatalf("duplicate topic ids not collapsed: %v", got)
	}

	if err := repo.ReplaceForQuestion(nil, "222222", nil); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got := linkedTopicIDs(t, repo, "222222"); len(got) != 0 {
		t.Fatalf("links not cleared: %v", got)
	}
}

func TestQuestionIDsWithAllTopics(t *testing.T) {
	gdb, log := testDB(t)
	repo := NewClassificationRepo(gdb, log)

	if err := repo.ReplaceForQuestion(nil, "q1", []string{"A", "B"}); err != nil {
		t.Fatalf("seed q1: %v", err)
	}
	if err := repo.ReplaceForQuestion(nil, "q2", []string{"A"}); err != nil {
		t.Fatalf("seed q2: %v", err)
	}
	if err := repo.ReplaceForQuestion(nil, "q3", []string{"A", "B", "C"}); err != nil {
		t.Fatalf("seed q3: %v", err)
	}

	got, err := repo.QuestionIDsWithAllTopics(nil, []string{"A", "B"})
	if err != nil {
		t.Fatalf("QuestionIDsWithAllTopics: %v", err)
	}
	sort.Strings(got)
	if len(got) != 2 || got[0] != "q1" || got[1] != "q3" {
		t.Fatalf("intersection wrong: %v", got)
	}

	got, err = repo.QuestionIDsWithAllTopics(nil, nil)
	if err != nil {
		t.Fatalf("empty topics: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("empty topic set should match nothing, got %v", got)
	}
}
