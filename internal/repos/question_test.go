package repos

import (
	"testing"

	"github.com/hschub/hschub-backend/internal/types"
)

func TestUpsertIgnoreExisting(t *testing.T) {
	gdb, log := testDB(t)
	repo := NewQuestionRepo(gdb, log)

	first := &types.Question{QuestionID: "100001", Text: "original text", Subject: "Biology"}
	if err := repo.UpsertIgnoreExisting(nil, first); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// A second upsert with the same ID must not overwrite the stored text.
	second := &types.Question{QuestionID: "100001", Text: "different text", Subject: "Biology"}
	if err := repo.UpsertIgnoreExisting(nil, second); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	got, err := repo.GetByID(nil, "100001")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Text != "original text" {
		t.Fatalf("existing row overwritten: %q", got.Text)
	}

	exists, err := repo.ExistsByID(nil, "100001")
	if err != nil || !exists {
		t.Fatalf("ExistsByID = %v, %v", exists, err)
	}
	exists, err = repo.ExistsByID(nil, "999999")
	if err != nil || exists {
		t.Fatalf("phantom question: %v, %v", exists, err)
	}
}

func TestUpsertRejectsEmptyID(t *testing.T) {
	gdb, log := testDB(t)
	repo := NewQuestionRepo(gdb, log)

	if err := repo.UpsertIgnoreExisting(nil, &types.Question{Text: "no id"}); err == nil {
		t.Fatalf("expected error for empty question_id")
	}
	if err := repo.UpsertIgnoreExisting(nil, nil); err == nil {
		t.Fatalf("expected error for nil question")
	}
}

func TestGetBySubject(t *testing.T) {
	gdb, log := testDB(t)
	repo := NewQuestionRepo(gdb, log)

	for _, q := range []*types.Question{
		{QuestionID: "1", Text: "a", Subject: "Biology"},
		{QuestionID: "2", Text: "b", Subject: "Mathematics Advanced"},
		{QuestionID: "3", Text: "c", Subject: "Biology"},
	} {
		if err := repo.UpsertIgnoreExisting(nil, q); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	got, err := repo.GetBySubject(nil, "Biology")
	if err != nil {
		t.Fatalf("GetBySubject: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d questions, want 2", len(got))
	}
}
