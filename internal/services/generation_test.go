package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/hschub/hschub-backend/internal/platform/apierr"
	"github.com/hschub/hschub-backend/internal/platform/logger"
	"github.com/hschub/hschub-backend/internal/types"
)

func newGenerationFixture(t *testing.T) (*classifyFixture, GenerationService) {
	t.Helper()
	fx := newClassifyFixture(t)
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	svc := NewGenerationService(fx.ai, fx.questions, fx.topics, fx.classifications, log)
	return fx, svc
}

func seedExemplar(t *testing.T, fx *classifyFixture, id, text string, topicIDs []string) {
	t.Helper()
	q := &types.Question{QuestionID: id, Text: text, Subject: testSubject}
	if err := fx.questions.UpsertIgnoreExisting(nil, q); err != nil {
		t.Fatalf("seed question %s: %v", id, err)
	}
	if err := fx.classifications.ReplaceForQuestion(nil, id, topicIDs); err != nil {
		t.Fatalf("seed links %s: %v", id, err)
	}
}

func TestGenerateByTopicsCountsListedExemplars(t *testing.T) {
	fx, svc := newGenerationFixture(t)

	seedExemplar(t, fx, "200001", "Differentiate x^3", []string{"MA-C1"})
	seedExemplar(t, fx, "200002", "   ", []string{"MA-C1"})
	seedExemplar(t, fx, "200003", "Differentiate sin(x)", []string{"MA-C1"})

	res, err := svc.GenerateByTopics(context.Background(), GenerateByTopicsRequest{
		Topics:  []string{testVocab[0].Name},
		Subject: testSubject,
	})
	if err != nil {
		t.Fatalf("GenerateByTopics: %v", err)
	}

	if res.ExemplarsUsed != len(res.ExemplarIDs) {
		t.Fatalf("ExemplarsUsed=%d but %d ids listed", res.ExemplarsUsed, len(res.ExemplarIDs))
	}
	if res.ExemplarsUsed != 2 {
		t.Fatalf("used %d exemplars, want 2 (blank question excluded)", res.ExemplarsUsed)
	}
	for _, id := range res.ExemplarIDs {
		if id == "200002" {
			t.Fatalf("blank exemplar reported in ids: %v", res.ExemplarIDs)
		}
	}
	if res.Latex == "" {
		t.Fatalf("no latex returned")
	}
}

func TestGenerateByTopicsNoExemplars(t *testing.T) {
	_, svc := newGenerationFixture(t)

	_, err := svc.GenerateByTopics(context.Background(), GenerateByTopicsRequest{
		Topics: []string{testVocab[2].Name},
	})
	if err == nil {
		t.Fatalf("expected error with no matching exemplars")
	}
	status, code := apierr.StatusOf(err)
	if status != http.StatusNotFound || code != "no_exemplars" {
		t.Fatalf("got status=%d code=%q, want 404 no_exemplars", status, code)
	}
}

func TestRevampRequiresTextAndTopics(t *testing.T) {
	_, svc := newGenerationFixture(t)

	if _, err := svc.Revamp(context.Background(), testSubject, "", []string{"MA-C1"}); err == nil {
		t.Fatalf("expected error for missing text")
	}
	_, err := svc.Revamp(context.Background(), testSubject, "Differentiate x^2", nil)
	if err == nil {
		t.Fatalf("expected error for missing topics")
	}
	if status, _ := apierr.StatusOf(err); status != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", status)
	}
}
