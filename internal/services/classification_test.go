package services

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/hschub/hschub-backend/internal/platform/apierr"
	"github.com/hschub/hschub-backend/internal/platform/logger"
	"github.com/hschub/hschub-backend/internal/platform/openai"
	"github.com/hschub/hschub-backend/internal/repos"
	"github.com/hschub/hschub-backend/internal/simindex"
	"github.com/hschub/hschub-backend/internal/types"
)

type fakeAI struct {
	embedCalls int
	jsonCalls  int
	textCalls  int

	topics  []string
	jsonErr error
	seen    map[string]int
}

func (f *fakeAI) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	if f.seen == nil {
		f.seen = make(map[string]int)
	}
	f.embedCalls++
	out := make([][]float32, len(inputs))
	for i, s := range inputs {
		slot, ok := f.seen[s]
		if !ok {
			slot = len(f.seen) % 8
			f.seen[s] = slot
		}
		vec := make([]float32, 8)
		vec[slot] = 1
		out[i] = vec
	}
	return out, nil
}

func (f *fakeAI) GenerateJSON(_ context.Context, _, _, _ string, _ map[string]any, _ []openai.ImageInput) (map[string]any, error) {
	f.jsonCalls++
	if f.jsonErr != nil {
		return nil, f.jsonErr
	}
	raw := make([]any, 0, len(f.topics))
	for _, t := range f.topics {
		raw = append(raw, t)
	}
	return map[string]any{"topics": raw}, nil
}

func (f *fakeAI) GenerateText(_ context.Context, _, _ string, _ openai.TextOptions) (string, error) {
	f.textCalls++
	return "generated", nil
}

type fakeExtraction struct {
	result ExtractedQuestion
}

func (f *fakeExtraction) ExtractFromFile(_ context.Context, _ string) (*ExtractedQuestion, error) {
	out := f.result
	return &out, nil
}

type classifyFixture struct {
	ai              *fakeAI
	extraction      *fakeExtraction
	svc             ClassificationService
	questions       repos.QuestionRepo
	topics          repos.TopicRepo
	classifications repos.ClassificationRepo
	registry        *simindex.Registry
}

const testSubject = "Mathematics Advanced"

var testVocab = []types.Topic{
	{TopicID: "MA-C1", Name: "MA-C1: Introduction to Differentiation (Year 11)", Subject: testSubject},
	{TopicID: "MA-C4", Name: "MA-C4: Integral Calculus (Year 12)", Subject: testSubject},
	{TopicID: "MA-F1", Name: "MA-F1: Working with Functions (Year 11)", Subject: testSubject},
}

func newClassifyFixture(t *testing.T) *classifyFixture {
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

	questionRepo := repos.NewQuestionRepo(gdb, log)
	topicRepo := repos.NewTopicRepo(gdb, log)
	classificationRepo := repos.NewClassificationRepo(gdb, log)

	if err := topicRepo.ReplaceAll(nil, testSubject, testVocab); err != nil {
		t.Fatalf("seed vocab: %v", err)
	}

	ai := &fakeAI{topics: []string{testVocab[0].Name}}
	registry := simindex.NewRegistry(t.TempDir(), ai, questionRepo, topicRepo, classificationRepo, log)
	extraction := &fakeExtraction{result: ExtractedQuestion{
		Base64PNG: "aW1n",
		Text:      "Find f'(x) given f(x)=x^2",
	}}

	svc := NewClassificationService(ai, extraction, registry, questionRepo, topicRepo, classificationRepo, log)
	return &classifyFixture{
		ai:              ai,
		extraction:      extraction,
		svc:             svc,
		questions:       questionRepo,
		topics:          topicRepo,
		classifications: classificationRepo,
		registry:        registry,
	}
}

func TestClassifyUploadIngestsAndPersists(t *testing.T) {
	fx := newClassifyFixture(t)

	result, err := fx.svc.ClassifyUpload(context.Background(), "upload.png", testSubject)
	if err != nil {
		t.Fatalf("ClassifyUpload: %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("got %d results, want 1", len(result))
	}
	got := result[0]
	if len(got.ID) != 6 {
		t.Fatalf("question id %q is not 6 digits", got.ID)
	}
	if len(got.Topics) != 1 || got.Topics[0] != testVocab[0].Name {
		t.Fatalf("unexpected topics: %v", got.Topics)
	}
	if fx.ai.jsonCalls != 1 {
		t.Fatalf("classifier called %d times, want 1", fx.ai.jsonCalls)
	}

	// Canonical store now holds the question and its topic-code link.
	q, err := fx.questions.GetByID(nil, got.ID)
	if err != nil {
		t.Fatalf("question not persisted: %v", err)
	}
	if q.Subject != testSubject || q.Text != "Find f'(x) given f(x)=x^2" {
		t.Fatalf("persisted question wrong: %+v", q)
	}
	links, err := fx.classifications.GetByQuestionID(nil, got.ID)
	if err != nil {
		t.Fatalf("links: %v", err)
	}
	if len(links) != 1 || links[0].TopicID != "MA-C1" {
		t.Fatalf("topic link wrong: %+v", links)
	}

	// And the subject index can find it by exact text.
	idx, err := fx.registry.ForSubject(context.Background(), testSubject)
	if err != nil {
		t.Fatalf("ForSubject: %v", err)
	}
	if hit := idx.FindByExactText(got.Text); hit == nil || hit.QuestionID != got.ID {
		t.Fatalf("index missing new question")
	}
}

func TestClassifyUploadDuplicateShortCircuits(t *testing.T) {
	fx := newClassifyFixture(t)

	first, err := fx.svc.ClassifyUpload(context.Background(), "upload.png", testSubject)
	if err != nil {
		t.Fatalf("first upload: %v", err)
	}
	callsAfterFirst := fx.ai.jsonCalls

	second, err := fx.svc.ClassifyUpload(context.Background(), "upload.png", testSubject)
	if err != nil {
		t.Fatalf("second upload: %v", err)
	}

	if fx.ai.jsonCalls != callsAfterFirst {
		t.Fatalf("duplicate upload invoked the classifier")
	}
	if second[0].ID != first[0].ID {
		t.Fatalf("duplicate got new id %s, want %s", second[0].ID, first[0].ID)
	}
	// Topics come from the store, resolved back to full names.
	if len(second[0].Topics) != 1 || second[0].Topics[0] != testVocab[0].Name {
		t.Fatalf("duplicate topics wrong: %v", second[0].Topics)
	}
}

func TestClassifyUploadRejectsUnknownSubject(t *testing.T) {
	fx := newClassifyFixture(t)

	if _, err := fx.svc.ClassifyUpload(context.Background(), "upload.png", "Chemistry"); err == nil {
		t.Fatalf("expected error for unknown subject")
	}
	if _, err := fx.svc.ClassifyUpload(context.Background(), "upload.png", ""); err == nil {
		t.Fatalf("expected error for missing subject")
	}
}

func TestClassifyDegradedOutputYieldsEmptyTopics(t *testing.T) {
	fx := newClassifyFixture(t)
	fx.ai.topics = []string{"Invented Topic Outside Vocabulary"}

	result, err := fx.svc.ClassifyUpload(context.Background(), "upload.png", testSubject)
	if err != nil {
		t.Fatalf("ClassifyUpload: %v", err)
	}
	if len(result[0].Topics) != 0 {
		t.Fatalf("out-of-vocabulary output accepted: %v", result[0].Topics)
	}

	links, err := fx.classifications.GetByQuestionID(nil, result[0].ID)
	if err != nil {
		t.Fatalf("links: %v", err)
	}
	if len(links) != 0 {
		t.Fatalf("unclassified question has links: %+v", links)
	}
}

func TestClassifyModelErrorIsNonFatal(t *testing.T) {
	fx := newClassifyFixture(t)
	fx.ai.jsonErr = fmt.Errorf("upstream down")

	result, err := fx.svc.ClassifyUpload(context.Background(), "upload.png", testSubject)
	if err != nil {
		t.Fatalf("ClassifyUpload: %v", err)
	}
	if len(result[0].Topics) != 0 {
		t.Fatalf("expected empty topics on model failure, got %v", result[0].Topics)
	}
}

func TestSubmitCorrections(t *testing.T) {
	fx := newClassifyFixture(t)

	first, err := fx.svc.ClassifyUpload(context.Background(), "upload.png", testSubject)
	if err != nil {
		t.Fatalf("seed upload: %v", err)
	}
	qid := first[0].ID

	updated, added, err := fx.svc.SubmitCorrections(context.Background(), testSubject, []Correction{
		{ID: qid, Topics: []string{testVocab[1].Name}},
		{ID: "654321", Text: "Evaluate the integral of cos(x)", Topics: []string{testVocab[1].Name}},
	})
	if err != nil {
		t.Fatalf("SubmitCorrections: %v", err)
	}
	if updated != 1 || added != 1 {
		t.Fatalf("counts = (%d, %d), want (1, 1)", updated, added)
	}

	// The corrected question's links are fully replaced.
	links, err := fx.classifications.GetByQuestionID(nil, qid)
	if err != nil {
		t.Fatalf("links: %v", err)
	}
	if len(links) != 1 || links[0].TopicID != "MA-C4" {
		t.Fatalf("links not replaced: %+v", links)
	}

	// The new entry is findable in the index.
	idx, err := fx.registry.ForSubject(context.Background(), testSubject)
	if err != nil {
		t.Fatalf("ForSubject: %v", err)
	}
	if hit := idx.FindByExactText("Evaluate the integral of cos(x)"); hit == nil || hit.QuestionID != "654321" {
		t.Fatalf("added correction not indexed")
	}
}

func TestSubmitCorrectionsRejectsUnknownSubject(t *testing.T) {
	fx := newClassifyFixture(t)

	_, _, err := fx.svc.SubmitCorrections(context.Background(), "Atlantis Studies", []Correction{
		{ID: "111111", Text: "Describe the lost city", Topics: []string{"Invented"}},
	})
	if err == nil {
		t.Fatalf("expected error for unknown subject")
	}
	status, code := apierr.StatusOf(err)
	if status != http.StatusBadRequest || code != "unknown_subject" {
		t.Fatalf("got status=%d code=%q, want 400 unknown_subject", status, code)
	}

	// Nothing was persisted or embedded for the rejected request.
	exists, err := fx.questions.ExistsByID(nil, "111111")
	if err != nil {
		t.Fatalf("ExistsByID: %v", err)
	}
	if exists {
		t.Fatalf("rejected correction persisted a question")
	}
	if fx.ai.embedCalls != 0 {
		t.Fatalf("rejected correction called the embedder %d times", fx.ai.embedCalls)
	}
}

func TestTallyTopics(t *testing.T) {
	matches := []simindex.Match{
		{Entry: simindex.Entry{Topics: []string{"A", "B"}}},
		{Entry: simindex.Entry{Topics: []string{"A"}}},
		{Entry: simindex.Entry{Topics: []string{"A", ""}}},
	}
	tally := tallyTopics(matches)
	if len(tally) != 2 {
		t.Fatalf("got %d tally entries, want 2", len(tally))
	}
	if tally[0].Name != "A" || tally[0].Count != 3 {
		t.Fatalf("top tally wrong: %+v", tally[0])
	}
	if got := formatTally(tally); got != "A: 3, B: 1" {
		t.Fatalf("formatTally = %q", got)
	}
}
