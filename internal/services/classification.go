package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hschub/hschub-backend/internal/platform/apierr"
	"github.com/hschub/hschub-backend/internal/platform/logger"
	"github.com/hschub/hschub-backend/internal/platform/openai"
	"github.com/hschub/hschub-backend/internal/repos"
	"github.com/hschub/hschub-backend/internal/simindex"
	"github.com/hschub/hschub-backend/internal/types"
)

// retrievalK oversamples neighbors so the topic tally covers the whole
// indexed corpus for small subjects.
const retrievalK = 150

// ClassifiedQuestion is the API shape of one processed upload.
type ClassifiedQuestion struct {
	ID     string   `json:"id"`
	Base64 string   `json:"base64"`
	Text   string   `json:"text"`
	Topics []string `json:"topics"`
}

// Correction is one reviewer edit: topics always replace; text and base64
// replace only when provided.
type Correction struct {
	ID     string   `json:"id"`
	Text   string   `json:"text,omitempty"`
	Base64 string   `json:"base64,omitempty"`
	Topics []string `json:"topics"`
}

type ClassificationService interface {
	ClassifyUpload(ctx context.Context, filePath, subject string) ([]ClassifiedQuestion, error)
	SubmitCorrections(ctx context.Context, subject string, corrections []Correction) (updated, added int, err error)
}

type classificationService struct {
	log             *logger.Logger
	ai              openai.Client
	extraction      ExtractionService
	registry        *simindex.Registry
	questions       repos.QuestionRepo
	topics          repos.TopicRepo
	classifications repos.ClassificationRepo
}

func NewClassificationService(
	ai openai.Client,
	extraction ExtractionService,
	registry *simindex.Registry,
	questions repos.QuestionRepo,
	topics repos.TopicRepo,
	classifications repos.ClassificationRepo,
	log *logger.Logger,
) ClassificationService {
	return &classificationService{
		log:             log.With("service", "ClassificationService"),
		ai:              ai,
		extraction:      extraction,
		registry:        registry,
		questions:       questions,
		topics:          topics,
		classifications: classifications,
	}
}

func (s *classificationService) ClassifyUpload(ctx context.Context, filePath, subject string) ([]ClassifiedQuestion, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, apierr.BadRequest("missing_subject", fmt.Errorf("missing 'subject' field in form data"))
	}

	vocab, err := s.topics.GetBySubject(nil, subject)
	if err != nil {
		return nil, err
	}
	if len(vocab) == 0 {
		return nil, apierr.BadRequest("unknown_subject", fmt.Errorf("no topics found for subject %q", subject))
	}

	idx, err := s.registry.ForSubject(ctx, subject)
	if err != nil {
		return nil, err
	}

	extracted, err := s.extraction.ExtractFromFile(ctx, filePath)
	if err != nil {
		return nil, err
	}

	// Exact duplicate: reuse the stored identity, topics come from the
	// store rather than the index snapshot, and the classifier never runs.
	if hit := idx.FindByExactText(extracted.Text); hit != nil {
		names, err := s.topicNamesFromStore(hit.QuestionID)
		if err != nil {
			return nil, err
		}
		s.log.Info("Reusing existing question for duplicate upload",
			"question_id", hit.QuestionID, "subject", subject)
		return []ClassifiedQuestion{{
			ID:     hit.QuestionID,
			Base64: extracted.Base64PNG,
			Text:   extracted.Text,
			Topics: names,
		}}, nil
	}

	qid, err := s.freshQuestionID(idx)
	if err != nil {
		return nil, err
	}

	vecs, err := s.ai.Embed(ctx, []string{extracted.Text})
	if err != nil {
		return nil, err
	}
	vec := vecs[0]

	neighbors := idx.QueryNearest(vec, retrievalK)
	tally := tallyTopics(neighbors)

	topicNames, err := s.classify(ctx, subject, extracted.Base64PNG, vocab, tally)
	if err != nil {
		return nil, err
	}

	if err := s.persist(qid, extracted, subject, topicNames); err != nil {
		return nil, err
	}

	entry := simindex.Entry{
		QuestionID: qid,
		Text:       extracted.Text,
		Topics:     topicNames,
		Base64:     extracted.Base64PNG,
	}
	if err := idx.Upsert(ctx, []simindex.Entry{entry}, [][]float32{vec}); err != nil {
		return nil, err
	}

	return []ClassifiedQuestion{{
		ID:     qid,
		Base64: extracted.Base64PNG,
		Text:   extracted.Text,
		Topics: topicNames,
	}}, nil
}

func (s *classificationService) freshQuestionID(idx simindex.Index) (string, error) {
	existing := make(map[string]struct{})
	for _, id := range idx.IDs() {
		existing[id] = struct{}{}
	}
	qid, err := GenerateQuestionID(existing)
	if err != nil {
		return "", apierr.Internal("id_exhausted", err)
	}
	return qid, nil
}

func (s *classificationService) topicNamesFromStore(questionID string) ([]string, error) {
	links, err := s.classifications.GetByQuestionID(nil, questionID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.TopicID)
	}
	found, err := s.topics.GetByIDs(nil, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]string, len(found))
	for _, t := range found {
		byID[t.TopicID] = t.Name
	}
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := byID[id]; ok {
			names = append(names, name)
		} else {
			names = append(names, id)
		}
	}
	return names, nil
}

type topicCount struct {
	Name  string
	Count int
}

// tallyTopics counts topic occurrences among retrieved neighbors, most
// common first.
func tallyTopics(neighbors []simindex.Match) []topicCount {
	counts := make(map[string]int)
	for _, m := range neighbors {
		for _, t := range m.Entry.Topics {
			t = strings.TrimSpace(t)
			if t != "" {
				counts[t]++
			}
		}
	}
	out := make([]topicCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, topicCount{Name: name, Count: n})
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Count != out[b].Count {
			return out[a].Count > out[b].Count
		}
		return out[a].Name < out[b].Name
	})
	return out
}

func formatTally(tally []topicCount) string {
	parts := make([]string, 0, len(tally))
	for _, tc := range tally {
		parts = append(parts, fmt.Sprintf("%s: %d", tc.Name, tc.Count))
	}
	return strings.Join(parts, ", ")
}

func classificationSchema(vocabNames []string) map[string]any {
	enum := make([]any, 0, len(vocabNames))
	for _, n := range vocabNames {
		enum = append(enum, n)
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"topics": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "string",
					"enum": enum,
				},
				"minItems": 1,
			},
		},
		"required":             []any{"topics"},
		"additionalProperties": false,
	}
}

// classify asks the model for topic labels. Any malformed or
// out-of-vocabulary response degrades to an empty topic list.
func (s *classificationService) classify(ctx context.Context, subject, base64PNG string, vocab []types.Topic, tally []topicCount) ([]string, error) {
	names := make([]string, 0, len(vocab))
	allowed := make(map[string]struct{}, len(vocab))
	var bullets strings.Builder
	for _, t := range vocab {
		names = append(names, t.Name)
		allowed[t.Name] = struct{}{}
		bullets.WriteString("* ")
		bullets.WriteString(t.Name)
		bullets.WriteString("\n")
	}

	system := fmt.Sprintf("You are an expert HSC %s teacher.", subject)
	user := fmt.Sprintf(`Topic rankings among similar past questions:
%s

Classify this question using your reasoning and the topic rankings.
- You must pick from the allowed topics only (no new ones).
- Base your judgment on the question meaning first, then use the counts to break ties.

Allowed topics:
%s`, formatTally(tally), bullets.String())

	result, err := s.ai.GenerateJSON(ctx, system, user, "topic_choice", classificationSchema(names), []openai.ImageInput{
		{ImageURL: "data:image/png;base64," + base64PNG},
	})
	if err != nil {
		s.log.Warn("Classifier call failed; keeping question unclassified", "subject", subject, "error", err.Error())
		return []string{}, nil
	}

	raw, ok := result["topics"].([]any)
	if !ok {
		s.log.Warn("Classifier response missing topics array", "subject", subject)
		return []string{}, nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		name, ok := v.(string)
		if !ok {
			s.log.Warn("Classifier response contained non-string topic", "subject", subject)
			return []string{}, nil
		}
		if _, known := allowed[name]; !known {
			s.log.Warn("Classifier invented a topic outside the vocabulary", "subject", subject, "topic", name)
			return []string{}, nil
		}
		out = append(out, name)
	}
	return out, nil
}

func (s *classificationService) persist(qid string, extracted *ExtractedQuestion, subject string, topicNames []string) error {
	q := &types.Question{
		QuestionID: qid,
		Text:       extracted.Text,
		Base64:     extracted.Base64PNG,
		Subject:    subject,
	}
	if err := s.questions.UpsertIgnoreExisting(nil, q); err != nil {
		return err
	}
	return s.classifications.ReplaceForQuestion(nil, qid, topicCodes(topicNames))
}

func topicCodes(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if code := types.TopicCode(n); code != "" {
			out = append(out, code)
		}
	}
	return out
}

func (s *classificationService) SubmitCorrections(ctx context.Context, subject string, corrections []Correction) (int, int, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return 0, 0, apierr.BadRequest("missing_subject", fmt.Errorf("subject is required"))
	}

	// The registry creates an index for any subject string, so the
	// vocabulary is the authority on which subjects exist.
	vocab, err := s.topics.GetBySubject(nil, subject)
	if err != nil {
		return 0, 0, err
	}
	if len(vocab) == 0 {
		return 0, 0, apierr.BadRequest("unknown_subject", fmt.Errorf("no topics found for subject %q", subject))
	}

	idx, err := s.registry.ForSubject(ctx, subject)
	if err != nil {
		return 0, 0, err
	}

	updated, added := 0, 0
	for _, c := range corrections {
		existing := idx.Get(c.ID)
		switch {
		case existing != nil:
			entry := *existing
			entry.Topics = c.Topics
			if c.Text != "" {
				entry.Text = c.Text
			}
			if c.Base64 != "" {
				entry.Base64 = c.Base64
			}
			if _, err := idx.Update(ctx, entry); err != nil {
				return updated, added, err
			}
			updated++
		case c.Text != "":
			vecs, err := s.ai.Embed(ctx, []string{c.Text})
			if err != nil {
				return updated, added, err
			}
			entry := simindex.Entry{
				QuestionID: c.ID,
				Text:       c.Text,
				Topics:     c.Topics,
				Base64:     c.Base64,
			}
			if err := idx.Add(ctx, []simindex.Entry{entry}, vecs); err != nil {
				return updated, added, err
			}
			added++
		}

		q := &types.Question{
			QuestionID: c.ID,
			Text:       c.Text,
			Base64:     c.Base64,
			Subject:    subject,
		}
		if err := s.questions.UpsertIgnoreExisting(nil, q); err != nil {
			return updated, added, err
		}
		if err := s.classifications.ReplaceForQuestion(nil, c.ID, topicCodes(c.Topics)); err != nil {
			return updated, added, err
		}
	}

	if err := idx.Save(); err != nil {
		return updated, added, err
	}
	return updated, added, nil
}
