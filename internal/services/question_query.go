package services

import (
	"context"

	"github.com/hschub/hschub-backend/internal/platform/logger"
	"github.com/hschub/hschub-backend/internal/repos"
)

// StoredQuestion is one query result with its topic names resolved.
type StoredQuestion struct {
	ID         string   `json:"id"`
	QuestionID string   `json:"QuestionId"`
	Base64     string   `json:"base64"`
	Text       string   `json:"text"`
	Topics     []string `json:"topics"`
}

type QuestionQueryService interface {
	GetQuestions(ctx context.Context, topicNames []string, count int) ([]StoredQuestion, error)
}

type questionQueryService struct {
	log             *logger.Logger
	questions       repos.QuestionRepo
	topics          repos.TopicRepo
	classifications repos.ClassificationRepo
}

func NewQuestionQueryService(
	questions repos.QuestionRepo,
	topics repos.TopicRepo,
	classifications repos.ClassificationRepo,
	log *logger.Logger,
) QuestionQueryService {
	return &questionQueryService{
		log:             log.With("service", "QuestionQueryService"),
		questions:       questions,
		topics:          topics,
		classifications: classifications,
	}
}

func (s *questionQueryService) GetQuestions(ctx context.Context, topicNames []string, count int) ([]StoredQuestion, error) {
	if count <= 0 {
		count = 10
	}

	requested, err := s.topics.GetByNames(nil, topicNames)
	if err != nil {
		return nil, err
	}
	topicIDs := make([]string, 0, len(requested))
	for _, t := range requested {
		topicIDs = append(topicIDs, t.TopicID)
	}

	links, err := s.classifications.GetByTopicIDs(nil, topicIDs)
	if err != nil {
		return nil, err
	}

	// Question IDs in first-seen order, each with its linked topic set.
	topicsByQuestion := make(map[string][]string)
	order := make([]string, 0, len(links))
	for _, l := range links {
		if _, seen := topicsByQuestion[l.QuestionID]; !seen {
			order = append(order, l.QuestionID)
		}
		topicsByQuestion[l.QuestionID] = append(topicsByQuestion[l.QuestionID], l.TopicID)
	}
	if len(order) > count {
		order = order[:count]
	}

	qs, err := s.questions.GetByIDs(nil, order)
	if err != nil {
		return nil, err
	}

	nameByID, err := s.topicNameLookup(order, topicsByQuestion)
	if err != nil {
		return nil, err
	}

	out := make([]StoredQuestion, 0, len(qs))
	for _, q := range qs {
		names := make([]string, 0, len(topicsByQuestion[q.QuestionID]))
		for _, tid := range topicsByQuestion[q.QuestionID] {
			if name, ok := nameByID[tid]; ok {
				names = append(names, name)
			} else {
				names = append(names, tid)
			}
		}
		out = append(out, StoredQuestion{
			ID:         q.QuestionID,
			QuestionID: q.QuestionID,
			Base64:     q.Base64,
			Text:       q.Text,
			Topics:     names,
		})
	}
	return out, nil
}

func (s *questionQueryService) topicNameLookup(questionIDs []string, topicsByQuestion map[string][]string) (map[string]string, error) {
	idSet := make(map[string]struct{})
	for _, qid := range questionIDs {
		for _, tid := range topicsByQuestion[qid] {
			idSet[tid] = struct{}{}
		}
	}
	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	found, err := s.topics.GetByIDs(nil, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(found))
	for _, t := range found {
		out[t.TopicID] = t.Name
	}
	return out, nil
}
