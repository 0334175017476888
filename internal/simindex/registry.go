package simindex

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hschub/hschub-backend/internal/platform/logger"
	"github.com/hschub/hschub-backend/internal/repos"
	"github.com/hschub/hschub-backend/internal/types"
)

// Embedder turns texts into embedding vectors. Satisfied by the OpenAI
// client.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

const (
	rebuildBatchSize   = 64
	rebuildConcurrency = 4
)

// Registry owns one Index per subject, created lazily and kept for the
// process lifetime.
type Registry struct {
	mu      sync.Mutex
	root    string
	log     *logger.Logger
	indexes map[string]Index

	questions       repos.QuestionRepo
	topics          repos.TopicRepo
	classifications repos.ClassificationRepo
	embedder        Embedder
}

func NewRegistry(root string, embedder Embedder, questions repos.QuestionRepo, topics repos.TopicRepo, classifications repos.ClassificationRepo, log *logger.Logger) *Registry {
	return &Registry{
		root:            root,
		log:             log.With("service", "SimIndexRegistry"),
		indexes:         make(map[string]Index),
		questions:       questions,
		topics:          topics,
		classifications: classifications,
		embedder:        embedder,
	}
}

// LoadAll warms the registry for every known subject at process start.
func (r *Registry) LoadAll(ctx context.Context, subjects []string) error {
	for _, subject := range subjects {
		if _, err := r.ForSubject(ctx, subject); err != nil {
			return fmt.Errorf("failed to load index for subject %q: %w", subject, err)
		}
	}
	return nil
}

// ForSubject returns the subject's index, loading its snapshot or
// rebuilding it from the database when no usable snapshot exists.
func (r *Registry) ForSubject(ctx context.Context, subject string) (Index, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if idx, ok := r.indexes[subject]; ok {
		return idx, nil
	}

	idx, err := NewLocal(r.root, subject, r.log)
	if err != nil {
		return nil, err
	}

	if idx.Len() == 0 {
		if err := r.rebuild(ctx, subject, idx); err != nil {
			return nil, err
		}
	}

	r.indexes[subject] = idx
	return idx, nil
}

// rebuild re-embeds every stored question of the subject and fills idx.
func (r *Registry) rebuild(ctx context.Context, subject string, idx Index) error {
	qs, err := r.questions.GetBySubject(nil, subject)
	if err != nil {
		return fmt.Errorf("failed to load questions for rebuild: %w", err)
	}
	if len(qs) == 0 {
		return nil
	}

	topicsByQuestion, err := r.topicsByQuestion(qs)
	if err != nil {
		return err
	}

	r.log.Info("Rebuilding index from store", "subject", subject, "questions", len(qs))

	entries := make([]Entry, len(qs))
	embeds := make([][]float32, len(qs))
	for i, q := range qs {
		entries[i] = Entry{
			QuestionID: q.QuestionID,
			Text:       q.Text,
			Topics:     topicsByQuestion[q.QuestionID],
			Base64:     q.Base64,
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rebuildConcurrency)

	for start := 0; start < len(qs); start += rebuildBatchSize {
		start := start
		end := start + rebuildBatchSize
		if end > len(qs) {
			end = len(qs)
		}
		g.Go(func() error {
			texts := make([]string, 0, end-start)
			for i := start; i < end; i++ {
				texts = append(texts, entries[i].Text)
			}
			vecs, err := r.embedder.Embed(gctx, texts)
			if err != nil {
				return fmt.Errorf("failed to embed rebuild batch [%d:%d]: %w", start, end, err)
			}
			for i := range vecs {
				embeds[start+i] = vecs[i]
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return idx.Upsert(ctx, entries, embeds)
}

// topicsByQuestion resolves each question's linked topic IDs to topic
// names, falling back to the raw ID when the topic row is gone.
func (r *Registry) topicsByQuestion(qs []types.Question) (map[string][]string, error) {
	ids := make([]string, len(qs))
	for i, q := range qs {
		ids[i] = q.QuestionID
	}
	links, err := r.classifications.GetByQuestionIDs(nil, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load classifications for rebuild: %w", err)
	}

	topicIDs := make([]string, 0, len(links))
	seen := make(map[string]struct{}, len(links))
	for _, l := range links {
		if _, ok := seen[l.TopicID]; !ok {
			seen[l.TopicID] = struct{}{}
			topicIDs = append(topicIDs, l.TopicID)
		}
	}
	nameByID := make(map[string]string, len(topicIDs))
	if len(topicIDs) > 0 {
		found, err := r.topics.GetByIDs(nil, topicIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to load topics for rebuild: %w", err)
		}
		for _, t := range found {
			nameByID[t.TopicID] = t.Name
		}
	}

	out := make(map[string][]string, len(qs))
	for _, l := range links {
		name, ok := nameByID[l.TopicID]
		if !ok {
			name = l.TopicID
		}
		out[l.QuestionID] = append(out[l.QuestionID], name)
	}
	return out, nil
}
