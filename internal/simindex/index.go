// Package simindex keeps one in-process similarity index per subject.
// Each index pairs question embeddings with the payload needed to answer
// retrieval queries, and persists itself as a JSON snapshot on disk so a
// restart can skip re-embedding the whole corpus.
package simindex

import "context"

// Entry is the payload stored alongside each embedded question.
type Entry struct {
	QuestionID string   `json:"question_id"`
	Text       string   `json:"text"`
	Topics     []string `json:"topics"`
	Base64     string   `json:"base64,omitempty"`
}

// Match is one nearest-neighbor hit. Score is cosine similarity in [-1, 1].
type Match struct {
	Entry Entry
	Score float32
}

// Index is a per-subject similarity index.
type Index interface {
	// Upsert adds or replaces entries together with their embeddings and
	// writes the snapshot. len(entries) must equal len(embeds).
	Upsert(ctx context.Context, entries []Entry, embeds [][]float32) error

	// Add is Upsert without the snapshot write. Callers batch mutations
	// and call Save once.
	Add(ctx context.Context, entries []Entry, embeds [][]float32) error

	// Update rewrites the stored payload of an existing entry without
	// touching its embedding. Returns false when the ID is unknown.
	// Callers batch updates and call Save once.
	Update(ctx context.Context, entry Entry) (bool, error)

	// FindByExactText returns the entry whose trimmed text equals the
	// trimmed query, or nil.
	FindByExactText(text string) *Entry

	// QueryNearest returns up to k entries ordered by descending cosine
	// similarity to vec.
	QueryNearest(vec []float32, k int) []Match

	Get(questionID string) *Entry
	Len() int
	IDs() []string

	// Save writes the snapshot to disk.
	Save() error
}
