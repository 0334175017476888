package simindex

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hschub/hschub-backend/internal/platform/logger"
)

const snapshotFile = "index.json"

type record struct {
	Entry  Entry     `json:"entry"`
	Vector []float32 `json:"vector"`
}

type snapshot struct {
	Subject string   `json:"subject"`
	Records []record `json:"records"`
}

// localIndex is a mutex-guarded in-memory index with an on-disk JSON
// snapshot. Vectors are L2-normalized on insert so similarity is a dot
// product.
type localIndex struct {
	mu      sync.RWMutex
	subject string
	dir     string
	log     *logger.Logger

	byID  map[string]int
	items []record
}

// NewLocal opens the index for subject under root, loading a snapshot when
// one exists.
func NewLocal(root, subject string, log *logger.Logger) (Index, error) {
	dir := filepath.Join(root, subjectSlug(subject))
	idx := &localIndex{
		subject: subject,
		dir:     dir,
		log:     log.With("service", "SimIndex", "subject", subject),
		byID:    make(map[string]int),
	}
	if err := idx.load(); err != nil {
		return nil, err
	}
	return idx, nil
}

func subjectSlug(subject string) string {
	s := strings.ToLower(strings.TrimSpace(subject))
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, s)
	s = strings.Trim(s, "-")
	if s == "" {
		s = "subject"
	}
	return s
}

func (x *localIndex) load() error {
	path := filepath.Join(x.dir, snapshotFile)
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read index snapshot %s: %w", path, err)
	}

	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return fmt.Errorf("corrupt index snapshot %s: %w", path, err)
	}

	x.items = snap.Records
	x.byID = make(map[string]int, len(snap.Records))
	for i := range x.items {
		normalize(x.items[i].Vector)
		x.byID[x.items[i].Entry.QuestionID] = i
	}
	x.log.Info("Loaded index snapshot", "entries", len(x.items))
	return nil
}

func (x *localIndex) Save() error {
	x.mu.RLock()
	snap := snapshot{Subject: x.subject, Records: x.items}
	raw, err := json.Marshal(&snap)
	x.mu.RUnlock()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(x.dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(x.dir, snapshotFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (x *localIndex) Upsert(ctx context.Context, entries []Entry, embeds [][]float32) error {
	if err := x.Add(ctx, entries, embeds); err != nil {
		return err
	}
	return x.Save()
}

func (x *localIndex) Add(ctx context.Context, entries []Entry, embeds [][]float32) error {
	if len(entries) != len(embeds) {
		return fmt.Errorf("entries/embeddings length mismatch: %d != %d", len(entries), len(embeds))
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	x.mu.Lock()
	for i, e := range entries {
		vec := make([]float32, len(embeds[i]))
		copy(vec, embeds[i])
		normalize(vec)

		if pos, ok := x.byID[e.QuestionID]; ok {
			x.items[pos] = record{Entry: e, Vector: vec}
			continue
		}
		x.byID[e.QuestionID] = len(x.items)
		x.items = append(x.items, record{Entry: e, Vector: vec})
	}
	x.mu.Unlock()

	return nil
}

func (x *localIndex) Update(ctx context.Context, entry Entry) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	x.mu.Lock()
	pos, ok := x.byID[entry.QuestionID]
	if ok {
		x.items[pos].Entry = entry
	}
	x.mu.Unlock()

	return ok, nil
}

func (x *localIndex) FindByExactText(text string) *Entry {
	want := strings.TrimSpace(text)
	if want == "" {
		return nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()
	for i := range x.items {
		if strings.TrimSpace(x.items[i].Entry.Text) == want {
			e := x.items[i].Entry
			return &e
		}
	}
	return nil
}

func (x *localIndex) QueryNearest(vec []float32, k int) []Match {
	if k <= 0 || len(vec) == 0 {
		return nil
	}
	q := make([]float32, len(vec))
	copy(q, vec)
	normalize(q)

	x.mu.RLock()
	matches := make([]Match, 0, len(x.items))
	for i := range x.items {
		if len(x.items[i].Vector) != len(q) {
			continue
		}
		matches = append(matches, Match{
			Entry: x.items[i].Entry,
			Score: dot(x.items[i].Vector, q),
		})
	}
	x.mu.RUnlock()

	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].Score > matches[b].Score
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

func (x *localIndex) Get(questionID string) *Entry {
	x.mu.RLock()
	defer x.mu.RUnlock()
	pos, ok := x.byID[questionID]
	if !ok {
		return nil
	}
	e := x.items[pos].Entry
	return &e
}

func (x *localIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.items)
}

func (x *localIndex) IDs() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]string, 0, len(x.items))
	for i := range x.items {
		out = append(out, x.items[i].Entry.QuestionID)
	}
	return out
}

func normalize(v []float32) {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
