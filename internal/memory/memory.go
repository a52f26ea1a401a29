package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"go.uber.org/zap"

	"github.com/dyike/cortexdesk/consts"
	"github.com/dyike/cortexdesk/models"
)

// Match is one retrieved (situation, lesson) pair.
type Match struct {
	Situation      string
	Recommendation string
	Score          float64
}

// Store is an append-only, similarity-searchable list of lessons.
type Store interface {
	Name() string
	Add(ctx context.Context, situation, lesson string) error
	Query(ctx context.Context, situation string, k int) ([]Match, error)
}

// Persister saves memory entries across runs.
type Persister interface {
	SaveMemory(ctx context.Context, rec models.MemoryRecord) error
	LoadMemories(ctx context.Context, role string) ([]models.MemoryRecord, error)
	// UpdateEmbedding replaces the vector of a loaded record.
	UpdateEmbedding(ctx context.Context, id int64, vector []float64, embedder string) error
}

type entry struct {
	situation string
	lesson    string
	vector    []float64
}

type FinancialSituationMemory struct {
	name       string
	embedder   embedding.Embedder
	embedderID string
	persister  Persister

	mu      sync.RWMutex
	entries []entry
}

type Option func(*FinancialSituationMemory)

// WithEmbedder replaces the local hashed embedder. id identifies the vector
// space so persisted vectors from another embedder get recomputed.
func WithEmbedder(emb embedding.Embedder, id string) Option {
	return func(m *FinancialSituationMemory) {
		if emb != nil {
			m.embedder = emb
			m.embedderID = id
		}
	}
}

func WithPersister(p Persister) Option {
	return func(m *FinancialSituationMemory) {
		m.persister = p
	}
}

// New creates a memory and loads any persisted entries for name.
func New(ctx context.Context, name string, opts ...Option) (*FinancialSituationMemory, error) {
	m := &FinancialSituationMemory{
		name:       name,
		embedder:   HashEmbedder{},
		embedderID: HashEmbedderID,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.persister == nil {
		return m, nil
	}

	records, err := m.persister.LoadMemories(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	var stale []int
	for i, rec := range records {
		m.entries = append(m.entries, entry{situation: rec.Situation, lesson: rec.Lesson, vector: rec.Embedding})
		if rec.Embedder != m.embedderID || len(rec.Embedding) == 0 {
			stale = append(stale, i)
		}
	}
	if len(stale) > 0 {
		texts := make([]string, len(stale))
		for i, idx := range stale {
			texts[i] = m.entries[idx].situation
		}
		vecs, err := m.embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("re-embed %s: %w", name, err)
		}
		for i, idx := range stale {
			m.entries[idx].vector = vecs[i]
			// the vectors are usable either way, a failed save only costs a
			// re-embed on the next start
			if err := m.persister.UpdateEmbedding(ctx, records[idx].ID, vecs[i], m.embedderID); err != nil {
				zap.L().Warn("save re-embedded memory", zap.String("memory", name), zap.Int64("id", records[idx].ID), zap.Error(err))
			}
		}
		zap.L().Debug("re-embedded persisted memories", zap.String("memory", name), zap.Int("count", len(stale)))
	}
	return m, nil
}

func (m *FinancialSituationMemory) Name() string { return m.name }

func (m *FinancialSituationMemory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *FinancialSituationMemory) embed(ctx context.Context, texts []string) ([][]float64, error) {
	vecs, err := m.embedder.EmbedStrings(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(texts))
	}
	return vecs, nil
}

func (m *FinancialSituationMemory) Add(ctx context.Context, situation, lesson string) error {
	vecs, err := m.embed(ctx, []string{situation})
	if err != nil {
		return fmt.Errorf("embed situation: %w", err)
	}

	if m.persister != nil {
		rec := models.MemoryRecord{
			Role:      m.name,
			Situation: situation,
			Lesson:    lesson,
			Embedding: vecs[0],
			Embedder:  m.embedderID,
			CreatedAt: time.Now(),
		}
		if err := m.persister.SaveMemory(ctx, rec); err != nil {
			return fmt.Errorf("persist %s: %w", m.name, err)
		}
	}

	m.mu.Lock()
	m.entries = append(m.entries, entry{situation: situation, lesson: lesson, vector: vecs[0]})
	m.mu.Unlock()
	return nil
}

// Query returns up to k entries ranked by cosine similarity to situation.
func (m *FinancialSituationMemory) Query(ctx context.Context, situation string, k int) ([]Match, error) {
	m.mu.RLock()
	entries := append([]entry(nil), m.entries...)
	m.mu.RUnlock()
	if len(entries) == 0 || k <= 0 {
		return nil, nil
	}

	vecs, err := m.embed(ctx, []string{situation})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches := make([]Match, len(entries))
	for i, e := range entries {
		matches[i] = Match{
			Situation:      e.situation,
			Recommendation: e.lesson,
			Score:          cosine(vecs[0], e.vector),
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}

// Lessons renders matches for a prompt. No matches render as "".
func Lessons(matches []Match) string {
	var sb strings.Builder
	for _, m := range matches {
		sb.WriteString(m.Recommendation)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// Recall queries store for the default number of lessons and renders them.
// A nil store recalls nothing.
func Recall(ctx context.Context, store Store, situation string) (string, error) {
	if store == nil {
		return "", nil
	}
	matches, err := store.Query(ctx, situation, consts.MemoryMatches)
	if err != nil {
		return "", fmt.Errorf("query %s: %w", store.Name(), err)
	}
	return Lessons(matches), nil
}

// Set holds the five role memories.
type Set struct {
	stores map[string]Store
}

// NewSet opens one FinancialSituationMemory per role.
func NewSet(ctx context.Context, opts ...Option) (*Set, error) {
	s := &Set{stores: make(map[string]Store, len(consts.AllMemories))}
	for _, name := range consts.AllMemories {
		m, err := New(ctx, name, opts...)
		if err != nil {
			return nil, err
		}
		s.stores[name] = m
	}
	return s, nil
}

// NewSetFrom wraps existing stores, keyed by Store.Name.
func NewSetFrom(stores ...Store) *Set {
	s := &Set{stores: make(map[string]Store, len(stores))}
	for _, st := range stores {
		s.stores[st.Name()] = st
	}
	return s
}

// Get returns the named store or nil.
func (s *Set) Get(name string) Store {
	if s == nil {
		return nil
	}
	return s.stores[name]
}
