package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/cortexdesk/consts"
	"github.com/dyike/cortexdesk/models"
)

type memPersister struct {
	records []models.MemoryRecord
}

func (p *memPersister) SaveMemory(_ context.Context, rec models.MemoryRecord) error {
	rec.ID = int64(len(p.records) + 1)
	p.records = append(p.records, rec)
	return nil
}

func (p *memPersister) UpdateEmbedding(_ context.Context, id int64, vector []float64, embedder string) error {
	for i := range p.records {
		if p.records[i].ID == id {
			p.records[i].Embedding = vector
			p.records[i].Embedder = embedder
			return nil
		}
	}
	return errors.New("no such record")
}

func (p *memPersister) LoadMemories(_ context.Context, role string) ([]models.MemoryRecord, error) {
	var out []models.MemoryRecord
	for _, r := range p.records {
		if r.Role == role {
			out = append(out, r)
		}
	}
	return out, nil
}

type countingEmbedder struct {
	calls int
	err   error
}

func (c *countingEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return HashEmbedder{}.EmbedStrings(ctx, texts)
}

func TestQueryRanksBySimilarity(t *testing.T) {
	ctx := context.Background()
	m, err := New(ctx, consts.Memory_Bull)
	require.NoError(t, err)

	require.NoError(t, m.Add(ctx, "High inflation rate with rising interest rates and declining consumer spending",
		"Consider defensive sectors like consumer staples and utilities."))
	require.NoError(t, m.Add(ctx, "Tech sector showing high volatility with increasing institutional selling pressure",
		"Reduce exposure to high-growth tech stocks."))
	require.NoError(t, m.Add(ctx, "Strong dollar affecting emerging markets with increasing forex volatility",
		"Hedge currency exposure in international positions."))

	matches, err := m.Query(ctx, "Market showing increased volatility in tech sector, with institutional investors reducing positions", 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "Reduce exposure to high-growth tech stocks.", matches[0].Recommendation)
	assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)
}

func TestQueryEmptyAndOversizedK(t *testing.T) {
	ctx := context.Background()
	m, err := New(ctx, consts.Memory_Trader)
	require.NoError(t, err)

	matches, err := m.Query(ctx, "anything", 2)
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.Equal(t, "", Lessons(matches))

	require.NoError(t, m.Add(ctx, "only situation", "only lesson"))
	matches, err = m.Query(ctx, "something unrelated", 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "only lesson\n\n", Lessons(matches))
}

func TestPersistedEntriesReload(t *testing.T) {
	ctx := context.Background()
	p := &memPersister{}

	m, err := New(ctx, consts.Memory_Bear, WithPersister(p))
	require.NoError(t, err)
	require.NoError(t, m.Add(ctx, "earnings miss", "do not average down"))
	require.Len(t, p.records, 1)
	assert.Equal(t, HashEmbedderID, p.records[0].Embedder)

	emb := &countingEmbedder{}
	reopened, err := New(ctx, consts.Memory_Bear, WithPersister(p), WithEmbedder(emb, HashEmbedderID))
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Len())
	assert.Zero(t, emb.calls, "vectors from the same embedder are reused")

	other := &countingEmbedder{}
	_, err = New(ctx, consts.Memory_Bear, WithPersister(p), WithEmbedder(other, "remote:text-embedding-3-small"))
	require.NoError(t, err)
	assert.Equal(t, 1, other.calls, "vectors from a different embedder are recomputed")
	assert.Equal(t, "remote:text-embedding-3-small", p.records[0].Embedder, "recomputed vectors are saved")

	again := &countingEmbedder{}
	_, err = New(ctx, consts.Memory_Bear, WithPersister(p), WithEmbedder(again, "remote:text-embedding-3-small"))
	require.NoError(t, err)
	assert.Zero(t, again.calls, "saved vectors are not recomputed on the next start")

	unrelated, err := New(ctx, consts.Memory_Bull, WithPersister(p))
	require.NoError(t, err)
	assert.Zero(t, unrelated.Len())
}

func TestAddPropagatesEmbedderError(t *testing.T) {
	ctx := context.Background()
	m, err := New(ctx, consts.Memory_RiskManager, WithEmbedder(&countingEmbedder{err: errors.New("boom")}, "x"))
	require.NoError(t, err)
	assert.Error(t, m.Add(ctx, "s", "l"))
	assert.Zero(t, m.Len())
}

func TestRecallAndSet(t *testing.T) {
	ctx := context.Background()
	set, err := NewSet(ctx)
	require.NoError(t, err)
	for _, name := range consts.AllMemories {
		require.NotNil(t, set.Get(name), name)
	}

	lessons, err := Recall(ctx, set.Get(consts.Memory_InvestJudge), "situation")
	require.NoError(t, err)
	assert.Equal(t, "", lessons)

	lessons, err = Recall(ctx, nil, "situation")
	require.NoError(t, err)
	assert.Equal(t, "", lessons)

	var nilSet *Set
	assert.Nil(t, nilSet.Get(consts.Memory_Bull))
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float64{1, 0}, []float64{2, 0}), 1e-9)
	assert.Zero(t, cosine([]float64{1}, []float64{1, 2}))
	assert.Zero(t, cosine([]float64{0, 0}, []float64{1, 2}))
}
