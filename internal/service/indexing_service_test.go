package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"codeassist-be/internal/config"
	"codeassist-be/internal/entity"
	"codeassist-be/internal/protocol"
	"codeassist-be/internal/websocket"
	"codeassist-be/pkg/ratelimit"
	"codeassist-be/pkg/vectorstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

// fakeEmbedder fails chunks whose text is "FAIL", embeds the rest.
type fakeEmbedder struct {
	dims int
}

func (f *fakeEmbedder) Name() string { return "fake" }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "FAIL" {
		return nil, errors.New("embedding backend rejected input")
	}
	return make([]float32, f.dims), nil
}

// memVectorRepo is shared between batch workers and the bus consumer,
// so every method holds the lock.
type memVectorRepo struct {
	mu      sync.Mutex
	records map[string][]*entity.VectorRecord
}

func newMemVectorRepo() *memVectorRepo {
	return &memVectorRepo{records: make(map[string][]*entity.VectorRecord)}
}

func (m *memVectorRepo) Upsert(ctx context.Context, records []*entity.VectorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		m.records[rec.Namespace] = append(m.records[rec.Namespace], rec)
	}
	return nil
}

func (m *memVectorRepo) SearchSimilar(ctx context.Context, namespace string, vector []float32, limit int, filter map[string]string) ([]*entity.ScoredVectorRecord, error) {
	return nil, nil
}

func (m *memVectorRepo) DeleteByFilter(ctx context.Context, namespace string, filter map[string]string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []*entity.VectorRecord
	var deleted int64
	for _, rec := range m.records[namespace] {
		matches := true
		for k, v := range filter {
			if rec.Metadata[k] != v {
				matches = false
				break
			}
		}
		if matches {
			deleted++
		} else {
			kept = append(kept, rec)
		}
	}
	m.records[namespace] = kept
	return deleted, nil
}

func (m *memVectorRepo) DeleteWherePartitionNot(ctx context.Context, namespace, keepPartition string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []*entity.VectorRecord
	var deleted int64
	for _, rec := range m.records[namespace] {
		if rec.Partition == keepPartition {
			kept = append(kept, rec)
		} else {
			deleted++
		}
	}
	m.records[namespace] = kept
	return deleted, nil
}

func (m *memVectorRepo) CountByNamespace(ctx context.Context, namespace string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.records[namespace])), nil
}

// partitionsIn reports the distinct partition tags currently stored
// under a namespace.
func (m *memVectorRepo) partitionsIn(namespace string) map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int)
	for _, rec := range m.records[namespace] {
		out[rec.Partition]++
	}
	return out
}

// recordsIn returns a snapshot of a namespace's records.
func (m *memVectorRepo) recordsIn(namespace string) []*entity.VectorRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*entity.VectorRecord(nil), m.records[namespace]...)
}

func newTestClient() *websocket.Client {
	hub := websocket.NewHub(nil, nopLogger{})
	session := websocket.NewSession("sess-1")
	session.BindSubject("user-1")
	return websocket.NewClient(hub, nil, session, 20*time.Second)
}

func drainEnvelopes(client *websocket.Client) []protocol.Envelope {
	var out []protocol.Envelope
	for {
		select {
		case data := <-client.Send:
			var env protocol.Envelope
			if err := json.Unmarshal(data, &env); err == nil {
				out = append(out, env)
			}
		default:
			return out
		}
	}
}

func newIndexingFixture(repo *memVectorRepo, dims int) IIndexingService {
	cfg := &config.IndexConfig{
		BatchMaxCount:  5,
		BatchMaxCost:   1 << 20,
		BatchWorkers:   2,
		UpsertMaxBytes: 1 << 20,
		UpsertMaxCount: 100,
		EmbedJobTopic:  "index.jobs",
	}
	store := vectorstore.NewStore(repo, nopLogger{}, dims, cfg.UpsertMaxBytes, cfg.UpsertMaxCount)
	limiter := ratelimit.NewSlidingWindowLimiter(10000, time.Second)
	return NewIndexingService(cfg, &fakeEmbedder{dims: dims}, limiter, store, nil, nil, nopLogger{})
}

func chunkN(id, text string) entity.EmbeddingChunk {
	return entity.EmbeddingChunk{
		Id:          id,
		WorkspaceId: "ws-1",
		FilePath:    "src/" + id + ".go",
		TextContent: text,
		TypeTag:     "function",
		LanguageTag: "go",
	}
}

func TestEmbedSingleStoresRecord(t *testing.T) {
	repo := newMemVectorRepo()
	svc := newIndexingFixture(repo, 4)
	client := newTestClient()

	err := svc.EmbedSingle(context.Background(), client, &protocol.EmbeddingRequestPayload{
		Chunk: chunkN("c1", "func main() {}"),
	})
	require.NoError(t, err)

	envs := drainEnvelopes(client)
	require.Len(t, envs, 1)
	require.Equal(t, protocol.KindEmbeddingResponse, envs[0].Type)

	var resp protocol.EmbeddingResponsePayload
	require.NoError(t, json.Unmarshal(envs[0].Payload, &resp))
	assert.Equal(t, "c1", resp.Id)
	assert.Empty(t, resp.Error)
	assert.Len(t, resp.Embedding, 4)

	stored := repo.recordsIn(vectorstore.NamespaceKey("user-1"))
	require.Len(t, stored, 1)
	assert.Equal(t, "ws-1", stored[0].Metadata[entity.MetaWorkspace])
}

func TestEmbedSingleBackendFailureIsTypedReply(t *testing.T) {
	repo := newMemVectorRepo()
	svc := newIndexingFixture(repo, 4)
	client := newTestClient()

	err := svc.EmbedSingle(context.Background(), client, &protocol.EmbeddingRequestPayload{
		Chunk: chunkN("c1", "FAIL"),
	})
	require.NoError(t, err)

	envs := drainEnvelopes(client)
	require.Len(t, envs, 1)

	var resp protocol.EmbeddingResponsePayload
	require.NoError(t, json.Unmarshal(envs[0].Payload, &resp))
	assert.NotEmpty(t, resp.Error)
	assert.Empty(t, resp.Embedding)
	assert.Empty(t, repo.records)
}

type failingUpsertRepo struct {
	*memVectorRepo
}

func (f *failingUpsertRepo) Upsert(ctx context.Context, records []*entity.VectorRecord) error {
	return errors.New("connection refused")
}

func TestEmbedBatchUpsertFailureKeepsAccountingConsistent(t *testing.T) {
	repo := &failingUpsertRepo{memVectorRepo: newMemVectorRepo()}
	cfg := &config.IndexConfig{
		BatchMaxCount:  5,
		BatchMaxCost:   1 << 20,
		BatchWorkers:   2,
		UpsertMaxBytes: 1 << 20,
		UpsertMaxCount: 100,
		EmbedJobTopic:  "index.jobs",
	}
	store := vectorstore.NewStore(repo, nopLogger{}, 4, cfg.UpsertMaxBytes, cfg.UpsertMaxCount)
	limiter := ratelimit.NewSlidingWindowLimiter(10000, time.Second)
	svc := NewIndexingService(cfg, &fakeEmbedder{dims: 4}, limiter, store, nil, nil, nopLogger{})
	client := newTestClient()

	chunks := make([]entity.EmbeddingChunk, 0, 5)
	for i := 0; i < 5; i++ {
		chunks = append(chunks, chunkN(string(rune('a'+i)), "some code"))
	}

	err := svc.EmbedBatch(context.Background(), client, &protocol.EmbeddingBatchRequestPayload{
		WorkspaceId: "ws-1",
		Chunks:      chunks,
	})
	require.NoError(t, err)

	var final *protocol.EmbeddingBatchResponsePayload
	for _, env := range drainEnvelopes(client) {
		if env.Type == protocol.KindEmbeddingBatchResponse {
			var r protocol.EmbeddingBatchResponsePayload
			require.NoError(t, json.Unmarshal(env.Payload, &r))
			final = &r
		}
	}

	require.NotNil(t, final)
	assert.Equal(t, 5, final.Total)
	assert.Equal(t, 0, final.Embeddings)
	require.Len(t, final.Errors, 5)
	assert.Equal(t, final.Total, final.Embeddings+len(final.Errors))
}

func TestEmbedBatchPartialSuccessArithmetic(t *testing.T) {
	repo := newMemVectorRepo()
	svc := newIndexingFixture(repo, 4)
	client := newTestClient()

	chunks := make([]entity.EmbeddingChunk, 0, 12)
	for i := 0; i < 12; i++ {
		text := "some code"
		if i == 3 || i == 8 {
			text = "FAIL"
		}
		chunks = append(chunks, chunkN(string(rune('a'+i)), text))
	}

	err := svc.EmbedBatch(context.Background(), client, &protocol.EmbeddingBatchRequestPayload{
		WorkspaceId: "ws-1",
		Chunks:      chunks,
	})
	require.NoError(t, err)

	envs := drainEnvelopes(client)

	var progress []protocol.EmbeddingProgressPayload
	var final *protocol.EmbeddingBatchResponsePayload
	for _, env := range envs {
		switch env.Type {
		case protocol.KindEmbeddingProgress:
			var p protocol.EmbeddingProgressPayload
			require.NoError(t, json.Unmarshal(env.Payload, &p))
			progress = append(progress, p)
		case protocol.KindEmbeddingBatchResponse:
			var r protocol.EmbeddingBatchResponsePayload
			require.NoError(t, json.Unmarshal(env.Payload, &r))
			final = &r
		}
	}

	require.NotNil(t, final)
	assert.Equal(t, 12, final.Total)
	assert.Equal(t, 10, final.Embeddings)
	assert.Len(t, final.Errors, 2)
	// Partial success: real embeddings plus per-item errors cover the batch.
	assert.Equal(t, final.Total, final.Embeddings+len(final.Errors))

	assert.Len(t, progress, 12)
	for _, p := range progress {
		assert.Equal(t, 12, p.Total)
	}

	assert.Len(t, repo.recordsIn(vectorstore.NamespaceKey("user-1")), 10)
}
