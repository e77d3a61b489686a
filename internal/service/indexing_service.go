package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"codeassist-be/internal/apperr"
	"codeassist-be/internal/config"
	"codeassist-be/internal/entity"
	"codeassist-be/internal/pkg/logger"
	"codeassist-be/internal/protocol"
	"codeassist-be/internal/websocket"
	"codeassist-be/pkg/batch"
	"codeassist-be/pkg/embedding"
	"codeassist-be/pkg/events"
	pkgNats "codeassist-be/pkg/nats"
	"codeassist-be/pkg/ratelimit"
	"codeassist-be/pkg/relay"
	"codeassist-be/pkg/vectorstore"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

type IIndexingService interface {
	EmbedSingle(ctx context.Context, client *websocket.Client, req *protocol.EmbeddingRequestPayload) error
	EmbedBatch(ctx context.Context, client *websocket.Client, req *protocol.EmbeddingBatchRequestPayload) error
}

type indexingService struct {
	cfg            *config.IndexConfig
	provider       embedding.Provider
	limiter        *ratelimit.SlidingWindowLimiter
	store          *vectorstore.Store
	pubSub         *gochannel.GoChannel
	eventPublisher *pkgNats.Publisher
	logger         logger.ILogger
}

func NewIndexingService(
	cfg *config.IndexConfig,
	provider embedding.Provider,
	limiter *ratelimit.SlidingWindowLimiter,
	store *vectorstore.Store,
	pubSub *gochannel.GoChannel,
	eventPublisher *pkgNats.Publisher,
	log logger.ILogger,
) IIndexingService {
	return &indexingService{
		cfg:            cfg,
		provider:       provider,
		limiter:        limiter,
		store:          store,
		pubSub:         pubSub,
		eventPublisher: eventPublisher,
		logger:         log,
	}
}

// embedChunk runs one quota-limited embedding call. The limiter wait is
// canceled when the owning session disconnects.
func (s *indexingService) embedChunk(ctx context.Context, chunk *entity.EmbeddingChunk) ([]float32, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	vector, err := s.provider.Embed(ctx, chunk.TextContent)
	if err != nil {
		return nil, apperr.BackendError(err)
	}
	return vector, nil
}

func (s *indexingService) recordFor(chunk *entity.EmbeddingChunk, subjectId string, vector []float32) *entity.VectorRecord {
	return &entity.VectorRecord{
		Id:        chunk.Id,
		Partition: chunk.WorkspaceId,
		Vector:    vector,
		Metadata: map[string]string{
			entity.MetaContent:   chunk.TextContent,
			entity.MetaWorkspace: chunk.WorkspaceId,
			entity.MetaPath:      chunk.FilePath,
			entity.MetaSymbol:    chunk.Symbol,
			entity.MetaType:      chunk.TypeTag,
			entity.MetaLanguage:  chunk.LanguageTag,
			entity.MetaLineRange: fmt.Sprintf("%d-%d", chunk.StartLine, chunk.EndLine),
			entity.MetaOwner:     subjectId,
		},
		CreatedAt: time.Now(),
	}
}

func (s *indexingService) EmbedSingle(ctx context.Context, client *websocket.Client, req *protocol.EmbeddingRequestPayload) error {
	chunk := req.Chunk
	subjectId := client.Session.SubjectId()

	vector, err := s.embedChunk(ctx, &chunk)
	if err != nil {
		client.SendEnvelope(protocol.MustEnvelope(protocol.KindEmbeddingResponse, protocol.EmbeddingResponsePayload{
			Id:    chunk.Id,
			Model: s.provider.Name(),
			Error: apperr.MessageOf(err),
		}))
		return nil
	}

	namespace := vectorstore.NamespaceKey(subjectId)
	record := s.recordFor(&chunk, subjectId, vector)
	if err := s.store.Upsert(ctx, namespace, []*entity.VectorRecord{record}); err != nil {
		return apperr.BackendError(err)
	}

	client.SendEnvelope(protocol.MustEnvelope(protocol.KindEmbeddingResponse, protocol.EmbeddingResponsePayload{
		Id:         chunk.Id,
		Embedding:  vector,
		Model:      s.provider.Name(),
		TokensUsed: relay.EstimateTokens(len(chunk.TextContent)),
	}))
	return nil
}

// EmbedBatch plans chunk batches by count and estimated cost, runs them
// on a bounded worker pool and reports progress per batch. Sibling
// batches fail independently; per-chunk errors are collected and the
// final response carries partial results rather than failing whole.
func (s *indexingService) EmbedBatch(ctx context.Context, client *websocket.Client, req *protocol.EmbeddingBatchRequestPayload) error {
	subjectId := client.Session.SubjectId()
	namespace := vectorstore.NamespaceKey(subjectId)
	total := len(req.Chunks)

	batches := batch.Plan(req.Chunks, func(c entity.EmbeddingChunk) int {
		return len(c.TextContent)
	}, s.cfg.BatchMaxCount, s.cfg.BatchMaxCost)

	var (
		progress = newProgressTracker(total)
		errs     = make([][]string, len(batches))
		embedded = make([]int, len(batches))
	)

	worker := func(ctx context.Context, batchIndex int, chunks []entity.EmbeddingChunk) error {
		records := make([]*entity.VectorRecord, 0, len(chunks))
		for i := range chunks {
			chunk := chunks[i]
			if chunk.WorkspaceId == "" {
				chunk.WorkspaceId = req.WorkspaceId
			}
			vector, err := s.embedChunk(ctx, &chunk)
			if err != nil {
				errs[batchIndex] = append(errs[batchIndex], fmt.Sprintf("%s: %s", chunk.Id, apperr.MessageOf(err)))
				progress.advance(client, chunk.FilePath, "failed")
				continue
			}
			records = append(records, s.recordFor(&chunk, subjectId, vector))
			progress.advance(client, chunk.FilePath, "embedded")
		}

		if len(records) > 0 {
			if err := s.store.Upsert(ctx, namespace, records); err != nil {
				// The whole batch failed to persist; every embedded
				// chunk in it gets its own error entry so partial
				// success accounting still adds up.
				for _, rec := range records {
					errs[batchIndex] = append(errs[batchIndex], fmt.Sprintf("%s: upsert failed: %v", rec.Id, err))
				}
				return err
			}
		}
		embedded[batchIndex] = len(records)
		return nil
	}

	batch.RunBounded(ctx, batches, worker, s.cfg.BatchWorkers)

	totalEmbedded := 0
	allErrs := make([]string, 0)
	for i := range batches {
		totalEmbedded += embedded[i]
		allErrs = append(allErrs, errs[i]...)
	}

	client.SendEnvelope(protocol.MustEnvelope(protocol.KindEmbeddingBatchResponse, protocol.EmbeddingBatchResponsePayload{
		Total:      total,
		Embeddings: totalEmbedded,
		Errors:     allErrs,
		Model:      s.provider.Name(),
	}))

	s.announceCompletion(ctx, subjectId, req.WorkspaceId, totalEmbedded, total-totalEmbedded)
	return nil
}

// announceCompletion fans the result out on the internal bus and the
// external event stream.
func (s *indexingService) announceCompletion(ctx context.Context, subjectId, workspaceId string, indexed, failed int) {
	if s.pubSub != nil {
		payload := fmt.Sprintf(`{"subject_id":%q,"workspace_id":%q,"indexed":%d,"failed":%d}`, subjectId, workspaceId, indexed, failed)
		msg := message.NewMessage(uuid.New().String(), []byte(payload))
		if err := s.pubSub.Publish(s.cfg.EmbedJobTopic, msg); err != nil {
			s.logger.Warn("IndexingService", "Failed to publish completion job", map[string]interface{}{"error": err.Error()})
		}
	}

	if s.eventPublisher != nil {
		if err := s.eventPublisher.Publish(ctx, events.IndexCompleted(subjectId, workspaceId, indexed, failed)); err != nil {
			s.logger.Warn("IndexingService", "Failed to publish index event", map[string]interface{}{"error": err.Error()})
		}
	}
}

// progressTracker serializes progress counting across batch workers.
type progressTracker struct {
	mu        sync.Mutex
	total     int
	completed int
}

func newProgressTracker(total int) *progressTracker {
	return &progressTracker{total: total}
}

func (t *progressTracker) advance(client *websocket.Client, currentFile, status string) {
	t.mu.Lock()
	t.completed++
	completed := t.completed
	t.mu.Unlock()

	client.SendEnvelope(protocol.MustEnvelope(protocol.KindEmbeddingProgress, protocol.EmbeddingProgressPayload{
		Completed:   completed,
		Total:       t.total,
		CurrentFile: currentFile,
		FileStatus:  status,
	}))
}
