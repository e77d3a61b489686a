package service

import (
	"context"

	"codeassist-be/internal/apperr"
	"codeassist-be/internal/entity"
	"codeassist-be/internal/pkg/logger"
	"codeassist-be/internal/protocol"
	"codeassist-be/internal/websocket"
	"codeassist-be/pkg/embedding"
	"codeassist-be/pkg/events"
	pkgNats "codeassist-be/pkg/nats"
	"codeassist-be/pkg/ratelimit"
	"codeassist-be/pkg/search"
	"codeassist-be/pkg/vectorstore"
)

const defaultSearchLimit = 10

type ISearchService interface {
	Search(ctx context.Context, client *websocket.Client, req *protocol.SearchRequestPayload) error
	ClearIndex(ctx context.Context, client *websocket.Client, req *protocol.ClearIndexRequestPayload) error
}

type searchService struct {
	hybrid         *search.Hybrid
	store          *vectorstore.Store
	provider       embedding.Provider
	limiter        *ratelimit.SlidingWindowLimiter
	eventPublisher *pkgNats.Publisher
	logger         logger.ILogger
}

func NewSearchService(
	hybrid *search.Hybrid,
	store *vectorstore.Store,
	provider embedding.Provider,
	limiter *ratelimit.SlidingWindowLimiter,
	eventPublisher *pkgNats.Publisher,
	log logger.ILogger,
) ISearchService {
	return &searchService{
		hybrid:         hybrid,
		store:          store,
		provider:       provider,
		limiter:        limiter,
		eventPublisher: eventPublisher,
		logger:         log,
	}
}

func (s *searchService) Search(ctx context.Context, client *websocket.Client, req *protocol.SearchRequestPayload) error {
	namespace := vectorstore.NamespaceKey(client.Session.SubjectId())

	// Reserved query: the client asks for namespace statistics instead
	// of running a search.
	if req.Query == protocol.StatsQuery {
		count, err := s.store.NamespaceStats(ctx, namespace)
		if err != nil {
			return apperr.BackendError(err)
		}
		client.SendEnvelope(protocol.MustEnvelope(protocol.KindSearchResponse, protocol.SearchResponsePayload{
			Results: nil,
			Stats: &protocol.NamespaceStats{
				Namespace: namespace,
				Count:     count,
			},
		}))
		return nil
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	// Inline filter terms (path:, lang:, type:, symbol:) narrow the
	// candidate set; explicit request filters take precedence.
	parsed := search.ParseQuery(req.Query)
	filters := parsed.Filters
	for k, v := range req.Filters {
		filters[k] = v
	}
	if req.WorkspaceId != "" {
		filters[entity.MetaWorkspace] = req.WorkspaceId
	}
	queryText := parsed.Text
	if queryText == "" {
		queryText = req.Query
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return apperr.BackendError(err)
	}
	queryVector, err := s.provider.Embed(ctx, queryText)
	if err != nil {
		return apperr.BackendError(err)
	}

	results, err := s.hybrid.Search(ctx, namespace, queryText, queryVector, limit, filters)
	if err != nil {
		return apperr.BackendError(err)
	}

	out := protocol.SearchResponsePayload{Results: make([]entity.SearchResult, 0, len(results))}
	for _, r := range results {
		out.Results = append(out.Results, *r)
	}
	client.SendEnvelope(protocol.MustEnvelope(protocol.KindSearchResponse, out))
	return nil
}

// ClearIndex removes all records for one workspace partition in the
// caller's namespace. Absence of data is already the desired end state,
// so a no-op delete still succeeds.
func (s *searchService) ClearIndex(ctx context.Context, client *websocket.Client, req *protocol.ClearIndexRequestPayload) error {
	if req.WorkspaceId == "" {
		return apperr.Validation("workspace_id is required")
	}

	subjectId := client.Session.SubjectId()
	namespace := vectorstore.NamespaceKey(subjectId)

	deleted, err := s.store.DeleteByFilter(ctx, namespace, map[string]string{
		entity.MetaWorkspace: req.WorkspaceId,
	})
	if err != nil {
		return apperr.BackendError(err)
	}

	client.SendEnvelope(protocol.MustEnvelope(protocol.KindClearIndexResponse, protocol.ClearIndexResponsePayload{
		DeletedCount: deleted,
	}))

	if s.eventPublisher != nil {
		if err := s.eventPublisher.Publish(ctx, events.IndexCleared(subjectId, req.WorkspaceId, deleted)); err != nil {
			s.logger.Warn("SearchService", "Failed to publish clear event", map[string]interface{}{"error": err.Error()})
		}
	}
	return nil
}
