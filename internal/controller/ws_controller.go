package controller

import (
	"context"
	"encoding/json"

	"codeassist-be/internal/apperr"
	"codeassist-be/internal/pkg/serverutils"
	"codeassist-be/internal/protocol"
	"codeassist-be/internal/router"
	"codeassist-be/internal/service"
	"codeassist-be/internal/websocket"
)

type IWsController interface {
	RegisterHandlers(r *router.Router)
}

// wsController binds protocol message kinds to their services. Payload
// decoding and validation happen here; services receive typed requests.
type wsController struct {
	authService       service.IAuthService
	completionService service.ICompletionService
	indexingService   service.IIndexingService
	searchService     service.ISearchService
}

func NewWsController(
	authService service.IAuthService,
	completionService service.ICompletionService,
	indexingService service.IIndexingService,
	searchService service.ISearchService,
) IWsController {
	return &wsController{
		authService:       authService,
		completionService: completionService,
		indexingService:   indexingService,
		searchService:     searchService,
	}
}

func (c *wsController) RegisterHandlers(r *router.Router) {
	r.Register(protocol.KindPing, c.ping)
	r.Register(protocol.KindAuthenticate, c.authenticate)
	r.Register(protocol.KindProviderList, c.providerList)
	r.Register(protocol.KindProviderModels, c.providerModels)
	r.Register(protocol.KindCompletionRequest, c.completionRequest)
	r.Register(protocol.KindToolExecutionResult, c.toolExecutionResult)
	r.Register(protocol.KindEmbeddingRequest, c.embeddingRequest)
	r.Register(protocol.KindEmbeddingBatchRequest, c.embeddingBatchRequest)
	r.Register(protocol.KindSearchRequest, c.searchRequest)
	r.Register(protocol.KindClearIndexRequest, c.clearIndexRequest)
}

func decode[T any](payload json.RawMessage) (*T, error) {
	var req T
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, apperr.Validation("malformed payload: " + err.Error())
		}
	}
	if err := serverutils.ValidateRequest(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (c *wsController) ping(ctx context.Context, client *websocket.Client, payload json.RawMessage) error {
	client.SendEnvelope(protocol.MustEnvelope(protocol.KindPong, nil))
	return nil
}

func (c *wsController) authenticate(ctx context.Context, client *websocket.Client, payload json.RawMessage) error {
	req, err := decode[protocol.AuthenticatePayload](payload)
	if err != nil {
		return err
	}
	return c.authService.Authenticate(ctx, client, req)
}

func (c *wsController) providerList(ctx context.Context, client *websocket.Client, payload json.RawMessage) error {
	return c.completionService.ListProviders(ctx, client)
}

func (c *wsController) providerModels(ctx context.Context, client *websocket.Client, payload json.RawMessage) error {
	req, err := decode[protocol.ProviderModelsRequestPayload](payload)
	if err != nil {
		return err
	}
	return c.completionService.ListModels(ctx, client, req)
}

func (c *wsController) completionRequest(ctx context.Context, client *websocket.Client, payload json.RawMessage) error {
	req, err := decode[protocol.CompletionRequestPayload](payload)
	if err != nil {
		return err
	}
	return c.completionService.Complete(ctx, client, req)
}

func (c *wsController) toolExecutionResult(ctx context.Context, client *websocket.Client, payload json.RawMessage) error {
	req, err := decode[protocol.ToolExecutionResultPayload](payload)
	if err != nil {
		return err
	}
	return c.completionService.HandleToolResult(ctx, client, req)
}

func (c *wsController) embeddingRequest(ctx context.Context, client *websocket.Client, payload json.RawMessage) error {
	req, err := decode[protocol.EmbeddingRequestPayload](payload)
	if err != nil {
		return err
	}
	return c.indexingService.EmbedSingle(ctx, client, req)
}

func (c *wsController) embeddingBatchRequest(ctx context.Context, client *websocket.Client, payload json.RawMessage) error {
	req, err := decode[protocol.EmbeddingBatchRequestPayload](payload)
	if err != nil {
		return err
	}
	return c.indexingService.EmbedBatch(ctx, client, req)
}

func (c *wsController) searchRequest(ctx context.Context, client *websocket.Client, payload json.RawMessage) error {
	req, err := decode[protocol.SearchRequestPayload](payload)
	if err != nil {
		return err
	}
	return c.searchService.Search(ctx, client, req)
}

func (c *wsController) clearIndexRequest(ctx context.Context, client *websocket.Client, payload json.RawMessage) error {
	req, err := decode[protocol.ClearIndexRequestPayload](payload)
	if err != nil {
		return err
	}
	return c.searchService.ClearIndex(ctx, client, req)
}
