package service

import (
	"context"
	"testing"
	"time"

	"codeassist-be/internal/config"
	"codeassist-be/internal/entity"
	"codeassist-be/internal/protocol"
	"codeassist-be/pkg/ratelimit"
	"codeassist-be/pkg/vectorstore"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staleRecord(id, namespace, partition string) *entity.VectorRecord {
	return &entity.VectorRecord{
		Id:        id,
		Namespace: namespace,
		Partition: partition,
		Vector:    make([]float32, 4),
		Metadata:  map[string]string{entity.MetaWorkspace: partition},
	}
}

// A finished re-index of a workspace must evict that workspace's
// superseded partitions from the owner namespace while leaving the
// owner's other workspaces and other owners untouched.
func TestBatchCompletionReapsStalePartitions(t *testing.T) {
	repo := newMemVectorRepo()
	cfg := &config.IndexConfig{
		BatchMaxCount:  5,
		BatchMaxCost:   1 << 20,
		BatchWorkers:   2,
		UpsertMaxBytes: 1 << 20,
		UpsertMaxCount: 100,
		EmbedJobTopic:  "index.jobs",
	}
	store := vectorstore.NewStore(repo, nopLogger{}, 4, cfg.UpsertMaxBytes, cfg.UpsertMaxCount)
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	limiter := ratelimit.NewSlidingWindowLimiter(10000, time.Second)
	svc := NewIndexingService(cfg, &fakeEmbedder{dims: 4}, limiter, store, pubSub, nil, nopLogger{})
	consumer := NewConsumerService(pubSub, cfg.EmbedJobTopic, store, nopLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, consumer.Consume(ctx))

	ownerNs := vectorstore.NamespaceKey("user-1")
	otherNs := vectorstore.NamespaceKey("user-2")
	require.NoError(t, repo.Upsert(ctx, []*entity.VectorRecord{
		staleRecord("old-1", ownerNs, "ws-gone"),
		staleRecord("old-2", ownerNs, "ws-gone"),
		staleRecord("keep-other-owner", otherNs, "ws-gone"),
	}))

	client := newTestClient()
	err := svc.EmbedBatch(ctx, client, &protocol.EmbeddingBatchRequestPayload{
		WorkspaceId: "ws-1",
		Chunks: []entity.EmbeddingChunk{
			chunkN("c1", "func main() {}"),
			chunkN("c2", "type Server struct {}"),
		},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		parts := repo.partitionsIn(ownerNs)
		return len(parts) == 1 && parts["ws-1"] == 2
	}, 2*time.Second, 10*time.Millisecond, "stale partitions should be reaped after batch completion")

	assert.Len(t, repo.recordsIn(otherNs), 1, "other owners must not be touched")
}
