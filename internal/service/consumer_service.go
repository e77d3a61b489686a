package service

import (
	"context"
	"encoding/json"

	"codeassist-be/internal/pkg/logger"
	"codeassist-be/pkg/vectorstore"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService drains index-completion jobs from the internal bus
// and runs post-index maintenance: stale partitions in the workspace
// namespace are reaped so superseded index generations do not grow
// storage unbounded.
type consumerService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	store     *vectorstore.Store
	logger    logger.ILogger
}

func NewConsumerService(pubSub *gochannel.GoChannel, topicName string, store *vectorstore.Store, log logger.ILogger) IConsumerService {
	return &consumerService{
		pubSub:    pubSub,
		topicName: topicName,
		store:     store,
		logger:    log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

type indexCompletedJob struct {
	SubjectId   string `json:"subject_id"`
	WorkspaceId string `json:"workspace_id"`
	Indexed     int    `json:"indexed"`
	Failed      int    `json:"failed"`
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var job indexCompletedJob
	if err := json.Unmarshal(msg.Payload, &job); err != nil {
		cs.logger.Error("ConsumerService", "Failed to unmarshal job", map[string]interface{}{"error": err.Error()})
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	namespace := vectorstore.NamespaceKey(job.SubjectId)
	reaped, err := cs.store.ReapInactivePartitions(ctx, namespace, job.WorkspaceId)
	if err != nil {
		cs.logger.Error("ConsumerService", "Partition reap failed", map[string]interface{}{
			"namespace": namespace,
			"error":     err.Error(),
		})
		msg.Nack() // Nack for retriable errors
		return
	}

	if reaped > 0 {
		cs.logger.Info("ConsumerService", "Reaped stale partitions", map[string]interface{}{
			"namespace": namespace,
			"kept":      job.WorkspaceId,
			"reaped":    reaped,
		})
	}
	msg.Ack()
}
