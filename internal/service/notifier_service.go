package service

import (
	"context"
	"fmt"

	"codeassist-be/internal/pkg/logger"
	"codeassist-be/internal/protocol"
	"codeassist-be/internal/websocket"
	"codeassist-be/pkg/events"
	pkgNats "codeassist-be/pkg/nats"
)

type INotifierService interface {
	Start() error
}

// notifierService bridges the external event stream back into open
// sessions: index lifecycle events are pushed to every session of the
// subject they concern.
type notifierService struct {
	subscriber *pkgNats.Subscriber
	hub        *websocket.Hub
	logger     logger.ILogger
}

func NewNotifierService(subscriber *pkgNats.Subscriber, hub *websocket.Hub, log logger.ILogger) INotifierService {
	return &notifierService{
		subscriber: subscriber,
		hub:        hub,
		logger:     log,
	}
}

func (s *notifierService) Start() error {
	if s.subscriber == nil {
		s.logger.Warn("NotifierService", "No event subscriber configured, notifications disabled", nil)
		return nil
	}
	return s.subscriber.Subscribe("events.>", "codeassist-notifier", s.handleEvent)
}

func (s *notifierService) handleEvent(ctx context.Context, event events.Event) error {
	payload := event.Payload()
	subjectId, _ := payload["subject_id"].(string)
	if subjectId == "" {
		return nil
	}

	s.hub.SendToSubject(subjectId, protocol.MustEnvelope(protocol.KindNotification, protocol.NotificationPayload{
		Event: event.EventType(),
		Data:  payload,
	}))

	s.logger.Debug("NotifierService", fmt.Sprintf("Pushed %s notification", event.EventType()), map[string]interface{}{
		"subject_id": subjectId,
	})
	return nil
}
