package service

import (
	"context"
	"fmt"

	"codeassist-be/internal/apperr"
	"codeassist-be/internal/config"
	"codeassist-be/internal/pkg/logger"
	"codeassist-be/internal/protocol"
	"codeassist-be/internal/websocket"
	"codeassist-be/pkg/events"
	pkgNats "codeassist-be/pkg/nats"

	"github.com/golang-jwt/jwt/v5"
)

type IAuthService interface {
	Authenticate(ctx context.Context, client *websocket.Client, req *protocol.AuthenticatePayload) error
	PushAuth(ctx context.Context, sessionId string, token string, subjectData map[string]interface{}) error
}

type authService struct {
	cfg            *config.AuthConfig
	hub            *websocket.Hub
	eventPublisher *pkgNats.Publisher
	logger         logger.ILogger
}

func NewAuthService(cfg *config.AuthConfig, hub *websocket.Hub, eventPublisher *pkgNats.Publisher, log logger.ILogger) IAuthService {
	return &authService{
		cfg:            cfg,
		hub:            hub,
		eventPublisher: eventPublisher,
		logger:         log,
	}
}

// verifyToken validates an HS256 token and returns its subject claim.
func (s *authService) verifyToken(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !parsed.Valid {
		return "", apperr.Unauthorized("invalid or expired token")
	}

	subject, err := parsed.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", apperr.Unauthorized("token has no subject")
	}
	return subject, nil
}

// Authenticate handles the in-band authenticate message. Failure is a
// typed reply, not a connection close; success binds the subject to the
// session and may replace a prior identity.
func (s *authService) Authenticate(ctx context.Context, client *websocket.Client, req *protocol.AuthenticatePayload) error {
	subjectId, err := s.verifyToken(req.Token)
	if err != nil {
		client.SendEnvelope(protocol.MustEnvelope(protocol.KindAuthFailure, protocol.AuthFailurePayload{
			Code:    apperr.CodeOf(err),
			Message: apperr.MessageOf(err),
		}))
		return nil
	}

	client.Session.BindSubject(subjectId)
	client.SendEnvelope(protocol.MustEnvelope(protocol.KindAuthSuccess, protocol.AuthSuccessPayload{
		SubjectId: subjectId,
		SessionId: client.Session.Id,
	}))

	s.publishAuthEvent(ctx, subjectId, client.Session.Id)
	return nil
}

// PushAuth handles the out-of-band HTTP path: a trusted caller presents
// a token for an already-open session and the hub pushes AuthSuccess
// into it, wherever in the cluster the session lives.
func (s *authService) PushAuth(ctx context.Context, sessionId string, token string, subjectData map[string]interface{}) error {
	subjectId, err := s.verifyToken(token)
	if err != nil {
		return err
	}

	env := protocol.MustEnvelope(protocol.KindAuthSuccess, protocol.AuthSuccessPayload{
		SubjectId: subjectId,
		SessionId: sessionId,
		Subject:   subjectData,
	})
	if !s.hub.SendToSession(sessionId, subjectId, env) {
		return apperr.Validation("session not found")
	}

	s.publishAuthEvent(ctx, subjectId, sessionId)
	return nil
}

func (s *authService) publishAuthEvent(ctx context.Context, subjectId, sessionId string) {
	if s.eventPublisher == nil {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events.AuthSucceeded(subjectId, sessionId)); err != nil {
		s.logger.Warn("AuthService", "Failed to publish auth event", map[string]interface{}{"error": err.Error()})
	}
}
