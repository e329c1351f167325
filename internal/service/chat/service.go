package chat

import (
	"context"
	"errors"

	"tunarag/internal/models"
	"tunarag/internal/worker"
)

// ErrSessionNotInitialized reports that the service was built without a
// session manager. Configuration error, surfaced loudly instead of being
// swallowed.
var ErrSessionNotInitialized = errors.New("session manager not initialized")

// Sessions is the conversation view the handler needs. session.Manager
// satisfies it.
type Sessions interface {
	CreateSession(ctx context.Context) (string, error)
	GetHistory(ctx context.Context, sessionID string) ([]models.Turn, error)
	AppendTurn(ctx context.Context, sessionID string, turn models.Turn) error
}

// Answerer produces a grounded answer from a query and recent history.
// rag.Orchestrator satisfies it.
type Answerer interface {
	Answer(ctx context.Context, query string, history []models.Turn) (string, error)
}

// Service is the boundary glue between transport and the core: it owns no
// retrieval or prompt logic, only the history-answer-persist sequence.
type Service struct {
	sessions   Sessions
	rag        Answerer
	dispatcher *worker.Dispatcher
}

// NewService wires the handler. The dispatcher is optional; without one,
// jobs run inline on the caller's goroutine.
func NewService(sessions Sessions, rag Answerer, dispatcher *worker.Dispatcher) *Service {
	return &Service{sessions: sessions, rag: rag, dispatcher: dispatcher}
}

// CreateSession allocates a fresh session id.
func (s *Service) CreateSession(ctx context.Context) (string, error) {
	if s.sessions == nil {
		return "", ErrSessionNotInitialized
	}
	return s.sessions.CreateSession(ctx)
}

// Handle answers the query in the context of the session and records the
// resulting turn. A failed answer appends nothing, so a timeout or backend
// error never leaves a partial turn in the history.
func (s *Service) Handle(ctx context.Context, sessionID, query string) (string, error) {
	if s.sessions == nil {
		return "", ErrSessionNotInitialized
	}
	if s.dispatcher == nil {
		return s.handleTurn(ctx, sessionID, query)
	}
	return s.dispatcher.Do(worker.Job{
		Ctx:       ctx,
		SessionID: sessionID,
		Run: func(ctx context.Context) (string, error) {
			return s.handleTurn(ctx, sessionID, query)
		},
	})
}

func (s *Service) handleTurn(ctx context.Context, sessionID, query string) (string, error) {
	history, err := s.sessions.GetHistory(ctx, sessionID)
	if err != nil {
		return "", err
	}
	answer, err := s.rag.Answer(ctx, query, history)
	if err != nil {
		return "", err
	}
	if err := s.sessions.AppendTurn(ctx, sessionID, models.Turn{Query: query, Response: answer}); err != nil {
		return "", err
	}
	return answer, nil
}
