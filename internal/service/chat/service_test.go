package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tunarag/internal/models"
	"tunarag/internal/worker"
)

type fakeSessions struct {
	mu      sync.Mutex
	nextID  int
	history map[string][]models.Turn
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{history: make(map[string][]models.Turn)}
}

func (f *fakeSessions) CreateSession(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return "session:000001", nil
}

func (f *fakeSessions) GetHistory(ctx context.Context, sessionID string) ([]models.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	turns := f.history[sessionID]
	if len(turns) > 3 {
		turns = turns[len(turns)-3:]
	}
	out := make([]models.Turn, len(turns))
	copy(out, turns)
	return out, nil
}

func (f *fakeSessions) AppendTurn(ctx context.Context, sessionID string, turn models.Turn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history[sessionID] = append(f.history[sessionID], turn)
	return nil
}

type fakeAnswerer struct {
	answer      string
	err         error
	lastHistory []models.Turn
}

func (f *fakeAnswerer) Answer(ctx context.Context, query string, history []models.Turn) (string, error) {
	f.lastHistory = history
	return f.answer, f.err
}

func TestHandlePersistsTurn(t *testing.T) {
	sessions := newFakeSessions()
	svc := NewService(sessions, &fakeAnswerer{answer: "Press the Comment button under the post."}, nil)
	ctx := context.Background()

	id, err := svc.CreateSession(ctx)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	got, err := svc.Handle(ctx, id, "How do I comment on a post?")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got != "Press the Comment button under the post." {
		t.Fatalf("unexpected answer %q", got)
	}

	history, _ := sessions.GetHistory(ctx, id)
	if len(history) != 1 {
		t.Fatalf("want 1 turn in history, got %d", len(history))
	}
	if history[0].Query != "How do I comment on a post?" || history[0].Response != got {
		t.Fatalf("persisted turn mismatch: %+v", history[0])
	}
}

func TestHandlePassesHistoryToAnswerer(t *testing.T) {
	sessions := newFakeSessions()
	answerer := &fakeAnswerer{answer: "second answer"}
	svc := NewService(sessions, answerer, nil)
	ctx := context.Background()

	id, _ := svc.CreateSession(ctx)
	sessions.AppendTurn(ctx, id, models.Turn{Query: "first", Response: "first answer"})

	if _, err := svc.Handle(ctx, id, "second"); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(answerer.lastHistory) != 1 || answerer.lastHistory[0].Query != "first" {
		t.Fatalf("answerer did not receive prior history: %+v", answerer.lastHistory)
	}
}

func TestHandleGenerationFailureAppendsNothing(t *testing.T) {
	sessions := newFakeSessions()
	wantErr := errors.New("generation failed")
	svc := NewService(sessions, &fakeAnswerer{err: wantErr}, nil)
	ctx := context.Background()

	id, _ := svc.CreateSession(ctx)
	if _, err := svc.Handle(ctx, id, "q"); !errors.Is(err, wantErr) {
		t.Fatalf("want generation error, got %v", err)
	}
	if history, _ := sessions.GetHistory(ctx, id); len(history) != 0 {
		t.Fatalf("no turn may be appended on failure, got %d", len(history))
	}
}

func TestHandleWithoutSessions(t *testing.T) {
	svc := NewService(nil, &fakeAnswerer{answer: "a"}, nil)
	if _, err := svc.Handle(context.Background(), "session:000001", "q"); !errors.Is(err, ErrSessionNotInitialized) {
		t.Fatalf("want ErrSessionNotInitialized, got %v", err)
	}
	if _, err := svc.CreateSession(context.Background()); !errors.Is(err, ErrSessionNotInitialized) {
		t.Fatalf("want ErrSessionNotInitialized, got %v", err)
	}
}

func TestHandleThroughDispatcher(t *testing.T) {
	sessions := newFakeSessions()
	dispatcher := worker.NewDispatcher(worker.DispatcherConfig{
		MinWorkers:        1,
		MaxWorkers:        2,
		QueueSize:         8,
		WorkerIdleTimeout: time.Minute,
	})
	svc := NewService(sessions, &fakeAnswerer{answer: "dispatched answer"}, dispatcher)
	ctx := context.Background()

	id, _ := svc.CreateSession(ctx)
	got, err := svc.Handle(ctx, id, "q")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got != "dispatched answer" {
		t.Fatalf("unexpected answer %q", got)
	}
	if history, _ := sessions.GetHistory(ctx, id); len(history) != 1 {
		t.Fatalf("want 1 turn after dispatched handle, got %d", len(history))
	}
}
