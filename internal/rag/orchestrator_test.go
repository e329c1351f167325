package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"tunarag/internal/models"
)

type fakeRetriever struct {
	passages []models.Passage
	err      error
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string, topK int) ([]models.Passage, error) {
	return f.passages, f.err
}

type fakeGenerator struct {
	text       string
	err        error
	lastPrompt string
}

func (f *fakeGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	f.lastPrompt = prompt
	return f.text, f.err
}

func newTestOrchestrator(t *testing.T, retriever Retriever, generator Generator, opts Options) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(retriever, generator, opts)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	return o
}

func TestAnswerReturnsTrimmedText(t *testing.T) {
	gen := &fakeGenerator{text: "  Open the post and press Comment.  \n"}
	o := newTestOrchestrator(t, &fakeRetriever{passages: []models.Passage{{Text: "the comment feature", Score: 0.9}}}, gen, Options{})

	got, err := o.Answer(context.Background(), "How do I comment on a post?", nil)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if got != "Open the post and press Comment." {
		t.Fatalf("unexpected answer %q", got)
	}
	if !strings.Contains(gen.lastPrompt, "the comment feature") {
		t.Fatalf("prompt missing retrieved passage:\n%s", gen.lastPrompt)
	}
}

func TestAnswerSentinelWhenNoPassages(t *testing.T) {
	gen := &fakeGenerator{text: ""}
	o := newTestOrchestrator(t, &fakeRetriever{}, gen, Options{})

	got, err := o.Answer(context.Background(), "asdf", nil)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if !strings.Contains(gen.lastPrompt, ReferenceSentinel) {
		t.Fatalf("prompt must carry the sentinel when retrieval is empty:\n%s", gen.lastPrompt)
	}
	if got != FallbackAnswer {
		t.Fatalf("want fallback answer, got %q", got)
	}
}

func TestAnswerThresholdDiscardsLowScores(t *testing.T) {
	gen := &fakeGenerator{text: "None"}
	retriever := &fakeRetriever{passages: []models.Passage{
		{Text: "weak match", Score: 0.2},
		{Text: "weaker match", Score: 0.1},
	}}
	o := newTestOrchestrator(t, retriever, gen, Options{ScoreThreshold: 0.5})

	got, err := o.Answer(context.Background(), "unrelated", nil)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if strings.Contains(gen.lastPrompt, "weak match") {
		t.Fatalf("below-threshold passage leaked into prompt:\n%s", gen.lastPrompt)
	}
	if !strings.Contains(gen.lastPrompt, ReferenceSentinel) {
		t.Fatalf("prompt must fall back to the sentinel:\n%s", gen.lastPrompt)
	}
	if got != FallbackAnswer {
		t.Fatalf("want fallback answer, got %q", got)
	}
}

func TestAnswerThresholdKeepsHighScores(t *testing.T) {
	gen := &fakeGenerator{text: "answer"}
	retriever := &fakeRetriever{passages: []models.Passage{
		{Text: "strong match", Score: 0.8},
		{Text: "weak match", Score: 0.2},
	}}
	o := newTestOrchestrator(t, retriever, gen, Options{ScoreThreshold: 0.5})

	if _, err := o.Answer(context.Background(), "q", nil); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if !strings.Contains(gen.lastPrompt, "strong match") {
		t.Fatalf("above-threshold passage missing:\n%s", gen.lastPrompt)
	}
	if strings.Contains(gen.lastPrompt, "weak match") {
		t.Fatalf("below-threshold passage leaked:\n%s", gen.lastPrompt)
	}
}

func TestAnswerRefusalTokenBecomesFallback(t *testing.T) {
	o := newTestOrchestrator(t, &fakeRetriever{passages: []models.Passage{{Text: "p", Score: 1}}},
		&fakeGenerator{text: "None"}, Options{})

	got, err := o.Answer(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if got != FallbackAnswer {
		t.Fatalf("want fallback answer, got %q", got)
	}
}

func TestAnswerHistoryInPrompt(t *testing.T) {
	gen := &fakeGenerator{text: "ok"}
	o := newTestOrchestrator(t, &fakeRetriever{passages: []models.Passage{{Text: "p"}}}, gen, Options{})

	history := []models.Turn{{Query: "earlier question", Response: "earlier answer"}}
	if _, err := o.Answer(context.Background(), "q", history); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if !strings.Contains(gen.lastPrompt, "Q1: earlier question") {
		t.Fatalf("history missing from prompt:\n%s", gen.lastPrompt)
	}
}

func TestAnswerRetrieverError(t *testing.T) {
	o := newTestOrchestrator(t, &fakeRetriever{err: errors.New("backend down")}, &fakeGenerator{}, Options{})

	if _, err := o.Answer(context.Background(), "q", nil); !errors.Is(err, ErrRetrievalFailed) {
		t.Fatalf("want ErrRetrievalFailed, got %v", err)
	}
}

func TestAnswerGeneratorError(t *testing.T) {
	o := newTestOrchestrator(t, &fakeRetriever{passages: []models.Passage{{Text: "p"}}},
		&fakeGenerator{err: errors.New("timeout")}, Options{})

	if _, err := o.Answer(context.Background(), "q", nil); !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("want ErrGenerationFailed, got %v", err)
	}
}
