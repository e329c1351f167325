package rag

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"tunarag/internal/models"
)

var (
	// ErrRetrievalFailed reports a vector backend error. Terminal for the
	// current request, no retry here.
	ErrRetrievalFailed = errors.New("retrieval failed")

	// ErrGenerationFailed reports an LLM backend error or malformed
	// response. Terminal for the current request.
	ErrGenerationFailed = errors.New("generation failed")
)

// Retriever is the vector-search capability the orchestrator consumes.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]models.Passage, error)
}

// Generator is the text-completion capability the orchestrator consumes.
// It may fail and it may return empty text; both are handled here.
type Generator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Options tune retrieval and prompt assembly.
type Options struct {
	TopK int
	// ScoreThreshold discards passages scoring below it. Zero disables
	// thresholding (unscored backends return zero scores).
	ScoreThreshold float64
	// InstructionPath optionally overrides DefaultInstruction with
	// external, versioned prompt text.
	InstructionPath string
}

// Orchestrator runs the retrieve, assemble, generate, post-process pipeline.
// It never touches the conversation store; history arrives as input and the
// caller records the resulting turn.
type Orchestrator struct {
	retriever   Retriever
	generator   Generator
	instruction string
	topK        int
	threshold   float64
}

// NewOrchestrator constructs the pipeline. The instruction text is loaded
// once at construction; retrieval and generation backends stay swappable
// behind their interfaces.
func NewOrchestrator(retriever Retriever, generator Generator, opts Options) (*Orchestrator, error) {
	if retriever == nil {
		return nil, errors.New("retriever required")
	}
	if generator == nil {
		return nil, errors.New("generator required")
	}
	if opts.TopK <= 0 {
		opts.TopK = 10
	}

	instruction := DefaultInstruction
	if opts.InstructionPath != "" {
		data, err := os.ReadFile(opts.InstructionPath)
		if err != nil {
			return nil, fmt.Errorf("read instruction %s: %w", opts.InstructionPath, err)
		}
		instruction = strings.TrimSpace(string(data))
	}

	return &Orchestrator{
		retriever:   retriever,
		generator:   generator,
		instruction: instruction,
		topK:        opts.TopK,
		threshold:   opts.ScoreThreshold,
	}, nil
}

// Answer turns a raw query plus recent history into a grounded answer.
// An empty or refused model output becomes FallbackAnswer; backend failures
// surface as ErrRetrievalFailed / ErrGenerationFailed and are never folded
// into an answer.
func (o *Orchestrator) Answer(ctx context.Context, query string, history []models.Turn) (string, error) {
	passages, err := o.retriever.Retrieve(ctx, query, o.topK)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRetrievalFailed, err)
	}

	kept := passages
	if o.threshold > 0 {
		kept = make([]models.Passage, 0, len(passages))
		for _, p := range passages {
			if p.Score >= o.threshold {
				kept = append(kept, p)
			}
		}
	}

	reference := ReferenceSentinel
	if len(kept) > 0 {
		log.Printf("rag: %d relevant passages for query", len(kept))
		reference = FormatReference(kept)
	} else {
		log.Printf("rag: no relevant passages for query")
	}

	prompt := BuildPrompt(o.instruction, query, reference, history)

	text, err := o.generator.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" || trimmed == RefusalToken {
		return FallbackAnswer, nil
	}
	return trimmed, nil
}
