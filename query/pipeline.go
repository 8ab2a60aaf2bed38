package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"docchat/model"
	"docchat/store"
	"docchat/types"
)

const systemInstruction = `You are a helpful assistant that answers questions based on the provided context.
Use only the information from the context to answer questions.
If the context doesn't contain enough information to answer the question, say so.`

const (
	// NoContextAnswer is returned without calling the completer when no
	// usable matches come back from the store.
	NoContextAnswer = "I couldn't find relevant information in the uploaded documents to answer your question."

	// NoResponseAnswer replaces an empty completion. The user still
	// deserves a reply, so this is a fallback string, not an error.
	NoResponseAnswer = "No response generated"
)

// Pipeline answers one question: embed, retrieve, assemble context,
// complete. No retry at this layer; failures propagate to the caller.
type Pipeline struct {
	embedder  model.Embedder
	store     store.VectorStorer
	completer model.Completer
	tokens    model.TokenCounter
	cfg       *types.Config
	logger    *slog.Logger
}

func New(embedder model.Embedder, storer store.VectorStorer, completer model.Completer, tokens model.TokenCounter, cfg *types.Config) *Pipeline {
	return &Pipeline{
		embedder:  embedder,
		store:     storer,
		completer: completer,
		tokens:    tokens,
		cfg:       cfg,
		logger:    slog.Default(),
	}
}

// Answer resolves one question against the index.
func (p *Pipeline) Answer(ctx context.Context, question string) (*types.SearchResponse, error) {
	if strings.TrimSpace(question) == "" {
		return nil, types.ErrEmptyQuestion
	}

	embedding, err := p.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	matches, err := p.store.Search(ctx, embedding, p.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	contextBlock, used := p.assembleContext(matches)
	if contextBlock == "" {
		p.logger.Info("no usable matches for question")
		return &types.SearchResponse{
			Answer:    NoContextAnswer,
			Timestamp: time.Now(),
		}, nil
	}

	user := fmt.Sprintf("Context: %s\n\nQuestion: %s", contextBlock, question)
	answer, err := p.completer.Complete(ctx, systemInstruction, user)
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}
	if strings.TrimSpace(answer) == "" {
		answer = NoResponseAnswer
	}

	return &types.SearchResponse{
		Answer:     answer,
		Sources:    sourcesOf(used),
		Confidence: used[0].Score,
		Timestamp:  time.Now(),
	}, nil
}

// assembleContext joins match texts in store order (best similarity
// first), dropping empty texts and cutting off at the token budget once
// at least one match is in.
func (p *Pipeline) assembleContext(matches []types.RetrievalMatch) (string, []types.RetrievalMatch) {
	var parts []string
	var used []types.RetrievalMatch
	budget := p.cfg.MaxContextTokens
	spent := 0

	for _, m := range matches {
		text := strings.TrimSpace(m.Content)
		if text == "" {
			continue
		}

		if p.tokens != nil && budget > 0 {
			cost := p.tokens.Count(text)
			if len(used) > 0 && spent+cost > budget {
				p.logger.Info("context token budget reached",
					"used", len(used), "budget", budget)
				break
			}
			spent += cost
		}

		parts = append(parts, text)
		used = append(used, m)
	}

	return strings.Join(parts, "\n\n"), used
}

func sourcesOf(matches []types.RetrievalMatch) []types.Source {
	sources := make([]types.Source, len(matches))
	for i, m := range matches {
		sources[i] = types.Source{
			Document: m.Source,
			Text:     m.Content,
			Index:    m.SequenceIndex,
			Page:     m.Page,
		}
	}
	return sources
}
