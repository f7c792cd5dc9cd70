// Package questions assembles target-sized interview question lists for a
// skill from three ranked sources: questions already stored under the skill,
// near-duplicate questions stored under other skills, and fresh generation.
package questions

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/jonathan/jd-analyzer/internal/db"
	"github.com/jonathan/jd-analyzer/internal/llm"
	"github.com/jonathan/jd-analyzer/internal/vectormath"
)

// Question source constants
const (
	SourceExisting  = db.QuestionSourceExisting
	SourceSimilar   = db.QuestionSourceSimilar
	SourceGenerated = db.QuestionSourceGenerated
)

// Store is the persistence surface the resolver needs
type Store interface {
	ListQuestionsBySkill(ctx context.Context, skillID uuid.UUID) ([]db.Question, error)
	ListQuestionsExcludingSkill(ctx context.Context, skillID uuid.UUID) ([]db.Question, error)
	CreateQuestion(ctx context.Context, skillID uuid.UUID, text string, embedding []float32) (*db.Question, error)
}

// Embedder computes embedding vectors for text
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Generator is the LLM question generation capability
type Generator interface {
	GenerateQuestions(ctx context.Context, skillName string, count int) (llm.ListResult, error)
}

// ResolvedQuestion is one entry of an assembled question list, tagged with
// its provenance relative to this resolution.
type ResolvedQuestion struct {
	ID         uuid.UUID `json:"id"`
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"` // existing | similar | generated
	// NeedsGeneration marks a similar-tier question that the freshness policy
	// wanted regenerated but generation could not cover; it is reused as a
	// stand-in.
	NeedsGeneration bool `json:"needs_generation,omitempty"`
}

// Options tunes the resolver
type Options struct {
	// SimilarityBar is the minimum cosine similarity for reusing a question
	// stored under another skill
	SimilarityBar float64
	// ReuseSimilar reuses similar-tier questions verbatim. When false, their
	// slots are filled by fresh generation instead, falling back to the
	// similar candidates only when generation comes up short.
	ReuseSimilar bool
}

// Resolver assembles question lists for skills
type Resolver struct {
	store    Store
	embedder Embedder
	gen      Generator
	opts     Options
}

// NewResolver creates a Resolver
func NewResolver(store Store, embedder Embedder, gen Generator, opts Options) *Resolver {
	return &Resolver{store: store, embedder: embedder, gen: gen, opts: opts}
}

// similarCandidate is a foreign question that cleared the similarity bar
type similarCandidate struct {
	question   db.Question
	similarity float64
}

// Resolve assembles up to targetCount questions for a skill, consuming the
// three tiers in order. Generation is the last resort: once the skill has
// targetCount persisted questions, repeat calls return only direct results
// and never invoke the generator. A generation shortfall yields fewer than
// targetCount entries, which is a degraded but valid result.
func (r *Resolver) Resolve(ctx context.Context, skillID uuid.UUID, skillName string, targetCount int) ([]ResolvedQuestion, error) {
	if targetCount <= 0 {
		return []ResolvedQuestion{}, nil
	}

	// Tier 1: questions already stored under this skill, stable order
	direct, err := r.store.ListQuestionsBySkill(ctx, skillID)
	if err != nil {
		return nil, fmt.Errorf("failed to load direct questions: %w", err)
	}

	results := make([]ResolvedQuestion, 0, targetCount)
	for _, q := range direct {
		if len(results) == targetCount {
			break
		}
		results = append(results, ResolvedQuestion{
			ID:         q.ID,
			Text:       q.Text,
			Confidence: 1.0,
			Source:     SourceExisting,
		})
	}
	if len(results) == targetCount {
		return results, nil
	}

	// Tier 2: near-duplicate questions stored under other skills
	similar, err := r.similarCandidates(ctx, skillID, skillName, claimedIDs(results))
	if err != nil {
		return nil, err
	}
	if r.opts.ReuseSimilar {
		for _, c := range similar {
			if len(results) == targetCount {
				break
			}
			results = append(results, ResolvedQuestion{
				ID:         c.question.ID,
				Text:       c.question.Text,
				Confidence: c.similarity,
				Source:     SourceSimilar,
			})
		}
	}

	// Tier 3: generate exactly the remaining shortfall
	shortfall := targetCount - len(results)
	if shortfall > 0 {
		generated, err := r.generate(ctx, skillID, skillName, shortfall)
		if err != nil {
			return nil, err
		}
		results = append(results, generated...)
	}

	// Freshness policy off the reuse path: generation replaced the similar
	// candidates, but if it fell short, reuse them flagged for regeneration.
	if !r.opts.ReuseSimilar {
		for _, c := range similar {
			if len(results) == targetCount {
				break
			}
			results = append(results, ResolvedQuestion{
				ID:              c.question.ID,
				Text:            c.question.Text,
				Confidence:      c.similarity,
				Source:          SourceSimilar,
				NeedsGeneration: true,
			})
		}
	}

	return results, nil
}

// similarCandidates finds foreign questions within the similarity bar of the
// skill name, best first, excluding already-claimed question ids
func (r *Resolver) similarCandidates(ctx context.Context, skillID uuid.UUID, skillName string, claimed map[uuid.UUID]bool) ([]similarCandidate, error) {
	queryVec, err := r.embedder.EmbedText(ctx, skillName)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	foreign, err := r.store.ListQuestionsExcludingSkill(ctx, skillID)
	if err != nil {
		return nil, fmt.Errorf("failed to load foreign questions: %w", err)
	}

	var candidates []similarCandidate
	for _, q := range foreign {
		if claimed[q.ID] {
			continue
		}
		similarity := vectormath.CosineSimilarity(queryVec, q.Embedding)
		if similarity >= r.opts.SimilarityBar {
			candidates = append(candidates, similarCandidate{question: q, similarity: similarity})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].similarity > candidates[j].similarity
	})
	return candidates, nil
}

// generate invokes the LLM for count questions, persisting each with its
// embedding under the skill before returning it
func (r *Resolver) generate(ctx context.Context, skillID uuid.UUID, skillName string, count int) ([]ResolvedQuestion, error) {
	result, err := r.gen.GenerateQuestions(ctx, skillName, count)
	if err != nil {
		return nil, fmt.Errorf("failed to generate questions: %w", err)
	}

	texts := result.Items
	if len(texts) > count {
		texts = texts[:count]
	}

	out := make([]ResolvedQuestion, 0, len(texts))
	for _, text := range texts {
		embedding, err := r.embedder.EmbedText(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed generated question: %w", err)
		}
		question, err := r.store.CreateQuestion(ctx, skillID, text, embedding)
		if err != nil {
			return nil, fmt.Errorf("failed to persist generated question: %w", err)
		}
		out = append(out, ResolvedQuestion{
			ID:         question.ID,
			Text:       question.Text,
			Confidence: 1.0,
			Source:     SourceGenerated,
		})
	}
	return out, nil
}

func claimedIDs(results []ResolvedQuestion) map[uuid.UUID]bool {
	claimed := make(map[uuid.UUID]bool, len(results))
	for _, r := range results {
		claimed[r.ID] = true
	}
	return claimed
}
