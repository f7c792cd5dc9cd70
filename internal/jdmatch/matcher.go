// Package jdmatch finds previously stored job descriptions similar enough to
// reuse their full skill set, cross-validating embedding similarity against
// freshly extracted skills before committing to reuse.
package jdmatch

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/jd-analyzer/internal/db"
	"github.com/jonathan/jd-analyzer/internal/llm"
	"github.com/jonathan/jd-analyzer/internal/vectormath"
)

// Store is the persistence surface the matcher needs
type Store interface {
	ListJobDescriptions(ctx context.Context) ([]db.JobDescription, error)
	ListSkillsForJobDescription(ctx context.Context, jdID uuid.UUID) ([]db.JobDescriptionSkill, error)
}

// SkillExtractor is the LLM skill extraction capability
type SkillExtractor interface {
	ExtractSkills(ctx context.Context, jdText string) (llm.ListResult, error)
}

// Embedder computes embedding vectors for text
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// SkillValidator scores an extracted skill name against an existing skill
// name using text/alias evidence only
type SkillValidator interface {
	TextAliasConfidence(ctx context.Context, extractedName, existingName string) (float64, error)
}

// Options tunes the matcher
type Options struct {
	// SimilarityFloor is the minimum embedding similarity for a stored JD to
	// appear among the similar JDs at all
	SimilarityFloor float64
	// ReuseBar is the minimum top similarity to consider skill-set reuse
	ReuseBar float64
	// ValidationBar is the minimum text/alias confidence an extracted skill
	// needs against the candidate's skill set to confirm reuse
	ValidationBar float64
	// MaxSimilar caps the similar-JD list
	MaxSimilar int
}

// Result is the outcome of a reuse decision
type Result struct {
	// Reuse is true when the top candidate passed both the embedding bar and
	// the extracted-skill cross-validation
	Reuse bool
	// Skills is the candidate's skill set when Reuse is true
	Skills []db.JobDescriptionSkill
	// SimilarJDs lists stored JDs above the similarity floor, best first
	SimilarJDs []db.SimilarJDRef
	// ExtractedSkills carries the validation extraction so the caller can
	// avoid repeating it on the non-reuse path. Empty when extraction never ran.
	ExtractedSkills []string
}

// Matcher decides whether a new JD can reuse a stored JD's skill set
type Matcher struct {
	store     Store
	extractor SkillExtractor
	embedder  Embedder
	validator SkillValidator
	opts      Options
}

// NewMatcher creates a Matcher
func NewMatcher(store Store, extractor SkillExtractor, embedder Embedder, validator SkillValidator, opts Options) *Matcher {
	if opts.MaxSimilar <= 0 {
		opts.MaxSimilar = 3
	}
	return &Matcher{store: store, extractor: extractor, embedder: embedder, validator: validator, opts: opts}
}

// FindReusableSkillSet embeds jdText, ranks all stored JDs by similarity, and
// decides whether the best candidate's skill set can be reused. Embedding
// similarity alone is not enough: two JDs sharing boilerplate can be
// embedding-similar yet need different skills, so at least one freshly
// extracted skill must text/alias-match the candidate's set.
func (m *Matcher) FindReusableSkillSet(ctx context.Context, jdText string) (*Result, error) {
	queryVec, err := m.embedder.EmbedText(ctx, jdText)
	if err != nil {
		return nil, fmt.Errorf("failed to embed job description: %w", err)
	}

	stored, err := m.store.ListJobDescriptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stored job descriptions: %w", err)
	}

	similar := rankBySimilarity(queryVec, stored, m.opts.SimilarityFloor, m.opts.MaxSimilar)
	result := &Result{SimilarJDs: similar}

	if len(similar) == 0 || similar[0].Similarity < m.opts.ReuseBar {
		return result, nil
	}

	candidateSkills, err := m.store.ListSkillsForJobDescription(ctx, similar[0].ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate skill set: %w", err)
	}
	if len(candidateSkills) == 0 {
		return result, nil
	}

	extraction, err := m.extractor.ExtractSkills(ctx, jdText)
	if err != nil {
		return nil, fmt.Errorf("validation extraction failed: %w", err)
	}
	result.ExtractedSkills = extraction.Items

	validated, err := m.validate(ctx, extraction.Items, candidateSkills)
	if err != nil {
		return nil, err
	}
	if !validated {
		return result, nil
	}

	result.Reuse = true
	result.Skills = candidateSkills
	return result, nil
}

// validate checks whether any extracted skill clears the validation bar
// against any candidate skill
func (m *Matcher) validate(ctx context.Context, extracted []string, candidates []db.JobDescriptionSkill) (bool, error) {
	for _, name := range extracted {
		for _, candidate := range candidates {
			if candidate.Skill == nil {
				continue
			}
			confidence, err := m.validator.TextAliasConfidence(ctx, name, candidate.Skill.CanonicalName)
			if err != nil {
				return false, fmt.Errorf("skill validation failed: %w", err)
			}
			if confidence >= m.opts.ValidationBar {
				return true, nil
			}
		}
	}
	return false, nil
}

// rankBySimilarity scores stored JDs against the query vector, keeps those at
// or above the floor, sorts best first, and caps the list
func rankBySimilarity(queryVec []float32, stored []db.JobDescription, floor float64, max int) []db.SimilarJDRef {
	var refs []db.SimilarJDRef
	for _, jd := range stored {
		if len(jd.Embedding) == 0 {
			continue
		}
		similarity := vectormath.CosineSimilarity(queryVec, jd.Embedding)
		if similarity < floor {
			continue
		}
		ref := db.SimilarJDRef{ID: jd.ID, Similarity: similarity}
		if jd.Title != nil {
			ref.Title = *jd.Title
		}
		refs = append(refs, ref)
	}

	// Insertion sort keeps the list tiny and ordered best first.
	for i := 1; i < len(refs); i++ {
		for j := i; j > 0 && refs[j].Similarity > refs[j-1].Similarity; j-- {
			refs[j], refs[j-1] = refs[j-1], refs[j]
		}
	}

	if len(refs) > max {
		refs = refs[:max]
	}
	return refs
}
