// Package matching resolves extracted skill names against the skill catalog,
// combining text, alias, and embedding similarity into one confidence score.
package matching

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/jd-analyzer/internal/db"
	"github.com/jonathan/jd-analyzer/internal/normalize"
	"github.com/jonathan/jd-analyzer/internal/vectormath"
)

// Match source constants
const (
	SourceExisting  = db.SkillSourceExisting
	SourceExtracted = db.SkillSourceExtracted
)

// Scoring constants for the text/alias pass
const (
	exactMatchConfidence = 1.0
	aliasMatchConfidence = 0.95
	substringWeight      = 0.9
	// semanticFloor is the minimum embedding similarity a candidate needs to
	// be considered at all
	semanticFloor = 0.8
	// semanticSkipBar: a text/alias match at or above this skips the
	// embedding pass entirely
	semanticSkipBar = 0.95
)

// Store is the persistence surface the matcher needs
type Store interface {
	ListSkills(ctx context.Context) ([]db.Skill, error)
	CreateSkill(ctx context.Context, canonicalName string) (*db.Skill, error)
	GetSkillByCanonicalName(ctx context.Context, name string) (*db.Skill, error)
}

// Embedder computes embedding vectors for text
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// AliasResolver resolves the alias set for a skill name
type AliasResolver interface {
	AliasesOf(ctx context.Context, name string) ([]string, error)
}

// MatchedSkill is the resolution of one extracted skill name
type MatchedSkill struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"` // existing | extracted
}

// Matcher resolves extracted skill names to catalog skills, creating new
// skills for unmatched names
type Matcher struct {
	store    Store
	embedder Embedder
	aliases  AliasResolver
	// matchBar is the minimum confidence to accept an existing skill
	matchBar float64
}

// NewMatcher creates a Matcher. matchBar is the acceptance threshold for
// existing-skill candidates.
func NewMatcher(store Store, embedder Embedder, aliases AliasResolver, matchBar float64) *Matcher {
	return &Matcher{store: store, embedder: embedder, aliases: aliases, matchBar: matchBar}
}

// MatchSkills resolves each extracted name to an existing skill or creates a
// new one, returning one result per input in input order. The catalog is
// loaded once per batch and name embeddings are memoized across the batch.
func (m *Matcher) MatchSkills(ctx context.Context, names []string) ([]MatchedSkill, error) {
	catalog, err := m.store.ListSkills(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load skill catalog: %w", err)
	}

	embedCache := make(map[string][]float32)
	results := make([]MatchedSkill, 0, len(names))

	for _, name := range names {
		matched, err := m.matchOne(ctx, name, catalog, embedCache)
		if err != nil {
			return nil, err
		}
		results = append(results, *matched)
	}

	return results, nil
}

// matchOne resolves a single extracted name against the loaded catalog
func (m *Matcher) matchOne(ctx context.Context, name string, catalog []db.Skill, embedCache map[string][]float32) (*MatchedSkill, error) {
	var bestMatch *db.Skill
	bestConfidence := 0.0

	// Text/alias pass
	aliasSet, err := m.aliasSetOf(ctx, name)
	if err != nil {
		return nil, err
	}
	for i := range catalog {
		score := textAliasScore(name, catalog[i].CanonicalName, aliasSet)
		if score > bestConfidence {
			bestMatch = &catalog[i]
			bestConfidence = score
		}
	}

	// Semantic pass, skipped when a near-perfect text/alias match exists
	if bestMatch == nil || bestConfidence < semanticSkipBar {
		queryVec, err := m.embedCached(ctx, name, embedCache)
		if err != nil {
			return nil, err
		}
		for i := range catalog {
			candidateVec, err := m.embedCached(ctx, catalog[i].CanonicalName, embedCache)
			if err != nil {
				return nil, err
			}
			similarity := vectormath.CosineSimilarity(queryVec, candidateVec)
			if similarity >= semanticFloor && similarity > bestConfidence {
				bestMatch = &catalog[i]
				bestConfidence = similarity
			}
		}
	}

	if bestMatch != nil && bestConfidence >= m.matchBar {
		return &MatchedSkill{
			ID:         bestMatch.ID,
			Name:       bestMatch.CanonicalName,
			Confidence: bestConfidence,
			Source:     SourceExisting,
		}, nil
	}

	return m.createSkill(ctx, name)
}

// createSkill inserts a new skill for an unmatched name. A uniqueness
// violation means a concurrent identical extraction won the race; re-read the
// existing row instead of failing.
func (m *Matcher) createSkill(ctx context.Context, name string) (*MatchedSkill, error) {
	skill, err := m.store.CreateSkill(ctx, name)
	if err != nil {
		if !db.IsUniqueViolation(err) {
			return nil, fmt.Errorf("failed to create skill %q: %w", name, err)
		}
		skill, err = m.store.GetSkillByCanonicalName(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to re-read skill %q after race: %w", name, err)
		}
		if skill == nil {
			return nil, fmt.Errorf("skill %q vanished after uniqueness conflict", name)
		}
	}

	return &MatchedSkill{
		ID:         skill.ID,
		Name:       skill.CanonicalName,
		Confidence: 1.0,
		Source:     SourceExtracted,
	}, nil
}

// TextAliasConfidence scores how well an extracted name matches an existing
// skill name using only text and alias evidence, in [0, 1]. Used by the
// matcher's own first pass and by JD-reuse validation.
func (m *Matcher) TextAliasConfidence(ctx context.Context, extractedName, existingName string) (float64, error) {
	aliasSet, err := m.aliasSetOf(ctx, extractedName)
	if err != nil {
		return 0, err
	}
	return textAliasScore(extractedName, existingName, aliasSet), nil
}

// aliasSetOf resolves the extracted name's aliases into a membership set.
// Alias resolution failures degrade to the normalized input alone; the
// semantic pass still gets a chance at the match.
func (m *Matcher) aliasSetOf(ctx context.Context, name string) (map[string]bool, error) {
	set := map[string]bool{normalize.Normalize(name): true}

	aliases, err := m.aliases.AliasesOf(ctx, name)
	if err != nil {
		log.Printf("Warning: alias resolution for %q failed: %v", name, err)
		return set, nil
	}
	for _, alias := range aliases {
		set[normalize.Normalize(alias)] = true
	}
	return set, nil
}

// textAliasScore computes the text/alias similarity between an extracted name
// and an existing skill name:
//   - 1.0 when normalized forms are identical
//   - 0.95 when the existing normalized name is in the extracted alias set
//   - (len(shorter)/len(longer)) * 0.9 when one normalized form contains the other
//   - 0 otherwise
func textAliasScore(extractedName, existingName string, aliasSet map[string]bool) float64 {
	extracted := normalize.Normalize(extractedName)
	existing := normalize.Normalize(existingName)
	if extracted == "" || existing == "" {
		return 0
	}

	if extracted == existing {
		return exactMatchConfidence
	}
	if aliasSet[existing] {
		return aliasMatchConfidence
	}
	if strings.Contains(extracted, existing) || strings.Contains(existing, extracted) {
		shorter, longer := len(extracted), len(existing)
		if shorter > longer {
			shorter, longer = longer, shorter
		}
		return float64(shorter) / float64(longer) * substringWeight
	}
	return 0
}

// embedCached memoizes embeddings per normalized name within one batch call
func (m *Matcher) embedCached(ctx context.Context, name string, cache map[string][]float32) ([]float32, error) {
	key := normalize.Normalize(name)
	if vec, ok := cache[key]; ok {
		return vec, nil
	}

	vec, err := m.embedder.EmbedText(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to embed %q: %w", name, err)
	}
	cache[key] = vec
	return vec, nil
}
