package normalize

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/jonathan/jd-analyzer/internal/db"
	"github.com/jonathan/jd-analyzer/internal/llm"
)

// Store is the persistence surface the normalizer needs for alias lookup
type Store interface {
	GetSkillByNameOrAlias(ctx context.Context, name string) (*db.Skill, error)
	ListAliases(ctx context.Context, skillID uuid.UUID) ([]db.SkillAlias, error)
	UpsertAlias(ctx context.Context, skillID uuid.UUID, alias string) error
}

// AliasGenerator is the LLM capability used as the last resolution tier
type AliasGenerator interface {
	GenerateAliases(ctx context.Context, skillName string) (llm.ListResult, error)
}

// Normalizer resolves alias sets for skill names. The cache is passed in
// explicitly so callers control its scope.
type Normalizer struct {
	store Store
	gen   AliasGenerator
	cache *AliasCache
}

// New creates a Normalizer over the given store, alias generator, and cache
func New(store Store, gen AliasGenerator, cache *AliasCache) *Normalizer {
	return &Normalizer{store: store, gen: gen, cache: cache}
}

// AliasesOf resolves the alias set for a skill name. Resolution order:
// in-memory cache, persisted aliases, static ecosystem variants, LLM
// generation. Newly discovered aliases are persisted when a matching skill
// exists, so generation runs at most once per distinct skill name. The
// result always contains the normalized input.
func (n *Normalizer) AliasesOf(ctx context.Context, name string) ([]string, error) {
	normalized := Normalize(name)

	// Tier 1: in-memory cache
	if aliases, ok := n.cache.Get(normalized); ok {
		return aliases, nil
	}

	// Tier 2: persisted aliases via skill name/alias lookup
	skill, err := n.store.GetSkillByNameOrAlias(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("alias lookup failed: %w", err)
	}
	if skill != nil {
		stored, err := n.store.ListAliases(ctx, skill.ID)
		if err != nil {
			return nil, fmt.Errorf("alias lookup failed: %w", err)
		}
		if len(stored) > 0 {
			set := newAliasSet(normalized, name)
			set.add(skill.CanonicalName)
			for _, alias := range stored {
				set.add(alias.Alias)
			}
			aliases := set.values()
			n.cache.Put(normalized, aliases)
			return aliases, nil
		}
	}

	// Tier 3: static ecosystem variants
	if variants := staticAliasesFor(normalized); variants != nil {
		return n.adopt(ctx, skill, normalized, name, variants), nil
	}

	// Tier 4: LLM generation. Capabilities handle malformed output internally;
	// a hard transport error degrades to mechanical variants without caching,
	// so a later call can retry generation.
	result, err := n.gen.GenerateAliases(ctx, name)
	if err != nil {
		log.Printf("Warning: alias generation for %q failed: %v", name, err)
		set := newAliasSet(normalized, name)
		for _, variant := range llm.MechanicalVariants(name) {
			set.add(variant)
		}
		return set.values(), nil
	}

	return n.adopt(ctx, skill, normalized, name, result.Items), nil
}

// adopt persists newly discovered aliases (when a skill row exists), caches
// the assembled set, and returns it
func (n *Normalizer) adopt(ctx context.Context, skill *db.Skill, normalized, original string, discovered []string) []string {
	set := newAliasSet(normalized, original)
	if skill != nil {
		set.add(skill.CanonicalName)
	}

	for _, alias := range discovered {
		aliasNorm := Normalize(alias)
		if aliasNorm == "" {
			continue
		}
		set.add(aliasNorm)
		if skill != nil {
			if err := n.store.UpsertAlias(ctx, skill.ID, aliasNorm); err != nil {
				log.Printf("Warning: failed to persist alias %q: %v", aliasNorm, err)
			}
		}
	}

	aliases := set.values()
	n.cache.Put(normalized, aliases)
	return aliases
}

// aliasSet is an insertion-ordered deduplicating string set. Every entry is
// stored both raw and normalized so downstream matching can compare either form.
type aliasSet struct {
	seen  map[string]bool
	items []string
}

func newAliasSet(normalized, original string) *aliasSet {
	s := &aliasSet{seen: make(map[string]bool)}
	s.add(normalized)
	s.add(original)
	return s
}

func (s *aliasSet) add(value string) {
	for _, form := range []string{value, Normalize(value)} {
		if form == "" || s.seen[form] {
			continue
		}
		s.seen[form] = true
		s.items = append(s.items, form)
	}
}

func (s *aliasSet) values() []string {
	return s.items
}
