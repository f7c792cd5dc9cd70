package db

import (
	"time"

	"github.com/google/uuid"
)

// JobDescription status constants. Terminal states are StatusCompleted and
// StatusFailed; no transitions leave them.
const (
	StatusPending    = "PENDING"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// JobDescriptionSkill source constants: how a skill was attached to a JD
const (
	SkillSourceExisting  = "existing"
	SkillSourceExtracted = "extracted"
)

// SkillQuestion source constants: provenance of a question for one JD-skill pairing
const (
	QuestionSourceExisting  = "existing"
	QuestionSourceSimilar   = "similar"
	QuestionSourceGenerated = "generated"
)

// Skill is a canonical named competency in the catalog. CanonicalName is
// unique case-insensitively. Immutable once created except for alias relations.
type Skill struct {
	ID            uuid.UUID `json:"id"`
	CanonicalName string    `json:"canonical_name"`
	CreatedAt     time.Time `json:"created_at"`
}

// SkillAlias is an alternate normalized string form resolving to a Skill.
// Unique per (skill_id, alias).
type SkillAlias struct {
	ID        uuid.UUID `json:"id"`
	SkillID   uuid.UUID `json:"skill_id"`
	Alias     string    `json:"alias"`
	CreatedAt time.Time `json:"created_at"`
}

// Question is an interview question stored under one skill. The embedding is
// computed once at creation and immutable thereafter.
type Question struct {
	ID        uuid.UUID `json:"id"`
	SkillID   uuid.UUID `json:"skill_id"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"-"` // large; not serialized
	CreatedAt time.Time `json:"created_at"`
}
