package db

import (
	"time"

	"github.com/google/uuid"
)

// JobDescription is an analyzed input document with its lifecycle status and
// per-skill progress counters. SkillsAnalyzed never exceeds TotalSkills for a
// JD that is IN_PROGRESS or COMPLETED.
type JobDescription struct {
	ID             uuid.UUID `json:"id"`
	Title          *string   `json:"title,omitempty"`
	Content        string    `json:"content"`
	Embedding      []float32 `json:"-"` // large; not serialized
	Status         string    `json:"status"`
	SkillsAnalyzed int       `json:"skills_analyzed"`
	TotalSkills    int       `json:"total_skills"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// JobDescriptionSkill associates a skill with a JD, unique per (jd, skill)
type JobDescriptionSkill struct {
	ID               uuid.UUID `json:"id"`
	JobDescriptionID uuid.UUID `json:"job_description_id"`
	SkillID          uuid.UUID `json:"skill_id"`
	Confidence       float64   `json:"confidence"`
	Source           string    `json:"source"` // existing | extracted
	IsProcessed      bool      `json:"is_processed"`
	QuestionsCount   int       `json:"questions_count"`
	Skill            *Skill    `json:"skill,omitempty"` // joined
}

// SkillQuestion associates a question with a JD-skill pairing, unique per
// (jd_skill, question). Source describes the provenance of this question for
// this particular pairing, independent of the question's own history.
type SkillQuestion struct {
	ID                    uuid.UUID `json:"id"`
	JobDescriptionSkillID uuid.UUID `json:"job_description_skill_id"`
	QuestionID            uuid.UUID `json:"question_id"`
	Source                string    `json:"source"` // existing | similar | generated
	Confidence            float64   `json:"confidence"`
	Text                  string    `json:"text,omitempty"` // joined from questions
}

// SimilarJDRef is a reference to a similar stored JD, serialized into the
// analysis summary record.
type SimilarJDRef struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title,omitempty"`
	Similarity float64   `json:"similarity"`
}

// JobDescriptionAnalysis is the one-per-JD analysis summary, upserted
type JobDescriptionAnalysis struct {
	ID               uuid.UUID      `json:"id"`
	JobDescriptionID uuid.UUID      `json:"job_description_id"`
	Source           string         `json:"source"`
	Message          string         `json:"message"`
	SimilarJDs       []SimilarJDRef `json:"similar_jds,omitempty"`
	UpdatedAt        time.Time      `json:"updated_at"`
}
