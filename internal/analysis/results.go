package analysis

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/jd-analyzer/internal/db"
)

// SkillResult pairs a JD-skill attachment with its resolved question list
type SkillResult struct {
	Skill     db.JobDescriptionSkill `json:"skill"`
	Questions []db.SkillQuestion     `json:"questions"`
}

// Result is the assembled outcome of a completed analysis
type Result struct {
	JobDescription *db.JobDescription         `json:"job_description"`
	Analysis       *db.JobDescriptionAnalysis `json:"analysis,omitempty"`
	Skills         []SkillResult              `json:"skills"`
}

// Status reports the lifecycle status and progress counters of a JD
type Status struct {
	ID             uuid.UUID `json:"id"`
	Status         string    `json:"status"`
	SkillsAnalyzed int       `json:"skills_analyzed"`
	TotalSkills    int       `json:"total_skills"`
}

// GetStatus returns the lifecycle status of a job description
func (o *Orchestrator) GetStatus(ctx context.Context, jdID uuid.UUID) (*Status, error) {
	jd, err := o.store.GetJobDescription(ctx, jdID)
	if err != nil {
		return nil, err
	}
	if jd == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, jdID)
	}
	return &Status{
		ID:             jd.ID,
		Status:         jd.Status,
		SkillsAnalyzed: jd.SkillsAnalyzed,
		TotalSkills:    jd.TotalSkills,
	}, nil
}

// GetResults assembles the skills and question lists of an analyzed JD. Only
// COMPLETED analyses have results; other statuses return an error naming the
// current status so callers can distinguish not-ready from not-found.
func (o *Orchestrator) GetResults(ctx context.Context, jdID uuid.UUID) (*Result, error) {
	jd, err := o.store.GetJobDescription(ctx, jdID)
	if err != nil {
		return nil, err
	}
	if jd == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, jdID)
	}
	if jd.Status != db.StatusCompleted {
		return nil, fmt.Errorf("job description %s is %s, results are only available once COMPLETED", jdID, jd.Status)
	}

	jdSkills, err := o.store.ListSkillsForJobDescription(ctx, jdID)
	if err != nil {
		return nil, err
	}

	result := &Result{JobDescription: jd, Skills: make([]SkillResult, 0, len(jdSkills))}
	for _, s := range jdSkills {
		qs, err := o.store.ListQuestionsForJobDescriptionSkill(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		result.Skills = append(result.Skills, SkillResult{Skill: s, Questions: qs})
	}

	analysis, err := o.store.GetAnalysis(ctx, jdID)
	if err != nil {
		return nil, err
	}
	result.Analysis = analysis

	return result, nil
}
