// Package analysis provides the high-level orchestration for the job
// description analysis process: reuse detection, skill matching, and question
// resolution, with lifecycle status and per-skill progress tracked in the
// database.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/jonathan/jd-analyzer/internal/db"
	"github.com/jonathan/jd-analyzer/internal/jdmatch"
	"github.com/jonathan/jd-analyzer/internal/llm"
	"github.com/jonathan/jd-analyzer/internal/matching"
	"github.com/jonathan/jd-analyzer/internal/questions"
)

// ErrNotFound is returned when the referenced job description does not exist
var ErrNotFound = errors.New("job description not found")

// Analysis source values recorded in the analysis summary
const (
	SourceReusedJD     = "reused_existing_jd"
	SourceFullAnalysis = "full_analysis"
)

// Progress step identifiers
const (
	StepSubmitted = "submitted"
	StepMatching  = "skill_matching"
	StepSkill     = "skill_processed"
	StepCompleted = "completed"
	StepFailed    = "failed"
)

// ProgressEvent represents a progress update during an analysis run
type ProgressEvent struct {
	Step           string `json:"step"`
	Message        string `json:"message"`
	SkillsAnalyzed int    `json:"skills_analyzed"`
	TotalSkills    int    `json:"total_skills"`
	Content        any    `json:"content,omitempty"`
}

// ProgressCallback is called when analysis progress occurs
type ProgressCallback func(event ProgressEvent)

// ExtractedSkills is the Content payload of the extraction progress event
type ExtractedSkills struct {
	Names        []string `json:"names"`
	UsedFallback bool     `json:"used_fallback,omitempty"`
}

// Store is the persistence surface the orchestrator needs
type Store interface {
	CreateJobDescription(ctx context.Context, title *string, content string, embedding []float32) (*db.JobDescription, error)
	GetJobDescription(ctx context.Context, id uuid.UUID) (*db.JobDescription, error)
	TransitionToInProgress(ctx context.Context, id uuid.UUID, totalSkills int) (bool, error)
	IncrementSkillsAnalyzed(ctx context.Context, id uuid.UUID) error
	UpdateJobDescriptionStatus(ctx context.Context, id uuid.UUID, status string) error
	UpsertJobDescriptionSkill(ctx context.Context, jdID, skillID uuid.UUID, confidence float64, source string) (*db.JobDescriptionSkill, error)
	MarkJobDescriptionSkillProcessed(ctx context.Context, jdSkillID uuid.UUID, questionsCount int) error
	ListSkillsForJobDescription(ctx context.Context, jdID uuid.UUID) ([]db.JobDescriptionSkill, error)
	CreateSkillQuestion(ctx context.Context, jdSkillID, questionID uuid.UUID, source string, confidence float64) error
	ListQuestionsForJobDescriptionSkill(ctx context.Context, jdSkillID uuid.UUID) ([]db.SkillQuestion, error)
	UpsertAnalysis(ctx context.Context, jdID uuid.UUID, source, message string, similarJDs []db.SimilarJDRef) error
	GetAnalysis(ctx context.Context, jdID uuid.UUID) (*db.JobDescriptionAnalysis, error)
}

// Embedder computes embedding vectors for text
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// SkillExtractor is the LLM skill extraction capability
type SkillExtractor interface {
	ExtractSkills(ctx context.Context, jdText string) (llm.ListResult, error)
}

// SkillMatcher resolves extracted skill names against the skill catalog
type SkillMatcher interface {
	MatchSkills(ctx context.Context, names []string) ([]matching.MatchedSkill, error)
}

// ReuseMatcher decides whether a stored JD's skill set can be reused
type ReuseMatcher interface {
	FindReusableSkillSet(ctx context.Context, jdText string) (*jdmatch.Result, error)
}

// QuestionResolver assembles question lists for skills
type QuestionResolver interface {
	Resolve(ctx context.Context, skillID uuid.UUID, skillName string, targetCount int) ([]questions.ResolvedQuestion, error)
}

// Options holds configuration for running analyses
type Options struct {
	// TargetQuestions is the question list size resolved per skill
	TargetQuestions int
	// OnProgress is called after each analysis step when set
	OnProgress ProgressCallback
}

// Orchestrator drives the analysis lifecycle for job descriptions
type Orchestrator struct {
	store     Store
	embedder  Embedder
	extractor SkillExtractor
	matcher   SkillMatcher
	reuse     ReuseMatcher
	resolver  QuestionResolver
	opts      Options
}

// NewOrchestrator creates an Orchestrator
func NewOrchestrator(store Store, embedder Embedder, extractor SkillExtractor, matcher SkillMatcher, reuse ReuseMatcher, resolver QuestionResolver, opts Options) *Orchestrator {
	return &Orchestrator{
		store:     store,
		embedder:  embedder,
		extractor: extractor,
		matcher:   matcher,
		reuse:     reuse,
		resolver:  resolver,
		opts:      opts,
	}
}

// plannedSkill is one skill the analysis loop will process
type plannedSkill struct {
	skillID    uuid.UUID
	name       string
	confidence float64
	source     string
}

// Submit stores a new job description with its embedding in PENDING status.
// Analysis does not start until StartAnalysis is called.
func (o *Orchestrator) Submit(ctx context.Context, title *string, content string) (*db.JobDescription, error) {
	if content == "" {
		return nil, fmt.Errorf("job description content is empty")
	}

	embedding, err := o.embedder.EmbedText(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("failed to embed job description: %w", err)
	}

	jd, err := o.store.CreateJobDescription(ctx, title, content, embedding)
	if err != nil {
		return nil, err
	}

	o.emit(ProgressEvent{Step: StepSubmitted, Message: fmt.Sprintf("Job description %s submitted", jd.ID)})
	return jd, nil
}

// StartAnalysis runs the full analysis for a PENDING job description. Calling
// it for a JD in any other status is a no-op, which makes concurrent or
// repeated start requests safe. Individual skill failures are logged and
// skipped; the run only fails outright when the skill plan itself cannot be
// built.
func (o *Orchestrator) StartAnalysis(ctx context.Context, jdID uuid.UUID) error {
	jd, err := o.store.GetJobDescription(ctx, jdID)
	if err != nil {
		return err
	}
	if jd == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, jdID)
	}
	if jd.Status != db.StatusPending {
		return nil
	}

	planned, reuseResult, err := o.planSkills(ctx, jd)
	if err != nil {
		if statusErr := o.store.UpdateJobDescriptionStatus(ctx, jdID, db.StatusFailed); statusErr != nil {
			log.Printf("Warning: failed to mark job description %s FAILED: %v", jdID, statusErr)
		}
		o.emit(ProgressEvent{Step: StepFailed, Message: err.Error()})
		return err
	}

	started, err := o.store.TransitionToInProgress(ctx, jdID, len(planned))
	if err != nil {
		return err
	}
	if !started {
		// Another caller won the start race; their run owns the lifecycle.
		return nil
	}

	source := SourceFullAnalysis
	message := fmt.Sprintf("Analyzed %d skills", len(planned))
	if reuseResult.Reuse {
		source = SourceReusedJD
		message = fmt.Sprintf("Reused %d skills from similar job description %s",
			len(planned), reuseResult.SimilarJDs[0].ID)
	}
	o.emit(ProgressEvent{Step: StepMatching, Message: message, TotalSkills: len(planned), Content: reuseResult.SimilarJDs})

	analyzed := 0
	for _, skill := range planned {
		if err := o.processSkill(ctx, jdID, skill); err != nil {
			log.Printf("Warning: skill %q failed for job description %s: %v", skill.name, jdID, err)
		}
		analyzed++
		if err := o.store.IncrementSkillsAnalyzed(ctx, jdID); err != nil {
			log.Printf("Warning: failed to record progress for job description %s: %v", jdID, err)
		}
		o.emit(ProgressEvent{
			Step:           StepSkill,
			Message:        fmt.Sprintf("Processed skill %q", skill.name),
			SkillsAnalyzed: analyzed,
			TotalSkills:    len(planned),
		})
	}

	if err := o.store.UpsertAnalysis(ctx, jdID, source, message, reuseResult.SimilarJDs); err != nil {
		log.Printf("Warning: failed to store analysis summary for %s: %v", jdID, err)
	}
	if err := o.store.UpdateJobDescriptionStatus(ctx, jdID, db.StatusCompleted); err != nil {
		return fmt.Errorf("failed to complete job description %s: %w", jdID, err)
	}

	o.emit(ProgressEvent{
		Step:           StepCompleted,
		Message:        "Analysis completed",
		SkillsAnalyzed: analyzed,
		TotalSkills:    len(planned),
	})
	return nil
}

// planSkills builds the list of skills the analysis loop will process, either
// by reusing a similar stored JD's skill set or by extracting and matching
// skills from scratch.
func (o *Orchestrator) planSkills(ctx context.Context, jd *db.JobDescription) ([]plannedSkill, *jdmatch.Result, error) {
	reuseResult, err := o.reuse.FindReusableSkillSet(ctx, jd.Content)
	if err != nil {
		return nil, nil, fmt.Errorf("reuse detection failed: %w", err)
	}

	if reuseResult.Reuse {
		topSimilarity := reuseResult.SimilarJDs[0].Similarity
		planned := make([]plannedSkill, 0, len(reuseResult.Skills))
		for _, s := range reuseResult.Skills {
			name := ""
			if s.Skill != nil {
				name = s.Skill.CanonicalName
			}
			planned = append(planned, plannedSkill{
				skillID:    s.SkillID,
				name:       name,
				confidence: topSimilarity,
				source:     db.SkillSourceExisting,
			})
		}
		return planned, reuseResult, nil
	}

	// The reuse check may already have extracted skills for validation; do not
	// repeat the call.
	extracted := reuseResult.ExtractedSkills
	usedFallback := false
	if len(extracted) == 0 {
		result, err := o.extractor.ExtractSkills(ctx, jd.Content)
		if err != nil {
			return nil, nil, fmt.Errorf("skill extraction failed: %w", err)
		}
		if result.Fallback {
			log.Printf("Warning: skill extraction for %s used the line-parse fallback", jd.ID)
		}
		extracted = result.Items
		usedFallback = result.Fallback
	}
	if len(extracted) == 0 {
		return nil, nil, fmt.Errorf("no skills extracted from job description %s", jd.ID)
	}
	o.emit(ProgressEvent{
		Step:    StepMatching,
		Message: fmt.Sprintf("Extracted %d candidate skills", len(extracted)),
		Content: ExtractedSkills{Names: extracted, UsedFallback: usedFallback},
	})

	matched, err := o.matcher.MatchSkills(ctx, extracted)
	if err != nil {
		return nil, nil, fmt.Errorf("skill matching failed: %w", err)
	}
	o.emit(ProgressEvent{
		Step:    StepMatching,
		Message: fmt.Sprintf("Matched %d skills against the catalog", len(matched)),
		Content: matched,
	})

	planned := make([]plannedSkill, 0, len(matched))
	for _, m := range matched {
		planned = append(planned, plannedSkill{
			skillID:    m.ID,
			name:       m.Name,
			confidence: m.Confidence,
			source:     m.Source,
		})
	}
	return planned, reuseResult, nil
}

// processSkill attaches one skill to the JD, resolves its question list, and
// links each question to the pairing
func (o *Orchestrator) processSkill(ctx context.Context, jdID uuid.UUID, skill plannedSkill) error {
	jdSkill, err := o.store.UpsertJobDescriptionSkill(ctx, jdID, skill.skillID, skill.confidence, skill.source)
	if err != nil {
		return fmt.Errorf("failed to attach skill: %w", err)
	}

	resolved, err := o.resolver.Resolve(ctx, skill.skillID, skill.name, o.opts.TargetQuestions)
	if err != nil {
		return fmt.Errorf("failed to resolve questions: %w", err)
	}
	if len(resolved) < o.opts.TargetQuestions {
		log.Printf("Warning: only %d of %d questions resolved for skill %q",
			len(resolved), o.opts.TargetQuestions, skill.name)
	}

	for _, q := range resolved {
		if err := o.store.CreateSkillQuestion(ctx, jdSkill.ID, q.ID, q.Source, q.Confidence); err != nil {
			log.Printf("Warning: failed to link question %s to skill %q: %v", q.ID, skill.name, err)
		}
	}

	if err := o.store.MarkJobDescriptionSkillProcessed(ctx, jdSkill.ID, len(resolved)); err != nil {
		return fmt.Errorf("failed to mark skill processed: %w", err)
	}
	return nil
}

// emit calls the progress callback if configured
func (o *Orchestrator) emit(event ProgressEvent) {
	if o.opts.OnProgress != nil {
		o.opts.OnProgress(event)
	}
}
