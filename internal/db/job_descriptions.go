package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// -----------------------------------------------------------------------------
// JobDescription Methods
// -----------------------------------------------------------------------------

// CreateJobDescription inserts a new JD with its embedding in PENDING status
func (db *DB) CreateJobDescription(ctx context.Context, title *string, content string, embedding []float32) (*JobDescription, error) {
	var jd JobDescription
	err := db.pool.QueryRow(ctx,
		`INSERT INTO job_descriptions (title, content, embedding, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, title, content, embedding, status, skills_analyzed, total_skills, created_at, updated_at`,
		title, content, embedding, StatusPending,
	).Scan(&jd.ID, &jd.Title, &jd.Content, &jd.Embedding, &jd.Status,
		&jd.SkillsAnalyzed, &jd.TotalSkills, &jd.CreatedAt, &jd.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create job description: %w", err)
	}
	return &jd, nil
}

// GetJobDescription retrieves a JD by ID
func (db *DB) GetJobDescription(ctx context.Context, id uuid.UUID) (*JobDescription, error) {
	var jd JobDescription
	err := db.pool.QueryRow(ctx,
		`SELECT id, title, content, embedding, status, skills_analyzed, total_skills, created_at, updated_at
		 FROM job_descriptions WHERE id = $1`,
		id,
	).Scan(&jd.ID, &jd.Title, &jd.Content, &jd.Embedding, &jd.Status,
		&jd.SkillsAnalyzed, &jd.TotalSkills, &jd.CreatedAt, &jd.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job description: %w", err)
	}
	return &jd, nil
}

// ListJobDescriptions retrieves all stored JDs with their embeddings.
// Similarity search computes scores in-process over the full table.
func (db *DB) ListJobDescriptions(ctx context.Context) ([]JobDescription, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, title, content, embedding, status, skills_analyzed, total_skills, created_at, updated_at
		 FROM job_descriptions ORDER BY created_at ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list job descriptions: %w", err)
	}
	defer rows.Close()

	var jds []JobDescription
	for rows.Next() {
		var jd JobDescription
		if err := rows.Scan(&jd.ID, &jd.Title, &jd.Content, &jd.Embedding, &jd.Status,
			&jd.SkillsAnalyzed, &jd.TotalSkills, &jd.CreatedAt, &jd.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job description: %w", err)
		}
		jds = append(jds, jd)
	}
	return jds, nil
}

// TransitionToInProgress moves a PENDING JD to IN_PROGRESS and fixes its
// total skill count. Returns false when the JD was not PENDING, which lets
// concurrent start requests degrade to a status report instead of a restart.
func (db *DB) TransitionToInProgress(ctx context.Context, id uuid.UUID, totalSkills int) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE job_descriptions
		 SET status = $1, total_skills = $2, skills_analyzed = 0, updated_at = NOW()
		 WHERE id = $3 AND status = $4`,
		StatusInProgress, totalSkills, id, StatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("failed to transition job description: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// IncrementSkillsAnalyzed bumps the progress counter by one. The counter is
// only ever incremented, never reset, while a JD is IN_PROGRESS.
func (db *DB) IncrementSkillsAnalyzed(ctx context.Context, id uuid.UUID) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE job_descriptions
		 SET skills_analyzed = LEAST(skills_analyzed + 1, total_skills), updated_at = NOW()
		 WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to increment progress: %w", err)
	}
	return nil
}

// UpdateJobDescriptionStatus sets the lifecycle status of a JD
func (db *DB) UpdateJobDescriptionStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE job_descriptions SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update job description status: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Association Methods
// -----------------------------------------------------------------------------

// UpsertJobDescriptionSkill attaches a skill to a JD. The (jd, skill) pair is
// unique; re-attaching updates confidence and source.
func (db *DB) UpsertJobDescriptionSkill(ctx context.Context, jdID, skillID uuid.UUID, confidence float64, source string) (*JobDescriptionSkill, error) {
	var jds JobDescriptionSkill
	err := db.pool.QueryRow(ctx,
		`INSERT INTO job_description_skills (job_description_id, skill_id, confidence, source)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (job_description_id, skill_id)
		 DO UPDATE SET confidence = $3, source = $4
		 RETURNING id, job_description_id, skill_id, confidence, source, is_processed, questions_count`,
		jdID, skillID, confidence, source,
	).Scan(&jds.ID, &jds.JobDescriptionID, &jds.SkillID, &jds.Confidence,
		&jds.Source, &jds.IsProcessed, &jds.QuestionsCount)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert job description skill: %w", err)
	}
	return &jds, nil
}

// MarkJobDescriptionSkillProcessed records that questions were resolved for a JD-skill pairing
func (db *DB) MarkJobDescriptionSkillProcessed(ctx context.Context, jdSkillID uuid.UUID, questionsCount int) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE job_description_skills SET is_processed = TRUE, questions_count = $1 WHERE id = $2`,
		questionsCount, jdSkillID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark skill processed: %w", err)
	}
	return nil
}

// ListSkillsForJobDescription retrieves the skills attached to a JD with the
// catalog skill joined in
func (db *DB) ListSkillsForJobDescription(ctx context.Context, jdID uuid.UUID) ([]JobDescriptionSkill, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT jds.id, jds.job_description_id, jds.skill_id, jds.confidence, jds.source,
		        jds.is_processed, jds.questions_count, s.id, s.canonical_name, s.created_at
		 FROM job_description_skills jds
		 JOIN skills s ON s.id = jds.skill_id
		 WHERE jds.job_description_id = $1
		 ORDER BY s.canonical_name ASC`,
		jdID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list job description skills: %w", err)
	}
	defer rows.Close()

	var out []JobDescriptionSkill
	for rows.Next() {
		var jds JobDescriptionSkill
		var s Skill
		if err := rows.Scan(&jds.ID, &jds.JobDescriptionID, &jds.SkillID, &jds.Confidence,
			&jds.Source, &jds.IsProcessed, &jds.QuestionsCount,
			&s.ID, &s.CanonicalName, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job description skill: %w", err)
		}
		jds.Skill = &s
		out = append(out, jds)
	}
	return out, nil
}

// CreateSkillQuestion links a question to a JD-skill pairing, ignoring
// duplicates so re-resolution never fails on the uniqueness constraint
func (db *DB) CreateSkillQuestion(ctx context.Context, jdSkillID, questionID uuid.UUID, source string, confidence float64) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO skill_questions (job_description_skill_id, question_id, source, confidence)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (job_description_skill_id, question_id) DO NOTHING`,
		jdSkillID, questionID, source, confidence,
	)
	if err != nil {
		return fmt.Errorf("failed to create skill question: %w", err)
	}
	return nil
}

// ListQuestionsForJobDescriptionSkill retrieves the questions linked to a
// JD-skill pairing with their text joined in
func (db *DB) ListQuestionsForJobDescriptionSkill(ctx context.Context, jdSkillID uuid.UUID) ([]SkillQuestion, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT sq.id, sq.job_description_skill_id, sq.question_id, sq.source, sq.confidence, q.text
		 FROM skill_questions sq
		 JOIN questions q ON q.id = sq.question_id
		 WHERE sq.job_description_skill_id = $1
		 ORDER BY q.created_at ASC, q.id ASC`,
		jdSkillID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list skill questions: %w", err)
	}
	defer rows.Close()

	var out []SkillQuestion
	for rows.Next() {
		var sq SkillQuestion
		if err := rows.Scan(&sq.ID, &sq.JobDescriptionSkillID, &sq.QuestionID,
			&sq.Source, &sq.Confidence, &sq.Text); err != nil {
			return nil, fmt.Errorf("failed to scan skill question: %w", err)
		}
		out = append(out, sq)
	}
	return out, nil
}

// UpsertAnalysis stores the one-per-JD analysis summary record
func (db *DB) UpsertAnalysis(ctx context.Context, jdID uuid.UUID, source, message string, similarJDs []SimilarJDRef) error {
	similarJSON, err := json.Marshal(similarJDs)
	if err != nil {
		return fmt.Errorf("failed to marshal similar JDs: %w", err)
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO job_description_analyses (job_description_id, source, message, similar_jds)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (job_description_id)
		 DO UPDATE SET source = $2, message = $3, similar_jds = $4, updated_at = NOW()`,
		jdID, source, message, similarJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert analysis: %w", err)
	}
	return nil
}

// GetAnalysis retrieves the analysis summary for a JD
func (db *DB) GetAnalysis(ctx context.Context, jdID uuid.UUID) (*JobDescriptionAnalysis, error) {
	var a JobDescriptionAnalysis
	var similarJSON []byte
	err := db.pool.QueryRow(ctx,
		`SELECT id, job_description_id, source, message, similar_jds, updated_at
		 FROM job_description_analyses WHERE job_description_id = $1`,
		jdID,
	).Scan(&a.ID, &a.JobDescriptionID, &a.Source, &a.Message, &similarJSON, &a.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}

	if similarJSON != nil {
		_ = json.Unmarshal(similarJSON, &a.SimilarJDs)
	}

	return &a, nil
}
