package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Question Methods
// -----------------------------------------------------------------------------

// CreateQuestion inserts a question with its embedding under a skill. The
// embedding is computed once by the caller and never updated.
func (db *DB) CreateQuestion(ctx context.Context, skillID uuid.UUID, text string, embedding []float32) (*Question, error) {
	var q Question
	err := db.pool.QueryRow(ctx,
		`INSERT INTO questions (skill_id, text, embedding)
		 VALUES ($1, $2, $3)
		 RETURNING id, skill_id, text, embedding, created_at`,
		skillID, text, embedding,
	).Scan(&q.ID, &q.SkillID, &q.Text, &q.Embedding, &q.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}
	return &q, nil
}

// ListQuestionsBySkill retrieves all questions stored under a skill in stable
// insertion order, used as the tie-break for direct retrieval
func (db *DB) ListQuestionsBySkill(ctx context.Context, skillID uuid.UUID) ([]Question, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, skill_id, text, embedding, created_at
		 FROM questions WHERE skill_id = $1 ORDER BY created_at ASC, id ASC`,
		skillID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer rows.Close()

	var questions []Question
	for rows.Next() {
		var q Question
		if err := rows.Scan(&q.ID, &q.SkillID, &q.Text, &q.Embedding, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, nil
}

// ListQuestionsExcludingSkill retrieves questions stored under every skill
// except the given one, candidates for similarity-based reuse
func (db *DB) ListQuestionsExcludingSkill(ctx context.Context, skillID uuid.UUID) ([]Question, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, skill_id, text, embedding, created_at
		 FROM questions WHERE skill_id <> $1 ORDER BY created_at ASC, id ASC`,
		skillID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list foreign questions: %w", err)
	}
	defer rows.Close()

	var questions []Question
	for rows.Next() {
		var q Question
		if err := rows.Scan(&q.ID, &q.SkillID, &q.Text, &q.Embedding, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, nil
}
