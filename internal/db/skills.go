package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// -----------------------------------------------------------------------------
// Skill and SkillAlias Methods
// -----------------------------------------------------------------------------

// CreateSkill inserts a new skill with the given canonical name. The name is
// stored verbatim; uniqueness is enforced case-insensitively, and a violation
// is returned to the caller for catch-and-reread handling.
func (db *DB) CreateSkill(ctx context.Context, canonicalName string) (*Skill, error) {
	var s Skill
	err := db.pool.QueryRow(ctx,
		`INSERT INTO skills (canonical_name)
		 VALUES ($1)
		 RETURNING id, canonical_name, created_at`,
		canonicalName,
	).Scan(&s.ID, &s.CanonicalName, &s.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create skill: %w", err)
	}
	return &s, nil
}

// GetSkillByCanonicalName retrieves a skill by canonical name, case-insensitive
func (db *DB) GetSkillByCanonicalName(ctx context.Context, name string) (*Skill, error) {
	var s Skill
	err := db.pool.QueryRow(ctx,
		`SELECT id, canonical_name, created_at
		 FROM skills WHERE LOWER(canonical_name) = LOWER($1)`,
		name,
	).Scan(&s.ID, &s.CanonicalName, &s.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get skill: %w", err)
	}
	return &s, nil
}

// GetSkillByNameOrAlias retrieves a skill whose canonical name or any stored
// alias matches the given string, case-insensitive
func (db *DB) GetSkillByNameOrAlias(ctx context.Context, name string) (*Skill, error) {
	var s Skill
	err := db.pool.QueryRow(ctx,
		`SELECT DISTINCT s.id, s.canonical_name, s.created_at
		 FROM skills s
		 LEFT JOIN skill_aliases a ON a.skill_id = s.id
		 WHERE LOWER(s.canonical_name) = LOWER($1) OR LOWER(a.alias) = LOWER($1)
		 LIMIT 1`,
		name,
	).Scan(&s.ID, &s.CanonicalName, &s.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get skill by name or alias: %w", err)
	}
	return &s, nil
}

// ListSkills retrieves the full skill catalog in creation order
func (db *DB) ListSkills(ctx context.Context) ([]Skill, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, canonical_name, created_at FROM skills ORDER BY created_at ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list skills: %w", err)
	}
	defer rows.Close()

	var skills []Skill
	for rows.Next() {
		var s Skill
		if err := rows.Scan(&s.ID, &s.CanonicalName, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan skill: %w", err)
		}
		skills = append(skills, s)
	}
	return skills, nil
}

// ListAliases retrieves all aliases stored under a skill
func (db *DB) ListAliases(ctx context.Context, skillID uuid.UUID) ([]SkillAlias, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, skill_id, alias, created_at
		 FROM skill_aliases WHERE skill_id = $1 ORDER BY created_at ASC, id ASC`,
		skillID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list aliases: %w", err)
	}
	defer rows.Close()

	var aliases []SkillAlias
	for rows.Next() {
		var a SkillAlias
		if err := rows.Scan(&a.ID, &a.SkillID, &a.Alias, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alias: %w", err)
		}
		aliases = append(aliases, a)
	}
	return aliases, nil
}

// UpsertAlias stores an alias under a skill, ignoring duplicates so that
// concurrent alias discovery never fails
func (db *DB) UpsertAlias(ctx context.Context, skillID uuid.UUID, alias string) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO skill_aliases (skill_id, alias)
		 VALUES ($1, $2)
		 ON CONFLICT (skill_id, alias) DO NOTHING`,
		skillID, alias,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert alias: %w", err)
	}
	return nil
}
