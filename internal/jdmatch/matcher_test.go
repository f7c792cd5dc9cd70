package jdmatch

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/jd-analyzer/internal/db"
	"github.com/jonathan/jd-analyzer/internal/llm"
	"github.com/jonathan/jd-analyzer/internal/normalize"
)

type fakeStore struct {
	jds      []db.JobDescription
	skillsBy map[uuid.UUID][]db.JobDescriptionSkill
}

func (f *fakeStore) ListJobDescriptions(_ context.Context) ([]db.JobDescription, error) {
	return f.jds, nil
}

func (f *fakeStore) ListSkillsForJobDescription(_ context.Context, jdID uuid.UUID) ([]db.JobDescriptionSkill, error) {
	return f.skillsBy[jdID], nil
}

type fakeExtractor struct {
	items []string
	err   error
	calls int
}

func (f *fakeExtractor) ExtractSkills(_ context.Context, _ string) (llm.ListResult, error) {
	f.calls++
	if f.err != nil {
		return llm.ListResult{}, f.err
	}
	return llm.ListResult{Items: f.items}, nil
}

type fakeEmbedder struct {
	vectors map[string][]float32
}

func (f *fakeEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	if vec, ok := f.vectors[strings.ToLower(text)]; ok {
		return vec, nil
	}
	return []float32{0, 0, 1}, nil
}

// fakeValidator scores exact normalized matches 1.0 and everything else 0
type fakeValidator struct{}

func (fakeValidator) TextAliasConfidence(_ context.Context, extractedName, existingName string) (float64, error) {
	if normalize.Normalize(extractedName) == normalize.Normalize(existingName) {
		return 1.0, nil
	}
	return 0, nil
}

func defaultOptions() Options {
	return Options{SimilarityFloor: 0.5, ReuseBar: 0.95, ValidationBar: 0.9, MaxSimilar: 3}
}

func title(s string) *string { return &s }

func skillSet(jdID uuid.UUID, names ...string) []db.JobDescriptionSkill {
	out := make([]db.JobDescriptionSkill, 0, len(names))
	for _, name := range names {
		out = append(out, db.JobDescriptionSkill{
			ID:               uuid.New(),
			JobDescriptionID: jdID,
			SkillID:          uuid.New(),
			Confidence:       1.0,
			Source:           db.SkillSourceExisting,
			Skill:            &db.Skill{ID: uuid.New(), CanonicalName: name},
		})
	}
	return out
}

func TestFindReusableSkillSetEmptyCatalog(t *testing.T) {
	extractor := &fakeExtractor{}
	m := NewMatcher(&fakeStore{}, extractor, &fakeEmbedder{}, fakeValidator{}, defaultOptions())

	result, err := m.FindReusableSkillSet(context.Background(), "Some JD text")
	require.NoError(t, err)

	assert.False(t, result.Reuse)
	assert.Empty(t, result.SimilarJDs)
	assert.Zero(t, extractor.calls, "no candidate means no validation extraction")
}

func TestFindReusableSkillSetReuse(t *testing.T) {
	jdID := uuid.New()
	store := &fakeStore{
		jds: []db.JobDescription{
			{ID: jdID, Title: title("Backend Engineer"), Embedding: []float32{1, 0, 0}},
		},
		skillsBy: map[uuid.UUID][]db.JobDescriptionSkill{
			jdID: skillSet(jdID, "Go", "PostgreSQL"),
		},
	}
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"backend jd": {1, 0.01, 0},
	}}
	extractor := &fakeExtractor{items: []string{"Go", "Docker"}}
	m := NewMatcher(store, extractor, embedder, fakeValidator{}, defaultOptions())

	result, err := m.FindReusableSkillSet(context.Background(), "Backend JD")
	require.NoError(t, err)

	assert.True(t, result.Reuse)
	require.Len(t, result.Skills, 2)
	require.Len(t, result.SimilarJDs, 1)
	assert.Equal(t, jdID, result.SimilarJDs[0].ID)
	assert.Equal(t, "Backend Engineer", result.SimilarJDs[0].Title)
	assert.GreaterOrEqual(t, result.SimilarJDs[0].Similarity, 0.95)
	assert.Equal(t, []string{"Go", "Docker"}, result.ExtractedSkills)
}

func TestFindReusableSkillSetValidationRejects(t *testing.T) {
	jdID := uuid.New()
	store := &fakeStore{
		jds: []db.JobDescription{
			{ID: jdID, Embedding: []float32{1, 0, 0}},
		},
		skillsBy: map[uuid.UUID][]db.JobDescriptionSkill{
			jdID: skillSet(jdID, "Kubernetes", "Terraform"),
		},
	}
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"frontend jd": {1, 0, 0},
	}}
	// High embedding similarity but no skill overlap at all.
	extractor := &fakeExtractor{items: []string{"CSS", "Figma"}}
	m := NewMatcher(store, extractor, embedder, fakeValidator{}, defaultOptions())

	result, err := m.FindReusableSkillSet(context.Background(), "Frontend JD")
	require.NoError(t, err)

	assert.False(t, result.Reuse, "embedding similarity alone must not trigger reuse")
	assert.Empty(t, result.Skills)
	require.Len(t, result.SimilarJDs, 1, "rejected candidate still appears in the similar list")
	assert.Equal(t, []string{"CSS", "Figma"}, result.ExtractedSkills)
}

func TestFindReusableSkillSetBelowReuseBar(t *testing.T) {
	jdID := uuid.New()
	store := &fakeStore{
		jds: []db.JobDescription{
			// cos = 0.8: above the floor, below the reuse bar.
			{ID: jdID, Embedding: []float32{0.8, 0.6, 0}},
		},
	}
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"jd": {1, 0, 0},
	}}
	extractor := &fakeExtractor{}
	m := NewMatcher(store, extractor, embedder, fakeValidator{}, defaultOptions())

	result, err := m.FindReusableSkillSet(context.Background(), "JD")
	require.NoError(t, err)

	assert.False(t, result.Reuse)
	require.Len(t, result.SimilarJDs, 1)
	assert.InDelta(t, 0.8, result.SimilarJDs[0].Similarity, 1e-6)
	assert.Zero(t, extractor.calls, "no extraction below the reuse bar")
}

func TestFindReusableSkillSetFloorAndCap(t *testing.T) {
	mk := func(x, y float32) db.JobDescription {
		return db.JobDescription{ID: uuid.New(), Embedding: []float32{x, y, 0}}
	}
	store := &fakeStore{jds: []db.JobDescription{
		mk(0.6, 0.8),  // cos 0.6
		mk(1, 0.2),    // cos ~0.98
		mk(0.1, 1),    // cos ~0.10, below floor
		mk(0.8, 0.6),  // cos 0.8
		mk(0.7, 0.71), // cos ~0.70
	}}
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"jd": {1, 0, 0},
	}}
	// Top candidate has no skills attached, so reuse never confirms and the
	// extraction never runs.
	extractor := &fakeExtractor{}
	m := NewMatcher(store, extractor, embedder, fakeValidator{}, defaultOptions())

	result, err := m.FindReusableSkillSet(context.Background(), "JD")
	require.NoError(t, err)

	require.Len(t, result.SimilarJDs, 3, "capped at three")
	assert.Greater(t, result.SimilarJDs[0].Similarity, result.SimilarJDs[1].Similarity)
	assert.Greater(t, result.SimilarJDs[1].Similarity, result.SimilarJDs[2].Similarity)
	for _, ref := range result.SimilarJDs {
		assert.GreaterOrEqual(t, ref.Similarity, 0.5)
	}
	assert.False(t, result.Reuse)
	assert.Zero(t, extractor.calls)
}

func TestFindReusableSkillSetSkipsUnembeddedRows(t *testing.T) {
	store := &fakeStore{jds: []db.JobDescription{
		{ID: uuid.New()}, // no embedding stored
	}}
	m := NewMatcher(store, &fakeExtractor{}, &fakeEmbedder{}, fakeValidator{}, defaultOptions())

	result, err := m.FindReusableSkillSet(context.Background(), "JD")
	require.NoError(t, err)
	assert.Empty(t, result.SimilarJDs)
}

func TestFindReusableSkillSetExtractionErrorPropagates(t *testing.T) {
	jdID := uuid.New()
	store := &fakeStore{
		jds: []db.JobDescription{
			{ID: jdID, Embedding: []float32{1, 0, 0}},
		},
		skillsBy: map[uuid.UUID][]db.JobDescriptionSkill{
			jdID: skillSet(jdID, "Go"),
		},
	}
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"jd": {1, 0, 0},
	}}
	extractor := &fakeExtractor{err: fmt.Errorf("quota exceeded")}
	m := NewMatcher(store, extractor, embedder, fakeValidator{}, defaultOptions())

	_, err := m.FindReusableSkillSet(context.Background(), "JD")
	assert.Error(t, err)
}
