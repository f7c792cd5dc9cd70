package analysis

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/jd-analyzer/internal/db"
	"github.com/jonathan/jd-analyzer/internal/jdmatch"
	"github.com/jonathan/jd-analyzer/internal/llm"
	"github.com/jonathan/jd-analyzer/internal/matching"
	"github.com/jonathan/jd-analyzer/internal/questions"
)

// memStore is an in-memory Store for orchestration tests
type memStore struct {
	jds            map[uuid.UUID]*db.JobDescription
	jdSkills       map[uuid.UUID][]db.JobDescriptionSkill
	skillQuestions map[uuid.UUID][]db.SkillQuestion
	analyses       map[uuid.UUID]*db.JobDescriptionAnalysis

	startDenied bool
}

func newMemStore() *memStore {
	return &memStore{
		jds:            make(map[uuid.UUID]*db.JobDescription),
		jdSkills:       make(map[uuid.UUID][]db.JobDescriptionSkill),
		skillQuestions: make(map[uuid.UUID][]db.SkillQuestion),
		analyses:       make(map[uuid.UUID]*db.JobDescriptionAnalysis),
	}
}

func (s *memStore) CreateJobDescription(_ context.Context, title *string, content string, embedding []float32) (*db.JobDescription, error) {
	jd := &db.JobDescription{ID: uuid.New(), Title: title, Content: content, Embedding: embedding, Status: db.StatusPending}
	s.jds[jd.ID] = jd
	return jd, nil
}

func (s *memStore) GetJobDescription(_ context.Context, id uuid.UUID) (*db.JobDescription, error) {
	jd, ok := s.jds[id]
	if !ok {
		return nil, nil
	}
	copied := *jd
	return &copied, nil
}

func (s *memStore) TransitionToInProgress(_ context.Context, id uuid.UUID, totalSkills int) (bool, error) {
	if s.startDenied {
		return false, nil
	}
	jd := s.jds[id]
	if jd.Status != db.StatusPending {
		return false, nil
	}
	jd.Status = db.StatusInProgress
	jd.TotalSkills = totalSkills
	jd.SkillsAnalyzed = 0
	return true, nil
}

func (s *memStore) IncrementSkillsAnalyzed(_ context.Context, id uuid.UUID) error {
	jd := s.jds[id]
	if jd.SkillsAnalyzed < jd.TotalSkills {
		jd.SkillsAnalyzed++
	}
	return nil
}

func (s *memStore) UpdateJobDescriptionStatus(_ context.Context, id uuid.UUID, status string) error {
	s.jds[id].Status = status
	return nil
}

func (s *memStore) UpsertJobDescriptionSkill(_ context.Context, jdID, skillID uuid.UUID, confidence float64, source string) (*db.JobDescriptionSkill, error) {
	for i, existing := range s.jdSkills[jdID] {
		if existing.SkillID == skillID {
			s.jdSkills[jdID][i].Confidence = confidence
			s.jdSkills[jdID][i].Source = source
			return &s.jdSkills[jdID][i], nil
		}
	}
	jds := db.JobDescriptionSkill{ID: uuid.New(), JobDescriptionID: jdID, SkillID: skillID, Confidence: confidence, Source: source}
	s.jdSkills[jdID] = append(s.jdSkills[jdID], jds)
	return &jds, nil
}

func (s *memStore) MarkJobDescriptionSkillProcessed(_ context.Context, jdSkillID uuid.UUID, questionsCount int) error {
	for jdID := range s.jdSkills {
		for i := range s.jdSkills[jdID] {
			if s.jdSkills[jdID][i].ID == jdSkillID {
				s.jdSkills[jdID][i].IsProcessed = true
				s.jdSkills[jdID][i].QuestionsCount = questionsCount
			}
		}
	}
	return nil
}

func (s *memStore) ListSkillsForJobDescription(_ context.Context, jdID uuid.UUID) ([]db.JobDescriptionSkill, error) {
	return s.jdSkills[jdID], nil
}

func (s *memStore) CreateSkillQuestion(_ context.Context, jdSkillID, questionID uuid.UUID, source string, confidence float64) error {
	for _, existing := range s.skillQuestions[jdSkillID] {
		if existing.QuestionID == questionID {
			return nil
		}
	}
	s.skillQuestions[jdSkillID] = append(s.skillQuestions[jdSkillID], db.SkillQuestion{
		ID: uuid.New(), JobDescriptionSkillID: jdSkillID, QuestionID: questionID, Source: source, Confidence: confidence,
	})
	return nil
}

func (s *memStore) ListQuestionsForJobDescriptionSkill(_ context.Context, jdSkillID uuid.UUID) ([]db.SkillQuestion, error) {
	return s.skillQuestions[jdSkillID], nil
}

func (s *memStore) UpsertAnalysis(_ context.Context, jdID uuid.UUID, source, message string, similarJDs []db.SimilarJDRef) error {
	s.analyses[jdID] = &db.JobDescriptionAnalysis{
		ID: uuid.New(), JobDescriptionID: jdID, Source: source, Message: message, SimilarJDs: similarJDs,
	}
	return nil
}

func (s *memStore) GetAnalysis(_ context.Context, jdID uuid.UUID) (*db.JobDescriptionAnalysis, error) {
	return s.analyses[jdID], nil
}

type fakeEmbedder struct{ calls int }

func (f *fakeEmbedder) EmbedText(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	return []float32{1, 0, 0}, nil
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

type fakeMatcher struct {
	matched []matching.MatchedSkill
	calls   int
}

func (f *fakeMatcher) MatchSkills(_ context.Context, names []string) ([]matching.MatchedSkill, error) {
	f.calls++
	if f.matched != nil {
		return f.matched, nil
	}
	out := make([]matching.MatchedSkill, 0, len(names))
	for _, name := range names {
		out = append(out, matching.MatchedSkill{ID: uuid.New(), Name: name, Confidence: 1.0, Source: db.SkillSourceExtracted})
	}
	return out, nil
}

type fakeReuse struct {
	result *jdmatch.Result
	calls  int
}

func (f *fakeReuse) FindReusableSkillSet(_ context.Context, _ string) (*jdmatch.Result, error) {
	f.calls++
	if f.result != nil {
		return f.result, nil
	}
	return &jdmatch.Result{}, nil
}

type fakeResolver struct {
	perSkill int
	errFor   string
	calls    int
}

func (f *fakeResolver) Resolve(_ context.Context, _ uuid.UUID, skillName string, targetCount int) ([]questions.ResolvedQuestion, error) {
	f.calls++
	if skillName == f.errFor {
		return nil, fmt.Errorf("resolution blew up for %s", skillName)
	}
	n := f.perSkill
	if n == 0 {
		n = targetCount
	}
	out := make([]questions.ResolvedQuestion, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, questions.ResolvedQuestion{
			ID: uuid.New(), Text: fmt.Sprintf("%s question %d", skillName, i+1), Confidence: 1.0, Source: questions.SourceGenerated,
		})
	}
	return out, nil
}

type orchestratorFixture struct {
	store     *memStore
	embedder  *fakeEmbedder
	extractor *fakeExtractor
	matcher   *fakeMatcher
	reuse     *fakeReuse
	resolver  *fakeResolver
	events    []ProgressEvent
	orch      *Orchestrator
}

func newFixture(mutate func(*orchestratorFixture)) *orchestratorFixture {
	f := &orchestratorFixture{
		store:     newMemStore(),
		embedder:  &fakeEmbedder{},
		extractor: &fakeExtractor{items: []string{"Go", "PostgreSQL"}},
		matcher:   &fakeMatcher{},
		reuse:     &fakeReuse{},
		resolver:  &fakeResolver{},
	}
	if mutate != nil {
		mutate(f)
	}
	f.orch = NewOrchestrator(f.store, f.embedder, f.extractor, f.matcher, f.reuse, f.resolver, Options{
		TargetQuestions: 5,
		OnProgress:      func(e ProgressEvent) { f.events = append(f.events, e) },
	})
	return f
}

func (f *orchestratorFixture) submit(t *testing.T) *db.JobDescription {
	t.Helper()
	jd, err := f.orch.Submit(context.Background(), nil, "We need a backend engineer")
	require.NoError(t, err)
	return jd
}

func TestSubmitCreatesPendingWithEmbedding(t *testing.T) {
	f := newFixture(nil)

	jd := f.submit(t)

	assert.Equal(t, db.StatusPending, jd.Status)
	assert.NotEmpty(t, jd.Embedding)
	assert.Equal(t, 1, f.embedder.calls)
}

func TestSubmitRejectsEmptyContent(t *testing.T) {
	f := newFixture(nil)

	_, err := f.orch.Submit(context.Background(), nil, "")
	assert.Error(t, err)
}

func TestStartAnalysisNotFound(t *testing.T) {
	f := newFixture(nil)

	err := f.orch.StartAnalysis(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStartAnalysisFullRun(t *testing.T) {
	f := newFixture(nil)
	jd := f.submit(t)

	err := f.orch.StartAnalysis(context.Background(), jd.ID)
	require.NoError(t, err)

	stored := f.store.jds[jd.ID]
	assert.Equal(t, db.StatusCompleted, stored.Status)
	assert.Equal(t, 2, stored.TotalSkills)
	assert.Equal(t, 2, stored.SkillsAnalyzed)

	skills := f.store.jdSkills[jd.ID]
	require.Len(t, skills, 2)
	for _, s := range skills {
		assert.True(t, s.IsProcessed)
		assert.Equal(t, 5, s.QuestionsCount)
		assert.Len(t, f.store.skillQuestions[s.ID], 5)
	}

	analysis := f.store.analyses[jd.ID]
	require.NotNil(t, analysis)
	assert.Equal(t, SourceFullAnalysis, analysis.Source)

	// Final progress event reports completion.
	require.NotEmpty(t, f.events)
	last := f.events[len(f.events)-1]
	assert.Equal(t, StepCompleted, last.Step)
	assert.Equal(t, 2, last.SkillsAnalyzed)
}

func TestStartAnalysisIsIdempotent(t *testing.T) {
	f := newFixture(nil)
	jd := f.submit(t)

	require.NoError(t, f.orch.StartAnalysis(context.Background(), jd.ID))
	resolverCalls := f.resolver.calls

	// Second start is a no-op on the COMPLETED JD.
	require.NoError(t, f.orch.StartAnalysis(context.Background(), jd.ID))
	assert.Equal(t, resolverCalls, f.resolver.calls)
	assert.Equal(t, db.StatusCompleted, f.store.jds[jd.ID].Status)
}

func TestStartAnalysisReusePath(t *testing.T) {
	skillID := uuid.New()
	similarID := uuid.New()
	f := newFixture(func(f *orchestratorFixture) {
		f.reuse.result = &jdmatch.Result{
			Reuse: true,
			Skills: []db.JobDescriptionSkill{
				{SkillID: skillID, Skill: &db.Skill{ID: skillID, CanonicalName: "Go"}},
			},
			SimilarJDs: []db.SimilarJDRef{{ID: similarID, Similarity: 0.97}},
		}
	})
	jd := f.submit(t)

	err := f.orch.StartAnalysis(context.Background(), jd.ID)
	require.NoError(t, err)

	assert.Zero(t, f.extractor.calls, "reuse path must not extract skills")
	assert.Zero(t, f.matcher.calls, "reuse path must not run skill matching")

	skills := f.store.jdSkills[jd.ID]
	require.Len(t, skills, 1)
	assert.Equal(t, skillID, skills[0].SkillID)
	assert.Equal(t, db.SkillSourceExisting, skills[0].Source)
	assert.InDelta(t, 0.97, skills[0].Confidence, 1e-9)

	analysis := f.store.analyses[jd.ID]
	require.NotNil(t, analysis)
	assert.Equal(t, SourceReusedJD, analysis.Source)
	require.Len(t, analysis.SimilarJDs, 1)
	assert.Equal(t, similarID, analysis.SimilarJDs[0].ID)
}

func TestStartAnalysisReusesValidationExtraction(t *testing.T) {
	f := newFixture(func(f *orchestratorFixture) {
		// Reuse was rejected but its validation extraction is carried over.
		f.reuse.result = &jdmatch.Result{ExtractedSkills: []string{"Rust"}}
	})
	jd := f.submit(t)

	require.NoError(t, f.orch.StartAnalysis(context.Background(), jd.ID))

	assert.Zero(t, f.extractor.calls, "carried-over extraction must not be repeated")
	require.Len(t, f.store.jdSkills[jd.ID], 1)
}

func TestStartAnalysisPlanFailureMarksFailed(t *testing.T) {
	f := newFixture(func(f *orchestratorFixture) {
		f.extractor.err = fmt.Errorf("model unavailable")
	})
	jd := f.submit(t)

	err := f.orch.StartAnalysis(context.Background(), jd.ID)
	require.Error(t, err)

	assert.Equal(t, db.StatusFailed, f.store.jds[jd.ID].Status)
	assert.Zero(t, f.resolver.calls)
}

func TestStartAnalysisNoSkillsExtractedFails(t *testing.T) {
	f := newFixture(func(f *orchestratorFixture) {
		f.extractor.items = nil
	})
	jd := f.submit(t)

	err := f.orch.StartAnalysis(context.Background(), jd.ID)
	require.Error(t, err)
	assert.Equal(t, db.StatusFailed, f.store.jds[jd.ID].Status)
}

func TestStartAnalysisSkillFailureContinues(t *testing.T) {
	f := newFixture(func(f *orchestratorFixture) {
		f.resolver.errFor = "Go"
	})
	jd := f.submit(t)

	err := f.orch.StartAnalysis(context.Background(), jd.ID)
	require.NoError(t, err, "a single skill failure must not fail the run")

	stored := f.store.jds[jd.ID]
	assert.Equal(t, db.StatusCompleted, stored.Status)
	assert.Equal(t, 2, stored.SkillsAnalyzed, "failed skill still counts toward progress")

	// The failed skill is attached but never marked processed.
	var processed, unprocessed int
	for _, s := range f.store.jdSkills[jd.ID] {
		if s.IsProcessed {
			processed++
		} else {
			unprocessed++
		}
	}
	assert.Equal(t, 1, processed)
	assert.Equal(t, 1, unprocessed)
}

func TestStartAnalysisConcurrentStartYields(t *testing.T) {
	f := newFixture(func(f *orchestratorFixture) {
		f.store.startDenied = true
	})
	jd := f.submit(t)

	err := f.orch.StartAnalysis(context.Background(), jd.ID)
	require.NoError(t, err)

	assert.Zero(t, f.resolver.calls, "losing the start race must not process skills")
	assert.Equal(t, db.StatusPending, f.store.jds[jd.ID].Status)
}

func TestGetStatus(t *testing.T) {
	f := newFixture(nil)
	jd := f.submit(t)

	status, err := f.orch.GetStatus(context.Background(), jd.ID)
	require.NoError(t, err)
	assert.Equal(t, db.StatusPending, status.Status)

	_, err = f.orch.GetStatus(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetResults(t *testing.T) {
	f := newFixture(nil)
	jd := f.submit(t)

	// Not ready before completion.
	_, err := f.orch.GetResults(context.Background(), jd.ID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	require.NoError(t, f.orch.StartAnalysis(context.Background(), jd.ID))

	result, err := f.orch.GetResults(context.Background(), jd.ID)
	require.NoError(t, err)
	require.Len(t, result.Skills, 2)
	for _, s := range result.Skills {
		assert.Len(t, s.Questions, 5)
	}
	require.NotNil(t, result.Analysis)

	_, err = f.orch.GetResults(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
