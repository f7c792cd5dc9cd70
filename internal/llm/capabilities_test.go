package llm

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient returns canned responses and records calls.
type fakeClient struct {
	response string
	err      error
	calls    int
}

func (f *fakeClient) GenerateContent(_ context.Context, _ string, _ ModelTier) (string, error) {
	f.calls++
	return f.response, f.err
}

func (f *fakeClient) GenerateJSON(_ context.Context, _ string, _ ModelTier) (string, error) {
	f.calls++
	return f.response, f.err
}

func (f *fakeClient) EmbedText(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

func (f *fakeClient) GetModel(_ ModelTier) string { return "fake-model" }
func (f *fakeClient) Close() error                { return nil }

func TestExtractSkillsParsed(t *testing.T) {
	client := &fakeClient{response: `{"skills": ["Go", "PostgreSQL", "Kubernetes"]}`}
	caps := NewCapabilities(client)

	result, err := caps.ExtractSkills(context.Background(), "some jd text")
	require.NoError(t, err)

	assert.Equal(t, []string{"Go", "PostgreSQL", "Kubernetes"}, result.Items)
	assert.False(t, result.Fallback)
}

func TestExtractSkillsFallbackOnMalformedJSON(t *testing.T) {
	client := &fakeClient{response: "Go\nPostgreSQL\nKubernetes"}
	caps := NewCapabilities(client)

	result, err := caps.ExtractSkills(context.Background(), "some jd text")
	require.NoError(t, err)

	assert.True(t, result.Fallback)
	assert.Equal(t, []string{"Go", "PostgreSQL", "Kubernetes"}, result.Items)
}

func TestExtractSkillsFallbackOnSchemaMismatch(t *testing.T) {
	// Valid JSON, wrong shape: must take the fallback branch, not error.
	client := &fakeClient{response: `{"skills": "Go"}`}
	caps := NewCapabilities(client)

	result, err := caps.ExtractSkills(context.Background(), "some jd text")
	require.NoError(t, err)

	assert.True(t, result.Fallback)
}

func TestExtractSkillsCapped(t *testing.T) {
	skills := `{"skills": [`
	for i := 0; i < 25; i++ {
		if i > 0 {
			skills += ","
		}
		skills += fmt.Sprintf(`"Skill%d"`, i)
	}
	skills += `]}`
	caps := NewCapabilities(&fakeClient{response: skills})

	result, err := caps.ExtractSkills(context.Background(), "text")
	require.NoError(t, err)

	assert.Len(t, result.Items, MaxExtractedSkills)
}

func TestExtractSkillsPropagatesClientError(t *testing.T) {
	caps := NewCapabilities(&fakeClient{err: fmt.Errorf("quota exceeded")})

	_, err := caps.ExtractSkills(context.Background(), "text")
	assert.Error(t, err)
}

func TestGenerateQuestionsParsed(t *testing.T) {
	client := &fakeClient{response: `{"questions": ["Q1?", "Q2?", "Q3?"]}`}
	caps := NewCapabilities(client)

	result, err := caps.GenerateQuestions(context.Background(), "Go", 2)
	require.NoError(t, err)

	// Capped to the requested count.
	assert.Equal(t, []string{"Q1?", "Q2?"}, result.Items)
	assert.False(t, result.Fallback)
}

func TestGenerateQuestionsFallback(t *testing.T) {
	client := &fakeClient{response: "1. What is a goroutine?\n2) How do channels work?"}
	caps := NewCapabilities(client)

	result, err := caps.GenerateQuestions(context.Background(), "Go", 5)
	require.NoError(t, err)

	assert.True(t, result.Fallback)
	assert.Equal(t, []string{"What is a goroutine?", "How do channels work?"}, result.Items)
}

func TestGenerateAliasesParsed(t *testing.T) {
	client := &fakeClient{response: `{"aliases": ["reactjs", "react js", "react.js"]}`}
	caps := NewCapabilities(client)

	result, err := caps.GenerateAliases(context.Background(), "React")
	require.NoError(t, err)

	assert.Equal(t, []string{"reactjs", "react js", "react.js"}, result.Items)
	assert.False(t, result.Fallback)
}

func TestGenerateAliasesMechanicalFallback(t *testing.T) {
	client := &fakeClient{response: "not json at all"}
	caps := NewCapabilities(client)

	result, err := caps.GenerateAliases(context.Background(), "node js")
	require.NoError(t, err)

	assert.True(t, result.Fallback)
	assert.Contains(t, result.Items, "nodejs")
	assert.Contains(t, result.Items, "node.js")
}
