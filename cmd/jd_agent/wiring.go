package main

import (
	"context"
	"fmt"

	"github.com/jonathan/jd-analyzer/internal/analysis"
	"github.com/jonathan/jd-analyzer/internal/config"
	"github.com/jonathan/jd-analyzer/internal/db"
	"github.com/jonathan/jd-analyzer/internal/jdmatch"
	"github.com/jonathan/jd-analyzer/internal/llm"
	"github.com/jonathan/jd-analyzer/internal/matching"
	"github.com/jonathan/jd-analyzer/internal/normalize"
	"github.com/jonathan/jd-analyzer/internal/questions"
)

// buildOrchestrator assembles the analysis stack over one database pool and
// one Gemini client. The returned cleanup closes both and must be called once
// the orchestrator is no longer needed.
func buildOrchestrator(ctx context.Context, databaseURL, apiKey string, th config.Thresholds, onProgress analysis.ProgressCallback) (*analysis.Orchestrator, func(), error) {
	database, err := db.Connect(ctx, databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	client, err := llm.NewClient(ctx, llm.DefaultGeminiConfig(), apiKey)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	capabilities := llm.NewCapabilities(client)

	normalizer := normalize.New(database, capabilities, normalize.NewAliasCache())
	skillMatcher := matching.NewMatcher(database, client, normalizer, th.SkillMatchBar)
	reuseMatcher := jdmatch.NewMatcher(database, capabilities, client, skillMatcher, jdmatch.Options{
		SimilarityFloor: th.JDSimilarityFloor,
		ReuseBar:        th.JDReuseBar,
		ValidationBar:   th.ValidationBar,
	})
	resolver := questions.NewResolver(database, client, capabilities, questions.Options{
		SimilarityBar: th.QuestionSimilarityBar,
		ReuseSimilar:  !th.RegenerateSimilarQuestions,
	})

	orchestrator := analysis.NewOrchestrator(database, client, capabilities, skillMatcher, reuseMatcher, resolver, analysis.Options{
		TargetQuestions: th.TargetQuestions,
		OnProgress:      onProgress,
	})

	cleanup := func() {
		_ = client.Close()
		database.Close()
	}
	return orchestrator, cleanup, nil
}
