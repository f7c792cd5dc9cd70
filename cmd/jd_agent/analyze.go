package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/jd-analyzer/internal/analysis"
	"github.com/jonathan/jd-analyzer/internal/config"
	"github.com/jonathan/jd-analyzer/internal/db"
	"github.com/jonathan/jd-analyzer/internal/ingestion"
	"github.com/jonathan/jd-analyzer/internal/matching"
	"github.com/jonathan/jd-analyzer/internal/observability"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [job-file...]",
	Short: "Analyze one or more job descriptions",
	Long: `Runs the full analysis for each job description: skill extraction, catalog
matching, and question list assembly, reusing a stored analysis when a
sufficiently similar job description already exists.

Inputs are text files given via --job or as positional arguments, or a single
URL given via --job-url. Configuration can be loaded from a JSON file using
--config; command-line arguments override config file values.`,
	RunE: runAnalyze,
}

var (
	analyzeConfigPath  string
	analyzeJob         string
	analyzeJobURL      string
	analyzeAPIKey      string
	analyzeDatabaseURL string
	analyzeVerbose     bool
	analyzeQuestions   int
	analyzeRegenerate  bool
)

func init() {
	// Config file flag (processed first)
	analyzeCmd.Flags().StringVar(&analyzeConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")

	analyzeCmd.Flags().StringVarP(&analyzeJob, "job", "j", "", "Path to job description text file (mutually exclusive with --job-url)")
	analyzeCmd.Flags().StringVar(&analyzeJobURL, "job-url", "", "URL to fetch job description from (mutually exclusive with --job)")
	analyzeCmd.Flags().IntVar(&analyzeQuestions, "target-questions", 0, "Question list size per skill")
	analyzeCmd.Flags().BoolVar(&analyzeRegenerate, "regenerate-similar", false, "Generate fresh questions instead of reusing near-duplicates from other skills")
	analyzeCmd.Flags().BoolVarP(&analyzeVerbose, "verbose", "v", false, "Print detailed progress information")

	// API key can be passed as a flag, or read from env var GEMINI_API_KEY
	analyzeCmd.Flags().StringVar(&analyzeAPIKey, "api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")

	// Database URL for catalog and result persistence
	analyzeCmd.Flags().StringVar(&analyzeDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")

	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	// Step 1: Load config file if provided
	var cfg config.Config
	if analyzeConfigPath != "" {
		loadedCfg, err := config.LoadConfig(analyzeConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := loadedCfg.Validate(); err != nil {
			return err
		}
		cfg = *loadedCfg
		if analyzeVerbose {
			_, _ = fmt.Fprintf(os.Stdout, "Loaded config from: %s\n", analyzeConfigPath)
		}
	}

	// Step 2: Apply CLI overrides (command-line args take priority)
	// Only override if the flag was explicitly set
	if cmd.Flags().Changed("job") {
		cfg.Job = analyzeJob
	}
	if cmd.Flags().Changed("job-url") {
		cfg.JobURL = analyzeJobURL
	}
	if cmd.Flags().Changed("api-key") {
		cfg.APIKey = analyzeAPIKey
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = analyzeDatabaseURL
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = analyzeVerbose
	}
	if cmd.Flags().Changed("target-questions") {
		cfg.Thresholds.TargetQuestions = analyzeQuestions
	}
	if cmd.Flags().Changed("regenerate-similar") {
		cfg.Thresholds.RegenerateSimilarQuestions = analyzeRegenerate
	}

	// Step 3: Apply defaults for unset values
	cfg = cfg.MergeWithDefaults(config.Config{Thresholds: config.DefaultThresholds()})

	// Step 4: Collect inputs and validate exclusivity
	jobFiles := args
	if cfg.Job != "" {
		jobFiles = append([]string{cfg.Job}, args...)
	}
	if len(jobFiles) == 0 && cfg.JobURL == "" {
		return fmt.Errorf("either a job description file or --job-url must be provided (via flag or config)")
	}
	if len(jobFiles) > 0 && cfg.JobURL != "" {
		return fmt.Errorf("job description files and --job-url are mutually exclusive; provide only one")
	}

	// Step 5: API Key handling
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable or --api-key flag is required")
	}

	// Step 6: Database URL handling
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable or --db-url flag is required")
	}

	printer := observability.NewPrinter(os.Stdout)
	var onProgress analysis.ProgressCallback
	if cfg.Verbose {
		onProgress = func(e analysis.ProgressEvent) {
			switch content := e.Content.(type) {
			case analysis.ExtractedSkills:
				printer.PrintExtractedSkills(content.Names, content.UsedFallback)
			case []matching.MatchedSkill:
				printer.PrintMatchedSkills(content)
			case []db.SimilarJDRef:
				if len(content) > 0 {
					printer.PrintSimilarJDs(content)
				}
				fmt.Println(e.Message)
			default:
				if e.Step == analysis.StepSkill {
					fmt.Printf("  [%d/%d] %s\n", e.SkillsAnalyzed, e.TotalSkills, e.Message)
					return
				}
				fmt.Println(e.Message)
			}
		}
	}

	orchestrator, cleanup, err := buildOrchestrator(ctx, cfg.DatabaseURL, cfg.APIKey, cfg.Thresholds, onProgress)
	if err != nil {
		return err
	}
	defer cleanup()

	inputs, err := ingestInputs(ctx, jobFiles, cfg.JobURL, cfg.Verbose)
	if err != nil {
		return err
	}

	// Analyses are independent; fan out across the batch
	results := make([]*analysis.Result, len(inputs))
	g, gCtx := errgroup.WithContext(ctx)
	for i, in := range inputs {
		g.Go(func() error {
			jd, err := orchestrator.Submit(gCtx, in.title, in.content)
			if err != nil {
				return fmt.Errorf("%s: %w", in.label, err)
			}
			if err := orchestrator.StartAnalysis(gCtx, jd.ID); err != nil {
				return fmt.Errorf("%s: %w", in.label, err)
			}
			result, err := orchestrator.GetResults(gCtx, jd.ID)
			if err != nil {
				return fmt.Errorf("%s: %w", in.label, err)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, result := range results {
		if len(inputs) > 1 {
			fmt.Printf("\n=== %s ===\n", inputs[i].label)
		}
		if result.Analysis != nil && len(result.Analysis.SimilarJDs) > 0 && !cfg.Verbose {
			printer.PrintSimilarJDs(result.Analysis.SimilarJDs)
		}
		printer.PrintAnalysisResult(result)
	}
	return nil
}

// analyzeInput is one ingested job description awaiting analysis
type analyzeInput struct {
	label   string
	title   *string
	content string
}

// ingestInputs reads each job file, or fetches the single URL, and returns
// the cleaned contents ready for submission
func ingestInputs(ctx context.Context, jobFiles []string, jobURL string, verbose bool) ([]analyzeInput, error) {
	if jobURL != "" {
		content, metadata, err := ingestion.IngestFromURL(ctx, jobURL, verbose)
		if err != nil {
			return nil, fmt.Errorf("failed to ingest %s: %w", jobURL, err)
		}
		return []analyzeInput{{label: jobURL, title: titleOf(metadata), content: content}}, nil
	}

	inputs := make([]analyzeInput, 0, len(jobFiles))
	for _, path := range jobFiles {
		content, metadata, err := ingestion.IngestFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to ingest %s: %w", path, err)
		}
		inputs = append(inputs, analyzeInput{label: path, title: titleOf(metadata), content: content})
	}
	return inputs, nil
}

func titleOf(metadata *ingestion.Metadata) *string {
	if metadata == nil || metadata.Title == "" {
		return nil
	}
	return &metadata.Title
}
