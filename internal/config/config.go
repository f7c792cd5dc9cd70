// Package config provides configuration loading and validation for the CLI
// and server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

// Thresholds holds the similarity bars and sizing knobs of the analysis
// pipeline. All similarity values are cosine similarities in [0, 1].
type Thresholds struct {
	// JDReuseBar is the minimum top similarity for reusing a stored JD's skill set
	JDReuseBar float64 `json:"jd_reuse_bar,omitempty" validate:"gte=0,lte=1"`
	// JDSimilarityFloor is the minimum similarity for a stored JD to be reported as similar
	JDSimilarityFloor float64 `json:"jd_similarity_floor,omitempty" validate:"gte=0,lte=1"`
	// SkillMatchBar is the minimum confidence to resolve an extracted name to an existing skill
	SkillMatchBar float64 `json:"skill_match_bar,omitempty" validate:"gte=0,lte=1"`
	// ValidationBar is the minimum text/alias confidence for JD-reuse cross-validation
	ValidationBar float64 `json:"validation_bar,omitempty" validate:"gte=0,lte=1"`
	// QuestionSimilarityBar is the minimum similarity for reusing a question from another skill
	QuestionSimilarityBar float64 `json:"question_similarity_bar,omitempty" validate:"gte=0,lte=1"`
	// TargetQuestions is the question list size resolved per skill
	TargetQuestions int `json:"target_questions,omitempty" validate:"gte=0,lte=50"`
	// RegenerateSimilarQuestions generates fresh questions for slots that a
	// near-duplicate from another skill could have filled. Off by default:
	// reuse is cheaper and the duplicates are close by construction.
	RegenerateSimilarQuestions bool `json:"regenerate_similar_questions,omitempty"`
}

// DefaultThresholds returns the tuned threshold set
func DefaultThresholds() Thresholds {
	return Thresholds{
		JDReuseBar:            0.95,
		JDSimilarityFloor:     0.5,
		SkillMatchBar:         0.8,
		ValidationBar:         0.9,
		QuestionSimilarityBar: 0.9,
		TargetQuestions:       5,
	}
}

// Config represents the configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or must be provided via
// CLI flags or environment variables.
type Config struct {
	// Inputs
	Job    string `json:"job,omitempty"`     // Path to job description text file
	JobURL string `json:"job_url,omitempty"` // URL to fetch job description from

	// Behavior
	APIKey      string     `json:"api_key,omitempty"`      // Gemini API key
	DatabaseURL string     `json:"database_url,omitempty"` // PostgreSQL connection URL
	ListenAddr  string     `json:"listen_addr,omitempty"`  // Server listen address
	Verbose     bool       `json:"verbose,omitempty"`      // Print detailed debug information
	Thresholds  Thresholds `json:"thresholds,omitempty"`
}

// validate is shared; validator instances cache struct metadata
var validate = validator.New()

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// Note: This doesn't check for required fields since those are handled
// by CLI flag validation after merging.
func (c *Config) Validate() error {
	if c.Job != "" && c.JobURL != "" {
		return fmt.Errorf("config error: 'job' and 'job_url' are mutually exclusive")
	}

	if c.Job != "" {
		if _, err := os.Stat(c.Job); os.IsNotExist(err) {
			return fmt.Errorf("config error: job file not found: %s", c.Job)
		}
	}

	if err := validate.Struct(c.Thresholds); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			return fmt.Errorf("config error: threshold %s fails %s constraint", errs[0].Field(), errs[0].Tag())
		}
		return fmt.Errorf("config error: %w", err)
	}

	// The reuse bar implies appearing in the similar list at all.
	if c.Thresholds.JDReuseBar < c.Thresholds.JDSimilarityFloor {
		return fmt.Errorf("config error: 'jd_reuse_bar' must be at least 'jd_similarity_floor'")
	}

	return nil
}

// MergeWithDefaults returns a new Config with zero-valued fields filled from
// defaults. This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.Job == "" {
		result.Job = defaults.Job
	}
	if result.JobURL == "" {
		result.JobURL = defaults.JobURL
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.ListenAddr == "" {
		result.ListenAddr = defaults.ListenAddr
	}

	result.Thresholds = result.Thresholds.mergeWith(defaults.Thresholds)

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// mergeWith fills zero-valued thresholds from defaults. A threshold explicitly
// set to its default value merges identically, which is harmless.
func (t Thresholds) mergeWith(defaults Thresholds) Thresholds {
	out := t
	if out.JDReuseBar == 0 {
		out.JDReuseBar = defaults.JDReuseBar
	}
	if out.JDSimilarityFloor == 0 {
		out.JDSimilarityFloor = defaults.JDSimilarityFloor
	}
	if out.SkillMatchBar == 0 {
		out.SkillMatchBar = defaults.SkillMatchBar
	}
	if out.ValidationBar == 0 {
		out.ValidationBar = defaults.ValidationBar
	}
	if out.QuestionSimilarityBar == 0 {
		out.QuestionSimilarityBar = defaults.QuestionSimilarityBar
	}
	if out.TargetQuestions == 0 {
		out.TargetQuestions = defaults.TargetQuestions
	}
	return out
}
