// Package llm - capabilities.go provides the typed LLM capabilities consumed
// by the analysis pipeline: skill extraction, question generation, and alias
// generation. Each capability parses structured JSON output defensively and
// reports when the line-based fallback branch produced the result.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// MaxExtractedSkills caps the number of skills extracted from one job description.
const MaxExtractedSkills = 15

// MaxGeneratedAliases caps the number of aliases requested per skill name.
const MaxGeneratedAliases = 8

// ListResult is a list produced by an LLM capability. Fallback is true when
// the structured JSON response was malformed and the items were recovered by
// line-based text parsing instead.
type ListResult struct {
	Items    []string
	Fallback bool
}

// JSON Schemas for the structured responses, validated before unmarshalling.
const (
	skillListSchema = `{
		"type": "object",
		"required": ["skills"],
		"properties": {"skills": {"type": "array", "items": {"type": "string"}}}
	}`
	questionListSchema = `{
		"type": "object",
		"required": ["questions"],
		"properties": {"questions": {"type": "array", "items": {"type": "string"}}}
	}`
	aliasListSchema = `{
		"type": "object",
		"required": ["aliases"],
		"properties": {"aliases": {"type": "array", "items": {"type": "string"}}}
	}`
)

// Capabilities exposes the pipeline-facing LLM operations on top of a Client.
type Capabilities struct {
	client Client
}

// NewCapabilities creates a Capabilities wrapper around an LLM client.
func NewCapabilities(client Client) *Capabilities {
	return &Capabilities{client: client}
}

// ExtractSkills extracts up to MaxExtractedSkills technical skill names from
// job description text. Malformed model output falls back to line parsing and
// never propagates as an error.
func (c *Capabilities) ExtractSkills(ctx context.Context, jdText string) (ListResult, error) {
	prompt := fmt.Sprintf(`You are an expert job posting analyst.
Extract the distinct technical skills, tools, and technologies required by the job description below.

Return ONLY valid JSON matching this exact structure:
{
  "skills": ["string"] // short canonical skill names, e.g. "Go", "PostgreSQL", "Kubernetes"
}

IMPORTANT:
- List at most %d skills, most important first.
- One skill per entry; no explanations, no soft skills.
- Return ONLY the JSON object, no markdown, no code blocks.

Job description:
"""
%s
"""`, MaxExtractedSkills, jdText)

	raw, err := c.client.GenerateJSON(ctx, prompt, TierStandard)
	if err != nil {
		return ListResult{}, fmt.Errorf("skill extraction failed: %w", err)
	}

	result := parseListResponse(raw, skillListSchema, "skills")
	result.Items = capItems(result.Items, MaxExtractedSkills)
	return result, nil
}

// GenerateQuestions generates up to count interview questions for a skill.
// Best-effort: the model may return fewer. Malformed output falls back to
// line parsing.
func (c *Capabilities) GenerateQuestions(ctx context.Context, skillName string, count int) (ListResult, error) {
	prompt := fmt.Sprintf(`You are an experienced technical interviewer.
Write %d interview questions that assess practical, hands-on knowledge of %s.

Return ONLY valid JSON matching this exact structure:
{
  "questions": ["string"] // one complete interview question per entry
}

IMPORTANT:
- Questions must be specific to %s, not generic.
- Mix conceptual and scenario-based questions.
- Return ONLY the JSON object, no markdown, no code blocks.`, count, skillName, skillName)

	raw, err := c.client.GenerateJSON(ctx, prompt, TierStandard)
	if err != nil {
		return ListResult{}, fmt.Errorf("question generation failed: %w", err)
	}

	result := parseListResponse(raw, questionListSchema, "questions")
	result.Items = capItems(result.Items, count)
	return result, nil
}

// GenerateAliases generates up to MaxGeneratedAliases alternate spellings of a
// skill name (spacing, punctuation, capitalization, abbreviation variants).
// When the response is malformed, it falls back to mechanical variations of
// the input instead of parsed output.
func (c *Capabilities) GenerateAliases(ctx context.Context, skillName string) (ListResult, error) {
	prompt := fmt.Sprintf(`List common alternate written forms of the technology name "%s".

Return ONLY valid JSON matching this exact structure:
{
  "aliases": ["string"] // up to %d short variants
}

IMPORTANT:
- Cover spacing, punctuation, capitalization, and abbreviation variants
  (e.g. "Node.js" -> "nodejs", "node js", "node").
- Do not include unrelated technologies.
- Return ONLY the JSON object, no markdown, no code blocks.`, skillName, MaxGeneratedAliases)

	raw, err := c.client.GenerateJSON(ctx, prompt, TierLite)
	if err != nil {
		return ListResult{}, fmt.Errorf("alias generation failed: %w", err)
	}

	result := parseObjectList(raw, aliasListSchema, "aliases")
	if result == nil {
		// Mechanical variations: strip spaces, strip dots, spaces to dots.
		return ListResult{Items: MechanicalVariants(skillName), Fallback: true}, nil
	}
	return ListResult{Items: capItems(result, MaxGeneratedAliases)}, nil
}

// MechanicalVariants returns the fixed set of mechanical spelling variations
// used when alias generation yields unusable output.
func MechanicalVariants(name string) []string {
	variants := []string{
		strings.ReplaceAll(name, " ", ""),
		strings.ReplaceAll(name, ".", ""),
		strings.ReplaceAll(name, " ", "."),
	}
	seen := make(map[string]bool, len(variants))
	var out []string
	for _, v := range variants {
		if v == "" || v == name || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// parseListResponse parses a JSON object holding a string list under key,
// falling back to line-based parsing of the raw text when the JSON is
// malformed or fails schema validation.
func parseListResponse(raw, schema, key string) ListResult {
	if items := parseObjectList(raw, schema, key); items != nil {
		return ListResult{Items: items}
	}
	return ListResult{Items: ParseLines(raw), Fallback: true}
}

// parseObjectList returns the cleaned string list under key, or nil when the
// response is not valid per the schema.
func parseObjectList(raw, schema, key string) []string {
	cleaned := CleanJSONBlock(raw)

	validation, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewStringLoader(cleaned),
	)
	if err != nil || !validation.Valid() {
		return nil
	}

	var parsed map[string][]string
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil
	}

	items := make([]string, 0, len(parsed[key]))
	for _, item := range parsed[key] {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return nil
	}
	return items
}

func capItems(items []string, max int) []string {
	if max > 0 && len(items) > max {
		return items[:max]
	}
	return items
}
