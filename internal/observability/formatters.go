// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/jd-analyzer/internal/analysis"
	"github.com/jonathan/jd-analyzer/internal/db"
	"github.com/jonathan/jd-analyzer/internal/matching"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintExtractedSkills outputs the raw skill names extracted from a JD.
func (p *Printer) PrintExtractedSkills(skills []string, usedFallback bool) {
	if len(skills) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Extracted %d skills:\n\n", len(skills)))

	count := min(len(skills), maxItemsToShow)
	for i := 0; i < count; i++ {
		sb.WriteString(fmt.Sprintf("  • %s\n", skills[i]))
	}
	if len(skills) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(skills)-maxItemsToShow))
	}
	if usedFallback {
		sb.WriteString("\n⚠ structured output unavailable, parsed line by line")
	}

	p.printBox("EXTRACTED SKILLS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintMatchedSkills outputs skill matching results with confidence and provenance.
func (p *Printer) PrintMatchedSkills(matched []matching.MatchedSkill) {
	if len(matched) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Matched %d skills:\n\n", len(matched)))

	count := min(len(matched), maxItemsToShow)
	for i := 0; i < count; i++ {
		m := matched[i]
		marker := "•"
		if m.Source == matching.SourceExtracted {
			marker = "+"
		}
		sb.WriteString(fmt.Sprintf("%s %s\n", marker, m.Name))
		sb.WriteString(fmt.Sprintf("  Confidence: %.2f (%s)\n", m.Confidence, m.Source))
		if i < count-1 {
			sb.WriteString("\n")
		}
	}
	if len(matched) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more skills", len(matched)-maxItemsToShow))
	}

	p.printBox("MATCHED SKILLS", sb.String())
}

// PrintSimilarJDs outputs the stored JDs found similar to the input.
func (p *Printer) PrintSimilarJDs(refs []db.SimilarJDRef) {
	if len(refs) == 0 {
		return
	}

	var sb strings.Builder
	for i, ref := range refs {
		title := ref.Title
		if title == "" {
			title = ref.ID.String()
		}
		if len(title) > 42 {
			title = title[:39] + "..."
		}
		sb.WriteString(fmt.Sprintf("#%d  %s\n", i+1, title))
		sb.WriteString(fmt.Sprintf("    Similarity: %.3f\n", ref.Similarity))
		if i < len(refs)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("SIMILAR JOB DESCRIPTIONS", sb.String())
}

// PrintAnalysisResult outputs the assembled analysis: each skill with its
// question list and per-question provenance.
func (p *Printer) PrintAnalysisResult(result *analysis.Result) {
	if result == nil {
		return
	}

	if result.Analysis != nil {
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Source:  %s\n", result.Analysis.Source))
		sb.WriteString(fmt.Sprintf("Skills:  %d\n", len(result.Skills)))
		if msg := result.Analysis.Message; msg != "" {
			sb.WriteString(fmt.Sprintf("Note:    %s", msg))
		}
		p.printBox("ANALYSIS SUMMARY", strings.TrimSuffix(sb.String(), "\n"))
	}

	for _, skillResult := range result.Skills {
		name := skillResult.Skill.SkillID.String()
		if skillResult.Skill.Skill != nil {
			name = skillResult.Skill.Skill.CanonicalName
		}

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Confidence: %.2f (%s)\n\n", skillResult.Skill.Confidence, skillResult.Skill.Source))
		for i, q := range skillResult.Questions {
			text := q.Text
			if len(text) > 50 {
				text = text[:47] + "..."
			}
			sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, text))
			sb.WriteString(fmt.Sprintf("   [%s %.2f]\n", q.Source, q.Confidence))
		}
		if len(skillResult.Questions) == 0 {
			sb.WriteString("(no questions resolved)\n")
		}

		p.printBox(fmt.Sprintf("QUESTIONS: %s", strings.ToUpper(name)), strings.TrimSuffix(sb.String(), "\n"))
	}
}
