// Package normalize canonicalizes skill name strings and resolves alias sets
// from a layered set of sources: an in-memory cache, persisted aliases, a
// static table of well-known ecosystem variants, and LLM generation.
package normalize

import (
	"regexp"
	"strings"
)

var (
	nonWordRe    = regexp.MustCompile(`[^\w\s]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Normalize canonicalizes a skill name: lowercase, all non-word and non-space
// characters stripped, internal whitespace collapsed, surrounding whitespace
// trimmed. Idempotent.
func Normalize(name string) string {
	normalized := strings.ToLower(name)
	normalized = nonWordRe.ReplaceAllString(normalized, "")
	normalized = whitespaceRe.ReplaceAllString(normalized, " ")
	return strings.TrimSpace(normalized)
}

// staticAliasGroups lists well-known ecosystem spelling families. Members are
// in normalized form; every member of a group aliases every other member.
// Checked as a zero-cost pass before invoking the LLM.
var staticAliasGroups = [][]string{
	{"react", "reactjs", "react js"},
	{"next", "nextjs", "next js"},
	{"node", "nodejs", "node js"},
	{"vue", "vuejs", "vue js"},
	{"go", "golang", "go lang"},
	{"javascript", "js"},
	{"typescript", "ts"},
	{"kubernetes", "k8s"},
	{"postgresql", "postgres"},
}

// staticAliasIndex maps each normalized group member to its full group
var staticAliasIndex = buildStaticAliasIndex()

func buildStaticAliasIndex() map[string][]string {
	index := make(map[string][]string)
	for _, group := range staticAliasGroups {
		for _, member := range group {
			index[member] = group
		}
	}
	return index
}

// staticAliasesFor returns the static variant group for a normalized name,
// or nil when the name has no well-known variants
func staticAliasesFor(normalized string) []string {
	return staticAliasIndex[normalized]
}
