package llm

import (
	"sort"
	"strings"

	"github.com/recapd/recapd/internal/recaperr"
)

// Template shapes the summarization prompt for a meeting genre.
type Template struct {
	Tag    string
	Name   string
	System string
	// keywords drive auto-detection; the template with the highest hit
	// count wins.
	keywords []string
}

var templates = map[string]Template{
	"default": {
		Tag:  "default",
		Name: "General meeting summary",
		System: "You are an expert meeting assistant. Summarize the transcript into: " +
			"a short overview, key discussion points, decisions made, and action items " +
			"with owners where identifiable. Preserve speaker attributions when relevant.",
	},
	"sop": {
		Tag:  "sop",
		Name: "Standard operating procedure",
		System: "You are a technical writer. Turn this walkthrough transcript into a " +
			"standard operating procedure: purpose, prerequisites, numbered steps, and " +
			"caveats. Write imperative, unambiguous steps.",
		keywords: []string{"step", "procedure", "first you", "then you", "click", "make sure", "process"},
	},
	"decision": {
		Tag:  "decision",
		Name: "Decision record",
		System: "You are a scribe producing a decision record. Extract: context, options " +
			"considered, the decision taken, rationale, dissent, and follow-up actions.",
		keywords: []string{"decide", "decision", "option", "tradeoff", "vote", "agree", "approve"},
	},
	"brainstorm": {
		Tag:  "brainstorm",
		Name: "Brainstorm digest",
		System: "You are organizing a brainstorm. Cluster the ideas into themes, list " +
			"every distinct idea under its theme, and flag the ones with the most energy " +
			"or agreement.",
		keywords: []string{"idea", "what if", "brainstorm", "we could", "crazy", "imagine"},
	},
	"requirements": {
		Tag:  "requirements",
		Name: "Requirements capture",
		System: "You are a business analyst. Extract functional and non-functional " +
			"requirements from this conversation as testable statements, noting open " +
			"questions and assumptions.",
		keywords: []string{"requirement", "must", "shall", "user story", "acceptance", "constraint", "scope"},
	},
}

// TemplateTags returns the known tags sorted.
func TemplateTags() []string {
	tags := make([]string, 0, len(templates))
	for tag := range templates {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// LookupTemplate resolves a tag.
func LookupTemplate(tag string) (Template, error) {
	tpl, ok := templates[tag]
	if !ok {
		return Template{}, recaperr.NewValidationError("summary_template",
			"unknown template "+tag+"; valid: "+strings.Join(TemplateTags(), ", "))
	}
	return tpl, nil
}

// DetectTemplate scores the transcript text against template keywords and
// returns the best match, falling back to default when nothing scores.
func DetectTemplate(text string) Template {
	lower := strings.ToLower(text)

	best := templates["default"]
	bestScore := 0
	for _, tag := range TemplateTags() {
		tpl := templates[tag]
		score := 0
		for _, kw := range tpl.keywords {
			score += strings.Count(lower, kw)
		}
		if score > bestScore {
			best = tpl
			bestScore = score
		}
	}
	return best
}
