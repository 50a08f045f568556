package model

const (
	DefaultOverrideLabel = "ci from fork"

	// ChangesOutsideDocsOutput is the output name of the docs-change-detection job
	ChangesOutsideDocsOutput = "changes_outside_docs"
)

var DefaultDocsPatterns = []string{"docs/**", "**/*.md"}

// GatePolicy controls the docs-change-detection gate
type GatePolicy struct {
	OverrideLabel string   `yaml:"override_label,omitempty"`
	DocsPatterns  []string `yaml:"docs_patterns,omitempty"`
}

func (p GatePolicy) Label() string {
	if p.OverrideLabel == "" {
		return DefaultOverrideLabel
	}
	return p.OverrideLabel
}

func (p GatePolicy) Patterns() []string {
	if len(p.DocsPatterns) == 0 {
		return DefaultDocsPatterns
	}
	return p.DocsPatterns
}

// UpstreamOutputs is what the docs-change-detection job reported.
type UpstreamOutputs struct {
	// Result is the job result as reported by the CI platform. Empty when unknown.
	Result             string
	ChangesOutsideDocs string
}

// HasChangesOutsideDocs is true only for the exact string "true". Anything
// else, including whitespace around it or a missing value, is false.
func (u UpstreamOutputs) HasChangesOutsideDocs() bool {
	switch u.Result {
	case "", "success":
	default:
		return false
	}
	return u.ChangesOutsideDocs == "true"
}
