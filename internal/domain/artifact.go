package domain

// ArtifactState tracks an artifact through the validate-repair loop.
type ArtifactState string

const (
	StateUnchecked ArtifactState = "unchecked"
	StateChecking  ArtifactState = "checking"
	StateValid     ArtifactState = "valid"
	StateInvalid   ArtifactState = "invalid"
	StateRepairing ArtifactState = "repairing"
	StateExhausted ArtifactState = "exhausted"
)

// Terminal reports whether the loop may not leave this state.
func (s ArtifactState) Terminal() bool {
	return s == StateValid || s == StateExhausted
}

// Artifact is one generated code file tied to exactly one task. The repair
// loop replaces artifacts wholesale; it never mutates content in place.
type Artifact struct {
	TaskID       string
	FileName     string
	Content      string
	Description  string
	Dependencies []string
	Failed       bool
}

// WithContent returns a copy carrying replacement content, used by the
// repair loop for atomic swaps.
func (a Artifact) WithContent(content string) Artifact {
	a.Content = content
	a.Failed = false
	return a
}

// ValidationOutcome is the terminal record of the validate-repair loop for
// one artifact.
type ValidationOutcome struct {
	TaskID        string
	State         ArtifactState
	Valid         bool
	SyntaxOK      bool
	ImportsOK     bool
	RepairRounds  int
	ErrorMessages []string
	Suggestions   []string
}
