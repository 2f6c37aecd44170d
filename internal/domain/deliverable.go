package domain

// Deliverable is the final project produced by the Assembler. It is created
// once at the end of a run and immutable thereafter.
type Deliverable struct {
	ProjectName     string
	DocumentTitle   string
	Files           map[string]string
	Requirements    []string
	Readme          string
	RunInstructions string
	Assets          []DataAsset
	Outcomes        []ValidationOutcome
}

// FailedTasks lists task identifiers whose artifacts ended exhausted.
func (d Deliverable) FailedTasks() []string {
	var failed []string
	for _, o := range d.Outcomes {
		if !o.Valid {
			failed = append(failed, o.TaskID)
		}
	}
	return failed
}
