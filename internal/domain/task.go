package domain

import "fmt"

// TaskCategory classifies a generated code task.
type TaskCategory string

const (
	TaskPreprocessing   TaskCategory = "data_preprocessing"
	TaskAnalysis        TaskCategory = "data_analysis"
	TaskTraining        TaskCategory = "model_training"
	TaskVisualization   TaskCategory = "visualization"
	TaskAlgorithm       TaskCategory = "algorithm_impl"
	TaskStatisticalTest TaskCategory = "statistical_test"
	TaskSimulation      TaskCategory = "simulation"
	TaskUtility         TaskCategory = "utility"
)

// NormalizeCategory maps free-form category strings onto the closed set,
// falling back to utility for anything unrecognized.
func NormalizeCategory(value string) TaskCategory {
	switch TaskCategory(value) {
	case TaskPreprocessing, TaskAnalysis, TaskTraining, TaskVisualization,
		TaskAlgorithm, TaskStatisticalTest, TaskSimulation, TaskUtility:
		return TaskCategory(value)
	}
	return TaskUtility
}

// CodeTask is one independent code-generation task produced by decomposition.
// DependsOn carries identifiers of other tasks in the same set; they are
// generation context only and never a scheduling constraint.
type CodeTask struct {
	ID           string
	Category     TaskCategory
	Title        string
	Description  string
	Requirements []string
	DependsOn    []string
	InputDesc    string
	OutputDesc   string
	Priority     int
}

// Decomposition is the complete output of the Task Decomposer.
type Decomposition struct {
	Method    string
	Libraries []string
	Summary   string
	Tasks     []CodeTask
}

// ValidateTasks enforces the decomposition contract: identifiers are unique
// and every declared dependency references a task in the same set.
func ValidateTasks(tasks []CodeTask) error {
	ids := make(map[string]struct{}, len(tasks))
	for _, task := range tasks {
		if task.ID == "" {
			return &DecompositionError{Reason: "task with empty identifier"}
		}
		if _, dup := ids[task.ID]; dup {
			return &DecompositionError{Reason: fmt.Sprintf("duplicate task identifier %q", task.ID)}
		}
		ids[task.ID] = struct{}{}
	}

	for _, task := range tasks {
		for _, dep := range task.DependsOn {
			if _, ok := ids[dep]; !ok {
				return &DecompositionError{
					Reason: fmt.Sprintf("task %q depends on unknown task %q", task.ID, dep),
				}
			}
		}
	}

	return nil
}
