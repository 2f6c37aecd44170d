package domain

import (
	"errors"
	"fmt"
)

// Phase names one orchestrator stage for failure reporting.
type Phase string

const (
	PhaseIngest         Phase = "ingest"
	PhaseDataScan       Phase = "datascan"
	PhaseAnalyze        Phase = "analyze"
	PhaseSynthesize     Phase = "synthesize"
	PhaseValidateRepair Phase = "validate-repair"
	PhaseAssemble       Phase = "assemble"
)

// UnreadableSourceError means both the primary and the fallback ingestion
// paths failed; it carries every cause.
type UnreadableSourceError struct {
	Source string
	Causes []error
}

func (e *UnreadableSourceError) Error() string {
	return fmt.Sprintf("source %s is unreadable: %v", e.Source, errors.Join(e.Causes...))
}

func (e *UnreadableSourceError) Unwrap() []error { return e.Causes }

// DecompositionError marks a malformed or dangling-dependency task set.
type DecompositionError struct {
	Reason string
}

func (e *DecompositionError) Error() string {
	return "decomposition: " + e.Reason
}

// GenerationTransportError surfaces after transport-level retries to the
// generation capability are exhausted.
type GenerationTransportError struct {
	Attempts int
	Err      error
}

func (e *GenerationTransportError) Error() string {
	return fmt.Sprintf("generation transport failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *GenerationTransportError) Unwrap() error { return e.Err }

// AssemblyConsistencyError is fatal: the artifact set violated the
// synthesizer's naming discipline (e.g., a file-name collision).
type AssemblyConsistencyError struct {
	Reason string
}

func (e *AssemblyConsistencyError) Error() string {
	return "assembly: " + e.Reason
}

// PhaseError wraps a fatal failure with the phase it occurred in.
type PhaseError struct {
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("phase %s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }
