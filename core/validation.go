package core

import "fmt"

// ValidateJobSpec validates a JobSpec according to domain rules.
//
// Validation rules:
//   - DataSource must be set
//   - Concurrency must be >= 1 (0 means "use default" and is valid)
//   - Every pipeline entry must name a stage
//
// NOT validated (resolved by the task builder):
//   - Whether the named data source / stages exist in a registry
//   - Configuration keys (unknown keys are dropped, not rejected)
func ValidateJobSpec(spec *JobSpec) error {
	if spec == nil {
		return fmt.Errorf("%w: spec is nil", ErrInvalidJobSpec)
	}

	if spec.DataSource == "" {
		return fmt.Errorf("%w: %w", ErrInvalidJobSpec, ErrEmptyDataSource)
	}

	if spec.Concurrency < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidJobSpec, ErrInvalidConcurrency)
	}

	for i, stage := range spec.Pipeline {
		if stage.Name == "" {
			return fmt.Errorf("%w: pipeline stage %d has no name", ErrInvalidJobSpec, i)
		}
	}

	return nil
}
