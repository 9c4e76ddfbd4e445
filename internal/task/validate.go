package task

import (
	"errors"
	"fmt"
)

// Validate checks a [Task] for required fields.
//
// Rules:
//   - Title must be non-empty.
//   - Rubric must be non-empty.
//   - Interactive tasks must have a non-empty Scenario.Prompt.
//   - Vocabulary entries must be non-empty.
func (t Task) Validate() error {
	var errs []error

	if t.Title == "" {
		errs = append(errs, errors.New("title must not be empty"))
	}

	if t.Rubric == "" {
		errs = append(errs, errors.New("rubric must not be empty"))
	}

	if t.Interactive && t.Scenario.Prompt == "" {
		errs = append(errs, errors.New("interactive task requires a scenario prompt"))
	}

	for i, term := range t.Vocabulary {
		if term == "" {
			errs = append(errs, fmt.Errorf("vocabulary[%d]: term must not be empty", i))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
