package livemetro

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// ExhaustedError reports that every tier failed or missed for a key. Err
// aggregates the individual tier errors for diagnostics; it is nil when
// all tiers missed cleanly.
type ExhaustedError struct {
	Key string
	Err *multierror.Error
}

func (e *ExhaustedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("no tier has data for key %q", e.Key)
	}
	return fmt.Sprintf("all tiers exhausted for key %q: %v", e.Key, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	if e.Err == nil {
		return nil
	}
	return e.Err
}

// IsExhausted reports whether err means the whole chain failed.
func IsExhausted(err error) bool {
	var ex *ExhaustedError
	return errors.As(err, &ex)
}
