package judge

import (
	"errors"
	"fmt"
)

// ErrParse matches every *ParseError via errors.Is.
var ErrParse = errors.New("judge output could not be parsed")

// ParseError reports model output that is not a valid checklist.
type ParseError struct {
	Reason string
	Raw    string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", ErrParse, e.Reason, e.Err)
	}
	return fmt.Sprintf("%v: %s", ErrParse, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}
