package wire

import (
	"errors"
	"fmt"
)

var (
	ErrTruncated           = errors.New("wire: truncated body")
	ErrUnexpectedTag       = errors.New("wire: unexpected tag")
	ErrCorruptLength       = errors.New("wire: corrupt length")
	ErrInconsistentPayload = errors.New("wire: inconsistent payload")
	ErrOperandCount        = errors.New("wire: operand count mismatch")
	ErrOperandTooLarge     = errors.New("wire: operand too large")
)

// DecodeError reports a body that does not match the shape its op guarantees.
type DecodeError struct {
	Op  Op
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("wire: decode %s: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func decodeErr(op Op, err error) error {
	return &DecodeError{Op: op, Err: err}
}
