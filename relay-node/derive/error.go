package derive

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Level is the severity level of a source error.
type Level uint

const (
	// LevelTemporary is a temporary error, for example due to an RPC or
	// explorer timeout. The cycle can be retried after a short delay.
	LevelTemporary Level = iota
	// LevelCritical is a critical error: retrying will not help.
	LevelCritical
)

func (lvl Level) String() string {
	switch lvl {
	case LevelTemporary:
		return "temp"
	case LevelCritical:
		return "crit"
	default:
		return fmt.Sprintf("unknown(%d)", lvl)
	}
}

// Error is a wrapper for an error with a severity level.
type Error struct {
	err   error
	level Level
}

func (e Error) Error() string {
	if e.err == nil {
		return e.level.String()
	}
	return e.err.Error()
}

func (e Error) Unwrap() error {
	return e.err
}

func (e Error) Is(target error) bool {
	if target == nil {
		return false
	}
	var err Error
	if !errors.As(target, &err) {
		return false
	}
	return e.level == err.level
}

// NewError returns a custom Error.
func NewError(err error, level Level) error {
	return Error{err: err, level: level}
}

// NewTemporaryError returns a temporary error.
func NewTemporaryError(err error) error {
	return NewError(err, LevelTemporary)
}

// NewCriticalError returns a critical error.
func NewCriticalError(err error) error {
	return NewError(err, LevelCritical)
}

// Sentinel errors, use these to get the severity of errors by calling
// errors.Is(err, ErrTemporary) for example.
var (
	ErrTemporary = NewTemporaryError(nil)
	ErrCritical  = NewCriticalError(nil)
)

// DecodeError reports a transaction whose calldata could not be turned into
// a canonical update record. The scan skips such transactions.
type DecodeError struct {
	Tx     common.Hash
	Block  uint64
	Kind   UpdateKind
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("failed to decode %s update", e.Kind)
	if e.Tx != (common.Hash{}) {
		msg += fmt.Sprintf(" in tx %s (block %d)", e.Tx, e.Block)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
