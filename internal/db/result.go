package db

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// ResultCode classifies the outcome of a mutation.
type ResultCode int

const (
	// Success is used for results that carry an advisory message.
	Success ResultCode = iota
	PermissionDenied
	NotEditable
	TypeMismatch
	DuplicateValue
	CapacityExceeded
	NamespaceConflict
	LinkConflict
	TargetBusy
	TargetDeleted
	SchemaInconsistency
	VetoedByPlugin
	InvalidValue
	NoSuchValue
	NotFound
	TransactionClosed
	TooLong
	TooShort
	ForbiddenCharacter
	QualityRejected
	ReusedTooRecently
	MalformedHashText
	NotConfiguredForFormat
	PersistenceFailed
)

var codeNames = [...]string{
	Success:                "success",
	PermissionDenied:       "permission denied",
	NotEditable:            "not editable",
	TypeMismatch:           "type mismatch",
	DuplicateValue:         "duplicate value",
	CapacityExceeded:       "capacity exceeded",
	NamespaceConflict:      "namespace conflict",
	LinkConflict:           "link conflict",
	TargetBusy:             "target busy",
	TargetDeleted:          "target deleted",
	SchemaInconsistency:    "schema inconsistency",
	VetoedByPlugin:         "vetoed by plugin",
	InvalidValue:           "invalid value",
	NoSuchValue:            "no such value",
	NotFound:               "not found",
	TransactionClosed:      "transaction closed",
	TooLong:                "too long",
	TooShort:               "too short",
	ForbiddenCharacter:     "forbidden character",
	QualityRejected:        "quality rejected",
	ReusedTooRecently:      "reused too recently",
	MalformedHashText:      "malformed hash text",
	NotConfiguredForFormat: "not configured for format",
	PersistenceFailed:      "persistence failed",
}

// String returns the name of the code.
func (c ResultCode) String() string {
	if c >= 0 && int(c) < len(codeNames) {
		return codeNames[c]
	}
	return fmt.Sprintf("ResultCode(%d)", int(c))
}

// Result sentinels, matched by errors.Is against the error of a failed
// Result.
var (
	ErrPermissionDenied       = errors.New("db: permission denied")
	ErrNotEditable            = errors.New("db: not editable")
	ErrTypeMismatch           = errors.New("db: type mismatch")
	ErrDuplicateValue         = errors.New("db: duplicate value")
	ErrCapacityExceeded       = errors.New("db: capacity exceeded")
	ErrNamespaceConflict      = errors.New("db: namespace conflict")
	ErrLinkConflict           = errors.New("db: link conflict")
	ErrTargetBusy             = errors.New("db: target busy")
	ErrTargetDeleted          = errors.New("db: target deleted")
	ErrSchemaInconsistency    = errors.New("db: schema inconsistency")
	ErrVetoedByPlugin         = errors.New("db: vetoed by plugin")
	ErrInvalidValue           = errors.New("db: invalid value")
	ErrNoSuchValue            = errors.New("db: no such value")
	ErrNotFound               = errors.New("db: not found")
	ErrTransactionClosed      = errors.New("db: transaction closed")
	ErrTooLong                = errors.New("db: too long")
	ErrTooShort               = errors.New("db: too short")
	ErrForbiddenCharacter     = errors.New("db: forbidden character")
	ErrQualityRejected        = errors.New("db: quality rejected")
	ErrReusedTooRecently      = errors.New("db: reused too recently")
	ErrMalformedHashText      = errors.New("db: malformed hash text")
	ErrNotConfiguredForFormat = errors.New("db: not configured for format")
	ErrPersistenceFailed      = errors.New("db: persistence failed")
)

var sentinels = map[ResultCode]error{
	PermissionDenied:       ErrPermissionDenied,
	NotEditable:            ErrNotEditable,
	TypeMismatch:           ErrTypeMismatch,
	DuplicateValue:         ErrDuplicateValue,
	CapacityExceeded:       ErrCapacityExceeded,
	NamespaceConflict:      ErrNamespaceConflict,
	LinkConflict:           ErrLinkConflict,
	TargetBusy:             ErrTargetBusy,
	TargetDeleted:          ErrTargetDeleted,
	SchemaInconsistency:    ErrSchemaInconsistency,
	VetoedByPlugin:         ErrVetoedByPlugin,
	InvalidValue:           ErrInvalidValue,
	NoSuchValue:            ErrNoSuchValue,
	NotFound:               ErrNotFound,
	TransactionClosed:      ErrTransactionClosed,
	TooLong:                ErrTooLong,
	TooShort:               ErrTooShort,
	ForbiddenCharacter:     ErrForbiddenCharacter,
	QualityRejected:        ErrQualityRejected,
	ReusedTooRecently:      ErrReusedTooRecently,
	MalformedHashText:      ErrMalformedHashText,
	NotConfiguredForFormat: ErrNotConfiguredForFormat,
	PersistenceFailed:      ErrPersistenceFailed,
}

// Result is the outcome of a mutation. A nil *Result is plain success. A
// Result with Code Success carries an advisory message for the caller; any
// other code is a failure that left the store unchanged.
type Result struct {
	Code    ResultCode
	Message string
	// Cause holds the underlying error, or several combined with multierr
	// for batch operations.
	Cause error
}

// OK reports whether the result is success, with or without advisory.
func (r *Result) OK() bool {
	return r == nil || r.Code == Success
}

// Failed reports whether the result is a failure.
func (r *Result) Failed() bool {
	return !r.OK()
}

// Advisory returns the advisory message of a successful result.
func (r *Result) Advisory() string {
	if r == nil || r.Code != Success {
		return ""
	}
	return r.Message
}

// Err returns the failure as an error, or nil on success.
func (r *Result) Err() error {
	if r.OK() {
		return nil
	}
	return &Error{Code: r.Code, Message: r.Message, Cause: r.Cause}
}

// String returns a printable form of the result.
func (r *Result) String() string {
	if r == nil {
		return "success"
	}
	if r.Message == "" {
		return r.Code.String()
	}
	return r.Code.String() + ": " + r.Message
}

// Error is a failed Result in error form.
type Error struct {
	Code    ResultCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return "db: " + e.Code.String()
	}
	return "db: " + e.Code.String() + ": " + e.Message
}

// Unwrap exposes the code sentinel and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s, ok := sentinels[e.Code]; ok {
		errs = append(errs, s)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

func fail(code ResultCode, format string, args ...interface{}) *Result {
	return &Result{Code: code, Message: fmt.Sprintf(format, args...)}
}

func failCause(code ResultCode, cause error, format string, args ...interface{}) *Result {
	return &Result{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func advise(format string, args ...interface{}) *Result {
	return &Result{Code: Success, Message: fmt.Sprintf(format, args...)}
}

// mergeAdvice combines the advisories of successful results.
func mergeAdvice(results ...*Result) *Result {
	var msgs []string
	var cause error
	for _, r := range results {
		if r == nil {
			continue
		}
		if r.Failed() {
			return r
		}
		if r.Message != "" {
			msgs = append(msgs, r.Message)
		}
		cause = multierr.Append(cause, r.Cause)
	}
	if len(msgs) == 0 && cause == nil {
		return nil
	}
	return &Result{Code: Success, Message: strings.Join(msgs, "; "), Cause: cause}
}

// batchFailures collects the failures of a batch operation.
type batchFailures struct {
	first *Result
	errs  error
	count int
}

func (b *batchFailures) add(r *Result) {
	if r.OK() {
		return
	}
	if b.first == nil {
		b.first = r
	}
	b.errs = multierr.Append(b.errs, r.Err())
	b.count++
}

func (b *batchFailures) empty() bool {
	return b.count == 0
}

// failure returns one failed Result describing every collected failure,
// carrying the code of the first.
func (b *batchFailures) failure(total int) *Result {
	if b.count == 1 {
		return b.first
	}
	return &Result{
		Code:    b.first.Code,
		Message: fmt.Sprintf("%d of %d elements failed: %s", b.count, total, b.first.Message),
		Cause:   b.errs,
	}
}

// advisory returns a successful Result reporting skipped elements.
func (b *batchFailures) advisory(total int) *Result {
	return &Result{
		Code:    Success,
		Message: fmt.Sprintf("%d of %d elements skipped", b.count, total),
		Cause:   b.errs,
	}
}
