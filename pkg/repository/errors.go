package repository

import (
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/text/language"
)

// ErrRecordNotFound is returned by a Queryable or Model when a point lookup
// matches no row. The repository turns it into a NotFound *Error.
var ErrRecordNotFound = errors.New("record not found")

// Kind classifies repository failures
type Kind int

const (
	KindInvalidFilterFormat Kind = iota + 1
	KindFilterMustBeArray
	KindInvalidRelationFieldFormat
	KindInvalidOrderDirection
	KindInvalidSortColumn
	KindNotFound
	KindOperationFailed
)

// String returns the name of the kind
func (k Kind) String() string {
	switch k {
	case KindInvalidFilterFormat:
		return "InvalidFilterFormat"
	case KindFilterMustBeArray:
		return "FilterMustBeArray"
	case KindInvalidRelationFieldFormat:
		return "InvalidRelationFieldFormat"
	case KindInvalidOrderDirection:
		return "InvalidOrderDirection"
	case KindInvalidSortColumn:
		return "InvalidSortColumn"
	case KindNotFound:
		return "NotFound"
	case KindOperationFailed:
		return "OperationFailed"
	default:
		return "Unknown"
	}
}

// Sentinels for errors.Is matching. An *Error matches a sentinel of the same
// kind; OperationFailed sentinels without an Op match every operation.
var (
	ErrInvalidFilterFormat        = &Error{Kind: KindInvalidFilterFormat}
	ErrFilterMustBeArray          = &Error{Kind: KindFilterMustBeArray}
	ErrInvalidRelationFieldFormat = &Error{Kind: KindInvalidRelationFieldFormat}
	ErrInvalidOrderDirection      = &Error{Kind: KindInvalidOrderDirection}
	ErrInvalidSortColumn          = &Error{Kind: KindInvalidSortColumn}
	ErrNotFound                   = &Error{Kind: KindNotFound}
	ErrOperationFailed            = &Error{Kind: KindOperationFailed}
)

// Operation names carried by OperationFailed errors. Each maps to the
// "<op>_failed" message key.
const (
	OpFind           = "find"
	OpCreate         = "create"
	OpUpdate         = "update"
	OpDelete         = "delete"
	OpBatchCreate    = "batch_create"
	OpBatchUpdate    = "batch_update"
	OpBatchDelete    = "batch_delete"
	OpForceDelete    = "force_delete"
	OpRestore        = "restore"
	OpUpdateOrCreate = "update_or_create"
	OpExistsCheck    = "exists_check"
	OpCount          = "count"
)

// Error is the single error type surfaced by the resolver and the repository.
// It carries the kind and the data needed to render a localized message; the
// rendered text itself comes from a Messages catalog.
type Error struct {
	Kind Kind
	// Op names the failed operation for OperationFailed errors
	Op string
	// Detail is the record ID for NotFound and the column for InvalidSortColumn
	Detail any
	Err    error
}

// Error renders the message in English
func (e *Error) Error() string {
	return defaultMessages.Render(language.English, e)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a sentinel of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Op == "" || t.Op == e.Op
}

// StatusCode returns the HTTP status matching the kind
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindOperationFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// MessageKey returns the catalog key used to render the error
func (e *Error) MessageKey() string {
	switch e.Kind {
	case KindInvalidFilterFormat:
		return "invalid_filter_format"
	case KindFilterMustBeArray:
		return "filter_must_be_array"
	case KindInvalidRelationFieldFormat:
		return "invalid_relation_field_format"
	case KindInvalidOrderDirection:
		return "invalid_order_direction"
	case KindInvalidSortColumn:
		return "invalid_sort_column"
	case KindNotFound:
		return "record_not_found"
	case KindOperationFailed:
		if e.Op == "" {
			return "operation_failed"
		}
		return e.Op + "_failed"
	default:
		return "operation_failed"
	}
}

// messageArgs returns the arguments substituted into the message template
func (e *Error) messageArgs() []any {
	switch e.Kind {
	case KindNotFound:
		return []any{fmt.Sprint(e.Detail)}
	case KindInvalidSortColumn:
		return []any{fmt.Sprint(e.Detail)}
	case KindOperationFailed:
		if e.Err == nil {
			return []any{"unknown error"}
		}
		return []any{e.Err.Error()}
	default:
		return nil
	}
}

func newError(kind Kind, detail any) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func operationFailed(op string, err error) *Error {
	return &Error{Kind: KindOperationFailed, Op: op, Err: err}
}

// KindOf returns the kind of err, or 0 when err is not an *Error
func KindOf(err error) Kind {
	var repoErr *Error
	if errors.As(err, &repoErr) {
		return repoErr.Kind
	}
	return 0
}

// IsNotFound returns true if err is a NotFound error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
