package core

import "github.com/pkg/errors"

// Error kinds shared by every domain package. Match them with errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicateKey     = errors.New("duplicate key")
	ErrCapacityExceeded = errors.New("maximum attendance limit reached")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrForbidden        = errors.New("permission denied")

	ErrInvalidCredentials = errors.New("invalid credentials")
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

func (err ValidationError) Unwrap() error { return err.Err }

// NotFoundError reports a missing root entity.
type NotFoundError struct {
	Resource string
}

func NewNotFoundError(resource string) error {
	return &NotFoundError{Resource: resource}
}

func (err NotFoundError) Error() string { return err.Resource + " not found" }

func (err NotFoundError) Is(target error) bool { return target == ErrNotFound }

// DuplicateKeyError reports a unique-constraint violation on a single field.
type DuplicateKeyError struct {
	Field   string
	Message string
}

func NewDuplicateKeyError(field, msg string) error {
	return &DuplicateKeyError{Field: field, Message: msg}
}

func (err DuplicateKeyError) Error() string { return err.Message }

func (err DuplicateKeyError) Is(target error) bool { return target == ErrDuplicateKey }

// StoreError wraps a failure of the underlying data store.
type StoreError struct {
	Op  string
	Err error
}

func (err StoreError) Error() string { return err.Op + ": " + err.Err.Error() }

func (err StoreError) Unwrap() error { return err.Err }

func (err StoreError) Is(target error) bool { return target == ErrStoreUnavailable }

// StoreFailure classifies err as a StoreError unless it already carries a domain error kind.
func StoreFailure(err error, op string) error {
	if err == nil {
		return nil
	}
	var vErr *ValidationError
	if errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrDuplicateKey) ||
		errors.Is(err, ErrCapacityExceeded) ||
		errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrForbidden) ||
		errors.As(err, &vErr) {
		return errors.Wrap(err, op)
	}
	return &StoreError{Op: op, Err: err}
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	var s *shutdown
	return errors.As(err, &s)
}
