package fault

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ValidationError indicates a request referenced role ids that do not resolve.
// It is raised before any external or local mutation.
type ValidationError struct {
	MissingRoleIDs []uuid.UUID
}

func (e *ValidationError) Error() string {
	ids := make([]string, len(e.MissingRoleIDs))
	for i, id := range e.MissingRoleIDs {
		ids[i] = id.String()
	}
	return "invalid role ids: " + strings.Join(ids, ", ")
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NotFoundError indicates a referenced company, user or identity provider
// does not exist for the operation.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// IsNotFound checks if an error is a not-found error
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

// ConflictError indicates an attempt to reassign a provider link whose
// binding is centrally managed.
type ConflictError struct {
	Alias  string
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on provider %q: %s", e.Alias, e.Reason)
}

// IsConflict checks if an error is a conflict error
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// RowFormatError indicates an upload row does not match the declared header.
type RowFormatError struct {
	Line   int
	Reason string
}

func (e *RowFormatError) Error() string {
	return fmt.Sprintf("malformed row %d: %s", e.Line, e.Reason)
}

// IsRowFormat checks if an error is a row format error
func IsRowFormat(err error) bool {
	var rfe *RowFormatError
	return errors.As(err, &rfe)
}

// ExternalSystemError indicates a call to the IAM gateway failed or timed out.
type ExternalSystemError struct {
	Op  string
	Err error
}

func (e *ExternalSystemError) Error() string {
	return fmt.Sprintf("iam gateway %s failed: %v", e.Op, e.Err)
}

func (e *ExternalSystemError) Unwrap() error {
	return e.Err
}

// IsExternalSystem checks if an error is an external system error
func IsExternalSystem(err error) bool {
	var ese *ExternalSystemError
	return errors.As(err, &ese)
}

// UnauthorizedError indicates the acting identifier does not resolve to a
// known company user.
type UnauthorizedError struct {
	Subject string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("unknown acting user %q", e.Subject)
}

// IsUnauthorized checks if an error is an unauthorized error
func IsUnauthorized(err error) bool {
	var ue *UnauthorizedError
	return errors.As(err, &ue)
}
