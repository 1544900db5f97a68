/*
errors.go - Centralized error taxonomy for the ledger core

PURPOSE:
  Four error kinds cover every failure the core surfaces:

  1. NotFound            - a transaction, sheet or referenced entity does not
                           exist (or belongs to another user)
  2. InvalidInput        - malformed amount, a non-positive magnitude, or a
                           kind-specific field used on the wrong kind
  3. ConstraintViolation - foreign-key or uniqueness violations raised by
                           the store
  4. OperationFailed     - any other store-level failure

PROPAGATION:
  The reconciliation engine never retries. Every failure aborts the current
  unit of work via rollback and propagates unchanged to the caller; the
  request layer maps the kind to an HTTP status.

USAGE:
  if ledger.IsNotFound(err) { ... }

  var nf *ledger.NotFoundError
  if errors.As(err, &nf) {
      log.Printf("missing %s (%s=%s)", nf.Entity, nf.Field, nf.ID)
  }

SEE ALSO:
  - engine.go: Produces these errors
  - store/sqlite: Wraps driver errors into ConstraintViolation/OperationFailed
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a transaction, current sheet or referenced
	// entity does not exist for the acting user.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned for malformed identifiers, non-positive or
	// unparseable amounts, and kind-specific fields used on the wrong kind.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConstraintViolation is returned when the store rejects a write with
	// a foreign-key or uniqueness violation.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrOperationFailed is the catch-all for store failures not otherwise
	// classified.
	ErrOperationFailed = errors.New("operation failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError names exactly which entity and field failed to resolve, so
// callers can report "expense_id x was invalid" rather than a bare 404.
type NotFoundError struct {
	Entity string // "transaction", "current_sheet", "asset", "contact", "expense"
	Field  string // the input field carrying the unresolved id
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s=%s", e.Entity, e.Field, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InvalidInputError names the offending field and why it was rejected.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Unwrap() error { return ErrInvalidInput }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsInvalidInput returns true if the error is due to invalid caller input.
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }

// IsConstraintViolation returns true for store-level FK/uniqueness rejections.
func IsConstraintViolation(err error) bool { return errors.Is(err, ErrConstraintViolation) }

// IsClientError returns true if the caller, not the system, caused the error.
func IsClientError(err error) bool {
	return IsNotFound(err) || IsInvalidInput(err) || IsConstraintViolation(err)
}
