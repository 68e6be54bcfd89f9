// Package shared holds the error taxonomy common to the accounting modules.
package shared

import (
	"errors"
	"net/http"
)

// Structural errors reject a request before any mutation.
var (
	// ErrInvalidParent indicates the parent account is missing, inactive, or not a group.
	ErrInvalidParent = errors.New("accounting: invalid parent account")
	// ErrTypeMismatch indicates an explicit account type conflicts with the parent's category.
	ErrTypeMismatch = errors.New("accounting: account type conflicts with parent")
	// ErrImmutableField indicates an attempt to change code, parent, or type after creation.
	ErrImmutableField = errors.New("accounting: field is immutable after creation")
	// ErrHasChildren indicates the account still has sub-accounts.
	ErrHasChildren = errors.New("accounting: account has sub-accounts")
	// ErrHasHistory indicates posted journal lines reference the account.
	ErrHasHistory = errors.New("accounting: account has posted journal history")
	// ErrAccountNotFound indicates the account does not exist.
	ErrAccountNotFound = errors.New("accounting: account not found")
)

// Balance-integrity errors reject a journal entry before any mutation.
var (
	// ErrUnbalancedEntry indicates debits and credits do not balance.
	ErrUnbalancedEntry = errors.New("accounting: journal lines must balance")
	// ErrEmptyEntry indicates fewer than two journal lines.
	ErrEmptyEntry = errors.New("accounting: journal requires at least two lines")
	// ErrInvalidAccount indicates a line references a missing, inactive, or group account.
	ErrInvalidAccount = errors.New("accounting: line references a non-postable account")
)

// Concurrency errors are transient and safe to retry.
var (
	// ErrConcurrencyConflict indicates posting lost a serialization race after bounded retries.
	ErrConcurrencyConflict = errors.New("accounting: concurrent posting conflict")
)

// Lifecycle errors indicate caller logic mistakes, not data corruption.
var (
	// ErrAlreadyReversed indicates the entry was already cancelled or archived.
	ErrAlreadyReversed = errors.New("accounting: journal entry already reversed")
	// ErrNotPosted indicates the operation requires a posted entry.
	ErrNotPosted = errors.New("accounting: journal entry is not posted")
	// ErrNotDraft indicates the operation requires a draft entry.
	ErrNotDraft = errors.New("accounting: journal entry is not a draft")
	// ErrJournalNotFound indicates the journal entry does not exist.
	ErrJournalNotFound = errors.New("accounting: journal entry not found")
	// ErrSourceAlreadyLinked indicates a sub-ledger record is already linked to an entry.
	ErrSourceAlreadyLinked = errors.New("accounting: source already linked to a journal entry")
	// ErrUnknownSourceKind indicates an unregistered sub-ledger source tag.
	ErrUnknownSourceKind = errors.New("accounting: unknown source kind")
)

// Configuration errors.
var (
	// ErrSystemAccountNotConfigured indicates a logical account key has no mapping.
	ErrSystemAccountNotConfigured = errors.New("accounting: system account not configured")
)

// StatusFor maps a domain error to an HTTP status and problem title.
// Unknown errors map to 500 with an empty title so handlers do not leak
// storage details.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrJournalNotFound),
		errors.Is(err, ErrSystemAccountNotConfigured):
		return http.StatusNotFound, "Not Found"
	case errors.Is(err, ErrInvalidParent),
		errors.Is(err, ErrTypeMismatch),
		errors.Is(err, ErrImmutableField),
		errors.Is(err, ErrUnbalancedEntry),
		errors.Is(err, ErrEmptyEntry),
		errors.Is(err, ErrInvalidAccount),
		errors.Is(err, ErrUnknownSourceKind):
		return http.StatusUnprocessableEntity, "Validation Failed"
	case errors.Is(err, ErrHasChildren),
		errors.Is(err, ErrHasHistory),
		errors.Is(err, ErrAlreadyReversed),
		errors.Is(err, ErrNotPosted),
		errors.Is(err, ErrNotDraft),
		errors.Is(err, ErrSourceAlreadyLinked):
		return http.StatusConflict, "Conflict"
	case errors.Is(err, ErrConcurrencyConflict):
		return http.StatusConflict, "Concurrent Modification"
	default:
		return http.StatusInternalServerError, "Internal Error"
	}
}
