package vault

import (
	"errors"
	"fmt"
)

// Kind identifies which row of the error taxonomy an error belongs to.
// User-facing surfaces switch on Kind rather than comparing error strings.
type Kind uint8

const (
	KindInvalidInput Kind = iota
	KindNotAVault
	KindExists
	KindInvalidPassword
	KindDecryptFailure
	KindResourceBusy
	KindIOFailure
	KindInvalidState
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNotAVault:
		return "not_a_vault"
	case KindExists:
		return "exists"
	case KindInvalidPassword:
		return "invalid_password"
	case KindDecryptFailure:
		return "decrypt_failure"
	case KindResourceBusy:
		return "resource_busy"
	case KindIOFailure:
		return "io_failure"
	case KindInvalidState:
		return "invalid_state"
	default:
		return "unknown"
	}
}

// Error is the single error type this module returns. It carries a Kind so
// callers can classify failures with errors.As, a Path when the failure
// names an on-disk location, and an optional wrapped cause. Messages never
// include passwords, key bytes, or plaintext content.
type Error struct {
	Kind    Kind
	Path    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, vault.ErrInvalidPassword) work against a *Error by
// comparing Kind instead of identity, matching how sentinel errors are
// normally compared.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newErr(kind Kind, path, message string, cause error) *Error {
	return &Error{Kind: kind, Path: path, Message: message, Err: cause}
}

// Sentinel values for errors.Is comparisons against a bare kind, with no
// path or wrapped cause attached.
var (
	ErrInvalidInput    = &Error{Kind: KindInvalidInput, Message: "invalid input"}
	ErrNotAVault       = &Error{Kind: KindNotAVault, Message: "not a vault"}
	ErrExists          = &Error{Kind: KindExists, Message: "already exists"}
	ErrInvalidPassword = &Error{Kind: KindInvalidPassword, Message: "invalid password"}
	ErrDecryptFailure  = &Error{Kind: KindDecryptFailure, Message: "decryption failed"}
	ErrResourceBusy    = &Error{Kind: KindResourceBusy, Message: "resource busy"}
	ErrIOFailure       = &Error{Kind: KindIOFailure, Message: "I/O failure"}
	ErrInvalidState    = &Error{Kind: KindInvalidState, Message: "invalid session state"}
)

func invalidInput(message string, args ...any) error {
	return newErr(KindInvalidInput, "", fmt.Sprintf(message, args...), nil)
}

func notAVault(path string) error {
	return newErr(KindNotAVault, path, "directory is not a vault", nil)
}

func exists(path string) error {
	return newErr(KindExists, path, "already exists", nil)
}

func invalidPassword(cause error) error {
	return newErr(KindInvalidPassword, "", "wrong password or corrupt vault", cause)
}

func decryptFailure(path string, cause error) error {
	return newErr(KindDecryptFailure, path, "authenticated decryption failed", cause)
}

func resourceBusy(path string, cause error) error {
	return newErr(KindResourceBusy, path, "file is open elsewhere", cause)
}

func ioFailure(path string, cause error) error {
	return newErr(KindIOFailure, path, cause.Error(), cause)
}

func invalidState(message string) error {
	return newErr(KindInvalidState, "", message, nil)
}

// KindOf extracts the Kind from err if it (or something it wraps) is a
// *Error, reporting ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// Is<Kind>Error predicates, for callers that want a plain bool instead of
// switching on Kind themselves.
func IsInvalidInputError(err error) bool    { return isKind(err, KindInvalidInput) }
func IsNotAVaultError(err error) bool       { return isKind(err, KindNotAVault) }
func IsExistsError(err error) bool          { return isKind(err, KindExists) }
func IsInvalidPasswordError(err error) bool { return isKind(err, KindInvalidPassword) }
func IsDecryptFailureError(err error) bool  { return isKind(err, KindDecryptFailure) }
func IsResourceBusyError(err error) bool    { return isKind(err, KindResourceBusy) }
func IsIOFailureError(err error) bool       { return isKind(err, KindIOFailure) }
func IsInvalidStateError(err error) bool    { return isKind(err, KindInvalidState) }

func isKind(err error, k Kind) bool {
	kind, ok := KindOf(err)
	return ok && kind == k
}
