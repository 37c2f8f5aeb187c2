// Package coreerr implements the discriminated error kinds of spec §7. Every
// error that crosses the Context API boundary (Execute's Error status) is
// tagged with one of these kinds so a host can decide whether to retry.
package coreerr

import "fmt"

// Kind discriminates the terminal reason a Prover/Verifier context failed.
type Kind int

const (
	// InputInvalid: malformed method, params shape, unsupported chain id,
	// or an unsupported proof-request version.
	InputInvalid Kind = iota
	// FetchFailed: a pending data request resolved with set_error.
	FetchFailed
	// DecodeFailed: SSZ/JSON/RLP parse error, truncation, or bad offsets.
	DecodeFailed
	// ProofInvalid: a Merkle branch or Patricia node hash did not recompute
	// to the claimed root.
	ProofInvalid
	// SignatureInvalid: the BLS aggregate check failed, or the
	// participation bitmask was empty/oversize.
	SignatureInvalid
	// SyncGap: the verifier cannot reach the attested period from its
	// current sync state with the supplied sync_data.
	SyncGap
	// IntegrityMismatch: the claimed result does not match the proof.
	IntegrityMismatch
	// Retryable: a transient fetch failure (JSON-RPC -32602, or a
	// prover-directed retry marker) that should be re-issued against a
	// different node before being surfaced as FetchFailed.
	Retryable
)

func (k Kind) String() string {
	switch k {
	case InputInvalid:
		return "InputInvalid"
	case FetchFailed:
		return "FetchFailed"
	case DecodeFailed:
		return "DecodeFailed"
	case ProofInvalid:
		return "ProofInvalid"
	case SignatureInvalid:
		return "SignatureInvalid"
	case SyncGap:
		return "SyncGap"
	case IntegrityMismatch:
		return "IntegrityMismatch"
	case Retryable:
		return "Retryable"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error pairs a Kind with the underlying cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a *Error of the given kind wrapping msg.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf("%s", msg)}
}

// Wrap builds a *Error of the given kind wrapping err.
func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// Wrapf builds a *Error of the given kind with a formatted message.
func Wrapf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the Kind from err if it (or something it wraps) is a
// *Error; otherwise it returns DecodeFailed as the conservative default.
func KindOf(err error) Kind {
	var e *Error
	if asError(err, &e) {
		return e.Kind
	}
	return DecodeFailed
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
