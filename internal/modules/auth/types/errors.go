package types

import "errors"

// AuthErrorKind classifies authentication and authorization failures.
type AuthErrorKind int

const (
	// AuthMissing: no credential supplied, or the credential is unknown to
	// the token store (revoked or already swept).
	AuthMissing AuthErrorKind = iota
	// AuthMalformed: the credential could not be decoded or verified.
	AuthMalformed
	// AuthExpired: the credential is past its expiry.
	AuthExpired
	// AuthForbidden: authenticated, but the role does not permit the route.
	AuthForbidden
)

type AuthError struct {
	Kind AuthErrorKind
	Err  error
}

func (e *AuthError) Error() string {
	switch e.Kind {
	case AuthMissing:
		return "auth: missing token"
	case AuthMalformed:
		return "auth: malformed token"
	case AuthExpired:
		return "auth: expired token"
	case AuthForbidden:
		return "auth: forbidden"
	default:
		return "auth: error"
	}
}

func (e *AuthError) Unwrap() error { return e.Err }

func NewAuthError(kind AuthErrorKind, cause error) *AuthError {
	return &AuthError{Kind: kind, Err: cause}
}

// AuthKind extracts the failure kind, reporting ok=false for non-auth errors.
func AuthKind(err error) (AuthErrorKind, bool) {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return 0, false
}
