package core

import "errors"

var (
	ErrInvalidAddress    = errors.New("invalid ethereum address")
	ErrMalformedMessage  = errors.New("malformed challenge message")
	ErrExpiredChallenge  = errors.New("challenge has expired")
	ErrInvalidNonce      = errors.New("invalid nonce")
	ErrSignatureMismatch = errors.New("signature does not match address")
	ErrInternalFault     = errors.New("internal fault")

	ErrCredentialMalformed        = errors.New("malformed credential")
	ErrCredentialExpired          = errors.New("credential has expired")
	ErrCredentialSignatureInvalid = errors.New("credential signature is invalid")
)

// Machine-readable error kinds returned to clients
const (
	KindInvalidAddress             = "InvalidAddress"
	KindMalformedMessage           = "MalformedMessage"
	KindExpiredChallenge           = "ExpiredChallenge"
	KindInvalidNonce               = "InvalidNonce"
	KindSignatureMismatch          = "SignatureMismatch"
	KindInternalFault              = "InternalFault"
	KindCredentialMalformed        = "Malformed"
	KindCredentialExpired          = "Expired"
	KindCredentialSignatureInvalid = "SignatureInvalid"
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrInvalidAddress, KindInvalidAddress},
	{ErrMalformedMessage, KindMalformedMessage},
	{ErrExpiredChallenge, KindExpiredChallenge},
	{ErrInvalidNonce, KindInvalidNonce},
	{ErrSignatureMismatch, KindSignatureMismatch},
	{ErrCredentialMalformed, KindCredentialMalformed},
	{ErrCredentialExpired, KindCredentialExpired},
	{ErrCredentialSignatureInvalid, KindCredentialSignatureInvalid},
}

// Kind returns the stable name of the error's category.
// Errors outside the taxonomy are reported as InternalFault.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternalFault
}

// FromKind returns the sentinel error for kind, or nil if kind is unknown.
func FromKind(kind string) error {
	if kind == KindInternalFault {
		return ErrInternalFault
	}
	for _, k := range kinds {
		if k.kind == kind {
			return k.err
		}
	}
	return nil
}
