package cryptoutil

import "errors"

var (
	// ErrAuthFailed is returned whenever AEAD tag verification fails. It is
	// deliberately the same error whether the key is wrong or the
	// ciphertext is tampered; callers translate it to their own
	// user-visible taxonomy without distinguishing the cause.
	ErrAuthFailed        = errors.New("cryptoutil: authentication failed")
	ErrUnsupportedCipher = errors.New("cryptoutil: unsupported cipher suite")
)
