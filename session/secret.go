package session

import (
	"errors"
	"fmt"
)

// MinSecretLength is the minimum number of bytes of HMAC key material
const MinSecretLength = 32

const redacted = "[REDACTED]"

// ErrWeakSecret is returned when the signing key is shorter than MinSecretLength
var ErrWeakSecret = errors.New("session signing key is too short")

// Secret holds the process-wide HMAC signing key.
// It never prints, formats or serializes its value.
type Secret struct {
	material []byte
}

// NewSecret copies raw into a Secret after checking its length
func NewSecret(raw string) (Secret, error) {
	if len(raw) < MinSecretLength {
		return Secret{}, fmt.Errorf("%w: need at least %d bytes", ErrWeakSecret, MinSecretLength)
	}
	material := make([]byte, len(raw))
	copy(material, raw)
	return Secret{material: material}, nil
}

// String returns the redacted placeholder
func (s Secret) String() string { return redacted }

// GoString returns the redacted placeholder for %#v
func (s Secret) GoString() string { return redacted }

// MarshalText keeps the key out of JSON and text encodings
func (s Secret) MarshalText() ([]byte, error) { return []byte(redacted), nil }

// IsZero reports whether the secret holds no key material
func (s Secret) IsZero() bool { return len(s.material) == 0 }

func (s Secret) bytes() []byte { return s.material }
