package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const algorithm = "argon2id"

var (
	// ErrEmptyPassword is returned by Hash for an empty password.
	ErrEmptyPassword = errors.New("password: empty password")
	// ErrMalformedHash is returned by Verify when the stored hash is not an
	// argon2id PHC string this package can read.
	ErrMalformedHash = errors.New("password: malformed hash")
	// ErrInvalidParams is returned by NewHasher for unusable cost parameters.
	ErrInvalidParams = errors.New("password: invalid params")
)

// Params are the Argon2id cost parameters. Memory is in KiB.
type Params struct {
	Memory     uint32
	Passes     uint32
	Lanes      uint8
	SaltLength uint32
	KeyLength  uint32
}

// MockParams are cheap enough to hash a few thousand seeded accounts at startup.
func MockParams() Params {
	return Params{Memory: 64, Passes: 1, Lanes: 1, SaltLength: 16, KeyLength: 32}
}

// Validate checks p against the limits Argon2id itself imposes.
func (p Params) Validate() error {
	switch {
	case p.Lanes == 0:
		return fmt.Errorf("%w: lanes must be >= 1", ErrInvalidParams)
	case p.Memory < 8*uint32(p.Lanes):
		return fmt.Errorf("%w: memory must be >= 8 KiB per lane", ErrInvalidParams)
	case p.Passes == 0:
		return fmt.Errorf("%w: passes must be >= 1", ErrInvalidParams)
	case p.SaltLength < 8:
		return fmt.Errorf("%w: salt must be >= 8 bytes", ErrInvalidParams)
	case p.KeyLength < 16:
		return fmt.Errorf("%w: key must be >= 16 bytes", ErrInvalidParams)
	}
	return nil
}

// Hasher hashes and verifies passwords. It holds no mutable state and is safe for
// concurrent use.
type Hasher struct {
	params Params
}

// NewHasher returns a hasher that hashes with p.
func NewHasher(p Params) (*Hasher, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Hasher{params: p}, nil
}

// Hash returns the PHC encoding of pw under a fresh random salt.
func (h *Hasher) Hash(pw string) (string, error) {
	if pw == "" {
		return "", ErrEmptyPassword
	}
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("password: read salt: %w", err)
	}
	key := argon2.IDKey([]byte(pw), salt, h.params.Passes, h.params.Memory, h.params.Lanes, h.params.KeyLength)
	return encode(h.params, salt, key), nil
}

// Verify reports whether pw matches encoded. A wrong password is (false, nil); an
// unreadable hash is an error wrapping [ErrMalformedHash].
func (h *Hasher) Verify(pw, encoded string) (bool, error) {
	p, salt, key, err := decode(encoded)
	if err != nil {
		return false, err
	}
	got := argon2.IDKey([]byte(pw), salt, p.Passes, p.Memory, p.Lanes, uint32(len(key)))
	return subtle.ConstantTimeCompare(got, key) == 1, nil
}

// Outdated reports whether encoded was produced with a lower cost than the
// hasher's own params.
func (h *Hasher) Outdated(encoded string) (bool, error) {
	p, _, key, err := decode(encoded)
	if err != nil {
		return false, err
	}
	return p.Memory < h.params.Memory ||
		p.Passes < h.params.Passes ||
		p.Lanes < h.params.Lanes ||
		uint32(len(key)) != h.params.KeyLength, nil
}

var b64 = base64.RawStdEncoding

func encode(p Params, salt, key []byte) string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithm, argon2.Version, p.Memory, p.Passes, p.Lanes,
		b64.EncodeToString(salt), b64.EncodeToString(key))
}

func decode(encoded string) (Params, []byte, []byte, error) {
	var p Params
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != algorithm {
		return p, nil, nil, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, nil, nil, fmt.Errorf("%w: version %q", ErrMalformedHash, fields[2])
	}
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Passes, &p.Lanes); err != nil {
		return p, nil, nil, fmt.Errorf("%w: params %q", ErrMalformedHash, fields[3])
	}

	salt, err := b64.DecodeString(fields[4])
	if err != nil {
		return p, nil, nil, fmt.Errorf("%w: salt: %v", ErrMalformedHash, err)
	}
	key, err := b64.DecodeString(fields[5])
	if err != nil {
		return p, nil, nil, fmt.Errorf("%w: key: %v", ErrMalformedHash, err)
	}
	p.SaltLength = uint32(len(salt))
	p.KeyLength = uint32(len(key))
	if err := p.Validate(); err != nil {
		return p, nil, nil, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	return p, salt, key, nil
}
