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

const phcPrefix = "$argon2id$"

// Lower bounds for both configured and decoded parameters.
const (
	minMemoryKiB   uint32 = 8 * 1024
	minTime        uint32 = 1
	minParallelism uint8  = 1
	minSaltBytes   uint32 = 16
	minKeyBytes    uint32 = 16
)

var (
	// ErrEmptyPassword is returned by Hash for a zero-length password.
	ErrEmptyPassword = errors.New("password must not be empty")
	// ErrMalformedHash is wrapped by every Decode failure.
	ErrMalformedHash = errors.New("malformed argon2id hash")
)

// Config holds the Argon2id cost parameters new hashes are produced with.
type Config struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultConfig returns t=3, m=64 MiB, p=4 with a 32 byte key and 16 byte salt.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 4,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func (c Config) validate() error {
	switch {
	case c.Memory < minMemoryKiB:
		return fmt.Errorf("password memory must be >= %d KiB", minMemoryKiB)
	case c.Time < minTime:
		return fmt.Errorf("password time must be >= %d", minTime)
	case c.Parallelism < minParallelism:
		return fmt.Errorf("password parallelism must be >= %d", minParallelism)
	case c.SaltLength < minSaltBytes:
		return fmt.Errorf("password salt length must be >= %d", minSaltBytes)
	case c.KeyLength < minKeyBytes:
		return fmt.Errorf("password key length must be >= %d", minKeyBytes)
	}
	return nil
}

// Decoded is a parsed $argon2id$ PHC string.
type Decoded struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	Salt        []byte
	Key         []byte
}

// Decode parses encoded. Salt and key may be raw or padded standard base64.
func Decode(encoded string) (*Decoded, error) {
	rest, ok := strings.CutPrefix(encoded, phcPrefix)
	if !ok {
		return nil, fmt.Errorf("%w: not an argon2id PHC string", ErrMalformedHash)
	}
	fields := strings.Split(rest, "$")
	if len(fields) != 4 {
		return nil, fmt.Errorf("%w: want 4 fields after prefix, got %d", ErrMalformedHash, len(fields))
	}

	if fields[0] != fmt.Sprintf("v=%d", argon2.Version) {
		return nil, fmt.Errorf("%w: unsupported version %q", ErrMalformedHash, fields[0])
	}

	var (
		d   Decoded
		par uint32
	)
	n, err := fmt.Sscanf(fields[1], "m=%d,t=%d,p=%d", &d.Memory, &d.Time, &par)
	if err != nil || n != 3 || fields[1] != fmt.Sprintf("m=%d,t=%d,p=%d", d.Memory, d.Time, par) {
		return nil, fmt.Errorf("%w: bad parameters %q", ErrMalformedHash, fields[1])
	}
	if par > 255 {
		return nil, fmt.Errorf("%w: parallelism %d out of range", ErrMalformedHash, par)
	}
	d.Parallelism = uint8(par)
	if d.Memory < minMemoryKiB || d.Time < minTime || d.Parallelism < minParallelism {
		return nil, fmt.Errorf("%w: parameters below minimum", ErrMalformedHash)
	}

	if d.Salt, err = decodeB64(fields[2]); err != nil || uint32(len(d.Salt)) < minSaltBytes {
		return nil, fmt.Errorf("%w: bad salt", ErrMalformedHash)
	}
	if d.Key, err = decodeB64(fields[3]); err != nil || uint32(len(d.Key)) < minKeyBytes {
		return nil, fmt.Errorf("%w: bad key", ErrMalformedHash)
	}
	return &d, nil
}

func decodeB64(s string) ([]byte, error) {
	if strings.HasSuffix(s, "=") {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}

// Argon2 hashes and verifies passwords. It is safe for concurrent use.
type Argon2 struct {
	cfg Config
}

// NewArgon2 validates cfg and returns a hasher bound to it.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Argon2{cfg: cfg}, nil
}

// Config returns the parameters new hashes are produced with.
func (a *Argon2) Config() Config {
	return a.cfg
}

// Hash returns a PHC encoded Argon2id hash over a fresh random salt.
// Passwords are hashed as raw bytes, without Unicode normalization.
func (a *Argon2) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, a.cfg.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, a.cfg.Time, a.cfg.Memory, a.cfg.Parallelism, a.cfg.KeyLength)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		phcPrefix, argon2.Version,
		a.cfg.Memory, a.cfg.Time, a.cfg.Parallelism,
		b64.EncodeToString(salt), b64.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encoded, using the parameters
// embedded in encoded. Anything Decode rejects verifies as false.
func (a *Argon2) Verify(password, encoded string) bool {
	d, err := Decode(encoded)
	if err != nil {
		return false
	}
	key := argon2.IDKey([]byte(password), d.Salt, d.Time, d.Memory, d.Parallelism, uint32(len(d.Key)))
	return subtle.ConstantTimeCompare(key, d.Key) == 1
}

// NeedsRehash reports whether encoded differs from the configured cost
// parameters or key length. Undecodable hashes always need a rehash.
func (a *Argon2) NeedsRehash(encoded string) bool {
	d, err := Decode(encoded)
	if err != nil {
		return true
	}
	return d.Memory != a.cfg.Memory ||
		d.Time != a.cfg.Time ||
		d.Parallelism != a.cfg.Parallelism ||
		uint32(len(d.Key)) != a.cfg.KeyLength
}
