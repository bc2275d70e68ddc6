package jwt

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Algorithm names a supported signing algorithm.
type Algorithm string

const (
	// HS256 signs with a shared secret. It is also the fallback algorithm.
	HS256 Algorithm = "HS256"
	// RS256 signs with an RSA private key and verifies with its public key.
	RS256 Algorithm = "RS256"
	// EdDSA signs with an Ed25519 private key and verifies with its public key.
	EdDSA Algorithm = "EdDSA"
)

// TokenType is the value of the "type" claim.
type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
)

const fallbackSecretBytes = 32

var (
	// ErrTokenInvalid wraps every decode failure: bad signature, wrong
	// algorithm, malformed segments, missing claims or expiry.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrWrongTokenType is returned when an access token is presented where a
	// refresh token is expected, or the reverse.
	ErrWrongTokenType = fmt.Errorf("%w: unexpected token type", ErrTokenInvalid)
)

// Config selects the signing algorithm, keys and lifetimes.
//
// PrivateKey and PublicKey are PEM encoded; for EdDSA raw 64/32 byte keys are
// accepted as well. PublicKey may be omitted when PrivateKey is set.
type Config struct {
	Algorithm  Algorithm
	Secret     []byte
	PrivateKey []byte
	PublicKey  []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
	Leeway     time.Duration
}

// Claims is the wire form shared by both token types.
type Claims struct {
	Role      string    `json:"role,omitempty"`
	SessionID string    `json:"session_id"`
	Type      TokenType `json:"type"`
	jwt.RegisteredClaims
}

// AccessClaims are the validated claims of an access token.
type AccessClaims struct {
	UserID    string
	Role      string
	SessionID string
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Remaining returns how long the token stays valid after now, never negative.
func (c *AccessClaims) Remaining(now time.Time) time.Duration {
	return remaining(c.ExpiresAt, now)
}

// RefreshClaims are the validated claims of a refresh token.
type RefreshClaims struct {
	UserID    string
	SessionID string
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Remaining returns how long the token stays valid after now, never negative.
func (c *RefreshClaims) Remaining(now time.Time) time.Duration {
	return remaining(c.ExpiresAt, now)
}

func remaining(exp, now time.Time) time.Duration {
	if d := exp.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Manager issues and decodes tokens. The algorithm and keys are resolved once
// in NewManager and never change afterwards.
type Manager struct {
	config    Config
	method    jwt.SigningMethod
	signKey   interface{}
	verifyKey interface{}
	fallback  bool
	now       func() time.Time
}

// NewManager validates cfg and resolves the signing method.
//
// An asymmetric algorithm without a private key falls back to HS256 over
// cfg.Secret; when no secret is configured either, a random per-process
// secret is generated. Malformed keys are reported as errors.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	m := &Manager{config: cfg, now: time.Now}

	switch cfg.Algorithm {
	case RS256, EdDSA:
		if len(cfg.PrivateKey) == 0 {
			if err := m.useFallback(); err != nil {
				return nil, err
			}
			break
		}
		if err := m.useAsymmetric(); err != nil {
			return nil, err
		}
	case HS256, "":
		if err := m.useFallback(); err != nil {
			return nil, err
		}
		// A configured secret makes HS256 a choice, not a fallback.
		m.fallback = len(cfg.Secret) == 0
	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}

	return m, nil
}

func (m *Manager) useFallback() error {
	secret := m.config.Secret
	if len(secret) == 0 {
		secret = make([]byte, fallbackSecretBytes)
		if _, err := io.ReadFull(rand.Reader, secret); err != nil {
			return fmt.Errorf("generate fallback secret: %w", err)
		}
	}

	m.method = jwt.SigningMethodHS256
	m.signKey = secret
	m.verifyKey = secret
	m.fallback = true
	return nil
}

func (m *Manager) useAsymmetric() error {
	switch m.config.Algorithm {
	case RS256:
		priv, err := jwt.ParseRSAPrivateKeyFromPEM(m.config.PrivateKey)
		if err != nil {
			return errors.New("invalid rsa private key")
		}
		var pub *rsa.PublicKey
		if len(m.config.PublicKey) > 0 {
			pub, err = jwt.ParseRSAPublicKeyFromPEM(m.config.PublicKey)
			if err != nil {
				return errors.New("invalid rsa public key")
			}
		} else {
			pub = &priv.PublicKey
		}
		m.method = jwt.SigningMethodRS256
		m.signKey = priv
		m.verifyKey = pub
	case EdDSA:
		priv, err := parseEdPrivateKey(m.config.PrivateKey)
		if err != nil {
			return err
		}
		var pub crypto.PublicKey = priv.Public()
		if len(m.config.PublicKey) > 0 {
			if pub, err = parseEdPublicKey(m.config.PublicKey); err != nil {
				return err
			}
		}
		m.method = jwt.SigningMethodEdDSA
		m.signKey = priv
		m.verifyKey = pub
	}
	return nil
}

// Algorithm returns the algorithm actually in use.
func (m *Manager) Algorithm() Algorithm {
	return Algorithm(m.method.Alg())
}

// Fallback reports whether HS256 was chosen because no asymmetric key or no
// secret was configured.
func (m *Manager) Fallback() bool {
	return m.fallback
}

// AccessTTL returns the default access token lifetime.
func (m *Manager) AccessTTL() time.Duration {
	return m.config.AccessTTL
}

// RefreshTTL returns the default refresh token lifetime.
func (m *Manager) RefreshTTL() time.Duration {
	return m.config.RefreshTTL
}

// CreateAccess mints an access token. A non-positive ttl uses AccessTTL.
func (m *Manager) CreateAccess(userID, role, sessionID string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = m.config.AccessTTL
	}

	token, _, err := m.sign(Claims{Role: role, SessionID: sessionID, Type: TypeAccess}, userID, ttl)
	return token, err
}

// CreateRefresh mints a refresh token and returns its jti alongside, which
// the session store records as the only refresh token valid for sessionID.
func (m *Manager) CreateRefresh(userID, sessionID string, ttl time.Duration) (string, string, error) {
	if ttl <= 0 {
		ttl = m.config.RefreshTTL
	}

	return m.sign(Claims{SessionID: sessionID, Type: TypeRefresh}, userID, ttl)
}

func (m *Manager) sign(claims Claims, userID string, ttl time.Duration) (string, string, error) {
	now := m.now()
	jti := uuid.NewString()

	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        jti,
		Issuer:    m.config.Issuer,
	}

	signed, err := jwt.NewWithClaims(m.method, claims).SignedString(m.signKey)
	if err != nil {
		return "", "", fmt.Errorf("sign %s token: %w", claims.Type, err)
	}

	return signed, jti, nil
}

// Decode verifies the signature and expiry and returns the raw claims. It does
// not look at the type claim; use DecodeAccess or DecodeRefresh for that.
func (m *Manager) Decode(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != m.method.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.verifyKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// DecodeAccess decodes tokenStr and requires an access token with all of its
// claims present.
func (m *Manager) DecodeAccess(tokenStr string) (*AccessClaims, error) {
	claims, err := m.Decode(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.Type != TypeAccess {
		return nil, ErrWrongTokenType
	}
	if err := requireIdentity(claims); err != nil {
		return nil, err
	}
	if claims.Role == "" {
		return nil, fmt.Errorf("%w: missing role", ErrTokenInvalid)
	}

	return &AccessClaims{
		UserID:    claims.Subject,
		Role:      claims.Role,
		SessionID: claims.SessionID,
		JTI:       claims.ID,
		IssuedAt:  numericTime(claims.IssuedAt),
		ExpiresAt: numericTime(claims.ExpiresAt),
	}, nil
}

// DecodeRefresh decodes tokenStr and requires a refresh token.
func (m *Manager) DecodeRefresh(tokenStr string) (*RefreshClaims, error) {
	claims, err := m.Decode(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.Type != TypeRefresh {
		return nil, ErrWrongTokenType
	}
	if err := requireIdentity(claims); err != nil {
		return nil, err
	}

	return &RefreshClaims{
		UserID:    claims.Subject,
		SessionID: claims.SessionID,
		JTI:       claims.ID,
		IssuedAt:  numericTime(claims.IssuedAt),
		ExpiresAt: numericTime(claims.ExpiresAt),
	}, nil
}

func requireIdentity(claims *Claims) error {
	switch {
	case claims.Subject == "":
		return fmt.Errorf("%w: missing sub", ErrTokenInvalid)
	case claims.SessionID == "":
		return fmt.Errorf("%w: missing session_id", ErrTokenInvalid)
	case claims.ID == "":
		return fmt.Errorf("%w: missing jti", ErrTokenInvalid)
	}
	return nil
}

func numericTime(d *jwt.NumericDate) time.Time {
	if d == nil {
		return time.Time{}
	}
	return d.Time
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
