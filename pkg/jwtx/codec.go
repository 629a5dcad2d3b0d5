package jwtx

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

// MinSecretLength is the shortest signing secret NewCodec accepts (256 bits).
const MinSecretLength = 32

const keyInfo = "sessionauth access-token hs256"

// CodecOptions configures a Codec.
type CodecOptions struct {
	// Secret is the shared signing secret. The HMAC key is derived from it
	// once in NewCodec.
	Secret string

	// TTL is the access token lifetime. Zero means DefaultAccessTokenTTL.
	TTL time.Duration

	// Issuer is written to "iss" and, when set, required on verification.
	Issuer string

	// Clock overrides time.Now, mainly for tests.
	Clock func() time.Time
}

// Codec issues and verifies HS256 access tokens. It holds no mutable state
// after construction and is safe for concurrent use.
type Codec struct {
	key    []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time

	validating *jwt.Parser
	signedOnly *jwt.Parser
}

func NewCodec(opts CodecOptions) (*Codec, error) {
	if len(opts.Secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: need at least %d bytes, got %d", ErrWeakSecret, MinSecretLength, len(opts.Secret))
	}

	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(opts.Secret), nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("jwtx: derive signing key: %w", err)
	}

	c := &Codec{
		key:    key,
		ttl:    opts.TTL,
		issuer: opts.Issuer,
		now:    opts.Clock,
	}
	if c.ttl <= 0 {
		c.ttl = DefaultAccessTokenTTL
	}
	if c.now == nil {
		c.now = time.Now
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	}
	if c.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(c.issuer))
	}
	c.validating = jwt.NewParser(parserOpts...)
	c.signedOnly = jwt.NewParser(jwt.WithoutClaimsValidation())

	return c, nil
}

// TTL is the lifetime given to every issued token.
func (c *Codec) TTL() time.Duration { return c.ttl }

// Issue signs a token for subject. roles is written to the "roles" claim
// unless extra already carries one. Registered claims in extra are
// overwritten.
func (c *Codec) Issue(subject string, roles []string, extra map[string]any) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("%w: empty subject", ErrInvalidClaim)
	}

	now := c.now().UTC()

	claims := make(jwt.MapClaims, len(extra)+6)
	for k, v := range extra {
		claims[k] = v
	}
	if _, ok := claims[ClaimRoles]; !ok {
		claims[ClaimRoles] = append([]string{}, roles...)
	}
	claims["sub"] = subject
	claims["iat"] = jwt.NewNumericDate(now)
	claims["exp"] = jwt.NewNumericDate(now.Add(c.ttl))
	claims["jti"] = NewJTI()
	if c.issuer != "" {
		claims["iss"] = c.issuer
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign: %w", err)
	}
	return signed, nil
}

// Parse verifies the signature, expiry and issuer and returns the claims.
func (c *Codec) Parse(token string) (Claims, error) {
	var claims Claims
	if _, err := c.validating.ParseWithClaims(token, &claims, c.keyFunc); err != nil {
		return Claims{}, classify(err)
	}
	return claims, nil
}

// ExtractSubject returns "sub" from a verified, unexpired token.
func (c *Codec) ExtractSubject(token string) (string, error) {
	claims, err := c.Parse(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// ExtractExpiry returns "exp" from a verified, unexpired token.
func (c *Codec) ExtractExpiry(token string) (time.Time, error) {
	claims, err := c.Parse(token)
	if err != nil {
		return time.Time{}, err
	}
	return claims.ExpiresAt.Time, nil
}

// TimeUntilExpirySeconds is advisory only. Any failure yields 0.
func (c *Codec) TimeUntilExpirySeconds(token string) int64 {
	exp, err := c.ExtractExpiry(token)
	if err != nil {
		return 0
	}
	return max(int64(exp.Sub(c.now())/time.Second), 0)
}

// ValidateStrict checks, in order, the signature, that "sub" equals
// expectedSubject, and that the token has not expired. Claims are never
// inspected on a token whose signature does not verify.
func (c *Codec) ValidateStrict(token, expectedSubject string) error {
	var claims Claims
	if _, err := c.signedOnly.ParseWithClaims(token, &claims, c.keyFunc); err != nil {
		return classify(err)
	}
	if err := claims.ValidateSubject(expectedSubject); err != nil {
		return err
	}
	if err := claims.ValidateExpiryAt(c.now()); err != nil {
		return err
	}
	if err := claims.ValidateIssuer(c.issuer); err != nil {
		return err
	}
	return nil
}

// ValidateSoft is ValidateStrict collapsed to a boolean.
func (c *Codec) ValidateSoft(token, expectedSubject string) bool {
	return c.ValidateStrict(token, expectedSubject) == nil
}

func (c *Codec) keyFunc(t *jwt.Token) (any, error) {
	if t.Method == nil || t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
		return nil, errAlgorithm
	}
	return c.key, nil
}

// IsTokenError reports whether err came from token verification rather than
// from somewhere else.
func IsTokenError(err error) bool {
	for _, target := range []error{
		ErrMalformed, ErrUnsupported, ErrInvalidSig, ErrExpired,
		ErrSubjectMismatch, ErrIssuer, ErrInvalidClaim, ErrInvalidToken,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
