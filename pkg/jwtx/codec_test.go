package jwtx_test

import (
	"encoding/base64"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/sessionauth/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef-test"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newCodec(t *testing.T, secret string) (*jwtx.Codec, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	codec, err := jwtx.NewCodec(jwtx.CodecOptions{
		Secret: secret,
		TTL:    15 * time.Minute,
		Issuer: "sessionauth",
		Clock:  clock.Now,
	})
	require.NoError(t, err)
	return codec, clock
}

func TestNewCodec_RejectsShortSecret(t *testing.T) {
	_, err := jwtx.NewCodec(jwtx.CodecOptions{Secret: "too-short"})
	require.ErrorIs(t, err, jwtx.ErrWeakSecret)
}

func TestNewCodec_DefaultTTL(t *testing.T) {
	codec, err := jwtx.NewCodec(jwtx.CodecOptions{Secret: testSecret})
	require.NoError(t, err)
	require.Equal(t, jwtx.DefaultAccessTokenTTL, codec.TTL())
}

func TestIssue_RoundTrip(t *testing.T) {
	codec, clock := newCodec(t, testSecret)

	for _, subject := range []string{"alice", "Bob", "user.with.dots", "ünïcødé"} {
		t.Run(subject, func(t *testing.T) {
			token, err := codec.Issue(subject, []string{"ROLE_USER"}, nil)
			require.NoError(t, err)

			got, err := codec.ExtractSubject(token)
			require.NoError(t, err)
			require.Equal(t, subject, got)

			exp, err := codec.ExtractExpiry(token)
			require.NoError(t, err)
			require.Equal(t, clock.Now().Add(15*time.Minute), exp.UTC())

			require.EqualValues(t, 15*60, codec.TimeUntilExpirySeconds(token))
			require.NoError(t, codec.ValidateStrict(token, subject))
			require.True(t, codec.ValidateSoft(token, subject))
		})
	}
}

func TestIssue_EmptySubject(t *testing.T) {
	codec, _ := newCodec(t, testSecret)
	_, err := codec.Issue("", nil, nil)
	require.ErrorIs(t, err, jwtx.ErrInvalidClaim)
}

func TestIssue_Roles(t *testing.T) {
	codec, _ := newCodec(t, testSecret)

	t.Run("defaults to the given roles", func(t *testing.T) {
		token, err := codec.Issue("alice", []string{"ROLE_ADMIN", "ROLE_USER"}, nil)
		require.NoError(t, err)

		claims, err := codec.Parse(token)
		require.NoError(t, err)
		require.Equal(t, []string{"ROLE_ADMIN", "ROLE_USER"}, claims.Roles)
		require.True(t, claims.HasRole("ROLE_ADMIN"))
	})

	t.Run("extra roles claim wins", func(t *testing.T) {
		token, err := codec.Issue("alice", []string{"ROLE_ADMIN"}, map[string]any{
			jwtx.ClaimRoles: []string{"ROLE_AUDITOR"},
		})
		require.NoError(t, err)

		claims, err := codec.Parse(token)
		require.NoError(t, err)
		require.Equal(t, []string{"ROLE_AUDITOR"}, claims.Roles)
	})

	t.Run("extra claims are signed in and cannot override sub", func(t *testing.T) {
		token, err := codec.Issue("alice", nil, map[string]any{
			"tenant": "acme",
			"sub":    "mallory",
		})
		require.NoError(t, err)

		raw := jwt.MapClaims{}
		_, _, err = jwt.NewParser().ParseUnverified(token, raw)
		require.NoError(t, err)
		require.Equal(t, "acme", raw["tenant"])
		require.Equal(t, "alice", raw["sub"])
		require.Equal(t, "sessionauth", raw["iss"])
		require.NotEmpty(t, raw["jti"])
	})
}

func TestValidateStrict_Expired(t *testing.T) {
	codec, clock := newCodec(t, testSecret)
	token, err := codec.Issue("alice", nil, nil)
	require.NoError(t, err)

	t.Run("exactly at exp", func(t *testing.T) {
		clock.Advance(15 * time.Minute)
		require.ErrorIs(t, codec.ValidateStrict(token, "alice"), jwtx.ErrExpired)
	})

	t.Run("after exp", func(t *testing.T) {
		clock.Advance(time.Hour)
		err := codec.ValidateStrict(token, "alice")
		require.ErrorIs(t, err, jwtx.ErrExpired)
		require.NotErrorIs(t, err, jwtx.ErrInvalidSig)

		_, err = codec.ExtractSubject(token)
		require.ErrorIs(t, err, jwtx.ErrExpired)
		_, err = codec.ExtractExpiry(token)
		require.ErrorIs(t, err, jwtx.ErrExpired)

		require.Zero(t, codec.TimeUntilExpirySeconds(token))
		require.False(t, codec.ValidateSoft(token, "alice"))
	})
}

func TestValidateStrict_SubjectBeforeExpiry(t *testing.T) {
	codec, clock := newCodec(t, testSecret)
	token, err := codec.Issue("alice", nil, nil)
	require.NoError(t, err)

	require.ErrorIs(t, codec.ValidateStrict(token, "Alice"), jwtx.ErrSubjectMismatch)
	require.ErrorIs(t, codec.ValidateStrict(token, "bob"), jwtx.ErrSubjectMismatch)

	clock.Advance(24 * time.Hour)
	require.ErrorIs(t, codec.ValidateStrict(token, "bob"), jwtx.ErrSubjectMismatch)
}

func TestValidateStrict_ForeignSignature(t *testing.T) {
	codec, _ := newCodec(t, testSecret)
	other, _ := newCodec(t, strings.Repeat("z", 40))

	forged, err := other.Issue("alice", []string{"ROLE_ADMIN"}, nil)
	require.NoError(t, err)

	// The subject is wrong too, but a forged token must only ever report
	// its signature.
	require.ErrorIs(t, codec.ValidateStrict(forged, "mallory"), jwtx.ErrInvalidSig)
	require.ErrorIs(t, codec.ValidateStrict(forged, "alice"), jwtx.ErrInvalidSig)

	_, err = codec.ExtractSubject(forged)
	require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	require.Zero(t, codec.TimeUntilExpirySeconds(forged))
}

func TestValidateStrict_TamperedPayload(t *testing.T) {
	codec, _ := newCodec(t, testSecret)
	token, err := codec.Issue("alice", []string{"ROLE_USER"}, nil)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	payload = []byte(strings.Replace(string(payload), "ROLE_USER", "ROLE_ADMN", 1))
	parts[1] = base64.RawURLEncoding.EncodeToString(payload)

	require.ErrorIs(t, codec.ValidateStrict(strings.Join(parts, "."), "alice"), jwtx.ErrInvalidSig)
}

func TestValidateStrict_Malformed(t *testing.T) {
	codec, _ := newCodec(t, testSecret)

	for _, token := range []string{"", "abc", "a.b", "a.b.c", "!!!.###.$$$"} {
		t.Run(token, func(t *testing.T) {
			require.ErrorIs(t, codec.ValidateStrict(token, "alice"), jwtx.ErrMalformed)
			require.False(t, codec.ValidateSoft(token, "alice"))
		})
	}
}

func TestValidateStrict_UnsupportedAlgorithms(t *testing.T) {
	codec, clock := newCodec(t, testSecret)

	claims := jwt.MapClaims{
		"sub": "alice",
		"iss": "sessionauth",
		"exp": jwt.NewNumericDate(clock.Now().Add(time.Hour)),
	}

	t.Run("none", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		require.ErrorIs(t, codec.ValidateStrict(token, "alice"), jwtx.ErrUnsupported)
	})

	t.Run("HS512", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).
			SignedString([]byte(testSecret))
		require.NoError(t, err)
		require.ErrorIs(t, codec.ValidateStrict(token, "alice"), jwtx.ErrUnsupported)
	})
}

func TestValidateStrict_WrongIssuer(t *testing.T) {
	codec, clock := newCodec(t, testSecret)
	other, err := jwtx.NewCodec(jwtx.CodecOptions{
		Secret: testSecret,
		Issuer: "someone-else",
		Clock:  clock.Now,
	})
	require.NoError(t, err)

	token, err := other.Issue("alice", nil, nil)
	require.NoError(t, err)

	err = codec.ValidateStrict(token, "alice")
	require.ErrorIs(t, err, jwtx.ErrIssuer)
	require.True(t, jwtx.IsTokenError(err))
}

func TestConcurrentUse(t *testing.T) {
	codec, _ := newCodec(t, testSecret)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := codec.Issue("alice", []string{"ROLE_USER"}, nil)
			if err != nil {
				t.Error(err)
				return
			}
			if err := codec.ValidateStrict(token, "alice"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
}
