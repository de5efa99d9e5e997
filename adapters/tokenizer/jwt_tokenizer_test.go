package tokenizer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/keygate/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddress = "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"

func newTestTokenizer(t *testing.T, clock quartz.Clock) *JWTTokenizer {
	t.Helper()
	key, err := GenerateKey()
	require.NoError(t, err)
	return NewJWTTokenizer(key, "keygate-test", time.Hour, clock)
}

func TestJWTTokenizer_IssueAndDecode(t *testing.T) {
	clock := quartz.NewMock(t)
	tk := newTestTokenizer(t, clock)

	token, session, err := tk.Issue(testAddress)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, session.IssuedAt.Add(time.Hour), session.ExpiresAt)

	decoded, err := tk.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, session, decoded)
}

func TestJWTTokenizer_DecodeFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("expired", func(t *testing.T) {
		clock := quartz.NewMock(t)
		tk := newTestTokenizer(t, clock)
		token, _, err := tk.Issue(testAddress)
		require.NoError(t, err)

		clock.Advance(2 * time.Hour).MustWait(ctx)

		_, err = tk.Decode(token)
		assert.ErrorIs(t, err, core.ErrCredentialExpired)
		assert.Equal(t, core.KindCredentialExpired, core.Kind(err))
	})

	t.Run("signed by another key", func(t *testing.T) {
		clock := quartz.NewMock(t)
		token, _, err := newTestTokenizer(t, clock).Issue(testAddress)
		require.NoError(t, err)

		_, err = newTestTokenizer(t, clock).Decode(token)
		assert.ErrorIs(t, err, core.ErrCredentialSignatureInvalid)
	})

	t.Run("tampered payload", func(t *testing.T) {
		clock := quartz.NewMock(t)
		tk := newTestTokenizer(t, clock)
		token, _, err := tk.Issue(testAddress)
		require.NoError(t, err)

		other, _, err := tk.Issue("0x0000000000000000000000000000000000000001")
		require.NoError(t, err)
		parts := strings.Split(token, ".")
		otherParts := strings.Split(other, ".")
		forged := parts[0] + "." + otherParts[1] + "." + parts[2]

		_, err = tk.Decode(forged)
		assert.ErrorIs(t, err, core.ErrCredentialSignatureInvalid)
	})

	t.Run("malformed", func(t *testing.T) {
		tk := newTestTokenizer(t, quartz.NewMock(t))
		for _, bad := range []string{"", "abc", "a.b.c"} {
			_, err := tk.Decode(bad)
			assert.ErrorIs(t, err, core.ErrCredentialMalformed, "token %q", bad)
		}
	})

	t.Run("wrong algorithm", func(t *testing.T) {
		tk := newTestTokenizer(t, quartz.NewMock(t))
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   testAddress,
			Issuer:    "keygate-test",
			Audience:  jwt.ClaimStrings{AudienceSession},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}).SignedString([]byte("secret"))
		require.NoError(t, err)

		_, err = tk.Decode(token)
		assert.Error(t, err)
		assert.NotEqual(t, core.KindInternalFault, core.Kind(err))
	})
}

func TestParsePrivateKey(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	encoded, err := EncodePrivateKey(key)
	require.NoError(t, err)

	t.Run("inline pem", func(t *testing.T) {
		parsed, err := ParsePrivateKey(encoded)
		require.NoError(t, err)
		assert.True(t, key.Equal(parsed))
	})

	t.Run("pem file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "key.pem")
		require.NoError(t, os.WriteFile(path, []byte(encoded), 0o600))

		parsed, err := ParsePrivateKey(path)
		require.NoError(t, err)
		assert.True(t, key.Equal(parsed))
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := ParsePrivateKey("-----BEGIN NOTHING-----")
		assert.ErrorIs(t, err, ErrInvalidKey)

		_, err = ParsePrivateKey("")
		assert.ErrorIs(t, err, ErrInvalidKey)
	})
}
