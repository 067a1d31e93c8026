package cryptoutil

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	return []byte("01234567890123456789012345678901") // 32 bytes (truncate to 32 below)
}

func TestEncryptDecryptToken_RoundTrip(t *testing.T) {
	key := testKey()[:32]
	plaintext := "sk-ant-super-secret-value"

	ct, err := EncryptToken(key, plaintext)
	require.NoError(t, err)
	assert.NotContains(t, string(ct), plaintext)

	got, err := DecryptToken(key, ct)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestEncryptToken_DistinctIVsProduceDistinctCiphertext(t *testing.T) {
	key := testKey()[:32]
	ct1, err := EncryptToken(key, "same-plaintext")
	require.NoError(t, err)
	ct2, err := EncryptToken(key, "same-plaintext")
	require.NoError(t, err)

	assert.NotEqual(t, ct1, ct2, "random IV must make repeated encryptions differ")
}

func TestDecryptToken_RejectsShortCiphertext(t *testing.T) {
	key := testKey()[:32]
	_, err := DecryptToken(key, []byte("short"))
	assert.ErrorIs(t, err, errCiphertextTooShort)
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "correct horse battery staple"))
	assert.False(t, VerifyPassword(hash, "wrong password"))
}

func TestSignAndVerifyCookie(t *testing.T) {
	key := []byte("cookie-signing-key")
	claims := SessionClaims{
		UserID:   uuid.New(),
		IssuedAt: time.Now(),
		Expiry:   time.Now().Add(time.Hour),
	}

	cookie := SignCookie(key, claims)
	assert.True(t, strings.Contains(cookie, "."))

	got, err := VerifyCookie(key, cookie)
	require.NoError(t, err)
	assert.Equal(t, claims.UserID, got.UserID)
}

func TestVerifyCookie_RejectsTamperedSignature(t *testing.T) {
	key := []byte("cookie-signing-key")
	cookie := SignCookie(key, SessionClaims{
		UserID: uuid.New(), IssuedAt: time.Now(), Expiry: time.Now().Add(time.Hour),
	})
	tampered := cookie[:len(cookie)-1] + "x"

	_, err := VerifyCookie(key, tampered)
	assert.ErrorIs(t, err, ErrCookieBadSignature)
}

func TestVerifyCookie_RejectsExpired(t *testing.T) {
	key := []byte("cookie-signing-key")
	cookie := SignCookie(key, SessionClaims{
		UserID: uuid.New(), IssuedAt: time.Now().Add(-2 * time.Hour), Expiry: time.Now().Add(-time.Hour),
	})

	_, err := VerifyCookie(key, cookie)
	assert.ErrorIs(t, err, ErrCookieExpired)
}
