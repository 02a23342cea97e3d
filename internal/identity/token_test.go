package identity_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/embeddedrealtime/rtdbclient/internal/identity"
)

func generateKeyPEM(t *testing.T) []byte {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der := x509.MarshalPKCS1PrivateKey(key)
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: der})
}

func TestSignAttachesBearerHeader(t *testing.T) {
	signer, err := identity.NewSigner(generateKeyPEM(t), "rtdbclient", time.Minute)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, "https://example.com/stream", nil)
	require.NoError(t, err)

	require.NoError(t, signer.Sign(req))

	auth := req.Header.Get("Authorization")
	require.True(t, len(auth) > len("Bearer "))
	require.Equal(t, "Bearer ", auth[:len("Bearer ")])

	claims := &jwt.RegisteredClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(auth[len("Bearer "):], claims)
	require.NoError(t, err)
	require.Equal(t, "rtdbclient", claims.Issuer)
}

func TestSignReusesUnexpiredToken(t *testing.T) {
	signer, err := identity.NewSigner(generateKeyPEM(t), "rtdbclient", time.Hour)
	require.NoError(t, err)

	req1, _ := http.NewRequest(http.MethodGet, "https://example.com/stream", nil)
	require.NoError(t, signer.Sign(req1))

	req2, _ := http.NewRequest(http.MethodGet, "https://example.com/stream", nil)
	require.NoError(t, signer.Sign(req2))

	require.Equal(t, req1.Header.Get("Authorization"), req2.Header.Get("Authorization"))
}

func TestNewSignerRejectsInvalidKey(t *testing.T) {
	_, err := identity.NewSigner([]byte("not a key"), "rtdbclient", time.Minute)
	require.Error(t, err)
}
