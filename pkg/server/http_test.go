package server

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"careerloop-engine/pkg/config"

	"github.com/stretchr/testify/require"
)

func writeKeyPair(t *testing.T, dir string) (string, string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certPath := filepath.Join(dir, "tls.crt")
	keyPath := filepath.Join(dir, "tls.key")
	require.NoError(t, os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))
	return certPath, keyPath
}

func TestNewHttpServer_PlainHandler(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.Addr = "0"

	srv := NewHttpServer(Params{Config: cfg, Handler: http.NotFoundHandler()})
	require.Equal(t, ":0", srv.server.Addr)
	require.Nil(t, srv.server.TLSConfig)
}

func TestNewHttpServer_LoadsCertificate(t *testing.T) {
	certPath, keyPath := writeKeyPair(t, t.TempDir())

	cfg := &config.Config{}
	cfg.Server.Addr = "0"
	cfg.TLS.Enable = true
	cfg.TLS.CertPath = certPath
	cfg.TLS.KeyPath = keyPath

	srv := NewHttpServer(Params{Config: cfg, Handler: http.NotFoundHandler()})
	require.NotNil(t, srv.server.TLSConfig)

	cert, err := srv.getCertificate(nil)
	require.NoError(t, err)
	require.NotNil(t, cert)
}

func TestNormalize(t *testing.T) {
	require.Equal(t, ":0", Normalize(""))
	require.Equal(t, ":8080", Normalize("8080"))
	require.Equal(t, ":8080", Normalize(":8080"))
	require.Equal(t, "127.0.0.1:8080", Normalize("127.0.0.1:8080"))
}

func TestGetCertificate_NotLoaded(t *testing.T) {
	srv := &Server{}
	_, err := srv.getCertificate(nil)
	require.Error(t, err)
}
