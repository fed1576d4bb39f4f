package server

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"resumeform/internal/config"
	"resumeform/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSelfSignedPair(t *testing.T, dir, commonName string) (string, string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		DNSNames:     []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certFile := filepath.Join(dir, "server.crt")
	keyFile := filepath.Join(dir, "server.key")
	require.NoError(t, os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0600))
	require.NoError(t, os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0600))
	return certFile, keyFile
}

func leafCommonName(t *testing.T, cw *CertWatcher) string {
	t.Helper()
	cert, err := cw.GetCertificate(nil)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	return leaf.Subject.CommonName
}

func TestCertWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeSelfSignedPair(t, dir, "first")

	cw, err := NewCertWatcher(certFile, keyFile, 50*time.Millisecond, errors.Discard())
	require.NoError(t, err)
	require.NoError(t, cw.Start())
	defer func() { _ = cw.Stop() }()

	assert.Equal(t, "first", leafCommonName(t, cw))

	writeSelfSignedPair(t, dir, "second")

	assert.Eventually(t, func() bool {
		return leafCommonName(t, cw) == "second"
	}, 5*time.Second, 50*time.Millisecond)

	status := cw.Status()
	assert.Equal(t, true, status["watching"])
	assert.GreaterOrEqual(t, status["reload_count"], 2)
}

func TestCertWatcherRejectsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	_, err := NewCertWatcher(filepath.Join(dir, "missing.crt"), filepath.Join(dir, "missing.key"), 0, errors.Discard())
	assert.Error(t, err)
}

func TestBuildTLSConfig(t *testing.T) {
	certFile, keyFile := writeSelfSignedPair(t, t.TempDir(), "static")

	srv := NewServer(ServerConfig{
		Server: config.ServerConfig{
			SessionTTL: time.Hour,
			TLS:        config.TLSConfig{Mode: "server", CertFile: certFile, KeyFile: keyFile, MinVersion: "1.3"},
		},
		Client: &fakeAnalyzer{},
	}, errors.Discard())
	defer srv.Close()

	tlsConfig, err := srv.buildTLSConfig()
	require.NoError(t, err)
	assert.Len(t, tlsConfig.Certificates, 1)
	assert.EqualValues(t, 0x0304, tlsConfig.MinVersion)
	assert.Nil(t, srv.certWatcher)

	srv.TLSConfig.CertFile = ""
	_, err = srv.buildTLSConfig()
	assert.Error(t, err)
}
