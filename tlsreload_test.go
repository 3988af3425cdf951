package httpd

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// generateTestKeyPair generates a self-signed certificate for testing.
func generateTestKeyPair(t *testing.T, hostname string, serial int64) (certPEM, keyPEM []byte) {
	t.Helper()

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject: pkix.Name{
			Organization: []string{"Test Org"},
			CommonName:   hostname,
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{hostname},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	require.NoError(t, err)

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})

	keyDER, err := x509.MarshalECPrivateKey(privateKey)
	require.NoError(t, err)
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	return certPEM, keyPEM
}

// writeKeyPair writes certificate and key files into dir.
func writeKeyPair(t *testing.T, dir string, certPEM, keyPEM []byte) (certFile, keyFile string) {
	t.Helper()

	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")

	require.NoError(t, os.WriteFile(certFile, certPEM, 0600))
	require.NoError(t, os.WriteFile(keyFile, keyPEM, 0600))

	return certFile, keyFile
}

// leafDER returns the DER bytes of the pair currently served.
func leafDER(t *testing.T, c *certReloader) []byte {
	t.Helper()

	cert, err := c.GetCertificate(&tls.ClientHelloInfo{})
	require.NoError(t, err)
	require.NotNil(t, cert)
	require.NotEmpty(t, cert.Certificate)
	return cert.Certificate[0]
}

func TestCertReloader(t *testing.T) {
	t.Run("loads the initial key pair", func(t *testing.T) {
		certPEM, keyPEM := generateTestKeyPair(t, "example.com", 1)
		certFile, keyFile := writeKeyPair(t, t.TempDir(), certPEM, keyPEM)

		c, err := newCertReloader(certFile, keyFile, false, zap.NewNop())
		require.NoError(t, err)
		defer c.Close()

		block, _ := pem.Decode(certPEM)
		require.NotNil(t, block)
		assert.Equal(t, block.Bytes, leafDER(t, c))
	})

	t.Run("missing files are an error", func(t *testing.T) {
		_, err := newCertReloader("/non/existent/cert.pem", "/non/existent/key.pem", false, zap.NewNop())
		assert.Error(t, err)
	})

	t.Run("mismatched pair is an error", func(t *testing.T) {
		certPEM, _ := generateTestKeyPair(t, "example.com", 1)
		_, otherKeyPEM := generateTestKeyPair(t, "example.com", 2)
		certFile, keyFile := writeKeyPair(t, t.TempDir(), certPEM, otherKeyPEM)

		_, err := newCertReloader(certFile, keyFile, false, zap.NewNop())
		assert.Error(t, err)
	})

	t.Run("close is safe without reload and safe twice", func(t *testing.T) {
		certPEM, keyPEM := generateTestKeyPair(t, "example.com", 1)
		certFile, keyFile := writeKeyPair(t, t.TempDir(), certPEM, keyPEM)

		c, err := newCertReloader(certFile, keyFile, false, zap.NewNop())
		require.NoError(t, err)

		c.Close()
		c.Close()
	})

	t.Run("rewritten pair is swapped in", func(t *testing.T) {
		dir := t.TempDir()
		certPEM, keyPEM := generateTestKeyPair(t, "example.com", 1)
		certFile, keyFile := writeKeyPair(t, dir, certPEM, keyPEM)

		c, err := newCertReloader(certFile, keyFile, true, zap.NewNop())
		require.NoError(t, err)
		defer c.Close()

		oldDER := leafDER(t, c)

		nextCertPEM, nextKeyPEM := generateTestKeyPair(t, "rotated.example.com", 2)
		writeKeyPair(t, dir, nextCertPEM, nextKeyPEM)

		require.Eventually(t, func() bool {
			return !bytes.Equal(oldDER, leafDER(t, c))
		}, 5*time.Second, 50*time.Millisecond, "pair was not reloaded")

		leaf, err := x509.ParseCertificate(leafDER(t, c))
		require.NoError(t, err)
		assert.Equal(t, "rotated.example.com", leaf.Subject.CommonName)
	})

	t.Run("broken pair on disk keeps the previous pair", func(t *testing.T) {
		dir := t.TempDir()
		certPEM, keyPEM := generateTestKeyPair(t, "example.com", 1)
		certFile, keyFile := writeKeyPair(t, dir, certPEM, keyPEM)

		c, err := newCertReloader(certFile, keyFile, true, zap.NewNop())
		require.NoError(t, err)
		defer c.Close()

		oldDER := leafDER(t, c)

		require.NoError(t, os.WriteFile(certFile, []byte("not a certificate"), 0600))

		// Give the watcher time to debounce and attempt the reload.
		time.Sleep(500 * time.Millisecond)
		assert.Equal(t, oldDER, leafDER(t, c))
	})

	t.Run("close stops the watcher", func(t *testing.T) {
		dir := t.TempDir()
		certPEM, keyPEM := generateTestKeyPair(t, "example.com", 1)
		certFile, keyFile := writeKeyPair(t, dir, certPEM, keyPEM)

		c, err := newCertReloader(certFile, keyFile, true, zap.NewNop())
		require.NoError(t, err)

		c.Close()
		c.Close()
	})
}

func TestWatchDirs(t *testing.T) {
	t.Run("shared directory is deduplicated", func(t *testing.T) {
		dirs := watchDirs("/etc/tls/cert.pem", "/etc/tls/key.pem")
		assert.Equal(t, []string{"/etc/tls"}, dirs)
	})

	t.Run("distinct directories are kept", func(t *testing.T) {
		dirs := watchDirs("/etc/tls/cert.pem", "/etc/keys/key.pem")
		assert.Equal(t, []string{"/etc/tls", "/etc/keys"}, dirs)
	})
}
