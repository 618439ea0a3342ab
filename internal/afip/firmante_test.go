package afip

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"encoding/xml"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// escribirCertificado genera un par certificado/clave autofirmado en disco.
func escribirCertificado(t *testing.T, dir string, notBefore, notAfter time.Time) (certPath, keyPath string) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	plantilla := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "facturador-test"},
		NotBefore:    notBefore,
		NotAfter:     notAfter,
	}
	der, err := x509.CreateCertificate(rand.Reader, &plantilla, &plantilla, &key.PublicKey, key)
	require.NoError(t, err)

	certPath = filepath.Join(dir, "cert.pem")
	keyPath = filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0600))
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}), 0600))
	return certPath, keyPath
}

func TestCertFirmante_FirmaVerificable(t *testing.T) {
	now := time.Now()
	certPath, keyPath := escribirCertificado(t, t.TempDir(), now.Add(-time.Hour), now.Add(24*time.Hour))

	firmante, err := NewCertFirmante(certPath, keyPath, "20111111112")
	require.NoError(t, err)

	sol, _, err := ConstruirSolicitud(facturaDePrueba())
	require.NoError(t, err)

	sf, err := firmante.Firmar(context.Background(), sol)
	require.NoError(t, err)

	assert.Equal(t, "20111111112", sf.CUITEmisor)
	assert.Same(t, sol, sf.Solicitud)
	assert.True(t, sf.Auth.Expiracion.After(now))

	// El sign es una firma RSA-SHA256 valida sobre la solicitud serializada
	firma, err := base64.StdEncoding.DecodeString(sf.Auth.Sign)
	require.NoError(t, err)
	doc, err := xml.Marshal(sol)
	require.NoError(t, err)
	digest := sha256.Sum256(doc)
	assert.NoError(t, rsa.VerifyPKCS1v15(&firmante.key.PublicKey, crypto.SHA256, digest[:], firma))

	// El token decodifica a un ticket de acceso para el servicio wsfe
	token, err := base64.StdEncoding.DecodeString(sf.Auth.Token)
	require.NoError(t, err)
	assert.Contains(t, string(token), "<service>wsfe</service>")
	assert.Contains(t, string(token), "<cuit>20111111112</cuit>")
}

func TestCertFirmante_CertificadoVencido(t *testing.T) {
	now := time.Now()
	certPath, keyPath := escribirCertificado(t, t.TempDir(), now.Add(-48*time.Hour), now.Add(-24*time.Hour))

	firmante, err := NewCertFirmante(certPath, keyPath, "20111111112")
	require.NoError(t, err)

	sol, _, err := ConstruirSolicitud(facturaDePrueba())
	require.NoError(t, err)

	_, err = firmante.Firmar(context.Background(), sol)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFirma)
	assert.Contains(t, err.Error(), "vencido")
}

func TestCertFirmante_CertificadoNoVigente(t *testing.T) {
	now := time.Now()
	certPath, keyPath := escribirCertificado(t, t.TempDir(), now.Add(24*time.Hour), now.Add(48*time.Hour))

	firmante, err := NewCertFirmante(certPath, keyPath, "20111111112")
	require.NoError(t, err)

	sol, _, err := ConstruirSolicitud(facturaDePrueba())
	require.NoError(t, err)

	_, err = firmante.Firmar(context.Background(), sol)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFirma)
}

func TestNewCertFirmante_ArchivosFaltantes(t *testing.T) {
	dir := t.TempDir()
	_, err := NewCertFirmante(filepath.Join(dir, "no-existe.pem"), filepath.Join(dir, "tampoco.pem"), "20111111112")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFirma)
}

func TestNewCertFirmante_PEMInvalido(t *testing.T) {
	dir := t.TempDir()
	basura := filepath.Join(dir, "basura.pem")
	require.NoError(t, os.WriteFile(basura, []byte("esto no es PEM"), 0600))

	_, err := NewCertFirmante(basura, basura, "20111111112")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFirma)
}

func TestSimuladorFirmante(t *testing.T) {
	sol, _, err := ConstruirSolicitud(facturaDePrueba())
	require.NoError(t, err)

	sf, err := NewSimuladorFirmante("20111111112").Firmar(context.Background(), sol)
	require.NoError(t, err)
	assert.Equal(t, "firma-simulada", sf.Auth.Sign)
	assert.NotEmpty(t, sf.Auth.Token)
}
