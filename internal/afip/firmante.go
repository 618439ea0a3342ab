package afip

// firmante.go — attaches the WSAA authentication block to an outbound
// solicitud. This is the only file that reads certificate or key material;
// secrets are never logged.

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"encoding/xml"
	"fmt"
	"os"
	"time"
)

// Autenticacion is the WSAA access-ticket block attached to every request.
type Autenticacion struct {
	Token      string    `xml:"Token" json:"token"`
	Sign       string    `xml:"Sign" json:"sign"`
	Expiracion time.Time `xml:"-" json:"-"`
}

// SolicitudFirmada is a solicitud plus its authentication block. Signing is
// atomic: either the full SolicitudFirmada is produced or the operation
// fails outright — no partially signed document ever leaves this package.
type SolicitudFirmada struct {
	Solicitud  *SolicitudCAE
	Auth       Autenticacion
	CUITEmisor string
}

// Firmante produces signed requests ready for submission.
type Firmante interface {
	Firmar(ctx context.Context, s *SolicitudCAE) (*SolicitudFirmada, error)
}

// ── CertFirmante ─────────────────────────────────────────────────────────────

// CertFirmante signs with the taxpayer's X.509 certificate and RSA key.
// The WSAA exchange proper (CMS login ticket sent to the LoginCms endpoint)
// is not performed here: the token is the locally built access-ticket
// request and the sign is an RSA-SHA256 signature over the serialized
// solicitud. Swapping in the live exchange only touches this type.
type CertFirmante struct {
	cert       *x509.Certificate
	key        *rsa.PrivateKey
	cuitEmisor string
}

// NewCertFirmante loads PEM certificate and key material from disk.
// Fails with ErrFirma when either file is missing or unparseable.
func NewCertFirmante(certPath, keyPath, cuitEmisor string) (*CertFirmante, error) {
	cert, err := cargarCertificado(certPath)
	if err != nil {
		return nil, err
	}
	key, err := cargarClavePrivada(keyPath)
	if err != nil {
		return nil, err
	}
	return &CertFirmante{cert: cert, key: key, cuitEmisor: cuitEmisor}, nil
}

// Firmar validates certificate vigency and produces the signed request.
func (f *CertFirmante) Firmar(_ context.Context, s *SolicitudCAE) (*SolicitudFirmada, error) {
	now := time.Now()
	if now.After(f.cert.NotAfter) {
		return nil, fmt.Errorf("%w: certificado vencido el %s", ErrFirma, f.cert.NotAfter.Format("2006-01-02"))
	}
	if now.Before(f.cert.NotBefore) {
		return nil, fmt.Errorf("%w: certificado aun no vigente", ErrFirma)
	}

	doc, err := xml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: serializando solicitud: %v", ErrFirma, err)
	}
	digest := sha256.Sum256(doc)
	firma, err := rsa.SignPKCS1v15(rand.Reader, f.key, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("%w: firmando digest: %v", ErrFirma, err)
	}

	token, err := ticketAcceso(f.cuitEmisor, now)
	if err != nil {
		return nil, err
	}

	return &SolicitudFirmada{
		Solicitud: s,
		Auth: Autenticacion{
			Token:      token,
			Sign:       base64.StdEncoding.EncodeToString(firma),
			Expiracion: now.Add(12 * time.Hour),
		},
		CUITEmisor: f.cuitEmisor,
	}, nil
}

// ticketAcceso builds the loginTicketRequest body the WSAA exchange would
// send and returns it base64-encoded as a stand-in token.
func ticketAcceso(cuit string, now time.Time) (string, error) {
	type header struct {
		UniqueID       int64  `xml:"uniqueId"`
		GenerationTime string `xml:"generationTime"`
		ExpirationTime string `xml:"expirationTime"`
	}
	type ticket struct {
		XMLName xml.Name `xml:"loginTicketRequest"`
		Header  header   `xml:"header"`
		Service string   `xml:"service"`
		CUIT    string   `xml:"cuit"`
	}

	t := ticket{
		Header: header{
			UniqueID:       now.Unix(),
			GenerationTime: now.Add(-10 * time.Minute).Format(time.RFC3339),
			ExpirationTime: now.Add(12 * time.Hour).Format(time.RFC3339),
		},
		Service: "wsfe",
		CUIT:    cuit,
	}
	raw, err := xml.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("%w: construyendo ticket de acceso: %v", ErrFirma, err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func cargarCertificado(path string) (*x509.Certificate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: leyendo certificado: %v", ErrFirma, err)
	}
	block, _ := pem.Decode(raw)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, fmt.Errorf("%w: el archivo no contiene un certificado PEM", ErrFirma)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: certificado invalido: %v", ErrFirma, err)
	}
	return cert, nil
}

func cargarClavePrivada(path string) (*rsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: leyendo clave privada: %v", ErrFirma, err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("%w: el archivo no contiene una clave PEM", ErrFirma)
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: clave privada invalida: %v", ErrFirma, err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: la clave privada no es RSA", ErrFirma)
	}
	return key, nil
}

// ── SimuladorFirmante ────────────────────────────────────────────────────────

// SimuladorFirmante issues a fixed development credential pair without
// touching certificate material. Used in the testing environment.
type SimuladorFirmante struct {
	cuitEmisor string
}

func NewSimuladorFirmante(cuitEmisor string) *SimuladorFirmante {
	return &SimuladorFirmante{cuitEmisor: cuitEmisor}
}

func (f *SimuladorFirmante) Firmar(_ context.Context, s *SolicitudCAE) (*SolicitudFirmada, error) {
	now := time.Now()
	token, err := ticketAcceso(f.cuitEmisor, now)
	if err != nil {
		return nil, err
	}
	return &SolicitudFirmada{
		Solicitud: s,
		Auth: Autenticacion{
			Token:      token,
			Sign:       "firma-simulada",
			Expiracion: now.Add(12 * time.Hour),
		},
		CUITEmisor: f.cuitEmisor,
	}, nil
}
