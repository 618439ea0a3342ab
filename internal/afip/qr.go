package afip

// qr.go — public verification QR per AFIP's published scheme: a JSON
// payload with fixed field order, base64-encoded into the fe/qr URL and
// rendered as a PNG. Decoding the URL reproduces the payload byte-for-byte
// for the same inputs.

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"facturador/internal/model"

	qrcode "github.com/skip2/go-qrcode"
)

// URLVerificacion is the base of AFIP's public comprobante checker.
const URLVerificacion = "https://www.afip.gob.ar/fe/qr/?p="

// VersionCargaQR is the payload protocol version.
const VersionCargaQR = 1

// tamanoQR is the side of the generated PNG in pixels.
const tamanoQR = 256

// CargaQR is the canonical verification payload. Field order and names are
// fixed by the published scheme — do not reorder.
type CargaQR struct {
	Ver        int     `json:"ver"`
	Fecha      string  `json:"fecha"` // yyyy-mm-dd
	CUIT       int64   `json:"cuit"`
	PtoVta     int     `json:"ptoVta"`
	TipoCmp    int     `json:"tipoCmp"`
	NroCmp     int64   `json:"nroCmp"`
	Importe    float64 `json:"importe"`
	Moneda     string  `json:"moneda"`
	Ctz        float64 `json:"ctz"`
	TipoDocRec int     `json:"tipoDocRec"`
	NroDocRec  int64   `json:"nroDocRec"`
	TipoCodAut string  `json:"tipoCodAut"` // always "E" — electronic
	CodAut     int64   `json:"codAut"`
}

// ConstruirCargaQR assembles the payload for an authorized factura.
// Construction cannot fail on a factura that passed authorization; parse
// errors on identifiers indicate caller misuse and are reported as such.
func ConstruirCargaQR(f *model.Factura, cuitEmisor, cae string) (*CargaQR, error) {
	cuit, err := strconv.ParseInt(strings.TrimSpace(cuitEmisor), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("afip: CUIT emisor no numerico %q: %w", cuitEmisor, err)
	}
	codAut, err := strconv.ParseInt(cae, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("afip: CAE no numerico %q: %w", cae, err)
	}
	nroDoc, err := strconv.ParseInt(strings.TrimSpace(f.Receptor.NroDocumento), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("afip: documento del receptor no numerico %q: %w", f.Receptor.NroDocumento, err)
	}

	codigoTipo, _ := CodigoComprobante(f.Tipo)
	return &CargaQR{
		Ver:        VersionCargaQR,
		Fecha:      f.FechaEmision.Format("2006-01-02"),
		CUIT:       cuit,
		PtoVta:     f.PuntoVenta,
		TipoCmp:    codigoTipo,
		NroCmp:     f.Numero,
		Importe:    f.ImporteTotal.InexactFloat64(),
		Moneda:     MonedaPesos,
		Ctz:        CotizacionPesos,
		TipoDocRec: DocTipoCUIT,
		NroDocRec:  nroDoc,
		TipoCodAut: TipoCodigoAutorizacion,
		CodAut:     codAut,
	}, nil
}

// URLCargaQR serializes the payload and embeds it in the verification URL.
func URLCargaQR(carga *CargaQR) (string, error) {
	raw, err := json.Marshal(carga)
	if err != nil {
		return "", fmt.Errorf("afip: serializando carga QR: %w", err)
	}
	return URLVerificacion + base64.StdEncoding.EncodeToString(raw), nil
}

// DecodificarURLQR reverses URLCargaQR. Used by the verification round-trip
// and by tooling that inspects issued comprobantes.
func DecodificarURLQR(url string) (*CargaQR, error) {
	encoded, ok := strings.CutPrefix(url, URLVerificacion)
	if !ok {
		return nil, fmt.Errorf("afip: la URL no corresponde al verificador (%s)", URLVerificacion)
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("afip: carga QR no es base64: %w", err)
	}
	var carga CargaQR
	if err := json.Unmarshal(raw, &carga); err != nil {
		return nil, fmt.Errorf("afip: carga QR malformada: %w", err)
	}
	return &carga, nil
}

// GenerarQR builds the verification payload for an authorized factura and
// encodes it as a scannable PNG. Fails with ErrCodificacionQR only on
// image-encoding failure.
func GenerarQR(f *model.Factura, cuitEmisor, cae string) (png []byte, url string, err error) {
	carga, err := ConstruirCargaQR(f, cuitEmisor, cae)
	if err != nil {
		return nil, "", err
	}
	url, err = URLCargaQR(carga)
	if err != nil {
		return nil, "", err
	}
	png, err = CodificarQR(url)
	if err != nil {
		return nil, "", err
	}
	return png, url, nil
}

// CodificarQR renders any verification URL as a PNG.
func CodificarQR(url string) ([]byte, error) {
	png, err := qrcode.Encode(url, qrcode.Medium, tamanoQR)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodificacionQR, err)
	}
	return png, nil
}
