package afip

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstruirCargaQR(t *testing.T) {
	f := facturaDePrueba()
	f.ImporteTotal = d("242.00")

	carga, err := ConstruirCargaQR(f, "20111111112", "74123456789012")
	require.NoError(t, err)

	assert.Equal(t, 1, carga.Ver)
	assert.Equal(t, "2026-08-15", carga.Fecha)
	assert.Equal(t, int64(20111111112), carga.CUIT)
	assert.Equal(t, 3, carga.PtoVta)
	assert.Equal(t, CodigoFacturaB, carga.TipoCmp)
	assert.Equal(t, int64(105), carga.NroCmp)
	assert.InDelta(t, 242.00, carga.Importe, 0.001)
	assert.Equal(t, "PES", carga.Moneda)
	assert.Equal(t, float64(1), carga.Ctz)
	assert.Equal(t, DocTipoCUIT, carga.TipoDocRec)
	assert.Equal(t, int64(20304050607), carga.NroDocRec)
	assert.Equal(t, "E", carga.TipoCodAut)
	assert.Equal(t, int64(74123456789012), carga.CodAut)
}

func TestConstruirCargaQR_IdentificadoresNoNumericos(t *testing.T) {
	f := facturaDePrueba()

	_, err := ConstruirCargaQR(f, "no-numerico", "74123456789012")
	require.Error(t, err)

	_, err = ConstruirCargaQR(f, "20111111112", "CAE-X")
	require.Error(t, err)

	f.Receptor.NroDocumento = "sin documento"
	_, err = ConstruirCargaQR(f, "20111111112", "74123456789012")
	require.Error(t, err)
}

func TestURLCargaQR_RoundTrip(t *testing.T) {
	f := facturaDePrueba()
	f.ImporteTotal = d("242.00")
	carga, err := ConstruirCargaQR(f, "20111111112", "74123456789012")
	require.NoError(t, err)

	url, err := URLCargaQR(carga)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, URLVerificacion))

	decodificada, err := DecodificarURLQR(url)
	require.NoError(t, err)
	assert.Equal(t, carga, decodificada)
}

func TestURLCargaQR_OrdenDeCampos(t *testing.T) {
	// El esquema publicado fija el orden de los campos del JSON
	f := facturaDePrueba()
	f.ImporteTotal = d("242.00")
	carga, err := ConstruirCargaQR(f, "20111111112", "74123456789012")
	require.NoError(t, err)

	url, err := URLCargaQR(carga)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, URLVerificacion))
	require.NoError(t, err)
	assert.True(t, json.Valid(raw))
	assert.True(t, strings.HasPrefix(string(raw), `{"ver":1,"fecha":"2026-08-15","cuit":20111111112,`))
}

func TestDecodificarURLQR_Invalida(t *testing.T) {
	_, err := DecodificarURLQR("https://example.com/?p=abc")
	require.Error(t, err)

	_, err = DecodificarURLQR(URLVerificacion + "%%%no-base64%%%")
	require.Error(t, err)
}

func TestGenerarQR_PNG(t *testing.T) {
	f := facturaDePrueba()
	f.ImporteTotal = d("242.00")

	png, url, err := GenerarQR(f, "20111111112", "74123456789012")
	require.NoError(t, err)
	assert.NotEmpty(t, url)

	// Firma PNG
	require.True(t, len(png) > 8)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, png[:8])
}
