package afip

import (
	"testing"

	"facturador/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestCodigoComprobante(t *testing.T) {
	codigo, ok := CodigoComprobante(model.TipoFactura)
	assert.True(t, ok)
	assert.Equal(t, 6, codigo)

	codigo, ok = CodigoComprobante(model.TipoNotaDebito)
	assert.True(t, ok)
	assert.Equal(t, 7, codigo)

	codigo, ok = CodigoComprobante(model.TipoNotaCredito)
	assert.True(t, ok)
	assert.Equal(t, 8, codigo)

	// Desconocido cae al codigo de factura
	codigo, ok = CodigoComprobante("remito")
	assert.False(t, ok)
	assert.Equal(t, CodigoFacturaB, codigo)
}

func TestCodigoAlicuota(t *testing.T) {
	casos := []struct {
		alicuota string
		codigo   int
		ok       bool
	}{
		{"0", 3, true},
		{"10.5", 4, true},
		{"21", 5, true},
		{"27", 6, true},
		{"21.0", 5, true},
		{"15", 0, false},
		{"100", 0, false},
	}
	for _, c := range casos {
		codigo, ok := CodigoAlicuota(d(c.alicuota))
		assert.Equal(t, c.ok, ok, "alicuota %s", c.alicuota)
		if c.ok {
			assert.Equal(t, c.codigo, codigo, "alicuota %s", c.alicuota)
		}
	}
}
