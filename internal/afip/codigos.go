package afip

// codigos.go — fixed lookup tables of the WSFE contract.
// These mappings are part of AFIP's published tables and never change at
// runtime; they are owned by this package instead of a shared global.

import (
	"facturador/internal/model"

	"github.com/shopspring/decimal"
)

const (
	// CodigoFacturaB is the default comprobante code used when the tipo is
	// unknown. The fallback is deliberate and always surfaces as an
	// observación so input errors are not masked.
	CodigoFacturaB     = 6
	CodigoNotaDebitoB  = 7
	CodigoNotaCreditoB = 8

	// ConceptoProductos — every comprobante in this design bills goods.
	ConceptoProductos = 1

	// DocTipoCUIT is the receptor document-type code for a tax id.
	DocTipoCUIT = 80

	// MonedaPesos and CotizacionPesos: local currency at exchange rate 1.
	MonedaPesos     = "PES"
	CotizacionPesos = 1

	// TipoCodigoAutorizacion tags the authorization as electronic ("E")
	// in the public verification payload.
	TipoCodigoAutorizacion = "E"

	// FormatoFecha is the date layout of WSFE fields (separators stripped).
	FormatoFecha = "20060102"
)

var codigosComprobante = map[model.TipoComprobante]int{
	model.TipoFactura:     CodigoFacturaB,
	model.TipoNotaDebito:  CodigoNotaDebitoB,
	model.TipoNotaCredito: CodigoNotaCreditoB,
}

// CodigoComprobante maps a tipo to its WSFE numeric code.
// Unknown tipos fall back to CodigoFacturaB; ok reports whether the tipo
// was recognized so the caller can record the fallback.
func CodigoComprobante(t model.TipoComprobante) (codigo int, ok bool) {
	if c, found := codigosComprobante[t]; found {
		return c, true
	}
	return CodigoFacturaB, false
}

// alicuotasIVA is the closed set of accepted IVA rates and their WSFE codes.
var alicuotasIVA = []struct {
	Alicuota decimal.Decimal
	Codigo   int
}{
	{decimal.NewFromInt(0), 3},
	{decimal.NewFromFloat(10.5), 4},
	{decimal.NewFromInt(21), 5},
	{decimal.NewFromInt(27), 6},
}

// CodigoAlicuota maps an IVA rate percentage to its WSFE code.
// Rates outside the closed set {0, 10.5, 21, 27} are not representable
// in the request document.
func CodigoAlicuota(alicuota decimal.Decimal) (codigo int, ok bool) {
	for _, a := range alicuotasIVA {
		if a.Alicuota.Equal(alicuota) {
			return a.Codigo, true
		}
	}
	return 0, false
}
