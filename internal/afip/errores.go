package afip

import "errors"

// Error taxonomy of the authorization pipeline. All of these are local
// input faults reported to the caller — an Authority-side rejection is a
// normal ResultadoAutorizacion, never one of these.
var (
	// ErrItemInvalido — quantity/price not positive or IVA rate out of range.
	ErrItemInvalido = errors.New("afip: item invalido")
	// ErrConstruccion — the factura cannot be mapped to a request document.
	ErrConstruccion = errors.New("afip: solicitud invalida")
	// ErrFirma — certificate material missing, invalid or expired.
	ErrFirma = errors.New("afip: error de firma")
	// ErrCodificacionQR — the verification payload could not be encoded
	// as an image.
	ErrCodificacionQR = errors.New("afip: error codificando QR")
)
