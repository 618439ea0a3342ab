package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TipoComprobante identifies the kind of document being issued.
// Tipos: "factura" | "nota_debito" | "nota_credito"
type TipoComprobante string

const (
	TipoFactura     TipoComprobante = "factura"
	TipoNotaDebito  TipoComprobante = "nota_debito"
	TipoNotaCredito TipoComprobante = "nota_credito"
)

// Receptor is the party the comprobante is issued to. All fields are
// required; DTO validation rejects empty values before a Factura is built.
type Receptor struct {
	TipoDocumento string // "CUIT" | "CUIL" | "DNI"
	NroDocumento  string
	RazonSocial   string
	Domicilio     string
	CondicionIVA  string // "responsable_inscripto" | "monotributo" | "consumidor_final" | "exento"
}

// FacturaItem is one billed line. ImporteIVA and ImporteTotal are derived
// from the base fields and are recomputed whenever the base fields change;
// caller-supplied values are never trusted without re-validation.
type FacturaItem struct {
	Descripcion    string
	Cantidad       decimal.Decimal
	PrecioUnitario decimal.Decimal
	AlicuotaIVA    decimal.Decimal // percent: 0 | 10.5 | 21 | 27
	ImporteIVA     decimal.Decimal // derived
	ImporteTotal   decimal.Decimal // derived
}

// Factura is one electronic invoice submission.
// Invariants:
//   - ImporteTotal == ImporteNeto + ImporteIVA within 0.01
//   - Numero strictly increases per (PuntoVenta, Tipo) across accepted
//     submissions — allocation happens at the Numerador boundary.
type Factura struct {
	Tipo         TipoComprobante
	PuntoVenta   int
	Numero       int64
	FechaEmision time.Time // calendar date, no time component
	Receptor     Receptor
	Items        []FacturaItem
	ImporteNeto  decimal.Decimal
	ImporteIVA   decimal.Decimal
	ImporteTotal decimal.Decimal
	Notas        *string
}

// ResultadoAutorizacion is the outcome of one submission attempt.
// Created once per attempt and never mutated afterwards.
type ResultadoAutorizacion struct {
	Autorizado bool
	// CAE is the authorization code issued by AFIP — 14 numeric digits,
	// present only when Autorizado.
	CAE            string
	CAEVencimiento *time.Time
	// QRURL is the public verification URL encoded in QRPNG.
	QRURL string
	QRPNG []byte
	// Observaciones carries informational remarks (fallbacks, WSFE notes).
	Observaciones []string
	// Motivo describes the failure, present only when !Autorizado.
	Motivo string
}
