package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type ItemFacturaRequest struct {
	Descripcion    string          `json:"descripcion"     validate:"required"`
	Cantidad       decimal.Decimal `json:"cantidad"        validate:"required,gt=0"`
	PrecioUnitario decimal.Decimal `json:"precio_unitario" validate:"required,gt=0"`
	AlicuotaIVA    decimal.Decimal `json:"alicuota_iva"    validate:"min=0,max=100"`
}

type ReceptorRequest struct {
	TipoDocumento string `json:"tipo_documento" validate:"required,oneof=CUIT CUIL DNI"`
	NroDocumento  string `json:"nro_documento"  validate:"required,numeric"`
	RazonSocial   string `json:"razon_social"   validate:"required"`
	Domicilio     string `json:"domicilio"      validate:"required"`
	CondicionIVA  string `json:"condicion_iva"  validate:"required,oneof=responsable_inscripto monotributo consumidor_final exento"`
}

// EmitirFacturaRequest is one submission. Totals are optional: when present
// they are cross-checked against the derived totals (0.01 tolerance) and the
// submission is rejected before reaching the Authority on mismatch.
type EmitirFacturaRequest struct {
	Tipo         string               `json:"tipo"          validate:"required"`
	FechaEmision string               `json:"fecha_emision" validate:"required,datetime=2006-01-02"`
	// Numero is optional: callers that reserved a number via
	// /proximo-numero send it back here; otherwise one is allocated.
	Numero       *int64               `json:"numero,omitempty" validate:"omitempty,gt=0"`
	Receptor     ReceptorRequest      `json:"receptor"      validate:"required"`
	Items        []ItemFacturaRequest `json:"items"         validate:"required,min=1,dive"`
	ImporteNeto  *decimal.Decimal     `json:"importe_neto,omitempty"`
	ImporteIVA   *decimal.Decimal     `json:"importe_iva,omitempty"`
	ImporteTotal *decimal.Decimal     `json:"importe_total,omitempty"`
	Notas        *string              `json:"notas,omitempty"`
	// EmailReceptor — when present, the authorized comprobante PDF is
	// emailed asynchronously.
	EmailReceptor *string `json:"email_receptor,omitempty" validate:"omitempty,email"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ItemFacturaResponse struct {
	Descripcion    string          `json:"descripcion"`
	Cantidad       decimal.Decimal `json:"cantidad"`
	PrecioUnitario decimal.Decimal `json:"precio_unitario"`
	AlicuotaIVA    decimal.Decimal `json:"alicuota_iva"`
	ImporteIVA     decimal.Decimal `json:"importe_iva"`
	ImporteTotal   decimal.Decimal `json:"importe_total"`
}

type FacturaResponse struct {
	ID             string                `json:"id,omitempty"`
	Tipo           string                `json:"tipo"`
	PuntoVenta     int                   `json:"punto_venta"`
	Numero         int64                 `json:"numero"`
	FechaEmision   string                `json:"fecha_emision"`
	Autorizado     bool                  `json:"autorizado"`
	CAE            string                `json:"cae,omitempty"`
	CAEVencimiento *string               `json:"cae_vencimiento,omitempty"`
	ImporteNeto    decimal.Decimal       `json:"importe_neto"`
	ImporteIVA     decimal.Decimal       `json:"importe_iva"`
	ImporteTotal   decimal.Decimal       `json:"importe_total"`
	Items          []ItemFacturaResponse `json:"items,omitempty"`
	Observaciones  []string              `json:"observaciones,omitempty"`
	Motivo         string                `json:"motivo,omitempty"`
	QRURL          string                `json:"qr_url,omitempty"`
	PDFUrl         *string               `json:"pdf_url,omitempty"`
}

type ProximoNumeroResponse struct {
	Tipo       string `json:"tipo"`
	PuntoVenta int    `json:"punto_venta"`
	Numero     int64  `json:"numero"`
}
