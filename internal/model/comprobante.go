package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Comprobante is the persisted record of a submitted factura.
// Estado: "emitido" | "rechazado" | "error"
type Comprobante struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Tipo       TipoComprobante `gorm:"type:varchar(30);not null;uniqueIndex:idx_comprobante_numero,priority:2"`
	PuntoVenta int             `gorm:"not null;uniqueIndex:idx_comprobante_numero,priority:1"`
	Numero     int64           `gorm:"not null;uniqueIndex:idx_comprobante_numero,priority:3"`
	// CAE is the authorization code returned by AFIP
	CAE            *string         `gorm:"type:varchar(20);column:cae"`
	CAEVencimiento *time.Time      `gorm:"column:cae_vencimiento"`
	FechaEmision   time.Time       `gorm:"type:date;not null"`
	ReceptorDoc    string          `gorm:"type:varchar(20);not null"`
	ReceptorNombre string          `gorm:"not null"`
	MontoNeto      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	MontoIVA       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0;column:monto_iva"`
	MontoTotal     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Estado         string          `gorm:"type:varchar(20);not null"`
	QRURL          *string         `gorm:"column:qr_url"`
	// PDFPath is relative to PDF_STORAGE_PATH
	PDFPath       *string `gorm:"column:pdf_path"`
	Observaciones *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Numeracion is the per (punto de venta, tipo) sequence counter.
// Ultimo is advanced with a single atomic UPDATE so concurrent callers
// never observe the same issued number.
type Numeracion struct {
	PuntoVenta int             `gorm:"primaryKey;autoIncrement:false"`
	Tipo       TipoComprobante `gorm:"primaryKey;type:varchar(30)"`
	Ultimo     int64           `gorm:"not null;default:0"`
	UpdatedAt  time.Time
}
