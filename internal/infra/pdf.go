package infra

// pdf.go — printable comprobante generation using go-pdf/fpdf.
// A4 layout with issuer header, comprobante identity, receptor block, item
// table, totals, CAE with vencimiento and the verification QR.
// The output file is saved to storagePath/{tipo}_{ptoVta}-{numero}.pdf.

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"facturador/internal/model"

	"github.com/go-pdf/fpdf"
)

var etiquetasTipo = map[model.TipoComprobante]string{
	model.TipoFactura:     "FACTURA B",
	model.TipoNotaDebito:  "NOTA DE DEBITO B",
	model.TipoNotaCredito: "NOTA DE CREDITO B",
}

// GenerarComprobantePDF renders an authorized factura.
// Returns the absolute path to the generated file.
func GenerarComprobantePDF(f *model.Factura, razonSocial, cuitEmisor, cae string, vencimiento time.Time, qrPNG []byte, storagePath string) (string, error) {
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}

	fileName := fmt.Sprintf("%s_%04d-%08d.pdf", f.Tipo, f.PuntoVenta, f.Numero)
	filePath := filepath.Join(storagePath, fileName)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 30

	// ── Header ───────────────────────────────────────────────────────────────
	etiqueta, ok := etiquetasTipo[f.Tipo]
	if !ok {
		etiqueta = etiquetasTipo[model.TipoFactura]
	}
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(contentW, 9, razonSocial, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(contentW, 5, "CUIT: "+cuitEmisor, "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(contentW*0.6, 7, etiqueta, "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(contentW*0.4, 7, fmt.Sprintf("N° %04d-%08d", f.PuntoVenta, f.Numero), "", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(contentW, 5, "Fecha de emision: "+f.FechaEmision.Format("02/01/2006"), "", 1, "L", false, 0, "")
	pdf.Ln(2)
	pdf.Line(15, pdf.GetY(), pageW-15, pdf.GetY())
	pdf.Ln(3)

	// ── Receptor ─────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(contentW, 5, f.Receptor.RazonSocial, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(contentW, 4, f.Receptor.TipoDocumento+" "+f.Receptor.NroDocumento, "", 1, "L", false, 0, "")
	pdf.CellFormat(contentW, 4, f.Receptor.Domicilio, "", 1, "L", false, 0, "")
	pdf.Ln(3)

	// ── Item table ───────────────────────────────────────────────────────────
	col1 := contentW * 0.44 // descripcion
	col2 := contentW * 0.12 // cantidad
	col3 := contentW * 0.16 // precio unitario
	col4 := contentW * 0.12 // alicuota
	col5 := contentW * 0.16 // importe

	pdf.SetFont("Helvetica", "B", 8)
	pdf.CellFormat(col1, 6, "Descripcion", "B", 0, "L", false, 0, "")
	pdf.CellFormat(col2, 6, "Cant.", "B", 0, "C", false, 0, "")
	pdf.CellFormat(col3, 6, "P. Unit.", "B", 0, "R", false, 0, "")
	pdf.CellFormat(col4, 6, "IVA %", "B", 0, "C", false, 0, "")
	pdf.CellFormat(col5, 6, "Importe", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 8)
	for _, item := range f.Items {
		descripcion := item.Descripcion
		if len(descripcion) > 40 {
			descripcion = descripcion[:39] + "…"
		}
		pdf.CellFormat(col1, 6, descripcion, "", 0, "L", false, 0, "")
		pdf.CellFormat(col2, 6, item.Cantidad.String(), "", 0, "C", false, 0, "")
		pdf.CellFormat(col3, 6, "$"+item.PrecioUnitario.StringFixed(2), "", 0, "R", false, 0, "")
		pdf.CellFormat(col4, 6, item.AlicuotaIVA.String(), "", 0, "C", false, 0, "")
		pdf.CellFormat(col5, 6, "$"+item.ImporteTotal.StringFixed(2), "", 1, "R", false, 0, "")
	}

	pdf.Ln(2)
	pdf.Line(15, pdf.GetY(), pageW-15, pdf.GetY())
	pdf.Ln(2)

	// ── Totals ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(col1+col2+col3+col4, 5, "Importe neto:", "", 0, "R", false, 0, "")
	pdf.CellFormat(col5, 5, "$"+f.ImporteNeto.StringFixed(2), "", 1, "R", false, 0, "")
	pdf.CellFormat(col1+col2+col3+col4, 5, "IVA:", "", 0, "R", false, 0, "")
	pdf.CellFormat(col5, 5, "$"+f.ImporteIVA.StringFixed(2), "", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(col1+col2+col3+col4, 7, "TOTAL:", "", 0, "R", false, 0, "")
	pdf.CellFormat(col5, 7, "$"+f.ImporteTotal.StringFixed(2), "", 1, "R", false, 0, "")

	// ── CAE + QR ─────────────────────────────────────────────────────────────
	pdf.Ln(6)
	caeY := pdf.GetY()
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(contentW*0.7, 5, "CAE: "+cae, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(contentW*0.7, 5, "Vencimiento CAE: "+vencimiento.Format("02/01/2006"), "", 1, "L", false, 0, "")

	if len(qrPNG) > 0 {
		opts := fpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
		pdf.RegisterImageOptionsReader("qr_verificacion", opts, bytes.NewReader(qrPNG))
		pdf.ImageOptions("qr_verificacion", pageW-15-30, caeY, 30, 30, false, opts, 0, "")
	}

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}

	return filePath, nil
}
