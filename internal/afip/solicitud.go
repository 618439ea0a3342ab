package afip

// solicitud.go — maps a Factura into the FECAESolicitar request document.
// The output is structured and serializable but not yet signed, and is
// deterministic for identical input: no timestamps beyond the factura's
// own fecha de emisión are embedded.

import (
	"fmt"
	"sort"

	"facturador/internal/model"

	"github.com/shopspring/decimal"
)

// SolicitudCAE mirrors the subset of the FECAESolicitar body this service
// emits. Field names follow the WSFE contract.
type SolicitudCAE struct {
	Cabecera CabeceraSolicitud  `xml:"FeCabReq" json:"cabecera"`
	Detalle  []DetalleSolicitud `xml:"FeDetReq>FECAEDetRequest" json:"detalle"`
}

// CabeceraSolicitud — request header. CantidadRegistros is always 1:
// batching is out of scope, one comprobante per request.
type CabeceraSolicitud struct {
	CantidadRegistros int `xml:"CantReg" json:"cantidad_registros"`
	PuntoVenta        int `xml:"PtoVta" json:"punto_venta"`
	TipoComprobante   int `xml:"CbteTipo" json:"tipo_comprobante"`
}

// DetalleSolicitud — one comprobante. Desde == Hasta == Numero for the
// same reason CantidadRegistros is fixed at 1.
type DetalleSolicitud struct {
	Concepto         int           `xml:"Concepto" json:"concepto"`
	TipoDocReceptor  int           `xml:"DocTipo" json:"tipo_doc_receptor"`
	NroDocReceptor   string        `xml:"DocNro" json:"nro_doc_receptor"`
	ComprobanteDesde int64         `xml:"CbteDesde" json:"comprobante_desde"`
	ComprobanteHasta int64         `xml:"CbteHasta" json:"comprobante_hasta"`
	FechaComprobante string        `xml:"CbteFch" json:"fecha_comprobante"` // yyyymmdd
	ImporteNeto      string        `xml:"ImpNeto" json:"importe_neto"`
	ImporteIVA       string        `xml:"ImpIVA" json:"importe_iva"`
	ImporteTotal     string        `xml:"ImpTotal" json:"importe_total"`
	Moneda           string        `xml:"MonId" json:"moneda"`
	Cotizacion       int           `xml:"MonCotiz" json:"cotizacion"`
	Alicuotas        []AlicuotaIVA `xml:"Iva>AlicIva" json:"alicuotas"`
}

// AlicuotaIVA is one tax-breakdown entry: subtotals of every item billed
// at the same rate.
type AlicuotaIVA struct {
	Codigo        int    `xml:"Id" json:"codigo"`
	BaseImponible string `xml:"BaseImp" json:"base_imponible"`
	Importe       string `xml:"Importe" json:"importe"`
}

// ConstruirSolicitud builds the request document for one factura.
// Returned observaciones carry remark-worthy events (today only the
// document-type fallback). Fails with ErrConstruccion when items are empty
// or required factura/receptor fields are missing.
func ConstruirSolicitud(f *model.Factura) (*SolicitudCAE, []string, error) {
	if len(f.Items) == 0 {
		return nil, nil, fmt.Errorf("%w: la factura no tiene items", ErrConstruccion)
	}
	if f.PuntoVenta <= 0 {
		return nil, nil, fmt.Errorf("%w: punto de venta invalido", ErrConstruccion)
	}
	if f.Numero <= 0 {
		return nil, nil, fmt.Errorf("%w: numero de comprobante invalido", ErrConstruccion)
	}
	if f.FechaEmision.IsZero() {
		return nil, nil, fmt.Errorf("%w: fecha de emision requerida", ErrConstruccion)
	}
	if err := validarReceptor(&f.Receptor); err != nil {
		return nil, nil, err
	}

	var observaciones []string
	codigoTipo, conocido := CodigoComprobante(f.Tipo)
	if !conocido {
		observaciones = append(observaciones,
			fmt.Sprintf("tipo de comprobante desconocido %q: se asume factura (codigo %d)", f.Tipo, CodigoFacturaB))
	}

	neto, iva, total, err := CalcularTotales(f.Items)
	if err != nil {
		return nil, nil, err
	}

	alicuotas, err := agruparAlicuotas(f.Items)
	if err != nil {
		return nil, nil, err
	}

	sol := &SolicitudCAE{
		Cabecera: CabeceraSolicitud{
			CantidadRegistros: 1,
			PuntoVenta:        f.PuntoVenta,
			TipoComprobante:   codigoTipo,
		},
		Detalle: []DetalleSolicitud{{
			Concepto:         ConceptoProductos,
			TipoDocReceptor:  DocTipoCUIT,
			NroDocReceptor:   f.Receptor.NroDocumento,
			ComprobanteDesde: f.Numero,
			ComprobanteHasta: f.Numero,
			FechaComprobante: f.FechaEmision.Format(FormatoFecha),
			ImporteNeto:      neto.StringFixed(2),
			ImporteIVA:       iva.StringFixed(2),
			ImporteTotal:     total.StringFixed(2),
			Moneda:           MonedaPesos,
			Cotizacion:       CotizacionPesos,
			Alicuotas:        alicuotas,
		}},
	}
	return sol, observaciones, nil
}

func validarReceptor(r *model.Receptor) error {
	switch {
	case r.NroDocumento == "":
		return fmt.Errorf("%w: receptor sin numero de documento", ErrConstruccion)
	case r.TipoDocumento == "":
		return fmt.Errorf("%w: receptor sin tipo de documento", ErrConstruccion)
	case r.RazonSocial == "":
		return fmt.Errorf("%w: receptor sin razon social", ErrConstruccion)
	case r.Domicilio == "":
		return fmt.Errorf("%w: receptor sin domicilio", ErrConstruccion)
	case r.CondicionIVA == "":
		return fmt.Errorf("%w: receptor sin condicion frente al IVA", ErrConstruccion)
	}
	return nil
}

// agruparAlicuotas emits one breakdown entry per distinct IVA rate present
// in the items, each with its own base and tax subtotal. Entries are sorted
// by WSFE code so the document is deterministic.
func agruparAlicuotas(items []model.FacturaItem) ([]AlicuotaIVA, error) {
	acumBase := make(map[int]decimal.Decimal)
	acumIVA := make(map[int]decimal.Decimal)

	for i, item := range items {
		codigo, ok := CodigoAlicuota(item.AlicuotaIVA)
		if !ok {
			return nil, fmt.Errorf("%w: item %d: alicuota %s no pertenece al conjunto permitido",
				ErrConstruccion, i+1, item.AlicuotaIVA)
		}
		itemIVA, _, err := CalcularItem(item.Cantidad, item.PrecioUnitario, item.AlicuotaIVA)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i+1, err)
		}
		base := item.Cantidad.Mul(item.PrecioUnitario).Round(2)
		acumBase[codigo] = acumBase[codigo].Add(base)
		acumIVA[codigo] = acumIVA[codigo].Add(itemIVA)
	}

	codigos := make([]int, 0, len(acumBase))
	for codigo := range acumBase {
		codigos = append(codigos, codigo)
	}
	sort.Ints(codigos)

	out := make([]AlicuotaIVA, 0, len(codigos))
	for _, codigo := range codigos {
		out = append(out, AlicuotaIVA{
			Codigo:        codigo,
			BaseImponible: acumBase[codigo].StringFixed(2),
			Importe:       acumIVA[codigo].StringFixed(2),
		})
	}
	return out, nil
}
