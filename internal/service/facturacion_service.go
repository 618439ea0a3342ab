package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"facturador/internal/afip"
	"facturador/internal/dto"
	"facturador/internal/infra"
	"facturador/internal/model"
	"facturador/internal/numeracion"
	"facturador/internal/repository"
	"facturador/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ErrTotalesInconsistentes — caller-supplied totals disagree with the
// totals derived from the items beyond the 0.01 tolerance. The submission
// never reaches the Authority.
var ErrTotalesInconsistentes = errors.New("facturacion: totales inconsistentes con los items")

type FacturacionService interface {
	// EmitirFactura runs one submission end to end: validation, numbering,
	// request construction, signing, authorization, verification QR,
	// persistence. Authority-side rejections and transport failures come
	// back as a non-authorized response, not as an error.
	EmitirFactura(ctx context.Context, req dto.EmitirFacturaRequest) (*dto.FacturaResponse, error)
	// ProximoNumero allocates the next sequence number for the configured
	// punto de venta. Numbers handed out but never submitted become
	// documented gaps.
	ProximoNumero(ctx context.Context, tipo model.TipoComprobante) (int64, error)
	ObtenerComprobante(ctx context.Context, id uuid.UUID) (*dto.FacturaResponse, error)
	ObtenerPDFPath(ctx context.Context, id uuid.UUID) (string, error)
	ObtenerQRPNG(ctx context.Context, id uuid.UUID) ([]byte, error)
}

type facturacionService struct {
	numerador   numeracion.Numerador
	firmante    afip.Firmante
	autorizador afip.Autorizador
	repo        repository.ComprobanteRepository
	dispatcher  *worker.Dispatcher

	cuitEmisor     string
	razonSocial    string
	puntoVenta     int
	pdfStoragePath string
}

func NewFacturacionService(
	numerador numeracion.Numerador,
	firmante afip.Firmante,
	autorizador afip.Autorizador,
	repo repository.ComprobanteRepository,
	dispatcher *worker.Dispatcher,
	cuitEmisor string,
	razonSocial string,
	puntoVenta int,
	pdfStoragePath string,
) FacturacionService {
	return &facturacionService{
		numerador:      numerador,
		firmante:       firmante,
		autorizador:    autorizador,
		repo:           repo,
		dispatcher:     dispatcher,
		cuitEmisor:     cuitEmisor,
		razonSocial:    razonSocial,
		puntoVenta:     puntoVenta,
		pdfStoragePath: pdfStoragePath,
	}
}

// ── EmitirFactura ─────────────────────────────────────────────────────────────

func (s *facturacionService) EmitirFactura(ctx context.Context, req dto.EmitirFacturaRequest) (*dto.FacturaResponse, error) {
	factura, err := s.armarFactura(req)
	if err != nil {
		return nil, err
	}

	// Resubmission of an already authorized numero returns the stored
	// comprobante — the WSFE protocol requires idempotent retries. A prior
	// attempt that ended in "error" or "rechazado" left a row under the
	// unique (punto_venta, tipo, numero) index; the retry must update that
	// row with the new outcome instead of inserting a duplicate.
	var previo *model.Comprobante
	if factura.Numero > 0 {
		if existente, err := s.repo.FindByNumero(ctx, factura.Tipo, factura.PuntoVenta, factura.Numero); err == nil {
			if existente.Estado == "emitido" {
				return s.comprobanteToResponse(existente), nil
			}
			previo = existente
		}
	}

	if factura.Numero == 0 {
		numero, err := s.numerador.ProximoNumero(ctx, factura.Tipo, factura.PuntoVenta)
		if err != nil {
			return nil, err
		}
		factura.Numero = numero
	}

	solicitud, observaciones, err := afip.ConstruirSolicitud(factura)
	if err != nil {
		return nil, err
	}
	for _, obs := range observaciones {
		log.Warn().Str("observacion", obs).Int64("numero", factura.Numero).Msg("facturacion: observacion al construir solicitud")
	}

	firmada, err := s.firmante.Firmar(ctx, solicitud)
	if err != nil {
		return nil, err
	}

	respuesta, err := s.autorizador.Autorizar(ctx, firmada)
	resultado, estado := s.interpretarRespuesta(factura, respuesta, err, observaciones)

	comp := s.persistir(ctx, factura, resultado, estado, previo)

	if resultado.Autorizado {
		s.generarPDFYEmail(ctx, factura, resultado, comp, req.EmailReceptor)
	}

	return s.resultadoToResponse(factura, resultado, comp), nil
}

// armarFactura maps the request into the domain entity, recomputes every
// derived amount and cross-checks caller-supplied totals.
func (s *facturacionService) armarFactura(req dto.EmitirFacturaRequest) (*model.Factura, error) {
	fecha, err := time.Parse("2006-01-02", req.FechaEmision)
	if err != nil {
		return nil, fmt.Errorf("fecha_emision invalida: %w", err)
	}

	items := make([]model.FacturaItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, model.FacturaItem{
			Descripcion:    it.Descripcion,
			Cantidad:       it.Cantidad,
			PrecioUnitario: it.PrecioUnitario,
			AlicuotaIVA:    it.AlicuotaIVA,
		})
	}
	items, err = afip.CompletarItems(items)
	if err != nil {
		return nil, err
	}

	neto, iva, total, err := afip.CalcularTotales(items)
	if err != nil {
		return nil, err
	}
	if err := verificarTotal(req.ImporteNeto, neto, "importe_neto"); err != nil {
		return nil, err
	}
	if err := verificarTotal(req.ImporteIVA, iva, "importe_iva"); err != nil {
		return nil, err
	}
	if err := verificarTotal(req.ImporteTotal, total, "importe_total"); err != nil {
		return nil, err
	}

	var numero int64
	if req.Numero != nil {
		numero = *req.Numero
	}

	return &model.Factura{
		Tipo:         model.TipoComprobante(req.Tipo),
		PuntoVenta:   s.puntoVenta,
		Numero:       numero,
		FechaEmision: fecha,
		Receptor: model.Receptor{
			TipoDocumento: req.Receptor.TipoDocumento,
			NroDocumento:  req.Receptor.NroDocumento,
			RazonSocial:   req.Receptor.RazonSocial,
			Domicilio:     req.Receptor.Domicilio,
			CondicionIVA:  req.Receptor.CondicionIVA,
		},
		Items:        items,
		ImporteNeto:  neto,
		ImporteIVA:   iva,
		ImporteTotal: total,
		Notas:        req.Notas,
	}, nil
}

func verificarTotal(declarado *decimal.Decimal, calculado decimal.Decimal, campo string) error {
	if declarado == nil {
		return nil
	}
	if declarado.Sub(calculado).Abs().GreaterThan(afip.ToleranciaMontos) {
		return fmt.Errorf("%w: %s declarado %s, calculado %s",
			ErrTotalesInconsistentes, campo, declarado.StringFixed(2), calculado.StringFixed(2))
	}
	return nil
}

// interpretarRespuesta folds the three possible outcomes (transport
// failure, rejection, acceptance) into one resultado plus the estado the
// comprobante record gets.
func (s *facturacionService) interpretarRespuesta(f *model.Factura, respuesta *afip.RespuestaCAE, err error, observaciones []string) (*model.ResultadoAutorizacion, string) {
	if err != nil {
		log.Warn().Err(err).Int64("numero", f.Numero).Msg("facturacion: fallo de transporte contra WSFE")
		return &model.ResultadoAutorizacion{
			Autorizado:    false,
			Observaciones: observaciones,
			Motivo:        fmt.Sprintf("no se pudo contactar al servicio de autorizacion: %v", err),
		}, "error"
	}

	for _, obs := range respuesta.Observaciones {
		observaciones = append(observaciones, fmt.Sprintf("[%d] %s", obs.Codigo, obs.Mensaje))
	}

	if !respuesta.Aprobada() {
		motivo := "el servicio de autorizacion rechazo el comprobante"
		if len(respuesta.Observaciones) > 0 {
			motivo = fmt.Sprintf("%s: %s", motivo, respuesta.Observaciones[0].Mensaje)
		}
		log.Warn().Str("resultado", respuesta.Resultado).Int64("numero", f.Numero).Msg("facturacion: comprobante rechazado")
		return &model.ResultadoAutorizacion{
			Autorizado:    false,
			Observaciones: observaciones,
			Motivo:        motivo,
		}, "rechazado"
	}

	venc := respuesta.CAEVencimiento
	resultado := &model.ResultadoAutorizacion{
		Autorizado:     true,
		CAE:            respuesta.CAE,
		CAEVencimiento: &venc,
		Observaciones:  observaciones,
	}

	png, url, qrErr := afip.GenerarQR(f, s.cuitEmisor, respuesta.CAE)
	if qrErr != nil {
		// The comprobante is authorized regardless; the QR can be
		// regenerated later from the stored data.
		log.Error().Err(qrErr).Int64("numero", f.Numero).Msg("facturacion: fallo generando QR de verificacion")
	} else {
		resultado.QRURL = url
		resultado.QRPNG = png
	}

	log.Info().Str("cae", respuesta.CAE).Int64("numero", f.Numero).Msg("facturacion: CAE obtenido")
	return resultado, "emitido"
}

// persistir stores the comprobante record, reusing the row a previous
// attempt left when there is one. Persistence failures are logged and do
// not abort the submission: the resultado already issued stands.
func (s *facturacionService) persistir(ctx context.Context, f *model.Factura, r *model.ResultadoAutorizacion, estado string, previo *model.Comprobante) *model.Comprobante {
	comp := previo
	if comp == nil {
		comp = &model.Comprobante{
			Tipo:       f.Tipo,
			PuntoVenta: f.PuntoVenta,
			Numero:     f.Numero,
		}
	}
	comp.FechaEmision = f.FechaEmision
	comp.ReceptorDoc = f.Receptor.NroDocumento
	comp.ReceptorNombre = f.Receptor.RazonSocial
	comp.MontoNeto = f.ImporteNeto
	comp.MontoIVA = f.ImporteIVA
	comp.MontoTotal = f.ImporteTotal
	comp.Estado = estado
	comp.CAE = nil
	comp.CAEVencimiento = nil
	comp.QRURL = nil
	comp.Observaciones = nil
	if r.Autorizado {
		cae := r.CAE
		comp.CAE = &cae
		comp.CAEVencimiento = r.CAEVencimiento
		if r.QRURL != "" {
			url := r.QRURL
			comp.QRURL = &url
		}
	}
	if len(r.Observaciones) > 0 || r.Motivo != "" {
		obs := r.Motivo
		for _, o := range r.Observaciones {
			if obs != "" {
				obs += "; "
			}
			obs += o
		}
		comp.Observaciones = &obs
	}

	var err error
	if previo != nil {
		err = s.repo.Update(ctx, comp)
	} else {
		err = s.repo.Create(ctx, comp)
	}
	if err != nil {
		log.Error().Err(err).Int64("numero", f.Numero).Msg("facturacion: no se pudo persistir el comprobante")
		return nil
	}
	return comp
}

// generarPDFYEmail renders the printable comprobante and enqueues the email
// job when the receptor provided an address. Both are best-effort.
func (s *facturacionService) generarPDFYEmail(ctx context.Context, f *model.Factura, r *model.ResultadoAutorizacion, comp *model.Comprobante, email *string) {
	if s.pdfStoragePath == "" {
		return
	}
	venc := time.Time{}
	if r.CAEVencimiento != nil {
		venc = *r.CAEVencimiento
	}
	pdfPath, err := generarPDF(f, s.razonSocial, s.cuitEmisor, r.CAE, venc, r.QRPNG, s.pdfStoragePath)
	if err != nil {
		log.Warn().Err(err).Int64("numero", f.Numero).Msg("facturacion: fallo generando PDF")
		return
	}
	if comp != nil {
		comp.PDFPath = &pdfPath
		if err := s.repo.Update(ctx, comp); err != nil {
			log.Warn().Err(err).Msg("facturacion: no se pudo actualizar la ruta del PDF")
		}
	}

	if email == nil || *email == "" || s.dispatcher == nil {
		return
	}
	job := worker.EmailJobPayload{
		ToEmail: *email,
		Subject: fmt.Sprintf("Comprobante %04d-%08d — %s", f.PuntoVenta, f.Numero, s.razonSocial),
		Body:    fmt.Sprintf("Adjunto encontrara su comprobante electronico.\nCAE: %s\nTotal: $%s", r.CAE, f.ImporteTotal.StringFixed(2)),
		PDFPath: pdfPath,
	}
	if err := s.dispatcher.EnqueueEmail(ctx, job); err != nil {
		log.Warn().Err(err).Str("email", *email).Msg("facturacion: no se pudo encolar el email")
	}
}

// ── Consultas ─────────────────────────────────────────────────────────────────

func (s *facturacionService) ProximoNumero(ctx context.Context, tipo model.TipoComprobante) (int64, error) {
	return s.numerador.ProximoNumero(ctx, tipo, s.puntoVenta)
}

func (s *facturacionService) ObtenerComprobante(ctx context.Context, id uuid.UUID) (*dto.FacturaResponse, error) {
	comp, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("comprobante %s no encontrado", id)
	}
	return s.comprobanteToResponse(comp), nil
}

func (s *facturacionService) ObtenerPDFPath(ctx context.Context, id uuid.UUID) (string, error) {
	comp, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("comprobante no encontrado")
	}
	if comp.PDFPath == nil || *comp.PDFPath == "" {
		return "", fmt.Errorf("PDF no disponible — el comprobante esta en estado '%s'", comp.Estado)
	}
	return *comp.PDFPath, nil
}

func (s *facturacionService) ObtenerQRPNG(ctx context.Context, id uuid.UUID) ([]byte, error) {
	comp, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("comprobante no encontrado")
	}
	if comp.QRURL == nil || *comp.QRURL == "" {
		return nil, fmt.Errorf("el comprobante no tiene codigo de verificacion")
	}
	return afip.CodificarQR(*comp.QRURL)
}

// ── helpers ──────────────────────────────────────────────────────────────────

func (s *facturacionService) resultadoToResponse(f *model.Factura, r *model.ResultadoAutorizacion, comp *model.Comprobante) *dto.FacturaResponse {
	items := make([]dto.ItemFacturaResponse, 0, len(f.Items))
	for _, it := range f.Items {
		items = append(items, dto.ItemFacturaResponse{
			Descripcion:    it.Descripcion,
			Cantidad:       it.Cantidad,
			PrecioUnitario: it.PrecioUnitario,
			AlicuotaIVA:    it.AlicuotaIVA,
			ImporteIVA:     it.ImporteIVA,
			ImporteTotal:   it.ImporteTotal,
		})
	}

	resp := &dto.FacturaResponse{
		Tipo:          string(f.Tipo),
		PuntoVenta:    f.PuntoVenta,
		Numero:        f.Numero,
		FechaEmision:  f.FechaEmision.Format("2006-01-02"),
		Autorizado:    r.Autorizado,
		CAE:           r.CAE,
		ImporteNeto:   f.ImporteNeto,
		ImporteIVA:    f.ImporteIVA,
		ImporteTotal:  f.ImporteTotal,
		Items:         items,
		Observaciones: r.Observaciones,
		Motivo:        r.Motivo,
		QRURL:         r.QRURL,
	}
	if r.CAEVencimiento != nil {
		v := r.CAEVencimiento.Format("2006-01-02")
		resp.CAEVencimiento = &v
	}
	if comp != nil {
		resp.ID = comp.ID.String()
		if comp.PDFPath != nil && *comp.PDFPath != "" {
			u := "/v1/facturas/pdf/" + comp.ID.String()
			resp.PDFUrl = &u
		}
	}
	return resp
}

func (s *facturacionService) comprobanteToResponse(c *model.Comprobante) *dto.FacturaResponse {
	resp := &dto.FacturaResponse{
		ID:           c.ID.String(),
		Tipo:         string(c.Tipo),
		PuntoVenta:   c.PuntoVenta,
		Numero:       c.Numero,
		FechaEmision: c.FechaEmision.Format("2006-01-02"),
		Autorizado:   c.Estado == "emitido",
		ImporteNeto:  c.MontoNeto,
		ImporteIVA:   c.MontoIVA,
		ImporteTotal: c.MontoTotal,
	}
	if c.CAE != nil {
		resp.CAE = *c.CAE
	}
	if c.CAEVencimiento != nil {
		v := c.CAEVencimiento.Format("2006-01-02")
		resp.CAEVencimiento = &v
	}
	if c.QRURL != nil {
		resp.QRURL = *c.QRURL
	}
	if c.Observaciones != nil && *c.Observaciones != "" {
		if resp.Autorizado {
			resp.Observaciones = []string{*c.Observaciones}
		} else {
			resp.Motivo = *c.Observaciones
		}
	}
	if c.PDFPath != nil && *c.PDFPath != "" {
		u := "/v1/facturas/pdf/" + c.ID.String()
		resp.PDFUrl = &u
	}
	return resp
}

// generarPDF is swapped out in unit tests.
var generarPDF = infra.GenerarComprobantePDF
