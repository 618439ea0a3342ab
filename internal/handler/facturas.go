package handler

import (
	"errors"
	"net/http"

	"facturador/internal/apierror"
	"facturador/internal/dto"
	"facturador/internal/model"
	"facturador/internal/numeracion"
	"facturador/internal/service"
	"facturador/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type FacturasHandler struct {
	svc        service.FacturacionService
	dispatcher *worker.Dispatcher
	puntoVenta int
}

func NewFacturasHandler(svc service.FacturacionService, dispatcher *worker.Dispatcher, puntoVenta int) *FacturasHandler {
	return &FacturasHandler{svc: svc, dispatcher: dispatcher, puntoVenta: puntoVenta}
}

// EmitirFactura godoc
// @Summary      Emitir un comprobante electronico
// @Description  Construye, firma y autoriza un comprobante contra WSFE. Con ?async=true encola la emision y responde 202.
// @Tags         facturas
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        async query bool false "Encolar la emision en lugar de esperar la respuesta de WSFE"
// @Param        body  body  dto.EmitirFacturaRequest true "Detalle del comprobante"
// @Success      201  {object} dto.FacturaResponse
// @Success      202  {object} map[string]string
// @Failure      400  {object} apierror.APIError
// @Failure      503  {object} apierror.APIError
// @Router       /v1/facturas [post]
func (h *FacturasHandler) EmitirFactura(c *gin.Context) {
	var req dto.EmitirFacturaRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if c.Query("async") == "true" {
		if h.dispatcher == nil {
			c.JSON(http.StatusServiceUnavailable, apierror.New("Emision asincronica no disponible"))
			return
		}
		job := worker.FacturacionJobPayload{Request: req}
		if err := h.dispatcher.EnqueueFacturacion(c.Request.Context(), job); err != nil {
			c.JSON(http.StatusServiceUnavailable, apierror.New("No se pudo encolar la emision"))
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"estado": "encolado"})
		return
	}

	resp, err := h.svc.EmitirFactura(c.Request.Context(), req)
	if err != nil {
		// La fuente de numeracion caida es una falla de infraestructura,
		// no un pedido invalido.
		if errors.Is(err, numeracion.ErrNumeracion) {
			c.JSON(http.StatusServiceUnavailable, apierror.New(err.Error()))
			return
		}
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ProximoNumero godoc
// @Summary      Proximo numero de comprobante
// @Description  Reserva y devuelve el proximo numero de la secuencia para el tipo dado.
// @Tags         facturas
// @Produce      json
// @Security     BearerAuth
// @Param        tipo query string true "factura | nota_debito | nota_credito"
// @Success      200  {object} dto.ProximoNumeroResponse
// @Failure      400  {object} apierror.APIError
// @Failure      503  {object} apierror.APIError
// @Router       /v1/facturas/proximo-numero [get]
func (h *FacturasHandler) ProximoNumero(c *gin.Context) {
	tipo := c.Query("tipo")
	if tipo == "" {
		c.JSON(http.StatusBadRequest, apierror.New("Parametro 'tipo' requerido"))
		return
	}
	numero, err := h.svc.ProximoNumero(c.Request.Context(), model.TipoComprobante(tipo))
	if err != nil {
		if errors.Is(err, numeracion.ErrNumeracion) {
			c.JSON(http.StatusServiceUnavailable, apierror.New(err.Error()))
			return
		}
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, dto.ProximoNumeroResponse{
		Tipo:       tipo,
		PuntoVenta: h.puntoVenta,
		Numero:     numero,
	})
}

// ObtenerFactura godoc
// @Summary      Consultar un comprobante
// @Tags         facturas
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "UUID del comprobante"
// @Success      200  {object} dto.FacturaResponse
// @Failure      404  {object} apierror.APIError
// @Router       /v1/facturas/{id} [get]
func (h *FacturasHandler) ObtenerFactura(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID invalido"))
		return
	}
	resp, err := h.svc.ObtenerComprobante(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ObtenerQR godoc
// @Summary      Codigo QR de verificacion
// @Description  Devuelve el PNG del QR que apunta a la URL de verificacion fiscal.
// @Tags         facturas
// @Produce      png
// @Security     BearerAuth
// @Param        id path string true "UUID del comprobante"
// @Success      200
// @Failure      404  {object} apierror.APIError
// @Router       /v1/facturas/{id}/qr [get]
func (h *FacturasHandler) ObtenerQR(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID invalido"))
		return
	}
	png, err := h.svc.ObtenerQRPNG(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, apierror.New(err.Error()))
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// DescargarPDF godoc
// @Summary      Descargar el PDF del comprobante
// @Tags         facturas
// @Produce      application/pdf
// @Security     BearerAuth
// @Param        id path string true "UUID del comprobante"
// @Success      200
// @Failure      404  {object} apierror.APIError
// @Router       /v1/facturas/pdf/{id} [get]
func (h *FacturasHandler) DescargarPDF(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID invalido"))
		return
	}
	path, err := h.svc.ObtenerPDFPath(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, apierror.New(err.Error()))
		return
	}
	c.FileAttachment(path, "comprobante.pdf")
}
