package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"facturador/internal/afip"
	"facturador/internal/dto"
	"facturador/internal/model"
	"facturador/internal/numeracion"
	"facturador/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── In-memory ComprobanteRepository stub ─────────────────────────────────────

type stubComprobanteRepo struct {
	comprobantes map[uuid.UUID]*model.Comprobante
}

func newStubComprobanteRepo() *stubComprobanteRepo {
	return &stubComprobanteRepo{comprobantes: make(map[uuid.UUID]*model.Comprobante)}
}

func (r *stubComprobanteRepo) Create(_ context.Context, c *model.Comprobante) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now()
	cloned := *c
	r.comprobantes[c.ID] = &cloned
	return nil
}

func (r *stubComprobanteRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Comprobante, error) {
	c, ok := r.comprobantes[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	return c, nil
}

func (r *stubComprobanteRepo) FindByNumero(_ context.Context, tipo model.TipoComprobante, puntoVenta int, numero int64) (*model.Comprobante, error) {
	for _, c := range r.comprobantes {
		if c.Tipo == tipo && c.PuntoVenta == puntoVenta && c.Numero == numero {
			return c, nil
		}
	}
	return nil, errors.New("record not found")
}

func (r *stubComprobanteRepo) Update(_ context.Context, c *model.Comprobante) error {
	cloned := *c
	r.comprobantes[c.ID] = &cloned
	return nil
}

// compile-time interface check
var _ repository.ComprobanteRepository = (*stubComprobanteRepo)(nil)

// repoConIndiceUnico rejects a second Create para el mismo
// (tipo, punto de venta, numero), como lo hace el indice en Postgres.
type repoConIndiceUnico struct {
	*stubComprobanteRepo
}

func (r *repoConIndiceUnico) Create(ctx context.Context, c *model.Comprobante) error {
	if _, err := r.FindByNumero(ctx, c.Tipo, c.PuntoVenta, c.Numero); err == nil {
		return errors.New(`duplicate key value violates unique constraint "idx_comprobante_numero"`)
	}
	return r.stubComprobanteRepo.Create(ctx, c)
}

// ── Autorizador stubs ────────────────────────────────────────────────────────

type autorizadorTransporteCaido struct{ llamadas int }

func (a *autorizadorTransporteCaido) Autorizar(context.Context, *afip.SolicitudFirmada) (*afip.RespuestaCAE, error) {
	a.llamadas++
	return nil, errors.New("wsfe: endpoint inalcanzable")
}

type autorizadorQueRechaza struct{}

func (autorizadorQueRechaza) Autorizar(context.Context, *afip.SolicitudFirmada) (*afip.RespuestaCAE, error) {
	return &afip.RespuestaCAE{
		Resultado: "R",
		Observaciones: []afip.Observacion{
			{Codigo: 10048, Mensaje: "CUIT del receptor no registrado"},
		},
	}, nil
}

// autorizadorFallaPrimero falla la primera llamada y delega las siguientes.
type autorizadorFallaPrimero struct {
	interno  afip.Autorizador
	llamadas int
}

func (a *autorizadorFallaPrimero) Autorizar(ctx context.Context, s *afip.SolicitudFirmada) (*afip.RespuestaCAE, error) {
	a.llamadas++
	if a.llamadas == 1 {
		return nil, errors.New("wsfe: timeout")
	}
	return a.interno.Autorizar(ctx, s)
}

var _ afip.Autorizador = (*autorizadorTransporteCaido)(nil)
var _ afip.Autorizador = autorizadorQueRechaza{}
var _ afip.Autorizador = (*autorizadorFallaPrimero)(nil)

// ── Fixtures ─────────────────────────────────────────────────────────────────

func requestDePrueba() dto.EmitirFacturaRequest {
	return dto.EmitirFacturaRequest{
		Tipo:         "factura",
		FechaEmision: "2026-08-15",
		Receptor: dto.ReceptorRequest{
			TipoDocumento: "CUIT",
			NroDocumento:  "20304050607",
			RazonSocial:   "Comercio SRL",
			Domicilio:     "Av. Siempreviva 742",
			CondicionIVA:  "responsable_inscripto",
		},
		Items: []dto.ItemFacturaRequest{
			{Descripcion: "servicio", Cantidad: decimal.NewFromInt(2), PrecioUnitario: decimal.NewFromInt(100), AlicuotaIVA: decimal.NewFromInt(21)},
		},
	}
}

func servicioDePrueba(repo repository.ComprobanteRepository, autorizador afip.Autorizador) FacturacionService {
	return NewFacturacionService(
		numeracion.NewMemoriaNumerador(),
		afip.NewSimuladorFirmante("20111111112"),
		autorizador,
		repo,
		nil, // sin dispatcher: los tests no encolan emails
		"20111111112",
		"Emisor SA",
		3,
		"", // sin PDF en tests unitarios
	)
}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestEmitirFactura_AutorizadaCompleta(t *testing.T) {
	repo := newStubComprobanteRepo()
	svc := servicioDePrueba(repo, afip.NewSimuladorWSFE(afip.NewMemoriaAlmacenCAE(), nil))

	resp, err := svc.EmitirFactura(context.Background(), requestDePrueba())
	require.NoError(t, err)

	assert.True(t, resp.Autorizado)
	assert.Len(t, resp.CAE, 14)
	require.NotNil(t, resp.CAEVencimiento)
	assert.Equal(t, int64(1), resp.Numero)
	assert.Equal(t, 3, resp.PuntoVenta)
	assert.Equal(t, "200.00", resp.ImporteNeto.StringFixed(2))
	assert.Equal(t, "42.00", resp.ImporteIVA.StringFixed(2))
	assert.Equal(t, "242.00", resp.ImporteTotal.StringFixed(2))
	assert.NotEmpty(t, resp.QRURL)

	// La URL de verificacion decodifica a la carga publicada
	carga, err := afip.DecodificarURLQR(resp.QRURL)
	require.NoError(t, err)
	assert.Equal(t, int64(1), carga.NroCmp)
	assert.Equal(t, "E", carga.TipoCodAut)

	// Persistido como emitido
	require.Len(t, repo.comprobantes, 1)
	for _, c := range repo.comprobantes {
		assert.Equal(t, "emitido", c.Estado)
		require.NotNil(t, c.CAE)
		assert.Equal(t, resp.CAE, *c.CAE)
	}
}

func TestEmitirFactura_NumeracionConsecutiva(t *testing.T) {
	repo := newStubComprobanteRepo()
	svc := servicioDePrueba(repo, afip.NewSimuladorWSFE(afip.NewMemoriaAlmacenCAE(), nil))

	r1, err := svc.EmitirFactura(context.Background(), requestDePrueba())
	require.NoError(t, err)
	r2, err := svc.EmitirFactura(context.Background(), requestDePrueba())
	require.NoError(t, err)

	assert.Equal(t, int64(1), r1.Numero)
	assert.Equal(t, int64(2), r2.Numero)
	assert.NotEqual(t, r1.CAE, r2.CAE)
}

func TestEmitirFactura_ReenvioIdempotente(t *testing.T) {
	repo := newStubComprobanteRepo()
	svc := servicioDePrueba(repo, afip.NewSimuladorWSFE(afip.NewMemoriaAlmacenCAE(), nil))

	req := requestDePrueba()
	numero := int64(7)
	req.Numero = &numero

	r1, err := svc.EmitirFactura(context.Background(), req)
	require.NoError(t, err)
	r2, err := svc.EmitirFactura(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, r1.CAE, r2.CAE)
	assert.Equal(t, r1.Numero, r2.Numero)
	// El reenvio no crea un segundo registro
	assert.Len(t, repo.comprobantes, 1)
}

func TestEmitirFactura_ReintentoTrasFalloActualizaElRegistro(t *testing.T) {
	repo := &repoConIndiceUnico{newStubComprobanteRepo()}
	autorizador := &autorizadorFallaPrimero{interno: afip.NewSimuladorWSFE(afip.NewMemoriaAlmacenCAE(), nil)}
	svc := servicioDePrueba(repo, autorizador)

	req := requestDePrueba()
	numero := int64(9)
	req.Numero = &numero

	// Primer intento: el transporte cae y el registro queda en "error".
	r1, err := svc.EmitirFactura(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, r1.Autorizado)

	// El reintento reutiliza el registro existente en lugar de violar el
	// indice unico, y el estado pasa a "emitido" con el CAE obtenido.
	r2, err := svc.EmitirFactura(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, r2.Autorizado)
	assert.Len(t, r2.CAE, 14)
	assert.NotEmpty(t, r2.ID)

	require.Len(t, repo.comprobantes, 1)
	for _, c := range repo.comprobantes {
		assert.Equal(t, "emitido", c.Estado)
		require.NotNil(t, c.CAE)
		assert.Equal(t, r2.CAE, *c.CAE)
	}
	assert.Equal(t, 2, autorizador.llamadas)
}

func TestEmitirFactura_SinItemsNoLlegaAlAutorizador(t *testing.T) {
	autorizador := &autorizadorTransporteCaido{}
	svc := servicioDePrueba(newStubComprobanteRepo(), autorizador)

	req := requestDePrueba()
	req.Items = nil

	_, err := svc.EmitirFactura(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, afip.ErrConstruccion)
	assert.Zero(t, autorizador.llamadas)
}

func TestEmitirFactura_ItemInvalido(t *testing.T) {
	svc := servicioDePrueba(newStubComprobanteRepo(), afip.NewSimuladorWSFE(afip.NewMemoriaAlmacenCAE(), nil))

	req := requestDePrueba()
	req.Items[0].Cantidad = decimal.Zero

	_, err := svc.EmitirFactura(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, afip.ErrItemInvalido)
}

func TestEmitirFactura_TotalesInconsistentes(t *testing.T) {
	svc := servicioDePrueba(newStubComprobanteRepo(), afip.NewSimuladorWSFE(afip.NewMemoriaAlmacenCAE(), nil))

	req := requestDePrueba()
	declarado := decimal.NewFromFloat(243.00) // el real es 242.00
	req.ImporteTotal = &declarado

	_, err := svc.EmitirFactura(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTotalesInconsistentes)
}

func TestEmitirFactura_TotalesDentroDeTolerancia(t *testing.T) {
	svc := servicioDePrueba(newStubComprobanteRepo(), afip.NewSimuladorWSFE(afip.NewMemoriaAlmacenCAE(), nil))

	req := requestDePrueba()
	declarado := decimal.NewFromFloat(242.01)
	req.ImporteTotal = &declarado

	resp, err := svc.EmitirFactura(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, resp.Autorizado)
}

func TestEmitirFactura_FalloDeTransporte(t *testing.T) {
	repo := newStubComprobanteRepo()
	svc := servicioDePrueba(repo, &autorizadorTransporteCaido{})

	resp, err := svc.EmitirFactura(context.Background(), requestDePrueba())
	// El fallo de transporte no es un error del caller
	require.NoError(t, err)

	assert.False(t, resp.Autorizado)
	assert.Empty(t, resp.CAE)
	assert.NotEmpty(t, resp.Motivo)

	require.Len(t, repo.comprobantes, 1)
	for _, c := range repo.comprobantes {
		assert.Equal(t, "error", c.Estado)
		assert.Nil(t, c.CAE)
	}
}

func TestEmitirFactura_Rechazada(t *testing.T) {
	repo := newStubComprobanteRepo()
	svc := servicioDePrueba(repo, autorizadorQueRechaza{})

	resp, err := svc.EmitirFactura(context.Background(), requestDePrueba())
	require.NoError(t, err)

	assert.False(t, resp.Autorizado)
	assert.Contains(t, resp.Motivo, "rechazo")
	require.NotEmpty(t, resp.Observaciones)
	assert.Contains(t, resp.Observaciones[0], "10048")

	for _, c := range repo.comprobantes {
		assert.Equal(t, "rechazado", c.Estado)
	}
}

func TestEmitirFactura_TipoDesconocidoConFallback(t *testing.T) {
	repo := newStubComprobanteRepo()
	svc := servicioDePrueba(repo, afip.NewSimuladorWSFE(afip.NewMemoriaAlmacenCAE(), nil))

	req := requestDePrueba()
	req.Tipo = "remito"

	resp, err := svc.EmitirFactura(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, resp.Autorizado)
	require.NotEmpty(t, resp.Observaciones)
	assert.Contains(t, resp.Observaciones[0], "remito")
}

func TestEmitirFactura_FechaInvalida(t *testing.T) {
	svc := servicioDePrueba(newStubComprobanteRepo(), afip.NewSimuladorWSFE(afip.NewMemoriaAlmacenCAE(), nil))

	req := requestDePrueba()
	req.FechaEmision = "15/08/2026"

	_, err := svc.EmitirFactura(context.Background(), req)
	require.Error(t, err)
}

func TestProximoNumero(t *testing.T) {
	svc := servicioDePrueba(newStubComprobanteRepo(), afip.NewSimuladorWSFE(afip.NewMemoriaAlmacenCAE(), nil))

	n1, err := svc.ProximoNumero(context.Background(), model.TipoFactura)
	require.NoError(t, err)
	n2, err := svc.ProximoNumero(context.Background(), model.TipoFactura)
	require.NoError(t, err)

	assert.Equal(t, int64(1), n1)
	assert.Equal(t, int64(2), n2)
}

func TestObtenerComprobante(t *testing.T) {
	repo := newStubComprobanteRepo()
	svc := servicioDePrueba(repo, afip.NewSimuladorWSFE(afip.NewMemoriaAlmacenCAE(), nil))

	emitida, err := svc.EmitirFactura(context.Background(), requestDePrueba())
	require.NoError(t, err)

	id, err := uuid.Parse(emitida.ID)
	require.NoError(t, err)

	leida, err := svc.ObtenerComprobante(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, emitida.CAE, leida.CAE)
	assert.True(t, leida.Autorizado)

	_, err = svc.ObtenerComprobante(context.Background(), uuid.New())
	require.Error(t, err)
}
