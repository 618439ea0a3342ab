package afip

// simulador.go — in-process stand-in for WSFE used in the testing
// environment. It honors the protocol's idempotency contract: re-submitting
// the same (punto de venta, tipo, numero) returns the CAE already issued
// instead of minting a duplicate.

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// VigenciaCAE is the fixed validity window of an issued CAE.
const VigenciaCAE = 10 * 24 * time.Hour

// AlmacenCAE persists issued CAEs keyed by (punto de venta, tipo, numero)
// so retries are idempotent.
type AlmacenCAE interface {
	Obtener(ctx context.Context, clave string) (*RespuestaCAE, error)
	Guardar(ctx context.Context, clave string, r *RespuestaCAE) error
}

// SimuladorWSFE issues pseudo-random 14-digit CAEs expiring VigenciaCAE
// after processing time.
type SimuladorWSFE struct {
	almacen AlmacenCAE
	ahora   func() time.Time

	mu sync.Mutex // serializes issue-or-reuse per submission
}

// NewSimuladorWSFE builds the simulator. ahora may be nil (defaults to
// time.Now); tests inject a fixed clock.
func NewSimuladorWSFE(almacen AlmacenCAE, ahora func() time.Time) *SimuladorWSFE {
	if ahora == nil {
		ahora = time.Now
	}
	return &SimuladorWSFE{almacen: almacen, ahora: ahora}
}

func (s *SimuladorWSFE) Autorizar(ctx context.Context, sf *SolicitudFirmada) (*RespuestaCAE, error) {
	if len(sf.Solicitud.Detalle) == 0 {
		return nil, fmt.Errorf("wsfe: la solicitud no contiene detalle")
	}
	det := sf.Solicitud.Detalle[0]
	clave := fmt.Sprintf("%d:%d:%d",
		sf.Solicitud.Cabecera.PuntoVenta,
		sf.Solicitud.Cabecera.TipoComprobante,
		det.ComprobanteDesde)

	s.mu.Lock()
	defer s.mu.Unlock()

	if previa, err := s.almacen.Obtener(ctx, clave); err != nil {
		return nil, fmt.Errorf("wsfe: consultando CAE previo: %w", err)
	} else if previa != nil {
		return previa, nil
	}

	respuesta := &RespuestaCAE{
		Resultado:      "A",
		CAE:            generarCAE(),
		CAEVencimiento: s.ahora().Add(VigenciaCAE).Truncate(24 * time.Hour),
	}
	if err := s.almacen.Guardar(ctx, clave, respuesta); err != nil {
		return nil, fmt.Errorf("wsfe: guardando CAE emitido: %w", err)
	}
	return respuesta, nil
}

// generarCAE returns a pseudo-random 14-digit numeric string.
func generarCAE() string {
	n := 10_000_000_000_000 + rand.Int64N(90_000_000_000_000)
	return fmt.Sprintf("%014d", n)
}

// ── AlmacenCAE implementations ───────────────────────────────────────────────

// MemoriaAlmacenCAE keeps issued CAEs in a mutex-guarded map.
type MemoriaAlmacenCAE struct {
	mu       sync.RWMutex
	emitidos map[string]*RespuestaCAE
}

func NewMemoriaAlmacenCAE() *MemoriaAlmacenCAE {
	return &MemoriaAlmacenCAE{emitidos: make(map[string]*RespuestaCAE)}
}

func (m *MemoriaAlmacenCAE) Obtener(_ context.Context, clave string) (*RespuestaCAE, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.emitidos[clave]; ok {
		copia := *r
		return &copia, nil
	}
	return nil, nil
}

func (m *MemoriaAlmacenCAE) Guardar(_ context.Context, clave string, r *RespuestaCAE) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copia := *r
	m.emitidos[clave] = &copia
	return nil
}

// RedisAlmacenCAE persists issued CAEs in Redis so idempotency survives a
// process restart. Keys: cae:{ptoVta}:{tipo}:{numero}.
type RedisAlmacenCAE struct {
	rdb *redis.Client
}

func NewRedisAlmacenCAE(rdb *redis.Client) *RedisAlmacenCAE {
	return &RedisAlmacenCAE{rdb: rdb}
}

func (r *RedisAlmacenCAE) Obtener(ctx context.Context, clave string) (*RespuestaCAE, error) {
	raw, err := r.rdb.Get(ctx, "cae:"+clave).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var respuesta RespuestaCAE
	if err := json.Unmarshal(raw, &respuesta); err != nil {
		return nil, err
	}
	return &respuesta, nil
}

func (r *RedisAlmacenCAE) Guardar(ctx context.Context, clave string, respuesta *RespuestaCAE) error {
	raw, err := json.Marshal(respuesta)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, "cae:"+clave, raw, 0).Err()
}
