// Package numeracion allocates comprobante sequence numbers per
// (punto de venta, tipo). Allocation is the single point of mutable shared
// state in the pipeline: implementations serialize it so no two callers
// ever observe the same issued number.
package numeracion

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"facturador/internal/model"

	"gorm.io/gorm"
)

// ErrNumeracion — the counter source is unavailable.
var ErrNumeracion = errors.New("numeracion: fuente de numeracion no disponible")

// Numerador hands out the next sequence number for a document type at a
// punto de venta. Numbers are monotonically increasing; gaps only appear
// when an allocated number is never submitted, which callers must accept.
type Numerador interface {
	ProximoNumero(ctx context.Context, tipo model.TipoComprobante, puntoVenta int) (int64, error)
}

// ── MemoriaNumerador ─────────────────────────────────────────────────────────

// MemoriaNumerador keeps counters in process memory. Suitable for the
// testing environment and unit tests; numbering resets on restart.
type MemoriaNumerador struct {
	mu      sync.Mutex
	ultimos map[string]int64
}

func NewMemoriaNumerador() *MemoriaNumerador {
	return &MemoriaNumerador{ultimos: make(map[string]int64)}
}

func (n *MemoriaNumerador) ProximoNumero(_ context.Context, tipo model.TipoComprobante, puntoVenta int) (int64, error) {
	if puntoVenta <= 0 {
		return 0, fmt.Errorf("%w: punto de venta invalido %d", ErrNumeracion, puntoVenta)
	}
	clave := fmt.Sprintf("%d:%s", puntoVenta, tipo)

	n.mu.Lock()
	defer n.mu.Unlock()
	n.ultimos[clave]++
	return n.ultimos[clave], nil
}

// ── GormNumerador ────────────────────────────────────────────────────────────

// GormNumerador advances the counter row with a single upsert so the
// database serializes concurrent allocations.
type GormNumerador struct {
	db *gorm.DB
}

func NewGormNumerador(db *gorm.DB) *GormNumerador {
	return &GormNumerador{db: db}
}

func (n *GormNumerador) ProximoNumero(ctx context.Context, tipo model.TipoComprobante, puntoVenta int) (int64, error) {
	if puntoVenta <= 0 {
		return 0, fmt.Errorf("%w: punto de venta invalido %d", ErrNumeracion, puntoVenta)
	}

	var numero int64
	err := n.db.WithContext(ctx).Raw(`
		INSERT INTO numeracions (punto_venta, tipo, ultimo, updated_at)
		VALUES (?, ?, 1, NOW())
		ON CONFLICT (punto_venta, tipo)
		DO UPDATE SET ultimo = numeracions.ultimo + 1, updated_at = NOW()
		RETURNING ultimo`,
		puntoVenta, string(tipo)).Scan(&numero).Error
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNumeracion, err)
	}
	return numero, nil
}
