package worker

// facturacion_worker.go
// Processes deferred submission jobs from QueueFacturacion. A job carries
// the full invoice request; the worker runs it through the same emission
// pipeline as the synchronous endpoint. There is no automatic retry: a
// failed job goes straight to the dead letter queue for manual inspection.

import (
	"context"
	"encoding/json"
	"fmt"

	"facturador/internal/dto"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// FacturacionJobPayload is the job envelope sent to QueueFacturacion.
type FacturacionJobPayload struct {
	Request dto.EmitirFacturaRequest `json:"request"`
}

// Emisor is the slice of the emission service the worker needs.
// Declared here so the worker package does not depend on service wiring.
type Emisor interface {
	EmitirFactura(ctx context.Context, req dto.EmitirFacturaRequest) (*dto.FacturaResponse, error)
}

// FacturacionWorker runs deferred invoice submissions.
type FacturacionWorker struct {
	emisor Emisor
	rdb    *redis.Client
}

func NewFacturacionWorker(emisor Emisor, rdb *redis.Client) *FacturacionWorker {
	return &FacturacionWorker{emisor: emisor, rdb: rdb}
}

// Process handles a single deferred submission:
//  1. Parse FacturacionJobPayload from the job envelope
//  2. Run the emission pipeline end to end
//  3. On validation error, move the job to the DLQ — resubmitting the
//     same malformed request cannot succeed
//
// A non-authorized result (rejection or transport failure) is not a job
// failure: the comprobante record already holds the outcome.
func (w *FacturacionWorker) Process(ctx context.Context, raw json.RawMessage) {
	var payload FacturacionJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("facturacion_worker: invalid payload")
		SendToDLQ(ctx, w.rdb, QueueFacturacion, "facturacion", raw, "invalid payload", 1)
		return
	}

	resp, err := w.emisor.EmitirFactura(ctx, payload.Request)
	if err != nil {
		log.Error().Err(err).Msg("facturacion_worker: emission failed")
		SendToDLQ(ctx, w.rdb, QueueFacturacion, "facturacion", raw, fmt.Sprintf("emission failed: %v", err), 1)
		return
	}

	if resp.Autorizado {
		log.Info().Str("cae", resp.CAE).Int64("numero", resp.Numero).Msg("facturacion_worker: comprobante autorizado")
	} else {
		log.Warn().Int64("numero", resp.Numero).Str("motivo", resp.Motivo).Msg("facturacion_worker: comprobante no autorizado")
	}
}
