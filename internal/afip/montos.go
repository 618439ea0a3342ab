package afip

// montos.go — per-item IVA and invoice totals.
// Pure functions over shopspring/decimal. Every monetary output is rounded
// to 2 places with decimal.Round, which rounds half away from zero; totals
// are later compared against caller-supplied values with a 0.01 tolerance.

import (
	"fmt"

	"facturador/internal/model"

	"github.com/shopspring/decimal"
)

var cien = decimal.NewFromInt(100)

// ToleranciaMontos is the maximum accepted difference between the totals a
// caller supplies and the totals derived from the items.
var ToleranciaMontos = decimal.NewFromFloat(0.01)

// CalcularItem derives (importeIVA, importeTotal) for one line:
//
//	importeIVA   = round2(cantidad * precioUnitario * alicuota / 100)
//	importeTotal = round2(cantidad * precioUnitario) + importeIVA
//
// Fails with ErrItemInvalido when cantidad ≤ 0, precioUnitario ≤ 0 or
// alicuota is outside [0, 100].
func CalcularItem(cantidad, precioUnitario, alicuota decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	if !cantidad.IsPositive() {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: cantidad debe ser mayor a cero", ErrItemInvalido)
	}
	if !precioUnitario.IsPositive() {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: precio unitario debe ser mayor a cero", ErrItemInvalido)
	}
	if alicuota.IsNegative() || alicuota.GreaterThan(cien) {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: alicuota %s fuera de rango [0, 100]", ErrItemInvalido, alicuota)
	}

	base := cantidad.Mul(precioUnitario)
	iva := base.Mul(alicuota).Div(cien).Round(2)
	total := base.Round(2).Add(iva)
	return iva, total, nil
}

// CalcularTotales derives (neto, iva, total) from the base fields of every
// item. The result is order-independent: permuting items yields identical
// totals. Derived item fields are ignored — they are never ground truth.
func CalcularTotales(items []model.FacturaItem) (neto, iva, total decimal.Decimal, err error) {
	for i, item := range items {
		itemIVA, _, calcErr := CalcularItem(item.Cantidad, item.PrecioUnitario, item.AlicuotaIVA)
		if calcErr != nil {
			return decimal.Zero, decimal.Zero, decimal.Zero, fmt.Errorf("item %d: %w", i+1, calcErr)
		}
		neto = neto.Add(item.Cantidad.Mul(item.PrecioUnitario).Round(2))
		iva = iva.Add(itemIVA)
	}
	total = neto.Add(iva)
	return neto, iva, total, nil
}

// CompletarItems returns a copy of items with ImporteIVA and ImporteTotal
// recomputed from cantidad/precio/alicuota.
func CompletarItems(items []model.FacturaItem) ([]model.FacturaItem, error) {
	out := make([]model.FacturaItem, len(items))
	for i, item := range items {
		itemIVA, itemTotal, err := CalcularItem(item.Cantidad, item.PrecioUnitario, item.AlicuotaIVA)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i+1, err)
		}
		item.ImporteIVA = itemIVA
		item.ImporteTotal = itemTotal
		out[i] = item
	}
	return out, nil
}
