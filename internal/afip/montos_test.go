package afip

import (
	"testing"

	"facturador/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestCalcularItem_EscenarioTipico(t *testing.T) {
	// 2 unidades a $100 con IVA 21% → IVA 42.00, total 242.00
	iva, total, err := CalcularItem(d("2"), d("100"), d("21"))
	require.NoError(t, err)
	assert.Equal(t, "42.00", iva.StringFixed(2))
	assert.Equal(t, "242.00", total.StringFixed(2))
}

func TestCalcularItem_Redondeo(t *testing.T) {
	// 3 × 33.33 al 21% = 99.99 base, IVA 20.9979 → 21.00 (mitad hacia arriba)
	iva, total, err := CalcularItem(d("3"), d("33.33"), d("21"))
	require.NoError(t, err)
	assert.Equal(t, "21.00", iva.StringFixed(2))
	assert.Equal(t, "120.99", total.StringFixed(2))
}

func TestCalcularItem_CantidadFraccionaria(t *testing.T) {
	iva, total, err := CalcularItem(d("1.5"), d("10.50"), d("10.5"))
	require.NoError(t, err)
	assert.Equal(t, "1.65", iva.StringFixed(2))
	assert.Equal(t, "17.40", total.StringFixed(2))
}

func TestCalcularItem_AlicuotasLimite(t *testing.T) {
	// 0 y 100 son alicuotas validas para el calculo
	iva, total, err := CalcularItem(d("1"), d("50"), d("0"))
	require.NoError(t, err)
	assert.True(t, iva.IsZero())
	assert.Equal(t, "50.00", total.StringFixed(2))

	iva, total, err = CalcularItem(d("1"), d("50"), d("100"))
	require.NoError(t, err)
	assert.Equal(t, "50.00", iva.StringFixed(2))
	assert.Equal(t, "100.00", total.StringFixed(2))
}

func TestCalcularItem_Invalidos(t *testing.T) {
	casos := []struct {
		nombre                     string
		cantidad, precio, alicuota string
	}{
		{"cantidad cero", "0", "100", "21"},
		{"cantidad negativa", "-1", "100", "21"},
		{"precio cero", "1", "0", "21"},
		{"precio negativo", "1", "-5", "21"},
		{"alicuota negativa", "1", "100", "-0.01"},
		{"alicuota mayor a cien", "1", "100", "100.01"},
	}
	for _, c := range casos {
		t.Run(c.nombre, func(t *testing.T) {
			_, _, err := CalcularItem(d(c.cantidad), d(c.precio), d(c.alicuota))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrItemInvalido)
		})
	}
}

func TestCalcularTotales_OrdenIndependiente(t *testing.T) {
	items := []model.FacturaItem{
		{Descripcion: "a", Cantidad: d("2"), PrecioUnitario: d("100"), AlicuotaIVA: d("21")},
		{Descripcion: "b", Cantidad: d("1"), PrecioUnitario: d("33.33"), AlicuotaIVA: d("10.5")},
		{Descripcion: "c", Cantidad: d("4"), PrecioUnitario: d("7.77"), AlicuotaIVA: d("27")},
	}
	neto1, iva1, total1, err := CalcularTotales(items)
	require.NoError(t, err)

	permutado := []model.FacturaItem{items[2], items[0], items[1]}
	neto2, iva2, total2, err := CalcularTotales(permutado)
	require.NoError(t, err)

	assert.True(t, neto1.Equal(neto2))
	assert.True(t, iva1.Equal(iva2))
	assert.True(t, total1.Equal(total2))
	assert.True(t, total1.Equal(neto1.Add(iva1)))
}

func TestCalcularTotales_IgnoraCamposDerivados(t *testing.T) {
	// Los derivados suministrados por el caller no son fuente de verdad
	items := []model.FacturaItem{{
		Descripcion:    "a",
		Cantidad:       d("1"),
		PrecioUnitario: d("100"),
		AlicuotaIVA:    d("21"),
		ImporteIVA:     d("999"),
		ImporteTotal:   d("999"),
	}}
	neto, iva, total, err := CalcularTotales(items)
	require.NoError(t, err)
	assert.Equal(t, "100.00", neto.StringFixed(2))
	assert.Equal(t, "21.00", iva.StringFixed(2))
	assert.Equal(t, "121.00", total.StringFixed(2))
}

func TestCalcularTotales_ItemInvalidoPropaga(t *testing.T) {
	items := []model.FacturaItem{
		{Cantidad: d("1"), PrecioUnitario: d("100"), AlicuotaIVA: d("21")},
		{Cantidad: d("0"), PrecioUnitario: d("100"), AlicuotaIVA: d("21")},
	}
	_, _, _, err := CalcularTotales(items)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrItemInvalido)
	assert.Contains(t, err.Error(), "item 2")
}

func TestCompletarItems(t *testing.T) {
	items := []model.FacturaItem{
		{Descripcion: "a", Cantidad: d("2"), PrecioUnitario: d("100"), AlicuotaIVA: d("21")},
	}
	out, err := CompletarItems(items)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "42.00", out[0].ImporteIVA.StringFixed(2))
	assert.Equal(t, "242.00", out[0].ImporteTotal.StringFixed(2))
	// El slice original queda intacto
	assert.True(t, items[0].ImporteIVA.IsZero())
}
