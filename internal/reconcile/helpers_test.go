package reconcile

import (
	"math"
	"testing"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"

	"klinechart/internal/model"
)

func pp(date string, open, close, low, high float64, volume int64) model.PricePoint {
	return model.PricePoint{
		Date:   date,
		Open:   decimal.NewFromFloat(open),
		Close:  decimal.NewFromFloat(close),
		Low:    decimal.NewFromFloat(low),
		High:   decimal.NewFromFloat(high),
		Volume: volume,
		Amount: decimal.NewFromFloat(close * float64(volume)),
	}
}

func aux(source string, unit model.RateUnit, points ...model.AuxiliaryPoint) model.AuxiliarySeries {
	return model.AuxiliarySeries{Source: source, Unit: unit, Points: points}
}

func ap(date string, kv ...any) model.AuxiliaryPoint {
	fields := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[kv[i].(string)] = kv[i+1]
	}
	return model.AuxiliaryPoint{Date: date, Fields: fields}
}

func assertNear(t *testing.T, name string, got null.Float, want float64) {
	t.Helper()
	if !got.Valid {
		t.Fatalf("%s: expected %v, got null", name, want)
	}
	if math.Abs(got.Float64-want) > 1e-9 {
		t.Fatalf("%s: expected %v, got %v", name, want, got.Float64)
	}
}

func assertNull(t *testing.T, name string, got null.Float) {
	t.Helper()
	if got.Valid {
		t.Fatalf("%s: expected null, got %v", name, got.Float64)
	}
}

func assertNoNaN(t *testing.T, name string, values []null.Float) {
	t.Helper()
	for i, v := range values {
		if v.Valid && (math.IsNaN(v.Float64) || math.IsInf(v.Float64, 0)) {
			t.Fatalf("%s[%d]: non-finite value %v", name, i, v.Float64)
		}
	}
}
