package reconcile

import (
	"testing"

	"klinechart/internal/model"
)

func TestDefaultReference(t *testing.T) {
	tests := []struct {
		code string
		kind model.InstrumentKind
		want Reference
	}{
		{"159919", model.KindETF, Reference{"深证综指", "399001"}},
		{"159915", model.KindETF, Reference{"深证综指", "399001"}},
		{"510300", model.KindETF, Reference{"上证综指", "000001"}},
		{"511010", model.KindETF, Reference{"上证综指", "000001"}},
		{"512880", model.KindETF, Reference{"上证综指", "000001"}},
		{"513100", model.KindETF, Reference{"沪深300", "000300"}},
		{"588000", model.KindETF, Reference{"沪深300", "000300"}},
		{"000300", model.KindIndex, Reference{"沪深300", "000300"}},
		{"000016", model.KindIndex, Reference{"上证综指", "000001"}},
		{"000001", model.KindIndex, Reference{"上证综指", "000001"}},
		{"399006", model.KindIndex, Reference{"深证综指", "399001"}},
		{"899050", model.KindIndex, Reference{"沪深300", "000300"}},
		{" 159919 ", model.KindETF, Reference{"深证综指", "399001"}},
	}
	for _, tt := range tests {
		got, ok := DefaultReference(tt.code, tt.kind)
		if !ok {
			t.Errorf("%s/%s: expected a default reference", tt.code, tt.kind)
			continue
		}
		if got != tt.want {
			t.Errorf("%s/%s: expected %+v, got %+v", tt.code, tt.kind, tt.want, got)
		}
	}
}

func TestDefaultReference_NoneForStocksAndFunds(t *testing.T) {
	for _, kind := range []model.InstrumentKind{model.KindStock, model.KindFund} {
		if ref, ok := DefaultReference("600519", kind); ok {
			t.Errorf("%s: expected no default, got %+v", kind, ref)
		}
	}
}
