package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"

	"klinechart/internal/model"
	"klinechart/internal/reconcile"
)

func sampleResult(t *testing.T) *reconcile.Result {
	t.Helper()
	pt := func(date string, open, close, low, high float64) model.PricePoint {
		return model.PricePoint{
			Date: date, Open: decimal.NewFromFloat(open), Close: decimal.NewFromFloat(close),
			Low: decimal.NewFromFloat(low), High: decimal.NewFromFloat(high), Volume: 1000,
		}
	}
	primary := &model.PrimarySeries{Code: "159919", Kind: model.KindETF, Points: []model.PricePoint{
		pt("2024-01-02", 10, 10.5, 9.8, 10.6),
		pt("2024-01-03", 10.5, 10.3, 10.2, 10.7),
	}}
	aux := []model.AuxiliarySeries{{
		Source: "real", Unit: model.UnitPercent,
		Points: []model.AuxiliaryPoint{{Date: "2024-01-02", Fields: map[string]any{
			model.FieldChangeRate: 4.39, model.FieldReferenceRate: 1.21, "main": -1200000.0,
		}}},
	}}
	res, err := reconcile.Reconcile(primary, aux, reconcile.Options{
		Title: "测试图", Indicators: []string{"main"}, MovingAverages: []int{2},
	})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	return res
}

func TestHTML_RendersEveryPanel(t *testing.T) {
	res := sampleResult(t)
	var buf bytes.Buffer
	if err := HTML(&buf, res.Chart, DefaultStyle()); err != nil {
		t.Fatalf("HTML: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"candlestick", "MA2", "测试图", "比较涨跌幅", "主力净流入"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestHTML_NoPanels(t *testing.T) {
	if err := HTML(&bytes.Buffer{}, model.ChartSpec{Code: "x"}, DefaultStyle()); err == nil {
		t.Fatal("expected error for empty layout")
	}
}

func TestValue(t *testing.T) {
	if v := value(null.Float{}, true); v != echartsMissing {
		t.Errorf("null should render as %q, got %v", echartsMissing, v)
	}
	if v := value(null.FloatFrom(0.0318), true); v != 3.18 {
		t.Errorf("expected 3.18, got %v", v)
	}
	if v := value(null.FloatFrom(1500), false); v != 1500.0 {
		t.Errorf("expected raw value, got %v", v)
	}
}

func TestPanelPixels(t *testing.T) {
	if got := panelPixels(pixels("900px"), 50); got != "450px" {
		t.Errorf("expected 450px, got %s", got)
	}
	if got := panelPixels(pixels("bogus"), 5); got != "120px" {
		t.Errorf("expected minimum height, got %s", got)
	}
}

func TestTable(t *testing.T) {
	res := sampleResult(t)
	var buf bytes.Buffer
	Table(&buf, res.Rows, TableOptions{Indicators: []string{"main"}})
	out := buf.String()
	for _, want := range []string{"2024-01-02", "+4.39%", "+1.21%", "+3.18%", "深证综指(399001)", "-1200000", "主力净流入"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	lines := strings.Split(out, "\n")
	var second string
	for _, l := range lines {
		if strings.Contains(l, "2024-01-03") {
			second = l
		}
	}
	if strings.Contains(second, "%") {
		t.Errorf("missing rates should render as %q: %s", tableMissing, second)
	}
}
