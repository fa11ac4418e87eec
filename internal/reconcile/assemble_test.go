package reconcile

import (
	"errors"
	"testing"

	"github.com/guregu/null/v6"

	"klinechart/internal/model"
)

func findSeries(spec model.ChartSpec, key string) (model.ChartSeriesSpec, bool) {
	for _, s := range spec.Series {
		if s.Key == key {
			return s, true
		}
	}
	return model.ChartSeriesSpec{}, false
}

func panelKeys(spec model.ChartSpec) []string {
	keys := make([]string, len(spec.Layout.Panels))
	for i, p := range spec.Layout.Panels {
		keys[i] = p.Key
	}
	return keys
}

func TestAssemble_AlwaysPriceAndVolume(t *testing.T) {
	rows := derive(t, "600519", model.KindStock, []model.PricePoint{
		pp("2024-01-02", 10, 10.5, 9.8, 10.6, 1000),
		pp("2024-01-03", 10.5, 10.3, 10.2, 10.7, 1200),
	})
	spec, err := Assemble("600519", rows, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	keys := panelKeys(spec)
	if len(keys) != 2 || keys[0] != KeyPrice || keys[1] != KeyVolume {
		t.Fatalf("expected [price volume], got %v", keys)
	}
	price, _ := findSeries(spec, KeyPrice)
	if price.Kind != model.SeriesCandlestick || price.AxisGroup != 0 || len(price.OHLC) != 2 {
		t.Errorf("bad price series: %+v", price)
	}
	if price.OHLC[0] != [4]float64{10, 10.5, 9.8, 10.6} {
		t.Errorf("expected open/close/low/high order, got %v", price.OHLC[0])
	}
	vol, _ := findSeries(spec, KeyVolume)
	if vol.AxisGroup != 1 || spec.Layout.AxisGroupToPanel[1] != 1 {
		t.Errorf("volume should be on panel 1: %+v", vol)
	}
	assertNear(t, "volume", vol.Values[1], 1200)
	if len(spec.Dates) != 2 || spec.Dates[0] != "2024-01-02" {
		t.Errorf("unexpected dates %v", spec.Dates)
	}
}

func TestAssemble_UpDownTieGoesDown(t *testing.T) {
	rows := derive(t, "600519", model.KindStock, []model.PricePoint{
		pp("2024-01-02", 10, 10.5, 9.8, 10.6, 1000),    // 涨
		pp("2024-01-03", 10.5, 10.3, 10.2, 10.7, 1200), // 跌
		pp("2024-01-04", 10.3, 10.3, 10.1, 10.4, 800),  // 平
	})
	spec, err := Assemble("600519", rows, Options{UseAmount: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	vol, ok := findSeries(spec, KeyAmount)
	if !ok {
		t.Fatal("expected amount series")
	}
	want := []model.Direction{model.DirectionUp, model.DirectionDown, model.DirectionDown}
	for i, d := range want {
		if vol.Directions[i] != d {
			t.Errorf("row %d: expected %s, got %s", i, d, vol.Directions[i])
		}
	}
}

func TestAssemble_ConditionalChangePanels(t *testing.T) {
	primary := []model.PricePoint{
		pp("2024-01-02", 10, 10.5, 9.8, 10.6, 1000),
		pp("2024-01-03", 10.5, 10.3, 10.2, 10.7, 1200),
	}

	onlyReal := derive(t, "600519", model.KindStock, primary,
		aux("real", model.UnitFraction, ap("2024-01-02", model.FieldChangeRate, 0.05)))
	spec, _ := Assemble("600519", onlyReal, Options{})
	if keys := panelKeys(spec); len(keys) != 3 || keys[2] != KeyRealChange {
		t.Fatalf("expected real change panel only, got %v", keys)
	}
	realChg, _ := findSeries(spec, KeyRealChange)
	assertNear(t, "real", realChg.Values[0], 0.05)
	assertNull(t, "real gap", realChg.Values[1])
	if !realChg.Percent {
		t.Error("rate series should be flagged percent")
	}

	both := derive(t, "159919", model.KindETF, primary,
		aux("real", model.UnitFraction, ap("2024-01-03", model.FieldChangeRate, 0.05, model.FieldReferenceRate, 0.02)))
	spec, _ = Assemble("159919", both, Options{})
	keys := panelKeys(spec)
	if len(keys) != 4 || keys[3] != KeyComparative {
		t.Fatalf("expected comparative panel, got %v", keys)
	}
	if title := spec.Layout.Panels[3].Title; title != "比较涨跌幅(相对深证综指)" {
		t.Errorf("unexpected title %q", title)
	}
	cmp, _ := findSeries(spec, KeyComparative)
	assertNull(t, "cmp gap", cmp.Values[0])
	assertNear(t, "cmp", cmp.Values[1], 0.03)
}

func TestAssemble_IndicatorPanelsAndLimit(t *testing.T) {
	primary := []model.PricePoint{pp("2024-01-02", 10, 10.5, 9.8, 10.6, 1000)}
	rows := derive(t, "600519", model.KindStock, primary,
		aux("fundflow", model.UnitFraction, ap("2024-01-02", "main", 1e6, "small", -2e5)))

	spec, err := Assemble("600519", rows, Options{Indicators: []string{"main", "small", "large"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	keys := panelKeys(spec)
	if len(keys) != 5 || keys[2] != "main" || keys[3] != "small" || keys[4] != "large" {
		t.Fatalf("unexpected panels %v", keys)
	}
	if spec.Layout.Panels[2].Title != "主力净流入" {
		t.Errorf("unexpected title %q", spec.Layout.Panels[2].Title)
	}
	large, _ := findSeries(spec, "large")
	assertNull(t, "large", large.Values[0])
	for g, p := range spec.Layout.AxisGroupToPanel {
		if g != p {
			t.Errorf("axis group %d mapped to panel %d", g, p)
		}
	}

	_, err = Assemble("600519", rows, Options{Indicators: []string{"a", "b", "c", "d", "e", "f"}})
	if !errors.Is(err, ErrTooManyIndicators) {
		t.Fatalf("expected ErrTooManyIndicators, got %v", err)
	}
}

func TestAssemble_OverlayRescaledIntoPriceRange(t *testing.T) {
	primary := []model.PricePoint{
		pp("2024-01-02", 10, 10.5, 9.8, 10.6, 1000),
		pp("2024-01-03", 10.5, 10.3, 10.2, 10.7, 1200),
		pp("2024-01-04", 10.3, 10.4, 10.0, 11.8, 900),
	}
	rows := derive(t, "600519", model.KindStock, primary, aux("fundflow", model.UnitFraction,
		ap("2024-01-02", "main", -100.0),
		ap("2024-01-04", "main", 300.0),
	))
	spec, err := Assemble("600519", rows, Options{Overlays: []string{"main"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s, ok := findSeries(spec, "overlay_main")
	if !ok || s.AxisGroup != 0 {
		t.Fatalf("expected overlay on price panel, got %+v", s)
	}
	assertNear(t, "min", s.Values[0], 9.8)
	assertNull(t, "gap", s.Values[1])
	assertNear(t, "max", s.Values[2], 11.8)
}

func TestAssemble_MovingAverages(t *testing.T) {
	primary := []model.PricePoint{
		pp("2024-01-02", 10, 10, 9, 11, 1),
		pp("2024-01-03", 10, 11, 9, 12, 1),
		pp("2024-01-04", 10, 12, 9, 13, 1),
		pp("2024-01-05", 10, 13, 9, 14, 1),
	}
	rows := derive(t, "600519", model.KindStock, primary)
	spec, err := Assemble("600519", rows, Options{MovingAverages: []int{3, 10}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ma3, _ := findSeries(spec, "ma3")
	assertNull(t, "ma3[0]", ma3.Values[0])
	assertNull(t, "ma3[1]", ma3.Values[1])
	assertNear(t, "ma3[2]", ma3.Values[2], 11)
	assertNear(t, "ma3[3]", ma3.Values[3], 12)
	ma10, _ := findSeries(spec, "ma10")
	for _, v := range ma10.Values {
		assertNull(t, "ma10", v)
	}

	if _, err := Assemble("600519", rows, Options{MovingAverages: []int{0}}); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
}

func TestAssemble_EveryValueAlignedAndFinite(t *testing.T) {
	primary := []model.PricePoint{
		pp("2024-01-02", 10, 10.5, 9.8, 10.6, 1000),
		pp("2024-01-03", 10.5, 10.3, 10.2, 10.7, 1200),
	}
	rows := derive(t, "510300", model.KindETF, primary, aux("real", model.UnitPercent,
		ap("2024-01-02", model.FieldChangeRate, "NaN", model.FieldReferenceRate, 1.0, "main", "x"),
		ap("2024-01-03", model.FieldChangeRate, 2.0, model.FieldReferenceRate, "Inf", "main", 5.0),
	))
	spec, err := Assemble("510300", rows, Options{Indicators: []string{"main"}, Overlays: []string{"main"}, MovingAverages: []int{2}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, s := range spec.Series {
		if s.Kind == model.SeriesCandlestick {
			continue
		}
		if len(s.Values) != len(rows) {
			t.Errorf("%s: expected %d values, got %d", s.Key, len(rows), len(s.Values))
		}
		assertNoNaN(t, s.Key, s.Values)
	}
	if _, ok := findSeries(spec, KeyComparative); ok {
		t.Error("comparative panel should be absent when no row has both rates")
	}
}

func TestRescale(t *testing.T) {
	got := Rescale([]null.Float{null.FloatFrom(10), null.FloatFrom(20), {}, null.FloatFrom(30)}, 5, 7)
	assertNear(t, "0", got[0], 5)
	assertNear(t, "1", got[1], 6)
	assertNull(t, "2", got[2])
	assertNear(t, "3", got[3], 7)

	// 区间为 0 时比例取 1
	flat := Rescale([]null.Float{null.FloatFrom(4), null.FloatFrom(4)}, 5, 7)
	assertNear(t, "flat", flat[0], 5)
	assertNear(t, "flat", flat[1], 5)

	empty := Rescale([]null.Float{{}, {}}, 5, 7)
	assertNull(t, "empty", empty[0])
}
