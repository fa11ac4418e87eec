package reconcile

import (
	"errors"
	"testing"

	"klinechart/internal/model"
)

func TestReconcile_MissingPrimary(t *testing.T) {
	_, err := Reconcile(nil, nil, Options{})
	if !errors.Is(err, ErrMissingPrimary) {
		t.Fatalf("expected ErrMissingPrimary, got %v", err)
	}
}

func TestReconcile_EndToEnd(t *testing.T) {
	primary := &model.PrimarySeries{
		Code: "159919",
		Kind: model.KindETF,
		Points: []model.PricePoint{
			pp("2024-01-03", 10.5, 10.3, 10.2, 10.7, 1200),
			pp("2024-01-02", 10, 10.5, 9.8, 10.6, 1000),
			pp("2024-01-04", 10.3, 10.3, 10.1, 10.2, 800), // close > high，丢弃
		},
	}
	kline := aux("kline", model.UnitPercent,
		ap("2024-01-02", model.FieldChangeRate, "5%"),
		ap("2024-01-03", model.FieldChangeRate, -1.9),
	)
	ref := aux("reference", model.UnitPercent,
		ap("2024-01-02", model.FieldReferenceChangeRate, 2.0, model.FieldReferenceName, "沪深300", model.FieldReferenceIndex, "000300"),
	)
	flow := aux("fundflow", model.UnitFraction,
		ap("2024-01-02", "main", 1.5e6),
		ap("2024-01-03", "main", -3e5),
	)

	res, err := Reconcile(primary, []model.AuxiliarySeries{kline, ref, flow}, Options{Title: "测试", Indicators: []string{"main"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Report.DroppedPrimary != 1 {
		t.Errorf("expected 1 dropped primary row, got %+v", res.Report)
	}
	if len(res.Rows) != 2 || res.Rows[0].Date != "2024-01-02" {
		t.Fatalf("unexpected rows: %+v", res.Rows)
	}
	assertNear(t, "comparative", res.Rows[0].ComparativeChange, 0.03)
	assertNull(t, "comparative gap", res.Rows[1].ComparativeChange)
	if res.Rows[0].ReferenceName.String != "沪深300" || res.Rows[1].ReferenceName.String != "深证综指" {
		t.Errorf("unexpected identities: %v / %v", res.Rows[0].ReferenceName, res.Rows[1].ReferenceName)
	}

	keys := panelKeys(res.Chart)
	want := []string{KeyPrice, KeyVolume, KeyRealChange, KeyComparative, "main"}
	if len(keys) != len(want) {
		t.Fatalf("expected panels %v, got %v", want, keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("panel %d: expected %s, got %s", i, want[i], keys[i])
		}
	}
	if res.Chart.Title != "测试" || res.Chart.Code != "159919" {
		t.Errorf("unexpected chart header: %q %q", res.Chart.Title, res.Chart.Code)
	}
}

func TestReconcile_WrapsAssembleErrors(t *testing.T) {
	primary := &model.PrimarySeries{Code: "600519", Kind: model.KindStock}
	_, err := Reconcile(primary, nil, Options{MovingAverages: []int{-5}})
	if !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
}

func TestReconcile_Deterministic(t *testing.T) {
	primary := &model.PrimarySeries{Code: "000016", Kind: model.KindIndex, Points: []model.PricePoint{
		pp("2024-01-02", 10, 10.5, 9.8, 10.6, 1000),
	}}
	a := aux("real", model.UnitFraction, ap("2024-01-02", model.FieldDailyChange, 0.01, model.FieldReferenceChange, 0.004))
	first, _ := Reconcile(primary, []model.AuxiliarySeries{a}, Options{})
	second, _ := Reconcile(primary, []model.AuxiliarySeries{a}, Options{})
	if first.Rows[0].ComparativeChange != second.Rows[0].ComparativeChange {
		t.Errorf("results differ: %v vs %v", first.Rows[0].ComparativeChange, second.Rows[0].ComparativeChange)
	}
}
