package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"klinechart/internal/model"
	"klinechart/internal/reconcile"
)

func newBackendServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/kline/510300", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("kind") != "etf" || r.URL.Query().Get("limit") != "60" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"data":[
			{"date":"2024-01-02","open":"3.50","close":3.6,"low":3.45,"high":3.62,"volume":"120000","amount":432000,"change_rate":0.0286,"reference_change_rate":"0.012"},
			{"date":"2024-01-03","open":3.6,"close":3.55,"low":3.5,"high":3.61,"volume":90000,"amount":319500},
			{"open":1,"close":1,"low":1,"high":1}
		]}`))
	})
	mux.HandleFunc("/api/real-change/510300", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"date":"2024-01-02","daily_change":"2.86","reference_change":1.2,"reference_name":"沪深300","reference_index":"000300"}]}`))
	})
	mux.HandleFunc("/api/fund-flow/510300", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"msg":"empty"}`))
	})
	return httptest.NewServer(mux)
}

func TestBackend_Primary(t *testing.T) {
	srv := newBackendServer(t)
	defer srv.Close()
	b := NewBackend(testClient(), srv.URL+"/", map[string]model.RateUnit{SourceKline: model.UnitFraction})

	primary, aux, err := b.Primary(context.Background(), Request{Code: "510300", Kind: model.KindETF, Limit: 60})
	if err != nil {
		t.Fatalf("Primary: %v", err)
	}
	if len(primary.Points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(primary.Points))
	}
	p := primary.Points[0]
	if p.Open.String() != "3.5" || p.Close.String() != "3.6" || p.Volume != 120000 || p.Amount.String() != "432000" {
		t.Errorf("unexpected point %+v", p)
	}
	if len(aux) != 1 || len(aux[0].Points) != 1 {
		t.Fatalf("expected one inline point, got %+v", aux)
	}
	f := aux[0].Points[0].Fields
	if f[model.FieldChangeRate] != 0.0286 || f[model.FieldReferenceChangeRate] != "0.012" {
		t.Errorf("unexpected inline fields %v", f)
	}
	if _, ok := f["open"]; ok {
		t.Error("price fields must not leak into the inline source")
	}
}

func TestBackend_AuxiliaryUnits(t *testing.T) {
	srv := newBackendServer(t)
	defer srv.Close()
	b := NewBackend(testClient(), srv.URL, map[string]model.RateUnit{SourceReal: model.UnitPercent})

	s, err := b.Auxiliary(context.Background(), SourceReal, Request{Code: "510300", Kind: model.KindETF})
	if err != nil {
		t.Fatalf("Auxiliary: %v", err)
	}
	if s.Source != SourceReal || s.Unit != model.UnitPercent || len(s.Points) != 1 {
		t.Fatalf("unexpected series %+v", s)
	}
	if s.Points[0].Date != "2024-01-02" || s.Points[0].Fields[model.FieldReferenceName] != "沪深300" {
		t.Errorf("unexpected point %+v", s.Points[0])
	}
	if _, ok := s.Points[0].Fields["date"]; ok {
		t.Error("date should not be kept as a field")
	}
}

func TestBackend_MissingDataArray(t *testing.T) {
	srv := newBackendServer(t)
	defer srv.Close()
	b := NewBackend(testClient(), srv.URL, nil)

	_, err := b.Auxiliary(context.Background(), SourceFundFlow, Request{Code: "510300"})
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestBackend_DefaultUnitIsFraction(t *testing.T) {
	b := NewBackend(testClient(), "http://127.0.0.1", map[string]model.RateUnit{SourceReal: "bogus"})
	if u := b.unit(SourceReal); u != model.UnitFraction {
		t.Errorf("expected fraction, got %s", u)
	}
}

func TestBackend_UnparseableVolumeDropped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[
			{"date":"2024-01-02","open":10,"close":10.5,"low":9.8,"high":10.6,"volume":"n/a"},
			{"date":"2024-01-03","open":10.5,"close":10.3,"low":10.2,"high":10.7,"volume":1200,"amount":12400}
		]}`))
	}))
	defer srv.Close()
	b := NewBackend(testClient(), srv.URL, nil)

	primary, aux, err := b.Primary(context.Background(), Request{Code: "600519"})
	if err != nil {
		t.Fatalf("Primary: %v", err)
	}
	if !primary.Points[0].Unparsed || primary.Points[1].Unparsed {
		t.Fatalf("expected only the first point flagged, got %+v", primary.Points)
	}

	res, err := reconcile.Reconcile(primary, aux, reconcile.Options{UseAmount: true})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(res.Rows) != 1 || res.Rows[0].Date != "2024-01-03" {
		t.Fatalf("expected the unparseable row dropped, got %d rows", len(res.Rows))
	}
	if res.Report.DroppedPrimary != 1 {
		t.Errorf("expected DroppedPrimary=1, got %+v", res.Report)
	}
	for _, s := range res.Chart.Series {
		if s.Key == reconcile.KeyAmount && (len(s.Values) != 1 || s.Values[0].Float64 != 12400) {
			t.Errorf("unexpected amount series %v", s.Values)
		}
	}
}
