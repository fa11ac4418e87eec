package api

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"klinechart/internal/model"
)

// 后端路由，响应均为 {"data": [...]}
const (
	backendKLinePath    = "/api/kline/"
	backendRealPath     = "/api/real-change/"
	backendFundFlowPath = "/api/fund-flow/"
)

// K 线行中作为 OHLCV 解析、不进入内联辅助源的字段
var backendPriceFields = map[string]bool{
	"date": true, "open": true, "close": true, "low": true, "high": true, "volume": true, "amount": true,
}

// Backend 自建行情后端。各源涨跌幅单位由配置给定，未配置按小数。
type Backend struct {
	client  *Client
	BaseURL string
	Units   map[string]model.RateUnit
}

func NewBackend(c *Client, baseURL string, units map[string]model.RateUnit) *Backend {
	if c == nil {
		panic("api: client must not be nil")
	}
	return &Backend{client: c, BaseURL: strings.TrimRight(baseURL, "/"), Units: units}
}

func (b *Backend) Name() string { return "backend" }

func (b *Backend) Sources() []string {
	return []string{SourceReal, SourceFundFlow}
}

func (b *Backend) unit(source string) model.RateUnit {
	if u, ok := b.Units[source]; ok && u.Valid() {
		return u
	}
	return model.UnitFraction
}

func (b *Backend) endpoint(path string, req Request) string {
	q := url.Values{}
	q.Set("kind", string(req.Kind))
	q.Set("limit", fmt.Sprint(req.Limit))
	return b.BaseURL + path + url.PathEscape(req.Code) + "?" + q.Encode()
}

// Primary 解析 K 线；行内 change_rate / reference_change_rate 等其余字段作为 kline 辅助源。
func (b *Backend) Primary(ctx context.Context, req Request) (*model.PrimarySeries, []model.AuxiliarySeries, error) {
	req = req.normalized()
	if req.Code == "" {
		return nil, nil, fmt.Errorf("api: empty code")
	}
	body, err := b.client.get(ctx, b.endpoint(backendKLinePath, req))
	if err != nil {
		return nil, nil, fmt.Errorf("backend kline %s: %w", req.Code, err)
	}
	items, err := dataArray(body)
	if err != nil {
		return nil, nil, fmt.Errorf("backend kline %s: %w", req.Code, err)
	}
	primary := &model.PrimarySeries{Code: req.Code, Kind: req.Kind, Points: make([]model.PricePoint, 0, len(items))}
	inline := model.AuxiliarySeries{Source: SourceKline, Unit: b.unit(SourceKline)}
	for _, it := range items {
		date := strings.TrimSpace(it.Get("date").String())
		var pp priceParser
		primary.Points = append(primary.Points, pp.point(date,
			it.Get("open").String(), it.Get("close").String(),
			it.Get("low").String(), it.Get("high").String(),
			it.Get("volume").String(), it.Get("amount").String()))
		if fields := rowFields(it, backendPriceFields); len(fields) > 0 {
			inline.Points = append(inline.Points, model.AuxiliaryPoint{Date: date, Fields: fields})
		}
	}
	return primary, []model.AuxiliarySeries{inline}, nil
}

func (b *Backend) Auxiliary(ctx context.Context, source string, req Request) (model.AuxiliarySeries, error) {
	req = req.normalized()
	var path string
	switch source {
	case SourceReal:
		path = backendRealPath
	case SourceFundFlow:
		path = backendFundFlowPath
	default:
		return model.AuxiliarySeries{}, fmt.Errorf("backend: unknown source %q", source)
	}
	body, err := b.client.get(ctx, b.endpoint(path, req))
	if err != nil {
		return model.AuxiliarySeries{}, fmt.Errorf("backend %s %s: %w", source, req.Code, err)
	}
	items, err := dataArray(body)
	if err != nil {
		return model.AuxiliarySeries{}, fmt.Errorf("backend %s %s: %w", source, req.Code, err)
	}
	out := model.AuxiliarySeries{Source: source, Unit: b.unit(source), Points: make([]model.AuxiliaryPoint, 0, len(items))}
	for _, it := range items {
		out.Points = append(out.Points, model.AuxiliaryPoint{
			Date:   strings.TrimSpace(it.Get("date").String()),
			Fields: rowFields(it, nil),
		})
	}
	return out, nil
}

func dataArray(body []byte) ([]gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid json")
	}
	data := gjson.GetBytes(body, "data")
	if !data.Exists() || !data.IsArray() {
		return nil, fmt.Errorf("%w: data missing", ErrNoData)
	}
	return data.Array(), nil
}

// rowFields 把一行对象的字段原样收下（数字为 float64，字符串保持字符串），date 与 skip 中的键除外。
func rowFields(it gjson.Result, skip map[string]bool) map[string]any {
	fields := make(map[string]any)
	it.ForEach(func(k, v gjson.Result) bool {
		key := k.String()
		if key == "date" || skip[key] {
			return true
		}
		fields[key] = v.Value()
		return true
	})
	return fields
}
