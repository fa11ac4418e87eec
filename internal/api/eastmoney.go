package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"klinechart/internal/model"
	"klinechart/internal/reconcile"
	"klinechart/internal/trace"
)

// 东方财富接口地址
const (
	EastMoneyKLineURL    = "https://push2his.eastmoney.com/api/qt/stock/kline/get"
	EastMoneyFundFlowURL = "https://push2his.eastmoney.com/api/qt/stock/fflow/daykline/get"
	eastMoneyReferer     = "https://quote.eastmoney.com/"
)

// K 线字段：f51 日期 f52 开 f53 收 f54 高 f55 低 f56 成交量 f57 成交额 f58 振幅 f59 涨跌幅(%) f60 涨跌额 f61 换手率
const (
	klineFields2   = "f51,f52,f53,f54,f55,f56,f57,f58,f59,f60,f61"
	klineFieldsMin = 11
	maxKlineLimit  = 1000
)

// 资金流字段：f51 日期 f52 主力 f53 小单 f54 中单 f55 大单 f56 超大单（净流入，元）
const (
	fundFlowFields2   = "f51,f52,f53,f54,f55,f56"
	fundFlowFieldsMin = 6
)

var fundFlowKeys = [...]string{"main", "small", "medium", "large", "super"}

// EastMoney 东方财富日 K 与资金流数据源。涨跌幅字段为百分比口径。
type EastMoney struct {
	client      *Client
	KLineURL    string
	FundFlowURL string
}

func NewEastMoney(c *Client) *EastMoney {
	if c == nil {
		panic("api: client must not be nil")
	}
	if c.Referer == "" {
		c.Referer = eastMoneyReferer
	}
	return &EastMoney{client: c, KLineURL: EastMoneyKLineURL, FundFlowURL: EastMoneyFundFlowURL}
}

func (e *EastMoney) Name() string { return "eastmoney" }

func (e *EastMoney) Sources() []string {
	return []string{SourceReference, SourceFundFlow}
}

// Primary 拉取前复权日 K；同一响应里的涨跌幅、振幅、换手率作为 kline 辅助源返回。
func (e *EastMoney) Primary(ctx context.Context, req Request) (*model.PrimarySeries, []model.AuxiliarySeries, error) {
	req = req.normalized()
	if req.Code == "" {
		return nil, nil, fmt.Errorf("api: empty code")
	}
	body, err := e.klines(ctx, SecID(req.Code, req.Kind), req.Limit)
	if err != nil {
		return nil, nil, fmt.Errorf("eastmoney kline %s: %w", req.Code, err)
	}
	primary, inline, err := parseEastMoneyKlines(body, req)
	if err != nil {
		return nil, nil, err
	}
	return primary, []model.AuxiliarySeries{inline}, nil
}

func (e *EastMoney) Auxiliary(ctx context.Context, source string, req Request) (model.AuxiliarySeries, error) {
	req = req.normalized()
	switch source {
	case SourceReference:
		return e.reference(ctx, req)
	case SourceFundFlow:
		return e.fundFlow(ctx, req)
	default:
		return model.AuxiliarySeries{}, fmt.Errorf("eastmoney: unknown source %q", source)
	}
}

func (e *EastMoney) klines(ctx context.Context, secid string, limit int) ([]byte, error) {
	if limit > maxKlineLimit {
		limit = maxKlineLimit
	}
	url := fmt.Sprintf("%s?secid=%s&fields1=f1,f2,f3,f4,f5,f6&fields2=%s&klt=101&fqt=1&end=20500101&lmt=%d",
		e.KLineURL, secid, klineFields2, limit)
	return e.client.get(ctx, url)
}

// reference 参考指数日 K 的涨跌幅，连同指数名称与代码写入每行。
func (e *EastMoney) reference(ctx context.Context, req Request) (model.AuxiliarySeries, error) {
	ref := referenceFor(req)
	body, err := e.klines(ctx, SecID(ref.Code, model.KindIndex), req.Limit)
	if err != nil {
		return model.AuxiliarySeries{}, fmt.Errorf("eastmoney reference %s: %w", ref.Code, err)
	}
	lines, err := klineLines(body, "data.klines")
	if err != nil {
		return model.AuxiliarySeries{}, fmt.Errorf("eastmoney reference %s: %w", ref.Code, err)
	}
	out := model.AuxiliarySeries{Source: SourceReference, Unit: model.UnitPercent, Points: make([]model.AuxiliaryPoint, 0, len(lines))}
	for _, parts := range lines {
		if len(parts) < klineFieldsMin {
			continue
		}
		out.Points = append(out.Points, model.AuxiliaryPoint{
			Date: parts[0],
			Fields: map[string]any{
				model.FieldReferenceRate:  parts[8],
				model.FieldReferenceName:  ref.Name,
				model.FieldReferenceIndex: ref.Code,
			},
		})
	}
	trace.Log(ctx, "api: eastmoney reference %s(%s) points=%d", ref.Name, ref.Code, len(out.Points))
	return out, nil
}

func (e *EastMoney) fundFlow(ctx context.Context, req Request) (model.AuxiliarySeries, error) {
	url := fmt.Sprintf("%s?secid=%s&fields1=f1,f2,f3,f7&fields2=%s&klt=101&lmt=%d",
		e.FundFlowURL, SecID(req.Code, req.Kind), fundFlowFields2, req.Limit)
	body, err := e.client.get(ctx, url)
	if err != nil {
		return model.AuxiliarySeries{}, fmt.Errorf("eastmoney fundflow %s: %w", req.Code, err)
	}
	lines, err := klineLines(body, "data.klines")
	if err != nil {
		return model.AuxiliarySeries{}, fmt.Errorf("eastmoney fundflow %s: %w", req.Code, err)
	}
	out := model.AuxiliarySeries{Source: SourceFundFlow, Unit: model.UnitFraction, Points: make([]model.AuxiliaryPoint, 0, len(lines))}
	for _, parts := range lines {
		if len(parts) < fundFlowFieldsMin {
			continue
		}
		fields := make(map[string]any, len(fundFlowKeys))
		for i, k := range fundFlowKeys {
			fields[k] = parts[i+1]
		}
		out.Points = append(out.Points, model.AuxiliaryPoint{Date: parts[0], Fields: fields})
	}
	return out, nil
}

func parseEastMoneyKlines(body []byte, req Request) (*model.PrimarySeries, model.AuxiliarySeries, error) {
	inline := model.AuxiliarySeries{Source: SourceKline, Unit: model.UnitPercent}
	lines, err := klineLines(body, "data.klines")
	if err != nil {
		return nil, inline, fmt.Errorf("eastmoney kline %s: %w", req.Code, err)
	}
	primary := &model.PrimarySeries{Code: req.Code, Kind: req.Kind, Points: make([]model.PricePoint, 0, len(lines))}
	inline.Points = make([]model.AuxiliaryPoint, 0, len(lines))
	for _, parts := range lines {
		if len(parts) < klineFieldsMin {
			// 字段不全的行按空日期保留，交给对齐阶段剔除并计数
			primary.Points = append(primary.Points, model.PricePoint{})
			continue
		}
		var pp priceParser
		primary.Points = append(primary.Points, pp.point(parts[0], parts[1], parts[2], parts[4], parts[3], parts[5], parts[6]))
		inline.Points = append(inline.Points, model.AuxiliaryPoint{
			Date: parts[0],
			Fields: map[string]any{
				model.FieldChangeRate: parts[8],
				"amplitude":           parts[7],
				"turnover":            parts[10],
			},
		})
	}
	return primary, inline, nil
}

// klineLines 取 path 处的逗号分隔字符串数组并逐行切分。
func klineLines(body []byte, path string) ([][]string, error) {
	arr := gjson.GetBytes(body, path)
	if !arr.Exists() || !arr.IsArray() {
		return nil, fmt.Errorf("%w: %s missing", ErrNoData, path)
	}
	items := arr.Array()
	out := make([][]string, 0, len(items))
	for _, v := range items {
		s := strings.TrimSpace(v.String())
		if s == "" {
			continue
		}
		parts := strings.Split(s, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		out = append(out, parts)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s empty", ErrNoData, path)
	}
	return out, nil
}

// parseDecimal 空串、"-" 与非数字返回 false。
func parseDecimal(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// priceParser 逐字段解析一根 K，任一字段失败即标记 Unparsed，交给对齐阶段剔除并计数。
type priceParser struct {
	failed bool
}

func (pp *priceParser) decimal(s string) decimal.Decimal {
	d, ok := parseDecimal(s)
	if !ok {
		pp.failed = true
	}
	return d
}

func (pp *priceParser) point(date, open, close, low, high, volume, amount string) model.PricePoint {
	p := model.PricePoint{
		Date:   date,
		Open:   pp.decimal(open),
		Close:  pp.decimal(close),
		Low:    pp.decimal(low),
		High:   pp.decimal(high),
		Volume: pp.decimal(volume).IntPart(),
		Amount: pp.decimal(amount),
	}
	p.Unparsed = pp.failed
	return p
}

// SecID 转为东方财富 secid：1 为上海，0 为深圳。
// 指数：399 开头为深圳，其余按上海；证券：5/6/9 开头为上海。
func SecID(code string, kind model.InstrumentKind) string {
	code = strings.TrimSpace(code)
	if kind == model.KindIndex {
		if strings.HasPrefix(code, "399") {
			return "0." + code
		}
		return "1." + code
	}
	if code != "" && (code[0] == '5' || code[0] == '6' || code[0] == '9') {
		return "1." + code
	}
	return "0." + code
}

// referenceFor 参考指数：有默认表项时用默认，否则按上市地选上证或深证。
func referenceFor(req Request) reconcile.Reference {
	if ref, ok := reconcile.DefaultReference(req.Code, req.Kind); ok {
		return ref
	}
	if strings.HasPrefix(SecID(req.Code, req.Kind), "1.") {
		return reconcile.RefShanghai
	}
	return reconcile.RefShenzhen
}
