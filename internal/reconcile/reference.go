package reconcile

import (
	"strings"

	"klinechart/internal/model"
)

// Reference 参考指数标识。
type Reference struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// 常用参考指数
var (
	RefShanghai  = Reference{Name: "上证综指", Code: "000001"}
	RefShenzhen  = Reference{Name: "深证综指", Code: "399001"}
	RefCSI300    = Reference{Name: "沪深300", Code: "000300"}
	etfShanghais = []string{"510", "511", "512"}
)

// DefaultReference 按证券类型与代码前缀选默认参考指数，仅用于展示标签。
// 股票与基金没有默认参考，返回 false。
func DefaultReference(code string, kind model.InstrumentKind) (Reference, bool) {
	code = strings.TrimSpace(code)
	switch kind {
	case model.KindETF:
		if strings.HasPrefix(code, "159") {
			return RefShenzhen, true
		}
		for _, p := range etfShanghais {
			if strings.HasPrefix(code, p) {
				return RefShanghai, true
			}
		}
		return RefCSI300, true
	case model.KindIndex:
		switch {
		case code == RefCSI300.Code:
			return RefCSI300, true
		case strings.HasPrefix(code, "000"):
			return RefShanghai, true
		case strings.HasPrefix(code, "399"):
			return RefShenzhen, true
		default:
			return RefCSI300, true
		}
	default:
		return Reference{}, false
	}
}
