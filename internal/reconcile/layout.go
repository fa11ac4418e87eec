package reconcile

import (
	"math"

	"klinechart/internal/model"
)

// 纵向边距（百分比）：顶部留标题，底部留缩放条
const (
	layoutTopMargin    = 6.0
	layoutBottomMargin = 10.0
)

// density 随选中指标数变化的排布参数：间距与价格图相对权重。
type density struct {
	gap         float64
	priceWeight float64
}

// 断点：1~2 宽松，3~4 适中，5 紧凑
var (
	densitySpacious = density{gap: 4, priceWeight: 3}
	densityMedium   = density{gap: 3, priceWeight: 2.5}
	densityCompact  = density{gap: 2, priceWeight: 2}
)

func densityFor(selected int) density {
	switch {
	case selected >= 5:
		return densityCompact
	case selected >= 3:
		return densityMedium
	default:
		return densitySpacious
	}
}

// Layout 计算 panelCount 个纵向子图的 Top/Height；第 0 个为价格图，其余等高。
// selected 为独立选中的指标数，决定排布密度。所有子图不重叠且 Top+Height ≤ 100。
func Layout(panelCount, selected int) []model.Panel {
	if panelCount <= 0 {
		return nil
	}
	d := densityFor(selected)
	weights := d.priceWeight + float64(panelCount-1)
	avail := 100 - layoutTopMargin - layoutBottomMargin - d.gap*float64(panelCount-1)

	panels := make([]model.Panel, panelCount)
	top := layoutTopMargin
	for i := range panels {
		w := 1.0
		if i == 0 {
			w = d.priceWeight
		}
		h := floor2(avail * w / weights)
		panels[i] = model.Panel{Top: round2(top), Height: h}
		top += h + d.gap
	}
	return panels
}

func floor2(v float64) float64 { return math.Floor(v*100) / 100 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
