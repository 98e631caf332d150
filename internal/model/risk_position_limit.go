package model

import (
	"blackbox/internal/types"
)

// positionLimitRisk 执行单票上限、总杠杆上限与做空开关。
// 约束参数来自 Context，随回测配置注入，不在模型内部另存一份。
type positionLimitRisk struct{}

func newPositionLimitRisk(spec Spec) (Risk, error) {
	r := &positionLimitRisk{}
	if err := decodeParams(spec, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *positionLimitRisk) Name() string { return "position_limit" }

// Apply 的处理顺序是固定的：先按做空开关置零，再裁剪单票，最后按比例压
// 总杠杆。等比例缩放保住符号和相对排序，不做截断丢弃。
func (r *positionLimitRisk) Apply(ctx types.Context, signals types.SignalSet) types.SignalSet {
	out := make(types.SignalSet, len(signals))
	for sym, v := range signals {
		if types.IsMissing(v) {
			out[sym] = v
			continue
		}
		if !ctx.AllowShorts && v < 0 {
			// 置零而非删除，日志里还能看到被拦下的方向
			out[sym] = 0
			continue
		}
		limit := ctx.MaxPositionSize
		if limit > 0 {
			if v > limit {
				v = limit
			} else if v < -limit {
				v = -limit
			}
		}
		out[sym] = v
	}

	if ctx.MaxLeverage > 0 {
		gross := out.Gross()
		if gross > ctx.MaxLeverage {
			out.Scale(ctx.MaxLeverage / gross)
		}
	}
	return out
}
