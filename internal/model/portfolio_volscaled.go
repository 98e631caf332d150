package model

import (
	"math"

	"blackbox/internal/feature"
	"blackbox/internal/types"
)

// volatilityScaledPortfolio 按波动率倒数分配风险预算：
// raw_i = signal_i · risk_target / vol_i，再把总敞口归一到 risk_target，
// 单票裁剪到 max_weight，最后剔除名义金额或价格过低的票。
type volatilityScaledPortfolio struct {
	MinVolatility float64 `mapstructure:"min_volatility"`
}

func newVolatilityScaledPortfolio(spec Spec) (Portfolio, error) {
	p := &volatilityScaledPortfolio{MinVolatility: 1e-4}
	if err := decodeParams(spec, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *volatilityScaledPortfolio) Name() string { return "volatility_scaled" }

func (p *volatilityScaledPortfolio) Construct(ctx types.Context, signals types.SignalSet, window feature.Window) types.PortfolioTarget {
	target := types.EmptyTarget(ctx.Capital)
	if ctx.Capital <= 0 {
		return target
	}
	today := window.Today()

	raw := make(map[string]float64)
	for _, sym := range signals.Symbols() {
		v := signals[sym]
		if types.IsMissing(v) || v == 0 {
			continue
		}
		vol := p.trailingVol(window, sym, ctx.VolLookback)
		if types.IsMissing(vol) {
			continue
		}
		if vol < p.MinVolatility {
			vol = p.MinVolatility
		}
		raw[sym] = v * ctx.RiskTarget / vol
	}

	gross := 0.0
	for _, w := range raw {
		gross += math.Abs(w)
	}
	// 全部波动率为零或信号之和为零时返回全零目标，绝不除零
	if gross == 0 {
		return target
	}

	scale := ctx.RiskTarget / gross
	for sym, w := range raw {
		w *= scale
		if ctx.MaxWeight > 0 {
			if w > ctx.MaxWeight {
				w = ctx.MaxWeight
			} else if w < -ctx.MaxWeight {
				w = -ctx.MaxWeight
			}
		}
		price, ok := today.Value(sym, feature.ColClose)
		if !ok || price < ctx.MinPrice {
			continue
		}
		if math.Abs(w)*ctx.Capital < ctx.MinNotional {
			continue
		}
		if w != 0 {
			target.Weights[sym] = w
		}
	}
	return target
}

// trailingVol 计算窗口内日收益率的样本标准差，历史不足时返回缺失。
func (p *volatilityScaledPortfolio) trailingVol(window feature.Window, symbol string, lookback int) float64 {
	returns := window.CloseReturns(symbol)
	if lookback > 0 && len(returns) > lookback {
		returns = returns[len(returns)-lookback:]
	}
	if lookback > 0 && len(returns) < lookback {
		return types.Missing()
	}
	if len(returns) < 2 {
		return types.Missing()
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))
	var sq float64
	for _, r := range returns {
		d := r - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(returns)-1))
}
