package backtest

import (
	"fmt"
	"math"
	"sort"

	"blackbox/internal/types"
)

// Executor 把目标权重与当前持仓之差转换为当日开盘成交。
// 信号来自昨日收盘，成交假设发生在今日开盘。
type Executor struct {
	Slippage       float64
	CommissionRate float64
	MinCommission  float64
	Fractional     bool
	AllowShorts    bool
	MinNotional    float64
}

// Execute 返回按 symbol 字典序排列的成交列表，零量委托直接省略。
// 买入若超出可用现金则裁剪到可负担数量，绝不允许现金为负。
func (e *Executor) Execute(ctx types.Context, target types.PortfolioTarget, view types.PortfolioView, opens map[string]float64) types.TradeResult {
	result := types.TradeResult{Date: ctx.Date}
	holdings := view.Holdings()
	cash := view.UsableCash()

	for _, sym := range unionSymbols(target.Weights, holdings) {
		current := holdings[sym]
		weight := target.Weights[sym]
		open, ok := opens[sym]
		if !ok || open <= 0 {
			if weight != 0 || current != 0 {
				result.Rejected = append(result.Rejected, sym+": 缺少开盘价")
			}
			continue
		}

		targetQty := weight * target.Capital / open
		if !e.AllowShorts && targetQty < 0 {
			targetQty = 0
		}
		delta := targetQty - current
		if !e.Fractional {
			delta = math.Trunc(delta)
		}
		if delta == 0 {
			continue
		}

		// 减仓或平仓受最短持有期约束，违反时整笔归零。
		if current != 0 && (delta > 0) != (current > 0) {
			if !view.CanClose(sym, ctx.Date) {
				result.Rejected = append(result.Rejected, sym+": 未满最短持有期")
				continue
			}
		}

		fill := open * (1 + e.Slippage)
		if delta < 0 {
			fill = open * (1 - e.Slippage)
		}
		notional := math.Abs(delta) * fill
		// 最小名义金额只挡开仓和加仓；减仓平仓必须放行，
		// 否则市值跌破门槛的持仓会永远清不掉。
		increasing := current == 0 || (delta > 0) == (current > 0) || math.Abs(delta) > math.Abs(current)
		if increasing && notional < e.MinNotional {
			result.Rejected = append(result.Rejected, sym+": 低于最小名义金额")
			continue
		}
		commission := e.commissionFor(notional)

		if delta > 0 {
			required := delta*fill + commission
			if required > cash {
				clipped := e.affordableQuantity(cash, fill)
				if !e.Fractional {
					clipped = math.Trunc(clipped)
				}
				if clipped <= 0 {
					result.Rejected = append(result.Rejected, sym+": 现金不足")
					continue
				}
				result.Rejected = append(result.Rejected,
					fmt.Sprintf("%s: 现金不足，买入量 %.6f -> %.6f", sym, delta, clipped))
				delta = clipped
				notional = delta * fill
				if increasing && notional < e.MinNotional {
					continue
				}
				commission = e.commissionFor(notional)
			}
			cash -= delta*fill + commission
			if cash < 0 {
				cash = 0
			}
		} else {
			// 卖出款走结算队列，本日不回补现金；佣金先占用现金。
			if cash >= commission {
				cash -= commission
			} else {
				cash = 0
			}
		}

		result.Trades = append(result.Trades, types.Trade{
			Symbol:    sym,
			Quantity:  delta,
			FillPrice: fill,
			Cost:      commission,
		})
	}
	return result
}

func (e *Executor) commissionFor(notional float64) float64 {
	commission := e.CommissionRate * notional
	if commission < e.MinCommission {
		commission = e.MinCommission
	}
	return commission
}

// affordableQuantity 解 q*fill + commission(q) = cash。
func (e *Executor) affordableQuantity(cash, fill float64) float64 {
	if cash <= 0 || fill <= 0 {
		return 0
	}
	q := cash / (fill * (1 + e.CommissionRate))
	if e.CommissionRate*q*fill < e.MinCommission {
		q = (cash - e.MinCommission) / fill
	}
	if q < 0 {
		return 0
	}
	return q
}

func unionSymbols(weights map[string]float64, holdings map[string]float64) []string {
	seen := make(map[string]struct{}, len(weights)+len(holdings))
	out := make([]string, 0, len(weights)+len(holdings))
	for sym := range weights {
		if _, ok := seen[sym]; !ok {
			seen[sym] = struct{}{}
			out = append(out, sym)
		}
	}
	for sym := range holdings {
		if _, ok := seen[sym]; !ok {
			seen[sym] = struct{}{}
			out = append(out, sym)
		}
	}
	sort.Strings(out)
	return out
}
