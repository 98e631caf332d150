package backtest

import (
	"math"
	"sort"
	"time"

	"blackbox/internal/types"
)

// quantityEpsilon 以下的仓位视为已平，避免浮点残渣永久挂账。
const quantityEpsilon = 1e-9

// Tracker 是组合状态的唯一持有者：现金、持仓、待结算队列。
// 只有日循环可以调用会改变状态的方法，其余组件通过
// types.PortfolioView 只读访问。
type Tracker struct {
	cash       float64
	positions  map[string]*types.Position
	pending    []types.SettlementEntry
	minHolding int
	lastPrices map[string]float64
}

func NewTracker(initialCash float64, minHoldingPeriod int) *Tracker {
	if initialCash < 0 {
		initialCash = 0
	}
	if minHoldingPeriod < 0 {
		minHoldingPeriod = 0
	}
	return &Tracker{
		cash:       initialCash,
		positions:  make(map[string]*types.Position),
		minHolding: minHoldingPeriod,
		lastPrices: make(map[string]float64),
	}
}

// MergeSettlements 把到期的卖出款并入可用现金。
// 必须在每天任何交易决策之前调用。
func (t *Tracker) MergeSettlements(date time.Time) float64 {
	if len(t.pending) == 0 {
		return 0
	}
	day := types.Day(date)
	merged := 0.0
	remain := t.pending[:0]
	for _, entry := range t.pending {
		if !entry.AvailableDate.After(day) {
			merged += entry.Amount
			continue
		}
		remain = append(remain, entry)
	}
	t.pending = remain
	t.cash += merged
	return merged
}

// UsableCash 返回当前可用于买入的已结算现金。
func (t *Tracker) UsableCash() float64 {
	return t.cash
}

// PendingCash 返回尚未到期的卖出款总额。
func (t *Tracker) PendingCash() float64 {
	total := 0.0
	for _, entry := range t.pending {
		total += entry.Amount
	}
	return total
}

// Holdings 返回每个 symbol 的带符号数量快照。
func (t *Tracker) Holdings() map[string]float64 {
	out := make(map[string]float64, len(t.positions))
	for sym, pos := range t.positions {
		out[sym] = pos.Quantity
	}
	return out
}

// CanClose 判断在 date 平仓 symbol 是否满足最短持有期。
func (t *Tracker) CanClose(symbol string, date time.Time) bool {
	pos, ok := t.positions[symbol]
	if !ok {
		return true
	}
	return types.DaysBetween(pos.EntryDate, date) >= t.minHolding
}

// Update 按顺序套用当日成交。买入立即扣减现金；卖出毛收入进入
// 结算队列，date+settlementDelay 到期，佣金先从可用现金扣，
// 不足部分从该笔结算款中冲抵，保证现金永不为负。
func (t *Tracker) Update(date time.Time, trades []types.Trade, settlementDelay int) {
	day := types.Day(date)
	for _, trade := range trades {
		if trade.Quantity == 0 {
			continue
		}
		if trade.Quantity > 0 {
			t.cash -= trade.Quantity*trade.FillPrice + trade.Cost
			if t.cash < 0 && t.cash > -1e-6 {
				t.cash = 0
			}
		} else {
			entry := types.SettlementEntry{
				Amount:        -trade.Quantity * trade.FillPrice,
				AvailableDate: types.AddDays(day, settlementDelay),
			}
			cost := trade.Cost
			if t.cash >= cost {
				t.cash -= cost
			} else {
				entry.Amount -= cost - t.cash
				t.cash = 0
				if entry.Amount < 0 {
					entry.Amount = 0
				}
			}
			if settlementDelay <= 0 {
				t.cash += entry.Amount
			} else {
				t.pending = append(t.pending, entry)
			}
		}
		t.applyFill(day, trade)
	}
}

func (t *Tracker) applyFill(day time.Time, trade types.Trade) {
	pos, ok := t.positions[trade.Symbol]
	if !ok {
		t.positions[trade.Symbol] = &types.Position{
			Symbol:    trade.Symbol,
			Quantity:  trade.Quantity,
			AvgCost:   trade.FillPrice,
			EntryDate: day,
		}
		return
	}
	oldQty := pos.Quantity
	newQty := oldQty + trade.Quantity
	switch {
	case math.Abs(newQty) <= quantityEpsilon:
		delete(t.positions, trade.Symbol)
	case (oldQty > 0) == (trade.Quantity > 0):
		// 加仓：成本加权平均，入场日不变。
		pos.AvgCost = (math.Abs(oldQty)*pos.AvgCost + math.Abs(trade.Quantity)*trade.FillPrice) / math.Abs(newQty)
		pos.Quantity = newQty
	case (oldQty > 0) == (newQty > 0):
		// 减仓：保留原成本与入场日。
		pos.Quantity = newQty
	default:
		// 穿仓反向：余下部分按本次成交价开新仓。
		pos.Quantity = newQty
		pos.AvgCost = trade.FillPrice
		pos.EntryDate = day
	}
}

// MarkPrices 记录最近一次收盘价，缺价日估值时作为回退。
func (t *Tracker) MarkPrices(closes map[string]float64) {
	for sym, price := range closes {
		if price > 0 {
			t.lastPrices[sym] = price
		}
	}
}

// Value 返回组合总值：可用现金 + 待结算款 + 持仓按 prices 计价。
// prices 缺失的 symbol 回退到最近标记价。
func (t *Tracker) Value(prices map[string]float64) float64 {
	total := t.cash + t.PendingCash()
	for sym, pos := range t.positions {
		price, ok := prices[sym]
		if !ok || price <= 0 {
			price = t.lastPrices[sym]
		}
		total += pos.Quantity * price
	}
	return total
}

// PositionsSnapshot 返回持仓的只读副本，按 symbol 建键。
func (t *Tracker) PositionsSnapshot() map[string]types.Position {
	out := make(map[string]types.Position, len(t.positions))
	for sym, pos := range t.positions {
		out[sym] = *pos
	}
	return out
}

// PositionSymbols 返回按字典序排列的持仓 symbol。
func (t *Tracker) PositionSymbols() []string {
	out := make([]string, 0, len(t.positions))
	for sym := range t.positions {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

var _ types.PortfolioView = (*Tracker)(nil)
