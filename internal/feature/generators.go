package feature

import (
	"fmt"
	"math"

	talib "github.com/markcheno/go-talib"
	"github.com/mitchellh/mapstructure"

	"blackbox/internal/market"
)

// Generator 将一个 symbol 的日线序列转换为与之对齐的特征列。
// 输出长度与输入一致，前 Warmup()-1 个位置为 NaN。
type Generator interface {
	Name() string
	Warmup() int
	Compute(bars []market.Bar) []float64
}

// Spec 描述配置里的一个特征生成器。
type Spec struct {
	Name   string         `toml:"name" json:"name"`
	Params map[string]any `toml:"params" json:"params"`
}

// NewGenerator 按名称实例化生成器，未知名称返回错误。
func NewGenerator(spec Spec) (Generator, error) {
	decode := func(out any) error {
		if spec.Params == nil {
			return nil
		}
		cfg := &mapstructure.DecoderConfig{Result: out, WeaklyTypedInput: true}
		dec, err := mapstructure.NewDecoder(cfg)
		if err != nil {
			return err
		}
		return dec.Decode(spec.Params)
	}
	switch spec.Name {
	case "close":
		return CloseGen{}, nil
	case "momentum":
		g := MomentumGen{Period: 5}
		if err := decode(&g); err != nil {
			return nil, err
		}
		return g, nil
	case "ema_crossover":
		g := EMACrossGen{Short: 10, Long: 50}
		if err := decode(&g); err != nil {
			return nil, err
		}
		return g, nil
	case "zscore":
		g := ZScoreGen{Window: 20}
		if err := decode(&g); err != nil {
			return nil, err
		}
		return g, nil
	case "bollinger":
		g := BollingerGen{Window: 20, Width: 2.0}
		if err := decode(&g); err != nil {
			return nil, err
		}
		return g, nil
	case "rolling_vol":
		g := RollingVolGen{Window: 20}
		if err := decode(&g); err != nil {
			return nil, err
		}
		return g, nil
	case "rsi":
		g := RSIGen{Period: 14}
		if err := decode(&g); err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("未知特征生成器: %s", spec.Name)
	}
}

// NewPipeline 实例化一组生成器并确保 close 列始终存在。
func NewPipeline(specs []Spec) ([]Generator, error) {
	gens := make([]Generator, 0, len(specs)+1)
	hasClose := false
	for _, spec := range specs {
		g, err := NewGenerator(spec)
		if err != nil {
			return nil, err
		}
		if g.Name() == ColClose {
			hasClose = true
		}
		gens = append(gens, g)
	}
	if !hasClose {
		gens = append(gens, CloseGen{})
	}
	return gens, nil
}

// ColClose 是始终可用的原始收盘价列。
const ColClose = "close"

// CloseGen 直接输出收盘价，供组合构建等需要原始价格序列的环节使用。
type CloseGen struct{}

func (CloseGen) Name() string { return ColClose }
func (CloseGen) Warmup() int  { return 1 }
func (CloseGen) Compute(bars []market.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// MomentumGen 输出 period 日收益率（close/close[-period] - 1）。
type MomentumGen struct {
	Period int `mapstructure:"period"`
}

func (g MomentumGen) Name() string { return fmt.Sprintf("momentum_%d", g.Period) }
func (g MomentumGen) Warmup() int  { return g.Period + 1 }
func (g MomentumGen) Compute(bars []market.Bar) []float64 {
	closes := closeSeries(bars)
	if len(closes) <= g.Period {
		return allNaN(len(closes))
	}
	out := talib.Rocp(closes, g.Period)
	maskWarmup(out, g.Warmup())
	return out
}

// EMACrossGen 输出 (EMA_short - EMA_long) / EMA_long。
type EMACrossGen struct {
	Short int `mapstructure:"short"`
	Long  int `mapstructure:"long"`
}

func (g EMACrossGen) Name() string { return fmt.Sprintf("ema_%d_%d_diff", g.Short, g.Long) }
func (g EMACrossGen) Warmup() int  { return g.Long + 1 }
func (g EMACrossGen) Compute(bars []market.Bar) []float64 {
	closes := closeSeries(bars)
	if len(closes) < g.Long {
		return allNaN(len(closes))
	}
	short := talib.Ema(closes, g.Short)
	long := talib.Ema(closes, g.Long)
	out := make([]float64, len(closes))
	for i := range out {
		if long[i] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = (short[i] - long[i]) / long[i]
	}
	maskWarmup(out, g.Warmup())
	return out
}

// ZScoreGen 输出 (close - SMA_w) / StdDev_w。
type ZScoreGen struct {
	Window int `mapstructure:"window"`
}

func (g ZScoreGen) Name() string { return fmt.Sprintf("zscore_%d", g.Window) }
func (g ZScoreGen) Warmup() int  { return g.Window }
func (g ZScoreGen) Compute(bars []market.Bar) []float64 {
	closes := closeSeries(bars)
	if len(closes) < g.Window {
		return allNaN(len(closes))
	}
	mean := talib.Sma(closes, g.Window)
	std := talib.StdDev(closes, g.Window, 1.0)
	out := make([]float64, len(closes))
	for i := range out {
		if std[i] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = (closes[i] - mean[i]) / std[i]
	}
	maskWarmup(out, g.Warmup())
	return out
}

// BollingerGen 输出收盘价在布林带内的位置 (close - mid) / (width·std)。
type BollingerGen struct {
	Window int     `mapstructure:"window"`
	Width  float64 `mapstructure:"width"`
}

func (g BollingerGen) Name() string { return fmt.Sprintf("bollinger_%d", g.Window) }
func (g BollingerGen) Warmup() int  { return g.Window }
func (g BollingerGen) Compute(bars []market.Bar) []float64 {
	closes := closeSeries(bars)
	if len(closes) < g.Window {
		return allNaN(len(closes))
	}
	width := g.Width
	if width <= 0 {
		width = 2.0
	}
	mid := talib.Sma(closes, g.Window)
	std := talib.StdDev(closes, g.Window, 1.0)
	out := make([]float64, len(closes))
	for i := range out {
		if std[i] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = (closes[i] - mid[i]) / (width * std[i])
	}
	maskWarmup(out, g.Warmup())
	return out
}

// RollingVolGen 输出日收益率的滚动标准差。
type RollingVolGen struct {
	Window int `mapstructure:"window"`
}

func (g RollingVolGen) Name() string { return fmt.Sprintf("rolling_vol_%d", g.Window) }
func (g RollingVolGen) Warmup() int  { return g.Window + 1 }
func (g RollingVolGen) Compute(bars []market.Bar) []float64 {
	closes := closeSeries(bars)
	if len(closes) <= g.Window {
		return allNaN(len(closes))
	}
	returns := talib.Rocp(closes, 1)
	out := talib.StdDev(returns, g.Window, 1.0)
	maskWarmup(out, g.Warmup())
	return out
}

// RSIGen 输出 RSI。
type RSIGen struct {
	Period int `mapstructure:"period"`
}

func (g RSIGen) Name() string { return fmt.Sprintf("rsi_%d", g.Period) }
func (g RSIGen) Warmup() int  { return g.Period + 1 }
func (g RSIGen) Compute(bars []market.Bar) []float64 {
	closes := closeSeries(bars)
	if len(closes) <= g.Period {
		return allNaN(len(closes))
	}
	out := talib.Rsi(closes, g.Period)
	maskWarmup(out, g.Warmup())
	return out
}

func closeSeries(bars []market.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

func allNaN(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// maskWarmup 将前 warmup-1 个位置置为 NaN，避免 talib 的前导 0 被当成真值。
func maskWarmup(series []float64, warmup int) {
	for i := 0; i < warmup-1 && i < len(series); i++ {
		series[i] = math.NaN()
	}
}
