package model

import (
	"fmt"
	"math"

	"blackbox/internal/feature"
	"blackbox/internal/types"
)

// momentumAlpha 综合短/长动量与 EMA 差值打分。
// 任一所需特征缺失的 symbol 给缺失哨兵，由编排器当日剔除。
type momentumAlpha struct {
	ShortMomentum float64 `mapstructure:"short_momentum_weight"`
	LongMomentum  float64 `mapstructure:"long_momentum_weight"`
	EMADiff       float64 `mapstructure:"ema_diff_weight"`

	ShortPeriod int `mapstructure:"short_period"`
	LongPeriod  int `mapstructure:"long_period"`
	EMAShort    int `mapstructure:"ema_short"`
	EMALong     int `mapstructure:"ema_long"`

	MinSignalThreshold float64 `mapstructure:"min_signal_threshold"`
	NormalizeCap       float64 `mapstructure:"normalize_cap"`
}

func newMomentumAlpha(spec Spec) (Alpha, error) {
	a := &momentumAlpha{
		ShortMomentum:      0.4,
		LongMomentum:       0.4,
		EMADiff:            0.2,
		ShortPeriod:        5,
		LongPeriod:         20,
		EMAShort:           10,
		EMALong:            50,
		MinSignalThreshold: 0.01,
		NormalizeCap:       3.0,
	}
	if err := decodeParams(spec, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *momentumAlpha) Name() string { return "momentum" }

func (a *momentumAlpha) Predict(_ types.Context, window feature.Window) (types.SignalSet, error) {
	today := window.Today()
	colShort := fmt.Sprintf("momentum_%d", a.ShortPeriod)
	colLong := fmt.Sprintf("momentum_%d", a.LongPeriod)
	colEMA := fmt.Sprintf("ema_%d_%d_diff", a.EMAShort, a.EMALong)

	signals := types.NewSignalSet()
	for _, sym := range today.Symbols() {
		short, ok1 := today.Value(sym, colShort)
		long, ok2 := today.Value(sym, colLong)
		ema, ok3 := today.Value(sym, colEMA)
		if !ok1 || !ok2 || !ok3 {
			signals[sym] = types.Missing()
			continue
		}
		score := a.ShortMomentum*short + a.LongMomentum*long + a.EMADiff*ema
		if math.Abs(score) < a.MinSignalThreshold {
			score = 0
		}
		signals[sym] = score
	}
	return normalizeCrossSection(signals, a.NormalizeCap), nil
}
