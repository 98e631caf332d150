package model

import (
	"fmt"
	"math"

	"blackbox/internal/feature"
	"blackbox/internal/types"
)

// meanReversionAlpha 反向押注 z-score 与布林带位置的极端值。
type meanReversionAlpha struct {
	Window    int     `mapstructure:"window"`
	Threshold float64 `mapstructure:"threshold"`

	ZScoreWeight    float64 `mapstructure:"zscore_weight"`
	BollingerWeight float64 `mapstructure:"bollinger_weight"`
}

func newMeanReversionAlpha(spec Spec) (Alpha, error) {
	a := &meanReversionAlpha{
		Window:          20,
		Threshold:       0.01,
		ZScoreWeight:    0.6,
		BollingerWeight: 0.4,
	}
	if err := decodeParams(spec, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *meanReversionAlpha) Name() string { return "mean_reversion" }

func (a *meanReversionAlpha) Predict(_ types.Context, window feature.Window) (types.SignalSet, error) {
	today := window.Today()
	colZ := fmt.Sprintf("zscore_%d", a.Window)
	colB := fmt.Sprintf("bollinger_%d", a.Window)

	signals := types.NewSignalSet()
	for _, sym := range today.Symbols() {
		z, ok1 := today.Value(sym, colZ)
		b, ok2 := today.Value(sym, colB)
		if !ok1 || !ok2 {
			signals[sym] = types.Missing()
			continue
		}
		score := -a.ZScoreWeight*z - a.BollingerWeight*b
		if math.Abs(score) < a.Threshold {
			score = 0
		}
		signals[sym] = score
	}
	return signals, nil
}
