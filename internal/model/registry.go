package model

import (
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"
)

// Spec 描述配置里选择的一个模型：名字加参数表。
type Spec struct {
	Name   string         `toml:"name" json:"name"`
	Params map[string]any `toml:"params" json:"params"`
}

// 注册表在启动期建好，替代源系统的运行时扫描发现。
var (
	alphaFactories = map[string]func(Spec) (Alpha, error){
		"momentum":       newMomentumAlpha,
		"mean_reversion": newMeanReversionAlpha,
	}
	riskFactories = map[string]func(Spec) (Risk, error){
		"position_limit": newPositionLimitRisk,
	}
	costFactories = map[string]func(Spec) (Cost, error){
		"quadratic_market_impact": newQuadraticImpactCost,
		"fixed":                   newFixedCost,
	}
	portfolioFactories = map[string]func(Spec) (Portfolio, error){
		"volatility_scaled": newVolatilityScaledPortfolio,
	}
)

// NewSet 按配置构建一组模型。
func NewSet(alpha, risk, cost, portfolio Spec) (Set, error) {
	a, err := NewAlpha(alpha)
	if err != nil {
		return Set{}, err
	}
	r, err := NewRisk(risk)
	if err != nil {
		return Set{}, err
	}
	c, err := NewCost(cost)
	if err != nil {
		return Set{}, err
	}
	p, err := NewPortfolio(portfolio)
	if err != nil {
		return Set{}, err
	}
	return Set{Alpha: a, Risk: r, Cost: c, Portfolio: p}, nil
}

func NewAlpha(spec Spec) (Alpha, error) {
	f, ok := alphaFactories[spec.Name]
	if !ok {
		return nil, fmt.Errorf("未知 alpha 模型 %q，可用: %v", spec.Name, keys(alphaFactories))
	}
	return f(spec)
}

func NewRisk(spec Spec) (Risk, error) {
	f, ok := riskFactories[spec.Name]
	if !ok {
		return nil, fmt.Errorf("未知 risk 模型 %q，可用: %v", spec.Name, keys(riskFactories))
	}
	return f(spec)
}

func NewCost(spec Spec) (Cost, error) {
	f, ok := costFactories[spec.Name]
	if !ok {
		return nil, fmt.Errorf("未知 cost 模型 %q，可用: %v", spec.Name, keys(costFactories))
	}
	return f(spec)
}

func NewPortfolio(spec Spec) (Portfolio, error) {
	f, ok := portfolioFactories[spec.Name]
	if !ok {
		return nil, fmt.Errorf("未知 portfolio 模型 %q，可用: %v", spec.Name, keys(portfolioFactories))
	}
	return f(spec)
}

func decodeParams(spec Spec, out any) error {
	if spec.Params == nil {
		return nil
	}
	cfg := &mapstructure.DecoderConfig{Result: out, WeaklyTypedInput: true}
	dec, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return err
	}
	if err := dec.Decode(spec.Params); err != nil {
		return fmt.Errorf("模型 %s 参数解析失败: %w", spec.Name, err)
	}
	return nil
}

func keys[V any](m map[string]func(Spec) (V, error)) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
