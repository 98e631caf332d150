package market

import (
	"context"
	"time"
)

// BarSource 统一不同数据源的日线拉取行为。
type BarSource interface {
	FetchDaily(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error)
	Name() string
}
