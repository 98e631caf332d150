package market

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"blackbox/internal/types"

	"github.com/adshao/go-binance/v2"
)

const klineBatchLimit = 1000

// BinanceSource 基于 go-binance SDK 拉取现货日线。
type BinanceSource struct {
	client *binance.Client
}

func NewBinanceSource(baseURL string) *BinanceSource {
	client := binance.NewClient("", "")
	if strings.TrimSpace(baseURL) != "" {
		client.BaseURL = strings.TrimSpace(baseURL)
	}
	client.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	return &BinanceSource{client: client}
}

func (b *BinanceSource) Name() string { return "binance" }

// FetchDaily 分页拉取 [start, end] 的 1d K 线并转换为 Bar。
func (b *BinanceSource) FetchDaily(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol 不能为空")
	}
	startMs := types.Day(start).UnixMilli()
	endMs := types.AddDays(end, 1).UnixMilli() - 1
	if endMs <= startMs {
		return nil, fmt.Errorf("start/end 非法")
	}

	var out []Bar
	cursor := startMs
	for cursor < endMs {
		kls, err := b.client.NewKlinesService().
			Symbol(symbol).
			Interval("1d").
			StartTime(cursor).
			EndTime(endMs).
			Limit(klineBatchLimit).
			Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("binance 拉取 %s 失败: %w", symbol, err)
		}
		if len(kls) == 0 {
			break
		}
		for _, kl := range kls {
			if kl == nil {
				continue
			}
			out = append(out, Bar{
				Date:   types.Day(time.UnixMilli(kl.OpenTime)),
				Open:   parseFloat(kl.Open),
				High:   parseFloat(kl.High),
				Low:    parseFloat(kl.Low),
				Close:  parseFloat(kl.Close),
				Volume: parseFloat(kl.Volume),
			})
		}
		last := kls[len(kls)-1]
		next := last.CloseTime + 1
		if next <= cursor {
			break
		}
		cursor = next
		if len(kls) < klineBatchLimit {
			break
		}
	}
	return out, nil
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
