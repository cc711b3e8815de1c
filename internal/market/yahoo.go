package market

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"

	"github.com/sawpanic/rltrader/internal/domain"
)

// YahooSource reads daily bars from the Yahoo Finance chart endpoint.
type YahooSource struct {
	now func() time.Time
}

func NewYahooSource() *YahooSource {
	return &YahooSource{now: time.Now}
}

func (y *YahooSource) Bars(ctx context.Context, symbol, period string) ([]Bar, error) {
	start, end, err := PeriodRange(period, y.now())
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	iter := chart.Get(&chart.Params{
		Symbol:   strings.ToUpper(symbol),
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	})

	var bars []Bar
	for iter.Next() {
		b := iter.Bar()
		bar := Bar{
			Time:   time.Unix(int64(b.Timestamp), 0).UTC(),
			Open:   b.Open.InexactFloat64(),
			High:   b.High.InexactFloat64(),
			Low:    b.Low.InexactFloat64(),
			Close:  b.Close.InexactFloat64(),
			Volume: float64(b.Volume),
		}
		if validBar(bar) {
			bars = append(bars, bar)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("yahoo bars for %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: yahoo returned no bars for %s", domain.ErrInsufficientData, symbol)
	}
	return bars, nil
}
