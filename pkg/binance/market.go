package binance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/songfangyl/Spot-future-spread-arbitrage/pkg/instruments"
	"github.com/songfangyl/Spot-future-spread-arbitrage/pkg/models"
)

var (
	_ PriceFeed  = (*Client)(nil)
	_ MarketData = (*Client)(nil)
)

// BestBidAsk returns the top of book for a symbol. The futures endpoint
// answers with a list (one element per queried symbol) where spot answers
// with a single object; both shapes are accepted.
func (c *Client) BestBidAsk(ctx context.Context, symbol string) (float64, float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	body, err := c.doRequest(ctx, "GET", "/ticker/bookTicker", params, false)
	if err != nil {
		return 0, 0, err
	}
	book, err := parseBookTicker(body, symbol)
	if err != nil {
		return 0, 0, err
	}
	return parseFloat(book.BidPrice), parseFloat(book.AskPrice), nil
}

func parseBookTicker(body []byte, symbol string) (bookTickerPayload, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []bookTickerPayload
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return bookTickerPayload{}, fmt.Errorf("unexpected book ticker payload for %s: %w", symbol, err)
		}
		if len(list) == 0 {
			return bookTickerPayload{}, fmt.Errorf("no book ticker data for %s", symbol)
		}
		for _, item := range list {
			if item.Symbol == symbol {
				return item, nil
			}
		}
		return list[0], nil
	}

	var book bookTickerPayload
	if err := json.Unmarshal(trimmed, &book); err != nil {
		return bookTickerPayload{}, fmt.Errorf("unexpected book ticker payload for %s: %w", symbol, err)
	}
	if book.BidPrice == "" && book.AskPrice == "" {
		return bookTickerPayload{}, fmt.Errorf("no book ticker data for %s", symbol)
	}
	return book, nil
}

// DailyCloses fetches 1d klines over [start, end) and maps each bar's close
// to the UTC midnight of its open time.
func (c *Client) DailyCloses(ctx context.Context, symbol string, start, end time.Time) (map[time.Time]float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", "1d")
	params.Set("startTime", strconv.FormatInt(instruments.DayMillis(start), 10))
	params.Set("endTime", strconv.FormatInt(instruments.DayMillis(end), 10))
	params.Set("limit", "1000")

	body, err := c.doRequest(ctx, "GET", "/klines", params, false)
	if err != nil {
		return nil, err
	}
	return parseDailyCloses(body, symbol)
}

func parseDailyCloses(body []byte, symbol string) (map[time.Time]float64, error) {
	var rows [][]any
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("unexpected klines payload for %s: %w", symbol, err)
	}
	closes := make(map[time.Time]float64, len(rows))
	for _, row := range rows {
		if len(row) < 5 {
			return nil, fmt.Errorf("short kline row for %s", symbol)
		}
		openMillis, ok := row[0].(float64)
		if !ok {
			return nil, fmt.Errorf("malformed kline open time for %s", symbol)
		}
		closeStr, ok := row[4].(string)
		if !ok {
			return nil, fmt.Errorf("malformed kline close for %s", symbol)
		}
		closePrice, err := strconv.ParseFloat(closeStr, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed kline close for %s: %w", symbol, err)
		}
		day := instruments.Day(time.UnixMilli(int64(openMillis)))
		closes[day] = closePrice
	}
	return closes, nil
}

// ExchangeInfo fetches and normalizes the venue's instrument metadata.
func (c *Client) ExchangeInfo(ctx context.Context) (models.ExchangeInfo, error) {
	body, err := c.doRequest(ctx, "GET", "/exchangeInfo", nil, false)
	if err != nil {
		return models.ExchangeInfo{}, err
	}
	var payload exchangeInfoPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return models.ExchangeInfo{}, fmt.Errorf("unexpected exchange info payload: %w", err)
	}
	return payload.toModel(), nil
}
