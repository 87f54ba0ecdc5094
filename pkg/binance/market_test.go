package binance

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBookTicker_Object(t *testing.T) {
	body := []byte(`{"symbol":"BTCUSDT","bidPrice":"40000.10","bidQty":"2.5","askPrice":"40000.20","askQty":"1.1"}`)

	book, err := parseBookTicker(body, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", book.Symbol)
	assert.Equal(t, "40000.10", book.BidPrice)
	assert.Equal(t, "40000.20", book.AskPrice)
}

func TestParseBookTicker_List(t *testing.T) {
	body := []byte(`[
		{"symbol":"BTCUSD_210924","bidPrice":"40100.5","askPrice":"40101.0"},
		{"symbol":"BTCUSD_211231","bidPrice":"40900.5","askPrice":"40901.0"}
	]`)

	book, err := parseBookTicker(body, "BTCUSD_211231")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSD_211231", book.Symbol)
	assert.Equal(t, "40900.5", book.BidPrice)
}

func TestParseBookTicker_ListFallsBackToFirst(t *testing.T) {
	body := []byte(`[{"symbol":"BTCUSD_210924","bidPrice":"40100.5","askPrice":"40101.0"}]`)

	book, err := parseBookTicker(body, "BTCUSD_211231")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSD_210924", book.Symbol)
}

func TestParseBookTicker_Errors(t *testing.T) {
	_, err := parseBookTicker([]byte(`[]`), "BTCUSDT")
	assert.Error(t, err)

	_, err = parseBookTicker([]byte(`{}`), "BTCUSDT")
	assert.Error(t, err)

	_, err = parseBookTicker([]byte(`not json`), "BTCUSDT")
	assert.Error(t, err)
}

func TestParseDailyCloses(t *testing.T) {
	// The extra kline columns vary by venue; only open time and close are read.
	body := []byte(`[
		[1625097600000,"34000.0","34500.0","33800.0","34235.19","1200.5",1625183999999],
		[1625184000000,"34235.0","34900.0","34100.0","34688.98","980.2",1625270399999]
	]`)

	closes, err := parseDailyCloses(body, "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, closes, 2)
	assert.Equal(t, 34235.19, closes[time.Date(2021, 7, 1, 0, 0, 0, 0, time.UTC)])
	assert.Equal(t, 34688.98, closes[time.Date(2021, 7, 2, 0, 0, 0, 0, time.UTC)])
}

func TestParseDailyCloses_Empty(t *testing.T) {
	closes, err := parseDailyCloses([]byte(`[]`), "BTCUSDT")
	require.NoError(t, err)
	assert.Empty(t, closes)
}

func TestParseDailyCloses_Malformed(t *testing.T) {
	_, err := parseDailyCloses([]byte(`[[1625097600000,"34000.0"]]`), "BTCUSDT")
	assert.Error(t, err)

	_, err = parseDailyCloses([]byte(`[["bad","34000.0","1","2","34235.19"]]`), "BTCUSDT")
	assert.Error(t, err)

	_, err = parseDailyCloses([]byte(`{"not":"klines"}`), "BTCUSDT")
	assert.Error(t, err)
}

func TestExchangeInfoPayload_Futures(t *testing.T) {
	body := []byte(`{"symbols":[{
		"symbol":"BTCUSD_210924",
		"pair":"BTCUSD",
		"contractStatus":"TRADING",
		"contractType":"CURRENT_QUARTER",
		"contractSize":100,
		"deliveryDate":1632470400000,
		"filters":[
			{"filterType":"PRICE_FILTER","tickSize":"0.1"},
			{"filterType":"LOT_SIZE","stepSize":"1","minQty":"1"}
		]
	}]}`)

	var payload exchangeInfoPayload
	require.NoError(t, json.Unmarshal(body, &payload))
	info := payload.toModel()

	require.Len(t, info.Symbols, 1)
	s := info.Symbols[0]
	assert.Equal(t, "BTCUSD_210924", s.Symbol)
	assert.Equal(t, "BTCUSD", s.Pair)
	assert.Equal(t, "TRADING", s.Status, "contractStatus must back an empty status")
	assert.Equal(t, 100.0, s.ContractSize)
	assert.Equal(t, time.Date(2021, 9, 24, 8, 0, 0, 0, time.UTC), s.DeliveryDate)
	assert.Equal(t, 1.0, s.StepSize)
	assert.Equal(t, 1.0, s.MinQty)
	assert.Equal(t, 0.1, s.TickSize)
}

func TestExchangeInfoPayload_Spot(t *testing.T) {
	body := []byte(`{"symbols":[{
		"symbol":"BTCUSDT",
		"status":"TRADING",
		"filters":[
			{"filterType":"PRICE_FILTER","tickSize":"0.01"},
			{"filterType":"LOT_SIZE","stepSize":"0.00001","minQty":"0.00001"}
		]
	}]}`)

	var payload exchangeInfoPayload
	require.NoError(t, json.Unmarshal(body, &payload))
	info := payload.toModel()

	require.Len(t, info.Symbols, 1)
	s := info.Symbols[0]
	assert.Equal(t, "TRADING", s.Status)
	assert.True(t, s.DeliveryDate.IsZero())
	assert.Equal(t, 0.00001, s.StepSize)
	assert.Equal(t, 0.01, s.TickSize)
}
