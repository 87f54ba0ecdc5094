package models

import (
	"time"
)

type MarketType string

const (
	MarketTypeSpot   MarketType = "spot"
	MarketTypeFuture MarketType = "future"
)

type Ticker struct {
	Symbol    string
	BidPrice  float64
	BidSize   float64
	AskPrice  float64
	AskSize   float64
	LastPrice float64
	Timestamp time.Time
}

// InstrumentFilters holds the venue constraints resolved once per run for a
// symbol. ContractSize and DeliveryDate are zero for spot instruments.
type InstrumentFilters struct {
	Symbol       string
	StepSize     float64
	TickSize     float64
	MinQty       float64
	ContractSize float64
	DeliveryDate time.Time
}

// ExchangeInfo is the normalized per-venue metadata snapshot.
type ExchangeInfo struct {
	Symbols []SymbolInfo
}

type SymbolInfo struct {
	Symbol       string
	Pair         string
	Status       string
	ContractType string
	ContractSize float64
	DeliveryDate time.Time
	StepSize     float64
	TickSize     float64
	MinQty       float64
}

// FindSymbol returns the metadata entry for an exact symbol match.
func (e ExchangeInfo) FindSymbol(symbol string) (SymbolInfo, bool) {
	for _, s := range e.Symbols {
		if s.Symbol == symbol {
			return s, true
		}
	}
	return SymbolInfo{}, false
}
