package instruments

import (
	"fmt"
	"sort"
	"time"

	"github.com/songfangyl/Spot-future-spread-arbitrage/pkg/models"
)

// DefaultContractSize is the compatibility fallback used when exchange
// metadata cannot tell us the contract size for a pair. Callers must log
// loudly when they fall back to it.
const DefaultContractSize = 100.0

// SpotFilters resolves the lot and price constraints for a spot symbol.
// A missing symbol is a configuration error.
func SpotFilters(info models.ExchangeInfo, symbol string) (models.InstrumentFilters, error) {
	s, ok := info.FindSymbol(symbol)
	if !ok {
		return models.InstrumentFilters{}, fmt.Errorf("spot symbol %s missing in exchange info", symbol)
	}
	return models.InstrumentFilters{
		Symbol:   s.Symbol,
		StepSize: s.StepSize,
		TickSize: s.TickSize,
		MinQty:   s.MinQty,
	}, nil
}

// FutureFilters resolves constraints plus contract size and delivery date
// for a dated future symbol.
func FutureFilters(info models.ExchangeInfo, symbol string) (models.InstrumentFilters, error) {
	s, ok := info.FindSymbol(symbol)
	if !ok {
		return models.InstrumentFilters{}, fmt.Errorf("future symbol %s missing in exchange info", symbol)
	}
	return models.InstrumentFilters{
		Symbol:       s.Symbol,
		StepSize:     s.StepSize,
		TickSize:     s.TickSize,
		MinQty:       s.MinQty,
		ContractSize: s.ContractSize,
		DeliveryDate: s.DeliveryDate,
	}, nil
}

// SelectFrontContract picks the nearest non-expired delivery contract that
// is still trading for the pair.
func SelectFrontContract(info models.ExchangeInfo, pair string, now time.Time) (string, error) {
	var candidates []models.SymbolInfo
	for _, s := range info.Symbols {
		if s.Pair != pair || s.ContractType == "PERPETUAL" {
			continue
		}
		if s.Status != "TRADING" {
			continue
		}
		if !s.DeliveryDate.After(now) {
			continue
		}
		candidates = append(candidates, s)
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no active delivery futures for pair %s", pair)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].DeliveryDate.Before(candidates[j].DeliveryDate)
	})
	return candidates[0].Symbol, nil
}

// DetectContractSize reads the contract size shared by the pair's dated
// contracts. The second return is false when metadata had no usable entry
// and the DefaultContractSize fallback was applied.
func DetectContractSize(info models.ExchangeInfo, pair string) (float64, bool) {
	for _, s := range info.Symbols {
		if s.Pair != pair || s.ContractType == "PERPETUAL" {
			continue
		}
		if s.ContractSize > 0 {
			return s.ContractSize, true
		}
	}
	return DefaultContractSize, false
}
