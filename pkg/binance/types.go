package binance

import (
	"strconv"
	"time"

	"github.com/songfangyl/Spot-future-spread-arbitrage/pkg/models"
)

// Raw wire payloads. Binance ships numbers as strings almost everywhere;
// normalization into models types happens here and nowhere else.

type bookTickerPayload struct {
	Symbol   string `json:"symbol"`
	BidPrice string `json:"bidPrice"`
	BidQty   string `json:"bidQty"`
	AskPrice string `json:"askPrice"`
	AskQty   string `json:"askQty"`
}

type exchangeInfoPayload struct {
	Symbols []symbolPayload `json:"symbols"`
}

type symbolPayload struct {
	Symbol         string          `json:"symbol"`
	Pair           string          `json:"pair"`
	Status         string          `json:"status"`
	ContractStatus string          `json:"contractStatus"`
	ContractType   string          `json:"contractType"`
	ContractSize   float64         `json:"contractSize"`
	DeliveryDate   int64           `json:"deliveryDate"`
	Filters        []filterPayload `json:"filters"`
}

type filterPayload struct {
	FilterType string `json:"filterType"`
	StepSize   string `json:"stepSize"`
	TickSize   string `json:"tickSize"`
	MinQty     string `json:"minQty"`
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func (p symbolPayload) toModel() models.SymbolInfo {
	info := models.SymbolInfo{
		Symbol:       p.Symbol,
		Pair:         p.Pair,
		Status:       p.Status,
		ContractType: p.ContractType,
		ContractSize: p.ContractSize,
	}
	// The futures venue reports state as contractStatus, spot as status.
	if info.Status == "" {
		info.Status = p.ContractStatus
	}
	if p.DeliveryDate > 0 {
		info.DeliveryDate = time.UnixMilli(p.DeliveryDate).UTC()
	}
	for _, f := range p.Filters {
		switch f.FilterType {
		case "LOT_SIZE":
			info.StepSize = parseFloat(f.StepSize)
			info.MinQty = parseFloat(f.MinQty)
		case "PRICE_FILTER":
			info.TickSize = parseFloat(f.TickSize)
		}
	}
	return info
}

func (p exchangeInfoPayload) toModel() models.ExchangeInfo {
	info := models.ExchangeInfo{Symbols: make([]models.SymbolInfo, 0, len(p.Symbols))}
	for _, s := range p.Symbols {
		info.Symbols = append(info.Symbols, s.toModel())
	}
	return info
}
