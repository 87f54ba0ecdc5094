package binance

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/songfangyl/Spot-future-spread-arbitrage/pkg/models"
)

var _ OrderGateway = (*SimGateway)(nil)

// SimGateway stands in for live trading: orders are acknowledged locally
// with a configurable fill probability and never reach the venue. It sits
// behind the same OrderGateway interface as the live Gateway so the
// execution engine cannot tell the difference.
type SimGateway struct {
	fillProb float64
	rng      *rand.Rand
	logger   *logrus.Logger
}

func NewSimGateway(fillProb float64, logger *logrus.Logger) *SimGateway {
	if fillProb <= 0 || fillProb > 1 {
		fillProb = 0.9
	}
	return &SimGateway{
		fillProb: fillProb,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:   logger,
	}
}

func (s *SimGateway) SubmitOrder(_ context.Context, req models.OrderRequest) (models.Order, error) {
	status := models.OrderStatusFilled
	filled := req.Quantity
	if s.rng.Float64() > s.fillProb {
		status = models.OrderStatusCanceled
		filled = 0
	}

	order := models.Order{
		OrderID:    uuid.NewString(),
		Account:    req.Account,
		Symbol:     req.Symbol,
		Side:       req.Side,
		Type:       req.Type,
		Price:      req.Price,
		Quantity:   req.Quantity,
		FilledSize: filled,
		Status:     status,
		CreatedAt:  time.Now().UTC(),
	}
	s.logger.WithFields(logrus.Fields{
		"order_id": order.OrderID,
		"symbol":   order.Symbol,
		"side":     order.Side,
		"quantity": order.Quantity,
		"status":   order.Status,
	}).Info("Simulated order")
	return order, nil
}
