package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/songfangyl/Spot-future-spread-arbitrage/pkg/models"
)

var _ OrderGateway = (*Gateway)(nil)

// Gateway is the live OrderGateway: it routes each request to the venue
// client matching the order's account type.
type Gateway struct {
	spot   *Client
	future *Client
	logger *logrus.Logger
}

func NewGateway(spot, future *Client, logger *logrus.Logger) *Gateway {
	return &Gateway{spot: spot, future: future, logger: logger}
}

func (g *Gateway) SubmitOrder(ctx context.Context, req models.OrderRequest) (models.Order, error) {
	var client *Client
	switch req.Account {
	case models.AccountTypeSpot:
		client = g.spot
	case models.AccountTypeFuture:
		client = g.future
	default:
		return models.Order{}, fmt.Errorf("unknown account type %q", req.Account)
	}

	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", string(req.Side))
	params.Set("type", string(req.Type))
	params.Set("quantity", strconv.FormatFloat(req.Quantity, 'f', -1, 64))
	if req.Type == models.OrderTypeLimit {
		params.Set("price", strconv.FormatFloat(req.Price, 'f', -1, 64))
		tif := req.TimeInForce
		if tif == "" {
			tif = "GTC"
		}
		params.Set("timeInForce", tif)
	}

	body, err := client.doRequest(ctx, "POST", "/order", params, true)
	if err != nil {
		return models.Order{}, err
	}

	var resp struct {
		OrderID     int64  `json:"orderId"`
		Status      string `json:"status"`
		ExecutedQty string `json:"executedQty"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.Order{}, fmt.Errorf("unexpected order response for %s: %w", req.Symbol, err)
	}

	order := models.Order{
		OrderID:    strconv.FormatInt(resp.OrderID, 10),
		Account:    req.Account,
		Symbol:     req.Symbol,
		Side:       req.Side,
		Type:       req.Type,
		Price:      req.Price,
		Quantity:   req.Quantity,
		FilledSize: parseFloat(resp.ExecutedQty),
		Status:     models.OrderStatus(resp.Status),
		CreatedAt:  time.Now().UTC(),
	}
	g.logger.WithFields(logrus.Fields{
		"order_id": order.OrderID,
		"symbol":   order.Symbol,
		"side":     order.Side,
		"status":   order.Status,
	}).Info("Order submitted")
	return order, nil
}
