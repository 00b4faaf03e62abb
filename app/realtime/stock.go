// Package realtime exposes the stock-level websocket feed. Order
// fulfillment pushes {product_id, quantity_delta, sold_delta} messages into
// the hub; storefront clients subscribe on /ws/stock.
package realtime

import (
	"net/http"

	"github.com/shashiranjanraj/dukaan/pkg/ws"
)

// StockFeed owns the broadcast hub for stock changes.
type StockFeed struct {
	Hub *ws.Hub
}

// NewStockFeed creates the hub and starts its broadcast loop.
func NewStockFeed() *StockFeed {
	hub := ws.NewHub()
	go hub.Run()
	return &StockFeed{Hub: hub}
}

// Handler upgrades an HTTP request into a feed subscription.
func (f *StockFeed) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws.Upgrade(w, r, f.Hub)
	}
}
