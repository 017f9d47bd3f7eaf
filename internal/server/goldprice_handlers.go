package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/tokomas/goldpos/internal/goldprice"
)

func (s *Server) registerGoldPriceRoutes(router *mux.Router) {
	router.HandleFunc("/gold-prices/today", s.handleTodayPrices).Methods("GET")
	router.HandleFunc("/gold-prices/history", s.handlePriceHistory).Methods("GET")
	router.HandleFunc("/gold-prices", s.handleSetPrice).Methods("POST")
}

func (s *Server) handleTodayPrices(w http.ResponseWriter, r *http.Request) {
	prices, err := s.priceManager.TodayPrices()
	if err != nil {
		s.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, prices)
}

func (s *Server) handlePriceHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	purity, err := strconv.Atoi(q.Get("purity"))
	if err != nil || q.Get("gold_type") == "" {
		s.writeError(w, "gold_type and purity are required", http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))

	history, err := s.priceManager.History(q.Get("gold_type"), purity, limit)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, history)
}

func (s *Server) handleSetPrice(w http.ResponseWriter, r *http.Request) {
	if !s.requireOwner(w, r) {
		return
	}

	var req struct {
		GoldType  string `json:"gold_type"`
		Purity    int    `json:"purity"`
		BuyPrice  int    `json:"buy_price"`
		SellPrice int    `json:"sell_price"`
		Source    string `json:"source"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.GoldType == "" || req.Purity == 0 {
		s.writeError(w, "gold_type and purity are required", http.StatusBadRequest)
		return
	}
	if req.Source == "" {
		req.Source = "Manual"
	}

	price, err := s.priceManager.SetPrice(req.GoldType, req.Purity, req.BuyPrice, req.SellPrice, req.Source)
	if err != nil {
		if errors.Is(err, goldprice.ErrNotFound) {
			s.writeError(w, err.Error(), http.StatusNotFound)
			return
		}
		s.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, price)
}
