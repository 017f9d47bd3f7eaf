package server

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tokomas/goldpos/internal/models"
	"github.com/tokomas/goldpos/internal/transactions"
)

func (s *Server) registerTransactionRoutes(router *mux.Router) {
	router.HandleFunc("/customers", s.handleSearchCustomers).Methods("GET")
	router.HandleFunc("/customers", s.handleCreateCustomer).Methods("POST")
	router.HandleFunc("/customers/{id}", s.handleGetCustomer).Methods("GET")
	router.HandleFunc("/customers/{id}", s.handleUpdateCustomer).Methods("PUT")

	router.HandleFunc("/transactions", s.handleListTransactions).Methods("GET")
	router.HandleFunc("/transactions", s.handleCreateTransaction).Methods("POST")
	router.HandleFunc("/transactions/{id}", s.handleGetTransaction).Methods("GET")
	router.HandleFunc("/transactions/{id}/payments", s.handleProcessPayment).Methods("POST")
	router.HandleFunc("/transactions/{id}/void", s.handleVoidTransaction).Methods("POST")
}

func (s *Server) handleSearchCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := s.txManager.SearchCustomers(r.URL.Query().Get("q"))
	if err != nil {
		s.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, customers)
}

func (s *Server) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var c models.Customer
	if !s.decodeJSON(w, r, &c) {
		return
	}
	if c.Name == "" {
		s.writeError(w, "name is required", http.StatusBadRequest)
		return
	}
	created, err := s.txManager.CreateCustomer(&c)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.writeJSON(w, created)
}

func (s *Server) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	customer, err := s.txManager.GetCustomer(mux.Vars(r)["id"])
	if err != nil {
		s.writeTransactionError(w, err)
		return
	}
	s.writeJSON(w, customer)
}

func (s *Server) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var c models.Customer
	if !s.decodeJSON(w, r, &c) {
		return
	}
	c.ID = mux.Vars(r)["id"]
	updated, err := s.txManager.UpdateCustomer(&c)
	if err != nil {
		s.writeTransactionError(w, err)
		return
	}
	s.writeJSON(w, updated)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	txs, err := s.txManager.List(q.Get("date_from"), q.Get("date_to"), q.Get("type"))
	if err != nil {
		s.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, txs)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var input transactions.CreateInput
	if !s.decodeJSON(w, r, &input) {
		return
	}
	claims := requestClaims(r)
	input.UserID = claims.Subject
	if input.BranchID == "" {
		input.BranchID = claims.BranchID
	}

	tx, err := s.txManager.Create(&input)
	if err != nil {
		if errors.Is(err, transactions.ErrNoItems) || errors.Is(err, transactions.ErrItemUnavailable) {
			s.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.writeTransactionError(w, err)
		return
	}
	s.writeJSON(w, tx)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.txManager.Get(mux.Vars(r)["id"])
	if err != nil {
		s.writeTransactionError(w, err)
		return
	}
	s.writeJSON(w, tx)
}

func (s *Server) handleProcessPayment(w http.ResponseWriter, r *http.Request) {
	var input transactions.PaymentInput
	if !s.decodeJSON(w, r, &input) {
		return
	}
	input.TransactionID = mux.Vars(r)["id"]
	if input.Amount <= 0 {
		s.writeError(w, "amount must be positive", http.StatusBadRequest)
		return
	}

	payment, err := s.txManager.ProcessPayment(&input)
	if err != nil {
		s.writeTransactionError(w, err)
		return
	}
	s.writeJSON(w, payment)
}

func (s *Server) handleVoidTransaction(w http.ResponseWriter, r *http.Request) {
	if !s.requireOwner(w, r) {
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Reason == "" {
		s.writeError(w, "reason is required", http.StatusBadRequest)
		return
	}

	id := mux.Vars(r)["id"]
	if err := s.txManager.Void(id, req.Reason); err != nil {
		if errors.Is(err, transactions.ErrAlreadyVoided) {
			s.writeError(w, err.Error(), http.StatusConflict)
			return
		}
		s.writeTransactionError(w, err)
		return
	}
	s.writeJSON(w, map[string]string{"message": "Transaction voided"})
}

func (s *Server) writeTransactionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, transactions.ErrNotFound), errors.Is(err, transactions.ErrCustomerNotFound):
		s.writeError(w, err.Error(), http.StatusNotFound)
	default:
		s.writeError(w, err.Error(), http.StatusInternalServerError)
	}
}
