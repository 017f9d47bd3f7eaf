package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/tokomas/goldpos/internal/inventory"
	"github.com/tokomas/goldpos/internal/models"
)

func (s *Server) registerInventoryRoutes(router *mux.Router) {
	router.HandleFunc("/categories", s.handleListCategories).Methods("GET")

	router.HandleFunc("/products", s.handleListProducts).Methods("GET")
	router.HandleFunc("/products", s.handleCreateProduct).Methods("POST")
	router.HandleFunc("/products/{id}", s.handleGetProduct).Methods("GET")
	router.HandleFunc("/products/{id}", s.handleUpdateProduct).Methods("PUT")
	router.HandleFunc("/products/{id}", s.handleDeleteProduct).Methods("DELETE")

	router.HandleFunc("/inventory", s.handleListItems).Methods("GET")
	router.HandleFunc("/inventory", s.handleAddItem).Methods("POST")
	router.HandleFunc("/inventory/stats", s.handleStats).Methods("GET")
	router.HandleFunc("/inventory/scan/{barcode}", s.handleScanBarcode).Methods("GET")
	router.HandleFunc("/inventory/{id}", s.handleGetItem).Methods("GET")
	router.HandleFunc("/inventory/{id}/location", s.handleUpdateLocation).Methods("PUT")
	router.HandleFunc("/inventory/{id}/label.png", s.handleItemLabel).Methods("GET")
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.inventoryManager.ListCategories()
	if err != nil {
		s.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, categories)
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.inventoryManager.ListProducts(r.URL.Query().Get("category_id"))
	if err != nil {
		s.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, products)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var p models.Product
	if !s.decodeJSON(w, r, &p) {
		return
	}
	created, err := s.inventoryManager.CreateProduct(&p)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.writeJSON(w, created)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := s.inventoryManager.GetProduct(mux.Vars(r)["id"])
	if err != nil {
		s.writeInventoryError(w, err)
		return
	}
	s.writeJSON(w, product)
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var p models.Product
	if !s.decodeJSON(w, r, &p) {
		return
	}
	p.ID = mux.Vars(r)["id"]
	updated, err := s.inventoryManager.UpdateProduct(&p)
	if err != nil {
		s.writeInventoryError(w, err)
		return
	}
	s.writeJSON(w, updated)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := s.inventoryManager.DeleteProduct(mux.Vars(r)["id"]); err != nil {
		s.writeInventoryError(w, err)
		return
	}
	s.writeJSON(w, map[string]string{"message": "Product deactivated"})
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.inventoryManager.ListItems(r.URL.Query().Get("status"))
	if err != nil {
		s.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, items)
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var item models.Inventory
	if !s.decodeJSON(w, r, &item) {
		return
	}
	created, err := s.inventoryManager.AddItem(&item)
	if err != nil {
		if errors.Is(err, inventory.ErrInvalidBarcode) {
			s.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.writeInventoryError(w, err)
		return
	}
	s.writeJSON(w, created)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.inventoryManager.GetStats()
	if err != nil {
		s.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, stats)
}

func (s *Server) handleScanBarcode(w http.ResponseWriter, r *http.Request) {
	item, err := s.inventoryManager.ScanBarcode(mux.Vars(r)["barcode"])
	if err != nil {
		s.writeInventoryError(w, err)
		return
	}
	s.writeJSON(w, item)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.inventoryManager.GetItem(mux.Vars(r)["id"])
	if err != nil {
		s.writeInventoryError(w, err)
		return
	}
	s.writeJSON(w, item)
}

func (s *Server) handleUpdateLocation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Location string `json:"location"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if err := s.inventoryManager.UpdateLocation(mux.Vars(r)["id"], req.Location); err != nil {
		s.writeInventoryError(w, err)
		return
	}
	s.writeJSON(w, map[string]string{"message": "Location updated"})
}

func (s *Server) handleItemLabel(w http.ResponseWriter, r *http.Request) {
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	png, err := s.inventoryManager.LabelPNG(mux.Vars(r)["id"], size)
	if err != nil {
		s.writeInventoryError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (s *Server) writeInventoryError(w http.ResponseWriter, err error) {
	if errors.Is(err, inventory.ErrNotFound) {
		s.writeError(w, err.Error(), http.StatusNotFound)
		return
	}
	s.writeError(w, err.Error(), http.StatusInternalServerError)
}
