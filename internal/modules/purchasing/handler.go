package purchasing

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/georgemunganga/printa-inventory/internal/apperr"
	"github.com/georgemunganga/printa-inventory/internal/middleware"
)

// Handler exposes purchase order and replenishment HTTP endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

// RegisterRoutes mounts the routes behind protect, which must put the acting user
// id on the request context.
func (h *Handler) RegisterRoutes(r *chi.Mux, protect func(http.Handler) http.Handler) {
	r.Route("/api/v1/purchase-orders", func(r chi.Router) {
		r.Use(protect)
		r.Post("/", h.create)                        // POST   /api/v1/purchase-orders
		r.Get("/", h.list)                           // GET    /api/v1/purchase-orders?status=PENDING
		r.Get("/{id}", h.get)                        // GET    /api/v1/purchase-orders/{id}
		r.Put("/{id}", h.update)                     // PUT    /api/v1/purchase-orders/{id}
		r.Delete("/{id}", h.delete)                  // DELETE /api/v1/purchase-orders/{id}
		r.Post("/{id}/receive", h.receive)           // POST   /api/v1/purchase-orders/{id}/receive
		r.Post("/{id}/add-all-stock", h.addAllStock) // POST   /api/v1/purchase-orders/{id}/add-all-stock
	})
	r.Route("/api/v1/replenishment", func(r chi.Router) {
		r.Use(protect)
		r.Post("/products/{id}", h.replenishProduct)
		r.Post("/sweep", h.replenishAll)
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respond(w, http.StatusUnauthorized, map[string]string{"error": "missing user"})
		return
	}
	var req CreatePurchaseOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	po, err := h.service.CreatePurchaseOrder(r.Context(), userID, req)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusCreated, po)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListPurchaseOrders(r.Context(), Status(r.URL.Query().Get("status")))
	if err != nil {
		respondErr(w, err)
		return
	}
	if orders == nil {
		orders = []*PurchaseOrder{}
	}
	respond(w, http.StatusOK, orders)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	po, err := h.service.GetPurchaseOrder(r.Context(), id)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, po)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req UpdatePurchaseOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	po, err := h.service.UpdatePurchaseOrder(r.Context(), id, req)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, po)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeletePurchaseOrder(r.Context(), id); err != nil {
		respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := h.service.ReceiveStock(r.Context(), id)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, res)
}

func (h *Handler) addAllStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := h.service.AddAllStock(r.Context(), id)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, res)
}

func (h *Handler) replenishProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := h.service.ReplenishProduct(r.Context(), id)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, res)
}

func (h *Handler) replenishAll(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.ReplenishAll(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, results)
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

func respondErr(w http.ResponseWriter, err error) {
	respond(w, apperr.HTTPStatus(err), map[string]string{"error": err.Error()})
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
