package inventory

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func TestHandler_CreateAndAdjust(t *testing.T) {
	f := newFixture(t)
	r := chi.NewRouter()
	NewHandler(f.svc).RegisterRoutes(r)

	body, _ := json.Marshal(CreateProductRequest{Name: "Bread", Quantity: 2, PackSize: 6})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/inventory/products", bytes.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, []StatusLabel{StatusPlaced, StatusLowStock}, created.Statuses)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/v1/inventory/products/"+created.ID.String()+"/stock",
		bytes.NewReader([]byte(`{"delta":-3}`))))
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/inventory/products/not-a-uuid", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
