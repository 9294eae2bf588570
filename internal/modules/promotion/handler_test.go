package promotion

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestHandler_CreateAndList(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(NewService(NewMemoryRepository())).RegisterRoutes(r)
	product := uuid.New()
	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	body, _ := json.Marshal(CreatePromotionRequest{
		ProductID:       product,
		DiscountedPrice: decimal.NewFromInt(8),
		ValidityStart:   start,
		ValidityEnd:     start.AddDate(0, 0, 7),
	})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/promotions/", bytes.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/promotions/products/"+product.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []*Promotion
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)

	body, _ = json.Marshal(CreatePromotionRequest{
		ProductID:       product,
		DiscountedPrice: decimal.NewFromInt(8),
		ValidityStart:   start,
		ValidityEnd:     start.AddDate(0, 0, -1),
	})
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/promotions/", bytes.NewReader(body)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
