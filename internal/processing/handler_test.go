package processing

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/paperline-erp/paperline-erp/internal/shared"
	_ "github.com/paperline-erp/paperline-erp/testing"
)

func newTestRouter(t *testing.T) (chi.Router, *fakeTransfers) {
	t.Helper()
	transfersPort := &fakeTransfers{}
	svc := NewService(newMemoryOrders(), transfersPort, newFakeIdempotency(), nil, nil)
	handler := NewHandler(nil, svc)
	r := chi.NewRouter()
	handler.MountRoutes(r)
	return r, transfersPort
}

func postSorting(t *testing.T, r chi.Router, body map[string]any, withActor bool) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/sorting", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if withActor {
		req = req.WithContext(shared.ContextWithActor(req.Context(), shared.Actor{ID: 20, Name: "station"}))
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func sortingBody() map[string]any {
	return map[string]any{
		"order_id":             100,
		"order_material_id":    501,
		"product_id":           1,
		"input_kg":             500,
		"sorting_warehouse_id": 2,
		"outputs": []map[string]any{
			{"category": "SORTED_MATERIAL", "weight_kg": 430, "dest_id": 3},
			{"category": "WASTE", "weight_kg": 70, "dest_id": 4},
		},
	}
}

func TestHandleSortingCreated(t *testing.T) {
	r, transfersPort := newTestRouter(t)

	rec := postSorting(t, r, sortingBody(), true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["group_id"])
	require.Len(t, transfersPort.created, 1)
}

func TestHandleSortingRequiresActor(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := postSorting(t, r, sortingBody(), false)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleSortingImbalance(t *testing.T) {
	r, _ := newTestRouter(t)

	body := sortingBody()
	body["outputs"] = []map[string]any{
		{"category": "SORTED_MATERIAL", "weight_kg": 430, "dest_id": 3},
		{"category": "WASTE", "weight_kg": 50, "dest_id": 4},
	}
	rec := postSorting(t, r, body, true)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestHandleSortingDuplicateKey(t *testing.T) {
	r, _ := newTestRouter(t)

	body := sortingBody()
	body["idempotency_key"] = "station-2:batch-9"
	require.Equal(t, http.StatusCreated, postSorting(t, r, body, true).Code)
	require.Equal(t, http.StatusConflict, postSorting(t, r, body, true).Code)
}

func TestHandleCuttingOutputDestRequired(t *testing.T) {
	r, _ := newTestRouter(t)

	body := map[string]any{
		"order_id":             100,
		"order_material_id":    501,
		"product_id":           1,
		"input_kg":             430,
		"cutting_warehouse_id": 3,
		"outputs": []map[string]any{
			{"category": "CUT", "weight_kg": 410, "dest_id": 5},
			{"category": "REMAINDER", "weight_kg": 20}, // no destination
		},
	}
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/cutting", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(shared.ContextWithActor(req.Context(), shared.Actor{ID: 20}))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
