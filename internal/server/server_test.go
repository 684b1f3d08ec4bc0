package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/smartdevs17/ayutrace/internal/compliance"
	"github.com/smartdevs17/ayutrace/internal/ledger"
	"github.com/smartdevs17/ayutrace/internal/metrics"
	"github.com/smartdevs17/ayutrace/internal/models"
	"github.com/smartdevs17/ayutrace/internal/processor"
	"github.com/smartdevs17/ayutrace/internal/provenance"
	"github.com/smartdevs17/ayutrace/internal/storage"
	"github.com/smartdevs17/ayutrace/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

type testAPI struct {
	t       *testing.T
	handler http.Handler
	store   *storage.MemoryStorage
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	ctx := context.Background()

	store := storage.NewMemoryStorage()
	manager := metrics.NewManager()
	engine := ledger.NewEngine(store, ledger.WithMetrics(manager))

	thresholds, err := compliance.NewThresholdStore(store, compliance.DefaultCacheSize, manager)
	require.NoError(t, err)
	_, err = compliance.Seed(ctx, thresholds, compliance.DefaultThresholds())
	require.NoError(t, err)

	proc := processor.NewEventProcessor(store, engine, compliance.NewEvaluator(thresholds), nil, manager, nil)
	require.NoError(t, proc.Start(ctx))

	srv, err := NewHTTPServer(&ServerConfig{
		Host:          "127.0.0.1",
		Port:          0,
		EnableMetrics: true,
		EnableHealth:  true,
		Version:       "test",
	}, Dependencies{
		Storage:    store,
		Processor:  proc,
		Engine:     engine,
		Verifier:   ledger.NewVerifier(engine, manager),
		Aggregator: provenance.NewAggregator(store, engine, provenance.WithMetrics(manager)),
		Thresholds: thresholds,
		Reporter:   compliance.NewReporter(store, compliance.DefaultRecommendedTests),
		Metrics:    manager,
	})
	require.NoError(t, err)

	return &testAPI{t: t, handler: srv.Handler(), store: store}
}

func (a *testAPI) do(method, path string, body interface{}) (int, apiResponse) {
	a.t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(a.t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	var resp apiResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	}
	return rec.Code, resp
}

func decodeData[T any](t *testing.T, resp apiResponse) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	return out
}

func TestSupplyChainOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	day := time.Date(2024, 2, 20, 7, 0, 0, 0, time.UTC)

	code, resp := api.do("POST", "/api/v1/lots", map[string]interface{}{
		"name": "Brahmi herb", "species": "Bacopa monnieri", "origin_region": "Kerala",
	})
	require.Equal(t, http.StatusCreated, code, resp.Error)
	lot := decodeData[models.Lot](t, resp)

	code, resp = api.do("POST", "/api/v1/collection", processor.CollectionRequest{
		LotID: lot.ID, CollectorID: "collector-1", Species: "Bacopa monnieri",
		QuantityKg: 12, CollectionDate: day, Location: models.GeoLocation{Lat: 9.9, Lng: 76.3},
	})
	require.Equal(t, http.StatusCreated, code, resp.Error)
	collection := decodeData[models.CollectionEvent](t, resp)
	assert.NotEmpty(t, collection.BlockchainTxID)

	code, resp = api.do("POST", "/api/v1/quality", map[string]interface{}{
		"lot_id": lot.ID, "lab_id": "lab-1", "test_type": "microbial",
		"test_date":  day.Add(48 * time.Hour),
		"parameters": map[string]interface{}{"total_aerobic_count": map[string]interface{}{"value": 5200, "unit": "CFU/g"}},
	})
	require.Equal(t, http.StatusCreated, code, resp.Error)
	test := decodeData[models.QualityTestEvent](t, resp)
	assert.Equal(t, models.TestStatusPass, test.OverallStatus)

	code, resp = api.do("POST", "/api/v1/packs", processor.PackRequest{
		LotID: lot.ID, ManufacturerID: "m-1", SKU: "BRA-30", ProductName: "Brahmi capsules",
		BatchNumber: "B-7", ManufactureDate: day.AddDate(0, 0, 5), ExpiryDate: day.AddDate(2, 0, 0),
		GMPCertified: true,
	})
	require.Equal(t, http.StatusCreated, code, resp.Error)
	pack := decodeData[models.Pack](t, resp)

	code, resp = api.do("GET", "/api/v1/packs/"+pack.ID, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, pack.ID, decodeData[models.Pack](t, resp).ID)

	code, resp = api.do("GET", "/api/v1/ledger/verify/"+lot.ID, nil)
	require.Equal(t, http.StatusOK, code)
	verification := decodeData[models.VerificationResult](t, resp)
	assert.True(t, verification.Valid)
	assert.Equal(t, 3, verification.EntriesChecked)

	code, resp = api.do("GET", "/api/v1/ledger/chain/"+lot.ID, nil)
	require.Equal(t, http.StatusOK, code)
	chain := decodeData[[]models.LedgerEntry](t, resp)
	require.Len(t, chain, 3)
	assert.Equal(t, collection.BlockchainTxID, chain[0].TransactionID)

	code, resp = api.do("GET", "/api/v1/provenance/"+pack.ID, nil)
	require.Equal(t, http.StatusOK, code, resp.Error)
	trace := decodeData[models.ProvenanceTrace](t, resp)
	assert.Equal(t, models.OverallCompliant, trace.ComplianceStatus.Overall)

	code, resp = api.do("GET", "/api/v1/compliance/report/"+lot.ID, nil)
	require.Equal(t, http.StatusOK, code)
	report := decodeData[models.ComplianceReport](t, resp)
	assert.True(t, report.ComplianceStatus.IsCompliant)

	code, resp = api.do("GET", "/api/v1/collection?lotId="+lot.ID, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decodeData[[]models.CollectionEvent](t, resp), 1)

	code, resp = api.do("GET", "/api/v1/lots/"+lot.ID, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.LotStatusPacked, decodeData[models.Lot](t, resp).Status)
}

func TestErrorMapping(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		code   string
	}{
		{"MissingLot", "GET", "/api/v1/lots/lot_missing", nil, http.StatusNotFound, utils.ErrCodeNotFound},
		{"MissingPack", "GET", "/api/v1/provenance/PACK-0-missing", nil, http.StatusNotFound, utils.ErrCodeNotFound},
		{"MissingReportLot", "GET", "/api/v1/compliance/report/lot_missing", nil, http.StatusNotFound, utils.ErrCodeNotFound},
		{"MalformedJSON", "POST", "/api/v1/lots", "{not json", http.StatusBadRequest, utils.ErrCodeValidation},
		{"InvalidLot", "POST", "/api/v1/lots", map[string]interface{}{"name": "x"}, http.StatusBadRequest, utils.ErrCodeValidation},
		{"UnknownLotForEvent", "POST", "/api/v1/collection", map[string]interface{}{
			"lot_id": "lot_missing", "collector_id": "c", "species": "s", "quantity_kg": 1,
			"collection_date": "2024-01-01T00:00:00Z",
		}, http.StatusNotFound, utils.ErrCodeNotFound},
		{"InvalidThreshold", "POST", "/api/v1/compliance/thresholds", map[string]interface{}{
			"test_type": "microbial", "parameter": "yeast", "min_value": 10, "max_value": 1,
		}, http.StatusBadRequest, utils.ErrCodeValidation},
		{"UnknownRoute", "GET", "/api/v1/nowhere", nil, http.StatusNotFound, utils.ErrCodeNotFound},
		{"UnknownNestedRoute", "POST", "/api/v1/ledger/nowhere/lot-1", map[string]interface{}{}, http.StatusNotFound, utils.ErrCodeNotFound},
		{"WrongMethod", "DELETE", "/api/v1/lots", nil, http.StatusMethodNotAllowed, utils.ErrCodeMethod},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := api.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, code)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.code, resp.Code)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestVerifyUnknownLotIsEmptyChain(t *testing.T) {
	api := newTestAPI(t)

	code, resp := api.do("GET", "/api/v1/ledger/verify/lot_none", nil)
	require.Equal(t, http.StatusOK, code)
	result := decodeData[models.VerificationResult](t, resp)
	assert.True(t, result.Valid)
	assert.Equal(t, "lot_none", result.LotID)
	assert.Equal(t, "No ledger entries found", result.Message)
}

func TestThresholdEndpoints(t *testing.T) {
	api := newTestAPI(t)

	code, resp := api.do("POST", "/api/v1/compliance/thresholds", map[string]interface{}{
		"test_type": "microbial", "parameter": "yeast_mold", "max_value": 1000,
		"unit": "CFU/g", "regulatory_body": "AYUSH", "standard": "API",
	})
	require.Equal(t, http.StatusCreated, code, resp.Error)
	stored := decodeData[models.ComplianceThreshold](t, resp)
	assert.Equal(t, "microbial-yeast_mold", stored.ID)

	code, resp = api.do("GET", "/api/v1/compliance/thresholds?testType=microbial", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decodeData[[]models.ComplianceThreshold](t, resp), 2)

	code, resp = api.do("GET", "/api/v1/compliance/thresholds", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decodeData[[]models.ComplianceThreshold](t, resp), 4)
}

func TestUpdateLotStatusEndpoint(t *testing.T) {
	api := newTestAPI(t)

	_, resp := api.do("POST", "/api/v1/lots", map[string]interface{}{"name": "Neem", "species": "Azadirachta indica"})
	lot := decodeData[models.Lot](t, resp)

	code, resp := api.do("PATCH", "/api/v1/lots/"+lot.ID+"/status", map[string]string{"status": "tested"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.LotStatusTested, decodeData[models.Lot](t, resp).Status)

	code, _ = api.do("PATCH", "/api/v1/lots/"+lot.ID+"/status", map[string]string{"status": "lost"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHealthAndMetrics(t *testing.T) {
	api := newTestAPI(t)

	code, resp := api.do("GET", "/health", nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)

	api.do("GET", "/api/v1/lots", nil)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ayutrace_http_requests_total")
	assert.Contains(t, rec.Body.String(), `path="/api/v1/lots"`)
}

func TestCORSPreflight(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/lots", nil)
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "PATCH")

	// Preflight for a path with no GET route still succeeds
	req = httptest.NewRequest(http.MethodOptions, "/api/v1/lots/lot-1/status", nil)
	rec = httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Ordinary responses carry the CORS headers too
	req = httptest.NewRequest(http.MethodGet, "/api/v1/lots", nil)
	rec = httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(utils.NewNotFoundError("Lot", "x")))
	assert.Equal(t, http.StatusBadRequest, statusFor(utils.NewValidationError("bad")))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(utils.NewStorageError("down", context.DeadlineExceeded)))
	assert.Equal(t, http.StatusConflict, statusFor(utils.NewConflictError("Lot", "lot-1")))
	assert.Equal(t, http.StatusInternalServerError, statusFor(utils.NewAppError(utils.ErrCodeInternal, "boom")))
	assert.Equal(t, "Internal server error", errorMessage(assert.AnError))
}
