package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pricewatch/tracker/internal/scanner"
	"github.com/pricewatch/tracker/pkg/model"
)

// --- Mock Services ---

type mockCatalog struct {
	createVendorFn  func(ctx context.Context, v *model.Vendor) error
	getVendorFn     func(ctx context.Context, id int64) (*model.Vendor, error)
	listVendorsFn   func(ctx context.Context) ([]model.Vendor, error)
	updateVendorFn  func(ctx context.Context, id int64, upd model.VendorUpdate) (*model.Vendor, error)
	deleteVendorFn  func(ctx context.Context, id int64) error
	createProductFn func(ctx context.Context, p *model.Product) error
	getProductFn    func(ctx context.Context, id int64) (*model.Product, error)
	listProductsFn  func(ctx context.Context, f model.ProductFilter) ([]model.Product, error)
	updateProductFn func(ctx context.Context, id int64, upd model.ProductUpdate) (*model.Product, error)
	deleteProductFn func(ctx context.Context, id int64) error
	listObsFn       func(ctx context.Context, productID int64, since *time.Time) ([]model.PriceObservation, error)
}

func (m *mockCatalog) CreateVendor(ctx context.Context, v *model.Vendor) error {
	if m.createVendorFn != nil {
		return m.createVendorFn(ctx, v)
	}
	return fmt.Errorf("not implemented")
}

func (m *mockCatalog) GetVendor(ctx context.Context, id int64) (*model.Vendor, error) {
	if m.getVendorFn != nil {
		return m.getVendorFn(ctx, id)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockCatalog) ListVendors(ctx context.Context) ([]model.Vendor, error) {
	if m.listVendorsFn != nil {
		return m.listVendorsFn(ctx)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockCatalog) UpdateVendor(ctx context.Context, id int64, upd model.VendorUpdate) (*model.Vendor, error) {
	if m.updateVendorFn != nil {
		return m.updateVendorFn(ctx, id, upd)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockCatalog) DeleteVendor(ctx context.Context, id int64) error {
	if m.deleteVendorFn != nil {
		return m.deleteVendorFn(ctx, id)
	}
	return fmt.Errorf("not implemented")
}

func (m *mockCatalog) CreateProduct(ctx context.Context, p *model.Product) error {
	if m.createProductFn != nil {
		return m.createProductFn(ctx, p)
	}
	return fmt.Errorf("not implemented")
}

func (m *mockCatalog) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	if m.getProductFn != nil {
		return m.getProductFn(ctx, id)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockCatalog) ListProducts(ctx context.Context, f model.ProductFilter) ([]model.Product, error) {
	if m.listProductsFn != nil {
		return m.listProductsFn(ctx, f)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockCatalog) UpdateProduct(ctx context.Context, id int64, upd model.ProductUpdate) (*model.Product, error) {
	if m.updateProductFn != nil {
		return m.updateProductFn(ctx, id, upd)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockCatalog) DeleteProduct(ctx context.Context, id int64) error {
	if m.deleteProductFn != nil {
		return m.deleteProductFn(ctx, id)
	}
	return fmt.Errorf("not implemented")
}

func (m *mockCatalog) ListObservations(ctx context.Context, productID int64, since *time.Time) ([]model.PriceObservation, error) {
	if m.listObsFn != nil {
		return m.listObsFn(ctx, productID, since)
	}
	return nil, fmt.Errorf("not implemented")
}

type mockStats struct {
	computeStatsFn func(ctx context.Context, productID int64, windowDays int) (*model.PriceStatsResult, error)
}

func (m *mockStats) ComputeStats(ctx context.Context, productID int64, windowDays int) (*model.PriceStatsResult, error) {
	if m.computeStatsFn != nil {
		return m.computeStatsFn(ctx, productID, windowDays)
	}
	return nil, fmt.Errorf("not implemented")
}

type mockPolicy struct {
	settingsFn    func(ctx context.Context) (model.ScanPolicy, error)
	resolveFn     func(ctx context.Context, vendorID int64) (int, error)
	setDefaultFn  func(ctx context.Context, minutes int) error
	setOverrideFn func(ctx context.Context, vendorID int64, minutes *int) error
	replaceFn     func(ctx context.Context, p model.ScanPolicy) error
	applyFn       func(ctx context.Context, vendorID *int64) (model.ApplyResult, error)
}

func (m *mockPolicy) Settings(ctx context.Context) (model.ScanPolicy, error) {
	if m.settingsFn != nil {
		return m.settingsFn(ctx)
	}
	return model.ScanPolicy{}, fmt.Errorf("not implemented")
}

func (m *mockPolicy) ResolveEffective(ctx context.Context, vendorID int64) (int, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, vendorID)
	}
	return 0, fmt.Errorf("not implemented")
}

func (m *mockPolicy) SetDefault(ctx context.Context, minutes int) error {
	if m.setDefaultFn != nil {
		return m.setDefaultFn(ctx, minutes)
	}
	return fmt.Errorf("not implemented")
}

func (m *mockPolicy) SetOverride(ctx context.Context, vendorID int64, minutes *int) error {
	if m.setOverrideFn != nil {
		return m.setOverrideFn(ctx, vendorID, minutes)
	}
	return fmt.Errorf("not implemented")
}

func (m *mockPolicy) Replace(ctx context.Context, p model.ScanPolicy) error {
	if m.replaceFn != nil {
		return m.replaceFn(ctx, p)
	}
	return fmt.Errorf("not implemented")
}

func (m *mockPolicy) ApplyToProducts(ctx context.Context, vendorID *int64) (model.ApplyResult, error) {
	if m.applyFn != nil {
		return m.applyFn(ctx, vendorID)
	}
	return model.ApplyResult{}, fmt.Errorf("not implemented")
}

type mockDashboard struct {
	summaryFn func(ctx context.Context) (*model.DashboardSummary, error)
	listFn    func(ctx context.Context) ([]model.ProductWithLatestPrice, error)
}

func (m *mockDashboard) GetSummary(ctx context.Context) (*model.DashboardSummary, error) {
	if m.summaryFn != nil {
		return m.summaryFn(ctx)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockDashboard) ListProductsWithLatestPrice(ctx context.Context) ([]model.ProductWithLatestPrice, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, fmt.Errorf("not implemented")
}

type mockScans struct {
	scanFn   func(ctx context.Context, id int64) (*model.PriceObservation, error)
	sweepFn  func(ctx context.Context) (int, error)
	statusFn func() scanner.Status
}

func (m *mockScans) ScanProduct(ctx context.Context, id int64) (*model.PriceObservation, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, id)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockScans) SweepOnce(ctx context.Context) (int, error) {
	if m.sweepFn != nil {
		return m.sweepFn(ctx)
	}
	return 0, fmt.Errorf("not implemented")
}

func (m *mockScans) Status() scanner.Status {
	if m.statusFn != nil {
		return m.statusFn()
	}
	return scanner.Status{}
}

// --- Test Helpers ---

type testDeps struct {
	catalog   *mockCatalog
	stats     *mockStats
	policy    *mockPolicy
	dashboard *mockDashboard
	scans     ScanService
}

func newTestApp(d testDeps) *fiber.App {
	if d.catalog == nil {
		d.catalog = &mockCatalog{}
	}
	if d.stats == nil {
		d.stats = &mockStats{}
	}
	if d.policy == nil {
		d.policy = &mockPolicy{}
	}
	if d.dashboard == nil {
		d.dashboard = &mockDashboard{}
	}

	app := fiber.New()
	h := NewHandler(zap.NewNop(), d.catalog, d.stats, d.policy, d.dashboard, d.scans)

	v1 := app.Group("/api/v1")

	vendors := v1.Group("/vendors")
	vendors.Get("/", h.ListVendorsHandler)
	vendors.Post("/", h.CreateVendorHandler)
	vendors.Get("/:id", h.GetVendorHandler)
	vendors.Delete("/:id", h.DeleteVendorHandler)

	products := v1.Group("/products")
	products.Post("/", h.CreateProductHandler)
	products.Get("/:id", h.GetProductHandler)
	products.Put("/:id", h.UpdateProductHandler)
	products.Get("/:id/stats", h.GetProductStatsHandler)
	products.Post("/:id/scan", h.ScanProductHandler)

	dashboard := v1.Group("/dashboard")
	dashboard.Get("/summary", h.GetSummaryHandler)
	dashboard.Get("/products", h.ListDashboardProductsHandler)

	settings := v1.Group("/settings/scan-frequency")
	settings.Get("/", h.GetScanPolicyHandler)
	settings.Put("/", h.PutScanPolicyHandler)
	settings.Post("/apply-to-products", h.ApplyPolicyHandler)
	settings.Put("/vendors/:id", h.PutVendorOverrideHandler)

	sc := v1.Group("/scanner")
	sc.Post("/scan-all", h.ScanAllHandler)
	sc.Get("/status", h.ScannerStatusHandler)

	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, respBody
}

// --- Vendor Handler Tests ---

func TestCreateVendorHandler_Success(t *testing.T) {
	catalog := &mockCatalog{
		createVendorFn: func(_ context.Context, v *model.Vendor) error {
			v.ID = 5
			v.CreatedAt = time.Now().UTC()
			return nil
		},
	}
	app := newTestApp(testDeps{catalog: catalog})

	resp, body := doJSON(t, app, http.MethodPost, "/api/v1/vendors/",
		`{"name": "Acme", "domain": "acme.example.com"}`)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var v model.Vendor
	require.NoError(t, json.Unmarshal(body, &v))
	assert.Equal(t, int64(5), v.ID)
	assert.True(t, v.IsActive)
}

func TestCreateVendorHandler_MissingName(t *testing.T) {
	app := newTestApp(testDeps{})
	resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/vendors/",
		`{"domain": "acme.example.com"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestGetVendorHandler_NotFound(t *testing.T) {
	catalog := &mockCatalog{
		getVendorFn: func(_ context.Context, id int64) (*model.Vendor, error) {
			return nil, fmt.Errorf("vendor %d: %w", id, model.ErrNotFound)
		},
	}
	app := newTestApp(testDeps{catalog: catalog})

	resp, _ := doJSON(t, app, http.MethodGet, "/api/v1/vendors/99", "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestDeleteVendorHandler_WithProductsConflicts(t *testing.T) {
	catalog := &mockCatalog{
		deleteVendorFn: func(_ context.Context, _ int64) error {
			return model.ErrVendorHasProducts
		},
	}
	app := newTestApp(testDeps{catalog: catalog})

	resp, _ := doJSON(t, app, http.MethodDelete, "/api/v1/vendors/3", "")
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

// --- Product Handler Tests ---

func TestCreateProductHandler_StampsPolicyFrequency(t *testing.T) {
	var created *model.Product
	catalog := &mockCatalog{
		getVendorFn: func(_ context.Context, id int64) (*model.Vendor, error) {
			return &model.Vendor{ID: id, IsActive: true}, nil
		},
		createProductFn: func(_ context.Context, p *model.Product) error {
			p.ID = 11
			created = p
			return nil
		},
	}
	policy := &mockPolicy{
		resolveFn: func(_ context.Context, vendorID int64) (int, error) {
			assert.Equal(t, int64(2), vendorID)
			return 45, nil
		},
	}
	app := newTestApp(testDeps{catalog: catalog, policy: policy})

	resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/products/",
		`{"name": "Widget", "url": "https://acme.example.com/w", "vendor_id": 2}`)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.NotNil(t, created)
	assert.Equal(t, 45, created.ScanFrequencyMinutes)
}

func TestCreateProductHandler_ExplicitFrequencyBypassesPolicy(t *testing.T) {
	catalog := &mockCatalog{
		getVendorFn: func(_ context.Context, id int64) (*model.Vendor, error) {
			return &model.Vendor{ID: id, IsActive: true}, nil
		},
		createProductFn: func(_ context.Context, p *model.Product) error {
			assert.Equal(t, 10, p.ScanFrequencyMinutes)
			return nil
		},
	}
	// resolveFn left nil: the handler must not consult the policy.
	app := newTestApp(testDeps{catalog: catalog})

	resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/products/",
		`{"name": "Widget", "url": "https://x.test/w", "vendor_id": 1, "scan_frequency_minutes": 10}`)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
}

func TestCreateProductHandler_UnknownVendor(t *testing.T) {
	catalog := &mockCatalog{
		getVendorFn: func(_ context.Context, id int64) (*model.Vendor, error) {
			return nil, fmt.Errorf("vendor %d: %w", id, model.ErrNotFound)
		},
	}
	app := newTestApp(testDeps{catalog: catalog})

	resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/products/",
		`{"name": "Widget", "url": "https://x.test/w", "vendor_id": 7}`)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestUpdateProductHandler_RejectsNonPositiveFrequency(t *testing.T) {
	app := newTestApp(testDeps{})
	resp, _ := doJSON(t, app, http.MethodPut, "/api/v1/products/4",
		`{"scan_frequency_minutes": 0}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

// --- Stats Handler Tests ---

func TestGetProductStatsHandler_DefaultWindow(t *testing.T) {
	stats := &mockStats{
		computeStatsFn: func(_ context.Context, productID int64, windowDays int) (*model.PriceStatsResult, error) {
			assert.Equal(t, int64(8), productID)
			assert.Equal(t, 30, windowDays)
			price := decimal.RequireFromString("42.50")
			return &model.PriceStatsResult{
				ProductID:    productID,
				WindowDays:   windowDays,
				CurrentPrice: &price,
			}, nil
		},
	}
	app := newTestApp(testDeps{stats: stats})

	resp, body := doJSON(t, app, http.MethodGet, "/api/v1/products/8/stats", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result model.PriceStatsResult
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, int64(8), result.ProductID)
	require.NotNil(t, result.CurrentPrice)
	assert.True(t, result.CurrentPrice.Equal(decimal.RequireFromString("42.50")))
}

func TestGetProductStatsHandler_CustomWindow(t *testing.T) {
	stats := &mockStats{
		computeStatsFn: func(_ context.Context, _ int64, windowDays int) (*model.PriceStatsResult, error) {
			assert.Equal(t, 7, windowDays)
			return &model.PriceStatsResult{WindowDays: windowDays}, nil
		},
	}
	app := newTestApp(testDeps{stats: stats})

	resp, _ := doJSON(t, app, http.MethodGet, "/api/v1/products/8/stats?days=7", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestGetProductStatsHandler_InvalidWindow(t *testing.T) {
	stats := &mockStats{
		computeStatsFn: func(_ context.Context, _ int64, windowDays int) (*model.PriceStatsResult, error) {
			return nil, fmt.Errorf("window days %d: %w", windowDays, model.ErrInvalidArgument)
		},
	}
	app := newTestApp(testDeps{stats: stats})

	resp, _ := doJSON(t, app, http.MethodGet, "/api/v1/products/8/stats?days=-1", "")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

// --- Policy Handler Tests ---

func TestGetScanPolicyHandler(t *testing.T) {
	policy := &mockPolicy{
		settingsFn: func(_ context.Context) (model.ScanPolicy, error) {
			return model.ScanPolicy{
				DefaultFrequencyMinutes: 60,
				Overrides:               map[int64]int{3: 15},
			}, nil
		},
	}
	app := newTestApp(testDeps{policy: policy})

	resp, body := doJSON(t, app, http.MethodGet, "/api/v1/settings/scan-frequency/", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var p model.ScanPolicy
	require.NoError(t, json.Unmarshal(body, &p))
	assert.Equal(t, 60, p.DefaultFrequencyMinutes)
	assert.Equal(t, 15, p.Overrides[3])
}

func TestPutScanPolicyHandler_InvalidFrequency(t *testing.T) {
	policy := &mockPolicy{
		replaceFn: func(_ context.Context, p model.ScanPolicy) error {
			return fmt.Errorf("default %d: %w", p.DefaultFrequencyMinutes, model.ErrInvalidArgument)
		},
	}
	app := newTestApp(testDeps{policy: policy})

	resp, _ := doJSON(t, app, http.MethodPut, "/api/v1/settings/scan-frequency/",
		`{"default_scan_frequency_minutes": 0}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestPutVendorOverrideHandler_NullClears(t *testing.T) {
	var gotMinutes *int
	cleared := false
	policy := &mockPolicy{
		setOverrideFn: func(_ context.Context, vendorID int64, minutes *int) error {
			assert.Equal(t, int64(4), vendorID)
			gotMinutes = minutes
			cleared = minutes == nil
			return nil
		},
		settingsFn: func(_ context.Context) (model.ScanPolicy, error) {
			return model.ScanPolicy{DefaultFrequencyMinutes: 60, Overrides: map[int64]int{}}, nil
		},
	}
	app := newTestApp(testDeps{policy: policy})

	resp, _ := doJSON(t, app, http.MethodPut, "/api/v1/settings/scan-frequency/vendors/4",
		`{"minutes": null}`)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, cleared)
	assert.Nil(t, gotMinutes)
}

func TestApplyPolicyHandler_AllVendors(t *testing.T) {
	policy := &mockPolicy{
		applyFn: func(_ context.Context, vendorID *int64) (model.ApplyResult, error) {
			assert.Nil(t, vendorID)
			return model.ApplyResult{UpdatedCount: 7}, nil
		},
	}
	app := newTestApp(testDeps{policy: policy})

	resp, body := doJSON(t, app, http.MethodPost, "/api/v1/settings/scan-frequency/apply-to-products", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result model.ApplyResult
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, 7, result.UpdatedCount)
}

func TestApplyPolicyHandler_VendorScoped(t *testing.T) {
	policy := &mockPolicy{
		applyFn: func(_ context.Context, vendorID *int64) (model.ApplyResult, error) {
			require.NotNil(t, vendorID)
			assert.Equal(t, int64(3), *vendorID)
			return model.ApplyResult{UpdatedCount: 2}, nil
		},
	}
	app := newTestApp(testDeps{policy: policy})

	resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/settings/scan-frequency/apply-to-products?vendor_id=3", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestApplyPolicyHandler_MalformedVendorIDRejected(t *testing.T) {
	// an unparsable vendor_id must not widen the scope to all products
	policy := &mockPolicy{
		applyFn: func(_ context.Context, _ *int64) (model.ApplyResult, error) {
			t.Fatal("apply must not run for a malformed vendor_id")
			return model.ApplyResult{}, nil
		},
	}
	app := newTestApp(testDeps{policy: policy})

	for _, q := range []string{"vendor_id=abc", "vendor_id=0", "vendor_id=-2"} {
		resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/settings/scan-frequency/apply-to-products?"+q, "")
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, q)
	}
}

func TestApplyPolicyHandler_OverlapConflict(t *testing.T) {
	policy := &mockPolicy{
		applyFn: func(_ context.Context, _ *int64) (model.ApplyResult, error) {
			return model.ApplyResult{}, model.ErrPropagationConflict
		},
	}
	app := newTestApp(testDeps{policy: policy})

	resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/settings/scan-frequency/apply-to-products", "")
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

// --- Dashboard Handler Tests ---

func TestGetSummaryHandler(t *testing.T) {
	dash := &mockDashboard{
		summaryFn: func(_ context.Context) (*model.DashboardSummary, error) {
			return &model.DashboardSummary{
				TotalProducts:     12,
				TotalVendors:      3,
				RecentlyScanned:   9,
				TotalPriceRecords: 480,
			}, nil
		},
	}
	app := newTestApp(testDeps{dashboard: dash})

	resp, body := doJSON(t, app, http.MethodGet, "/api/v1/dashboard/summary", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var s model.DashboardSummary
	require.NoError(t, json.Unmarshal(body, &s))
	assert.Equal(t, int64(12), s.TotalProducts)
	assert.Equal(t, int64(480), s.TotalPriceRecords)
}

func TestListDashboardProductsHandler_EmptyIsArray(t *testing.T) {
	dash := &mockDashboard{
		listFn: func(_ context.Context) ([]model.ProductWithLatestPrice, error) {
			return nil, nil
		},
	}
	app := newTestApp(testDeps{dashboard: dash})

	resp, body := doJSON(t, app, http.MethodGet, "/api/v1/dashboard/products", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "[]", strings.TrimSpace(string(body)))
}

// --- Scanner Handler Tests ---

func TestScanProductHandler_Success(t *testing.T) {
	scans := &mockScans{
		scanFn: func(_ context.Context, id int64) (*model.PriceObservation, error) {
			return &model.PriceObservation{
				ProductID: id,
				Price:     decimal.RequireFromString("19.99"),
				Currency:  "USD",
			}, nil
		},
	}
	app := newTestApp(testDeps{scans: scans})

	resp, body := doJSON(t, app, http.MethodPost, "/api/v1/products/6/scan", "")
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var obs model.PriceObservation
	require.NoError(t, json.Unmarshal(body, &obs))
	assert.Equal(t, int64(6), obs.ProductID)
}

func TestScanProductHandler_NoPriceExtracted(t *testing.T) {
	scans := &mockScans{
		scanFn: func(_ context.Context, id int64) (*model.PriceObservation, error) {
			return nil, fmt.Errorf("fetch product %d: %w", id, model.ErrNoPrice)
		},
	}
	app := newTestApp(testDeps{scans: scans})

	resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/products/6/scan", "")
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}

func TestScanProductHandler_ScannerDisabled(t *testing.T) {
	app := newTestApp(testDeps{})
	resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/products/6/scan", "")
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestScanAllHandler(t *testing.T) {
	scans := &mockScans{
		sweepFn: func(_ context.Context) (int, error) { return 4, nil },
	}
	app := newTestApp(testDeps{scans: scans})

	resp, body := doJSON(t, app, http.MethodPost, "/api/v1/scanner/scan-all", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"scanned": 4}`, string(body))
}

func TestScannerStatusHandler(t *testing.T) {
	now := time.Now().UTC()
	scans := &mockScans{
		statusFn: func() scanner.Status {
			return scanner.Status{Running: true, LastSweepAt: &now, LastSweepScanned: 3}
		},
	}
	app := newTestApp(testDeps{scans: scans})

	resp, body := doJSON(t, app, http.MethodGet, "/api/v1/scanner/status", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var status scanner.Status
	require.NoError(t, json.Unmarshal(body, &status))
	assert.True(t, status.Running)
	assert.Equal(t, 3, status.LastSweepScanned)
}
