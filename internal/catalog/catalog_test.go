package catalog_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/catalog"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/circuitbreaker"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/config"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/logger"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/retry"
)

func newClient(t *testing.T, handler http.Handler, mutate ...func(*config.VTEXConfig)) *catalog.Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.VTEXConfig{
		Account:            "store",
		AppKey:             "key",
		AppToken:           "token",
		BaseURL:            srv.URL,
		PricingBaseURL:     srv.URL + "/store",
		Timeout:            5 * time.Second,
		SpecificationGroup: "Specifications",
		Retry: config.RetryConfig{
			MaxAttempts:    3,
			InitialDelay:   time.Second,
			TransientDelay: time.Second,
			MaxDelay:       time.Minute,
			Multiplier:     2,
		},
		BreakerThreshold: 5,
		BreakerTimeout:   time.Minute,
	}
	for _, m := range mutate {
		m(&cfg)
	}

	c, err := catalog.NewClient(cfg, logger.NewNop(), nil)
	require.NoError(t, err)
	c.Sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestNewClient_RequiresAccount(t *testing.T) {
	t.Parallel()

	_, err := catalog.NewClient(config.VTEXConfig{}, logger.NewNop(), nil)
	require.Error(t, err)
}

func TestCreateCategory_SendsCredentialsAndFlags(t *testing.T) {
	t.Parallel()

	var body map[string]any
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("X-VTEX-API-AppKey"))
		assert.Equal(t, "token", r.Header.Get("X-VTEX-API-AppToken"))
		assert.Equal(t, "/api/catalog/pvt/category", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(t, w, http.StatusOK, map[string]any{"Id": 42})
	}))

	parent := int64(7)
	id, err := c.CreateCategory(context.Background(), "Shoes", &parent)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, "Shoes", body["Name"])
	assert.InDelta(t, 7, body["FatherCategoryId"], 0)
	assert.Equal(t, true, body["IsActive"])
	assert.Equal(t, true, body["ShowInStoreFront"])
	assert.InDelta(t, 1, body["GlobalCategoryId"], 0)
}

func TestCreateCategory_ExistingIsFoundAndReactivated(t *testing.T) {
	t.Parallel()

	var reactivated map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/catalog/pvt/category", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `"Category already exists"`)
	})
	mux.HandleFunc("GET /api/catalog_system/pub/category/tree/10", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusOK, []map[string]any{
			{"id": 1, "name": "Fashion", "children": []map[string]any{
				{"id": 5, "name": "shoes"},
			}},
			{"id": 2, "name": "Sports", "children": []map[string]any{
				{"id": 9, "name": "Shoes"},
			}},
		})
	})
	mux.HandleFunc("GET /api/catalog/pvt/category/9", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{"Id": 9, "Name": "Shoes", "IsActive": false, "ShowInStoreFront": true})
	})
	mux.HandleFunc("PUT /api/catalog/pvt/category/9", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&reactivated))
		w.WriteHeader(http.StatusOK)
	})
	c := newClient(t, mux)

	parent := int64(2)
	id, err := c.CreateCategory(context.Background(), "Shoes", &parent)
	conflict, ok := catalog.AsConflict(err)
	require.True(t, ok, "expected conflict, got %v", err)
	assert.Equal(t, int64(9), id)
	assert.Equal(t, int64(9), conflict.ID)
	require.NotNil(t, reactivated)
	assert.Equal(t, true, reactivated["IsActive"])
	assert.Equal(t, true, reactivated["ActiveStoreFrontLink"])
}

func TestCreateBrand_ExistingIsLookedUp(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/catalog/pvt/brand", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, "Brand already exists")
	})
	mux.HandleFunc("GET /api/catalog_system/pvt/brand/list", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusOK, []map[string]any{{"id": 3, "name": "Other"}, {"id": 11, "name": "ACME"}})
	})
	c := newClient(t, mux)

	id, err := c.CreateBrand(context.Background(), "Acme")
	_, ok := catalog.AsConflict(err)
	require.True(t, ok)
	assert.Equal(t, int64(11), id)
}

func TestCreateProduct_ConflictReusesPreservedID(t *testing.T) {
	t.Parallel()

	var put map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/catalog/pvt/product", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.InDelta(t, 12345, req["Id"], 0)
		w.WriteHeader(http.StatusConflict)
	})
	mux.HandleFunc("GET /api/catalog/pvt/product/12345", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{"Id": 12345, "IsActive": false, "IsVisible": true})
	})
	mux.HandleFunc("PUT /api/catalog/pvt/product/12345", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&put))
	})
	c := newClient(t, mux)

	extID := int64(12345)
	id, err := c.CreateProduct(context.Background(), catalog.ProductInput{ID: &extID, Name: "Runner", CategoryID: 1, BrandID: 2})
	conflict, ok := catalog.AsConflict(err)
	require.True(t, ok)
	assert.Equal(t, int64(12345), id)
	assert.Equal(t, int64(12345), conflict.ID)
	assert.Equal(t, true, put["IsActive"])
}

func TestCreateProduct_ConflictWithoutIDFails(t *testing.T) {
	t.Parallel()

	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))

	_, err := c.CreateProduct(context.Background(), catalog.ProductInput{Name: "Runner"})
	require.Error(t, err)
	_, ok := catalog.AsConflict(err)
	assert.False(t, ok)
}

func TestCreateSKU_IsCreatedInactiveThenActivated(t *testing.T) {
	t.Parallel()

	var created, activated map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/catalog/pvt/stockkeepingunit", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&created))
		writeJSON(t, w, http.StatusOK, map[string]any{"Id": 501})
	})
	mux.HandleFunc("GET /api/catalog/pvt/stockkeepingunit/501", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{"Id": 501, "IsActive": false})
	})
	mux.HandleFunc("PUT /api/catalog/pvt/stockkeepingunit/501", func(_ http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&activated))
	})
	c := newClient(t, mux)

	id, err := c.CreateSKU(context.Background(), catalog.SKUInput{ProductID: 9, Name: "Runner 42", EAN: "789"})
	require.NoError(t, err)
	assert.Equal(t, int64(501), id)
	assert.Equal(t, false, created["IsActive"])

	require.NoError(t, c.ActivateSKU(context.Background(), id))
	assert.Equal(t, true, activated["IsActive"])
}

func TestAddSKUImage_ConflictMeansAssociated(t *testing.T) {
	t.Parallel()

	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/catalog/pvt/stockkeepingunit/5/file", r.URL.Path)
		w.WriteHeader(http.StatusConflict)
	}))

	err := c.AddSKUImage(context.Background(), 5, catalog.ImageInput{URL: "https://cdn.test/a.jpg", Name: "a", IsMain: true})
	conflict, ok := catalog.AsConflict(err)
	require.True(t, ok)
	assert.Zero(t, conflict.ID)
}

func TestSetPriceAndInventory(t *testing.T) {
	t.Parallel()

	var price, stock map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /store/pricing/prices/5", func(_ http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&price))
	})
	mux.HandleFunc("GET /api/logistics/pvt/configuration/warehouses", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusOK, []map[string]any{{"id": "1_1", "name": "Main"}, {"id": "2", "name": "Backup"}})
	})
	mux.HandleFunc("PUT /api/logistics/pvt/inventory/skus/5/warehouses/1_1", func(_ http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&stock))
	})
	c := newClient(t, mux)
	ctx := context.Background()

	list := 150.0
	require.NoError(t, c.SetPrice(ctx, 5, 129.9, &list))
	assert.InDelta(t, 129.9, price["costPrice"], 0.001)
	assert.InDelta(t, 0, price["markup"], 0)
	assert.InDelta(t, 150, price["listPrice"], 0)

	warehouses, err := c.ListWarehouses(ctx)
	require.NoError(t, err)
	assert.Equal(t, []catalog.Warehouse{{ID: "1_1", Name: "Main"}, {ID: "2", Name: "Backup"}}, warehouses)

	require.NoError(t, c.SetInventory(ctx, 5, "1_1", 100))
	assert.InDelta(t, 100, stock["quantity"], 0)
	assert.Equal(t, false, stock["unlimitedQuantity"])
}

func TestSetProductSpecification_CreatesGroupAndFieldOnce(t *testing.T) {
	t.Parallel()

	var groupPosts, fieldPosts atomic.Int32
	var values []map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/catalog_system/pub/specification/field/listByCategoryId/6", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusOK, []map[string]any{{"FieldId": 30, "Name": "Color", "CategoryId": 6}})
	})
	mux.HandleFunc("GET /api/catalog_system/pvt/specification/groupbycategory/6", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusOK, []map[string]any{})
	})
	mux.HandleFunc("POST /api/catalog/pvt/specificationgroup", func(w http.ResponseWriter, _ *http.Request) {
		groupPosts.Add(1)
		writeJSON(t, w, http.StatusOK, map[string]any{"Id": 70})
	})
	mux.HandleFunc("POST /api/catalog/pvt/specification", func(w http.ResponseWriter, r *http.Request) {
		fieldPosts.Add(1)
		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.InDelta(t, 70, req["FieldGroupId"], 0)
		assert.InDelta(t, 1, req["FieldTypeId"], 0)
		writeJSON(t, w, http.StatusOK, map[string]any{"Id": 31})
	})
	mux.HandleFunc("PUT /api/catalog/pvt/product/9/specificationvalue", func(_ http.ResponseWriter, r *http.Request) {
		var v map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&v))
		values = append(values, v)
	})
	c := newClient(t, mux)
	ctx := context.Background()

	require.NoError(t, c.SetProductSpecification(ctx, 9, 6, "Color", "Red"))
	require.NoError(t, c.SetProductSpecification(ctx, 9, 6, "Material", "Mesh"))
	require.NoError(t, c.SetProductSpecification(ctx, 9, 6, "Material", "Leather"))

	assert.Equal(t, int32(1), groupPosts.Load())
	assert.Equal(t, int32(1), fieldPosts.Load())
	require.Len(t, values, 3)
	assert.InDelta(t, 30, values[0]["FieldId"], 0)
	assert.InDelta(t, 31, values[1]["FieldId"], 0)
	assert.Equal(t, "Leather", values[2]["Text"])
}

func TestClient_RetriesRateLimit(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeJSON(t, w, http.StatusOK, map[string]any{"Id": 8})
	}))

	var delays []time.Duration
	c.Sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	id, err := c.CreateBrand(context.Background(), "Acme")
	require.NoError(t, err)
	assert.Equal(t, int64(8), id)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
}

func TestClient_ClientErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, "invalid name")
	}))

	_, err := c.CreateBrand(context.Background(), "Acme")
	var apiErr *catalog.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.False(t, catalog.IsRetryable(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_ExhaustedRetriesAndOpenBreaker(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}), func(cfg *config.VTEXConfig) {
		cfg.Retry.MaxAttempts = 2
		cfg.BreakerThreshold = 3
	})
	ctx := context.Background()

	_, err := c.CreateBrand(ctx, "Acme")
	require.ErrorIs(t, err, retry.ErrMaxAttemptsExceeded)
	assert.True(t, catalog.IsRetryable(err))

	_, err = c.CreateBrand(ctx, "Acme")
	require.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.False(t, catalog.IsRetryable(err))
	assert.Equal(t, int32(3), calls.Load())
}
