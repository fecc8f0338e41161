package orchestrator_test

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/catalog"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/checkpoint"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/config"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/domain"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/logger"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/orchestrator"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/reconcile"
	orchestratorMock "github.com/jonesrussell/north-cloud/catalog-migrator/testutils/mocks/orchestrator"
)

type categoryKey struct {
	name   string
	parent int64
}

// fakeCatalog is an in-memory catalog with the target's conflict semantics.
type fakeCatalog struct {
	nextID     int64
	creates    int
	categories map[categoryKey]int64
	brands     map[string]int64
	products   map[int64]catalog.ProductInput
	skus       map[int64]catalog.SKUInput
	active     map[int64]bool
	images     map[int64][]string
	prices     map[int64]float64
	stock      map[int64]map[string]int
	specs      map[int64]map[string]string
	warehouses []catalog.Warehouse

	failProducts map[string]bool
	failSKUs     map[string]bool
	onProduct    func(in catalog.ProductInput) error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		nextID:       1000,
		categories:   map[categoryKey]int64{},
		brands:       map[string]int64{},
		products:     map[int64]catalog.ProductInput{},
		skus:         map[int64]catalog.SKUInput{},
		active:       map[int64]bool{},
		images:       map[int64][]string{},
		prices:       map[int64]float64{},
		stock:        map[int64]map[string]int{},
		specs:        map[int64]map[string]string{},
		warehouses:   []catalog.Warehouse{{ID: "1_1"}, {ID: "2_1"}},
		failProducts: map[string]bool{},
		failSKUs:     map[string]bool{},
	}
}

func (f *fakeCatalog) id() int64 {
	f.nextID++
	f.creates++
	return f.nextID
}

func badRequest(path string) error {
	return &catalog.APIError{Method: http.MethodPost, Path: path, StatusCode: http.StatusBadRequest, Body: "rejected"}
}

func (f *fakeCatalog) CreateCategory(_ context.Context, name string, parentID *int64) (int64, error) {
	key := categoryKey{name: name, parent: -1}
	if parentID != nil {
		if _, ok := f.lookupCategory(*parentID); !ok {
			return 0, badRequest("/category")
		}
		key.parent = *parentID
	}
	if id, ok := f.categories[key]; ok {
		return id, &catalog.ConflictError{Entity: domain.EntityCategory, ID: id, Name: name}
	}
	id := f.id()
	f.categories[key] = id
	return id, nil
}

func (f *fakeCatalog) lookupCategory(id int64) (categoryKey, bool) {
	for k, v := range f.categories {
		if v == id {
			return k, true
		}
	}
	return categoryKey{}, false
}

func (f *fakeCatalog) CreateBrand(_ context.Context, name string) (int64, error) {
	if id, ok := f.brands[name]; ok {
		return id, &catalog.ConflictError{Entity: domain.EntityBrand, ID: id, Name: name}
	}
	id := f.id()
	f.brands[name] = id
	return id, nil
}

func (f *fakeCatalog) CreateProduct(_ context.Context, in catalog.ProductInput) (int64, error) {
	if f.onProduct != nil {
		if err := f.onProduct(in); err != nil {
			return 0, err
		}
	}
	if f.failProducts[in.Name] {
		return 0, badRequest("/product")
	}
	if in.ID != nil {
		if _, ok := f.products[*in.ID]; ok {
			return *in.ID, &catalog.ConflictError{Entity: domain.EntityProduct, ID: *in.ID, Name: in.Name}
		}
		f.creates++
		f.products[*in.ID] = in
		return *in.ID, nil
	}
	id := f.id()
	f.products[id] = in
	return id, nil
}

func (f *fakeCatalog) SetProductSpecification(_ context.Context, productID, _ int64, name, value string) error {
	if f.specs[productID] == nil {
		f.specs[productID] = map[string]string{}
	}
	f.specs[productID][name] = value
	return nil
}

func (f *fakeCatalog) CreateSKU(_ context.Context, in catalog.SKUInput) (int64, error) {
	if f.failSKUs[in.Name] {
		return 0, badRequest("/stockkeepingunit")
	}
	if _, ok := f.products[in.ProductID]; !ok {
		return 0, badRequest("/stockkeepingunit")
	}
	if in.ID != nil {
		if _, ok := f.skus[*in.ID]; ok {
			return *in.ID, &catalog.ConflictError{Entity: domain.EntitySKU, ID: *in.ID, Name: in.Name}
		}
		f.creates++
		f.skus[*in.ID] = in
		return *in.ID, nil
	}
	id := f.id()
	f.skus[id] = in
	return id, nil
}

func (f *fakeCatalog) ActivateSKU(_ context.Context, skuID int64) error {
	f.active[skuID] = true
	return nil
}

func (f *fakeCatalog) AddSKUImage(_ context.Context, skuID int64, img catalog.ImageInput) error {
	for _, u := range f.images[skuID] {
		if u == img.URL {
			return &catalog.ConflictError{Entity: domain.EntityImage, Name: img.Name}
		}
	}
	f.images[skuID] = append(f.images[skuID], img.URL)
	return nil
}

func (f *fakeCatalog) SetPrice(_ context.Context, skuID int64, price float64, _ *float64) error {
	f.prices[skuID] = price
	return nil
}

func (f *fakeCatalog) ListWarehouses(context.Context) ([]catalog.Warehouse, error) {
	return f.warehouses, nil
}

func (f *fakeCatalog) SetInventory(_ context.Context, skuID int64, warehouseID string, quantity int) error {
	if f.stock[skuID] == nil {
		f.stock[skuID] = map[string]int{}
	}
	f.stock[skuID][warehouseID] = quantity
	return nil
}

func ptr[T any](v T) *T { return &v }

func vtexConfig() config.VTEXConfig {
	return config.VTEXConfig{
		WarehouseID:       "1_1",
		InventoryQuantity: 100,
		Specifications:    true,
		DefaultBrand:      "Default",
	}
}

func newStore(t *testing.T) checkpoint.Store {
	t.Helper()
	store, err := checkpoint.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func confirmed(t *testing.T) orchestrator.Confirmation {
	t.Helper()
	c, err := orchestrator.Confirm(orchestrator.ConfirmationToken)
	require.NoError(t, err)
	return c
}

func buildCatalog(t *testing.T, records ...domain.ExtractionRecord) *domain.ReconciledCatalog {
	t.Helper()
	cat, err := reconcile.New(config.ReconcileConfig{DefaultDepartment: "General"}, logger.NewNop()).Reconcile(records)
	require.NoError(t, err)
	return cat
}

func runnerRecord() domain.ExtractionRecord {
	return domain.ExtractionRecord{
		SourceURL:  "https://shop.test/p/runner",
		Categories: []domain.CategoryRef{{Name: "Fashion", Level: 1}, {Name: "Shoes", Level: 2}},
		Brand:      domain.Named{Name: "Acme"},
		Product:    domain.Product{Name: "Runner", ExternalProductID: ptr(int64(100))},
		SKUs: []domain.SKU{
			{Name: "Runner 40", ExternalSKUID: ptr(int64(1001)), Price: 10},
			{Name: "Runner 41", ExternalSKUID: ptr(int64(1002))},
		},
		Images:         []string{"https://cdn.test/a.jpg", "https://cdn.test/b.jpg"},
		Specifications: []domain.Specification{{Name: "Color", Value: "Red"}},
	}
}

func lampRecord() domain.ExtractionRecord {
	return domain.ExtractionRecord{
		SourceURL:  "https://shop.test/p/lamp",
		Categories: []domain.CategoryRef{{Name: "Home", Level: 1}},
		Product:    domain.Product{Name: "Lamp"},
	}
}

func TestConfirm(t *testing.T) {
	t.Parallel()

	c, err := orchestrator.Confirm("APPROVED")
	require.NoError(t, err)
	assert.True(t, c.Valid())

	for _, token := range []string{"approved", " APPROVED", "APPROVED\n", "", "yes"} {
		c, err = orchestrator.Confirm(token)
		require.ErrorIs(t, err, orchestrator.ErrNotConfirmed, token)
		assert.False(t, c.Valid())
	}
}

func TestExecute_RequiresConfirmationBeforeAnyWrite(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	// No expectations: any catalog call fails the test.
	api := orchestratorMock.NewMockCatalogAPI(ctrl)
	store := newStore(t)
	o := orchestrator.New(api, store, vtexConfig(), logger.NewNop(), nil)

	result, err := o.Execute(context.Background(), orchestrator.Confirmation{}, buildCatalog(t, runnerRecord()), "run-1")
	require.ErrorIs(t, err, orchestrator.ErrNotConfirmed)
	assert.Nil(t, result)

	infos, listErr := store.List(context.Background())
	require.NoError(t, listErr)
	assert.Empty(t, infos)
}

func TestExecute_RejectsMalformedTreeBeforeAnyWrite(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	api := orchestratorMock.NewMockCatalogAPI(ctrl)
	store := newStore(t)
	o := orchestrator.New(api, store, vtexConfig(), logger.NewNop(), nil)

	cat := buildCatalog(t, runnerRecord())
	// An edited checkpoint puts a level-2 category at level 1 under its parent.
	for i := range cat.Tree.Nodes {
		if cat.Tree.Nodes[i].Name == "Shoes" {
			cat.Tree.Nodes[i].Level = 1
		}
	}

	confirmation, err := orchestrator.Confirm(orchestrator.ConfirmationToken)
	require.NoError(t, err)

	result, err := o.Execute(context.Background(), confirmation, cat, "run-1")
	require.ErrorIs(t, err, reconcile.ErrInvalidHierarchy)
	assert.Nil(t, result)

	infos, listErr := store.List(context.Background())
	require.NoError(t, listErr)
	assert.Empty(t, infos)
}

func TestExecute_ReplaysInDependencyOrder(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	api := orchestratorMock.NewMockCatalogAPI(ctrl)

	rec := domain.ExtractionRecord{
		SourceURL:  "https://shop.test/p/mug",
		Categories: []domain.CategoryRef{{Name: "Kitchen", Level: 1}, {Name: "Mugs", Level: 2}},
		Brand:      domain.Named{Name: "Acme"},
		Product:    domain.Product{Name: "Mug"},
		SKUs:       []domain.SKU{{Name: "Mug", Price: 5}},
	}

	gomock.InOrder(
		api.EXPECT().CreateCategory(gomock.Any(), "Kitchen", nil).Return(int64(1), nil),
		api.EXPECT().CreateCategory(gomock.Any(), "Mugs", ptr(int64(1))).Return(int64(2), nil),
		api.EXPECT().CreateBrand(gomock.Any(), "Acme").Return(int64(3), nil),
		api.EXPECT().ListWarehouses(gomock.Any()).Return(nil, errors.New("forbidden")),
		api.EXPECT().CreateProduct(gomock.Any(), catalog.ProductInput{Name: "Mug", CategoryID: 2, BrandID: 3}).Return(int64(4), nil),
		api.EXPECT().CreateSKU(gomock.Any(), catalog.SKUInput{ProductID: 4, Name: "Mug"}).Return(int64(5), nil),
		api.EXPECT().SetPrice(gomock.Any(), int64(5), 5.0, nil).Return(nil),
		api.EXPECT().SetInventory(gomock.Any(), int64(5), "1_1", 100).Return(nil),
	)

	o := orchestrator.New(api, newStore(t), vtexConfig(), logger.NewNop(), nil)
	result, err := o.Execute(context.Background(), confirmed(t), buildCatalog(t, rec), "run-1")
	require.NoError(t, err)

	assert.Equal(t, map[string]int64{"Kitchen": 1}, result.Departments)
	assert.Equal(t, map[string]int64{"Kitchen > Mugs": 2}, result.Categories)
	assert.Equal(t, 1, result.InventoryUpdates)
	assert.Empty(t, result.Errors)
	assert.NotNil(t, result.FinishedAt)
}

func TestExecute_FullCatalog(t *testing.T) {
	t.Parallel()

	api := newFakeCatalog()
	o := orchestrator.New(api, newStore(t), vtexConfig(), logger.NewNop(), nil)

	result, err := o.Execute(context.Background(), confirmed(t), buildCatalog(t, runnerRecord(), lampRecord()), "run-1")
	require.NoError(t, err)
	require.Empty(t, result.Errors)

	assert.Len(t, result.Departments, 2)
	assert.Equal(t, []string{"Fashion > Shoes"}, keys(result.Categories))
	assert.Equal(t, []string{"Acme", "Default"}, keys(result.Brands))
	assert.Len(t, result.Products, 2)
	assert.Len(t, result.SKUs, 3, "two extracted SKUs plus a default SKU")
	assert.Equal(t, int64(100), result.Products["id:100"])

	shoes := api.categories[categoryKey{name: "Shoes", parent: result.Departments["Fashion"]}]
	assert.Equal(t, result.Categories["Fashion > Shoes"], shoes)
	assert.Equal(t, shoes, api.products[100].CategoryID)
	assert.Equal(t, map[string]string{"Color": "Red"}, api.specs[100])

	assert.Equal(t, 4, result.ImagesAssociated)
	assert.True(t, api.active[1001])
	assert.True(t, api.active[1002])
	assert.Equal(t, 1, result.PricesSet, "SKUs without a price are not priced")
	assert.Equal(t, 6, result.InventoryUpdates)
	assert.Equal(t, map[string]int{"1_1": 100, "2_1": 100}, api.stock[1001])

	lampSKU := result.SKUs["url:https://shop.test/p/lamp/sku#0"]
	require.NotZero(t, lampSKU)
	assert.Equal(t, "Lamp", api.skus[lampSKU].Name)
	assert.Equal(t, api.brands["Default"], api.products[result.Products["url:https://shop.test/p/lamp"]].BrandID)

	assert.Len(t, result.Completed, 2)
	assert.NotNil(t, result.FinishedAt)
}

func TestExecute_IsIdempotent(t *testing.T) {
	t.Parallel()

	t.Run("resumed run writes nothing", func(t *testing.T) {
		t.Parallel()

		api := newFakeCatalog()
		store := newStore(t)
		cat := buildCatalog(t, runnerRecord(), lampRecord())

		first, err := orchestrator.New(api, store, vtexConfig(), logger.NewNop(), nil).
			Execute(context.Background(), confirmed(t), cat, "run-1")
		require.NoError(t, err)
		creates, images := api.creates, len(api.images[1001])

		second, err := orchestrator.New(api, store, vtexConfig(), logger.NewNop(), nil).
			Execute(context.Background(), confirmed(t), cat, "run-1")
		require.NoError(t, err)

		assert.Equal(t, creates, api.creates)
		assert.Len(t, api.images[1001], images)
		assert.Equal(t, first.Products, second.Products)
		assert.Equal(t, first.SKUs, second.SKUs)
	})

	t.Run("fresh run reuses existing identities", func(t *testing.T) {
		t.Parallel()

		api := newFakeCatalog()
		cat := buildCatalog(t, runnerRecord())

		first, err := orchestrator.New(api, newStore(t), vtexConfig(), logger.NewNop(), nil).
			Execute(context.Background(), confirmed(t), cat, "run-1")
		require.NoError(t, err)
		creates := api.creates

		second, err := orchestrator.New(api, newStore(t), vtexConfig(), logger.NewNop(), nil).
			Execute(context.Background(), confirmed(t), cat, "run-2")
		require.NoError(t, err)

		assert.Equal(t, creates, api.creates, "no duplicate entities")
		assert.Len(t, api.images[1001], 2)
		assert.Empty(t, second.Errors)
		assert.Equal(t, first.Products, second.Products)
		assert.Equal(t, first.SKUs, second.SKUs)
		// 2 categories, 1 brand, 1 product, 2 SKUs, 4 images.
		assert.Equal(t, 10, second.Reused)
	})
}

func TestExecute_PartialFailuresSkipOnlyDependants(t *testing.T) {
	t.Parallel()

	api := newFakeCatalog()
	broken := runnerRecord()
	broken.SourceURL = "https://shop.test/p/broken"
	broken.Product = domain.Product{Name: "Broken", ExternalProductID: ptr(int64(200))}
	broken.SKUs = []domain.SKU{{Name: "Broken 1", ExternalSKUID: ptr(int64(2001)), Price: 3}}
	api.failProducts["Broken"] = true
	api.failSKUs["Runner 40"] = true

	result, err := orchestrator.New(api, newStore(t), vtexConfig(), logger.NewNop(), nil).
		Execute(context.Background(), confirmed(t), buildCatalog(t, broken, runnerRecord(), lampRecord()), "run-1")
	require.NoError(t, err)

	require.Len(t, result.Errors, 2)
	byEntity := map[string]domain.EntityError{}
	for _, e := range result.Errors {
		byEntity[e.Entity] = e
	}
	assert.Equal(t, "id:200", byEntity[domain.EntityProduct].Reference)
	assert.Equal(t, "id:100/sku:1001", byEntity[domain.EntitySKU].Reference)
	assert.NotEmpty(t, byEntity[domain.EntityProduct].Reason)

	assert.NotContains(t, api.skus, int64(2001), "dependants of a failed product are skipped")
	assert.NotContains(t, api.images, int64(1001))
	assert.NotContains(t, api.prices, int64(1001))
	assert.Contains(t, api.skus, int64(1002), "sibling SKU still created")
	assert.Len(t, api.images[1002], 2)

	assert.False(t, result.Completed["id:200"])
	assert.False(t, result.Completed["id:100"])
	assert.True(t, result.Completed["url:https://shop.test/p/lamp"])
}

func TestExecute_ResumesAfterCancellation(t *testing.T) {
	t.Parallel()

	api := newFakeCatalog()
	store := newStore(t)
	cat := buildCatalog(t, runnerRecord(), lampRecord())
	require.Equal(t, "Runner", cat.Products[0].Record.Product.Name)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	calls := map[string]int{}
	api.onProduct = func(in catalog.ProductInput) error {
		calls[in.Name]++
		if in.Name == "Lamp" && calls[in.Name] == 1 {
			cancel()
			return fmt.Errorf("post product: %w", context.Canceled)
		}
		return nil
	}

	o := orchestrator.New(api, store, vtexConfig(), logger.NewNop(), nil)
	result, err := o.Execute(ctx, confirmed(t), cat, "run-1")
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, result.Errors, "cancellation is not a unit failure")
	assert.Equal(t, map[string]bool{"id:100": true}, result.Completed)
	assert.Nil(t, result.FinishedAt)

	resumed, err := o.Execute(context.Background(), confirmed(t), cat, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 1, calls["Runner"], "completed unit skipped on resume")
	assert.Equal(t, 2, calls["Lamp"])
	assert.Len(t, resumed.Completed, 2)
	assert.NotNil(t, resumed.FinishedAt)
}

func keys(m map[string]int64) []string {
	return slices.Sorted(maps.Keys(m))
}
