// Package orchestrator replays a reconciled catalog against the target
// catalog API in dependency order.
//
// Structure comes first (departments, categories parent before child, then
// brands), followed by one unit per product: the product, its specification
// values, and for each SKU the SKU, its images, price and inventory. A
// failure is recorded and only the failed entity's dependants are skipped.
// The result is checkpointed after every product unit so a run can resume.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/catalog"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/checkpoint"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/config"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/domain"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/logger"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/metrics"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/reconcile"
)

const maxReasonLength = 500

//go:generate mockgen -destination=../../testutils/mocks/orchestrator/catalog_api.go -package=orchestrator . CatalogAPI

// CatalogAPI is the target catalog. Create methods return the assigned ID,
// or the existing ID together with a *catalog.ConflictError.
type CatalogAPI interface {
	CreateCategory(ctx context.Context, name string, parentID *int64) (int64, error)
	CreateBrand(ctx context.Context, name string) (int64, error)
	CreateProduct(ctx context.Context, in catalog.ProductInput) (int64, error)
	SetProductSpecification(ctx context.Context, productID, categoryID int64, name, value string) error
	CreateSKU(ctx context.Context, in catalog.SKUInput) (int64, error)
	ActivateSKU(ctx context.Context, skuID int64) error
	AddSKUImage(ctx context.Context, skuID int64, img catalog.ImageInput) error
	SetPrice(ctx context.Context, skuID int64, price float64, listPrice *float64) error
	ListWarehouses(ctx context.Context) ([]catalog.Warehouse, error)
	SetInventory(ctx context.Context, skuID int64, warehouseID string, quantity int) error
}

// Orchestrator executes a ReconciledCatalog.
type Orchestrator struct {
	api     CatalogAPI
	store   checkpoint.Store
	cfg     config.VTEXConfig
	logger  logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// New creates an Orchestrator.
func New(api CatalogAPI, store checkpoint.Store, cfg config.VTEXConfig, log logger.Logger, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{
		api:     api,
		store:   store,
		cfg:     cfg,
		logger:  log.With(logger.String("component", "orchestrator")),
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// run is the state of one Execute call.
type run struct {
	*Orchestrator
	result     *domain.ExecutionResult
	tree       *domain.CategoryTree
	nodes      map[domain.NodeID]int64
	warehouses []string
}

// Execute writes cat to the catalog. A previous execution checkpoint is
// resumed: resolved identities are reused and completed product units are
// skipped. A unit with recorded failures is not completed and runs again.
// The returned result is complete even when err is a context error.
// A category tree that breaks the hierarchy invariants is rejected with
// reconcile.ErrInvalidHierarchy before any write.
func (o *Orchestrator) Execute(
	ctx context.Context,
	confirmation Confirmation,
	cat *domain.ReconciledCatalog,
	runID string,
) (*domain.ExecutionResult, error) {
	if !confirmation.Valid() {
		return nil, ErrNotConfirmed
	}
	if err := reconcile.Validate(&cat.Tree); err != nil {
		return nil, err
	}

	result := domain.NewExecutionResult(runID, o.now())
	found, err := o.store.Load(ctx, checkpoint.Execution, result)
	if err != nil {
		return nil, fmt.Errorf("load execution checkpoint: %w", err)
	}
	result.EnsureMaps()
	if found {
		o.logger.Info("Resuming execution",
			logger.String("run_id", result.RunID),
			logger.Int("completed_units", len(result.Completed)),
			logger.Int("recorded_errors", len(result.Errors)),
		)
	}
	result.FinishedAt = nil

	r := &run{
		Orchestrator: o,
		result:       result,
		tree:         &cat.Tree,
		nodes:        make(map[domain.NodeID]int64, len(cat.Tree.Nodes)),
	}

	r.createCategories(ctx)
	r.createBrands(ctx, cat)
	if saveErr := r.save(ctx); saveErr != nil {
		return result, saveErr
	}
	r.resolveWarehouses(ctx)

	for i := range cat.Products {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		p := &cat.Products[i]
		key := p.Record.ExternalKey()
		if result.Completed[key] {
			o.metrics.CatalogEntity(domain.EntityProduct, metrics.OutcomeSkipped)
			continue
		}

		errorsBefore := len(result.Errors)
		if unitErr := r.executeProduct(ctx, p, key); unitErr != nil {
			// Only cancellation aborts a unit; it stays incomplete for resume.
			_ = r.save(context.WithoutCancel(ctx))
			return result, unitErr
		}
		// Units with recorded failures are retried on the next run.
		if len(result.Errors) == errorsBefore {
			result.Completed[key] = true
		}
		if saveErr := r.save(ctx); saveErr != nil {
			return result, saveErr
		}
	}

	finished := o.now()
	result.FinishedAt = &finished
	if saveErr := r.save(ctx); saveErr != nil {
		return result, saveErr
	}

	o.logger.Info("Execution finished",
		logger.Int("entities", result.EntityCount()),
		logger.Int("reused", result.Reused),
		logger.Int("errors", len(result.Errors)),
	)
	return result, nil
}

func (r *run) save(ctx context.Context) error {
	if err := r.store.Save(ctx, checkpoint.Execution, r.result); err != nil {
		return fmt.Errorf("save execution checkpoint: %w", err)
	}
	return nil
}

// createCategories walks the arena level by level so parents always exist
// before their children.
func (r *run) createCategories(ctx context.Context) {
	ordered := make([]domain.CategoryNode, len(r.tree.Nodes))
	copy(ordered, r.tree.Nodes)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Level != ordered[j].Level {
			return ordered[i].Level < ordered[j].Level
		}
		return ordered[i].ID < ordered[j].ID
	})

	for _, node := range ordered {
		entity, ids := domain.EntityCategory, r.result.Categories
		if node.IsDepartment() {
			entity, ids = domain.EntityDepartment, r.result.Departments
		}
		path := r.tree.PathKey(node.ID)

		if id, ok := ids[path]; ok {
			r.nodes[node.ID] = id
			continue
		}

		var parentID *int64
		if !node.IsDepartment() {
			pid, ok := r.nodes[node.Parent]
			if !ok {
				r.fail(entity, path, errors.New("parent category was not created"))
				continue
			}
			parentID = &pid
		}

		id, err := r.api.CreateCategory(ctx, node.Name, parentID)
		if !r.resolved(entity, path, err) {
			continue
		}
		ids[path] = id
		r.nodes[node.ID] = id
	}
}

func (r *run) createBrands(ctx context.Context, cat *domain.ReconciledCatalog) {
	names := make([]string, 0, len(cat.Brands)+1)
	for _, b := range cat.Brands {
		names = append(names, b.Name)
	}
	for i := range cat.Products {
		if cat.Products[i].Brand == "" {
			names = append(names, r.cfg.DefaultBrand)
			break
		}
	}

	for _, name := range names {
		if _, ok := r.result.Brands[name]; ok {
			continue
		}
		id, err := r.api.CreateBrand(ctx, name)
		if !r.resolved(domain.EntityBrand, name, err) {
			continue
		}
		r.result.Brands[name] = id
	}
}

// resolveWarehouses lists the account's warehouses, falling back to the
// configured warehouse when none are listed or the listing fails.
func (r *run) resolveWarehouses(ctx context.Context) {
	listed, err := r.api.ListWarehouses(ctx)
	if err != nil {
		r.logger.Warn("Could not list warehouses, using configured warehouse",
			logger.String("warehouse_id", r.cfg.WarehouseID), logger.Error(err))
	}
	for _, w := range listed {
		if w.ID != "" {
			r.warehouses = append(r.warehouses, w.ID)
		}
	}
	if len(r.warehouses) == 0 && r.cfg.WarehouseID != "" {
		r.warehouses = []string{r.cfg.WarehouseID}
	}
}

// executeProduct returns an error only when ctx ends. Entity failures are
// recorded on the result.
func (r *run) executeProduct(ctx context.Context, p *domain.ResolvedProduct, key string) error {
	rec := &p.Record

	categoryID, ok := r.nodes[p.Category]
	if !ok {
		r.fail(domain.EntityProduct, key, fmt.Errorf("category %q was not created", r.tree.PathKey(p.Category)))
		return nil
	}
	brand := p.Brand
	if brand == "" {
		brand = r.cfg.DefaultBrand
	}
	brandID, ok := r.result.Brands[brand]
	if !ok {
		r.fail(domain.EntityProduct, key, fmt.Errorf("brand %q was not created", brand))
		return nil
	}

	productID, ok := r.result.Products[key]
	if !ok {
		id, err := r.api.CreateProduct(ctx, catalog.ProductInput{
			ID:               rec.Product.ExternalProductID,
			Name:             rec.Product.Name,
			CategoryID:       categoryID,
			BrandID:          brandID,
			Description:      rec.Product.Description,
			ShortDescription: rec.Product.ShortDescription,
			Title:            rec.Product.Title,
			Keywords:         rec.Product.Keywords,
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !r.resolved(domain.EntityProduct, key, err) {
			return nil
		}
		productID = id
		r.result.Products[key] = id
	}

	if r.cfg.Specifications {
		for _, spec := range rec.Specifications {
			err := r.api.SetProductSpecification(ctx, productID, categoryID, spec.Name, spec.Value)
			r.resolved(domain.EntitySpecification, key+"/"+spec.Name, err)
		}
	}

	skus := rec.SKUs
	if len(skus) == 0 {
		skus = []domain.SKU{{Name: rec.Product.Name}}
	}
	for i := range skus {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.executeSKU(ctx, rec, productID, skuKey(key, i, &skus[i]), &skus[i])
	}
	return ctx.Err()
}

func (r *run) executeSKU(ctx context.Context, rec *domain.ExtractionRecord, productID int64, key string, sku *domain.SKU) {
	skuID, ok := r.result.SKUs[key]
	if !ok {
		id, err := r.api.CreateSKU(ctx, catalog.SKUInput{
			ID:        sku.ExternalSKUID,
			ProductID: productID,
			Name:      sku.Name,
			EAN:       sku.EAN,
			RefID:     sku.RefID,
		})
		if !r.resolved(domain.EntitySKU, key, err) {
			return
		}
		skuID = id
		r.result.SKUs[key] = id
	}

	associated := 0
	for i, url := range rec.Images {
		err := r.api.AddSKUImage(ctx, skuID, catalog.ImageInput{
			URL:    url,
			Name:   fmt.Sprintf("%s-%d", strconv.FormatInt(skuID, 10), i+1),
			Label:  rec.Product.Name,
			IsMain: i == 0,
		})
		if r.resolved(domain.EntityImage, url, err) {
			r.result.ImagesAssociated++
			associated++
		}
	}
	if associated > 0 {
		r.resolved(domain.EntitySKU, key+"/activate", r.api.ActivateSKU(ctx, skuID))
	}

	if sku.Price > 0 {
		if r.resolved(domain.EntityPrice, key, r.api.SetPrice(ctx, skuID, sku.Price, sku.ListPrice)) {
			r.result.PricesSet++
		}
	} else {
		r.logger.Debug("SKU has no price, skipping pricing", logger.String("sku", key))
	}

	for _, wh := range r.warehouses {
		err := r.api.SetInventory(ctx, skuID, wh, r.cfg.InventoryQuantity)
		if r.resolved(domain.EntityInventory, key+"@"+wh, err) {
			r.result.InventoryUpdates++
		}
	}
}

// resolved records the outcome of one catalog call and reports whether the
// entity exists afterwards. A conflict counts as reuse.
func (r *run) resolved(entity, reference string, err error) bool {
	if err == nil {
		r.metrics.CatalogEntity(entity, metrics.OutcomeSuccess)
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if conflict, ok := catalog.AsConflict(err); ok {
		r.result.Reused++
		r.metrics.CatalogEntity(entity, metrics.OutcomeReused)
		r.logger.Debug("Reusing existing entity",
			logger.String("entity", entity),
			logger.String("reference", reference),
			logger.Int64("id", conflict.ID),
		)
		return true
	}
	r.fail(entity, reference, err)
	return false
}

func (r *run) fail(entity, reference string, err error) {
	reason := err.Error()
	if len(reason) > maxReasonLength {
		reason = reason[:maxReasonLength]
	}
	r.result.Errors = append(r.result.Errors, domain.EntityError{
		Entity:    entity,
		Reference: reference,
		Reason:    reason,
		At:        r.now(),
	})
	r.metrics.CatalogEntity(entity, metrics.OutcomeFailure)
	r.logger.Warn("Catalog entity failed",
		logger.String("entity", entity),
		logger.String("reference", reference),
		logger.Error(err),
	)
}

// skuKey identifies a SKU by its external ID when numeric, otherwise by its
// position under the product.
func skuKey(productKey string, index int, sku *domain.SKU) string {
	if sku.ExternalSKUID != nil {
		return productKey + "/sku:" + strconv.FormatInt(*sku.ExternalSKUID, 10)
	}
	return productKey + "/sku#" + strconv.Itoa(index)
}
