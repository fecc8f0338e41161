package domain

import "time"

// Entity kinds used in execution bookkeeping.
const (
	EntityDepartment    = "department"
	EntityCategory      = "category"
	EntityBrand         = "brand"
	EntityProduct       = "product"
	EntitySpecification = "specification"
	EntitySKU           = "sku"
	EntityImage         = "image"
	EntityPrice         = "price"
	EntityInventory     = "inventory"
)

// EntityError is a recorded unit failure: which entity, and why.
type EntityError struct {
	Entity    string    `json:"entity"`
	Reference string    `json:"reference"`
	Reason    string    `json:"reason"`
	At        time.Time `json:"at"`
}

// ExecutionResult accumulates the outcome of an execution run. It is only
// appended to; partial success is kept.
type ExecutionResult struct {
	RunID            string           `json:"run_id"`
	Departments      map[string]int64 `json:"departments"`
	Categories       map[string]int64 `json:"categories"`
	Brands           map[string]int64 `json:"brands"`
	Products         map[string]int64 `json:"products"`
	SKUs             map[string]int64 `json:"skus"`
	ImagesAssociated int              `json:"images_associated"`
	PricesSet        int              `json:"prices_set"`
	InventoryUpdates int              `json:"inventory_updates"`
	Reused           int              `json:"reused"`
	Completed        map[string]bool  `json:"completed"`
	Errors           []EntityError    `json:"errors"`
	StartedAt        time.Time        `json:"started_at"`
	FinishedAt       *time.Time       `json:"finished_at,omitempty"`
}

// NewExecutionResult returns a result with every map initialized.
func NewExecutionResult(runID string, now time.Time) *ExecutionResult {
	r := &ExecutionResult{RunID: runID, StartedAt: now}
	r.EnsureMaps()
	return r
}

// EnsureMaps initializes nil maps, e.g. after loading an older checkpoint.
func (r *ExecutionResult) EnsureMaps() {
	if r.Departments == nil {
		r.Departments = map[string]int64{}
	}
	if r.Categories == nil {
		r.Categories = map[string]int64{}
	}
	if r.Brands == nil {
		r.Brands = map[string]int64{}
	}
	if r.Products == nil {
		r.Products = map[string]int64{}
	}
	if r.SKUs == nil {
		r.SKUs = map[string]int64{}
	}
	if r.Completed == nil {
		r.Completed = map[string]bool{}
	}
}

// EntityCount returns how many distinct entities the run resolved.
func (r *ExecutionResult) EntityCount() int {
	return len(r.Departments) + len(r.Categories) + len(r.Brands) + len(r.Products) + len(r.SKUs)
}
