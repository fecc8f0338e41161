package catalog

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/domain"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/logger"
)

const (
	categoryTreeDepth = 10
	textFieldType     = 1
	defaultImageLabel = "Product Image"
)

// ProductInput is a product to create.
type ProductInput struct {
	// ID is the preserved external identity, or nil to let VTEX assign one.
	ID               *int64
	Name             string
	CategoryID       int64
	BrandID          int64
	Description      string
	ShortDescription string
	Title            string
	Keywords         string
}

// SKUInput is a SKU to create.
type SKUInput struct {
	ID        *int64
	ProductID int64
	Name      string
	EAN       string
	RefID     string
}

// ImageInput associates a public image URL with a SKU.
type ImageInput struct {
	URL    string
	Name   string
	Label  string
	IsMain bool
}

// Warehouse is a logistics warehouse.
type Warehouse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type idResponse struct {
	ID int64 `json:"Id"`
}

type categoryRequest struct {
	Name                 string `json:"Name"`
	FatherCategoryID     *int64 `json:"FatherCategoryId"`
	Title                string `json:"Title"`
	Keywords             string `json:"Keywords"`
	Description          string `json:"Description"`
	IsActive             bool   `json:"IsActive"`
	MenuHome             bool   `json:"MenuHome"`
	ShowInStoreFront     bool   `json:"ShowInStoreFront"`
	ActiveStoreFrontLink bool   `json:"ActiveStoreFrontLink"`
	GlobalCategoryID     int    `json:"GlobalCategoryId"`
}

type categoryTreeNode struct {
	ID       int64              `json:"id"`
	Name     string             `json:"name"`
	Children []categoryTreeNode `json:"children"`
}

type brandRequest struct {
	Name      string `json:"Name"`
	Active    bool   `json:"Active"`
	SiteTitle string `json:"SiteTitle"`
}

type brandListItem struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type productRequest struct {
	ID               *int64 `json:"Id,omitempty"`
	Name             string `json:"Name"`
	CategoryID       int64  `json:"CategoryId"`
	BrandID          int64  `json:"BrandId"`
	Description      string `json:"Description"`
	ShortDescription string `json:"DescriptionShort"`
	Title            string `json:"Title"`
	KeyWords         string `json:"KeyWords"`
	IsActive         bool   `json:"IsActive"`
	IsVisible        bool   `json:"IsVisible"`
	ShowWithoutStock bool   `json:"ShowWithoutStock"`
}

type skuRequest struct {
	ID        *int64 `json:"Id,omitempty"`
	ProductID int64  `json:"ProductId"`
	Name      string `json:"Name"`
	EAN       string `json:"EAN,omitempty"`
	RefID     string `json:"RefId,omitempty"`
	IsActive  bool   `json:"IsActive"`
}

type imageRequest struct {
	URL    string `json:"Url"`
	Name   string `json:"Name"`
	Label  string `json:"Label"`
	IsMain bool   `json:"IsMain"`
}

type priceRequest struct {
	Markup    float64  `json:"markup"`
	CostPrice float64  `json:"costPrice"`
	BasePrice float64  `json:"basePrice"`
	ListPrice *float64 `json:"listPrice,omitempty"`
}

type inventoryRequest struct {
	Quantity          int  `json:"quantity"`
	UnlimitedQuantity bool `json:"unlimitedQuantity"`
}

type specificationGroup struct {
	ID         int64  `json:"Id"`
	CategoryID int64  `json:"CategoryId"`
	Name       string `json:"Name"`
}

type specificationField struct {
	FieldID    int64  `json:"FieldId"`
	CategoryID int64  `json:"CategoryId"`
	Name       string `json:"Name"`
}

type specificationFieldRequest struct {
	FieldTypeID        int    `json:"FieldTypeId"`
	CategoryID         int64  `json:"CategoryId"`
	FieldGroupID       int64  `json:"FieldGroupId"`
	Name               string `json:"Name"`
	IsFilter           bool   `json:"IsFilter"`
	IsRequired         bool   `json:"IsRequired"`
	IsOnProductDetails bool   `json:"IsOnProductDetails"`
	IsStockKeepingUnit bool   `json:"IsStockKeepingUnit"`
	IsActive           bool   `json:"IsActive"`
}

type specificationValueRequest struct {
	FieldID int64  `json:"FieldId"`
	Text    string `json:"Text"`
}

// CreateCategory creates a department when parentID is nil, otherwise a
// child category. An existing category with the same name under the same
// parent is reactivated and returned as a *ConflictError.
func (c *Client) CreateCategory(ctx context.Context, name string, parentID *int64) (int64, error) {
	entity := domain.EntityCategory
	if parentID == nil {
		entity = domain.EntityDepartment
	}

	var resp idResponse
	err := c.do(ctx, http.MethodPost, c.baseURL, "/api/catalog/pvt/category", categoryRequest{
		Name:                 name,
		FatherCategoryID:     parentID,
		Title:                name,
		IsActive:             true,
		MenuHome:             parentID == nil,
		ShowInStoreFront:     true,
		ActiveStoreFrontLink: true,
		GlobalCategoryID:     1,
	}, &resp)
	if err == nil {
		return resp.ID, nil
	}
	if !alreadyExists(err) {
		return 0, err
	}

	id, findErr := c.findCategory(ctx, name, parentID)
	if findErr != nil {
		return 0, fmt.Errorf("%w (lookup after conflict: %w)", err, findErr)
	}
	if activateErr := c.activateCategory(ctx, id); activateErr != nil {
		c.logger.Warn("Could not reactivate category", logger.Int64("category_id", id), logger.Error(activateErr))
	}
	return id, &ConflictError{Entity: entity, ID: id, Name: name}
}

func (c *Client) findCategory(ctx context.Context, name string, parentID *int64) (int64, error) {
	var tree []categoryTreeNode
	path := fmt.Sprintf("/api/catalog_system/pub/category/tree/%d", categoryTreeDepth)
	if err := c.do(ctx, http.MethodGet, c.baseURL, path, nil, &tree); err != nil {
		return 0, err
	}

	if id, ok := searchTree(tree, nil, name, parentID); ok {
		return id, nil
	}
	return 0, fmt.Errorf("category %q: %w", name, ErrNotFound)
}

func searchTree(nodes []categoryTreeNode, parent *int64, name string, wantParent *int64) (int64, bool) {
	for _, n := range nodes {
		if sameParent(parent, wantParent) && strings.EqualFold(strings.TrimSpace(n.Name), strings.TrimSpace(name)) {
			return n.ID, true
		}
		id := n.ID
		if found, ok := searchTree(n.Children, &id, name, wantParent); ok {
			return found, true
		}
	}
	return 0, false
}

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// activateCategory turns on the storefront flags of an existing category.
func (c *Client) activateCategory(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/api/catalog/pvt/category/%d", id)
	var current map[string]any
	if err := c.do(ctx, http.MethodGet, c.baseURL, path, nil, &current); err != nil {
		return err
	}

	changed := false
	for _, flag := range []string{"IsActive", "ShowInStoreFront", "ActiveStoreFrontLink"} {
		if on, _ := current[flag].(bool); !on {
			current[flag] = true
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return c.do(ctx, http.MethodPut, c.baseURL, path, current, nil)
}

// CreateBrand creates a brand. An existing brand is returned as a
// *ConflictError.
func (c *Client) CreateBrand(ctx context.Context, name string) (int64, error) {
	var resp idResponse
	err := c.do(ctx, http.MethodPost, c.baseURL, "/api/catalog/pvt/brand",
		brandRequest{Name: name, Active: true, SiteTitle: name}, &resp)
	if err == nil {
		return resp.ID, nil
	}
	if !alreadyExists(err) {
		return 0, err
	}

	var brands []brandListItem
	if listErr := c.do(ctx, http.MethodGet, c.baseURL, "/api/catalog_system/pvt/brand/list", nil, &brands); listErr != nil {
		return 0, fmt.Errorf("%w (lookup after conflict: %w)", err, listErr)
	}
	for _, b := range brands {
		if strings.EqualFold(strings.TrimSpace(b.Name), strings.TrimSpace(name)) {
			return b.ID, &ConflictError{Entity: domain.EntityBrand, ID: b.ID, Name: name}
		}
	}
	return 0, err
}

// CreateProduct creates a product, active and visible. When a preserved ID
// already exists the product is fetched, switched on if needed and returned
// as a *ConflictError.
func (c *Client) CreateProduct(ctx context.Context, in ProductInput) (int64, error) {
	title := in.Title
	if title == "" {
		title = in.Name
	}

	var resp idResponse
	err := c.do(ctx, http.MethodPost, c.baseURL, "/api/catalog/pvt/product", productRequest{
		ID:               in.ID,
		Name:             in.Name,
		CategoryID:       in.CategoryID,
		BrandID:          in.BrandID,
		Description:      in.Description,
		ShortDescription: in.ShortDescription,
		Title:            title,
		KeyWords:         in.Keywords,
		IsActive:         true,
		IsVisible:        true,
		ShowWithoutStock: true,
	}, &resp)
	if err == nil {
		return resp.ID, nil
	}
	if in.ID == nil || !isStatus(err, http.StatusConflict) {
		return 0, err
	}

	id := *in.ID
	path := fmt.Sprintf("/api/catalog/pvt/product/%d", id)
	var current map[string]any
	if getErr := c.do(ctx, http.MethodGet, c.baseURL, path, nil, &current); getErr != nil {
		c.logger.Warn("Existing product could not be read, reusing its id",
			logger.Int64("product_id", id), logger.Error(getErr))
		return id, &ConflictError{Entity: domain.EntityProduct, ID: id, Name: in.Name}
	}

	active, _ := current["IsActive"].(bool)
	visible, _ := current["IsVisible"].(bool)
	if !active || !visible {
		current["IsActive"], current["IsVisible"] = true, true
		if putErr := c.do(ctx, http.MethodPut, c.baseURL, path, current, nil); putErr != nil {
			c.logger.Warn("Could not reactivate product", logger.Int64("product_id", id), logger.Error(putErr))
		}
	}
	return id, &ConflictError{Entity: domain.EntityProduct, ID: id, Name: in.Name}
}

// CreateSKU creates an inactive SKU. VTEX only activates SKUs that have
// files, so ActivateSKU is called once images are associated.
func (c *Client) CreateSKU(ctx context.Context, in SKUInput) (int64, error) {
	var resp idResponse
	err := c.do(ctx, http.MethodPost, c.baseURL, "/api/catalog/pvt/stockkeepingunit", skuRequest{
		ID:        in.ID,
		ProductID: in.ProductID,
		Name:      in.Name,
		EAN:       in.EAN,
		RefID:     in.RefID,
	}, &resp)
	if err == nil {
		return resp.ID, nil
	}
	if in.ID == nil || !isStatus(err, http.StatusConflict) {
		return 0, err
	}

	id := *in.ID
	var existing idResponse
	if getErr := c.do(ctx, http.MethodGet, c.baseURL, fmt.Sprintf("/api/catalog/pvt/stockkeepingunit/%d", id), nil, &existing); getErr != nil {
		c.logger.Warn("Existing SKU could not be read, reusing its id", logger.Int64("sku_id", id), logger.Error(getErr))
	}
	return id, &ConflictError{Entity: domain.EntitySKU, ID: id, Name: in.Name}
}

// ActivateSKU sets IsActive on an existing SKU.
func (c *Client) ActivateSKU(ctx context.Context, skuID int64) error {
	path := fmt.Sprintf("/api/catalog/pvt/stockkeepingunit/%d", skuID)
	var current map[string]any
	if err := c.do(ctx, http.MethodGet, c.baseURL, path, nil, &current); err != nil {
		return err
	}
	if active, _ := current["IsActive"].(bool); active {
		return nil
	}
	current["IsActive"] = true
	return c.do(ctx, http.MethodPut, c.baseURL, path, current, nil)
}

// AddSKUImage associates an image URL with a SKU. An image that is already
// associated is returned as a *ConflictError with no ID.
func (c *Client) AddSKUImage(ctx context.Context, skuID int64, img ImageInput) error {
	label := img.Label
	if label == "" {
		label = defaultImageLabel
	}
	path := fmt.Sprintf("/api/catalog/pvt/stockkeepingunit/%d/file", skuID)
	err := c.do(ctx, http.MethodPost, c.baseURL, path, imageRequest{
		URL:    img.URL,
		Name:   img.Name,
		Label:  label,
		IsMain: img.IsMain,
	}, nil)
	if isStatus(err, http.StatusConflict) {
		return &ConflictError{Entity: domain.EntityImage, Name: img.Name}
	}
	return err
}

// SetPrice sets the SKU base price with zero markup.
func (c *Client) SetPrice(ctx context.Context, skuID int64, price float64, listPrice *float64) error {
	path := fmt.Sprintf("/pricing/prices/%d", skuID)
	return c.do(ctx, http.MethodPut, c.pricingURL, path, priceRequest{
		CostPrice: price,
		BasePrice: price,
		ListPrice: listPrice,
	}, nil)
}

// ListWarehouses returns the account's warehouses.
func (c *Client) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	var out []Warehouse
	if err := c.do(ctx, http.MethodGet, c.baseURL, "/api/logistics/pvt/configuration/warehouses", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetInventory sets the SKU quantity in one warehouse.
func (c *Client) SetInventory(ctx context.Context, skuID int64, warehouseID string, quantity int) error {
	path := fmt.Sprintf("/api/logistics/pvt/inventory/skus/%d/warehouses/%s", skuID, warehouseID)
	return c.do(ctx, http.MethodPut, c.baseURL, path, inventoryRequest{Quantity: quantity}, nil)
}

// SetProductSpecification writes a text specification value. The field is
// created in the configured group of the product's category when missing.
func (c *Client) SetProductSpecification(ctx context.Context, productID, categoryID int64, name, value string) error {
	fieldID, err := c.ensureField(ctx, categoryID, name)
	if err != nil {
		return err
	}
	path := fmt.Sprintf("/api/catalog/pvt/product/%d/specificationvalue", productID)
	return c.do(ctx, http.MethodPut, c.baseURL, path, specificationValueRequest{FieldID: fieldID, Text: value}, nil)
}

func (c *Client) ensureField(ctx context.Context, categoryID int64, name string) (int64, error) {
	key := fieldKey{category: categoryID, name: strings.ToLower(name)}
	if id, ok := c.fields[key]; ok {
		return id, nil
	}

	var existing []specificationField
	listPath := fmt.Sprintf("/api/catalog_system/pub/specification/field/listByCategoryId/%d", categoryID)
	if err := c.do(ctx, http.MethodGet, c.baseURL, listPath, nil, &existing); err != nil && !isStatus(err, http.StatusNotFound) {
		return 0, err
	}
	for _, f := range existing {
		c.fields[fieldKey{category: categoryID, name: strings.ToLower(f.Name)}] = f.FieldID
	}
	if id, ok := c.fields[key]; ok {
		return id, nil
	}

	groupID, err := c.ensureGroup(ctx, categoryID)
	if err != nil {
		return 0, err
	}

	var created idResponse
	err = c.do(ctx, http.MethodPost, c.baseURL, "/api/catalog/pvt/specification", specificationFieldRequest{
		FieldTypeID:        textFieldType,
		CategoryID:         categoryID,
		FieldGroupID:       groupID,
		Name:               name,
		IsFilter:           true,
		IsOnProductDetails: true,
		IsActive:           true,
	}, &created)
	if err != nil {
		return 0, fmt.Errorf("create specification field %q: %w", name, err)
	}
	c.fields[key] = created.ID
	return created.ID, nil
}

func (c *Client) ensureGroup(ctx context.Context, categoryID int64) (int64, error) {
	if id, ok := c.groups[categoryID]; ok {
		return id, nil
	}

	groupName := c.cfg.SpecificationGroup
	var groups []specificationGroup
	listPath := fmt.Sprintf("/api/catalog_system/pvt/specification/groupbycategory/%d", categoryID)
	if err := c.do(ctx, http.MethodGet, c.baseURL, listPath, nil, &groups); err != nil && !isStatus(err, http.StatusNotFound) {
		return 0, err
	}
	for _, g := range groups {
		if strings.EqualFold(g.Name, groupName) {
			c.groups[categoryID] = g.ID
			return g.ID, nil
		}
	}

	var created idResponse
	err := c.do(ctx, http.MethodPost, c.baseURL, "/api/catalog/pvt/specificationgroup",
		specificationGroup{CategoryID: categoryID, Name: groupName}, &created)
	if err != nil {
		return 0, fmt.Errorf("create specification group: %w", err)
	}
	c.groups[categoryID] = created.ID
	return created.ID, nil
}
