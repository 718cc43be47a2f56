package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"retail-order-service/internal/models"
	"retail-order-service/internal/store"
	"retail-order-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductService manages the shared catalog
type ProductService struct {
	repo    store.Repository
	catalog CatalogCache
	logger  *zap.Logger
}

// NewProductService creates a new product service. catalog may be nil.
func NewProductService(repo store.Repository, catalog CatalogCache) *ProductService {
	return &ProductService{
		repo:    repo,
		catalog: catalog,
		logger:  util.GetLogger(),
	}
}

// ProductInput is a new catalog entry. Price and StockQuantity are pointers
// so that a missing value can be told apart from zero.
type ProductInput struct {
	ProductID     int64
	ProductName   string
	BrandName     string
	Category      string
	Price         *decimal.Decimal
	StockQuantity *int
	Barcode       string
	Unit          string
	ProductUnit   string
	Language      string
	ExpiryDate    *time.Time
}

var duplicateLabels = map[string]string{
	"product_id":   "Product ID",
	"product_name": "Product Name",
	"barcode":      "Barcode",
}

// AddProduct validates and stores a new product
func (s *ProductService) AddProduct(ctx context.Context, in *ProductInput) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.AddProduct")
	defer span.End()

	in.ProductName = strings.TrimSpace(in.ProductName)
	in.Barcode = strings.TrimSpace(in.Barcode)
	if in.Language == "" {
		in.Language = models.LanguageEnglish
	}
	if err := validateProductInput(in); err != nil {
		return nil, err
	}

	conflicts, err := s.repo.FindProductConflicts(ctx, in.ProductID, in.ProductName, in.Barcode)
	if err != nil {
		return nil, unexpected("Error adding product", err)
	}
	if len(conflicts) > 0 {
		return nil, duplicateProductError(in, conflicts)
	}

	product := &models.Product{
		ProductID:     in.ProductID,
		ProductName:   in.ProductName,
		BrandName:     in.BrandName,
		Category:      in.Category,
		Price:         *in.Price,
		StockQuantity: *in.StockQuantity,
		Barcode:       in.Barcode,
		Unit:          in.Unit,
		ProductUnit:   in.ProductUnit,
		Language:      in.Language,
		ExpiryDate:    in.ExpiryDate,
	}
	if err := s.repo.CreateProduct(ctx, product); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, newError(KindConflict, CodeDuplicateProduct, "Duplicate product_id, product_name, or barcode found.")
		}
		return nil, unexpected("Error adding product", err)
	}

	s.logger.Info("Product added",
		zap.Int64("product_id", product.ProductID),
		zap.Int("stock_quantity", product.StockQuantity))
	s.invalidate(ctx)
	return product, nil
}

func validateProductInput(in *ProductInput) *Error {
	var missing []string
	if in.ProductID <= 0 {
		missing = append(missing, "product_id")
	}
	for _, f := range []struct{ name, value string }{
		{"product_name", in.ProductName},
		{"brand_name", in.BrandName},
		{"category", in.Category},
		{"barcode", in.Barcode},
		{"unit", in.Unit},
		{"product_unit", in.ProductUnit},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if in.Price == nil {
		missing = append(missing, "price")
	}
	if in.StockQuantity == nil {
		missing = append(missing, "stock_quantity")
	}
	if len(missing) > 0 {
		return validationError(CodeInvalidInput,
			"Missing required fields in product data: "+strings.Join(missing, ", "))
	}

	if !in.Price.IsPositive() {
		return validationError(CodeInvalidInput, "Price must be greater than 0")
	}
	if *in.StockQuantity < 0 {
		return validationError(CodeInvalidInput, "Stock quantity cannot be negative")
	}
	if !validLanguage(in.Language) {
		return validationError(CodeInvalidInput, "Language must be English or Tamil")
	}
	return nil
}

func validLanguage(lang string) bool {
	return lang == models.LanguageEnglish || lang == models.LanguageTamil
}

// duplicateProductError names every field of in that collides with an existing product
func duplicateProductError(in *ProductInput, conflicts []models.Product) *Error {
	var idHit, nameHit, barcodeHit bool
	for _, p := range conflicts {
		idHit = idHit || p.ProductID == in.ProductID
		nameHit = nameHit || p.ProductName == in.ProductName
		barcodeHit = barcodeHit || p.Barcode == in.Barcode
	}

	var fields []string
	if idHit {
		fields = append(fields, duplicateLabels["product_id"])
	}
	if nameHit {
		fields = append(fields, duplicateLabels["product_name"])
	}
	if barcodeHit {
		fields = append(fields, duplicateLabels["barcode"])
	}
	return newError(KindConflict, CodeDuplicateProduct,
		fmt.Sprintf("Duplicate %s already exists.", strings.Join(fields, ", ")))
}

// ListProducts returns the catalog ordered by product id
func (s *ProductService) ListProducts(ctx context.Context) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.ListProducts")
	defer span.End()

	var version int64
	cacheable := false
	if s.catalog != nil {
		products, v, ok, err := s.catalog.GetProducts(ctx)
		switch {
		case err != nil:
			s.logger.Warn("Catalog cache read failed", zap.Error(err))
		case ok:
			return products, nil
		default:
			version, cacheable = v, true
		}
	}

	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, unexpected("Error fetching products", err)
	}

	if cacheable {
		if err := s.catalog.SetProducts(ctx, version, products); err != nil {
			s.logger.Warn("Catalog cache write failed", zap.Error(err))
		}
	}
	return products, nil
}

// GetProduct retrieves a product by id
func (s *ProductService) GetProduct(ctx context.Context, productID int64) (*models.Product, error) {
	product, err := s.repo.GetProduct(ctx, productID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(KindNotFound, CodeProductNotFound, "Product not found")
	}
	if err != nil {
		return nil, unexpected("Error fetching product", err)
	}
	return product, nil
}

// UpdateProduct applies a partial update. The product id cannot change.
func (s *ProductService) UpdateProduct(ctx context.Context, productID int64, patch *models.ProductPatch) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.UpdateProduct")
	defer span.End()

	if err := validatePatch(patch); err != nil {
		return nil, err
	}

	product, err := s.repo.UpdateProduct(ctx, productID, patch)
	if err != nil {
		var dup *store.DuplicateError
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, newError(KindNotFound, CodeProductNotFound, "Product not found")
		case errors.As(err, &dup):
			return nil, newError(KindConflict, CodeDuplicateProduct,
				fmt.Sprintf("Duplicate %s already exists.", labelFor(dup.Field)))
		default:
			return nil, unexpected("Error updating product", err)
		}
	}

	s.logger.Info("Product updated", zap.Int64("product_id", productID))
	s.invalidate(ctx)
	return product, nil
}

func validatePatch(patch *models.ProductPatch) *Error {
	if patch.Price != nil && patch.Price.IsNegative() {
		return validationError(CodeInvalidInput, "Price cannot be negative")
	}
	if patch.StockQuantity != nil && *patch.StockQuantity < 0 {
		return validationError(CodeInvalidInput, "Stock quantity cannot be negative")
	}
	if patch.Language != nil && !validLanguage(*patch.Language) {
		return validationError(CodeInvalidInput, "Language must be English or Tamil")
	}
	if patch.ProductName != nil && strings.TrimSpace(*patch.ProductName) == "" {
		return validationError(CodeInvalidInput, "Product name cannot be empty")
	}
	if patch.Barcode != nil && strings.TrimSpace(*patch.Barcode) == "" {
		return validationError(CodeInvalidInput, "Barcode cannot be empty")
	}
	return nil
}

func labelFor(field string) string {
	if label, ok := duplicateLabels[field]; ok {
		return label
	}
	return field
}

// DeleteProduct removes a product from the catalog
func (s *ProductService) DeleteProduct(ctx context.Context, productID int64) error {
	ctx, span := util.StartSpan(ctx, "ProductService.DeleteProduct")
	defer span.End()

	err := s.repo.DeleteProduct(ctx, productID)
	if errors.Is(err, store.ErrNotFound) {
		return newError(KindNotFound, CodeProductNotFound, "Product not found")
	}
	if err != nil {
		return unexpected("Error deleting product", err)
	}

	s.logger.Info("Product deleted", zap.Int64("product_id", productID))
	s.invalidate(ctx)
	return nil
}

func (s *ProductService) invalidate(ctx context.Context) {
	if s.catalog == nil {
		return
	}
	if err := s.catalog.InvalidateProducts(ctx); err != nil {
		s.logger.Warn("Failed to invalidate catalog cache", zap.Error(err))
	}
}
