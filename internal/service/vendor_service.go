package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/auth"
	"marketplace-service/internal/blob"
	"marketplace-service/internal/models"
	"marketplace-service/internal/util"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// MaxImageBytes caps a single product image upload
const MaxImageBytes = 5 << 20

// ProductInput carries the vendor-editable product fields
type ProductInput struct {
	Name          string          `json:"name" binding:"required"`
	Description   string          `json:"description"`
	Category      string          `json:"category"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	Images        []string        `json:"images"`
	IsActive      *bool           `json:"is_active"`
}

func (in ProductInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return apperr.New(apperr.KindInvalidInput, "product name is required")
	}
	if in.Price.IsNegative() {
		return apperr.New(apperr.KindInvalidInput, "price cannot be negative")
	}
	if in.StockQuantity < 0 {
		return apperr.New(apperr.KindInvalidInput, "stock cannot be negative")
	}
	return nil
}

func (in ProductInput) apply(p *models.Product) {
	p.Name = strings.TrimSpace(in.Name)
	p.Description = in.Description
	p.Category = in.Category
	p.Price = in.Price
	p.StockQuantity = in.StockQuantity
	p.Images = pq.StringArray(in.Images)
	if p.Images == nil {
		p.Images = pq.StringArray{}
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
}

// VendorService implements the vendor's own catalog and store profile operations.
// Every mutation passes the approval gate before it writes.
type VendorService struct {
	store  Store
	blobs  BlobStore
	views  *views
	gate   vendorGate
	logger *zap.Logger
}

// NewVendorService creates a new vendor service
func NewVendorService(d Deps) *VendorService {
	return &VendorService{
		store:  d.Store,
		blobs:  d.Blobs,
		views:  newViews(d.Cache, d.ViewTTL),
		gate:   vendorGate{profiles: d.Store},
		logger: util.GetLogger(),
	}
}

// Profile returns the caller's vendor profile. It is readable in every
// approval state so the dashboard can explain a block.
func (s *VendorService) Profile(ctx context.Context, sess *auth.Session) (*models.Profile, error) {
	return s.gate.profile(ctx, sess)
}

// ListProducts returns the caller's own products, active or not
func (s *VendorService) ListProducts(ctx context.Context, sess *auth.Session) ([]models.Product, error) {
	if _, err := s.gate.forRead(ctx, sess); err != nil {
		return nil, err
	}
	products, err := s.store.ListProductsByVendor(ctx, sess.UserID)
	if err != nil {
		return nil, apperr.Backend("failed to list products", err)
	}
	return products, nil
}

// CreateProduct adds a product to the caller's catalog
func (s *VendorService) CreateProduct(ctx context.Context, sess *auth.Session, in ProductInput) (*models.Product, error) {
	if _, err := s.gate.forMutation(ctx, sess); err != nil {
		return nil, err
	}
	ctx, span := util.StartSpan(ctx, "VendorService.CreateProduct", util.ActorAttrs(sess.UserID, string(sess.Role))...)
	defer span.End()

	if err := in.validate(); err != nil {
		return nil, err
	}

	p := &models.Product{ID: uuid.New().String(), VendorID: sess.UserID, IsActive: true}
	in.apply(p)
	if err := s.store.CreateProduct(ctx, p); err != nil {
		return nil, apperr.Backend("failed to create product", err)
	}

	s.logger.Info("Product created", zap.String("product_id", p.ID), zap.String("vendor_id", p.VendorID))
	s.views.invalidate(ctx, catalogChangedViews())
	return p, nil
}

// UpdateProduct rewrites one of the caller's products
func (s *VendorService) UpdateProduct(ctx context.Context, sess *auth.Session, productID string, in ProductInput) (*models.Product, error) {
	if _, err := s.gate.forMutation(ctx, sess); err != nil {
		return nil, err
	}
	ctx, span := util.StartSpan(ctx, "VendorService.UpdateProduct", append(
		util.ActorAttrs(sess.UserID, string(sess.Role)),
		attribute.String("product_id", productID))...)
	defer span.End()

	if err := in.validate(); err != nil {
		return nil, err
	}

	p, err := s.ownProduct(ctx, sess, productID)
	if err != nil {
		return nil, err
	}
	in.apply(p)
	if err := s.store.UpdateProduct(ctx, p); err != nil {
		return nil, apperr.Backend("failed to update product", err)
	}

	s.views.invalidate(ctx, catalogChangedViews())
	return p, nil
}

// ToggleProductActive flips whether customers can see the product
func (s *VendorService) ToggleProductActive(ctx context.Context, sess *auth.Session, productID string) (*models.Product, error) {
	if _, err := s.gate.forMutation(ctx, sess); err != nil {
		return nil, err
	}

	p, err := s.ownProduct(ctx, sess, productID)
	if err != nil {
		return nil, err
	}
	p.IsActive = !p.IsActive
	if err := s.store.UpdateProduct(ctx, p); err != nil {
		return nil, apperr.Backend("failed to update product", err)
	}

	s.views.invalidate(ctx, catalogChangedViews())
	return p, nil
}

// DeleteProduct removes one of the caller's products. Placed orders keep
// their item snapshots.
func (s *VendorService) DeleteProduct(ctx context.Context, sess *auth.Session, productID string) error {
	if _, err := s.gate.forMutation(ctx, sess); err != nil {
		return err
	}
	if err := s.store.DeleteProduct(ctx, productID, sess.UserID); err != nil {
		return apperr.Backend("failed to delete product", err)
	}

	s.logger.Info("Product deleted", zap.String("product_id", productID), zap.String("vendor_id", sess.UserID))
	s.views.invalidate(ctx, catalogChangedViews())
	return nil
}

func (s *VendorService) ownProduct(ctx context.Context, sess *auth.Session, productID string) (*models.Product, error) {
	p, err := s.store.GetProductByID(ctx, productID)
	if err != nil {
		return nil, apperr.Backend("failed to load product", err)
	}
	if p.VendorID != sess.UserID {
		return nil, apperr.NotFound("product", productID)
	}
	return p, nil
}

// UpdateStoreProfile changes the caller's store details
func (s *VendorService) UpdateStoreProfile(ctx context.Context, sess *auth.Session, upd models.StoreProfileUpdate) (*models.Profile, error) {
	if _, err := s.gate.forMutation(ctx, sess); err != nil {
		return nil, err
	}
	if strings.TrimSpace(upd.FullName) == "" || strings.TrimSpace(upd.StoreName) == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "full name and store name are required")
	}

	p, err := s.store.UpdateStoreProfile(ctx, sess.UserID, upd)
	if err != nil {
		return nil, apperr.Backend("failed to update store profile", err)
	}
	s.views.invalidate(ctx, storeProfileChangedViews(sess.UserID))
	return p, nil
}

// UploadProductImage stores an image under the caller's prefix and returns its public URL
func (s *VendorService) UploadProductImage(ctx context.Context, sess *auth.Session, fileName string, data []byte) (string, error) {
	if _, err := s.gate.forMutation(ctx, sess); err != nil {
		return "", err
	}
	if s.blobs == nil {
		return "", apperr.Backend("failed to upload image", errors.New("no blob store configured"))
	}
	if len(data) == 0 {
		return "", apperr.New(apperr.KindInvalidInput, "empty image")
	}
	if len(data) > MaxImageBytes {
		return "", apperr.New(apperr.KindInvalidInput, "image exceeds %d bytes", MaxImageBytes)
	}

	path, err := blob.ProductImagePath(sess.UserID, fileName, time.Now())
	if err != nil {
		return "", err
	}
	if err := s.blobs.Upload(ctx, path, data); err != nil {
		return "", apperr.Backend("failed to upload image", err)
	}
	return s.blobs.PublicURL(path), nil
}
