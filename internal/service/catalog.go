package service

import (
	"context"
	"strings"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/models"
	"marketplace-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
)

// CatalogService answers public product queries
type CatalogService struct {
	store CatalogStore
	views *views
}

// NewCatalogService creates a new catalog service
func NewCatalogService(d Deps) *CatalogService {
	return &CatalogService{store: d.Store, views: newViews(d.Cache, d.ViewTTL)}
}

// ListProducts returns visible products, newest first. Category "All" or
// empty means every category; search matches the name case-insensitively.
func (s *CatalogService) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListProducts",
		attribute.String("category", filter.Category))
	defer span.End()

	filter.Search = strings.TrimSpace(filter.Search)
	if strings.EqualFold(filter.Category, "all") {
		filter.Category = ""
	}

	return cachedView(ctx, s.views, publicProductsView(filter), func(ctx context.Context) ([]models.Product, error) {
		products, err := s.store.ListVisibleProducts(ctx, filter)
		if err != nil {
			return nil, apperr.Backend("failed to list products", err)
		}
		return products, nil
	})
}

// GetProduct returns a single visible product
func (s *CatalogService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.GetProduct", attribute.String("product_id", id))
	defer span.End()

	p, err := s.store.GetVisibleProduct(ctx, id)
	if err != nil {
		return nil, apperr.Backend("failed to load product", err)
	}
	return p, nil
}
