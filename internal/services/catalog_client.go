package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/c2c-marketplace/backend/internal/apperr"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Listing is the catalog snapshot of a product at the time of the request.
type Listing struct {
	ID       uuid.UUID       `json:"id"`
	SellerID uuid.UUID       `json:"seller_id"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
	Active   bool            `json:"active"`
}

// ListingCatalog resolves listings owned by the catalog service.
type ListingCatalog interface {
	GetListing(ctx context.Context, id uuid.UUID) (*Listing, error)
}

// CatalogClient communicates with the catalog service internal API.
type CatalogClient struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

func NewCatalogClient(baseURL string, log *zap.Logger) *CatalogClient {
	return &CatalogClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

func (c *CatalogClient) GetListing(ctx context.Context, id uuid.UUID) (*Listing, error) {
	url := fmt.Sprintf("%s/internal/listings/%s", c.baseURL, id)
	var l Listing
	status, err := doJSON(ctx, c.httpClient, http.MethodGet, url, nil, &l)
	if status == http.StatusNotFound {
		return nil, apperr.NotFound("listing_not_found", "listing not found")
	}
	if err != nil {
		c.log.Warn("catalog lookup failed", zap.String("product_id", id.String()), zap.Error(err))
		return nil, apperr.Wrap(err, apperr.CodeUnavailable, "catalog_unavailable", "catalog service unavailable")
	}
	l.Currency = strings.ToUpper(l.Currency)
	return &l, nil
}
