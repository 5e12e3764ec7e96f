package wikiai

import (
	"context"
	"net/http"

	"github.com/wikiai/kbclient/pkg/client"
	"github.com/wikiai/kbclient/pkg/types"
)

// CatalogsService manages product catalogs and their search.
type CatalogsService struct {
	s *Service
}

// Catalog is one product catalog.
type Catalog struct {
	CatalogID     string `json:"catalog_id"`
	ShopName      string `json:"shop_name"`
	TotalProducts int    `json:"total_products"`
}

// Product is one catalog search result.
type Product struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	Price        float64 `json:"price"`
	SpecialPrice float64 `json:"special_price,omitempty"`
	Image        string  `json:"image,omitempty"`
	URL          string  `json:"url,omitempty"`
	Quantity     int     `json:"quantity,omitempty"`
	ShopName     string  `json:"shop_name,omitempty"`
	Score        float64 `json:"score,omitempty"`
}

// List returns the catalogs visible to the token.
func (c *CatalogsService) List(ctx context.Context, token string) ([]Catalog, error) {
	result, err := do[struct {
		Catalogs []Catalog `json:"catalogs"`
	}](ctx, c.s, client.Request{URL: "/catalogs", Token: token})
	if err != nil {
		return nil, err
	}
	return result.Catalogs, nil
}

// Create registers a new catalog.
func (c *CatalogsService) Create(ctx context.Context, token, name string) (*Catalog, error) {
	return do[Catalog](ctx, c.s, client.Request{
		URL:    "/catalogs/create",
		Method: http.MethodPost,
		Token:  token,
		Body:   map[string]string{"name": name},
	})
}

// Search runs a product search within a catalog.
func (c *CatalogsService) Search(ctx context.Context, token, catalogID, query string) ([]Product, error) {
	result, err := do[struct {
		Products []Product `json:"products"`
	}](ctx, c.s, client.Request{
		URL:    "/catalogs/" + catalogID + "/search",
		Token:  token,
		Params: map[string]string{"query": query},
	})
	if err != nil {
		return nil, err
	}
	return result.Products, nil
}

// Delete removes a catalog.
func (c *CatalogsService) Delete(ctx context.Context, token, catalogID string) (*types.Envelope, error) {
	return doEnvelope(ctx, c.s, client.Request{
		URL:    "/catalogs/" + catalogID,
		Method: http.MethodDelete,
		Token:  token,
	})
}
