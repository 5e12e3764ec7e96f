package wikiai

import (
	"context"
	"net/http"

	"github.com/wikiai/kbclient/pkg/client"
	"github.com/wikiai/kbclient/pkg/types"
)

// OpenCartService drives the OpenCart shop integration.
type OpenCartService struct {
	s *Service
}

// ImportProducts pulls the shop's products into a catalog.
func (o *OpenCartService) ImportProducts(ctx context.Context, token, catalogID string) (*types.Envelope, error) {
	return doEnvelope(ctx, o.s, client.Request{
		URL:    "/opencart/products/import",
		Method: http.MethodPost,
		Token:  token,
		Body:   map[string]string{"catalog_id": catalogID},
	})
}
