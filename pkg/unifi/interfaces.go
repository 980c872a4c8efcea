// Package unifi pkg/unifi/interfaces.go

//go:generate mockgen -destination=mock_unifi.go -package=unifi github.com/unifitools/wifistalker/pkg/unifi ClientFetcher

package unifi

import (
	"context"

	"github.com/unifitools/wifistalker/pkg/models"
)

// ClientFetcher is the capability the polling pipeline consumes: the
// current attached-client list for one site. Implementations own their
// authentication and session handling; failures surface as error values.
type ClientFetcher interface {
	FetchClients(ctx context.Context, siteID string) ([]models.ClientSnapshot, error)
}
