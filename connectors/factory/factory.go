package factory

import (
	"fmt"

	"github.com/kilianp07/buildopt/connectors"
	wholesalemarket "github.com/kilianp07/buildopt/connectors/clients/wholesalemarket"
	corefactory "github.com/kilianp07/buildopt/core/factory"
)

const (
	IDWholesaleMarket = "wholesale_market"
)

// NewPriceSource builds the price source selected by cfg.Type.
func NewPriceSource(cfg corefactory.ModuleConfig) (connectors.PriceSource, error) {
	switch cfg.Type {
	case IDWholesaleMarket:
		var c wholesalemarket.Config
		if err := corefactory.Decode(cfg.Conf, &c); err != nil {
			return nil, err
		}
		if c.Auth.AuthURL == "" {
			return nil, fmt.Errorf("%s requires auth.auth_url", IDWholesaleMarket)
		}
		return wholesalemarket.NewClient(c), nil
	default:
		return nil, fmt.Errorf("%w: price source %q", corefactory.ErrUnknownModule, cfg.Type)
	}
}
