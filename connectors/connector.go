package connectors

import (
	"context"
	"errors"
	"time"

	"github.com/kilianp07/buildopt/core/model"
)

// ErrNoPrice is returned when a source has no price for a timestep of the
// horizon.
var ErrNoPrice = errors.New("no price for timestep")

// PriceSource provides electricity prices, in currency per kWh, for every
// timestep of a horizon. The returned table has the single column
// model.PriceColumn.
type PriceSource interface {
	Prices(ctx context.Context, timesteps []time.Time) (*model.Table, error)
}
