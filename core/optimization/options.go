package optimization

import (
	"errors"
	"time"

	"github.com/kilianp07/buildopt/core/logger"
	"github.com/kilianp07/buildopt/core/model"
)

var (
	// ErrMissingParameter is returned when a problem kind lacks a required
	// parameter.
	ErrMissingParameter = errors.New("missing problem parameter")
	// ErrInvalidParameter is returned for parameters with unusable values.
	ErrInvalidParameter = errors.New("invalid problem parameter")
)

// DefaultStorageBigM bounds the storage size when storage exists. It must
// exceed every feasible storage size in the building's units (m3 for
// sensible storage, J for batteries).
const DefaultStorageBigM = 1.0e9

// DefaultAnnualizationMultiplier scales the annualized operation cost of
// storage planning problems.
const DefaultAnnualizationMultiplier = 1.0

// LoadReduction parameterizes KindLoadReduction.
type LoadReduction struct {
	// Start and End delimit the window [Start, End).
	Start time.Time
	End   time.Time
	// Reference holds the electric demand outputs to reduce against.
	Reference *model.Table
	// Target, when set, fixes the reduction in percent instead of
	// maximizing it.
	Target *float64
}

// PriceSensitivity parameterizes KindPriceSensitivity.
type PriceSensitivity struct {
	Factor   float64
	Timestep time.Time
}

// Planning tunes the storage planning problem kinds.
type Planning struct {
	// StorageBigM is the constant of storage_size <= storage_exists * M.
	// Zero selects DefaultStorageBigM.
	StorageBigM float64 `json:"storage_big_m"`
	// AnnualizationMultiplier multiplies the annualized operation cost, e.g.
	// by the number of identical floors a single-floor model stands for.
	// Zero selects DefaultAnnualizationMultiplier.
	AnnualizationMultiplier float64 `json:"annualization_multiplier"`
}

func (p Planning) withDefaults() Planning {
	if p.StorageBigM == 0 {
		p.StorageBigM = DefaultStorageBigM
	}
	if p.AnnualizationMultiplier == 0 {
		p.AnnualizationMultiplier = DefaultAnnualizationMultiplier
	}
	return p
}

// Options carries the kind-specific parameters of a problem.
type Options struct {
	LoadReduction    *LoadReduction
	PriceSensitivity *PriceSensitivity
	Planning         Planning
	Logger           logger.Logger
}
