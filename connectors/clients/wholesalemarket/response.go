package wholesalemarket

import (
	"fmt"
	"sort"
	"time"

	"github.com/kilianp07/buildopt/connectors"
	"github.com/kilianp07/buildopt/core/model"
)

type Response struct {
	FrancePowerExchanges []struct {
		StartDate   string `json:"start_date"`
		EndDate     string `json:"end_date"`
		UpdatedDate string `json:"updated_date"`
		Values      []struct {
			StartDate string  `json:"start_date"`
			EndDate   string  `json:"end_date"`
			Value     float64 `json:"value"`
			Price     float64 `json:"price"`
		} `json:"values"`
	} `json:"france_power_exchanges"`
}

type interval struct {
	start, end time.Time
	price      float64
}

func (r *Response) intervals() ([]interval, error) {
	var out []interval
	for _, exchange := range r.FrancePowerExchanges {
		for _, v := range exchange.Values {
			start, err := time.Parse(time.RFC3339, v.StartDate)
			if err != nil {
				return nil, fmt.Errorf("failed to parse time: %w", err)
			}
			end, err := time.Parse(time.RFC3339, v.EndDate)
			if err != nil {
				return nil, fmt.Errorf("failed to parse time: %w", err)
			}
			out = append(out, interval{start: start, end: end, price: v.Price})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].start.Before(out[j].start) })
	return out, nil
}

// PriceTable maps every timestep to the price of the market interval
// containing it, converted from EUR/MWh to EUR/kWh.
func (r *Response) PriceTable(timesteps []time.Time) (*model.Table, error) {
	ivs, err := r.intervals()
	if err != nil {
		return nil, err
	}
	t := model.NewTable(timesteps, []string{model.PriceColumn})
	for i, ts := range timesteps {
		k := sort.Search(len(ivs), func(k int) bool { return ivs[k].end.After(ts) })
		if k == len(ivs) || ts.Before(ivs[k].start) {
			return nil, fmt.Errorf("%w %s", connectors.ErrNoPrice, ts.Format(time.RFC3339))
		}
		t.SetIndex(i, 0, ivs[k].price/1000)
	}
	return t, nil
}
