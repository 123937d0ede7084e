package buildingfile

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/kilianp07/buildopt/core/model"
)

// TimestepColumn is the header of the timestamp column of every CSV file.
const TimestepColumn = "timestep"

// ReadTable reads a CSV timeseries with a timestep column (RFC3339) and one
// numeric column per name. Empty cells take the value of blank, which lets
// bound files leave outputs unbounded.
func ReadTable(r io.Reader, blank float64) (*model.Table, error) {
	rows, err := gocsv.CSVToMaps(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty timeseries", model.ErrInvalidBuilding)
	}
	var cols []string
	for name := range rows[0] {
		if name != TimestepColumn {
			cols = append(cols, name)
		}
	}
	sort.Strings(cols)

	timesteps := make([]time.Time, len(rows))
	seen := make(map[int64]struct{}, len(rows))
	for i, row := range rows {
		raw, ok := row[TimestepColumn]
		if !ok {
			return nil, fmt.Errorf("%w: no %q column", model.ErrInvalidBuilding, TimestepColumn)
		}
		ts, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", model.ErrInvalidBuilding, i+1, err)
		}
		if _, dup := seen[ts.UnixNano()]; dup {
			return nil, fmt.Errorf("%w: row %d: duplicate timestep %s", model.ErrInvalidBuilding, i+1, raw)
		}
		seen[ts.UnixNano()] = struct{}{}
		timesteps[i] = ts
	}

	tbl := model.NewTable(timesteps, cols)
	for i, row := range rows {
		for j, name := range cols {
			v, err := parseValue(row[name], blank)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d, column %s: %v", model.ErrInvalidBuilding, i+1, name, err)
			}
			tbl.SetIndex(i, j, v)
		}
	}
	return tbl, nil
}

func parseValue(raw string, blank float64) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return blank, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) {
		return 0, fmt.Errorf("value is NaN")
	}
	return v, nil
}

// ReadTableFile reads the CSV timeseries at path.
func ReadTableFile(path string, blank float64) (*model.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := ReadTable(f, blank)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// PriceRow is one line of an electricity price file.
type PriceRow struct {
	Timestep string  `csv:"timestep"`
	Price    float64 `csv:"price"`
}

// ReadPrices reads an electricity price file with timestep and price
// columns into a single-column table.
func ReadPrices(path string) (*model.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var rows []*PriceRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	timesteps := make([]time.Time, len(rows))
	for i, r := range rows {
		ts, err := time.Parse(time.RFC3339, strings.TrimSpace(r.Timestep))
		if err != nil {
			return nil, fmt.Errorf("%s: %w: row %d: %v", path, model.ErrInvalidBuilding, i+1, err)
		}
		timesteps[i] = ts
	}
	tbl := model.NewTable(timesteps, []string{model.PriceColumn})
	for i, r := range rows {
		tbl.SetIndex(i, 0, r.Price)
	}
	return tbl, nil
}
