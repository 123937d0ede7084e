package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/kilianp07/buildopt/core/model"
	"github.com/kilianp07/buildopt/core/optimization"
)

// Summary is the JSON form of the scalar results of a run.
type Summary struct {
	RunID      string `json:"run_id"`
	Kind       string `json:"problem_type"`
	Status     string `json:"status"`
	Diagnostic string `json:"diagnostic,omitempty"`

	OperationCost  float64 `json:"operation_cost"`
	InvestmentCost float64 `json:"investment_cost"`
	Objective      float64 `json:"objective"`

	StorageSize      *float64 `json:"storage_size,omitempty"`
	StoragePeakPower *float64 `json:"storage_peak_power,omitempty"`
	StorageExists    *float64 `json:"storage_exists,omitempty"`
	LoadReduction    *float64 `json:"load_reduction,omitempty"`

	MissingValues  int     `json:"missing_values"`
	SetupSeconds   float64 `json:"setup_seconds"`
	SolveSeconds   float64 `json:"solve_seconds"`
	ExtractSeconds float64 `json:"extract_seconds"`
}

// NewSummary collects the scalars of res.
func NewSummary(res *optimization.Result) Summary {
	return Summary{
		RunID:            res.RunID.String(),
		Kind:             res.Kind.String(),
		Status:           res.Status.String(),
		Diagnostic:       res.Diagnostic,
		OperationCost:    res.OperationCost,
		InvestmentCost:   res.InvestmentCost,
		Objective:        res.Objective,
		StorageSize:      res.StorageSize,
		StoragePeakPower: res.StoragePeakPower,
		StorageExists:    res.StorageExists,
		LoadReduction:    res.LoadReduction,
		MissingValues:    res.MissingValues,
		SetupSeconds:     res.SetupDuration.Seconds(),
		SolveSeconds:     res.SolveDuration.Seconds(),
		ExtractSeconds:   res.ExtractDuration.Seconds(),
	}
}

// WriteResultJSON writes the result summary to w in JSON format.
func WriteResultJSON(w io.Writer, res *optimization.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewSummary(res))
}

// WriteTableCSV writes t to w with a leading timestep column in RFC3339.
func WriteTableCSV(w io.Writer, t *model.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"timestep"}, t.Columns...)); err != nil {
		return err
	}
	rec := make([]string, len(t.Columns)+1)
	for i, ts := range t.Timesteps {
		rec[0] = ts.Format(time.RFC3339)
		for j := range t.Columns {
			rec[j+1] = strconv.FormatFloat(t.AtIndex(i, j), 'g', -1, 64)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteResultDir writes controls.csv, states.csv, outputs.csv, an
// outputs.html chart and summary.json into dir, creating it if needed.
// Tables are skipped for non-optimal results.
func WriteResultDir(dir string, res *optimization.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, f := range []struct {
		name  string
		table *model.Table
	}{
		{"controls.csv", res.Controls},
		{"states.csv", res.States},
		{"outputs.csv", res.Outputs},
	} {
		if f.table == nil {
			continue
		}
		if err := writeFile(filepath.Join(dir, f.name), func(w io.Writer) error {
			return WriteTableCSV(w, f.table)
		}); err != nil {
			return err
		}
	}
	if res.Outputs != nil {
		title := fmt.Sprintf("%s outputs", res.Kind)
		if err := writeFile(filepath.Join(dir, "outputs.html"), func(w io.Writer) error {
			return WriteChartHTML(w, title, res.Outputs)
		}); err != nil {
			return err
		}
	}
	return writeFile(filepath.Join(dir, "summary.json"), func(w io.Writer) error {
		return WriteResultJSON(w, res)
	})
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if err := write(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
