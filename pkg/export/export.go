// Package export renders strategy comparisons and daily cost records as CSV
// or JSON for spreadsheets and downstream tooling.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/kilianp07/smartcharge/core/metrics/cost"
	"github.com/kilianp07/smartcharge/simulator"
)

// WriteResultsJSON writes strategy results to w as a JSON array.
func WriteResultsJSON(w io.Writer, results []simulator.Result) error {
	enc := json.NewEncoder(w)
	return enc.Encode(results)
}

// WriteResultsCSV writes strategy results to w with a header row.
func WriteResultsCSV(w io.Writer, results []simulator.Result) error {
	cw := csv.NewWriter(w)
	header := []string{
		"strategy", "energy_kwh", "spot_cost_sek", "grid_cost_sek",
		"total_cost_sek", "avg_spot_sek", "hours_charged", "final_soc",
		"departures", "missed_targets",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range results {
		rec := []string{
			r.Strategy,
			formatFloat(r.EnergyKWh),
			formatFloat(r.SpotCostSEK),
			formatFloat(r.GridCostSEK),
			formatFloat(r.TotalCostSEK),
			formatFloat(r.AvgSpotSEK),
			strconv.Itoa(r.HoursCharged),
			strconv.Itoa(r.FinalSoC),
			strconv.Itoa(r.Departures),
			strconv.Itoa(r.MissedTargets),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteKPIJSON writes daily cost records to w as a JSON array.
func WriteKPIJSON(w io.Writer, recs []cost.Record) error {
	enc := json.NewEncoder(w)
	return enc.Encode(recs)
}

// WriteKPICSV writes daily cost records to w with a header row.
func WriteKPICSV(w io.Writer, recs []cost.Record) error {
	cw := csv.NewWriter(w)
	header := []string{
		"vehicle_id", "day", "sessions", "energy_kwh",
		"spot_cost_sek", "grid_cost_sek", "total_sek", "unit_cost_sek",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range recs {
		rec := []string{
			r.VehicleID,
			r.Date.Format("2006-01-02"),
			strconv.Itoa(r.Sessions),
			formatFloat(r.EnergyKWh),
			formatFloat(r.SpotCostSEK),
			formatFloat(r.GridCostSEK),
			formatFloat(r.TotalSEK()),
			formatFloat(r.UnitCostSEK()),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
