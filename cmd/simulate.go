package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/smartcharge/core/engine"
	"github.com/kilianp07/smartcharge/core/forecast"
	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/core/target"
	"github.com/kilianp07/smartcharge/pkg/export"
	"github.com/kilianp07/smartcharge/qa/scenarios"
	"github.com/kilianp07/smartcharge/simulator"
)

var (
	simScenario string
	simDays     int
	simSeed     int64
	simFormat   string
	simOut      string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Compare charging strategies over a scenario",
	RunE:  runSimulate,
}

func init() {
	simulateCmd.Flags().StringVar(&simScenario, "scenario", "", "scenario yaml, synthetic market when empty")
	simulateCmd.Flags().IntVar(&simDays, "days", 14, "days to replay without a scenario file")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 1, "price generator seed")
	simulateCmd.Flags().StringVar(&simFormat, "format", "table", "output format: table, csv or json")
	simulateCmd.Flags().StringVar(&simOut, "out", "", "write to a file instead of stdout")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	sc, err := buildScenario()
	if err != nil {
		return err
	}
	eng, err := engine.New(engine.Config{}, forecast.New(forecast.Config{}), target.New(target.Config{}))
	if err != nil {
		return err
	}
	results, err := simulator.Compare(sc,
		simulator.Smart{Engine: eng},
		simulator.Dumb{},
		simulator.Night{From: model.ClockTime{Hour: 22}, To: model.ClockTime{Hour: 6}},
	)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if simOut != "" {
		f, err := os.Create(simOut)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := f.Close(); cerr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "close %s: %v\n", simOut, cerr)
			}
		}()
		out = f
	}

	switch simFormat {
	case "table":
		return printResults(out, results)
	case "csv":
		return export.WriteResultsCSV(out, results)
	case "json":
		return export.WriteResultsJSON(out, results)
	default:
		return fmt.Errorf("unknown format %q", simFormat)
	}
}

func buildScenario() (simulator.Scenario, error) {
	if simScenario != "" {
		def, err := scenarios.Load(simScenario)
		if err != nil {
			return simulator.Scenario{}, err
		}
		return def.Build()
	}

	now := time.Now()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	genStart := day.AddDate(0, 0, -1)
	hours := (simDays + 2) * 24
	gen := simulator.NewGenerator(simulator.GeneratorConfig{Seed: simSeed})

	return simulator.Scenario{
		Vehicle: model.VehicleState{
			ID:          "sim",
			SoC:         50,
			CapacityKWh: 60,
			MaxChargeKW: 11,
			TargetSoC:   80,
			MinSoC:      60,
			MaxSoC:      90,
			Departure:   model.ClockTime{Hour: 7, Minute: 30},
		},
		Prices:      gen.Prices(genStart, hours),
		Weather:     gen.Weather(genStart, hours),
		Start:       day.Add(18 * time.Hour),
		Hours:       simDays * 24,
		ArrivalHour: 17,
		DriveKWh:    8,
	}, nil
}

func printResults(w io.Writer, results []simulator.Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STRATEGY\tENERGY kWh\tSPOT SEK\tGRID SEK\tTOTAL SEK\tAVG SEK/kWh\tHOURS\tFINAL SoC\tMISSED")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%.1f\t%.2f\t%.2f\t%.2f\t%.3f\t%d\t%d%%\t%d\n",
			r.Strategy, r.EnergyKWh, r.SpotCostSEK, r.GridCostSEK, r.TotalCostSEK,
			r.AvgSpotSEK, r.HoursCharged, r.FinalSoC, r.MissedTargets)
	}
	return tw.Flush()
}
