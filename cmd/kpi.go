package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/smartcharge/core/metrics/cost"
	"github.com/kilianp07/smartcharge/infra/logger"
	"github.com/kilianp07/smartcharge/infra/store"
	"github.com/kilianp07/smartcharge/jobs/costkpi"
	"github.com/kilianp07/smartcharge/pkg/export"
)

var (
	kpiDays    int
	kpiVehicle string
	kpiFormat  string
)

var kpiCmd = &cobra.Command{
	Use:   "kpi",
	Short: "Charging cost KPI commands",
}

var kpiBackfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Aggregate stored charging sessions into daily cost records",
	RunE:  runKPIBackfill,
}

func init() {
	kpiBackfillCmd.Flags().IntVar(&kpiDays, "days", 30, "how many days of history to read")
	kpiBackfillCmd.Flags().StringVar(&kpiVehicle, "vehicle", "", "vehicle id, empty for all")
	kpiBackfillCmd.Flags().StringVar(&kpiFormat, "format", "csv", "output format: csv or json")
	kpiCmd.AddCommand(kpiBackfillCmd)
	rootCmd.AddCommand(kpiCmd)
}

func runKPIBackfill(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	stores := store.New(ctx, cfg.Store, cfg.History, logger.New("kpi-backfill"))
	defer stores.Close()

	to := time.Now()
	from := to.AddDate(0, 0, -kpiDays)
	sessions, err := stores.History.Sessions(ctx, from, to)
	if err != nil {
		return fmt.Errorf("read sessions: %w", err)
	}

	mem := cost.NewMemoryStore()
	if err := costkpi.Backfill(mem, sessions); err != nil {
		return err
	}

	ids := make(map[string]bool)
	for _, s := range sessions {
		if kpiVehicle == "" || s.VehicleID == kpiVehicle {
			ids[s.VehicleID] = true
		}
	}
	ordered := make([]string, 0, len(ids))
	for id := range ids {
		ordered = append(ordered, id)
	}
	sort.Strings(ordered)

	var recs []cost.Record
	for _, id := range ordered {
		r, err := mem.Query(id, from, to)
		if err != nil {
			return err
		}
		recs = append(recs, r...)
	}

	switch kpiFormat {
	case "csv":
		return export.WriteKPICSV(cmd.OutOrStdout(), recs)
	case "json":
		return export.WriteKPIJSON(cmd.OutOrStdout(), recs)
	default:
		return fmt.Errorf("unknown format %q", kpiFormat)
	}
}
