// Package costkpi turns stored charging sessions into daily cost records.
package costkpi

import (
	"github.com/kilianp07/smartcharge/core/metrics/cost"
	"github.com/kilianp07/smartcharge/core/model"
)

// Backfill folds historical sessions into the store, one record per session,
// aggregated by the store per vehicle and day. Sessions still open are
// skipped: their costs are not final.
func Backfill(store cost.Store, sessions []model.ChargingSession) error {
	for _, s := range sessions {
		if s.Active {
			continue
		}
		rec := cost.Record{
			VehicleID:   s.VehicleID,
			Date:        cost.Day(s.StartedAt),
			EnergyKWh:   s.EnergyKWh,
			SpotCostSEK: s.SpotCostSEK,
			GridCostSEK: s.GridCostSEK,
			Sessions:    1,
		}
		if err := store.Add(rec); err != nil {
			return err
		}
	}
	return nil
}
