package store

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kilianp07/smartcharge/core/model"
)

// histRecord is one line of the history file. Exactly one payload field is
// set, selected by Kind.
type histRecord struct {
	Kind     string                 `json:"kind"` // decision, session, price
	At       time.Time              `json:"at"`
	Decision *model.Decision        `json:"decision,omitempty"`
	Session  *model.ChargingSession `json:"session,omitempty"`
	Price    *model.PricePoint      `json:"price,omitempty"`
}

// JSONLHistory records history as JSON lines with automatic file rotation.
// Queries scan the active file plus its rotated siblings, which keeps the
// implementation trivial at the data volumes one charger produces.
type JSONLHistory struct {
	mu     sync.Mutex
	writer *lumberjack.Logger
	path   string
}

// NewJSONLHistory creates the store with rotation limits in megabytes and
// days.
func NewJSONLHistory(path string, maxSizeMB, maxBackups, maxAgeDays int) (*JSONLHistory, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &JSONLHistory{
		writer: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
		},
		path: path,
	}, nil
}

func (h *JSONLHistory) append(rec histRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return json.NewEncoder(h.writer).Encode(rec)
}

// scan walks every history file and hands each record to fn.
func (h *JSONLHistory) scan(fn func(histRecord)) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	files, err := filepath.Glob(h.path + "*")
	if err != nil {
		return err
	}
	for _, name := range files {
		f, err := os.Open(name)
		if err != nil {
			continue
		}
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			var rec histRecord
			if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
				continue
			}
			fn(rec)
		}
		_ = f.Close()
	}
	return nil
}

func (h *JSONLHistory) AppendDecision(ctx context.Context, d model.Decision) error {
	return h.append(histRecord{Kind: "decision", At: d.ComputedAt, Decision: &d})
}

func (h *JSONLHistory) Decisions(ctx context.Context, vehicleID string, from, to time.Time, limit int) ([]model.Decision, error) {
	var res []model.Decision
	err := h.scan(func(rec histRecord) {
		if rec.Kind != "decision" || rec.Decision == nil {
			return
		}
		d := *rec.Decision
		if vehicleID != "" && d.VehicleID != vehicleID {
			return
		}
		if !from.IsZero() && d.ComputedAt.Before(from) {
			return
		}
		if !to.IsZero() && d.ComputedAt.After(to) {
			return
		}
		res = append(res, d)
	})
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(res) > limit {
		res = res[len(res)-limit:]
	}
	return res, nil
}

func (h *JSONLHistory) AppendSession(ctx context.Context, s model.ChargingSession) error {
	return h.append(histRecord{Kind: "session", At: s.StartedAt, Session: &s})
}

func (h *JSONLHistory) Sessions(ctx context.Context, from, to time.Time) ([]model.ChargingSession, error) {
	var res []model.ChargingSession
	err := h.scan(func(rec histRecord) {
		if rec.Kind != "session" || rec.Session == nil {
			return
		}
		s := *rec.Session
		if !from.IsZero() && s.StartedAt.Before(from) {
			return
		}
		if !to.IsZero() && s.StartedAt.After(to) {
			return
		}
		res = append(res, s)
	})
	return res, err
}

func (h *JSONLHistory) AppendPrices(ctx context.Context, points model.PriceSeries) error {
	for _, p := range points {
		point := p
		if err := h.append(histRecord{Kind: "price", At: p.Timestamp, Price: &point}); err != nil {
			return err
		}
	}
	return nil
}

func (h *JSONLHistory) Prices(ctx context.Context, from, to time.Time) (model.PriceSeries, error) {
	byHour := map[time.Time]model.PricePoint{}
	err := h.scan(func(rec histRecord) {
		if rec.Kind != "price" || rec.Price == nil {
			return
		}
		p := *rec.Price
		if p.Timestamp.Before(from) || !p.Timestamp.Before(to) {
			return
		}
		// Confirmed beats forecasted for the same hour.
		if prev, ok := byHour[p.Timestamp]; ok && !prev.IsForecasted {
			return
		}
		byHour[p.Timestamp] = p
	})
	if err != nil {
		return nil, err
	}
	res := make(model.PriceSeries, 0, len(byHour))
	for _, p := range byHour {
		res = append(res, p)
	}
	res.Sort()
	return res, nil
}

// Prune is satisfied by lumberjack's age-based rotation; explicit record
// deletion inside a live file is not supported.
func (h *JSONLHistory) Prune(ctx context.Context, olderThan time.Time) error { return nil }

func (h *JSONLHistory) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	_ = h.writer.Close()
}
