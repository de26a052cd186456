package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/kilianp07/smartcharge/core/model"
)

// ValkeyStore persists overrides, decisions and settings in a
// Valkey-compatible database so they survive restarts of the decision loop.
type ValkeyStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyStore constructs a store on an existing client.
func NewValkeyStore(client valkey.Client, prefix string) *ValkeyStore {
	if prefix == "" {
		prefix = "smartcharge"
	}
	return &ValkeyStore{client: client, prefix: prefix}
}

// Put stores the override keyed by vehicle. The key expires with the
// override so lapsed commands clean themselves up.
func (s *ValkeyStore) Put(ctx context.Context, o model.ManualOverride) error {
	payload, err := json.Marshal(o)
	if err != nil {
		return err
	}
	builder := s.client.B().Set().Key(s.key("override", o.VehicleID)).Value(string(payload))
	ttl := time.Until(o.ExpiresAt)
	if ttl > 0 {
		if ttl < time.Second {
			ttl = time.Second
		}
		return s.client.Do(ctx, builder.Ex(ttl).Build()).Error()
	}
	return s.client.Do(ctx, builder.Build()).Error()
}

func (s *ValkeyStore) Get(ctx context.Context, vehicleID string) (model.ManualOverride, bool, error) {
	var o model.ManualOverride
	ok, err := s.getJSON(ctx, s.key("override", vehicleID), &o)
	return o, ok, err
}

func (s *ValkeyStore) Clear(ctx context.Context, vehicleID string) error {
	return s.client.Do(ctx, s.client.B().Del().Key(s.key("override", vehicleID)).Build()).Error()
}

// Decisions returns the latest-decision view backed by the same client.
func (s *ValkeyStore) Decisions() *ValkeyDecisions { return &ValkeyDecisions{s: s} }

// Settings returns the settings view backed by the same client.
func (s *ValkeyStore) Settings() *ValkeySettings { return &ValkeySettings{s: s} }

// Close releases the underlying client.
func (s *ValkeyStore) Close() { s.client.Close() }

func (s *ValkeyStore) key(kind, id string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, kind, id)
}

func (s *ValkeyStore) getJSON(ctx context.Context, key string, out any) (bool, error) {
	payload, err := s.client.Do(ctx, s.client.B().Get().Key(key).Build()).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return false, err
	}
	return true, nil
}

// ValkeyDecisions implements the decision store on a ValkeyStore. Vehicle
// ids are indexed in a set so List survives restarts without a key scan.
type ValkeyDecisions struct{ s *ValkeyStore }

func (d *ValkeyDecisions) Put(ctx context.Context, dec model.Decision) error {
	payload, err := json.Marshal(dec)
	if err != nil {
		return err
	}
	if err := d.s.client.Do(ctx, d.s.client.B().Set().
		Key(d.s.key("decision", dec.VehicleID)).Value(string(payload)).Build()).Error(); err != nil {
		return err
	}
	return d.s.client.Do(ctx, d.s.client.B().Sadd().
		Key(d.s.prefix+":decision-index").Member(dec.VehicleID).Build()).Error()
}

func (d *ValkeyDecisions) Get(ctx context.Context, vehicleID string) (model.Decision, bool, error) {
	var dec model.Decision
	ok, err := d.s.getJSON(ctx, d.s.key("decision", vehicleID), &dec)
	return dec, ok, err
}

func (d *ValkeyDecisions) List(ctx context.Context) ([]model.Decision, error) {
	ids, err := d.s.client.Do(ctx, d.s.client.B().Smembers().
		Key(d.s.prefix+":decision-index").Build()).AsStrSlice()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, nil
		}
		return nil, err
	}
	res := make([]model.Decision, 0, len(ids))
	for _, id := range ids {
		dec, ok, err := d.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			res = append(res, dec)
		}
	}
	return res, nil
}

// ValkeySettings implements the settings store on a ValkeyStore.
type ValkeySettings struct{ s *ValkeyStore }

func (v *ValkeySettings) Put(ctx context.Context, set model.VehicleSettings) error {
	payload, err := json.Marshal(set)
	if err != nil {
		return err
	}
	return v.s.client.Do(ctx, v.s.client.B().Set().
		Key(v.s.key("settings", set.VehicleID)).Value(string(payload)).Build()).Error()
}

func (v *ValkeySettings) Get(ctx context.Context, vehicleID string) (model.VehicleSettings, bool, error) {
	var set model.VehicleSettings
	ok, err := v.s.getJSON(ctx, v.s.key("settings", vehicleID), &set)
	return set, ok, err
}
