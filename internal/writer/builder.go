// internal/writer/builder.go
package writer

import (
	"errors"
	"fmt"
	"time"

	cfg "github.com/tamzrod/harp-sniffdetector/internal/config"
	"github.com/tamzrod/harp-sniffdetector/internal/writer/ingest"
	wmodbus "github.com/tamzrod/harp-sniffdetector/internal/writer/modbus"
)

// BuildPlan converts one unit config into a Writer Plan.
// Assumes config has already passed Validate and Normalize.
func BuildPlan(u cfg.UnitConfig) (Plan, error) {
	if u.ID == "" {
		return Plan{}, errors.New("writer: unit.id required")
	}

	plan := Plan{UnitID: u.ID}

	for _, t := range u.Targets {
		ep := TargetEndpoint{
			TargetID: t.ID,
			Kind:     t.Kind,
			Endpoint: t.Endpoint,
			UnitID:   t.UnitID,
		}

		for _, m := range t.Memories {
			ep.Memories = append(ep.Memories, MemoryDest{
				MemoryID: m.MemoryID,
				Offset:   m.Offset,
			})
		}

		plan.Targets = append(plan.Targets, ep)

		// ---- status block copy for this target ----
		if u.Source.StatusSlot == nil {
			continue
		}
		if t.StatusUnitID == nil {
			return Plan{}, fmt.Errorf("writer: unit %q target %d: status_unit_id required", u.ID, t.ID)
		}
		plan.Status = append(plan.Status, StatusPlan{
			Endpoint:   t.Endpoint,
			UnitID:     *t.StatusUnitID,
			BaseSlot:   *u.Source.StatusSlot,
			DeviceName: u.Source.DeviceName,
		})
	}

	return plan, nil
}

// BuildEndpointClients creates one client per unique endpoint.
// The target kind decides between Modbus TCP and raw ingest.
func BuildEndpointClients(u cfg.UnitConfig) (map[string]endpointClient, func() error, error) {
	kinds := map[string]string{}
	for _, t := range u.Targets {
		kind := t.Kind
		if kind == "" {
			kind = cfg.TargetModbus
		}
		if prev, ok := kinds[t.Endpoint]; ok && prev != kind {
			return nil, nil, fmt.Errorf("writer: endpoint %s used as both %s and %s", t.Endpoint, prev, kind)
		}
		kinds[t.Endpoint] = kind
	}

	timeout := time.Duration(u.Source.TimeoutMs) * time.Millisecond

	clients := make(map[string]endpointClient)
	var closers []func() error

	closeAll := func() error {
		var last error
		for _, fn := range closers {
			if err := fn(); err != nil {
				last = err
			}
		}
		return last
	}

	for endpoint, kind := range kinds {
		switch kind {
		case cfg.TargetIngest:
			c, err := ingest.NewEndpointClient(ingest.Config{Endpoint: endpoint, Timeout: timeout})
			if err != nil {
				_ = closeAll()
				return nil, nil, err
			}
			clients[endpoint] = c
			closers = append(closers, c.Close)
		default:
			c, err := wmodbus.NewEndpointClient(wmodbus.Config{Endpoint: endpoint, Timeout: timeout})
			if err != nil {
				_ = closeAll()
				return nil, nil, err
			}
			clients[endpoint] = c
			closers = append(closers, c.Close)
		}
	}

	return clients, closeAll, nil
}
