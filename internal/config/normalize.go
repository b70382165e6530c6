// internal/config/normalize.go
package config

const (
	DefaultIntervalMs = 1000
	DefaultTimeoutMs  = 500

	deviceNameMax = 16
)

// Normalize applies post-validation defaults.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	for ui := range cfg.Replicator.Units {
		u := &cfg.Replicator.Units[ui]

		if u.Poll.IntervalMs == 0 {
			u.Poll.IntervalMs = DefaultIntervalMs
		}
		if u.Source.TimeoutMs == 0 {
			u.Source.TimeoutMs = DefaultTimeoutMs
		}

		for ti := range u.Targets {
			if u.Targets[ti].Kind == "" {
				u.Targets[ti].Kind = TargetModbus
			}
		}

		// ---- device status block (opt-in) ----

		if u.Source.StatusSlot == nil {
			continue
		}

		// ASCII already validated; the block holds 16 characters.
		if u.Source.DeviceName == "" {
			u.Source.DeviceName = u.ID
		}
		if len(u.Source.DeviceName) > deviceNameMax {
			u.Source.DeviceName = u.Source.DeviceName[:deviceNameMax]
		}
	}
}
