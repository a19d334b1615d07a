package subscription

import "time"

// Config holds the lifecycle timing parameters.
type Config struct {
	GracePeriod        time.Duration `env:"BILLING_GRACE_PERIOD" envDefault:"30m" validate:"gt=0"`         // unpaid checkout lifetime
	SweepInterval      time.Duration `env:"BILLING_SWEEP_INTERVAL" envDefault:"5m" validate:"gt=0"`        // time between reconciliation sweeps
	SweepBatch         int           `env:"BILLING_SWEEP_BATCH" envDefault:"500" validate:"gt=0"`          // max rows per sweep phase
	TrialWarningWindow time.Duration `env:"BILLING_TRIAL_WARNING_WINDOW" envDefault:"24h" validate:"gt=0"` // warn trials ending within this window
	WarningDedupWindow time.Duration `env:"BILLING_WARNING_DEDUP_WINDOW" envDefault:"24h" validate:"gt=0"` // at most one warning per window
	CacheTTL           time.Duration `env:"BILLING_CACHE_TTL" envDefault:"5m" validate:"gt=0"`
	NotifyTimeout      time.Duration `env:"BILLING_NOTIFY_TIMEOUT" envDefault:"10s" validate:"gt=0"`
	NoticeLink         string        `env:"BILLING_NOTICE_LINK" envDefault:"/settings/billing"`
}

// DefaultConfig returns the values used when no environment is loaded.
func DefaultConfig() Config {
	return Config{
		GracePeriod:        30 * time.Minute,
		SweepInterval:      5 * time.Minute,
		SweepBatch:         500,
		TrialWarningWindow: 24 * time.Hour,
		WarningDedupWindow: 24 * time.Hour,
		CacheTTL:           5 * time.Minute,
		NotifyTimeout:      10 * time.Second,
		NoticeLink:         "/settings/billing",
	}
}
