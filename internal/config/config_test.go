package config

import (
	"testing"
	"time"

	"github.com/openbuilders/sepa-collector/internal/eligibility"
)

func TestLoad(t *testing.T) {
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("POD_NAME", "collector-0")
	t.Setenv("MANDATE_PREFIX", "XX-MNDT-")
	t.Setenv("ELIGIBILITY_IDLE_DAYS", "365")
	t.Setenv("RUN_LOCK_TTL", "1m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.InstanceID != "collector-0" {
		t.Errorf("InstanceID = %q", cfg.InstanceID)
	}
	if cfg.Location != time.UTC {
		t.Errorf("Location = %v", cfg.Location)
	}
	if !cfg.Epoch.Equal(defaultEpoch) {
		t.Errorf("Epoch = %v", cfg.Epoch)
	}
	if got := cfg.Prefixes.MandateReference(7); got != "XX-MNDT-00000007" {
		t.Errorf("MandateReference = %q", got)
	}
	if cfg.Windows.IdleMandateDays != 365 {
		t.Errorf("IdleMandateDays = %d", cfg.Windows.IdleMandateDays)
	}
	if cfg.Windows.GracePeriodDays != eligibility.DefaultWindows.GracePeriodDays {
		t.Errorf("GracePeriodDays = %d", cfg.Windows.GracePeriodDays)
	}
	if cfg.RunLockTTL != time.Minute {
		t.Errorf("RunLockTTL = %v", cfg.RunLockTTL)
	}
}

func TestLoadRejectsUnknownTimeZone(t *testing.T) {
	t.Setenv("TIMEZONE", "Mars/Olympus_Mons")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error for an unknown time zone")
	}
}
