package main

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestTimeSourceConfigPrecision(t *testing.T) {
	log = zap.NewNop()
	now := time.Unix(1705314600, 0).UTC()

	cfg := svcConfig{TimeMode: "system"}
	tsCfg := timeSourceConfig(cfg, now)
	if tsCfg.Precision != defaultPrecision {
		t.Errorf("an unset precision must use the default, got %d", tsCfg.Precision)
	}

	// Precision 0 claims a one second clock resolution and must not be
	// mistaken for an unset value.
	zero := 0
	cfg = svcConfig{TimeMode: "system", Precision: &zero}
	tsCfg = timeSourceConfig(cfg, now)
	if tsCfg.Precision != 0 {
		t.Errorf("a configured precision of 0 must be kept, got %d", tsCfg.Precision)
	}

	fine := -29
	cfg = svcConfig{TimeMode: "system", Precision: &fine}
	tsCfg = timeSourceConfig(cfg, now)
	if tsCfg.Precision != -29 {
		t.Errorf("a configured precision must be kept, got %d", tsCfg.Precision)
	}
}
