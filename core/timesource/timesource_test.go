package timesource_test

import (
	"testing"
	"time"

	"example.com/timetrap/core/timesource"
)

func TestModeFromString(t *testing.T) {
	tests := []struct {
		s    string
		want timesource.Mode
	}{
		{"", timesource.ModeSystem},
		{"system", timesource.ModeSystem},
		{"offset", timesource.ModeOffset},
		{"frozen", timesource.ModeFrozen},
	}

	for _, tt := range tests {
		got, err := timesource.ModeFromString(tt.s)
		if err != nil {
			t.Errorf("timesource.ModeFromString(%q) failed: %v", tt.s, err)
		}
		if got != tt.want {
			t.Errorf("timesource.ModeFromString(%q) = %v, want %v", tt.s, got, tt.want)
		}
	}

	_, err := timesource.ModeFromString("random")
	if err == nil {
		t.Errorf("an unknown mode string must be rejected")
	}
}

func TestApply(t *testing.T) {
	now := time.Unix(1705314600, 0).UTC()
	frozen := time.Unix(1600000000, 0).UTC()

	s := timesource.Source{Mode: timesource.ModeSystem}
	if got := s.Apply(now); !got.Equal(now) {
		t.Errorf("a system source must pass time through, got %v", got)
	}

	s = timesource.Source{Mode: timesource.ModeOffset, Offset: time.Hour}
	if got := s.Apply(now); !got.Equal(now.Add(time.Hour)) {
		t.Errorf("an offset source must shift time by the offset, got %v", got)
	}

	s = timesource.Source{Mode: timesource.ModeOffset, Offset: -time.Hour}
	if got := s.Apply(now); !got.Equal(now.Add(-time.Hour)) {
		t.Errorf("a negative offset must shift time backwards, got %v", got)
	}

	s = timesource.Source{Mode: timesource.ModeFrozen, Frozen: frozen}
	if got := s.Apply(now); !got.Equal(frozen) {
		t.Errorf("a frozen source must always claim the frozen instant, got %v", got)
	}
	if got := s.Apply(now.Add(time.Hour)); !got.Equal(frozen) {
		t.Errorf("a frozen source must ignore the real time, got %v", got)
	}
}

func TestValidate(t *testing.T) {
	now := time.Unix(1705314600, 0).UTC()

	cfg := &timesource.Config{Stratum: 1}
	if err := cfg.Validate(now); err != nil {
		t.Errorf("a default configuration must validate: %v", err)
	}

	cfg = &timesource.Config{Stratum: 16}
	if err := cfg.Validate(now); err == nil {
		t.Errorf("a stratum above 15 must be rejected")
	}

	cfg = &timesource.Config{Stratum: 1, LeapIndicator: 4}
	if err := cfg.Validate(now); err == nil {
		t.Errorf("a leap indicator above 3 must be rejected")
	}

	cfg = &timesource.Config{
		Stratum: 1,
		Source: timesource.Source{
			Mode:   timesource.ModeOffset,
			Offset: 200 * 365 * 24 * time.Hour,
		},
	}
	if err := cfg.Validate(now); err == nil {
		t.Errorf("an offset outside the representable range must be rejected")
	}

	cfg = &timesource.Config{
		Stratum: 1,
		Source: timesource.Source{
			Mode:   timesource.ModeFrozen,
			Frozen: time.Date(1890, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}
	if err := cfg.Validate(now); err == nil {
		t.Errorf("a frozen instant outside the representable range must be rejected")
	}
}
