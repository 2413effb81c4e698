package config

import (
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Engine.Profile != "default" {
		t.Errorf("profile = %q", cfg.Engine.Profile)
	}
	if cfg.Engine.WorkingCapacity != 7 {
		t.Errorf("working capacity = %d, want 7", cfg.Engine.WorkingCapacity)
	}
	if cfg.Engine.ShortTermWindow != 90*time.Second {
		t.Errorf("short-term window = %v", cfg.Engine.ShortTermWindow)
	}
	if cfg.Engine.RetentionThreshold != 0.6 {
		t.Errorf("retention threshold = %v", cfg.Engine.RetentionThreshold)
	}
	if cfg.Engine.StrengthThreshold != 0 {
		t.Errorf("strength threshold = %v, want disabled", cfg.Engine.StrengthThreshold)
	}
	if cfg.ListenAddr() != "127.0.0.1:37779" {
		t.Errorf("listen addr = %q", cfg.ListenAddr())
	}
}

func TestEpisodic(t *testing.T) {
	cfg := Episodic()
	if cfg.Engine.Profile != "episodic" {
		t.Errorf("profile = %q", cfg.Engine.Profile)
	}
	if cfg.Engine.ConsolidationInterval != 5*time.Minute {
		t.Errorf("consolidation interval = %v", cfg.Engine.ConsolidationInterval)
	}
	if cfg.Engine.RetentionThreshold != 0.2 || cfg.Engine.StrengthThreshold != 0.2 {
		t.Errorf("thresholds = %v, %v, want 0.2 and 0.2",
			cfg.Engine.RetentionThreshold, cfg.Engine.StrengthThreshold)
	}
}

func TestForProfile(t *testing.T) {
	if cfg, err := ForProfile(""); err != nil || cfg.Engine.Profile != "default" {
		t.Errorf("empty name: cfg=%+v err=%v", cfg.Engine, err)
	}
	if cfg, err := ForProfile("episodic"); err != nil || cfg.Engine.Profile != "episodic" {
		t.Errorf("episodic: cfg=%+v err=%v", cfg.Engine, err)
	}
	if _, err := ForProfile("galactic"); err == nil {
		t.Error("unknown profile should error")
	}
}
