package retrieval

import (
	"testing"
	"time"
)

func TestApplyDecayNoTimestampUnchanged(t *testing.T) {
	score := ApplyDecay(1.0, nil, time.Now(), DefaultDecayConfig)
	if score != 1.0 {
		t.Errorf("expected unchanged score for nil timestamp, got %v", score)
	}
}

func TestApplyDecayRecentItemBarelyDecayed(t *testing.T) {
	now := time.Now()
	ts := now.AddDate(0, 0, -1)
	score := ApplyDecay(1.0, &ts, now, DefaultDecayConfig)
	if score < 0.99 || score > 1.0 {
		t.Errorf("expected near-1.0 boost for 1-day-old item, got %v", score)
	}
}

func TestApplyDecayOldItemClampedToMinBoost(t *testing.T) {
	now := time.Now()
	ts := now.AddDate(-6, 0, 0) // ~2190 days, beyond MaxAgeDays=1825
	score := ApplyDecay(1.0, &ts, now, DefaultDecayConfig)
	if score != DefaultDecayConfig.MinBoost {
		t.Errorf("expected score clamped to min boost %v, got %v", DefaultDecayConfig.MinBoost, score)
	}
}

func TestBoostNeverBelowMinBoost(t *testing.T) {
	cfg := DecayConfig{DecayDays: 10, MinBoost: 0.2, MaxAgeDays: 1000}
	if b := cfg.Boost(500); b != cfg.MinBoost {
		t.Errorf("expected min boost floor at 500 days, got %v", b)
	}
}
