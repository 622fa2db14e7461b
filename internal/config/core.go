package config

import (
	"strings"
	"time"
)

// CoreConfig holds the configuration points of the ride engine.
type CoreConfig struct {
	PlatformFee     int64         // credits kept by the platform per committed booking
	CancelCutoff    time.Duration // passengers cannot cancel this close to departure; 0 disables
	CompletionGrace time.Duration // ongoing rides auto-complete this long after arrival
	TxMaxAttempts   int           // conflict retries before reporting busy
	BannedTerms     []string      // ride notes containing one of these need manual moderation
	PriceCeiling    int64         // seat prices above this need manual moderation; 0 disables
	SignupBonus     int64         // credits granted on registration
	SweepInterval   time.Duration
}

func LoadCoreConfig() CoreConfig {
	c := CoreConfig{
		PlatformFee:     int64(envInt("PLATFORM_FEE_CREDITS", 2)),
		CancelCutoff:    envDur("CANCEL_CUTOFF", 0),
		CompletionGrace: envDur("COMPLETION_GRACE", 24*time.Hour),
		TxMaxAttempts:   envInt("TX_MAX_ATTEMPTS", 3),
		BannedTerms:     splitList(envStr("MODERATION_BANNED_TERMS", "")),
		PriceCeiling:    int64(envInt("MODERATION_PRICE_CEILING", 0)),
		SignupBonus:     int64(envInt("SIGNUP_BONUS_CREDITS", 20)),
		SweepInterval:   envDur("SWEEP_INTERVAL", time.Minute),
	}
	if c.PlatformFee < 0 {
		c.PlatformFee = 0
	}
	if c.CancelCutoff < 0 {
		c.CancelCutoff = 0
	}
	if c.TxMaxAttempts < 1 {
		c.TxMaxAttempts = 1
	}
	if c.SignupBonus < 0 {
		c.SignupBonus = 0
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	return c
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
