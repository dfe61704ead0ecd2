package config

import "time"

// LockConfig tunes the per-room booking lock.
type LockConfig struct {
	Backend string        // "redis" or "local"; redis falls back to local without a client
	TTL     time.Duration // lease length
	Wait    time.Duration // how long Acquire retries before giving up
	Retry   time.Duration // delay between attempts
	Prefix  string
}

func LoadLockConfig() LockConfig {
	return LockConfig{
		Backend: envStr("LOCK_BACKEND", "redis"),
		TTL:     envDur("LOCK_TTL", 10*time.Second),
		Wait:    envDur("LOCK_WAIT", 5*time.Second),
		Retry:   envDur("LOCK_RETRY", 50*time.Millisecond),
		Prefix:  envStr("LOCK_PREFIX", "lock"),
	}
}

// CacheConfig controls the read-through caches of room types and
// statistics. When Enabled is false or Redis is unavailable every read
// goes to the store.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
	Prefix  string
}

func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled: envBool("CACHE_ENABLED", true),
		TTL:     envDur("CACHE_TTL", 5*time.Minute),
		Prefix:  envStr("CACHE_PREFIX", "cache"),
	}
}

// SweepConfig schedules reconciliation.
type SweepConfig struct {
	HourlySpec string
	DailySpec  string
	Timeout    time.Duration
	PaymentTTL time.Duration // how long an order may stay unpaid
}

func LoadSweepConfig() SweepConfig {
	return SweepConfig{
		HourlySpec: envStr("SWEEP_HOURLY_SPEC", "@every 1h"),
		DailySpec:  envStr("SWEEP_DAILY_SPEC", "0 2 * * *"),
		Timeout:    envDur("SWEEP_TIMEOUT", 10*time.Minute),
		PaymentTTL: envDur("ORDER_PAYMENT_TTL", 24*time.Hour),
	}
}

// PaymentConfig bounds calls to the payment provider.
type PaymentConfig struct {
	Timeout time.Duration
	Latency time.Duration // simulated provider latency
}

func LoadPaymentConfig() PaymentConfig {
	return PaymentConfig{
		Timeout: envDur("PAYMENT_TIMEOUT", 10*time.Second),
		Latency: envDur("PAYMENT_SIMULATED_LATENCY", 0),
	}
}
