package config

import "time"

type Lifecycle struct{}

var _ LifecycleConfig = Lifecycle{}

// GetRefreshThreshold is the remaining validity below which a token is refreshed.
func (Lifecycle) GetRefreshThreshold() time.Duration {
	return 120 * time.Second
}

// GetSettleDelay lets a freshly established session stabilise before the first freshness check.
func (Lifecycle) GetSettleDelay() time.Duration {
	return 2 * time.Second
}

func (Lifecycle) GetRefreshInterval() time.Duration {
	return 10 * time.Second
}
