package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pavel-vrtal-ict/rybari-registrace/internal/quota"
)

// Validate checks the loaded configuration and fills derived fields.
// Load calls it automatically.
func (c *Config) Validate() error {
	if err := c.App.validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		return fmt.Errorf("store.path must not be empty")
	}
	if err := c.Remote.validate(); err != nil {
		return fmt.Errorf("remote: %w", err)
	}
	if c.DeepLink.PollAttempts < 1 {
		return fmt.Errorf("deeplink.poll_attempts must be >= 1 (got %d)", c.DeepLink.PollAttempts)
	}
	if c.DeepLink.PollInterval <= 0 {
		return fmt.Errorf("deeplink.poll_interval must be > 0 (got %v)", c.DeepLink.PollInterval)
	}
	if err := c.Quota.validate(); err != nil {
		return fmt.Errorf("quota: %w", err)
	}
	if c.Registration.DefaultMaxEntrants < 0 {
		return fmt.Errorf("registration.default_max_entrants must be >= 0 (got %d)", c.Registration.DefaultMaxEntrants)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range (got %d)", c.Server.Port)
	}
	if c.AMQP.Enabled && c.AMQP.URL == "" {
		return fmt.Errorf("amqp.url is required when amqp is enabled")
	}
	if c.AMQP.Enabled && c.AMQP.DialTimeout <= 0 {
		return fmt.Errorf("amqp.dial_timeout must be > 0 (got %v)", c.AMQP.DialTimeout)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text (got %q)", c.Log.Format)
	}
	return nil
}

func (a *AppConfig) validate() error {
	u, err := url.Parse(a.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base_url must be an absolute URL (got %q)", a.BaseURL)
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	a.Location = loc
	return nil
}

func (r *RemoteConfig) validate() error {
	if r.Credential != "" && r.Endpoint == "" {
		return fmt.Errorf("credential given without endpoint")
	}
	if r.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be >= 1 (got %d)", r.MaxAttempts)
	}
	if r.WriteTimeout <= 0 {
		return fmt.Errorf("write_timeout must be > 0 (got %v)", r.WriteTimeout)
	}
	if r.RetryInterval <= 0 {
		return fmt.Errorf("retry_interval must be > 0 (got %v)", r.RetryInterval)
	}
	if r.MaxBackoff < r.RetryInterval {
		return fmt.Errorf("max_backoff must be >= retry_interval (got %v < %v)", r.MaxBackoff, r.RetryInterval)
	}
	return nil
}

func (q *QuotaConfig) validate() error {
	if q.DailyLimit < 0 {
		return fmt.Errorf("daily_limit must be >= 0 (got %d)", q.DailyLimit)
	}
	for name, v := range map[string]int{
		"over_limit_fee":    q.OverLimitFee,
		"visit_fee":         q.VisitFee,
		"special_catch_fee": q.SpecialCatchFee,
	} {
		if v < 0 {
			return fmt.Errorf("%s must be >= 0 (got %d)", name, v)
		}
	}

	surcharges, err := quota.ParseSurcharges(q.SpeciesSurchargesRaw)
	if err != nil {
		return err
	}
	q.SpeciesSurcharges = surcharges
	return nil
}
