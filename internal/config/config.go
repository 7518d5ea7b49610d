// Package config loads mxprobe settings from a YAML file and MXPROBE_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/optimode/mxprobe"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a configuration instance. An empty file searches the default
// locations; a missing config file there is not an error.
func New(file string) (*Config, error) {
	v := viper.New()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/mxprobe/")
		v.AddConfigPath("$HOME/.mxprobe")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvPrefix("MXPROBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return &Config{v: v}, nil
}

// NewFromViper creates a configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("smtp.helo_domain", "")
	v.SetDefault("smtp.mail_from", "")
	v.SetDefault("smtp.port", "25")
	v.SetDefault("smtp.timeout", "10s")
	v.SetDefault("smtp.proxy", "")
	v.SetDefault("smtp.catch_all", false)

	v.SetDefault("dns.timeout", "5s")
	v.SetDefault("dns.servers", []string{})

	v.SetDefault("verify.workers", 5)
	v.SetDefault("verify.domain_checks", true)

	v.SetDefault("breaker.enabled", false)
	v.SetDefault("breaker.failures", 5)
	v.SetDefault("breaker.cooldown", "1m")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("metrics.enabled", false)
}

func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration parses key as a Go duration string.
func (c *Config) GetDuration(key string) (time.Duration, error) {
	d, err := time.ParseDuration(c.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("config %s: %w", key, err)
	}
	return d, nil
}

// Set overrides key, e.g. from a command line flag.
func (c *Config) Set(key string, value any) {
	c.v.Set(key, value)
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}

// SMTPOptions builds the probe options from the smtp.* keys.
func (c *Config) SMTPOptions() (mxprobe.SMTPOptions, error) {
	timeout, err := c.GetDuration("smtp.timeout")
	if err != nil {
		return mxprobe.SMTPOptions{}, err
	}
	return mxprobe.SMTPOptions{
		HeloDomain: c.GetString("smtp.helo_domain"),
		MailFrom:   c.GetString("smtp.mail_from"),
		Port:       c.GetString("smtp.port"),
		Timeout:    timeout,
		Proxy:      c.GetString("smtp.proxy"),
		CatchAll:   c.GetBool("smtp.catch_all"),
	}, nil
}

// DNSOptions builds the resolver options from the dns.* keys.
func (c *Config) DNSOptions() (mxprobe.DNSOptions, error) {
	timeout, err := c.GetDuration("dns.timeout")
	if err != nil {
		return mxprobe.DNSOptions{}, err
	}
	return mxprobe.DNSOptions{
		Timeout: timeout,
		Servers: c.GetStringSlice("dns.servers"),
	}, nil
}

// BreakerOptions builds the breaker options; ok is false when the breaker
// is disabled.
func (c *Config) BreakerOptions() (opts mxprobe.BreakerOptions, ok bool, err error) {
	if !c.GetBool("breaker.enabled") {
		return opts, false, nil
	}
	cooldown, err := c.GetDuration("breaker.cooldown")
	if err != nil {
		return opts, false, err
	}
	failures := c.GetInt("breaker.failures")
	if failures < 0 {
		return opts, false, fmt.Errorf("config breaker.failures: must not be negative, got %d", failures)
	}
	return mxprobe.BreakerOptions{
		Failures: uint32(failures),
		Cooldown: cooldown,
	}, true, nil
}

// ConcurrencyOptions builds the batch options from verify.workers.
func (c *Config) ConcurrencyOptions() mxprobe.ConcurrencyOptions {
	return mxprobe.ConcurrencyOptions{Workers: c.GetInt("verify.workers")}
}
