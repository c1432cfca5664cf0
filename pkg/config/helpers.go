package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SettingKeys lists the keys accepted by SetValue and GetValue, in display order.
var SettingKeys = []string{
	"cache_dir",
	"state_dir",
	"database_url",
	"hooks_dir",
	"http_timeout",
	"max_concurrent_fetches",
	"user_agent",
	"fetch_icons",
	"on_busy",
	"log_level",
	"device.sdk",
	"device.features",
	"device.abis",
}

// SetValue sets a configuration value by key. List values are comma separated.
func (c *Config) SetValue(key, value string) error {
	s := &c.Settings
	switch key {
	case "cache_dir":
		s.CacheDir = value
	case "state_dir":
		s.StateDir = value
	case "database_url":
		s.DatabaseURL = value
	case "hooks_dir":
		s.HooksDir = value
	case "http_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %s", key, value)
		}
		s.HTTPTimeout = Duration(d)
	case "max_concurrent_fetches":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %s", key, value)
		}
		s.MaxConcurrent = n
	case "user_agent":
		s.UserAgent = value
	case "fetch_icons":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean value for %s: %s", key, value)
		}
		s.FetchIcons = b
	case "on_busy":
		s.OnBusy = value
	case "log_level":
		s.LogLevel = value
	case "device.sdk":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %s", key, value)
		}
		s.Device.SDK = n
	case "device.features":
		s.Device.Features = splitList(value)
	case "device.abis":
		s.Device.ABIs = splitList(value)
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return c.Validate()
}

// GetValue returns the value of a configuration key as a string.
func (c *Config) GetValue(key string) (string, error) {
	s := c.Settings
	switch key {
	case "cache_dir":
		return s.CacheDir, nil
	case "state_dir":
		return s.StateDir, nil
	case "database_url":
		return c.GetDatabaseURL(), nil
	case "hooks_dir":
		return c.GetHooksDir(), nil
	case "http_timeout":
		return s.HTTPTimeout.Std().String(), nil
	case "max_concurrent_fetches":
		return strconv.Itoa(s.MaxConcurrent), nil
	case "user_agent":
		return s.UserAgent, nil
	case "fetch_icons":
		return strconv.FormatBool(s.FetchIcons), nil
	case "on_busy":
		return s.OnBusy, nil
	case "log_level":
		return s.LogLevel, nil
	case "device.sdk":
		return strconv.Itoa(s.Device.SDK), nil
	case "device.features":
		return strings.Join(s.Device.Features, ","), nil
	case "device.abis":
		return strings.Join(s.Device.ABIs, ","), nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// ToMap returns every setting keyed as in SettingKeys.
func (c *Config) ToMap() map[string]string {
	result := make(map[string]string, len(SettingKeys))
	for _, key := range SettingKeys {
		value, err := c.GetValue(key)
		if err != nil {
			continue
		}
		result[key] = value
	}
	return result
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
