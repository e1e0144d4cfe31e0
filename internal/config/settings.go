package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ConfigIssue represents a validation finding.
type ConfigIssue struct {
	Key      string `json:"key"`
	Severity string `json:"severity"` // "error", "warning", "info"
	Message  string `json:"message"`
	Fix      string `json:"fix,omitempty"`
}

var validModes = map[string]bool{
	"workbook": true, "sheets": true, "xlsx": true,
	"archive": true, "zip": true, "files": true,
}

var validLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "warning": true,
	"error": true, "off": true, "disabled": true,
}

// Validate checks config values and returns a list of issues.
func Validate() []ConfigIssue {
	var issues []ConfigIssue

	if mode := viper.GetString("output.mode"); !validModes[strings.ToLower(mode)] {
		issues = append(issues, ConfigIssue{
			Key:      "output.mode",
			Severity: "error",
			Message:  fmt.Sprintf("output mode %q is not supported", mode),
			Fix:      "drsplit config set output.mode workbook  (or archive)",
		})
	}

	if level := viper.GetString("log.level"); !validLevels[strings.ToLower(level)] {
		issues = append(issues, ConfigIssue{
			Key:      "log.level",
			Severity: "warning",
			Message:  fmt.Sprintf("log level %q is unknown, info will be used", level),
			Fix:      "drsplit config set log.level info",
		})
	}

	if format := viper.GetString("log.format"); format != "console" && format != "json" {
		issues = append(issues, ConfigIssue{
			Key:      "log.format",
			Severity: "warning",
			Message:  fmt.Sprintf("log format %q is unknown, console will be used", format),
			Fix:      "drsplit config set log.format json",
		})
	}

	if mb := viper.GetInt("server.max_upload_mb"); mb <= 0 {
		issues = append(issues, ConfigIssue{
			Key:      "server.max_upload_mb",
			Severity: "error",
			Message:  "upload limit must be a positive number of megabytes",
			Fix:      "drsplit config set server.max_upload_mb 50",
		})
	}

	for _, key := range []string{"naming.missing", "naming.empty"} {
		if strings.TrimSpace(viper.GetString(key)) == "" {
			issues = append(issues, ConfigIssue{
				Key:      key,
				Severity: "warning",
				Message:  fmt.Sprintf("%s is blank, the built-in name will be used", key),
			})
		}
	}

	if viper.GetBool("audit.enabled") {
		issues = append(issues, ConfigIssue{
			Key:      "audit.path",
			Severity: "info",
			Message:  "run log enabled at " + ExpandHome(viper.GetString("audit.path")),
		})
	}

	return issues
}

// EnvName returns the environment variable that overrides key.
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// ToEnv returns all config values as a map of env var name -> value.
func ToEnv() map[string]string {
	env := make(map[string]string, len(defaults))
	for _, d := range defaults {
		env[EnvName(d.key)] = viper.GetString(d.key)
	}
	return env
}

// Keys returns every known config key in display order.
func Keys() []string {
	keys := make([]string, len(defaults))
	for i, d := range defaults {
		keys[i] = d.key
	}
	return keys
}

// Set sets a config value and saves to disk.
func Set(key, value string) error {
	if !known(key) {
		return fmt.Errorf("unknown config key %q — run 'drsplit config show' for the list", key)
	}
	viper.Set(key, value)
	return SaveConfig()
}

// Get retrieves a config value.
func Get(key string) string {
	return viper.GetString(key)
}

func known(key string) bool {
	for _, d := range defaults {
		if d.key == key {
			return true
		}
	}
	return false
}

// ResetConfig resets all config to defaults.
func ResetConfig() error {
	path := ConfigPath()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("could not delete config: %w", err)
	}
	for _, d := range defaults {
		viper.Set(d.key, d.value)
	}
	return nil
}

// SaveConfig writes the current config to ~/.drsplit/config.yaml.
func SaveConfig() error {
	path := ConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("could not create config directory: %w", err)
	}

	if err := viper.WriteConfigAs(path); err != nil {
		return fmt.Errorf("could not write config: %w", err)
	}

	os.Chmod(path, 0600)
	return nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() string {
	if explicitFile != "" {
		return explicitFile
	}
	return filepath.Join(configDir(), "config.yaml")
}

// ShowConfig returns a formatted string of the current configuration.
func ShowConfig() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Config: %s\n", ConfigPath()))

	section := ""
	for _, d := range defaults {
		head, name, _ := strings.Cut(d.key, ".")
		if head != section {
			section = head
			sb.WriteString("\n" + head + "\n")
		}
		sb.WriteString(fmt.Sprintf("  %-14s %s\n", name+":", viper.GetString(d.key)))
	}

	return sb.String()
}
