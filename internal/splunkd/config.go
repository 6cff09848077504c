package splunkd

import (
	"fmt"
	"slices"
	"time"
)

// Sharing modes accepted by splunkd namespaces.
var sharingModes = []string{"global", "system", "app", "user"}

// Config holds splunkd connection settings.
type Config struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Scheme string `yaml:"scheme"`
	Verify bool   `yaml:"verify"`

	Owner   string `yaml:"owner"`
	App     string `yaml:"app"`
	Sharing string `yaml:"sharing"`

	// Token is a bearer token. SessionKey is an existing splunkd session.
	// When both are empty, Username and Password are used to log in.
	Token      string `yaml:"token"`
	SessionKey string `yaml:"session_key"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`

	// Retries is how many times a request is retried after a transport
	// error. Non-2xx responses are never retried.
	Retries    int           `yaml:"retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	Timeout    time.Duration `yaml:"timeout"`
}

// DefaultConfig returns the splunkd defaults.
func DefaultConfig() Config {
	return Config{
		Host:       "localhost",
		Port:       8089,
		Scheme:     "https",
		Verify:     true,
		Sharing:    "user",
		RetryDelay: 10 * time.Second,
		Timeout:    time.Minute,
	}
}

// Validate checks the settings needed to connect.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("splunkd host is required")
	}
	if c.Scheme != "http" && c.Scheme != "https" {
		return fmt.Errorf("invalid scheme %q (expected http or https)", c.Scheme)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Sharing != "" && !slices.Contains(sharingModes, c.Sharing) {
		return fmt.Errorf("invalid sharing mode %q (expected one of %v)", c.Sharing, sharingModes)
	}
	if c.Token == "" && c.SessionKey == "" && (c.Username == "" || c.Password == "") {
		return fmt.Errorf("credentials required: set a token, a session key, or username and password")
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries must not be negative")
	}
	return nil
}

// namespace returns the REST path prefix for the configured sharing mode,
// owner and app.
func (c Config) namespace() string {
	orDash := func(s string) string {
		if s == "" {
			return "-"
		}
		return s
	}
	switch c.Sharing {
	case "system":
		return "/servicesNS/nobody/system"
	case "app", "global":
		return "/servicesNS/nobody/" + orDash(c.App)
	}
	if c.Owner == "" && c.App == "" {
		return "/services"
	}
	return "/servicesNS/" + orDash(c.Owner) + "/" + orDash(c.App)
}
