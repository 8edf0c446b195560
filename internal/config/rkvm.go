package config

// ServerConfig holds the configuration for rkvm-server, loaded via LoadConfig
// from a TOML file, environment variables (RKVM_*), and CLI flags, in that
// increasing order of precedence.
type ServerConfig struct {
	Config string `help:"Config file path"`

	Listen               string   `toml:"listen" env:"LISTEN" help:"address to listen on, e.g. 0.0.0.0:5258"`
	Certificate          string   `toml:"certificate" env:"CERTIFICATE" help:"path to TLS certificate"`
	Key                  string   `toml:"key" env:"KEY" help:"path to TLS private key"`
	Password             string   `toml:"password" env:"PASSWORD" help:"shared password for client authentication"`
	SwitchKeys           []string `toml:"switch-keys" env:"SWITCH_KEYS" help:"key combo that rotates the routing target"`
	PropagateSwitchKeys  bool     `toml:"propagate-switch-keys" env:"PROPAGATE_SWITCH_KEYS" help:"forward the switch combo's own key events to the target that was active before the switch"`
	DeviceDirectory      string   `toml:"device-directory" env:"DEVICE_DIRECTORY" help:"directory scanned for input devices"`

	LoggingLevel  string `toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat string `toml:"logging.format" env:"LOGGING_FORMAT"`

	StatusListen string `toml:"status-listen" env:"STATUS_LISTEN" help:"address for the read-only status/metrics HTTP surface, empty disables it"`
}

// ClientConfig holds the configuration for rkvm-client.
type ClientConfig struct {
	Config string `help:"Config file path"`

	Server      string `toml:"server" env:"SERVER" help:"server address to dial, host:port"`
	Certificate string `toml:"certificate" env:"CERTIFICATE" help:"path to TLS certificate used to verify the server"`
	Password    string `toml:"password" env:"PASSWORD" help:"shared password for server authentication"`

	ReadTimeoutSeconds int `toml:"timeout.read" env:"TIMEOUT_READ" help:"seconds before an idle connection is considered dead"`
	WriteTimeoutSeconds int `toml:"timeout.write" env:"TIMEOUT_WRITE" help:"seconds before a stalled write is aborted"`
	TLSTimeoutSeconds  int `toml:"timeout.tls" env:"TIMEOUT_TLS" help:"seconds allowed for the TLS handshake"`

	LoggingLevel  string `toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat string `toml:"logging.format" env:"LOGGING_FORMAT"`
}

// DefaultServerConfig returns a ServerConfig populated with the same
// defaults rkvm-server falls back to when no file, environment variable,
// or flag overrides a field.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Listen:              "0.0.0.0:5258",
		SwitchKeys:          []string{"KEY_LEFTCTRL", "KEY_LEFTMETA"},
		PropagateSwitchKeys: true,
		DeviceDirectory:     "/dev/input",
		LoggingLevel:        "info",
		LoggingFormat:       "text",
	}
}

// DefaultClientConfig returns a ClientConfig populated with rkvm-client's
// fallback defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ReadTimeoutSeconds:  30,
		WriteTimeoutSeconds: 5,
		TLSTimeoutSeconds:   10,
		LoggingLevel:        "info",
		LoggingFormat:       "text",
	}
}
