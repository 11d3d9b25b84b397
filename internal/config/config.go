package config

import (
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/wvasim/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultEnvPrefix = "WVASIM"
	DefaultLogLevel  = string(LogLevelInfo)

	defaultConfigName = "wvasim"
	defaultConfigDir  = "/etc/wvasim"

	defaultDiscoveryAddr = ":8080"
	defaultStreamAddr    = "0.0.0.0:5000"
	defaultSampleDelay   = 200 * time.Millisecond
	defaultCycleDelay    = 10 * time.Second
	defaultWebsocketPath = "/stream"
	defaultMetricsPath   = "/metrics"
	discoveryMountPath   = "/ws" // also served with a trailing slash
	defaultJournalDB     = "/var/lib/wvasim/journal.db"
	defaultBatchSize     = 16
	defaultBatchTimeout  = 5
	defaultMQTTBroker    = "tcp://localhost:1883"
	defaultMQTTTopic     = "wva/telemetry"
)

type Config struct {
	LogLevel  string          `mapstructure:"log_level"`
	PIDFile   string          `mapstructure:"pid_file"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Stream    StreamConfig    `mapstructure:"stream"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Journal   JournalConfig   `mapstructure:"journal"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`

	// ConfigFile is the file that was actually read, if any
	ConfigFile string `mapstructure:"-"`
}

type DiscoveryConfig struct {
	Addr              string `mapstructure:"addr"`
	SeedSubscriptions bool   `mapstructure:"seed_subscriptions"`
}

type StreamConfig struct {
	Addr          string        `mapstructure:"addr"`
	SampleDelay   time.Duration `mapstructure:"sample_delay"`
	CycleDelay    time.Duration `mapstructure:"cycle_delay"`
	Websocket     bool          `mapstructure:"websocket"`
	WebsocketPath string        `mapstructure:"websocket_path"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type JournalConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	DBPath       string `mapstructure:"db_path"`
	BatchSize    int    `mapstructure:"batch_size"`
	BatchTimeout int    `mapstructure:"batch_timeout"`
	BackupDir    string `mapstructure:"backup_dir"`
}

type MQTTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	Topic    string `mapstructure:"topic"`
	ClientID string `mapstructure:"client_id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	QoS      int    `mapstructure:"qos"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("pid_file", "")
	v.SetDefault("discovery.addr", defaultDiscoveryAddr)
	v.SetDefault("discovery.seed_subscriptions", true)
	v.SetDefault("stream.addr", defaultStreamAddr)
	v.SetDefault("stream.sample_delay", defaultSampleDelay)
	v.SetDefault("stream.cycle_delay", defaultCycleDelay)
	v.SetDefault("stream.websocket", true)
	v.SetDefault("stream.websocket_path", defaultWebsocketPath)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", defaultMetricsPath)
	v.SetDefault("journal.enabled", false)
	v.SetDefault("journal.db_path", defaultJournalDB)
	v.SetDefault("journal.batch_size", defaultBatchSize)
	v.SetDefault("journal.batch_timeout", defaultBatchTimeout)
	v.SetDefault("journal.backup_dir", "")
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", defaultMQTTBroker)
	v.SetDefault("mqtt.topic", defaultMQTTTopic)
	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.qos", 0)
}

// flagBindings maps command line flags to configuration keys
var flagBindings = map[string]string{
	"log-level":      "log_level",
	"pid-file":       "pid_file",
	"discovery-addr": "discovery.addr",
	"stream-addr":    "stream.addr",
	"sample-delay":   "stream.sample_delay",
	"cycle-delay":    "stream.cycle_delay",
	"websocket":      "stream.websocket",
	"metrics":        "metrics.enabled",
	"journal":        "journal.enabled",
	"journal-db":     "journal.db_path",
	"mqtt":           "mqtt.enabled",
	"mqtt-broker":    "mqtt.broker",
	"mqtt-topic":     "mqtt.topic",
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("wvasim", pflag.ContinueOnError)
	fs.String("config", "", "Path to a TOML configuration file")
	fs.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	fs.String("pid-file", "", "Write the process ID to this file")
	fs.String("discovery-addr", defaultDiscoveryAddr, "Listen address of the discovery/data HTTP API")
	fs.String("stream-addr", defaultStreamAddr, "Listen address of the telemetry stream")
	fs.Duration("sample-delay", defaultSampleDelay, "Delay between frames within a cycle")
	fs.Duration("cycle-delay", defaultCycleDelay, "Delay between cycles")
	fs.Bool("websocket", true, "Serve the telemetry stream over websocket as well")
	fs.Bool("metrics", true, "Expose Prometheus metrics")
	fs.Bool("journal", false, "Record sessions and cycles to the journal database")
	fs.String("journal-db", defaultJournalDB, "Path of the journal database")
	fs.Bool("mqtt", false, "Mirror telemetry frames to an MQTT broker")
	fs.String("mqtt-broker", defaultMQTTBroker, "MQTT broker URL")
	fs.String("mqtt-topic", defaultMQTTTopic, "Base MQTT topic for mirrored frames")
	return fs
}

// Load reads configuration from defaults, the config file, the
// environment and the command line, in increasing precedence.
func Load(opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := options{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidArgument, err)
		}
	}
	if !o.argsSet && len(os.Args) > 1 {
		o.args = os.Args[1:]
	}

	v := viper.New()
	setDefaults(v)

	fs := newFlagSet()
	if err := fs.Parse(o.args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}
	for name, key := range flagBindings {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := o.configPath
	if env := os.Getenv(o.envPrefix + "_CONFIG"); env != "" {
		configPath = env
	}
	if flagPath, _ := fs.GetString("config"); flagPath != "" {
		configPath = flagPath
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	} else {
		v.SetConfigName(defaultConfigName)
		v.SetConfigType("toml")
		v.AddConfigPath(defaultConfigDir)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, errFactory.Wrap(errors.ErrReadConfig, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the loaded values and reports the first class of problem
// found, with every offending field attached as data.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	var invalid []ValidationError
	if c.Stream.SampleDelay <= 0 {
		invalid = append(invalid, ValidationError{"stream.sample_delay", c.Stream.SampleDelay, "must be positive"})
	}
	if c.Stream.CycleDelay <= 0 {
		invalid = append(invalid, ValidationError{"stream.cycle_delay", c.Stream.CycleDelay, "must be positive"})
	}
	if len(invalid) > 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, invalid)
	}

	if c.Discovery.Addr == "" {
		invalid = append(invalid, ValidationError{"discovery.addr", c.Discovery.Addr, "must not be empty"})
	}
	if c.Stream.Addr == "" {
		invalid = append(invalid, ValidationError{"stream.addr", c.Stream.Addr, "must not be empty"})
	}
	if len(invalid) > 0 {
		return errFactory.WithData(errors.ErrInvalidAddress, invalid)
	}

	if c.Stream.Websocket && !strings.HasPrefix(c.Stream.WebsocketPath, "/") {
		invalid = append(invalid, ValidationError{"stream.websocket_path", c.Stream.WebsocketPath, "must start with /"})
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		invalid = append(invalid, ValidationError{"metrics.path", c.Metrics.Path, "must start with /"})
	}
	invalid = append(invalid, c.pathCollisions()...)
	if c.Journal.Enabled && c.Journal.DBPath == "" {
		invalid = append(invalid, ValidationError{"journal.db_path", c.Journal.DBPath, "required when the journal is enabled"})
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		invalid = append(invalid, ValidationError{"mqtt.qos", c.MQTT.QoS, "must be 0, 1 or 2"})
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		invalid = append(invalid, ValidationError{"mqtt.broker", c.MQTT.Broker, "required when mqtt is enabled"})
	}
	if len(invalid) > 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, invalid)
	}

	return nil
}

// pathCollisions reports handler paths that would register the same
// pattern twice on the discovery HTTP server.
func (c *Config) pathCollisions() []ValidationError {
	taken := map[string]string{
		discoveryMountPath:       "the discovery API",
		discoveryMountPath + "/": "the discovery API",
	}

	var invalid []ValidationError
	claim := func(field, path string) {
		if owner, ok := taken[path]; ok {
			invalid = append(invalid, ValidationError{field, path, "collides with " + owner})
			return
		}
		taken[path] = field
	}
	if c.Metrics.Enabled {
		claim("metrics.path", c.Metrics.Path)
	}
	if c.Stream.Websocket {
		claim("stream.websocket_path", c.Stream.WebsocketPath)
	}
	return invalid
}
