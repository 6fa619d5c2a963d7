package printbridge

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration of the bridge.
type Config struct {
	Socket    string          `yaml:"socket"`
	Log       LogConfig       `yaml:"log"`
	Bluetooth BluetoothConfig `yaml:"bluetooth"`
	USB       USBConfig       `yaml:"usb"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

type BluetoothConfig struct {
	Adapter string `yaml:"adapter"` // BlueZ adapter name, e.g. "hci0"
	Channel int    `yaml:"channel"` // RFCOMM channel
	// Ports maps a device address to an already bound serial node such as
	// /dev/rfcomm0, or to driver://address such as tcp://10.0.0.5:9100.
	// Devices listed here are not dialed over RFCOMM.
	Ports map[string]string `yaml:"ports"`
}

type USBConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		Socket: DefaultSocketPath(),
		Log:    LogConfig{Level: "info", Format: "text"},
		Bluetooth: BluetoothConfig{
			Adapter: "hci0",
			Channel: 1,
		},
		USB: USBConfig{Timeout: DefaultUSBTimeout},
	}
}

// DefaultConfigPath is $XDG_CONFIG_HOME/printbridge/config.yaml.
func DefaultConfigPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		dir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(dir, "printbridge", "config.yaml")
}

// DefaultSocketPath is $XDG_RUNTIME_DIR/printbridge.sock.
func DefaultSocketPath() string {
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = "/tmp"
	}
	return filepath.Join(dir, "printbridge.sock")
}

// LoadConfig reads path over the defaults. A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	cfg.fill()
	return cfg, nil
}

// fill restores defaults for fields the file set to zero values.
func (c *Config) fill() {
	def := DefaultConfig()
	if c.Socket == "" {
		c.Socket = def.Socket
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
	if c.Bluetooth.Adapter == "" {
		c.Bluetooth.Adapter = def.Bluetooth.Adapter
	}
	if c.Bluetooth.Channel == 0 {
		c.Bluetooth.Channel = def.Bluetooth.Channel
	}
	if c.USB.Timeout <= 0 {
		c.USB.Timeout = def.USB.Timeout
	}
}

// Apply configures logger from c.
func (c LogConfig) Apply(logger *logrus.Logger) error {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return errors.Wrap(err, "log level")
	}
	logger.SetLevel(level)

	switch strings.ToLower(c.Format) {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return errors.Errorf("unknown log format %q", c.Format)
	}
	return nil
}
