package consoleconfig

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Viper keys
const (
	KeyRoverURL           = "rover.url"
	KeyStreamURL          = "stream.url"
	KeyListenAddress      = "panel.listen"
	KeyTapAddress         = "tap.address"
	KeyTapQueue           = "tap.queue"
	KeyDebug              = "log.debug"
	KeyRetryOnStateChange = "webrtc.retry_on_state_change"
	KeyRetryOnError       = "webrtc.retry_on_error"
	KeyOfferTimeout       = "webrtc.offer_timeout"
	KeyICEServers         = "webrtc.ice_servers"
	KeySimulatorListen    = "simulator.listen"
)

// Config holds everything the console needs at runtime
type Config struct {
	RoverURL      string
	StreamURL     string
	ListenAddress string

	// ZeroMQ command tap, disabled when empty
	TapAddress string
	TapQueue   int

	Debug bool

	RetryOnStateChange time.Duration
	RetryOnError       time.Duration
	OfferTimeout       time.Duration
	ICEServers         []string

	SimulatorListen string
}

// New creates a viper instance with defaults, environment bindings and the optional config file loaded
func New() (*viper.Viper, error) {
	v := viper.New()

	v.SetDefault(KeyRoverURL, "")
	v.SetDefault(KeyStreamURL, "")
	v.SetDefault(KeyListenAddress, "127.0.0.1:8080")
	v.SetDefault(KeyTapAddress, "")
	v.SetDefault(KeyTapQueue, 64)
	v.SetDefault(KeyDebug, false)
	v.SetDefault(KeyRetryOnStateChange, 2*time.Second)
	v.SetDefault(KeyRetryOnError, 3*time.Second)
	v.SetDefault(KeyOfferTimeout, 10*time.Second)
	v.SetDefault(KeyICEServers, []string{})
	v.SetDefault(KeySimulatorListen, "0.0.0.0:8000")

	v.SetEnvPrefix("ROVERCONSOLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv(KeyRoverURL, "ROVERCONSOLE_ROVER_URL", "ROVER_URL")
	_ = v.BindEnv(KeyStreamURL, "ROVERCONSOLE_STREAM_URL")
	_ = v.BindEnv(KeyListenAddress, "ROVERCONSOLE_LISTEN")
	_ = v.BindEnv(KeyTapAddress, "ROVERCONSOLE_TAP")
	_ = v.BindEnv(KeyDebug, "ROVERCONSOLE_DEBUG")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, path := range []string{
		".",
		filepath.Join(xdg.ConfigHome, "roverconsole"),
		"/etc/roverconsole",
	} {
		v.AddConfigPath(os.ExpandEnv(path))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but could not be parsed
			return nil, errors.Wrap(err, "reading config file")
		}
	}
	return v, nil
}

// Load reads the resolved configuration out of viper
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		RoverURL:           v.GetString(KeyRoverURL),
		StreamURL:          v.GetString(KeyStreamURL),
		ListenAddress:      v.GetString(KeyListenAddress),
		TapAddress:         v.GetString(KeyTapAddress),
		TapQueue:           v.GetInt(KeyTapQueue),
		Debug:              v.GetBool(KeyDebug),
		RetryOnStateChange: v.GetDuration(KeyRetryOnStateChange),
		RetryOnError:       v.GetDuration(KeyRetryOnError),
		OfferTimeout:       v.GetDuration(KeyOfferTimeout),
		ICEServers:         v.GetStringSlice(KeyICEServers),
		SimulatorListen:    v.GetString(KeySimulatorListen),
	}

	if cfg.RetryOnStateChange <= 0 || cfg.RetryOnError <= 0 {
		return cfg, errors.Errorf("retry delays must be positive (got %s and %s)", cfg.RetryOnStateChange, cfg.RetryOnError)
	}
	if cfg.TapQueue <= 0 {
		return cfg, errors.Errorf("tap queue must be positive (got %d)", cfg.TapQueue)
	}
	return cfg, nil
}
