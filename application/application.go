package application

import (
	"fmt"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lk2023060901/object-garden-go/bridge"
	zlog "github.com/lk2023060901/object-garden-go/pkg/log"
	"github.com/lk2023060901/object-garden-go/pkg/metrics"
	zviper "github.com/lk2023060901/object-garden-go/pkg/util/viper"
)

// Application is the main runtime container for an object-garden process.
// It owns configuration, logging, and the engine instance.
type Application struct {
	cfg     *zviper.Config
	engine  *bridge.Engine
	loggers map[string]*zlog.MLogger
}

// New creates a new Application instance.
func New() *Application {
	return &Application{}
}

// Run is the entry of an object-garden application.
// It parses command-line arguments (os.Args) and loads configuration file
// using the following priority:
//  1. Default: ./config.yaml
//  2. Env: GARDEN_CONFIG_FILE_PATH
//  3. CLI: --config <path> or --config=<path>
//
// After configuration is loaded it initializes logging, registers the
// engine metrics, and builds the engine from the "engine" config section.
func (a *Application) Run() error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	a.cfg = cfg

	if err := a.initLogging(); err != nil {
		return err
	}

	if a.cfg.GetBool("metrics.enabled", false) {
		metrics.Register(prometheus.DefaultRegisterer)
	}

	engineCfg := bridge.DefaultConfig()
	if err := a.cfg.UnmarshalKey("engine", &engineCfg); err != nil {
		return fmt.Errorf("parse engine config: %w", err)
	}
	a.engine = bridge.NewEngine(engineCfg)
	return nil
}

// Close releases the engine resources.
func (a *Application) Close() {
	if a.engine != nil {
		a.engine.Close()
	}
}

// Config returns the loaded configuration, if any.
func (a *Application) Config() *zviper.Config {
	return a.cfg
}

// Engine returns the engine built from configuration.
// It is nil before Run succeeds.
func (a *Application) Engine() *bridge.Engine {
	return a.engine
}

// Logger returns a named logger created from configuration.
// If the name is unknown, it falls back to the global logger.
func (a *Application) Logger(name string) *zlog.MLogger {
	if a.loggers == nil {
		return &zlog.MLogger{Logger: zlog.L()}
	}
	if lg, ok := a.loggers[name]; ok && lg != nil {
		return lg
	}
	return &zlog.MLogger{Logger: zlog.L()}
}

// loadConfig resolves config file path and loads it via viper wrapper.
// A missing config file is not fatal: the application falls back to
// defaults with GARDEN_* env overrides.
func (a *Application) loadConfig() (*zviper.Config, error) {
	configPath := "./config.yaml"
	explicit := false

	if envPath := os.Getenv("GARDEN_CONFIG_FILE_PATH"); envPath != "" {
		configPath = envPath
		explicit = true
	}

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--config" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value after --config")
			}
			configPath = args[i+1]
			explicit = true
			i++
			continue
		}
		if strings.HasPrefix(arg, "--config=") {
			val := strings.TrimPrefix(arg, "--config=")
			if val != "" {
				configPath = val
				explicit = true
			}
			continue
		}
	}

	cfg := zviper.New()
	cfg.BindEnv("GARDEN")
	if err := cfg.LoadFile(configPath); err != nil {
		if explicit {
			return nil, fmt.Errorf("failed to load config file %q: %w", configPath, err)
		}
		// 默认路径下没有配置文件时按全默认运行。
		return cfg, nil
	}

	return cfg, nil
}

// initLogging initializes global and module-level loggers.
func (a *Application) initLogging() error {
	if err := a.initGlobalLoggerFromEnv(); err != nil {
		return err
	}
	if err := a.initModuleLoggersFromConfig(); err != nil {
		return err
	}
	return nil
}

// initGlobalLoggerFromEnv configures the process-wide logger based on GARDEN_LOG_* env vars.
//
// Priority:
//   - GARDEN_LOG_ENABLE: "1"/"true" to enable outputs; others treated as disabled.
//   - GARDEN_LOG_LEVEL: log level (default "info").
//   - GARDEN_LOG_STDOUT: whether to log to stdout (default false).
//   - GARDEN_LOG_FILE_DIR: log directory.
//   - GARDEN_LOG_FILE: log file name (empty means no file).
//   - GARDEN_LOG_FORMAT: log format ("text" or "json", default "text").
func (a *Application) initGlobalLoggerFromEnv() error {
	enabled := getenvBool("GARDEN_LOG_ENABLE", false)

	cfg := &zlog.Config{
		Level:             getenvDefault("GARDEN_LOG_LEVEL", "info"),
		Format:            getenvDefault("GARDEN_LOG_FORMAT", "text"),
		DisableTimestamp:  false,
		Stdout:            getenvBool("GARDEN_LOG_STDOUT", false),
		DisableCaller:     false,
		DisableStacktrace: false,
		File: zlog.FileLogConfig{
			RootPath: getenvDefault("GARDEN_LOG_FILE_DIR", ""),
			Filename: getenvDefault("GARDEN_LOG_FILE", ""),
		},
	}

	// When not enabled, direct all outputs to a discarded sink.
	if !enabled {
		cfg.Stdout = false
		cfg.File.Filename = ""
	}

	logger, props, err := zlog.InitLogger(cfg)
	if err != nil {
		return fmt.Errorf("init global logger from env: %w", err)
	}
	zlog.ReplaceGlobals(logger, props)
	return nil
}

// initModuleLoggersFromConfig creates named loggers from YAML config under "logging" key.
//
// Example:
//
//	logging:
//	  engine:
//	    level: debug
//	    stdout: true
//	    file:
//	      rootpath: ./logs
//	      filename: engine.log
func (a *Application) initModuleLoggersFromConfig() error {
	if a.cfg == nil {
		return nil
	}

	raw := make(map[string]zlog.Config)
	if err := a.cfg.UnmarshalKey("logging", &raw); err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}

	a.loggers = make(map[string]*zlog.MLogger, len(raw))
	for name, lc := range raw {
		cfgCopy := lc
		logger, _, err := zlog.InitLogger(&cfgCopy)
		if err != nil {
			return fmt.Errorf("init module logger %q: %w", name, err)
		}
		a.loggers[name] = &zlog.MLogger{Logger: logger}
	}

	return nil
}

func getenvDefault(key, def string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	return val
}

func getenvBool(key string, def bool) bool {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
