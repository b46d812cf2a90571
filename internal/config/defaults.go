package config

const (
	defaultInputDir       = "~/.local/share/scout/incoming"
	defaultDataDir        = "~/.local/share/scout/data"
	defaultLogDir         = "~/.local/share/scout/logs"
	defaultDictionaryPath = "~/.config/scout/brands.yaml"
	defaultServerBind     = "127.0.0.1:8089"
	defaultRequestTimeout = 30
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			InputDir:       defaultInputDir,
			DataDir:        defaultDataDir,
			LogDir:         defaultLogDir,
			DictionaryPath: defaultDictionaryPath,
		},
		Server: Server{
			Bind:               defaultServerBind,
			RequestTimeout:     defaultRequestTimeout,
			PersistPredictions: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
