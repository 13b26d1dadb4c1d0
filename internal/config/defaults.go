package config

const (
	defaultWorkDir      = "~/.local/share/refract/work"
	defaultOutputDir    = "~/videos/refract"
	defaultLogDir       = "~/.local/share/refract/logs"
	defaultFPS          = 20.0
	defaultCRF          = 23
	defaultPreset       = "medium"
	defaultUndistWidth  = 1408
	defaultUndistHeight = 1408
	defaultUndistFOV    = 150.0
	defaultLogFormat    = "console"
	defaultLogLevel     = "info"
	defaultFetchWorkers = 2
	defaultFetchTimeout = 30
	defaultFetchSuffix  = ".rec"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:   defaultWorkDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		Video: Video{
			FPS:    defaultFPS,
			CRF:    defaultCRF,
			Preset: defaultPreset,
		},
		Undistort: Undistort{
			Width:      defaultUndistWidth,
			Height:     defaultUndistHeight,
			FOVDegrees: defaultUndistFOV,
		},
		Fetch: Fetch{
			Workers:        defaultFetchWorkers,
			TimeoutSeconds: defaultFetchTimeout,
			Suffix:         defaultFetchSuffix,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
