package config

const (
	defaultDataDir              = "~/.local/share/segcheck"
	defaultLogDir               = "~/.local/share/segcheck/logs"
	defaultBind                 = "127.0.0.1:7371"
	defaultKeepAliveInterval    = 20
	defaultIdleTimeout          = 60
	defaultWriteTimeout         = 10
	defaultMaxMessageBytes      = 1 << 20
	defaultSendBuffer           = 16
	defaultLockReapInterval     = 30
	defaultAcquireRetries       = 8
	defaultAudioExtractor       = "ffmpeg"
	defaultAudioEncoding        = "wav"
	defaultAudioContextMS       = 1000
	defaultFFmpegBinary         = "ffmpeg"
	defaultAudioDownloadTimeout = 30
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	envBindOverride             = "SEGCHECK_BIND"
	envDataDirOverride          = "SEGCHECK_DATA_DIR"
	extractorFFmpeg             = "ffmpeg"
	extractorPassthrough        = "passthrough"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Server: Server{
			Bind:              defaultBind,
			KeepAliveInterval: defaultKeepAliveInterval,
			IdleTimeout:       defaultIdleTimeout,
			WriteTimeout:      defaultWriteTimeout,
			MaxMessageBytes:   defaultMaxMessageBytes,
			SendBuffer:        defaultSendBuffer,
		},
		Locks: Locks{
			ReapInterval: defaultLockReapInterval,
		},
		Coordinator: Coordinator{
			AcquireRetries: defaultAcquireRetries,
		},
		Audio: Audio{
			Extractor:        defaultAudioExtractor,
			Encoding:         defaultAudioEncoding,
			DefaultContextMS: defaultAudioContextMS,
			FFmpegBinary:     defaultFFmpegBinary,
			DownloadTimeout:  defaultAudioDownloadTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
