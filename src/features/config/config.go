package config

// Config holds the application configuration.
type Config struct {
	Files     []WatchFile `yaml:"files" validate:"required,min=1,dive"`
	Deadline  string      `yaml:"deadline" validate:"required"`
	ShowTotal bool        `yaml:"show_total"`
	Counter   Counter     `yaml:"counter"`
	Watcher   Watcher     `yaml:"watcher"`
	Logger    Logger      `yaml:"logger"`
	Server    Server      `yaml:"server"`
}

// WatchFile is a single file whose word count is tracked.
type WatchFile struct {
	Path    string `yaml:"path" validate:"required"`
	Display string `yaml:"display" validate:"required"`
}

// Counter holds the configuration for the external counting tool.
type Counter struct {
	Binary string `yaml:"binary"` // defaults to "texcount"
}

// Watcher holds tuning knobs for the change-event pipeline.
type Watcher struct {
	QueueSize     int `yaml:"queue_size"`     // bounded event channel between bridge and engine
	MaxConcurrent int `yaml:"max_concurrent"` // cap on parallel recounts across files
}

// Logger holds the configuration for the app logging
type Logger struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Server holds the configuration for the Fiber server
type Server struct {
	PrintRoutes bool   `yaml:"show_routes"`
	Port        uint32 `yaml:"port"`
	MetricsPort uint32 `yaml:"metrics_port"` // 0 disables the prometheus listener
}
