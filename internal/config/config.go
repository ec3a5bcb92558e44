package config

import "time"

// SyncConfig is the root configuration for a feed synchronization client.
type SyncConfig struct {
	Operator OperatorConfig `yaml:"operator"`
	API      APIConfig      `yaml:"api"`
	Session  SessionConfig  `yaml:"session"`
	Feed     FeedConfig     `yaml:"feed"`
	Socket   SocketConfig   `yaml:"socket"`
	Stream   StreamConfig   `yaml:"stream"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// OperatorConfig identifies the betting operator this client runs for.
type OperatorConfig struct {
	ID       string `yaml:"id"`
	Language string `yaml:"language"` // BCP 47 tag, e.g. "en" or "pt-BR"
}

// APIConfig holds backend endpoint settings.
type APIConfig struct {
	RestURL   string        `yaml:"rest_url"`
	SocketURL string        `yaml:"socket_url"`
	StreamURL string        `yaml:"stream_url"`
	Timeout   time.Duration `yaml:"timeout"`
}

// SessionConfig holds authentication settings.
type SessionConfig struct {
	Username      string        `yaml:"username"`
	Secret        string        `yaml:"secret"`
	SessionHeader string        `yaml:"session_header"`
	UserHeader    string        `yaml:"user_header"`
	TTLSlack      time.Duration `yaml:"ttl_slack"` // refresh this long before expiry
}

// FeedConfig describes the sport subscription the client opens on start.
type FeedConfig struct {
	SportID         string `yaml:"sport_id"`
	NumberOfEvents  int    `yaml:"number_of_events"`
	MarketsPerEvent int    `yaml:"markets_per_event"`
	PageStep        int    `yaml:"page_step"`
	InPlayOnly      bool   `yaml:"in_play_only"`
}

// SocketConfig holds socket connector settings.
type SocketConfig struct {
	CommandTimeout     time.Duration `yaml:"command_timeout"`
	PingTimeout        time.Duration `yaml:"ping_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	BufferSize         int           `yaml:"buffer_size"`
	SubscriptionBuffer int           `yaml:"subscription_buffer"`
}

// StreamConfig holds streaming connector settings.
type StreamConfig struct {
	DialTimeout time.Duration `yaml:"dial_timeout"`
	Buffer      int           `yaml:"buffer"`
}

// ArchiveConfig holds the optional delta archive. The archive is disabled
// when postgres.host is empty.
type ArchiveConfig struct {
	Postgres      DBConfig      `yaml:"postgres"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// ArchiveEnabled reports whether a delta archive target is configured.
func (c *SyncConfig) ArchiveEnabled() bool {
	return c.Archive.Postgres.Host != ""
}
