package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultLanguage           = "en"
	DefaultAPITimeout         = 30 * time.Second
	DefaultSessionHeader      = "X-SessionId"
	DefaultTTLSlack           = 30 * time.Second
	DefaultNumberOfEvents     = 10
	DefaultMarketsPerEvent    = 3
	DefaultPageStep           = 10
	DefaultCommandTimeout     = 10 * time.Second
	DefaultPingTimeout        = 60 * time.Second
	DefaultWriteTimeout       = 5 * time.Second
	DefaultSocketBuffer       = 4096
	DefaultSubscriptionBuffer = 256
	DefaultDialTimeout        = 10 * time.Second
	DefaultStreamBuffer       = 256
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 10
	DefaultMinConns           = 2
	DefaultBatchSize          = 500
	DefaultFlushInterval      = 1 * time.Second
	DefaultArchiveBuffer      = 10000
	DefaultMetricsPort        = 9090
	DefaultMetricsPath        = "/metrics"
)

func (c *SyncConfig) applyDefaults() {
	// Operator defaults
	if c.Operator.Language == "" {
		c.Operator.Language = DefaultLanguage
	}

	// API defaults
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}

	// Session defaults
	if c.Session.SessionHeader == "" {
		c.Session.SessionHeader = DefaultSessionHeader
	}
	if c.Session.TTLSlack == 0 {
		c.Session.TTLSlack = DefaultTTLSlack
	}

	// Feed defaults
	if c.Feed.NumberOfEvents == 0 {
		c.Feed.NumberOfEvents = DefaultNumberOfEvents
	}
	if c.Feed.MarketsPerEvent == 0 {
		c.Feed.MarketsPerEvent = DefaultMarketsPerEvent
	}
	if c.Feed.PageStep == 0 {
		c.Feed.PageStep = DefaultPageStep
	}

	// Socket defaults
	if c.Socket.CommandTimeout == 0 {
		c.Socket.CommandTimeout = DefaultCommandTimeout
	}
	if c.Socket.PingTimeout == 0 {
		c.Socket.PingTimeout = DefaultPingTimeout
	}
	if c.Socket.WriteTimeout == 0 {
		c.Socket.WriteTimeout = DefaultWriteTimeout
	}
	if c.Socket.BufferSize == 0 {
		c.Socket.BufferSize = DefaultSocketBuffer
	}
	if c.Socket.SubscriptionBuffer == 0 {
		c.Socket.SubscriptionBuffer = DefaultSubscriptionBuffer
	}

	// Stream defaults
	if c.Stream.DialTimeout == 0 {
		c.Stream.DialTimeout = DefaultDialTimeout
	}
	if c.Stream.Buffer == 0 {
		c.Stream.Buffer = DefaultStreamBuffer
	}

	// Archive defaults
	applyDBDefaults(&c.Archive.Postgres)
	if c.Archive.BatchSize == 0 {
		c.Archive.BatchSize = DefaultBatchSize
	}
	if c.Archive.FlushInterval == 0 {
		c.Archive.FlushInterval = DefaultFlushInterval
	}
	if c.Archive.BufferSize == 0 {
		c.Archive.BufferSize = DefaultArchiveBuffer
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
