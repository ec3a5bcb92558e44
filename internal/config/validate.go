package config

import (
	"errors"
	"fmt"

	"golang.org/x/text/language"
)

// Validate checks that all required fields are set and values are valid.
func (c *SyncConfig) Validate() error {
	if c.Operator.ID == "" {
		return errors.New("operator.id is required")
	}
	if _, err := language.Parse(c.Operator.Language); err != nil {
		return fmt.Errorf("operator.language %q is not a valid language tag", c.Operator.Language)
	}

	if c.API.RestURL == "" {
		return errors.New("api.rest_url is required")
	}
	if c.API.SocketURL == "" {
		return errors.New("api.socket_url is required")
	}

	if c.Feed.SportID == "" {
		return errors.New("feed.sport_id is required")
	}
	if c.Feed.NumberOfEvents < 1 {
		return errors.New("feed.number_of_events must be >= 1")
	}
	if c.Feed.MarketsPerEvent < 1 {
		return errors.New("feed.markets_per_event must be >= 1")
	}
	if c.Feed.PageStep < 1 {
		return errors.New("feed.page_step must be >= 1")
	}

	if c.Socket.SubscriptionBuffer < 1 {
		return errors.New("socket.subscription_buffer must be >= 1")
	}

	if c.ArchiveEnabled() {
		if err := c.Archive.Postgres.validate("archive.postgres"); err != nil {
			return err
		}
		if c.Archive.BatchSize < 1 {
			return errors.New("archive.batch_size must be >= 1")
		}
		if c.Archive.BufferSize < 1 {
			return errors.New("archive.buffer_size must be >= 1")
		}
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
