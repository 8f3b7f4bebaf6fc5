package db

import (
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"

	"delivery-service/internal/config"
	"delivery-service/internal/repositories"
)

// Store groups the repositories backing the service.
type Store struct {
	Notifications repositories.NotificationRepository
	Conversations repositories.ConversationRepository
	Messages      repositories.MessageRepository
	// DB is nil for the memory store.
	DB     *sqlx.DB
	closer io.Closer
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// NewStoreFromConfig creates a Store based on the database config type.
func NewStoreFromConfig(cfg config.DatabaseConfig) (*Store, error) {
	switch cfg.Type {
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("dsn required for postgres database")
		}
		conn, err := Connect(cfg.DSN)
		if err != nil {
			return nil, err
		}
		if cfg.MigrateOnStart {
			if err := MigrateUp(conn.DB); err != nil {
				conn.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		return &Store{
			Notifications: repositories.NewNotificationRepo(conn),
			Conversations: repositories.NewConversationRepo(conn),
			Messages:      repositories.NewMessageRepo(conn),
			DB:            conn,
			closer:        conn,
		}, nil
	case "memory":
		mem := repositories.NewMemoryStore()
		return &Store{
			Notifications: mem,
			Conversations: mem,
			Messages:      mem,
			closer:        mem,
		}, nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
