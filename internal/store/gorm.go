// ABOUTME: GORM implementation of SessionStore for postgres
// ABOUTME: Uses row structs with AutoMigrate instead of hand-written schema

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

type sessionRow struct {
	UserID    string    `gorm:"primaryKey;size:191;index:idx_session_rows_owner,priority:1"`
	AgentName string    `gorm:"primaryKey;size:191;index:idx_session_rows_owner,priority:2"`
	SessionID string    `gorm:"primaryKey;size:191"`
	AgentID   string    `gorm:"size:191;not null;default:''"`
	CreatedAt time.Time `gorm:"not null;index:idx_session_rows_owner,priority:3"`
}

func (sessionRow) TableName() string {
	return "sessions"
}

func (r sessionRow) toSession() *Session {
	return &Session{
		UserID:    r.UserID,
		AgentName: r.AgentName,
		SessionID: r.SessionID,
		AgentID:   r.AgentID,
		CreatedAt: r.CreatedAt,
	}
}

// GormStore implements SessionStore on top of gorm.
type GormStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

// OpenGorm opens a gorm connection. Only "postgres" is supported; sqlite
// deployments use SQLiteStore.
func OpenGorm(driver, dsn string) (*gorm.DB, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("dsn is required for driver %q", driver)
	}

	cfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
	switch driver {
	case "postgres":
		return gorm.Open(postgres.Open(dsn), cfg)
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}

// NewGormStore opens the database and migrates the sessions table.
func NewGormStore(driver, dsn string) (*GormStore, error) {
	db, err := OpenGorm(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open gorm store: %w", err)
	}

	if err := db.AutoMigrate(&sessionRow{}); err != nil {
		return nil, fmt.Errorf("migrate sessions: %w", err)
	}

	logger := slog.Default().With("component", "store")
	logger.Info("gorm store initialized", "driver", driver)
	return &GormStore{db: db, logger: logger}, nil
}

func (s *GormStore) SaveSession(ctx context.Context, session *Session) error {
	if err := session.Validate(); err != nil {
		return err
	}

	row := sessionRow{
		UserID:    session.UserID,
		AgentName: session.AgentName,
		SessionID: session.SessionID,
		AgentID:   session.AgentID,
		CreatedAt: session.CreatedAt.UTC(),
	}
	if session.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "agent_name"}, {Name: "session_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"agent_id"}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *GormStore) DeleteSession(ctx context.Context, userID, agentName, sessionID string) error {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND agent_name = ? AND session_id = ?", userID, agentName, sessionID).
		Delete(&sessionRow{})
	if res.Error != nil {
		return fmt.Errorf("delete session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ListSessions(ctx context.Context, userID, agentName string) ([]*Session, error) {
	var rows []sessionRow
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND agent_name = ?", userID, agentName).
		Order("created_at ASC").
		Order("session_id ASC").
		Find(&rows).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	sessions := make([]*Session, 0, len(rows))
	for _, r := range rows {
		sessions = append(sessions, r.toSession())
	}
	return sessions, nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
