// Package ingest is a small development backend that issues security tokens
// and stores the snapshots posted by the bridge.
package ingest

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultTokenTTL is how long an issued token is accepted.
const DefaultTokenTTL = time.Hour

var (
	// ErrMissingDataSource is returned by Open for an empty DSN.
	ErrMissingDataSource = errors.New("ingest: missing database data source name")
	// ErrInvalidToken is returned for unknown or expired tokens.
	ErrInvalidToken = errors.New("ingest: invalid or expired token")
	// ErrSnapshotNotFound is returned by Snapshot for unknown IDs.
	ErrSnapshotNotFound = errors.New("ingest: snapshot not found")
)

// Token is an issued security token.
type Token struct {
	Value     string    `gorm:"primaryKey;size:36"`
	IssuedAt  time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

// SnapshotRecord is one stored snapshot.
type SnapshotRecord struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	Timestamp  int64     `gorm:"not null;index" json:"timestamp"`
	Collectors int       `gorm:"not null" json:"collectors"`
	Failed     int       `gorm:"not null" json:"failed"`
	Payload    string    `gorm:"type:text;not null" json:"-"`
	ReceivedAt time.Time `gorm:"not null" json:"receivedAt"`
}

// Store persists tokens and snapshots through gorm.
type Store struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// Open opens (and migrates) the sqlite database at dsn. Use ":memory:" for
// a throwaway store.
func Open(dsn string) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, ErrMissingDataSource
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("ingest: open sqlite database: %w", err)
	}
	if dsn == ":memory:" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("ingest: open sqlite database: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(&Token{}, &SnapshotRecord{}); err != nil {
		return nil, fmt.Errorf("ingest: migrate: %w", err)
	}
	return &Store{db: db, ttl: DefaultTokenTTL, now: time.Now}, nil
}

// SetTokenTTL changes the lifetime of newly issued tokens.
func (s *Store) SetTokenTTL(ttl time.Duration) {
	if ttl > 0 {
		s.ttl = ttl
	}
}

// SetClock replaces the time source. Used by tests.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// IssueToken creates and stores a new token.
func (s *Store) IssueToken() (Token, error) {
	now := s.now().UTC()
	t := Token{Value: uuid.NewString(), IssuedAt: now, ExpiresAt: now.Add(s.ttl)}
	if err := s.db.Create(&t).Error; err != nil {
		return Token{}, fmt.Errorf("ingest: store token: %w", err)
	}
	return t, nil
}

// CheckToken returns ErrInvalidToken unless value is a live token.
func (s *Store) CheckToken(value string) error {
	if value == "" {
		return ErrInvalidToken
	}
	var t Token
	err := s.db.Where("value = ?", value).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrInvalidToken
	}
	if err != nil {
		return fmt.Errorf("ingest: look up token: %w", err)
	}
	if !s.now().Before(t.ExpiresAt) {
		return ErrInvalidToken
	}
	return nil
}

// SaveSnapshot stores rec, assigning an ID and receive time.
func (s *Store) SaveSnapshot(rec *SnapshotRecord) error {
	rec.ID = uuid.NewString()
	rec.ReceivedAt = s.now().UTC()
	if err := s.db.Create(rec).Error; err != nil {
		return fmt.Errorf("ingest: store snapshot: %w", err)
	}
	return nil
}

// Snapshots returns up to limit records, newest first.
func (s *Store) Snapshots(limit int) ([]SnapshotRecord, error) {
	var out []SnapshotRecord
	err := s.db.Order("received_at desc").Limit(limit).Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("ingest: list snapshots: %w", err)
	}
	return out, nil
}

// Snapshot returns one record by ID.
func (s *Store) Snapshot(id string) (SnapshotRecord, error) {
	var rec SnapshotRecord
	err := s.db.Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return SnapshotRecord{}, ErrSnapshotNotFound
	}
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("ingest: load snapshot: %w", err)
	}
	return rec, nil
}
