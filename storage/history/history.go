// Package history journals committed reserve events to SQL and exports them
// for offline analysis.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"flashreserve/core/events"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// ErrDriver is returned for an unsupported driver name.
var ErrDriver = errors.New("history: unsupported driver")

// Entry is one journaled event.
type Entry struct {
	ID         uint64            `gorm:"primaryKey;autoIncrement" json:"id"`
	Type       string            `gorm:"size:64;index" json:"type"`
	Actor      string            `gorm:"size:96;index" json:"actor,omitempty"`
	Payload    string            `gorm:"type:text" json:"-"`
	Attributes map[string]string `gorm:"-" json:"attributes"`
	CreatedAt  time.Time         `gorm:"index" json:"createdAt"`
}

func (Entry) TableName() string { return "reserve_events" }

// Filter narrows a history query. Results are ordered by ascending ID.
type Filter struct {
	Type    string
	Actor   string
	AfterID uint64
	Limit   int
}

// Store is an events.Emitter that appends every event to the journal.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open connects to the journal with the named driver ("sqlite" or
// "postgres") and migrates the schema.
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrDriver, driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", driver, err)
	}
	return New(db)
}

// New wraps an existing connection and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("history: nil database")
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return &Store{db: db, logger: slog.Default(), now: time.Now}, nil
}

// SetLogger configures where Emit reports journal failures.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger.With("component", "history")
	}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Emit implements events.Emitter. Journal failures are logged, never
// propagated, since the event has already been committed.
func (s *Store) Emit(evt events.Event) {
	if err := s.Record(context.Background(), evt); err != nil {
		s.logger.Error("history append failed", "type", evt.EventType(), "error", err)
	}
}

// Record appends evt to the journal.
func (s *Store) Record(ctx context.Context, evt events.Event) error {
	entry := Entry{Type: evt.EventType(), CreatedAt: s.now().UTC()}
	attrs := map[string]string{}
	if raw := events.Raw(evt); raw != nil && raw.Attributes != nil {
		attrs = raw.Attributes
	}
	entry.Actor = actorOf(attrs)
	payload, err := json.Marshal(attrs)
	if err != nil {
		return err
	}
	entry.Payload = string(payload)
	return s.db.WithContext(ctx).Create(&entry).Error
}

func actorOf(attrs map[string]string) string {
	for _, key := range []string{"caller", "authority"} {
		if v := attrs[key]; v != "" {
			return v
		}
	}
	return ""
}

// Query returns journal entries matching f.
func (s *Store) Query(ctx context.Context, f Filter) ([]Entry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	q := s.db.WithContext(ctx).Model(&Entry{}).Where("id > ?", f.AfterID)
	if t := strings.TrimSpace(f.Type); t != "" {
		q = q.Where("type = ?", t)
	}
	if a := strings.TrimSpace(f.Actor); a != "" {
		q = q.Where("actor = ?", a)
	}
	var out []Entry
	if err := q.Order("id ASC").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	for i := range out {
		if err := json.Unmarshal([]byte(out[i].Payload), &out[i].Attributes); err != nil {
			return nil, fmt.Errorf("history: decode entry %d: %w", out[i].ID, err)
		}
	}
	return out, nil
}
