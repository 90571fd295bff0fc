package journal

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Action kinds recorded by the session controller.
const (
	KindLogin   = "login"
	KindToggle  = "toggle"
	KindSubmit  = "submit"
	KindConfig  = "update_config"
	KindRefresh = "refresh"
)

// Outcomes of a recorded action.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected" // failed local validation
	OutcomeFailed   = "failed"   // remote call failed
)

// Entry is one user action performed during this session.
type Entry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	Kind      string    `gorm:"index;not null" json:"kind"`
	Principal string    `json:"principal,omitempty"`
	Input     string    `json:"input,omitempty"`
	Outcome   string    `gorm:"not null" json:"outcome"`
	Result    string    `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Journal records the session's actions. It lives only as long as the process
// when opened with an in-memory DSN.
type Journal struct {
	db *gorm.DB
}

// Open creates a new database connection and migrates the schema.
func Open(dsn string) (*Journal, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	// Each connection to a private in-memory database sees its own empty schema,
	// and a shared one disappears when its last connection closes: hold exactly one.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
	}

	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate journal: %w", err)
	}

	return &Journal{db: db}, nil
}

// Record appends an entry.
func (j *Journal) Record(e *Entry) error {
	if err := j.db.Create(e).Error; err != nil {
		return fmt.Errorf("failed to record %s action: %w", e.Kind, err)
	}
	return nil
}

// Recent returns up to limit entries, most recent first.
func (j *Journal) Recent(limit int) ([]Entry, error) {
	var entries []Entry
	q := j.db.Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	return entries, nil
}

// CountByOutcome returns the number of entries of each outcome.
func (j *Journal) CountByOutcome() (map[string]int64, error) {
	var rows []struct {
		Outcome string
		Count   int64
	}
	if err := j.db.Model(&Entry{}).Select("outcome, count(*) as count").Group("outcome").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count journal entries: %w", err)
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Outcome] = r.Count
	}
	return counts, nil
}

// Close releases the underlying connection.
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
