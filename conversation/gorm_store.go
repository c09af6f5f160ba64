package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// conversationRow is the relational shape of a conversation's metadata.
type conversationRow struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Title     string    `gorm:"size:255;not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null;index:idx_conversations_updated"`
}

func (conversationRow) TableName() string { return "conversations" }

// roundRow stores one round as a JSON payload. Rounds are immutable and
// read back whole, so a text column beats a table per nested slice.
type roundRow struct {
	ID             string    `gorm:"primaryKey;size:36"`
	ConversationID string    `gorm:"size:36;not null;index:idx_rounds_conversation"`
	Seq            int       `gorm:"not null"`
	Payload        string    `gorm:"type:text;not null"`
	CreatedAt      time.Time `gorm:"not null"`
}

func (roundRow) TableName() string { return "rounds" }

func newRoundRow(conversationID string, seq int, round Round) (roundRow, error) {
	stampRound(&round)
	payload, err := json.Marshal(round)
	if err != nil {
		return roundRow{}, fmt.Errorf("failed to marshal round: %w", err)
	}
	return roundRow{
		ID:             round.ID,
		ConversationID: conversationID,
		Seq:            seq,
		Payload:        string(payload),
		CreatedAt:      round.CreatedAt,
	}, nil
}

// DatabaseStore is a GORM-backed implementation of Store for long-term
// archives. Supports postgres, mysql and sqlite.
type DatabaseStore struct {
	db *gorm.DB
}

// OpenDatabase opens a GORM connection for the configured driver.
func OpenDatabase(config DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch config.Driver {
	case "postgres":
		dialector = postgres.Open(config.DSN)
	case "mysql":
		dialector = mysql.Open(config.DSN)
	case "sqlite", "":
		dialector = sqlite.Open(config.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", config.Driver)
	}
	return gorm.Open(dialector, &gorm.Config{})
}

// NewDatabaseStore opens the configured database and wraps it in a store.
// Schema management is the migration tooling's business; use AutoMigrate
// only for development and tests.
func NewDatabaseStore(config StoreConfig) (*DatabaseStore, error) {
	db, err := OpenDatabase(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open conversation database: %w", err)
	}
	return &DatabaseStore{db: db}, nil
}

// NewDatabaseStoreWithDB wraps an existing GORM connection.
func NewDatabaseStoreWithDB(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

// AutoMigrate creates or updates the conversations and rounds tables.
func (s *DatabaseStore) AutoMigrate() error {
	return s.db.AutoMigrate(&conversationRow{}, &roundRow{})
}

// Close closes the underlying connection pool
func (s *DatabaseStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks if the store is healthy
func (s *DatabaseStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Create persists a new conversation
func (s *DatabaseStore) Create(ctx context.Context, conv *Conversation) error {
	if conv == nil {
		return ErrInvalidInput
	}

	stampNew(conv)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing conversationRow
		err := tx.First(&existing, "id = ?", conv.ID).Error
		if err == nil {
			return ErrAlreadyExists
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		row := conversationRow{
			ID:        conv.ID,
			Title:     conv.Title,
			CreatedAt: conv.CreatedAt,
			UpdatedAt: conv.UpdatedAt,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}

		for i := range conv.Rounds {
			rr, err := newRoundRow(conv.ID, i, conv.Rounds[i])
			if err != nil {
				return err
			}
			conv.Rounds[i].ID = rr.ID
			if err := tx.Create(&rr).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Get retrieves a conversation with all of its rounds
func (s *DatabaseStore) Get(ctx context.Context, id string) (*Conversation, error) {
	var row conversationRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var roundRows []roundRow
	if err := s.db.WithContext(ctx).
		Where("conversation_id = ?", id).
		Order("seq ASC").
		Find(&roundRows).Error; err != nil {
		return nil, err
	}

	conv := &Conversation{
		ID:        row.ID,
		Title:     row.Title,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
		Rounds:    make([]Round, 0, len(roundRows)),
	}
	for _, rr := range roundRows {
		var round Round
		if err := json.Unmarshal([]byte(rr.Payload), &round); err != nil {
			return nil, fmt.Errorf("failed to unmarshal round %s: %w", rr.ID, err)
		}
		conv.Rounds = append(conv.Rounds, round)
	}
	return conv, nil
}

// List returns summaries of all conversations, most recently updated first
func (s *DatabaseStore) List(ctx context.Context) ([]Summary, error) {
	var rows []conversationRow
	if err := s.db.WithContext(ctx).
		Order("updated_at DESC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	type roundCount struct {
		ConversationID string
		N              int64
	}
	var counts []roundCount
	if err := s.db.WithContext(ctx).
		Model(&roundRow{}).
		Select("conversation_id, COUNT(*) AS n").
		Group("conversation_id").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	countByID := make(map[string]int64, len(counts))
	for _, c := range counts {
		countByID[c.ConversationID] = c.N
	}

	summaries := make([]Summary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, Summary{
			ID:         row.ID,
			Title:      row.Title,
			CreatedAt:  row.CreatedAt,
			UpdatedAt:  row.UpdatedAt,
			RoundCount: int(countByID[row.ID]),
		})
	}
	return summaries, nil
}

// AppendRound adds a completed round to a conversation
func (s *DatabaseStore) AppendRound(ctx context.Context, id string, round Round) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row conversationRow
		err := tx.First(&row, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var seq int64
		if err := tx.Model(&roundRow{}).
			Where("conversation_id = ?", id).
			Count(&seq).Error; err != nil {
			return err
		}

		rr, err := newRoundRow(id, int(seq), round)
		if err != nil {
			return err
		}
		if err := tx.Create(&rr).Error; err != nil {
			return err
		}

		return tx.Model(&conversationRow{}).
			Where("id = ?", id).
			Update("updated_at", time.Now().UTC()).Error
	})
}

// SetTitle replaces a conversation's title
func (s *DatabaseStore) SetTitle(ctx context.Context, id string, title string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row conversationRow
		err := tx.First(&row, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		return tx.Model(&conversationRow{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"title":      title,
				"updated_at": time.Now().UTC(),
			}).Error
	})
}

// Delete removes a conversation and its rounds
func (s *DatabaseStore) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&conversationRow{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Delete(&roundRow{}, "conversation_id = ?", id).Error
	})
}
