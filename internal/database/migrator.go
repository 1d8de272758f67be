package database

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Proton-105/stockroom-bot/internal/domain"
)

// Models lists every table the bot owns, in creation order.
var Models = []any{
	&domain.Branch{},
	&domain.User{},
	&domain.Item{},
	&domain.Contact{},
	&domain.InventoryReport{},
	&domain.Ticket{},
	&domain.Setting{},
}

// Migrator brings an existing database up to the current schema.
// Tables are created when missing; existing tables only gain the columns they lack.
// Running it again is a no-op.
type Migrator struct {
	db  *gorm.DB
	log *slog.Logger
}

// NewMigrator constructs a Migrator that logs through the provided logger instance.
func NewMigrator(db *gorm.DB, log *slog.Logger) *Migrator {
	if log == nil {
		log = slog.Default()
	}
	return &Migrator{db: db, log: log}
}

// Migrate applies schema changes, seeds default settings and backfills legacy order tickets.
func (m *Migrator) Migrate(ctx context.Context) error {
	db := m.db.WithContext(ctx)

	for _, model := range Models {
		if err := m.migrateModel(db, model); err != nil {
			return err
		}
	}

	if err := m.seedSettings(db); err != nil {
		return err
	}

	return m.backfillOrderTickets(db)
}

func (m *Migrator) migrateModel(db *gorm.DB, model any) error {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err != nil {
		return fmt.Errorf("parse model %T: %w", model, err)
	}
	table := stmt.Schema.Table
	scopedLog := m.log.With(slog.String("table", table))

	migrator := db.Migrator()
	if !migrator.HasTable(model) {
		scopedLog.Info("creating table")
		if err := migrator.CreateTable(model); err != nil {
			return fmt.Errorf("create table %s: %w", table, err)
		}
		return nil
	}

	for _, field := range stmt.Schema.Fields {
		if field.DBName == "" || migrator.HasColumn(model, field.DBName) {
			continue
		}
		scopedLog.Info("adding column", slog.String("column", field.DBName))
		if err := migrator.AddColumn(model, field.Name); err != nil {
			return fmt.Errorf("add column %s.%s: %w", table, field.DBName, err)
		}
	}

	for _, idx := range stmt.Schema.ParseIndexes() {
		if migrator.HasIndex(model, idx.Name) {
			continue
		}
		scopedLog.Info("creating index", slog.String("index", idx.Name))
		if err := migrator.CreateIndex(model, idx.Name); err != nil {
			return fmt.Errorf("create index %s: %w", idx.Name, err)
		}
	}

	return nil
}

func (m *Migrator) seedSettings(db *gorm.DB) error {
	for key, value := range domain.DefaultSettings {
		row := domain.Setting{Key: key, Value: value}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			return fmt.Errorf("seed setting %s: %w", key, err)
		}
	}
	return nil
}

// backfillOrderTickets retypes rows written before tickets carried an explicit order type.
func (m *Migrator) backfillOrderTickets(db *gorm.DB) error {
	res := db.Model(&domain.Ticket{}).
		Where("type = ? AND message LIKE ?", domain.TicketProblem, domain.OrderSentinel+"%").
		Update("type", domain.TicketOrder)
	if res.Error != nil {
		return fmt.Errorf("backfill order tickets: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		m.log.Info("order tickets backfilled", slog.Int64("rows", res.RowsAffected))
	}
	return nil
}
