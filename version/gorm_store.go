package version

import (
	"context"
	stdErrors "errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	seatlockerrors "github.com/openvenue/seatlock/errors"
)

const (
	defaultGormTableName = "seat_resource_versions"
	defaultBumpTimeout   = 2 * time.Second
)

// resourceVersion is the internal model for the durable counter row.
type resourceVersion struct {
	ResourceID string    `gorm:"primaryKey;column:resource_id"`
	Version    int64     `gorm:"column:version"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

// GormStore implements Store using a GORM backend.
type GormStore struct {
	db        *gorm.DB
	tableName string
	timeout   time.Duration
}

// GormOption configures a GormStore.
type GormOption func(*gormStoreOptions)

type gormStoreOptions struct {
	tableName string
	timeout   time.Duration
}

// WithGormTableName sets the table name for the GormStore.
func WithGormTableName(name string) GormOption {
	return func(o *gormStoreOptions) {
		o.tableName = name
	}
}

// WithBumpTimeout sets the hard bound on the bump transaction.
func WithBumpTimeout(d time.Duration) GormOption {
	return func(o *gormStoreOptions) {
		o.timeout = d
	}
}

// NewGormStore returns a new GormStore using the provided GORM DB connection.
// The counter table is created when it does not exist yet; a failed migration
// is returned rather than deferred to the first bump.
func NewGormStore(db *gorm.DB, opts ...GormOption) (*GormStore, error) {
	o := gormStoreOptions{
		tableName: defaultGormTableName,
		timeout:   defaultBumpTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if !db.Migrator().HasTable(o.tableName) {
		if err := db.Table(o.tableName).AutoMigrate(&resourceVersion{}); err != nil {
			return nil, fmt.Errorf("migrating %s: %w", o.tableName, err)
		}
	}

	return &GormStore{
		db:        db,
		tableName: o.tableName,
		timeout:   o.timeout,
	}, nil
}

// Bump implements Store.Bump. The whole transaction runs under a deadline;
// on postgres the same bound is also installed server-side as a statement
// timeout so a stalled round trip cannot hold the counter row.
func (s *GormStore) Bump(ctx context.Context, resourceID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		if stdErrors.Is(err, context.DeadlineExceeded) {
			return 0, seatlockerrors.ErrVersionStoreTimeout
		}
		return 0, err
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var bumped int64
	err := s.db.WithContext(cctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "postgres" {
			if err := tx.Exec(fmt.Sprintf("SET LOCAL statement_timeout = %d", s.timeout.Milliseconds())).Error; err != nil {
				return err
			}
		}

		now := time.Now().UTC()

		// Idempotent insert-if-absent at version 0.
		if err := tx.Table(s.tableName).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "resource_id"}},
			DoNothing: true,
		}).Create(&resourceVersion{ResourceID: resourceID, Version: 0, UpdatedAt: now}).Error; err != nil {
			return err
		}

		// The UPDATE takes the row lock that serializes concurrent bumps.
		if err := tx.Table(s.tableName).Where("resource_id = ?", resourceID).Updates(map[string]any{
			"version":    gorm.Expr("version + 1"),
			"updated_at": now,
		}).Error; err != nil {
			return err
		}

		var row resourceVersion
		if err := tx.Table(s.tableName).First(&row, "resource_id = ?", resourceID).Error; err != nil {
			return err
		}
		bumped = row.Version
		return nil
	})

	if err != nil {
		if stdErrors.Is(err, context.DeadlineExceeded) {
			return 0, seatlockerrors.ErrVersionStoreTimeout
		}
		return 0, err
	}
	return bumped, nil
}
