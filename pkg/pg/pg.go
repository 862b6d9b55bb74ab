package pg

import (
	"context"
	"database/sql"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

type txContextKey string

const txKey txContextKey = "trx"

// DB holds a read and a write handle. Repositories resolve the handle through
// Read/Write so that a transaction opened by WithinTransaction is picked up
// transparently from the context.
type DB struct {
	read  *gorm.DB
	write *gorm.DB
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			SingularTable: false,
		},
		// unique violations surface as gorm.ErrDuplicatedKey for both postgres and sqlite
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	}
}

func Create(config Config, withDebug bool) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(config.DSN()), gormConfig())
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	tunePool(sqlDB, config)

	if withDebug {
		db = db.Debug()
	}
	return db, nil
}

func tunePool(sqlDB *sql.DB, config Config) {
	if config.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
}

func CreateReadWrite(readConfig Config, writeConfig Config, withDebug bool) (*DB, error) {
	read, err := Create(readConfig, withDebug)
	if err != nil {
		return nil, err
	}
	write, err := Create(writeConfig, withDebug)
	if err != nil {
		return nil, err
	}
	return &DB{read, write}, nil
}

// New wraps already opened handles, e.g. an in-memory sqlite database in tests.
// Passing the same handle twice is valid.
func New(read, write *gorm.DB) *DB {
	return &DB{read: read, write: write}
}

// GormConfig exposes the settings used for production handles so that test
// databases behave the same way (error translation in particular).
func GormConfig() *gorm.Config {
	return gormConfig()
}

// WithinTransaction runs fn inside a write transaction. A transaction already
// present in ctx is joined instead of opening a nested one, so the outermost
// caller owns commit and rollback.
func (r *DB) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey).(*gorm.DB); ok {
		return fn(ctx)
	}
	return r.write.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey, tx))
	})
}

func (r *DB) Write(ctx context.Context) *gorm.DB {
	tx, ok := ctx.Value(txKey).(*gorm.DB)
	if ok {
		return tx
	}

	return r.write.WithContext(ctx)
}

func (r *DB) Read(ctx context.Context) *gorm.DB {
	tx, ok := ctx.Value(txKey).(*gorm.DB)
	if ok {
		return tx
	}

	return r.read.WithContext(ctx)
}

// Ping checks both handles.
func (r *DB) Ping(ctx context.Context) error {
	for _, h := range []*gorm.DB{r.write, r.read} {
		sqlDB, err := h.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return err
		}
	}
	return nil
}
