package repository

import (
	"testing"
	"time"

	"github.com/majmadigital/finance-ledger/internal/model"
	"github.com/majmadigital/finance-ledger/pkg/pg"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testDB struct {
	*pg.DB
	rawDB *gorm.DB
}

func setupTestDB(t *testing.T) *testDB {
	db, err := gorm.Open(sqlite.Open(":memory:"), pg.GormConfig())
	require.NoError(t, err)

	// every connection to :memory: is a separate database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(Entities()...))

	return &testDB{
		DB:    pg.New(db, db),
		rawDB: db,
	}
}

func seedMember(t *testing.T, db *pg.DB, matricule string) *model.Member {
	t.Helper()
	m, err := NewMemberRepository(db).Create(t.Context(), &model.Member{
		Matricule: matricule,
		FirstName: "Fallou",
		LastName:  "Ndiaye",
		Email:     matricule + "@majma.test",
		Role:      model.RoleMember,
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return m
}
