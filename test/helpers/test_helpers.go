package helpers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/majmadigital/finance-ledger/internal/auth"
	"github.com/majmadigital/finance-ledger/internal/model"
	"github.com/majmadigital/finance-ledger/internal/repository"
	"github.com/majmadigital/finance-ledger/internal/store"
	"github.com/majmadigital/finance-ledger/pkg/pg"
	"github.com/majmadigital/finance-ledger/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var AuthConfig = auth.Config{
	Secret: []byte("e2e-secret-that-is-at-least-32-bytes"),
	Issuer: "majma-finance-test",
	TTL:    time.Hour,
}

// SetupTestLedger returns a relational ledger over a private in-memory
// sqlite database.
func SetupTestLedger(t *testing.T) *store.Ledger {
	db, err := gorm.Open(sqlite.Open(":memory:"), pg.GormConfig())
	require.NoError(t, err)

	// every connection to :memory: is a separate database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(repository.Entities()...))
	return store.NewRelational(pg.New(db, db))
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	// adapters are cached by name
	connName := fmt.Sprintf("test-%d", time.Now().UnixNano())
	adapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func CreateTestMember(t *testing.T, ledger *store.Ledger, tmpl model.Member) *model.Member {
	t.Helper()
	m := tmpl
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	created, err := ledger.Members.Create(context.Background(), &m)
	require.NoError(t, err)
	return created
}

// BearerToken returns an Authorization header value for member.
func BearerToken(t *testing.T, member *model.Member) string {
	t.Helper()
	token, _, err := auth.IssueToken(AuthConfig, member, time.Now())
	require.NoError(t, err)
	return "Bearer " + token
}

func GlobalBalance(t *testing.T, ledger *store.Ledger) int64 {
	t.Helper()
	c, err := ledger.Commissions.GetByName(context.Background(), model.DefaultCommission)
	if err == model.ErrCommissionNotFound {
		return 0
	}
	require.NoError(t, err)
	return c.Balance
}

func TotalContributed(t *testing.T, ledger *store.Ledger, memberID string) int64 {
	t.Helper()
	m, err := ledger.Members.Get(context.Background(), memberID)
	require.NoError(t, err)
	return m.FinancialStats.TotalContributed
}
