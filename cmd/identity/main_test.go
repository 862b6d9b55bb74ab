package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/majmadigital/finance-ledger/internal/auth"
	"github.com/majmadigital/finance-ledger/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memberMap map[string]*model.Member

func (m memberMap) GetByEmail(_ context.Context, email string) (*model.Member, error) {
	if v, ok := m[email]; ok {
		return v, nil
	}
	return nil, model.ErrMemberNotFound
}

type brokenFinder struct{}

func (brokenFinder) GetByEmail(context.Context, string) (*model.Member, error) {
	return nil, errors.New("connection refused")
}

var testAuth = auth.Config{Secret: []byte("identity-test-secret"), Issuer: "majmadigital", TTL: time.Hour}

func setupRouter(t *testing.T, finder MemberFinder) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return SetupRouter(NewHandler(NewIssuer(finder, testAuth)))
}

func postToken(router *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/token", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret!"), bcrypt.MinCost)
	require.NoError(t, err)

	members := memberMap{}
	members["sg@majma.test"] = &model.Member{ID: "m-1", Email: "sg@majma.test", Role: model.RoleSecretaryGeneral, PasswordHash: string(hash)}
	members["nohash@majma.test"] = &model.Member{ID: "m-2", Email: "nohash@majma.test", Role: model.RoleMember}
	router := setupRouter(t, members)

	t.Run("valid credentials", func(t *testing.T) {
		w := postToken(router, `{"email":"SG@majma.test","password":"s3cret!"}`)
		require.Equal(t, http.StatusOK, w.Code)

		var res TokenResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.Equal(t, "m-1", res.MemberID)
		assert.Equal(t, "secretary_general", res.Role)

		claims := &auth.Claims{}
		_, err := jwt.ParseWithClaims(res.Token, claims, func(*jwt.Token) (any, error) { return testAuth.Secret, nil })
		require.NoError(t, err)
		assert.Equal(t, "m-1", claims.Subject)
	})

	t.Run("wrong password", func(t *testing.T) {
		w := postToken(router, `{"email":"sg@majma.test","password":"nope"}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unknown email", func(t *testing.T) {
		w := postToken(router, `{"email":"ghost@majma.test","password":"s3cret!"}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("member without credentials", func(t *testing.T) {
		w := postToken(router, `{"email":"nohash@majma.test","password":""}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = postToken(router, `{"email":"nohash@majma.test","password":"anything"}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		w := postToken(router, `{"email":"not-an-email","password":"x"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestToken_StoreFailure(t *testing.T) {
	router := setupRouter(t, brokenFinder{})

	w := postToken(router, `{"email":"sg@majma.test","password":"s3cret!"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}
