// Command identity exchanges member credentials for the bearer tokens the
// finance API accepts.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/majmadigital/finance-ledger/internal/auth"
	"github.com/majmadigital/finance-ledger/internal/config"
	"github.com/majmadigital/finance-ledger/internal/model"
	"github.com/majmadigital/finance-ledger/internal/store"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

type MemberFinder interface {
	GetByEmail(ctx context.Context, email string) (*model.Member, error)
}

type TokenRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	MemberID  string    `json:"memberId"`
	Role      string    `json:"role"`
}

// Issuer checks credentials against the stored bcrypt hash.
type Issuer struct {
	members MemberFinder
	config  auth.Config
	now     func() time.Time
}

func NewIssuer(members MemberFinder, config auth.Config) *Issuer {
	return &Issuer{members: members, config: config, now: time.Now}
}

var errBadCredentials = errors.New("invalid email or password")

// dummyHash keeps the unknown-email path as slow as a wrong password.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)

func (i *Issuer) Issue(ctx context.Context, email, password string) (*TokenResponse, error) {
	m, err := i.members.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, model.ErrMemberNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if m.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(m.PasswordHash), []byte(password)) != nil {
		return nil, errBadCredentials
	}

	token, exp, err := auth.IssueToken(i.config, m, i.now())
	if err != nil {
		return nil, err
	}
	return &TokenResponse{Token: token, ExpiresAt: exp, MemberID: m.ID, Role: string(m.Role)}, nil
}

type Handler struct {
	issuer *Issuer
}

func NewHandler(issuer *Issuer) *Handler {
	return &Handler{issuer: issuer}
}

func (h *Handler) Token(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request: " + err.Error()})
		return
	}

	res, err := h.issuer.Issue(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, errBadCredentials) {
		log.Warn().Str("email", req.Email).Str("ip", c.ClientIP()).Msg("Rejected credentials")
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": err.Error()})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Token issue failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "could not issue token"})
		return
	}

	log.Info().Str("member_id", res.MemberID).Str("role", res.Role).Msg("Token issued")
	c.JSON(http.StatusOK, res)
}

func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request processed")
	})

	router.POST("/token", handler.Token)
	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "success")
	})
	return router
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := config.Load(argContainsEnvPath()); err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	cfg := config.Get()
	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	ledger, err := store.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger store")
	}
	defer ledger.Close(ctx)

	issuer := NewIssuer(ledger.Members, auth.Config{
		Secret: []byte(cfg.JWTSecret),
		Issuer: cfg.JWTIssuer,
		TTL:    cfg.TokenTTL,
	})
	router := SetupRouter(NewHandler(issuer))

	srv := &http.Server{
		Addr:         cfg.IdentityListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Identity issuer started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down identity issuer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.HasPrefix(v, "--env=") {
			return strings.TrimPrefix(v, "--env=")
		}
	}
	return ""
}
