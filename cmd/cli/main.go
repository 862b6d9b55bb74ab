package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/majmadigital/finance-ledger/internal/config"
	"github.com/majmadigital/finance-ledger/internal/model"
	"github.com/majmadigital/finance-ledger/internal/store"
	"github.com/majmadigital/finance-ledger/pkg/logger"
	"github.com/majmadigital/finance-ledger/pkg/pg"
	"golang.org/x/crypto/bcrypt"
)

const usage = `usage:
  cli migrate [--env=path] [--dir=./migrations]
  cli member create [--env=path] --matricule=M --first=F --last=L --email=E --role=R --password=P`

func main() {
	defer logger.Sync()

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "migrate":
		err = migrate(os.Args[2:])
	case "member":
		if len(os.Args) < 3 || os.Args[2] != "create" {
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
		err = createMember(os.Args[3:])
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		logger.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func migrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	envPath := fs.String("env", "", "env file")
	dir := fs.String("dir", "./migrations", "migrations directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := config.Load(*envPath); err != nil {
		return err
	}
	if config.Get().StoreDriver != config.StorePostgres {
		return fmt.Errorf("migrations only apply to the %s store; mongo indexes are created at startup", config.StorePostgres)
	}
	if _, err := os.Stat(*dir); err != nil {
		return fmt.Errorf("migrations directory: %w", err)
	}
	return pg.Migrate(config.Get().PostgresWrite(), *dir)
}

type memberInput struct {
	Matricule string
	FirstName string
	LastName  string
	Email     string
	Role      string
	Password  string
}

func createMember(args []string) error {
	fs := flag.NewFlagSet("member create", flag.ExitOnError)
	envPath := fs.String("env", "", "env file")
	var in memberInput
	fs.StringVar(&in.Matricule, "matricule", "", "member matricule")
	fs.StringVar(&in.FirstName, "first", "", "first name")
	fs.StringVar(&in.LastName, "last", "", "last name")
	fs.StringVar(&in.Email, "email", "", "login email")
	fs.StringVar(&in.Role, "role", string(model.RoleMember), "role")
	fs.StringVar(&in.Password, "password", "", "login password (empty: no login)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	m, err := buildMember(in)
	if err != nil {
		return err
	}

	if err := config.Load(*envPath); err != nil {
		return err
	}
	ctx := context.Background()
	ledger, err := store.Open(ctx, config.Get())
	if err != nil {
		return err
	}
	defer ledger.Close(ctx)

	created, err := ledger.Members.Create(ctx, m)
	if err != nil {
		return err
	}
	logger.Info("member created", "id", created.ID, "matricule", created.Matricule, "role", created.Role)
	return nil
}

func buildMember(in memberInput) (*model.Member, error) {
	m := &model.Member{
		Matricule: strings.TrimSpace(in.Matricule),
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		Role:      model.Role(in.Role),
	}
	if m.Matricule == "" || m.Email == "" {
		return nil, fmt.Errorf("%w: matricule and email are required", model.ErrValidation)
	}
	if !m.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", model.ErrValidation, in.Role)
	}

	if in.Password != "" {
		if len(in.Password) < 8 {
			return nil, fmt.Errorf("%w: password must be at least 8 characters", model.ErrValidation)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		m.PasswordHash = string(hash)
	}
	return m, nil
}
