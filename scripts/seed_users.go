package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"coophours/internal/database"
	"coophours/internal/domain"
	"coophours/internal/models"
	"coophours/internal/session"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type seedUser struct {
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	FirstName string `yaml:"first_name"`
	LastName  string `yaml:"last_name"`
	Email     string `yaml:"email"`
}

type seedConfig struct {
	Users []seedUser `yaml:"users"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		usersPath = flag.String("users", "configs/users.yaml", "path to users.yaml")
		dbPath    = flag.String("db", "./data/coophours.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*usersPath)
	if err != nil {
		return fmt.Errorf("read users: %w", err)
	}
	var cfg seedConfig
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse users: %w", err)
	}
	if len(cfg.Users) == 0 {
		return fmt.Errorf("no users in yaml")
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	created := 0
	skipped := 0
	for _, u := range cfg.Users {
		if u.Username == "" || u.Password == "" {
			continue
		}

		hash, err := session.HashPassword(u.Password)
		if err != nil {
			return fmt.Errorf("hash password for %s: %w", u.Username, err)
		}

		err = db.CreateUser(ctx, &models.User{
			Username:     u.Username,
			FirstName:    u.FirstName,
			LastName:     u.LastName,
			Email:        u.Email,
			PasswordHash: hash,
		})
		if errors.Is(err, domain.ErrUsernameTaken) {
			skipped++
			continue
		}
		if err != nil {
			return fmt.Errorf("create %s: %w", u.Username, err)
		}
		created++
	}

	fmt.Printf("done: created=%d skipped=%d\n", created, skipped)
	return nil
}
