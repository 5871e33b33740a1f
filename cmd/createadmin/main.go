// Command createadmin adds an operator account for the back-office.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"foodcost/api/config"
	"foodcost/api/database"
	"foodcost/api/logger"
	"foodcost/api/store"
)

func main() {
	username := flag.String("username", "", "operator login")
	password := flag.String("password", "", "operator password")
	flag.Parse()

	_ = godotenv.Load()
	logger.Initialize("info", true)

	if *username == "" || *password == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Read()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	dbClient, err := database.NewPostgresDB(cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize PostgreSQL database")
	}
	defer dbClient.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := database.EnsurePostgresSchema(ctx, dbClient.DB); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply schema")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	user, err := store.NewUserStore(dbClient.DB).CreateAdmin(ctx, *username, hash)
	if errors.Is(err, store.ErrUsernameTaken) {
		log.Fatal().Str("username", *username).Msg("Operator already exists")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create operator")
	}

	log.Info().Str("id", user.ID).Str("username", user.Username).Msg("Operator created")
}
