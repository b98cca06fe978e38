package main

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
)

// Usage: migrate [up|down|version|force <version>]
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found")
	}

	dbURL := os.Getenv("DB_URL")
	if dbURL == "" {
		fatal(logger, "DB_URL environment variable is required", nil)
	}

	migrationsPath, err := findMigrationsDir()
	if err != nil {
		fatal(logger, "locate migrations", err)
	}

	m, err := migrate.New("file://"+migrationsPath, dbURL)
	if err != nil {
		fatal(logger, "open migrator", err)
	}
	defer m.Close()

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "version":
		version, dirty, verr := m.Version()
		if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
			fatal(logger, "read version", verr)
		}
		logger.Info("schema version", "version", version, "dirty", dirty)
		return
	case "force":
		if len(os.Args) < 3 {
			fatal(logger, "force needs a version argument", nil)
		}
		version, convErr := strconv.Atoi(os.Args[2])
		if convErr != nil {
			fatal(logger, "invalid version", convErr)
		}
		err = m.Force(version)
	default:
		fatal(logger, "unknown command "+cmd, nil)
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		fatal(logger, "migration "+cmd+" failed", err)
	}
	logger.Info("migration complete", "command", cmd, "path", migrationsPath)
}

// findMigrationsDir walks up from the working directory, then tries paths
// relative to the binary.
func findMigrationsDir() (string, error) {
	var candidates []string

	if cwd, err := os.Getwd(); err == nil {
		current := cwd
		for i := 0; i < 6; i++ {
			candidates = append(candidates, filepath.Join(current, "migrations"))
			parent := filepath.Dir(current)
			if parent == current {
				break
			}
			current = parent
		}
	}
	if exePath, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exePath)
		candidates = append(candidates,
			filepath.Join(exeDir, "migrations"),
			filepath.Join(exeDir, "..", "migrations"),
		)
	}

	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && info.IsDir() {
			return filepath.Abs(candidate)
		}
	}
	return "", errors.New("migrations directory not found")
}

func fatal(logger *slog.Logger, msg string, err error) {
	if err != nil {
		logger.Error(msg, "error", err)
	} else {
		logger.Error(msg)
	}
	os.Exit(1)
}
