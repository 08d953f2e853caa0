package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"dontcare/internal/config"
	"dontcare/internal/database"
)

func main() {
	var (
		configPath = flag.String("config", "configs/config.yaml", "path to the config file")
		path       = flag.String("path", "migrations", "path to the migration files")
		up         = flag.Bool("up", false, "run pending migrations")
		down       = flag.Bool("down", false, "roll back all migrations")
		version    = flag.Bool("version", false, "print the current migration version")
		force      = flag.Int("force", -1, "force the migration version (repairs a dirty state)")
	)
	flag.Parse()

	// best effort; config falls back to real environment variables
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.NewConnection(&database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
		MaxOpen:  cfg.Database.MaxOpen,
		MaxIdle:  cfg.Database.MaxIdle,
		Timeout:  cfg.Database.Timeout,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	migrator, err := database.NewMigrator(db, *path)
	if err != nil {
		log.Fatalf("failed to create migrator: %v", err)
	}
	defer migrator.Close()

	switch {
	case *down:
		if err := migrator.Down(); err != nil {
			log.Fatalf("rollback failed: %v", err)
		}
		log.Println("rollback complete")
	case *version:
		v, err := migrator.Version()
		if err != nil {
			log.Fatalf("failed to read version: %v", err)
		}
		fmt.Printf("current migration version: %d\n", v)
	case *force >= 0:
		if err := migrator.Force(*force); err != nil {
			log.Fatalf("force failed: %v", err)
		}
		log.Printf("migration version forced to %d", *force)
	case *up:
		fallthrough
	default: // running migrations is the default action
		if err := migrator.Up(); err != nil {
			log.Fatalf("migration failed: %v", err)
		}
		log.Println("migrations complete")
	}
}
