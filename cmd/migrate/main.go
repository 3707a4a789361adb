package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/jacobh/howitt-sub000/internal/adapters/postgres"
	"github.com/jacobh/howitt-sub000/internal/pkg/config"
)

const usage = "usage: migrate <up|down|version|force N>"

func main() {
	if len(os.Args) < 2 {
		log.Fatal(usage)
	}

	cfg, err := config.Load("howitt-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	mg, err := postgres.NewMigrator(cfg.Database.DSN())
	if err != nil {
		log.Fatalf("migrator: %v", err)
	}
	defer mg.Close()

	switch os.Args[1] {
	case "up":
		if err := mg.Up(); err != nil {
			log.Fatalf("up: %v", err)
		}
		log.Println("all migrations applied")
	case "down":
		if err := mg.Down(); err != nil {
			log.Fatalf("down: %v", err)
		}
		log.Println("all migrations rolled back")
	case "version":
		v, dirty, err := mg.Version()
		if err != nil {
			log.Fatalf("version: %v", err)
		}
		fmt.Printf("version %d (dirty=%t)\n", v, dirty)
	case "force":
		if len(os.Args) < 3 {
			log.Fatal(usage)
		}
		v, err := strconv.Atoi(os.Args[2])
		if err != nil {
			log.Fatalf("force: bad version %q", os.Args[2])
		}
		if err := mg.Force(v); err != nil {
			log.Fatalf("force: %v", err)
		}
		log.Printf("forced version %d", v)
	default:
		log.Fatalf("unknown command: %s\n%s", os.Args[1], usage)
	}
}
