// Command migrate applies the embedded goose migrations.
//
//	migrate [up|down|status|version|redo|reset]
package main

import (
	"flag"
	"log"

	"github.com/noah-isme/pawclass-api/migrations"
	"github.com/noah-isme/pawclass-api/pkg/config"
	"github.com/noah-isme/pawclass-api/pkg/database"
)

func main() {
	flag.Parse()
	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect postgres: %v", err)
	}
	defer db.Close()

	if err := migrations.Run(command, db.DB, flag.Args()[min(1, flag.NArg()):]...); err != nil {
		log.Fatalf("migrate %s: %v", command, err)
	}
	log.Printf("migrate %s: done", command)
}
