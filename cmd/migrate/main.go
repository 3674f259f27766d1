package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/Domenick1991/appointments/internal/bootstrap"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [up|down|version]\n", os.Args[0])
	}
	flag.Parse()
	command := flag.Arg(0)
	if command == "" {
		command = "up"
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg.Database.AutoMigrate = false
	logg := bootstrap.NewLogger(cfg, "appointments-migrate")
	ctx := context.Background()

	store, err := bootstrap.OpenStore(ctx, cfg, logg)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer store.Close()

	switch command {
	case "up":
		err = store.Migrate(ctx)
	case "down":
		err = store.MigrateDown(ctx)
	case "version":
		var version int64
		version, err = store.MigrationVersion(ctx)
		if err == nil {
			fmt.Println(version)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logg.Error(ctx, "migration failed", err)
		os.Exit(1)
	}
	logg.Info(logg.WithField(ctx, "command", command), "migration done")
}
