// apikeygen mints and lists the Api-Key rows the HTTP layer resolves to an
// app label (spec §6). One calling service gets one key; rotating a key
// means creating a new one and retiring the old row by hand.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rcalendar/msa-rcalendar/internal/config"
	"github.com/rcalendar/msa-rcalendar/internal/pkg/database"
	"github.com/rcalendar/msa-rcalendar/internal/repository/postgresql"
)

func main() {
	listFlag := flag.Bool("list", false, "list existing api keys instead of creating one")
	app := flag.String("app", "", "app label to mint a new key for")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error loading config:", err)
		os.Exit(1)
	}

	db, err := database.NewPostgreSQLDB(cfg.DatabaseURL())
	if err != nil {
		fmt.Fprintln(os.Stderr, "error connecting to database:", err)
		os.Exit(1)
	}

	apiKeys := postgresql.NewApiKeyRepository(db)
	ctx := context.Background()

	if *listFlag {
		keys, err := apiKeys.List(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error listing api keys:", err)
			os.Exit(1)
		}
		for _, k := range keys {
			fmt.Printf("%s\t%s\tactive=%t\n", k.Key, k.App, k.IsActive)
		}
		return
	}

	if *app == "" {
		fmt.Fprintln(os.Stderr, "-app is required to mint a new key")
		os.Exit(1)
	}

	key, err := apiKeys.Create(ctx, *app)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error creating api key:", err)
		os.Exit(1)
	}
	fmt.Println(key.Key)
}
