package main

import (
	"context"
	"log"
	"os"
	"strings"

	"parcelflow/db"
	"parcelflow/metadata"
	"parcelflow/price"
	"parcelflow/transfer"
)

func main() {
	ctx := context.Background()

	gateways := strings.Split(os.Getenv("METADATA_GATEWAYS"), ",")
	resolver := metadata.NewResolver(gateways)

	converter := price.Default()

	var journal transfer.Journal = transfer.NewMemJournal()
	if connString := os.Getenv("DATABASE_URL"); connString != "" {
		pool, err := db.NewPool(ctx, connString)
		if err != nil {
			log.Fatalf("bootstrap database pool: %v", err)
		}
		defer pool.Close()

		pgJournal := transfer.NewPGJournal(pool)
		if err := pgJournal.EnsureSchema(ctx); err != nil {
			log.Fatalf("install journal schema: %v", err)
		}
		journal = pgJournal
	} else {
		log.Printf("DATABASE_URL empty; transfer journal is in-memory only")
	}

	log.Printf("parcelflow core ready: resolver=%t converter_minor_worth=%v journal=%T",
		resolver != nil, converter.MinorUnitWorth(), journal)
}
