package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	repo "github.com/joseph-ayodele/invoice-extractor/internal/repository"
)

func main() {
	path := common.LoadConfig().Store.DBPath
	if len(os.Args) == 2 {
		path = os.Args[1]
	}
	cfg := repo.ConfigFor(path)
	if cfg.DSN == "" {
		if _, err := os.Stat(path); err != nil {
			log.Printf("ERROR: database %q: %v", path, err)
			log.Println("  usage: dbhealth [path | postgres://dsn]  (defaults to $DB_PATH)")
			os.Exit(2)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := repo.Open(ctx, cfg, nil)
	if err != nil {
		log.Fatalf("opening DB: %v", err)
	}
	defer repo.Close(db, nil)

	if err := repo.HealthCheck(ctx, db, 1*time.Second); err != nil {
		log.Fatalf("DB health: FAIL (%v)", err)
	}
	log.Println("DB health: OK")

	docs, err := repo.NewSQLStore(db, nil, nil).List(ctx, "")
	if err != nil {
		log.Fatalf("listing documents: %v", err)
	}

	byStatus := map[constants.ResultStatus]int{}
	records := 0
	for _, d := range docs {
		byStatus[d.Status]++
		records += d.RecordCount
	}
	log.Printf("documents: %d (records: %d)", len(docs), records)
	for _, s := range []constants.ResultStatus{constants.StatusStructured, constants.StatusUnstructured, constants.StatusFailed} {
		log.Printf("- %s: %d", s, byStatus[s])
	}
	for _, d := range docs {
		if d.Status == constants.StatusFailed {
			log.Printf("  failed: %s [%s]", d.Filename, d.ErrorCode)
		}
	}
}
