package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"moneyfolio/internal/database"
	"moneyfolio/internal/fx"
	"moneyfolio/internal/history"
	"moneyfolio/internal/pricecache"
	"moneyfolio/internal/quote"
	"moneyfolio/internal/service"
	"moneyfolio/internal/syncer"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// One-shot daily snapshot: refresh prices, then record today's portfolio
// totals into history. Intended to be run from cron or by hand.
func main() {
	force := flag.Bool("force", false, "overwrite today's history entry if it exists")
	refresh := flag.Bool("refresh", true, "refresh prices before recording")
	flag.Parse()

	godotenv.Load()
	dbURL := os.Getenv("POSTGRES_URL")
	if dbURL == "" {
		log.Fatal("POSTGRES_URL is required")
	}

	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer db.Close()

	logger := logrus.New()
	repo := database.New(db, logger)
	provider := quote.NewYahooProvider(logger)
	rates := fx.NewSource(provider, logger, 0)
	portfolio := service.NewPortfolio(repo, rates, logger)
	recorder := history.NewRecorder(repo, portfolio, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if *refresh {
		sync := syncer.New(repo, provider, pricecache.New(pricecache.DefaultTTL), logger, syncer.DefaultWorkers)
		res, err := sync.RefreshAll(ctx)
		if err != nil {
			log.Fatalf("price refresh failed: %v", err)
		}
		logger.Infof("prices refreshed: %d updated, %d failed", res.Updated, res.Failed)
	}

	if err := recorder.Record(ctx, *force); err != nil {
		log.Fatalf("history record failed: %v", err)
	}
	logger.Infof("history snapshot recorded for %s", time.Now().Format(history.DateFormat))
}
