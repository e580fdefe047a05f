package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"amberhill.org/internal/alerts"
	"amberhill.org/internal/engage"
	"amberhill.org/internal/httpapi"
	"amberhill.org/internal/leaderboard"
	"amberhill.org/internal/members"
	"amberhill.org/internal/obs"
	"amberhill.org/internal/polls"
	"amberhill.org/internal/scoring"
	"amberhill.org/internal/store/pg"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	directory := members.NewDirectory()

	var (
		ledger   scoring.Service
		ballot   polls.Service
		alertSvc alerts.Service
		db       *sql.DB
	)
	if dsn := os.Getenv("AMBERHILL_PG_DSN"); dsn != "" {
		store, err := pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db = store.DB()
		ledger = store.Scores()
		ballot = store.Polls().WithNames(directory)
		alertSvc = store.Alerts()
		log.Println("using postgres store")
	} else {
		ledger = scoring.NewInMemory()
		ballot = polls.NewInMemory(directory)
		alertSvc = alerts.NewInMemory()
		log.Println("using in-memory store")
	}

	board := leaderboard.NewView(ledger, directory)
	engine := engage.New(ledger, ballot, alertSvc, board)
	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, engine, directory)

	addr := os.Getenv("AMBERHILL_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting amberhill-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
