// Command kvserver runs emberdb behind the gorilla/mux HTTP front end in
// pkg/server.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"emberdb/pkg/config"
	"emberdb/pkg/kvstore"
	"emberdb/pkg/server"
)

func main() {
	dir := flag.String("db", "emberdb-data", "path to the database directory")
	addr := flag.String("addr", ":8080", "HTTP listen address")
	flag.Parse()

	db, err := kvstore.Open(*dir, config.Default())
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	srv := server.New(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		if err := srv.Stop(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	if err := srv.Start(*addr); err != nil && err.Error() != "http: Server closed" {
		log.Fatalf("server failed: %v", err)
	}
}
