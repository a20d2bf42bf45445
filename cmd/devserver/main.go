// Command devserver runs the development backend emulator: auth, the
// collection data plane, blob storage and the realtime change feed, all
// backed by one SQLite file.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"

	"flocksync/internal/devserver"
	"flocksync/internal/logger"
)

func main() {
	var (
		addr   = flag.String("addr", ":8080", "listen address")
		dbPath = flag.String("db", "devserver.db", "sqlite database path")
		seed   = flag.Bool("seed", false, "seed demo data and exit")
	)
	flag.Parse()

	log, err := logger.New("local", "info")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	storage, err := devserver.OpenStorage(*dbPath)
	if err != nil {
		log.Fatal("open storage", zap.Error(err))
	}
	defer storage.Close()

	srv := devserver.New(storage, log)

	if *seed {
		if err := srv.Seed(context.Background()); err != nil {
			log.Fatal("seed", zap.Error(err))
		}
		log.Info("seeded demo data", zap.String("db", *dbPath))
		return
	}

	log.Info("devserver listening", zap.String("addr", *addr))
	if err := http.ListenAndServe(*addr, srv.Handler()); err != nil {
		log.Fatal("serve", zap.Error(err))
	}
}
