package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"supermarket/terminal/internal/backend"
	"supermarket/terminal/internal/billing"
	"supermarket/terminal/internal/catalog"
	"supermarket/terminal/internal/config"
	"supermarket/terminal/internal/httpapi"
	"supermarket/terminal/internal/scanner"
	"supermarket/terminal/internal/session"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("dotenv: %v", err)
	}
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	closers := make([]func() error, 0, 2)

	snapshots := catalog.SnapshotCache(catalog.NoopSnapshotCache{})
	if cfg.RedisAddr != "" {
		redisSnapshots := catalog.NewRedisSnapshotCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, time.Duration(cfg.SnapshotTTLMinutes)*time.Minute)
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		err := redisSnapshots.Ping(pingCtx)
		pingCancel()
		if err != nil {
			log.Printf("redis unavailable (%v), using noop snapshot cache", err)
		} else {
			snapshots = redisSnapshots
			closers = append(closers, redisSnapshots.Close)
			log.Println("snapshot cache: redis")
		}
	} else {
		log.Println("snapshot cache: noop")
	}

	sess := session.New()
	client := backend.NewClient(cfg.BackendURL, sess)
	cat := catalog.New(client, snapshots, cfg.LowStockLimit)

	startCtx, startCancel := context.WithTimeout(ctx, 10*time.Second)
	cat.WarmStart(startCtx)
	if err := cat.Refresh(startCtx); err != nil {
		// The terminal still starts: scans fall back to the warm snapshot
		// until the backend comes back.
		log.Printf("initial catalog refresh failed: %v", err)
	}
	startCancel()

	feed := billing.NewFeedNotifier(cfg.NotificationFeedCap)
	engine := billing.New(client, cat, feed)

	if device := scannerSource(cfg.ScannerDevice); device != nil {
		decoder := scanner.NewLineDecoder(device)
		go func() {
			err := scanner.Run(ctx, decoder, func(scanCtx context.Context, code string) {
				if err := engine.Scan(scanCtx, code); err != nil {
					log.Printf("scan %q: %v", code, err)
				}
			})
			if err != nil && err != context.Canceled {
				log.Printf("scanner stopped: %v", err)
			}
		}()
	}

	api := httpapi.New(engine, cat, client, sess, feed, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("POS terminal listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("terminal stopped")
}

// scannerSource opens the configured scanner device. An empty setting means
// no hardware scanner is attached and the UI scan endpoint is the only input.
func scannerSource(device string) *os.File {
	if device == "" {
		return nil
	}
	if device == "-" {
		return os.Stdin
	}
	f, err := os.Open(device)
	if err != nil {
		log.Printf("scanner device %s unavailable: %v", device, err)
		return nil
	}
	return f
}
