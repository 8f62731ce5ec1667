package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	intrnl "ghostchat/internal"
	"ghostchat/internal/app"
)

func main() {
	addr := flag.String("addr", getEnv("GHOSTCHAT_ADDR", ":3000"), "server listen address")
	path := flag.String("path", getEnv("GHOSTCHAT_PATH", "/join"), "websocket join path")
	db := flag.String("db", getEnv("GHOSTCHAT_DB_PATH", ""), "sqlite path for the transfer log (empty disables it)")
	maxFileSize := flag.Int64("max-file-size", intrnl.MaxTransferSize, "maximum accepted file size in bytes")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := app.ServerConfig{
		Addr:        *addr,
		Path:        app.NormalizeJoinPath(*path),
		DBPath:      *db,
		MaxFileSize: *maxFileSize,
	}

	handle, err := app.RunServer(ctx, cfg)
	if err != nil {
		log.Fatalf("server error: %v", err)
	}
	log.Printf("ghostchat relay listening on %s%s", handle.Addr(), cfg.Path)
	if err := handle.Wait(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
