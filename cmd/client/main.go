package main

import (
	"flag"
	"fmt"
	"os"

	"ghostchat/internal/app"
)

func main() {
	defaultServer := envOrDefault("GHOSTCHAT_SERVER", "ws://localhost:3000/join")
	defaultUser := envOrDefault("GHOSTCHAT_USER", "")

	serverJoinURL := flag.String("server", defaultServer, "WebSocket join URL (e.g., ws://localhost:3000/join)")
	username := flag.String("user", defaultUser, "display name to use when joining")
	downloads := flag.String("downloads", envOrDefault("GHOSTCHAT_DOWNLOAD_DIR", ""), "directory for received files")
	flag.Parse()

	args := flag.Args()
	var roomKey string
	if len(args) >= 1 {
		roomKey = args[0]
	}

	cfg := app.ClientConfig{
		ServerURL:   *serverJoinURL,
		RoomKey:     roomKey,
		Username:    *username,
		DownloadDir: *downloads,
	}

	if err := app.RunClient(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
