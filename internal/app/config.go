package app

import (
	"os"
	"path/filepath"
	"runtime"
)

// ServerConfig defines how the relay backend should run.
type ServerConfig struct {
	Addr        string
	Path        string
	DBPath      string // empty disables the transfer log
	MaxFileSize int64
}

// ClientConfig defines the parameters the TUI client needs.
type ClientConfig struct {
	ServerURL   string
	Username    string
	RoomKey     string
	DownloadDir string
}

// DefaultDBPath returns a per-user data path for the bundled SQLite file.
func DefaultDBPath() string {
	if env := os.Getenv("GHOSTCHAT_DB_PATH"); env != "" {
		return env
	}
	if env := os.Getenv("GHOSTCHAT_DATA_DIR"); env != "" {
		return filepath.Join(env, "ghostchat.db")
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "ghostchat", "ghostchat.db")
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "Ghostchat", "ghostchat.db")
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, "Library", "Application Support", "Ghostchat", "ghostchat.db")
		}
		return filepath.Join(home, ".local", "share", "ghostchat", "ghostchat.db")
	}
	return filepath.Join(".", ".ghostchat", "ghostchat.db")
}

// DefaultDownloadDir returns where the client saves received files.
func DefaultDownloadDir() string {
	if env := os.Getenv("GHOSTCHAT_DOWNLOAD_DIR"); env != "" {
		return env
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "Downloads", "ghostchat")
	}
	return filepath.Join(".", "downloads")
}

// NormalizeJoinPath guarantees the websocket join path starts with '/' and
// falls back to /join when empty.
func NormalizeJoinPath(path string) string {
	if path == "" {
		return "/join"
	}
	if path[0] != '/' {
		return "/" + path
	}
	return path
}
