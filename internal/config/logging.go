package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// NewLogger builds the session logger. Without a log dir it writes JSON to
// stderr (stdout belongs to the transcript); with one it writes to a fresh
// timestamped file and prunes old sessions down to cfg.LogMaxFiles. The
// returned closer is nil when no file was opened.
func (c *Config) NewLogger() (*slog.Logger, io.Closer, error) {
	level := slog.LevelInfo
	if c.Environment == "dev" || c.Debug {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	var closer io.Closer
	if c.LogDir != "" {
		f, err := openSessionLog(c.LogDir, c.LogMaxFiles)
		if err != nil {
			return nil, nil, err
		}
		w = f
		closer = f
	}

	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	return logger, closer, nil
}

// openSessionLog creates client-<timestamp>.log under dir and removes the
// oldest session logs beyond maxFiles. Pruning failures are reported on
// stderr but never block the session.
func openSessionLog(dir string, maxFiles int) (*os.File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	name := filepath.Join(dir, "client-"+time.Now().Format("2006-01-02T15-04-05")+".log")
	f, err := os.Create(name)
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}

	if err := pruneSessionLogs(dir, maxFiles); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to prune old logs: %v\n", err)
	}
	return f, nil
}

func pruneSessionLogs(dir string, maxFiles int) error {
	files, err := filepath.Glob(filepath.Join(dir, "client-*.log"))
	if err != nil || len(files) <= maxFiles {
		return err
	}

	// Timestamped names sort chronologically.
	sort.Strings(files)
	for _, f := range files[:len(files)-maxFiles] {
		if err := os.Remove(f); err != nil {
			return fmt.Errorf("remove %s: %w", f, err)
		}
	}
	return nil
}
