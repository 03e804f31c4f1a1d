package scan

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"sift/internal/logging"
	"sift/internal/rules"
)

// Cache is an optional sqlite-backed store of per-file scan results keyed by
// content hash. Repeated scans skip files whose content and applicable rules
// have not changed. Entries recorded under a different cache key are dropped
// on open.
type Cache struct {
	conn   *sql.DB
	key    string
	logger *logging.Logger
	mu     sync.Mutex
}

// CacheKey fingerprints everything the stored diagnostics depend on: the
// compiled rule set and the per-run severity overrides. A run with a rule
// turned off or promoted must never replay results recorded without that
// override.
func CacheKey(rs *rules.RuleSet, overrides rules.Overrides) string {
	return rs.Hash() + ":" + overrides.Fingerprint()
}

// OpenCache opens or creates the scan cache under dir.
func OpenCache(dir, key string, logger *logging.Logger) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dbPath := filepath.Join(dir, "scan-cache.db")
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open scan cache: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS file_scans (
			path TEXT PRIMARY KEY,
			content_hash TEXT NOT NULL,
			ruleset_hash TEXT NOT NULL,
			diagnostics TEXT NOT NULL,
			scanned_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_file_scans_ruleset ON file_scans(ruleset_hash);
	`
	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	// Any rule or override change invalidates everything recorded under the
	// old key.
	if _, err := conn.Exec("DELETE FROM file_scans WHERE ruleset_hash != ?", key); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to prune stale cache entries: %w", err)
	}

	return &Cache{conn: conn, key: key, logger: logger}, nil
}

// Get returns the cached diagnostics for a file, if its content still
// matches.
func (c *Cache) Get(path, contentHash string) ([]Diagnostic, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var storedHash, payload string
	row := c.conn.QueryRow("SELECT content_hash, diagnostics FROM file_scans WHERE path = ?", path)
	if err := row.Scan(&storedHash, &payload); err != nil {
		return nil, false
	}
	if storedHash != contentHash {
		return nil, false
	}

	var diags []Diagnostic
	if err := json.Unmarshal([]byte(payload), &diags); err != nil {
		c.logger.Warn("Dropping undecodable cache entry", map[string]interface{}{
			"path": path, "error": err.Error(),
		})
		return nil, false
	}
	return diags, true
}

// Put records a file's diagnostics.
func (c *Cache) Put(path, contentHash string, diags []Diagnostic) {
	payload, err := json.Marshal(diags)
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, err = c.conn.Exec(`
		INSERT INTO file_scans (path, content_hash, ruleset_hash, diagnostics, scanned_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			content_hash = excluded.content_hash,
			ruleset_hash = excluded.ruleset_hash,
			diagnostics = excluded.diagnostics,
			scanned_at = excluded.scanned_at
	`, path, contentHash, c.key, string(payload), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		c.logger.Warn("Failed to write cache entry", map[string]interface{}{
			"path": path, "error": err.Error(),
		})
	}
}

// Close closes the cache database.
func (c *Cache) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
