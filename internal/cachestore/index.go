package cachestore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Clock hook for eviction-order tests
var now = time.Now

// loadIndex reads the persisted index. An unparsable or missing index yields
// an empty map; the directory scan afterwards rebuilds consistency from what
// is actually on disk.
func (s *Store) loadIndex() {
	indexPath := filepath.Join(s.dir, indexFileName)

	data, err := os.ReadFile(indexPath)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Error("Failed reading cache index, starting empty", "path", indexPath, "error", err)
		}
		return
	}

	entries := make(map[string]Entry)
	if err := json.Unmarshal(data, &entries); err != nil {
		slog.Error("Cache index corrupt, starting empty", "path", indexPath, "error", err)
		return
	}

	s.entries = entries
	for _, entry := range s.entries {
		s.size += entry.Size
	}
}

// persistIndex rewrites the whole index via temp file + rename. Callers must
// hold mu.
func (s *Store) persistIndex() error {
	data, err := json.Marshal(s.entries)
	if err != nil {
		return fmt.Errorf("failed encoding index: %w", err)
	}

	indexPath := filepath.Join(s.dir, indexFileName)
	tmpPath := indexPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed writing index: %w", err)
	}
	if err := os.Rename(tmpPath, indexPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed replacing index: %w", err)
	}
	return nil
}

// pruneDanglingEntries drops index entries whose backing file was removed
// while the store was not running.
func (s *Store) pruneDanglingEntries() {
	for key, entry := range s.entries {
		if _, err := os.Stat(filepath.Join(s.dir, entry.LocalName)); err != nil {
			slog.Warn("Pruning index entry without backing file", "key", key, "localName", entry.LocalName)
			delete(s.entries, key)
			s.size -= entry.Size
		}
	}
}

// removeOrphanFiles deletes cached files the index does not reference. Such
// files come from a crash between file write and index persist and were never
// committed, so they must not count against the budget.
func (s *Store) removeOrphanFiles() {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		slog.Error("Failed scanning cache dir for orphans", "error", err)
		return
	}

	referenced := make(map[string]struct{}, len(s.entries))
	for _, entry := range s.entries {
		referenced[entry.LocalName] = struct{}{}
	}

	for _, file := range files {
		name := file.Name()
		if file.IsDir() || name == indexFileName || name == lockFileName || strings.HasPrefix(name, ".tmp-") {
			if strings.HasPrefix(name, ".tmp-") {
				os.Remove(filepath.Join(s.dir, name))
			}
			continue
		}
		if _, ok := referenced[name]; ok {
			continue
		}
		slog.Warn("Removing orphaned cache file", "localName", name)
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			slog.Error("Failed removing orphaned cache file", "localName", name, "error", err)
		}
	}
}
