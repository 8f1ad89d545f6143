package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/vheim/othala/internal/models"
	"github.com/vheim/othala/internal/storage"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind, collection, id string)

// Watch starts an fsnotify watcher on the workspace root and processes file
// change events until ctx is cancelled. It calls cb (if non-nil) after each
// successful index mutation.
//
// Collection directories created at runtime are added to the watch list.
// Rename events trigger a debounced reconciliation pass that removes stale
// index entries whose documents no longer exist on disk.
func Watch(ctx context.Context, db *DB, store storage.Provider, root string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(root); err != nil {
		return err
	}
	for _, collection := range models.Collections {
		dir := filepath.Join(root, collection)
		if info, statErr := os.Stat(dir); statErr == nil && info.IsDir() {
			if addErr := w.Add(dir); addErr != nil {
				return addErr
			}
		}
	}

	logger.Info("watcher: started", slog.String("root", root))

	// reconcileTimer debounces rename reconciliation.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(db, store, logger, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			// A collection directory appearing at runtime needs watching,
			// plus an index pass over any documents already inside it.
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if collectionForDir(root, ev.Name) != "" {
						if addErr := w.Add(ev.Name); addErr != nil {
							logger.Warn("watcher: add new dir failed",
								slog.String("path", ev.Name),
								slog.String("error", addErr.Error()))
						} else {
							logger.Debug("watcher: watching new dir", slog.String("path", ev.Name))
						}
						indexNewDir(db, store, root, ev.Name, logger, cb)
					}
					continue
				}
			}

			collection, id, ok := splitEntityPath(root, ev.Name)
			if !ok {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, readErr := store.Read(collection, id)
				if readErr != nil {
					logger.Warn("watcher: read failed", slog.String("entity", collection+"/"+id), slog.String("error", readErr.Error()))
					continue
				}
				if idxErr := IndexEntity(db, collection, id, data); idxErr != nil {
					logger.Warn("watcher: index failed", slog.String("entity", collection+"/"+id), slog.String("error", idxErr.Error()))
					continue
				}
				kind := "updated"
				if ev.Op&fsnotify.Create != 0 {
					kind = "created"
				}
				logger.Debug("watcher: indexed", slog.String("entity", collection+"/"+id), slog.String("op", kind))
				if cb != nil {
					cb(kind, collection, id)
				}

			case ev.Op&fsnotify.Remove != 0:
				if delErr := db.DeleteEntity(collection, id); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("entity", collection+"/"+id), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: deleted", slog.String("entity", collection+"/"+id))
				if cb != nil {
					cb("deleted", collection, id)
				}

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify fires Rename on the OLD path only. The new path
				// arrives as a separate Create event if it stays within a
				// watched dir. Delete the old entry now and schedule a short
				// reconciliation pass to catch stragglers.
				if delErr := db.DeleteEntity(collection, id); delErr != nil {
					logger.Warn("watcher: rename delete failed", slog.String("entity", collection+"/"+id), slog.String("error", delErr.Error()))
				} else {
					logger.Debug("watcher: rename old deleted", slog.String("entity", collection+"/"+id))
					if cb != nil {
						cb("deleted", collection, id)
					}
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile does a lightweight sync using batch lookups: index entries
// without a corresponding document on disk are removed, and on-disk documents
// that are missing or changed in the index are re-indexed.
func reconcile(db *DB, store storage.Provider, logger *slog.Logger, cb EventCallback) {
	checksums, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string)
	for _, collection := range models.Collections {
		metas, listErr := store.List(collection)
		if listErr != nil {
			logger.Warn("reconcile: list failed", slog.String("collection", collection), slog.String("error", listErr.Error()))
			return
		}
		for _, m := range metas {
			disk[m.Collection+"/"+m.ID] = m.Checksum
		}
	}

	for key := range checksums {
		if _, ok := disk[key]; !ok {
			collection, id := splitKey(key)
			if delErr := db.DeleteEntity(collection, id); delErr == nil {
				logger.Debug("reconcile: removed stale", slog.String("entity", key))
				if cb != nil {
					cb("deleted", collection, id)
				}
			}
		}
	}

	for key, cs := range disk {
		if checksums[key] == cs {
			continue
		}
		collection, id := splitKey(key)
		data, readErr := store.Read(collection, id)
		if readErr != nil {
			continue
		}
		if idxErr := IndexEntity(db, collection, id, data); idxErr == nil {
			logger.Debug("reconcile: indexed new", slog.String("entity", key))
			if cb != nil {
				cb("created", collection, id)
			}
		}
	}
}

// indexNewDir indexes any documents already present in a newly created
// collection directory.
func indexNewDir(db *DB, store storage.Provider, root, dirPath string, logger *slog.Logger, cb EventCallback) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		collection, id, ok := splitEntityPath(root, filepath.Join(dirPath, entry.Name()))
		if !ok {
			continue
		}
		data, readErr := store.Read(collection, id)
		if readErr != nil {
			continue
		}
		if idxErr := IndexEntity(db, collection, id, data); idxErr == nil {
			logger.Debug("watcher: indexed from new dir", slog.String("entity", collection+"/"+id))
			if cb != nil {
				cb("created", collection, id)
			}
		}
	}
}

// collectionForDir reports which known collection a directory path maps to,
// or "" when it is not a collection directory of root.
func collectionForDir(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return ""
	}
	for _, collection := range models.Collections {
		if rel == collection {
			return collection
		}
	}
	return ""
}

// splitEntityPath maps an absolute document path to its (collection, id)
// pair. It returns ok=false for paths outside the collection layout or
// non-JSON files.
func splitEntityPath(root, path string) (collection, id string, ok bool) {
	if !strings.HasSuffix(path, ".json") {
		return "", "", false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", "", false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 2 {
		return "", "", false
	}
	if collectionForDir(root, filepath.Join(root, parts[0])) == "" {
		return "", "", false
	}
	return parts[0], strings.TrimSuffix(parts[1], ".json"), true
}
