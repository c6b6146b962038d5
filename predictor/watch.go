package predictor

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the pipeline whenever the manifest or the current model file
// is written, and calls onReload after each successful swap. It runs until
// ctx is cancelled.
//
// A failed reload is logged and the previous model stays current.
func Watch(ctx context.Context, p *Predictor, onReload func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch directories rather than files so atomic renames are seen.
	dirs := map[string]bool{filepath.Dir(p.manifestPath): true}
	if m, err := p.Current(); err == nil {
		dirs[filepath.Dir(m.Manifest.ModelFile)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return err
		}
	}

	slog.Info("predictor: watching pipeline for changes", "manifest", p.manifestPath)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !p.isPipelineFile(event.Name) {
				continue
			}

			if err := p.Load(); err != nil {
				slog.Error("predictor: reload failed, keeping previous model",
					"file", event.Name, "err", err)
				continue
			}
			slog.Info("predictor: reloaded", "file", event.Name)
			if onReload != nil {
				onReload()
			}

			if m, err := p.Current(); err == nil {
				if dir := filepath.Dir(m.Manifest.ModelFile); !dirs[dir] {
					_ = watcher.Add(dir)
					dirs[dir] = true
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("predictor: watcher error", "err", err)
		}
	}
}

func (p *Predictor) isPipelineFile(name string) bool {
	name = filepath.Clean(name)
	if name == filepath.Clean(p.manifestPath) {
		return true
	}
	m, err := p.Current()
	return err == nil && name == filepath.Clean(m.Manifest.ModelFile)
}
