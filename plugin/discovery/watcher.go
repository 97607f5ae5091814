package discovery

import (
	"context"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gantry-sh/gantry/errors"
)

// debounceWindow coalesces the write bursts editors and package managers
// produce when dropping a manifest.
const debounceWindow = 250 * time.Millisecond

// Watch observes the manifest directory and delivers candidates for
// manifests that appear or change. The channel closes when ctx is done or
// the watcher fails. Per-manifest errors degrade to warnings, matching
// the scan policy.
func (s *ManifestSource) Watch(ctx context.Context) (<-chan Candidate, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating manifest watcher")
	}
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return nil, errors.Wrapf(errors.ErrDiscoveryFailed,
			"watching manifest directory %s: %v", s.dir, err)
	}

	out := make(chan Candidate)
	go func() {
		defer close(out)
		defer watcher.Close()

		pending := make(map[string]time.Time)
		ticker := time.NewTicker(debounceWindow)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !strings.HasSuffix(event.Name, ".toml") {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				pending[event.Name] = time.Now()

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.log.Warnw("manifest watcher error", "dir", s.dir, "error", err)

			case now := <-ticker.C:
				for path, stamp := range pending {
					if now.Sub(stamp) < debounceWindow {
						continue
					}
					delete(pending, path)

					candidate, err := s.loadManifest(path)
					if err != nil {
						s.log.Warnw("skipping changed plugin manifest", "path", path, "error", err)
						continue
					}
					select {
					case out <- candidate:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return out, nil
}
