package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settle is how long a burst of events must be quiet before recompiling.
// Editors often write a file in several steps.
const settle = 100 * time.Millisecond

// watchTargets returns the directories to watch for paths, and the set of
// absolute file names that trigger a rebuild. Directories are watched
// rather than the files so renames on save are seen.
func watchTargets(paths []string) (dirs []string, files map[string]bool, err error) {
	files = make(map[string]bool, len(paths))
	seen := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, nil, fmt.Errorf("watch %s: %w", p, err)
		}
		files[abs] = true
		dir := filepath.Dir(abs)
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	sort.Strings(dirs)
	return dirs, files, nil
}

// relevant reports whether ev changes one of the watched files.
func relevant(ev fsnotify.Event, files map[string]bool) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	abs, err := filepath.Abs(ev.Name)
	if err != nil {
		return false
	}
	return files[abs]
}

// watch compiles paths now and after every change until interrupted.
// Failed builds are reported and watching goes on.
func (c *cli) watch(ctx context.Context, paths []string, outPath string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	dirs, files, err := watchTargets(paths)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer w.Close()
	for _, d := range dirs {
		if err := w.Add(d); err != nil {
			return fmt.Errorf("watch %s: %w", d, err)
		}
	}

	build := func() {
		start := time.Now()
		if err := c.compile(ctx, paths, outPath); err != nil {
			fmt.Fprintln(c.stderr, c.theme.ErrorText.Render("Error: "+err.Error()))
			return
		}
		c.log.Debug("rebuilt", "documents", len(paths), "took", time.Since(start))
	}
	build()
	fmt.Fprintln(c.stderr, c.theme.MutedText.Render(fmt.Sprintf("watching %d document(s), ctrl+c to stop", len(paths))))

	timer := time.NewTimer(settle)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if relevant(ev, files) {
				c.log.Debug("change", "path", ev.Name, "op", ev.Op.String())
				timer.Reset(settle)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			c.log.Warn("watch error", "error", err)
		case <-timer.C:
			build()
		}
	}
}
