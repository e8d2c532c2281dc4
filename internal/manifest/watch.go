// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"log"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a Registry's manifest directory whenever a file in it
// changes, debounced the way internal/watcher debounces binary restarts.
type Watcher struct {
	reg      *Registry
	fsw      *fsnotify.Watcher
	debounce time.Duration

	mu     sync.Mutex
	timer  *time.Timer
	closed chan struct{}
	wg     sync.WaitGroup
}

// NewWatcher starts watching reg's manifest directory for changes,
// reloading (debounced) whenever a .yaml/.yml file is written or created.
func NewWatcher(reg *Registry, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(reg.Dir()); err != nil {
		fsw.Close()
		return nil, err
	}
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}

	w := &Watcher{reg: reg, fsw: fsw, debounce: debounce, closed: make(chan struct{})}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.closed:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if !strings.HasSuffix(ev.Name, ".yaml") && !strings.HasSuffix(ev.Name, ".yml") {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("manifest watcher: %v", err)
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	dir := w.reg.Dir()
	w.timer = time.AfterFunc(w.debounce, func() {
		if err := w.reg.LoadDir(dir); err != nil {
			log.Printf("manifest: reload failed: %v", err)
		} else {
			log.Printf("manifest: reloaded from %s", dir)
		}
	})
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	select {
	case <-w.closed:
		return nil
	default:
		close(w.closed)
	}
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}
