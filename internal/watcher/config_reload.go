package watcher

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"time"

	"github.com/nghyane/stitch-sdk/internal/config"
	log "github.com/nghyane/stitch-sdk/internal/logging"
)

func (w *Watcher) scheduleConfigReload() {
	w.configReloadMu.Lock()
	defer w.configReloadMu.Unlock()
	if w.configReloadTimer != nil {
		w.configReloadTimer.Stop()
	}
	w.configReloadTimer = time.AfterFunc(w.debounce, func() {
		w.configReloadMu.Lock()
		w.configReloadTimer = nil
		w.configReloadMu.Unlock()
		w.reloadConfigIfChanged()
	})
}

func (w *Watcher) stopConfigReloadTimer() {
	w.configReloadMu.Lock()
	defer w.configReloadMu.Unlock()
	if w.configReloadTimer != nil {
		w.configReloadTimer.Stop()
		w.configReloadTimer = nil
	}
}

func (w *Watcher) reloadConfigIfChanged() {
	w.configReloadMu.Lock()
	defer w.configReloadMu.Unlock()

	data, err := os.ReadFile(w.configPath)
	if err != nil {
		log.Errorf("failed to read config file for hash check: %v", err)
		return
	}
	if len(data) == 0 {
		log.Debugf("ignoring empty config file write event")
		return
	}
	newHash := hashBytes(data)
	if w.lastConfigHash != "" && w.lastConfigHash == newHash {
		log.Debugf("config file content unchanged (hash match), skipping reload")
		return
	}

	cfg, err := config.Parse(data)
	if err != nil {
		log.Errorf("failed to reload config: %v", err)
		return
	}
	if err = cfg.ApplyEnv(w.lookup); err != nil {
		log.Errorf("failed to reload config: %v", err)
		return
	}
	w.lastConfigHash = newHash
	log.Infof("config file changed, reloaded: %s", w.configPath)
	if w.reloadCallback != nil {
		w.reloadCallback(cfg)
	}
}

func fileHash(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return hashBytes(data), nil
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
