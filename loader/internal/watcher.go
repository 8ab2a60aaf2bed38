package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Watcher polls a source directory for PDFs and emits a file path once a
// file has stopped changing for the configured quiet period.
type Watcher struct {
	sourceDir  string
	archiveDir string
	badDir     string
	quiet      time.Duration
	logger     *slog.Logger

	mu         sync.Mutex
	firstSeen  map[string]time.Time
	processing map[string]bool
}

func NewWatcher(sourceDir, archiveDir, badDir string, quiet time.Duration) *Watcher {
	return &Watcher{
		sourceDir:  sourceDir,
		archiveDir: archiveDir,
		badDir:     badDir,
		quiet:      quiet,
		logger:     slog.Default(),
		firstSeen:  make(map[string]time.Time),
		processing: make(map[string]bool),
	}
}

// CreateDirectories makes sure the source, archive and bad dirs exist.
func (w *Watcher) CreateDirectories() error {
	for _, dir := range []string{w.sourceDir, w.archiveDir, w.badDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// Watch scans the source directory once a second until the context is
// cancelled, sending ready files into fileChan.
func (w *Watcher) Watch(ctx context.Context, fileChan chan<- string) {
	w.logger.Info("monitoring folder", "dir", w.sourceDir)

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("file watcher stopped")
			return
		case <-ticker.C:
			files, err := os.ReadDir(w.sourceDir)
			if err != nil {
				w.logger.Error("error reading source directory", "error", err)
				continue
			}

			currentFiles := make(map[string]bool)

			for _, file := range files {
				if file.IsDir() || !strings.EqualFold(filepath.Ext(file.Name()), ".pdf") {
					continue
				}

				filePath := filepath.Join(w.sourceDir, file.Name())
				currentFiles[filePath] = true

				w.mu.Lock()
				if w.processing[filePath] {
					w.mu.Unlock()
					continue
				}
				if _, exists := w.firstSeen[filePath]; !exists {
					w.firstSeen[filePath] = time.Now()
					w.logger.Info("new file detected", "file", filePath)
					w.mu.Unlock()
					continue
				}
				firstSeen := w.firstSeen[filePath]
				w.mu.Unlock()

				if time.Since(firstSeen) <= w.quiet {
					continue
				}

				w.mu.Lock()
				w.processing[filePath] = true
				w.mu.Unlock()

				select {
				case fileChan <- filePath:
				case <-ctx.Done():
					return
				}
			}

			// Forget files that disappeared from the directory.
			w.mu.Lock()
			for filePath := range w.firstSeen {
				if !currentFiles[filePath] {
					delete(w.firstSeen, filePath)
					delete(w.processing, filePath)
				}
			}
			w.mu.Unlock()
		}
	}
}

// Done clears the tracking state for a processed file.
func (w *Watcher) Done(filePath string) {
	w.mu.Lock()
	delete(w.processing, filePath)
	delete(w.firstSeen, filePath)
	w.mu.Unlock()
}

// MoveToArchive copies a processed file into a dated subdirectory of the
// archive (ok == true) or bad directory, then removes the original.
func (w *Watcher) MoveToArchive(filePath string, ok bool) {
	destRoot := w.archiveDir
	if !ok {
		destRoot = w.badDir
	}

	destDir := filepath.Join(destRoot, time.Now().Format("2006-01-02"))
	if err := os.MkdirAll(destDir, 0755); err != nil {
		w.logger.Error("error creating archive directory", "error", err)
		return
	}

	destPath := filepath.Join(destDir, filepath.Base(filePath))

	// Pick a free name on collision.
	counter := 1
	for {
		if _, err := os.Stat(destPath); os.IsNotExist(err) {
			break
		}
		ext := filepath.Ext(destPath)
		baseName := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
		destPath = filepath.Join(destDir, fmt.Sprintf("%s_%d%s", baseName, counter, ext))
		counter++
	}

	if err := copyFile(filePath, destPath); err != nil {
		w.logger.Error("error moving file to archive", "error", err)
		return
	}
	os.Remove(filePath)
	w.logger.Info("file archived", "file", destPath)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
