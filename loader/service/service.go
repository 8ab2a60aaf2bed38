package service

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"docchat/extract"
	"docchat/loader/internal"
	"docchat/types"
)

// Ingester is the ingestion pipeline as the loader sees it.
type Ingester interface {
	Ingest(ctx context.Context, data []byte, source string) (types.IngestionOutcome, error)
}

// Service feeds PDFs dropped into the source directory through the
// ingestion pipeline, archiving each file according to the result.
type Service struct {
	logger   *slog.Logger
	ingester Ingester
	watcher  *internal.Watcher
	cfg      *types.Config
}

func New(ingester Ingester, cfg *types.Config) *Service {
	return &Service{
		logger:   slog.Default(),
		ingester: ingester,
		watcher:  internal.NewWatcher(cfg.SourceDir, cfg.ArchiveDir, cfg.BadDir, cfg.MonitoringTime),
		cfg:      cfg,
	}
}

func (s *Service) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.watcher.CreateDirectories(); err != nil {
		s.logger.Error("error creating loader directories", "error", err)
		return
	}

	fileChan := make(chan string, 10)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(fileChan)
		s.watcher.Watch(ctx, fileChan)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.processFiles(ctx, fileChan)
	}()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)

	<-sigch
	s.logger.Info("received shutdown signal, shutting down gracefully...")

	cancel()
	signal.Stop(sigch)
	close(sigch)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("all goroutines stopped")
	case <-shutdownCtx.Done():
		s.logger.Warn("timeout waiting for goroutines to stop, forcing shutdown")
	}

	s.logger.Info("loader service stopped")
}

func (s *Service) processFiles(ctx context.Context, fileChan <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case filePath, ok := <-fileChan:
			if !ok {
				return
			}

			ok = s.ingestFile(ctx, filePath)
			if ctx.Err() != nil {
				// Interrupted mid-file: leave it in source for the next run.
				return
			}
			s.watcher.MoveToArchive(filePath, ok)
			s.watcher.Done(filePath)
		}
	}
}

func (s *Service) ingestFile(ctx context.Context, filePath string) bool {
	s.logger.Info("processing file", "file", filePath)

	if s.cfg.CropTop > 0 || s.cfg.CropBottom > 0 {
		if err := extract.CropMargins(filePath, filePath, s.cfg.CropTop, s.cfg.CropBottom); err != nil {
			s.logger.Error("error cropping margins", "file", filePath, "error", err)
			return false
		}
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		s.logger.Error("error reading file", "file", filePath, "error", err)
		return false
	}

	outcome, err := s.ingester.Ingest(ctx, data, filepath.Base(filePath))
	if err != nil {
		s.logger.Error("error ingesting file", "file", filePath, "error", err)
		return false
	}

	s.logger.Info("file ingested",
		"file", filePath,
		"status", outcome.Status,
		"fragments", outcome.FragmentsTotal,
		"stored", outcome.VectorsStored)
	return true
}
