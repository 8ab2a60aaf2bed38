package server

import (
	"context"
	"log"
	"log/slog"

	"docchat/app/api"
	"docchat/app/middleware"
	"docchat/extract"
	"docchat/ingest"
	"docchat/model"
	"docchat/query"
	"docchat/store"
	"docchat/types"

	"github.com/gofiber/fiber/v2"
)

const uploadPath = "/api/v1/documents"

type Server struct {
	cfg    *types.Config
	logger *slog.Logger
	app    *fiber.App
}

func NewServer(cfg *types.Config) *Server {
	return &Server{
		cfg:    cfg,
		logger: slog.Default(),
	}
}

func (s *Server) Stop() {
	if s.app != nil {
		_ = s.app.Shutdown()
	}
	s.logger.Info("server stopped")
}

func (s *Server) Run() {
	ctx := context.Background()

	pool, err := store.NewPostgresStore(ctx, s.cfg.PostgresDSN, s.cfg.EmbedDimension)
	if err != nil {
		log.Fatal("error connecting to Postgres database: ", err)
		return
	}

	if err := pool.Init(ctx); err != nil {
		log.Fatal("error creating tables: ", err)
		return
	}

	embedder, completer, err := model.New(s.cfg)
	if err != nil {
		log.Fatal("error building model clients: ", err)
		return
	}

	var tokens model.TokenCounter
	if counter, err := model.NewTiktokenCounter(s.cfg.ChatModel); err != nil {
		s.logger.Warn("token counter unavailable, context budget disabled", "error", err)
	} else {
		tokens = counter
	}

	var (
		ingestPipeline = ingest.New(extract.NewPDFExtractor(), embedder, pool, s.cfg)
		queryPipeline  = query.New(embedder, pool, completer, tokens, s.cfg)

		app = fiber.New(fiber.Config{
			ErrorHandler: api.ErrorHandler,
			BodyLimit:    s.cfg.MaxUploadBytes + 1024*1024,
		})

		checkHandler    = api.NewCheckHandler(pool)
		requestHandler  = api.NewRequestHandler(queryPipeline)
		documentHandler = api.NewDocumentHandler(ingestPipeline, s.cfg.MaxUploadBytes)

		check = app.Group("/check")
		apiv1 = app.Group("/api/v1")
	)

	app.Use(middleware.PlugUploadGuard(uploadPath, s.cfg.MaxUploadBytes))

	check.Get("/healthy", checkHandler.HandleHealthy)
	check.Get("/stats", checkHandler.HandleStats)
	apiv1.Post("/request", requestHandler.HandleRequest)
	apiv1.Post("/documents", documentHandler.HandleUpload)

	s.app = app
	if err := app.Listen(s.cfg.ServerAddr); err != nil {
		s.logger.Error("error starting server", "error", err.Error())
		return
	}
}
