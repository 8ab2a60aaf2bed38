package main

import (
	"context"
	"log"

	"docchat/extract"
	"docchat/ingest"
	"docchat/loader/service"
	"docchat/model"
	"docchat/store"
	"docchat/types"

	"github.com/joho/godotenv"
)

func init() {
	loadEnvVariables()
}

func main() {
	ctx := context.Background()
	cfg := types.LoadConfig()

	pool, err := store.NewPostgresStore(ctx, cfg.PostgresDSN, cfg.EmbedDimension)
	if err != nil {
		log.Fatal("error connecting to Postgres database: ", err)
		return
	}

	if err := pool.Init(ctx); err != nil {
		log.Fatal("error creating tables: ", err)
		return
	}

	embedder, _, err := model.New(&cfg)
	if err != nil {
		log.Fatal("error building model clients: ", err)
		return
	}

	pipeline := ingest.New(extract.NewPDFExtractor(), embedder, pool, &cfg)
	service.New(pipeline, &cfg).Run()

	log.Println("Closing database connection pool...")
	if err := pool.Close(); err != nil {
		log.Printf("error closing pool: %v\n", err)
	}
}

func loadEnvVariables() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on process environment")
	}
}
