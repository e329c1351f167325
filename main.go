package main

import (
	"context"
	"log"
	"os"
	"time"

	"tunarag/internal/api"
	"tunarag/internal/config"
	"tunarag/internal/rag"
	"tunarag/internal/redis"
	"tunarag/internal/retrieval"
	"tunarag/internal/service/ai"
	"tunarag/internal/service/chat"
	"tunarag/internal/session"
	"tunarag/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"google.golang.org/genai"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfgPath := os.Getenv("TUNARAG_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx := context.Background()

	rdb, err := redis.NewClient(cfg)
	if err != nil {
		log.Fatalf("create redis client: %v", err)
	}
	defer rdb.Close()

	pool, err := retrieval.NewPool(ctx, cfg.Retriever.PostgresDSN)
	if err != nil {
		log.Fatalf("open vector store: %v", err)
	}
	defer pool.Close()

	genaiClient, err := newGenaiClient(ctx, cfg)
	if err != nil {
		log.Fatalf("create genai client: %v", err)
	}

	embedder, err := retrieval.NewGenaiEmbedder(genaiClient, cfg.Retriever.EmbeddingModel)
	if err != nil {
		log.Fatalf("init embedder: %v", err)
	}
	retriever, err := retrieval.NewPgVector(pool, cfg.Retriever.Table, embedder)
	if err != nil {
		log.Fatalf("init retriever: %v", err)
	}

	provider := cfg.BasicConfig.Provider
	generator, err := ai.NewGenerator(ctx, provider, cfg.Providers[provider], genaiClient)
	if err != nil {
		log.Fatalf("init generator: %v", err)
	}

	orchestrator, err := rag.NewOrchestrator(retriever, generator, rag.Options{
		TopK:            cfg.Retriever.TopK,
		ScoreThreshold:  cfg.Retriever.ScoreThreshold,
		InstructionPath: cfg.BasicConfig.InstructionPath,
	})
	if err != nil {
		log.Fatalf("init orchestrator: %v", err)
	}

	sessions, err := session.NewManager(rdb, cfg.Session.Prefix,
		time.Duration(cfg.Session.TTLSeconds)*time.Second, cfg.Session.HistoryWindow)
	if err != nil {
		log.Fatalf("init session manager: %v", err)
	}

	dispatcher := worker.NewDispatcher(worker.DispatcherConfig{
		MinWorkers:        cfg.BasicConfig.MinWorkers,
		MaxWorkers:        cfg.BasicConfig.MaxWorkers,
		QueueSize:         cfg.BasicConfig.QueueSize,
		WorkerIdleTimeout: time.Duration(cfg.BasicConfig.WorkerIdleTimeout) * time.Minute,
	})

	chatService := chat.NewService(sessions, orchestrator, dispatcher)
	handlers := api.NewHandler(chatService)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8000"
	}

	if err := router.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

// newGenaiClient builds the shared Gemini client used for query embeddings
// and, when the gemini provider is selected, for generation too.
func newGenaiClient(ctx context.Context, cfg *config.Config) (*genai.Client, error) {
	apiKey := os.Getenv("GOOGLE_API_KEY")
	if prov, ok := cfg.Providers["gemini"]; ok && prov.APIKey != "" {
		apiKey = prov.APIKey
	}
	return genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
}
