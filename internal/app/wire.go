package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"assistant/internal/booking"
	"assistant/internal/chunker"
	"assistant/internal/config"
	"assistant/internal/dialogue"
	"assistant/internal/domain"
	"assistant/internal/embedding"
	embgemini "assistant/internal/embedding/gemini"
	embopenai "assistant/internal/embedding/openai"
	"assistant/internal/embedding/tfidf"
	"assistant/internal/generator"
	"assistant/internal/generator/extractive"
	gengemini "assistant/internal/generator/gemini"
	genopenai "assistant/internal/generator/openai"
	"assistant/internal/notify"
	"assistant/internal/retrieval"
	"assistant/internal/service"
	"assistant/internal/session"
	sessionmemory "assistant/internal/session/memory"
	sessionredis "assistant/internal/session/redis"
	"assistant/internal/storage"
	"assistant/internal/storage/gormstore"
	storagememory "assistant/internal/storage/memory"
	"assistant/internal/vectorstore"
	vectormemory "assistant/internal/vectorstore/memory"
	"assistant/internal/vectorstore/qdrant"
)

// Components is the wired application. Close releases external clients.
type Components struct {
	Assistant *service.Assistant
	closers   []func() error
}

func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Build assembles every component selected by cfg.
func Build(ctx context.Context, cfg *config.AppConfig, l *zap.Logger) (*Components, error) {
	c := &Components{}
	fail := func(err error) (*Components, error) {
		_ = c.Close()
		return nil, err
	}

	emb, err := buildEmbedder(ctx, cfg.Embedder, c)
	if err != nil {
		return fail(fmt.Errorf("embedder: %w", err))
	}
	ch, err := buildChunker(cfg.Chunker)
	if err != nil {
		return fail(fmt.Errorf("chunker: %w", err))
	}
	factory, err := buildVectorStore(cfg.VectorStore)
	if err != nil {
		return fail(fmt.Errorf("vector store: %w", err))
	}
	gen, err := buildGenerator(ctx, cfg.Generator, c)
	if err != nil {
		return fail(fmt.Errorf("generator: %w", err))
	}
	bookings, err := buildStorage(cfg.Storage, l, c)
	if err != nil {
		return fail(fmt.Errorf("storage: %w", err))
	}
	sessions, err := buildSessions(ctx, cfg.Sessions, c)
	if err != nil {
		return fail(fmt.Errorf("sessions: %w", err))
	}

	opts := []booking.Option{booking.WithPrefill(cfg.Booking.PrefillFromDocument)}
	n, err := buildNotifier(cfg.Notifier, l)
	if err != nil {
		return fail(fmt.Errorf("notifier: %w", err))
	}
	if n != nil {
		opts = append(opts, booking.WithNotifier(n))
	}

	machine := booking.NewMachine(l, bookings, opts...)
	orch := dialogue.New(l, machine, booking.NewIntentClassifier(cfg.Booking.IntentKeywords), gen,
		time.Duration(cfg.Generator.TimeoutSecs)*time.Second)

	retrievalCfg := retrieval.Config{TopK: cfg.Retrieval.TopK, MinScore: cfg.Retrieval.MinScore}
	c.Assistant = service.New(l, service.Config{
		Sessions:     sessions,
		Bookings:     bookings,
		Orchestrator: orch,
		NewEngine: func(name string) *retrieval.Engine {
			return retrieval.NewEngine(l, name, ch, emb, factory, retrievalCfg)
		},
		Scope:   cfg.Retrieval.Scope,
		IdleTTL: time.Duration(cfg.Retrieval.IdleTTLMins) * time.Minute,
	})

	l.Info("Assistant assembled",
		zap.String("embedder", emb.Name()),
		zap.String("vector_store", cfg.VectorStore.Type),
		zap.String("generator", cfg.Generator.Type),
		zap.String("storage", cfg.Storage.Type),
		zap.String("sessions", cfg.Sessions.Type),
		zap.String("notifier", cfg.Notifier.Type),
	)
	return c, nil
}

func buildEmbedder(ctx context.Context, cfg config.EmbedderConfig, c *Components) (embedding.Embedder, error) {
	switch cfg.Type {
	case "tfidf", "":
		return tfidf.NewEmbedder(), nil
	case "openai":
		if cfg.OpenAI == nil {
			return nil, errors.New("openai embedder config missing")
		}
		return embopenai.NewClient(embopenai.Config{
			BaseURL:    cfg.OpenAI.BaseURL,
			APIKeyEnv:  cfg.OpenAI.APIKeyEnv,
			Model:      cfg.OpenAI.Model,
			Timeout:    time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
			MaxRetries: cfg.OpenAI.MaxRetries,
		})
	case "gemini":
		if cfg.Gemini == nil {
			return nil, errors.New("gemini embedder config missing")
		}
		client, err := embgemini.NewClient(ctx, embgemini.Config{APIKeyEnv: cfg.Gemini.APIKeyEnv, Model: cfg.Gemini.Model})
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, client.Close)
		return client, nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
}

func buildChunker(cfg config.ChunkerConfig) (domain.Chunker, error) {
	switch cfg.Type {
	case "window", "":
		unit := chunker.UnitWords
		if cfg.Unit == "chars" {
			unit = chunker.UnitChars
		}
		return chunker.NewWindowChunker(unit, cfg.Size, cfg.Overlap), nil
	default:
		return nil, fmt.Errorf("unknown chunker: %s", cfg.Type)
	}
}

func buildVectorStore(cfg config.VectorStoreConfig) (vectorstore.Factory, error) {
	switch cfg.Type {
	case "memory", "":
		return vectormemory.Factory(), nil
	case "qdrant":
		if cfg.Qdrant == nil {
			return nil, errors.New("qdrant config missing")
		}
		return qdrant.Factory(qdrant.Config{
			URL:        cfg.Qdrant.URL,
			APIKey:     os.Getenv(cfg.Qdrant.APIKeyEnv),
			Collection: cfg.Qdrant.Collection,
			Timeout:    time.Duration(cfg.Qdrant.TimeoutSecs) * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.Type)
	}
}

func buildGenerator(ctx context.Context, cfg config.GeneratorConfig, c *Components) (generator.Generator, error) {
	switch cfg.Type {
	case "extractive", "":
		return extractive.New(cfg.Extractive.MaxSentences), nil
	case "openai":
		if cfg.OpenAI == nil {
			return nil, errors.New("openai generator config missing")
		}
		return genopenai.NewClient(genopenai.Config{
			BaseURL:     cfg.OpenAI.BaseURL,
			APIKeyEnv:   cfg.OpenAI.APIKeyEnv,
			Model:       cfg.OpenAI.Model,
			MaxTokens:   cfg.OpenAI.MaxTokens,
			Temperature: cfg.OpenAI.Temperature,
			Timeout:     time.Duration(cfg.TimeoutSecs) * time.Second,
		})
	case "gemini":
		if cfg.Gemini == nil {
			return nil, errors.New("gemini generator config missing")
		}
		client, err := gengemini.NewClient(ctx, gengemini.Config{
			APIKeyEnv:       cfg.Gemini.APIKeyEnv,
			Model:           cfg.Gemini.Model,
			Temperature:     cfg.Gemini.Temperature,
			MaxOutputTokens: cfg.Gemini.MaxOutputTokens,
		})
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, client.Close)
		return client, nil
	default:
		return nil, fmt.Errorf("unknown generator: %s", cfg.Type)
	}
}

func buildStorage(cfg config.StorageConfig, l *zap.Logger, c *Components) (storage.BookingStore, error) {
	switch cfg.Type {
	case "memory", "":
		return storagememory.New(), nil
	case "sql":
		db, err := gormstore.Connect(l, cfg.DSN)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, sqlDB.Close)
		return gormstore.New(db)
	default:
		return nil, fmt.Errorf("unknown storage: %s", cfg.Type)
	}
}

func buildSessions(ctx context.Context, cfg config.SessionsConfig, c *Components) (session.Store, error) {
	switch cfg.Type {
	case "memory", "":
		return sessionmemory.New(), nil
	case "redis":
		if cfg.Redis == nil {
			return nil, errors.New("redis config missing")
		}
		client, err := sessionredis.Connect(ctx, cfg.Redis.Addr, os.Getenv(cfg.Redis.PasswordEnv), cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, client.Close)
		return sessionredis.New(client, time.Duration(cfg.Redis.TTLMins)*time.Minute), nil
	default:
		return nil, fmt.Errorf("unknown session store: %s", cfg.Type)
	}
}

// buildNotifier returns nil for "none", which leaves replies without an
// email suffix.
func buildNotifier(cfg config.NotifierConfig, l *zap.Logger) (notify.Notifier, error) {
	switch cfg.Type {
	case "none":
		return nil, nil
	case "log", "":
		return notify.NewLogNotifier(l), nil
	case "smtp":
		if cfg.SMTP == nil {
			return nil, errors.New("smtp config missing")
		}
		return notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:        cfg.SMTP.Host,
			Port:        cfg.SMTP.Port,
			Username:    cfg.SMTP.Username,
			PasswordEnv: cfg.SMTP.PasswordEnv,
			From:        cfg.SMTP.From,
		})
	default:
		return nil, fmt.Errorf("unknown notifier: %s", cfg.Type)
	}
}
