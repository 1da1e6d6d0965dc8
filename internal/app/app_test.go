package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"assistant/internal/config"
	"assistant/internal/generator"
)

func defaults(t *testing.T) *config.AppConfig {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	return cfg
}

func TestBuild_DefaultsRunWholeConversation(t *testing.T) {
	cfg := defaults(t)
	cfg.Chunker.Size = 8
	c, err := Build(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	reply, err := c.Assistant.SubmitMessage(ctx, "s1", "Is there parking?")
	require.NoError(t, err)
	assert.Equal(t, generator.Fallback, reply)

	res, err := c.Assistant.SubmitDocument(ctx, "s1", "policy.txt",
		[]byte("Parking is available behind the clinic. Opening hours are nine to five."))
	require.NoError(t, err)
	assert.Positive(t, res.ChunkCount)

	reply, err = c.Assistant.SubmitMessage(ctx, "s1", "Is there parking?")
	require.NoError(t, err)
	assert.Contains(t, reply, "Parking is available")

	for _, in := range []string{"book", "Ada", "ada@example.com", "9876543210", "consultation", "2024-03-15", "14:30"} {
		_, err := c.Assistant.SubmitMessage(ctx, "s1", in)
		require.NoError(t, err)
	}
	reply, err = c.Assistant.SubmitMessage(ctx, "s1", "confirm")
	require.NoError(t, err)
	// The default log notifier sends nothing, so no email is claimed.
	assert.Equal(t, "Booking confirmed! ID: 1.", reply)

	list, err := c.Assistant.ListBookings(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Ada", list[0].Name)
}

func TestBuild_SQLStorageAndSilentNotifier(t *testing.T) {
	cfg := defaults(t)
	cfg.Storage = config.StorageConfig{Type: "sql", DSN: filepath.Join(t.TempDir(), "bookings.db")}
	cfg.Notifier.Type = "none"
	c, err := Build(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	for _, in := range []string{"reserve", "Ada", "ada@example.com", "9876543210", "consultation", "2024-03-15", "14:30"} {
		_, err := c.Assistant.SubmitMessage(ctx, "s1", in)
		require.NoError(t, err)
	}
	reply, err := c.Assistant.SubmitMessage(ctx, "s1", "confirm")
	require.NoError(t, err)
	assert.Equal(t, "Booking confirmed! ID: 1.", reply)
}

func TestBuild_UnknownComponents(t *testing.T) {
	for name, mutate := range map[string]func(*config.AppConfig){
		"embedder":     func(c *config.AppConfig) { c.Embedder.Type = "word2vec" },
		"chunker":      func(c *config.AppConfig) { c.Chunker.Type = "sentence" },
		"vector store": func(c *config.AppConfig) { c.VectorStore.Type = "faiss" },
		"generator":    func(c *config.AppConfig) { c.Generator.Type = "markov" },
		"storage":      func(c *config.AppConfig) { c.Storage.Type = "mongo" },
		"sessions":     func(c *config.AppConfig) { c.Sessions.Type = "etcd" },
		"notifier":     func(c *config.AppConfig) { c.Notifier.Type = "sms" },
		"qdrant":       func(c *config.AppConfig) { c.VectorStore = config.VectorStoreConfig{Type: "qdrant"} },
		"smtp":         func(c *config.AppConfig) { c.Notifier = config.NotifierConfig{Type: "smtp"} },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := defaults(t)
			mutate(cfg)
			_, err := Build(context.Background(), cfg, zap.NewNop())
			assert.ErrorContains(t, err, name)
		})
	}
}

func TestWebConf(t *testing.T) {
	cfg := defaults(t)
	conf := webConf(cfg, zap.NewNop())
	assert.Equal(t, ":8000", conf.Addr)
	assert.Equal(t, int64(20<<20), conf.MaxUploadBytes)
	assert.Equal(t, rate.Limit(5), conf.RateLimit)
	assert.Equal(t, 10, conf.RateBurst)
}
