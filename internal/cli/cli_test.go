package cli

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"quiz-engine/internal/config"
	"quiz-engine/internal/domain"
	"quiz-engine/internal/infra/memory"
	"quiz-engine/internal/infra/sqlite"
)

func TestImportBatchFollowsConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Provider.Amount = 5
	cfg.Provider.Difficulty = "hard"
	req := importBatch(cfg)
	if req.Amount != 5 || req.Difficulty != "hard" || req.Type != "multiple" {
		t.Fatalf("unexpected batch %+v", req)
	}
}

func TestServiceSettingsKeepPlayedBatchFixed(t *testing.T) {
	cfg := config.Default()
	cfg.Provider.Amount = 5
	cfg.Provider.Difficulty = "hard"
	cfg.Provider.Type = "boolean"
	cfg.Quiz.Tick = "250ms"

	settings := serviceSettings(cfg)
	if settings.Batch != domain.DefaultBatch() {
		t.Fatalf("expected the fixed batch, got %+v", settings.Batch)
	}
	if settings.TickInterval != 250*time.Millisecond {
		t.Fatalf("expected 250ms tick, got %v", settings.TickInterval)
	}
}

func TestRootRegistersCommands(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"start", "migrate", "import"} {
		if sub, _, err := cmd.Find([]string{name}); err != nil || sub.Name() != name {
			t.Fatalf("expected %s command, got %v err=%v", name, sub, err)
		}
	}
}

func TestOpenStoreBackends(t *testing.T) {
	ctx := context.Background()
	log := quietLogger()

	cfg := config.Default()
	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		t.Fatalf("memory store: %v", err)
	}
	closeStore()
	if _, ok := store.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}

	cfg.Store.Backend = "sqlite"
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "snapshots.db")
	store, closeStore, err = openStore(ctx, cfg, log)
	if err != nil {
		t.Fatalf("sqlite store: %v", err)
	}
	defer closeStore()
	if _, ok := store.(*sqlite.Store); !ok {
		t.Fatalf("expected sqlite store, got %T", store)
	}

	cfg.Store.Backend = "redis"
	cfg.Redis.Addr = ""
	if _, _, err := openStore(ctx, cfg, log); err == nil {
		t.Fatalf("expected error for redis without addr")
	}

	cfg.Store.Backend = "etcd"
	if _, _, err := openStore(ctx, cfg, log); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestOpenProviderStatic(t *testing.T) {
	cfg := config.Default()
	cfg.Provider.Kind = "static"
	provider, closeProvider, err := openProvider(context.Background(), cfg, quietLogger())
	if err != nil {
		t.Fatalf("static provider: %v", err)
	}
	defer closeProvider()
	if _, ok := provider.(*memory.StaticProvider); !ok {
		t.Fatalf("expected static provider, got %T", provider)
	}

	cfg.Provider.Kind = "carrier-pigeon"
	if _, _, err := openProvider(context.Background(), cfg, quietLogger()); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Level = "chatty"
	cfg.Log.Format = "json"
	log := newLogger(cfg)
	if log.GetLevel() != logrus.InfoLevel {
		t.Fatalf("expected info level, got %s", log.GetLevel())
	}
	if _, ok := log.Formatter.(*logrus.JSONFormatter); !ok {
		t.Fatalf("expected json formatter, got %T", log.Formatter)
	}
}

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
