// Package persistence wires the relational and document stores into one handle
// constructed at startup and torn down at shutdown.
package persistence

import (
	"context"

	"github.com/defi-common/internal/config"
	"github.com/defi-common/internal/docstore"
	"github.com/defi-common/internal/logging"
	"github.com/defi-common/internal/monitor"
	"github.com/defi-common/internal/storage"
	"golang.org/x/sync/errgroup"
)

// Options controls how Open builds the stores
type Options struct {
	// Target selects DB_URL/MONGO_URL or their test counterparts
	Target  storage.Target
	Logger  *logging.Logger
	Metrics *monitor.Metrics
	// Shapes registered on the document store; nil means docstore.DefaultShapes
	Shapes []docstore.Shape
}

// Stores holds both store handles. Nothing spans them: a caller writes the
// relational side first and treats a failed document write as its own concern.
type Stores struct {
	Relational *storage.PostgresDB
	Documents  *docstore.MongoStore
}

// Open connects both stores concurrently and registers document shapes.
// If either side fails, whatever was opened is closed before returning.
func Open(ctx context.Context, cfg *config.Config, opts Options) (*Stores, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	shapes := opts.Shapes
	if shapes == nil {
		shapes = docstore.DefaultShapes()
	}

	var (
		pg    *storage.PostgresDB
		mongo *docstore.MongoStore
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		db, err := storage.NewPostgresDB(gctx, &cfg.Database.Postgres, opts.Target,
			storage.WithLogger(logger),
			storage.WithMetrics(opts.Metrics),
		)
		if err != nil {
			return err
		}
		pg = db
		return nil
	})
	g.Go(func() error {
		mcfg := cfg.Database.Mongo
		mcfg.URL = mcfg.URLFor(opts.Target == storage.TargetTest)
		s, err := docstore.NewMongoStore(gctx, &mcfg,
			docstore.WithLogger(logger),
			docstore.WithMetrics(opts.Metrics),
		)
		if err != nil {
			return err
		}
		mongo = s
		return s.Register(gctx, shapes...)
	})

	err := g.Wait()
	stores := &Stores{Relational: pg, Documents: mongo}
	if err != nil {
		if cerr := stores.Close(context.Background()); cerr != nil {
			logger.WithError(cerr).Warn("cleanup after failed open")
		}
		return nil, err
	}

	logger.WithField("target", opts.Target.String()).Info("stores ready")
	return stores, nil
}

// Close tears down both stores. Safe on a partially opened Stores.
func (s *Stores) Close(ctx context.Context) error {
	if s.Relational != nil {
		s.Relational.Close()
	}
	if s.Documents != nil {
		return s.Documents.Close(ctx)
	}
	return nil
}
