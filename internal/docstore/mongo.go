// Package docstore provides the document store: client lifecycle, shape registration
// and the TraderUpdate repository.
package docstore

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/defi-common/internal/config"
	apperrors "github.com/defi-common/internal/errors"
	"github.com/defi-common/internal/logging"
	"github.com/defi-common/internal/monitor"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Enforcement every registered collection runs with
const (
	validationLevel  = "strict"
	validationAction = "error"
)

// Shape registration outcomes
const (
	OutcomeCreated   = "created"
	OutcomeUnchanged = "unchanged"
	OutcomeUpdated   = "updated"
	OutcomeConflict  = "conflict"
)

// Option configures a MongoStore
type Option func(*MongoStore)

// WithLogger sets the logger used for connection and registration events
func WithLogger(l *logging.Logger) Option {
	return func(s *MongoStore) { s.logger = l }
}

// WithMetrics sets the metrics sink
func WithMetrics(m *monitor.Metrics) Option {
	return func(s *MongoStore) { s.metrics = m }
}

// MongoStore owns the process-wide document store client. It is safe for concurrent use.
type MongoStore struct {
	client           *mongo.Client
	db               *mongo.Database
	allowShapeUpdate bool
	logger           *logging.Logger
	metrics          *monitor.Metrics

	closeOnce sync.Once
}

// NewMongoStore connects to cfg.URL and pings the primary
func NewMongoStore(ctx context.Context, cfg *config.MongoConfig, opts ...Option) (*MongoStore, error) {
	if cfg.URL == "" {
		return nil, apperrors.NewConfigurationError(config.EnvMongoURL+" is not set", config.EnvMongoURL)
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	clientOpts := options.Client().
		ApplyURI(cfg.URL).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)
	if err := clientOpts.Validate(); err != nil {
		return nil, apperrors.NewConfigurationError(config.EnvMongoURL+" is malformed: "+err.Error(), config.EnvMongoURL)
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOpts)
	if err != nil {
		return nil, apperrors.NewConnectivityError(monitor.StoreMongo, "client", "connect", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, apperrors.NewConnectivityError(monitor.StoreMongo, "client", "ping", err)
	}

	s := newMongoStore(client, cfg.Database, cfg.AllowShapeUpdate, opts...)
	s.logger.WithField("database", cfg.Database).Info("document store ready")
	return s, nil
}

func newMongoStore(client *mongo.Client, database string, allowShapeUpdate bool, opts ...Option) *MongoStore {
	s := &MongoStore{
		client:           client,
		db:               client.Database(database),
		allowShapeUpdate: allowShapeUpdate,
		logger:           logging.GetGlobalLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithField("store", monitor.StoreMongo)
	return s
}

// Close disconnects the client. Safe to call more than once.
func (s *MongoStore) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		if err = s.client.Disconnect(ctx); err != nil {
			err = classifyMongoError("client", "disconnect", err)
			return
		}
		s.logger.Info("document store closed")
	})
	return err
}

// Ping checks that the primary is reachable
func (s *MongoStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return apperrors.NewConnectivityError(monitor.StoreMongo, "client", "ping", err)
	}
	return nil
}

// Client returns the underlying client
func (s *MongoStore) Client() *mongo.Client {
	return s.client
}

// Database returns the configured database
func (s *MongoStore) Database() *mongo.Database {
	return s.db
}

// TraderUpdates returns the TraderUpdate repository
func (s *MongoStore) TraderUpdates() *TraderUpdateRepository {
	return NewTraderUpdateRepository(s.db, s.metrics)
}

// Register makes every shape's collection exist with its validator and indexes.
// An existing collection with a different validator is a schema conflict unless
// shape updates are allowed, in which case the validator is replaced in place.
// Documents are never dropped.
func (s *MongoStore) Register(ctx context.Context, shapes ...Shape) error {
	for _, shape := range shapes {
		outcome, err := s.register(ctx, shape)
		if outcome != "" {
			s.metrics.ShapeRegistered(shape.Collection, outcome)
		}
		if err != nil {
			s.logger.WithField("collection", shape.Collection).WithError(err).Error("shape registration failed")
			return err
		}
		s.logger.WithFields(map[string]interface{}{
			"collection": shape.Collection,
			"outcome":    outcome,
		}).Info("shape registered")
	}
	return nil
}

func (s *MongoStore) register(ctx context.Context, shape Shape) (string, error) {
	want, err := bson.Marshal(shape.Validator)
	if err != nil {
		return "", apperrors.NewInternalError("marshal validator for "+shape.Collection, err)
	}

	current, found, err := s.currentState(ctx, shape.Collection)
	if err != nil {
		return "", err
	}

	outcome := OutcomeUnchanged
	if !found {
		createOpts := options.CreateCollection().
			SetValidator(shape.Validator).
			SetValidationLevel(validationLevel).
			SetValidationAction(validationAction)
		err := s.db.CreateCollection(ctx, shape.Collection, createOpts)
		switch {
		case err == nil:
			outcome = OutcomeCreated
			current = collectionState{validator: want, level: validationLevel, action: validationAction}
		case hasServerErrorCode(err, codeNamespaceExists):
			// created concurrently by another process: verify what it registered
			if current, _, err = s.currentState(ctx, shape.Collection); err != nil {
				return "", err
			}
		default:
			return "", classifyMongoError(shape.Collection, "create", err)
		}
	}

	if !current.matches(want) {
		o, err := s.resolveMismatch(ctx, shape)
		if err != nil {
			return o, err
		}
		outcome = o
	}

	if len(shape.Indexes) > 0 {
		if _, err := s.db.Collection(shape.Collection).Indexes().CreateMany(ctx, shape.Indexes); err != nil {
			if hasServerErrorCode(err, codeIndexOptionsConflict, codeIndexKeySpecsConflict) {
				return OutcomeConflict, apperrors.NewSchemaConflictError(shape.Collection, "existing index differs from registered shape", err)
			}
			return "", classifyMongoError(shape.Collection, "create_indexes", err)
		}
	}
	return outcome, nil
}

func (s *MongoStore) resolveMismatch(ctx context.Context, shape Shape) (string, error) {
	if !s.allowShapeUpdate {
		return OutcomeConflict, apperrors.NewSchemaConflictError(shape.Collection, "existing validator differs from registered shape", nil)
	}

	cmd := bson.D{
		{Key: "collMod", Value: shape.Collection},
		{Key: "validator", Value: shape.Validator},
		{Key: "validationLevel", Value: validationLevel},
		{Key: "validationAction", Value: validationAction},
	}
	if err := s.db.RunCommand(ctx, cmd).Err(); err != nil {
		return "", classifyMongoError(shape.Collection, "collmod", err)
	}
	s.logger.WithField("collection", shape.Collection).Warn("validator replaced")
	return OutcomeUpdated, nil
}

// collectionState is the enforcement a collection currently runs with
type collectionState struct {
	validator bson.Raw
	level     string
	action    string
}

func (c collectionState) matches(validator []byte) bool {
	return bytes.Equal(c.validator, validator) &&
		c.level == validationLevel &&
		c.action == validationAction
}

// currentState reads a collection's validator, validation level and action, or
// found=false when the collection does not exist. Unset level and action are the
// server defaults, strict and error. A collection without a validator has an empty one.
func (s *MongoStore) currentState(ctx context.Context, collection string) (collectionState, bool, error) {
	specs, err := s.db.ListCollectionSpecifications(ctx, bson.D{{Key: "name", Value: collection}})
	if err != nil {
		return collectionState{}, false, classifyMongoError(collection, "list_collections", err)
	}
	if len(specs) == 0 {
		return collectionState{}, false, nil
	}

	opts := specs[0].Options
	state := collectionState{validator: bson.Raw{}, level: "strict", action: "error"}
	if doc, ok := opts.Lookup("validator").DocumentOK(); ok {
		state.validator = doc
	}
	if level, ok := opts.Lookup("validationLevel").StringValueOK(); ok {
		state.level = level
	}
	if action, ok := opts.Lookup("validationAction").StringValueOK(); ok {
		state.action = action
	}
	return state, true, nil
}
