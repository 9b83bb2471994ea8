package docstore

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/defi-common/internal/errors"
	"github.com/defi-common/internal/models"
	"github.com/defi-common/internal/monitor"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TraderUpdateRepository stores whole TraderUpdate documents, one per trader address.
// Concurrent saves for the same trader are last-write-wins.
type TraderUpdateRepository struct {
	coll    *mongo.Collection
	metrics *monitor.Metrics
}

// NewTraderUpdateRepository creates a repository over db's TraderUpdate collection. metrics may be nil.
func NewTraderUpdateRepository(db *mongo.Database, metrics *monitor.Metrics) *TraderUpdateRepository {
	return &TraderUpdateRepository{
		coll:    db.Collection(TraderUpdateCollection),
		metrics: metrics,
	}
}

func (r *TraderUpdateRepository) track(action string) func(*error) {
	start := time.Now()
	return func(errp *error) {
		r.metrics.ObserveOperation(monitor.StoreMongo, TraderUpdateCollection, action, start, *errp)
	}
}

// Save replaces the trader's document, inserting it when absent, and sets u.ID.
// Aggregate consistency is the writer's job (see models.TraderUpdate.Validate).
func (r *TraderUpdateRepository) Save(ctx context.Context, u *models.TraderUpdate) (err error) {
	defer r.track("replace")(&err)

	if u.TraderAddress == "" {
		return apperrors.NewInvalidParameterError("trader_address", "must not be empty")
	}

	doc := *u
	doc.ID = primitive.NilObjectID // the stored _id is immutable
	if doc.Trades == nil {
		doc.Trades = []models.Trade{}
	}

	opts := options.FindOneAndReplace().
		SetUpsert(true).
		SetReturnDocument(options.After).
		SetProjection(bson.D{{Key: "_id", Value: 1}})

	var saved struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	err = r.coll.FindOneAndReplace(ctx, bson.D{{Key: "trader_address", Value: u.TraderAddress}}, doc, opts).Decode(&saved)
	if err != nil {
		return classifyMongoError(TraderUpdateCollection, "replace", err)
	}
	u.ID = saved.ID
	return nil
}

// Get returns the document for a trader address
func (r *TraderUpdateRepository) Get(ctx context.Context, traderAddress string) (_ *models.TraderUpdate, err error) {
	defer r.track("find")(&err)

	var u models.TraderUpdate
	err = r.coll.FindOne(ctx, bson.D{{Key: "trader_address", Value: traderAddress}}).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NewNotFoundError(TraderUpdateCollection, traderAddress)
		}
		return nil, classifyMongoError(TraderUpdateCollection, "find", err)
	}
	return &u, nil
}

// ListTopByProfit returns the traders with the highest sum_profit. limit <= 0 returns all.
func (r *TraderUpdateRepository) ListTopByProfit(ctx context.Context, limit int64) (_ []*models.TraderUpdate, err error) {
	defer r.track("list")(&err)

	opts := options.Find().SetSort(bson.D{
		{Key: "sum_profit", Value: -1},
		{Key: "trader_address", Value: 1},
	})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cur, err := r.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, classifyMongoError(TraderUpdateCollection, "list", err)
	}
	defer cur.Close(ctx)

	var updates []*models.TraderUpdate
	if err := cur.All(ctx, &updates); err != nil {
		return nil, classifyMongoError(TraderUpdateCollection, "list", err)
	}
	return updates, nil
}

// Count returns the number of stored traders
func (r *TraderUpdateRepository) Count(ctx context.Context) (_ int64, err error) {
	defer r.track("count")(&err)

	n, err := r.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, classifyMongoError(TraderUpdateCollection, "count", err)
	}
	return n, nil
}
