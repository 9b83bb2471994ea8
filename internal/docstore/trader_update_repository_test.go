package docstore

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/defi-common/internal/config"
	apperrors "github.com/defi-common/internal/errors"
	"github.com/defi-common/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func float(v float64) *float64 { return &v }

func sampleUpdate(addr string) *models.TraderUpdate {
	return models.SummarizeTrades(addr, []models.Trade{
		{Timestamp: "2024-01-01T00:00:00Z", CoinSymbol: "ETH", IsBuy: true, SizeETH: 1.5, Price: 2300, Profit: nil},
		{Timestamp: "2024-01-02T00:00:00Z", CoinSymbol: "ETH", IsBuy: false, SizeETH: 1.5, Price: 2400, Profit: float(150)},
	})
}

func TestTraderUpdateRepository_Mock(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ns := mockDatabase + "." + TraderUpdateCollection

	mt.Run("save sets id", func(mt *mtest.T) {
		repo := NewTraderUpdateRepository(mt.Client.Database(mockDatabase), nil)
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "value", Value: bson.D{{Key: "_id", Value: id}}},
		))

		u := sampleUpdate("0xabc")
		require.NoError(mt, repo.Save(context.Background(), u))
		assert.Equal(mt, id, u.ID)

		ev := mt.GetStartedEvent()
		require.NotNil(mt, ev)
		assert.Equal(mt, "findAndModify", ev.CommandName)
		assert.True(mt, ev.Command.Lookup("upsert").Boolean())
	})

	mt.Run("save rejects empty trader", func(mt *mtest.T) {
		repo := NewTraderUpdateRepository(mt.Client.Database(mockDatabase), nil)
		err := repo.Save(context.Background(), &models.TraderUpdate{})
		assert.True(mt, apperrors.IsCategory(err, apperrors.CategoryValidation))
	})

	mt.Run("save validation failure", func(mt *mtest.T) {
		repo := NewTraderUpdateRepository(mt.Client.Database(mockDatabase), nil)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code: codeDocumentValidation, Name: "DocumentValidationFailure", Message: "Document failed validation",
		}))

		err := repo.Save(context.Background(), sampleUpdate("0xabc"))
		require.Error(mt, err)
		assert.True(mt, apperrors.IsCategory(err, apperrors.CategoryConstraintViolation))
	})

	mt.Run("save duplicate key", func(mt *mtest.T) {
		repo := NewTraderUpdateRepository(mt.Client.Database(mockDatabase), nil)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code: 11000, Name: "DuplicateKey", Message: "E11000 duplicate key error",
		}))

		err := repo.Save(context.Background(), sampleUpdate("0xabc"))
		require.Error(mt, err)
		assert.True(mt, apperrors.IsCategory(err, apperrors.CategoryConstraintViolation))
	})

	mt.Run("get not found", func(mt *mtest.T) {
		repo := NewTraderUpdateRepository(mt.Client.Database(mockDatabase), nil)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := repo.Get(context.Background(), "0xmissing")
		require.Error(mt, err)
		assert.True(mt, apperrors.IsCategory(err, apperrors.CategoryNotFound))
	})

	mt.Run("get decodes null profit", func(mt *mtest.T) {
		repo := NewTraderUpdateRepository(mt.Client.Database(mockDatabase), nil)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "number_of_trades", Value: int32(1)},
			{Key: "traded_eth", Value: 2.0},
			{Key: "average_trade_size", Value: 2.0},
			{Key: "trades", Value: bson.A{bson.D{
				{Key: "timestamp", Value: "2024-01-01T00:00:00Z"},
				{Key: "coin_symbol", Value: "ETH"},
				{Key: "is_buy", Value: true},
				{Key: "size_eth", Value: 2.0},
				{Key: "price", Value: 2300.0},
				{Key: "profit", Value: nil},
			}}},
			{Key: "trader_address", Value: "0xabc"},
			{Key: "sum_profit", Value: 0.0},
		}))

		u, err := repo.Get(context.Background(), "0xabc")
		require.NoError(mt, err)
		require.Len(mt, u.Trades, 1)
		assert.Nil(mt, u.Trades[0].Profit)
		assert.Equal(mt, 1, u.NumberOfTrades)
	})

	mt.Run("list and count", func(mt *mtest.T) {
		repo := NewTraderUpdateRepository(mt.Client.Database(mockDatabase), nil)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
				bson.D{{Key: "trader_address", Value: "0xb"}, {Key: "sum_profit", Value: 9.0}},
				bson.D{{Key: "trader_address", Value: "0xa"}, {Key: "sum_profit", Value: 3.0}},
			),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "_id", Value: 1}, {Key: "n", Value: int64(2)}}),
		)

		top, err := repo.ListTopByProfit(context.Background(), 2)
		require.NoError(mt, err)
		require.Len(mt, top, 2)
		assert.Equal(mt, "0xb", top[0].TraderAddress)

		n, err := repo.Count(context.Background())
		require.NoError(mt, err)
		assert.Equal(mt, int64(2), n)
	})
}

// newTestStore connects to TEST_MONGO_URL with a throwaway database, skipping when unset
func newTestStore(t *testing.T) *MongoStore {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	url := os.Getenv(config.EnvTestMongoURL)
	if url == "" {
		t.Skipf("Skipping test - %s not set", config.EnvTestMongoURL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	name := "defi_common_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	s, err := NewMongoStore(ctx, &config.MongoConfig{URL: url, Database: name, ConnectTimeout: 5 * time.Second})
	if err != nil {
		t.Skipf("Skipping test - Mongo not available: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Database().Drop(context.Background())
		_ = s.Close(context.Background())
	})

	require.NoError(t, s.Register(ctx, DefaultShapes()...))
	return s
}

func TestMongoStore_RegisterIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	outcome, err := s.register(ctx, TraderUpdateShape())
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, outcome)
}

func TestMongoStore_RegisterKeepsDocuments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	repo := s.TraderUpdates()

	require.NoError(t, repo.Save(ctx, sampleUpdate("0xkeep")))

	s.allowShapeUpdate = true
	changed := TraderUpdateShape()
	changed.Validator = bson.D{{Key: "$jsonSchema", Value: bson.D{
		{Key: "bsonType", Value: "object"},
		{Key: "required", Value: bson.A{"trader_address"}},
	}}}
	outcome, err := s.register(ctx, changed)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMongoStore_RegisterDetectsRelaxedEnforcement(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Database().RunCommand(ctx, bson.D{
		{Key: "collMod", Value: TraderUpdateCollection},
		{Key: "validationAction", Value: "warn"},
	}).Err())

	outcome, err := s.register(ctx, TraderUpdateShape())
	require.Error(t, err)
	assert.Equal(t, OutcomeConflict, outcome)

	s.allowShapeUpdate = true
	outcome, err = s.register(ctx, TraderUpdateShape())
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)

	s.allowShapeUpdate = false
	outcome, err = s.register(ctx, TraderUpdateShape())
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, outcome)
}

func TestMongoStore_RejectsInvalidDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Database().Collection(TraderUpdateCollection).InsertOne(ctx, bson.D{{Key: "trader_address", Value: "0xbad"}})
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(classifyMongoError(TraderUpdateCollection, "insert", err), apperrors.CategoryConstraintViolation))
}

func TestTraderUpdateRepository_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	repo := s.TraderUpdates()

	u := models.SummarizeTrades("0xabc", []models.Trade{
		{Timestamp: "2024-01-01T00:00:00Z", CoinSymbol: "ETH", IsBuy: true, SizeETH: 1.5, Price: 2300, Profit: nil},
		{Timestamp: "2024-01-02T00:00:00Z", CoinSymbol: "PEPE", IsBuy: true, SizeETH: 0.25, Price: 0.000012, Profit: float(-0.05)},
		{Timestamp: "2024-01-03T00:00:00Z", CoinSymbol: "ETH", IsBuy: false, SizeETH: 1.5, Price: 2400, Profit: float(150)},
	})
	require.Equal(t, 3, u.NumberOfTrades)
	require.NoError(t, repo.Save(ctx, u))
	assert.False(t, u.ID.IsZero())

	got, err := repo.Get(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, u, got)

	empty := models.SummarizeTrades("0xempty", nil)
	require.NoError(t, repo.Save(ctx, empty))
	got, err = repo.Get(ctx, "0xempty")
	require.NoError(t, err)
	assert.Empty(t, got.Trades)
}

func TestTraderUpdateRepository_TradeWithoutProfit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Database().Collection(TraderUpdateCollection).InsertOne(ctx, bson.D{
		{Key: "number_of_trades", Value: int32(1)},
		{Key: "traded_eth", Value: 2.0},
		{Key: "average_trade_size", Value: 2.0},
		{Key: "trades", Value: bson.A{bson.D{
			{Key: "timestamp", Value: "2024-01-01T00:00:00Z"},
			{Key: "coin_symbol", Value: "ETH"},
			{Key: "is_buy", Value: true},
			{Key: "size_eth", Value: 2.0},
			{Key: "price", Value: 2300.0},
		}}},
		{Key: "trader_address", Value: "0xnoprofit"},
		{Key: "sum_profit", Value: 0.0},
	})
	require.NoError(t, err)

	got, err := s.TraderUpdates().Get(ctx, "0xnoprofit")
	require.NoError(t, err)
	require.Len(t, got.Trades, 1)
	assert.Nil(t, got.Trades[0].Profit)
}

func TestTraderUpdateRepository_LastWriteWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	repo := s.TraderUpdates()

	first := sampleUpdate("0xabc")
	require.NoError(t, repo.Save(ctx, first))

	second := models.SummarizeTrades("0xabc", nil)
	require.NoError(t, repo.Save(ctx, second))
	assert.Equal(t, first.ID, second.ID)

	got, err := repo.Get(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, 0, got.NumberOfTrades)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestTraderUpdateRepository_ConcurrentSaves(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	repo := s.TraderUpdates()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u := models.SummarizeTrades("0xrace", []models.Trade{
				{Timestamp: fmt.Sprintf("2024-01-%02dT00:00:00Z", i+1), CoinSymbol: "ETH", SizeETH: float64(i + 1), Price: 2000, Profit: float(1)},
			})
			errs <- repo.Save(ctx, u)
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		// a racing upsert may lose on the unique index; it is never silently merged
		if err != nil {
			assert.True(t, apperrors.IsCategory(err, apperrors.CategoryConstraintViolation), err.Error())
		}
	}

	got, err := repo.Get(ctx, "0xrace")
	require.NoError(t, err)
	assert.Equal(t, 1, got.NumberOfTrades)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestTraderUpdateRepository_ListTopByProfit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	repo := s.TraderUpdates()

	for addr, profit := range map[string]float64{"0xa": 10, "0xb": -5, "0xc": 40} {
		u := models.SummarizeTrades(addr, []models.Trade{
			{Timestamp: "2024-01-01T00:00:00Z", CoinSymbol: "ETH", SizeETH: 1, Price: 2000, Profit: float(profit)},
		})
		require.NoError(t, repo.Save(ctx, u))
	}

	top, err := repo.ListTopByProfit(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "0xc", top[0].TraderAddress)
	assert.Equal(t, "0xa", top[1].TraderAddress)

	all, err := repo.ListTopByProfit(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
