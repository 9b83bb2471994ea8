package docstore

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TraderUpdateCollection holds models.TraderUpdate documents
const TraderUpdateCollection = "TraderUpdate"

// Shape is the registered form of a document collection: a $jsonSchema validator
// plus the indexes the collection must carry.
type Shape struct {
	Collection string
	Validator  bson.D
	Indexes    []mongo.IndexModel
}

// TraderUpdateShape returns the shape of the TraderUpdate collection
func TraderUpdateShape() Shape {
	trade := bson.D{
		{Key: "bsonType", Value: "object"},
		// profit may be absent or null for unrealized trades
		{Key: "required", Value: bson.A{"timestamp", "coin_symbol", "is_buy", "size_eth", "price"}},
		{Key: "properties", Value: bson.D{
			{Key: "timestamp", Value: bson.D{{Key: "bsonType", Value: "string"}}},
			{Key: "coin_symbol", Value: bson.D{{Key: "bsonType", Value: "string"}}},
			{Key: "is_buy", Value: bson.D{{Key: "bsonType", Value: "bool"}}},
			{Key: "size_eth", Value: bson.D{{Key: "bsonType", Value: "double"}}},
			{Key: "price", Value: bson.D{{Key: "bsonType", Value: "double"}}},
			{Key: "profit", Value: bson.D{{Key: "bsonType", Value: bson.A{"double", "null"}}}},
		}},
	}

	return Shape{
		Collection: TraderUpdateCollection,
		Validator: bson.D{{Key: "$jsonSchema", Value: bson.D{
			{Key: "bsonType", Value: "object"},
			{Key: "required", Value: bson.A{
				"number_of_trades", "traded_eth", "average_trade_size", "trades", "trader_address", "sum_profit",
			}},
			{Key: "properties", Value: bson.D{
				{Key: "number_of_trades", Value: bson.D{{Key: "bsonType", Value: bson.A{"int", "long"}}}},
				{Key: "traded_eth", Value: bson.D{{Key: "bsonType", Value: "double"}}},
				{Key: "average_trade_size", Value: bson.D{{Key: "bsonType", Value: "double"}}},
				{Key: "trades", Value: bson.D{{Key: "bsonType", Value: "array"}, {Key: "items", Value: trade}}},
				{Key: "trader_address", Value: bson.D{{Key: "bsonType", Value: "string"}}},
				{Key: "sum_profit", Value: bson.D{{Key: "bsonType", Value: "double"}}},
			}},
		}}},
		Indexes: []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "trader_address", Value: 1}},
				Options: options.Index().SetName("trader_address_unique").SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "sum_profit", Value: -1}},
				Options: options.Index().SetName("sum_profit_desc"),
			},
		},
	}
}

// DefaultShapes returns every shape the document store registers at startup
func DefaultShapes() []Shape {
	return []Shape{TraderUpdateShape()}
}
