package models

import (
	"fmt"
	"strings"

	apperrors "github.com/defi-common/internal/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Trade is one trade inside a TraderUpdate document
type Trade struct {
	Timestamp  string   `bson:"timestamp" json:"timestamp"`
	CoinSymbol string   `bson:"coin_symbol" json:"coinSymbol"`
	IsBuy      bool     `bson:"is_buy" json:"isBuy"`
	SizeETH    float64  `bson:"size_eth" json:"sizeEth"`
	Price      float64  `bson:"price" json:"price"`
	Profit     *float64 `bson:"profit" json:"profit"` // nil for unrealized trades
}

// TraderUpdate is a trader's activity summary, stored whole in the document store
type TraderUpdate struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	NumberOfTrades   int                `bson:"number_of_trades" json:"numberOfTrades"`
	TradedETH        float64            `bson:"traded_eth" json:"tradedEth"`
	AverageTradeSize float64            `bson:"average_trade_size" json:"averageTradeSize"`
	Trades           []Trade            `bson:"trades" json:"trades"`
	TraderAddress    string             `bson:"trader_address" json:"traderAddress"`
	SumProfit        float64            `bson:"sum_profit" json:"sumProfit"`
}

// Validate checks that the aggregate fields are consistent with the trade list.
// The store does not call it; writers should.
func (u *TraderUpdate) Validate() error {
	if strings.TrimSpace(u.TraderAddress) == "" {
		return apperrors.NewInvalidParameterError("trader_address", "must not be empty")
	}
	if u.NumberOfTrades != len(u.Trades) {
		return apperrors.NewInvalidParameterError("number_of_trades",
			fmt.Sprintf("is %d but %d trades are present", u.NumberOfTrades, len(u.Trades)))
	}
	for i, tr := range u.Trades {
		if tr.CoinSymbol == "" {
			return apperrors.NewInvalidParameterError(fmt.Sprintf("trades[%d].coin_symbol", i), "must not be empty")
		}
		if tr.SizeETH < 0 {
			return apperrors.NewInvalidParameterError(fmt.Sprintf("trades[%d].size_eth", i), "must not be negative")
		}
	}
	return nil
}

// SummarizeTrades builds a TraderUpdate whose aggregates are derived from trades.
// Trades without a realized profit do not contribute to SumProfit.
func SummarizeTrades(traderAddress string, trades []Trade) *TraderUpdate {
	u := &TraderUpdate{
		TraderAddress:  traderAddress,
		NumberOfTrades: len(trades),
		Trades:         make([]Trade, len(trades)),
	}
	copy(u.Trades, trades)

	for _, tr := range trades {
		u.TradedETH += tr.SizeETH
		if tr.Profit != nil {
			u.SumProfit += *tr.Profit
		}
	}
	if len(trades) > 0 {
		u.AverageTradeSize = u.TradedETH / float64(len(trades))
	}
	return u
}
