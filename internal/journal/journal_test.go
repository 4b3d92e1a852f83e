package journal

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fundrate/funding-arb/pkg/types"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func orderInfo(id string, side types.Side, avgPrice string, tradeTime time.Time) types.OrderInfo {
	return types.OrderInfo{
		Order:     types.Order{OrderID: id, Status: types.StatusFilled},
		Side:      side,
		Qty:       d("0.049"),
		AvgPrice:  d(avgPrice),
		QuoteQty:  d(avgPrice).Mul(d("0.049")),
		Fee:       d("0.4"),
		OrderTime: tradeTime,
	}
}

func testRecord(entry, exit time.Time) TradeRecord {
	return TradeRecord{
		Ticker:   "BTCUSDT",
		Leverage: d("5"),
		PnL:      d("1.25"),
		Legs: [2]LegRecord{
			{
				Venue:       "Binance",
				Side:        types.Short,
				FundingRate: d("0.20"),
				FundingFee:  d("1.9"),
				Open:        orderInfo("b-1", types.Sell, "20010", entry),
				Close:       orderInfo("b-2", types.Buy, "19970", exit),
			},
			{
				Venue:       "ByBit",
				Side:        types.Long,
				FundingRate: d("-0.05"),
				FundingFee:  d("-0.5"),
				Open:        orderInfo("y-1", types.Buy, "20000", entry),
				Close:       orderInfo("y-2", types.Sell, "20050", exit),
			},
		},
		EntryTime: entry,
		CloseTime: exit,
	}
}

func expectOrderInsert(mock sqlmock.Sqlmock, venue string, info types.OrderInfo, leverage string, id int64) {
	mock.ExpectQuery(insertOrderQuery).
		WithArgs(
			venue,
			info.OrderID,
			string(info.Side),
			info.Qty.String(),
			leverage,
			info.AvgPrice.String(),
			info.Fee.String(),
			info.QuoteQty.String(),
			info.OrderTime,
		).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id))
}

func TestPostgres_InsertTradeWritesOrdersPositionsTrade(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	entry := time.Date(2023, 6, 1, 7, 59, 0, 0, time.UTC)
	exit := entry.Add(30 * time.Minute)
	rec := testRecord(entry, exit)

	mock.ExpectBegin()
	expectOrderInsert(mock, "Binance", rec.Legs[0].Open, "5", 1)
	expectOrderInsert(mock, "Binance", rec.Legs[0].Close, "5", 2)
	expectOrderInsert(mock, "ByBit", rec.Legs[1].Open, "5", 3)
	expectOrderInsert(mock, "ByBit", rec.Legs[1].Close, "5", 4)
	mock.ExpectQuery(insertPositionQuery).
		WithArgs("SHORT", int64(1), int64(2), "0.2", "1.9").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))
	mock.ExpectQuery(insertPositionQuery).
		WithArgs("LONG", int64(3), int64(4), "-0.05", "-0.5").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectQuery(insertTradeQuery).
		WithArgs("BTCUSDT", int64(10), int64(11), "1.25", entry, exit).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(100))
	mock.ExpectCommit()

	journal := NewPostgresWithDB(db, zap.NewNop())
	err = journal.InsertTrade(context.Background(), rec)
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_InsertTradeRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	entry := time.Date(2023, 6, 1, 7, 59, 0, 0, time.UTC)
	rec := testRecord(entry, entry.Add(30*time.Minute))

	mock.ExpectBegin()
	expectOrderInsert(mock, "Binance", rec.Legs[0].Open, "5", 1)
	expectOrderInsert(mock, "Binance", rec.Legs[0].Close, "5", 2)
	expectOrderInsert(mock, "ByBit", rec.Legs[1].Open, "5", 3)
	expectOrderInsert(mock, "ByBit", rec.Legs[1].Close, "5", 4)
	mock.ExpectQuery(insertPositionQuery).
		WithArgs("SHORT", int64(1), int64(2), "0.2", "1.9").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	journal := NewPostgresWithDB(db, zap.NewNop())
	err = journal.InsertTrade(context.Background(), rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert position")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewPostgres_CreatesSchemaOnConnect(t *testing.T) {
	db, mock, err := sqlmock.NewWithDSN("journal-bootstrap", sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS orders").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS position").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS trades").WillReturnResult(sqlmock.NewResult(0, 0))

	journal, err := NewPostgres(context.Background(), PostgresConfig{
		ConnectionString: "journal-bootstrap",
		DriverName:       "sqlmock",
		Logger:           zap.NewNop(),
	})
	require.NoError(t, err)
	defer journal.Close()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewPostgres_FailsWhenSchemaCannotBeCreated(t *testing.T) {
	db, mock, err := sqlmock.NewWithDSN("journal-bootstrap-broken", sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS orders").WillReturnError(assert.AnError)

	_, err = NewPostgres(context.Background(), PostgresConfig{
		ConnectionString: "journal-bootstrap-broken",
		DriverName:       "sqlmock",
		Logger:           zap.NewNop(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create journal schema")
}

func TestPostgres_EnsureSchemaRunsAllStatements(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS orders").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS position").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS trades").WillReturnResult(sqlmock.NewResult(0, 0))

	journal := NewPostgresWithDB(db, zap.NewNop())
	require.NoError(t, journal.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
