package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/pricefetch/pkg/crawler"
)

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

func TestWriteInsertsRowsInOneTransaction(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "tyre_records")
	require.NoError(t, err)
	now := time.Unix(1700000000, 0).UTC()
	store.clock = fixedClock(now)

	records := []crawler.Record{
		{"source": "pneus", "term": "205/55", "price": 89.9},
		{"source": "pneus", "term": "205/55", "price": nil},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO tyre_records").
		WithArgs(pgxmock.AnyArg(), now, "pneus", "205/55", []byte(`{"price":89.9,"source":"pneus","term":"205/55"}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO tyre_records").
		WithArgs(pgxmock.AnyArg(), now, "pneus", "205/55", []byte(`{"price":null,"source":"pneus","term":"205/55"}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, store.Write(context.Background(), records))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteRollsBackOnFailure(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "")
	require.NoError(t, err)

	errConstraint := errors.New("constraint violation")
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO records").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "s", "", pgxmock.AnyArg()).
		WillReturnError(errConstraint)
	mock.ExpectRollback()

	err = store.Write(context.Background(), []crawler.Record{{"source": "s"}, {"source": "never-sent"}})
	require.ErrorIs(t, err, errConstraint)
	require.ErrorContains(t, err, "insert record")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteEmptyBatchIsNoop(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "records")
	require.NoError(t, err)
	require.NoError(t, store.Write(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRecordStoreValidation(t *testing.T) {
	t.Parallel()

	_, err := NewRecordStoreWithPool(nil, "records")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	_, err = NewRecordStoreWithPool(mock, "records; drop table x")
	require.Error(t, err)

	_, err = NewRecordStore(context.Background(), RecordStoreConfig{})
	require.Error(t, err)
}
