package postgres

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/listing-crawler/internal/crawler"
)

var fixedNow = time.Unix(1700000000, 0).UTC()

func newRecord(t *testing.T, name, price, href string) crawler.Record {
	t.Helper()
	rec, err := crawler.NewRecord(name, price, href, &url.URL{Scheme: "https", Host: "www.example.com", Path: "/"})
	require.NoError(t, err)
	return rec
}

func TestAppendInsertsPageInTransaction(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "records", "run-1", func() time.Time { return fixedNow })
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO records").
		WithArgs("run-1", 4, 0, "Halo", 1500, "https://www.example.com/item/1", fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO records").
		WithArgs("run-1", 4, 1, "Doom", 700, "https://www.example.com/item/2", fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err = store.Append(context.Background(), 4, []crawler.Record{
		newRecord(t, "Halo", "1 500₴", "/item/1"),
		newRecord(t, "Doom", "700₴", "/item/2"),
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendRollsBackOnInsertError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "", "run-1", func() time.Time { return fixedNow })
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO listing_records").
		WithArgs("run-1", 1, 0, "Halo", 10, "https://www.example.com/a", fixedNow).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = store.Append(context.Background(), 1, []crawler.Record{newRecord(t, "Halo", "10₴", "/a")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendBeginError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "records", "", nil)
	require.NoError(t, err)

	mock.ExpectBegin().WillReturnError(errors.New("no connection"))

	err = store.Append(context.Background(), 1, []crawler.Record{newRecord(t, "Halo", "10₴", "/a")})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendEmptyIsNoop(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "records", "", nil)
	require.NoError(t, err)

	require.NoError(t, store.Append(context.Background(), 1, nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "records", "", nil)
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS records").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	require.NoError(t, store.EnsureTable(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordStoreValidation(t *testing.T) {
	t.Parallel()

	_, err := NewRecordStoreWithPool(nil, "records", "", nil)
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	_, err = NewRecordStoreWithPool(mock, "records; DROP TABLE x", "", nil)
	require.Error(t, err)

	_, err = NewRecordStore(context.Background(), RecordStoreConfig{})
	require.Error(t, err)
}

func TestNewRecordStoreUsesConfiguredClock(t *testing.T) {
	// The pool connects lazily, so no server is needed while MinConns is zero.
	store, err := NewRecordStore(context.Background(), RecordStoreConfig{
		DSN:   "postgres://crawler@127.0.0.1:1/listings?connect_timeout=1",
		RunID: "run-7",
		Now:   func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, fixedNow, store.now())
	assert.Equal(t, "run-7", store.runID)
	assert.Equal(t, defaultTable, store.table)
}
