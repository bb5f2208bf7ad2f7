package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odanko/outagebot/internal/address"
	"github.com/odanko/outagebot/internal/store"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	s, err := NewWithPool(mock, "subscriptions")
	require.NoError(t, err)
	return s, mock
}

func TestNewWithPoolValidatesTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(mock, "subscriptions; DROP TABLE users")
	require.Error(t, err)

	_, err = NewWithPool(nil, "subscriptions")
	require.Error(t, err)
}

func TestList(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT subscriber_id, street, house").
		WillReturnRows(pgxmock.NewRows([]string{
			"subscriber_id", "street", "house", "last_marker", "last_update_timestamp", "last_error",
		}).
			AddRow("100", "вул. Борщагівська", "145", "updateTimestamp:10:00", "10:00", "").
			AddRow("200", "вул. Саксаганського", "7", "", "", "boom"))

	subs, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, store.Subscription{
		SubscriberID:        "100",
		Address:             address.Address{Street: "вул. Борщагівська", House: "145"},
		LastMarker:          "updateTimestamp:10:00",
		LastUpdateTimestamp: "10:00",
	}, subs[0])
	assert.Equal(t, "boom", subs[1].LastError)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetFound(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT subscriber_id, street, house").
		WithArgs("100").
		WillReturnRows(pgxmock.NewRows([]string{
			"subscriber_id", "street", "house", "last_marker", "last_update_timestamp", "last_error",
		}).AddRow("100", "вул. Борщагівська", "145", "m1", "10:00", ""))

	sub, ok, err := s.Get(context.Background(), "100")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "m1", sub.LastMarker)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMissing(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT subscriber_id, street, house").
		WithArgs("404").
		WillReturnRows(pgxmock.NewRows([]string{
			"subscriber_id", "street", "house", "last_marker", "last_update_timestamp", "last_error",
		}))

	_, ok, err := s.Get(context.Background(), "404")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPutUpserts(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO subscriptions").
		WithArgs("100", "вул. Борщагівська", "145", "m2", "10:05", "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.Put(context.Background(), store.Subscription{
		SubscriberID:        "100",
		Address:             address.Address{Street: "вул. Борщагівська", House: "145"},
		LastMarker:          "m2",
		LastUpdateTimestamp: "10:05",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPutSurfacesError(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO subscriptions").
		WithArgs("100", "вул. Борщагівська", "145", "", "", "").
		WillReturnError(errors.New("connection reset"))

	err := s.Put(context.Background(), store.Subscription{
		SubscriberID: "100",
		Address:      address.Address{Street: "вул. Борщагівська", House: "145"},
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	mock.ExpectExec("DELETE FROM subscriptions").
		WithArgs("100").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, s.Delete(context.Background(), "100"))
	require.NoError(t, mock.ExpectationsWereMet())
}
