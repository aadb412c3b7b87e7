package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/portal-cli/internal/model"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return mock
}

func TestMigratePostgres(t *testing.T) {
	mock := newMockPool(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS cache_entries`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, MigratePostgres(context.Background(), mock))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBackend_LoadSkipsBadEntries(t *testing.T) {
	mock := newMockPool(t)
	mock.ExpectQuery(`SELECT key, value FROM cache_entries WHERE namespace = \$1`).
		WithArgs("2024:careers").
		WillReturnRows(pgxmock.NewRows([]string{"key", "value"}).
			AddRow("Acme Corp careers site", `{"offers":"Yes","link":"https://careers.acme.com","title":"Careers","score":130,"reason":["keyword_match"]}`).
			AddRow("Broken careers site", `{not json`))

	c := Open[model.Decision](context.Background(), "careers", NewPostgresBackend(mock, "2024", "careers"))
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, 1, c.Len())
	d, ok := c.Get("Acme Corp careers site")
	require.True(t, ok)
	assert.Equal(t, model.OffersYes, d.Offers)
	assert.Equal(t, 130, d.Score)
}

func TestPostgresBackend_LoadErrorStartsEmpty(t *testing.T) {
	mock := newMockPool(t)
	mock.ExpectQuery(`SELECT key, value FROM cache_entries`).
		WithArgs("content").
		WillReturnError(errors.New("relation does not exist"))

	c := Open[string](context.Background(), "content", NewPostgresBackend(mock, "", "content"))
	assert.Zero(t, c.Len())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBackend_SaveUpsertsInKeyOrder(t *testing.T) {
	mock := newMockPool(t)
	b := NewPostgresBackend(mock, "2024", "content")
	assert.Equal(t, "postgres:2024:content", b.Describe())

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO cache_entries .* ON CONFLICT \(namespace, key\) DO UPDATE`).
		WithArgs("2024:content", "https://a.example", `"alpha"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO cache_entries .* ON CONFLICT \(namespace, key\) DO UPDATE`).
		WithArgs("2024:content", "https://b.example", `""`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := b.Save(context.Background(), map[string][]byte{
		"https://b.example": []byte(`""`),
		"https://a.example": []byte(`"alpha"`),
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBackend_FailedFlushStaysDirty(t *testing.T) {
	mock := newMockPool(t)
	mock.ExpectQuery(`SELECT key, value FROM cache_entries`).
		WithArgs("2024:careers").
		WillReturnRows(pgxmock.NewRows([]string{"key", "value"}))

	ctx := context.Background()
	c := Open[model.Decision](ctx, "careers", NewPostgresBackend(mock, "2024", "careers"))
	c.Put("Initech careers site", model.NoDecision(0, model.ReasonNoSearchResults))

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO cache_entries`).
		WithArgs("2024:careers", "Initech careers site", pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()
	require.Error(t, c.Flush(ctx))

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO cache_entries`).
		WithArgs("2024:careers", "Initech careers site", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	require.NoError(t, c.Flush(ctx))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFactory_PostgresUnavailable(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	f := NewFactory(ctx, Options{Driver: DriverPostgres, PostgresURL: "postgres://portal@127.0.0.1:1/portal?connect_timeout=1", Dir: dir})
	assert.Equal(t, DriverJSON, f.Driver())
	require.NoError(t, f.Close())

	f = NewFactory(ctx, Options{Driver: DriverPostgres, PostgresURL: "not a url ::", Dir: dir})
	assert.Equal(t, DriverJSON, f.Driver())
}
