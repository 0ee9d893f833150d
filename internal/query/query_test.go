package query

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/pgtool/internal/errs"
	"github.com/leapstack-labs/pgtool/internal/session"
	"github.com/leapstack-labs/pgtool/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(t *testing.T, autocommit bool) (*Executor, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := testutil.NewMockDB(t)
	s, err := session.New(context.Background(), db, session.Options{
		Autocommit: autocommit,
		Logger:     testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return NewExecutor(s), mock
}

func TestRun_FetchWithColumns(t *testing.T) {
	e, mock := newTestExecutor(t, false)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, name, note FROM users WHERE id > $1").
		WithArgs(int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "note"}).
			AddRow(int64(1), []byte("alice"), nil).
			AddRow(int64(2), "bob", "hi"))
	mock.ExpectRollback()
	mock.ExpectClose()

	res, err := e.Run(ctx, "SELECT id, name, note FROM users WHERE id > $1", []any{int64(0)}, true)
	require.NoError(t, err)

	assert.False(t, res.NoRows())
	assert.Equal(t, []string{"id", "name", "note"}, res.Columns)
	assert.Equal(t, [][]any{
		{int64(1), "alice", nil},
		{int64(2), "bob", "hi"},
	}, res.Rows)
	assert.True(t, e.Session().InTransaction(), "reads leave the transaction open")
}

func TestRun_ZeroRowsIsNotNoRows(t *testing.T) {
	e, mock := newTestExecutor(t, false)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM users WHERE false").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()
	mock.ExpectClose()

	res, err := e.Run(context.Background(), "SELECT id FROM users WHERE false", nil, true)
	require.NoError(t, err)
	assert.False(t, res.NoRows())
	assert.Equal(t, []string{"id"}, res.Columns)
	assert.NotNil(t, res.Rows)
	assert.Empty(t, res.Rows)
}

func TestRun_FetchWithoutColumnsCommits(t *testing.T) {
	e, mock := newTestExecutor(t, false)

	mock.ExpectBegin()
	mock.ExpectQuery("CREATE TABLE t (id int)").WillReturnRows(sqlmock.NewRows(nil))
	mock.ExpectCommit()
	mock.ExpectClose()

	res, err := e.Run(context.Background(), "CREATE TABLE t (id int)", nil, true)
	require.NoError(t, err)
	assert.True(t, res.NoRows())
	assert.Nil(t, res.Rows)
	assert.False(t, e.Session().InTransaction())
}

func TestRun_NoFetch(t *testing.T) {
	e, mock := newTestExecutor(t, false)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users SET active = $1").
		WithArgs(true).
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectCommit()
	mock.ExpectClose()

	res, err := e.Run(context.Background(), "UPDATE users SET active = $1", []any{true}, false)
	require.NoError(t, err)
	assert.True(t, res.NoRows())
	assert.Equal(t, int64(5), res.RowsAffected)
}

func TestRun_NoFetchUnknownCount(t *testing.T) {
	e, mock := newTestExecutor(t, true)

	mock.ExpectExec("VACUUM").
		WillReturnResult(sqlmock.NewErrorResult(errors.New("not supported")))
	mock.ExpectClose()

	res, err := e.Run(context.Background(), "VACUUM", nil, false)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), res.RowsAffected)
}

func TestRun_ErrorRollsBack(t *testing.T) {
	e, mock := newTestExecutor(t, false)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT * FROM missing").WillReturnError(errors.New(`relation "missing" does not exist`))
	mock.ExpectRollback()
	mock.ExpectClose()

	_, err := e.Run(context.Background(), "SELECT * FROM missing", nil, true)
	require.Error(t, err)
	assert.True(t, errs.IsQuery(err))
	assert.Contains(t, err.Error(), "does not exist")
	assert.False(t, e.Session().InTransaction())
}

func TestRunScript(t *testing.T) {
	e, mock := newTestExecutor(t, false)
	script := "CREATE TABLE a (id int);\nINSERT INTO a VALUES (1);"

	mock.ExpectBegin()
	mock.ExpectExec(script).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectClose()

	require.NoError(t, e.RunScript(context.Background(), script))
	assert.False(t, e.Session().InTransaction())
}

func TestStream_Batches(t *testing.T) {
	e, mock := newTestExecutor(t, false)
	ctx := context.Background()

	rows := sqlmock.NewRows([]string{"n"})
	for i := 1; i <= 5; i++ {
		rows.AddRow(int64(i))
	}
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT n FROM numbers").WillReturnRows(rows).RowsWillBeClosed()
	mock.ExpectRollback()
	mock.ExpectClose()

	st, err := e.Stream(ctx, "SELECT n FROM numbers", nil, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"n"}, st.Columns())
	assert.Equal(t, 2, st.ChunkSize())

	var got []int64
	for st.Next() {
		assert.LessOrEqual(t, len(st.batch), 2, "batch must stay within the chunk size")
		got = append(got, st.Row()[0].(int64))
	}
	require.NoError(t, st.Err())
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, got)

	// single pass
	assert.False(t, st.Next())
	assert.Nil(t, st.Row())

	// exhausting the stream released the cursor
	c, err := e.Session().Cursor()
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.NoError(t, st.Close())
}

func TestStream_ExactMultipleOfChunk(t *testing.T) {
	e, mock := newTestExecutor(t, true)

	mock.ExpectQuery("SELECT n FROM numbers").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(int64(1)).AddRow(int64(2)))
	mock.ExpectClose()

	st, err := e.Stream(context.Background(), "SELECT n FROM numbers", nil, 2)
	require.NoError(t, err)

	count := 0
	for st.Next() {
		count++
	}
	require.NoError(t, st.Err())
	assert.Equal(t, 2, count)
}

func TestStream_DefaultChunkSize(t *testing.T) {
	e, mock := newTestExecutor(t, true)

	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"x"}).AddRow(int64(1)))
	mock.ExpectClose()

	st, err := e.Stream(context.Background(), "SELECT 1", nil, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultChunkSize, st.ChunkSize())
	require.NoError(t, st.Close())
}

func TestStream_NoColumns(t *testing.T) {
	e, mock := newTestExecutor(t, true)

	mock.ExpectQuery("DELETE FROM t").WillReturnRows(sqlmock.NewRows(nil))
	mock.ExpectClose()

	st, err := e.Stream(context.Background(), "DELETE FROM t", nil, 10)
	require.NoError(t, err)
	assert.Nil(t, st.Columns())
	assert.False(t, st.Next())
	require.NoError(t, st.Close())

	// cursor already released
	c, err := e.Session().Cursor()
	require.NoError(t, err)
	require.NoError(t, c.Close())
}

func TestStream_EarlyClose(t *testing.T) {
	e, mock := newTestExecutor(t, true)

	mock.ExpectQuery("SELECT n FROM numbers").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(int64(1)).AddRow(int64(2)).AddRow(int64(3))).
		RowsWillBeClosed()
	mock.ExpectClose()

	st, err := e.Stream(context.Background(), "SELECT n FROM numbers", nil, 1)
	require.NoError(t, err)
	require.True(t, st.Next())
	require.NoError(t, st.Close())
	require.NoError(t, st.Close())
	assert.False(t, st.Next())

	c, err := e.Session().Cursor()
	require.NoError(t, err)
	require.NoError(t, c.Close())
}

func TestStream_RowErrorRollsBack(t *testing.T) {
	e, mock := newTestExecutor(t, false)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT n FROM numbers").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).
			AddRow(int64(1)).
			AddRow(int64(2)).
			RowError(1, errors.New("connection reset")))
	mock.ExpectRollback()
	mock.ExpectClose()

	st, err := e.Stream(context.Background(), "SELECT n FROM numbers", nil, 10)
	require.NoError(t, err)

	count := 0
	for st.Next() {
		count++
	}
	require.Error(t, st.Err())
	assert.Equal(t, 1, count)
	assert.False(t, e.Session().InTransaction())
}

func TestStream_SecondCursorRejected(t *testing.T) {
	e, mock := newTestExecutor(t, true)

	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"x"}).AddRow(int64(1)))
	mock.ExpectClose()

	st, err := e.Stream(context.Background(), "SELECT 1", nil, 1)
	require.NoError(t, err)

	_, err = e.Run(context.Background(), "SELECT 2", nil, true)
	require.Error(t, err)
	assert.True(t, errs.IsQuery(err))
	require.NoError(t, st.Close())
}

func TestParseLiteral(t *testing.T) {
	tests := []struct {
		input    string
		expected any
	}{
		{"42", int64(42)},
		{"-7", int64(-7)},
		{"0x1F", int64(31)},
		{"0o17", int64(15)},
		{"0", int64(0)},
		{"3.14", 3.14},
		{"1e3", float64(1000)},
		{"-.5", -0.5},
		{"0123", "0123"},
		{"08", "08"},
		{"007", "007"},
		{"01234", "01234"},
		{".inf", ".inf"},
		{"-.inf", "-.inf"},
		{".nan", ".nan"},
		{"1_000", "1_000"},
		{"true", true},
		{"True", true},
		{"FALSE", false},
		{"null", nil},
		{"~", nil},
		{"None", nil},
		{"'quoted'", "quoted"},
		{`"42"`, "42"},
		{"[1, 'a', null]", []any{int64(1), "a", nil}},
		{"{a: 1, b: [2]}", map[string]any{"a": int64(1), "b": []any{int64(2)}}},
		{"hello", "hello"},
		{"hello world", "hello world"},
		{"yes", "yes"},
		{"2024-01-15", "2024-01-15"},
		{"2024-01-15T10:00:00Z", "2024-01-15T10:00:00Z"},
		{"key: value", "key: value"},
		{"- item", "- item"},
		{"@handle", "@handle"},
		{"", ""},
		{"[unclosed", "[unclosed"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLiteral(tt.input))
		})
	}
}

func TestParseParams(t *testing.T) {
	assert.Equal(t, []any{int64(1), "abc", nil, true}, ParseParams([]string{"1", "abc", "None", "true"}))
	assert.Empty(t, ParseParams(nil))
}

func TestParseTableRef(t *testing.T) {
	tests := []struct {
		input     string
		expected  TableRef
		sanitized string
		wantErr   bool
	}{
		{input: "users", expected: TableRef{"public", "users"}, sanitized: `"public"."users"`},
		{input: "sales.orders", expected: TableRef{"sales", "orders"}, sanitized: `"sales"."orders"`},
		{input: "a.b.c", expected: TableRef{"a", "b.c"}, sanitized: `"a"."b.c"`},
		{input: `we"ird`, expected: TableRef{"public", `we"ird`}, sanitized: `"public"."we""ird"`},
		{input: "", wantErr: true},
		{input: ".users", wantErr: true},
		{input: "sales.", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			ref, err := ParseTableRef(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errs.IsInvalidInput(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ref)
			assert.Equal(t, tt.sanitized, ref.Sanitize())
		})
	}
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"order"`, QuoteIdentifier("order"))
	assert.Equal(t, `"a""b"`, QuoteIdentifier(`a"b`))
}
