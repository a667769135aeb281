package mssql

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	mssqldb "github.com/denisenkom/go-mssqldb"
	"github.com/ruslano69/partarch/pkg/core/schema"
)

func newMockAdapter(t *testing.T, schemaName string) (*Adapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	a := NewAdapter()
	a.UseDB(db, schemaName)
	return a, mock
}

func TestDescribeView(t *testing.T) {
	a, mock := newMockAdapter(t, "archive")

	mock.ExpectQuery(`FROM INFORMATION_SCHEMA.COLUMNS`).
		WithArgs("archive", "partarch_abc_orders").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "DATA_TYPE", "NUMERIC_PRECISION", "NUMERIC_SCALE"}).
			AddRow("id", "int", 10, 0).
			AddRow("amount", "money", 19, 4).
			AddRow("flag", "bit", nil, nil).
			AddRow("rate", "float", 53, nil).
			AddRow("created", "date", nil, nil).
			AddRow("updated", "datetime2", nil, nil).
			AddRow("guid", "uniqueidentifier", nil, nil))

	columns, err := a.DescribeView(context.Background(), "partarch_abc_orders")
	if err != nil {
		t.Fatalf("DescribeView: %v", err)
	}

	want := []schema.ColumnType{
		schema.Numeric(10, 0),
		schema.Numeric(19, 4),
		schema.Numeric(1, 0),
		schema.Numeric(53, schema.ScaleUnconstrained),
		schema.Date(),
		schema.Timestamp(),
		schema.Text(),
	}
	if len(columns) != len(want) {
		t.Fatalf("got %d columns, want %d", len(columns), len(want))
	}
	for i, c := range columns {
		if c.Type != want[i] {
			t.Errorf("column %s: got %v, want %v", c.Name, c.Type, want[i])
		}
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestCreateAndDropView(t *testing.T) {
	a, mock := newMockAdapter(t, DefaultSchema)

	mock.ExpectExec(regexp.QuoteMeta("CREATE VIEW [dbo].[partarch_abc_orders] AS SELECT 1")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DROP VIEW [dbo].[partarch_abc_orders]")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	if err := a.CreateView(ctx, "partarch_abc_orders", "SELECT 1"); err != nil {
		t.Fatalf("CreateView: %v", err)
	}
	if err := a.DropView(ctx, "partarch_abc_orders"); err != nil {
		t.Fatalf("DropView: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestQuery_NormalizesValues(t *testing.T) {
	a, mock := newMockAdapter(t, DefaultSchema)

	clock := time.Date(1, 1, 1, 12, 34, 56, 0, time.UTC)
	stamp := time.Date(2024, 1, 5, 10, 11, 12, 0, time.UTC)
	guid := []byte{0xFF, 0x19, 0x96, 0x6F, 0x86, 0x8B, 0x11, 0xD0, 0xB4, 0x2D, 0x00, 0xC0, 0x4F, 0xC9, 0x64, 0xFF}

	rows := sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("t").OfType("TIME", time.Time{}),
		sqlmock.NewColumn("t_frac").OfType("TIME", time.Time{}),
		sqlmock.NewColumn("updated").OfType("DATETIME2", time.Time{}),
		sqlmock.NewColumn("guid").OfType("UNIQUEIDENTIFIER", []byte{}),
		sqlmock.NewColumn("data").OfType("VARBINARY", []byte{}),
	).AddRow(clock, clock.Add(123400*time.Microsecond), stamp, guid, []byte{0x0A, 0xFF})
	mock.ExpectQuery(`SELECT \* FROM`).WillReturnRows(rows)

	result, err := a.Query(context.Background(), "SELECT * FROM [dbo].[v]")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	defer result.Close()

	if !result.Next() {
		t.Fatalf("no row: %v", result.Err())
	}
	values, err := result.Values()
	if err != nil {
		t.Fatalf("Values: %v", err)
	}

	want := []any{"12:34:56", "12:34:56.1234", stamp, "6F9619FF-8B86-D011-B42D-00C04FC964FF", "0AFF"}
	for i := range want {
		if values[i] != want[i] {
			t.Errorf("column %d = %v, want %v", i, values[i], want[i])
		}
	}
}

func TestTimeOfDay(t *testing.T) {
	tests := []struct {
		in   time.Time
		want string
	}{
		{time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC), "00:00:00"},
		{time.Date(1, 1, 1, 23, 59, 59, 0, time.UTC), "23:59:59"},
		{time.Date(1, 1, 1, 8, 5, 3, 500_000_000, time.UTC), "08:05:03.5"},
		{time.Date(1, 1, 1, 8, 5, 3, 1234500, time.UTC), "08:05:03.0012345"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := timeOfDay(tt.in); got != tt.want {
				t.Errorf("timeOfDay(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsPermanentConnectError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"login failed", mssqldb.Error{Number: 18456, Message: "login error: Login failed for user 'sa'."}, true},
		{"cannot open database", fmt.Errorf("failed to ping database: %w", mssqldb.Error{Number: 4060}), true},
		{"deadlock", mssqldb.Error{Number: 1205}, false},
		{"network", errors.New("dial tcp: i/o timeout"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (dialect{}).IsPermanentConnectError(tt.err); got != tt.want {
				t.Errorf("IsPermanentConnectError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
