package mysql

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/ruslano69/partarch/pkg/core/schema"
)

func TestDescribeView(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	a := NewAdapter()
	a.UseDB(db, "")

	mock.ExpectQuery(`FROM information_schema.COLUMNS`).
		WithArgs("partarch_abc_orders").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "DATA_TYPE", "NUMERIC_PRECISION", "NUMERIC_SCALE"}).
			AddRow("id", "bigint", 19, 0).
			AddRow("amount", "decimal", 12, 2).
			AddRow("rate", "double", 22, nil).
			AddRow("created", "date", nil, nil).
			AddRow("updated", "datetime", nil, nil).
			AddRow("note", "varchar", nil, nil))

	columns, err := a.DescribeView(context.Background(), "partarch_abc_orders")
	if err != nil {
		t.Fatalf("DescribeView: %v", err)
	}

	want := []schema.ColumnType{
		schema.Numeric(19, 0),
		schema.Numeric(12, 2),
		schema.Numeric(22, schema.ScaleUnconstrained),
		schema.Date(),
		schema.Timestamp(),
		schema.Text(),
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
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	a := NewAdapter()
	a.UseDB(db, "")

	mock.ExpectExec("CREATE VIEW `partarch_abc_orders` AS SELECT 1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DROP VIEW `partarch_abc_orders`").
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

func TestColumnType(t *testing.T) {
	p := func(v int) *int { return &v }
	tests := []struct {
		dataType         string
		precision, scale *int
		want             schema.ColumnType
	}{
		{"int", p(10), p(0), schema.Numeric(10, 0)},
		{"year", nil, nil, schema.Numeric(4, 0)},
		{"float", p(12), nil, schema.Numeric(12, schema.ScaleUnconstrained)},
		{"float", p(7), p(3), schema.Numeric(7, 3)},
		{"timestamp", nil, nil, schema.Timestamp()},
		{"json", nil, nil, schema.Text()},
	}
	for _, tt := range tests {
		if got := (dialect{}).ColumnType(tt.dataType, tt.precision, tt.scale); got != tt.want {
			t.Errorf("ColumnType(%q) = %v, want %v", tt.dataType, got, tt.want)
		}
	}
}

func TestIsPermanentConnectError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"access denied", &mysqldrv.MySQLError{Number: 1045, Message: "Access denied for user"}, true},
		{"unknown database", fmt.Errorf("failed to ping database: %w", &mysqldrv.MySQLError{Number: 1049}), true},
		{"db access denied", &mysqldrv.MySQLError{Number: 1044}, true},
		{"too many connections", &mysqldrv.MySQLError{Number: 1040}, false},
		{"network", errors.New("dial tcp: connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (dialect{}).IsPermanentConnectError(tt.err); got != tt.want {
				t.Errorf("IsPermanentConnectError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
