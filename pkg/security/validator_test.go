package security

import (
	"strings"
	"testing"
)

func TestSQLValidator_Validate(t *testing.T) {
	validator := NewSQLValidator()

	tests := []struct {
		name    string
		sql     string
		wantErr bool
		errMsg  string
	}{
		// Разрешенные шаблоны
		{"simple SELECT", "SELECT * FROM orders WHERE part = '{partition}'", false, ""},
		{"lowercase", "select id, name from users where p = {partition_key}", false, ""},
		{"CTE", "WITH o AS (SELECT * FROM orders) SELECT * FROM o", false, ""},
		{"JOIN", "SELECT u.name, o.total FROM users u JOIN orders o ON u.id = o.user_id", false, ""},
		{"column names containing keywords", "SELECT updated_at, deleted, created_by FROM t", false, ""},
		{"keyword inside string literal", "SELECT * FROM t WHERE note = 'DROP TABLE x; --'", false, ""},
		{"keyword as quoted identifier", `SELECT "delete" FROM t`, false, ""},
		{"bracket identifier", "SELECT [Update] FROM dbo.t", false, ""},
		{"leading whitespace", "\n\t SELECT 1", false, ""},

		// Запрещенные
		{"empty", "   ", true, "empty query"},
		{"INSERT", "INSERT INTO t VALUES (1)", true, "only SELECT and WITH"},
		{"UPDATE", "UPDATE t SET a = 1", true, "only SELECT and WITH"},
		{"terminator", "SELECT * FROM t;", true, "';' is not allowed"},
		{"second statement", "SELECT 1; DROP TABLE t", true, "';' is not allowed"},
		{"line comment", "SELECT * FROM t -- hidden", true, "comments"},
		{"block comment", "SELECT * /* x */ FROM t", true, "comments"},
		{"SELECT INTO", "SELECT * INTO backup FROM t", true, "forbidden keyword 'INTO'"},
		{"DELETE in CTE", "WITH d AS (DELETE FROM t RETURNING *) SELECT * FROM d", true, "forbidden keyword 'DELETE'"},
		{"PRAGMA", "SELECT * FROM pragma_table_info('t') WHERE 1 = (PRAGMA x)", true, "forbidden keyword 'PRAGMA'"},
		{"unterminated literal", "SELECT * FROM t WHERE a = 'x", true, "unterminated quote"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.Validate(tt.sql)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error %q does not contain %q", err, tt.errMsg)
			}
		})
	}
}

func TestSQLValidator_ValidateFragment(t *testing.T) {
	validator := NewSQLValidator()

	for _, ok := range []string{"id", "created_at DESC, id", `"Order" ASC`, "2, 1"} {
		if err := validator.ValidateFragment(ok); err != nil {
			t.Errorf("ValidateFragment(%q): %v", ok, err)
		}
	}
	for _, bad := range []string{"", "id; DROP TABLE t", "id -- x", "id /* */", "(DELETE FROM t)"} {
		if err := validator.ValidateFragment(bad); err == nil {
			t.Errorf("ValidateFragment(%q) expected error", bad)
		}
	}
}

func TestValidatePartitionID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"P20240105", false},
		{"P2024-01", false},
		{"p_1.a", false},
		{"", true},
		{".", true},
		{"..", true},
		{"P1/../etc", true},
		{"P1'; --", true},
		{"P 1", true},
	}
	for _, tt := range tests {
		if err := ValidatePartitionID(tt.id); (err != nil) != tt.wantErr {
			t.Errorf("ValidatePartitionID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
		}
	}
}

func TestValidateTableName(t *testing.T) {
	for _, ok := range []string{"orders", "Order_Lines", "t1", "_tmp", "ACC$HIST"} {
		if err := ValidateTableName(ok); err != nil {
			t.Errorf("ValidateTableName(%q): %v", ok, err)
		}
	}
	for _, bad := range []string{"", "1abc", "a.b", "a b", "../x", "x;y"} {
		if err := ValidateTableName(bad); err == nil {
			t.Errorf("ValidateTableName(%q) expected error", bad)
		}
	}
}
