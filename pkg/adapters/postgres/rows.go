package postgres

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// pgRows - обертка pgx.Rows для реализации adapters.Rows.
// Значения, которые pgx декодирует в собственные типы, приводятся к
// string/[]byte/time.Time/числам, понятным сериализатору.
type pgRows struct {
	rows    pgx.Rows
	typeMap *pgtype.Map
}

func newPgRows(rows pgx.Rows) *pgRows {
	r := &pgRows{rows: rows}
	if conn := rows.Conn(); conn != nil {
		r.typeMap = conn.TypeMap()
	}
	return r
}

func (r *pgRows) Next() bool { return r.rows.Next() }

func (r *pgRows) Values() ([]any, error) {
	values, err := r.rows.Values()
	if err != nil {
		return nil, err
	}
	fields := r.rows.FieldDescriptions()
	for i, v := range values {
		var oid uint32
		if i < len(fields) {
			oid = fields[i].DataTypeOID
		}
		values[i] = normalizeValue(r.typeMap, oid, v)
	}
	return values, nil
}

func (r *pgRows) Err() error { return r.rows.Err() }

func (r *pgRows) Close() error {
	r.rows.Close()
	return nil
}

// normalizeValue конвертирует PostgreSQL-специфичные типы в текст или числа.
// NUMERIC, TIME, INTERVAL, UUID и JSON форматируются здесь; прочие типы pgtype
// (массивы, диапазоны, геометрия, ...) кодируются в текстовый формат
// PostgreSQL через m.
func normalizeValue(m *pgtype.Map, oid uint32, val any) any {
	switch v := val.(type) {
	case nil:
		return nil

	case string, []byte, bool, time.Time,
		int16, int32, int64, float32, float64:
		if oid == pgtype.JSONOID || oid == pgtype.JSONBOID {
			return jsonText(val)
		}
		return val

	case pgtype.Numeric:
		if !v.Valid {
			return nil
		}
		if v.NaN {
			return "NaN"
		}
		switch {
		case v.InfinityModifier > 0:
			return "Infinity"
		case v.InfinityModifier < 0:
			return "-Infinity"
		}
		return numericString(v.Int, v.Exp)

	case pgtype.Time:
		if !v.Valid {
			return nil
		}
		return clockString(v.Microseconds)

	case pgtype.Interval:
		if !v.Valid {
			return nil
		}
		return intervalString(v)

	case [16]byte:
		// UUID как массив байт
		return uuid.UUID(v).String()
	}

	if oid == pgtype.JSONOID || oid == pgtype.JSONBOID {
		return jsonText(val)
	}
	if m != nil && oid != 0 {
		buf, err := m.Encode(oid, pgtype.TextFormatCode, val, nil)
		if err == nil {
			if buf == nil {
				return nil
			}
			return string(buf)
		}
	}

	switch val.(type) {
	case map[string]any, []any:
		// JSON без OID
		return jsonText(val)
	}
	return val
}

// jsonText возвращает JSON-представление декодированного json/jsonb значения
func jsonText(val any) any {
	if b, ok := val.([]byte); ok {
		return string(b)
	}
	data, err := json.Marshal(val)
	if err != nil {
		return val
	}
	return string(data)
}

// clockString форматирует микросекунды как hh:mm:ss[.ffffff];
// часы не ограничены 24, дробная часть без хвостовых нулей.
func clockString(us int64) string {
	var b strings.Builder
	if us < 0 {
		b.WriteByte('-')
		us = -us
	}
	hours := us / 3_600_000_000
	minutes := us / 60_000_000 % 60
	seconds := us / 1_000_000 % 60
	fraction := us % 1_000_000

	fmt.Fprintf(&b, "%02d:%02d:%02d", hours, minutes, seconds)
	if fraction != 0 {
		b.WriteByte('.')
		b.WriteString(strings.TrimRight(fmt.Sprintf("%06d", fraction), "0"))
	}
	return b.String()
}

// intervalString рендерит INTERVAL в стиле IntervalStyle = postgres:
// "1 year 2 mons 3 days 04:05:06". Положительная часть после
// отрицательной получает знак "+", нулевой интервал - "00:00:00".
func intervalString(v pgtype.Interval) string {
	var b strings.Builder
	negative := false

	part := func(value int64, unit string) {
		if value == 0 {
			return
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		if negative && value > 0 {
			b.WriteByte('+')
		}
		b.WriteString(strconv.FormatInt(value, 10))
		b.WriteByte(' ')
		b.WriteString(unit)
		if value != 1 {
			b.WriteByte('s')
		}
		negative = value < 0
	}

	part(int64(v.Months/12), "year")
	part(int64(v.Months%12), "mon")
	part(int64(v.Days), "day")

	if v.Microseconds != 0 || b.Len() == 0 {
		if b.Len() > 0 {
			b.WriteByte(' ')
			if negative && v.Microseconds > 0 {
				b.WriteByte('+')
			}
		}
		b.WriteString(clockString(v.Microseconds))
	}
	return b.String()
}

// numericString форматирует значение mantissa * 10^exp без потери точности.
func numericString(mantissa *big.Int, exp int32) string {
	if mantissa == nil {
		return "0"
	}

	digits := mantissa.String()
	negative := strings.HasPrefix(digits, "-")
	digits = strings.TrimPrefix(digits, "-")

	switch {
	case exp > 0:
		digits += strings.Repeat("0", int(exp))
	case exp < 0:
		frac := int(-exp)
		if len(digits) <= frac {
			digits = strings.Repeat("0", frac-len(digits)+1) + digits
		}
		digits = digits[:len(digits)-frac] + "." + digits[len(digits)-frac:]
	}

	if negative {
		return "-" + digits
	}
	return digits
}
