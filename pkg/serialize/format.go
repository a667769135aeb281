package serialize

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ruslano69/partarch/pkg/core/schema"
)

// Separator - разделитель полей в выгрузке
const Separator = ";"

// Форматы дат в выгрузке
const (
	DateLayout      = "2006-01-02"
	TimestampLayout = "2006-01-02 15:04:05"
)

// maxUnboundedDigits ограничивает дробную часть значений с неограниченным
// scale, если знаменатель не является степенью 10 (например, 1/3)
const maxUnboundedDigits = 30

// textReplacer заменяет разделитель на ',' и переводы строк на пробел:
// одна запись = одна строка файла, одно поле = одна колонка.
var textReplacer = strings.NewReplacer(
	Separator, ",",
	"\r\n", " ",
	"\r", " ",
	"\n", " ",
)

// Escape готовит текст к записи в поле
func Escape(s string) string {
	return textReplacer.Replace(s)
}

// timeLayouts - форматы, в которых драйверы возвращают даты текстом
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	DateLayout,
}

// ErrNotFinite is returned for NaN and infinite numeric values, which
// have no fixed-point representation.
var ErrNotFinite = errors.New("value is not a finite number")

// FormatValue renders one non-header field. NULL (nil) renders as an
// empty field regardless of the column type.
func FormatValue(v any, t schema.ColumnType) (string, error) {
	if v == nil {
		return "", nil
	}

	switch t.Kind {
	case schema.KindNumeric:
		return formatNumeric(v, t)
	case schema.KindDate:
		return formatTime(v, DateLayout)
	case schema.KindTimestamp:
		return formatTime(v, TimestampLayout)
	default:
		return formatText(v), nil
	}
}

func formatText(v any) string {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case []byte:
		s = string(x)
	case time.Time:
		s = x.Format(TimestampLayout)
	case bool:
		if x {
			return "1"
		}
		return "0"
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case fmt.Stringer:
		s = x.String()
	case driver.Valuer:
		// sql.Null*, типы драйверов
		dv, err := x.Value()
		if err != nil || dv == nil {
			return ""
		}
		return formatText(dv)
	default:
		s = fmt.Sprint(x)
	}
	return Escape(s)
}

// formatNumeric рендерит число с фиксированной точкой '.' без
// разделителей тысяч и экспоненты
func formatNumeric(v any, t schema.ColumnType) (string, error) {
	r, err := toRat(v)
	if err != nil {
		return "", err
	}

	switch {
	case !t.IsDecimal():
		return roundToInt(r).String(), nil
	case t.HasFixedScale():
		return trimNegativeZero(r.FloatString(t.Scale)), nil
	default:
		return trimNegativeZero(r.FloatString(decimalPlaces(r))), nil
	}
}

// trimNegativeZero: -0.001 с scale 2 дает "-0.00"
func trimNegativeZero(s string) string {
	if strings.HasPrefix(s, "-") && strings.Trim(s[1:], "0.") == "" {
		return s[1:]
	}
	return s
}

// toRat конвертирует значение драйвера в точное рациональное число
func toRat(v any) (*big.Rat, error) {
	r := new(big.Rat)

	switch x := v.(type) {
	case int:
		return r.SetInt64(int64(x)), nil
	case int8:
		return r.SetInt64(int64(x)), nil
	case int16:
		return r.SetInt64(int64(x)), nil
	case int32:
		return r.SetInt64(int64(x)), nil
	case int64:
		return r.SetInt64(x), nil
	case uint:
		return r.SetUint64(uint64(x)), nil
	case uint8:
		return r.SetUint64(uint64(x)), nil
	case uint16:
		return r.SetUint64(uint64(x)), nil
	case uint32:
		return r.SetUint64(uint64(x)), nil
	case uint64:
		return r.SetUint64(x), nil
	case bool:
		if x {
			return r.SetInt64(1), nil
		}
		return r, nil
	case float32:
		return floatToRat(float64(x), 32)
	case float64:
		return floatToRat(x, 64)
	case string:
		return decimalToRat(x)
	case []byte:
		return decimalToRat(string(x))
	case *big.Int:
		return r.SetInt(x), nil
	case *big.Rat:
		return r.Set(x), nil
	default:
		return nil, fmt.Errorf("unsupported numeric value of type %T", v)
	}
}

// floatToRat берет кратчайшее десятичное представление float,
// а не точное двоичное значение: 0.1 → 1/10
func floatToRat(f float64, bitSize int) (*big.Rat, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, ErrNotFinite
	}
	return decimalToRat(strconv.FormatFloat(f, 'f', -1, bitSize))
}

func decimalToRat(s string) (*big.Rat, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.Contains(s, "/") {
		return nil, fmt.Errorf("invalid numeric value %q", s)
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		switch strings.ToLower(s) {
		case "nan", "infinity", "-infinity", "inf", "-inf":
			return nil, ErrNotFinite
		}
		return nil, fmt.Errorf("invalid numeric value %q", s)
	}
	return r, nil
}

// roundToInt округляет до целого, половины - от нуля
func roundToInt(r *big.Rat) *big.Int {
	if r.IsInt() {
		return new(big.Int).Set(r.Num())
	}

	q, m := new(big.Int).QuoRem(r.Num(), r.Denom(), new(big.Int))
	m.Abs(m).Lsh(m, 1)
	if m.Cmp(r.Denom()) >= 0 {
		if r.Sign() < 0 {
			q.Sub(q, big.NewInt(1))
		} else {
			q.Add(q, big.NewInt(1))
		}
	}
	return q
}

// decimalPlaces возвращает число знаков после точки, при котором r
// записывается точно: для знаменателя 2^a·5^b это max(a, b).
func decimalPlaces(r *big.Rat) int {
	if r.IsInt() {
		return 0
	}

	d := new(big.Int).Set(r.Denom())
	two, five := big.NewInt(2), big.NewInt(5)
	mod := new(big.Int)

	count := func(p *big.Int) int {
		n := 0
		for {
			q, m := new(big.Int).QuoRem(d, p, mod)
			if m.Sign() != 0 {
				return n
			}
			d = q
			n++
		}
	}

	places := max(count(two), count(five))
	if d.Cmp(big.NewInt(1)) != 0 {
		return max(places, maxUnboundedDigits)
	}
	return places
}

func formatTime(v any, layout string) (string, error) {
	switch x := v.(type) {
	case time.Time:
		return x.Format(layout), nil
	case string:
		return formatTimeText(x, layout)
	case []byte:
		return formatTimeText(string(x), layout)
	case int64:
		// SQLite хранит даты и как unix time
		return time.Unix(x, 0).UTC().Format(layout), nil
	default:
		return "", fmt.Errorf("unsupported date value of type %T", v)
	}
}

func formatTimeText(s, layout string) (string, error) {
	s = strings.TrimSpace(s)
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.Format(layout), nil
		}
	}
	return "", fmt.Errorf("invalid date value %q", s)
}
