package mssql

import (
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"strings"
	"time"

	mssqldb "github.com/denisenkom/go-mssqldb"
)

// NormalizeValue приводит значения go-mssqldb к текстовому виду:
//   - UNIQUEIDENTIFIER: []byte со смешанным порядком байт → "6F9619FF-8B86-D011-B42D-00C04FC964FF"
//   - rowversion (BINARY(8)): hex без ведущих нулей
//   - прочие бинарные типы: hex в верхнем регистре
//   - TIME: драйвер отдает time.Time на 0001-01-01, остается только время суток
func (dialect) NormalizeValue(column *sql.ColumnType, value any) any {
	if t, ok := value.(time.Time); ok {
		if column.DatabaseTypeName() == "TIME" {
			return timeOfDay(t)
		}
		return value
	}

	data, ok := value.([]byte)
	if !ok {
		return value
	}

	switch column.DatabaseTypeName() {
	case "UNIQUEIDENTIFIER":
		var id mssqldb.UniqueIdentifier
		if err := id.Scan(data); err != nil {
			return strings.ToUpper(hex.EncodeToString(data))
		}
		return id.String()

	case "BINARY":
		if length, ok := column.Length(); ok && length == 8 {
			return bytesToHexWithoutLeadingZerosSQL(data)
		}
		return strings.ToUpper(hex.EncodeToString(data))

	case "VARBINARY", "IMAGE":
		return strings.ToUpper(hex.EncodeToString(data))

	default:
		return value
	}
}

// timeOfDay форматирует TIME(n) как hh:mm:ss[.fffffff] без хвостовых нулей
func timeOfDay(t time.Time) string {
	return t.Format("15:04:05.9999999")
}

// bytesToHexWithoutLeadingZerosSQL converts an 8-byte MS SQL Server
// timestamp/rowversion value to a hex string without leading zeros.
//
// Examples:
//   - []byte{0x00, 0x00, 0x00, 0x00, 0x18, 0x7F, 0x86, 0x3C} → "187F863C"
//   - []byte{0x00, 0x00, 0x00, 0x19, 0xA4, 0xAE, 0x7C, 0x00} → "19A4AE7C00"
//   - []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00} → "00"
func bytesToHexWithoutLeadingZerosSQL(data []byte) string {
	if len(data) != 8 {
		if len(data) == 0 {
			return ""
		}
		return strings.ToUpper(hex.EncodeToString(data))
	}

	value := binary.BigEndian.Uint64(data)
	if value == 0 {
		return "00"
	}

	const hexChars = "0123456789ABCDEF"
	var result [16]byte
	pos := 16
	for value > 0 {
		pos--
		result[pos] = hexChars[value&0x0F]
		value >>= 4
	}

	return string(result[pos:])
}
