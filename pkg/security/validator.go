// Package security validates operator-supplied SQL fragments and
// identifiers before they are embedded into statements.
package security

import (
	"fmt"
	"regexp"
	"strings"
)

// SQLValidator проверяет шаблоны выборки таблиц.
//
// Шаблон становится телом вспомогательного view, поэтому допускается
// только один read-only запрос SELECT или WITH: без ';', без комментариев
// и без изменяющих ключевых слов вне строковых литералов.
type SQLValidator struct {
	forbidden map[string]bool
}

// forbiddenKeywords - операции, недопустимые в теле view
var forbiddenKeywords = []string{
	// DML
	"INSERT", "UPDATE", "DELETE", "TRUNCATE", "MERGE",

	// DDL
	"DROP", "CREATE", "ALTER", "RENAME",

	// DCL
	"GRANT", "REVOKE",

	"EXECUTE", "EXEC", "CALL",

	// SQLite
	"PRAGMA", "ATTACH", "DETACH",

	"BEGIN", "COMMIT", "ROLLBACK",

	// SELECT ... INTO создает таблицу в MS SQL
	"INTO",
}

// NewSQLValidator создает валидатор шаблонов
func NewSQLValidator() *SQLValidator {
	v := &SQLValidator{forbidden: make(map[string]bool, len(forbiddenKeywords))}
	for _, k := range forbiddenKeywords {
		v.forbidden[k] = true
	}
	return v
}

// Validate checks that sql is a single read-only SELECT or WITH query.
func (v *SQLValidator) Validate(sql string) error {
	words, err := scanWords(sql)
	if err != nil {
		return err
	}
	if len(words) == 0 {
		return fmt.Errorf("empty query")
	}

	if first := words[0]; first != "SELECT" && first != "WITH" {
		return fmt.Errorf("only SELECT and WITH queries are allowed, got: %s", first)
	}

	for _, w := range words {
		if v.forbidden[w] {
			return fmt.Errorf("forbidden keyword '%s'", w)
		}
	}

	return nil
}

// ValidateFragment checks a clause appended to a query, such as an ORDER BY
// list: no ';', no comments and no forbidden keywords.
func (v *SQLValidator) ValidateFragment(fragment string) error {
	words, err := scanWords(fragment)
	if err != nil {
		return err
	}
	if len(words) == 0 {
		return fmt.Errorf("empty clause")
	}
	for _, w := range words {
		if v.forbidden[w] {
			return fmt.Errorf("forbidden keyword '%s'", w)
		}
	}
	return nil
}

// scanWords возвращает ключевые слова и идентификаторы запроса в верхнем
// регистре, пропуская строковые литералы и идентификаторы в кавычках.
func scanWords(sql string) ([]string, error) {
	var words []string
	var word strings.Builder

	flush := func() {
		if word.Len() > 0 {
			words = append(words, strings.ToUpper(word.String()))
			word.Reset()
		}
	}

	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case c == '\'' || c == '"' || c == '`' || c == '[':
			flush()
			closing := c
			if c == '[' {
				closing = ']'
			}
			end := strings.IndexByte(sql[i+1:], closing)
			if end == -1 {
				return nil, fmt.Errorf("unterminated quote %q at offset %d", c, i)
			}
			i += end + 1

		case c == ';':
			return nil, fmt.Errorf("';' is not allowed: the query must be a single statement without terminator")

		case c == '-' && i+1 < len(sql) && sql[i+1] == '-',
			c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			return nil, fmt.Errorf("SQL comments are not allowed")

		case isWordChar(c):
			word.WriteByte(c)

		default:
			flush()
		}
	}
	flush()
	return words, nil
}

func isWordChar(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c >= 0x80
}

var (
	partitionRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
	tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$#]*$`)
)

// ValidatePartitionID checks a partition identifier given on the command
// line. It is substituted into SQL text and used as a directory name.
func ValidatePartitionID(id string) error {
	if !partitionRe.MatchString(id) || id == "." || id == ".." {
		return fmt.Errorf("invalid partition identifier %q: allowed characters are A-Z a-z 0-9 _ . -", id)
	}
	return nil
}

// ValidateTableName checks a configured table name. It becomes part of an
// output file name and of a helper view name.
func ValidateTableName(name string) error {
	if !tableNameRe.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}
