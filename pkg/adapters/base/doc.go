// Package base содержит общую реализацию adapters.Engine поверх database/sql.
//
// Адаптеры SQLite, MySQL и MS SQL встраивают *SQLEngine и передают ему
// Dialect: экранирование идентификаторов, запрос к каталогу для описания
// колонок view, маппинг типов и запрос версии сервера. Если диалект
// реализует ValueNormalizer, значения строк проходят через него перед
// передачей сериализатору.
package base
