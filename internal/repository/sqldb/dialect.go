package sqldb

import "fmt"

// Dialect описывает различия SQL между поддерживаемыми базами
type Dialect struct {
	// Name - имя драйвера database/sql
	Name string

	createTable string
	upsert      string
	merge       string
	textExpr    func(field string) string
	numberExpr  func(field string) string
	boolExpr    func(field string) string
	indexExpr   func(field string) string
	boolArg     func(v bool) any
}

// Postgres хранит документы в JSONB (драйвер pgx)
var Postgres = Dialect{
	Name: "pgx",
	createTable: `CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id         TEXT NOT NULL,
		data       JSONB NOT NULL,
		PRIMARY KEY (collection, id)
	)`,
	upsert: `INSERT INTO documents (collection, id, data) VALUES (?, ?, ?::jsonb)
		ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data`,
	merge: `UPDATE documents SET data = data || ?::jsonb WHERE collection = ? AND id = ?`,
	textExpr: func(field string) string {
		return fmt.Sprintf("data->>'%s'", field)
	},
	numberExpr: func(field string) string {
		return fmt.Sprintf("(data->>'%s')::numeric", field)
	},
	boolExpr: func(field string) string {
		return fmt.Sprintf("(data->>'%s')::boolean", field)
	},
	indexExpr: func(field string) string {
		return fmt.Sprintf("(data->>'%s')", field)
	},
	boolArg: func(v bool) any { return v },
}

// SQLite хранит документы текстом JSON (драйвер modernc.org/sqlite)
var SQLite = Dialect{
	Name: "sqlite",
	createTable: `CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id         TEXT NOT NULL,
		data       TEXT NOT NULL,
		PRIMARY KEY (collection, id)
	)`,
	upsert: `INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data`,
	merge: `UPDATE documents SET data = json_patch(data, ?) WHERE collection = ? AND id = ?`,
	textExpr: func(field string) string {
		return fmt.Sprintf("json_extract(data, '$.%s')", field)
	},
	numberExpr: func(field string) string {
		return fmt.Sprintf("json_extract(data, '$.%s')", field)
	},
	boolExpr: func(field string) string {
		return fmt.Sprintf("json_extract(data, '$.%s')", field)
	},
	indexExpr: func(field string) string {
		return fmt.Sprintf("json_extract(data, '$.%s')", field)
	},
	// json_extract возвращает 1/0 для true/false
	boolArg: func(v bool) any {
		if v {
			return 1
		}
		return 0
	},
}
