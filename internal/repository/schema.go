package repository

import "tagrag/internal/config"

// StoreDescription describe la tabla Messages en lenguaje natural para la herramienta de consultas.
func StoreDescription(driver string) string {
	if driver == config.DriverPostgres {
		return `This is a PostgreSQL database. The table name is "Messages". ` +
			`Columns: "Id" (bigint), "Date" (timestamptz), "User" (text, speaker name), "Content" (text, message body). ` +
			`Identifiers are case sensitive and must be double quoted, for example: select "Id", "Date", "User", "Content" from "Messages"`
	}
	return `This is a SQLite database. The table name is Messages. ` +
		`Columns: Id (integer), Date (datetime stored as 'YYYY-MM-DD HH:MM:SS'), User (text, speaker name), Content (text, message body). ` +
		`For example: select Id, Date, User, Content from Messages`
}

// StoreExamples devuelve consultas de ejemplo validas para el motor.
func StoreExamples(driver string) []string {
	if driver == config.DriverPostgres {
		return []string{
			`select * from "Messages"`,
			`select "Id", "Date", "User", "Content" from "Messages" where "User" = 'alice' order by "Date"`,
		}
	}
	return []string{
		"select * from Messages",
		"select Id, Date, User, Content from Messages where User = 'alice' order by Date",
	}
}
