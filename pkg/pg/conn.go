package pg

import "database/sql"

type Config struct {
	User     string `env:"USER"`
	Host     string `env:"HOST"`
	Port     string `env:"PORT"`
	Password string `env:"PASSWORD"`
	Database string `env:"DBNAME"`
}

func newSQLConnection(config Config) (*sql.DB, error) {
	return sql.Open("postgres", config.DSN())
}
