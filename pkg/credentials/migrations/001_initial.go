package migrations

import (
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigration(upInitial, downInitial)
}

func upInitial(tx *sql.Tx) error {
	createStatements := []string{
		`CREATE TABLE IF NOT EXISTS user_credential (
			id SERIAL PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL,
			provider VARCHAR(64) NOT NULL,
			credentials BYTEA NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, provider)
		);`,

		`CREATE INDEX idx_user_credential_user_id ON user_credential(user_id);`,
	}

	for _, stmt := range createStatements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func downInitial(tx *sql.Tx) error {
	_, err := tx.Exec(`DROP TABLE IF EXISTS user_credential;`)
	return err
}
