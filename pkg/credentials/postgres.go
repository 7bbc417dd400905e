package credentials

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"

	"github.com/recall-hq/recall/pkg/types"

	// Import migrations to register them with goose
	_ "github.com/recall-hq/recall/pkg/credentials/migrations"
)

// PostgresRepository stores encrypted credential blobs in Postgres
type PostgresRepository struct {
	db     *sql.DB
	config types.PostgresConfig
}

// NewPostgresRepository opens a connection pool and verifies connectivity
func NewPostgresRepository(cfg types.PostgresConfig) (*PostgresRepository, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	if cfg.Database == "" {
		cfg.Database = "recall"
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("connected to postgres")

	return &PostgresRepository{db: db, config: cfg}, nil
}

// RunMigrations applies pending goose migrations
func (r *PostgresRepository) RunMigrations() error {
	goose.SetTableName("recall_goose_version")
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Up(r.db, ".")
}

func (r *PostgresRepository) Save(ctx context.Context, userID, provider string, blob []byte) error {
	query := `
		INSERT INTO user_credential (user_id, provider, credentials)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, provider)
		DO UPDATE SET credentials = EXCLUDED.credentials, updated_at = CURRENT_TIMESTAMP
	`
	if _, err := r.db.ExecContext(ctx, query, userID, provider, blob); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Load(ctx context.Context, userID, provider string) ([]byte, error) {
	query := `SELECT credentials FROM user_credential WHERE user_id = $1 AND provider = $2`

	var blob []byte
	err := r.db.QueryRowContext(ctx, query, userID, provider).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	return blob, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, provider string) error {
	query := `DELETE FROM user_credential WHERE user_id = $1 AND provider = $2`
	if _, err := r.db.ExecContext(ctx, query, userID, provider); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

// Close releases the connection pool
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}
