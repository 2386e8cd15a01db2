package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/ovolkov/sparkbot/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	UseInMemory bool
}

type PostgresLog struct {
	db *sql.DB
}

func NewPostgresLog(config DatabaseConfig) (*PostgresLog, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	log := &PostgresLog{db: db}
	if err := log.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	return log, nil
}

func (l *PostgresLog) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := l.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}

	return nil
}

func (l *PostgresLog) Append(ctx context.Context, entry models.LogEntry) error {
	query := `
		INSERT INTO conversations (user_id, role, type, message, is_user)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := l.db.ExecContext(ctx, query,
		entry.UserID,
		entry.Role,
		entry.Type,
		entry.Message,
		entry.Role == models.RoleUser,
	)
	if err != nil {
		return fmt.Errorf("error appending log entry: %w", err)
	}

	return nil
}

func (l *PostgresLog) Stats(ctx context.Context, userID int64) (Stats, error) {
	query := `
		SELECT type, COUNT(*)
		FROM conversations
		WHERE user_id = $1
		GROUP BY type`

	rows, err := l.db.QueryContext(ctx, query, userID)
	if err != nil {
		return Stats{}, fmt.Errorf("error querying stats: %w", err)
	}
	defer rows.Close()

	stats := Stats{ByType: make(map[models.MessageType]int64)}
	for rows.Next() {
		var msgType models.MessageType
		var count int64
		if err := rows.Scan(&msgType, &count); err != nil {
			return Stats{}, fmt.Errorf("error scanning stats row: %w", err)
		}
		stats.ByType[msgType] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("error reading stats rows: %w", err)
	}

	return stats, nil
}

func (l *PostgresLog) Close() error {
	return l.db.Close()
}
