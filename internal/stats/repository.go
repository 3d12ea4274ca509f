// Package stats keeps durable player statistics in PostgreSQL, fed by the
// game engine directly or by the Kafka result-event pipeline.
package stats

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dilemma-game/internal/config"
	"github.com/dilemma-game/internal/domain"
)

// Repository provides PostgreSQL-based statistics access
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a statistics repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{pool: pool, logger: logger}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS player_stats (
			player_id VARCHAR(64) PRIMARY KEY,
			total_score BIGINT NOT NULL DEFAULT 0,
			questions_resolved BIGINT NOT NULL DEFAULT 0,
			games_completed BIGINT NOT NULL DEFAULT 0,
			last_played TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS result_counts (
			player_id VARCHAR(64) NOT NULL,
			kind VARCHAR(32) NOT NULL,
			count BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (player_id, kind)
		)`,
		`CREATE TABLE IF NOT EXISTS result_events (
			id BIGSERIAL PRIMARY KEY,
			game_id VARCHAR(64) NOT NULL,
			round INT NOT NULL,
			question INT NOT NULL,
			player1_id VARCHAR(64) NOT NULL,
			player2_id VARCHAR(64) NOT NULL,
			player1_score BIGINT NOT NULL,
			player2_score BIGINT NOT NULL,
			kind VARCHAR(32) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_player_stats_score ON player_stats(total_score DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_result_events_game ON result_events(game_id, round, question)`,
	}

	for _, migration := range migrations {
		if _, err := r.pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// ApplyResult folds one resolved question into both players' statistics
// and appends it to the event log.
//
// questions_resolved counts resolved questions per player; the original
// system folded this into a games-played counter once per question, which
// is kept here under an honest name. games_completed moves separately,
// once per finished game.
func (r *Repository) ApplyResult(ctx context.Context, event domain.ResultEvent) error {
	batch := &pgx.Batch{}

	upsert := `
		INSERT INTO player_stats (player_id, total_score, questions_resolved, last_played)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (player_id)
		DO UPDATE SET
			total_score = player_stats.total_score + $2,
			questions_resolved = player_stats.questions_resolved + 1,
			last_played = $3
	`
	batch.Queue(upsert, event.Player1ID, event.Player1Score, event.Timestamp)
	batch.Queue(upsert, event.Player2ID, event.Player2Score, event.Timestamp)

	countUpsert := `
		INSERT INTO result_counts (player_id, kind, count)
		VALUES ($1, $2, 1)
		ON CONFLICT (player_id, kind)
		DO UPDATE SET count = result_counts.count + 1
	`
	batch.Queue(countUpsert, event.Player1ID, string(event.Kind))
	batch.Queue(countUpsert, event.Player2ID, string(event.Kind))

	batch.Queue(`
		INSERT INTO result_events
			(game_id, round, question, player1_id, player2_id, player1_score, player2_score, kind, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		event.GameID, event.Round, event.Question,
		event.Player1ID, event.Player2ID,
		event.Player1Score, event.Player2Score,
		string(event.Kind), event.Timestamp,
	)

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("applying result: %w", err)
		}
	}
	return nil
}

// ApplyResultBatch folds multiple result events, continuing past
// individual failures
func (r *Repository) ApplyResultBatch(ctx context.Context, events []domain.ResultEvent) error {
	for _, event := range events {
		if err := r.ApplyResult(ctx, event); err != nil {
			r.logger.Error("failed to apply result event",
				"game_id", event.GameID,
				"error", err,
			)
		}
	}
	return nil
}

// MarkGameCompleted bumps the completed-game counter for every participant
func (r *Repository) MarkGameCompleted(ctx context.Context, gameID string, playerIDs []string) error {
	query := `
		INSERT INTO player_stats (player_id, games_completed)
		VALUES ($1, 1)
		ON CONFLICT (player_id)
		DO UPDATE SET games_completed = player_stats.games_completed + 1
	`
	for _, id := range playerIDs {
		if _, err := r.pool.Exec(ctx, query, id); err != nil {
			return fmt.Errorf("marking game completed: %w", err)
		}
	}
	r.logger.Debug("game completion recorded", "game_id", gameID, "players", len(playerIDs))
	return nil
}

// GetPlayerStats returns one player's durable statistics
func (r *Repository) GetPlayerStats(ctx context.Context, playerID string) (*domain.PlayerStats, error) {
	var stats domain.PlayerStats
	err := r.pool.QueryRow(ctx, `
		SELECT player_id, total_score, questions_resolved, games_completed, last_played
		FROM player_stats
		WHERE player_id = $1
	`, playerID).Scan(
		&stats.PlayerID,
		&stats.TotalScore,
		&stats.QuestionsResolved,
		&stats.GamesCompleted,
		&stats.LastPlayed,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("getting player stats: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT kind, count FROM result_counts WHERE player_id = $1
	`, playerID)
	if err != nil {
		return nil, fmt.Errorf("getting result counts: %w", err)
	}
	defer rows.Close()

	stats.ResultCounts = make(map[string]int64)
	for rows.Next() {
		var kind string
		var count int64
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("scanning result count: %w", err)
		}
		stats.ResultCounts[kind] = count
	}
	return &stats, nil
}

// TopPlayers returns the highest-scoring players
func (r *Repository) TopPlayers(ctx context.Context, limit int) ([]domain.PlayerStats, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.pool.Query(ctx, `
		SELECT player_id, total_score, questions_resolved, games_completed, last_played
		FROM player_stats
		ORDER BY total_score DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("getting top players: %w", err)
	}
	defer rows.Close()

	var out []domain.PlayerStats
	for rows.Next() {
		var stats domain.PlayerStats
		err := rows.Scan(
			&stats.PlayerID,
			&stats.TotalScore,
			&stats.QuestionsResolved,
			&stats.GamesCompleted,
			&stats.LastPlayed,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning player stats: %w", err)
		}
		out = append(out, stats)
	}
	return out, nil
}
