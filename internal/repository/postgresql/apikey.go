package postgresql

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rcalendar/msa-rcalendar/internal/domain/calendar"
	"github.com/rcalendar/msa-rcalendar/internal/pkg/database"
)

type apiKeyRepositoryImpl struct {
	db *database.DB
}

// NewApiKeyRepository wires the calendar.ApiKeyRepository backing the
// Api-Key header to app-label resolution at the HTTP boundary (spec §6).
func NewApiKeyRepository(db *database.DB) calendar.ApiKeyRepository {
	return &apiKeyRepositoryImpl{db: db}
}

func (r *apiKeyRepositoryImpl) Create(ctx context.Context, app string) (calendar.ApiKey, error) {
	q := GetQuerier(ctx, r.db)
	key := calendar.ApiKey{Key: uuid.NewString(), App: app, IsActive: true}
	err := q.QueryRow(ctx, `
		INSERT INTO api_keys (key, app, is_active, created_at)
		VALUES ($1, $2, true, NOW())
		RETURNING created_at
	`, key.Key, key.App).Scan(&key.CreatedAt)
	if err != nil {
		return calendar.ApiKey{}, err
	}
	return key, nil
}

func (r *apiKeyRepositoryImpl) GetByKey(ctx context.Context, key string) (calendar.ApiKey, error) {
	q := GetQuerier(ctx, r.db)
	var k calendar.ApiKey
	err := q.QueryRow(ctx, `
		SELECT key, app, is_active, created_at FROM api_keys WHERE key = $1
	`, key).Scan(&k.Key, &k.App, &k.IsActive, &k.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return calendar.ApiKey{}, calendar.ErrApiKeyNotFound
		}
		return calendar.ApiKey{}, err
	}
	if !k.IsActive {
		return calendar.ApiKey{}, calendar.ErrApiKeyNotFound
	}
	return k, nil
}

func (r *apiKeyRepositoryImpl) List(ctx context.Context) ([]calendar.ApiKey, error) {
	q := GetQuerier(ctx, r.db)
	rows, err := q.Query(ctx, `SELECT key, app, is_active, created_at FROM api_keys ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []calendar.ApiKey
	for rows.Next() {
		var k calendar.ApiKey
		if err := rows.Scan(&k.Key, &k.App, &k.IsActive, &k.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}
