package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/oscardcstudio-cell/auto-polymarket/internal/database"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/models"
)

// PostgresLearningParamsRepository implements LearningParamsRepository.
type PostgresLearningParamsRepository struct {
	db *database.DB
}

// NewPostgresLearningParamsRepository creates a learning parameters repository.
func NewPostgresLearningParamsRepository(db *database.DB) LearningParamsRepository {
	return &PostgresLearningParamsRepository{db: db}
}

// SaveParameters appends a new parameter row; history is kept for audit.
func (r *PostgresLearningParamsRepository) SaveParameters(ctx context.Context, params *models.LearningParameters) error {
	categories, err := json.Marshal(params.CategoryMultipliers)
	if err != nil {
		return fmt.Errorf("encoding category multipliers: %w", err)
	}
	disabled, err := json.Marshal(params.DisabledStrategies)
	if err != nil {
		return fmt.Errorf("encoding disabled strategies: %w", err)
	}

	query := `
		INSERT INTO learning_parameters
			(confidence_multiplier, size_multiplier, mode, reason,
			 category_multipliers, disabled_strategies, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.db.Pool().Exec(ctx, query,
		params.ConfidenceMultiplier, params.SizeMultiplier, params.Mode, params.Reason,
		categories, disabled, params.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving learning parameters: %w", err)
	}
	return nil
}

// LoadParameters returns the most recent parameter set, or nil when none has
// been persisted yet.
func (r *PostgresLearningParamsRepository) LoadParameters(ctx context.Context) (*models.LearningParameters, error) {
	query := `
		SELECT confidence_multiplier, size_multiplier, mode, reason,
		       category_multipliers, disabled_strategies, updated_at
		FROM learning_parameters
		ORDER BY updated_at DESC
		LIMIT 1
	`

	params := &models.LearningParameters{}
	var categories, disabled []byte
	err := r.db.Pool().QueryRow(ctx, query).Scan(
		&params.ConfidenceMultiplier, &params.SizeMultiplier, &params.Mode, &params.Reason,
		&categories, &disabled, &params.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading learning parameters: %w", err)
	}

	if err := json.Unmarshal(categories, &params.CategoryMultipliers); err != nil {
		return nil, fmt.Errorf("decoding category multipliers: %w", err)
	}
	if err := json.Unmarshal(disabled, &params.DisabledStrategies); err != nil {
		return nil, fmt.Errorf("decoding disabled strategies: %w", err)
	}
	return params, nil
}
