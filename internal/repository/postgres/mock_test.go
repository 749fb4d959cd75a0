package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcity/predictor/internal/domain"
)

var _ domain.DataRepository = (*MockRepository)(nil)
var _ domain.DataRepository = (*PostgresRepository)(nil)

func TestMockRepository_RecentNewestFirst(t *testing.T) {
	repo := NewMockRepository()
	base := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.SavePredictionLog(ctx, domain.PredictionLog{
			ID:        fmt.Sprintf("id-%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	logs, err := repo.RecentPredictions(ctx, 3)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, "id-4", logs[0].ID)
	assert.Equal(t, "id-2", logs[2].ID)
	assert.NoError(t, repo.Health(ctx))
}

func TestMockRepository_Capacity(t *testing.T) {
	repo := NewMockRepository()
	ctx := context.Background()
	for i := 0; i < mockCapacity+10; i++ {
		require.NoError(t, repo.SavePredictionLog(ctx, domain.PredictionLog{ID: fmt.Sprint(i)}))
	}

	logs, err := repo.RecentPredictions(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, logs, mockCapacity)
}

func TestNullable(t *testing.T) {
	assert.Nil(t, nullable(""))
	assert.Equal(t, "2024-01-15", nullable("2024-01-15"))
}
