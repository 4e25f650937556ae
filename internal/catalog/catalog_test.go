package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/helpdesk-labs/support-rewards/internal/domain"
	"github.com/helpdesk-labs/support-rewards/internal/repository/memstore"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	require.Len(t, c.Achievements, 4)
	require.Len(t, c.Items, 5)

	rewards := map[string]int{}
	for _, a := range c.Achievements {
		rewards[a.Key] = a.PointsReward
	}
	assert.Equal(t, 25, rewards[string(domain.AchievementFirstResolution)])
	assert.Equal(t, 500, rewards[string(domain.AchievementResolutionMaster)])
	assert.Equal(t, 300, rewards[string(domain.AchievementCustomerChampion)])
	assert.Equal(t, 200, rewards[string(domain.AchievementLightningFast)])
}

func TestParseRejectsInvalidCatalogs(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown key", "achievements:\n  - key: night_owl\n    name: Night Owl\n"},
		{"duplicate name", "achievements:\n  - key: first_resolution\n    name: A\n  - key: lightning_fast\n    name: A\n"},
		{"negative reward", "achievements:\n  - key: first_resolution\n    name: A\n    points_reward: -1\n"},
		{"missing item id", "items:\n  - name: Mug\n    points_cost: 10\n"},
		{"zero cost", "items:\n  - id: mug\n    name: Mug\n    points_cost: 0\n"},
		{"malformed", "achievements: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	doc := "items:\n  - id: mug\n    name: Mug\n    points_cost: 50\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	c, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 50, c.Items[0].PointsCost)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repos := memstore.New().Repositories()
	c, err := Default()
	require.NoError(t, err)

	require.NoError(t, Seed(ctx, repos.Achievements, repos.Marketplace, c, zap.NewNop()))
	require.NoError(t, Seed(ctx, repos.Achievements, repos.Marketplace, c, zap.NewNop()))

	active, err := repos.Achievements.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 4)

	items, err := repos.Marketplace.ListItems(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 5)

	item, err := repos.Marketplace.GetItem(ctx, "extra-day-off")
	require.NoError(t, err)
	assert.Equal(t, 2500, item.PointsCost)
}
