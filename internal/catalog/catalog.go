// Package catalog loads the achievement and marketplace catalogs and seeds
// them into the record store.
package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/helpdesk-labs/support-rewards/internal/domain"
	"github.com/helpdesk-labs/support-rewards/internal/repository"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog is the on-disk catalog layout.
type Catalog struct {
	Achievements []AchievementSpec `yaml:"achievements"`
	Items        []ItemSpec        `yaml:"items"`
}

// AchievementSpec describes one achievement.
type AchievementSpec struct {
	Key          string `yaml:"key"`
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	PointsReward int    `yaml:"points_reward"`
	Inactive     bool   `yaml:"inactive,omitempty"`
}

// ItemSpec describes one marketplace item.
type ItemSpec struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	PointsCost  int    `yaml:"points_cost"`
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// LoadFile reads a catalog from path. An empty path yields the embedded one.
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks keys, names and amounts.
func (c *Catalog) Validate() error {
	names := map[string]struct{}{}
	for _, a := range c.Achievements {
		switch domain.AchievementKey(a.Key) {
		case domain.AchievementFirstResolution, domain.AchievementResolutionMaster,
			domain.AchievementCustomerChampion, domain.AchievementLightningFast:
		default:
			return fmt.Errorf("achievement %q: unknown key %q", a.Name, a.Key)
		}
		if strings.TrimSpace(a.Name) == "" {
			return fmt.Errorf("achievement %q: name is required", a.Key)
		}
		if _, dup := names[a.Name]; dup {
			return fmt.Errorf("achievement %q: duplicate name", a.Name)
		}
		names[a.Name] = struct{}{}
		if a.PointsReward < 0 {
			return fmt.Errorf("achievement %q: negative reward", a.Name)
		}
	}

	ids := map[string]struct{}{}
	for _, it := range c.Items {
		if strings.TrimSpace(it.ID) == "" {
			return fmt.Errorf("item %q: id is required", it.Name)
		}
		if _, dup := ids[it.ID]; dup {
			return fmt.Errorf("item %q: duplicate id", it.ID)
		}
		ids[it.ID] = struct{}{}
		if it.PointsCost <= 0 {
			return fmt.Errorf("item %q: cost must be positive", it.ID)
		}
	}
	return nil
}

// Seed upserts the catalog. Achievements are matched by name and items by id,
// so running it twice leaves the store unchanged.
func Seed(ctx context.Context, achievements repository.AchievementRepository, items repository.MarketplaceRepository, c *Catalog, logger *zap.Logger) error {
	for _, spec := range c.Achievements {
		a := &domain.Achievement{
			Key:          domain.AchievementKey(spec.Key),
			Name:         spec.Name,
			Description:  spec.Description,
			PointsReward: spec.PointsReward,
			IsActive:     !spec.Inactive,
		}
		if err := achievements.Upsert(ctx, a); err != nil {
			return fmt.Errorf("seed achievement %q: %w", spec.Name, err)
		}
	}
	for _, spec := range c.Items {
		item := &domain.MarketplaceItem{
			ID:          spec.ID,
			Name:        spec.Name,
			Description: spec.Description,
			PointsCost:  spec.PointsCost,
		}
		if err := items.UpsertItem(ctx, item); err != nil {
			return fmt.Errorf("seed item %q: %w", spec.ID, err)
		}
	}
	logger.Info("catalog seeded",
		zap.Int("achievements", len(c.Achievements)),
		zap.Int("items", len(c.Items)))
	return nil
}
