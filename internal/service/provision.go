package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vodarr/vodarr/internal/models"
	"github.com/vodarr/vodarr/internal/repository"
)

// Provision seeds the defaults a fresh installation needs: the encoding
// profile ladder, the alert rule set and the extraction settings.
func Provision(ctx context.Context, profiles *ProfileService, rules repository.AlertRuleRepository, settings repository.MetadataSettingsRepository, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	if err := profiles.EnsureDefaults(ctx); err != nil {
		return err
	}

	ruleCount, err := rules.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting alert rules: %w", err)
	}
	if ruleCount == 0 {
		for _, rule := range models.DefaultAlertRules() {
			if err := rules.Create(ctx, rule); err != nil {
				return fmt.Errorf("seeding alert rule %s: %w", rule.Name, err)
			}
		}
		logger.Info("seeded default alert rules",
			slog.Int("count", len(models.DefaultAlertRules())))
	}

	active, err := settings.GetActive(ctx)
	if err != nil {
		return fmt.Errorf("loading metadata settings: %w", err)
	}
	if active == nil {
		if err := settings.Save(ctx, models.DefaultMetadataSettings()); err != nil {
			return fmt.Errorf("seeding metadata settings: %w", err)
		}
		logger.Info("seeded default metadata settings")
	}
	return nil
}
