package badges

import (
	"context"
	"errors"
	"fmt"

	"github.com/aimd54/travelquest-rewards/internal/models"
	"github.com/aimd54/travelquest-rewards/pkg/logger"
)

// Stats are the aggregates a user's badges are evaluated against.
type Stats struct {
	CompletedMissions int64
	DistinctCities    int64
	Level             int
	Friends           int64
	MissionPhotos     int64
	MissionsToday     int64
}

// ThresholdRule unlocks every badge of Category whose threshold is at most Stat(stats).
type ThresholdRule struct {
	Category string
	Stat     func(Stats) float64
}

// CustomRule unlocks the special badges whose rule name is Name when Predicate holds.
type CustomRule struct {
	Name      string
	Predicate func(Stats) bool
}

// Custom rule names referenced by special badges.
const (
	RulePhotographer = "photographer"
	RuleMarathon     = "marathon"
)

// DefaultThresholdRules maps each threshold category to its driving stat.
func DefaultThresholdRules() []ThresholdRule {
	return []ThresholdRule{
		{Category: models.BadgeCategoryMissions, Stat: func(s Stats) float64 { return float64(s.CompletedMissions) }},
		{Category: models.BadgeCategoryCities, Stat: func(s Stats) float64 { return float64(s.DistinctCities) }},
		{Category: models.BadgeCategoryLevel, Stat: func(s Stats) float64 { return float64(s.Level) }},
		{Category: models.BadgeCategorySocial, Stat: func(s Stats) float64 { return float64(s.Friends) }},
	}
}

// DefaultCustomRules returns the photographer and marathon predicates.
func DefaultCustomRules(minPhotos, minDailyMissions int64) []CustomRule {
	return []CustomRule{
		{Name: RulePhotographer, Predicate: func(s Stats) bool { return s.MissionPhotos >= minPhotos }},
		{Name: RuleMarathon, Predicate: func(s Stats) bool { return s.MissionsToday >= minDailyMissions }},
	}
}

// CatalogSource lists the badge catalog of one category.
type CatalogSource interface {
	ListBadgesByCategory(ctx context.Context, category string) ([]models.Badge, error)
}

// OwnershipChecker reports whether a user already owns a badge.
type OwnershipChecker interface {
	HasUserBadge(ctx context.Context, userID, badgeID uint) (bool, error)
}

// Evaluator finds the badges a user became eligible for. It never writes.
type Evaluator struct {
	catalog   CatalogSource
	ownership OwnershipChecker
	threshold []ThresholdRule
	custom    map[string]CustomRule
	log       *logger.Logger
}

// NewEvaluator creates an evaluator over the given rules.
func NewEvaluator(catalog CatalogSource, ownership OwnershipChecker, threshold []ThresholdRule, custom []CustomRule, log *logger.Logger) *Evaluator {
	byName := make(map[string]CustomRule, len(custom))
	for _, r := range custom {
		byName[r.Name] = r
	}
	return &Evaluator{
		catalog:   catalog,
		ownership: ownership,
		threshold: threshold,
		custom:    byName,
		log:       log,
	}
}

// Evaluate returns the badges of category whose threshold is at most statValue and which the
// user does not own yet.
func (e *Evaluator) Evaluate(ctx context.Context, userID uint, category string, statValue float64) ([]models.Badge, error) {
	catalog, err := e.catalog.ListBadgesByCategory(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s badges: %w", category, err)
	}

	var eligible []models.Badge
	for _, badge := range catalog {
		if badge.Threshold > statValue {
			continue
		}
		ok, err := e.notOwned(ctx, userID, badge)
		if err != nil {
			return eligible, err
		}
		if ok {
			eligible = append(eligible, badge)
		}
	}
	return eligible, nil
}

// EvaluateSpecial returns the special badges whose named predicate holds for stats.
func (e *Evaluator) EvaluateSpecial(ctx context.Context, userID uint, stats Stats) ([]models.Badge, error) {
	catalog, err := e.catalog.ListBadgesByCategory(ctx, models.BadgeCategorySpecial)
	if err != nil {
		return nil, fmt.Errorf("failed to list special badges: %w", err)
	}

	var eligible []models.Badge
	for _, badge := range catalog {
		rule, ok := e.custom[badge.Rule]
		if !ok {
			e.log.Warn().Str("badge", badge.Name).Str("rule", badge.Rule).Msg("Special badge has no known rule")
			continue
		}
		if !rule.Predicate(stats) {
			continue
		}
		ok, err := e.notOwned(ctx, userID, badge)
		if err != nil {
			return eligible, err
		}
		if ok {
			eligible = append(eligible, badge)
		}
	}
	return eligible, nil
}

// EvaluateAll checks every category exactly once. Categories are independent: a failing
// category does not stop the others, and the partial result is returned with the joined errors.
func (e *Evaluator) EvaluateAll(ctx context.Context, userID uint, stats Stats) ([]models.Badge, error) {
	var (
		eligible []models.Badge
		errs     []error
	)

	for _, rule := range e.threshold {
		found, err := e.Evaluate(ctx, userID, rule.Category, rule.Stat(stats))
		eligible = append(eligible, found...)
		if err != nil {
			errs = append(errs, err)
		}
	}

	found, err := e.EvaluateSpecial(ctx, userID, stats)
	eligible = append(eligible, found...)
	if err != nil {
		errs = append(errs, err)
	}

	return eligible, errors.Join(errs...)
}

func (e *Evaluator) notOwned(ctx context.Context, userID uint, badge models.Badge) (bool, error) {
	owned, err := e.ownership.HasUserBadge(ctx, userID, badge.ID)
	if err != nil {
		return false, fmt.Errorf("failed to check badge %q ownership: %w", badge.Name, err)
	}
	return !owned, nil
}
