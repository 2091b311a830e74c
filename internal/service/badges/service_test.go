package badges

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimd54/travelquest-rewards/internal/config"
	"github.com/aimd54/travelquest-rewards/internal/models"
	"github.com/aimd54/travelquest-rewards/internal/repository"
	"github.com/aimd54/travelquest-rewards/pkg/logger"
	"github.com/aimd54/travelquest-rewards/test/mocks"
)

// Mock repositories for testing
type mockBadgeRepository struct {
	mu          sync.Mutex
	badges      map[uint]*models.Badge
	userBadges  map[uint]map[uint]bool // userID -> badgeID -> exists
	nextBadgeID uint
	listErr     map[string]error // category -> error
	insertErr   error
}

func newMockBadgeRepository() *mockBadgeRepository {
	return &mockBadgeRepository{
		badges:      make(map[uint]*models.Badge),
		userBadges:  make(map[uint]map[uint]bool),
		nextBadgeID: 1,
		listErr:     make(map[string]error),
	}
}

func (m *mockBadgeRepository) add(name, category string, threshold float64, rule string) models.Badge {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := &models.Badge{ID: m.nextBadgeID, Name: name, Category: category, Threshold: threshold, Rule: rule}
	m.badges[b.ID] = b
	m.nextBadgeID++
	return *b
}

func (m *mockBadgeRepository) give(userID, badgeID uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.userBadges[userID] == nil {
		m.userBadges[userID] = make(map[uint]bool)
	}
	m.userBadges[userID][badgeID] = true
}

func (m *mockBadgeRepository) GetBadge(_ context.Context, badgeID uint) (*models.Badge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.badges[badgeID]
	if !ok {
		return nil, fmt.Errorf("get badge: %w", repository.ErrNotFound)
	}
	cp := *b
	return &cp, nil
}

func (m *mockBadgeRepository) ListBadges(_ context.Context) ([]models.Badge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	badges := make([]models.Badge, 0, len(m.badges))
	for _, b := range m.badges {
		badges = append(badges, *b)
	}
	sort.Slice(badges, func(i, j int) bool { return badges[i].ID < badges[j].ID })
	return badges, nil
}

func (m *mockBadgeRepository) ListBadgesByCategory(ctx context.Context, category string) ([]models.Badge, error) {
	if err := m.listErr[category]; err != nil {
		return nil, err
	}
	all, _ := m.ListBadges(ctx)
	var badges []models.Badge
	for _, b := range all {
		if b.Category == category {
			badges = append(badges, b)
		}
	}
	return badges, nil
}

func (m *mockBadgeRepository) HasUserBadge(_ context.Context, userID, badgeID uint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userBadges[userID][badgeID], nil
}

func (m *mockBadgeRepository) InsertUserBadge(_ context.Context, userID, badgeID uint, _ time.Time) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.userBadges[userID][badgeID] {
		return repository.ErrConflict
	}
	if m.userBadges[userID] == nil {
		m.userBadges[userID] = make(map[uint]bool)
	}
	m.userBadges[userID][badgeID] = true
	return nil
}

func (m *mockBadgeRepository) ListUserBadges(_ context.Context, userID uint) ([]models.UserBadge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []models.UserBadge
	for badgeID := range m.userBadges[userID] {
		result = append(result, models.UserBadge{UserID: userID, BadgeID: badgeID, Badge: *m.badges[badgeID]})
	}
	return result, nil
}

func (m *mockBadgeRepository) UserOwnsBadgeNamed(_ context.Context, userID uint, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for badgeID := range m.userBadges[userID] {
		if m.badges[badgeID].Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockBadgeRepository) CountBadgeHolders(_ context.Context, badgeID uint) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := int64(0)
	for _, badges := range m.userBadges {
		if badges[badgeID] {
			count++
		}
	}
	return count, nil
}

func (m *mockBadgeRepository) ownedCount(userID uint) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.userBadges[userID])
}

type mockStatsRepository struct {
	users    map[uint]*models.User
	stats    map[uint]Stats
	titles   map[uint]string
	countErr error
	from, to time.Time
}

func newMockStatsRepository() *mockStatsRepository {
	return &mockStatsRepository{
		users:  make(map[uint]*models.User),
		stats:  make(map[uint]Stats),
		titles: make(map[uint]string),
	}
}

func (m *mockStatsRepository) GetUser(_ context.Context, userID uint) (*models.User, error) {
	if u, ok := m.users[userID]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockStatsRepository) ListUserIDs(_ context.Context) ([]uint, error) {
	ids := make([]uint, 0, len(m.users))
	for id := range m.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *mockStatsRepository) SetCustomTitle(_ context.Context, userID uint, title string) error {
	m.titles[userID] = title
	return nil
}

func (m *mockStatsRepository) CountCompletedMissions(_ context.Context, userID uint) (int64, error) {
	return m.stats[userID].CompletedMissions, m.countErr
}

func (m *mockStatsRepository) CountDistinctCities(_ context.Context, userID uint) (int64, error) {
	return m.stats[userID].DistinctCities, nil
}

func (m *mockStatsRepository) CountFriends(_ context.Context, userID uint) (int64, error) {
	return m.stats[userID].Friends, nil
}

func (m *mockStatsRepository) CountMissionPhotos(_ context.Context, userID uint) (int64, error) {
	return m.stats[userID].MissionPhotos, nil
}

func (m *mockStatsRepository) CountMissionsCompletedBetween(_ context.Context, userID uint, from, to time.Time) (int64, error) {
	m.from, m.to = from, to
	return m.stats[userID].MissionsToday, nil
}

// Test setup helper
func setupTestService() (*Service, *mockBadgeRepository, *mockStatsRepository, *mocks.RecordingDispatcher) {
	badgeRepo := newMockBadgeRepository()
	statsRepo := newMockStatsRepository()
	dispatcher := &mocks.RecordingDispatcher{}
	log := logger.New("debug", "text", "stdout")
	special := &config.SpecialBadgesConfig{PhotographerMinPhotos: 50, MarathonMinDailyMissions: 10}

	service := NewServiceWithInterfaces(badgeRepo, statsRepo, badgeRepo, special, dispatcher, time.UTC, log)

	return service, badgeRepo, statsRepo, dispatcher
}

func badgeNames(badges []models.Badge) []string {
	names := make([]string, 0, len(badges))
	for _, b := range badges {
		names = append(names, b.Name)
	}
	sort.Strings(names)
	return names
}

func TestEvaluate_Threshold(t *testing.T) {
	service, badgeRepo, _, _ := setupTestService()
	first := badgeRepo.add("First Steps", models.BadgeCategoryMissions, 1, "")
	badgeRepo.add("Explorer", models.BadgeCategoryMissions, 10, "")
	badgeRepo.add("Globetrotter", models.BadgeCategoryCities, 1, "")

	tests := []struct {
		name      string
		statValue float64
		owned     bool
		expected  []string
	}{
		{"below every threshold", 0, false, []string{}},
		{"exactly at threshold", 1, false, []string{"First Steps"}},
		{"above both thresholds", 12, false, []string{"Explorer", "First Steps"}},
		{"owned badges excluded", 12, true, []string{"Explorer"}},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userID := uint(100 + i)
			if tt.owned {
				badgeRepo.give(userID, first.ID)
			}
			found, err := service.Evaluator().Evaluate(context.Background(), userID, models.BadgeCategoryMissions, tt.statValue)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, badgeNames(found))
		})
	}
}

func TestEvaluateSpecial(t *testing.T) {
	service, badgeRepo, _, _ := setupTestService()
	badgeRepo.add("Photographer", models.BadgeCategorySpecial, 0, RulePhotographer)
	badgeRepo.add("Marathon", models.BadgeCategorySpecial, 0, RuleMarathon)
	badgeRepo.add("Mystery", models.BadgeCategorySpecial, 0, "unknown_rule")

	tests := []struct {
		name     string
		stats    Stats
		expected []string
	}{
		{"nothing", Stats{MissionPhotos: 49, MissionsToday: 9}, []string{}},
		{"photographer", Stats{MissionPhotos: 50}, []string{"Photographer"}},
		{"marathon", Stats{MissionsToday: 10}, []string{"Marathon"}},
		{"both", Stats{MissionPhotos: 80, MissionsToday: 12}, []string{"Marathon", "Photographer"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, err := service.Evaluator().EvaluateSpecial(context.Background(), 1, tt.stats)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, badgeNames(found))
		})
	}
}

func TestEvaluateAll_EveryCategory(t *testing.T) {
	service, badgeRepo, _, _ := setupTestService()
	badgeRepo.add("First Steps", models.BadgeCategoryMissions, 1, "")
	badgeRepo.add("Globetrotter", models.BadgeCategoryCities, 3, "")
	badgeRepo.add("Rising Star", models.BadgeCategoryLevel, 5, "")
	badgeRepo.add("Sociable", models.BadgeCategorySocial, 5, "")
	badgeRepo.add("Photographer", models.BadgeCategorySpecial, 0, RulePhotographer)

	stats := Stats{CompletedMissions: 1, DistinctCities: 3, Level: 4, Friends: 5, MissionPhotos: 50}

	found, err := service.EvaluateAll(context.Background(), 1, stats)
	require.NoError(t, err)
	assert.Equal(t, []string{"First Steps", "Globetrotter", "Photographer", "Sociable"}, badgeNames(found))
}

func TestEvaluateAll_CategoryFailureIsIsolated(t *testing.T) {
	service, badgeRepo, _, _ := setupTestService()
	badgeRepo.add("First Steps", models.BadgeCategoryMissions, 1, "")
	badgeRepo.add("Globetrotter", models.BadgeCategoryCities, 1, "")
	badgeRepo.listErr[models.BadgeCategoryMissions] = repository.ErrUnavailable

	found, err := service.EvaluateAll(context.Background(), 1, Stats{CompletedMissions: 5, DistinctCities: 5})

	require.Error(t, err)
	assert.True(t, errors.Is(err, repository.ErrUnavailable))
	assert.Equal(t, []string{"Globetrotter"}, badgeNames(found))
}

func TestEvaluateAll_OrderIndependent(t *testing.T) {
	service, badgeRepo, _, _ := setupTestService()
	badgeRepo.add("First Steps", models.BadgeCategoryMissions, 1, "")
	badgeRepo.add("Globetrotter", models.BadgeCategoryCities, 1, "")
	badgeRepo.add("Rising Star", models.BadgeCategoryLevel, 2, "")
	stats := Stats{CompletedMissions: 1, DistinctCities: 1, Level: 2}

	forward, err := service.EvaluateAll(context.Background(), 1, stats)
	require.NoError(t, err)

	rules := DefaultThresholdRules()
	for i, j := 0, len(rules)-1; i < j; i, j = i+1, j-1 {
		rules[i], rules[j] = rules[j], rules[i]
	}
	reversed := NewEvaluator(badgeRepo, badgeRepo, rules, DefaultCustomRules(50, 10), logger.Nop())
	backward, err := reversed.EvaluateAll(context.Background(), 1, stats)
	require.NoError(t, err)

	assert.Equal(t, badgeNames(forward), badgeNames(backward))
}

func TestUnlock_IsIdempotent(t *testing.T) {
	service, badgeRepo, _, _ := setupTestService()
	badgeRepo.add("First Steps", models.BadgeCategoryMissions, 1, "")
	ctx := context.Background()
	stats := Stats{CompletedMissions: 1}

	candidates, err := service.EvaluateAll(ctx, 1, stats)
	require.NoError(t, err)
	unlocked, err := service.Unlock(ctx, 1, candidates)
	require.NoError(t, err)
	assert.Len(t, unlocked, 1)

	// Re-unlocking the same candidates hits the conflict path and is swallowed.
	unlocked, err = service.Unlock(ctx, 1, candidates)
	require.NoError(t, err)
	assert.Empty(t, unlocked)
	assert.Equal(t, 1, badgeRepo.ownedCount(1))

	// A second evaluation finds nothing new.
	candidates, err = service.EvaluateAll(ctx, 1, stats)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestUnlock_StoreFailure(t *testing.T) {
	service, badgeRepo, _, _ := setupTestService()
	badge := badgeRepo.add("First Steps", models.BadgeCategoryMissions, 1, "")
	badgeRepo.insertErr = repository.ErrUnavailable

	unlocked, err := service.Unlock(context.Background(), 1, []models.Badge{badge})

	assert.Empty(t, unlocked)
	assert.True(t, errors.Is(err, repository.ErrUnavailable))
}

func TestCollectStats(t *testing.T) {
	service, _, statsRepo, _ := setupTestService()
	statsRepo.stats[1] = Stats{CompletedMissions: 4, DistinctCities: 2, Friends: 3, MissionPhotos: 7, MissionsToday: 2}
	service.now = func() time.Time { return time.Date(2025, 6, 1, 15, 30, 0, 0, time.UTC) }

	stats, err := service.CollectStats(context.Background(), 1, 3)
	require.NoError(t, err)

	assert.Equal(t, Stats{CompletedMissions: 4, DistinctCities: 2, Level: 3, Friends: 3, MissionPhotos: 7, MissionsToday: 2}, stats)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), statsRepo.from)
	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), statsRepo.to)

	statsRepo.countErr = repository.ErrUnavailable
	_, err = service.CollectStats(context.Background(), 1, 3)
	assert.True(t, errors.Is(err, repository.ErrUnavailable))
}

func TestDayBounds_Timezone(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	// 23:30 UTC is already the next day at UTC+2.
	from, to := dayBounds(time.Date(2025, 6, 1, 23, 30, 0, 0, time.UTC), loc)

	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, loc), from)
	assert.Equal(t, 24*time.Hour, to.Sub(from))
}

func TestSetCustomTitle(t *testing.T) {
	service, badgeRepo, statsRepo, _ := setupTestService()
	statsRepo.users[1] = &models.User{ID: 1, Level: 1}
	badge := badgeRepo.add("Explorer", models.BadgeCategoryMissions, 10, "")
	badgeRepo.give(1, badge.ID)
	ctx := context.Background()

	require.NoError(t, service.SetCustomTitle(ctx, 1, "Explorer"))
	assert.Equal(t, "Explorer", statsRepo.titles[1])

	err := service.SetCustomTitle(ctx, 1, "Veteran")
	assert.ErrorIs(t, err, ErrBadgeNotOwned)
	assert.Equal(t, "Explorer", statsRepo.titles[1])

	require.NoError(t, service.SetCustomTitle(ctx, 1, ""))
	assert.Equal(t, "", statsRepo.titles[1])

	err = service.SetCustomTitle(ctx, 99, "Explorer")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSweepAllUsers(t *testing.T) {
	service, badgeRepo, statsRepo, dispatcher := setupTestService()
	badgeRepo.add("First Steps", models.BadgeCategoryMissions, 1, "")
	badgeRepo.add("Rising Star", models.BadgeCategoryLevel, 5, "")
	statsRepo.users[1] = &models.User{ID: 1, Level: 5}
	statsRepo.users[2] = &models.User{ID: 2, Level: 1}
	statsRepo.stats[1] = Stats{CompletedMissions: 3}

	count, err := service.SweepAllUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, []string{models.NotificationBadgeEarned, models.NotificationBadgeEarned}, dispatcher.Kinds())

	// Nothing new on the next run.
	count, err = service.SweepAllUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSweepAllUsers_ReportsFailures(t *testing.T) {
	service, _, statsRepo, _ := setupTestService()
	statsRepo.users[1] = &models.User{ID: 1, Level: 1}
	statsRepo.countErr = repository.ErrUnavailable

	_, err := service.SweepAllUsers(context.Background())
	assert.Error(t, err)
}

func TestCatalogAndUserBadges(t *testing.T) {
	service, badgeRepo, statsRepo, _ := setupTestService()
	statsRepo.users[1] = &models.User{ID: 1}
	first := badgeRepo.add("First Steps", models.BadgeCategoryMissions, 1, "")
	badgeRepo.add("Explorer", models.BadgeCategoryMissions, 10, "")
	badgeRepo.give(1, first.ID)
	ctx := context.Background()

	catalog, err := service.Catalog(ctx)
	require.NoError(t, err)
	assert.Len(t, catalog, 2)

	owned, err := service.UserBadges(ctx, 1)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, "First Steps", owned[0].Badge.Name)

	_, err = service.UserBadges(ctx, 42)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	badge, holders, err := service.Badge(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "First Steps", badge.Name)
	assert.Equal(t, int64(1), holders)

	_, _, err = service.Badge(ctx, 999)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
