// Package missions provides the REST API for mission settlement, badges, and progression.
package missions

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aimd54/travelquest-rewards/internal/models"
	"github.com/aimd54/travelquest-rewards/internal/repository"
	"github.com/aimd54/travelquest-rewards/internal/service/badges"
	"github.com/aimd54/travelquest-rewards/internal/service/leaderboard"
	"github.com/aimd54/travelquest-rewards/internal/service/settlement"
	"github.com/aimd54/travelquest-rewards/pkg/logger"
)

// UserIDHeader carries the authenticated acting user, set by the upstream auth proxy.
const UserIDHeader = "X-User-ID"

// SettlementService interface for mission settlement.
type SettlementService interface {
	CompleteMission(ctx context.Context, missionID, actingUserID uint) (*settlement.Result, error)
}

// BadgeService interface for badge operations.
type BadgeService interface {
	Catalog(ctx context.Context) ([]models.Badge, error)
	Badge(ctx context.Context, badgeID uint) (*models.Badge, int64, error)
	UserBadges(ctx context.Context, userID uint) ([]models.UserBadge, error)
	SetCustomTitle(ctx context.Context, userID uint, title string) error
}

// LeaderboardService interface for leaderboard operations.
type LeaderboardService interface {
	Top(ctx context.Context, limit int) ([]leaderboard.Entry, error)
	GetUserStats(ctx context.Context, userID uint) (*leaderboard.UserStats, error)
}

// NotificationStore interface for the in-app inbox.
type NotificationStore interface {
	ListUnreadNotifications(ctx context.Context, userID uint, limit int) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, notificationID uint) error
}

// Handler handles mission API requests.
type Handler struct {
	settlementService  SettlementService
	badgeService       BadgeService
	leaderboardService LeaderboardService
	notifications      NotificationStore
	log                *logger.Logger
}

// NewHandler creates a new mission API handler.
func NewHandler(
	settlementService *settlement.Service,
	badgeService *badges.Service,
	leaderboardService *leaderboard.Service,
	gw *repository.Gateway,
	log *logger.Logger,
) *Handler {
	return NewHandlerWithInterfaces(settlementService, badgeService, leaderboardService, gw, log)
}

// NewHandlerWithInterfaces creates a new handler with interface dependencies (useful for testing).
func NewHandlerWithInterfaces(
	settlementService SettlementService,
	badgeService BadgeService,
	leaderboardService LeaderboardService,
	notifications NotificationStore,
	log *logger.Logger,
) *Handler {
	return &Handler{
		settlementService:  settlementService,
		badgeService:       badgeService,
		leaderboardService: leaderboardService,
		notifications:      notifications,
		log:                log.Component("api"),
	}
}

// CompleteMission settles a mission for the acting user.
// POST /api/v1/missions/:id/complete.
func (h *Handler) CompleteMission(c *gin.Context) {
	actingUserID, ok := h.actingUser(c)
	if !ok {
		return
	}

	missionID, err := parseID(c, "id", "mission")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.settlementService.CompleteMission(c.Request.Context(), missionID, actingUserID)
	if err != nil {
		status, message := settlementErrorStatus(err)
		if status >= http.StatusInternalServerError {
			h.log.Error().Err(err).Uint("mission_id", missionID).Uint("user_id", actingUserID).Msg("Mission settlement failed")
		}
		h.errorResponse(c, status, message)
		return
	}

	c.JSON(http.StatusOK, result)
}

// settlementErrorStatus maps a settlement error onto an HTTP status and client message.
func settlementErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, settlement.ErrNotFound):
		return http.StatusNotFound, "mission not found"
	case errors.Is(err, settlement.ErrForbidden):
		return http.StatusForbidden, "mission does not belong to the acting user"
	case errors.Is(err, settlement.ErrAlreadyCompleted):
		return http.StatusConflict, "already completed"
	case errors.Is(err, settlement.ErrStoreUnavailable),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "store unavailable, retry later"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// GetBadgeCatalog returns every badge.
// GET /api/v1/badges.
func (h *Handler) GetBadgeCatalog(c *gin.Context) {
	catalog, err := h.badgeService.Catalog(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get badge catalog")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve badge catalog")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"badges":       catalog,
		"total_badges": len(catalog),
		"generated_at": time.Now().UTC(),
	})
}

// GetBadge returns a single catalog entry with its holder count.
// GET /api/v1/badges/:id.
func (h *Handler) GetBadge(c *gin.Context) {
	badgeID, err := parseID(c, "id", "badge")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	badge, holders, err := h.badgeService.Badge(c.Request.Context(), badgeID)
	if err != nil {
		h.storeErrorResponse(c, err, "badge", "Failed to retrieve badge")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"badge":   badge,
		"holders": holders,
	})
}

// GetUserBadges returns the badges a user owns.
// GET /api/v1/users/:id/badges.
func (h *Handler) GetUserBadges(c *gin.Context) {
	userID, err := parseID(c, "id", "user")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	userBadges, err := h.badgeService.UserBadges(c.Request.Context(), userID)
	if err != nil {
		h.storeErrorResponse(c, err, "user", "Failed to retrieve user badges")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":      userID,
		"badges":       userBadges,
		"total_badges": len(userBadges),
		"generated_at": time.Now().UTC(),
	})
}

type titleRequest struct {
	Title string `json:"title"`
}

// SetUserTitle sets the display title of the acting user.
// PUT /api/v1/users/:id/title.
func (h *Handler) SetUserTitle(c *gin.Context) {
	actingUserID, ok := h.actingUser(c)
	if !ok {
		return
	}

	userID, err := parseID(c, "id", "user")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if userID != actingUserID {
		h.errorResponse(c, http.StatusForbidden, "cannot change another user's title")
		return
	}

	var req titleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}

	err = h.badgeService.SetCustomTitle(c.Request.Context(), userID, req.Title)
	if errors.Is(err, badges.ErrBadgeNotOwned) {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.storeErrorResponse(c, err, "user", "Failed to update title")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id": userID,
		"title":   req.Title,
	})
}

// GetUserStats returns the progression of a user.
// GET /api/v1/users/:id/stats.
func (h *Handler) GetUserStats(c *gin.Context) {
	userID, err := parseID(c, "id", "user")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	stats, err := h.leaderboardService.GetUserStats(c.Request.Context(), userID)
	if err != nil {
		h.storeErrorResponse(c, err, "user", "Failed to retrieve user statistics")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stats":        stats,
		"generated_at": time.Now().UTC(),
	})
}

// GetLeaderboard returns the users with the most points.
// GET /api/v1/leaderboard?limit=10.
func (h *Handler) GetLeaderboard(c *gin.Context) {
	limit, err := parseLimit(c, leaderboard.DefaultLimit, leaderboard.MaxLimit)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.leaderboardService.Top(c.Request.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get leaderboard")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve leaderboard")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"leaderboard":   entries,
		"total_entries": len(entries),
		"generated_at":  time.Now().UTC(),
	})
}

// GetNotifications returns the unread notifications of the acting user.
// GET /api/v1/users/:id/notifications?limit=50.
func (h *Handler) GetNotifications(c *gin.Context) {
	userID, ok := h.ownUser(c)
	if !ok {
		return
	}

	limit, err := parseLimit(c, 50, 200)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	items, err := h.notifications.ListUnreadNotifications(c.Request.Context(), userID, limit)
	if err != nil {
		h.storeErrorResponse(c, err, "user", "Failed to retrieve notifications")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": items,
		"total_unread":  len(items),
	})
}

// MarkNotificationRead marks one notification of the acting user as read.
// POST /api/v1/users/:id/notifications/:notificationId/read.
func (h *Handler) MarkNotificationRead(c *gin.Context) {
	userID, ok := h.ownUser(c)
	if !ok {
		return
	}

	notificationID, err := parseID(c, "notificationId", "notification")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.notifications.MarkNotificationRead(c.Request.Context(), userID, notificationID); err != nil {
		h.storeErrorResponse(c, err, "notification", "Failed to update notification")
		return
	}
	c.Status(http.StatusNoContent)
}

// Helper functions

// actingUser reads the acting user from the auth header, answering 401/400 when it is unusable.
func (h *Handler) actingUser(c *gin.Context) (uint, bool) {
	raw := c.GetHeader(UserIDHeader)
	if raw == "" {
		h.errorResponse(c, http.StatusUnauthorized, "missing "+UserIDHeader+" header")
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		h.errorResponse(c, http.StatusBadRequest, "invalid "+UserIDHeader+" header")
		return 0, false
	}
	return uint(id), true
}

// ownUser returns the :id path user when it is the acting user.
func (h *Handler) ownUser(c *gin.Context) (uint, bool) {
	actingUserID, ok := h.actingUser(c)
	if !ok {
		return 0, false
	}
	userID, err := parseID(c, "id", "user")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return 0, false
	}
	if userID != actingUserID {
		h.errorResponse(c, http.StatusForbidden, "cannot access another user's notifications")
		return 0, false
	}
	return userID, true
}

// storeErrorResponse answers 404 for missing rows, 503 for store outages, and 500 otherwise.
func (h *Handler) storeErrorResponse(c *gin.Context, err error, entity, message string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		h.errorResponse(c, http.StatusNotFound, entity+" not found")
	case errors.Is(err, repository.ErrUnavailable):
		h.log.Error().Err(err).Msg(message)
		h.errorResponse(c, http.StatusServiceUnavailable, "store unavailable, retry later")
	default:
		h.log.Error().Err(err).Msg(message)
		h.errorResponse(c, http.StatusInternalServerError, message)
	}
}

// parseID extracts and validates a numeric ID from the URL parameter.
func parseID(c *gin.Context, param, entity string) (uint, error) {
	idStr := c.Param(param)
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s ID: %s", entity, idStr)
	}
	return uint(id), nil
}

// parseLimit extracts and validates the limit query parameter.
func parseLimit(c *gin.Context, defaultLimit, maxLimit int) (int, error) {
	limitStr := c.Query("limit")
	if limitStr == "" {
		return defaultLimit, nil
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return 0, fmt.Errorf("invalid limit parameter: %s", limitStr)
	}
	if limit < 1 {
		return 0, fmt.Errorf("limit must be greater than 0")
	}
	if limit > maxLimit {
		return 0, fmt.Errorf("limit cannot exceed %d", maxLimit)
	}
	return limit, nil
}

// errorResponse sends a standardized error response.
func (h *Handler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":     message,
		"timestamp": time.Now().UTC(),
	})
}
