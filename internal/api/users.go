package api

import (
	"net/http"
	"strconv"
	"time"

	"helpboard_miniapp/internal/model"
	"helpboard_miniapp/internal/service"
	"helpboard_miniapp/pkg/auth"
	"helpboard_miniapp/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
)

type userRoutes struct {
	us service.UserServiceI
	a  *auth.TelegramAuth
}

func NewUserRoutes(handler *gin.RouterGroup, us service.UserServiceI, a *auth.TelegramAuth) {
	r := &userRoutes{us: us, a: a}
	h := handler.Group("/users")
	h.Use(a.TelegramAuthMiddleware())
	{
		h.POST("/", r.RegisterUser)
		h.GET("/:telegram_id", r.GetUserByTelegramID)
		h.GET("/:telegram_id/stats", r.GetUserStats)
	}
}

type RegisterUserRequest struct {
	Handle string `json:"handle"`
}

type RegisterUserResponse struct {
	TelegramID int64  `json:"telegram_id"`
	Handle     string `json:"handle"`
}

func (r *userRoutes) RegisterUser(c *gin.Context) {
	log := logger.Logger()

	var req RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	userData, exists := c.Get("telegram_user")
	if !exists {
		log.Error("telegram user data not found in context")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	user, ok := userData.(*auth.TelegramUserData)
	if !ok {
		log.Error("invalid type assertion for telegram user data")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	u := &model.User{
		TelegramID:       user.ID,
		Handle:           req.Handle,
		Username:         user.Username,
		RegistrationDate: user.AuthDate,
		AuthDate:         user.AuthDate,
	}

	err := r.us.RegisterUser(c.Request.Context(), u)
	if err != nil {
		log.Error("failed to register user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register user"})
		return
	}

	out := RegisterUserResponse{
		TelegramID: u.TelegramID,
		Handle:     u.Handle,
	}

	c.JSON(http.StatusCreated, out)
}

func parseTelegramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("telegram_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid telegram_id"})
		return 0, false
	}
	return id, true
}

func (r *userRoutes) GetUserByTelegramID(c *gin.Context) {
	log := logger.Logger()

	id, ok := parseTelegramID(c)
	if !ok {
		return
	}

	user, err := r.us.GetUserByTelegramID(c.Request.Context(), id)
	if err != nil {
		log.Error("failed to get user", zap.Error(err))
		c.JSON(http.StatusNotFound, gin.H{"error": "no user associated with the provided telegram_id"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"telegram_id":       user.TelegramID,
		"handle":            user.Handle,
		"username":          user.Username,
		"points":            user.Points,
		"badges":            user.Badges,
		"registration_date": user.RegistrationDate,
		"auth_date":         user.AuthDate,
	})
}

type badgeResponse struct {
	ID        string    `json:"id"`
	AwardedAt time.Time `json:"awarded_at"`
}

func (r *userRoutes) GetUserStats(c *gin.Context) {
	log := logger.Logger()

	id, ok := parseTelegramID(c)
	if !ok {
		return
	}

	stats, err := r.us.GetUserStats(c.Request.Context(), id)
	if err != nil {
		log.Error("failed to get user stats", zap.Error(err))
		c.JSON(http.StatusNotFound, gin.H{"error": "no user associated with the provided telegram_id"})
		return
	}

	badges := make([]badgeResponse, len(stats.Badges))
	for i, b := range stats.Badges {
		badges[i] = badgeResponse{ID: b.ID, AwardedAt: b.AwardedAt}
	}

	c.JSON(http.StatusOK, gin.H{
		"telegram_id":          stats.TelegramID,
		"username":             stats.Username,
		"points":               stats.Points,
		"requests_completed":   stats.Helper.CompletedRequests,
		"five_star_ratings":    stats.Helper.FiveStarRatings,
		"early_completions":    stats.Helper.EarlyCompletions,
		"critical_completions": stats.Helper.CriticalCompletions,
		"distinct_categories":  stats.Helper.DistinctCategories,
		"badges":               badges,
	})
}
