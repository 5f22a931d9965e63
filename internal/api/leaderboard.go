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

type leaderboardRoutes struct {
	ls service.LeaderboardServiceI
	a  *auth.TelegramAuth
}

func NewLeaderboardRoutes(handler *gin.RouterGroup, ls service.LeaderboardServiceI, a *auth.TelegramAuth) {
	r := &leaderboardRoutes{ls: ls, a: a}
	h := handler.Group("/leaderboard")
	h.Use(a.TelegramAuthMiddleware())
	{
		h.GET("/", r.GetLeaderboard)
		h.GET("/rank/:telegram_id", r.GetUserRank)
	}
}

func parseTimeframe(c *gin.Context) model.Timeframe {
	timeframe := model.Timeframe(c.DefaultQuery("timeframe", string(model.TimeframeAllTime)))
	if !timeframe.Valid() {
		return ""
	}
	return timeframe
}

type leaderboardEntryResponse struct {
	Rank              int    `json:"rank"`
	TelegramID        int64  `json:"telegram_id"`
	Username          string `json:"username"`
	Points            int    `json:"points"`
	RequestsCompleted int    `json:"requests_completed"`
}

type leaderboardResponse struct {
	Timeframe string                     `json:"timeframe"`
	Entries   []leaderboardEntryResponse `json:"entries"`
	UpdatedAt time.Time                  `json:"updated_at"`
}

func (r *leaderboardRoutes) GetLeaderboard(c *gin.Context) {
	log := logger.Logger()

	timeframe := parseTimeframe(c)
	if timeframe == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "timeframe must be one of: all, month, week"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	board, err := r.ls.Get(c.Request.Context(), timeframe, limit)
	if err != nil {
		log.Error("failed to get leaderboard", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get leaderboard"})
		return
	}

	entries := make([]leaderboardEntryResponse, len(board.Rows))
	for i, row := range board.Rows {
		entries[i] = leaderboardEntryResponse{
			Rank:              i + 1,
			TelegramID:        row.TelegramID,
			Username:          row.Username,
			Points:            row.Points,
			RequestsCompleted: row.CompletedInWindow,
		}
	}

	c.JSON(http.StatusOK, leaderboardResponse{
		Timeframe: string(board.Timeframe),
		Entries:   entries,
		UpdatedAt: board.UpdatedAt,
	})
}

func (r *leaderboardRoutes) GetUserRank(c *gin.Context) {
	log := logger.Logger()

	timeframe := parseTimeframe(c)
	if timeframe == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "timeframe must be one of: all, month, week"})
		return
	}

	id, ok := parseTelegramID(c)
	if !ok {
		return
	}

	rank, err := r.ls.RankOf(c.Request.Context(), id, timeframe)
	if err != nil {
		log.Error("failed to get user rank", zap.Error(err))
		c.JSON(http.StatusNotFound, gin.H{"error": "no points recorded for this user in the window"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"telegram_id": rank.TelegramID,
		"timeframe":   string(rank.Timeframe),
		"rank":        rank.Rank,
		"points":      rank.Points,
	})
}
