// Package auth is the identity provider boundary: it validates a caller's
// Telegram init data and yields a stable user id. The rest of the core treats
// that id as opaque.
package auth

import (
	"net/http"
	"strings"
	"time"

	"helpboard_miniapp/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
	initdata "github.com/telegram-mini-apps/init-data-golang"
)

const expTime = 24 * time.Hour

type TelegramAuth struct {
	botToken  string
	debugMode bool
}

func NewTelegramAuth(botToken string, debugMode bool) *TelegramAuth {
	return &TelegramAuth{
		botToken:  botToken,
		debugMode: debugMode,
	}
}

type TelegramUserData struct {
	ID       int64
	Username string
	AuthDate time.Time
}

func (t *TelegramAuth) TelegramAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.Logger()

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			log.Info("missing authorization header")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header is required"})
			return
		}

		raw := strings.TrimPrefix(authHeader, "Telegram ")
		if raw == authHeader {
			log.Info("invalid authorization header format")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}

		if !t.debugMode {
			if err := initdata.Validate(raw, t.botToken, expTime); err != nil {
				log.Info("invalid telegram init data", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid telegram auth data"})
				return
			}
		}

		parsed, err := initdata.Parse(raw)
		if err != nil {
			log.Error("failed to parse telegram init data", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid telegram data"})
			return
		}

		c.Set("telegram_user", &TelegramUserData{
			ID:       parsed.User.ID,
			Username: parsed.User.Username,
			AuthDate: parsed.AuthDate(),
		})
		c.Next()
	}
}

func (t *TelegramAuth) GetBotToken() string {
	return t.botToken
}
