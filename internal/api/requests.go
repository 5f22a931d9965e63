package api

import (
	"errors"
	"net/http"
	"time"

	"helpboard_miniapp/internal/model"
	"helpboard_miniapp/internal/service"
	"helpboard_miniapp/pkg/auth"
	"helpboard_miniapp/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type requestRoutes struct {
	rs service.RequestServiceI
	a  *auth.TelegramAuth
}

func NewRequestRoutes(handler *gin.RouterGroup, rs service.RequestServiceI, a *auth.TelegramAuth) {
	r := &requestRoutes{rs: rs, a: a}
	h := handler.Group("/requests")
	h.Use(a.TelegramAuthMiddleware())
	{
		h.POST("/", r.CreateRequest)
		h.GET("/", r.ListRequests)
		h.GET("/:id", r.GetRequest)
		h.POST("/:id/accept", r.AcceptRequest)
		h.POST("/:id/complete", r.ConfirmCompletion)
		h.POST("/:id/cancel", r.CancelRequest)
	}
}

// statusFromErr maps the typed service outcomes onto HTTP. Losing the accept
// race and state conflicts are 409s, distinct from 404 and 403.
func statusFromErr(err error) int {
	switch {
	case errors.Is(err, service.ErrRequestNotFound), errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrForbidden), errors.Is(err, service.ErrSelfAccept):
		return http.StatusForbidden
	case errors.Is(err, service.ErrAlreadyAccepted),
		errors.Is(err, service.ErrConflict),
		errors.Is(err, service.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidRating):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrStoreUnavailable):
		// Transient: the client may retry with backoff; a retried accept
		// or completion is safe by idempotency key.
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func callerID(c *gin.Context) (int64, bool) {
	log := logger.Logger()

	userData, exists := c.Get("telegram_user")
	if !exists {
		log.Error("telegram user data not found in context")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return 0, false
	}

	user, ok := userData.(*auth.TelegramUserData)
	if !ok {
		log.Error("invalid type assertion for telegram user data")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return 0, false
	}

	return user.ID, true
}

func requestID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
		return uuid.Nil, false
	}
	return id, true
}

type requestResponse struct {
	ID             uuid.UUID  `json:"id"`
	RequesterID    int64      `json:"requester_id"`
	AcceptedBy     *int64     `json:"accepted_by,omitempty"`
	Status         string     `json:"status"`
	Category       string     `json:"category"`
	Urgency        string     `json:"urgency"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	CreatedAt      time.Time  `json:"created_at"`
	AcceptedAt     *time.Time `json:"accepted_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	DeadlineHint   *time.Time `json:"deadline_hint,omitempty"`
	Rating         *int       `json:"rating,omitempty"`
	CompletedEarly bool       `json:"completed_early"`
	CancelReason   *string    `json:"cancel_reason,omitempty"`
	Version        int64      `json:"version"`
}

func toRequestResponse(req *model.HelpRequest) requestResponse {
	return requestResponse{
		ID:             req.ID,
		RequesterID:    req.RequesterID,
		AcceptedBy:     req.AcceptedBy,
		Status:         string(req.Status),
		Category:       req.Category,
		Urgency:        string(req.Urgency),
		Title:          req.Title,
		Description:    req.Description,
		CreatedAt:      req.CreatedAt,
		AcceptedAt:     req.AcceptedAt,
		CompletedAt:    req.CompletedAt,
		DeadlineHint:   req.DeadlineHint,
		Rating:         req.Rating,
		CompletedEarly: req.CompletedEarly,
		CancelReason:   req.CancelReason,
		Version:        req.Version,
	}
}

type CreateRequestBody struct {
	Category     string     `json:"category"`
	Urgency      string     `json:"urgency"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	DeadlineHint *time.Time `json:"deadline_hint"`
}

func (r *requestRoutes) CreateRequest(c *gin.Context) {
	log := logger.Logger()

	actorID, ok := callerID(c)
	if !ok {
		return
	}

	var body CreateRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	req, err := r.rs.Create(c.Request.Context(), &service.CreateRequestInput{
		RequesterID:  actorID,
		Category:     body.Category,
		Urgency:      model.Urgency(body.Urgency),
		Title:        body.Title,
		Description:  body.Description,
		DeadlineHint: body.DeadlineHint,
	})
	if err != nil {
		log.Error("failed to create help request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, toRequestResponse(req))
}

func (r *requestRoutes) ListRequests(c *gin.Context) {
	log := logger.Logger()

	actorID, ok := callerID(c)
	if !ok {
		return
	}

	if c.Query("mine") == "true" {
		requests, err := r.rs.ListForUser(c.Request.Context(), actorID)
		if err != nil {
			log.Error("failed to list user requests", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list requests"})
			return
		}
		c.JSON(http.StatusOK, toRequestList(requests))
		return
	}

	requests, err := r.rs.ListOpen(c.Request.Context(), c.Query("category"), 100)
	if err != nil {
		log.Error("failed to list open requests", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list requests"})
		return
	}

	c.JSON(http.StatusOK, toRequestList(requests))
}

func toRequestList(requests []*model.HelpRequest) []requestResponse {
	out := make([]requestResponse, len(requests))
	for i, req := range requests {
		out[i] = toRequestResponse(req)
	}
	return out
}

func (r *requestRoutes) GetRequest(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}

	req, err := r.rs.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusFromErr(err), gin.H{"error": "no request with the provided id"})
		return
	}

	c.JSON(http.StatusOK, toRequestResponse(req))
}

func (r *requestRoutes) AcceptRequest(c *gin.Context) {
	log := logger.Logger()

	actorID, ok := callerID(c)
	if !ok {
		return
	}

	id, ok := requestID(c)
	if !ok {
		return
	}

	req, err := r.rs.Accept(c.Request.Context(), id, actorID)
	if err != nil {
		if errors.Is(err, service.ErrAlreadyAccepted) {
			// Expected under contention, not an error condition.
			log.Info("accept lost race",
				zap.String("request_id", id.String()), zap.Int64("helper_id", actorID))
			c.JSON(http.StatusConflict, gin.H{"error": "this request was just taken by someone else"})
			return
		}
		log.Error("failed to accept request", zap.Error(err))
		c.JSON(statusFromErr(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, toRequestResponse(req))
}

type ConfirmCompletionBody struct {
	Rating         int  `json:"rating"`
	CompletedEarly bool `json:"completed_early"`
}

func (r *requestRoutes) ConfirmCompletion(c *gin.Context) {
	log := logger.Logger()

	actorID, ok := callerID(c)
	if !ok {
		return
	}

	id, ok := requestID(c)
	if !ok {
		return
	}

	var body ConfirmCompletionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	req, err := r.rs.ConfirmCompletion(c.Request.Context(), id, actorID, body.Rating, body.CompletedEarly)
	if err != nil {
		log.Error("failed to confirm completion", zap.Error(err))
		c.JSON(statusFromErr(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, toRequestResponse(req))
}

type CancelRequestBody struct {
	Reason string `json:"reason"`
}

func (r *requestRoutes) CancelRequest(c *gin.Context) {
	log := logger.Logger()

	actorID, ok := callerID(c)
	if !ok {
		return
	}

	id, ok := requestID(c)
	if !ok {
		return
	}

	var body CancelRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	req, err := r.rs.Cancel(c.Request.Context(), id, actorID, body.Reason)
	if err != nil {
		log.Error("failed to cancel request", zap.Error(err))
		c.JSON(statusFromErr(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, toRequestResponse(req))
}
