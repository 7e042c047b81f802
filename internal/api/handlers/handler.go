// Package handlers holds the gin handlers for the quiz API. Every handler
// assumes AuthRequired ran first unless it is explicitly public.
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"quizai/internal/ai"
	"quizai/internal/db"
	"quizai/internal/extract"
	"quizai/internal/logger"
	"quizai/internal/ratelimit"
	"quizai/internal/storage"
)

// UserProfile stores information about the authenticated user. It lives in
// the session cookie, so it must stay gob-encodable.
type UserProfile struct {
	DatabaseID    uuid.UUID `json:"-"`
	GoogleID      string    `json:"id"`
	Email         string    `json:"email"`
	VerifiedEmail bool      `json:"verified_email"`
	Name          string    `json:"name"`
	GivenName     string    `json:"given_name"`
	FamilyName    string    `json:"family_name"`
	Picture       string    `json:"picture"`
	Locale        string    `json:"locale"`
}

// Session keys, shared with the middleware package.
const (
	OauthStateSessionKey = "oauthstate"
	ProfileSessionKey    = "profile"
)

// Handler carries the dependencies for all API handlers.
type Handler struct {
	OauthConfig *oauth2.Config
	Store       *db.Store
	Generator   *ai.Generator
	Extractor   *extract.Extractor
	Limiter     ratelimit.Limiter
	Storage     *storage.Client
	Log         *logger.Logger
}

func NewHandler(oauth *oauth2.Config, store *db.Store, gen *ai.Generator, ext *extract.Extractor, limiter ratelimit.Limiter, stor *storage.Client, log *logger.Logger) *Handler {
	return &Handler{
		OauthConfig: oauth,
		Store:       store,
		Generator:   gen,
		Extractor:   ext,
		Limiter:     limiter,
		Storage:     stor,
		Log:         log,
	}
}

// currentUserID reads the user ID set by AuthRequired. The bool is false only
// if the middleware was skipped, which is a routing bug.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get("userID")
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
