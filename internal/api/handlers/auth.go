package handlers

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"os"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"quizai/internal/logger"
	"quizai/internal/models"
)

// HandleGoogleLogin starts the OAuth flow with a random state nonce bound to
// the session.
func (h *Handler) HandleGoogleLogin(c *gin.Context) {
	session := sessions.Default(c)

	stateBytes := make([]byte, 16)
	if _, err := rand.Read(stateBytes); err != nil {
		h.Log.Error("failed to generate oauth state", "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to start login"})
		return
	}
	state := base64.URLEncoding.EncodeToString(stateBytes)

	session.Set(OauthStateSessionKey, state)
	if err := session.Save(); err != nil {
		h.Log.Error("failed to save session", "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to start login"})
		return
	}

	c.Redirect(http.StatusTemporaryRedirect, h.OauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline))
}

// HandleGoogleCallback completes the OAuth flow, upserts the user and stores
// the profile in the session.
func (h *Handler) HandleGoogleCallback(c *gin.Context) {
	session := sessions.Default(c)
	storedState := session.Get(OauthStateSessionKey)
	queryState := c.Query("state")

	if queryState == "" || storedState == nil || storedState.(string) != queryState {
		h.Log.Warn("oauth state mismatch")
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Invalid state parameter"})
		return
	}

	ctx := c.Request.Context()
	token, err := h.OauthConfig.Exchange(ctx, c.Query("code"))
	if err != nil {
		h.Log.Error("oauth code exchange failed", "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to exchange code"})
		return
	}
	if !token.Valid() {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Retrieved invalid token"})
		return
	}

	client := h.OauthConfig.Client(ctx, token)
	svc, err := oauth2api.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		h.Log.Error("failed to create oauth2 service", "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to fetch user info"})
		return
	}
	userinfo, err := svc.Userinfo.V2.Me.Get().Do()
	if err != nil {
		h.Log.Error("failed to fetch user info", "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to fetch user info"})
		return
	}

	user, err := h.Store.UpsertUserByGoogleID(ctx, userinfo.Id, userinfo.Email, userinfo.Name, userinfo.Picture)
	if err != nil {
		h.Log.Error("failed to upsert user", "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to save user profile"})
		return
	}

	h.Log.Security(logger.EventAuthLogin, "userId", user.ID.String())

	profile := UserProfile{
		DatabaseID:    user.ID,
		GoogleID:      userinfo.Id,
		Email:         userinfo.Email,
		VerifiedEmail: userinfo.VerifiedEmail != nil && *userinfo.VerifiedEmail,
		Name:          userinfo.Name,
		GivenName:     userinfo.GivenName,
		FamilyName:    userinfo.FamilyName,
		Picture:       userinfo.Picture,
		Locale:        userinfo.Locale,
	}

	session.Set(ProfileSessionKey, profile)
	session.Delete(OauthStateSessionKey)
	if err := session.Save(); err != nil {
		h.Log.Error("failed to save session after login", "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to save session"})
		return
	}

	frontendURL := os.Getenv("FRONTEND_URL")
	if frontendURL == "" {
		frontendURL = "/"
	}
	c.Redirect(http.StatusTemporaryRedirect, frontendURL)
}

// HandleAuthStatus reports whether the caller has a valid session.
func (h *Handler) HandleAuthStatus(c *gin.Context) {
	session := sessions.Default(c)
	profile, ok := session.Get(ProfileSessionKey).(UserProfile)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"authenticated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": true, "user": profile})
}

// HandleUserProfile returns the authenticated user's profile.
func (h *Handler) HandleUserProfile(c *gin.Context) {
	session := sessions.Default(c)
	profile, ok := session.Get(ProfileSessionKey).(UserProfile)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Not authenticated"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

// HandleLogout clears the session.
func (h *Handler) HandleLogout(c *gin.Context) {
	userID, _ := currentUserID(c)

	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{MaxAge: -1})
	if err := session.Save(); err != nil {
		h.Log.Error("failed to clear session", "error", err)
	}

	h.Log.Security(logger.EventAuthLogout, "userId", userID.String())
	c.Status(http.StatusOK)
}
