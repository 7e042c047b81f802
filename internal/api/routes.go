// Package api wires gin routes, middleware and handlers together.
package api

import (
	"github.com/gin-gonic/gin"

	"quizai/internal/api/handlers"
	"quizai/internal/logger"
	"quizai/internal/ratelimit"
)

// SetupRoutes registers all routes on the engine.
func SetupRoutes(router *gin.Engine, h *handlers.Handler, limiter ratelimit.Limiter, log *logger.Logger) {
	router.Use(CORSMiddleware())
	router.Use(AccessLog(log))

	authLimit := RateLimit(ratelimit.BucketAuth, limiter, log)
	apiLimit := RateLimit(ratelimit.BucketAPI, limiter, log)

	router.GET("/login", authLimit, h.HandleGoogleLogin)
	router.GET("/auth/google/callback", authLimit, h.HandleGoogleCallback)

	api := router.Group("/api")
	{
		api.GET("/auth/status", authLimit, h.HandleAuthStatus)

		authorized := api.Group("/")
		authorized.Use(AuthRequired())
		{
			authorized.GET("/user/profile", apiLimit, h.HandleUserProfile)
			authorized.POST("/logout", authLimit, h.HandleLogout)

			authorized.POST("/quizzes/generate",
				RateLimit(ratelimit.BucketAIGeneration, limiter, log),
				h.HandleGenerateQuiz)
			authorized.POST("/quizzes/generate-from-files",
				RateLimit(ratelimit.BucketFileUpload, limiter, log),
				h.HandleGenerateQuizFromFiles)
			authorized.POST("/ai/grade",
				RateLimit(ratelimit.BucketAIGrading, limiter, log),
				h.HandleGradeAnswer)

			authorized.GET("/quizzes", apiLimit, h.HandleListQuizzes)
			authorized.POST("/quizzes", apiLimit, h.HandleCreateQuiz)
			authorized.GET("/quizzes/:quizId", apiLimit, h.HandleGetQuiz)
			authorized.DELETE("/quizzes/:quizId", apiLimit, h.HandleDeleteQuiz)

			authorized.POST("/quizzes/:quizId/attempts", apiLimit, h.HandleCreateAttempt)
			authorized.GET("/attempts", apiLimit, h.HandleListAttempts)
			authorized.GET("/attempts/:attemptId", apiLimit, h.HandleGetAttempt)
			authorized.POST("/attempts/:attemptId/answers", apiLimit, h.HandleSaveAnswer)
			authorized.POST("/attempts/:attemptId/finish", apiLimit, h.HandleFinishAttempt)
		}
	}
}
