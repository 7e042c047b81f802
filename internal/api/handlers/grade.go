package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"quizai/internal/ai"
	"quizai/internal/models"
)

const (
	maxQuestionLength = 5000
	maxAnswerLength   = 10000
)

type gradeRequest struct {
	Question      string              `json:"question"`
	CorrectAnswer string              `json:"correctAnswer"`
	UserAnswer    string              `json:"userAnswer"`
	QuestionType  models.QuestionType `json:"questionType"`
	Provider      string              `json:"provider"`
}

// HandleGradeAnswer grades a free-text answer with the AI provider.
func (h *Handler) HandleGradeAnswer(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	var req gradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if req.Question == "" || len([]rune(req.Question)) > maxQuestionLength {
		msg := fmt.Sprintf("question must be between 1 and %d characters", maxQuestionLength)
		h.logValidationFailed(c, userID, msg)
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: msg})
		return
	}
	for name, answer := range map[string]string{"correctAnswer": req.CorrectAnswer, "userAnswer": req.UserAnswer} {
		if answer == "" || len([]rune(answer)) > maxAnswerLength {
			msg := fmt.Sprintf("%s must be between 1 and %d characters", name, maxAnswerLength)
			h.logValidationFailed(c, userID, msg)
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: msg})
			return
		}
	}
	if req.QuestionType != models.QuestionEssay && req.QuestionType != models.QuestionShortAnswer {
		msg := "questionType must be essay or short_answer"
		h.logValidationFailed(c, userID, msg)
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: msg})
		return
	}

	result, err := h.Generator.Grade(c.Request.Context(), req.Provider, ai.GradeRequest{
		Question:      req.Question,
		CorrectAnswer: req.CorrectAnswer,
		UserAnswer:    req.UserAnswer,
		QuestionType:  req.QuestionType,
	})
	if err != nil {
		h.Log.Error("grading failed", "userId", userID.String(), "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to grade answer"})
		return
	}

	c.JSON(http.StatusOK, result)
}
