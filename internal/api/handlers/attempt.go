package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"quizai/internal/adaptive"
	"quizai/internal/db"
	"quizai/internal/models"
)

// HandleCreateAttempt starts a new sitting of a quiz.
func (h *Handler) HandleCreateAttempt(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}
	quizID, err := uuid.Parse(c.Param("quizId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid quiz ID"})
		return
	}

	attempt, err := h.Store.CreateAttempt(c.Request.Context(), quizID, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "Quiz not found"})
			return
		}
		h.Log.Error("failed to create attempt", "quizId", quizID.String(), "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to start attempt"})
		return
	}

	c.JSON(http.StatusCreated, attempt)
}

// HandleGetAttempt returns an attempt with its saved responses.
func (h *Handler) HandleGetAttempt(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}
	attemptID, err := uuid.Parse(c.Param("attemptId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid attempt ID"})
		return
	}

	attempt, err := h.Store.GetAttempt(c.Request.Context(), attemptID, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "Attempt not found"})
			return
		}
		h.Log.Error("failed to get attempt", "attemptId", attemptID.String(), "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to retrieve attempt"})
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// HandleListAttempts lists all attempts by the user, newest first.
func (h *Handler) HandleListAttempts(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	attempts, err := h.Store.ListAttempts(c.Request.Context(), userID)
	if err != nil {
		h.Log.Error("failed to list attempts", "userId", userID.String(), "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to retrieve attempts"})
		return
	}
	if attempts == nil {
		attempts = []models.Attempt{}
	}

	c.JSON(http.StatusOK, attempts)
}

type saveAnswerRequest struct {
	QuestionID uuid.UUID `json:"questionId"`
	Answer     string    `json:"answer"`
}

// HandleSaveAnswer records an answer within an attempt. Objective question
// types are graded inline; free-text types stay ungraded until AI grading.
func (h *Handler) HandleSaveAnswer(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}
	attemptID, err := uuid.Parse(c.Param("attemptId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid attempt ID"})
		return
	}

	var req saveAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.QuestionID == uuid.Nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if req.Answer == "" || len([]rune(req.Answer)) > maxAnswerLength {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Answer is empty or too long"})
		return
	}

	ctx := c.Request.Context()
	attempt, err := h.Store.GetAttempt(ctx, attemptID, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "Attempt not found"})
			return
		}
		h.Log.Error("failed to load attempt", "attemptId", attemptID.String(), "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to save answer"})
		return
	}
	if attempt.CompletedAt != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Attempt is already finished"})
		return
	}

	question, err := h.Store.GetQuestion(ctx, req.QuestionID, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "Question not found"})
			return
		}
		h.Log.Error("failed to load question", "questionId", req.QuestionID.String(), "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to save answer"})
		return
	}
	if question.QuizID != attempt.QuizID {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Question does not belong to this quiz"})
		return
	}

	isCorrect := gradeObjective(question.Type, question.CorrectAnswer, req.Answer)

	resp, err := h.Store.SaveResponse(ctx, attemptID, question.ID, req.Answer, isCorrect, nil)
	if err != nil {
		h.Log.Error("failed to save response", "attemptId", attemptID.String(), "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to save answer"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// gradeObjective grades answer types that need no AI. Returns nil for
// free-text types.
func gradeObjective(qt models.QuestionType, correctAnswer, userAnswer string) *bool {
	switch qt {
	case models.QuestionMultipleChoice, models.QuestionTrueFalse:
		v := strings.EqualFold(strings.TrimSpace(correctAnswer), strings.TrimSpace(userAnswer))
		return &v
	case models.QuestionSelectAll:
		v := sameLetterSet(correctAnswer, userAnswer)
		return &v
	default:
		return nil
	}
}

// sameLetterSet compares two JSON arrays of option letters as sets, ignoring
// case and ordering.
func sameLetterSet(a, b string) bool {
	parse := func(raw string) (map[string]bool, bool) {
		var letters []string
		if err := json.Unmarshal([]byte(raw), &letters); err != nil {
			return nil, false
		}
		set := make(map[string]bool, len(letters))
		for _, l := range letters {
			set[strings.ToUpper(strings.TrimSpace(l))] = true
		}
		return set, true
	}

	sa, okA := parse(a)
	sb, okB := parse(b)
	if !okA || !okB || len(sa) != len(sb) {
		return false
	}
	for l := range sa {
		if !sb[l] {
			return false
		}
	}
	return true
}

// HandleFinishAttempt closes an attempt, computes the score and advances the
// quiz's adaptive difficulty.
func (h *Handler) HandleFinishAttempt(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}
	attemptID, err := uuid.Parse(c.Param("attemptId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid attempt ID"})
		return
	}

	ctx := c.Request.Context()
	attempt, err := h.Store.FinishAttempt(ctx, attemptID, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "Attempt not found"})
			return
		}
		h.Log.Error("failed to finish attempt", "attemptId", attemptID.String(), "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to finish attempt"})
		return
	}

	quiz, err := h.Store.GetQuiz(ctx, attempt.QuizID, userID)
	if err != nil {
		h.Log.Error("failed to load quiz for difficulty update", "quizId", attempt.QuizID.String(), "error", err)
		c.JSON(http.StatusOK, attempt)
		return
	}
	accuracies, err := h.Store.QuizAccuracies(ctx, attempt.QuizID, userID)
	if err != nil {
		h.Log.Error("failed to load attempt history", "quizId", attempt.QuizID.String(), "error", err)
		c.JSON(http.StatusOK, attempt)
		return
	}

	next := adaptive.NextDifficulty(quiz.Difficulty, accuracies)
	if err := h.Store.UpdateQuizDifficulty(ctx, attempt.QuizID, next); err != nil {
		h.Log.Error("failed to update difficulty score", "quizId", attempt.QuizID.String(), "error", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"attempt":            attempt,
		"newDifficultyScore": next,
		"performanceMetrics": adaptive.ComputeMetrics(accuracies),
	})
}
