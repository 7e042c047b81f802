package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"quizai/internal/ai"
	"quizai/internal/db"
	"quizai/internal/extract"
	"quizai/internal/logger"
	"quizai/internal/models"
)

const (
	maxTitleLength         = 200
	maxDescriptionLength   = 1000
	minStudyMaterialLength = 50
	maxStudyMaterialLength = 100000
	minQuestionCount       = 5
	maxQuestionCount       = 50

	// genericGenerateError is deliberately vague; provider errors can echo
	// attacker-controlled input and must not reach clients.
	genericGenerateError = "Failed to generate quiz. Please try again."
)

type generateQuizRequest struct {
	Title         string                `json:"title"`
	StudyMaterial string                `json:"studyMaterial"`
	QuestionCount int                   `json:"questionCount"`
	Difficulty    models.Difficulty     `json:"difficulty"`
	QuestionTypes []models.QuestionType `json:"questionTypes"`
	Provider      string                `json:"provider"`
}

// logValidationFailed records a rejected request body in the audit log.
func (h *Handler) logValidationFailed(c *gin.Context, userID uuid.UUID, msg string) {
	h.Log.Security(logger.EventValidationFailed,
		"userId", userID.String(),
		"path", c.Request.URL.Path,
		"method", c.Request.Method,
		"message", msg,
	)
}

// validateGenerateParams checks everything except the study material length,
// which differs between the text and file paths.
func validateGenerateParams(title string, questionCount int, difficulty models.Difficulty, questionTypes []models.QuestionType) error {
	if len([]rune(title)) > maxTitleLength {
		return fmt.Errorf("title must be at most %d characters", maxTitleLength)
	}
	if questionCount < minQuestionCount || questionCount > maxQuestionCount {
		return fmt.Errorf("questionCount must be between %d and %d", minQuestionCount, maxQuestionCount)
	}
	if !difficulty.Valid() {
		return fmt.Errorf("invalid difficulty: %q", difficulty)
	}
	if len(questionTypes) == 0 {
		return errors.New("at least one question type is required")
	}
	for _, qt := range questionTypes {
		if !qt.Valid() {
			return fmt.Errorf("invalid question type: %q", qt)
		}
	}
	return nil
}

// persistGeneratedQuiz writes the AI output and returns the stored quiz. The
// request title wins over the AI title when given.
func (h *Handler) persistGeneratedQuiz(c *gin.Context, userID uuid.UUID, title, description, material string, difficulty models.Difficulty, questionTypes []models.QuestionType, generated *models.GeneratedQuiz) (*models.Quiz, bool) {
	if title == "" {
		title = generated.Title
	}
	typesJSON, err := json.Marshal(questionTypes)
	if err != nil {
		h.Log.Error("failed to encode question types", "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: genericGenerateError})
		return nil, false
	}

	quiz := &models.Quiz{
		UserID:        userID,
		Title:         title,
		Description:   description,
		Difficulty:    difficulty,
		QuestionTypes: string(typesJSON),
		StudyMaterial: material,
	}
	if err := h.Store.CreateQuizFromGenerated(c.Request.Context(), quiz, generated.Questions); err != nil {
		h.Log.Error("failed to persist quiz", "userId", userID.String(), "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: genericGenerateError})
		return nil, false
	}

	h.Log.Security(logger.EventQuizCreated,
		"userId", userID.String(),
		"quizId", quiz.ID.String(),
		"questionCount", quiz.QuestionCount,
	)
	return quiz, true
}

type generatedQuizResponse struct {
	ID            uuid.UUID         `json:"id"`
	Title         string            `json:"title"`
	QuestionCount int               `json:"questionCount"`
	Difficulty    models.Difficulty `json:"difficulty"`
	Warnings      []string          `json:"warnings,omitempty"`
}

// HandleGenerateQuiz creates a quiz from pasted study material.
func (h *Handler) HandleGenerateQuiz(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	var req generateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if err := validateGenerateParams(req.Title, req.QuestionCount, req.Difficulty, req.QuestionTypes); err != nil {
		h.logValidationFailed(c, userID, err.Error())
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	if n := len([]rune(req.StudyMaterial)); n < minStudyMaterialLength || n > maxStudyMaterialLength {
		h.logValidationFailed(c, userID, "studyMaterial length out of range")
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: fmt.Sprintf("studyMaterial must be between %d and %d characters", minStudyMaterialLength, maxStudyMaterialLength),
		})
		return
	}

	generated, err := h.Generator.Generate(c.Request.Context(), req.Provider, ai.QuizParams{
		StudyMaterial: req.StudyMaterial,
		QuestionCount: req.QuestionCount,
		Difficulty:    req.Difficulty,
		QuestionTypes: req.QuestionTypes,
	})
	if err != nil {
		h.Log.Error("quiz generation failed", "userId", userID.String(), "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: genericGenerateError})
		return
	}

	quiz, ok := h.persistGeneratedQuiz(c, userID, req.Title, "AI-generated quiz from study material", req.StudyMaterial, req.Difficulty, req.QuestionTypes, generated)
	if !ok {
		return
	}

	c.JSON(http.StatusCreated, generatedQuizResponse{
		ID:            quiz.ID,
		Title:         quiz.Title,
		QuestionCount: quiz.QuestionCount,
		Difficulty:    quiz.Difficulty,
	})
}

// parseQuestionTypes accepts a JSON array or a comma-separated list, since
// multipart form values arrive as plain strings.
func parseQuestionTypes(raw string) []models.QuestionType {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if strings.HasPrefix(raw, "[") {
		var types []models.QuestionType
		if err := json.Unmarshal([]byte(raw), &types); err == nil {
			return types
		}
		return nil
	}
	var types []models.QuestionType
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			types = append(types, models.QuestionType(p))
		}
	}
	return types
}

// HandleGenerateQuizFromFiles creates a quiz from uploaded documents.
func (h *Handler) HandleGenerateQuizFromFiles(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid form data"})
		return
	}

	title := c.PostForm("title")
	questionCount, _ := strconv.Atoi(c.PostForm("questionCount"))
	difficulty := models.Difficulty(c.PostForm("difficulty"))
	questionTypes := parseQuestionTypes(c.PostForm("questionTypes"))
	provider := c.PostForm("provider")

	if err := validateGenerateParams(title, questionCount, difficulty, questionTypes); err != nil {
		h.logValidationFailed(c, userID, err.Error())
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	headers := form.File["files"]
	var files []extract.File
	for _, fh := range headers {
		if fh.Size > extract.MaxFileSizeBytes {
			c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{
				Error: fmt.Sprintf("File %q exceeds 10 MB limit", fh.Filename),
			})
			return
		}
		src, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid form data"})
			return
		}
		data, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid form data"})
			return
		}
		mimeType := fh.Header.Get("Content-Type")
		if mimeType == "" || mimeType == "application/octet-stream" {
			if m := extract.MIMEForName(fh.Filename); m != "" {
				mimeType = m
			}
		}
		files = append(files, extract.File{
			Name: fh.Filename,
			MIME: mimeType,
			Data: data,
		})
	}

	if err := h.Extractor.ValidateBatch(files); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	uploadID := uuid.New()
	for _, f := range files {
		if err := h.Storage.ArchiveUpload(c.Request.Context(), userID, uploadID, f.Name, bytes.NewReader(f.Data)); err != nil {
			h.Log.Warn("upload archival failed", "fileName", f.Name, "error", err)
		}
	}

	result := h.Extractor.ExtractBatch(c.Request.Context(), files)
	if result.SuccessCount == 0 {
		reasons := make([]string, 0, len(result.Failures))
		for _, f := range result.Failures {
			reasons = append(reasons, fmt.Sprintf("%s: %s", f.FileName, f.Reason))
		}
		c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{
			Error: "Could not extract text from any file. " + strings.Join(reasons, "; "),
		})
		return
	}
	if result.TotalCharacters < minStudyMaterialLength {
		c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{
			Error: "Extracted text is too short to generate a quiz from",
		})
		return
	}

	generated, err := h.Generator.Generate(c.Request.Context(), provider, ai.QuizParams{
		StudyMaterial: result.Text,
		QuestionCount: questionCount,
		Difficulty:    difficulty,
		QuestionTypes: questionTypes,
	})
	if err != nil {
		h.Log.Error("quiz generation from files failed", "userId", userID.String(), "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: genericGenerateError})
		return
	}

	description := fmt.Sprintf("AI-generated quiz from %d uploaded file(s)", result.SuccessCount)
	quiz, ok := h.persistGeneratedQuiz(c, userID, title, description, result.Text, difficulty, questionTypes, generated)
	if !ok {
		return
	}

	resp := generatedQuizResponse{
		ID:            quiz.ID,
		Title:         quiz.Title,
		QuestionCount: quiz.QuestionCount,
		Difficulty:    quiz.Difficulty,
	}
	for _, f := range result.Failures {
		resp.Warnings = append(resp.Warnings, fmt.Sprintf("%s: %s", f.FileName, f.Reason))
	}
	c.JSON(http.StatusCreated, resp)
}

type createQuizRequest struct {
	Title         string                `json:"title"`
	Description   string                `json:"description"`
	Difficulty    models.Difficulty     `json:"difficulty"`
	QuestionTypes []models.QuestionType `json:"questionTypes"`
}

func validateCreateParams(req createQuizRequest) error {
	if strings.TrimSpace(req.Title) == "" {
		return errors.New("title is required")
	}
	if len([]rune(req.Title)) > maxTitleLength {
		return fmt.Errorf("title must be at most %d characters", maxTitleLength)
	}
	if len([]rune(req.Description)) > maxDescriptionLength {
		return fmt.Errorf("description must be at most %d characters", maxDescriptionLength)
	}
	if !req.Difficulty.Valid() {
		return fmt.Errorf("invalid difficulty: %q", req.Difficulty)
	}
	if len(req.QuestionTypes) == 0 {
		return errors.New("at least one question type is required")
	}
	for _, qt := range req.QuestionTypes {
		if !qt.Valid() {
			return fmt.Errorf("invalid question type: %q", qt)
		}
	}
	return nil
}

// HandleCreateQuiz creates an empty quiz shell with no questions yet.
func (h *Handler) HandleCreateQuiz(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	var req createQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logValidationFailed(c, userID, "invalid request body")
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if err := validateCreateParams(req); err != nil {
		h.logValidationFailed(c, userID, err.Error())
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	typesJSON, err := json.Marshal(req.QuestionTypes)
	if err != nil {
		h.Log.Error("failed to encode question types", "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to create quiz"})
		return
	}

	quiz := &models.Quiz{
		UserID:        userID,
		Title:         req.Title,
		Description:   req.Description,
		Difficulty:    req.Difficulty,
		QuestionTypes: string(typesJSON),
	}
	if err := h.Store.CreateQuiz(c.Request.Context(), quiz); err != nil {
		h.Log.Error("failed to create quiz", "userId", userID.String(), "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to create quiz"})
		return
	}

	h.Log.Security(logger.EventQuizCreated,
		"userId", userID.String(),
		"quizId", quiz.ID.String(),
		"questionCount", 0,
	)
	c.JSON(http.StatusCreated, quiz)
}

// HandleListQuizzes returns a page of the user's quizzes.
func (h *Handler) HandleListQuizzes(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	quizzes, err := h.Store.ListQuizzes(c.Request.Context(), userID, page, limit)
	if err != nil {
		h.Log.Error("failed to list quizzes", "userId", userID.String(), "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to retrieve quizzes"})
		return
	}
	if quizzes == nil {
		quizzes = []models.Quiz{}
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  quizzes,
		"page":  page,
		"limit": limit,
	})
}

// HandleGetQuiz returns one quiz with its questions.
func (h *Handler) HandleGetQuiz(c *gin.Context) {
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

	quiz, err := h.Store.GetQuiz(c.Request.Context(), quizID, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "Quiz not found"})
			return
		}
		h.Log.Error("failed to get quiz", "quizId", quizID.String(), "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to retrieve quiz"})
		return
	}

	c.JSON(http.StatusOK, quiz)
}

// HandleDeleteQuiz removes a quiz and everything hanging off it.
func (h *Handler) HandleDeleteQuiz(c *gin.Context) {
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

	if err := h.Store.DeleteQuiz(c.Request.Context(), quizID, userID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "Quiz not found"})
			return
		}
		h.Log.Error("failed to delete quiz", "quizId", quizID.String(), "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to delete quiz"})
		return
	}

	h.Log.Security(logger.EventQuizDeleted, "userId", userID.String(), "quizId", quizID.String())
	c.JSON(http.StatusOK, gin.H{"success": true})
}
