// Package db wraps the gorm store. All multi-row writes go through
// transactions; ownership checks live here so handlers cannot forget them.
package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"quizai/internal/models"
)

// ErrNotFound is returned when a record does not exist or belongs to a
// different user. Handlers map it to 404 without distinguishing the two, so
// quiz IDs cannot be probed.
var ErrNotFound = errors.New("record not found")

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
	maxPage          = 1000

	// storedMaterialLimit bounds the study material kept on the quiz row.
	storedMaterialLimit = 10000
)

type Store struct {
	db *gorm.DB
}

// Open connects to postgres and migrates the schema.
func Open(dsn string) (*Store, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	store := &Store{db: gdb}
	if err := store.Migrate(); err != nil {
		return nil, err
	}
	return store, nil
}

// NewStore wraps an existing gorm handle. Used by tests with sqlite.
func NewStore(gdb *gorm.DB) *Store {
	return &Store{db: gdb}
}

func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(
		&models.User{},
		&models.Quiz{},
		&models.Question{},
		&models.Attempt{},
		&models.Response{},
	); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// UpsertUserByGoogleID finds or creates the user for a Google subject and
// refreshes the profile fields on every login.
func (s *Store) UpsertUserByGoogleID(ctx context.Context, googleID, email, name, picture string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("google_id = ?", googleID).First(&user).Error
	switch {
	case err == nil:
		user.Email = email
		user.Name = name
		user.Picture = picture
		if err := s.db.WithContext(ctx).Save(&user).Error; err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}
		return &user, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = models.User{GoogleID: googleID, Email: email, Name: name, Picture: picture}
		if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		return &user, nil
	default:
		return nil, fmt.Errorf("look up user: %w", err)
	}
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CreateQuizFromGenerated persists a quiz and its questions in one
// transaction. Question order follows the slice; nothing is written if any
// row fails.
// CreateQuiz inserts a bare quiz row with no questions.
func (s *Store) CreateQuiz(ctx context.Context, quiz *models.Quiz) error {
	quiz.QuestionCount = 0
	if err := s.db.WithContext(ctx).Create(quiz).Error; err != nil {
		return fmt.Errorf("create quiz: %w", err)
	}
	return nil
}

func (s *Store) CreateQuizFromGenerated(ctx context.Context, quiz *models.Quiz, questions []models.GeneratedQuestion) error {
	if runes := []rune(quiz.StudyMaterial); len(runes) > storedMaterialLimit {
		quiz.StudyMaterial = string(runes[:storedMaterialLimit])
	}
	quiz.QuestionCount = len(questions)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(quiz).Error; err != nil {
			return fmt.Errorf("create quiz: %w", err)
		}
		for i, gq := range questions {
			row := models.Question{
				QuizID:        quiz.ID,
				Type:          gq.Type,
				Content:       gq.Content,
				CorrectAnswer: gq.CorrectAnswer,
				Explanation:   gq.Explanation,
				Difficulty:    gq.Difficulty,
				Order:         i + 1,
			}
			if gq.Options != nil {
				encoded, err := json.Marshal(gq.Options)
				if err != nil {
					return fmt.Errorf("encode options for question %d: %w", i+1, err)
				}
				opts := string(encoded)
				row.Options = &opts
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("create question %d: %w", i+1, err)
			}
		}
		return nil
	})
}

// GetQuiz loads a quiz owned by userID with its questions in order.
func (s *Store) GetQuiz(ctx context.Context, quizID, userID uuid.UUID) (*models.Quiz, error) {
	var quiz models.Quiz
	err := s.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("question_order ASC")
		}).
		First(&quiz, "id = ? AND user_id = ?", quizID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &quiz, nil
}

// ListQuizzes returns one page of the user's quizzes, newest first. Page and
// limit are clamped rather than rejected.
func (s *Store) ListQuizzes(ctx context.Context, userID uuid.UUID, page, limit int) ([]models.Quiz, error) {
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	var quizzes []models.Quiz
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&quizzes).Error
	if err != nil {
		return nil, err
	}
	return quizzes, nil
}

// DeleteQuiz removes a quiz owned by userID. Questions, attempts and
// responses go with it through the FK cascade.
func (s *Store) DeleteQuiz(ctx context.Context, quizID, userID uuid.UUID) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", quizID, userID).Delete(&models.Quiz{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) UpdateQuizDifficulty(ctx context.Context, quizID uuid.UUID, score float64) error {
	return s.db.WithContext(ctx).
		Model(&models.Quiz{}).
		Where("id = ?", quizID).
		Update("current_difficulty_score", score).Error
}

// CreateAttempt starts a sitting of a quiz the user owns.
func (s *Store) CreateAttempt(ctx context.Context, quizID, userID uuid.UUID) (*models.Attempt, error) {
	quiz, err := s.GetQuiz(ctx, quizID, userID)
	if err != nil {
		return nil, err
	}
	attempt := models.Attempt{
		QuizID:         quiz.ID,
		UserID:         userID,
		TotalQuestions: len(quiz.Questions),
	}
	if err := s.db.WithContext(ctx).Create(&attempt).Error; err != nil {
		return nil, fmt.Errorf("create attempt: %w", err)
	}
	return &attempt, nil
}

func (s *Store) GetAttempt(ctx context.Context, attemptID, userID uuid.UUID) (*models.Attempt, error) {
	var attempt models.Attempt
	err := s.db.WithContext(ctx).
		Preload("Responses").
		First(&attempt, "id = ? AND user_id = ?", attemptID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &attempt, nil
}

func (s *Store) ListAttempts(ctx context.Context, userID uuid.UUID) ([]models.Attempt, error) {
	var attempts []models.Attempt
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("started_at DESC").
		Find(&attempts).Error
	if err != nil {
		return nil, err
	}
	return attempts, nil
}

// SaveResponse records or replaces the answer to one question within an
// open attempt.
func (s *Store) SaveResponse(ctx context.Context, attemptID, questionID uuid.UUID, userAnswer string, isCorrect *bool, feedback *string) (*models.Response, error) {
	var resp models.Response
	err := s.db.WithContext(ctx).
		Where("attempt_id = ? AND question_id = ?", attemptID, questionID).
		First(&resp).Error
	switch {
	case err == nil:
		resp.UserAnswer = userAnswer
		resp.IsCorrect = isCorrect
		resp.AIGradingFeedback = feedback
		resp.AnsweredAt = time.Now()
		if err := s.db.WithContext(ctx).Save(&resp).Error; err != nil {
			return nil, fmt.Errorf("update response: %w", err)
		}
		return &resp, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		resp = models.Response{
			AttemptID:         attemptID,
			QuestionID:        questionID,
			UserAnswer:        userAnswer,
			IsCorrect:         isCorrect,
			AIGradingFeedback: feedback,
		}
		if err := s.db.WithContext(ctx).Create(&resp).Error; err != nil {
			return nil, fmt.Errorf("create response: %w", err)
		}
		return &resp, nil
	default:
		return nil, err
	}
}

// FinishAttempt closes an attempt and computes its score from the graded
// responses. Ungraded responses count as incorrect.
func (s *Store) FinishAttempt(ctx context.Context, attemptID, userID uuid.UUID) (*models.Attempt, error) {
	attempt, err := s.GetAttempt(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}
	if attempt.CompletedAt != nil {
		return attempt, nil
	}

	correct := 0
	for _, r := range attempt.Responses {
		if r.IsCorrect != nil && *r.IsCorrect {
			correct++
		}
	}
	score := 0.0
	if attempt.TotalQuestions > 0 {
		score = float64(correct) / float64(attempt.TotalQuestions) * 100
	}
	now := time.Now()
	attempt.CorrectAnswers = correct
	attempt.Score = &score
	attempt.CompletedAt = &now

	if err := s.db.WithContext(ctx).Save(attempt).Error; err != nil {
		return nil, fmt.Errorf("finish attempt: %w", err)
	}
	return attempt, nil
}

// QuizAccuracies returns completed attempt accuracies (0..1) for a quiz,
// oldest first. Input for the adaptive difficulty update.
func (s *Store) QuizAccuracies(ctx context.Context, quizID, userID uuid.UUID) ([]float64, error) {
	var attempts []models.Attempt
	err := s.db.WithContext(ctx).
		Where("quiz_id = ? AND user_id = ? AND completed_at IS NOT NULL", quizID, userID).
		Order("started_at ASC").
		Find(&attempts).Error
	if err != nil {
		return nil, err
	}
	accuracies := make([]float64, 0, len(attempts))
	for _, a := range attempts {
		if a.Score != nil {
			accuracies = append(accuracies, *a.Score/100)
		}
	}
	return accuracies, nil
}

// CountQuestions is used by handlers that need the total without loading
// full question rows.
func (s *Store) CountQuestions(ctx context.Context, quizID uuid.UUID) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Question{}).Where("quiz_id = ?", quizID).Count(&n).Error
	return n, err
}

// GetQuestion loads one question, verifying through the quiz that the user
// owns it.
func (s *Store) GetQuestion(ctx context.Context, questionID, userID uuid.UUID) (*models.Question, error) {
	var q models.Question
	err := s.db.WithContext(ctx).
		Joins("JOIN quizzes ON quizzes.id = questions.quiz_id").
		Where("questions.id = ? AND quizzes.user_id = ?", questionID, userID).
		First(&q).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &q, nil
}
