package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Difficulty is the quiz-level difficulty tier chosen by the user.
type Difficulty string

const (
	DifficultyMercyMode      Difficulty = "mercy_mode"
	DifficultyMentalWarfare  Difficulty = "mental_warfare"
	DifficultyAbandonAllHope Difficulty = "abandon_all_hope"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyMercyMode, DifficultyMentalWarfare, DifficultyAbandonAllHope:
		return true
	}
	return false
}

// QuestionType enumerates the supported question formats.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionShortAnswer    QuestionType = "short_answer"
	QuestionEssay          QuestionType = "essay"
	QuestionSelectAll      QuestionType = "select_all"
)

func (t QuestionType) Valid() bool {
	switch t {
	case QuestionMultipleChoice, QuestionTrueFalse, QuestionShortAnswer, QuestionEssay, QuestionSelectAll:
		return true
	}
	return false
}

// User is an authenticated account, keyed by Google subject ID.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	GoogleID  string    `gorm:"uniqueIndex;not null" json:"-"`
	Email     string    `gorm:"not null" json:"email"`
	Name      string    `json:"name"`
	Picture   string    `json:"picture"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Quiz is a generated or manually created quiz. StudyMaterial keeps only the
// first 10k characters of the source text for provenance.
type Quiz struct {
	ID                     uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID                 uuid.UUID  `gorm:"type:uuid;index;not null" json:"userId"`
	User                   *User      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Title                  string     `gorm:"not null" json:"title"`
	Description            string     `json:"description"`
	QuestionCount          int        `gorm:"not null" json:"questionCount"`
	Difficulty             Difficulty `gorm:"type:varchar(32);not null" json:"difficulty"`
	QuestionTypes          string     `gorm:"not null" json:"questionTypes"` // JSON array
	StudyMaterial          string     `json:"-"`
	CurrentDifficultyScore float64    `gorm:"default:0.5" json:"currentDifficultyScore"`
	Questions              []Question `gorm:"constraint:OnDelete:CASCADE" json:"questions,omitempty"`
	CreatedAt              time.Time  `json:"createdAt"`
	UpdatedAt              time.Time  `json:"updatedAt"`
}

func (q *Quiz) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}

// Question belongs to a quiz. Options holds a JSON array of option strings,
// nil for free-text types. CorrectAnswer is a letter, "true"/"false", a JSON
// array of letters for select_all, or model answer text.
type Question struct {
	ID            uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	QuizID        uuid.UUID    `gorm:"type:uuid;index;not null" json:"quizId"`
	Quiz          *Quiz        `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Type          QuestionType `gorm:"type:varchar(32);not null" json:"type"`
	Content       string       `gorm:"not null" json:"content"`
	Options       *string      `json:"options"`
	CorrectAnswer string       `gorm:"not null" json:"correctAnswer"`
	Explanation   string       `json:"explanation"`
	Difficulty    float64      `gorm:"default:0.5" json:"difficulty"`
	Order         int          `gorm:"column:question_order;not null" json:"order"`
	CreatedAt     time.Time    `json:"createdAt"`
}

func (q *Question) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}

// Attempt is one sitting of a quiz by a user.
type Attempt struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	QuizID         uuid.UUID  `gorm:"type:uuid;index;not null" json:"quizId"`
	Quiz           *Quiz      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	UserID         uuid.UUID  `gorm:"type:uuid;index;not null" json:"userId"`
	Score          *float64   `json:"score"`
	TotalQuestions int        `json:"totalQuestions"`
	CorrectAnswers int        `json:"correctAnswers"`
	Responses      []Response `gorm:"constraint:OnDelete:CASCADE" json:"responses,omitempty"`
	StartedAt      time.Time  `json:"startedAt"`
	CompletedAt    *time.Time `json:"completedAt"`
}

func (a *Attempt) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.StartedAt.IsZero() {
		a.StartedAt = time.Now()
	}
	return nil
}

// Response is a single answer within an attempt. IsCorrect stays nil for
// essay and short_answer until AI grading runs.
type Response struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AttemptID         uuid.UUID `gorm:"type:uuid;index;not null" json:"attemptId"`
	Attempt           *Attempt  `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	QuestionID        uuid.UUID `gorm:"type:uuid;index;not null" json:"questionId"`
	Question          *Question `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	UserAnswer        string    `json:"-"`
	IsCorrect         *bool     `json:"isCorrect"`
	AIGradingFeedback *string   `json:"aiGradingFeedback"`
	AnsweredAt        time.Time `json:"answeredAt"`
}

func (r *Response) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.AnsweredAt.IsZero() {
		r.AnsweredAt = time.Now()
	}
	return nil
}

// GeneratedQuiz is the validated output of an AI generation call, before it
// is persisted.
type GeneratedQuiz struct {
	Title     string              `json:"title"`
	Questions []GeneratedQuestion `json:"questions"`
}

type GeneratedQuestion struct {
	Type          QuestionType `json:"type"`
	Content       string       `json:"content"`
	Options       []string     `json:"options"`
	CorrectAnswer string       `json:"correctAnswer"`
	Explanation   string       `json:"explanation"`
	Difficulty    float64      `json:"difficulty"`
}

// GradingResult is the outcome of grading one free-text answer.
type GradingResult struct {
	Score     int    `json:"score"`
	IsCorrect bool   `json:"isCorrect"`
	Feedback  string `json:"feedback"`
}

// ErrorResponse is the uniform error body returned by the API.
type ErrorResponse struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}
