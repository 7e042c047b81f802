package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"quizai/internal/models"
)

var testDBSeq int

func newTestStore(t *testing.T) *Store {
	t.Helper()
	testDBSeq++
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared&_foreign_keys=on", testDBSeq)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatal(err)
	}
	store := NewStore(gdb)
	if err := store.Migrate(); err != nil {
		t.Fatal(err)
	}
	return store
}

func seedUser(t *testing.T, s *Store) *models.User {
	t.Helper()
	user, err := s.UpsertUserByGoogleID(context.Background(), uuid.NewString(), "u@example.com", "U", "")
	if err != nil {
		t.Fatal(err)
	}
	return user
}

func seedQuiz(t *testing.T, s *Store, userID uuid.UUID, n int) *models.Quiz {
	t.Helper()
	quiz := &models.Quiz{
		UserID:        userID,
		Title:         "Cell Biology",
		Difficulty:    models.DifficultyMercyMode,
		QuestionTypes: `["true_false"]`,
		StudyMaterial: "mitochondria",
	}
	questions := make([]models.GeneratedQuestion, n)
	for i := range questions {
		questions[i] = models.GeneratedQuestion{
			Type:          models.QuestionTrueFalse,
			Content:       fmt.Sprintf("Statement %d is true.", i+1),
			CorrectAnswer: "true",
			Explanation:   "Because.",
			Difficulty:    0.5,
		}
	}
	if err := s.CreateQuizFromGenerated(context.Background(), quiz, questions); err != nil {
		t.Fatal(err)
	}
	return quiz
}

func TestUpsertUserByGoogleID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.UpsertUserByGoogleID(ctx, "goog-1", "a@example.com", "A", "pic1")
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.UpsertUserByGoogleID(ctx, "goog-1", "b@example.com", "B", "pic2")
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Fatalf("upsert created a second user: %s vs %s", first.ID, second.ID)
	}
	if second.Email != "b@example.com" || second.Name != "B" {
		t.Fatalf("profile not refreshed: %+v", second)
	}
}

func TestCreateQuizAssignsSequentialOrder(t *testing.T) {
	s := newTestStore(t)
	user := seedUser(t, s)
	quiz := seedQuiz(t, s, user.ID, 5)

	loaded, err := s.GetQuiz(context.Background(), quiz.ID, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Questions) != 5 {
		t.Fatalf("questions = %d, want 5", len(loaded.Questions))
	}
	for i, q := range loaded.Questions {
		if q.Order != i+1 {
			t.Fatalf("question %d has order %d", i, q.Order)
		}
	}
	if loaded.QuestionCount != 5 {
		t.Fatalf("questionCount = %d", loaded.QuestionCount)
	}
}

func TestCreateQuizTruncatesStoredMaterial(t *testing.T) {
	s := newTestStore(t)
	user := seedUser(t, s)

	long := make([]byte, storedMaterialLimit+5000)
	for i := range long {
		long[i] = 'x'
	}
	quiz := &models.Quiz{
		UserID:        user.ID,
		Title:         "T",
		Difficulty:    models.DifficultyMercyMode,
		QuestionTypes: `["essay"]`,
		StudyMaterial: string(long),
	}
	err := s.CreateQuizFromGenerated(context.Background(), quiz, []models.GeneratedQuestion{
		{Type: models.QuestionEssay, Content: "c", CorrectAnswer: "a"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(quiz.StudyMaterial) != storedMaterialLimit {
		t.Fatalf("stored material length = %d", len(quiz.StudyMaterial))
	}
}

func TestGetQuizEnforcesOwnership(t *testing.T) {
	s := newTestStore(t)
	owner := seedUser(t, s)
	other := seedUser(t, s)
	quiz := seedQuiz(t, s, owner.ID, 1)

	if _, err := s.GetQuiz(context.Background(), quiz.ID, other.ID); err != ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestListQuizzesPagination(t *testing.T) {
	s := newTestStore(t)
	user := seedUser(t, s)
	for i := 0; i < 25; i++ {
		seedQuiz(t, s, user.ID, 1)
	}
	ctx := context.Background()

	page1, err := s.ListQuizzes(ctx, user.ID, 1, 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(page1) != 20 {
		t.Fatalf("page 1 = %d rows", len(page1))
	}
	page2, err := s.ListQuizzes(ctx, user.ID, 2, 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(page2) != 5 {
		t.Fatalf("page 2 = %d rows", len(page2))
	}

	// Out-of-range values clamp instead of failing.
	clamped, err := s.ListQuizzes(ctx, user.ID, -3, 9999)
	if err != nil {
		t.Fatal(err)
	}
	if len(clamped) != 25 {
		t.Fatalf("clamped query = %d rows", len(clamped))
	}
}

func TestDeleteQuizCascades(t *testing.T) {
	s := newTestStore(t)
	user := seedUser(t, s)
	quiz := seedQuiz(t, s, user.ID, 3)
	ctx := context.Background()

	attempt, err := s.CreateAttempt(ctx, quiz.ID, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := s.GetQuiz(ctx, quiz.ID, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	yes := true
	if _, err := s.SaveResponse(ctx, attempt.ID, loaded.Questions[0].ID, "true", &yes, nil); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteQuiz(ctx, quiz.ID, user.ID); err != nil {
		t.Fatal(err)
	}

	n, err := s.CountQuestions(ctx, quiz.ID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("%d orphaned questions after delete", n)
	}
	if _, err := s.GetAttempt(ctx, attempt.ID, user.ID); err != ErrNotFound {
		t.Fatalf("attempt survived delete: %v", err)
	}
}

func TestDeleteQuizEnforcesOwnership(t *testing.T) {
	s := newTestStore(t)
	owner := seedUser(t, s)
	other := seedUser(t, s)
	quiz := seedQuiz(t, s, owner.ID, 1)
	ctx := context.Background()

	if err := s.DeleteQuiz(ctx, quiz.ID, other.ID); err != ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	if _, err := s.GetQuiz(ctx, quiz.ID, owner.ID); err != nil {
		t.Fatalf("quiz deleted by non-owner: %v", err)
	}
}

func TestSaveResponseReplacesExisting(t *testing.T) {
	s := newTestStore(t)
	user := seedUser(t, s)
	quiz := seedQuiz(t, s, user.ID, 1)
	ctx := context.Background()

	attempt, err := s.CreateAttempt(ctx, quiz.ID, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	loaded, _ := s.GetQuiz(ctx, quiz.ID, user.ID)
	qid := loaded.Questions[0].ID

	no := false
	if _, err := s.SaveResponse(ctx, attempt.ID, qid, "false", &no, nil); err != nil {
		t.Fatal(err)
	}
	yes := true
	if _, err := s.SaveResponse(ctx, attempt.ID, qid, "true", &yes, nil); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetAttempt(ctx, attempt.ID, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Responses) != 1 {
		t.Fatalf("responses = %d, want 1", len(got.Responses))
	}
	if got.Responses[0].UserAnswer != "true" {
		t.Fatalf("answer = %q", got.Responses[0].UserAnswer)
	}
}

func TestFinishAttemptComputesScore(t *testing.T) {
	s := newTestStore(t)
	user := seedUser(t, s)
	quiz := seedQuiz(t, s, user.ID, 4)
	ctx := context.Background()

	attempt, err := s.CreateAttempt(ctx, quiz.ID, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	loaded, _ := s.GetQuiz(ctx, quiz.ID, user.ID)
	yes, no := true, false
	s.SaveResponse(ctx, attempt.ID, loaded.Questions[0].ID, "true", &yes, nil)
	s.SaveResponse(ctx, attempt.ID, loaded.Questions[1].ID, "true", &yes, nil)
	s.SaveResponse(ctx, attempt.ID, loaded.Questions[2].ID, "false", &no, nil)
	// Question 4 left unanswered; counts as incorrect.

	done, err := s.FinishAttempt(ctx, attempt.ID, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if done.Score == nil || *done.Score != 50 {
		t.Fatalf("score = %v, want 50", done.Score)
	}
	if done.CorrectAnswers != 2 {
		t.Fatalf("correct = %d", done.CorrectAnswers)
	}
	if done.CompletedAt == nil {
		t.Fatal("completedAt not set")
	}

	// Finishing again is a no-op.
	again, err := s.FinishAttempt(ctx, attempt.ID, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !again.CompletedAt.Equal(*done.CompletedAt) {
		t.Fatal("second finish changed completion time")
	}
}

func TestQuizAccuracies(t *testing.T) {
	s := newTestStore(t)
	user := seedUser(t, s)
	quiz := seedQuiz(t, s, user.ID, 2)
	ctx := context.Background()

	loaded, _ := s.GetQuiz(ctx, quiz.ID, user.ID)
	yes := true
	for i := 0; i < 2; i++ {
		attempt, err := s.CreateAttempt(ctx, quiz.ID, user.ID)
		if err != nil {
			t.Fatal(err)
		}
		if i == 1 {
			s.SaveResponse(ctx, attempt.ID, loaded.Questions[0].ID, "true", &yes, nil)
			s.SaveResponse(ctx, attempt.ID, loaded.Questions[1].ID, "true", &yes, nil)
		}
		if _, err := s.FinishAttempt(ctx, attempt.ID, user.ID); err != nil {
			t.Fatal(err)
		}
	}
	// A third attempt stays open and must not appear.
	if _, err := s.CreateAttempt(ctx, quiz.ID, user.ID); err != nil {
		t.Fatal(err)
	}

	accs, err := s.QuizAccuracies(ctx, quiz.ID, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(accs) != 2 {
		t.Fatalf("accuracies = %v", accs)
	}
	if accs[0] != 0 || accs[1] != 1 {
		t.Fatalf("accuracies = %v, want [0 1]", accs)
	}
}

func TestUpdateQuizDifficulty(t *testing.T) {
	s := newTestStore(t)
	user := seedUser(t, s)
	quiz := seedQuiz(t, s, user.ID, 1)
	ctx := context.Background()

	if err := s.UpdateQuizDifficulty(ctx, quiz.ID, 0.42); err != nil {
		t.Fatal(err)
	}
	loaded, err := s.GetQuiz(ctx, quiz.ID, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.CurrentDifficultyScore != 0.42 {
		t.Fatalf("score = %v", loaded.CurrentDifficultyScore)
	}
}
