package service

import (
	"exam_portal_backend/internal/config"
	"exam_portal_backend/internal/model"
	"exam_portal_backend/internal/repository"
	"exam_portal_backend/pkg/database"
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// 单连接：内存库在连接间共享，同时让事务串行化
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type fixture struct {
	db       *gorm.DB
	users    *repository.UserRepository
	exams    *ExamService
	attempts *AttemptService
	grading  *GradingService

	teacher      Actor
	otherTeacher Actor
	student      Actor
	otherStudent Actor
	admin        Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	userRepo := repository.NewUserRepository(db)
	examRepo := repository.NewExamRepository(db)
	subRepo := repository.NewSubmissionRepository(db)

	f := &fixture{
		db:       db,
		users:    userRepo,
		exams:    NewExamService(examRepo, subRepo),
		attempts: NewAttemptService(examRepo, subRepo, nil, config.AttemptConfig{GraceSeconds: 30, MaxTextAnswerLength: 2000}),
		grading:  NewGradingService(examRepo, subRepo),
	}
	f.teacher = f.addUser(t, "Tina Teacher", "tina@example.com", model.Teacher)
	f.otherTeacher = f.addUser(t, "Omar Teacher", "omar@example.com", model.Teacher)
	f.student = f.addUser(t, "Sam Student", "sam@example.com", model.Student)
	f.otherStudent = f.addUser(t, "Sue Student", "sue@example.com", model.Student)
	f.admin = f.addUser(t, "Ada Admin", "ada@example.com", model.Admin)
	return f
}

func (f *fixture) addUser(t *testing.T, name, email string, role model.UserRole) Actor {
	t.Helper()
	u := &model.User{Name: name, Email: email, Password: "x", Role: role}
	if err := f.users.Create(u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return Actor{UserID: u.ID, Role: role}
}

func strp(s string) *string { return &s }

func fp(f float64) *float64 { return &f }

func boolp(b bool) *bool { return &b }

// biologyQuiz 两道单选 + 一道简答
func biologyQuiz(published bool) ExamReq {
	questions := []QuestionReq{
		{Text: "Powerhouse of the cell?", Type: "MCQ", Options: []OptionReq{
			{Text: "Nucleus"}, {Text: "Mitochondrion", IsCorrect: true},
		}},
		{Text: "Plants photosynthesize.", Type: "TRUE_FALSE", Options: []OptionReq{
			{Text: "True", IsCorrect: true}, {Text: "False"},
		}},
		{Text: "Describe osmosis.", Type: "SHORT_ANSWER"},
	}
	return ExamReq{
		Title:       strp("Biology Quiz"),
		Header:      strp("Good luck"),
		IsPublished: boolp(published),
		Questions:   &questions,
	}
}

func (f *fixture) createExam(t *testing.T, req ExamReq) *model.Exam {
	t.Helper()
	exam, err := f.exams.CreateExam(ctx(), f.teacher, req)
	if err != nil {
		t.Fatalf("CreateExam: %v", err)
	}
	return exam
}

func correctOption(q model.Question) string {
	for _, o := range q.Options {
		if o.IsCorrect {
			return o.ID
		}
	}
	return ""
}

func wrongOption(q model.Question) string {
	for _, o := range q.Options {
		if !o.IsCorrect {
			return o.ID
		}
	}
	return ""
}

func (f *fixture) reloadSubmission(t *testing.T, id string) *model.Submission {
	t.Helper()
	var sub model.Submission
	if err := f.db.First(&sub, "id = ?", id).Error; err != nil {
		t.Fatalf("reload submission: %v", err)
	}
	return &sub
}

func (f *fixture) answersOf(t *testing.T, submissionID string) []model.Answer {
	t.Helper()
	var answers []model.Answer
	if err := f.db.Where("submission_id = ?", submissionID).Find(&answers).Error; err != nil {
		t.Fatalf("load answers: %v", err)
	}
	return answers
}
