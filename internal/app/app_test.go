package app

import (
	"bytes"
	"encoding/json"
	"exam_portal_backend/internal/config"
	"exam_portal_backend/internal/model"
	"exam_portal_backend/internal/util"
	"exam_portal_backend/pkg/database"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "app-test-secret"

type testServer struct {
	t      *testing.T
	app    *App
	tokens map[string]string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent), TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := &config.Config{
		Server:    config.ServerConfig{Mode: "test"},
		JWT:       config.JWTConfig{Secret: testSecret, ExpireTime: time.Hour},
		Storage:   config.StorageConfig{Type: util.StorageLocal, LocalPath: t.TempDir()},
		Attempt:   config.AttemptConfig{GraceSeconds: 30, MaxTextAnswerLength: 2000},
		RateLimit: config.RateLimitConfig{MaxRequests: 100000, WindowMinutes: 1},
	}
	s := &testServer{t: t, app: New(cfg, db, nil), tokens: map[string]string{}}

	for _, u := range []model.User{
		{Name: "Teacher", Email: "teacher@example.com", Password: "x", Role: model.Teacher},
		{Name: "Rival", Email: "rival@example.com", Password: "x", Role: model.Teacher},
		{Name: "Student", Email: "student@example.com", Password: "x", Role: model.Student},
		{Name: "Peer", Email: "peer@example.com", Password: "x", Role: model.Student},
	} {
		u := u
		if err := db.Create(&u).Error; err != nil {
			t.Fatalf("create user: %v", err)
		}
		token, err := util.GenerateJWT(&u, testSecret, time.Hour)
		if err != nil {
			t.Fatalf("token: %v", err)
		}
		s.tokens[strings.ToLower(u.Name)] = token
	}
	return s
}

// do 发送请求并把响应中的 data 解码到 out
func (s *testServer) do(method, path, who string, body interface{}, out interface{}) int {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if who != "" {
		req.Header.Set("Authorization", "Bearer "+s.tokens[who])
	}
	w := httptest.NewRecorder()
	s.app.Router.ServeHTTP(w, req)

	if out != nil && w.Code < 300 {
		var resp struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			s.t.Fatalf("decode %s %s: %v", method, path, err)
		}
		if err := json.Unmarshal(resp.Data, out); err != nil {
			s.t.Fatalf("decode data %s %s: %v", method, path, err)
		}
	}
	return w.Code
}

type examDTO struct {
	ID        string `json:"id"`
	Questions []struct {
		ID      string `json:"id"`
		Options []struct {
			ID        string `json:"id"`
			IsCorrect bool   `json:"isCorrect"`
		} `json:"options"`
	} `json:"questions"`
}

func TestExamLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)

	if code := s.do(http.MethodGet, "/api/health", "", nil, nil); code != http.StatusOK {
		t.Fatalf("health = %d", code)
	}
	if code := s.do(http.MethodGet, "/api/exams", "", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("anonymous catalog = %d", code)
	}

	var exam examDTO
	code := s.do(http.MethodPost, "/api/teacher/exams", "teacher", map[string]interface{}{
		"title":       "Biology Quiz",
		"isPublished": true,
		"questions": []map[string]interface{}{
			{"text": "Powerhouse?", "type": "MCQ", "options": []map[string]interface{}{
				{"text": "Nucleus"}, {"text": "Mitochondrion", "isCorrect": true},
			}},
			{"text": "Describe osmosis.", "type": "SHORT_ANSWER"},
		},
	}, &exam)
	if code != http.StatusCreated || len(exam.Questions) != 2 {
		t.Fatalf("create exam = %d, %+v", code, exam)
	}
	if code := s.do(http.MethodPost, "/api/teacher/exams", "student", map[string]string{"title": "x"}, nil); code != http.StatusForbidden {
		t.Fatalf("student create = %d", code)
	}
	if code := s.do(http.MethodGet, "/api/teacher/exams/"+exam.ID, "rival", nil, nil); code != http.StatusForbidden {
		t.Fatalf("rival get = %d", code)
	}
	if code := s.do(http.MethodGet, "/api/teacher/exams/missing", "teacher", nil, nil); code != http.StatusNotFound {
		t.Fatalf("missing exam = %d", code)
	}

	var attempt struct {
		ID string `json:"id"`
	}
	if code := s.do(http.MethodPost, "/api/exams/"+exam.ID+"/attempts", "student", nil, &attempt); code != http.StatusCreated {
		t.Fatalf("start = %d", code)
	}
	if code := s.do(http.MethodPost, "/api/exams/"+exam.ID+"/attempts", "student", nil, nil); code != http.StatusConflict {
		t.Fatalf("duplicate start = %d", code)
	}
	if code := s.do(http.MethodGet, "/api/attempts/"+attempt.ID+"/result", "student", nil, nil); code != http.StatusConflict {
		t.Fatalf("result before submit = %d", code)
	}

	var correct string
	for _, o := range exam.Questions[0].Options {
		if o.IsCorrect {
			correct = o.ID
		}
	}
	answers := map[string]interface{}{"answers": []map[string]interface{}{
		{"questionId": exam.Questions[0].ID, "selectedOptionId": correct},
		{"questionId": exam.Questions[1].ID, "textAnswer": "water diffuses"},
	}}
	if code := s.do(http.MethodPost, "/api/attempts/"+attempt.ID+"/submit", "peer", answers, nil); code != http.StatusForbidden {
		t.Fatalf("peer submit = %d", code)
	}
	bad := map[string]interface{}{"answers": []map[string]interface{}{
		{"questionId": exam.Questions[0].ID, "textAnswer": "mitochondrion"},
	}}
	if code := s.do(http.MethodPost, "/api/attempts/"+attempt.ID+"/submit", "student", bad, nil); code != http.StatusBadRequest {
		t.Fatalf("malformed submit = %d", code)
	}

	var submitted struct {
		Score         float64 `json:"score"`
		Status        string  `json:"status"`
		IsFullyGraded bool    `json:"isFullyGraded"`
	}
	if code := s.do(http.MethodPost, "/api/attempts/"+attempt.ID+"/submit", "student", answers, &submitted); code != http.StatusOK {
		t.Fatalf("submit = %d", code)
	}
	if submitted.Score != 1 || submitted.Status != "SUBMITTED" || submitted.IsFullyGraded {
		t.Fatalf("submitted = %+v", submitted)
	}
	if code := s.do(http.MethodPost, "/api/attempts/"+attempt.ID+"/submit", "student", answers, nil); code != http.StatusConflict {
		t.Fatalf("resubmit = %d", code)
	}

	var result struct {
		Answers []struct {
			AnswerID     string `json:"answerId"`
			QuestionType string `json:"questionType"`
		} `json:"answers"`
	}
	if code := s.do(http.MethodGet, "/api/attempts/"+attempt.ID+"/result", "teacher", nil, &result); code != http.StatusOK {
		t.Fatalf("teacher result = %d", code)
	}
	if code := s.do(http.MethodGet, "/api/attempts/"+attempt.ID+"/result", "peer", nil, nil); code != http.StatusForbidden {
		t.Fatalf("peer result = %d", code)
	}
	var shortID string
	for _, a := range result.Answers {
		if a.QuestionType == "SHORT_ANSWER" {
			shortID = a.AnswerID
		}
	}

	over := map[string]interface{}{"grades": []map[string]interface{}{{"answerId": shortID, "pointsAwarded": 5}}}
	if code := s.do(http.MethodPut, "/api/teacher/attempts/"+attempt.ID+"/grades", "teacher", over, nil); code != http.StatusBadRequest {
		t.Fatalf("over max grade = %d", code)
	}
	grade := map[string]interface{}{"grades": []map[string]interface{}{{"answerId": shortID, "pointsAwarded": 1}}}
	if code := s.do(http.MethodPut, "/api/teacher/attempts/"+attempt.ID+"/grades", "rival", grade, nil); code != http.StatusForbidden {
		t.Fatalf("rival grade = %d", code)
	}
	var summary struct {
		Score  float64 `json:"score"`
		Status string  `json:"status"`
	}
	if code := s.do(http.MethodPut, "/api/teacher/attempts/"+attempt.ID+"/grades", "teacher", grade, &summary); code != http.StatusOK {
		t.Fatalf("grade = %d", code)
	}
	if summary.Score != 2 || summary.Status != "GRADED" {
		t.Fatalf("summary = %+v", summary)
	}

	missing := map[string]interface{}{"grades": []map[string]interface{}{{"answerId": shortID}}}
	if code := s.do(http.MethodPut, "/api/teacher/attempts/"+attempt.ID+"/grades", "teacher", missing, nil); code != http.StatusBadRequest {
		t.Fatalf("grade without pointsAwarded = %d", code)
	}
	clearGrade := map[string]interface{}{"grades": []map[string]interface{}{{"answerId": shortID, "pointsAwarded": nil}}}
	if code := s.do(http.MethodPut, "/api/teacher/attempts/"+attempt.ID+"/grades", "teacher", clearGrade, &summary); code != http.StatusOK {
		t.Fatalf("clear grade = %d", code)
	}
	if summary.Score != 1 || summary.Status != "SUBMITTED" {
		t.Fatalf("cleared summary = %+v", summary)
	}
	if code := s.do(http.MethodPut, "/api/teacher/attempts/"+attempt.ID+"/grades", "teacher", grade, &summary); code != http.StatusOK || summary.Status != "GRADED" {
		t.Fatalf("regrade = %d %+v", code, summary)
	}

	var page struct {
		List  []map[string]interface{} `json:"list"`
		Total int64                    `json:"total"`
		Limit int                      `json:"limit"`
	}
	if code := s.do(http.MethodGet, "/api/teacher/exams/"+exam.ID+"/submissions?page=1&limit=1", "teacher", nil, &page); code != http.StatusOK {
		t.Fatalf("submissions = %d", code)
	}
	if page.Total != 1 || len(page.List) != 1 || page.Limit != 1 {
		t.Fatalf("page = %+v", page)
	}

	if code := s.do(http.MethodGet, "/api/attempts/unknown/result", "student", nil, nil); code != http.StatusNotFound {
		t.Fatalf("unknown attempt = %d", code)
	}
}
