package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-ledger-api/internal/models"
	"github.com/noah-isme/sma-ledger-api/internal/service"
	appErrors "github.com/noah-isme/sma-ledger-api/pkg/errors"
)

type tokenTable map[string]*models.JWTClaims

func (t tokenTable) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := t[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

var testTokens = tokenTable{
	"admin":      {UserID: "u-admin", Role: models.RoleAdmin},
	"accountant": {UserID: "u-acc", Role: models.RoleAccountant},
	"teacher":    {UserID: "u-tch", Role: models.RoleTeacher},
}

type stubAuth struct{ err error }

func (s *stubAuth) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.LoginResponse{AccessToken: "token-for-" + req.Email, ExpiresIn: 3600}, nil
}

type stubStudents struct {
	filter   models.StudentFilter
	register service.RegisterStudentRequest
	err      error
}

func (s *stubStudents) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	s.filter = filter
	return []models.Student{{ID: "STU1", Name: "Asha"}}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: 1}, nil
}

func (s *stubStudents) Get(ctx context.Context, id string) (*models.Student, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.Student{ID: id, Name: "Asha"}, nil
}

func (s *stubStudents) Register(ctx context.Context, req service.RegisterStudentRequest) (*models.Student, error) {
	s.register = req
	return &models.Student{ID: "STU2", Name: req.Name}, nil
}

func (s *stubStudents) UpdateProfile(ctx context.Context, id string, req service.UpdateStudentRequest) (*models.Student, error) {
	return &models.Student{ID: id, Name: req.Name}, nil
}

type stubTeachers struct{}

func (stubTeachers) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, *models.Pagination, error) {
	return []models.Teacher{{ID: "TCH1"}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (stubTeachers) Get(ctx context.Context, id string) (*models.Teacher, error) {
	return &models.Teacher{ID: id}, nil
}

func (stubTeachers) Register(ctx context.Context, req service.TeacherRequest) (*models.Teacher, error) {
	return &models.Teacher{ID: "TCH2", Name: req.Name}, nil
}

func (stubTeachers) UpdateProfile(ctx context.Context, id string, req service.TeacherRequest) (*models.Teacher, error) {
	return &models.Teacher{ID: id, Name: req.Name}, nil
}

type stubFees struct {
	asOf      time.Time
	className string
	collect   service.CollectFeeRequest
	err       error
}

func (s *stubFees) Ledger(ctx context.Context, asOf time.Time, className string) ([]service.LedgerRow, error) {
	s.asOf = asOf
	s.className = className
	return []service.LedgerRow{{StudentID: "STU1"}}, nil
}

func (s *stubFees) StudentLedger(ctx context.Context, id string, asOf time.Time) (*service.StudentLedger, error) {
	s.asOf = asOf
	return &service.StudentLedger{LedgerRow: service.LedgerRow{StudentID: id}}, nil
}

func (s *stubFees) Collect(ctx context.Context, id string, req service.CollectFeeRequest) (*service.Receipt, error) {
	s.collect = req
	if s.err != nil {
		return nil, s.err
	}
	return &service.Receipt{TransactionID: "TXN-ABCDEF123", StudentID: id}, nil
}

type stubPayroll struct{}

func (stubPayroll) Roster(ctx context.Context) (*service.PayrollRoster, error) {
	return &service.PayrollRoster{TotalDisbursed: 30000}, nil
}

func (stubPayroll) Pay(ctx context.Context, id string, req service.PaySalaryRequest) (*service.SalarySlip, error) {
	return &service.SalarySlip{TeacherID: id, Payment: models.TeacherPayment{Month: req.Month}}, nil
}

type stubExams struct {
	hit     bool
	score   service.UpdateScoreRequest
	term    string
	replace service.ReplaceTermScoresRequest
	err     error
}

func (s *stubExams) Standings(ctx context.Context) ([]service.StandingEntry, bool, error) {
	return []service.StandingEntry{{Rank: 1, StudentID: "STU1"}}, s.hit, nil
}

func (s *stubExams) Marksheet(ctx context.Context, id string) (*service.Marksheet, error) {
	return &service.Marksheet{StudentID: id, Rank: 1}, nil
}

func (s *stubExams) UpdateScore(ctx context.Context, id string, req service.UpdateScoreRequest) (*models.Student, error) {
	s.score = req
	return &models.Student{ID: id}, nil
}

func (s *stubExams) ReplaceTermScores(ctx context.Context, id, term string, req service.ReplaceTermScoresRequest) (*models.Student, error) {
	s.term = term
	s.replace = req
	return &models.Student{ID: id}, nil
}

func (s *stubExams) Remarks(ctx context.Context, id string) (*service.GeneratedText, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &service.GeneratedText{Text: "Well done.", Generated: true}, nil
}

type stubDashboard struct{ hit bool }

func (s stubDashboard) Summary(ctx context.Context) (*service.DashboardSummary, bool, error) {
	return &service.DashboardSummary{SchoolName: "Skyline", StudentCount: 2}, s.hit, nil
}

type stubSettings struct{ saved models.SchoolConfig }

func (s *stubSettings) Get(ctx context.Context) (*models.SchoolConfig, error) {
	cfg := models.DefaultSchoolConfig()
	return &cfg, nil
}

func (s *stubSettings) Update(ctx context.Context, cfg models.SchoolConfig) (*models.SchoolConfig, error) {
	s.saved = cfg
	return &cfg, nil
}

type stubSearch struct{ query string }

func (s *stubSearch) Search(ctx context.Context, query string) ([]models.Record, error) {
	s.query = query
	return []models.Record{models.StudentRecord(models.Student{ID: "STU1"})}, nil
}

type stubAssistant struct{}

func (stubAssistant) DraftAnnouncement(ctx context.Context, req service.AnnouncementRequest) (service.GeneratedText, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return service.GeneratedText{}, appErrors.Clone(appErrors.ErrValidation, "topic required")
	}
	return service.GeneratedText{Text: "📢 " + req.Topic}, nil
}

type stubReports struct {
	actor       string
	role        models.UserRole
	download    *service.ReportDownload
	downloadErr error
}

func (s *stubReports) CreateJob(ctx context.Context, req service.ExportRequest, actorID string) (*models.ExportJob, error) {
	s.actor = actorID
	return &models.ExportJob{ID: "job-1", Type: req.Type, Format: req.Format, Status: models.ExportStatusQueued, CreatedBy: actorID}, nil
}

func (s *stubReports) GetStatus(ctx context.Context, id, actorID string, role models.UserRole) (*models.ExportJob, error) {
	s.actor = actorID
	s.role = role
	return &models.ExportJob{ID: id, Status: models.ExportStatusFinished}, nil
}

func (s *stubReports) ResolveDownload(ctx context.Context, token string) (*service.ReportDownload, error) {
	if s.downloadErr != nil {
		return nil, s.downloadErr
	}
	return s.download, nil
}

type pingStub struct{ err error }

func (p pingStub) PingContext(ctx context.Context) error { return p.err }

type testServer struct {
	router   *gin.Engine
	students *stubStudents
	fees     *stubFees
	exams    *stubExams
	settings *stubSettings
	search   *stubSearch
	reports  *stubReports
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := &testServer{
		router:   gin.New(),
		students: &stubStudents{},
		fees:     &stubFees{},
		exams:    &stubExams{},
		settings: &stubSettings{},
		search:   &stubSearch{},
		reports:  &stubReports{},
	}
	RegisterRoutes(s.router, "/api/v1", testTokens, Handlers{
		Auth:      NewAuthHandler(&stubAuth{}),
		Students:  NewStudentHandler(s.students),
		Teachers:  NewTeacherHandler(stubTeachers{}),
		Fees:      NewFeeHandler(s.fees),
		Payroll:   NewPayrollHandler(stubPayroll{}),
		Exams:     NewExamHandler(s.exams),
		Dashboard: NewDashboardHandler(stubDashboard{hit: true}),
		Settings:  NewSettingsHandler(s.settings),
		Search:    NewSearchHandler(s.search),
		Assistant: NewAssistantHandler(stubAssistant{}),
		Reports:   NewReportHandler(s.reports),
		System: NewSystemHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "sma_ledger_fees_collected_total 0\n")
		}), pingStub{}),
	})
	return s
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      *appErrors.Error       `json:"error"`
	Pagination *models.Pagination     `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}
