package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-ledger-api/internal/middleware"
	"github.com/noah-isme/sma-ledger-api/internal/models"
)

// Handlers groups every HTTP handler. Reports may be nil when exports are
// disabled.
type Handlers struct {
	Auth      *AuthHandler
	Students  *StudentHandler
	Teachers  *TeacherHandler
	Fees      *FeeHandler
	Payroll   *PayrollHandler
	Exams     *ExamHandler
	Dashboard *DashboardHandler
	Settings  *SettingsHandler
	Search    *SearchHandler
	Assistant *AssistantHandler
	Reports   *ReportHandler
	System    *SystemHandler
}

// RegisterRoutes mounts probes at the root and the API under prefix.
func RegisterRoutes(r *gin.Engine, prefix string, tokens middleware.TokenValidator, h Handlers) {
	r.GET("/health", h.System.Health)
	r.GET("/ready", h.System.Ready)
	r.GET("/metrics", h.System.Prometheus)

	api := r.Group(prefix)
	api.Use(middleware.WithResponseMeta())
	api.POST("/auth/login", h.Auth.Login)
	if h.Reports != nil {
		api.GET("/export/:token", h.Reports.Download)
	}

	admin := middleware.RequireRoles(models.RoleAdmin)
	office := middleware.RequireRoles(models.RoleAdmin, models.RoleAccountant)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleAccountant, models.RoleTeacher)
	academic := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)

	secured := api.Group("")
	secured.Use(middleware.JWT(tokens), staff)
	secured.GET("/auth/me", h.Auth.Me)

	secured.GET("/students", h.Students.List)
	secured.GET("/students/:id", h.Students.Get)
	secured.POST("/students", office, h.Students.Create)
	secured.PUT("/students/:id", office, h.Students.Update)

	secured.GET("/teachers", h.Teachers.List)
	secured.GET("/teachers/:id", h.Teachers.Get)
	secured.POST("/teachers", admin, h.Teachers.Create)
	secured.PUT("/teachers/:id", admin, h.Teachers.Update)

	fees := secured.Group("/fees", office)
	fees.GET("/ledger", h.Fees.Ledger)
	fees.GET("/students/:id", h.Fees.StudentLedger)
	fees.POST("/students/:id/collect", h.Fees.Collect)

	payroll := secured.Group("/payroll", office)
	payroll.GET("", h.Payroll.Roster)
	payroll.POST("/teachers/:id/pay", admin, h.Payroll.Pay)

	exams := secured.Group("/exams")
	exams.GET("/standings", h.Exams.Standings)
	exams.GET("/students/:id/marksheet", h.Exams.Marksheet)
	exams.GET("/students/:id/remarks", academic, h.Exams.Remarks)
	exams.PATCH("/students/:id/scores", academic, h.Exams.UpdateScore)
	exams.PUT("/students/:id/terms/:term", academic, h.Exams.ReplaceTerm)

	secured.GET("/dashboard", h.Dashboard.Summary)
	secured.GET("/settings", h.Settings.Get)
	secured.PUT("/settings", admin, h.Settings.Update)
	secured.GET("/search", h.Search.Search)
	secured.POST("/assistant/announcements", h.Assistant.Announcement)

	if h.Reports != nil {
		secured.POST("/exports", office, h.Reports.Create)
		secured.GET("/exports/:id", office, h.Reports.Status)
	}
}
