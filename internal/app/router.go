package app

import (
	"exam_portal_backend/docs"
	"exam_portal_backend/internal/config"
	"exam_portal_backend/internal/middleware"
	"exam_portal_backend/internal/model"
	"exam_portal_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		authGroup.GET("/me", c.auth.Me)

		// 学生考试接口
		a.registerStudentRoutes(authGroup, c)

		// 教师相关接口
		a.registerTeacherRoutes(authGroup, c)

		// 管理员相关接口
		a.registerAdminRoutes(authGroup, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
		public.GET("/announcements", c.announcement.ListActive)
		public.GET("/schedules", c.schedule.ListUpcoming)
	}
}

func (a *App) registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	student := rg.Group("")
	student.Use(middleware.RoleMiddleware(model.Student))
	{
		student.GET("/exams", c.exam.ListPublished)
		student.POST("/exams/:id/attempts", c.attempt.StartAttempt)
		student.GET("/attempts", c.attempt.ListMyAttempts)
		student.GET("/attempts/:id", c.attempt.GetPaper)
		student.POST("/attempts/:id/submit", c.attempt.Submit)
	}

	// 学生查看自己的成绩，教师查看所属试卷的成绩
	rg.GET("/attempts/:id/result", middleware.RoleMiddleware(model.Student, model.Teacher), c.attempt.GetResult)
}

func (a *App) registerTeacherRoutes(rg *gin.RouterGroup, c *controllers) {
	teacher := rg.Group("/teacher")
	teacher.Use(middleware.RoleMiddleware(model.Teacher))
	{
		teacher.POST("/exams", c.exam.CreateExam)
		teacher.GET("/exams", c.exam.ListMyExams)
		teacher.GET("/exams/:id", c.exam.GetExam)
		teacher.PUT("/exams/:id", c.exam.UpdateExam)
		teacher.DELETE("/exams/:id", c.exam.DeleteExam)
		teacher.PUT("/exams/:id/questions", c.exam.ReplaceQuestions)
		teacher.PUT("/exams/:id/publish", c.exam.SetPublished)
		teacher.GET("/exams/:id/submissions", c.exam.ListSubmissions)
		teacher.POST("/exams/:id/export", c.exam.ExportResults)

		// 阅卷
		teacher.PUT("/attempts/:id/grades", c.attempt.SaveGrades)
		teacher.DELETE("/attempts/:id", c.attempt.ResetAttempt)

		teacher.GET("/announcements", c.announcement.ListMine)
		teacher.POST("/announcements", c.announcement.Create)
		teacher.PUT("/announcements/:id", c.announcement.Update)
		teacher.DELETE("/announcements/:id", c.announcement.Delete)

		teacher.GET("/schedules", c.schedule.ListMine)
		teacher.POST("/schedules", c.schedule.Create)
		teacher.PUT("/schedules/:id", c.schedule.Update)
		teacher.DELETE("/schedules/:id", c.schedule.Delete)
	}
}

func (a *App) registerAdminRoutes(rg *gin.RouterGroup, c *controllers) {
	admin := rg.Group("/admin")
	admin.Use(middleware.RoleMiddleware(model.Admin))
	{
		admin.GET("/stats", c.admin.Stats)
		admin.POST("/teachers", c.auth.CreateTeacher)
	}
}
