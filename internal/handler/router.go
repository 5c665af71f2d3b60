package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/schoolsuite/sms-core-api/internal/middleware"
	"github.com/schoolsuite/sms-core-api/internal/models"
	"github.com/schoolsuite/sms-core-api/internal/service"
)

// Handlers groups every HTTP handler for route registration.
type Handlers struct {
	Auth       *AuthHandler
	Admissions *AdmissionHandler
	Students   *StudentHandler
	Imports    *ImportHandler
	Promotions *PromotionHandler
}

// RegisterRoutes mounts the API under the given prefix. Application intake
// and payment reference capture are public; the review workflow and student
// management require a staff or admin token.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers, auth *service.AuthService) {
	api := r.Group(prefix)

	api.POST("/auth/login", h.Auth.Login)

	api.POST("/admissions", h.Admissions.Create)
	api.PUT("/admissions/:id/payment-reference", h.Admissions.SetPaymentReference)

	authed := api.Group("", middleware.JWT(auth))
	authed.GET("/auth/me", h.Auth.Me)
	authed.POST("/auth/change-password", h.Auth.ChangePassword)

	staff := authed.Group("", middleware.RequireRoles(models.RoleAdmin, models.RoleStaff))

	staff.GET("/admissions", h.Admissions.List)
	staff.GET("/admissions/waitlist", h.Admissions.WaitlistQueue)
	staff.GET("/admissions/:id", h.Admissions.Get)
	staff.GET("/admissions/:id/history", h.Admissions.History)
	staff.POST("/admissions/:id/verify-payment", h.Admissions.VerifyPayment)
	staff.POST("/admissions/:id/review", h.Admissions.StartReview)
	staff.POST("/admissions/:id/approve", h.Admissions.Approve)
	staff.POST("/admissions/:id/reject", h.Admissions.Reject)
	staff.POST("/admissions/:id/waitlist", h.Admissions.Waitlist)
	staff.POST("/admissions/:id/promote", h.Admissions.PromoteFromWaitlist)
	staff.GET("/admissions/:id/letter", h.Admissions.Letter)
	staff.POST("/admissions/:id/create-student", h.Students.CreateFromApplication)

	// Guardians accept their own offer; staff may record it on their behalf.
	authed.POST("/admissions/:id/accept",
		middleware.RequireRoles(models.RoleAdmin, models.RoleStaff, models.RoleGuardian),
		h.Admissions.Accept)

	staff.POST("/students", h.Students.Create)
	staff.GET("/students", h.Students.List)
	staff.GET("/students/active", h.Students.ListActive)
	staff.GET("/students/inactive", h.Students.ListInactive)
	staff.GET("/students/:id", h.Students.Get)
	staff.PUT("/students/:id", h.Students.Update)
	staff.POST("/students/:id/activate", h.Students.Activate)
	staff.PUT("/students/:id/status", h.Students.ChangeStatus)
	staff.POST("/students/bulk-create", h.Students.BulkCreate)
	staff.POST("/students/bulk-activate", h.Students.BulkActivate)

	staff.POST("/imports", h.Imports.Upload)
	staff.GET("/imports/:id", h.Imports.Status)
	staff.GET("/imports/:id/failures", h.Imports.FailureReport)

	staff.POST("/promotions", h.Promotions.Promote)
	staff.GET("/promotions/:id", h.Promotions.Status)
	staff.GET("/promotions/:id/logs", h.Promotions.Logs)
}
