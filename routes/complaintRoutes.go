package routes

import (
	"civicreport-be/controllers"
	"civicreport-be/middlewares"
	"civicreport-be/models"

	"github.com/gin-gonic/gin"
)

// ComplaintRoutes sets up the complaint routes. Role eligibility is
// declared here, per route, and enforced by the RequireRoles gate before
// any handler runs.
func ComplaintRoutes(r *gin.Engine, h *controllers.ComplaintHandler, dailyLimit int) {
	complaint := r.Group("/api/complaints", middlewares.AuthMiddleware())
	{
		complaint.POST("",
			middlewares.RequireRoles(models.RoleReporter),
			middlewares.ComplaintRateLimiter(dailyLimit),
			h.CreateComplaint)
		complaint.GET("/my",
			middlewares.RequireRoles(models.RoleReporter),
			h.ListMyComplaints)
		complaint.GET("",
			middlewares.RequireRoles(models.RoleWorker, models.RoleAdmin),
			h.ListComplaints)
		complaint.GET("/:id", h.GetComplaint)
		complaint.PUT("/assign/:id",
			middlewares.RequireRoles(models.RoleAdmin),
			h.AssignComplaint)
		complaint.PUT("/status/:id",
			middlewares.RequireRoles(models.RoleWorker, models.RoleAdmin),
			h.UpdateComplaintStatus)
	}
}
