package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicreport-be/apperror"
	"civicreport-be/logger"
	"civicreport-be/middlewares"
	"civicreport-be/services"
	"civicreport-be/storage"
)

// ComplaintHandler exposes the complaint lifecycle over HTTP. Handlers stay
// thin: bind input, call the service, map the error kind to a status.
type ComplaintHandler struct {
	service *services.ComplaintService
	photos  *storage.PhotoStorage
}

func NewComplaintHandler(service *services.ComplaintService, photos *storage.PhotoStorage) *ComplaintHandler {
	return &ComplaintHandler{service: service, photos: photos}
}

// CreateComplaint handles POST /api/complaints (multipart: photo + fields)
func (h *ComplaintHandler) CreateComplaint(c *gin.Context) {
	identity, ok := middlewares.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	input := services.CreateComplaintInput{
		Title:          c.PostForm("title"),
		Description:    c.PostForm("description"),
		Category:       c.PostForm("category"),
		CustomCategory: c.PostForm("customCategory"),
	}

	lat, ok := parseCoordinate(c, "latitude")
	if !ok {
		return
	}
	lon, ok := parseCoordinate(c, "longitude")
	if !ok {
		return
	}
	input.Latitude = lat
	input.Longitude = lon

	if file, err := c.FormFile("photo"); err == nil {
		src, err := file.Open()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read photo"})
			return
		}
		defer src.Close()

		photoURL, err := h.photos.Save(file.Filename, src)
		if err != nil {
			respondError(c, err)
			return
		}
		input.PhotoURL = photoURL
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	complaint, err := h.service.Create(ctx, identity, input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, complaint)
}

// ListMyComplaints handles GET /api/complaints/my for reporters
func (h *ComplaintHandler) ListMyComplaints(c *gin.Context) {
	identity, ok := middlewares.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	complaints, err := h.service.ListMine(ctx, identity)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, complaints)
}

// ListComplaints handles GET /api/complaints for workers and admins
func (h *ComplaintHandler) ListComplaints(c *gin.Context) {
	identity, ok := middlewares.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	complaints, err := h.service.ListForRole(ctx, identity)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, complaints)
}

// GetComplaint handles GET /api/complaints/:id
func (h *ComplaintHandler) GetComplaint(c *gin.Context) {
	identity, ok := middlewares.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	complaintID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid complaint ID"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	complaint, err := h.service.Get(ctx, identity, complaintID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, complaint)
}

// AssignComplaint handles PUT /api/complaints/assign/:id for admins
func (h *ComplaintHandler) AssignComplaint(c *gin.Context) {
	identity, ok := middlewares.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	complaintID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid complaint ID"})
		return
	}

	var input struct {
		WorkerID string `json:"workerId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	workerID, err := primitive.ObjectIDFromHex(input.WorkerID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid worker ID"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	complaint, err := h.service.Assign(ctx, identity, complaintID, workerID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, complaint)
}

// UpdateComplaintStatus handles PUT /api/complaints/status/:id
func (h *ComplaintHandler) UpdateComplaintStatus(c *gin.Context) {
	identity, ok := middlewares.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	complaintID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid complaint ID"})
		return
	}

	var input struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	complaint, err := h.service.UpdateStatus(ctx, identity, complaintID, input.Status)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, complaint)
}

// parseCoordinate reads an optional float form field; a malformed value is
// rejected here, a missing one is left to the service's required-field
// validation.
func parseCoordinate(c *gin.Context, field string) (*float64, bool) {
	raw := c.PostForm(field)
	if raw == "" {
		return nil, true
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + field})
		return nil, false
	}
	return &val, true
}

// respondError maps the apperror taxonomy onto HTTP statuses; anything
// outside it is an operational failure and logs as such.
func respondError(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		if appErr.Code == apperror.ErrCodeInternal {
			logger.Log.WithError(err).Error("complaint operation failed")
			c.JSON(appErr.HTTPStatus, gin.H{"error": "Something went wrong"})
			return
		}
		c.JSON(appErr.HTTPStatus, gin.H{"error": appErr.Message})
		return
	}

	logger.Log.WithError(err).Error("complaint operation failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
}
