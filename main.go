package main

import (
	"log"
	"net/http"
	"os"
	"strconv"

	"civicreport-be/config"
	"civicreport-be/controllers"
	"civicreport-be/logger"
	"civicreport-be/repository"
	"civicreport-be/routes"
	"civicreport-be/services"
	"civicreport-be/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

const defaultDailyComplaintLimit = 10

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	logger.Init()

	db := config.ConnectDB()
	if db == nil {
		log.Fatal("Failed to connect to MongoDB")
	}
	log.Println("MongoDB connection established successfully!")

	config.ConnectRedis()

	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "uploads"
	}
	photos, err := storage.NewPhotoStorage(uploadDir, 10)
	if err != nil {
		log.Fatalf("Failed to set up photo storage: %v", err)
	}

	complaintRepo := repository.NewMongoComplaintRepository(config.GetCollection("complaints"))
	userLookup := repository.NewMongoUserLookup(config.GetCollection("users"))
	complaintService := services.NewComplaintService(complaintRepo, userLookup)
	complaintHandler := controllers.NewComplaintHandler(complaintService, photos)

	r := gin.Default()
	r.Use(cors.Default())
	r.Static("/uploads", uploadDir)

	routes.AuthRoutes(r)
	routes.ComplaintRoutes(r, complaintHandler, dailyComplaintLimit())

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func dailyComplaintLimit() int {
	if raw := os.Getenv("COMPLAINT_DAILY_LIMIT"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 {
			return limit
		}
	}
	return defaultDailyComplaintLimit
}
