package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/zsleinadg/WebCarros/internal/api/middleware"
	"github.com/zsleinadg/WebCarros/internal/models"
	"github.com/zsleinadg/WebCarros/internal/services"
)

// RestCarHandler handles REST requests for car listings.
type RestCarHandler struct {
	carService services.ICarService
}

// NewRestCarHandler creates a new RestCarHandler.
func NewRestCarHandler(carService services.ICarService) *RestCarHandler {
	return &RestCarHandler{carService: carService}
}

// SearchCars handles GET /v1/cars
func (h *RestCarHandler) SearchCars(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	limitStr := c.DefaultQuery("limit", "50")

	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 || limit > 200 {
		limit = 50
	}

	cars, err := h.carService.Search(c.Request.Context(), query, limit)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search cars"})
		return
	}

	if cars == nil {
		cars = []models.Car{}
	}
	c.JSON(http.StatusOK, gin.H{"data": cars})
}

// GetCarByID handles GET /v1/cars/:id
func (h *RestCarHandler) GetCarByID(c *gin.Context) {
	carID := c.Param("id")

	car, err := h.carService.FindByID(c.Request.Context(), carID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Car not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve car"})
		}
		return
	}

	c.JSON(http.StatusOK, car)
}

// GetOwnCars handles GET /v1/dashboard/cars
func (h *RestCarHandler) GetOwnCars(c *gin.Context) {
	userID := c.GetString(middleware.ContextKeyUserID)

	cars, err := h.carService.FindByUserID(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch cars"})
		return
	}

	if cars == nil {
		cars = []models.Car{}
	}
	c.JSON(http.StatusOK, gin.H{"data": cars})
}

// DeleteCar handles DELETE /v1/dashboard/cars/:id
func (h *RestCarHandler) DeleteCar(c *gin.Context) {
	carID := c.Param("id")
	userID := c.GetString(middleware.ContextKeyUserID)

	err := h.carService.Delete(c.Request.Context(), carID, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Car not found"})
		} else if strings.Contains(err.Error(), "does not belong") {
			c.JSON(http.StatusForbidden, gin.H{"error": "Car belongs to another user"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete car"})
		}
		return
	}

	c.Status(http.StatusNoContent)
}
