package handlers_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/zsleinadg/WebCarros/internal/api/handlers"
	"github.com/zsleinadg/WebCarros/internal/api/middleware"
	"github.com/zsleinadg/WebCarros/internal/models"
)

func testCar(id, name, userID string) models.Car {
	car := models.Car{Name: name, Model: "1.0 TURBO", UserID: userID}
	car.ID = id
	return car
}

func carTestRouter(mockCarSvc *MockCarService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := handlers.NewRestCarHandler(mockCarSvc)
	r := gin.New()
	r.GET("/v1/cars", handler.SearchCars)
	r.GET("/v1/cars/:id", handler.GetCarByID)
	authed := r.Group("/v1/dashboard", func(c *gin.Context) {
		c.Set(middleware.ContextKeyUserID, "user-1")
	})
	authed.GET("/cars", handler.GetOwnCars)
	authed.DELETE("/cars/:id", handler.DeleteCar)
	return r
}

func TestRestCarHandler_SearchCars(t *testing.T) {
	mockCarSvc := new(MockCarService)
	r := carTestRouter(mockCarSvc)

	results := []models.Car{testCar("car-1", "ONIX", "user-1")}
	mockCarSvc.On("Search", mock.Anything, "onix", 50).Return(results, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/cars?q=onix", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var respBody struct {
		Data []models.Car `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &respBody))
	assert.Len(t, respBody.Data, 1)
	assert.Equal(t, "ONIX", respBody.Data[0].Name)
	mockCarSvc.AssertExpectations(t)
}

func TestRestCarHandler_SearchCars_BadLimitFallsBack(t *testing.T) {
	mockCarSvc := new(MockCarService)
	r := carTestRouter(mockCarSvc)

	mockCarSvc.On("Search", mock.Anything, "", 50).Return([]models.Car{}, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/cars?limit=junk", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data": []}`, w.Body.String())
	mockCarSvc.AssertExpectations(t)
}

func TestRestCarHandler_SearchCars_NilResultsAsEmptyArray(t *testing.T) {
	mockCarSvc := new(MockCarService)
	r := carTestRouter(mockCarSvc)

	mockCarSvc.On("Search", mock.Anything, "nada", 50).Return([]models.Car(nil), nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/cars?q=nada", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data": []}`, w.Body.String())
}

func TestRestCarHandler_GetCarByID(t *testing.T) {
	mockCarSvc := new(MockCarService)
	r := carTestRouter(mockCarSvc)

	car := testCar("car-1", "ONIX", "user-1")
	mockCarSvc.On("FindByID", mock.Anything, "car-1").Return(&car, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/cars/car-1", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ONIX")
	mockCarSvc.AssertExpectations(t)
}

func TestRestCarHandler_GetCarByID_NotFound(t *testing.T) {
	mockCarSvc := new(MockCarService)
	r := carTestRouter(mockCarSvc)

	mockCarSvc.On("FindByID", mock.Anything, "missing").Return(nil, mongo.ErrNoDocuments)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/cars/missing", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Car not found")
}

func TestRestCarHandler_GetOwnCars(t *testing.T) {
	mockCarSvc := new(MockCarService)
	r := carTestRouter(mockCarSvc)

	results := []models.Car{testCar("car-1", "ONIX", "user-1"), testCar("car-2", "CIVIC", "user-1")}
	mockCarSvc.On("FindByUserID", mock.Anything, "user-1").Return(results, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/dashboard/cars", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var respBody struct {
		Data []models.Car `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &respBody))
	assert.Len(t, respBody.Data, 2)
	mockCarSvc.AssertExpectations(t)
}

func TestRestCarHandler_DeleteCar(t *testing.T) {
	mockCarSvc := new(MockCarService)
	r := carTestRouter(mockCarSvc)

	mockCarSvc.On("Delete", mock.Anything, "car-1", "user-1").Return(nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/v1/dashboard/cars/car-1", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	mockCarSvc.AssertExpectations(t)
}

func TestRestCarHandler_DeleteCar_NotFound(t *testing.T) {
	mockCarSvc := new(MockCarService)
	r := carTestRouter(mockCarSvc)

	mockCarSvc.On("Delete", mock.Anything, "missing", "user-1").Return(mongo.ErrNoDocuments)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/v1/dashboard/cars/missing", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRestCarHandler_DeleteCar_WrongOwner(t *testing.T) {
	mockCarSvc := new(MockCarService)
	r := carTestRouter(mockCarSvc)

	mockCarSvc.On("Delete", mock.Anything, "car-9", "user-1").
		Return(errors.New("car car-9 does not belong to user user-1"))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/v1/dashboard/cars/car-9", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "another user")
}
