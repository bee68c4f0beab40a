package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/coursegate/internal/infrastructure/auth"
	"github.com/pot-code/coursegate/internal/unlock"
)

type ProgressHandler struct {
	progressUseCase *unlock.UseCase
	jwtUtil         *auth.JWTUtil
}

func NewProgressHandler(ProgressUseCase *unlock.UseCase, JWTUtil *auth.JWTUtil) *ProgressHandler {
	return &ProgressHandler{ProgressUseCase, JWTUtil}
}

// HandleGetCourseProgress lessons of a course with their lock state for the learner
func (ph *ProgressHandler) HandleGetCourseProgress(c echo.Context) error {
	learnerID := ph.jwtUtil.LearnerID(c)
	view, err := ph.progressUseCase.GetCourseProgress(c.Request().Context(), learnerID, c.Param("course"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}
