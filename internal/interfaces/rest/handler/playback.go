package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/coursegate/internal/infrastructure/auth"
	"github.com/pot-code/coursegate/internal/infrastructure/validate"
	"github.com/pot-code/coursegate/internal/playback"
)

type PlaybackHandler struct {
	playbackUseCase *playback.UseCase
	validator       validate.Validator
	jwtUtil         *auth.JWTUtil
}

func NewPlaybackHandler(
	PlaybackUseCase *playback.UseCase,
	JWTUtil *auth.JWTUtil,
	Validator validate.Validator,
) *PlaybackHandler {
	return &PlaybackHandler{PlaybackUseCase, Validator, JWTUtil}
}

// sessionParam playback session IDs are nanoids
const sessionParam = "required,max=64,printascii"

type progressBody struct {
	Position float64 `json:"position" validate:"gte=0"`
	Duration float64 `json:"duration" validate:"gte=0"` // seconds, as reported by the player
}

// HandleStart open a playback session on a lesson
func (ph *PlaybackHandler) HandleStart(c echo.Context) error {
	learnerID := ph.jwtUtil.LearnerID(c)
	session, err := ph.playbackUseCase.Start(c.Request().Context(), learnerID, c.Param("course"), c.Param("lesson"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, session)
}

// HandleProgress report the playback position of a session
func (ph *PlaybackHandler) HandleProgress(c echo.Context) error {
	sessionID := c.Param("session")
	if err := ph.validator.Var("session", sessionID, sessionParam); err != nil {
		return c.JSON(http.StatusBadRequest, NewRESTValidationError(http.StatusBadRequest, "Invalid session", err))
	}
	body := new(progressBody)
	if err := c.Bind(body); err != nil {
		return c.JSON(http.StatusBadRequest, NewRESTStandardError(http.StatusBadRequest, err.Error()))
	}
	if err := ph.validator.Struct(body); err != nil {
		return c.JSON(http.StatusBadRequest, NewRESTValidationError(http.StatusBadRequest, "Failed to validate params", err))
	}

	learnerID := ph.jwtUtil.LearnerID(c)
	outcome, err := ph.playbackUseCase.Progress(c.Request().Context(), learnerID, sessionID, body.Position, body.Duration)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, outcome)
}

// HandleEnded report the natural end of the media
func (ph *PlaybackHandler) HandleEnded(c echo.Context) error {
	sessionID := c.Param("session")
	if err := ph.validator.Var("session", sessionID, sessionParam); err != nil {
		return c.JSON(http.StatusBadRequest, NewRESTValidationError(http.StatusBadRequest, "Invalid session", err))
	}
	learnerID := ph.jwtUtil.LearnerID(c)
	outcome, err := ph.playbackUseCase.Ended(c.Request().Context(), learnerID, sessionID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, outcome)
}
