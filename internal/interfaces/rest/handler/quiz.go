package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/coursegate/internal/infrastructure/auth"
	"github.com/pot-code/coursegate/internal/infrastructure/validate"
	"github.com/pot-code/coursegate/internal/quiz"
)

type QuizHandler struct {
	quizUseCase *quiz.UseCase
	validator   validate.Validator
	jwtUtil     *auth.JWTUtil
}

func NewQuizHandler(
	QuizUseCase *quiz.UseCase,
	JWTUtil *auth.JWTUtil,
	Validator validate.Validator,
) *QuizHandler {
	return &QuizHandler{QuizUseCase, Validator, JWTUtil}
}

type answersBody struct {
	Answers map[string]string `json:"answers" validate:"required,min=1"` // question ID to the selected answer
}

func (qh *QuizHandler) HandleGetQuiz(c echo.Context) error {
	learnerID := qh.jwtUtil.LearnerID(c)
	view, err := qh.quizUseCase.Get(c.Request().Context(), learnerID, c.Param("course"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

// HandleSubmitQuiz an earlier submission is answered with 200 and the stored result
func (qh *QuizHandler) HandleSubmitQuiz(c echo.Context) error {
	body := new(answersBody)
	if err := c.Bind(body); err != nil {
		return c.JSON(http.StatusBadRequest, NewRESTStandardError(http.StatusBadRequest, err.Error()))
	}
	if err := qh.validator.Struct(body); err != nil {
		return c.JSON(http.StatusBadRequest, NewRESTValidationError(http.StatusBadRequest, "Failed to validate params", err))
	}

	learnerID := qh.jwtUtil.LearnerID(c)
	submission, err := qh.quizUseCase.Submit(c.Request().Context(), learnerID, c.Param("course"), body.Answers)
	if err != nil {
		return err
	}
	if submission.AlreadyCompleted {
		return c.JSON(http.StatusOK, submission)
	}
	return c.JSON(http.StatusCreated, submission)
}
