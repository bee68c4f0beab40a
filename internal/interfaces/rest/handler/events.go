package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/pot-code/coursegate/internal/event"
	infra "github.com/pot-code/coursegate/internal/infrastructure"
	"github.com/pot-code/coursegate/internal/infrastructure/auth"
)

type EventHandler struct {
	hub     *event.Hub
	jwtUtil *auth.JWTUtil
}

func NewEventHandler(Hub *event.Hub, JWTUtil *auth.JWTUtil) *EventHandler {
	return &EventHandler{Hub, JWTUtil}
}

// HandleEventStream push the progress events of the learner until either side hangs up
func (eh *EventHandler) HandleEventStream(c echo.Context, conn *infra.WSConn) error {
	events, unsubscribe := eh.hub.Subscribe(eh.jwtUtil.LearnerID(c))
	defer unsubscribe()

	for {
		select {
		case <-conn.Closed():
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}
			if err := conn.Send(e); err != nil {
				return nil
			}
		}
	}
}
