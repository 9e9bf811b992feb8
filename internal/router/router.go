// Package router dispatches inbound websocket frames to event actions.
package router

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/00vDragos/RealTime-Chat/internal/metrics"
	"github.com/00vDragos/RealTime-Chat/internal/throttle"
	"github.com/00vDragos/RealTime-Chat/pkg/state"
)

// ActionContext carries one inbound frame through its action.
type ActionContext struct {
	Context context.Context
	Conn    *state.Connection
	Message ClientMessage
}

type ActionFunc func(actx *ActionContext) error

// Typist relays typing indicators.
type Typist interface {
	Typing(ctx context.Context, conversationID, userID string, started bool) error
}

type EventRouter struct {
	actions map[string]ActionFunc
	typist  Typist
	limiter throttle.Limiter
	metrics *metrics.Metrics

	logger *slog.Logger
}

func NewEventRouter(logger *slog.Logger, typist Typist, limiter throttle.Limiter, m *metrics.Metrics) *EventRouter {
	if limiter == nil {
		limiter = throttle.Noop{}
	}
	r := &EventRouter{
		actions: make(map[string]ActionFunc),
		typist:  typist,
		limiter: limiter,
		metrics: m,
		logger:  logger.With(slog.String("component", "event_router")),
	}
	r.Register(eventTypingStart, r.actionTypingStart)
	r.Register(eventTypingStop, r.actionTypingStop)
	return r
}

// Register binds an action to an inbound event name. Registering a name twice panics.
func (r *EventRouter) Register(event string, fn ActionFunc) {
	if _, exists := r.actions[event]; exists {
		panic(fmt.Sprintf("router: action for event '%s' already registered", event))
	}
	r.actions[event] = fn
}

// HandleMessage parses one frame from conn and runs its action. Failures are
// logged and reported back to the originating connection only.
func (r *EventRouter) HandleMessage(ctx context.Context, conn *state.Connection, msg []byte) {
	clientMsg, err := parseClientMessage(msg)
	if err != nil {
		r.logger.Warn("Failed to parse client message", slog.String("connID", conn.ID.String()), slog.Any("error", err))
		r.reply(conn, "", err)
		return
	}

	action, ok := r.actions[clientMsg.Event]
	if !ok {
		r.logger.Warn("Received unknown event", slog.String("event", clientMsg.Event), slog.String("connID", conn.ID.String()))
		r.reply(conn, clientMsg.Event, fmt.Errorf("unknown event '%s'", clientMsg.Event))
		return
	}

	r.logger.Debug("Executing event action", slog.String("event", clientMsg.Event), slog.String("connID", conn.ID.String()))
	actx := &ActionContext{Context: ctx, Conn: conn, Message: clientMsg}
	if err := action(actx); err != nil {
		r.logger.Warn("Action failed", slog.String("event", clientMsg.Event), slog.String("userID", conn.UserID), slog.Any("error", err))
		r.reply(conn, clientMsg.Event, err)
	}
}

func (r *EventRouter) reply(conn *state.Connection, requestEvent string, err error) {
	if sendErr := conn.Transport.Send(encodeError(requestEvent, err)); sendErr != nil {
		r.logger.Debug("Could not report error to client", slog.String("connID", conn.ID.String()), slog.Any("error", sendErr))
	}
}
