// Package api exposes the chat mutations over HTTP. Every successful mutation
// fans its event out to connected clients through the chat service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/00vDragos/RealTime-Chat/internal/api/validator"
	"github.com/00vDragos/RealTime-Chat/internal/chat"
	"github.com/00vDragos/RealTime-Chat/internal/models"
)

// Chat is the mutation surface the handlers drive.
type Chat interface {
	Messages(ctx context.Context, conversationID, userID string, limit, offset int) ([]models.Message, error)
	SendMessage(ctx context.Context, conversationID, senderID, body string) (models.Message, error)
	EditMessage(ctx context.Context, messageID, userID, body string) (models.Message, error)
	DeleteMessage(ctx context.Context, messageID, userID string) error
	AddReaction(ctx context.Context, messageID, userID, emoji string) (models.Message, error)
	ChangeReaction(ctx context.Context, messageID, userID, emoji string) (models.Message, error)
	RemoveReaction(ctx context.Context, messageID, userID, emoji string) (models.Message, error)
	CreateConversation(ctx context.Context, creatorID string, participantIDs []string, title string) (models.Conversation, bool, error)
	MarkRead(ctx context.Context, conversationID, userID, messageID string) error
}

// Presence answers whether a user currently holds a live connection.
type Presence interface {
	IsOnline(userID string) bool
}

// API provides the REST endpoints for the application.
type API struct {
	Logger   *slog.Logger
	Chat     Chat
	Presence Presence
	Val      *validator.Validator

	once sync.Once
	mux  *http.ServeMux
}

func (a *API) setupRoutes() {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /conversations", a.createConversation)
	mux.HandleFunc("GET /conversations/{conversationID}/messages", a.listMessages)
	mux.HandleFunc("POST /conversations/{conversationID}/messages", a.sendMessage)
	mux.HandleFunc("POST /conversations/{conversationID}/read", a.markRead)
	mux.HandleFunc("PUT /messages/{messageID}", a.editMessage)
	mux.HandleFunc("DELETE /messages/{messageID}", a.deleteMessage)
	mux.HandleFunc("POST /messages/{messageID}/reactions", a.addReaction)
	mux.HandleFunc("PUT /messages/{messageID}/reactions", a.changeReaction)
	mux.HandleFunc("DELETE /messages/{messageID}/reactions/{reactionType}", a.removeReaction)
	mux.HandleFunc("GET /users/{userID}/online", a.userOnline)

	a.mux = mux
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.once.Do(a.setupRoutes)
	a.Logger.Debug("Request received", "method", r.Method, "path", r.URL.Path)
	a.mux.ServeHTTP(w, r)
}

func (a *API) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.Logger.Error("Could not encode JSON body", "error", err.Error())
	}
}

func (a *API) respondError(w http.ResponseWriter, status int, err error, msg string) {
	type response struct {
		Error string `json:"error"`
	}
	if status >= http.StatusInternalServerError {
		a.Logger.Error("Error", "error", err.Error())
	} else {
		a.Logger.Debug("Request rejected", "status", status, "error", err.Error())
	}
	a.respond(w, status, response{Error: msg})
}

// respondChatError maps service sentinels onto status codes.
func (a *API) respondChatError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, chat.ErrNotParticipant):
		a.respondError(w, http.StatusForbidden, err, "User is not a participant of this conversation")
	case errors.Is(err, chat.ErrNotSender):
		a.respondError(w, http.StatusForbidden, err, "Only the sender can modify this message")
	case errors.Is(err, chat.ErrNotFound):
		a.respondError(w, http.StatusNotFound, err, "Not found")
	case errors.Is(err, chat.ErrReactionExists):
		a.respondError(w, http.StatusConflict, err, "User already has a reaction on this message")
	case errors.Is(err, chat.ErrNoReaction):
		a.respondError(w, http.StatusBadRequest, err, "User has no reaction on this message")
	case errors.Is(err, chat.ErrInvalidConversation), errors.Is(err, chat.ErrEmptyBody):
		a.respondError(w, http.StatusBadRequest, err, err.Error())
	default:
		a.respondError(w, http.StatusInternalServerError, err, fallback)
	}
}

// decodeBody decodes and validates a JSON body, writing the error response itself.
func (a *API) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		a.respondError(w, http.StatusBadRequest, err, "Could not decode request body")
		return false
	}
	return a.validateBody(w, dst)
}

func (a *API) validateBody(w http.ResponseWriter, s any) bool {
	errs := a.Val.ValidateStruct(s)
	type response struct {
		Errors []validator.ValidationError `json:"errors"`
	}

	if len(errs) > 0 {
		a.respond(w, http.StatusBadRequest, &response{
			Errors: errs,
		})
		return false
	}
	return true
}
