package api

import (
	"net/http"
	"strconv"

	"github.com/00vDragos/RealTime-Chat/internal/models"
)

func (a *API) createConversation(w http.ResponseWriter, r *http.Request) {
	type request struct {
		CreatorID      string   `json:"creator_id" validate:"required"`
		ParticipantIDs []string `json:"participant_ids" validate:"min=1,dive,required"`
		Title          string   `json:"title" validate:"max=200"`
	}

	var body request
	if !a.decodeBody(w, r, &body) {
		return
	}

	conv, created, err := a.Chat.CreateConversation(r.Context(), body.CreatorID, body.ParticipantIDs, body.Title)
	if err != nil {
		a.respondChatError(w, err, "Could not create conversation")
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	a.respond(w, status, conv)
}

func (a *API) listMessages(w http.ResponseWriter, r *http.Request) {
	type (
		query struct {
			UserID string `json:"user_id" validate:"required"`
			Limit  int    `json:"limit" validate:"gte=0"`
			Offset int    `json:"offset" validate:"gte=0"`
		}
		response struct {
			Messages []models.Message `json:"messages"`
		}
	)

	values := r.URL.Query()
	q := query{UserID: values.Get("user_id")}
	for name, dst := range map[string]*int{"limit": &q.Limit, "offset": &q.Offset} {
		raw := values.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			a.respondError(w, http.StatusBadRequest, err, "Invalid "+name)
			return
		}
		*dst = n
	}
	if !a.validateBody(w, &q) {
		return
	}

	msgs, err := a.Chat.Messages(r.Context(), r.PathValue("conversationID"), q.UserID, q.Limit, q.Offset)
	if err != nil {
		a.respondChatError(w, err, "Could not list messages")
		return
	}
	a.respond(w, http.StatusOK, response{Messages: msgs})
}

func (a *API) sendMessage(w http.ResponseWriter, r *http.Request) {
	type request struct {
		SenderID string `json:"sender_id" validate:"required"`
		Body     string `json:"body" validate:"required,max=4000"`
	}

	var body request
	if !a.decodeBody(w, r, &body) {
		return
	}

	msg, err := a.Chat.SendMessage(r.Context(), r.PathValue("conversationID"), body.SenderID, body.Body)
	if err != nil {
		a.respondChatError(w, err, "Could not send message")
		return
	}
	a.respond(w, http.StatusCreated, msg)
}

func (a *API) editMessage(w http.ResponseWriter, r *http.Request) {
	type request struct {
		UserID string `json:"user_id" validate:"required"`
		Body   string `json:"body" validate:"required,max=4000"`
	}

	var body request
	if !a.decodeBody(w, r, &body) {
		return
	}

	msg, err := a.Chat.EditMessage(r.Context(), r.PathValue("messageID"), body.UserID, body.Body)
	if err != nil {
		a.respondChatError(w, err, "Could not edit message")
		return
	}
	a.respond(w, http.StatusOK, msg)
}

func (a *API) deleteMessage(w http.ResponseWriter, r *http.Request) {
	type (
		request struct {
			UserID string `json:"user_id" validate:"required"`
		}
		response struct {
			ID      string `json:"id"`
			Deleted bool   `json:"deleted"`
		}
	)

	var body request
	if !a.decodeBody(w, r, &body) {
		return
	}

	messageID := r.PathValue("messageID")
	if err := a.Chat.DeleteMessage(r.Context(), messageID, body.UserID); err != nil {
		a.respondChatError(w, err, "Could not delete message")
		return
	}
	a.respond(w, http.StatusOK, response{ID: messageID, Deleted: true})
}

type reactionRequest struct {
	UserID       string `json:"user_id" validate:"required"`
	ReactionType string `json:"reaction_type" validate:"required,max=32"`
}

type reactionResponse struct {
	MessageID string           `json:"message_id"`
	Reactions models.Reactions `json:"reactions"`
}

func (a *API) addReaction(w http.ResponseWriter, r *http.Request) {
	var body reactionRequest
	if !a.decodeBody(w, r, &body) {
		return
	}

	msg, err := a.Chat.AddReaction(r.Context(), r.PathValue("messageID"), body.UserID, body.ReactionType)
	if err != nil {
		a.respondChatError(w, err, "Could not add reaction")
		return
	}
	a.respond(w, http.StatusCreated, reactionResponse{MessageID: msg.ID, Reactions: msg.Reactions})
}

func (a *API) changeReaction(w http.ResponseWriter, r *http.Request) {
	var body reactionRequest
	if !a.decodeBody(w, r, &body) {
		return
	}

	msg, err := a.Chat.ChangeReaction(r.Context(), r.PathValue("messageID"), body.UserID, body.ReactionType)
	if err != nil {
		a.respondChatError(w, err, "Could not change reaction")
		return
	}
	a.respond(w, http.StatusOK, reactionResponse{MessageID: msg.ID, Reactions: msg.Reactions})
}

func (a *API) removeReaction(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if errs := a.Val.Validate(userID, "required"); len(errs) > 0 {
		errs[0].Field = "user_id"
		a.respond(w, http.StatusBadRequest, map[string]any{"errors": errs})
		return
	}

	msg, err := a.Chat.RemoveReaction(r.Context(), r.PathValue("messageID"), userID, r.PathValue("reactionType"))
	if err != nil {
		a.respondChatError(w, err, "Could not remove reaction")
		return
	}
	a.respond(w, http.StatusOK, reactionResponse{MessageID: msg.ID, Reactions: msg.Reactions})
}

func (a *API) markRead(w http.ResponseWriter, r *http.Request) {
	type request struct {
		UserID    string `json:"user_id" validate:"required"`
		MessageID string `json:"message_id"`
	}

	var body request
	if !a.decodeBody(w, r, &body) {
		return
	}

	if err := a.Chat.MarkRead(r.Context(), r.PathValue("conversationID"), body.UserID, body.MessageID); err != nil {
		a.respondChatError(w, err, "Could not mark conversation read")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) userOnline(w http.ResponseWriter, r *http.Request) {
	type response struct {
		UserID   string `json:"user_id"`
		IsOnline bool   `json:"is_online"`
	}

	userID := r.PathValue("userID")
	a.respond(w, http.StatusOK, response{UserID: userID, IsOnline: a.Presence.IsOnline(userID)})
}
