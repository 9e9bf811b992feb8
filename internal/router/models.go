package router

import (
	"encoding/json"
	"errors"

	"github.com/tidwall/gjson"
)

var (
	errMalformedFrame = errors.New("frame is not valid JSON")
	errMissingEvent   = errors.New("frame has no event")
)

// ClientMessage is an inbound frame, e.g. {"event":"typing_start","conversation_id":"..."}.
type ClientMessage struct {
	Event          string
	ConversationID string
	Raw            gjson.Result
}

func parseClientMessage(msg []byte) (ClientMessage, error) {
	if !gjson.ValidBytes(msg) {
		return ClientMessage{}, errMalformedFrame
	}
	raw := gjson.ParseBytes(msg)
	event := raw.Get("event").String()
	if event == "" {
		return ClientMessage{}, errMissingEvent
	}
	return ClientMessage{
		Event:          event,
		ConversationID: raw.Get("conversation_id").String(),
		Raw:            raw,
	}, nil
}

// errorFrame is sent back to the originating connection when a frame is rejected.
type errorFrame struct {
	Event        string `json:"event"`
	RequestEvent string `json:"request_event,omitempty"`
	Error        string `json:"error"`
}

func encodeError(requestEvent string, err error) []byte {
	b, _ := json.Marshal(errorFrame{Event: "error", RequestEvent: requestEvent, Error: err.Error()})
	return b
}
