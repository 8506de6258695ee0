// Package rpc implements the command/response envelope and its
// validation-error projection described in the spec's RPC codec
// component.
package rpc

import (
	"encoding/json"
	"fmt"
)

// Command is a decoded client->server envelope: {"action":..., "message":...}.
type Command struct {
	Action  string          `json:"action"`
	Message json.RawMessage `json:"message"`
}

// Envelope is the server->client wire shape: the same {action, message}
// structure, with Message holding either a payload or an ErrorsPayload.
type Envelope struct {
	Action  string `json:"action"`
	Message any    `json:"message"`
}

// ErrorDetail is one entry of an ErrorsPayload. Loc is either a single
// field name or, for nested paths, a []any of path segments.
type ErrorDetail struct {
	Loc   any    `json:"loc,omitempty"`
	Msg   string `json:"msg"`
	Input any    `json:"input,omitempty"`
}

// ErrorsPayload is the shape carried in Envelope.Message on any
// recoverable failure.
type ErrorsPayload struct {
	Errors []ErrorDetail `json:"errors"`
}

// SingleError builds an Envelope carrying exactly one error, the shape
// used for "unknown action" and asset-not-found responses.
func SingleError(action, msg string) Envelope {
	return Envelope{
		Action:  action,
		Message: ErrorsPayload{Errors: []ErrorDetail{{Msg: msg}}},
	}
}

// DecodeCommand parses raw into a Command, producing the
// validation-error projection the spec requires when a field is
// missing or malformed: one ErrorDetail per problem field, with Loc
// collapsed to a bare string when the path has length 1.
//
// The return values distinguish "parsed, but invalid" (a
// non-nil errs slice) from "could not even be parsed as a JSON object"
// (a non-nil err), matching the two distinct failure modes the
// connection service must send different messages for.
func DecodeCommand(raw []byte) (*Command, []ErrorDetail, error) {
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, nil, fmt.Errorf("decode json: %w", err)
	}

	obj, ok := generic.(map[string]any)
	if !ok {
		return nil, nil, errNotObject{value: generic}
	}

	var errs []ErrorDetail

	actionVal, hasAction := obj["action"]
	action, actionIsString := actionVal.(string)
	if !hasAction {
		errs = append(errs, ErrorDetail{Loc: "action", Msg: "Field required", Input: obj})
	} else if !actionIsString {
		errs = append(errs, ErrorDetail{Loc: "action", Msg: "Input should be a valid string", Input: actionVal})
	}

	messageVal, hasMessage := obj["message"]
	var messageObj map[string]any
	if !hasMessage {
		errs = append(errs, ErrorDetail{Loc: "message", Msg: "Field required", Input: obj})
	} else if m, ok := messageVal.(map[string]any); !ok {
		errs = append(errs, ErrorDetail{Loc: "message", Msg: "Input should be a valid object", Input: messageVal})
	} else {
		messageObj = m
	}

	if len(errs) > 0 {
		return nil, errs, nil
	}

	messageRaw, err := json.Marshal(messageObj)
	if err != nil {
		return nil, nil, fmt.Errorf("re-encode message field: %w", err)
	}

	return &Command{Action: action, Message: json.RawMessage(messageRaw)}, nil, nil
}

// errNotObject marks a decoded JSON value that parsed fine but is not
// a top-level object, e.g. a bare string, number or array.
type errNotObject struct{ value any }

func (e errNotObject) Error() string {
	return fmt.Sprintf("decoded value is not a JSON object: %T", e.value)
}

// NotObjectType returns the dynamic type of the offending value and
// true when err marks a decoded-but-not-an-object failure, so the
// connection service can build its typed error string without
// reaching into an unexported type.
func NotObjectType(err error) (any, bool) {
	notObj, ok := err.(errNotObject)
	if !ok {
		return nil, false
	}
	return notObj.value, true
}
