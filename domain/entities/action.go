package entities

import "errors"

// Function names exposed to the reasoning model
const (
	FunctionAnswerUser        = "answer_user"
	FunctionCallHomeAssistant = "call_home_assistant"
	FunctionRecognizeSong     = "recognize_song"
)

// ErrUnknownAction is returned when a model response carries no recognized action
var ErrUnknownAction = errors.New("model returned no recognized action")

// Action is the tagged union of model responses. Dispatch goes through
// ActionVisitor so adding a variant breaks every dispatcher at compile time.
type Action interface {
	Accept(v ActionVisitor) error
	FunctionName() string
}

// ActionVisitor must handle every Action variant
type ActionVisitor interface {
	VisitAnswerUser(a AnswerUser) error
	VisitCallHomeAssistant(a CallHomeAssistant) error
	VisitRecognizeSong(a RecognizeSong) error
}

// AnswerUser speaks a response to the user
type AnswerUser struct {
	SpokenResponse string `json:"spoken_response"`
}

func (a AnswerUser) Accept(v ActionVisitor) error { return v.VisitAnswerUser(a) }
func (a AnswerUser) FunctionName() string         { return FunctionAnswerUser }

// CallHomeAssistant controls a mock smart-home entity
type CallHomeAssistant struct {
	EntityID            string  `json:"entity_id"`
	Service             Service `json:"service"`
	ConfirmationMessage string  `json:"confirmation_message"`
}

func (a CallHomeAssistant) Accept(v ActionVisitor) error { return v.VisitCallHomeAssistant(a) }
func (a CallHomeAssistant) FunctionName() string         { return FunctionCallHomeAssistant }

// RecognizeSong asks for the currently playing song
type RecognizeSong struct{}

func (a RecognizeSong) Accept(v ActionVisitor) error { return v.VisitRecognizeSong(a) }
func (a RecognizeSong) FunctionName() string         { return FunctionRecognizeSong }

// ActionFromFunctionCall decodes a model function call into an Action
func ActionFromFunctionCall(call FunctionCall) (Action, error) {
	switch call.Name {
	case FunctionAnswerUser:
		response, _ := call.Args["spoken_response"].(string)
		if response == "" {
			return nil, errors.New("answer_user requires spoken_response")
		}
		return AnswerUser{SpokenResponse: response}, nil
	case FunctionCallHomeAssistant:
		entityID, _ := call.Args["entity_id"].(string)
		service, _ := call.Args["service"].(string)
		confirmation, _ := call.Args["confirmation_message"].(string)
		if entityID == "" || service == "" {
			return nil, errors.New("call_home_assistant requires entity_id and service")
		}
		return CallHomeAssistant{
			EntityID:            entityID,
			Service:             Service(service),
			ConfirmationMessage: confirmation,
		}, nil
	case FunctionRecognizeSong:
		return RecognizeSong{}, nil
	default:
		return nil, ErrUnknownAction
	}
}

// ActionToFunctionCall encodes an Action in the wire form the console expects
func ActionToFunctionCall(action Action) FunctionCall {
	call := FunctionCall{Name: action.FunctionName(), Args: map[string]any{}}
	switch a := action.(type) {
	case AnswerUser:
		call.Args["spoken_response"] = a.SpokenResponse
	case CallHomeAssistant:
		call.Args["entity_id"] = a.EntityID
		call.Args["service"] = string(a.Service)
		call.Args["confirmation_message"] = a.ConfirmationMessage
	}
	return call
}
