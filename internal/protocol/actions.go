// Package protocol defines the JSON wire surface: inbound client actions and
// outbound server events. Inbound messages are decoded into a tagged union so
// the orchestrator dispatches on one switch instead of a handler hierarchy.
package protocol

import (
	"encoding/json"
	"errors"
)

var ErrMalformed = errors.New("malformed request")
var ErrUnknownAction = errors.New("unknown action")

// Action is the inbound tagged union. Each variant carries exactly the typed
// payload its handler needs.
type Action interface{ isAction() }

type Status struct{}

type Pong struct{ ClientSentAt int64 }

type RequestCards struct{}

type Authenticate struct{ Password string }

type Join struct{ Name string }

type Chat struct{ Message string }

type Ready struct{}

type Hover struct{ Card string }

type Unhover struct{}

// Select is the broadcast-only selection peek, distinct from CardSelect which
// settles the stage.
type Select struct{ Card string }

type CardSelect struct{ Card string }

type DecidePassiveDiscard struct{ Discard bool }

type InitDiscard struct{}

type SwapPosition struct{ Source, Target string }

func (Status) isAction()               {}
func (Pong) isAction()                 {}
func (RequestCards) isAction()         {}
func (Authenticate) isAction()         {}
func (Join) isAction()                 {}
func (Chat) isAction()                 {}
func (Ready) isAction()                {}
func (Hover) isAction()                {}
func (Unhover) isAction()              {}
func (Select) isAction()               {}
func (CardSelect) isAction()           {}
func (DecidePassiveDiscard) isAction() {}
func (InitDiscard) isAction()          {}
func (SwapPosition) isAction()         {}

// ActionName returns the wire name of an action, used for metric labels.
func ActionName(a Action) string {
	switch a.(type) {
	case Status:
		return "status"
	case Pong:
		return "pong"
	case RequestCards:
		return "requestCharacters"
	case Authenticate:
		return "authenticate"
	case Join:
		return "join"
	case Chat:
		return "chatMessage"
	case Ready:
		return "ready"
	case Hover:
		return "hover"
	case Unhover:
		return "unhover"
	case Select:
		return "select"
	case CardSelect:
		return "cardSelect"
	case DecidePassiveDiscard:
		return "decidePassiveDiscard"
	case InitDiscard:
		return "initDiscard"
	case SwapPosition:
		return "swapPosition"
	default:
		return "unknown"
	}
}

type rawMessage struct {
	Action       string `json:"action"`
	Name         string `json:"name,omitempty"`
	Password     string `json:"password,omitempty"`
	Message      string `json:"message,omitempty"`
	Hovering     string `json:"hovering,omitempty"`
	Selected     string `json:"selected,omitempty"`
	Discard      bool   `json:"discard,omitempty"`
	SourcePos    string `json:"sourcePos,omitempty"`
	TargetPos    string `json:"targetPos,omitempty"`
	ClientSentAt int64  `json:"clientSentAt,omitempty"`
}

// ParseAction decodes one inbound frame. ErrMalformed means bad JSON and is
// surfaced to the client; ErrUnknownAction is a protocol no-op.
func ParseAction(data []byte) (Action, error) {
	var m rawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, ErrMalformed
	}

	switch m.Action {
	case "status":
		return Status{}, nil
	case "pong":
		return Pong{ClientSentAt: m.ClientSentAt}, nil
	case "requestCharacters":
		return RequestCards{}, nil
	case "authenticate":
		return Authenticate{Password: m.Password}, nil
	case "join":
		return Join{Name: m.Name}, nil
	case "chatMessage":
		return Chat{Message: m.Message}, nil
	case "ready":
		return Ready{}, nil
	case "hover":
		return Hover{Card: m.Hovering}, nil
	case "unhover":
		return Unhover{}, nil
	case "select":
		return Select{Card: m.Selected}, nil
	case "cardSelect":
		return CardSelect{Card: m.Selected}, nil
	case "decidePassiveDiscard":
		return DecidePassiveDiscard{Discard: m.Discard}, nil
	case "initDiscard":
		return InitDiscard{}, nil
	case "swapPosition":
		return SwapPosition{Source: m.SourcePos, Target: m.TargetPos}, nil
	default:
		return nil, ErrUnknownAction
	}
}
