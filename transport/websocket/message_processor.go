package websocket

import (
	"encoding/json"
	"fmt"

	"github.com/rocketscienceinc/gridarbiter/internal/apperror"
	"github.com/rocketscienceinc/gridarbiter/internal/entity"
	"github.com/rocketscienceinc/gridarbiter/internal/usecase"
)

const (
	messageTypeMove  = "move"
	messageTypePlace = "place"
)

// Message is the envelope every inbound frame must carry.
type Message struct {
	Type string `json:"type" validate:"required"`
}

type positionRequest struct {
	Row *int `json:"row" validate:"required,min=0"`
	Col *int `json:"col" validate:"required,min=0"`
}

func (that *positionRequest) position() entity.Position {
	return entity.Position{Row: *that.Row, Col: *that.Col}
}

type moveRequest struct {
	ActingTeam  string           `json:"actingTeam" validate:"required,oneof=A B"`
	Origin      *positionRequest `json:"origin" validate:"required"`
	Destination *positionRequest `json:"destination" validate:"required"`
}

type placeRequest struct {
	Team      string           `json:"team" validate:"required,oneof=A B"`
	Position  *positionRequest `json:"position" validate:"required"`
	PieceKind string           `json:"pieceKind" validate:"required"`
}

// outboundMessage covers every frame the server sends. Empty fields are omitted, so an
// invalid notification is exactly {"type":"invalid"}.
type outboundMessage struct {
	Type       string            `json:"type"`
	Session    string            `json:"session,omitempty"`
	Team       entity.Team       `json:"team,omitempty"`
	Board      [][]*entity.Piece `json:"board,omitempty"`
	ActiveTeam entity.Team       `json:"activeTeam,omitempty"`
	Winner     entity.Team       `json:"winner,omitempty"`
	Reason     string            `json:"reason,omitempty"`
}

func toOutbound(notification usecase.Notification) outboundMessage {
	message := outboundMessage{Type: string(notification.Type)}

	switch notification.Type {
	case usecase.NotificationJoined:
		message.Session = notification.SessionID
		message.Team = notification.Team
	case usecase.NotificationUpdate:
		message.Board = notification.Snapshot.Board
		message.ActiveTeam = notification.Snapshot.ActiveTeam
	case usecase.NotificationGameOver:
		message.Winner = notification.Winner
		message.Reason = notification.Reason
	case usecase.NotificationInvalid:
	}

	return message
}

func (that *Server) decodeMessage(payload []byte) (*Message, error) {
	var message Message
	if err := json.Unmarshal(payload, &message); err != nil {
		return nil, fmt.Errorf("%w: %w", apperror.ErrMalformedRequest, err)
	}

	if err := that.validate.Struct(&message); err != nil {
		return nil, fmt.Errorf("%w: %w", apperror.ErrMalformedRequest, err)
	}

	return &message, nil
}

func (that *Server) decodeMove(payload []byte) (entity.Action, error) {
	var request moveRequest
	if err := that.decodeRequest(payload, &request); err != nil {
		return entity.Action{}, err
	}

	team, err := entity.ParseTeam(request.ActingTeam)
	if err != nil {
		return entity.Action{}, fmt.Errorf("%w: %w", apperror.ErrMalformedRequest, err)
	}

	return entity.Action{
		Type:        entity.ActionMove,
		Team:        team,
		Origin:      request.Origin.position(),
		Destination: request.Destination.position(),
	}, nil
}

func (that *Server) decodePlace(payload []byte) (entity.Action, error) {
	var request placeRequest
	if err := that.decodeRequest(payload, &request); err != nil {
		return entity.Action{}, err
	}

	team, err := entity.ParseTeam(request.Team)
	if err != nil {
		return entity.Action{}, fmt.Errorf("%w: %w", apperror.ErrMalformedRequest, err)
	}

	kind, err := entity.ParseKind(request.PieceKind)
	if err != nil {
		return entity.Action{}, fmt.Errorf("%w: %w", apperror.ErrMalformedRequest, err)
	}

	return entity.Action{
		Type:     entity.ActionPlace,
		Team:     team,
		Position: request.Position.position(),
		Kind:     kind,
	}, nil
}

func (that *Server) decodeRequest(payload []byte, request any) error {
	if err := json.Unmarshal(payload, request); err != nil {
		return fmt.Errorf("%w: %w", apperror.ErrMalformedRequest, err)
	}

	if err := that.validate.Struct(request); err != nil {
		return fmt.Errorf("%w: %w", apperror.ErrMalformedRequest, err)
	}

	return nil
}
