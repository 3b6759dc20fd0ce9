// Package codec holds the JSON shapes exchanged between the HTTP server,
// its client and fleet files on disk.
package codec

import (
	"battleship/internal/game"
)

// FleetFile is what `battleship fleet` writes and what clients load back.
type FleetFile struct {
	Rules      game.Rules       `json:"rules"`
	Placements []game.Placement `json:"placements"`
}

type PlaceShipRequest struct {
	Fleet       game.Fleet       `json:"fleet"`
	ShipID      int              `json:"shipId"`
	Origin      game.Coord       `json:"origin"`
	Orientation game.Orientation `json:"orientation"`
}

type FleetResponse struct {
	Fleet      game.Fleet       `json:"fleet"`
	Placements []game.Placement `json:"placements"`
	Complete   bool             `json:"complete"`
}

func NewFleetResponse(f game.Fleet) FleetResponse {
	return FleetResponse{Fleet: f, Placements: f.Placements(), Complete: f.Complete()}
}

// OpponentAI asks the server to seat a computer opponent at once.
const OpponentAI = "ai"

type CreateGameRequest struct {
	Player   game.PlayerID    `json:"player"`
	Ships    []game.Placement `json:"ships"`
	Opponent string           `json:"opponent,omitempty"`
}

type JoinGameRequest struct {
	Player game.PlayerID    `json:"player"`
	Ships  []game.Placement `json:"ships"`
}

type AttackRequest struct {
	Player game.PlayerID `json:"player"`
	X      int           `json:"x"`
	Y      int           `json:"y"`
}

type AttackResponse struct {
	Outcome game.Outcome `json:"outcome"`
	State   game.State   `json:"state"`
}

type GamesResponse struct {
	Games []game.State `json:"games"`
}

type RulesResponse struct {
	Rules game.Rules `json:"rules"`
}

type Health struct {
	Status string `json:"status"`
}

// ErrorBody is the payload of every non-2xx response.
type ErrorBody struct {
	Error    string            `json:"error"`
	Code     game.Code         `json:"code,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func ErrorBodyFrom(err error) ErrorBody {
	if e, ok := asGameError(err); ok {
		return ErrorBody{Error: e.Message, Code: e.Code, Metadata: e.Metadata}
	}
	return ErrorBody{Error: err.Error()}
}

// Err turns a decoded body back into an error. Coded bodies become
// *game.Error so callers can use errors.Is against the game sentinels.
func (b ErrorBody) Err() error {
	if b.Code != "" {
		return &game.Error{Code: b.Code, Message: b.Error, Metadata: b.Metadata}
	}
	return plainError(b.Error)
}

type plainError string

func (e plainError) Error() string { return string(e) }
