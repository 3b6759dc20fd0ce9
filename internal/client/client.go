// Package client talks to the battleship HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"battleship/internal/codec"
	"battleship/internal/game"
	"battleship/internal/notify"
)

// ErrNotModified is returned by Poll when the server still has the state
// identified by the given ETag.
var ErrNotModified = errors.New("client: not modified")

type Client struct {
	base string
	http *http.Client
}

func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: hc}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return resp, decodeError(resp)
	}
	if out != nil && resp.StatusCode != http.StatusNotModified {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	return resp, nil
}

// decodeError turns an error response into *game.Error when it carries a
// code.
func decodeError(resp *http.Response) error {
	var body codec.ErrorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error == "" {
		return fmt.Errorf("http %d", resp.StatusCode)
	}
	return body.Err()
}

func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/v1/health", nil, nil)
	return err
}

func (c *Client) Rules(ctx context.Context) (game.Rules, error) {
	var out codec.RulesResponse
	_, err := c.do(ctx, http.MethodGet, "/v1/rules", nil, &out)
	return out.Rules, err
}

func (c *Client) RandomFleet(ctx context.Context) (codec.FleetResponse, error) {
	var out codec.FleetResponse
	_, err := c.do(ctx, http.MethodPost, "/v1/fleets/random", nil, &out)
	return out, err
}

func (c *Client) PlaceShip(ctx context.Context, req codec.PlaceShipRequest) (codec.FleetResponse, error) {
	var out codec.FleetResponse
	_, err := c.do(ctx, http.MethodPost, "/v1/fleets/place", req, &out)
	return out, err
}

func (c *Client) CreateGame(ctx context.Context, req codec.CreateGameRequest) (game.State, error) {
	var out game.State
	_, err := c.do(ctx, http.MethodPost, "/v1/games", req, &out)
	return out, err
}

func (c *Client) ListWaiting(ctx context.Context) ([]game.State, error) {
	var out codec.GamesResponse
	_, err := c.do(ctx, http.MethodGet, "/v1/games?status=waiting", nil, &out)
	return out.Games, err
}

func (c *Client) Join(ctx context.Context, id string, req codec.JoinGameRequest) (game.State, error) {
	var out game.State
	_, err := c.do(ctx, http.MethodPost, "/v1/games/"+url.PathEscape(id)+"/join", req, &out)
	return out, err
}

func (c *Client) Attack(ctx context.Context, id string, player game.PlayerID, target game.Coord) (codec.AttackResponse, error) {
	var out codec.AttackResponse
	req := codec.AttackRequest{Player: player, X: target.X, Y: target.Y}
	_, err := c.do(ctx, http.MethodPost, "/v1/games/"+url.PathEscape(id)+"/attack", req, &out)
	return out, err
}

func (c *Client) State(ctx context.Context, id string) (game.State, error) {
	st, _, err := c.Poll(ctx, id, "")
	return st, err
}

// Poll fetches the public state. When etag matches the server's current
// version it returns ErrNotModified and the same etag.
func (c *Client) Poll(ctx context.Context, id, etag string) (game.State, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/v1/games/"+url.PathEscape(id), nil)
	if err != nil {
		return game.State{}, "", err
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return game.State{}, "", fmt.Errorf("poll %s: %w", id, err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotModified:
		return game.State{}, etag, ErrNotModified
	case resp.StatusCode >= 400:
		return game.State{}, "", decodeError(resp)
	}
	var st game.State
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return game.State{}, "", fmt.Errorf("decode state: %w", err)
	}
	return st, resp.Header.Get("ETag"), nil
}

func (c *Client) View(ctx context.Context, id string, player game.PlayerID) (game.View, error) {
	var out game.View
	path := "/v1/games/" + url.PathEscape(id) + "/view?player=" + url.QueryEscape(string(player))
	_, err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// Subscribe streams change events for a game until ctx ends or the
// connection drops. The channel is closed on return.
func (c *Client) Subscribe(ctx context.Context, id string) (<-chan notify.Event, error) {
	u, err := url.Parse(c.base)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/games/" + url.PathEscape(id) + "/ws"

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 {
			defer resp.Body.Close()
			return nil, decodeError(resp)
		}
		return nil, fmt.Errorf("subscribe %s: %w", id, err)
	}

	out := make(chan notify.Event, 8)
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			var ev notify.Event
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
