package net

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"SharedBoard/internal/relay"
	"SharedBoard/internal/state"
)

var ErrRoomNotFound = errors.New("room not found")

// FetchStrokes reads the relay's current replica of the link's room without
// joining it.
func FetchStrokes(ctx context.Context, link Link) ([]state.Stroke, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link.RoomURL(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch room %s: %w", link.RoomID, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, link.RoomID)
	default:
		return nil, fmt.Errorf("fetch room %s: %s", link.RoomID, resp.Status)
	}
	var view relay.RoomView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		return nil, fmt.Errorf("fetch room %s: %w", link.RoomID, err)
	}
	return view.Strokes, nil
}
