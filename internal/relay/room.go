package relay

import (
	"SharedBoard/internal/state"
)

// room is the relay's view of one room: who is connected here and the
// replica of its strokes used to bootstrap newcomers. The relay tracks
// strokes by id only and never looks inside them.
type room struct {
	id      string
	members map[*Client]bool
	strokes state.Sequence
}

func newRoom(id string) *room {
	return &room{id: id, members: make(map[*Client]bool)}
}

func (r *room) add(c *Client) {
	r.members[c] = true
}

func (r *room) remove(c *Client) {
	delete(r.members, c)
}

// broadcast queues data for every member except exclude.
func (r *room) broadcast(data []byte, exclude *Client) {
	for c := range r.members {
		if c != exclude {
			c.enqueue(data)
		}
	}
}

func (r *room) usernames() []string {
	out := make([]string, 0, len(r.members))
	for c := range r.members {
		out = append(out, c.username)
	}
	return out
}
