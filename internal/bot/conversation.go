package bot

import "sync"

// State is what the bot expects from a user's next plain-text message.
type State int

const (
	StateIdle State = iota
	StateAwaitingCredential
	StateAwaitingSwitchIndex
	StateAwaitingRemoveIndex
	StateAwaitingCheckIndex
)

func (s State) String() string {
	switch s {
	case StateAwaitingCredential:
		return "awaiting-credential"
	case StateAwaitingSwitchIndex:
		return "awaiting-switch-index"
	case StateAwaitingRemoveIndex:
		return "awaiting-remove-index"
	case StateAwaitingCheckIndex:
		return "awaiting-check-index"
	default:
		return "idle"
	}
}

// Conversations tracks per-user states. Idle users are not stored.
type Conversations struct {
	mu     sync.Mutex
	states map[int64]State
}

func NewConversations() *Conversations {
	return &Conversations{states: make(map[int64]State)}
}

func (c *Conversations) Get(userID int64) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[userID]
}

func (c *Conversations) Set(userID int64, s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s == StateIdle {
		delete(c.states, userID)
		return
	}
	c.states[userID] = s
}

// Take returns the user's state and resets it to idle.
func (c *Conversations) Take(userID int64) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.states[userID]
	delete(c.states, userID)
	return s
}
