package telegram

import "sync"

// registration steps for the two-message /set dialog.
type step int

const (
	stepStreet step = iota + 1
	stepHouse
)

type pending struct {
	step   step
	street string
}

// conversations tracks in-flight /set dialogs per chat. State is in-memory
// only: a restart simply asks the subscriber to start over.
type conversations struct {
	mu     sync.Mutex
	byChat map[int64]*pending
}

func newConversations() *conversations {
	return &conversations{byChat: make(map[int64]*pending)}
}

// begin starts (or restarts) the dialog for a chat.
func (c *conversations) begin(chatID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byChat[chatID] = &pending{step: stepStreet}
}

// get returns the in-flight dialog state, or nil.
func (c *conversations) get(chatID int64) *pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.byChat[chatID]
}

// advance stores the street and moves to the house step.
func (c *conversations) advance(chatID int64, street string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p := c.byChat[chatID]; p != nil {
		p.step = stepHouse
		p.street = street
	}
}

// clear ends the dialog for a chat.
func (c *conversations) clear(chatID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byChat, chatID)
}
