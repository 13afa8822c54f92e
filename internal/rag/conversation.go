package rag

import "sync"

// maxHistoryTurns bounds how many past turns a conversation feeds back
// into generation. Older turns age out silently.
const maxHistoryTurns = 10

// Turn is one completed exchange: the user's query and the answer it
// received.
type Turn struct {
	Query  string
	Answer string
}

type conversationState struct {
	responseID string
	turns      []Turn
}

// ConversationCache remembers recent turns and the last provider
// response id per conversation so follow-up queries carry their history
// into generation. Purely in-memory; a restart forgets all
// conversations, which only costs continuity, not correctness.
//
// Safe for concurrent use.
type ConversationCache struct {
	mu            sync.Mutex
	conversations map[string]*conversationState
}

// NewConversationCache creates an empty cache.
func NewConversationCache() *ConversationCache {
	return &ConversationCache{conversations: make(map[string]*conversationState)}
}

// Get returns the last response id for a conversation, if any.
func (c *ConversationCache) Get(conversationID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.conversations[conversationID]
	if !ok {
		return "", false
	}
	return st.responseID, true
}

// History returns the recorded turns for a conversation, oldest first.
// The returned slice is a copy.
func (c *ConversationCache) History(conversationID string) []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.conversations[conversationID]
	if !ok || len(st.turns) == 0 {
		return nil
	}
	turns := make([]Turn, len(st.turns))
	copy(turns, st.turns)
	return turns
}

// Record appends a completed turn and the response id that produced it.
// Only the most recent maxHistoryTurns turns are kept.
func (c *ConversationCache) Record(conversationID, responseID string, turn Turn) {
	if conversationID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.conversations[conversationID]
	if !ok {
		st = &conversationState{}
		c.conversations[conversationID] = st
	}
	st.responseID = responseID
	st.turns = append(st.turns, turn)
	if len(st.turns) > maxHistoryTurns {
		st.turns = st.turns[len(st.turns)-maxHistoryTurns:]
	}
}

// Clear forgets every conversation.
func (c *ConversationCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conversations = make(map[string]*conversationState)
}

// Len returns the number of tracked conversations.
func (c *ConversationCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.conversations)
}
