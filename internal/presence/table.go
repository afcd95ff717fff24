// Package presence maps authenticated participants to the connection that
// currently represents them.
package presence

import "sync"

// Table resolves a participant to its most recently bound connection.
// The relay hub is the only writer; readers (stats) may run concurrently.
type Table struct {
	mu            sync.RWMutex
	byParticipant map[string]string // participantID -> connID
	byConn        map[string]string // connID -> participantID
}

func NewTable() *Table {
	return &Table{
		byParticipant: make(map[string]string),
		byConn:        make(map[string]string),
	}
}

// Bind makes connID the live connection of participantID. A connection
// previously bound to the participant stops being addressable and is
// returned as replaced.
func (t *Table) Bind(participantID, connID string) (replaced string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// A connection represents a single participant.
	if prevParticipant, bound := t.byConn[connID]; bound && prevParticipant != participantID {
		if t.byParticipant[prevParticipant] == connID {
			delete(t.byParticipant, prevParticipant)
		}
	}

	prev, had := t.byParticipant[participantID]
	if had && prev != connID {
		delete(t.byConn, prev)
	}

	t.byParticipant[participantID] = connID
	t.byConn[connID] = participantID

	return prev, had && prev != connID
}

// Resolve returns the live connection of participantID.
func (t *Table) Resolve(participantID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	connID, ok := t.byParticipant[participantID]
	return connID, ok
}

// Unbind drops whatever binding points at connID. Unknown connections are
// ignored.
func (t *Table) Unbind(connID string) (participantID string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	participantID, ok = t.byConn[connID]
	if !ok {
		return "", false
	}
	delete(t.byConn, connID)
	if t.byParticipant[participantID] == connID {
		delete(t.byParticipant, participantID)
	}
	return participantID, true
}

// Len returns the number of bound participants.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byParticipant)
}
