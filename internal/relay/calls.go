package relay

import "time"

// call is a Proposed handshake. Answered and Abandoned calls are dropped
// from the table.
type call struct {
	callerID   string
	calleeID   string
	caller     *Client
	callee     *Client
	proposedAt time.Time
}

// callTable holds at most one outstanding offer per callee connection.
// Owned by the hub loop.
type callTable struct {
	byCallee map[*Client]*call
}

func newCallTable() *callTable {
	return &callTable{byCallee: make(map[*Client]*call)}
}

func (t *callTable) propose(cl *call) {
	t.byCallee[cl.callee] = cl
}

func (t *callTable) pendingFor(callee *Client) *call {
	return t.byCallee[callee]
}

// between returns the pending call in which self and the participant peer
// are caller and callee, in either direction.
func (t *callTable) between(self *Client, selfID, peer string) *call {
	if cl, ok := t.byCallee[self]; ok && cl.callerID == peer {
		return cl
	}
	for _, cl := range t.byCallee {
		if cl.caller == self && cl.callerID == selfID && cl.calleeID == peer {
			return cl
		}
	}
	return nil
}

func (t *callTable) remove(cl *call) {
	if t.byCallee[cl.callee] == cl {
		delete(t.byCallee, cl.callee)
	}
}

// involving removes and returns every pending call c takes part in.
func (t *callTable) involving(c *Client) []*call {
	var out []*call
	for callee, cl := range t.byCallee {
		if callee == c || cl.caller == c {
			out = append(out, cl)
			delete(t.byCallee, callee)
		}
	}
	return out
}

func (t *callTable) len() int {
	return len(t.byCallee)
}
