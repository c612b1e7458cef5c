package ndp

//
// Per-receive-message credit state, owned exclusively by [IngressPipe].
//

import "sync"

// creditTable maps rx_msg_id to the pull_offset to advertise next.
// credit is never decremented. The zero value is ready to use.
type creditTable struct {
	mu      sync.Mutex
	entries map[RxMsgID]uint16
}

// newCreditTable creates an empty creditTable.
func newCreditTable() *creditTable {
	return &creditTable{entries: make(map[RxMsgID]uint16)}
}

// initOrAdvance implements spec.md §3/§4.1 step 4: on a new message,
// credit is initialised to rttPkts+pullOffsetDiff; otherwise it is
// incremented by pullOffsetDiff. It returns the resulting pull_offset.
func (c *creditTable) initOrAdvance(id RxMsgID, isNewMsg bool, rttPkts, pullOffsetDiff uint16) uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[RxMsgID]uint16)
	}
	if isNewMsg {
		c.entries[id] = rttPkts + pullOffsetDiff
	} else {
		c.entries[id] += pullOffsetDiff
	}
	return c.entries[id]
}

// get returns the current credit for id and whether an entry exists.
func (c *creditTable) get(id RxMsgID) (uint16, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[id]
	return v, ok
}
