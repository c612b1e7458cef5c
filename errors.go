package ndp

import "errors"

// ErrQueueClosed indicates that a queue has been closed and no further
// packets will be delivered on it.
var ErrQueueClosed = errors.New("ndp: queue closed")

// ErrShortHeader indicates that a raw packet is too short to contain a
// full NDP header.
var ErrShortHeader = errors.New("ndp: packet shorter than NDP header")

// ErrUnsupportedNetworkLayer indicates that a frame carries no IPv4
// layer or no NDP layer.
var ErrUnsupportedNetworkLayer = errors.New("ndp: unsupported network layer")

// ErrNoRoute indicates that the [Network] has no destination registered
// for a packet's destination address.
var ErrNoRoute = errors.New("ndp: no route to destination")
