package types

import "time"

// Kind classifies a message for demultiplexing on the receiver side.
// The numeric values are the exact wire encoding of the one-byte kind
// frame.
type Kind byte

const (
	// Request is a message that expects a reply from its destination.
	Request Kind = 0x00
	// Reply answers a previously issued Request, carrying the same
	// message id.
	Reply Kind = 0x01
	// Route is traffic this node must forward to its destination
	// rather than handle locally.
	Route Kind = 0x02
)

func (k Kind) String() string {
	switch k {
	case Request:
		return "REQUEST"
	case Reply:
		return "REPLY"
	case Route:
		return "ROUTE"
	default:
		return "UNKNOWN"
	}
}

// Handler is implemented by anything that can be addressed by a
// command id and participate in the app/sender hooks. Defined here,
// alongside Message, to avoid an import cycle between the message and
// handler contracts.
type Handler interface {
	// CommandID is the wire command id this handler answers to.
	CommandID() []byte

	// Tick is called once per app-worker loop.
	Tick(tick time.Time)

	// OnRequest handles an inbound Request. A non-nil *Message return
	// value is queued for sending at the given Priority.
	OnRequest(m *Message) (Priority, *Message, bool)

	// OnReply handles an inbound Reply to a message this handler
	// previously issued. A non-nil *Message return value is queued
	// for sending at the given Priority.
	OnReply(m *Message) (Priority, *Message, bool)

	// OnSent is invoked on the sender worker once a message this
	// handler owns has left the socket successfully.
	OnSent(m *Message)

	// OnSendFailed is invoked on the sender worker when the transport
	// rejected a send attempt for a message that still has time to
	// live. Returning a non-nil message re-queues it on the FAST lane,
	// whatever lane it was sent from; returning nil drops it.
	OnSendFailed(m *Message, err error) *Message

	// OnDropped is invoked when a message fails send validation
	// (including an expired time to live), cannot be encoded, or is
	// found expired after a failed send. A message that OnSendFailed
	// declines to re-queue is dropped without this call.
	OnDropped(m *Message)

	Start()
	Stop()
}

// Message is a single routed unit exchanged between nodes.
type Message struct {
	Source      NodeID
	Destination NodeID
	PreviousHop NodeID
	NextHop     NodeID

	Command []byte
	Kind    Kind

	// MessageID is a process-local monotonically increasing counter,
	// copied verbatim on replies so they can be correlated with the
	// request that caused them.
	MessageID uint64

	// TimeToLive is an absolute wall-clock deadline: the message must
	// not be handed to the transport after this instant.
	TimeToLive time.Time

	Payload map[string]interface{}

	// Handler is populated by the dispatcher on the receive path and
	// by the originator on the send path.
	Handler Handler
}

// CreateReply builds a reply to this message, defaulting source/
// destination/hops/command/handler/message-id from the original the
// way Message.create_reply does in the original Python implementation.
func (m *Message) CreateReply(ttl time.Duration) *Message {
	reply := &Message{
		Source:      m.Destination,
		Destination: m.Source,
		PreviousHop: m.NextHop,
		NextHop:     m.PreviousHop,
		Command:     m.Command,
		Kind:        Reply,
		MessageID:   m.MessageID,
		Handler:     m.Handler,
		Payload:     map[string]interface{}{},
		TimeToLive:  time.Now().Add(ttl),
	}
	return reply
}

// ValidForSend reports whether the message carries every field the
// sender requires before handing it to the transport, and that its
// time to live has not yet expired relative to tick.
func (m *Message) ValidForSend(tick time.Time) bool {
	if m.Destination.Empty() {
		return false
	}
	if m.Source.Empty() {
		return false
	}
	if m.Command == nil {
		return false
	}
	if m.Handler == nil {
		return false
	}
	if m.TimeToLive.IsZero() {
		return false
	}
	return m.TimeToLive.After(tick)
}

// Expired reports whether the message's deadline has passed relative
// to tick.
func (m *Message) Expired(tick time.Time) bool {
	return !m.TimeToLive.After(tick)
}
