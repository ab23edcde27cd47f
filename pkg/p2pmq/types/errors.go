package types

import "errors"

var (
	// ErrMalformedFrame is returned by the codec when a wire frame does
	// not carry exactly seven parts.
	ErrMalformedFrame = errors.New("p2pmq: malformed frame")

	// ErrUnknownCommand is raised when a message arrives for a command
	// id that has no registered handler.
	ErrUnknownCommand = errors.New("p2pmq: unknown command")

	// ErrValidationFailed marks a message that failed valid_for_send.
	ErrValidationFailed = errors.New("p2pmq: message failed send validation")

	// ErrPeerNotFound is returned when an operation is attempted
	// against a peer id the table does not know about.
	ErrPeerNotFound = errors.New("p2pmq: peer not found")

	// ErrDuplicateHandler is raised by the handler registry when two
	// handlers are registered under the same command id.
	ErrDuplicateHandler = errors.New("p2pmq: handler already registered for command")

	// ErrShortNodeID is returned when an identity shorter than four
	// bytes is used to build a NodeID.
	ErrShortNodeID = errors.New("p2pmq: node id must be at least 4 bytes")

	// ErrInvalidRouteTarget flags a ROUTE message whose destination is
	// either empty or the local node itself -- a routing bug upstream.
	ErrInvalidRouteTarget = errors.New("p2pmq: route message has an invalid destination")

	// ErrBadCertLayout is a fatal start-up error: the certificate store
	// could not establish the local identity.
	ErrBadCertLayout = errors.New("p2pmq: bad certificate store layout")

	// ErrUnreadableDatabase is a fatal start-up error: the peer
	// repository could not be opened.
	ErrUnreadableDatabase = errors.New("p2pmq: unreadable peer database")
)
