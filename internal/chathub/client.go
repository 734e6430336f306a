package chathub

import "rundezvous/backend/internal/models"

// Client is the interface for any type of realtime connection. It abstracts
// the underlying transport so the hub can manage client types uniformly.
type Client interface {
	// GetUserID returns the user attached to this connection.
	GetUserID() string
	// GetSessionID returns the rundezvous the client is bound to, empty when
	// unbound.
	GetSessionID() string
	// SetSessionID binds the client to a rundezvous. Called by the hub when
	// a match event arrives or an active session is restored on connect.
	SetSessionID(string)

	// GetSendChannel returns the channel the hub delivers events through.
	GetSendChannel() chan<- models.ChatEvent

	// Run starts the client's read and write pumps.
	Run()
	// Close shuts down the connection and its channels.
	Close()
}
