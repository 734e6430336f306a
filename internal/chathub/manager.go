// Package chathub fans chat and status events out to connected clients. The
// hub reads events from Redis pub/sub, so multiple server instances stay in
// sync, and persists incoming text through the rundezvous service.
package chathub

import (
	"encoding/json"
	"errors"
	"log"

	"rundezvous/backend/internal/models"
	"rundezvous/backend/internal/rundezvous"
	"rundezvous/backend/internal/storage"
)

// ManagerService is the hub: it owns the client registry and the dispatch
// loop.
type ManagerService struct {
	Clients map[string]Client

	// Channels
	IncomingCh   chan models.ChatEvent
	RegisterCh   chan Client
	UnregisterCh chan Client

	Storage  *storage.Service
	Sessions *rundezvous.Service

	pubSubCh chan models.ChatEvent
}

func NewManagerService(s *storage.Service, sessions *rundezvous.Service) *ManagerService {
	return &ManagerService{
		Clients:      make(map[string]Client),
		IncomingCh:   make(chan models.ChatEvent),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		Storage:      s,
		Sessions:     sessions,
		pubSubCh:     make(chan models.ChatEvent),
	}
}

// startPubSubListener subscribes to every rundezvous channel and feeds the
// events into the hub's dispatch loop.
func (m *ManagerService) startPubSubListener() {
	go func() {
		pubsub := m.Storage.SubscribeEvents()
		defer pubsub.Close()

		for msg := range pubsub.Channel() {
			var event models.ChatEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Printf("Error unmarshalling Redis event: %v", err)
				continue
			}
			m.pubSubCh <- event
		}
	}()
}

// Run is the hub's main goroutine.
func (m *ManagerService) Run() {
	log.Println("Chat hub started.")
	m.startPubSubListener()

	for {
		select {
		case client := <-m.RegisterCh:
			m.register(client)

		case client := <-m.UnregisterCh:
			if _, ok := m.Clients[client.GetUserID()]; ok {
				delete(m.Clients, client.GetUserID())
				client.Close()
			}

		case event := <-m.IncomingCh:
			m.persistIncoming(event)

		case event := <-m.pubSubCh:
			m.dispatch(event)
		}
	}
}

// register adds the client and restores its session binding so a user who
// reconnects mid-rundezvous keeps receiving events.
func (m *ManagerService) register(client Client) {
	m.Clients[client.GetUserID()] = client

	rdv, err := m.Storage.GetActiveRundezvousForUser(client.GetUserID())
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			log.Printf("ERROR: Failed to restore session for client %s: %v", client.GetUserID(), err)
		}
		return
	}
	client.SetSessionID(rdv.ID)
	log.Printf("Restored session %s for client %s", rdv.ID, client.GetUserID())
}

// persistIncoming stores a text event arriving over a WebSocket and lets the
// resulting pub/sub echo do the fan-out.
func (m *ManagerService) persistIncoming(event models.ChatEvent) {
	if event.Type != "text" {
		return
	}
	user, err := m.Storage.GetUserByID(event.SenderID)
	if err != nil {
		log.Printf("ERROR: Incoming message from unknown user %s: %v", event.SenderID, err)
		return
	}
	if _, err := m.Sessions.PostMessage(user, event.Text); err != nil {
		log.Printf("ERROR: Failed to post message from user %s: %v", event.SenderID, err)
	}
}

// dispatch delivers an event to every connected participant of its
// rundezvous, lazily binding clients that joined before the match was made.
func (m *ManagerService) dispatch(event models.ChatEvent) {
	for _, client := range m.Clients {
		if client.GetSessionID() == "" {
			rdv, err := m.Storage.GetActiveRundezvousForUser(client.GetUserID())
			if err != nil {
				continue
			}
			client.SetSessionID(rdv.ID)
		}
		if client.GetSessionID() != event.RundezvousID {
			continue
		}

		select {
		case client.GetSendChannel() <- event:
		default:
			// Slow client; drop it rather than block the hub.
			delete(m.Clients, client.GetUserID())
			client.Close()
		}
	}
}
