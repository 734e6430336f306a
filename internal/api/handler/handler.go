package handler

import (
	"rundezvous/backend/internal/chathub"
	"rundezvous/backend/internal/config"
	"rundezvous/backend/internal/directory"
	"rundezvous/backend/internal/matchmaker"
	"rundezvous/backend/internal/rundezvous"
	"rundezvous/backend/internal/storage"
)

// Handler carries the dependencies for all HTTP endpoints.
type Handler struct {
	Storage    storage.Storage
	Directory  *directory.Directory
	Matchmaker *matchmaker.Matchmaker
	Sessions   *rundezvous.Service
	Hub        *chathub.ManagerService
	Cfg        *config.Config
}

func NewHandler(
	s storage.Storage,
	dir *directory.Directory,
	m *matchmaker.Matchmaker,
	sessions *rundezvous.Service,
	hub *chathub.ManagerService,
	cfg *config.Config,
) *Handler {
	return &Handler{
		Storage:    s,
		Directory:  dir,
		Matchmaker: m,
		Sessions:   sessions,
		Hub:        hub,
		Cfg:        cfg,
	}
}
