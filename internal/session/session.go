// Package session models a signed-in player: an opaque id handed out in a
// cookie, the summoner it resolved to, and the lobbies it belongs to.
package session

import (
	"slices"
	"sync"

	"github.com/DoyleJ11/lol-trivia-backend/pkg/types"
)

type Identity struct {
	Platform    string
	SummonerID  int64
	DisplayName string
	ProfileIcon string // absolute image URL
}

func (i Identity) Summoner() types.Summoner {
	return types.Summoner{DisplayName: i.DisplayName, ProfileIcon: i.ProfileIcon}
}

// Session is shared by reference between the registry and every lobby the
// player is in. Lobbies never own it.
type Session struct {
	ID       string
	Identity Identity

	mu      sync.Mutex
	alive   bool
	lobbies []string // join order
}

func New(id string, identity Identity) *Session {
	return &Session{ID: id, Identity: identity, alive: true}
}

func (s *Session) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive
}

// Invalidate marks the session dead. It cannot be revived.
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alive = false
}

func (s *Session) Lobbies() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.lobbies)
}

func (s *Session) AttachLobby(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.lobbies, id) {
		s.lobbies = append(s.lobbies, id)
	}
}

func (s *Session) DetachLobby(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lobbies = slices.DeleteFunc(s.lobbies, func(l string) bool { return l == id })
}
