package types

// Portal and lobby site payloads. State is "summoner-select" or
// "summoner-home" for the portal, "lobby-select" or "active-game" for a lobby.
type SiteResponse struct {
	State string    `json:"state"`
	User  *Summoner `json:"user,omitempty"`
	Lobby *LobbyRef `json:"lobby,omitempty"`
}

type LobbyRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"`
}

type ErrorResponse struct {
	Error *string `json:"error"`
}

type LobbyCreated struct {
	Error   *string `json:"error"`
	LobbyID string  `json:"lobbyId"`
}
