// Package types holds the websocket envelopes exchanged with lobby clients.
package types

import (
	"github.com/DoyleJ11/lol-trivia-backend/internal/question"
	pub "github.com/DoyleJ11/lol-trivia-backend/pkg/types"
)

const (
	MsgReady      = "Ready"
	MsgLockAnswer = "LockAnswer"

	MsgUpdate = "Update"
	MsgError  = "Error"
)

type ClientMessage struct {
	Type   string          `json:"type"`
	Round  int             `json:"round,omitempty"`
	Answer question.Answer `json:"answer,omitempty"`
}

type ServerMessage struct {
	Type   string      `json:"type"` // "Update" | "Error"
	Update *pub.Update `json:"update,omitempty"`
	Error  string      `json:"error,omitempty"`
}
