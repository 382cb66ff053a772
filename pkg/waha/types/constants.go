package types

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	APIBase          = "/api"
	EndpointSendText = "/sendText"

	// Session-scoped paths, relative to /api/{session}
	PathChats         = "/chats"
	PathChatsOverview = "/chats/overview"
)

// ArchiveState is the archival state of a chat.
type ArchiveState string

const (
	ArchiveStateArchived   ArchiveState = "archived"
	ArchiveStateUnarchived ArchiveState = "unarchived"
)

// Ack is the delivery level of a message.
type Ack int

const (
	AckError   Ack = -1
	AckPending Ack = 0
	AckServer  Ack = 1
	AckDevice  Ack = 2
	AckRead    Ack = 3
	AckPlayed  Ack = 4
)

func (a Ack) String() string {
	switch a {
	case AckError:
		return "ERROR"
	case AckPending:
		return "PENDING"
	case AckServer:
		return "SERVER"
	case AckDevice:
		return "DEVICE"
	case AckRead:
		return "READ"
	case AckPlayed:
		return "PLAYED"
	default:
		return "UNKNOWN"
	}
}

// ParseAck accepts either the ack name (READ) or its number (3).
func ParseAck(s string) (Ack, error) {
	for a := AckError; a <= AckPlayed; a++ {
		if strings.EqualFold(s, a.String()) {
			return a, nil
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < int(AckError) || n > int(AckPlayed) {
		return 0, fmt.Errorf("unknown ack %q", s)
	}
	return Ack(n), nil
}

// Sort options accepted by the chats list.
const (
	SortByConversationTimestamp = "conversationTimestamp"
	SortByID                    = "id"
	SortByName                  = "name"
	SortOrderAsc                = "asc"
	SortOrderDesc               = "desc"
)
