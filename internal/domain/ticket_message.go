package domain

import "time"

// TicketMessage is a reply posted on a ticket thread.
type TicketMessage struct {
	ID        string
	TicketID  string
	AuthorID  string
	Body      string
	Internal  bool
	CreatedAt time.Time
}
