package domain

// NotificationType enumerates the dispatcher's message kinds.
type NotificationType string

const (
	NotificationTicketSubmitted NotificationType = "ticket_submitted"
	NotificationStaffReply      NotificationType = "staff_reply"
	NotificationStatusChange    NotificationType = "status_change"
)

// Notification is handed to the dispatcher after a state change.
type Notification struct {
	Type      NotificationType  `json:"type"`
	TicketID  string            `json:"ticket_id"`
	Subject   string            `json:"subject"`
	Recipient string            `json:"recipient"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}
