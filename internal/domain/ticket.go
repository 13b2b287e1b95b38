package domain

import "time"

type TicketStatus string

const (
	TicketOpen     TicketStatus = "OPEN"
	TicketClosed   TicketStatus = "CLOSED"
	TicketApproved TicketStatus = "APPROVED"
	TicketDenied   TicketStatus = "DENIED"
)

// SetupStatus is the step of the intake question sequence a ticket is
// currently waiting on. It only ever moves forward.
type SetupStatus string

const (
	SetupBudgeting        SetupStatus = "BUDGETING"
	SetupEnterName        SetupStatus = "ENTER_NAME"
	SetupEnterDeadline    SetupStatus = "ENTER_DEADLINE"
	SetupEnterDescription SetupStatus = "ENTER_DESCRIPTION"
	SetupSubmitted        SetupStatus = "SUBMITTED"
)

var setupOrder = map[SetupStatus]int{
	SetupBudgeting:        0,
	SetupEnterName:        1,
	SetupEnterDeadline:    2,
	SetupEnterDescription: 3,
	SetupSubmitted:        4,
}

// Next returns the step that follows s. ok is false for SetupSubmitted and
// unknown values.
func (s SetupStatus) Next() (SetupStatus, bool) {
	switch s {
	case SetupBudgeting:
		return SetupEnterName, true
	case SetupEnterName:
		return SetupEnterDeadline, true
	case SetupEnterDeadline:
		return SetupEnterDescription, true
	case SetupEnterDescription:
		return SetupSubmitted, true
	}
	return s, false
}

// Before reports whether s comes strictly before other in the setup sequence.
func (s SetupStatus) Before(other SetupStatus) bool {
	a, aok := setupOrder[s]
	b, bok := setupOrder[other]
	return aok && bok && a < b
}

// Ticket is one persisted project request and its approval lifecycle.
type Ticket struct {
	ID            int64
	RequesterID   string
	ChannelID     string
	Status        TicketStatus
	SetupStatus   SetupStatus
	Name          *string
	Deadline      *string
	Description   *string
	LastMessageID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (t *Ticket) IsOpen() bool {
	return t.Status == TicketOpen
}

// Clone returns a copy for handlers to mutate, so a transition that fails
// before it is persisted never leaks into a shared cache entry.
func (t *Ticket) Clone() *Ticket {
	c := *t
	return &c
}
