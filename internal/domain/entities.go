package domain

import "time"

// SlotCount is the fixed number of roster slots per week.
const SlotCount = 24

// LaundrySlot is the canonical laundry-duty seat (last slot).
const LaundrySlot = SlotCount - 1

// Participant occupies one roster slot or a waiting-list position.
// UserID may be empty for names entered manually by an admin; such
// placeholders are linked to a real identity on first self-registration.
type Participant struct {
	Name        string `json:"name"`
	UserID      string `json:"userId"`
	IsLaundry   bool   `json:"isLaundry"`
	IsEquipment bool   `json:"isEquipment"`
}

// Roster is the current week's slot assignment plus waiting list.
type Roster struct {
	WeekOf           string         `json:"weekOf"`     // ISO date of the upcoming Saturday
	WarmupTime       string         `json:"warmupTime"` // "HH:MM"
	StartTime        string         `json:"startTime"`
	CommitmentTime   string         `json:"commitmentTime"`
	Slots            []*Participant `json:"slots"` // always SlotCount entries
	WaitingList      []Participant  `json:"waitingList"`
	RegistrationOpen bool           `json:"registrationOpen"`
}

// AdminEntry identifies one administrator.
type AdminEntry struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

// CollectedMessage is one buffered inbound text awaiting classification.
type CollectedMessage struct {
	MsgID     string `json:"msgId"`
	SenderJID string `json:"senderJid"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// WeeklyState holds per-week bookkeeping outside the roster itself.
// UserIDMap is the source of truth for who has an active registration
// this week, independent of where they sit in the roster.
type WeeklyState struct {
	UserIDMap         map[string]string  `json:"userIdMap"`
	MessagesCollected []CollectedMessage `json:"messagesCollected"`
}

// BotControl is the manual/automatic kill switch. While sleeping the bot
// collects nothing and processes nothing, regardless of the scheduler.
type BotControl struct {
	Sleeping bool `json:"sleeping"`
}

// IntentKind is the classifier's verdict for one message.
type IntentKind string

const (
	IntentRegister      IntentKind = "register"
	IntentCancel        IntentKind = "cancel"
	IntentCancelWaiting IntentKind = "cancel_waiting"
)

// Intent is one classified action extracted from a message batch.
// The classifier is an untrusted oracle: every field is re-validated
// before any mutation.
type Intent struct {
	Kind   IntentKind `json:"type"`
	Name   string     `json:"name"`
	UserID string     `json:"userId"`
}

// AdminCommandType enumerates the closed set of privileged operations.
type AdminCommandType string

const (
	CmdRegisterSelf   AdminCommandType = "register_self"
	CmdRemoveSelf     AdminCommandType = "remove_self"
	CmdSetEquipment   AdminCommandType = "set_equipment"
	CmdSetLaundry     AdminCommandType = "set_laundry"
	CmdSetWarmupTime  AdminCommandType = "set_warmup_time"
	CmdSetStartTime   AdminCommandType = "set_start_time"
	CmdShowRoster     AdminCommandType = "show_roster"
	CmdAddAdmin       AdminCommandType = "add_admin"
	CmdRemoveAdmin    AdminCommandType = "remove_admin"
	CmdRemovePlayer   AdminCommandType = "remove_player"
	CmdOverrideRoster AdminCommandType = "override_roster"
)

// DutyRole names one of the two duty flags.
type DutyRole string

const (
	RoleEquipment DutyRole = "equipment"
	RoleLaundry   DutyRole = "laundry"
)

// AdminCommand is one validated privileged operation. Fields beyond Type
// are populated per command kind.
type AdminCommand struct {
	Type    AdminCommandType
	Name    string
	JID     string
	Time    string // "HH:MM"
	Role    DutyRole
	RawText string // override_roster only
}

// FlushJob asks the flush worker to process the collected buffer.
type FlushJob struct {
	ID         string    `json:"id"`
	Reason     string    `json:"reason"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// Flush job reasons.
const (
	FlushReasonDebounce = "debounce"
	FlushReasonBurst    = "burst"
	FlushReasonCadence  = "cadence"
	FlushReasonClose    = "close"
)

// MessageRef points at a previously sent platform message.
type MessageRef struct {
	ID string `json:"id"`
}
