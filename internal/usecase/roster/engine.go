// Package roster holds the pure state-transition functions over a weekly
// roster: slot assignment, waiting-list promotion and duty reassignment.
package roster

import (
	"errors"

	"github.com/davidZal1992/soccer-automation-registry-ai/internal/domain"
)

// ErrShortName is returned when a duty assignment names fewer than two words.
var ErrShortName = errors.New("full name required (first + last)")

// Add assigns a participant to the first empty slot, or appends to the
// waiting list when the roster is full. A participant already present by
// userId is left untouched. A manual placeholder with the same name and no
// userId is linked in place instead of creating a second entry. Filling the
// canonical laundry seat inherits laundry duty unless someone already
// carries it.
func Add(r *domain.Roster, p domain.Participant) {
	if p.UserID != "" {
		id := domain.NormalizeJID(p.UserID)
		if slotIndexByUserID(r, id) != -1 || waitingIndexByUserID(r, id) != -1 {
			return
		}
		for _, s := range r.Slots {
			if s != nil && s.UserID == "" && s.Name == p.Name {
				s.UserID = id
				return
			}
		}
		for i := range r.WaitingList {
			if r.WaitingList[i].UserID == "" && r.WaitingList[i].Name == p.Name {
				r.WaitingList[i].UserID = id
				return
			}
		}
		p.UserID = id
	}

	for i := range r.Slots {
		if r.Slots[i] != nil {
			continue
		}
		if i == domain.LaundrySlot && !anyLaundry(r) {
			p.IsLaundry = true
		}
		cp := p
		r.Slots[i] = &cp
		return
	}
	r.WaitingList = append(r.WaitingList, p)
}

// Remove vacates the participant's slot and synchronously promotes the head
// of the waiting list into it, or splices the participant out of the
// waiting list with no promotion. Both the removed and the promoted
// participant are returned for notification purposes; either may be nil.
func Remove(r *domain.Roster, userID string) (removed, promoted *domain.Participant) {
	id := domain.NormalizeJID(userID)
	if id == "" {
		return nil, nil
	}
	if i := slotIndexByUserID(r, id); i != -1 {
		out := *r.Slots[i]
		r.Slots[i] = nil
		return &out, Promote(r, i)
	}
	if i := waitingIndexByUserID(r, id); i != -1 {
		out := r.WaitingList[i]
		r.WaitingList = append(r.WaitingList[:i], r.WaitingList[i+1:]...)
		return &out, nil
	}
	return nil, nil
}

// RemoveByName is Remove keyed by display name (slots first, then waiting).
func RemoveByName(r *domain.Roster, name string) (removed, promoted *domain.Participant) {
	for i, s := range r.Slots {
		if s != nil && s.Name == name {
			out := *s
			r.Slots[i] = nil
			return &out, Promote(r, i)
		}
	}
	for i := range r.WaitingList {
		if r.WaitingList[i].Name == name {
			out := r.WaitingList[i]
			r.WaitingList = append(r.WaitingList[:i], r.WaitingList[i+1:]...)
			return &out, nil
		}
	}
	return nil, nil
}

// RemoveByRole removes the first participant carrying the given duty flag.
func RemoveByRole(r *domain.Roster, role domain.DutyRole) (removed, promoted *domain.Participant) {
	match := func(p *domain.Participant) bool {
		if role == domain.RoleLaundry {
			return p.IsLaundry
		}
		return p.IsEquipment
	}
	for i, s := range r.Slots {
		if s != nil && match(s) {
			out := *s
			r.Slots[i] = nil
			return &out, Promote(r, i)
		}
	}
	for i := range r.WaitingList {
		if match(&r.WaitingList[i]) {
			out := r.WaitingList[i]
			r.WaitingList = append(r.WaitingList[:i], r.WaitingList[i+1:]...)
			return &out, nil
		}
	}
	return nil, nil
}

// Promote pops the head of the waiting list into the vacated slot (FIFO).
// Promotion into the canonical laundry seat inherits laundry duty; no other
// flag is copied from the outgoing occupant.
func Promote(r *domain.Roster, vacated int) *domain.Participant {
	if len(r.WaitingList) == 0 || vacated < 0 || vacated >= domain.SlotCount {
		return nil
	}
	p := r.WaitingList[0]
	r.WaitingList = r.WaitingList[1:]
	if vacated == domain.LaundrySlot {
		p.IsLaundry = true
	}
	r.Slots[vacated] = &p
	return &p
}

// SetEquipment flags the named participant with equipment duty. An unknown
// name is admitted to the roster carrying the flag rather than rejected.
func SetEquipment(r *domain.Roster, name string) error {
	if !domain.IsFullName(name) {
		return ErrShortName
	}
	for _, s := range r.Slots {
		if s != nil && s.Name == name {
			s.IsEquipment = true
			return nil
		}
	}
	for i := range r.WaitingList {
		if r.WaitingList[i].Name == name {
			r.WaitingList[i].IsEquipment = true
			return nil
		}
	}
	Add(r, domain.Participant{Name: name, IsEquipment: true})
	return nil
}

// SetLaundry relocates the named participant to the canonical laundry seat.
// A prior occupant of that seat loses laundry duty and is relocated to the
// vacated origin slot, an empty slot, or the waiting list, in that order;
// nobody is dropped by the reassignment. An unknown name is admitted
// directly into the seat.
func SetLaundry(r *domain.Roster, name string) error {
	if !domain.IsFullName(name) {
		return ErrShortName
	}

	origin := -1
	var player *domain.Participant
	for i, s := range r.Slots {
		if s != nil && s.Name == name {
			origin = i
			player = s
			break
		}
	}
	if player == nil {
		for i := range r.WaitingList {
			if r.WaitingList[i].Name == name {
				p := r.WaitingList[i]
				r.WaitingList = append(r.WaitingList[:i], r.WaitingList[i+1:]...)
				player = &p
				break
			}
		}
	}
	if player == nil {
		player = &domain.Participant{Name: name}
	}

	if origin == domain.LaundrySlot {
		player.IsLaundry = true
		return nil
	}
	if origin != -1 {
		r.Slots[origin] = nil
	}
	player.IsLaundry = true

	displaced := r.Slots[domain.LaundrySlot]
	r.Slots[domain.LaundrySlot] = player
	if displaced == nil {
		return nil
	}
	displaced.IsLaundry = false
	if origin != -1 {
		r.Slots[origin] = displaced
		return nil
	}
	for i := range r.Slots {
		if r.Slots[i] == nil {
			r.Slots[i] = displaced
			return nil
		}
	}
	r.WaitingList = append(r.WaitingList, *displaced)
	return nil
}

// FindByUserID returns the participant with the given normalized identity,
// wherever they sit, or nil.
func FindByUserID(r *domain.Roster, userID string) *domain.Participant {
	id := domain.NormalizeJID(userID)
	if id == "" {
		return nil
	}
	if i := slotIndexByUserID(r, id); i != -1 {
		return r.Slots[i]
	}
	if i := waitingIndexByUserID(r, id); i != -1 {
		return &r.WaitingList[i]
	}
	return nil
}

// HasName reports whether any occupant or waiting entry holds the name.
func HasName(r *domain.Roster, name string) bool {
	for _, s := range r.Slots {
		if s != nil && s.Name == name {
			return true
		}
	}
	for i := range r.WaitingList {
		if r.WaitingList[i].Name == name {
			return true
		}
	}
	return false
}

func slotIndexByUserID(r *domain.Roster, id string) int {
	for i, s := range r.Slots {
		if s != nil && s.UserID != "" && domain.NormalizeJID(s.UserID) == id {
			return i
		}
	}
	return -1
}

func waitingIndexByUserID(r *domain.Roster, id string) int {
	for i := range r.WaitingList {
		if r.WaitingList[i].UserID != "" && domain.NormalizeJID(r.WaitingList[i].UserID) == id {
			return i
		}
	}
	return -1
}

func anyLaundry(r *domain.Roster) bool {
	for _, s := range r.Slots {
		if s != nil && s.IsLaundry {
			return true
		}
	}
	return false
}
