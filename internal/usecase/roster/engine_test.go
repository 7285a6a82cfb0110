package roster

import (
	"fmt"
	"testing"
	"time"

	"github.com/davidZal1992/soccer-automation-registry-ai/internal/domain"
)

func newRoster() domain.Roster {
	loc, _ := time.LoadLocation("Asia/Jerusalem")
	return domain.DefaultRoster(time.Date(2025, 9, 1, 12, 0, 0, 0, loc), loc)
}

func fillSlots(r *domain.Roster, n int) {
	for i := 0; i < n; i++ {
		Add(r, domain.Participant{Name: fmt.Sprintf("שחקן מספר%d", i), UserID: fmt.Sprintf("%d@s.whatsapp.net", i)})
	}
}

func TestAddFillsFirstEmptySlot(t *testing.T) {
	r := newRoster()
	Add(&r, domain.Participant{Name: "דוד כהן", UserID: "1@s.whatsapp.net"})
	if r.Slots[0] == nil || r.Slots[0].Name != "דוד כהן" {
		t.Fatalf("expected first slot occupied, got %+v", r.Slots[0])
	}
	Add(&r, domain.Participant{Name: "יוסי לוי", UserID: "2@s.whatsapp.net"})
	if r.Slots[1] == nil || r.Slots[1].Name != "יוסי לוי" {
		t.Fatalf("expected second slot occupied")
	}
}

func TestAddIsIdempotentByUserID(t *testing.T) {
	r := newRoster()
	Add(&r, domain.Participant{Name: "דוד כהן", UserID: "1@s.whatsapp.net"})
	Add(&r, domain.Participant{Name: "דוד אחר", UserID: "1:17@s.whatsapp.net"})
	if r.Slots[1] != nil {
		t.Fatalf("device suffix should not create a second entry")
	}
	if r.Slots[0].Name != "דוד כהן" {
		t.Fatalf("original entry must be untouched")
	}
}

func TestAddOverflowsToWaitingList(t *testing.T) {
	r := newRoster()
	fillSlots(&r, domain.SlotCount)
	Add(&r, domain.Participant{Name: "מאחר ראשון", UserID: "w1@s.whatsapp.net"})
	Add(&r, domain.Participant{Name: "מאחר שני", UserID: "w2@s.whatsapp.net"})
	if len(r.WaitingList) != 2 {
		t.Fatalf("expected 2 waiting, got %d", len(r.WaitingList))
	}
	if r.WaitingList[0].Name != "מאחר ראשון" {
		t.Fatalf("waiting list must preserve arrival order")
	}
}

func TestAddLinksPlaceholderByName(t *testing.T) {
	r := newRoster()
	Add(&r, domain.Participant{Name: "דוד כהן"}) // manual entry, no identity
	Add(&r, domain.Participant{Name: "דוד כהן", UserID: "1@s.whatsapp.net"})
	if r.Slots[1] != nil {
		t.Fatalf("self-registration must link the placeholder, not add a row")
	}
	if r.Slots[0].UserID != "1@s.whatsapp.net" {
		t.Fatalf("placeholder should now carry the identity, got %q", r.Slots[0].UserID)
	}
}

func TestAddTwoPlaceholdersSameName(t *testing.T) {
	r := newRoster()
	Add(&r, domain.Participant{Name: "דוד כהן"})
	Add(&r, domain.Participant{Name: "דוד כהן"})
	if r.Slots[0] == nil || r.Slots[1] == nil {
		t.Fatalf("identity-less entries never deduplicate")
	}
}

func TestLaundrySeatInheritance(t *testing.T) {
	r := newRoster()
	fillSlots(&r, domain.SlotCount-1)
	Add(&r, domain.Participant{Name: "אחרון בתור", UserID: "last@s.whatsapp.net"})
	p := r.Slots[domain.LaundrySlot]
	if p == nil || !p.IsLaundry {
		t.Fatalf("player filling the last seat must inherit laundry duty")
	}

	// Duty already assigned elsewhere: the seat is an ordinary slot.
	r2 := newRoster()
	Add(&r2, domain.Participant{Name: "תורן כביסה", UserID: "1@s.whatsapp.net"})
	r2.Slots[0].IsLaundry = true
	fillSlots(&r2, domain.SlotCount) // fills remaining seats
	if r2.Slots[domain.LaundrySlot].IsLaundry {
		t.Fatalf("seat must not inherit laundry when someone already carries it")
	}
}

func TestRemoveFromSlotPromotesFIFO(t *testing.T) {
	r := newRoster()
	fillSlots(&r, domain.SlotCount)
	Add(&r, domain.Participant{Name: "ממתין ראשון", UserID: "w1@s.whatsapp.net"})
	Add(&r, domain.Participant{Name: "ממתין שני", UserID: "w2@s.whatsapp.net"})

	removed, promoted := Remove(&r, "5@s.whatsapp.net")
	if removed == nil || removed.Name != "שחקן מספר5" {
		t.Fatalf("expected slot occupant removed, got %+v", removed)
	}
	if promoted == nil || promoted.Name != "ממתין ראשון" {
		t.Fatalf("expected waiting head promoted, got %+v", promoted)
	}
	if r.Slots[5] == nil || r.Slots[5].Name != "ממתין ראשון" {
		t.Fatalf("promoted player must land in the vacated slot")
	}
	if len(r.WaitingList) != 1 || r.WaitingList[0].Name != "ממתין שני" {
		t.Fatalf("remaining waiting list wrong: %+v", r.WaitingList)
	}
}

func TestRemoveFromWaitingListNoPromotion(t *testing.T) {
	r := newRoster()
	fillSlots(&r, domain.SlotCount)
	Add(&r, domain.Participant{Name: "ממתין ראשון", UserID: "w1@s.whatsapp.net"})

	removed, promoted := Remove(&r, "w1@s.whatsapp.net")
	if removed == nil || promoted != nil {
		t.Fatalf("waiting removal must not promote, got removed=%v promoted=%v", removed, promoted)
	}
	for _, s := range r.Slots {
		if s == nil {
			t.Fatalf("slots must be unchanged")
		}
	}
}

func TestRemoveUnknownIsNoop(t *testing.T) {
	r := newRoster()
	fillSlots(&r, 3)
	removed, promoted := Remove(&r, "ghost@s.whatsapp.net")
	if removed != nil || promoted != nil {
		t.Fatalf("unknown id must be a no-op")
	}
	if removed, _ := Remove(&r, ""); removed != nil {
		t.Fatalf("empty id must never match anyone")
	}
}

func TestPromoteIntoLaundrySeat(t *testing.T) {
	r := newRoster()
	fillSlots(&r, domain.SlotCount)
	Add(&r, domain.Participant{Name: "ממתין ראשון", UserID: "w1@s.whatsapp.net"})

	_, promoted := Remove(&r, fmt.Sprintf("%d@s.whatsapp.net", domain.LaundrySlot))
	if promoted == nil || !promoted.IsLaundry {
		t.Fatalf("promotion into the laundry seat must inherit the duty")
	}
}

func TestSetEquipment(t *testing.T) {
	r := newRoster()
	Add(&r, domain.Participant{Name: "דוד כהן", UserID: "1@s.whatsapp.net"})
	if err := SetEquipment(&r, "דוד כהן"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.Slots[0].IsEquipment {
		t.Fatalf("flag must be set in place")
	}
	if err := SetEquipment(&r, "דוד"); err != ErrShortName {
		t.Fatalf("single word must be rejected, got %v", err)
	}
	if err := SetEquipment(&r, "חדש לגמרי"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Slots[1] == nil || !r.Slots[1].IsEquipment {
		t.Fatalf("unknown name must be admitted with the flag")
	}
}

func TestSetLaundrySwapsSeats(t *testing.T) {
	r := newRoster()
	fillSlots(&r, domain.SlotCount)
	occupant := r.Slots[domain.LaundrySlot].Name

	if err := SetLaundry(&r, "שחקן מספר3"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seat := r.Slots[domain.LaundrySlot]
	if seat.Name != "שחקן מספר3" || !seat.IsLaundry {
		t.Fatalf("named player must hold the laundry seat, got %+v", seat)
	}
	moved := r.Slots[3]
	if moved == nil || moved.Name != occupant {
		t.Fatalf("displaced occupant must land in the vacated origin slot")
	}
	if moved.IsLaundry {
		t.Fatalf("displaced occupant must lose laundry duty")
	}
	if len(r.WaitingList) != 0 {
		t.Fatalf("swap must not touch the waiting list")
	}
}

func TestSetLaundryFromWaitingList(t *testing.T) {
	r := newRoster()
	fillSlots(&r, domain.SlotCount)
	Add(&r, domain.Participant{Name: "ממתין נבחר", UserID: "w1@s.whatsapp.net"})

	if err := SetLaundry(&r, "ממתין נבחר"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seat := r.Slots[domain.LaundrySlot]
	if seat.Name != "ממתין נבחר" {
		t.Fatalf("waiting player must be lifted into the seat")
	}
	// Displaced occupant had no origin slot to return to and no empty seat.
	if len(r.WaitingList) != 1 || r.WaitingList[0].IsLaundry {
		t.Fatalf("displaced occupant must join the waiting list without the duty")
	}
}

func TestSetLaundryAlreadyInSeat(t *testing.T) {
	r := newRoster()
	fillSlots(&r, domain.SlotCount)
	name := r.Slots[domain.LaundrySlot].Name
	if err := SetLaundry(&r, name); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.Slots[domain.LaundrySlot].IsLaundry {
		t.Fatalf("occupant must keep the seat and the duty")
	}
}

func TestRemoveByRole(t *testing.T) {
	r := newRoster()
	fillSlots(&r, 5)
	r.Slots[2].IsEquipment = true

	removed, _ := RemoveByRole(&r, domain.RoleEquipment)
	if removed == nil || !removed.IsEquipment {
		t.Fatalf("expected the equipment carrier removed")
	}
	if r.Slots[2] != nil {
		t.Fatalf("slot must be vacated")
	}
	if removed, _ := RemoveByRole(&r, domain.RoleLaundry); removed != nil {
		t.Fatalf("no laundry carrier, expected nil")
	}
}
