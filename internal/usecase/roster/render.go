package roster

import (
	"fmt"
	"strings"

	"github.com/davidZal1992/soccer-automation-registry-ai/internal/domain"
)

// EmptySlotMark is printed for an unoccupied slot line.
const EmptySlotMark = "___"

// WaitingListHeading separates the waiting-list section of the rendering.
const WaitingListHeading = "--- רשימת המתנה ---"

// Render produces the deterministic textual roster: header, three time
// lines, numbered slot lines with duty tags, an optional waiting-list
// section and the static footer rules.
func Render(r *domain.Roster) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("כדורגל מוצ\"ש %s ⚽🔥\n\n", shortDate(r.WeekOf)))
	b.WriteString(fmt.Sprintf("חימום: %s ⏰\n", r.WarmupTime))
	b.WriteString(fmt.Sprintf("התחלה: %s 🕘\n", r.StartTime))
	b.WriteString(fmt.Sprintf("התחייבות עד: %s 🤝\n\n", r.CommitmentTime))

	for i := 0; i < domain.SlotCount; i++ {
		var s *domain.Participant
		if i < len(r.Slots) {
			s = r.Slots[i]
		}
		if s == nil {
			b.WriteString(fmt.Sprintf("%d. %s\n", i+1, EmptySlotMark))
			continue
		}
		label := s.Name
		if s.IsEquipment {
			label += " (ציוד)"
		}
		if s.IsLaundry {
			label += " (כביסה)"
		}
		b.WriteString(fmt.Sprintf("%d. %s\n", i+1, label))
	}

	if len(r.WaitingList) > 0 {
		b.WriteString("\n" + WaitingListHeading + "\n")
		for i := range r.WaitingList {
			b.WriteString(r.WaitingList[i].Name + "\n")
		}
	}

	b.WriteString("\n1. *מי שלא כותב שם מלא לא נכנס לרשימה*\n")
	b.WriteString("2. *כל אחד יכול לרשום רק שם אחד*\n\n")
	b.WriteString("*כביסה מספר 24*")

	return b.String()
}

// shortDate turns "2026-09-05" into "05/09".
func shortDate(iso string) string {
	parts := strings.Split(iso, "-")
	if len(parts) != 3 {
		return iso
	}
	return parts[2] + "/" + parts[1]
}
