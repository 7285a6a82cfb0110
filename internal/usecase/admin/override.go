package admin

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/davidZal1992/soccer-automation-registry-ai/internal/domain"
)

var (
	numberedLineRe = regexp.MustCompile(`^(\d{1,2})\.\s*(.+)$`)
	parenTagRe     = regexp.MustCompile(`\(.*?\)`)
)

// ParseOverride parses a pasted numbered roster into a full slot and
// waiting-list replacement. Lines "<n>. <content>" map to slot n-1; role
// markers in the content set the duty flags; an underscore body leaves the
// slot empty. A waiting-list heading switches subsequent lines into
// waiting-list entries. ok is false when no usable line was found.
func ParseOverride(rawText string) (slots []*domain.Participant, waiting []domain.Participant, ok bool) {
	slots = make([]*domain.Participant, domain.SlotCount)
	waiting = []domain.Participant{}
	inWaiting := false

	for _, line := range strings.Split(rawText, "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.Contains(trimmed, "המתנה") {
			inWaiting = true
			continue
		}

		m := numberedLineRe.FindStringSubmatch(trimmed)
		if m == nil {
			// Unnumbered names inside the waiting-list section.
			if inWaiting && trimmed != "" && !strings.HasPrefix(trimmed, "---") {
				if name := cleanName(trimmed); domain.IsFullName(name) {
					waiting = append(waiting, domain.Participant{Name: name})
					ok = true
				}
			}
			continue
		}

		num, _ := strconv.Atoi(m[1])
		content := strings.TrimSpace(m[2])
		if content == "" || content == "_" || content == "___" {
			continue
		}

		isEquipment := strings.Contains(content, "ציוד")
		isLaundry := strings.Contains(content, "כביסה")
		name := cleanName(content)
		if !domain.IsFullName(name) {
			continue
		}

		idx := num - 1
		switch {
		case inWaiting:
			waiting = append(waiting, domain.Participant{Name: name})
			ok = true
		case idx >= 0 && idx < domain.SlotCount:
			slots[idx] = &domain.Participant{Name: name, IsLaundry: isLaundry, IsEquipment: isEquipment}
			ok = true
		}
	}

	if !ok {
		return nil, nil, false
	}
	return slots, waiting, true
}

func cleanName(content string) string {
	name := parenTagRe.ReplaceAllString(content, "")
	name = strings.ReplaceAll(name, "*", "")
	return strings.TrimSpace(name)
}
