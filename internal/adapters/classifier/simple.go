package classifier

import (
	"context"
	"regexp"
	"strings"

	"github.com/davidZal1992/soccer-automation-registry-ai/internal/domain"
)

var (
	cancelWaitingRe = regexp.MustCompile(`(?i)(המתנה|רשימת\s*המתנה)`)
	cancelRe        = regexp.MustCompile(`(?i)(מבטל|מבטלת|אני בחוץ|לא מגיע|לא אגיע|תוריד אותי|הסר אותי)`)
	registerRe      = regexp.MustCompile(`(?i)(מגיע|מגיעה|תרשום|רשום אותי|אני בפנים|בא לשחק|משחק)`)

	showRosterRe = regexp.MustCompile(`(?i)(תראה|הצג|שלח).*(רשימה|טבלה)`)
	warmupRe     = regexp.MustCompile(`חימום.*?(\d{1,2}:\d{2})`)
	startRe      = regexp.MustCompile(`(התחלה|מתחילים).*?(\d{1,2}:\d{2})`)
	removeRe     = regexp.MustCompile(`(?:תוריד|הסר)\s+את\s+(.+)`)
	addNameRe    = regexp.MustCompile(`(?:תרשום|תוסיף)\s+את\s+(.+)`)
	equipmentRe  = regexp.MustCompile(`(.+?)\s+(?:מביא|לוקח|עם ה?)ציוד`)
	laundryRe    = regexp.MustCompile(`(.+?)\s+(?:מביא|לוקח|עם ה?)כביסה`)
)

// SimpleClassifier is a keyword fallback used when no model key is
// configured. It only handles the unambiguous phrasings; everything else
// is classified as nothing.
type SimpleClassifier struct{}

// NewSimpleClassifier creates the fallback classifier.
func NewSimpleClassifier() *SimpleClassifier {
	return &SimpleClassifier{}
}

// ClassifyRegistrations classifies each message independently by keyword.
func (c *SimpleClassifier) ClassifyRegistrations(_ context.Context, batch []domain.CollectedMessage) ([]domain.Intent, error) {
	var intents []domain.Intent
	for _, msg := range batch {
		text := strings.TrimSpace(msg.Text)
		userID := domain.NormalizeJID(msg.SenderJID)
		switch {
		case cancelRe.MatchString(text) && cancelWaitingRe.MatchString(text):
			intents = append(intents, domain.Intent{Kind: domain.IntentCancelWaiting, UserID: userID})
		case cancelRe.MatchString(text):
			intents = append(intents, domain.Intent{Kind: domain.IntentCancel, UserID: userID})
		case registerRe.MatchString(text):
			intents = append(intents, domain.Intent{
				Kind:   domain.IntentRegister,
				Name:   extractFullName(text),
				UserID: userID,
			})
		}
	}
	return intents, nil
}

// ClassifyAdminCommand handles the fixed-phrase commands only.
func (c *SimpleClassifier) ClassifyAdminCommand(_ context.Context, text string, mentionedJIDs []string) (*domain.AdminCommand, error) {
	text = strings.TrimSpace(text)

	if showRosterRe.MatchString(text) {
		return &domain.AdminCommand{Type: domain.CmdShowRoster}, nil
	}
	if m := warmupRe.FindStringSubmatch(text); m != nil {
		if clock := domain.ParseClock(m[1]); clock != "" {
			return &domain.AdminCommand{Type: domain.CmdSetWarmupTime, Time: clock}, nil
		}
	}
	if m := startRe.FindStringSubmatch(text); m != nil {
		if clock := domain.ParseClock(m[2]); clock != "" {
			return &domain.AdminCommand{Type: domain.CmdSetStartTime, Time: clock}, nil
		}
	}
	if strings.Contains(text, "אדמין") && len(mentionedJIDs) > 0 {
		jid := domain.NormalizeJID(mentionedJIDs[0])
		if strings.Contains(text, "תוריד") || strings.Contains(text, "הסר") {
			return &domain.AdminCommand{Type: domain.CmdRemoveAdmin, JID: jid}, nil
		}
		return &domain.AdminCommand{Type: domain.CmdAddAdmin, JID: jid}, nil
	}
	if m := equipmentRe.FindStringSubmatch(text); m != nil && domain.IsFullName(m[1]) {
		return &domain.AdminCommand{Type: domain.CmdSetEquipment, Name: strings.TrimSpace(m[1])}, nil
	}
	if m := laundryRe.FindStringSubmatch(text); m != nil && domain.IsFullName(m[1]) {
		return &domain.AdminCommand{Type: domain.CmdSetLaundry, Name: strings.TrimSpace(m[1])}, nil
	}
	if m := removeRe.FindStringSubmatch(text); m != nil {
		name := strings.TrimSpace(m[1])
		switch name {
		case "ציוד":
			return &domain.AdminCommand{Type: domain.CmdRemovePlayer, Role: domain.RoleEquipment}, nil
		case "כביסה":
			return &domain.AdminCommand{Type: domain.CmdRemovePlayer, Role: domain.RoleLaundry}, nil
		}
		if domain.IsFullName(name) {
			return &domain.AdminCommand{Type: domain.CmdRemovePlayer, Name: name}, nil
		}
	}
	if m := addNameRe.FindStringSubmatch(text); m != nil && domain.IsFullName(m[1]) {
		return &domain.AdminCommand{Type: domain.CmdRegisterSelf, Name: strings.TrimSpace(m[1])}, nil
	}
	return nil, nil
}

// extractFullName pulls a full name out of a registration phrase when one
// is written plainly; it never guesses.
func extractFullName(text string) string {
	if m := addNameRe.FindStringSubmatch(text); m != nil {
		name := strings.TrimSpace(m[1])
		if domain.IsFullName(name) {
			return name
		}
	}
	// "שם משפחה מגיע" form: take the words before the keyword.
	for _, kw := range []string{"מגיע", "מגיעה", "בפנים", "משחק"} {
		if idx := strings.Index(text, kw); idx > 0 {
			name := strings.Trim(strings.TrimSpace(text[:idx]), ",.-")
			if domain.IsFullName(name) {
				return name
			}
		}
	}
	return ""
}
