// Package admin interprets the closed vocabulary of privileged roster
// operations.
package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/davidZal1992/soccer-automation-registry-ai/internal/domain"
	"github.com/davidZal1992/soccer-automation-registry-ai/internal/usecase/roster"
	"github.com/davidZal1992/soccer-automation-registry-ai/internal/usecase/state"
)

// ErrLastAdmin is returned when removing the final administrator.
var ErrLastAdmin = errors.New("cannot remove the last admin")

// Service executes admin commands against the roster.
type Service struct {
	state     *state.Service
	messenger domain.Messenger
	log       zerolog.Logger

	// onTimesChanged is invoked after warmup/start time edits so the
	// scheduler can recompute its one-shot timers. May be nil.
	onTimesChanged func(ctx context.Context)
}

// NewService creates the service.
func NewService(st *state.Service, messenger domain.Messenger, log zerolog.Logger) *Service {
	return &Service{state: st, messenger: messenger, log: log}
}

// SetTimesChangedHook installs the scheduler recompute hook.
func (s *Service) SetTimesChangedHook(fn func(ctx context.Context)) {
	s.onTimesChanged = fn
}

// Execute validates and runs one command, replying into chat. Every
// successful roster mutation ends by persisting and replying with the
// rendered roster.
func (s *Service) Execute(ctx context.Context, chat, senderJID string, cmd domain.AdminCommand) error {
	ros, err := s.state.Roster(ctx)
	if err != nil {
		return err
	}

	switch cmd.Type {
	case domain.CmdRegisterSelf:
		admins, err := s.state.Admins(ctx)
		if err != nil {
			return err
		}
		id := domain.NormalizeJID(senderJID)
		var me *domain.AdminEntry
		for i := range admins {
			if admins[i].UserID == id {
				me = &admins[i]
				break
			}
		}
		if me == nil {
			return nil
		}
		roster.Add(&ros, domain.Participant{Name: me.Name, UserID: id})

	case domain.CmdRemoveSelf:
		roster.Remove(&ros, senderJID)

	case domain.CmdSetEquipment:
		if err := roster.SetEquipment(&ros, cmd.Name); err != nil {
			return s.reply(ctx, chat, "צריך שם מלא (שם פרטי + משפחה) לציוד")
		}

	case domain.CmdSetLaundry:
		if err := roster.SetLaundry(&ros, cmd.Name); err != nil {
			return s.reply(ctx, chat, "צריך שם מלא (שם פרטי + משפחה) לכביסה")
		}

	case domain.CmdSetWarmupTime:
		t := domain.ParseClock(cmd.Time)
		if t == "" {
			return s.reply(ctx, chat, "שעה לא תקינה, צריך HH:MM")
		}
		ros.WarmupTime = t
		defer s.notifyTimesChanged(ctx)

	case domain.CmdSetStartTime:
		t := domain.ParseClock(cmd.Time)
		if t == "" {
			return s.reply(ctx, chat, "שעה לא תקינה, צריך HH:MM")
		}
		ros.StartTime = t

	case domain.CmdShowRoster:
		s.logExecuted(cmd, senderJID)
		return s.reply(ctx, chat, roster.Render(&ros))

	case domain.CmdAddAdmin:
		return s.addAdmin(ctx, chat, senderJID, cmd)

	case domain.CmdRemoveAdmin:
		return s.removeAdmin(ctx, chat, senderJID, cmd)

	case domain.CmdRemovePlayer:
		if err := s.removePlayer(ctx, &ros, cmd); err != nil {
			return s.reply(ctx, chat, "לא מצאתי את השחקן ברשימה")
		}

	case domain.CmdOverrideRoster:
		slots, waiting, ok := ParseOverride(cmd.RawText)
		if !ok {
			return s.reply(ctx, chat, "לא הצלחתי לפענח את הרשימה. שלח רשימה ממוספרת (1. שם, 2. שם...)")
		}
		ros.Slots = slots
		ros.WaitingList = waiting

	default:
		return fmt.Errorf("unknown admin command %q", cmd.Type)
	}

	if err := s.state.SaveRoster(ctx, ros); err != nil {
		return err
	}
	s.logExecuted(cmd, senderJID)
	return s.reply(ctx, chat, roster.Render(&ros))
}

func (s *Service) removePlayer(ctx context.Context, ros *domain.Roster, cmd domain.AdminCommand) error {
	var removed *domain.Participant
	if cmd.Name != "" {
		removed, _ = roster.RemoveByName(ros, cmd.Name)
	}
	if removed == nil && cmd.Role != "" {
		removed, _ = roster.RemoveByRole(ros, cmd.Role)
	}
	if removed == nil {
		return errors.New("player not found")
	}
	if removed.UserID != "" {
		weekly, err := s.state.Weekly(ctx)
		if err != nil {
			return err
		}
		delete(weekly.UserIDMap, domain.NormalizeJID(removed.UserID))
		if err := s.state.SaveWeekly(ctx, weekly); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) addAdmin(ctx context.Context, chat, senderJID string, cmd domain.AdminCommand) error {
	admins, err := s.state.Admins(ctx)
	if err != nil {
		return err
	}
	id := domain.NormalizeJID(cmd.JID)
	for _, a := range admins {
		if a.UserID == id {
			return s.reply(ctx, chat, fmt.Sprintf("%s כבר אדמין", cmd.Name))
		}
	}
	admins = append(admins, domain.AdminEntry{UserID: id, Name: cmd.Name})
	if err := s.state.SaveAdmins(ctx, admins); err != nil {
		return err
	}
	s.logExecuted(cmd, senderJID)
	return s.reply(ctx, chat, fmt.Sprintf("%s נוסף כאדמין ✅", cmd.Name))
}

func (s *Service) removeAdmin(ctx context.Context, chat, senderJID string, cmd domain.AdminCommand) error {
	admins, err := s.state.Admins(ctx)
	if err != nil {
		return err
	}
	id := domain.NormalizeJID(cmd.JID)
	idx := -1
	for i, a := range admins {
		if a.UserID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return s.reply(ctx, chat, "המשתמש הזה לא אדמין")
	}
	if len(admins) <= 1 {
		_ = s.reply(ctx, chat, "אי אפשר להוריד את האדמין האחרון")
		return ErrLastAdmin
	}
	removed := admins[idx]
	admins = append(admins[:idx], admins[idx+1:]...)
	if err := s.state.SaveAdmins(ctx, admins); err != nil {
		return err
	}
	s.logExecuted(cmd, senderJID)
	return s.reply(ctx, chat, fmt.Sprintf("%s הוסר מהאדמינים ✅", removed.Name))
}

// OverrideFromText replaces the roster with a pasted numbered list. A
// parse failure leaves the roster untouched.
func (s *Service) OverrideFromText(ctx context.Context, rawText string) (bool, error) {
	slots, waiting, ok := ParseOverride(rawText)
	if !ok {
		return false, nil
	}
	ros, err := s.state.Roster(ctx)
	if err != nil {
		return false, err
	}
	ros.Slots = slots
	ros.WaitingList = waiting
	if err := s.state.SaveRoster(ctx, ros); err != nil {
		return false, err
	}
	s.log.Info().Msg("roster overridden manually")
	return true, nil
}

func (s *Service) notifyTimesChanged(ctx context.Context) {
	if s.onTimesChanged != nil {
		s.onTimesChanged(ctx)
	}
}

func (s *Service) reply(ctx context.Context, chat, text string) error {
	_, err := s.messenger.Send(ctx, chat, text, nil)
	return err
}

func (s *Service) logExecuted(cmd domain.AdminCommand, senderJID string) {
	s.log.Info().Str("command", string(cmd.Type)).Str("sender", senderJID).Msg("admin command executed")
}
