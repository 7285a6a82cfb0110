// Package state is the data-access shim over the persistence substrate:
// typed load/save of the weekly documents, default substitution for absent
// documents and the one-time admin seed.
package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/davidZal1992/soccer-automation-registry-ai/internal/domain"
)

// Document keys in the store.
const (
	KeyRoster     = "roster"
	KeyAdmins     = "admins"
	KeyWeekly     = "weekly"
	KeyBotControl = "bot-control"
)

// Service wraps a DocumentStore with the domain's document set.
type Service struct {
	store domain.DocumentStore
	loc   *time.Location
	seed  domain.AdminEntry
	now   func() time.Time
}

// NewService creates the shim. seed is the initial administrator applied on
// first run; a zero seed disables seeding.
func NewService(store domain.DocumentStore, loc *time.Location, seed domain.AdminEntry) *Service {
	return &Service{store: store, loc: loc, seed: seed, now: time.Now}
}

// Roster loads the current roster, substituting a fresh default when the
// document is absent. Slot length is normalized to SlotCount regardless of
// what was persisted.
func (s *Service) Roster(ctx context.Context) (domain.Roster, error) {
	var r domain.Roster
	err := s.store.Load(ctx, KeyRoster, &r)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.DefaultRoster(s.now(), s.loc), nil
	}
	if err != nil {
		return domain.Roster{}, fmt.Errorf("load roster: %w", err)
	}
	if len(r.Slots) != domain.SlotCount {
		slots := make([]*domain.Participant, domain.SlotCount)
		copy(slots, r.Slots)
		r.Slots = slots
	}
	if r.WaitingList == nil {
		r.WaitingList = []domain.Participant{}
	}
	return r, nil
}

// SaveRoster persists the roster document.
func (s *Service) SaveRoster(ctx context.Context, r domain.Roster) error {
	return s.store.Save(ctx, KeyRoster, r)
}

// Admins loads the administrator set, seeding the configured initial admin
// on first run.
func (s *Service) Admins(ctx context.Context) ([]domain.AdminEntry, error) {
	var admins []domain.AdminEntry
	err := s.store.Load(ctx, KeyAdmins, &admins)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("load admins: %w", err)
	}
	if len(admins) == 0 && s.seed.UserID != "" {
		name := s.seed.Name
		if name == "" {
			name = "Admin"
		}
		admins = []domain.AdminEntry{{UserID: domain.NormalizeJID(s.seed.UserID), Name: name}}
		if err := s.SaveAdmins(ctx, admins); err != nil {
			return nil, err
		}
	}
	return admins, nil
}

// SaveAdmins persists the administrator set.
func (s *Service) SaveAdmins(ctx context.Context, admins []domain.AdminEntry) error {
	return s.store.Save(ctx, KeyAdmins, admins)
}

// IsAdmin reports whether the identity belongs to a known administrator.
func (s *Service) IsAdmin(ctx context.Context, userID string) (bool, error) {
	admins, err := s.Admins(ctx)
	if err != nil {
		return false, err
	}
	id := domain.NormalizeJID(userID)
	for _, a := range admins {
		if a.UserID == id {
			return true, nil
		}
	}
	return false, nil
}

// Weekly loads the weekly state, substituting an empty default.
func (s *Service) Weekly(ctx context.Context) (domain.WeeklyState, error) {
	var w domain.WeeklyState
	err := s.store.Load(ctx, KeyWeekly, &w)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.DefaultWeekly(), nil
	}
	if err != nil {
		return domain.WeeklyState{}, fmt.Errorf("load weekly: %w", err)
	}
	if w.UserIDMap == nil {
		w.UserIDMap = map[string]string{}
	}
	return w, nil
}

// SaveWeekly persists the weekly state.
func (s *Service) SaveWeekly(ctx context.Context, w domain.WeeklyState) error {
	return s.store.Save(ctx, KeyWeekly, w)
}

// BotControl loads the kill switch. A missing document means sleeping: the
// bot stays quiet until the scheduler or an admin wakes it.
func (s *Service) BotControl(ctx context.Context) (domain.BotControl, error) {
	var c domain.BotControl
	err := s.store.Load(ctx, KeyBotControl, &c)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.BotControl{Sleeping: true}, nil
	}
	if err != nil {
		return domain.BotControl{}, fmt.Errorf("load bot control: %w", err)
	}
	return c, nil
}

// SaveBotControl persists the kill switch.
func (s *Service) SaveBotControl(ctx context.Context, c domain.BotControl) error {
	return s.store.Save(ctx, KeyBotControl, c)
}

// ResetForNewWeek discards old-week state: fresh roster, empty weekly
// state, sleeping cleared. This is the only place old state is dropped.
func (s *Service) ResetForNewWeek(ctx context.Context) error {
	if err := s.SaveRoster(ctx, domain.DefaultRoster(s.now(), s.loc)); err != nil {
		return fmt.Errorf("reset roster: %w", err)
	}
	if err := s.SaveWeekly(ctx, domain.DefaultWeekly()); err != nil {
		return fmt.Errorf("reset weekly: %w", err)
	}
	if err := s.SaveBotControl(ctx, domain.BotControl{Sleeping: false}); err != nil {
		return fmt.Errorf("reset bot control: %w", err)
	}
	return nil
}
