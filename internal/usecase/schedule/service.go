// Package schedule drives the weekly calendar: opening and closing
// registration, burst and cadence flushes, pre-event warnings and the
// weekly reset, all in one fixed timezone.
package schedule

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/davidZal1992/soccer-automation-registry-ai/internal/domain"
	"github.com/davidZal1992/soccer-automation-registry-ai/internal/usecase/registration"
	"github.com/davidZal1992/soccer-automation-registry-ai/internal/usecase/roster"
	"github.com/davidZal1992/soccer-automation-registry-ai/internal/usecase/state"
)

const burstGuardKey = "sched:burst_guard"

// Config is the weekly calendar. Clock strings are "HH:MM" in Location.
type Config struct {
	Location *time.Location

	OpenWeekday  time.Weekday // registration day (Friday)
	WakeAt       string       // flip sleeping off
	PreviewAt    string       // roster broadcast before opening
	OpenAt       string       // registrationOpen = true, unlock channel
	EventWeekday time.Weekday // event day (Saturday)
	ArmAt        string       // event-day trigger that computes one-shots
	ResetAt      string       // event-day weekly reset
	CleanWeekday time.Weekday // post-reset clean broadcast day (Sunday)
	CleanAt      string

	BurstDelay  time.Duration // open -> first flush of the opening rush
	Cadence     time.Duration // periodic flush interval while open
	WarnBefore  time.Duration // warning broadcast before warmup
	CloseBefore time.Duration // close before warmup
}

// DefaultConfig returns the calendar used in production.
func DefaultConfig(loc *time.Location) Config {
	return Config{
		Location:     loc,
		OpenWeekday:  time.Friday,
		WakeAt:       "11:50",
		PreviewAt:    "11:59",
		OpenAt:       "12:00",
		EventWeekday: time.Saturday,
		ArmAt:        "00:05",
		ResetAt:      "23:00",
		CleanWeekday: time.Sunday,
		CleanAt:      "11:00",
		BurstDelay:   3 * time.Minute,
		Cadence:      time.Hour,
		WarnBefore:   20 * time.Minute,
		CloseBefore:  15 * time.Minute,
	}
}

// Service evaluates the calendar and owns the two event-day one-shot
// timers.
type Service struct {
	cfg       Config
	state     *state.Service
	reg       *registration.Service
	messenger domain.Messenger
	cache     domain.Cache
	log       zerolog.Logger

	adminChannel   string
	playersChannel string

	mu         sync.Mutex
	warnTimer  *time.Timer
	closeTimer *time.Timer
	burstTimer *time.Timer
	lastFired  map[string]string

	now func() time.Time
}

// NewService creates the scheduler.
func NewService(cfg Config, st *state.Service, reg *registration.Service, messenger domain.Messenger, cache domain.Cache, log zerolog.Logger, adminChannel, playersChannel string) *Service {
	return &Service{
		cfg:            cfg,
		state:          st,
		reg:            reg,
		messenger:      messenger,
		cache:          cache,
		log:            log,
		adminChannel:   adminChannel,
		playersChannel: playersChannel,
		lastFired:      map[string]string{},
		now:            time.Now,
	}
}

// Run reconciles restart state and evaluates the calendar until ctx ends.
// Timers are not persisted; they are rebuilt here from registrationOpen
// and warmupTime.
func (s *Service) Run(ctx context.Context) {
	if err := s.Reconcile(ctx); err != nil {
		s.log.Error().Err(err).Msg("scheduler: startup reconciliation failed")
	}

	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.stopTimers()
			return
		case <-ticker.C:
			s.tick(ctx, s.now().In(s.cfg.Location))
		}
	}
}

// Reconcile rearms the event-day one-shot timers after a restart: if now
// is inside the event day and the persisted roster is still open, the
// warning and close moments are recomputed from the persisted warmup time.
func (s *Service) Reconcile(ctx context.Context) error {
	now := s.now().In(s.cfg.Location)
	if now.Weekday() != s.cfg.EventWeekday {
		return nil
	}
	ros, err := s.state.Roster(ctx)
	if err != nil {
		return err
	}
	if !ros.RegistrationOpen {
		return nil
	}
	s.log.Info().Msg("scheduler: rearming event-day timers after restart")
	return s.ArmEventTimers(ctx)
}

func (s *Service) tick(ctx context.Context, now time.Time) {
	s.fireAt(now, s.cfg.OpenWeekday, s.cfg.WakeAt, "wake", func() { s.wake(ctx) })
	s.fireAt(now, s.cfg.OpenWeekday, s.cfg.PreviewAt, "preview", func() { s.preview(ctx) })
	s.fireAt(now, s.cfg.OpenWeekday, s.cfg.OpenAt, "open", func() { s.open(ctx) })
	s.fireAt(now, s.cfg.EventWeekday, s.cfg.ArmAt, "arm", func() { s.arm(ctx) })
	s.fireAt(now, s.cfg.EventWeekday, s.cfg.ResetAt, "reset", func() { s.reset(ctx) })
	s.fireAt(now, s.cfg.CleanWeekday, s.cfg.CleanAt, "clean", func() { s.cleanBroadcast(ctx) })
	s.cadenceTick(ctx, now)
}

// fireAt runs fn once when now matches the weekday and clock, at minute
// granularity.
func (s *Service) fireAt(now time.Time, weekday time.Weekday, clock, id string, fn func()) {
	if now.Weekday() != weekday || now.Format("15:04") != clock {
		return
	}
	stamp := now.Format("2006-01-02 15:04")
	s.mu.Lock()
	if s.lastFired[id] == stamp {
		s.mu.Unlock()
		return
	}
	s.lastFired[id] = stamp
	s.mu.Unlock()
	fn()
}

func (s *Service) cadenceTick(ctx context.Context, now time.Time) {
	interval := int(s.cfg.Cadence.Minutes())
	if interval <= 0 {
		return
	}
	minutes := now.Hour()*60 + now.Minute()
	if minutes%interval != 0 {
		return
	}
	s.fireAt(now, now.Weekday(), now.Format("15:04"), "cadence", func() {
		ros, err := s.state.Roster(ctx)
		if err != nil {
			s.log.Error().Err(err).Msg("scheduler: cadence roster load failed")
			return
		}
		if !ros.RegistrationOpen {
			return
		}
		// Skip rule: the cadence tick right after opening would double up
		// with the burst flush.
		if raw, err := s.cache.Get(burstGuardKey); err == nil && len(raw) > 0 {
			s.log.Debug().Msg("scheduler: cadence flush skipped inside burst window")
			return
		}
		if err := s.reg.EnqueueFlush(ctx, domain.FlushReasonCadence); err != nil {
			s.log.Error().Err(err).Msg("scheduler: cadence flush enqueue failed")
		}
	})
}

func (s *Service) wake(ctx context.Context) {
	if err := s.state.SaveBotControl(ctx, domain.BotControl{Sleeping: false}); err != nil {
		s.log.Error().Err(err).Msg("scheduler: wake failed")
		return
	}
	s.log.Info().Msg("scheduler: bot woke up for registration day")
}

func (s *Service) preview(ctx context.Context) {
	ros, err := s.state.Roster(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("scheduler: preview roster load failed")
		return
	}
	if err := s.reg.PostRoster(ctx, roster.Render(&ros)); err != nil {
		s.log.Error().Err(err).Msg("scheduler: preview post failed")
		return
	}
	s.log.Info().Msg("scheduler: posted roster preview")
}

func (s *Service) open(ctx context.Context) {
	ros, err := s.state.Roster(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("scheduler: open roster load failed")
		return
	}
	ros.RegistrationOpen = true
	if err := s.state.SaveRoster(ctx, ros); err != nil {
		s.log.Error().Err(err).Msg("scheduler: open save failed")
		return
	}
	if err := s.messenger.SetChannelLocked(ctx, s.playersChannel, false); err != nil {
		s.log.Error().Err(err).Msg("scheduler: unlock players channel failed")
	}

	guardTTL := s.cfg.BurstDelay + 10*time.Minute
	if err := s.cache.Set(burstGuardKey, []byte("1"), guardTTL); err != nil {
		s.log.Debug().Err(err).Msg("scheduler: burst guard set failed")
	}

	s.mu.Lock()
	if s.burstTimer != nil {
		s.burstTimer.Stop()
	}
	s.burstTimer = time.AfterFunc(s.cfg.BurstDelay, func() {
		if err := s.reg.EnqueueFlush(context.Background(), domain.FlushReasonBurst); err != nil {
			s.log.Error().Err(err).Msg("scheduler: burst flush enqueue failed")
		}
	})
	s.mu.Unlock()

	s.log.Info().Msg("scheduler: registration opened")
}

func (s *Service) arm(ctx context.Context) {
	ros, err := s.state.Roster(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("scheduler: arm roster load failed")
		return
	}
	if !ros.RegistrationOpen {
		return
	}
	if err := s.ArmEventTimers(ctx); err != nil {
		s.log.Error().Err(err).Msg("scheduler: arming event timers failed")
	}
}

// ArmEventTimers computes the warning and close moments from the persisted
// warmup time and replaces both one-shot timers. There is no partial
// update: compute fresh, start fresh.
func (s *Service) ArmEventTimers(ctx context.Context) error {
	ros, err := s.state.Roster(ctx)
	if err != nil {
		return err
	}
	warmup, err := s.eventClock(ros.WarmupTime)
	if err != nil {
		return err
	}

	now := s.now().In(s.cfg.Location)
	warnAt := warmup.Add(-s.cfg.WarnBefore)
	closeAt := warmup.Add(-s.cfg.CloseBefore)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.warnTimer != nil {
		s.warnTimer.Stop()
		s.warnTimer = nil
	}
	if s.closeTimer != nil {
		s.closeTimer.Stop()
		s.closeTimer = nil
	}
	if d := warnAt.Sub(now); d > 0 {
		s.warnTimer = time.AfterFunc(d, func() { s.fireWarning() })
	}
	if d := closeAt.Sub(now); d > 0 {
		s.closeTimer = time.AfterFunc(d, func() { s.fireClose() })
	}
	s.log.Info().Time("warnAt", warnAt).Time("closeAt", closeAt).Msg("scheduler: event timers armed")
	return nil
}

func (s *Service) fireWarning() {
	ctx := context.Background()
	if _, err := s.messenger.Send(ctx, s.playersChannel, "ביטולים אחרונים? ⏳", nil); err != nil {
		s.log.Error().Err(err).Msg("scheduler: warning broadcast failed")
		return
	}
	s.log.Info().Msg("scheduler: sent last-cancellations warning")
}

func (s *Service) fireClose() {
	// The worker runs the final flush and then closes, keeping close
	// strictly after the last batch.
	if err := s.reg.EnqueueFlush(context.Background(), domain.FlushReasonClose); err != nil {
		s.log.Error().Err(err).Msg("scheduler: close flush enqueue failed")
	}
}

func (s *Service) reset(ctx context.Context) {
	if err := s.state.ResetForNewWeek(ctx); err != nil {
		s.log.Error().Err(err).Msg("scheduler: weekly reset failed")
		return
	}
	s.stopTimers()
	s.log.Info().Msg("scheduler: reset for new week")
}

func (s *Service) cleanBroadcast(ctx context.Context) {
	ros, err := s.state.Roster(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("scheduler: clean broadcast roster load failed")
		return
	}
	if _, err := s.messenger.Send(ctx, s.adminChannel, roster.Render(&ros), nil); err != nil {
		s.log.Error().Err(err).Msg("scheduler: clean broadcast failed")
		return
	}
	s.log.Info().Msg("scheduler: posted clean roster to admin channel")
}

func (s *Service) stopTimers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range []*time.Timer{s.warnTimer, s.closeTimer, s.burstTimer} {
		if t != nil {
			t.Stop()
		}
	}
	s.warnTimer, s.closeTimer, s.burstTimer = nil, nil, nil
}

// eventClock resolves an "HH:MM" warmup string to the concrete moment on
// the current event day.
func (s *Service) eventClock(clock string) (time.Time, error) {
	h, m, err := splitClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	now := s.now().In(s.cfg.Location)
	day := now
	for day.Weekday() != s.cfg.EventWeekday {
		day = day.AddDate(0, 0, 1)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, s.cfg.Location), nil
}

func splitClock(clock string) (int, int, error) {
	parts := strings.SplitN(clock, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("bad clock %q", clock)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("bad clock %q", clock)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("bad clock %q", clock)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("bad clock %q", clock)
	}
	return h, m, nil
}
