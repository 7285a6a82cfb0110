// Package registration buffers inbound messages while registration is open
// and applies classified intent batches to the roster.
package registration

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/davidZal1992/soccer-automation-registry-ai/internal/domain"
	"github.com/davidZal1992/soccer-automation-registry-ai/internal/infra/metrics"
	"github.com/davidZal1992/soccer-automation-registry-ai/internal/usecase/roster"
	"github.com/davidZal1992/soccer-automation-registry-ai/internal/usecase/state"
)

const lastRosterMsgKey = "players:last_roster_msg"

// Service is the intent batch applier plus the message collector.
type Service struct {
	state      *state.Service
	classifier domain.Classifier
	messenger  domain.Messenger
	queue      domain.FlushQueue
	cache      domain.Cache
	log        zerolog.Logger

	playersChannel string
	debounce       time.Duration
	debounceTimer  pendingTimer

	mu         sync.Mutex
	lastPosted *domain.MessageRef
}

// NewService creates the service.
func NewService(st *state.Service, classifier domain.Classifier, messenger domain.Messenger, queue domain.FlushQueue, cache domain.Cache, log zerolog.Logger, playersChannel string, debounce time.Duration) *Service {
	return &Service{
		state:          st,
		classifier:     classifier,
		messenger:      messenger,
		queue:          queue,
		cache:          cache,
		log:            log,
		playersChannel: playersChannel,
		debounce:       debounce,
	}
}

// ProcessFlush drains the buffer, classifies it and applies the resulting
// intents. Zero intents (including classifier failure) is a pure no-op
// beyond the drain. Called only from the single flush worker.
func (s *Service) ProcessFlush(ctx context.Context, job domain.FlushJob) error {
	control, err := s.state.BotControl(ctx)
	if err != nil {
		return err
	}
	if control.Sleeping {
		s.log.Debug().Str("reason", job.Reason).Msg("flush skipped: bot is sleeping")
		return nil
	}

	weekly, err := s.state.Weekly(ctx)
	if err != nil {
		return err
	}
	if len(weekly.MessagesCollected) == 0 {
		return nil
	}

	// Atomic buffer swap: messages collected from here on belong to the
	// next flush.
	batch := weekly.MessagesCollected
	weekly.MessagesCollected = []domain.CollectedMessage{}
	if err := s.state.SaveWeekly(ctx, weekly); err != nil {
		return err
	}

	start := time.Now()
	defer func() {
		metrics.FlushDuration.Observe(time.Since(start).Seconds())
		metrics.FlushesTotal.WithLabelValues(job.Reason).Inc()
	}()

	intents, err := s.classifier.ClassifyRegistrations(ctx, batch)
	if err != nil {
		s.log.Warn().Err(err).Int("messages", len(batch)).Msg("classifier failed, batch discarded")
		return nil
	}
	if len(intents) == 0 {
		return nil
	}

	ros, err := s.state.Roster(ctx)
	if err != nil {
		return err
	}
	weekly, err = s.state.Weekly(ctx)
	if err != nil {
		return err
	}

	promoted := s.apply(&ros, &weekly, batch, intents)

	if err := s.state.SaveRoster(ctx, ros); err != nil {
		return err
	}
	if err := s.state.SaveWeekly(ctx, weekly); err != nil {
		return err
	}
	s.observeRoster(&ros)

	rendered := roster.Render(&ros)
	if err := s.PostRoster(ctx, rendered); err != nil {
		s.log.Error().Err(err).Msg("failed to post roster")
	}
	if len(promoted) > 0 {
		s.notifyPromoted(ctx, promoted)
	}

	s.log.Info().Int("intents", len(intents)).Int("promoted", len(promoted)).Str("reason", job.Reason).Msg("flush processed")
	return nil
}

// apply walks the intent batch in order: dedup per normalized identity,
// sender security gate for cancellations, registration validation, then
// the slot engine. Returns participants promoted from the waiting list.
func (s *Service) apply(ros *domain.Roster, weekly *domain.WeeklyState, batch []domain.CollectedMessage, intents []domain.Intent) []domain.Participant {
	senders := make(map[string]struct{}, len(batch))
	for _, m := range batch {
		senders[domain.NormalizeJID(m.SenderJID)] = struct{}{}
	}

	seen := make(map[string]struct{})
	var promoted []domain.Participant

	for _, intent := range intents {
		id := domain.NormalizeJID(intent.UserID)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		metrics.IntentsTotal.WithLabelValues(string(intent.Kind)).Inc()

		switch intent.Kind {
		case domain.IntentRegister:
			s.applyRegister(ros, weekly, id, intent.Name)

		case domain.IntentCancelWaiting:
			if _, sent := senders[id]; !sent {
				s.blockCancel(id, intent.Kind)
				continue
			}
			removed, _ := removeWaitingOnly(ros, id)
			if removed {
				delete(weekly.UserIDMap, id)
			}

		case domain.IntentCancel:
			if _, sent := senders[id]; !sent {
				s.blockCancel(id, intent.Kind)
				continue
			}
			if p := s.applyCancel(ros, weekly, id, intent.Name); p != nil {
				promoted = append(promoted, *p)
			}

		default:
			s.log.Warn().Str("kind", string(intent.Kind)).Msg("unknown intent kind ignored")
		}
	}
	return promoted
}

func (s *Service) applyRegister(ros *domain.Roster, weekly *domain.WeeklyState, id, rawName string) {
	name := strings.TrimSpace(rawName)
	if !domain.IsFullName(name) {
		metrics.SkippedRegistrationsTotal.WithLabelValues("short_name").Inc()
		return
	}
	if _, active := weekly.UserIDMap[id]; active {
		metrics.SkippedRegistrationsTotal.WithLabelValues("already_registered").Inc()
		return
	}
	// The name may not be held by a different identity anywhere in the
	// roster. A manual placeholder (no identity) is fine: the engine
	// links it to this sender.
	if nameHeldByOther(ros, name, id) {
		metrics.SkippedRegistrationsTotal.WithLabelValues("name_collision").Inc()
		s.log.Info().Str("name", name).Str("userId", id).Msg("skipped duplicate name registration")
		return
	}
	weekly.UserIDMap[id] = name
	roster.Add(ros, domain.Participant{Name: name, UserID: id})
}

func (s *Service) applyCancel(ros *domain.Roster, weekly *domain.WeeklyState, id, claimedName string) *domain.Participant {
	_, inWeekly := weekly.UserIDMap[id]
	inRoster := roster.FindByUserID(ros, id) != nil
	if !inWeekly && !inRoster {
		// Fallback for identities an admin entered manually: a full name
		// matching a placeholder releases that placeholder.
		name := strings.TrimSpace(claimedName)
		if domain.IsFullName(name) && placeholderExists(ros, name) {
			_, pr := roster.RemoveByName(ros, name)
			return pr
		}
		return nil
	}
	delete(weekly.UserIDMap, id)
	_, pr := roster.Remove(ros, id)
	return pr
}

func (s *Service) blockCancel(id string, kind domain.IntentKind) {
	metrics.BlockedCancellationsTotal.Inc()
	s.log.Warn().Str("userId", id).Str("kind", string(kind)).Msg("blocked cancel: userId is not an actual sender in this batch")
}

// CloseRegistration flips the roster closed, locks the players channel and
// reposts the final roster. The close is complete only once the flag is
// persisted.
func (s *Service) CloseRegistration(ctx context.Context) error {
	ros, err := s.state.Roster(ctx)
	if err != nil {
		return err
	}
	ros.RegistrationOpen = false
	if err := s.state.SaveRoster(ctx, ros); err != nil {
		return err
	}
	if err := s.messenger.SetChannelLocked(ctx, s.playersChannel, true); err != nil {
		s.log.Error().Err(err).Msg("failed to lock players channel")
	}
	if err := s.PostRoster(ctx, roster.Render(&ros)); err != nil {
		s.log.Error().Err(err).Msg("failed to post final roster")
	}
	s.log.Info().Msg("registration closed")
	return nil
}

// PostRoster deletes the previously posted roster message and posts the
// new rendering, keeping the players channel at one live roster message.
func (s *Service) PostRoster(ctx context.Context, text string) error {
	s.mu.Lock()
	last := s.lastPosted
	s.mu.Unlock()

	if last == nil {
		if raw, err := s.cache.Get(lastRosterMsgKey); err == nil && len(raw) > 0 {
			last = &domain.MessageRef{ID: string(raw)}
		}
	}
	if last != nil {
		if err := s.messenger.DeleteMessage(ctx, s.playersChannel, *last); err != nil {
			s.log.Debug().Err(err).Msg("could not delete previous roster message")
		}
	}

	ref, err := s.messenger.Send(ctx, s.playersChannel, text, nil)
	if err != nil {
		metrics.SendErrorsTotal.Inc()
		return err
	}
	s.mu.Lock()
	s.lastPosted = &ref
	s.mu.Unlock()
	if err := s.cache.Set(lastRosterMsgKey, []byte(ref.ID), 7*24*time.Hour); err != nil {
		s.log.Debug().Err(err).Msg("could not cache roster message ref")
	}
	return nil
}

func (s *Service) notifyPromoted(ctx context.Context, promoted []domain.Participant) {
	mentions := make([]string, 0, len(promoted))
	tags := make([]string, 0, len(promoted))
	for _, p := range promoted {
		if p.UserID == "" {
			continue
		}
		mentions = append(mentions, p.UserID)
		tags = append(tags, "@"+strings.SplitN(p.UserID, "@", 2)[0])
	}
	if len(mentions) == 0 {
		return
	}
	verb := "נכנסת"
	if len(mentions) > 1 {
		verb = "נכנסתם"
	}
	if _, err := s.messenger.Send(ctx, s.playersChannel, strings.Join(tags, " ")+" "+verb, mentions); err != nil {
		metrics.SendErrorsTotal.Inc()
		s.log.Error().Err(err).Msg("failed to send promotion notice")
	}
}

func (s *Service) observeRoster(ros *domain.Roster) {
	occupied := 0
	for _, sl := range ros.Slots {
		if sl != nil {
			occupied++
		}
	}
	metrics.ObserveRoster(occupied, len(ros.WaitingList))
}

// removeWaitingOnly splices the identity out of the waiting list with no
// promotion side effect.
func removeWaitingOnly(ros *domain.Roster, id string) (bool, *domain.Participant) {
	for i := range ros.WaitingList {
		w := &ros.WaitingList[i]
		if w.UserID != "" && domain.NormalizeJID(w.UserID) == id {
			out := *w
			ros.WaitingList = append(ros.WaitingList[:i], ros.WaitingList[i+1:]...)
			return true, &out
		}
	}
	return false, nil
}

func nameHeldByOther(ros *domain.Roster, name, id string) bool {
	holds := func(p *domain.Participant) bool {
		return p.Name == name && p.UserID != "" && domain.NormalizeJID(p.UserID) != id
	}
	for _, sl := range ros.Slots {
		if sl != nil && holds(sl) {
			return true
		}
	}
	for i := range ros.WaitingList {
		if holds(&ros.WaitingList[i]) {
			return true
		}
	}
	return false
}

func placeholderExists(ros *domain.Roster, name string) bool {
	for _, sl := range ros.Slots {
		if sl != nil && sl.UserID == "" && sl.Name == name {
			return true
		}
	}
	for i := range ros.WaitingList {
		if ros.WaitingList[i].UserID == "" && ros.WaitingList[i].Name == name {
			return true
		}
	}
	return false
}
