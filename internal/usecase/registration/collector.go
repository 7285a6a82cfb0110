package registration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/davidZal1992/soccer-automation-registry-ai/internal/domain"
)

// pendingTimer is the owned debounce timer: cancel-and-replace, never
// stacked.
type pendingTimer struct {
	mu    sync.Mutex
	timer *time.Timer
}

func (p *pendingTimer) reset(d time.Duration, fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(d, fn)
}

func (p *pendingTimer) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// Collect appends an inbound text to the buffer and re-arms the
// quiet-period debounce.
func (s *Service) Collect(ctx context.Context, msgID, senderJID, text string) error {
	weekly, err := s.state.Weekly(ctx)
	if err != nil {
		return err
	}
	weekly.MessagesCollected = append(weekly.MessagesCollected, domain.CollectedMessage{
		MsgID:     msgID,
		SenderJID: domain.NormalizeJID(senderJID),
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
	})
	if err := s.state.SaveWeekly(ctx, weekly); err != nil {
		return err
	}
	if s.debounce > 0 {
		s.debounceTimer.reset(s.debounce, func() {
			if err := s.EnqueueFlush(context.Background(), domain.FlushReasonDebounce); err != nil {
				s.log.Error().Err(err).Msg("debounce: enqueue flush failed")
			}
		})
	}
	return nil
}

// EditMessage replaces the text of a still-buffered message; a message
// already flushed (or never collected) is left alone.
func (s *Service) EditMessage(ctx context.Context, msgID, newText string) error {
	weekly, err := s.state.Weekly(ctx)
	if err != nil {
		return err
	}
	for i := range weekly.MessagesCollected {
		if weekly.MessagesCollected[i].MsgID == msgID {
			weekly.MessagesCollected[i].Text = newText
			s.log.Debug().Str("msgId", msgID).Msg("collector: buffered message edited")
			return s.state.SaveWeekly(ctx, weekly)
		}
	}
	return nil
}

// DeleteMessage drops a buffered message entirely; a deleted message must
// never reach the classifier.
func (s *Service) DeleteMessage(ctx context.Context, msgID string) error {
	weekly, err := s.state.Weekly(ctx)
	if err != nil {
		return err
	}
	for i := range weekly.MessagesCollected {
		if weekly.MessagesCollected[i].MsgID == msgID {
			weekly.MessagesCollected = append(weekly.MessagesCollected[:i], weekly.MessagesCollected[i+1:]...)
			s.log.Debug().Str("msgId", msgID).Msg("collector: buffered message deleted")
			return s.state.SaveWeekly(ctx, weekly)
		}
	}
	return nil
}

// EnqueueFlush publishes a flush job for the single worker.
func (s *Service) EnqueueFlush(ctx context.Context, reason string) error {
	job := domain.FlushJob{
		ID:         uuid.NewString(),
		Reason:     reason,
		EnqueuedAt: time.Now(),
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("enqueue flush (%s): %w", reason, err)
	}
	return nil
}

// StopDebounce cancels any pending debounce timer (used at shutdown).
func (s *Service) StopDebounce() {
	s.debounceTimer.stop()
}
