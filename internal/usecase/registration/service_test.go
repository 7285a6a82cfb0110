package registration

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/davidZal1992/soccer-automation-registry-ai/internal/domain"
	"github.com/davidZal1992/soccer-automation-registry-ai/internal/usecase/state"
)

type memStore struct {
	docs map[string][]byte
}

func newMemStore() *memStore { return &memStore{docs: map[string][]byte{}} }

func (m *memStore) Load(_ context.Context, key string, out any) error {
	raw, ok := m.docs[key]
	if !ok {
		return domain.ErrNotFound
	}
	return json.Unmarshal(raw, out)
}

func (m *memStore) Save(_ context.Context, key string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	m.docs[key] = raw
	return nil
}

type stubClassifier struct {
	intents []domain.Intent
	err     error
	batches [][]domain.CollectedMessage
}

func (c *stubClassifier) ClassifyRegistrations(_ context.Context, batch []domain.CollectedMessage) ([]domain.Intent, error) {
	c.batches = append(c.batches, batch)
	return c.intents, c.err
}

func (c *stubClassifier) ClassifyAdminCommand(context.Context, string, []string) (*domain.AdminCommand, error) {
	return nil, nil
}

type sentMsg struct {
	Channel  string
	Text     string
	Mentions []string
}

type stubMessenger struct {
	sent    []sentMsg
	deleted []string
	locked  map[string]bool
	nextID  int
}

func newStubMessenger() *stubMessenger { return &stubMessenger{locked: map[string]bool{}} }

func (m *stubMessenger) Send(_ context.Context, channel, text string, mentions []string) (domain.MessageRef, error) {
	m.sent = append(m.sent, sentMsg{Channel: channel, Text: text, Mentions: mentions})
	m.nextID++
	return domain.MessageRef{ID: string(rune('A' + m.nextID - 1))}, nil
}

func (m *stubMessenger) DeleteMessage(_ context.Context, _ string, ref domain.MessageRef) error {
	m.deleted = append(m.deleted, ref.ID)
	return nil
}

func (m *stubMessenger) SetChannelLocked(_ context.Context, channel string, locked bool) error {
	m.locked[channel] = locked
	return nil
}

type stubQueue struct {
	mu   sync.Mutex
	jobs []domain.FlushJob
}

func (q *stubQueue) Enqueue(_ context.Context, job domain.FlushJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *stubQueue) Pop(context.Context) (domain.FlushJob, error) {
	return domain.FlushJob{}, errors.New("empty")
}

func (q *stubQueue) snapshot() []domain.FlushJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]domain.FlushJob(nil), q.jobs...)
}

type stubCache struct {
	m map[string][]byte
}

func newStubCache() *stubCache { return &stubCache{m: map[string][]byte{}} }

func (c *stubCache) Once(_ string, _ time.Duration, fn func() error) error { return fn() }
func (c *stubCache) Set(key string, value []byte, _ time.Duration) error {
	c.m[key] = value
	return nil
}
func (c *stubCache) Get(key string) ([]byte, error) {
	raw, ok := c.m[key]
	if !ok {
		return nil, errors.New("miss")
	}
	return raw, nil
}

func newTestService(classifier *stubClassifier) (*Service, *state.Service, *stubMessenger, *stubQueue) {
	loc, _ := time.LoadLocation("Asia/Jerusalem")
	st := state.NewService(newMemStore(), loc, domain.AdminEntry{})
	messenger := newStubMessenger()
	queue := &stubQueue{}
	svc := NewService(st, classifier, messenger, queue, newStubCache(), zerolog.Nop(), "players@g.us", 0)
	return svc, st, messenger, queue
}

func awake(t *testing.T, st *state.Service) {
	t.Helper()
	if err := st.SaveBotControl(context.Background(), domain.BotControl{Sleeping: false}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func collect(t *testing.T, svc *Service, msgID, sender, text string) {
	t.Helper()
	if err := svc.Collect(context.Background(), msgID, sender, text); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func flush(t *testing.T, svc *Service) {
	t.Helper()
	if err := svc.ProcessFlush(context.Background(), domain.FlushJob{ID: "j1", Reason: domain.FlushReasonDebounce}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestProcessFlushAppliesRegistrations(t *testing.T) {
	classifier := &stubClassifier{intents: []domain.Intent{
		{Kind: domain.IntentRegister, Name: "דוד כהן", UserID: "1@s.whatsapp.net"},
		{Kind: domain.IntentRegister, Name: "יוסי לוי", UserID: "2@s.whatsapp.net"},
	}}
	svc, st, messenger, _ := newTestService(classifier)
	ctx := context.Background()
	awake(t, st)
	collect(t, svc, "m1", "1@s.whatsapp.net", "דוד כהן מגיע")
	collect(t, svc, "m2", "2@s.whatsapp.net", "יוסי לוי בפנים")

	flush(t, svc)

	ros, _ := st.Roster(ctx)
	if ros.Slots[0] == nil || ros.Slots[0].Name != "דוד כהן" {
		t.Fatalf("first registration missing: %+v", ros.Slots[0])
	}
	if ros.Slots[1] == nil || ros.Slots[1].Name != "יוסי לוי" {
		t.Fatalf("second registration missing")
	}
	weekly, _ := st.Weekly(ctx)
	if len(weekly.MessagesCollected) != 0 {
		t.Fatalf("buffer must be drained")
	}
	if weekly.UserIDMap["1@s.whatsapp.net"] != "דוד כהן" {
		t.Fatalf("identity map not updated: %+v", weekly.UserIDMap)
	}
	if len(messenger.sent) != 1 {
		t.Fatalf("expected one roster post, got %d", len(messenger.sent))
	}
}

func TestProcessFlushSkipsWhileSleeping(t *testing.T) {
	classifier := &stubClassifier{}
	svc, st, _, _ := newTestService(classifier)
	collect(t, svc, "m1", "1@s.whatsapp.net", "דוד כהן מגיע")

	// Bot control defaults to sleeping.
	flush(t, svc)

	if len(classifier.batches) != 0 {
		t.Fatalf("sleeping flush must not reach the classifier")
	}
	weekly, _ := st.Weekly(context.Background())
	if len(weekly.MessagesCollected) != 1 {
		t.Fatalf("sleeping flush must keep the buffer")
	}
}

func TestProcessFlushEmptyBufferIsNoop(t *testing.T) {
	classifier := &stubClassifier{}
	svc, st, messenger, _ := newTestService(classifier)
	awake(t, st)

	flush(t, svc)

	if len(classifier.batches) != 0 || len(messenger.sent) != 0 {
		t.Fatalf("empty buffer must be a pure no-op")
	}
}

func TestProcessFlushClassifierFailureDiscardsBatch(t *testing.T) {
	classifier := &stubClassifier{err: errors.New("model down")}
	svc, st, messenger, _ := newTestService(classifier)
	ctx := context.Background()
	awake(t, st)
	collect(t, svc, "m1", "1@s.whatsapp.net", "דוד כהן מגיע")

	flush(t, svc)

	weekly, _ := st.Weekly(ctx)
	if len(weekly.MessagesCollected) != 0 {
		t.Fatalf("failed batch is discarded, not retried")
	}
	ros, _ := st.Roster(ctx)
	if ros.Slots[0] != nil {
		t.Fatalf("roster must be untouched on classifier failure")
	}
	if len(messenger.sent) != 0 {
		t.Fatalf("nothing may be posted on classifier failure")
	}
}

func TestApplyDeduplicatesPerIdentity(t *testing.T) {
	classifier := &stubClassifier{intents: []domain.Intent{
		{Kind: domain.IntentRegister, Name: "דוד כהן", UserID: "1@s.whatsapp.net"},
		{Kind: domain.IntentCancel, UserID: "1@s.whatsapp.net"},
	}}
	svc, st, _, _ := newTestService(classifier)
	awake(t, st)
	collect(t, svc, "m1", "1@s.whatsapp.net", "דוד כהן מגיע")

	flush(t, svc)

	ros, _ := st.Roster(context.Background())
	if ros.Slots[0] == nil || ros.Slots[0].Name != "דוד כהן" {
		t.Fatalf("only the first intent per identity applies")
	}
}

func TestApplyBlocksSpoofedCancellation(t *testing.T) {
	classifier := &stubClassifier{intents: []domain.Intent{
		// Victim did not write anything in this batch.
		{Kind: domain.IntentCancel, UserID: "victim@s.whatsapp.net"},
	}}
	svc, st, _, _ := newTestService(classifier)
	ctx := context.Background()
	awake(t, st)

	ros, _ := st.Roster(ctx)
	ros.Slots[0] = &domain.Participant{Name: "קורבן תמים", UserID: "victim@s.whatsapp.net"}
	if err := st.SaveRoster(ctx, ros); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	weekly, _ := st.Weekly(ctx)
	weekly.UserIDMap["victim@s.whatsapp.net"] = "קורבן תמים"
	if err := st.SaveWeekly(ctx, weekly); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	collect(t, svc, "m1", "attacker@s.whatsapp.net", "תוריד את הקורבן")
	flush(t, svc)

	ros, _ = st.Roster(ctx)
	if ros.Slots[0] == nil {
		t.Fatalf("a cancel for a non-sender must be blocked")
	}
}

func TestApplySkipsNameHeldByOther(t *testing.T) {
	classifier := &stubClassifier{intents: []domain.Intent{
		{Kind: domain.IntentRegister, Name: "דוד כהן", UserID: "2@s.whatsapp.net"},
	}}
	svc, st, _, _ := newTestService(classifier)
	ctx := context.Background()
	awake(t, st)

	ros, _ := st.Roster(ctx)
	ros.Slots[0] = &domain.Participant{Name: "דוד כהן", UserID: "1@s.whatsapp.net"}
	if err := st.SaveRoster(ctx, ros); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	collect(t, svc, "m1", "2@s.whatsapp.net", "דוד כהן מגיע")
	flush(t, svc)

	ros, _ = st.Roster(ctx)
	if ros.Slots[1] != nil {
		t.Fatalf("a name held by another identity must be rejected")
	}
	weekly, _ := st.Weekly(ctx)
	if _, ok := weekly.UserIDMap["2@s.whatsapp.net"]; ok {
		t.Fatalf("rejected registration must not enter the identity map")
	}
}

func TestApplyLinksManualPlaceholder(t *testing.T) {
	classifier := &stubClassifier{intents: []domain.Intent{
		{Kind: domain.IntentRegister, Name: "דוד כהן", UserID: "1@s.whatsapp.net"},
	}}
	svc, st, _, _ := newTestService(classifier)
	ctx := context.Background()
	awake(t, st)

	ros, _ := st.Roster(ctx)
	ros.Slots[0] = &domain.Participant{Name: "דוד כהן"} // admin-entered, no identity
	if err := st.SaveRoster(ctx, ros); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	collect(t, svc, "m1", "1@s.whatsapp.net", "דוד כהן מגיע")
	flush(t, svc)

	ros, _ = st.Roster(ctx)
	if ros.Slots[0].UserID != "1@s.whatsapp.net" {
		t.Fatalf("placeholder must be linked: %+v", ros.Slots[0])
	}
	if ros.Slots[1] != nil {
		t.Fatalf("linking must not create a second entry")
	}
}

func TestApplyCancelReleasesPlaceholderByName(t *testing.T) {
	classifier := &stubClassifier{intents: []domain.Intent{
		{Kind: domain.IntentCancel, Name: "דוד כהן", UserID: "1@s.whatsapp.net"},
	}}
	svc, st, _, _ := newTestService(classifier)
	ctx := context.Background()
	awake(t, st)

	ros, _ := st.Roster(ctx)
	ros.Slots[0] = &domain.Participant{Name: "דוד כהן"}
	if err := st.SaveRoster(ctx, ros); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	collect(t, svc, "m1", "1@s.whatsapp.net", "דוד כהן מבטל")
	flush(t, svc)

	ros, _ = st.Roster(ctx)
	if ros.Slots[0] != nil {
		t.Fatalf("named cancel must release the placeholder")
	}
}

func TestApplyCancelWaitingDoesNotPromote(t *testing.T) {
	classifier := &stubClassifier{intents: []domain.Intent{
		{Kind: domain.IntentCancelWaiting, UserID: "w1@s.whatsapp.net"},
	}}
	svc, st, _, _ := newTestService(classifier)
	ctx := context.Background()
	awake(t, st)

	ros, _ := st.Roster(ctx)
	for i := range ros.Slots {
		ros.Slots[i] = &domain.Participant{Name: "שחקן קבוע", UserID: "s@s.whatsapp.net"}
	}
	ros.WaitingList = []domain.Participant{
		{Name: "ממתין ראשון", UserID: "w1@s.whatsapp.net"},
		{Name: "ממתין שני", UserID: "w2@s.whatsapp.net"},
	}
	if err := st.SaveRoster(ctx, ros); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	weekly, _ := st.Weekly(ctx)
	weekly.UserIDMap["w1@s.whatsapp.net"] = "ממתין ראשון"
	if err := st.SaveWeekly(ctx, weekly); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	collect(t, svc, "m1", "w1@s.whatsapp.net", "תוריד אותי מההמתנה")
	flush(t, svc)

	ros, _ = st.Roster(ctx)
	if len(ros.WaitingList) != 1 || ros.WaitingList[0].Name != "ממתין שני" {
		t.Fatalf("waiting cancel must splice only the caller: %+v", ros.WaitingList)
	}
	weekly, _ = st.Weekly(ctx)
	if _, ok := weekly.UserIDMap["w1@s.whatsapp.net"]; ok {
		t.Fatalf("waiting cancel must clear the identity map entry")
	}
}

func TestPromotionNotifiesWithMention(t *testing.T) {
	classifier := &stubClassifier{intents: []domain.Intent{
		{Kind: domain.IntentCancel, UserID: "1@s.whatsapp.net"},
	}}
	svc, st, messenger, _ := newTestService(classifier)
	ctx := context.Background()
	awake(t, st)

	ros, _ := st.Roster(ctx)
	for i := range ros.Slots {
		ros.Slots[i] = &domain.Participant{Name: "שחקן קבוע", UserID: "s@s.whatsapp.net"}
	}
	ros.Slots[0] = &domain.Participant{Name: "מבטל רישום", UserID: "1@s.whatsapp.net"}
	ros.WaitingList = []domain.Participant{{Name: "ממתין ראשון", UserID: "w1@s.whatsapp.net"}}
	if err := st.SaveRoster(ctx, ros); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	weekly, _ := st.Weekly(ctx)
	weekly.UserIDMap["1@s.whatsapp.net"] = "מבטל רישום"
	if err := st.SaveWeekly(ctx, weekly); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	collect(t, svc, "m1", "1@s.whatsapp.net", "אני בחוץ")
	flush(t, svc)

	ros, _ = st.Roster(ctx)
	if ros.Slots[0] == nil || ros.Slots[0].Name != "ממתין ראשון" {
		t.Fatalf("waiting head must take the vacated slot")
	}
	// Roster post plus the promotion notice.
	if len(messenger.sent) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messenger.sent))
	}
	notice := messenger.sent[1]
	if len(notice.Mentions) != 1 || notice.Mentions[0] != "w1@s.whatsapp.net" {
		t.Fatalf("promotion notice must mention the promoted player: %+v", notice)
	}
}

func TestCloseRegistration(t *testing.T) {
	svc, st, messenger, _ := newTestService(&stubClassifier{})
	ctx := context.Background()

	ros, _ := st.Roster(ctx)
	ros.RegistrationOpen = true
	if err := st.SaveRoster(ctx, ros); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.CloseRegistration(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ros, _ = st.Roster(ctx)
	if ros.RegistrationOpen {
		t.Fatalf("close must persist the closed flag")
	}
	if !messenger.locked["players@g.us"] {
		t.Fatalf("close must lock the players channel")
	}
	if len(messenger.sent) != 1 {
		t.Fatalf("close must post the final roster")
	}
}

func TestPostRosterDeletesPrevious(t *testing.T) {
	svc, _, messenger, _ := newTestService(&stubClassifier{})
	ctx := context.Background()

	if err := svc.PostRoster(ctx, "רשימה ראשונה"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.PostRoster(ctx, "רשימה שנייה"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(messenger.deleted) != 1 || messenger.deleted[0] != "A" {
		t.Fatalf("second post must delete the first message, got %v", messenger.deleted)
	}
	if len(messenger.sent) != 2 {
		t.Fatalf("expected 2 posts")
	}
}
