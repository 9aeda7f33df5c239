package broadcast

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"whatsapp-messenger/internal/models"
)

type fakeContacts struct {
	all []models.Contact
	err error
}

func (f *fakeContacts) ListAll(ctx context.Context) ([]models.Contact, error) {
	return f.all, f.err
}

func (f *fakeContacts) ListByIDs(ctx context.Context, ids []string) ([]models.Contact, error) {
	if f.err != nil {
		return nil, f.err
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []models.Contact
	for _, c := range f.all {
		if want[c.ID] {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeLogs struct {
	appends int
	entries []models.MessageLog
	err     error
}

func (f *fakeLogs) Append(ctx context.Context, entries []models.MessageLog) error {
	f.appends++
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entries...)
	return nil
}

type fakeGateway struct {
	ready      bool
	readyCalls int

	mu      sync.Mutex
	sent    []string
	results map[string]SendResult
	errs    map[string]error
	panics  map[string]string
}

func (g *fakeGateway) IsReady(ctx context.Context) bool {
	g.readyCalls++
	return g.ready
}

func (g *fakeGateway) Send(ctx context.Context, phone, text string) (SendResult, error) {
	g.mu.Lock()
	g.sent = append(g.sent, phone+"|"+text)
	g.mu.Unlock()
	if msg, ok := g.panics[phone]; ok {
		panic(msg)
	}
	if err, ok := g.errs[phone]; ok {
		return SendResult{}, err
	}
	if res, ok := g.results[phone]; ok {
		return res, nil
	}
	return SendResult{Success: true}, nil
}

type recordingNotifier struct {
	progress  []Progress
	completed []BulkSendResult
}

func (n *recordingNotifier) NotifyProgress(p Progress)        { n.progress = append(n.progress, p) }
func (n *recordingNotifier) NotifyCompleted(r BulkSendResult) { n.completed = append(n.completed, r) }

func threeContacts() []models.Contact {
	a := contactWith("Asha", map[string]string{"city": "Pune"})
	a.Phone = "+911111111111"
	b := contactWith("Ben", nil)
	b.Phone = "+912222222222"
	c := contactWith("Chen", map[string]string{"city": "Delhi"})
	c.Phone = "+913333333333"
	return []models.Contact{a, b, c}
}

func newTestSender(contacts []models.Contact, gw *fakeGateway) (*Sender, *fakeLogs, *[]time.Duration) {
	logs := &fakeLogs{}
	s := NewSender(&fakeContacts{all: contacts}, logs, gw, 2*time.Second)
	var waits []time.Duration
	s.wait = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	return s, logs, &waits
}

func TestSendBulkAllSent(t *testing.T) {
	gw := &fakeGateway{ready: true}
	s, logs, waits := newTestSender(threeContacts(), gw)

	res, err := s.SendBulk(context.Background(), "Hi {name} from {city}", nil)
	if err != nil {
		t.Fatalf("SendBulk: %v", err)
	}
	if res.TotalContacts != 3 || res.SentCount != 3 || res.FailedCount != 0 || res.DemoMode || res.Cancelled {
		t.Errorf("result = %+v", res)
	}
	if res.Message != "Sent 3 messages successfully" {
		t.Errorf("message = %q", res.Message)
	}
	if res.BatchID == "" {
		t.Error("batch id is empty")
	}
	if gw.readyCalls != 1 {
		t.Errorf("IsReady called %d times, want 1", gw.readyCalls)
	}
	if len(*waits) != 2 {
		t.Errorf("paced %d times, want 2 (no delay after the last contact)", len(*waits))
	}
	for _, d := range *waits {
		if d != 2*time.Second {
			t.Errorf("pacing delay = %s", d)
		}
	}

	wantSent := []string{
		"+911111111111|Hi Asha from Pune",
		"+912222222222|Hi Ben from {city}",
		"+913333333333|Hi Chen from Delhi",
	}
	if strings.Join(gw.sent, ",") != strings.Join(wantSent, ",") {
		t.Errorf("sent = %v, want %v", gw.sent, wantSent)
	}

	if logs.appends != 1 || len(logs.entries) != 3 {
		t.Fatalf("appends = %d entries = %d", logs.appends, len(logs.entries))
	}
	for _, e := range logs.entries {
		if e.Status != models.StatusSent || e.SentAt == nil || e.ErrorMessage != nil || e.BatchID != res.BatchID {
			t.Errorf("entry = %+v", e)
		}
	}
}

func TestSendBulkPartialFailures(t *testing.T) {
	contacts := threeContacts()
	gw := &fakeGateway{
		ready:   true,
		results: map[string]SendResult{contacts[0].Phone: {Success: false, Error: "invalid phone number"}},
		errs:    map[string]error{contacts[1].Phone: errors.New("browser disconnected")},
	}
	s, logs, _ := newTestSender(contacts, gw)

	res, err := s.SendBulk(context.Background(), "Hello {name}", nil)
	if err != nil {
		t.Fatalf("SendBulk: %v", err)
	}
	if res.SentCount != 1 || res.FailedCount != 2 {
		t.Errorf("result = %+v", res)
	}
	if res.Message != "Sent 1 messages successfully, 2 failed" {
		t.Errorf("message = %q", res.Message)
	}
	if len(gw.sent) != 3 {
		t.Errorf("gateway called %d times, want 3", len(gw.sent))
	}

	want := []struct{ status, detail string }{
		{models.StatusFailed, "invalid phone number"},
		{models.StatusFailed, "browser disconnected"},
		{models.StatusSent, ""},
	}
	for i, w := range want {
		e := logs.entries[i]
		if e.Status != w.status {
			t.Errorf("entry %d status = %s, want %s", i, e.Status, w.status)
		}
		if w.detail == "" {
			if e.ErrorMessage != nil || e.SentAt == nil {
				t.Errorf("entry %d = %+v", i, e)
			}
			continue
		}
		if e.ErrorMessage == nil || *e.ErrorMessage != w.detail || e.SentAt != nil {
			t.Errorf("entry %d = %+v, want detail %q", i, e, w.detail)
		}
	}
}

func TestSendBulkRecoversFromPanic(t *testing.T) {
	contacts := threeContacts()
	gw := &fakeGateway{ready: true, panics: map[string]string{contacts[1].Phone: "boom"}}
	s, logs, _ := newTestSender(contacts, gw)

	res, err := s.SendBulk(context.Background(), "Hi {name}", nil)
	if err != nil {
		t.Fatalf("SendBulk: %v", err)
	}
	if res.SentCount != 2 || res.FailedCount != 1 {
		t.Errorf("result = %+v", res)
	}
	e := logs.entries[1]
	if e.Status != models.StatusFailed || e.ErrorMessage == nil || *e.ErrorMessage != "boom" {
		t.Errorf("panicking contact entry = %+v", e)
	}
	if e.Message != "Hi Ben" {
		t.Errorf("entry message = %q", e.Message)
	}
}

func TestSendBulkDemoMode(t *testing.T) {
	gw := &fakeGateway{ready: false}
	s, logs, waits := newTestSender(threeContacts(), gw)

	res, err := s.SendBulk(context.Background(), "Hi {name}", nil)
	if err != nil {
		t.Fatalf("SendBulk: %v", err)
	}
	if !res.DemoMode || res.SentCount != 3 || res.FailedCount != 0 {
		t.Errorf("result = %+v", res)
	}
	if res.Message != "Demo mode: WhatsApp not connected, simulated 3 messages" {
		t.Errorf("message = %q", res.Message)
	}
	if len(gw.sent) != 0 {
		t.Errorf("gateway Send called in demo mode: %v", gw.sent)
	}
	if len(*waits) != 2 {
		t.Errorf("paced %d times in demo mode, want 2", len(*waits))
	}
	for _, e := range logs.entries {
		if e.Status != models.StatusDemo || e.SentAt == nil {
			t.Errorf("demo entry = %+v", e)
		}
	}
	if logs.entries[0].Message != "Hi Asha" {
		t.Errorf("demo entries still render: %q", logs.entries[0].Message)
	}
}

func TestSendBulkNilGatewayIsDemo(t *testing.T) {
	logs := &fakeLogs{}
	s := NewSender(&fakeContacts{all: threeContacts()}, logs, nil, 0)

	res, err := s.SendBulk(context.Background(), "Hi", nil)
	if err != nil {
		t.Fatalf("SendBulk: %v", err)
	}
	if !res.DemoMode || res.SentCount != 3 {
		t.Errorf("result = %+v", res)
	}
}

func TestSendBulkSelection(t *testing.T) {
	contacts := threeContacts()
	gw := &fakeGateway{ready: true}
	s, logs, _ := newTestSender(contacts, gw)

	res, err := s.SendBulk(context.Background(), "Hi {name}", []string{contacts[2].ID, "unknown", contacts[0].ID})
	if err != nil {
		t.Fatalf("SendBulk: %v", err)
	}
	if res.TotalContacts != 2 || res.SentCount != 2 {
		t.Errorf("result = %+v", res)
	}
	if logs.entries[0].ContactID != contacts[0].ID || logs.entries[1].ContactID != contacts[2].ID {
		t.Errorf("entries not in stored order: %+v", logs.entries)
	}
}

func TestSendBulkNoContactsMatched(t *testing.T) {
	gw := &fakeGateway{ready: true}
	s, logs, _ := newTestSender(threeContacts(), gw)
	n := &recordingNotifier{}
	s.Notifier = n

	res, err := s.SendBulk(context.Background(), "Hi", []string{"nope"})
	if err != nil {
		t.Fatalf("SendBulk: %v", err)
	}
	if res.TotalContacts != 0 || res.SentCount != 0 || res.FailedCount != 0 {
		t.Errorf("result = %+v", res)
	}
	if res.Message != "No contacts matched the selection" {
		t.Errorf("message = %q", res.Message)
	}
	if gw.readyCalls != 0 || logs.appends != 0 {
		t.Errorf("ready calls = %d, appends = %d", gw.readyCalls, logs.appends)
	}
	if len(n.completed) != 1 {
		t.Errorf("completed events = %d", len(n.completed))
	}
}

func TestSendBulkCancel(t *testing.T) {
	gw := &fakeGateway{ready: true}
	s, logs, _ := newTestSender(threeContacts(), gw)
	s.wait = func(ctx context.Context, d time.Duration) error {
		if !s.Running() {
			t.Error("Running() = false during a batch")
		}
		s.Cancel()
		return ctx.Err()
	}

	res, err := s.SendBulk(context.Background(), "Hi {name}", nil)
	if err != nil {
		t.Fatalf("SendBulk: %v", err)
	}
	if !res.Cancelled || res.SentCount != 1 || res.TotalContacts != 3 {
		t.Errorf("result = %+v", res)
	}
	if res.Message != "Stopped after 1 of 3 contacts: 1 sent, 0 failed" {
		t.Errorf("message = %q", res.Message)
	}
	if len(logs.entries) != 1 {
		t.Errorf("persisted %d entries after cancel, want 1", len(logs.entries))
	}
	if s.Running() || s.Cancel() {
		t.Error("sender still reports a running batch")
	}
}

func TestSendBulkParentContextCancelled(t *testing.T) {
	gw := &fakeGateway{ready: true}
	s, logs, _ := newTestSender(threeContacts(), gw)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := s.SendBulk(ctx, "Hi", nil)
	if err != nil {
		t.Fatalf("SendBulk: %v", err)
	}
	if !res.Cancelled || res.SentCount != 0 || len(gw.sent) != 0 {
		t.Errorf("result = %+v, sent = %v", res, gw.sent)
	}
	if logs.appends != 1 {
		t.Errorf("appends = %d", logs.appends)
	}
}

func TestSendBulkInfrastructureErrors(t *testing.T) {
	t.Run("resolve", func(t *testing.T) {
		logs := &fakeLogs{}
		s := NewSender(&fakeContacts{err: errors.New("db down")}, logs, &fakeGateway{ready: true}, 0)
		if _, err := s.SendBulk(context.Background(), "Hi", nil); err == nil || !strings.Contains(err.Error(), "db down") {
			t.Errorf("err = %v", err)
		}
		if logs.appends != 0 {
			t.Errorf("appends = %d", logs.appends)
		}
	})

	t.Run("persist", func(t *testing.T) {
		logs := &fakeLogs{err: errors.New("disk full")}
		s := NewSender(&fakeContacts{all: threeContacts()}, logs, &fakeGateway{ready: true}, 0)
		res, err := s.SendBulk(context.Background(), "Hi", nil)
		if err == nil || !strings.Contains(err.Error(), "disk full") {
			t.Errorf("err = %v", err)
		}
		if res.SentCount != 3 {
			t.Errorf("partial result = %+v", res)
		}
	})
}

type blockingGateway struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *blockingGateway) IsReady(ctx context.Context) bool { return true }

func (g *blockingGateway) Send(ctx context.Context, phone, text string) (SendResult, error) {
	g.once.Do(func() { close(g.started) })
	select {
	case <-ctx.Done():
		return SendResult{}, ctx.Err()
	case <-g.release:
		return SendResult{Success: true}, nil
	}
}

func TestSendBulkCancelLetsInFlightSendFinish(t *testing.T) {
	gw := &blockingGateway{started: make(chan struct{}), release: make(chan struct{})}
	logs := &fakeLogs{}
	s := NewSender(&fakeContacts{all: threeContacts()}, logs, gw, 0)

	type outcome struct {
		res BulkSendResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := s.SendBulk(context.Background(), "Hi {name}", nil)
		done <- outcome{res, err}
	}()
	<-gw.started

	if !s.Cancel() {
		t.Fatal("Cancel() = false while a batch is running")
	}
	close(gw.release)

	out := <-done
	if out.err != nil {
		t.Fatalf("SendBulk: %v", out.err)
	}
	if !out.res.Cancelled || out.res.SentCount != 1 || out.res.FailedCount != 0 {
		t.Errorf("result = %+v, want cancelled with 1 sent", out.res)
	}
	if len(logs.entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(logs.entries))
	}
	if got := logs.entries[0]; got.Status != models.StatusSent || got.ErrorMessage != nil || got.SentAt == nil {
		t.Errorf("in-flight entry = %+v, want sent", got)
	}
}

func TestSendBulkOneBatchAtATime(t *testing.T) {
	gw := &blockingGateway{started: make(chan struct{}), release: make(chan struct{})}
	s := NewSender(&fakeContacts{all: threeContacts()}, &fakeLogs{}, gw, 0)

	done := make(chan error, 1)
	go func() {
		_, err := s.SendBulk(context.Background(), "Hi", nil)
		done <- err
	}()
	<-gw.started

	if _, err := s.SendBulk(context.Background(), "Hi", nil); !errors.Is(err, ErrBatchInProgress) {
		t.Errorf("second SendBulk err = %v, want ErrBatchInProgress", err)
	}

	close(gw.release)
	if err := <-done; err != nil {
		t.Fatalf("first SendBulk: %v", err)
	}
	if _, err := s.SendBulk(context.Background(), "Hi", nil); err != nil {
		t.Errorf("SendBulk after completion: %v", err)
	}
}

func TestSendBulkNotifiesProgress(t *testing.T) {
	contacts := threeContacts()
	gw := &fakeGateway{ready: true, results: map[string]SendResult{contacts[1].Phone: {Error: "not on WhatsApp"}}}
	s, _, _ := newTestSender(contacts, gw)
	n := &recordingNotifier{}
	s.Notifier = n

	res, err := s.SendBulk(context.Background(), "Hi", nil)
	if err != nil {
		t.Fatalf("SendBulk: %v", err)
	}
	if len(n.progress) != 3 {
		t.Fatalf("progress events = %d, want 3", len(n.progress))
	}
	p := n.progress[1]
	if p.Processed != 2 || p.Total != 3 || p.Status != models.StatusFailed || p.Error != "not on WhatsApp" || p.Sent != 1 || p.Failed != 1 {
		t.Errorf("progress[1] = %+v", p)
	}
	if len(n.completed) != 1 || n.completed[0] != res {
		t.Errorf("completed = %+v", n.completed)
	}
}

func TestSleepContext(t *testing.T) {
	if err := sleepContext(context.Background(), time.Millisecond); err != nil {
		t.Errorf("sleepContext: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("sleepContext(cancelled) = %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("cancelled wait did not return promptly")
	}
}
