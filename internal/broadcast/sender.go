package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"whatsapp-messenger/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrBatchInProgress is returned when a bulk send is requested while another
// one is still running on the same Sender.
var ErrBatchInProgress = errors.New("a bulk send is already in progress")

// ContactSource resolves the recipients of a batch in stored order.
type ContactSource interface {
	ListAll(ctx context.Context) ([]models.Contact, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Contact, error)
}

// LogSink stores the entries of a finished batch.
type LogSink interface {
	Append(ctx context.Context, entries []models.MessageLog) error
}

type BulkSendResult struct {
	BatchID       string `json:"batch_id"`
	TotalContacts int    `json:"total_contacts"`
	SentCount     int    `json:"sent_count"`
	FailedCount   int    `json:"failed_count"`
	DemoMode      bool   `json:"demo_mode"`
	Cancelled     bool   `json:"cancelled"`
	Message       string `json:"message"`
}

// Sender runs bulk sends: one contact at a time, paced by Delay, with each
// contact's failure contained to its own log entry.
type Sender struct {
	Notifier Notifier

	contacts ContactSource
	logs     LogSink
	gateway  Gateway
	delay    time.Duration

	wait func(ctx context.Context, d time.Duration) error
	now  func() time.Time

	batch    sync.Mutex // held for the duration of a batch
	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

func NewSender(contacts ContactSource, logs LogSink, gateway Gateway, delay time.Duration) *Sender {
	return &Sender{
		contacts: contacts,
		logs:     logs,
		gateway:  gateway,
		delay:    delay,
		wait:     sleepContext,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Running reports whether a batch is currently in progress.
func (s *Sender) Running() bool {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	return s.cancel != nil
}

// Cancel stops the running batch before its next contact. A send already in
// progress completes and is recorded. It returns false when no batch is
// running.
func (s *Sender) Cancel() bool {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	return true
}

func (s *Sender) setCancel(cancel context.CancelFunc) {
	s.cancelMu.Lock()
	s.cancel = cancel
	s.cancelMu.Unlock()
}

// SendBulk renders templateText for every selected contact and delivers it
// through the gateway. An empty contactIDs selects all stored contacts; ids
// that match nothing are skipped. When the gateway is not ready the batch
// runs in demo mode and nothing is sent.
//
// Errors are returned only for failures outside the per-contact loop:
// resolving contacts and persisting the log entries.
func (s *Sender) SendBulk(ctx context.Context, templateText string, contactIDs []string) (BulkSendResult, error) {
	if !s.batch.TryLock() {
		return BulkSendResult{}, ErrBatchInProgress
	}
	defer s.batch.Unlock()

	// Cancel stops the loop between contacts; the send in flight keeps ctx.
	loopCtx, cancel := context.WithCancel(ctx)
	s.setCancel(cancel)
	defer func() {
		s.setCancel(nil)
		cancel()
	}()

	contacts, err := s.resolve(ctx, contactIDs)
	if err != nil {
		return BulkSendResult{}, fmt.Errorf("resolve contacts: %w", err)
	}

	result := BulkSendResult{
		BatchID:       uuid.NewString(),
		TotalContacts: len(contacts),
	}
	if len(contacts) == 0 {
		result.Message = summarize(result, 0)
		s.notifyCompleted(result)
		return result, nil
	}

	result.DemoMode = !s.ready(ctx)
	logger := logrus.WithFields(logrus.Fields{
		"batch_id": result.BatchID,
		"total":    result.TotalContacts,
		"demo":     result.DemoMode,
	})
	logger.Info("Starting bulk send")

	entries := make([]models.MessageLog, 0, len(contacts))
	for i, contact := range contacts {
		if loopCtx.Err() != nil {
			result.Cancelled = true
			break
		}

		entry := s.processContact(ctx, templateText, contact, result.DemoMode)
		entry.BatchID = result.BatchID
		entries = append(entries, entry)

		progress := Progress{
			BatchID:   result.BatchID,
			ContactID: contact.ID,
			Phone:     contact.Phone,
			Status:    entry.Status,
			Processed: i + 1,
			Total:     len(contacts),
		}
		if entry.Status == models.StatusFailed {
			result.FailedCount++
			progress.Error = *entry.ErrorMessage
			logger.WithFields(logrus.Fields{"contact_id": contact.ID, "phone": contact.Phone}).
				Warnf("Send failed: %s", progress.Error)
		} else {
			result.SentCount++
		}
		progress.Sent, progress.Failed = result.SentCount, result.FailedCount
		s.notifyProgress(progress)

		if i < len(contacts)-1 {
			if err := s.wait(loopCtx, s.delay); err != nil {
				result.Cancelled = true
				break
			}
		}
	}

	// A cancelled batch still records what it did.
	if err := s.logs.Append(context.WithoutCancel(ctx), entries); err != nil {
		return result, fmt.Errorf("persist message logs: %w", err)
	}

	result.Message = summarize(result, len(entries))
	logger.WithFields(logrus.Fields{
		"sent":      result.SentCount,
		"failed":    result.FailedCount,
		"cancelled": result.Cancelled,
	}).Info("Bulk send finished")
	s.notifyCompleted(result)
	return result, nil
}

func (s *Sender) resolve(ctx context.Context, ids []string) ([]models.Contact, error) {
	if len(ids) == 0 {
		return s.contacts.ListAll(ctx)
	}
	return s.contacts.ListByIDs(ctx, ids)
}

func (s *Sender) ready(ctx context.Context) (ok bool) {
	if s.gateway == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("Gateway readiness probe panicked: %v", r)
			ok = false
		}
	}()
	return s.gateway.IsReady(ctx)
}

// processContact never panics. Any fault while rendering or sending becomes a
// failed entry; its message is the template when rendering did not finish.
func (s *Sender) processContact(ctx context.Context, templateText string, contact models.Contact, demo bool) (entry models.MessageLog) {
	entry = models.MessageLog{
		ContactID: contact.ID,
		Phone:     contact.Phone,
		Message:   templateText,
		Status:    models.StatusPending,
		CreatedAt: s.now(),
	}
	fail := func(detail string) {
		entry.Status = models.StatusFailed
		entry.SentAt = nil
		entry.ErrorMessage = &detail
	}
	defer func() {
		if r := recover(); r != nil {
			fail(fmt.Sprint(r))
		}
	}()

	entry.Message = Render(templateText, contact)

	if demo {
		sentAt := s.now()
		entry.Status = models.StatusDemo
		entry.SentAt = &sentAt
		return entry
	}

	res, err := s.gateway.Send(ctx, contact.Phone, entry.Message)
	switch {
	case err != nil:
		fail(err.Error())
	case !res.Success:
		detail := res.Error
		if detail == "" {
			detail = "message was not delivered"
		}
		fail(detail)
	default:
		sentAt := s.now()
		entry.Status = models.StatusSent
		entry.SentAt = &sentAt
	}
	return entry
}

func (s *Sender) notifyProgress(p Progress) {
	if s.Notifier != nil {
		s.Notifier.NotifyProgress(p)
	}
}

func (s *Sender) notifyCompleted(r BulkSendResult) {
	if s.Notifier != nil {
		s.Notifier.NotifyCompleted(r)
	}
}

func summarize(r BulkSendResult, processed int) string {
	switch {
	case r.TotalContacts == 0:
		return "No contacts matched the selection"
	case r.Cancelled:
		msg := fmt.Sprintf("Stopped after %d of %d contacts: %d sent, %d failed",
			processed, r.TotalContacts, r.SentCount, r.FailedCount)
		if r.DemoMode {
			msg += " (demo mode)"
		}
		return msg
	case r.DemoMode:
		return fmt.Sprintf("Demo mode: WhatsApp not connected, simulated %d messages", r.SentCount)
	case r.FailedCount == 0:
		return fmt.Sprintf("Sent %d messages successfully", r.SentCount)
	default:
		return fmt.Sprintf("Sent %d messages successfully, %d failed", r.SentCount, r.FailedCount)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
