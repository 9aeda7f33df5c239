package broadcast

import "context"

// SendResult is the outcome of a single delivery attempt. A false Success
// with an Error detail is an ordinary delivery failure; the error return of
// Gateway.Send is reserved for faults in the gateway itself.
type SendResult struct {
	Success bool
	Error   string
}

// Gateway delivers one text message to one phone number.
type Gateway interface {
	IsReady(ctx context.Context) bool
	Send(ctx context.Context, phone, text string) (SendResult, error)
}

// Progress describes one processed contact within a running batch.
type Progress struct {
	BatchID   string `json:"batch_id"`
	ContactID string `json:"contact_id"`
	Phone     string `json:"phone"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Sent      int    `json:"sent"`
	Failed    int    `json:"failed"`
}

// Notifier receives batch progress. Implementations must not block.
type Notifier interface {
	NotifyProgress(p Progress)
	NotifyCompleted(r BulkSendResult)
}
