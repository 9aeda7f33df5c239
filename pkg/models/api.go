package models

// APIResponse is the envelope for simple acknowledgements and errors
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type UploadContactsResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Count   int    `json:"count"`
}

type DeleteResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	DeletedCount int64  `json:"deleted_count"`
}

type SaveTemplateRequest struct {
	Content      string   `json:"content"`
	Placeholders []string `json:"placeholders"` // derived from content when omitted
}

type SaveTemplateResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	TemplateID string `json:"template_id"`
}

// BulkSendRequest selects a template by text or by saved id. An empty
// ContactIDs sends to every stored contact.
type BulkSendRequest struct {
	Template   string   `json:"template"`
	TemplateID string   `json:"template_id,omitempty"`
	ContactIDs []string `json:"contact_ids"`
}

type BulkSendResponse struct {
	Success       bool   `json:"success"`
	BatchID       string `json:"batch_id"`
	TotalContacts int    `json:"total_contacts"`
	SentCount     int    `json:"sent_count"`
	FailedCount   int    `json:"failed_count"`
	DemoMode      bool   `json:"demo_mode"`
	Cancelled     bool   `json:"cancelled"`
	Message       string `json:"message"`
}
