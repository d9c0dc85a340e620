package importer

import "errors"

// Download status strings reported by the backend.
const (
	DownloadPending    = "pending"
	DownloadProcessing = "processing"
	DownloadCompleted  = "completed"
	DownloadFailed     = "failed"
)

var (
	ErrNotConnected     = errors.New("telegram account not connected")
	ErrNoChatsSelected  = errors.New("no chats selected for download")
	ErrDownloadActive   = errors.New("a download is already in progress")
	ErrDownloadNotFound = errors.New("download not found")
)

// DateRange optionally bounds a history download. Dates are
// YYYY-MM-DD; an empty field leaves that side unbounded.
type DateRange struct {
	From string `json:"date_from,omitempty"`
	To   string `json:"date_to,omitempty"`
}

func (d DateRange) IsZero() bool { return d.From == "" && d.To == "" }

// Contact is one importable chat.
type Contact struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	FolderName string `json:"folder_name,omitempty"`
}

// ContactPage is one page of the contact picker. HasMore drives the
// "load more" affordance.
type ContactPage struct {
	Contacts []Contact `json:"contacts"`
	Offset   int       `json:"offset"`
	HasMore  bool      `json:"has_more"`
}

// Message is one preview message.
type Message struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
	Date string `json:"date"`
}

// Download is one history-download job.
type Download struct {
	ID           int64   `json:"download_id"`
	ChatIDs      []int64 `json:"chat_ids,omitempty"`
	Status       string  `json:"status"`
	MessageCount int     `json:"message_count"`
	ErrorMessage string  `json:"error_message,omitempty"`
}

// Wire payloads.

type connectionStatusResponse struct {
	Connected bool `json:"connected"`
}

type contactsResponse struct {
	Contacts []Contact `json:"contacts"`
	HasMore  *bool     `json:"has_more,omitempty"`
}

type previewResponse struct {
	Messages []Message `json:"messages"`
}

type downloadCreateRequest struct {
	ChatIDs  []int64 `json:"chat_ids"`
	DateFrom string  `json:"date_from,omitempty"`
	DateTo   string  `json:"date_to,omitempty"`
}

type downloadCreateResponse struct {
	DownloadID int64 `json:"download_id"`
}

type downloadStateResponse struct {
	Status       string `json:"status"`
	MessageCount int    `json:"message_count"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type downloadsResponse struct {
	Downloads []Download `json:"downloads"`
}
