package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// MockBackend simulates the mediation backend REST API for flow tests.
// Status responses are scripted as queues: each poll consumes the next
// entry, and the last entry is sticky once the queue drains.
type MockBackend struct {
	server *httptest.Server

	mu             sync.Mutex
	requests       []RecordedRequest
	qrStatuses     map[string][]string
	qrSerial       int
	refreshFails   bool
	finalizeFails  bool
	twoFAPassword  string
	accessToken    string
	phoneCodeHash  string
	needsPassword  bool
	connected      bool
	contacts       []MockContact
	hasMoreFlag    *bool
	previews       map[string][]MockMessage
	downloadSerial int64
	downloadStates map[int64][]MockDownloadState
	failStatuses   map[string]int
}

type RecordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   map[string]interface{}
}

type MockContact struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	FolderName string `json:"folder_name"`
}

type MockMessage struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
	Date string `json:"date"`
}

type MockDownloadState struct {
	Status       string `json:"status"`
	MessageCount int    `json:"message_count"`
	ErrorMessage string `json:"error_message,omitempty"`
}

func NewMockBackend() *MockBackend {
	m := &MockBackend{
		qrStatuses:     make(map[string][]string),
		previews:       make(map[string][]MockMessage),
		downloadStates: make(map[int64][]MockDownloadState),
		failStatuses:   make(map[string]int),
		twoFAPassword:  "hunter2",
		accessToken:    "test-access-token",
		phoneCodeHash:  "h1",
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

func (m *MockBackend) URL() string { return m.server.URL }
func (m *MockBackend) Close()      { m.server.Close() }

// FailPath makes the given path prefix return the given status code.
func (m *MockBackend) FailPath(prefix string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failStatuses[prefix] = status
}

func (m *MockBackend) QueueQRStatus(loginID string, statuses ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.qrStatuses[loginID] = append(m.qrStatuses[loginID], statuses...)
}

func (m *MockBackend) SetRefreshFails(v bool)      { m.mu.Lock(); m.refreshFails = v; m.mu.Unlock() }
func (m *MockBackend) SetFinalizeFails(v bool)     { m.mu.Lock(); m.finalizeFails = v; m.mu.Unlock() }
func (m *MockBackend) SetNeedsPassword(v bool)     { m.mu.Lock(); m.needsPassword = v; m.mu.Unlock() }
func (m *MockBackend) SetConnected(v bool)         { m.mu.Lock(); m.connected = v; m.mu.Unlock() }
func (m *MockBackend) SetAccessToken(token string) { m.mu.Lock(); m.accessToken = token; m.mu.Unlock() }

func (m *MockBackend) SetContacts(contacts []MockContact, hasMore *bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contacts = contacts
	m.hasMoreFlag = hasMore
}

func (m *MockBackend) SetPreview(chatID string, msgs []MockMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.previews[chatID] = msgs
}

func (m *MockBackend) QueueDownloadState(downloadID int64, states ...MockDownloadState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloadStates[downloadID] = append(m.downloadStates[downloadID], states...)
}

// Requests returns a copy of every recorded request.
func (m *MockBackend) Requests() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// CountRequests counts recorded requests whose path has the prefix.
func (m *MockBackend) CountRequests(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.requests {
		if strings.HasPrefix(r.Path, prefix) {
			n++
		}
	}
	return n
}

func (m *MockBackend) handle(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&body)
	}

	m.mu.Lock()
	m.requests = append(m.requests, RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Body:   body,
	})
	for prefix, status := range m.failStatuses {
		if strings.HasPrefix(r.URL.Path, prefix) {
			m.mu.Unlock()
			w.WriteHeader(status)
			w.Write([]byte("forced failure"))
			return
		}
	}
	m.mu.Unlock()

	path := r.URL.Path
	switch {
	case path == "/auth/telegram-qr/initiate":
		m.mu.Lock()
		m.qrSerial++
		loginID := "qr-login-" + strconv.Itoa(m.qrSerial)
		m.mu.Unlock()
		writeJSON(w, map[string]interface{}{
			"login_id": loginID,
			"qr_code":  "data:image/png;base64,AAAA",
		})

	case strings.HasPrefix(path, "/auth/telegram-qr/refresh/"):
		m.mu.Lock()
		fails := m.refreshFails
		m.mu.Unlock()
		if fails {
			http.Error(w, "refresh unavailable", http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]interface{}{
			"login_id": strings.TrimPrefix(path, "/auth/telegram-qr/refresh/"),
			"qr_code":  "data:image/png;base64,BBBB",
		})

	case strings.HasPrefix(path, "/auth/telegram-qr/status/"):
		loginID := strings.TrimPrefix(path, "/auth/telegram-qr/status/")
		writeJSON(w, map[string]interface{}{"status": m.nextQRStatus(loginID)})

	case strings.HasPrefix(path, "/auth/telegram-qr/2fa/"):
		password, _ := body["password"].(string)
		m.mu.Lock()
		expected := m.twoFAPassword
		m.mu.Unlock()
		if password != expected {
			http.Error(w, "invalid password", http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]interface{}{"success": true})

	case path == "/auth/telegram-qr":
		m.mu.Lock()
		fails := m.finalizeFails
		token := m.accessToken
		m.mu.Unlock()
		if fails {
			http.Error(w, "could not complete login", http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]interface{}{"access_token": token})

	case path == "/auth/login" || path == "/auth/register" ||
		path == "/auth/google" || path == "/auth/facebook" ||
		path == "/auth/twitter" || path == "/auth/telegram":
		m.mu.Lock()
		token := m.accessToken
		m.mu.Unlock()
		writeJSON(w, map[string]interface{}{"access_token": token})

	case path == "/auth/me":
		if r.Header.Get("Authorization") == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		writeJSON(w, map[string]interface{}{"id": "user-1", "email": "user@example.com"})

	case path == "/telegram/connect":
		m.mu.Lock()
		hash := m.phoneCodeHash
		m.mu.Unlock()
		writeJSON(w, map[string]interface{}{"phone_code_hash": hash, "sent": true})

	case path == "/telegram/verify":
		password, _ := body["password"].(string)
		m.mu.Lock()
		needs := m.needsPassword
		m.mu.Unlock()
		if needs && password == "" {
			writeJSON(w, map[string]interface{}{"success": false, "needs_password": true})
			return
		}
		m.mu.Lock()
		m.connected = true
		token := m.accessToken
		m.mu.Unlock()
		writeJSON(w, map[string]interface{}{"success": true, "access_token": token})

	case path == "/telegram/status":
		m.mu.Lock()
		connected := m.connected
		m.mu.Unlock()
		writeJSON(w, map[string]interface{}{"connected": connected})

	case path == "/telegram/contacts":
		m.handleContacts(w, r)

	case strings.HasPrefix(path, "/telegram/messages/preview/"):
		chatID := strings.TrimPrefix(path, "/telegram/messages/preview/")
		m.mu.Lock()
		msgs := m.previews[chatID]
		m.mu.Unlock()
		writeJSON(w, map[string]interface{}{"messages": msgs})

	case path == "/telegram/download" && r.Method == http.MethodPost:
		m.mu.Lock()
		m.downloadSerial++
		id := m.downloadSerial
		m.mu.Unlock()
		writeJSON(w, map[string]interface{}{"download_id": id})

	case strings.HasPrefix(path, "/telegram/download/"):
		idStr := strings.TrimPrefix(path, "/telegram/download/")
		id, _ := strconv.ParseInt(idStr, 10, 64)
		writeJSON(w, m.nextDownloadState(id))

	case path == "/telegram/downloads":
		writeJSON(w, map[string]interface{}{"downloads": []interface{}{}})

	case path == "/telegram/disconnect":
		m.mu.Lock()
		m.connected = false
		m.mu.Unlock()
		writeJSON(w, map[string]interface{}{"success": true})

	case path == "/subscriptions/create-checkout":
		writeJSON(w, map[string]interface{}{"client_secret": "cs_test_secret"})

	case path == "/subscriptions/create-portal":
		writeJSON(w, map[string]interface{}{"url": "https://billing.example.com/portal"})

	case path == "/subscriptions/status":
		writeJSON(w, map[string]interface{}{"active": true, "plan": "pro"})

	case path == "/rooms/" && r.Method == http.MethodGet:
		writeJSON(w, map[string]interface{}{"rooms": []interface{}{
			map[string]interface{}{"id": "room-1", "name": "Mediation", "status": "active"},
		}})

	case path == "/rooms/" && r.Method == http.MethodPost:
		name, _ := body["name"].(string)
		writeJSON(w, map[string]interface{}{
			"id": "room-1", "name": name, "status": "active", "invite_code": "inv-1",
		})

	case strings.HasPrefix(path, "/rooms/") && strings.HasSuffix(path, "/join"):
		writeJSON(w, map[string]interface{}{
			"id": strings.TrimSuffix(strings.TrimPrefix(path, "/rooms/"), "/join"), "status": "active",
		})

	case strings.HasPrefix(path, "/rooms/") && strings.HasSuffix(path, "/signal"):
		writeJSON(w, map[string]interface{}{"success": true})

	case path == "/gamification/streak":
		writeJSON(w, map[string]interface{}{"current_streak": 3, "longest_streak": 7})

	case path == "/gamification/challenges":
		writeJSON(w, map[string]interface{}{"challenges": []interface{}{
			map[string]interface{}{"id": "ch-1", "title": "Three calm days", "progress": 1, "target": 3},
		}})

	case path == "/gamification/achievements":
		writeJSON(w, map[string]interface{}{"achievements": []interface{}{
			map[string]interface{}{"id": "ach-1", "title": "First resolution", "unlocked": true},
		}})

	default:
		http.NotFound(w, r)
	}
}

func (m *MockBackend) handleContacts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	folder := r.URL.Query().Get("folder_id")

	m.mu.Lock()
	contacts := make([]MockContact, 0)
	for _, c := range m.contacts {
		if folder != "" && c.FolderName != folder {
			continue
		}
		contacts = append(contacts, c)
	}
	hasMoreFlag := m.hasMoreFlag
	m.mu.Unlock()

	if limit > 0 && len(contacts) > limit {
		contacts = contacts[:limit]
	}

	resp := map[string]interface{}{"contacts": contacts}
	if hasMoreFlag != nil {
		resp["has_more"] = *hasMoreFlag
	}
	writeJSON(w, resp)
}

func (m *MockBackend) nextQRStatus(loginID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	queue := m.qrStatuses[loginID]
	if len(queue) == 0 {
		return "pending"
	}
	status := queue[0]
	if len(queue) > 1 {
		m.qrStatuses[loginID] = queue[1:]
	}
	return status
}

func (m *MockBackend) nextDownloadState(id int64) MockDownloadState {
	m.mu.Lock()
	defer m.mu.Unlock()

	queue := m.downloadStates[id]
	if len(queue) == 0 {
		return MockDownloadState{Status: "pending"}
	}
	state := queue[0]
	if len(queue) > 1 {
		m.downloadStates[id] = queue[1:]
	}
	return state
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
