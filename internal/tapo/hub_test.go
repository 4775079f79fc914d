package tapo

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// fakeHub is an in-process hub speaking the server side of KLAP.
type fakeHub struct {
	authHash  []byte
	devices   []map[string]any
	info      map[string]any
	pageSize  int
	errorCode int

	mu         sync.Mutex
	local      []byte
	remote     []byte
	session    string
	cipher     *klapCipher
	expireNext bool
	handshakes int
	methods    []string
	terminals  map[string]bool
}

func newFakeHub(t *testing.T, username, password string) (*fakeHub, *httptest.Server) {
	t.Helper()
	h := &fakeHub{
		authHash: authHash(username, password),
		pageSize: 10,
		info: map[string]any{
			"device_id": "hub-1",
			"type":      "SMART.TAPOHUB",
			"model":     "H100",
			"nickname":  base64.StdEncoding.EncodeToString([]byte("Living room hub")),
			"fw_ver":    "1.5.5",
			"ip":        "192.168.1.50",
		},
		terminals: map[string]bool{},
	}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return h, srv
}

func sensorRecord(id, model string, temp float64, hum int) map[string]any {
	return map[string]any{
		"device_id":           id,
		"model":               model,
		"type":                "SMART.TAPOSENSOR",
		"nickname":            base64.StdEncoding.EncodeToString([]byte("Sensor " + id)),
		"current_temperature": temp,
		"current_humidity":    hum,
		"temp_unit":           "celsius",
		"status":              "online",
	}
}

func (h *fakeHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	body, _ := io.ReadAll(r.Body)
	switch r.URL.Path {
	case "/app/handshake1":
		h.local = body
		h.remote = make([]byte, seedLen)
		_, _ = rand.Read(h.remote)
		h.session = "sess-" + strconv.Itoa(h.handshakes+1)
		h.cipher = nil
		http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: h.session})
		_, _ = w.Write(append(append([]byte{}, h.remote...), sha256Sum(h.local, h.remote, h.authHash)...))

	case "/app/handshake2":
		if !h.validCookie(r) || !bytes.Equal(body, sha256Sum(h.remote, h.local, h.authHash)) {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		h.cipher = newKlapCipher(h.local, h.remote, h.authHash)
		h.handshakes++

	case "/app/request":
		if !h.validCookie(r) || h.cipher == nil {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if h.expireNext {
			h.expireNext = false
			h.cipher = nil
			w.WriteHeader(http.StatusForbidden)
			return
		}
		seq64, err := strconv.ParseInt(r.URL.Query().Get("seq"), 10, 32)
		if err != nil || !h.cipher.verify(int32(seq64), body) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		seq := int32(seq64)
		plain, err := h.cipher.open(seq, body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var req struct {
			Method       string          `json:"method"`
			Params       json.RawMessage `json:"params"`
			TerminalUUID string          `json:"terminalUUID"`
		}
		if err := json.Unmarshal(plain, &req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		h.methods = append(h.methods, req.Method)
		h.terminals[req.TerminalUUID] = true

		out, _ := json.Marshal(h.respond(req.Method, req.Params))
		sealed, _ := h.cipher.seal(seq, out)
		_, _ = w.Write(sealed)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *fakeHub) validCookie(r *http.Request) bool {
	ck, err := r.Cookie(sessionCookie)
	return err == nil && ck.Value == h.session
}

func (h *fakeHub) respond(method string, params json.RawMessage) map[string]any {
	if h.errorCode != 0 {
		return map[string]any{"error_code": h.errorCode}
	}
	switch method {
	case "get_device_info":
		return map[string]any{"error_code": 0, "result": h.info}
	case "get_child_device_list":
		var p childListParams
		_ = json.Unmarshal(params, &p)
		end := p.StartIndex + h.pageSize
		if end > len(h.devices) {
			end = len(h.devices)
		}
		page := []map[string]any{}
		if p.StartIndex < len(h.devices) {
			page = h.devices[p.StartIndex:end]
		}
		return map[string]any{"error_code": 0, "result": map[string]any{
			"child_device_list": page,
			"start_index":       p.StartIndex,
			"sum":               len(h.devices),
		}}
	default:
		return map[string]any{"error_code": -1}
	}
}

func (h *fakeHub) address(srv *httptest.Server) string {
	return strings.TrimPrefix(srv.URL, "http://")
}

func (h *fakeHub) handshakeCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.handshakes
}

func (h *fakeHub) requestCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.methods)
}

func (h *fakeHub) terminalCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.terminals)
}

func (h *fakeHub) setErrorCode(code int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errorCode = code
}

func (h *fakeHub) expireSession() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.expireNext = true
}

func (h *fakeHub) setDevices(pageSize int, devices ...map[string]any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pageSize = pageSize
	h.devices = devices
}
