// Package tapo talks to a Tapo H100 hub over its local KLAP protocol:
// a two-step seed handshake that yields a session cookie and AES keys,
// followed by encrypted JSON requests.
package tapo

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	sessionCookie = "TP_SESSIONID"
	maxBodyBytes  = 1 << 20
)

var (
	// ErrInvalidCredentials means the hub's handshake proof did not match
	// the username/password we hold.
	ErrInvalidCredentials = errors.New("hub rejected credentials")
	// ErrSessionExpired means the hub no longer accepts our session; the
	// next request performs a new handshake.
	ErrSessionExpired = errors.New("hub session expired")
)

// Options configure Connect.
type Options struct {
	// Address is the hub host, optionally with port or scheme.
	Address  string
	Username string
	Password string

	HTTPClient *http.Client
	Logger     *zap.SugaredLogger
}

// Client is an authenticated hub session and implements Session.
// A transport failure or rejected session marks it stale; the next
// request handshakes again before sending.
type Client struct {
	baseURL      string
	authHash     []byte
	terminalUUID string
	http         *http.Client
	log          *zap.SugaredLogger

	cipher *klapCipher
	cookie string
	stale  bool
}

// Connect performs the KLAP handshake and returns a ready Client.
func Connect(ctx context.Context, opts Options) (*Client, error) {
	if opts.Address == "" {
		return nil, errors.New("hub address is required")
	}
	c := &Client{
		baseURL:      baseURL(opts.Address),
		authHash:     authHash(opts.Username, opts.Password),
		terminalUUID: uuid.NewString(),
		http:         opts.HTTPClient,
		log:          opts.Logger,
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.log == nil {
		c.log = zap.NewNop().Sugar()
	}
	if err := c.handshake(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func baseURL(address string) string {
	address = strings.TrimRight(address, "/")
	if strings.Contains(address, "://") {
		return address
	}
	return "http://" + address
}

func (c *Client) handshake(ctx context.Context) error {
	c.cookie = ""
	c.cipher = nil

	local := make([]byte, seedLen)
	if _, err := rand.Read(local); err != nil {
		return fmt.Errorf("generating local seed: %w", err)
	}

	resp, body, err := c.post(ctx, "/app/handshake1", local)
	if err != nil {
		return fmt.Errorf("handshake1 with %s: %w", c.baseURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("handshake1 with %s: unexpected status %s", c.baseURL, resp.Status)
	}
	if len(body) != seedLen+signatureLen {
		return fmt.Errorf("handshake1 with %s: unexpected response length %d", c.baseURL, len(body))
	}
	for _, ck := range resp.Cookies() {
		if ck.Name == sessionCookie {
			c.cookie = ck.Value
		}
	}

	remote := body[:seedLen]
	serverHash := body[seedLen:]
	if !hmac.Equal(serverHash, sha256Sum(local, remote, c.authHash)) {
		return ErrInvalidCredentials
	}

	resp, _, err = c.post(ctx, "/app/handshake2", sha256Sum(remote, local, c.authHash))
	if err != nil {
		return fmt.Errorf("handshake2 with %s: %w", c.baseURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("handshake2 with %s: unexpected status %s", c.baseURL, resp.Status)
	}

	c.cipher = newKlapCipher(local, remote, c.authHash)
	c.stale = false
	c.log.Debugf("KLAP handshake with %s complete", c.baseURL)
	return nil
}

// call sends one encrypted request and decodes its result into out (which
// may be nil).
func (c *Client) call(ctx context.Context, method string, params, out any) error {
	if c.stale || c.cipher == nil {
		c.log.Debugf("session stale, handshaking again")
		if err := c.handshake(ctx); err != nil {
			return err
		}
	}

	plain, err := json.Marshal(request{
		Method:          method,
		Params:          params,
		RequestTimeMils: time.Now().UnixMilli(),
		TerminalUUID:    c.terminalUUID,
	})
	if err != nil {
		return fmt.Errorf("%s: encoding request: %w", method, err)
	}
	payload, seq, err := c.cipher.encrypt(plain)
	if err != nil {
		return fmt.Errorf("%s: encrypting request: %w", method, err)
	}

	resp, body, err := c.post(ctx, fmt.Sprintf("/app/request?seq=%d", seq), payload)
	if err != nil {
		c.stale = true
		return fmt.Errorf("%s: %w", method, err)
	}
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		c.stale = true
		return fmt.Errorf("%s: %w", method, ErrSessionExpired)
	default:
		return fmt.Errorf("%s: unexpected status %s", method, resp.Status)
	}

	decrypted, err := c.cipher.open(seq, body)
	if err != nil {
		c.stale = true
		return fmt.Errorf("%s: decrypting response: %w", method, err)
	}

	var env response
	if err := json.Unmarshal(decrypted, &env); err != nil {
		return fmt.Errorf("%s: decoding response: %w", method, err)
	}
	if env.ErrorCode != 0 {
		if env.ErrorCode == codeSessionTimeout {
			c.stale = true
		}
		return &APIError{Method: method, Code: env.ErrorCode}
	}
	if out == nil || len(env.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("%s: decoding result: %w", method, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body []byte) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if c.cookie != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: c.cookie})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("reading response: %w", err)
	}
	return resp, data, nil
}

// ChildDevices returns every device paired to the hub, following the
// hub's paging until the advertised total has been collected.
func (c *Client) ChildDevices(ctx context.Context) ([]ChildDevice, error) {
	var all []ChildDevice
	for {
		var page childListResult
		if err := c.call(ctx, "get_child_device_list", childListParams{StartIndex: len(all)}, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Devices...)
		if len(page.Devices) == 0 || len(all) >= page.Sum {
			return all, nil
		}
	}
}

// DeviceInfo describes the hub itself.
func (c *Client) DeviceInfo(ctx context.Context) (DeviceInfo, error) {
	var info DeviceInfo
	if err := c.call(ctx, "get_device_info", nil, &info); err != nil {
		return DeviceInfo{}, err
	}
	return info, nil
}

// Close drops the session keys and idle connections.
func (c *Client) Close() error {
	c.cipher = nil
	c.cookie = ""
	c.http.CloseIdleConnections()
	return nil
}
