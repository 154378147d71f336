// Package e2e drives a running storefront over HTTP with godog scenarios.
// Point E2E_BASE_URL at the server; scenarios skip when it is unset.
package e2e

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// TestContext carries HTTP state across the steps of one scenario.
type TestContext struct {
	baseURL string
	client  *http.Client

	lastStatus int
	lastBody   []byte

	tokens  map[string]string
	emails  map[string]string
	current string
	vars    map[string]string

	// runID keeps emails and slugs unique across runs against one database.
	// clientIP gives each scenario its own login rate-limit bucket; the
	// server only honours it when the runner's address is in TRUSTED_PROXIES.
	runID    string
	clientIP string
}

func NewTestContext(baseURL string) *TestContext {
	tc := &TestContext{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	tc.Reset()
	return tc
}

// Reset clears per-scenario state.
func (tc *TestContext) Reset() {
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.tokens = map[string]string{}
	tc.emails = map[string]string{}
	tc.current = ""
	tc.vars = map[string]string{}

	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	tc.runID = hex.EncodeToString(buf)
	tc.clientIP = fmt.Sprintf("198.51.%d.%d", buf[0], buf[1])
}

// Do sends a request as the current actor. {name} placeholders in path are
// replaced with saved variables.
func (tc *TestContext) Do(method, path string, body any) error {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(tc.Expand(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, tc.baseURL+tc.Expand(path), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", tc.clientIP)
	if token := tc.tokens[tc.current]; token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return tc.send(req)
}

// DoWithToken sends a request with an explicit bearer token.
func (tc *TestContext) DoWithToken(method, path, token string) error {
	req, err := http.NewRequest(method, tc.baseURL+tc.Expand(path), nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Forwarded-For", tc.clientIP)
	req.Header.Set("Authorization", "Bearer "+token)
	return tc.send(req)
}

func (tc *TestContext) send(req *http.Request) error {
	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	tc.lastBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	tc.lastStatus = resp.StatusCode
	return nil
}

func (tc *TestContext) POST(path string, body any) error { return tc.Do(http.MethodPost, path, body) }
func (tc *TestContext) GET(path string) error            { return tc.Do(http.MethodGet, path, nil) }

func (tc *TestContext) GetLastResponseStatus() int  { return tc.lastStatus }
func (tc *TestContext) GetLastResponseBody() []byte { return tc.lastBody }

// ExpectStatus fails the step when the last response had another status.
func (tc *TestContext) ExpectStatus(want int) error {
	if tc.lastStatus != want {
		return fmt.Errorf("expected status %d, got %d: %s", want, tc.lastStatus, tc.lastBody)
	}
	return nil
}

// GetResponseField reads a gjson path such as "order.id" from the last body.
func (tc *TestContext) GetResponseField(path string) (string, error) {
	res := gjson.GetBytes(tc.lastBody, path)
	if !res.Exists() {
		return "", fmt.Errorf("field %q not in response: %s", path, tc.lastBody)
	}
	return res.String(), nil
}

func (tc *TestContext) SetToken(actor, token string) { tc.tokens[actor] = token }
func (tc *TestContext) HasToken(actor string) bool   { return tc.tokens[actor] != "" }

// UseActor switches who subsequent requests are sent as. "" is anonymous.
func (tc *TestContext) UseActor(actor string) error {
	if actor != "" && !tc.HasToken(actor) {
		return fmt.Errorf("actor %q has not signed in", actor)
	}
	tc.current = actor
	return nil
}

func (tc *TestContext) CurrentActor() string { return tc.current }

func (tc *TestContext) SetEmail(actor, email string) { tc.emails[actor] = email }
func (tc *TestContext) Email(actor string) string    { return tc.emails[actor] }

func (tc *TestContext) Set(key, value string) { tc.vars[key] = value }
func (tc *TestContext) Get(key string) string { return tc.vars[key] }

// Expand replaces {key} with saved variables.
func (tc *TestContext) Expand(s string) string {
	for k, v := range tc.vars {
		s = strings.ReplaceAll(s, "{"+k+"}", v)
	}
	return s
}

// Unique suffixes s with the run ID, inside the local part for emails.
func (tc *TestContext) Unique(s string) string {
	if local, domain, ok := strings.Cut(s, "@"); ok {
		return local + "+" + tc.runID + "@" + domain
	}
	return s + "-" + tc.runID
}

// AdminCredentials match ADMIN_BOOTSTRAP_EMAIL and ADMIN_BOOTSTRAP_PASSWORD
// on the server under test.
func AdminCredentials() (string, string) {
	email := os.Getenv("E2E_ADMIN_EMAIL")
	if email == "" {
		email = "admin@example.com"
	}
	password := os.Getenv("E2E_ADMIN_PASSWORD")
	if password == "" {
		password = "admin-password"
	}
	return email, password
}
