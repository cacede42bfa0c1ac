//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type cfg struct {
	APIBase     string // http://localhost:8080
	MailhogBase string // http://localhost:8025
	WaitEmail   time.Duration
}

func loadCfg() cfg {
	return cfg{
		APIBase:     getenv("E2E_API_BASE", "http://localhost:8080"),
		MailhogBase: getenv("E2E_MAILHOG_BASE", "http://localhost:8025"),
		WaitEmail:   mustParseDur(getenv("E2E_WAIT_EMAIL", "30s")),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustParseDur(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		panic(err)
	}
	return d
}

type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type identity struct {
	ID       string `json:"id"`
	LoginKey string `json:"login_key"`
}

type subject struct {
	SubjectID string `json:"subject_id"`
	LoginKey  string `json:"login_key"`
}

// Mailhog API v2, only the fields we read.
type mailhogMessages struct {
	Total    int          `json:"total"`
	Messages []mailhogMsg `json:"items"`
}

type mailhogMsg struct {
	To      []mailhogPerson `json:"To"`
	Content struct {
		Headers map[string][]string `json:"Headers"`
		Body    string              `json:"Body"`
	} `json:"Content"`
}

type mailhogPerson struct {
	Mailbox string `json:"Mailbox"`
	Domain  string `json:"Domain"`
}

func (p mailhogPerson) Email() string {
	if p.Domain == "" {
		return p.Mailbox
	}
	return p.Mailbox + "@" + p.Domain
}

var tokenInLink = regexp.MustCompile(`token=([A-Za-z0-9_-]+)`)

func post(t *testing.T, url string, in any, want int, out any) {
	t.Helper()
	b, err := json.Marshal(in)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	require.Equalf(t, want, resp.StatusCode, "POST %s: %s", url, body)
	if out != nil {
		require.NoErrorf(t, json.Unmarshal(body, out), "body=%s", body)
	}
}

func getJSON(t *testing.T, url string, into any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	all, _ := io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(all, into))
}

func waitHealthy(t *testing.T, url string, timeout time.Duration) {
	t.Helper()
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, timeout, time.Second, "auth-service not healthy")
}

func Test_RegisterLoginRefreshVerify(t *testing.T) {
	c := loadCfg()
	waitHealthy(t, c.APIBase+"/healthz", time.Minute)

	email := fmt.Sprintf("e2e_%d@gatekeep.dev", time.Now().UnixNano())
	pass := "P@ssw0rd-e2e"

	var id identity
	post(t, c.APIBase+"/api/v1/register", map[string]string{"login_key": email, "password": pass}, http.StatusOK, &id)
	require.NotEmpty(t, id.ID)

	var pair tokenPair
	post(t, c.APIBase+"/api/v1/login", map[string]string{"login_key": email, "password": pass}, http.StatusOK, &pair)
	require.Equal(t, "bearer", pair.TokenType)

	var sub subject
	post(t, c.APIBase+"/api/v1/token/verify", map[string]string{"token": pair.AccessToken}, http.StatusOK, &sub)
	require.Equal(t, id.ID, sub.SubjectID)

	var next tokenPair
	post(t, c.APIBase+"/api/v1/refresh", map[string]string{"refresh_token": pair.RefreshToken}, http.StatusOK, &next)
	post(t, c.APIBase+"/api/v1/refresh", map[string]string{"refresh_token": pair.RefreshToken}, http.StatusUnauthorized, nil)
}

func Test_PasswordReset_LeadsToEmail(t *testing.T) {
	c := loadCfg()
	waitHealthy(t, c.APIBase+"/healthz", time.Minute)

	email := fmt.Sprintf("e2e_reset_%d@gatekeep.dev", time.Now().UnixNano())
	post(t, c.APIBase+"/api/v1/register", map[string]string{"login_key": email, "password": "old-password-1"}, http.StatusOK, nil)
	post(t, c.APIBase+"/api/v1/password/reset", map[string]string{"login_key": email}, http.StatusOK, nil)

	var token string
	require.Eventually(t, func() bool {
		for _, m := range fetchMailhog(t, c, email) {
			if !strings.Contains(headerFirst(m.Content.Headers, "Subject"), "Password reset") {
				continue
			}
			if mm := tokenInLink.FindStringSubmatch(m.Content.Body); mm != nil {
				token = mm[1]
				return true
			}
		}
		return false
	}, c.WaitEmail, time.Second, "reset email didn't arrive in time")

	post(t, c.APIBase+"/api/v1/password/reset/confirm",
		map[string]string{"token": token, "new_password": "new-password-1"}, http.StatusOK, nil)
	post(t, c.APIBase+"/api/v1/login",
		map[string]string{"login_key": email, "password": "old-password-1"}, http.StatusUnauthorized, nil)
	post(t, c.APIBase+"/api/v1/login",
		map[string]string{"login_key": email, "password": "new-password-1"}, http.StatusOK, nil)
}

func fetchMailhog(t *testing.T, c cfg, toEmail string) []mailhogMsg {
	t.Helper()
	var out mailhogMessages
	getJSON(t, c.MailhogBase+"/api/v2/messages", &out)
	var res []mailhogMsg
	for _, m := range out.Messages {
		for _, rcpt := range m.To {
			if strings.EqualFold(rcpt.Email(), toEmail) {
				res = append(res, m)
				break
			}
		}
	}
	return res
}

func headerFirst(h map[string][]string, key string) string {
	for k, v := range h {
		if strings.EqualFold(k, key) && len(v) > 0 {
			return v[0]
		}
	}
	return ""
}
