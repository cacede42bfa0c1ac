//go:build integration

package integration

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	credauth "github.com/NordCoder/Gatekeep/internal/auth"
)

func register(t *testing.T, cfg Cfg, loginKey, password string) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"login_key": loginKey, "password": password})
	HTTPPostJSON(t, cfg.AuthBaseURL+"/api/v1/register", body, 200)
}

func TestAuthService_StoresOnlyTokenDigests(t *testing.T) {
	cfg := LoadCfg()
	WaitHealthz(t, cfg.AuthBaseURL+"/healthz", 60*time.Second)
	db := DBOpen(t, cfg.DBDSN)
	defer db.Close()

	email := fmt.Sprintf("it-%d@example.com", time.Now().UnixNano())
	register(t, cfg, email, "it-password-1")

	body, _ := json.Marshal(map[string]string{"login_key": email, "password": "it-password-1"})
	var pair struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(HTTPPostJSON(t, cfg.AuthBaseURL+"/api/v1/login", body, 200), &pair); err != nil {
		t.Fatalf("decode login: %v", err)
	}

	q := `select count(*) from refresh_tokens where token_hash = $1`
	if n := CountRows(t, db, q, pair.RefreshToken); n != 0 {
		t.Fatalf("raw refresh token stored")
	}
	if n := CountRows(t, db, q, credauth.HashToken(pair.RefreshToken)); n != 1 {
		t.Fatalf("refresh digest rows = %d, want 1", n)
	}
	if n := CountRows(t, db, `select count(*) from identities where login_key = $1 and password_hash like '$2%'`, email); n != 1 {
		t.Fatalf("identity not stored with a bcrypt hash")
	}
}

// Needs auth-service running with notify.mode kafka or outbox.
func TestAuthService_ResetPublishesEvent(t *testing.T) {
	cfg := LoadCfg()
	WaitTCP(t, "kafka", cfg.KafkaBootstrap, 60*time.Second)
	WaitHealthz(t, cfg.AuthBaseURL+"/healthz", 60*time.Second)
	db := DBOpen(t, cfg.DBDSN)
	defer db.Close()

	email := fmt.Sprintf("it-reset-%d@example.com", time.Now().UnixNano())
	register(t, cfg, email, "it-password-1")

	body, _ := json.Marshal(map[string]string{"login_key": email})
	HTTPPostJSON(t, cfg.AuthBaseURL+"/api/v1/password/reset", body, 200)

	ev, ok := ReadResetEvent(t, cfg.KafkaBootstrap, cfg.ResetTopic, "it-"+email, email, 30*time.Second)
	if !ok {
		t.Fatalf("no reset event for %s", email)
	}
	if ev.Token == "" || ev.RequestedAt.IsZero() {
		t.Fatalf("incomplete event: %+v", ev)
	}

	body, _ = json.Marshal(map[string]string{"token": ev.Token, "new_password": "it-password-2"})
	HTTPPostJSON(t, cfg.AuthBaseURL+"/api/v1/password/reset/confirm", body, 200)
	HTTPPostJSON(t, cfg.AuthBaseURL+"/api/v1/password/reset/confirm", body, 400)

	q := `select count(*) from password_reset_tokens where token_hash = $1 and used`
	if n := CountRows(t, db, q, credauth.HashToken(ev.Token)); n != 1 {
		t.Fatalf("reset token not marked used")
	}
}
