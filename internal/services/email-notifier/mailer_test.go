package notifier

import (
	"bufio"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func zapNop() *zap.Logger { return zap.NewNop() }

// smtpSink is a minimal SMTP server that accepts one message per connection.
type smtpSink struct {
	ln   net.Listener
	mu   sync.Mutex
	data []string
	rcpt []string
}

func newSMTPSink(t *testing.T) *smtpSink {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &smtpSink{ln: ln}
	t.Cleanup(func() { _ = ln.Close() })
	go s.serve()
	return s
}

func (s *smtpSink) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.session(conn)
	}
}

func (s *smtpSink) session(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	reply := func(line string) { _, _ = conn.Write([]byte(line + "\r\n")) }

	reply("220 sink ready")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.ToUpper(strings.TrimSpace(line))
		switch {
		case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
			reply("250 sink")
		case strings.HasPrefix(cmd, "MAIL FROM"):
			reply("250 ok")
		case strings.HasPrefix(cmd, "RCPT TO"):
			s.mu.Lock()
			s.rcpt = append(s.rcpt, strings.TrimSpace(line[len("RCPT TO:"):]))
			s.mu.Unlock()
			reply("250 ok")
		case cmd == "DATA":
			reply("354 go ahead")
			var b strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				b.WriteString(l)
			}
			s.mu.Lock()
			s.data = append(s.data, b.String())
			s.mu.Unlock()
			reply("250 queued")
		case cmd == "QUIT":
			reply("221 bye")
			return
		default:
			reply("250 ok")
		}
	}
}

func (s *smtpSink) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.data...)
}

func TestMailer_Send(t *testing.T) {
	sink := newSMTPSink(t)
	m := NewMailer(SMTPConfig{
		Addr:       sink.ln.Addr().String(),
		From:       "noreply@gatekeep.dev",
		Timeout:    2 * time.Second,
		SubjPrefix: "[Gatekeep]",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Send(ctx, "a@x.com", "Password reset", "line one\nline two"))

	msgs := sink.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "To: a@x.com\r\n")
	assert.Contains(t, msgs[0], "Subject: [Gatekeep] Password reset\r\n")
	assert.Contains(t, msgs[0], "line one\r\nline two")
	assert.Equal(t, []string{"<a@x.com>"}, sink.rcpt)
}

func TestMailer_RejectsHeaderInjection(t *testing.T) {
	m := NewMailer(SMTPConfig{Addr: "127.0.0.1:1", From: "noreply@gatekeep.dev"})

	err := m.Send(context.Background(), "a@x.com\r\nBcc: victim@x.com", "s", "b")
	assert.ErrorIs(t, err, ErrHeaderInjection)
}

func TestMailer_DialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	m := NewMailer(SMTPConfig{Addr: addr, From: "noreply@gatekeep.dev", Timeout: time.Second})
	assert.Error(t, m.Send(context.Background(), "a@x.com", "s", "b"))
}

func TestHost(t *testing.T) {
	assert.Equal(t, "smtp.example.com", host("smtp.example.com:587"))
	assert.Equal(t, "smtp.example.com", host("smtp.example.com"))
}
