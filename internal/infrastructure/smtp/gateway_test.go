package smtp

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AVISH911/donorhub-blood-donation/internal/config"
	"github.com/AVISH911/donorhub-blood-donation/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer speaks just enough SMTP for net/smtp's client.
type fakeServer struct {
	ln       net.Listener
	authCode string // reply to AUTH; empty disables AUTH
	hang     bool

	mu   sync.Mutex
	data string
	rcpt string
}

func startServer(t *testing.T, authCode string, hang bool) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &fakeServer{ln: ln, authCode: authCode, hang: hang}
	t.Cleanup(func() { _ = ln.Close() })
	go s.serve()
	return s
}

func (s *fakeServer) port() string {
	_, p, _ := net.SplitHostPort(s.ln.Addr().String())
	return p
}

func (s *fakeServer) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *fakeServer) handle(conn net.Conn) {
	defer conn.Close()
	if s.hang {
		time.Sleep(2 * time.Second)
		return
	}
	r := bufio.NewReader(conn)
	w := func(line string) { _, _ = conn.Write([]byte(line + "\r\n")) }
	w("220 fake ESMTP")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.ToUpper(strings.TrimSpace(line))
		switch {
		case strings.HasPrefix(cmd, "EHLO"):
			if s.authCode != "" {
				w("250-fake")
				w("250 AUTH PLAIN")
			} else {
				w("250 fake")
			}
		case strings.HasPrefix(cmd, "AUTH"):
			w(s.authCode)
		case strings.HasPrefix(cmd, "MAIL FROM"):
			w("250 ok")
		case strings.HasPrefix(cmd, "RCPT TO"):
			s.mu.Lock()
			s.rcpt = strings.TrimSpace(line)
			s.mu.Unlock()
			w("250 ok")
		case cmd == "DATA":
			w("354 go ahead")
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
			s.data = b.String()
			s.mu.Unlock()
			w("250 queued")
		case cmd == "QUIT":
			w("221 bye")
			return
		default:
			w("250 ok")
		}
	}
}

func gatewayFor(port, user, pass string) *Gateway {
	return NewGateway(&config.Config{
		AppName:      "DonorHub",
		SMTPHost:     "127.0.0.1",
		SMTPPort:     port,
		SMTPFrom:     "noreply@donorhub.test",
		SMTPUsername: user,
		SMTPPassword: pass,
	})
}

func kindOf(t *testing.T, err error) domain.DeliveryKind {
	t.Helper()
	var de *domain.DeliveryError
	require.ErrorAs(t, err, &de)
	return de.Kind
}

func TestSend_DeliversMultipartMessage(t *testing.T) {
	srv := startServer(t, "", false)
	g := gatewayFor(srv.port(), "", "")

	err := g.Send(context.Background(), "user@example.com", "042137", 10*time.Minute)
	require.NoError(t, err)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Contains(t, srv.rcpt, "user@example.com")
	assert.Contains(t, srv.data, "Subject: Your DonorHub Verification Code")
	assert.Contains(t, srv.data, "multipart/alternative")
	assert.Contains(t, srv.data, "registration is: 042137")
	assert.Contains(t, srv.data, "expire in 10 minutes")
	assert.Contains(t, srv.data, "text/html")
}

func TestSend_AuthRejected(t *testing.T) {
	srv := startServer(t, "535 5.7.8 bad credentials", false)
	g := gatewayFor(srv.port(), "user", "wrong")

	err := g.Send(context.Background(), "user@example.com", "123456", 10*time.Minute)
	assert.Equal(t, domain.DeliveryAuthFailed, kindOf(t, err))
}

func TestSend_AuthAccepted(t *testing.T) {
	srv := startServer(t, "235 ok", false)
	g := gatewayFor(srv.port(), "user", "secret")

	require.NoError(t, g.Send(context.Background(), "user@example.com", "123456", 10*time.Minute))
}

func TestSend_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, port, _ := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, ln.Close())

	err = gatewayFor(port, "", "").Send(context.Background(), "user@example.com", "123456", 10*time.Minute)
	assert.Equal(t, domain.DeliveryConnectionFailed, kindOf(t, err))
}

func TestSend_DeadlineIsTimeout(t *testing.T) {
	srv := startServer(t, "", true)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := gatewayFor(srv.port(), "", "").Send(ctx, "user@example.com", "123456", 10*time.Minute)
	assert.Equal(t, domain.DeliveryTimeout, kindOf(t, err))
}

func TestSend_InputAndConfigChecks(t *testing.T) {
	g := gatewayFor("2525", "", "")
	ctx := context.Background()

	assert.Equal(t, domain.DeliveryInvalidEmail, kindOf(t, g.Send(ctx, "not-an-email", "123456", time.Minute)))
	assert.Equal(t, domain.DeliveryInvalidCode, kindOf(t, g.Send(ctx, "a@b.com", "12345", time.Minute)))

	half := gatewayFor("2525", "user", "")
	assert.Equal(t, domain.DeliveryNotConfigured, kindOf(t, half.Send(ctx, "a@b.com", "123456", time.Minute)))

	noHost := NewGateway(&config.Config{SMTPPort: "25", SMTPFrom: "x@y.z"})
	assert.False(t, noHost.Configured())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.DeliveryKind
	}{
		{"auth 535", &textproto.Error{Code: 535, Msg: "bad creds"}, domain.DeliveryAuthFailed},
		{"auth 530", &textproto.Error{Code: 530, Msg: "auth required"}, domain.DeliveryAuthFailed},
		{"service closing", &textproto.Error{Code: 421, Msg: "closing"}, domain.DeliveryConnectionFailed},
		{"mailbox", &textproto.Error{Code: 550, Msg: "no such user"}, domain.DeliverySendFailed},
		{"deadline", context.DeadlineExceeded, domain.DeliveryTimeout},
		{"dns", &net.DNSError{Err: "no such host", Name: "smtp.invalid"}, domain.DeliveryConnectionFailed},
		{"other", errors.New("boom"), domain.DeliverySendFailed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, classify(tc.err).Kind)
		})
	}
}
