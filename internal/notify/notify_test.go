package notify

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/securebank/backoffice/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskAddress(t *testing.T) {
	assert.Equal(t, "ali***@bank.test", MaskAddress("alice@bank.test"))
	assert.Equal(t, "bo***@bank.test", MaskAddress("bo@bank.test"))
	assert.Equal(t, "***@bank.test", MaskAddress("@bank.test"))
	assert.Equal(t, "***", MaskAddress("not-an-address"))
	assert.Equal(t, "***", MaskAddress("alice@"))
}

func TestComposeBody(t *testing.T) {
	body := composeBody("alice", "123456", 5*time.Minute)
	assert.Contains(t, body, "Bonjour alice")
	assert.Contains(t, body, "123456")
	assert.Contains(t, body, "5 minutes")
}

type fakePublisher struct {
	channel string
	data    []byte
	attrs   map[string]string
	err     error
}

func (p *fakePublisher) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	p.channel = channel
	p.data = data
	p.attrs = attrs
	return "msg-1", p.err
}

func TestQueueDeliverer(t *testing.T) {
	pub := &fakePublisher{}
	d := NewQueueDeliverer(pub, "otp-delivery")

	require.NoError(t, d.Deliver(context.Background(), "alice@bank.test", "123456", "alice"))
	assert.Equal(t, "otp-delivery", pub.channel)
	assert.Equal(t, "otp.code", pub.attrs["type"])

	msg, err := DecodeCodeMessage(pub.data)
	require.NoError(t, err)
	assert.Equal(t, CodeMessage{Address: "alice@bank.test", Username: "alice", Code: "123456"}, msg)
}

func TestQueueDeliverer_PublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	d := NewQueueDeliverer(pub, "otp-delivery")

	assert.Error(t, d.Deliver(context.Background(), "alice@bank.test", "123456", "alice"))
}

func TestDecodeCodeMessage_Incomplete(t *testing.T) {
	_, err := DecodeCodeMessage([]byte(`{"username":"alice"}`))
	assert.Error(t, err)
	_, err = DecodeCodeMessage([]byte(`not json`))
	assert.Error(t, err)
}

// fakeSMTPServer accepts one session and records the DATA payload.
func fakeSMTPServer(t *testing.T) (string, int, <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	data := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		r := bufio.NewReader(conn)
		write := func(s string) { _, _ = conn.Write([]byte(s + "\r\n")) }
		write("220 fake ESMTP")

		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			cmd := strings.ToUpper(strings.TrimSpace(line))
			switch {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				write("250-fake")
				write("250 8BITMIME")
			case strings.HasPrefix(cmd, "MAIL"), strings.HasPrefix(cmd, "RCPT"):
				write("250 OK")
			case cmd == "DATA":
				write("354 go ahead")
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
				data <- b.String()
				write("250 queued")
			case cmd == "QUIT":
				write("221 bye")
				return
			default:
				write("502 unsupported")
			}
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port, data
}

func TestSMTPDeliverer_Deliver(t *testing.T) {
	host, port, data := fakeSMTPServer(t)
	d := NewSMTPDeliverer(config.SMTPConfig{Host: host, Port: port, From: "mfa@bank.test"}, 5*time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Deliver(ctx, "alice@bank.test", "654321", "alice"))

	select {
	case payload := <-data:
		assert.Contains(t, payload, "To: alice@bank.test")
		assert.Contains(t, payload, "654321")
	case <-time.After(5 * time.Second):
		t.Fatal("no message received")
	}
}

func TestSMTPDeliverer_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	d := NewSMTPDeliverer(config.SMTPConfig{Host: "127.0.0.1", Port: port, From: "mfa@bank.test"}, 5*time.Minute)
	err = d.Deliver(context.Background(), "alice@bank.test", "654321", "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp dial")
}
