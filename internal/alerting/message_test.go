package alerting

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestRenderMessage(t *testing.T) {
	msg := renderMessage(Alert{
		Title:    "Villa <b>\r\nurgent",
		Location: "Runda & Muthaiga",
		Price:    decimal.RequireFromString("1250000.5"),
		Score:    13,
	})

	if strings.ContainsAny(msg.Subject, "\r\n") {
		t.Fatalf("subject must be single line: %q", msg.Subject)
	}
	if !strings.HasPrefix(msg.Subject, "Distress alert: Villa") {
		t.Fatalf("subject = %q", msg.Subject)
	}
	for _, want := range []string{"Villa &lt;b&gt;", "Runda &amp; Muthaiga", "1250000.50", "13.00"} {
		if !strings.Contains(msg.HTML, want) {
			t.Fatalf("html missing %q:\n%s", want, msg.HTML)
		}
	}
	for _, want := range []string{"Location: Runda & Muthaiga", "Price: 1250000.50", "Distress score: 13.00"} {
		if !strings.Contains(msg.Text, want) {
			t.Fatalf("text missing %q:\n%s", want, msg.Text)
		}
	}
}

func TestBuildMessageEncodesHeaders(t *testing.T) {
	msg, err := buildMessage("alerts@example.com", "user@example.com", renderMessage(Alert{
		Title: "Maison à Nairobi",
		Price: decimal.NewFromInt(1),
	}).Subject, "<p>hi</p>")
	if err != nil {
		t.Fatalf("build message: %v", err)
	}

	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		t.Fatalf("write message: %v", err)
	}
	raw := buf.String()
	header, _, ok := strings.Cut(raw, "\r\n\r\n")
	if !ok {
		t.Fatalf("no header/body separator: %q", raw)
	}
	for i := 0; i < len(header); i++ {
		if header[i] > 0x7e {
			t.Fatalf("header contains raw 8-bit byte at %d: %q", i, header)
		}
	}
	if !strings.Contains(header, "=?UTF-8?q?") {
		t.Fatalf("subject not RFC 2047 encoded: %q", header)
	}
	if !strings.Contains(header, "To: <user@example.com>") {
		t.Fatalf("missing recipient header: %q", header)
	}
}

func TestBuildMessageRejectsBadAddresses(t *testing.T) {
	if _, err := buildMessage("alerts@example.com", "user@example.com\r\nBcc: x@evil", "s", "b"); err == nil {
		t.Fatal("recipient with header injection should be rejected")
	}
	if _, err := buildMessage("not an address", "user@example.com", "s", "b"); err == nil {
		t.Fatal("invalid from should be rejected")
	}
}

func TestSMTPSenderRequiresConfig(t *testing.T) {
	s := NewSMTPEmailSender(SMTPOptions{}, testLogger())
	if err := s.SendEmail(context.Background(), "u@x", "s", "b"); err == nil {
		t.Fatal("missing host should fail")
	}
}
