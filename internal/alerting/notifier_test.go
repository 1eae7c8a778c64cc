package alerting

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"distress-detector/internal/storage"
)

type fakeEmail struct {
	mu   sync.Mutex
	sent []string
	fail map[string]bool
}

func (f *fakeEmail) SendEmail(_ context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[to] {
		return errors.New("smtp down")
	}
	f.sent = append(f.sent, to)
	return nil
}

type fakeSMS struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeSMS) SendSMS(_ context.Context, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to)
	return nil
}

type fakePrefs struct {
	prefs []storage.NotificationPreference
	err   error
	calls int
}

func (f *fakePrefs) ListPreferences(context.Context) ([]storage.NotificationPreference, error) {
	f.calls++
	return f.prefs, f.err
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []storage.DeliveryRecord
	err     error
}

func (f *fakeRecorder) InsertDelivery(_ context.Context, rec storage.DeliveryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return f.err
}

func phone(v string) *string { return &v }

func testAlert(score float64) Alert {
	return Alert{ListingID: 7, Title: "3BR bungalow", Location: "Karen", Price: decimal.NewFromInt(65000), Score: score}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestNotifyBelowThresholdIsNoop(t *testing.T) {
	prefs := &fakePrefs{prefs: []storage.NotificationPreference{{UserID: "u1", Email: "a@x", EmailEnabled: true}}}
	email := &fakeEmail{}
	sms := &fakeSMS{}
	d := NewDispatcher(Options{Preferences: prefs, Email: email, SMS: sms}, testLogger())

	report := d.NotifyUsers(context.Background(), testAlert(4), 5)
	if report.Triggered {
		t.Fatal("score below threshold should not trigger")
	}
	if prefs.calls != 0 || len(email.sent) != 0 || len(sms.sent) != 0 {
		t.Fatalf("expected no side effects, prefs=%d email=%d sms=%d", prefs.calls, len(email.sent), len(sms.sent))
	}
}

func TestNotifyEmailOnlySubscriber(t *testing.T) {
	prefs := &fakePrefs{prefs: []storage.NotificationPreference{{UserID: "u1", Email: "a@x", EmailEnabled: true, SMSEnabled: false}}}
	email := &fakeEmail{}
	sms := &fakeSMS{}
	d := NewDispatcher(Options{Preferences: prefs, Email: email, SMS: sms}, testLogger())

	report := d.NotifyUsers(context.Background(), testAlert(6), 5)
	if len(email.sent) != 1 || len(sms.sent) != 0 {
		t.Fatalf("expected 1 email and 0 sms, got %d/%d", len(email.sent), len(sms.sent))
	}
	if report.EmailsSent != 1 || report.SMSSent != 0 || report.Failures != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestNotifyAtThresholdTriggers(t *testing.T) {
	prefs := &fakePrefs{prefs: []storage.NotificationPreference{{UserID: "u1", Email: "a@x", EmailEnabled: true}}}
	email := &fakeEmail{}
	d := NewDispatcher(Options{Preferences: prefs, Email: email}, testLogger())

	if report := d.NotifyUsers(context.Background(), testAlert(5), 5); !report.Triggered || report.EmailsSent != 1 {
		t.Fatalf("score equal to threshold should alert: %+v", report)
	}
}

func TestNotifyFailuresAreContained(t *testing.T) {
	prefs := &fakePrefs{prefs: []storage.NotificationPreference{
		{UserID: "u1", Email: "broken@x", EmailEnabled: true, SMSEnabled: true, PhoneNumber: phone("+254700000001")},
		{UserID: "u2", Email: "ok@x", EmailEnabled: true},
		{UserID: "u3", SMSEnabled: true, PhoneNumber: phone("+254700000003")},
		{UserID: "u4", SMSEnabled: true},
		{UserID: "u5", EmailEnabled: true},
	}}
	email := &fakeEmail{fail: map[string]bool{"broken@x": true}}
	sms := &fakeSMS{}
	rec := &fakeRecorder{err: errors.New("db down")}
	d := NewDispatcher(Options{Preferences: prefs, Email: email, SMS: sms, Recorder: rec}, testLogger())

	report := d.NotifyUsers(context.Background(), testAlert(9), 5)

	if report.Subscribers != 5 {
		t.Fatalf("subscribers = %d", report.Subscribers)
	}
	if report.EmailsSent != 1 || report.SMSSent != 2 || report.Failures != 1 || report.Skipped != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(sms.sent) != 2 {
		t.Fatalf("sms for the failing email user should still be sent, got %v", sms.sent)
	}
	if len(rec.records) != 4 {
		t.Fatalf("expected 4 delivery records, got %d", len(rec.records))
	}
	for _, r := range rec.records {
		if r.EventID != report.EventID || r.ListingID != 7 {
			t.Fatalf("record not tied to event: %+v", r)
		}
		if r.UserID == "u1" && r.Channel == ChannelEmail && (r.Sent || r.Error == nil) {
			t.Fatalf("failed email should be recorded as unsent: %+v", r)
		}
	}
}

func TestNotifyPreferenceErrorIsSwallowed(t *testing.T) {
	prefs := &fakePrefs{err: errors.New("db down")}
	d := NewDispatcher(Options{Preferences: prefs, Email: &fakeEmail{}}, testLogger())

	report := d.NotifyUsers(context.Background(), testAlert(10), 5)
	if !report.Triggered || report.Subscribers != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestNotifyConcurrentWorkers(t *testing.T) {
	var prefs []storage.NotificationPreference
	for i := 0; i < 50; i++ {
		prefs = append(prefs, storage.NotificationPreference{
			UserID:       string(rune('a' + i%26)),
			Email:        "user@x",
			EmailEnabled: true,
			SMSEnabled:   true,
			PhoneNumber:  phone("+1"),
		})
	}
	email := &fakeEmail{}
	sms := &fakeSMS{}
	d := NewDispatcher(Options{Preferences: &fakePrefs{prefs: prefs}, Email: email, SMS: sms, Workers: 8}, testLogger())

	report := d.NotifyUsers(context.Background(), testAlert(6), 5)
	if report.EmailsSent != 50 || report.SMSSent != 50 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(email.sent) != 50 || len(sms.sent) != 50 {
		t.Fatalf("sent email=%d sms=%d", len(email.sent), len(sms.sent))
	}
}
