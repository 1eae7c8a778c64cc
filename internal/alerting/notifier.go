package alerting

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"distress-detector/internal/storage"
)

// Channel names recorded on deliveries.
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// Alert 封装一次告警所需的房源上下文。
type Alert struct {
	ListingID int64
	Title     string
	Location  string
	Price     decimal.Decimal
	Score     float64
}

// AlertFromListing builds an Alert from a stored listing.
func AlertFromListing(l storage.Listing) Alert {
	return Alert{
		ListingID: l.ID,
		Title:     l.Title,
		Location:  l.Location,
		Price:     l.Price,
		Score:     l.DistressScore,
	}
}

// EmailSender delivers an HTML email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) error
}

// SMSSender delivers a text message.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// PreferenceLister enumerates subscriber preferences.
type PreferenceLister interface {
	ListPreferences(ctx context.Context) ([]storage.NotificationPreference, error)
}

// DeliveryRecorder persists delivery attempts.
type DeliveryRecorder interface {
	InsertDelivery(ctx context.Context, record storage.DeliveryRecord) error
}

// Report summarises one dispatch.
type Report struct {
	EventID     uuid.UUID
	Triggered   bool
	Subscribers int
	EmailsSent  int
	SMSSent     int
	Failures    int
	Skipped     int
}

// Options configure a Dispatcher. Email, SMS and Recorder may be nil.
type Options struct {
	Preferences PreferenceLister
	Email       EmailSender
	SMS         SMSSender
	Recorder    DeliveryRecorder
	Workers     int
	// Timeout bounds each individual send; zero leaves ctx untouched.
	Timeout time.Duration
}

// Dispatcher fans a distress alert out to every subscriber. Delivery is
// best effort: failures are logged and counted, never returned.
type Dispatcher struct {
	prefs    PreferenceLister
	email    EmailSender
	sms      SMSSender
	recorder DeliveryRecorder
	workers  int
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewDispatcher 构造告警分发器。
func NewDispatcher(opts Options, logger zerolog.Logger) *Dispatcher {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		prefs:    opts.Preferences,
		email:    opts.Email,
		sms:      opts.SMS,
		recorder: opts.Recorder,
		workers:  workers,
		timeout:  opts.Timeout,
		logger:   logger.With().Str("component", "alert_dispatcher").Logger(),
	}
}

// NotifyUsers alerts every subscriber when alert.Score >= threshold.
func (d *Dispatcher) NotifyUsers(ctx context.Context, alert Alert, threshold float64) Report {
	if alert.Score < threshold {
		return Report{}
	}

	report := Report{EventID: uuid.New(), Triggered: true}
	log := d.logger.With().
		Str("event_id", report.EventID.String()).
		Int64("listing_id", alert.ListingID).
		Float64("score", alert.Score).
		Logger()

	if d.prefs == nil {
		log.Warn().Msg("no preference source configured; alert dropped")
		return report
	}

	prefs, err := d.prefs.ListPreferences(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to list notification preferences")
		return report
	}
	report.Subscribers = len(prefs)

	msg := renderMessage(alert)
	eventID := report.EventID
	var mu sync.Mutex
	tally := func(fn func(r *Report)) {
		mu.Lock()
		fn(&report)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for _, pref := range prefs {
		g.Go(func() error {
			d.notifyOne(gctx, log, eventID, alert, msg, pref, tally)
			return nil
		})
	}
	_ = g.Wait()

	log.Info().
		Int("subscribers", report.Subscribers).
		Int("emails", report.EmailsSent).
		Int("sms", report.SMSSent).
		Int("failures", report.Failures).
		Int("skipped", report.Skipped).
		Msg("告警分发完成")
	return report
}

func (d *Dispatcher) notifyOne(ctx context.Context, log zerolog.Logger, eventID uuid.UUID, alert Alert, msg message, pref storage.NotificationPreference, tally func(func(*Report))) {
	log = log.With().Str("user_id", pref.UserID).Logger()

	if pref.EmailEnabled {
		to := strings.TrimSpace(pref.Email)
		switch {
		case d.email == nil:
			log.Debug().Msg("email channel not configured")
			tally(func(r *Report) { r.Skipped++ })
		case to == "":
			log.Warn().Msg("email enabled without address")
			tally(func(r *Report) { r.Skipped++ })
		default:
			err := d.send(ctx, func(sendCtx context.Context) error {
				return d.email.SendEmail(sendCtx, to, msg.Subject, msg.HTML)
			})
			d.record(ctx, log, eventID, alert, pref.UserID, ChannelEmail, msg.Text, err)
			if err != nil {
				log.Error().Err(err).Str("channel", ChannelEmail).Msg("failed to dispatch alert")
				tally(func(r *Report) { r.Failures++ })
			} else {
				tally(func(r *Report) { r.EmailsSent++ })
			}
		}
	}

	if pref.SMSEnabled {
		to := ""
		if pref.PhoneNumber != nil {
			to = strings.TrimSpace(*pref.PhoneNumber)
		}
		switch {
		case to == "":
			tally(func(r *Report) { r.Skipped++ })
		case d.sms == nil:
			log.Debug().Msg("sms channel not configured")
			tally(func(r *Report) { r.Skipped++ })
		default:
			err := d.send(ctx, func(sendCtx context.Context) error {
				return d.sms.SendSMS(sendCtx, to, msg.Text)
			})
			d.record(ctx, log, eventID, alert, pref.UserID, ChannelSMS, msg.Text, err)
			if err != nil {
				log.Error().Err(err).Str("channel", ChannelSMS).Msg("failed to dispatch alert")
				tally(func(r *Report) { r.Failures++ })
			} else {
				tally(func(r *Report) { r.SMSSent++ })
			}
		}
	}
}

func (d *Dispatcher) send(ctx context.Context, fn func(context.Context) error) error {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	return fn(ctx)
}

func (d *Dispatcher) record(ctx context.Context, log zerolog.Logger, eventID uuid.UUID, alert Alert, userID, channel, text string, sendErr error) {
	if d.recorder == nil {
		return
	}
	rec := storage.DeliveryRecord{
		EventID:   eventID,
		ListingID: alert.ListingID,
		UserID:    userID,
		Channel:   channel,
		Message:   text,
		Sent:      sendErr == nil,
	}
	if sendErr != nil {
		msg := sendErr.Error()
		rec.Error = &msg
	}
	if err := d.recorder.InsertDelivery(ctx, rec); err != nil {
		log.Error().Err(err).Str("channel", channel).Msg("failed to persist delivery record")
	}
}
