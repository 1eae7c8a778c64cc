package app

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"distress-detector/internal/alerting"
	"distress-detector/internal/scoring"
	"distress-detector/internal/storage"
)

// SimulateOptions describe a synthetic listing pushed through the alert path.
type SimulateOptions struct {
	Title       string
	Description string
	Location    string
	Price       string
	// Score bypasses scoring when set.
	Score *float64
	// Email and Phone target a single ad-hoc recipient instead of the stored
	// subscribers.
	Email string
	Phone string
}

// SimulateAlert 模拟一次告警流程，不写入房源。
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) (alerting.Report, error) {
	if !a.Config.Alerting.Enabled {
		return alerting.Report{}, errors.New("alerting 未启用")
	}

	price := decimal.Zero
	if opts.Price != "" {
		p, err := scoring.ParseAmount(opts.Price)
		if err != nil {
			return alerting.Report{}, err
		}
		price = p
	}

	adHoc := opts.Email != "" || opts.Phone != ""
	var (
		store      *storage.Store
		closeStore = func() {}
		err        error
	)
	if !adHoc || opts.Score == nil {
		store, closeStore, err = a.openStore(ctx)
		if err != nil {
			return alerting.Report{}, err
		}
		if store == nil {
			if !adHoc {
				return alerting.Report{}, errors.New("未配置数据库，请使用 --email/--phone 指定收件人")
			}
			closeStore = func() {}
		}
	}
	defer closeStore()

	alert := alerting.Alert{
		Title:    opts.Title,
		Location: opts.Location,
		Price:    price,
	}
	if opts.Score != nil {
		alert.Score = *opts.Score
	} else {
		score, err := a.simulatedScore(ctx, store, price, opts.Description, opts.Location)
		if err != nil {
			return alerting.Report{}, err
		}
		alert.Score = score
	}

	var dispatcher *alerting.Dispatcher
	if adHoc {
		dispatcher = a.newDispatcher(staticPreferences{adHocPreference(opts.Email, opts.Phone)}, nil)
	} else {
		dispatcher = a.newDispatcher(store, nil)
	}

	report := dispatcher.NotifyUsers(ctx, alert, a.Config.Alerting.Threshold)
	if !report.Triggered {
		a.Logger.Info().Float64("score", alert.Score).Float64("threshold", a.Config.Alerting.Threshold).Msg("score below threshold; nothing sent")
	}
	return report, nil
}

func (a *App) simulatedScore(ctx context.Context, store *storage.Store, price decimal.Decimal, description, location string) (float64, error) {
	engine, err := a.newEngine()
	if err != nil {
		return 0, err
	}
	if store == nil {
		return engine.Calculate(price, description, decimal.Zero), nil
	}
	averages, closeAverages, err := a.newAverages(store)
	if err != nil {
		return 0, err
	}
	defer closeAverages()

	avg, err := averages.MarketAverage(ctx, location)
	if err != nil {
		return 0, err
	}
	return engine.Calculate(price, description, avg), nil
}

func adHocPreference(email, phone string) storage.NotificationPreference {
	pref := storage.NotificationPreference{
		UserID:       "simulate",
		Email:        strings.TrimSpace(email),
		EmailEnabled: strings.TrimSpace(email) != "",
	}
	if p := strings.TrimSpace(phone); p != "" {
		pref.SMSEnabled = true
		pref.PhoneNumber = &p
	}
	return pref
}

type staticPreferences []storage.NotificationPreference

func (s staticPreferences) ListPreferences(context.Context) ([]storage.NotificationPreference, error) {
	return s, nil
}

var _ alerting.PreferenceLister = staticPreferences(nil)
