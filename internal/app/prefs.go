package app

import (
	"context"
	"fmt"
	"strings"

	"distress-detector/internal/storage"
)

// PrefsUpdate carries the preference flags that were explicitly set.
type PrefsUpdate struct {
	UserID       string
	Email        *string
	EmailEnabled *bool
	SMSEnabled   *bool
	PhoneNumber  *string
}

// PrefsShow prints a user's preference, creating the default on first access.
func (a *App) PrefsShow(ctx context.Context, userID string) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	pref, err := store.GetOrCreatePreference(ctx, userID)
	if err != nil {
		return err
	}
	a.printPreference(pref)
	return nil
}

// PrefsSet merges update into the user's stored preference.
func (a *App) PrefsSet(ctx context.Context, update PrefsUpdate) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	pref, err := store.GetOrCreatePreference(ctx, update.UserID)
	if err != nil {
		return err
	}
	pref = applyPrefsUpdate(pref, update)

	stored, err := store.UpsertPreference(ctx, pref)
	if err != nil {
		return err
	}
	a.printPreference(stored)
	return nil
}

func applyPrefsUpdate(pref storage.NotificationPreference, update PrefsUpdate) storage.NotificationPreference {
	if update.Email != nil {
		pref.Email = strings.TrimSpace(*update.Email)
	}
	if update.EmailEnabled != nil {
		pref.EmailEnabled = *update.EmailEnabled
	}
	if update.SMSEnabled != nil {
		pref.SMSEnabled = *update.SMSEnabled
	}
	if update.PhoneNumber != nil {
		phone := strings.TrimSpace(*update.PhoneNumber)
		if phone == "" {
			pref.PhoneNumber = nil
		} else {
			pref.PhoneNumber = &phone
		}
	}
	return pref
}

func (a *App) printPreference(p storage.NotificationPreference) {
	phone := "-"
	if p.PhoneNumber != nil {
		phone = *p.PhoneNumber
	}
	email := p.Email
	if email == "" {
		email = "-"
	}
	fmt.Fprintf(a.Out, "user:   %s\nemail:  %s (enabled=%t)\nsms:    %s (enabled=%t)\n",
		p.UserID, email, p.EmailEnabled, phone, p.SMSEnabled)
}
