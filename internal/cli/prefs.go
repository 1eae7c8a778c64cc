package cli

import (
	"github.com/spf13/cobra"

	"distress-detector/internal/app"
)

var (
	prefsEmail        string
	prefsEmailEnabled bool
	prefsSMSEnabled   bool
	prefsPhone        string
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Manage subscriber notification preferences",
}

var prefsShowCmd = &cobra.Command{
	Use:   "show <user-id>",
	Short: "Show a user's preferences (created with defaults on first access)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().PrefsShow(cmd.Context(), args[0])
	},
}

var prefsSetCmd = &cobra.Command{
	Use:   "set <user-id>",
	Short: "Update a user's preferences",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		update := app.PrefsUpdate{UserID: args[0]}
		flags := cmd.Flags()
		if flags.Changed("email") {
			update.Email = &prefsEmail
		}
		if flags.Changed("email-enabled") {
			update.EmailEnabled = &prefsEmailEnabled
		}
		if flags.Changed("sms-enabled") {
			update.SMSEnabled = &prefsSMSEnabled
		}
		if flags.Changed("phone") {
			update.PhoneNumber = &prefsPhone
		}
		return getApp().PrefsSet(cmd.Context(), update)
	},
}

func init() {
	prefsSetCmd.Flags().StringVar(&prefsEmail, "email", "", "Email address")
	prefsSetCmd.Flags().BoolVar(&prefsEmailEnabled, "email-enabled", true, "Receive email alerts")
	prefsSetCmd.Flags().BoolVar(&prefsSMSEnabled, "sms-enabled", false, "Receive SMS alerts")
	prefsSetCmd.Flags().StringVar(&prefsPhone, "phone", "", "Phone number for SMS (empty clears it)")

	prefsCmd.AddCommand(prefsShowCmd)
	prefsCmd.AddCommand(prefsSetCmd)
}
