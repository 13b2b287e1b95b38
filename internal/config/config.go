package config

import (
	"fmt"
	"strconv"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Core
	BotToken    string `env:"BOT_TOKEN,required"`
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Webhook listener
	Port          int    `env:"PORT" envDefault:"8081"`
	WebhookSecret string `env:"TICKET_AUTH,required"`
	WebsiteURL    string `env:"WEBSITE_URL" envDefault:"https://www.plugsmith.dev"`

	// Chat surface
	OrderChannelID  string   `env:"ORDER_CHANNEL_ID,required"`
	TicketGroupID   int64    `env:"TICKET_GROUP_ID,required"`
	PaymentFeedID   string   `env:"PAYMENT_FEED_CHANNEL_ID"`
	ShareChannelIDs []string `env:"SHARE_CHANNEL_IDS" envSeparator:","`

	// Staff
	AdminIDs []int64 `env:"ADMIN_IDS" envSeparator:","`

	// Billing provider (PayPal)
	PayPalClientID  string `env:"PAYPAL_CLIENT"`
	PayPalSecret    string `env:"PAYPAL_SECRET"`
	PayPalURL       string `env:"PAYPAL_API_URL" envDefault:"https://api-m.paypal.com"`
	BusinessName    string `env:"BUSINESS_NAME" envDefault:"PlugSmith"`
	BusinessEmail   string `env:"BUSINESS_EMAIL"`
	BusinessGiven   string `env:"BUSINESS_GIVEN_NAME"`
	BusinessSurname string `env:"BUSINESS_SURNAME"`
	TermsURL        string `env:"TERMS_URL" envDefault:"https://www.plugsmith.dev/terms-of-service"`

	// Bot behavior
	DropPendingUpdates bool `env:"BOT_DROP_PENDING_UPDATES" envDefault:"false"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func (c *Config) IsAdmin(telegramID int64) bool {
	for _, id := range c.AdminIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}

// IsStaffUser reports whether a gateway user id belongs to a staff member.
func (c *Config) IsStaffUser(userID string) bool {
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return false
	}
	return c.IsAdmin(id)
}

// PricingFormURL builds the one-time link that the external pricing form uses
// to attach its selections to a ticket.
func (c *Config) PricingFormURL(pricingID, token string, ticketID int64) string {
	return fmt.Sprintf("%s/new-pricing?id=%s&token=%s&ticket_id=%d", c.WebsiteURL, pricingID, token, ticketID)
}
