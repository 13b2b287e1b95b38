package main

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	orderdesk "github.com/plugsmith/orderdesk"
	"github.com/plugsmith/orderdesk/internal/config"
	"github.com/plugsmith/orderdesk/internal/invoice"
	"github.com/plugsmith/orderdesk/internal/middleware"
	"github.com/plugsmith/orderdesk/internal/paypal"
	"github.com/plugsmith/orderdesk/internal/relay"
	"github.com/plugsmith/orderdesk/internal/repository"
	"github.com/plugsmith/orderdesk/internal/telegram"
	"github.com/plugsmith/orderdesk/internal/ticket"
	"github.com/plugsmith/orderdesk/internal/webhook"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	migrationsFS, err := fs.Sub(orderdesk.MigrationsFS, "migrations")
	if err != nil {
		logger.Error("failed to load embedded migrations", "error", err)
		os.Exit(1)
	}
	if err := repository.RunMigrations(cfg.DatabaseURL, migrationsFS); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	tickets := repository.NewTickets(pool)
	tickets.StartEvictor(ctx)
	pricing := repository.NewPricingRequests(pool)
	billingAccounts := repository.NewBilling(pool)

	payments := paypal.New(cfg)
	payments.StartTokenRefresher(ctx)

	// Assigned after the adapter exists; updates arriving before that are dropped.
	var router *telegram.Router

	b, err := bot.New(cfg.BotToken,
		bot.WithMiddlewares(middleware.Recover(), middleware.Logging()),
		bot.WithDefaultHandler(func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if router != nil {
				router.HandleUpdate(ctx, b, update)
			}
		}),
	)
	if err != nil {
		logger.Error("failed to create bot", "error", err)
		os.Exit(1)
	}

	if cfg.DropPendingUpdates {
		if _, err := b.DeleteWebhook(ctx, &bot.DeleteWebhookParams{DropPendingUpdates: true}); err != nil {
			logger.Warn("failed to drop pending updates", "error", err)
		}
	}

	me, err := b.GetMe(ctx)
	if err != nil {
		logger.Error("failed to get bot info", "error", err)
		os.Exit(1)
	}
	logger.Info("bot info retrieved", "id", me.ID, "username", me.Username)

	gw := telegram.NewAdapter(b, cfg, logger)
	gw.SetSelf(me.ID)

	ticketMachine := ticket.New(ticket.Deps{
		Gateway: gw,
		Tickets: tickets,
		Pricing: pricing,
		Config:  cfg,
		Logger:  logger,
	})

	invoiceWizard := invoice.New(invoice.Deps{
		Gateway:  gw,
		Billing:  payments,
		Contacts: billingAccounts,
		Logger:   logger,
	})
	invoiceWizard.StartEvictor(ctx)

	paymentRelay := relay.New(relay.Deps{
		Gateway:       gw,
		Directory:     billingAccounts,
		Invoices:      payments,
		FeedChannelID: cfg.PaymentFeedID,
		Logger:        logger,
	})

	router = telegram.NewRouter(gw, telegram.Handlers{
		Ticket:  ticketMachine,
		Invoice: invoiceWizard,
		Relay:   paymentRelay,
	}, logger)

	listener := webhook.NewServer(cfg.WebhookSecret, ticketMachine, logger)
	go func() {
		if err := listener.Run(ctx, cfg.Port); err != nil {
			logger.Error("webhook listener stopped", "error", err)
			stop()
		}
	}()

	logger.Info("starting bot", "username", me.Username, "id", me.ID)
	b.Start(ctx)

	logger.Info("bot stopped gracefully")
}
