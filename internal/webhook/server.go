// Package webhook is the small HTTP surface the external pricing form calls
// back into. One authenticated route, fire-and-forget from the caller's side.
package webhook

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/plugsmith/orderdesk/internal/domain"
)

// PricingSink receives authenticated pricing-form submissions.
type PricingSink interface {
	HandlePricingWebhook(ctx context.Context, pricingID string, ticketID int64, sel domain.PricingSelection) error
}

type Server struct {
	engine *gin.Engine
	secret string
	sink   PricingSink
	log    *slog.Logger
}

func NewServer(secret string, sink PricingSink, log *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		engine: gin.New(),
		secret: secret,
		sink:   sink,
		log:    log,
	}
	s.engine.Use(gin.Recovery())
	s.engine.POST("/ticketPricingUpdate/:pricingId/:ticketId", s.handlePricingUpdate)
	return s
}

// Run blocks serving HTTP until the listener fails or ctx is cancelled.
func (s *Server) Run(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

// Handler exposes the engine for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// handlePricingUpdate authenticates the caller and forwards the selection
// into the ticket machine. The caller always gets 200 once authenticated;
// internal resolution failures are the bot's problem, not the form's.
func (s *Server) handlePricingUpdate(c *gin.Context) {
	if subtle.ConstantTimeCompare([]byte(c.GetHeader("Auth")), []byte(s.secret)) != 1 {
		c.Status(http.StatusUnauthorized)
		return
	}

	pricingID := c.Param("pricingId")
	ticketID, err := strconv.ParseInt(c.Param("ticketId"), 10, 64)
	if err != nil {
		s.log.Warn("pricing update with bad ticket id", "ticket_id", c.Param("ticketId"))
		c.Status(http.StatusOK)
		return
	}

	var sel domain.PricingSelection
	if err := c.ShouldBindJSON(&sel); err != nil {
		s.log.Warn("pricing update with bad body", "pricing_id", pricingID, "error", err)
		c.Status(http.StatusOK)
		return
	}

	if err := s.sink.HandlePricingWebhook(c.Request.Context(), pricingID, ticketID, sel); err != nil {
		s.log.Error("pricing update handling failed", "pricing_id", pricingID, "error", err)
	}
	c.Status(http.StatusOK)
}
