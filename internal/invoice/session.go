package invoice

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/plugsmith/orderdesk/internal/config"
	"github.com/plugsmith/orderdesk/internal/domain"
)

// Step is the input the wizard expects from the operator next. The item
// steps mirror exactly one missing field on the in-progress line item.
type Step string

const (
	StepCustomer        Step = "CUSTOMER"
	StepAddItems        Step = "ADD_ITEMS"
	StepItemName        Step = "ENTER_NAME"
	StepItemDescription Step = "ENTER_DESCRIPTION"
	StepItemUnit        Step = "ENTER_MEASURE_UNIT"
	StepItemRate        Step = "ENTER_RATE"
	StepItemQuantity    Step = "ENTER_QUANTITY"
	StepReviewItem      Step = "REVIEW_ITEM"
)

// Draft is one operator's in-progress invoice. It lives only in memory;
// abandoning it loses nothing durable.
type Draft struct {
	OperatorID string
	ChannelID  string
	Step       Step

	Customer *domain.BillingContact
	Items    []*domain.LineItem

	InvoiceNumber string
	InvoiceHref   string
	Record        *domain.InvoiceRecord
	QR            []byte

	Sending bool
	Sent    bool
	// CancellingItem suspends normal input while the cancel-item confirm
	// dialog is showing.
	CancellingItem bool

	SummaryMessageID string
	PromptMessageID  string
	CustomerDMID     string

	touched time.Time
}

// current returns the in-progress (last) line item, or nil.
func (d *Draft) current() *domain.LineItem {
	if len(d.Items) == 0 {
		return nil
	}
	return d.Items[len(d.Items)-1]
}

// completeItems returns the finalized items, excluding one mid-edit.
func (d *Draft) completeItems() []*domain.LineItem {
	var out []*domain.LineItem
	for _, it := range d.Items {
		if it.Complete() {
			out = append(out, it)
		}
	}
	return out
}

func (d *Draft) total() decimal.Decimal {
	return domain.ItemsTotal(d.completeItems())
}

// submitError explains why the submit-invoice action is unavailable, or
// returns nil when the draft is ready to go out.
func (d *Draft) submitError() error {
	if d.Sending || d.Sent {
		return domain.ErrDraftSending
	}
	if d.Step != StepAddItems || len(d.completeItems()) == 0 {
		return domain.ErrItemIncomplete
	}
	return nil
}

func (d *Draft) canSubmit() bool {
	return d.submitError() == nil
}

// sessions is the wizard's explicit per-operator draft store. Idle drafts
// are evicted on a timer rather than accumulating forever.
type sessions struct {
	mu     sync.Mutex
	drafts map[string]*Draft
}

func newSessions() *sessions {
	return &sessions{drafts: map[string]*Draft{}}
}

func (s *sessions) get(operatorID string) *Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[operatorID]
	if !ok {
		return nil
	}
	d.touched = time.Now()
	return d
}

func (s *sessions) put(d *Draft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.touched = time.Now()
	s.drafts[d.OperatorID] = d
}

func (s *sessions) drop(operatorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, operatorID)
}

func (s *sessions) startEvictor(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(config.DraftSweep)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.evictIdle()
			}
		}
	}()
}

func (s *sessions) evictIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-config.DraftIdle)
	for id, d := range s.drafts {
		if d.touched.Before(cutoff) {
			delete(s.drafts, id)
		}
	}
}
