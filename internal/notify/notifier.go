// Package notify pushes opportunity alerts to external channels (Telegram,
// Discord). Alerts are rate-limited per route so a persistent spread does
// not flood operators every poll cycle.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"arbmon/internal/domain"
)

// Sender is the interface each notification channel implements.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns the channel identifier (e.g. "telegram").
	Name() string
}

// Notifier dispatches opportunity alerts to one or more Senders.
type Notifier struct {
	senders []Sender
	// minSpreadPct gates alerts separately from detection, so the monitor
	// can record 0.5% spreads while only paging on 2% ones.
	minSpreadPct float64
	cooldown     time.Duration
	logger       *slog.Logger

	mu       sync.Mutex
	lastSent map[string]time.Time // route -> last alert time
	now      func() time.Time
}

// NewNotifier creates a Notifier over the given senders. Opportunities
// below minSpreadPct are ignored; repeat alerts for the same route within
// the cooldown window are suppressed.
func NewNotifier(senders []Sender, minSpreadPct float64, cooldown time.Duration, logger *slog.Logger) *Notifier {
	return &Notifier{
		senders:      senders,
		minSpreadPct: minSpreadPct,
		cooldown:     cooldown,
		logger:       logger.With(slog.String("component", "notifier")),
		lastSent:     make(map[string]time.Time),
		now:          time.Now,
	}
}

// NotifyOpportunity sends an alert for the opportunity when it clears the
// alert threshold and the route is not in cooldown.
func (n *Notifier) NotifyOpportunity(ctx context.Context, opp domain.Opportunity) error {
	if len(n.senders) == 0 {
		return nil
	}
	if opp.SpreadPct < n.minSpreadPct {
		return nil
	}

	key := opp.Coin + "/" + opp.Fiat + ":" + opp.Route()
	if !n.claimRoute(key) {
		n.logger.Debug("alert suppressed by cooldown", slog.String("route", key))
		return nil
	}

	title := fmt.Sprintf("Arbitrage: %s/%s %.2f%%", opp.Coin, opp.Fiat, opp.SpreadPct)
	message := fmt.Sprintf(
		"Buy on %s at %.2f\nSell on %s at %.2f\nProfit per unit: %.2f %s",
		opp.BuyExchange, opp.BuyPrice,
		opp.SellExchange, opp.SellPrice,
		opp.ProfitPerUnit, opp.Fiat,
	)

	return n.dispatch(ctx, title, message)
}

// claimRoute records an alert for the route unless one was sent within the
// cooldown window. It reports whether the caller may send.
func (n *Notifier) claimRoute(key string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	if last, ok := n.lastSent[key]; ok && now.Sub(last) < n.cooldown {
		return false
	}
	n.lastSent[key] = now
	return true
}

// dispatch delivers to every sender; one failing sender does not stop the
// rest. Failures are combined into a single error.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.Error("sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()))
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.Debug("notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title))
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
