// Package notify pushes alerts for significant analysis results to shoutrrr
// service URLs (ntfy, telegram, discord, generic webhooks, ...).
package notify

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"strings"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/tkarvo/gammalyze/internal/analysis"
	"github.com/tkarvo/gammalyze/internal/conf"
	"github.com/tkarvo/gammalyze/internal/errors"
	"github.com/tkarvo/gammalyze/internal/identify"
	"github.com/tkarvo/gammalyze/internal/logging"
)

const sendTimeout = 15 * time.Second

// Alert is a rendered notification ready for dispatch.
type Alert struct {
	Title   string
	Message string
}

// Notifier sends alerts through a single shoutrrr router covering all
// configured URLs.
type Notifier struct {
	sender    *router.ServiceRouter
	threshold float64
	logger    *slog.Logger
}

// New builds a Notifier from settings. Notifications must be enabled and at
// least one service URL configured; URLs are validated up front.
func New(settings *conf.Settings) (*Notifier, error) {
	if !settings.Notify.Enabled {
		return nil, errors.Newf("notifications not enabled in settings").
			Component("notify").
			Category(errors.CategoryNotification).
			Build()
	}
	if len(settings.Notify.URLs) == 0 {
		return nil, errors.Newf("at least one notify URL is required").
			Component("notify").
			Category(errors.CategoryValidation).
			Build()
	}

	logger := logging.ForService("notify")
	if logger == nil {
		logger = slog.Default()
	}

	sender, err := shoutrrr.CreateSender(settings.Notify.URLs...)
	if err != nil {
		return nil, errors.New(err).
			Component("notify").
			Category(errors.CategoryValidation).
			Context("url_count", len(settings.Notify.URLs)).
			Build()
	}
	sender.Timeout = sendTimeout
	sender.SetLogger(log.New(io.Discard, "", 0))

	return &Notifier{
		sender:    sender,
		threshold: settings.Analysis.AlertConfidence,
		logger:    logger.With("service", "notify"),
	}, nil
}

// AlertFor decides whether a result warrants a push and renders the alert.
// A result qualifies when a decay chain is rated HIGH or an unsuppressed
// candidate reaches the confidence threshold. A zero threshold disables the
// candidate trigger; suppressed candidates never alert on their own because
// the chain that explains them already does.
func AlertFor(result *analysis.Result, threshold float64) (Alert, bool) {
	var subject string
	var reasons []string

	for i := range result.Chains {
		ch := &result.Chains[i]
		if ch.Level != identify.LevelHigh {
			continue
		}
		if subject == "" {
			subject = ch.Name
		}
		reasons = append(reasons, fmt.Sprintf("%s rated HIGH (%d members, weighted %.2f)",
			ch.Name, len(ch.DetectedMembers), ch.WeightedConfidence))
	}

	if threshold > 0 {
		for i := range result.Candidates {
			c := &result.Candidates[i]
			if c.Suppressed || c.Confidence < threshold {
				continue
			}
			if subject == "" {
				subject = c.Name
			}
			reasons = append(reasons, fmt.Sprintf("%s identified at %.1f%% confidence",
				c.Name, c.Confidence))
		}
	}

	if len(reasons) == 0 {
		return Alert{}, false
	}

	var b strings.Builder
	for _, r := range reasons {
		b.WriteString("- ")
		b.WriteString(r)
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "analysis %s (%s mode)", result.ID, result.Mode)

	return Alert{
		Title:   "Gamma alert: " + subject,
		Message: b.String(),
	}, true
}

// Send pushes the alert to every configured URL. The router handles its own
// per-service timeouts; the first delivery error is returned.
func (n *Notifier) Send(ctx context.Context, alert Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := stypes.Params{}
	if alert.Title != "" {
		params.SetTitle(alert.Title)
	}
	for _, e := range n.sender.Send(alert.Message, &params) {
		if e != nil {
			return errors.New(e).
				Component("notify").
				Category(errors.CategoryNotification).
				Build()
		}
	}

	n.logger.Debug("alert delivered", "title", alert.Title)
	return nil
}

// Notify evaluates the result against the configured threshold and pushes an
// alert when it qualifies. It reports whether an alert was sent.
func (n *Notifier) Notify(ctx context.Context, result *analysis.Result) (bool, error) {
	alert, ok := AlertFor(result, n.threshold)
	if !ok {
		return false, nil
	}
	if err := n.Send(ctx, alert); err != nil {
		return false, err
	}
	n.logger.Info("analysis alert pushed", "result_id", result.ID, "title", alert.Title)
	return true, nil
}
