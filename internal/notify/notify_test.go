package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkarvo/gammalyze/internal/analysis"
	"github.com/tkarvo/gammalyze/internal/conf"
	"github.com/tkarvo/gammalyze/internal/errors"
	"github.com/tkarvo/gammalyze/internal/identify"
	"github.com/tkarvo/gammalyze/internal/nuclide"
)

// webhookSink captures requests delivered through the shoutrrr generic service.
type webhookSink struct {
	server *httptest.Server
	status int

	mu     sync.Mutex
	bodies []string
}

func newWebhookSink(status int) *webhookSink {
	s := &webhookSink{status: status}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.bodies = append(s.bodies, string(body))
		s.mu.Unlock()
		w.WriteHeader(s.status)
	}))
	return s
}

func (s *webhookSink) URL(t *testing.T) string {
	t.Helper()
	u, err := url.Parse(s.server.URL)
	require.NoError(t, err)
	return fmt.Sprintf("generic://%s/hook?disabletls=yes", u.Host)
}

func (s *webhookSink) Bodies() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.bodies))
	copy(out, s.bodies)
	return out
}

func notifySettings(urls ...string) *conf.Settings {
	return &conf.Settings{
		Analysis: conf.AnalysisSettings{AlertConfidence: 80},
		Notify:   conf.NotifySettings{Enabled: true, URLs: urls},
	}
}

func highChainResult() *analysis.Result {
	return &analysis.Result{
		ID:   "res-1",
		Mode: "strict",
		Chains: []identify.ChainCandidate{{
			Chain:              "u238-series",
			Name:               "Uranium Series",
			Level:              identify.LevelHigh,
			WeightedConfidence: 0.85,
			DetectedMembers:    []nuclide.ID{"ra226", "pb214", "bi214"},
		}},
	}
}

func TestAlertFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		result    *analysis.Result
		threshold float64
		want      bool
		title     string
		fragments []string
	}{
		{
			name:      "high chain triggers",
			result:    highChainResult(),
			threshold: 80,
			want:      true,
			title:     "Gamma alert: Uranium Series",
			fragments: []string{"rated HIGH (3 members, weighted 0.85)", "analysis res-1 (strict mode)"},
		},
		{
			name: "medium chain stays quiet",
			result: &analysis.Result{
				ID:     "res-2",
				Chains: []identify.ChainCandidate{{Name: "Thorium Series", Level: identify.LevelMedium}},
			},
			threshold: 80,
			want:      false,
		},
		{
			name: "candidate at threshold triggers",
			result: &analysis.Result{
				ID:         "res-3",
				Mode:       "strict",
				Candidates: []identify.Candidate{{Nuclide: "cs137", Name: "Cs-137", Confidence: 80}},
			},
			threshold: 80,
			want:      true,
			title:     "Gamma alert: Cs-137",
			fragments: []string{"Cs-137 identified at 80.0% confidence"},
		},
		{
			name: "candidate below threshold stays quiet",
			result: &analysis.Result{
				Candidates: []identify.Candidate{{Nuclide: "cs137", Name: "Cs-137", Confidence: 79.9}},
			},
			threshold: 80,
			want:      false,
		},
		{
			name: "suppressed candidate stays quiet",
			result: &analysis.Result{
				Candidates: []identify.Candidate{{Nuclide: "bi214", Name: "Bi-214", Confidence: 95, Suppressed: true}},
			},
			threshold: 80,
			want:      false,
		},
		{
			name: "zero threshold disables candidate trigger",
			result: &analysis.Result{
				Candidates: []identify.Candidate{{Nuclide: "co60", Name: "Co-60", Confidence: 99}},
			},
			threshold: 0,
			want:      false,
		},
		{
			name: "chain and candidate both listed",
			result: func() *analysis.Result {
				r := highChainResult()
				r.Candidates = []identify.Candidate{{Nuclide: "co60", Name: "Co-60", Confidence: 92}}
				return r
			}(),
			threshold: 80,
			want:      true,
			title:     "Gamma alert: Uranium Series",
			fragments: []string{"rated HIGH", "Co-60 identified at 92.0% confidence"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			alert, ok := AlertFor(tt.result, tt.threshold)
			require.Equal(t, tt.want, ok)
			if !tt.want {
				return
			}
			assert.Equal(t, tt.title, alert.Title)
			for _, frag := range tt.fragments {
				assert.Contains(t, alert.Message, frag)
			}
		})
	}
}

func TestNewValidatesSettings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		settings *conf.Settings
		category errors.ErrorCategory
	}{
		{
			name:     "disabled",
			settings: &conf.Settings{},
			category: errors.CategoryNotification,
		},
		{
			name:     "no urls",
			settings: notifySettings(),
			category: errors.CategoryValidation,
		},
		{
			name:     "unknown service scheme",
			settings: notifySettings("nope://example.com"),
			category: errors.CategoryValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := New(tt.settings)
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, tt.category))
		})
	}
}

func TestNotifyDeliversAlert(t *testing.T) {
	t.Parallel()

	sink := newWebhookSink(http.StatusOK)
	defer sink.server.Close()

	n, err := New(notifySettings(sink.URL(t)))
	require.NoError(t, err)

	sent, err := n.Notify(context.Background(), highChainResult())
	require.NoError(t, err)
	assert.True(t, sent)

	bodies := sink.Bodies()
	require.Len(t, bodies, 1)
	assert.Contains(t, bodies[0], "rated HIGH")
}

func TestNotifySkipsQuietResult(t *testing.T) {
	t.Parallel()

	sink := newWebhookSink(http.StatusOK)
	defer sink.server.Close()

	n, err := New(notifySettings(sink.URL(t)))
	require.NoError(t, err)

	result := &analysis.Result{
		ID:         "quiet",
		Chains:     []identify.ChainCandidate{{Name: "Actinium Series", Level: identify.LevelLow}},
		Candidates: []identify.Candidate{{Name: "K-40", Confidence: 41.2}},
	}
	sent, err := n.Notify(context.Background(), result)
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Empty(t, sink.Bodies())
}

func TestSendReturnsDeliveryError(t *testing.T) {
	t.Parallel()

	sink := newWebhookSink(http.StatusInternalServerError)
	defer sink.server.Close()

	n, err := New(notifySettings(sink.URL(t)))
	require.NoError(t, err)

	err = n.Send(context.Background(), Alert{Title: "Gamma alert", Message: "boom"})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNotification))
}

func TestSendCanceledContext(t *testing.T) {
	t.Parallel()

	sink := newWebhookSink(http.StatusOK)
	defer sink.server.Close()

	n, err := New(notifySettings(sink.URL(t)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = n.Send(ctx, Alert{Message: "late"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sink.Bodies())
}
