package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/swarmarb/swarmarb/internal/domain"
)

// priceMessage is one pushed price update from the venue aggregator feed.
type priceMessage struct {
	Venue string  `json:"venue"`
	Chain string  `json:"chain"`
	Token string  `json:"token"`
	Price float64 `json:"price"`
}

// subscribeMessage requests updates for a set of buckets.
type subscribeMessage struct {
	Type    string   `json:"type"`
	Buckets []string `json:"buckets"`
}

// WSFeed connects to the aggregator WebSocket, subscribes to the configured
// buckets, and folds pushed price updates into an in-memory table that
// implements SnapshotSource. It reconnects with a fixed delay on disconnect.
type WSFeed struct {
	wsURL   string
	buckets []domain.Bucket
	logger  *slog.Logger

	mu      sync.RWMutex
	prices  map[domain.Bucket]map[string]float64
	updated map[domain.Bucket]time.Time

	// maxAge bounds how stale a bucket may be before Fetch refuses it.
	maxAge time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

// NewWSFeed creates a feed for the given aggregator URL and buckets. maxAge
// bounds price staleness; zero disables the check.
func NewWSFeed(wsURL string, buckets []domain.Bucket, maxAge time.Duration, logger *slog.Logger) *WSFeed {
	return &WSFeed{
		wsURL:   wsURL,
		buckets: buckets,
		maxAge:  maxAge,
		logger:  logger.With(slog.String("component", "ws_feed")),
		prices:  make(map[domain.Bucket]map[string]float64),
		updated: make(map[domain.Bucket]time.Time),
		done:    make(chan struct{}),
	}
}

// Fetch returns the latest pushed prices for one bucket. Buckets that never
// received an update, or whose last update exceeds maxAge, are unavailable.
func (f *WSFeed) Fetch(_ context.Context, venue, chain string) (map[string]float64, error) {
	b := domain.Bucket{Venue: venue, Chain: chain}

	f.mu.RLock()
	defer f.mu.RUnlock()

	prices, ok := f.prices[b]
	if !ok || len(prices) == 0 {
		return nil, fmt.Errorf("feed: no updates received for %s: %w", b.Key(), domain.ErrDataUnavailable)
	}
	if f.maxAge > 0 && time.Since(f.updated[b]) > f.maxAge {
		return nil, fmt.Errorf("feed: %s stale since %v: %w", b.Key(), f.updated[b], domain.ErrDataUnavailable)
	}
	return copyPrices(prices), nil
}

// Run connects, subscribes to the configured buckets, and consumes price
// updates until ctx is cancelled. Reconnects with a fixed delay on
// disconnect.
func (f *WSFeed) Run(ctx context.Context) error {
	if len(f.buckets) == 0 {
		f.logger.Info("no buckets to subscribe, exiting")
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}

		if err := f.runConnection(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.logger.Warn("feed disconnected, reconnecting", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		case <-time.After(2 * time.Second):
		}
	}
}

func (f *WSFeed) runConnection(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, f.wsURL, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("feed: dial %s: %w", f.wsURL, err)
	}
	defer conn.Close()

	keys := make([]string, 0, len(f.buckets))
	for _, b := range f.buckets {
		keys = append(keys, b.Key())
	}
	if err := conn.WriteJSON(subscribeMessage{Type: "subscribe", Buckets: keys}); err != nil {
		return fmt.Errorf("feed: subscribe: %w", err)
	}
	f.logger.Info("feed subscribed", slog.Int("buckets", len(keys)))

	// Unblock ReadMessage when the context ends.
	go func() {
		select {
		case <-ctx.Done():
		case <-f.done:
		}
		_ = conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("feed: read: %w", err)
		}

		var msg priceMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			f.logger.Warn("unparseable feed message", slog.String("error", err.Error()))
			continue
		}
		if msg.Token == "" || msg.Price <= 0 {
			continue
		}
		f.apply(msg)
	}
}

func (f *WSFeed) apply(msg priceMessage) {
	b := domain.Bucket{Venue: msg.Venue, Chain: msg.Chain}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.prices[b] == nil {
		f.prices[b] = make(map[string]float64)
	}
	f.prices[b][msg.Token] = msg.Price
	f.updated[b] = time.Now().UTC()
}

// Close stops the feed.
func (f *WSFeed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}

var _ domain.SnapshotSource = (*WSFeed)(nil)
var _ domain.SnapshotSource = (*StaticSource)(nil)
