package delivery

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/avoronin/oddscout/internal/metrics"
	"github.com/avoronin/oddscout/internal/signal"
	"github.com/avoronin/oddscout/internal/store"
)

// Publisher delivers one rendered message to a subscriber chat.
type Publisher interface {
	Publish(ctx context.Context, chatID int64, text string) error
}

// Config holds delivery policy defaults applied when a subscriber has not
// overridden them.
type Config struct {
	MinConfidence  int
	Leagues        []string
	MaxPerDelivery int
}

// DefaultConfig mirrors the per-subscriber defaults.
func DefaultConfig() Config {
	return Config{
		MinConfidence:  65,
		Leagues:        []string{"NHL"},
		MaxPerDelivery: 5,
	}
}

// Generator produces the day's candidate signals.
type Generator interface {
	Generate(ctx context.Context, date time.Time, leagues []string) []signal.Signal
}

// Deliverer fans the daily signal batch out to subscribers, applying each
// subscriber's filters before sending.
type Deliverer struct {
	gen         Generator
	signals     store.SignalStore
	subscribers store.SubscriberStore
	pub         Publisher
	cfg         Config
	logger      *zap.Logger
}

func New(gen Generator, signals store.SignalStore, subscribers store.SubscriberStore, pub Publisher, cfg Config, logger *zap.Logger) *Deliverer {
	if cfg.MaxPerDelivery <= 0 {
		cfg.MaxPerDelivery = 5
	}
	if len(cfg.Leagues) == 0 {
		cfg.Leagues = []string{"NHL"}
	}
	return &Deliverer{
		gen:         gen,
		signals:     signals,
		subscribers: subscribers,
		pub:         pub,
		cfg:         cfg,
		logger:      logger,
	}
}

// Run generates signals for the given date and delivers them to every
// subscriber. A failure for one subscriber never blocks the others.
func (d *Deliverer) Run(ctx context.Context, date time.Time) error {
	chatIDs, err := d.subscribers.ListChatIDs(ctx)
	if err != nil {
		return fmt.Errorf("listing subscribers: %w", err)
	}
	if len(chatIDs) == 0 {
		d.logger.Info("no subscribers, skipping delivery")
		return nil
	}

	// Generate once per distinct league set so subscribers sharing the
	// defaults share one feed round-trip.
	cache := map[string][]signal.Signal{}

	for _, chatID := range chatIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.deliverTo(ctx, chatID, date, cache); err != nil {
			d.logger.Error("delivery failed",
				zap.Int64("chat_id", chatID),
				zap.Error(err))
		}
	}
	return nil
}

func (d *Deliverer) deliverTo(ctx context.Context, chatID int64, date time.Time, cache map[string][]signal.Signal) error {
	minConf, leagues := d.settings(ctx, chatID)

	key := leagueKey(leagues)
	batch, ok := cache[key]
	if !ok {
		batch = d.gen.Generate(ctx, date, leagues)
		cache[key] = batch
	}

	var picked []signal.Signal
	for _, s := range batch {
		if s.Confidence < minConf {
			continue
		}
		picked = append(picked, s)
		if len(picked) == d.cfg.MaxPerDelivery {
			break
		}
	}

	if len(picked) == 0 {
		if err := d.pub.Publish(ctx, chatID, NoSignalsMessage); err != nil {
			return fmt.Errorf("publishing empty notice: %w", err)
		}
		metrics.IncDeliveryMessage("empty")
		return nil
	}

	for _, s := range picked {
		id, err := d.signals.Insert(ctx, s)
		if err != nil {
			return fmt.Errorf("recording signal: %w", err)
		}
		s.ID = id
		if err := d.pub.Publish(ctx, chatID, FormatSignal(s)); err != nil {
			return fmt.Errorf("publishing signal %d: %w", id, err)
		}
		metrics.IncDeliveryMessage("signal")
	}
	d.logger.Info("delivered signals",
		zap.Int64("chat_id", chatID),
		zap.Int("count", len(picked)))
	return nil
}

// settings resolves the subscriber's filters, falling back to configured
// defaults when the subscriber record is missing or incomplete.
func (d *Deliverer) settings(ctx context.Context, chatID int64) (int, []string) {
	minConf := d.cfg.MinConfidence
	leagues := d.cfg.Leagues
	sub, err := d.subscribers.Get(ctx, chatID)
	if err != nil {
		d.logger.Warn("subscriber lookup failed, using defaults",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
		return minConf, leagues
	}
	if sub.MinConfidence != nil {
		minConf = *sub.MinConfidence
	}
	if len(sub.Leagues) > 0 {
		leagues = sub.Leagues
	}
	return minConf, leagues
}

func leagueKey(leagues []string) string {
	key := ""
	for _, l := range leagues {
		key += l + ","
	}
	return key
}
