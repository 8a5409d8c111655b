package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/tphakala/replayclip/internal/errors"
	"github.com/tphakala/replayclip/internal/events"
	"github.com/tphakala/replayclip/internal/logger"
	"github.com/tphakala/replayclip/internal/observability/metrics"
)

// Config controls which notifications are delivered.
type Config struct {
	MinType      Type          // lowest type delivered; info delivers everything
	DedupeWindow time.Duration // identical notifications inside the window are dropped
	SendTimeout  time.Duration
}

// DefaultConfig returns the default notification settings.
func DefaultConfig() Config {
	return Config{
		MinType:      TypeInfo,
		DedupeWindow: time.Minute,
		SendTimeout:  10 * time.Second,
	}
}

// Service fans notifications out to providers. It implements events.EventConsumer.
type Service struct {
	cfg       Config
	providers []Provider
	recent    *cache.Cache
	metrics   *metrics.NotificationMetrics
	log       logger.Logger
}

// NewService validates the enabled providers and builds the service.
// m may be nil.
func NewService(cfg Config, m *metrics.NotificationMetrics, providers ...Provider) (*Service, error) {
	defaults := DefaultConfig()
	if cfg.MinType == "" {
		cfg.MinType = defaults.MinType
	}
	if cfg.DedupeWindow <= 0 {
		cfg.DedupeWindow = defaults.DedupeWindow
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaults.SendTimeout
	}

	enabled := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p == nil || !p.IsEnabled() {
			continue
		}
		if err := p.ValidateConfig(); err != nil {
			return nil, errors.New(err).
				Component("notification").
				Category(errors.CategoryConfiguration).
				Context("provider", p.GetName()).
				Build()
		}
		enabled = append(enabled, p)
	}

	return &Service{
		cfg:       cfg,
		providers: enabled,
		recent:    cache.New(cfg.DedupeWindow, 2*cfg.DedupeWindow),
		metrics:   m,
		log:       logger.Global().Module("notification"),
	}, nil
}

// Name implements events.EventConsumer.
func (s *Service) Name() string { return "notification" }

// Providers returns the number of active providers.
func (s *Service) Providers() int { return len(s.providers) }

// ProcessEvent implements events.EventConsumer.
func (s *Service) ProcessEvent(e events.Event) error {
	n, ok := FromEvent(e)
	if !ok {
		return nil
	}
	return s.Send(n)
}

// Send delivers n to every provider that accepts its type. Duplicates of
// a recently sent notification are suppressed.
func (s *Service) Send(n *Notification) error {
	if n.Type.severity() < s.cfg.MinType.severity() {
		return nil
	}

	key := fmt.Sprintf("%s|%s|%s", n.Type, n.Title, n.Message)
	if err := s.recent.Add(key, struct{}{}, cache.DefaultExpiration); err != nil {
		s.log.Debug("suppressing duplicate notification", logger.String("title", n.Title))
		if s.metrics != nil {
			s.metrics.Suppressed.Inc()
		}
		return nil
	}

	var errs []error
	for _, p := range s.providers {
		if !p.SupportsType(n.Type) {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SendTimeout)
		start := time.Now()
		err := p.Send(ctx, n)
		cancel()
		if s.metrics != nil {
			s.metrics.RecordDelivery(p.GetName(), err, time.Since(start))
		}
		if err != nil {
			s.log.Warn("notification delivery failed",
				logger.String("provider", p.GetName()),
				logger.Error(err))
			errs = append(errs, errors.New(err).
				Component("notification").
				Category(errors.CategoryNotifyPush).
				Priority(errors.PriorityLow).
				Context("provider", p.GetName()).
				Build())
		}
	}
	return errors.Join(errs...)
}
