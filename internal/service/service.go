package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"distress-detector/internal/alerting"
	"distress-detector/internal/market"
	"distress-detector/internal/scheduler"
	"distress-detector/internal/scoring"
	"distress-detector/internal/storage"
)

// ErrInvalidListing marks input rejected before any storage access.
var ErrInvalidListing = errors.New("invalid listing")

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid listing: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidListing
}

// Notifier is satisfied by *alerting.Dispatcher.
type Notifier interface {
	NotifyUsers(ctx context.Context, alert alerting.Alert, threshold float64) alerting.Report
}

// ListingInput is everything a client may supply for a new listing. The
// distress score is not part of it.
type ListingInput struct {
	Title       string
	Description string
	Location    string
	Price       decimal.Decimal
	Source      string
}

// ListingPatch carries the fields to change; nil leaves a field untouched.
type ListingPatch struct {
	Title       *string
	Description *string
	Location    *string
	Price       *decimal.Decimal
}

// Options configure the listing service.
type Options struct {
	Threshold     float64
	AlertsEnabled bool
	LockKey       int64
}

// Service scores, persists and announces listings.
type Service struct {
	engine   *scoring.Engine
	store    storage.ListingStore
	averages market.AverageProvider
	notifier Notifier
	sched    *scheduler.Scheduler
	locker   storage.AdvisoryLocker
	opts     Options
	logger   zerolog.Logger
}

// New constructs the listing service. notifier and sched may be nil.
func New(opts Options, engine *scoring.Engine, store storage.ListingStore, averages market.AverageProvider, notifier Notifier, sched *scheduler.Scheduler, logger zerolog.Logger) *Service {
	if engine == nil {
		engine = scoring.Default()
	}

	var locker storage.AdvisoryLocker
	if l, ok := store.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		engine:   engine,
		store:    store,
		averages: averages,
		notifier: notifier,
		sched:    sched,
		locker:   locker,
		opts:     opts,
		logger:   logger.With().Str("component", "listing_service").Logger(),
	}
}

// Create validates in, scores it against the current market average of its
// location, persists it and alerts subscribers when the score qualifies.
func (s *Service) Create(ctx context.Context, in ListingInput) (storage.Listing, error) {
	listing := storage.Listing{
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Location:    strings.TrimSpace(in.Location),
		Price:       in.Price,
		Source:      strings.ToLower(strings.TrimSpace(in.Source)),
	}
	if listing.Source == "" {
		listing.Source = storage.SourceManual
	}
	if err := validate(listing); err != nil {
		return storage.Listing{}, err
	}

	score, err := s.score(ctx, listing)
	if err != nil {
		return storage.Listing{}, err
	}
	listing.DistressScore = score

	created, err := s.store.CreateListing(ctx, listing)
	if err != nil {
		return storage.Listing{}, fmt.Errorf("create listing: %w", err)
	}

	s.invalidate(ctx, created.Location)
	s.logger.Info().
		Int64("listing_id", created.ID).
		Str("location", created.Location).
		Float64("score", created.DistressScore).
		Msg("listing created")

	s.notify(ctx, created)
	return created, nil
}

// Update applies patch to listing id and recomputes its score.
func (s *Service) Update(ctx context.Context, id int64, patch ListingPatch) (storage.Listing, error) {
	current, err := s.store.GetListing(ctx, id)
	if err != nil {
		return storage.Listing{}, fmt.Errorf("load listing %d: %w", id, err)
	}
	previousLocation := current.Location

	if patch.Title != nil {
		current.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		current.Description = *patch.Description
	}
	if patch.Location != nil {
		current.Location = strings.TrimSpace(*patch.Location)
	}
	if patch.Price != nil {
		current.Price = *patch.Price
	}
	if err := validate(current); err != nil {
		return storage.Listing{}, err
	}

	score, err := s.score(ctx, current)
	if err != nil {
		return storage.Listing{}, err
	}
	current.DistressScore = score

	updated, err := s.store.UpdateListing(ctx, current)
	if err != nil {
		return storage.Listing{}, fmt.Errorf("update listing %d: %w", id, err)
	}

	s.invalidate(ctx, previousLocation)
	if !strings.EqualFold(previousLocation, updated.Location) {
		s.invalidate(ctx, updated.Location)
	}
	s.logger.Info().
		Int64("listing_id", updated.ID).
		Float64("score", updated.DistressScore).
		Msg("listing updated")

	s.notify(ctx, updated)
	return updated, nil
}

// Explain reports how a hypothetical listing would be scored right now.
func (s *Service) Explain(ctx context.Context, price decimal.Decimal, description, location string) (scoring.Breakdown, error) {
	location = strings.TrimSpace(location)
	avg, err := s.marketAverage(ctx, location)
	if err != nil {
		return scoring.Breakdown{}, err
	}
	return s.engine.Explain(price, description, avg), nil
}

func (s *Service) score(ctx context.Context, listing storage.Listing) (float64, error) {
	avg, err := s.marketAverage(ctx, listing.Location)
	if err != nil {
		return 0, err
	}
	return s.engine.Calculate(listing.Price, listing.Description, avg), nil
}

func (s *Service) marketAverage(ctx context.Context, location string) (decimal.Decimal, error) {
	if s.averages == nil {
		return decimal.Zero, nil
	}
	avg, err := s.averages.MarketAverage(ctx, location)
	if err != nil {
		return decimal.Zero, fmt.Errorf("market average for %q: %w", location, err)
	}
	return avg, nil
}

func (s *Service) invalidate(ctx context.Context, location string) {
	if inv, ok := s.averages.(market.Invalidator); ok {
		inv.Invalidate(ctx, location)
	}
}

// notify never fails the caller; the dispatcher swallows delivery errors.
func (s *Service) notify(ctx context.Context, listing storage.Listing) alerting.Report {
	if !s.opts.AlertsEnabled || s.notifier == nil {
		return alerting.Report{}
	}
	return s.notifier.NotifyUsers(ctx, alerting.AlertFromListing(listing), s.opts.Threshold)
}

func validate(l storage.Listing) error {
	switch {
	case l.Title == "":
		return &ValidationError{Field: "title", Reason: "is required"}
	case l.Location == "":
		return &ValidationError{Field: "location", Reason: "is required"}
	}
	var numErr *scoring.InvalidNumberError
	if err := scoring.CheckAmount(l.Price); errors.As(err, &numErr) {
		return &ValidationError{Field: "price", Reason: numErr.Reason}
	}
	switch l.Source {
	case storage.SourceManual, storage.SourceCSV, storage.SourceAPI:
	default:
		return &ValidationError{Field: "source", Reason: fmt.Sprintf("%q is not one of manual, csv, api", l.Source)}
	}
	return nil
}

// Run begins the periodic rescore loop.
func (s *Service) Run(ctx context.Context) error {
	if s.sched == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.sched.Run(ctx, s.sweep)
}

func (s *Service) sweep(ctx context.Context, window time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("window", window).Msg("skip sweep because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	_, err = s.Rescore(ctx)
	return err
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.opts.LockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.opts.LockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
