package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ridewire/voice-engine/pkg/apperrors"
	"github.com/ridewire/voice-engine/pkg/config"
	"github.com/ridewire/voice-engine/pkg/logging"
	"github.com/ridewire/voice-engine/pkg/memory"
	"github.com/ridewire/voice-engine/pkg/models"
	"github.com/ridewire/voice-engine/pkg/phone"
)

// CrmClient is the dispatch CRM as seen by the lookup. Implementations probe
// every equivalent phone format themselves. FindCustomer distinguishes a
// clean miss (false, nil) from an unreachable CRM (error wrapping
// apperrors.ErrSourceDegraded) and from a miss where only some formats
// could be checked (error wrapping apperrors.ErrInconclusiveMiss).
type CrmClient interface {
	FindCustomer(ctx context.Context, phone string) (models.CrmCustomer, bool, error)
	GetAddressHistory(ctx context.Context, phone string) ([]models.CrmAddress, error)
	GetUpcomingTrips(ctx context.Context, phone string) ([]models.CrmTrip, error)
	CreateCustomer(ctx context.Context, phone, firstName, lastName string) (models.CrmCustomer, error)
}

// LookupService builds the customer context for an incoming call.
type LookupService interface {
	// Lookup fails only for an unresolvable phone. Every other failure
	// degrades the response.
	Lookup(ctx context.Context, req models.LookupRequest) (*models.LookupResponse, error)

	// Shutdown stops accepting decision recordings and waits for in-flight
	// ones to finish or ctx to end.
	Shutdown(ctx context.Context) error
}

// LookupDeps are the collaborators of the lookup service.
type LookupDeps struct {
	Memory      memory.Store
	CRM         CrmClient
	Selector    *GreetingSelector
	Situational *SituationalBuilder
	Recorders   []DecisionRecorder
	// Now defaults to time.Now.
	Now func() time.Time
}

type lookupService struct {
	memory      memory.Store
	crm         CrmClient
	selector    *GreetingSelector
	situational *SituationalBuilder
	recorders   []DecisionRecorder
	cfg         config.LookupConfig
	now         func() time.Time
	logger      *zap.Logger

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

func NewLookupService(deps LookupDeps, cfg config.LookupConfig, logger *zap.Logger) LookupService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &lookupService{
		memory:      deps.Memory,
		crm:         deps.CRM,
		selector:    deps.Selector,
		situational: deps.Situational,
		recorders:   deps.Recorders,
		cfg:         withLookupDefaults(cfg),
		now:         now,
		logger:      logger.Named("lookup-service"),
	}
}

var _ LookupService = (*lookupService)(nil)

func withLookupDefaults(cfg config.LookupConfig) config.LookupConfig {
	if cfg.MemoryTimeout <= 0 {
		cfg.MemoryTimeout = 2 * time.Second
	}
	if cfg.CRMTimeout <= 0 {
		cfg.CRMTimeout = 6 * time.Second
	}
	if cfg.CreateTimeout <= 0 {
		cfg.CreateTimeout = 3 * time.Second
	}
	if cfg.RecorderTimeout <= 0 {
		cfg.RecorderTimeout = 2 * time.Second
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 50
	}
	return cfg
}

// memoryResult is what the memory fetch produced.
type memoryResult struct {
	latest   *models.CallRecord
	history  []models.CallRecord
	degraded bool
}

// crmResult is what the CRM fetch produced.
type crmResult struct {
	customer  *models.CrmCustomer
	addresses []models.CrmAddress
	trips     []models.CrmTrip
	degraded  bool

	// inconclusive is a miss where some phone formats failed.
	inconclusive bool
}

func (s *lookupService) Lookup(ctx context.Context, req models.LookupRequest) (*models.LookupResponse, error) {
	start := s.now()

	canonical, err := phone.Resolve(req.Phone)
	if err != nil {
		return nil, err
	}
	logger := s.logger.With(
		zap.String("phone", logging.MaskPhone(canonical)),
		zap.String("request_id", logging.RequestID(ctx)))

	var mem memoryResult
	var crm crmResult

	// Neither fetch returns an error: failures degrade their source.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		mem = s.fetchMemory(gctx, canonical, logger)
		return nil
	})
	g.Go(func() error {
		crm = s.fetchCRM(gctx, canonical, logger)
		return nil
	})
	_ = g.Wait()

	var prefs *models.PreferenceSet
	if mem.latest != nil {
		prefs = AggregatePreferences(mem.history, PreferenceOptions{
			Window:           s.cfg.PreferenceWindow,
			PatternThreshold: s.cfg.PatternThreshold,
		})
	}

	profile := BuildProfile(ProfileInput{
		Phone:       canonical,
		Preferences: prefs,
		Customer:    crm.customer,
		Addresses:   crm.addresses,
		SpokenName:  req.Name,
	})

	if NeedsCustomerCreation(crm.customer != nil, crm.degraded || crm.inconclusive, req.Name) {
		s.createCustomer(ctx, canonical, req.Name, &profile, logger)
	}

	now := s.now()
	decision := s.selector.Select(GreetingInput{
		Profile:   profile,
		Latest:    mem.latest,
		Trips:     crm.trips,
		Addresses: crm.addresses,
		Now:       now,
	})

	var next *models.CrmTrip
	if trip, ok := s.selector.NextTrip(crm.trips, now); ok {
		next = &trip
	}
	decision.Situational = s.situational.Build(SituationalText(next, profile))

	resp := &models.LookupResponse{
		Profile:  profile,
		Memory:   s.memorySection(mem, prefs, now),
		CRM:      s.crmSection(crm, now),
		Greeting: decision,
	}
	if mem.degraded {
		resp.DegradedSources = append(resp.DegradedSources, models.SourceNameMemory)
	}
	if crm.degraded {
		resp.DegradedSources = append(resp.DegradedSources, models.SourceNameCRM)
	}

	duration := s.now().Sub(start)
	logger.Info("Customer context resolved",
		zap.String("scenario", string(decision.Scenario)),
		zap.String("language", decision.Language),
		zap.Bool("is_new_customer", profile.IsNewCustomer),
		zap.Strings("degraded_sources", resp.DegradedSources),
		zap.Duration("duration", duration))

	s.record(ctx, canonical, resp, duration)
	return resp, nil
}

func (s *lookupService) fetchMemory(ctx context.Context, canonical string, logger *zap.Logger) memoryResult {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.MemoryTimeout)
	defer cancel()

	var res memoryResult
	latest, found, err := s.memory.GetLatest(ctx, canonical)
	if err != nil {
		logger.Warn("Memory store unavailable", zap.Error(err))
		res.degraded = true
		return res
	}
	if !found {
		return res
	}
	res.latest = &latest

	history, err := s.memory.GetRecentHistory(ctx, canonical, s.cfg.HistoryLimit)
	if err != nil {
		logger.Warn("Memory history unavailable, using latest call only", zap.Error(err))
		res.degraded = true
	}
	if len(history) == 0 {
		history = []models.CallRecord{latest}
	}
	res.history = history
	return res
}

func (s *lookupService) fetchCRM(ctx context.Context, canonical string, logger *zap.Logger) crmResult {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CRMTimeout)
	defer cancel()

	var res crmResult
	customer, found, err := s.crm.FindCustomer(ctx, canonical)
	if errors.Is(err, apperrors.ErrInconclusiveMiss) {
		logger.Warn("CRM miss is inconclusive, customer creation skipped", zap.String("error", logging.SanitizeError(err)))
		res.inconclusive = true
		return res
	}
	if err != nil {
		logger.Warn("CRM unavailable", zap.String("error", logging.SanitizeError(err)))
		res.degraded = true
		return res
	}
	if !found {
		return res
	}
	res.customer = &customer

	// Addresses and trips are independent; a failure of either keeps the
	// customer and marks the CRM degraded.
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addresses, err := s.crm.GetAddressHistory(gctx, canonical)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			logger.Warn("CRM address history unavailable", zap.String("error", logging.SanitizeError(err)))
			res.degraded = true
			return nil
		}
		res.addresses = addresses
		return nil
	})
	g.Go(func() error {
		trips, err := s.crm.GetUpcomingTrips(gctx, canonical)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			logger.Warn("CRM trips unavailable", zap.String("error", logging.SanitizeError(err)))
			res.degraded = true
			return nil
		}
		res.trips = trips
		return nil
	})
	_ = g.Wait()

	if len(res.addresses) == 0 {
		res.addresses = customer.Addresses
	}
	if len(res.trips) == 0 {
		res.trips = customer.Trips
	}
	return res
}

func (s *lookupService) createCustomer(ctx context.Context, canonical, spokenName string, profile *models.CustomerProfile, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CreateTimeout)
	defer cancel()

	first, last := SplitSpokenName(spokenName)
	customer, err := s.crm.CreateCustomer(ctx, canonical, first, last)
	if err != nil {
		err = fmt.Errorf("%w: %w", apperrors.ErrCustomerCreateFailed, err)
		logger.Warn("Proceeding without CRM customer", zap.String("error", logging.SanitizeError(err)))
		return
	}
	ApplyCreatedCustomer(profile, customer)
}

func (s *lookupService) memorySection(mem memoryResult, prefs *models.PreferenceSet, now time.Time) models.MemorySection {
	section := models.MemorySection{
		HasMemory:   mem.latest != nil,
		Degraded:    mem.degraded,
		CallsFound:  len(mem.history),
		Preferences: prefs,
	}
	if r := mem.latest; r != nil {
		section.LastCall = &models.LastCallSummary{
			Timestamp:           r.Timestamp,
			MinutesAgo:          int(r.Age(now).Minutes()),
			Outcome:             r.Outcome,
			Behavior:            r.Behavior,
			WasDropped:          r.WasDropped,
			LastTripID:          r.LastTripID,
			ConversationState:   r.ConversationState,
			CollectedInfo:       r.CollectedInfo,
			TripDiscussion:      r.TripDiscussion,
			SpecialInstructions: r.SpecialInstructions,
			OperationalNotes:    r.OperationalNotes,
		}
		if r.LastPickup != nil {
			section.LastCall.LastPickup = r.LastPickup.Address
		}
		if r.LastDropoff != nil {
			section.LastCall.LastDropoff = r.LastDropoff.Address
		}
	}
	return section
}

func (s *lookupService) crmSection(crm crmResult, now time.Time) models.CrmSection {
	section := models.CrmSection{
		Found:    crm.customer != nil,
		Degraded: crm.degraded,
	}
	if crm.customer == nil {
		return section
	}
	section.CustomerID = crm.customer.ID
	if trip, ok := s.selector.ActiveTrip(crm.trips, now); ok {
		section.ActiveTrip = &trip
	}
	if primary, ok := models.PrimaryAddress(crm.addresses); ok {
		section.PrimaryAddress = &primary
	}
	for _, t := range crm.trips {
		if t.HasActiveStatus() && t.PickupTime.After(now) {
			section.UpcomingTrips++
		}
	}
	return section
}

// record hands the decision to every recorder on a tracked goroutine with
// its own deadline, detached from the request context.
func (s *lookupService) record(ctx context.Context, canonical string, resp *models.LookupResponse, duration time.Duration) {
	if len(s.recorders) == 0 {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()

	event := &models.GreetingAuditEvent{
		ID:              uuid.New(),
		RequestID:       logging.RequestID(ctx),
		PhoneMasked:     logging.MaskPhone(canonical),
		Scenario:        resp.Greeting.Scenario,
		Language:        resp.Greeting.Language,
		IsNewCustomer:   resp.Profile.IsNewCustomer,
		CreatedInCRM:    resp.Profile.CreatedInCRM,
		NameSource:      resp.Profile.PreferredNameSource,
		PickupSource:    resp.Profile.PreferredPickupAddressSource,
		DegradedSources: resp.DegradedSources,
		DurationMs:      int(duration.Milliseconds()),
		CreatedAt:       s.now().UTC(),
	}
	if id := resp.Profile.CrmCustomerID; id != "" {
		event.CrmCustomerID = &id
	}

	go func() {
		defer s.inflight.Done()

		rctx, cancel := context.WithTimeout(context.Background(), s.cfg.RecorderTimeout)
		defer cancel()

		for _, r := range s.recorders {
			if err := r.RecordDecision(rctx, canonical, event); err != nil {
				s.logger.Warn("Failed to record greeting decision",
					zap.String("recorder", r.Name()),
					zap.String("scenario", string(event.Scenario)),
					zap.String("error", logging.SanitizeError(err)))
			}
		}
	}()
}

func (s *lookupService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Join(errors.New("decision recorders still running"), ctx.Err())
	}
}
