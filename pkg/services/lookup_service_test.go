package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ridewire/voice-engine/pkg/apperrors"
	"github.com/ridewire/voice-engine/pkg/config"
	"github.com/ridewire/voice-engine/pkg/logging"
	"github.com/ridewire/voice-engine/pkg/models"
)

const testPhone = "+13035550100"

type fakeMemoryStore struct {
	mu         sync.Mutex
	records    map[string][]models.CallRecord // newest first
	latestErr  error
	historyErr error
	calls      int

	// block makes GetLatest wait for ctx to end.
	block bool
}

func newFakeMemoryStore(records ...models.CallRecord) *fakeMemoryStore {
	return &fakeMemoryStore{records: map[string][]models.CallRecord{testPhone: records}}
}

func (f *fakeMemoryStore) GetLatest(ctx context.Context, phone string) (models.CallRecord, bool, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return models.CallRecord{}, false, ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.latestErr != nil {
		return models.CallRecord{}, false, f.latestErr
	}
	records := f.records[phone]
	if len(records) == 0 {
		return models.CallRecord{}, false, nil
	}
	return records[0], true, nil
}

func (f *fakeMemoryStore) GetRecentHistory(ctx context.Context, phone string, limit int) ([]models.CallRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	records := f.records[phone]
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

type createCall struct {
	phone, first, last string
}

type fakeCrmClient struct {
	mu        sync.Mutex
	customer  *models.CrmCustomer
	findErr   error
	addresses []models.CrmAddress
	addrErr   error
	trips     []models.CrmTrip
	tripsErr  error
	created   models.CrmCustomer
	createErr error

	// blockFind makes FindCustomer wait for ctx to end.
	blockFind bool

	findPhones  []string
	createCalls []createCall
}

func (f *fakeCrmClient) FindCustomer(ctx context.Context, phone string) (models.CrmCustomer, bool, error) {
	f.mu.Lock()
	f.findPhones = append(f.findPhones, phone)
	block := f.blockFind
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return models.CrmCustomer{}, false, fmt.Errorf("%w: %w", apperrors.ErrSourceDegraded, ctx.Err())
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return models.CrmCustomer{}, false, f.findErr
	}
	if f.customer == nil {
		return models.CrmCustomer{}, false, nil
	}
	return *f.customer, true, nil
}

func (f *fakeCrmClient) GetAddressHistory(ctx context.Context, phone string) ([]models.CrmAddress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addresses, f.addrErr
}

func (f *fakeCrmClient) GetUpcomingTrips(ctx context.Context, phone string) ([]models.CrmTrip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.trips, f.tripsErr
}

func (f *fakeCrmClient) CreateCustomer(ctx context.Context, phone, firstName, lastName string) (models.CrmCustomer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls = append(f.createCalls, createCall{phone: phone, first: firstName, last: lastName})
	if f.createErr != nil {
		return models.CrmCustomer{}, f.createErr
	}
	return f.created, nil
}

type fakeRecorder struct {
	name    string
	err     error
	release chan struct{} // when set, RecordDecision blocks until closed

	mu     sync.Mutex
	events []*models.GreetingAuditEvent
	phones []string
}

func (f *fakeRecorder) Name() string { return f.name }

func (f *fakeRecorder) RecordDecision(ctx context.Context, canonicalPhone string, event *models.GreetingAuditEvent) error {
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	f.phones = append(f.phones, canonicalPhone)
	return f.err
}

func (f *fakeRecorder) recorded() []*models.GreetingAuditEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.GreetingAuditEvent(nil), f.events...)
}

func testLookupConfig() config.LookupConfig {
	return config.LookupConfig{
		MemoryTimeout:    time.Second,
		CRMTimeout:       time.Second,
		CreateTimeout:    time.Second,
		RecorderTimeout:  5 * time.Second,
		PreferenceWindow: 5,
		HistoryLimit:     50,
		PatternThreshold: 2,
	}
}

func newTestLookupService(t *testing.T, mem *fakeMemoryStore, crm *fakeCrmClient, recorders ...DecisionRecorder) LookupService {
	t.Helper()
	return newTestLookupServiceWithConfig(t, mem, crm, testLookupConfig(), recorders...)
}

func newTestLookupServiceWithConfig(t *testing.T, mem *fakeMemoryStore, crm *fakeCrmClient, cfg config.LookupConfig, recorders ...DecisionRecorder) LookupService {
	t.Helper()
	svc := NewLookupService(LookupDeps{
		Memory:      mem,
		CRM:         crm,
		Selector:    newTestSelector(),
		Situational: NewSituationalBuilder(testSituationalConfig()),
		Recorders:   recorders,
		Now:         func() time.Time { return testNow },
	}, cfg, zap.NewNop())
	t.Cleanup(func() {
		_ = svc.Shutdown(context.Background())
	})
	return svc
}

func TestLookup_PrimaryAddressFromCRM(t *testing.T) {
	crm := &fakeCrmClient{
		customer: &models.CrmCustomer{ID: "c-42", Phone: "3035550100", FirstName: "Alex", LastName: "Rivera"},
		addresses: []models.CrmAddress{
			{ID: "a-1", Formatted: "9 Elm Rd", UsageCount: 1},
			{ID: "a-2", Formatted: "456 Oak Ave", UsageCount: 3},
		},
	}
	svc := newTestLookupService(t, newFakeMemoryStore(), crm)

	resp, err := svc.Lookup(context.Background(), models.LookupRequest{Phone: "303-555-0100"})
	require.NoError(t, err)

	assert.Equal(t, []string{testPhone}, crm.findPhones)
	assert.Equal(t, testPhone, resp.Profile.Phone)
	assert.False(t, resp.Profile.IsNewCustomer)
	assert.Equal(t, "Alex", resp.Profile.PreferredName)
	assert.Equal(t, models.SourceCRM, resp.Profile.PreferredNameSource)
	assert.Equal(t, "456 Oak Ave", resp.Profile.PreferredPickupAddress)

	assert.Equal(t, models.ScenarioPrimaryAddress, resp.Greeting.Scenario)
	assert.Equal(t, "456 Oak Ave", resp.Greeting.ContextParams[models.ParamPrimaryAddress])
	assert.Equal(t, "Hi Alex! Would you like a pickup at 456 Oak Ave?", resp.Greeting.Text)

	assert.True(t, resp.CRM.Found)
	assert.Equal(t, "c-42", resp.CRM.CustomerID)
	require.NotNil(t, resp.CRM.PrimaryAddress)
	assert.Equal(t, 3, resp.CRM.PrimaryAddress.UsageCount)
	assert.False(t, resp.Memory.HasMemory)
	assert.Empty(t, resp.DegradedSources)
	assert.Empty(t, crm.createCalls)
}

func TestLookup_DroppedCallResumesBooking(t *testing.T) {
	mem := newFakeMemoryStore(call(0.5, func(r *models.CallRecord) {
		r.Outcome = models.OutcomeDroppedCall
		r.WasDropped = true
		r.ConversationState = "collecting_destination"
		r.CollectedInfo = &models.CollectedInfo{HasPickup: true, PickupAddress: "Airport"}
		r.Preferences.PreferredName = "Dana"
	}))
	svc := newTestLookupService(t, mem, &fakeCrmClient{})

	resp, err := svc.Lookup(context.Background(), models.LookupRequest{Phone: testPhone})
	require.NoError(t, err)

	assert.Equal(t, models.ScenarioDroppedCall, resp.Greeting.Scenario)
	assert.Equal(t, string(models.ResumeAskDestination), resp.Greeting.ContextParams[models.ParamResumeAction])
	assert.Contains(t, resp.Greeting.ContextParams[models.ParamResumeHint], "Airport")

	require.NotNil(t, resp.Memory.LastCall)
	assert.True(t, resp.Memory.LastCall.WasDropped)
	assert.Equal(t, 30, resp.Memory.LastCall.MinutesAgo)
	assert.Equal(t, 1, resp.Memory.CallsFound)
	assert.False(t, resp.Profile.IsNewCustomer)
}

func TestLookup_CRMDegradedStillGreetsFromMemory(t *testing.T) {
	mem := newFakeMemoryStore(call(24, withPrefs(models.CallPreferences{PreferredName: "Dana"})))
	crm := &fakeCrmClient{findErr: fmt.Errorf("%w: crm lookup failed for all 4 formats", apperrors.ErrSourceDegraded)}
	svc := newTestLookupService(t, mem, crm)

	resp, err := svc.Lookup(context.Background(), models.LookupRequest{Phone: testPhone, Name: "Dana"})
	require.NoError(t, err)

	assert.Equal(t, []string{models.SourceNameCRM}, resp.DegradedSources)
	assert.True(t, resp.CRM.Degraded)
	assert.False(t, resp.CRM.Found)
	assert.Equal(t, models.ScenarioKnownCustomer, resp.Greeting.Scenario)
	assert.Equal(t, "Dana", resp.Profile.PreferredName)
	assert.Equal(t, models.SourceMemory, resp.Profile.PreferredNameSource)
	assert.Empty(t, crm.createCalls, "a degraded CRM must not trigger creation")
}

func TestLookup_BothSourcesDegraded(t *testing.T) {
	mem := newFakeMemoryStore()
	mem.latestErr = errors.New("dial tcp: connection refused")
	crm := &fakeCrmClient{findErr: apperrors.ErrSourceDegraded}
	svc := newTestLookupService(t, mem, crm)

	resp, err := svc.Lookup(context.Background(), models.LookupRequest{Phone: testPhone, Name: "Sam"})
	require.NoError(t, err)

	assert.Equal(t, []string{models.SourceNameMemory, models.SourceNameCRM}, resp.DegradedSources)
	assert.True(t, resp.Profile.IsNewCustomer)
	assert.Equal(t, models.ScenarioKnownCustomer, resp.Greeting.Scenario)
	assert.Equal(t, models.SourceCaller, resp.Profile.PreferredNameSource)
	assert.Empty(t, crm.createCalls)
}

func TestLookup_MemoryTimeoutDegradesMemoryOnly(t *testing.T) {
	mem := newFakeMemoryStore()
	mem.block = true
	crm := &fakeCrmClient{
		customer:  &models.CrmCustomer{ID: "c-42", FirstName: "Alex"},
		addresses: []models.CrmAddress{{ID: "a-1", Formatted: "456 Oak Ave", UsageCount: 3}},
	}
	cfg := testLookupConfig()
	cfg.MemoryTimeout = 50 * time.Millisecond
	svc := newTestLookupServiceWithConfig(t, mem, crm, cfg)

	start := time.Now()
	resp, err := svc.Lookup(context.Background(), models.LookupRequest{Phone: testPhone})
	elapsed := time.Since(start)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, 750*time.Millisecond)
	assert.Equal(t, []string{models.SourceNameMemory}, resp.DegradedSources)
	assert.True(t, resp.Memory.Degraded)
	assert.False(t, resp.Memory.HasMemory)
	assert.False(t, resp.CRM.Degraded)
	assert.Equal(t, models.ScenarioPrimaryAddress, resp.Greeting.Scenario)
	assert.Equal(t, "Hi Alex! Would you like a pickup at 456 Oak Ave?", resp.Greeting.Text)
}

func TestLookup_CRMTimeoutDegradesCRMOnly(t *testing.T) {
	mem := newFakeMemoryStore(call(24, withPrefs(models.CallPreferences{PreferredName: "Dana"})))
	crm := &fakeCrmClient{blockFind: true}
	cfg := testLookupConfig()
	cfg.CRMTimeout = 50 * time.Millisecond
	svc := newTestLookupServiceWithConfig(t, mem, crm, cfg)

	start := time.Now()
	resp, err := svc.Lookup(context.Background(), models.LookupRequest{Phone: testPhone, Name: "Dana"})
	elapsed := time.Since(start)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, 750*time.Millisecond)
	assert.Equal(t, []string{models.SourceNameCRM}, resp.DegradedSources)
	assert.True(t, resp.CRM.Degraded)
	assert.False(t, resp.CRM.Found)
	assert.False(t, resp.Memory.Degraded)
	assert.Equal(t, models.ScenarioKnownCustomer, resp.Greeting.Scenario)
	assert.Equal(t, "Hi Dana! Where can we take you today?", resp.Greeting.Text)
	assert.Empty(t, crm.createCalls)
}

func TestLookup_InconclusiveCRMMissSkipsCreation(t *testing.T) {
	crm := &fakeCrmClient{
		findErr: fmt.Errorf("%w: crm find customer: 1 of 4 formats failed", apperrors.ErrInconclusiveMiss),
	}
	svc := newTestLookupService(t, newFakeMemoryStore(), crm)

	resp, err := svc.Lookup(context.Background(), models.LookupRequest{Phone: testPhone, Name: "Sam"})
	require.NoError(t, err)

	assert.Empty(t, crm.createCalls)
	assert.Empty(t, resp.DegradedSources)
	assert.False(t, resp.CRM.Found)
	assert.False(t, resp.CRM.Degraded)
	assert.False(t, resp.Profile.CreatedInCRM)
	assert.Equal(t, "Sam", resp.Profile.PreferredName)
	assert.Equal(t, models.SourceCaller, resp.Profile.PreferredNameSource)
	assert.Equal(t, models.ScenarioKnownCustomer, resp.Greeting.Scenario)
}

func TestLookup_DegradedCRMNewCallerCarriesDegradedFlag(t *testing.T) {
	crm := &fakeCrmClient{findErr: apperrors.ErrSourceDegraded}
	svc := newTestLookupService(t, newFakeMemoryStore(), crm)

	resp, err := svc.Lookup(context.Background(), models.LookupRequest{Phone: testPhone})
	require.NoError(t, err)

	// is_new_customer only reflects what was matched; crm.degraded says the
	// CRM never answered.
	assert.True(t, resp.Profile.IsNewCustomer)
	assert.True(t, resp.CRM.Degraded)
	assert.False(t, resp.CRM.Found)
	assert.Equal(t, []string{models.SourceNameCRM}, resp.DegradedSources)
	assert.Equal(t, models.ScenarioNewCustomer, resp.Greeting.Scenario)
}

func TestLookup_NewCallerWithoutName(t *testing.T) {
	crm := &fakeCrmClient{}
	svc := newTestLookupService(t, newFakeMemoryStore(), crm)

	resp, err := svc.Lookup(context.Background(), models.LookupRequest{Phone: testPhone})
	require.NoError(t, err)

	assert.True(t, resp.Profile.IsNewCustomer)
	assert.Equal(t, models.ScenarioNewCustomer, resp.Greeting.Scenario)
	assert.Equal(t, "english", resp.Greeting.Language)
	assert.Empty(t, resp.DegradedSources)
	assert.Empty(t, crm.createCalls)
}

func TestLookup_CreatesCustomerForNamedNewCaller(t *testing.T) {
	crm := &fakeCrmClient{created: models.CrmCustomer{ID: "c-new", FirstName: "Sam", LastName: "Lee"}}
	svc := newTestLookupService(t, newFakeMemoryStore(), crm)

	resp, err := svc.Lookup(context.Background(), models.LookupRequest{Phone: testPhone, Name: "Sam Lee"})
	require.NoError(t, err)

	require.Len(t, crm.createCalls, 1)
	assert.Equal(t, createCall{phone: testPhone, first: "Sam", last: "Lee"}, crm.createCalls[0])
	assert.True(t, resp.Profile.CreatedInCRM)
	assert.True(t, resp.Profile.IsNewCustomer)
	assert.Equal(t, "c-new", resp.Profile.CrmCustomerID)
	assert.Equal(t, models.SourceCRM, resp.Profile.PreferredNameSource)
	assert.Equal(t, models.ScenarioKnownCustomer, resp.Greeting.Scenario)
	assert.Equal(t, "Hi Sam! Where can we take you today?", resp.Greeting.Text)
}

func TestLookup_CreateFailureStillGreets(t *testing.T) {
	crm := &fakeCrmClient{createErr: errors.New("crm returned 500")}
	svc := newTestLookupService(t, newFakeMemoryStore(), crm)

	resp, err := svc.Lookup(context.Background(), models.LookupRequest{Phone: testPhone, Name: "Sam"})
	require.NoError(t, err)

	assert.Len(t, crm.createCalls, 1)
	assert.False(t, resp.Profile.CreatedInCRM)
	assert.Empty(t, resp.Profile.CrmCustomerID)
	assert.Equal(t, "Sam", resp.Profile.PreferredName)
	assert.Equal(t, models.SourceCaller, resp.Profile.PreferredNameSource)
	assert.Equal(t, models.ScenarioKnownCustomer, resp.Greeting.Scenario)
	assert.Empty(t, resp.DegradedSources)
}

func TestLookup_UnresolvablePhone(t *testing.T) {
	mem := newFakeMemoryStore()
	crm := &fakeCrmClient{}
	svc := newTestLookupService(t, mem, crm)

	_, err := svc.Lookup(context.Background(), models.LookupRequest{Phone: "12-34"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnresolvablePhone)
	assert.Zero(t, mem.calls)
	assert.Empty(t, crm.findPhones)
}

func TestLookup_AddressFailureKeepsCustomer(t *testing.T) {
	crm := &fakeCrmClient{
		customer: &models.CrmCustomer{
			ID:        "c-1",
			Name:      "Alex Rivera",
			Addresses: []models.CrmAddress{{ID: "a-1", Formatted: "1 Embedded Way", UsageCount: 4}},
		},
		addrErr: fmt.Errorf("%w: crm addresses failed", apperrors.ErrSourceDegraded),
	}
	svc := newTestLookupService(t, newFakeMemoryStore(), crm)

	resp, err := svc.Lookup(context.Background(), models.LookupRequest{Phone: testPhone})
	require.NoError(t, err)

	assert.True(t, resp.CRM.Found)
	assert.True(t, resp.CRM.Degraded)
	assert.Equal(t, []string{models.SourceNameCRM}, resp.DegradedSources)
	assert.Equal(t, "Alex", resp.Profile.PreferredName)
	assert.Equal(t, models.ScenarioPrimaryAddress, resp.Greeting.Scenario)
	assert.Equal(t, "1 Embedded Way", resp.Greeting.ContextParams[models.ParamPrimaryAddress])
}

func TestLookup_HistoryFailureFallsBackToLatest(t *testing.T) {
	mem := newFakeMemoryStore(
		call(2, withPrefs(models.CallPreferences{PreferredName: "Dana", PreferredLanguage: "spanish"})),
		call(4, withPickup("A Street")),
	)
	mem.historyErr = errors.New("i/o timeout")
	svc := newTestLookupService(t, mem, &fakeCrmClient{})

	resp, err := svc.Lookup(context.Background(), models.LookupRequest{Phone: testPhone})
	require.NoError(t, err)

	assert.Equal(t, []string{models.SourceNameMemory}, resp.DegradedSources)
	assert.True(t, resp.Memory.HasMemory)
	assert.True(t, resp.Memory.Degraded)
	assert.Equal(t, 1, resp.Memory.CallsFound)
	assert.Equal(t, "spanish", resp.Greeting.Language)
	assert.Equal(t, "¡Hola Dana! ¿A dónde le llevamos hoy?", resp.Greeting.Text)
}

func TestLookup_NewerEnglishClearsOlderSpanish(t *testing.T) {
	mem := newFakeMemoryStore(
		call(1, withPrefs(models.CallPreferences{PreferredName: "Dana", PreferredLanguage: "english"})),
		call(48, withPrefs(models.CallPreferences{PreferredName: "Daniel", PreferredLanguage: "spanish"})),
	)
	svc := newTestLookupService(t, mem, &fakeCrmClient{})

	resp, err := svc.Lookup(context.Background(), models.LookupRequest{Phone: testPhone})
	require.NoError(t, err)

	assert.Equal(t, "english", resp.Profile.PreferredLanguage)
	assert.Equal(t, models.SourceMemory, resp.Profile.PreferredLanguageSource)
	assert.Equal(t, "english", resp.Greeting.Language)
	assert.Equal(t, "Dana", resp.Profile.PreferredName)
}

func TestLookup_PickupPatternBecomesPreferredAddress(t *testing.T) {
	mem := newFakeMemoryStore(
		call(1, withPickup("123 Main St"), withPrefs(models.CallPreferences{PreferredName: "Dana"})),
		call(30, withPickup("123 Main St")),
	)
	crm := &fakeCrmClient{
		customer:  &models.CrmCustomer{ID: "c-1", FirstName: "Dana"},
		addresses: []models.CrmAddress{{ID: "a-1", Formatted: "456 Oak Ave", UsageCount: 7}},
	}
	svc := newTestLookupService(t, mem, crm)

	resp, err := svc.Lookup(context.Background(), models.LookupRequest{Phone: testPhone})
	require.NoError(t, err)

	assert.Equal(t, models.ScenarioPreferredAddress, resp.Greeting.Scenario)
	assert.Equal(t, "123 Main St", resp.Profile.PreferredPickupAddress)
	assert.Equal(t, models.SourceMemory, resp.Profile.PreferredPickupAddressSource)
	require.NotNil(t, resp.Memory.Preferences)
	assert.Equal(t, models.PickupDerivedPattern, resp.Memory.Preferences.PickupDerivation)
}

func TestLookup_ActiveTripWithSituationalHints(t *testing.T) {
	crm := &fakeCrmClient{
		customer: &models.CrmCustomer{ID: "c-1", FirstName: "Alex"},
		trips: []models.CrmTrip{
			trip("t-1", "confirmed", 25*time.Minute, "Denver International Airport"),
			trip("t-2", "booked", 72*time.Hour, "Vail"),
			trip("t-0", "completed", -3*time.Hour, "Home"),
		},
	}
	svc := newTestLookupService(t, newFakeMemoryStore(), crm)

	resp, err := svc.Lookup(context.Background(), models.LookupRequest{Phone: testPhone})
	require.NoError(t, err)

	assert.Equal(t, models.ScenarioActiveTrip, resp.Greeting.Scenario)
	assert.Equal(t, "t-1", resp.Greeting.ContextParams[models.ParamTripID])
	assert.True(t, resp.Greeting.Situational.Luggage)
	assert.False(t, resp.Greeting.Situational.SkiEquipment)
	assert.Equal(t, "Denver International Airport", resp.Greeting.Situational.BasedOn)

	require.NotNil(t, resp.CRM.ActiveTrip)
	assert.Equal(t, "t-1", resp.CRM.ActiveTrip.ID)
	assert.Equal(t, 2, resp.CRM.UpcomingTrips)
}

func TestLookup_RecordsDecision(t *testing.T) {
	audit := &fakeRecorder{name: "audit"}
	published := &fakeRecorder{name: "events"}
	crm := &fakeCrmClient{customer: &models.CrmCustomer{ID: "c-42", FirstName: "Alex"}}
	svc := newTestLookupService(t, newFakeMemoryStore(), crm, audit, published)

	ctx := logging.WithRequestID(context.Background(), "req-123")
	resp, err := svc.Lookup(ctx, models.LookupRequest{Phone: testPhone})
	require.NoError(t, err)
	require.NoError(t, svc.Shutdown(context.Background()))

	events := audit.recorded()
	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, "req-123", e.RequestID)
	assert.Equal(t, "+*******0100", e.PhoneMasked)
	assert.Equal(t, resp.Greeting.Scenario, e.Scenario)
	assert.Equal(t, "english", e.Language)
	require.NotNil(t, e.CrmCustomerID)
	assert.Equal(t, "c-42", *e.CrmCustomerID)
	assert.Equal(t, models.SourceCRM, e.NameSource)
	assert.Equal(t, []string{testPhone}, audit.phones)

	other := published.recorded()
	require.Len(t, other, 1)
	assert.Equal(t, e.ID, other[0].ID)
}

func TestLookup_RecorderFailureIsNotReturned(t *testing.T) {
	rec := &fakeRecorder{name: "audit", err: errors.New("relation does not exist")}
	svc := newTestLookupService(t, newFakeMemoryStore(), &fakeCrmClient{}, rec)

	_, err := svc.Lookup(context.Background(), models.LookupRequest{Phone: testPhone})
	require.NoError(t, err)
	require.NoError(t, svc.Shutdown(context.Background()))
	assert.Len(t, rec.recorded(), 1)
}

func TestShutdown_WaitsForRecorders(t *testing.T) {
	rec := &fakeRecorder{name: "slow", release: make(chan struct{})}
	svc := newTestLookupService(t, newFakeMemoryStore(), &fakeCrmClient{}, rec)

	_, err := svc.Lookup(context.Background(), models.LookupRequest{Phone: testPhone})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = svc.Shutdown(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(rec.release)
	require.NoError(t, svc.Shutdown(context.Background()))
	assert.Len(t, rec.recorded(), 1)

	// no recording after shutdown
	_, err = svc.Lookup(context.Background(), models.LookupRequest{Phone: testPhone})
	require.NoError(t, err)
	require.NoError(t, svc.Shutdown(context.Background()))
	assert.Len(t, rec.recorded(), 1)
}
