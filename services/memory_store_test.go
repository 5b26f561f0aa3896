package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"challenge-scoring-api/models"
)

// memState is the data behind memoryStore. clone gives transactions a
// snapshot to restore on failure.
type memState struct {
	applicants   map[int]models.Applicant
	businesses   map[int]models.Business
	applications map[int]models.Application
	users        map[int]models.User
	configs      map[int]models.ScoringConfiguration
	activeID     int
	results      map[int]models.EligibilityResult
	scores       map[[3]int]models.ApplicationScore
	history      []models.EvaluationHistory
	assignments  map[[2]int]models.EvaluatorAssignment
	nextID       int
}

func newMemState() *memState {
	return &memState{
		applicants:   make(map[int]models.Applicant),
		businesses:   make(map[int]models.Business),
		applications: make(map[int]models.Application),
		users:        make(map[int]models.User),
		configs:      make(map[int]models.ScoringConfiguration),
		results:      make(map[int]models.EligibilityResult),
		scores:       make(map[[3]int]models.ApplicationScore),
		assignments:  make(map[[2]int]models.EvaluatorAssignment),
		nextID:       1000,
	}
}

func (st *memState) clone() *memState {
	c := newMemState()
	for k, v := range st.applicants {
		c.applicants[k] = v
	}
	for k, v := range st.businesses {
		c.businesses[k] = v
	}
	for k, v := range st.applications {
		c.applications[k] = v
	}
	for k, v := range st.users {
		c.users[k] = v
	}
	for k, v := range st.configs {
		c.configs[k] = v
	}
	for k, v := range st.results {
		c.results[k] = v
	}
	for k, v := range st.scores {
		c.scores[k] = v
	}
	for k, v := range st.assignments {
		c.assignments[k] = v
	}
	c.history = append([]models.EvaluationHistory(nil), st.history...)
	c.activeID = st.activeID
	c.nextID = st.nextID
	return c
}

func (st *memState) id() int {
	st.nextID++
	return st.nextID
}

// memoryStore implements every store interface in memory. Transactions are
// serialised and rolled back on error. failHistory makes AppendHistory fail
// for the listed applications; onAppend runs after each committed history
// row, outside the lock; snapshotErr makes LoadAnalyticsSnapshot fail.
type memoryStore struct {
	mu sync.Mutex
	st *memState

	failHistory map[int]error
	onAppend    func(applicationID int)
	snapshotErr error
	activations int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{st: newMemState(), failHistory: make(map[int]error)}
}

func (m *memoryStore) addUser(u models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.users[u.UserID] = u
}

// addApplication stores the application together with its applicant and
// business.
func (m *memoryStore) addApplication(app models.Application) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.applicants[app.Applicant.ApplicantID] = app.Applicant
	m.st.businesses[app.Business.BusinessID] = app.Business
	app.ApplicantID = app.Applicant.ApplicantID
	app.BusinessID = app.Business.BusinessID
	m.st.applications[app.ApplicationID] = app
}

func (m *memoryStore) addConfiguration(cfg models.ScoringConfiguration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.configs[cfg.ID] = cfg
	if cfg.IsActive {
		m.st.activeID = cfg.ID
	}
}

func (m *memoryStore) result(applicationID int) (models.EligibilityResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.st.results[applicationID]
	return r, ok
}

func (m *memoryStore) setResult(r models.EligibilityResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == 0 {
		r.ID = m.st.id()
	}
	m.st.results[r.ApplicationID] = r
}

func (m *memoryStore) historyOf(applicationID int) []models.EvaluationHistory {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.listHistory(applicationID)
}

// ---- RecordStore ----

func (m *memoryStore) GetApplicant(_ context.Context, applicantID int) (*models.Applicant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.st.applicants[applicantID]
	if !ok {
		return nil, notFoundError("applicant", applicantID)
	}
	return &a, nil
}

func (m *memoryStore) GetApplication(_ context.Context, applicationID int) (*models.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	app, ok := m.st.hydrated(applicationID)
	if !ok {
		return nil, notFoundError("application", applicationID)
	}
	return &app, nil
}

func (m *memoryStore) ListApplications(_ context.Context, filter ApplicationFilter) ([]models.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Application
	for _, id := range m.st.matching(filter) {
		app, _ := m.st.hydrated(id)
		out = append(out, app)
	}
	return out, nil
}

func (m *memoryStore) ListApplicationIDs(_ context.Context, filter ApplicationFilter) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.matching(filter), nil
}

func (m *memoryStore) CreateApplication(_ context.Context, app *models.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.st.applications {
		if existing.ApplicantID == app.ApplicantID {
			return conflictError("applicant_id", "applicant %d already has an application", app.ApplicantID)
		}
	}
	app.ApplicationID = m.st.id()
	m.st.applications[app.ApplicationID] = *app
	return nil
}

func (m *memoryStore) GetUser(_ context.Context, userID int) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.st.users[userID]
	if !ok {
		return nil, notFoundError("user", userID)
	}
	return &u, nil
}

func (st *memState) hydrated(applicationID int) (models.Application, bool) {
	app, ok := st.applications[applicationID]
	if !ok {
		return app, false
	}
	app.Applicant = st.applicants[app.ApplicantID]
	app.Business = st.businesses[app.BusinessID]
	if r, ok := st.results[applicationID]; ok {
		app.EligibilityResult = &r
	}
	return app, true
}

func (st *memState) matching(filter ApplicationFilter) []int {
	wanted := make(map[int]bool, len(filter.ApplicationIDs))
	for _, id := range filter.ApplicationIDs {
		wanted[id] = true
	}
	var ids []int
	for id, app := range st.applications {
		if len(wanted) > 0 && !wanted[id] {
			continue
		}
		if len(filter.Statuses) > 0 {
			found := false
			for _, s := range filter.Statuses {
				found = found || s == app.Status
			}
			if !found {
				continue
			}
		}
		if filter.SubmittedOnly && app.SubmittedAt == nil {
			continue
		}
		if filter.SubmittedFrom != nil && (app.SubmittedAt == nil || app.SubmittedAt.Before(*filter.SubmittedFrom)) {
			continue
		}
		if filter.SubmittedTo != nil && (app.SubmittedAt == nil || app.SubmittedAt.After(*filter.SubmittedTo)) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// ---- ConfigurationStore ----

func (m *memoryStore) GetConfiguration(_ context.Context, id int) (*models.ScoringConfiguration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.st.configs[id]
	if !ok {
		return nil, notFoundError("scoring_configuration", id)
	}
	return &cfg, nil
}

func (m *memoryStore) GetActiveConfiguration(ctx context.Context) (*models.ScoringConfiguration, error) {
	m.mu.Lock()
	id := m.st.activeID
	m.mu.Unlock()
	if id == 0 {
		return nil, &Error{Kind: KindNotFound, Field: "scoring_configuration", Message: "no active scoring configuration"}
	}
	return m.GetConfiguration(ctx, id)
}

func (m *memoryStore) ListConfigurations(context.Context) ([]models.ScoringConfiguration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ScoringConfiguration, 0, len(m.st.configs))
	for _, cfg := range m.st.configs {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryStore) NextVersion(_ context.Context, name string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	version := 0
	for _, cfg := range m.st.configs {
		if cfg.Name == name && cfg.Version > version {
			version = cfg.Version
		}
	}
	return version + 1, nil
}

func (m *memoryStore) CreateConfiguration(_ context.Context, cfg *models.ScoringConfiguration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg.ID = m.st.id()
	for i := range cfg.Criteria {
		cfg.Criteria[i].ID = m.st.id()
		cfg.Criteria[i].ConfigurationID = cfg.ID
	}
	m.st.configs[cfg.ID] = *cfg
	return nil
}

func (m *memoryStore) ActivateConfiguration(_ context.Context, id, _ int, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.st.configs[id]; !ok {
		return notFoundError("scoring_configuration", id)
	}
	for k, cfg := range m.st.configs {
		cfg.IsActive = k == id
		m.st.configs[k] = cfg
	}
	m.st.activeID = id
	m.activations++
	return nil
}

// ---- ResultStore ----

func (m *memoryStore) Transact(ctx context.Context, fn func(tx ResultStore) error) error {
	m.mu.Lock()
	snapshot := m.st.clone()
	tx := &memoryTx{store: m}
	err := fn(tx)
	if err != nil {
		m.st = snapshot
	}
	m.mu.Unlock()

	if err == nil && m.onAppend != nil {
		for _, id := range tx.appended {
			m.onAppend(id)
		}
	}
	return err
}

func (m *memoryStore) GetEligibilityResult(_ context.Context, applicationID int) (*models.EligibilityResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.st.results[applicationID]
	if !ok {
		return nil, notFoundError("eligibility_result", applicationID)
	}
	return &r, nil
}

func (m *memoryStore) LockEligibilityResult(ctx context.Context, applicationID int) (*models.EligibilityResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.lockResult(applicationID), nil
}

func (m *memoryStore) SaveEligibilityResult(_ context.Context, r *models.EligibilityResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.saveResult(r)
	return nil
}

func (m *memoryStore) ListApplicationScores(_ context.Context, applicationID, configID int) ([]models.ApplicationScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.listScores(applicationID, configID), nil
}

func (m *memoryStore) SaveApplicationScores(_ context.Context, scores []models.ApplicationScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.saveScores(scores)
	return nil
}

func (m *memoryStore) AppendHistory(_ context.Context, entry *models.EvaluationHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(entry)
}

func (m *memoryStore) ListHistory(_ context.Context, applicationID int) ([]models.EvaluationHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.listHistory(applicationID), nil
}

func (m *memoryStore) UpdateApplicationStatus(_ context.Context, applicationID int, status models.ApplicationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.updateStatus(applicationID, status)
}

func (m *memoryStore) GetAssignment(_ context.Context, applicationID, evaluatorID int) (*models.EvaluatorAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.assignment(applicationID, evaluatorID), nil
}

func (m *memoryStore) SaveAssignment(_ context.Context, a *models.EvaluatorAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.saveAssignment(a)
	return nil
}

func (m *memoryStore) appendLocked(entry *models.EvaluationHistory) error {
	if err := m.failHistory[entry.ApplicationID]; err != nil {
		return err
	}
	entry.ID = m.st.id()
	m.st.history = append(m.st.history, *entry)
	return nil
}

func (st *memState) lockResult(applicationID int) *models.EligibilityResult {
	r, ok := st.results[applicationID]
	if !ok {
		return nil
	}
	return &r
}

func (st *memState) saveResult(r *models.EligibilityResult) {
	if existing, ok := st.results[r.ApplicationID]; ok {
		r.ID = existing.ID
	} else if r.ID == 0 {
		r.ID = st.id()
	}
	st.results[r.ApplicationID] = *r
}

func (st *memState) listScores(applicationID, configID int) []models.ApplicationScore {
	var out []models.ApplicationScore
	for _, s := range st.scores {
		if s.ApplicationID == applicationID && s.ConfigurationID == configID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CriteriaID < out[j].CriteriaID })
	return out
}

func (st *memState) saveScores(scores []models.ApplicationScore) {
	for _, s := range scores {
		key := [3]int{s.ApplicationID, s.CriteriaID, s.ConfigurationID}
		if existing, ok := st.scores[key]; ok {
			s.ID = existing.ID
		} else {
			s.ID = st.id()
		}
		st.scores[key] = s
	}
}

func (st *memState) listHistory(applicationID int) []models.EvaluationHistory {
	var out []models.EvaluationHistory
	for _, h := range st.history {
		if h.ApplicationID == applicationID {
			out = append(out, h)
		}
	}
	return out
}

func (st *memState) updateStatus(applicationID int, status models.ApplicationStatus) error {
	app, ok := st.applications[applicationID]
	if !ok {
		return notFoundError("application", applicationID)
	}
	app.Status = status
	st.applications[applicationID] = app
	return nil
}

func (st *memState) assignment(applicationID, evaluatorID int) *models.EvaluatorAssignment {
	a, ok := st.assignments[[2]int{applicationID, evaluatorID}]
	if !ok {
		return nil
	}
	return &a
}

func (st *memState) saveAssignment(a *models.EvaluatorAssignment) {
	if a.ID == 0 {
		a.ID = st.id()
	}
	st.assignments[[2]int{a.ApplicationID, a.EvaluatorID}] = *a
}

// memoryTx is the store view handed to Transact callbacks. The store lock is
// already held.
type memoryTx struct {
	store    *memoryStore
	appended []int
}

func (tx *memoryTx) Transact(ctx context.Context, fn func(ResultStore) error) error {
	return fn(tx)
}

func (tx *memoryTx) GetEligibilityResult(_ context.Context, applicationID int) (*models.EligibilityResult, error) {
	r := tx.store.st.lockResult(applicationID)
	if r == nil {
		return nil, notFoundError("eligibility_result", applicationID)
	}
	return r, nil
}

func (tx *memoryTx) LockEligibilityResult(_ context.Context, applicationID int) (*models.EligibilityResult, error) {
	return tx.store.st.lockResult(applicationID), nil
}

func (tx *memoryTx) SaveEligibilityResult(_ context.Context, r *models.EligibilityResult) error {
	tx.store.st.saveResult(r)
	return nil
}

func (tx *memoryTx) ListApplicationScores(_ context.Context, applicationID, configID int) ([]models.ApplicationScore, error) {
	return tx.store.st.listScores(applicationID, configID), nil
}

func (tx *memoryTx) SaveApplicationScores(_ context.Context, scores []models.ApplicationScore) error {
	tx.store.st.saveScores(scores)
	return nil
}

func (tx *memoryTx) AppendHistory(_ context.Context, entry *models.EvaluationHistory) error {
	if err := tx.store.appendLocked(entry); err != nil {
		return err
	}
	tx.appended = append(tx.appended, entry.ApplicationID)
	return nil
}

func (tx *memoryTx) ListHistory(_ context.Context, applicationID int) ([]models.EvaluationHistory, error) {
	return tx.store.st.listHistory(applicationID), nil
}

func (tx *memoryTx) UpdateApplicationStatus(_ context.Context, applicationID int, status models.ApplicationStatus) error {
	return tx.store.st.updateStatus(applicationID, status)
}

func (tx *memoryTx) GetAssignment(_ context.Context, applicationID, evaluatorID int) (*models.EvaluatorAssignment, error) {
	return tx.store.st.assignment(applicationID, evaluatorID), nil
}

func (tx *memoryTx) SaveAssignment(_ context.Context, a *models.EvaluatorAssignment) error {
	tx.store.st.saveAssignment(a)
	return nil
}

// ---- AnalyticsStore ----

func (m *memoryStore) LoadAnalyticsSnapshot(_ context.Context, filter ApplicationFilter) (*AnalyticsSnapshot, error) {
	if m.snapshotErr != nil {
		return nil, m.snapshotErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := &AnalyticsSnapshot{}
	for _, id := range m.st.matching(filter) {
		app, _ := m.st.hydrated(id)
		snap.Applications = append(snap.Applications, app)
	}
	if cfg, ok := m.st.configs[m.st.activeID]; ok {
		snap.Active = &cfg
	}
	for _, s := range m.st.scores {
		snap.Scores = append(snap.Scores, s)
	}
	for _, a := range m.st.assignments {
		snap.Assignments = append(snap.Assignments, a)
	}
	for _, u := range m.st.users {
		if u.RoleID == models.RoleEvaluator {
			snap.Evaluators = append(snap.Evaluators, u)
		}
	}
	return snap, nil
}

var errStoreDown = errors.New("store unavailable")

// countingCache records calls and serves whatever was last Put.
type countingCache struct {
	mu          sync.Mutex
	reports     map[string]*AnalyticsReport
	gets        int
	puts        int
	invalidated int
}

func newCountingCache() *countingCache {
	return &countingCache{reports: make(map[string]*AnalyticsReport)}
}

func (c *countingCache) Get(_ context.Context, f AnalyticsFilter) (*AnalyticsReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	return c.reports[f.Country+"|"+f.Gender], nil
}

func (c *countingCache) Put(_ context.Context, f AnalyticsFilter, r *AnalyticsReport) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	c.reports[f.Country+"|"+f.Gender] = r
	return nil
}

func (c *countingCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated++
	c.reports = make(map[string]*AnalyticsReport)
	return nil
}
