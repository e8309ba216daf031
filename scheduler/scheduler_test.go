package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siamcircuit/tournament-ops/config"
	"github.com/siamcircuit/tournament-ops/models"
	"github.com/siamcircuit/tournament-ops/repositories"
	"github.com/siamcircuit/tournament-ops/services"
)

type fakeStateRepo struct {
	states map[string]*models.MatchState
}

func newFakeStateRepo() *fakeStateRepo {
	return &fakeStateRepo{states: make(map[string]*models.MatchState)}
}

func (r *fakeStateRepo) get(id string) *models.MatchState {
	state, ok := r.states[id]
	if !ok {
		state = &models.MatchState{BracketMatchID: id, Status: models.MatchStatusScheduled}
		r.states[id] = state
	}
	return state
}

func (r *fakeStateRepo) UpsertResult(_ context.Context, id string, side models.Side, proofURL string) error {
	if existing, ok := r.states[id]; ok && existing.Status == models.MatchStatusCompleted {
		return repositories.ErrMatchCompleted
	}
	state := r.get(id)
	state.Status = models.MatchStatusAwaitingProof
	state.Result = &side
	if side == models.SideA {
		state.ProofURLA = &proofURL
	} else {
		state.ProofURLB = &proofURL
	}
	return nil
}

func (r *fakeStateRepo) UpsertProof(_ context.Context, id string, side models.Side, proofURL string) error {
	state := r.get(id)
	if side == models.SideA {
		state.ProofURLA = &proofURL
	} else {
		state.ProofURLB = &proofURL
	}
	return nil
}

func (r *fakeStateRepo) UpsertSchedule(_ context.Context, id string, scheduledAt time.Time) error {
	r.get(id).ScheduledAt = &scheduledAt
	return nil
}

func (r *fakeStateRepo) BindResultChannel(_ context.Context, id, channelID string) (string, error) {
	state := r.get(id)
	if state.ResultChannelID == nil {
		state.ResultChannelID = &channelID
	}
	return *state.ResultChannelID, nil
}

func (r *fakeStateRepo) MarkAnnounced(_ context.Context, id string, at time.Time) error {
	state := r.get(id)
	if state.AnnouncedAt == nil {
		state.AnnouncedAt = &at
	}
	return nil
}

func (r *fakeStateRepo) SetStatus(_ context.Context, id string, status models.MatchStatus) error {
	r.get(id).Status = status
	return nil
}

func (r *fakeStateRepo) GetByBracketMatchID(_ context.Context, id string) (*models.MatchState, error) {
	state, ok := r.states[id]
	if !ok {
		return nil, repositories.ErrMatchStateNotFound
	}
	copied := *state
	return &copied, nil
}

func (r *fakeStateRepo) GetByResultChannelID(_ context.Context, channelID string) (*models.MatchState, error) {
	for _, state := range r.states {
		if state.ResultChannelID != nil && *state.ResultChannelID == channelID {
			copied := *state
			return &copied, nil
		}
	}
	return nil, repositories.ErrMatchStateNotFound
}

func (r *fakeStateRepo) ListByBracketMatchIDs(_ context.Context, ids []string) (map[string]*models.MatchState, error) {
	result := make(map[string]*models.MatchState, len(ids))
	for _, id := range ids {
		if state, ok := r.states[id]; ok {
			copied := *state
			result[id] = &copied
		}
	}
	return result, nil
}

func (r *fakeStateRepo) ListUpcoming(_ context.Context, _ time.Time, _ int) ([]*models.MatchState, error) {
	return nil, nil
}

type fakeTeamRepo struct {
	teams []*models.Team
}

func (r *fakeTeamRepo) Create(_ context.Context, _ *models.Team) error           { return nil }
func (r *fakeTeamRepo) GetByName(_ context.Context, _ string) (*models.Team, error) {
	return nil, repositories.ErrTeamNotFound
}
func (r *fakeTeamRepo) List(_ context.Context, _ int) ([]*models.Team, error) { return r.teams, nil }
func (r *fakeTeamRepo) SetParticipantID(_ context.Context, _ int, _ string) error { return nil }
func (r *fakeTeamRepo) UpdateLogo(_ context.Context, _ int, _ string) error       { return nil }
func (r *fakeTeamRepo) UpdateRoster(_ context.Context, _ int, _ []string) error   { return nil }

func (r *fakeTeamRepo) GetByID(_ context.Context, id int) (*models.Team, error) {
	for _, t := range r.teams {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, repositories.ErrTeamNotFound
}

func (r *fakeTeamRepo) ListByParticipantIDs(_ context.Context, participantIDs []string) ([]*models.Team, error) {
	wanted := make(map[string]bool, len(participantIDs))
	for _, id := range participantIDs {
		wanted[id] = true
	}
	matched := make([]*models.Team, 0)
	for _, t := range r.teams {
		if t.ChallongeParticipantID != nil && wanted[*t.ChallongeParticipantID] {
			matched = append(matched, t)
		}
	}
	return matched, nil
}

type fakeBracket struct {
	matches []models.BracketMatch
}

func (c *fakeBracket) ListMatches(_ context.Context) ([]models.BracketMatch, error) {
	return c.matches, nil
}

func (c *fakeBracket) GetMatch(_ context.Context, matchID string) (*models.BracketMatch, error) {
	for i := range c.matches {
		if c.matches[i].ID == matchID {
			copied := c.matches[i]
			return &copied, nil
		}
	}
	return nil, errors.New("match not found in bracket")
}

func (c *fakeBracket) CreateParticipant(_ context.Context, _ string) (string, error) {
	return "90001", nil
}

func (c *fakeBracket) SubmitWinner(_ context.Context, _, _ string) error { return nil }

type fakeAnnouncer struct {
	announcements []string
	posted        map[string][]string
	announceErr   error
}

func newFakeAnnouncer() *fakeAnnouncer {
	return &fakeAnnouncer{posted: make(map[string][]string)}
}

func (a *fakeAnnouncer) Announce(_ context.Context, text string) error {
	if a.announceErr != nil {
		return a.announceErr
	}
	a.announcements = append(a.announcements, text)
	return nil
}

func (a *fakeAnnouncer) PostMessage(_ context.Context, channelID, text string) error {
	a.posted[channelID] = append(a.posted[channelID], text)
	return nil
}

type fakeProvisioner struct {
	created []string
}

func (p *fakeProvisioner) CreateResultChannel(_ context.Context, matchID, _, _ string, _ []string) (string, error) {
	p.created = append(p.created, matchID)
	return "chan-" + matchID, nil
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		Interval:       time.Minute,
		AnnounceLead:   30 * time.Minute,
		AnnounceWindow: 30 * time.Second,
		Timezone:       "UTC",
	}
}

func newTestScheduler(t *testing.T, stateRepo *fakeStateRepo, teamRepo *fakeTeamRepo, bracket *fakeBracket, announcer *fakeAnnouncer, provisioner *fakeProvisioner, now time.Time) *Scheduler {
	t.Helper()

	matchService := services.NewMatchService(stateRepo, teamRepo, bracket, nil, testLogger())
	roundsService := services.NewBracketViewService(bracket, stateRepo, teamRepo)

	s, err := New(testConfig(), matchService, roundsService, bracket, stateRepo, teamRepo, announcer, provisioner, testLogger())
	require.NoError(t, err)
	s.now = func() time.Time { return now }
	return s
}

func pairedMatch(id string) models.BracketMatch {
	return models.BracketMatch{
		ID:           id,
		ParticipantA: strPtr("101"),
		ParticipantB: strPtr("102"),
		Round:        "Round 1",
	}
}

func twoTeams() *fakeTeamRepo {
	return &fakeTeamRepo{teams: []*models.Team{
		{ID: 1, Name: "Alpha", CaptainDiscordID: "111", ChallongeParticipantID: strPtr("101")},
		{ID: 2, Name: "Bravo", CaptainDiscordID: "222", ChallongeParticipantID: strPtr("102")},
	}}
}

func TestAnnouncePassWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)

	soon := pairedMatch("m1")
	soon.ScheduledAt = timePtr(now.Add(30 * time.Minute))

	later := pairedMatch("m2")
	later.ScheduledAt = timePtr(now.Add(5 * time.Hour))

	stateRepo := newFakeStateRepo()
	announcer := newFakeAnnouncer()
	s := newTestScheduler(t, stateRepo, twoTeams(), &fakeBracket{matches: []models.BracketMatch{soon, later}}, announcer, &fakeProvisioner{}, now)

	s.Tick(context.Background())

	require.Len(t, announcer.announcements, 1)
	assert.Contains(t, announcer.announcements[0], "Alpha vs Bravo")
	assert.Contains(t, announcer.announcements[0], "(Round 1)")
	assert.Contains(t, announcer.announcements[0], "เวลา 20:30 น.")
	require.NotNil(t, stateRepo.states["m1"].AnnouncedAt)

	// Тот же момент времени: отметка не даёт анонсировать повторно.
	s.Tick(context.Background())
	assert.Len(t, announcer.announcements, 1)
}

func TestAnnouncePassRetriesAfterFailure(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
	m := pairedMatch("m1")
	m.ScheduledAt = timePtr(now.Add(30 * time.Minute))

	stateRepo := newFakeStateRepo()
	announcer := newFakeAnnouncer()
	announcer.announceErr = errors.New("discord is down")
	s := newTestScheduler(t, stateRepo, twoTeams(), &fakeBracket{matches: []models.BracketMatch{m}}, announcer, &fakeProvisioner{}, now)

	s.Tick(context.Background())
	assert.Empty(t, announcer.announcements)
	// Отметка не поставлена, следующий тик попробует снова.
	if state, ok := stateRepo.states["m1"]; ok {
		assert.Nil(t, state.AnnouncedAt)
	}

	announcer.announceErr = nil
	s.Tick(context.Background())
	assert.Len(t, announcer.announcements, 1)
	require.NotNil(t, stateRepo.states["m1"].AnnouncedAt)
}

func TestAnnouncePassPrefersLocalSchedule(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)

	// Сетка знает старое время; локальная привязка переносит матч так,
	// что он попадает в окно анонса.
	m := pairedMatch("m1")
	m.ScheduledAt = timePtr(now.Add(6 * time.Hour))

	stateRepo := newFakeStateRepo()
	require.NoError(t, stateRepo.UpsertSchedule(context.Background(), "m1", now.Add(30*time.Minute)))

	announcer := newFakeAnnouncer()
	s := newTestScheduler(t, stateRepo, twoTeams(), &fakeBracket{matches: []models.BracketMatch{m}}, announcer, &fakeProvisioner{}, now)

	s.Tick(context.Background())
	assert.Len(t, announcer.announcements, 1)
}

func TestChannelPassIdempotent(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
	started := pairedMatch("m1")
	started.ScheduledAt = timePtr(now.Add(-time.Hour))

	stateRepo := newFakeStateRepo()
	announcer := newFakeAnnouncer()
	provisioner := &fakeProvisioner{}
	s := newTestScheduler(t, stateRepo, twoTeams(), &fakeBracket{matches: []models.BracketMatch{started}}, announcer, provisioner, now)

	s.Tick(context.Background())

	require.Equal(t, []string{"m1"}, provisioner.created)
	require.NotNil(t, stateRepo.states["m1"].ResultChannelID)
	assert.Equal(t, "chan-m1", *stateRepo.states["m1"].ResultChannelID)

	intro := announcer.posted["chan-m1"]
	require.Len(t, intro, 1)
	assert.Contains(t, intro[0], "match #m1")
	assert.Contains(t, intro[0], "<@111>")
	assert.Contains(t, intro[0], "<@222>")

	// Канал уже привязан, второй тик ничего не создаёт.
	s.Tick(context.Background())
	assert.Equal(t, []string{"m1"}, provisioner.created)
}

func TestReconcilePass(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
	decided := pairedMatch("m1")
	decided.WinnerID = strPtr("101")

	stateRepo := newFakeStateRepo()
	require.NoError(t, stateRepo.UpsertResult(context.Background(), "m1", models.SideB, "https://img.example/b.png"))
	require.Equal(t, models.MatchStatusAwaitingProof, stateRepo.states["m1"].Status)

	s := newTestScheduler(t, stateRepo, twoTeams(), &fakeBracket{matches: []models.BracketMatch{decided}}, newFakeAnnouncer(), &fakeProvisioner{}, now)

	s.Tick(context.Background())
	assert.Equal(t, models.MatchStatusCompleted, stateRepo.states["m1"].Status)

	// Матчи без локального состояния сверка не заводит.
	assert.NotContains(t, stateRepo.states, "m2")
}

func TestPropagateResult(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)

	final := pairedMatch("m1")
	final.WinnerID = strPtr("101")

	next := models.BracketMatch{
		ID:           "m9",
		Round:        "Round 2",
		PrereqMatchA: strPtr("m1"),
		PrereqMatchB: strPtr("m2"),
		ScheduledAt:  timePtr(now.Add(24 * time.Hour)),
	}

	stateRepo := newFakeStateRepo()
	require.NoError(t, stateRepo.UpsertResult(context.Background(), "m1", models.SideA, "https://img.example/a.png"))
	require.NoError(t, stateRepo.SetStatus(context.Background(), "m1", models.MatchStatusCompleted))

	announcer := newFakeAnnouncer()
	s := newTestScheduler(t, stateRepo, twoTeams(), &fakeBracket{matches: []models.BracketMatch{final, next}}, announcer, &fakeProvisioner{}, now)

	s.PropagateResult(context.Background(), "m1")

	require.Len(t, announcer.announcements, 2)
	assert.Equal(t, "🏆 Alpha defeats Bravo in Round 1!", announcer.announcements[0])

	// В блоке следующего раунда плейсхолдер победителя заменён именем,
	// вторая сторона ещё не известна.
	block := announcer.announcements[1]
	assert.Contains(t, block, "(Round 2)")
	assert.Contains(t, block, "Alpha vs Winner of Match #m2")
}

func TestFormatMatchBlockTimezone(t *testing.T) {
	t.Parallel()

	s := &Scheduler{location: time.FixedZone("ICT", 7*3600)}
	at := time.Date(2026, 3, 14, 13, 30, 0, 0, time.UTC) // 20:30 ICT

	block := s.formatMatchBlock("Round 1", at, "Alpha", "Bravo")
	lines := strings.Split(block, "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "------------------ (Round 1) teams 14/03/2026 ------------------", lines[0])
	assert.Equal(t, "Alpha vs Bravo", lines[1])
	assert.Equal(t, "เวลา 20:30 น.", lines[2])
}
