package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siamcircuit/tournament-ops/models"
)

func TestRoundsMergesLocalState(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
	teamRepo := &fakeTeamRepo{teams: []*models.Team{
		{ID: 1, Name: "Alpha", ChallongeParticipantID: strPtr("101")},
		{ID: 2, Name: "Bravo", ChallongeParticipantID: strPtr("102")},
	}}

	m1 := bracketPair("m1")
	m1.ScheduledAt = timePtr(now)

	m2 := models.BracketMatch{
		ID:           "m2",
		Round:        "Round 2",
		PrereqMatchA: strPtr("m1"),
		ParticipantB: strPtr("103"),
	}

	stateRepo := newFakeMatchStateRepo()
	require.NoError(t, stateRepo.UpsertResult(context.Background(), "m1", models.SideA, "https://img.example/a.png"))

	svc := NewBracketViewService(newFakeBracketClient(m1, m2), stateRepo, teamRepo)

	rounds, err := svc.Rounds(context.Background())
	require.NoError(t, err)
	require.Len(t, rounds, 2)

	round1 := rounds["Round 1"]
	require.Len(t, round1, 1)
	assert.Equal(t, "Alpha", round1[0].TeamA)
	assert.Equal(t, "Bravo", round1[0].TeamB)
	assert.Equal(t, models.MatchStatusAwaitingProof, round1[0].Status)
	require.NotNil(t, round1[0].Result)
	assert.Equal(t, models.SideA, *round1[0].Result)

	round2 := rounds["Round 2"]
	require.Len(t, round2, 1)
	// Пустой слот с известным предшественником показывается плейсхолдером,
	// нерезолвленный participant id — как есть.
	assert.Equal(t, "Winner of Match #m1", round2[0].TeamA)
	assert.Equal(t, "103", round2[0].TeamB)
	assert.Equal(t, models.MatchStatusScheduled, round2[0].Status)
}

func TestRoundsAuthorityOverridesLocalStatus(t *testing.T) {
	t.Parallel()

	decided := bracketPair("m1")
	decided.WinnerID = strPtr("101")

	stateRepo := newFakeMatchStateRepo()
	// Локально матч ещё в awaiting_proof, но сетка уже знает победителя.
	require.NoError(t, stateRepo.UpsertResult(context.Background(), "m1", models.SideA, "https://img.example/a.png"))

	svc := NewBracketViewService(newFakeBracketClient(decided), stateRepo, &fakeTeamRepo{})

	rounds, err := svc.Rounds(context.Background())
	require.NoError(t, err)
	require.Len(t, rounds["Round 1"], 1)
	assert.Equal(t, models.MatchStatusCompleted, rounds["Round 1"][0].Status)
}

func TestRoundsLocalScheduleWins(t *testing.T) {
	t.Parallel()

	authorityTime := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	localTime := time.Date(2026, 3, 15, 21, 0, 0, 0, time.UTC)

	m := bracketPair("m1")
	m.ScheduledAt = &authorityTime

	stateRepo := newFakeMatchStateRepo()
	require.NoError(t, stateRepo.UpsertSchedule(context.Background(), "m1", localTime))

	svc := NewBracketViewService(newFakeBracketClient(m), stateRepo, &fakeTeamRepo{})

	rounds, err := svc.Rounds(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rounds["Round 1"][0].Time)
	assert.True(t, rounds["Round 1"][0].Time.Equal(localTime))
}

func TestRoundsUpstreamFailure(t *testing.T) {
	t.Parallel()

	bracket := newFakeBracketClient()
	bracket.listErr = errors.New("challonge down")

	svc := NewBracketViewService(bracket, newFakeMatchStateRepo(), &fakeTeamRepo{})

	_, err := svc.Rounds(context.Background())
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}
