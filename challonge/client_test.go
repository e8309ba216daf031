package challonge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListMatches(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tournaments/cup2026/matches.json", r.URL.Path)
		assert.Equal(t, "secret-key", r.URL.Query().Get("api_key"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"match": {"id": 11, "player1_id": 101, "player2_id": 102, "round": 1,
				"scheduled_time": "2026-03-14T20:00:00Z"}},
			{"match": {"id": 12, "player1_prereq_match_id": 11, "round": 2, "winner_id": null}}
		]`))
	}))
	defer server.Close()

	client := NewClient("secret-key", "cup2026", WithBaseURL(server.URL))

	matches, err := client.ListMatches(context.Background())
	require.NoError(t, err)
	require.Len(t, matches, 2)

	first := matches[0]
	assert.Equal(t, "11", first.ID)
	assert.Equal(t, "Round 1", first.Round)
	require.NotNil(t, first.ParticipantA)
	assert.Equal(t, "101", *first.ParticipantA)
	require.NotNil(t, first.ScheduledAt)
	assert.Equal(t, "2026-03-14T20:00:00Z", first.ScheduledAt.UTC().Format("2006-01-02T15:04:05Z"))
	assert.False(t, first.Decided())

	second := matches[1]
	assert.Nil(t, second.ParticipantA)
	require.NotNil(t, second.PrereqMatchA)
	assert.Equal(t, "11", *second.PrereqMatchA)
}

func TestSubmitWinner(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/tournaments/cup2026/matches/11.json", r.URL.Path)

		var body map[string]map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "101", body["match"]["winner_id"])
		assert.Equal(t, "1-0", body["match"]["scores_csv"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"match": {"id": 11, "winner_id": 101, "round": 1}}`))
	}))
	defer server.Close()

	client := NewClient("secret-key", "cup2026", WithBaseURL(server.URL))
	require.NoError(t, client.SubmitWinner(context.Background(), "11", "101"))
}

func TestCreateParticipant(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tournaments/cup2026/participants.json", r.URL.Path)

		var body map[string]map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Alpha", body["participant"]["name"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"participant": {"id": 90001}}`))
	}))
	defer server.Close()

	client := NewClient("secret-key", "cup2026", WithBaseURL(server.URL))

	participantID, err := client.CreateParticipant(context.Background(), "Alpha")
	require.NoError(t, err)
	assert.Equal(t, "90001", participantID)
}

func TestErrorResponsesAreNeverMasked(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"errors": ["Winner cannot be determined"]}`))
	}))
	defer server.Close()

	client := NewClient("secret-key", "cup2026", WithBaseURL(server.URL))

	err := client.SubmitWinner(context.Background(), "11", "101")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequestFailed)
	assert.Contains(t, err.Error(), "status 422")
}
