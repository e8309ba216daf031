// Package challonge реализует адаптер внешней турнирной сетки поверх
// Challonge v1 REST API. Сетка — источник истины по парам и победителям;
// не-2xx ответы считаются временными ошибками и никогда не превращаются
// в изменение локального состояния.
package challonge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/siamcircuit/tournament-ops/models"
)

const defaultBaseURL = "https://api.challonge.com/v1"

var ErrRequestFailed = errors.New("challonge request failed")

type Client struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	tournamentID string
}

type Option func(*Client)

// WithBaseURL переопределяет адрес API (нужно для тестов).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

func NewClient(apiKey, tournamentID string, opts ...Option) *Client {
	c := &Client{
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		baseURL:      defaultBaseURL,
		apiKey:       apiKey,
		tournamentID: tournamentID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// wireMatch — формат матча в ответах Challonge. Идентификаторы числовые,
// наружу отдаём их строками.
type wireMatch struct {
	ID                   int64   `json:"id"`
	Player1ID            *int64  `json:"player1_id"`
	Player2ID            *int64  `json:"player2_id"`
	WinnerID             *int64  `json:"winner_id"`
	Round                int     `json:"round"`
	ScheduledTime        *string `json:"scheduled_time"`
	Player1PrereqMatchID *int64  `json:"player1_prereq_match_id"`
	Player2PrereqMatchID *int64  `json:"player2_prereq_match_id"`
}

type wireMatchEnvelope struct {
	Match wireMatch `json:"match"`
}

type wireParticipantEnvelope struct {
	Participant struct {
		ID int64 `json:"id"`
	} `json:"participant"`
}

func (c *Client) ListMatches(ctx context.Context) ([]models.BracketMatch, error) {
	endpoint := fmt.Sprintf("/tournaments/%s/matches.json", url.PathEscape(c.tournamentID))

	var envelopes []wireMatchEnvelope
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &envelopes); err != nil {
		return nil, err
	}

	matches := make([]models.BracketMatch, 0, len(envelopes))
	for _, e := range envelopes {
		matches = append(matches, toBracketMatch(e.Match))
	}
	return matches, nil
}

func (c *Client) GetMatch(ctx context.Context, matchID string) (*models.BracketMatch, error) {
	endpoint := fmt.Sprintf("/tournaments/%s/matches/%s.json",
		url.PathEscape(c.tournamentID), url.PathEscape(matchID))

	var envelope wireMatchEnvelope
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &envelope); err != nil {
		return nil, err
	}
	match := toBracketMatch(envelope.Match)
	return &match, nil
}

func (c *Client) CreateParticipant(ctx context.Context, name string) (string, error) {
	endpoint := fmt.Sprintf("/tournaments/%s/participants.json", url.PathEscape(c.tournamentID))
	body := map[string]interface{}{
		"participant": map[string]string{"name": name},
	}

	var envelope wireParticipantEnvelope
	if err := c.do(ctx, http.MethodPost, endpoint, body, &envelope); err != nil {
		return "", err
	}
	return strconv.FormatInt(envelope.Participant.ID, 10), nil
}

func (c *Client) SubmitWinner(ctx context.Context, matchID, winnerParticipantID string) error {
	endpoint := fmt.Sprintf("/tournaments/%s/matches/%s.json",
		url.PathEscape(c.tournamentID), url.PathEscape(matchID))
	body := map[string]interface{}{
		"match": map[string]string{
			"winner_id":  winnerParticipantID,
			"scores_csv": "1-0",
		},
	}
	return c.do(ctx, http.MethodPut, endpoint, body, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out interface{}) error {
	u, err := url.Parse(c.baseURL + endpoint)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	q := u.Query()
	q.Set("api_key", c.apiKey)
	u.RawQuery = q.Encode()

	var reader io.Reader
	if body != nil {
		payload, marshalErr := json.Marshal(body)
		if marshalErr != nil {
			return fmt.Errorf("%w: %v", ErrRequestFailed, marshalErr)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s: status %d: %s", ErrRequestFailed, method, endpoint, resp.StatusCode, text)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrRequestFailed, err)
	}
	return nil
}

func toBracketMatch(m wireMatch) models.BracketMatch {
	match := models.BracketMatch{
		ID:           strconv.FormatInt(m.ID, 10),
		Round:        fmt.Sprintf("Round %d", m.Round),
		ParticipantA: int64Ptr(m.Player1ID),
		ParticipantB: int64Ptr(m.Player2ID),
		PrereqMatchA: int64Ptr(m.Player1PrereqMatchID),
		PrereqMatchB: int64Ptr(m.Player2PrereqMatchID),
		WinnerID:     int64Ptr(m.WinnerID),
	}
	if m.ScheduledTime != nil && *m.ScheduledTime != "" {
		if t, err := time.Parse(time.RFC3339, *m.ScheduledTime); err == nil {
			match.ScheduledAt = &t
		}
	}
	return match
}

func int64Ptr(v *int64) *string {
	if v == nil {
		return nil
	}
	s := strconv.FormatInt(*v, 10)
	return &s
}
