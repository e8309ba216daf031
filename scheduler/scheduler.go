package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/siamcircuit/tournament-ops/config"
	"github.com/siamcircuit/tournament-ops/models"
	"github.com/siamcircuit/tournament-ops/repositories"
	"github.com/siamcircuit/tournament-ops/services"
)

// Announcer публикует сообщения: общие анонсы и сообщения в конкретный канал.
type Announcer interface {
	Announce(ctx context.Context, text string) error
	PostMessage(ctx context.Context, channelID, text string) error
}

// ChannelProvisioner заводит приватный канал сдачи результатов матча
// и возвращает его id.
type ChannelProvisioner interface {
	CreateResultChannel(ctx context.Context, matchID, teamAName, teamBName string, captainIDs []string) (string, error)
}

// Scheduler — периодическая сверка с внешней сеткой: анонсы за
// настроенное время до матча, создание каналов результатов и
// подтягивание завершённости из авторитета. Тики не перекрываются.
type Scheduler struct {
	matches     services.MatchService
	rounds      services.BracketViewService
	bracket     services.BracketClient
	stateRepo   repositories.MatchStateRepository
	teamRepo    repositories.TeamRepository
	announcer   Announcer
	provisioner ChannelProvisioner

	interval       time.Duration
	announceLead   time.Duration
	announceWindow time.Duration
	location       *time.Location

	now    func() time.Time
	logger *slog.Logger
	cron   gocron.Scheduler
}

func New(
	cfg config.SchedulerConfig,
	matches services.MatchService,
	rounds services.BracketViewService,
	bracket services.BracketClient,
	stateRepo repositories.MatchStateRepository,
	teamRepo repositories.TeamRepository,
	announcer Announcer,
	provisioner ChannelProvisioner,
	logger *slog.Logger,
) (*Scheduler, error) {
	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler timezone %q: %w", cfg.Timezone, err)
	}
	return &Scheduler{
		matches:        matches,
		rounds:         rounds,
		bracket:        bracket,
		stateRepo:      stateRepo,
		teamRepo:       teamRepo,
		announcer:      announcer,
		provisioner:    provisioner,
		interval:       cfg.Interval,
		announceLead:   cfg.AnnounceLead,
		announceWindow: cfg.AnnounceWindow,
		location:       location,
		now:            time.Now,
		logger:         logger,
	}, nil
}

// Start запускает периодический тик. Singleton-режим: пока тик не
// закончился, следующий не стартует.
func (s *Scheduler) Start() error {
	cron, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	_, err = cron.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(s.runTick),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule reconciliation job: %w", err)
	}
	s.cron = cron
	cron.Start()
	s.logger.Info("scheduler started", slog.Duration("interval", s.interval))
	return nil
}

func (s *Scheduler) Stop() error {
	if s.cron == nil {
		return nil
	}
	return s.cron.Shutdown()
}

func (s *Scheduler) runTick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()
	s.Tick(ctx)
}

// Tick прогоняет все проходы. Ошибка одного прохода логируется и не
// мешает остальным.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now()

	if err := s.announcePass(ctx, now); err != nil {
		s.logger.Error("announce pass failed", slog.Any("error", err))
	}
	if err := s.channelPass(ctx, now); err != nil {
		s.logger.Error("result channel pass failed", slog.Any("error", err))
	}
	if err := s.reconcilePass(ctx); err != nil {
		s.logger.Error("reconcile pass failed", slog.Any("error", err))
	}
}

// announcePass публикует анонс матча один раз, когда до его начала
// остаётся announceLead (± announceWindow). Отметка об анонсе хранится
// в базе, поэтому рестарт процесса не ведёт к повтору.
func (s *Scheduler) announcePass(ctx context.Context, now time.Time) error {
	bracketMatches, err := s.bracket.ListMatches(ctx)
	if err != nil {
		return fmt.Errorf("failed to list bracket matches: %w", err)
	}

	ids := make([]string, 0, len(bracketMatches))
	for _, m := range bracketMatches {
		ids = append(ids, m.ID)
	}
	states, err := s.stateRepo.ListByBracketMatchIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to load local match states: %w", err)
	}

	type candidate struct {
		match       models.BracketMatch
		scheduledAt time.Time
	}
	candidates := make([]candidate, 0)
	participantIDs := make([]string, 0)
	for _, m := range bracketMatches {
		if m.Decided() {
			continue
		}
		state := states[m.ID]
		if state != nil && state.AnnouncedAt != nil {
			continue
		}
		scheduledAt := m.ScheduledAt
		if state != nil && state.ScheduledAt != nil {
			scheduledAt = state.ScheduledAt
		}
		if scheduledAt == nil {
			continue
		}
		delta := scheduledAt.Sub(now)
		if delta < s.announceLead-s.announceWindow || delta > s.announceLead+s.announceWindow {
			continue
		}
		candidates = append(candidates, candidate{match: m, scheduledAt: *scheduledAt})
		if m.ParticipantA != nil {
			participantIDs = append(participantIDs, *m.ParticipantA)
		}
		if m.ParticipantB != nil {
			participantIDs = append(participantIDs, *m.ParticipantB)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	names, err := s.teamNames(ctx, participantIDs)
	if err != nil {
		return err
	}

	for _, c := range candidates {
		block := s.formatMatchBlock(
			c.match.Round,
			c.scheduledAt,
			participantName(c.match.ParticipantA, c.match.PrereqMatchA, names),
			participantName(c.match.ParticipantB, c.match.PrereqMatchB, names),
		)
		if err := s.announcer.Announce(ctx, block); err != nil {
			s.logger.Error("failed to announce match",
				slog.String("match_id", c.match.ID), slog.Any("error", err))
			continue
		}
		// Отметку ставим только после успешной публикации: упавший
		// анонс попробуем снова на следующем тике.
		if err := s.stateRepo.MarkAnnounced(ctx, c.match.ID, now); err != nil {
			s.logger.Error("failed to mark match as announced",
				slog.String("match_id", c.match.ID), slog.Any("error", err))
			continue
		}
		s.logger.Info("announced match", slog.String("match_id", c.match.ID))
	}
	return nil
}

// channelPass создаёт каналы результатов для матчей, чьё время прошло,
// а победителя ещё нет. Привязка канала к матчу однократная, поэтому
// повторный тик новых каналов не плодит.
func (s *Scheduler) channelPass(ctx context.Context, now time.Time) error {
	awaiting, err := s.matches.AwaitingResultChannel(ctx, now)
	if err != nil {
		return err
	}

	for _, a := range awaiting {
		teamAName, captainA := teamNameAndCaptain(a.TeamA, a.Match.ParticipantA)
		teamBName, captainB := teamNameAndCaptain(a.TeamB, a.Match.ParticipantB)

		channelID, err := s.provisioner.CreateResultChannel(ctx, a.Match.ID, teamAName, teamBName, []string{captainA, captainB})
		if err != nil {
			s.logger.Error("failed to create result channel",
				slog.String("match_id", a.Match.ID), slog.Any("error", err))
			continue
		}

		if err := s.matches.BindResultChannel(ctx, a.Match.ID, channelID); err != nil {
			if errors.Is(err, services.ErrChannelBindingConflict) {
				// Кто-то привязал канал между выборкой и созданием.
				// Созданный канал остаётся висеть, чистим руками.
				s.logger.Warn("result channel already bound, orphan channel created",
					slog.String("match_id", a.Match.ID),
					slog.String("orphan_channel_id", channelID))
				continue
			}
			s.logger.Error("failed to bind result channel",
				slog.String("match_id", a.Match.ID), slog.Any("error", err))
			continue
		}

		mentions := captainMentions(captainA, captainB)
		intro := fmt.Sprintf(
			"Result submission channel for match #%s. Captains %s please upload your result screenshots.",
			a.Match.ID, mentions)
		if err := s.announcer.PostMessage(ctx, channelID, intro); err != nil {
			s.logger.Error("failed to post result channel intro",
				slog.String("match_id", a.Match.ID), slog.Any("error", err))
		}
		s.logger.Info("created and bound result channel",
			slog.String("match_id", a.Match.ID), slog.String("channel_id", channelID))
	}
	return nil
}

// reconcilePass подтягивает локальный статус к авторитету: матч с
// назначенным в сетке победителем локально завершён, что бы ни
// говорило локальное состояние.
func (s *Scheduler) reconcilePass(ctx context.Context) error {
	bracketMatches, err := s.bracket.ListMatches(ctx)
	if err != nil {
		return fmt.Errorf("failed to list bracket matches: %w", err)
	}

	decided := make([]string, 0)
	for _, m := range bracketMatches {
		if m.Decided() {
			decided = append(decided, m.ID)
		}
	}
	if len(decided) == 0 {
		return nil
	}

	states, err := s.stateRepo.ListByBracketMatchIDs(ctx, decided)
	if err != nil {
		return fmt.Errorf("failed to load local match states: %w", err)
	}
	for id, state := range states {
		if state.Status == models.MatchStatusCompleted {
			continue
		}
		if err := s.stateRepo.SetStatus(ctx, id, models.MatchStatusCompleted); err != nil {
			s.logger.Error("failed to reconcile match status",
				slog.String("match_id", id), slog.Any("error", err))
			continue
		}
		s.logger.Info("reconciled match to completed", slog.String("match_id", id))
	}
	return nil
}

// PropagateResult анонсирует победителя подтверждённого матча и, если
// находится матч следующего раунда, зависящий от этого, публикует его
// блок с уже известным участником.
func (s *Scheduler) PropagateResult(ctx context.Context, matchID string) {
	rounds, err := s.rounds.Rounds(ctx)
	if err != nil {
		s.logger.Error("failed to load bracket for result propagation",
			slog.String("match_id", matchID), slog.Any("error", err))
		return
	}

	var confirmed *services.MatchView
	var confirmedRound string
	for round, views := range rounds {
		for i := range views {
			if views[i].ID == matchID {
				confirmed = &views[i]
				confirmedRound = round
				break
			}
		}
		if confirmed != nil {
			break
		}
	}
	if confirmed == nil || confirmed.Result == nil {
		return
	}

	winnerName, loserName := confirmed.TeamA, confirmed.TeamB
	if *confirmed.Result == models.SideB {
		winnerName, loserName = confirmed.TeamB, confirmed.TeamA
	}
	text := fmt.Sprintf("🏆 %s defeats %s in %s!", winnerName, loserName, confirmedRound)
	if err := s.announcer.Announce(ctx, text); err != nil {
		s.logger.Error("failed to announce match winner",
			slog.String("match_id", matchID), slog.Any("error", err))
		return
	}

	next, nextRound := findNextMatch(rounds, confirmedRound, matchID)
	if next == nil || next.Time == nil {
		return
	}
	teamA, teamB := next.TeamA, next.TeamB
	if next.PrereqA != nil && *next.PrereqA == matchID {
		teamA = winnerName
	}
	if next.PrereqB != nil && *next.PrereqB == matchID {
		teamB = winnerName
	}
	block := s.formatMatchBlock(nextRound, *next.Time, teamA, teamB)
	if err := s.announcer.Announce(ctx, block); err != nil {
		s.logger.Error("failed to announce next round match",
			slog.String("match_id", next.ID), slog.Any("error", err))
	}
}

// findNextMatch ищет матч другого раунда, одним из предшественников
// которого является только что завершённый.
func findNextMatch(rounds map[string][]services.MatchView, currentRound, matchID string) (*services.MatchView, string) {
	for round, views := range rounds {
		if round == currentRound {
			continue
		}
		for i := range views {
			v := &views[i]
			if (v.PrereqA != nil && *v.PrereqA == matchID) || (v.PrereqB != nil && *v.PrereqB == matchID) {
				return v, round
			}
		}
	}
	return nil, ""
}

func (s *Scheduler) teamNames(ctx context.Context, participantIDs []string) (map[string]string, error) {
	teams, err := s.teamRepo.ListByParticipantIDs(ctx, participantIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve teams: %w", err)
	}
	names := make(map[string]string, len(teams))
	for _, t := range teams {
		if t.ChallongeParticipantID != nil {
			names[*t.ChallongeParticipantID] = t.Name
		}
	}
	return names, nil
}

func participantName(participantID, prereqMatchID *string, names map[string]string) string {
	if participantID != nil && *participantID != "" {
		if name, ok := names[*participantID]; ok {
			return name
		}
		return *participantID
	}
	if prereqMatchID != nil && *prereqMatchID != "" {
		return fmt.Sprintf("Winner of Match #%s", *prereqMatchID)
	}
	return "TBD"
}

func teamNameAndCaptain(team *models.Team, participantID *string) (string, string) {
	if team != nil {
		return team.Name, team.CaptainDiscordID
	}
	if participantID != nil && *participantID != "" {
		return *participantID, ""
	}
	return "TBD", ""
}

func captainMentions(captainIDs ...string) string {
	mentions := make([]string, 0, len(captainIDs))
	for _, id := range captainIDs {
		if id == "" {
			continue
		}
		mentions = append(mentions, fmt.Sprintf("<@%s>", id))
	}
	return strings.Join(mentions, " ")
}
