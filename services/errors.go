package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурс не найден
	ErrMatchNotFound        = errors.New("match not found")
	ErrTeamNotFound         = errors.New("team not found")
	ErrPlayerNotFound       = errors.New("player not found")
	ErrSubstitutionNotFound = errors.New("substitution not found")

	// Ошибки валидации и бизнес-правил
	ErrValidationFailed      = errors.New("validation failed")
	ErrInvalidWinnerSide     = errors.New("winner side must be A or B")
	ErrInvalidProofURL       = errors.New("proof url must be a valid absolute http(s) uri")
	ErrNoResultToConfirm     = errors.New("no submitted result to confirm")
	ErrMatchAlreadyCompleted = errors.New("match is already completed")
	ErrPlayerNotInRoster     = errors.New("old player is not in the team roster")

	// Ошибки конфликтов
	ErrTeamNameConflict         = errors.New("team name is already in use")
	ErrPlayerConflict           = errors.New("player with same discord id or riot id already exists")
	ErrChannelBindingConflict   = errors.New("match is already bound to a different result channel")
	ErrParticipantAlreadySynced = errors.New("team is already synced to a bracket participant")

	// Внешняя сетка недоступна или ответила ошибкой; локальное состояние
	// не изменено, вызов можно повторить.
	ErrUpstreamUnavailable = errors.New("bracket authority is unavailable")
	ErrWinnerUnresolved    = errors.New("unable to resolve winner participant id")

	// Аутентификация
	ErrInvalidCredentials = errors.New("invalid username or password")
)
