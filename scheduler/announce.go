package scheduler

import (
	"fmt"
	"strings"
	"time"
)

// formatMatchBlock собирает анонс матча в принятом у комьюнити виде:
// заголовок с раундом и датой, пара команд и тайская строка времени.
// Время всегда показывается в настроенной таймзоне турнира.
func (s *Scheduler) formatMatchBlock(round string, scheduledAt time.Time, teamA, teamB string) string {
	local := scheduledAt.In(s.location)
	lines := []string{
		fmt.Sprintf("------------------ (%s) teams %s ------------------", round, local.Format("02/01/2006")),
		fmt.Sprintf("%s vs %s", teamA, teamB),
		fmt.Sprintf("เวลา %s น.", local.Format("15:04")),
		"---------------------------------------------------------------------",
	}
	return strings.Join(lines, "\n")
}
