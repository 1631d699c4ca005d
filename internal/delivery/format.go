// Package delivery turns signals into subscriber-facing messages and hands
// them to the configured publisher.
package delivery

import (
	"fmt"
	"strings"

	"github.com/avoronin/oddscout/internal/signal"
)

// NoSignalsMessage is sent when the current filters leave nothing to send.
// Absence of data is always reported explicitly, never as silence.
const NoSignalsMessage = "Сегодня сигналов нет (по текущим фильтрам)."

// FormatSignal renders one signal as an HTML message.
func FormatSignal(s signal.Signal) string {
	lines := []string{
		fmt.Sprintf("🏒 <b>%s</b>", s.League),
		fmt.Sprintf("<b>%s</b>", s.Match),
		"",
		fmt.Sprintf("<b>Рассмотреть:</b> %s", s.Pick),
		fmt.Sprintf("<b>Оценка:</b> %d%%", s.Confidence),
	}
	if len(s.Why) > 0 {
		lines = append(lines, "", "<b>Почему:</b>")
		for _, w := range capped(s.Why, 6) {
			lines = append(lines, "• "+w)
		}
	}
	if len(s.Risks) > 0 {
		lines = append(lines, "", "<b>Риски:</b>")
		for _, r := range capped(s.Risks, 4) {
			lines = append(lines, "• "+r)
		}
	}
	if len(s.Sources) > 0 {
		lines = append(lines, "", "<b>Источники:</b>")
		for _, src := range s.Sources[:min(len(s.Sources), 5)] {
			name := src.Name
			if name == "" {
				name = "Источник"
			}
			lines = append(lines, fmt.Sprintf("• %s: %s", name, src.URL))
		}
	}
	if s.ID > 0 {
		lines = append(lines, "", fmt.Sprintf("<b>ID записи:</b> #%d", s.ID))
	}
	return strings.Join(lines, "\n")
}

// FormatReport renders the recent-signal journal.
func FormatReport(recent []signal.Signal) string {
	if len(recent) == 0 {
		return "Пока нет записей."
	}
	lines := []string{"📊 <b>Последние сигналы</b>"}
	for _, s := range recent {
		score := ""
		if s.FinalScore != "" {
			score = " — " + s.FinalScore
		}
		lines = append(lines, fmt.Sprintf("%s <b>#%d</b> %s • %s • %s • %d%%%s",
			statusIcon(s.Status), s.ID, s.League, s.Match, s.Pick, s.Confidence, score))
	}
	return strings.Join(lines, "\n")
}

// FormatStats renders the win/lose/pending summary over recent signals.
func FormatStats(recent []signal.Signal) string {
	if len(recent) == 0 {
		return "Пока нет статистики."
	}
	var win, lose, pending int
	for _, s := range recent {
		switch s.Status {
		case signal.StatusWin:
			win++
		case signal.StatusLose:
			lose++
		case signal.StatusPending:
			pending++
		}
	}
	return strings.Join([]string{
		"📈 <b>Сводка (последние записи)</b>",
		fmt.Sprintf("Всего: %d", win+lose+pending),
		fmt.Sprintf("Зашло: %d", win),
		fmt.Sprintf("Не зашло: %d", lose),
		fmt.Sprintf("Ожидают: %d", pending),
	}, "\n")
}

func statusIcon(s signal.Status) string {
	switch s {
	case signal.StatusPending:
		return "⏳"
	case signal.StatusWin:
		return "✅"
	case signal.StatusLose:
		return "❌"
	default:
		return "⚪️"
	}
}

func capped(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
