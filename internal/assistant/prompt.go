package assistant

import (
	"fmt"
	"strings"

	"treinos/api/internal/plan"
)

// Bounds keeping the prompt context small: the coach does not need the
// whole plan or the whole conversation to answer.
const (
	maxExercisesPerDay   = 5
	maxSeriesPerExercise = 3
	maxHistoryTurns      = 5
)

// BuildPrompt concatenates a truncated plan summary, the most recent
// transcript turns and the new user message.
func BuildPrompt(p plan.Plan, history []Message, userText string) string {
	var b strings.Builder
	b.WriteString("Plano de treino atual:\n")
	b.WriteString(summarizePlan(p))
	b.WriteString("\nConversa recente:\n")
	for _, msg := range lastTurns(history, maxHistoryTurns) {
		switch msg.Role {
		case RoleUser:
			b.WriteString("Usuário: ")
		case RoleAI:
			b.WriteString("Treinador: ")
		default:
			continue
		}
		b.WriteString(msg.Text)
		b.WriteString("\n")
	}
	b.WriteString("Usuário: ")
	b.WriteString(userText)
	return b.String()
}

func summarizePlan(p plan.Plan) string {
	var b strings.Builder
	for i := 0; i < plan.DayCount; i++ {
		day := p.Days[i]
		if len(day) == 0 {
			continue
		}
		b.WriteString(plan.DayNames[i])
		b.WriteString(":\n")
		shown := day
		if len(shown) > maxExercisesPerDay {
			shown = shown[:maxExercisesPerDay]
		}
		for _, ex := range shown {
			b.WriteString("- ")
			b.WriteString(ex.Name)
			if ex.Obs != "" {
				fmt.Fprintf(&b, " (%s)", ex.Obs)
			}
			if summary := summarizeSeries(ex.Series); summary != "" {
				b.WriteString(": ")
				b.WriteString(summary)
			}
			b.WriteString("\n")
		}
		if len(day) > maxExercisesPerDay {
			fmt.Fprintf(&b, "- … mais %d exercícios\n", len(day)-maxExercisesPerDay)
		}
	}
	if b.Len() == 0 {
		return "(plano vazio)\n"
	}
	return b.String()
}

func summarizeSeries(series []plan.Series) string {
	if len(series) == 0 {
		return ""
	}
	shown := series
	if len(shown) > maxSeriesPerExercise {
		shown = shown[:maxSeriesPerExercise]
	}
	parts := make([]string, 0, len(shown)+1)
	for _, s := range shown {
		part := fmt.Sprintf("%sx%s", orDash(s.Peso), orDash(s.Reps))
		if s.RPE != "" {
			part += " @RPE" + s.RPE
		}
		if s.Descanso != "" {
			part += " desc " + s.Descanso + "s"
		}
		parts = append(parts, part)
	}
	if len(series) > maxSeriesPerExercise {
		parts = append(parts, fmt.Sprintf("… mais %d séries", len(series)-maxSeriesPerExercise))
	}
	return strings.Join(parts, "; ")
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}

func lastTurns(history []Message, n int) []Message {
	// Loading placeholders never reach the model.
	turns := make([]Message, 0, len(history))
	for _, msg := range history {
		if msg.Role == RoleUser || msg.Role == RoleAI {
			turns = append(turns, msg)
		}
	}
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return turns
}
