package handler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"crew-scheduler/internal/clock"
	"crew-scheduler/internal/models"
	"crew-scheduler/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const helpText = `📋 Available commands:

📅 Assignments:
/today [date] - Effective crews for a day
/projects [date] - Open projects with progress

🔧 Project status:
/pending <projectId> <reason> - Put a project on hold
/resume <projectId> - Resume a pending project
/complete <projectId> - Close a project and release its crew

🛠 Utilities:
/advance - Open the current business day
/help - Show this message

Dates are YYYY-MM-DD or dd.mm.yyyy; without a date the current business day is used.`

func (h *Handler) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	args := strings.TrimSpace(message.CommandArguments())

	switch message.Command() {
	case "start", "help":
		h.reply(chatID, helpText)
	case "today":
		h.showToday(ctx, chatID, args)
	case "projects":
		h.showProjects(ctx, chatID, args)
	case "pending":
		h.setPending(ctx, chatID, args)
	case "resume":
		h.setStatus(ctx, chatID, args, models.ProjectStatusOngoing, "▶️ Project resumed.")
	case "complete":
		h.setStatus(ctx, chatID, args, service.TargetCompleted, "✅ Project completed, crew released.")
	case "advance":
		h.advance(ctx, chatID)
	default:
		h.reply(chatID, "❌ Unknown command. Use /help for the list of commands.")
	}
}

func (h *Handler) showToday(ctx context.Context, chatID int64, args string) {
	date, ok := h.dateArg(ctx, chatID, args)
	if !ok {
		return
	}

	assignments, err := h.svc.Assignments.GetEffectiveAssignments(ctx, date)
	if err != nil {
		h.replyError(chatID, err)
		return
	}
	names, err := h.projectNames(ctx, date)
	if err != nil {
		h.replyError(chatID, err)
		return
	}

	h.reply(chatID, formatCrews(date, assignments, names))
}

func (h *Handler) showProjects(ctx context.Context, chatID int64, args string) {
	date, ok := h.dateArg(ctx, chatID, args)
	if !ok {
		return
	}

	views, err := h.svc.Projects.List(ctx, date)
	if err != nil {
		h.replyError(chatID, err)
		return
	}
	if len(views) == 0 {
		h.reply(chatID, fmt.Sprintf("📂 No open projects on %s.", date))
		return
	}

	lines := []string{fmt.Sprintf("📂 Open projects on %s:", date), ""}
	for i, v := range views {
		lines = append(lines, fmt.Sprintf("%d. %s (%s)", i+1, v.Name, v.JobID))
		lines = append(lines, fmt.Sprintf("   ID: %s", v.ID))
		lines = append(lines, fmt.Sprintf("   Status: %s / %s", v.Status, v.ProjectStatus))
		lines = append(lines, fmt.Sprintf("   Days: %d of %d, crew %d of %d, man-days %d",
			v.DaysElapsed, v.SigmaHari, v.AssignmentCount, v.SigmaTeknisi, v.ActualManDays))
		if v.PendingReason != nil {
			lines = append(lines, fmt.Sprintf("   ⏸ %s", *v.PendingReason))
		}
	}
	h.reply(chatID, strings.Join(lines, "\n"))
}

func (h *Handler) setPending(ctx context.Context, chatID int64, args string) {
	parts := strings.SplitN(args, " ", 2)
	if len(parts) < 2 || strings.TrimSpace(parts[1]) == "" {
		h.reply(chatID, "❌ Usage: /pending <projectId> <reason>")
		return
	}

	if err := h.svc.Projects.SetProjectStatus(ctx, parts[0], models.ProjectStatusPending, parts[1]); err != nil {
		h.replyError(chatID, err)
		return
	}
	h.reply(chatID, "⏸ Project is pending.")
}

func (h *Handler) setStatus(ctx context.Context, chatID int64, args, status, done string) {
	projectID := strings.TrimSpace(args)
	if projectID == "" || strings.Contains(projectID, " ") {
		h.reply(chatID, "❌ Please give exactly one project ID.")
		return
	}

	if err := h.svc.Projects.SetProjectStatus(ctx, projectID, status, ""); err != nil {
		h.replyError(chatID, err)
		return
	}
	h.reply(chatID, done)
}

func (h *Handler) advance(ctx context.Context, chatID int64) {
	date, advanced, err := h.svc.Days.Tick(ctx)
	if err != nil {
		h.replyError(chatID, err)
		return
	}
	if !advanced {
		h.reply(chatID, fmt.Sprintf("ℹ️ Business day %s is already open.", date))
		return
	}
	h.reply(chatID, fmt.Sprintf("✅ Business day %s opened.", date))
}

// dateArg parses an optional date argument, replying on bad input.
func (h *Handler) dateArg(ctx context.Context, chatID int64, args string) (clock.Date, bool) {
	if args == "" {
		date, err := h.svc.Days.Current(ctx)
		if err != nil {
			h.replyError(chatID, err)
			return clock.Date{}, false
		}
		return date, true
	}
	date, err := parseDate(args)
	if err != nil {
		h.reply(chatID, "❌ Invalid date. Use YYYY-MM-DD or dd.mm.yyyy.")
		return clock.Date{}, false
	}
	return date, true
}

func parseDate(s string) (clock.Date, error) {
	if d, err := clock.ParseDate(s); err == nil {
		return d, nil
	}
	t, err := time.Parse("02.01.2006", s)
	if err != nil {
		return clock.Date{}, err
	}
	return clock.DateOf(t), nil
}

func (h *Handler) projectNames(ctx context.Context, date clock.Date) (map[string]string, error) {
	views, err := h.svc.Projects.List(ctx, date)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(views))
	for _, v := range views {
		names[v.ID] = v.Name
	}
	return names, nil
}

// formatCrews lists the selected technicians of each project, leader first.
func formatCrews(date clock.Date, assignments []service.EffectiveAssignment, names map[string]string) string {
	byProject := make(map[string][]service.EffectiveAssignment)
	var order []string
	for _, a := range assignments {
		if !a.IsSelected {
			continue
		}
		if _, seen := byProject[a.ProjectID]; !seen {
			order = append(order, a.ProjectID)
		}
		byProject[a.ProjectID] = append(byProject[a.ProjectID], a)
	}

	if len(order) == 0 {
		return fmt.Sprintf("📅 %s: no crews assigned.", date)
	}

	label := func(id string) string {
		if name := names[id]; name != "" {
			return name
		}
		return id
	}
	sort.SliceStable(order, func(i, j int) bool { return label(order[i]) < label(order[j]) })

	lines := []string{fmt.Sprintf("📅 Crews for %s:", date)}
	for _, id := range order {
		crew := byProject[id]
		sort.SliceStable(crew, func(i, j int) bool { return crew[i].IsLeader && !crew[j].IsLeader })

		lines = append(lines, "", fmt.Sprintf("🏗 %s (%d)", label(id), len(crew)))
		for _, a := range crew {
			line := fmt.Sprintf("• %s %s", a.TechnicianCode, a.TechnicianName)
			if a.IsLeader {
				line += " 👑"
			}
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func (h *Handler) replyError(chatID int64, err error) {
	var (
		verr     *service.ValidationError
		notFound *service.NotFoundError
		conflict *service.ConflictError
	)

	switch {
	case errors.As(err, &verr):
		h.reply(chatID, "❌ "+verr.Error())
	case errors.As(err, &notFound):
		h.reply(chatID, "❌ "+notFound.Error())
	case errors.As(err, &conflict):
		h.reply(chatID, "⚠️ "+conflict.Error())
	default:
		h.logger.WithError(err).WithField("chat_id", chatID).Error("Bot command failed")
		h.reply(chatID, "❌ Internal error, please try again later.")
	}
}
