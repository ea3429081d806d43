package handler

import (
	"context"
	"fmt"

	"crew-scheduler/internal/clock"
	"crew-scheduler/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// NotifyDayAdvanced posts the crews of a newly opened day to the admin chat.
func (h *Handler) NotifyDayAdvanced(ctx context.Context, date clock.Date, assignments []service.EffectiveAssignment) error {
	if h.adminChatID == 0 {
		return nil
	}

	names, err := h.projectNames(ctx, date)
	if err != nil {
		return err
	}

	text := "🌅 New business day.\n\n" + formatCrews(date, assignments, names)
	if _, err := h.sender.Send(tgbotapi.NewMessage(h.adminChatID, text)); err != nil {
		return fmt.Errorf("send day advance notification: %w", err)
	}
	return nil
}
