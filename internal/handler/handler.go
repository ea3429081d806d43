package handler

import (
	"context"
	"time"

	"crew-scheduler/internal/logger"
	"crew-scheduler/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

const commandTimeout = 15 * time.Second

// Sender is the part of the bot API the handler talks to.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Handler serves the admin chat. Messages from any other chat are refused.
type Handler struct {
	sender      Sender
	svc         *service.Services
	adminChatID int64
	logger      *logrus.Logger
}

func NewHandler(sender Sender, svc *service.Services, adminChatID int64, log *logrus.Logger) *Handler {
	return &Handler{
		sender:      sender,
		svc:         svc,
		adminChatID: adminChatID,
		logger:      logger.OrDefault(log),
	}
}

// HandleUpdates consumes updates until the channel closes or ctx is done.
func (h *Handler) HandleUpdates(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			h.HandleUpdate(ctx, update)
		}
	}
}

func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	h.handleMessage(ctx, update.Message)
}

func (h *Handler) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID

	fields := logrus.Fields{"chat_id": chatID, "text": message.Text}
	if message.From != nil {
		fields["user"] = message.From.UserName
	}
	h.logger.WithFields(fields).Info("Bot message received")

	if !h.isAdmin(chatID) {
		h.logger.WithField("chat_id", chatID).Warn("Unauthorized access to admin bot")
		h.reply(chatID, "❌ Access denied. This bot only serves the admin chat.")
		return
	}

	if !message.IsCommand() {
		h.reply(chatID, "Use /help for the list of commands.")
		return
	}

	h.handleCommand(ctx, message)
}

func (h *Handler) isAdmin(chatID int64) bool {
	return h.adminChatID != 0 && chatID == h.adminChatID
}

func (h *Handler) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.sender.Send(msg); err != nil {
		h.logger.WithError(err).WithField("chat_id", chatID).Error("Failed to send bot message")
	}
}
