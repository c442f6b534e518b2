// Package telegram binds the program core to the Telegram Bot API. It
// implements the outbound Notifier contract and hosts all inbound handlers:
// onboarding, task interaction, the summary view and the operator panel.
package telegram

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/ldi/marathon/internal/db"
	"github.com/ldi/marathon/internal/engine"
	"github.com/ldi/marathon/pkg/models"
)

type Bot struct {
	tele     *tele.Bot
	store    *db.DB
	engine   *engine.Engine
	log      *slog.Logger
	adminIDs map[int64]bool
	sessions *sessions
}

func New(token string, store *db.DB, eng *engine.Engine, adminIDs map[int64]bool, log *slog.Logger) (*Bot, error) {
	if log == nil {
		log = slog.Default()
	}
	tb, err := tele.NewBot(tele.Settings{
		Token:     token,
		Poller:    &tele.LongPoller{Timeout: 10 * time.Second},
		ParseMode: tele.ModeHTML,
		OnError: func(err error, c tele.Context) {
			log.Error("handler failed", "error", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		tele:     tb,
		store:    store,
		engine:   eng,
		log:      log,
		adminIDs: adminIDs,
		sessions: newSessions(),
	}
	b.register()
	return b, nil
}

// Start begins long polling and blocks until Stop is called.
func (b *Bot) Start() { b.tele.Start() }

func (b *Bot) Stop() { b.tele.Stop() }

func (b *Bot) register() {
	b.tele.Handle("/start", b.handleStart)
	b.tele.Handle("/summary", b.handleSummaryCommand)
	b.tele.Handle("/admin", b.handleAdminMenu)
	b.tele.Handle("/null", b.handleSelfDelete)
	b.tele.Handle(tele.OnText, b.handleText)
	b.tele.Handle(tele.OnPhoto, b.handlePhoto)

	b.tele.Handle(&btnBegin, b.handleBegin)
	b.tele.Handle(&btnTaskStart, b.handleTaskStart)
	b.tele.Handle(&btnTaskDone, b.handleTaskDone)
	b.tele.Handle(&btnSummary, b.handleSummaryButton)
	b.tele.Handle(&btnSummaryFull, b.handleSummaryFull)

	b.tele.Handle(&btnAdminTasks, b.handleAdminTasks)
	b.tele.Handle(&btnAdminTaskOpen, b.handleAdminTaskOpen)
	b.tele.Handle(&btnAdminTaskMove, b.handleAdminTaskMove)
	b.tele.Handle(&btnAdminTaskEdit, b.handleAdminTaskEdit)
	b.tele.Handle(&btnAdminTaskDelete, b.handleAdminTaskDelete)
	b.tele.Handle(&btnAdminTaskCreate, b.handleAdminTaskCreate)
	b.tele.Handle(&btnAdminGreeting, b.handleAdminGreeting)
	b.tele.Handle(&btnAdminWindow, b.handleAdminWindow)
	b.tele.Handle(&btnAdminInterval, b.handleAdminInterval)
	b.tele.Handle(&btnAdminMaxResp, b.handleAdminMaxResponses)
	b.tele.Handle(&btnAdminExport, b.handleAdminExport)
	b.tele.Handle(&btnAdminBroadcast, b.handleAdminBroadcast)
	b.tele.Handle(&btnAdminBroadcastGo, b.handleAdminBroadcastGo)
	b.tele.Handle(&btnAdminResetMe, b.handleAdminResetMe)
	b.tele.Handle(&btnAdminResetAll, b.handleAdminResetAll)
	b.tele.Handle(&btnAdminResetAllGo, b.handleAdminResetAllGo)
	b.tele.Handle(&btnAdminBack, b.handleAdminMenu)
}

// NotifyTask announces a due task with a "Start" button. Part of the
// transport.Notifier contract; the scheduler only advances state when this
// returns nil.
func (b *Bot) NotifyTask(ctx context.Context, user *models.User, post *models.Post) error {
	text := fmt.Sprintf("A new task is waiting for you — <b>%s</b>.\n\nReady to start?",
		html.EscapeString(post.Title))
	return b.send(user.TelegramID, text, taskStartMarkup(post.ID))
}

// NotifyCompletion sends the one-time end-of-program prompt.
func (b *Bot) NotifyCompletion(ctx context.Context, user *models.User) error {
	text := "That was the last task — congratulations on finishing the program!\n\n" +
		"Want to look back at everything you wrote along the way?"
	return b.send(user.TelegramID, text, summaryMarkup())
}

// send delivers one message, retrying without HTML parsing when Telegram
// rejects the markup. Operator-authored content is not guaranteed to be
// valid HTML and a task must still go out.
func (b *Bot) send(telegramID int64, text string, opts ...any) error {
	rcpt := &tele.User{ID: telegramID}
	_, err := b.tele.Send(rcpt, text, opts...)
	if err != nil && strings.Contains(err.Error(), "can't parse entities") {
		plain := append(opts, tele.ModeDefault)
		_, err = b.tele.Send(rcpt, text, plain...)
	}
	if err != nil {
		return fmt.Errorf("failed to send message to %d: %w", telegramID, err)
	}
	return nil
}

// sendLong splits oversized text into several messages.
func (b *Bot) sendLong(telegramID int64, text string, opts ...any) error {
	for _, chunk := range splitMessage(text) {
		if err := b.send(telegramID, chunk, opts...); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) isAdmin(u *models.User) bool {
	return u.IsAdmin || b.adminIDs[u.TelegramID]
}

// user resolves (creating if needed) the sender's record.
func (b *Bot) user(ctx context.Context, c tele.Context) (*models.User, error) {
	u, err := b.store.UpsertUser(ctx, c.Sender().ID)
	if err != nil {
		return nil, err
	}
	if b.adminIDs[u.TelegramID] && !u.IsAdmin {
		if err := b.store.SetAdminFlag(ctx, u.TelegramID, true); err != nil {
			return nil, err
		}
		u.IsAdmin = true
	}
	return u, nil
}

func parseID(data string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(data), 10, 64)
}
