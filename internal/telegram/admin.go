package telegram

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/ldi/marathon/internal/export"
	"github.com/ldi/marathon/pkg/models"
)

// requireAdmin resolves the sender and enforces panel access. A nil user
// with a nil error means the refusal was already sent.
func (b *Bot) requireAdmin(ctx context.Context, c tele.Context) (*models.User, error) {
	u, err := b.user(ctx, c)
	if err != nil {
		return nil, err
	}
	if !b.isAdmin(u) {
		if c.Callback() != nil {
			return nil, c.Respond(&tele.CallbackResponse{Text: "Admins only."})
		}
		return nil, c.Send("This command is for admins.")
	}
	return u, nil
}

func (b *Bot) handleAdminMenu(c tele.Context) error {
	ctx := context.Background()
	u, err := b.requireAdmin(ctx, c)
	if u == nil || err != nil {
		return err
	}
	b.sessions.clear(u.TelegramID)

	settings, err := b.store.GetSettings(ctx)
	if err != nil {
		return err
	}
	taskCount, err := b.store.CountPosts(ctx)
	if err != nil {
		return err
	}
	userCount, err := b.store.CountUsers(ctx)
	if err != nil {
		return err
	}

	text := fmt.Sprintf(
		"<b>Admin panel</b>\n\nTasks: %d\nUsers: %d\nResponse window: %d min\nSend interval: %d min\nResponses per task: %d",
		taskCount, userCount,
		settings.ResponseWindowMinutes, settings.SendIntervalMinutes, settings.MaxResponsesPerTask)

	if c.Callback() != nil {
		if err := c.Respond(&tele.CallbackResponse{}); err != nil {
			return err
		}
		return c.Edit(text, adminMenuMarkup())
	}
	return c.Send(text, adminMenuMarkup())
}

func (b *Bot) handleAdminTasks(c tele.Context) error {
	ctx := context.Background()
	u, err := b.requireAdmin(ctx, c)
	if u == nil || err != nil {
		return err
	}

	page, _ := strconv.Atoi(strings.TrimSpace(c.Data()))
	if page < 0 {
		page = 0
	}

	total, err := b.store.CountPosts(ctx)
	if err != nil {
		return err
	}
	posts, err := b.store.ListPosts(ctx, tasksPageSize, page*tasksPageSize)
	if err != nil {
		return err
	}

	text := fmt.Sprintf("<b>Tasks</b> (%d total)", total)
	if err := c.Respond(&tele.CallbackResponse{}); err != nil {
		return err
	}
	return c.Edit(text, adminTasksMarkup(posts, page, total))
}

func renderTaskCard(p *models.Post) string {
	body := p.BodyHTML
	if r := []rune(body); len(r) > 800 {
		body = string(r[:800]) + "…"
	}
	media := "none"
	if p.MediaType != nil {
		media = *p.MediaType
	}
	return fmt.Sprintf("<b>Day %d. %s</b>\n\n%s\n\nMedia: %s",
		p.Position, html.EscapeString(p.Title), body, media)
}

func (b *Bot) handleAdminTaskOpen(c tele.Context) error {
	ctx := context.Background()
	u, err := b.requireAdmin(ctx, c)
	if u == nil || err != nil {
		return err
	}
	postID, err := parseID(c.Data())
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Unknown task."})
	}
	post, err := b.store.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	if post == nil {
		return c.Respond(&tele.CallbackResponse{Text: "Task not found."})
	}
	if err := c.Respond(&tele.CallbackResponse{}); err != nil {
		return err
	}
	return c.Edit(renderTaskCard(post), adminTaskMarkup(post.ID))
}

func (b *Bot) handleAdminTaskMove(c tele.Context) error {
	ctx := context.Background()
	u, err := b.requireAdmin(ctx, c)
	if u == nil || err != nil {
		return err
	}
	idPart, direction, ok := strings.Cut(c.Data(), "|")
	if !ok {
		return c.Respond(&tele.CallbackResponse{Text: "Bad request."})
	}
	postID, err := parseID(idPart)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Unknown task."})
	}

	moved, err := b.store.MovePost(ctx, postID, direction)
	if err != nil {
		return err
	}
	note := "Moved."
	if !moved {
		note = "Already at the edge."
	}
	if err := c.Respond(&tele.CallbackResponse{Text: note}); err != nil {
		return err
	}

	post, err := b.store.GetPost(ctx, postID)
	if err != nil || post == nil {
		return err
	}
	return c.Edit(renderTaskCard(post), adminTaskMarkup(post.ID))
}

func (b *Bot) handleAdminTaskEdit(c tele.Context) error {
	ctx := context.Background()
	u, err := b.requireAdmin(ctx, c)
	if u == nil || err != nil {
		return err
	}
	idPart, field, ok := strings.Cut(c.Data(), "|")
	if !ok {
		return c.Respond(&tele.CallbackResponse{Text: "Bad request."})
	}
	postID, err := parseID(idPart)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Unknown task."})
	}

	var st state
	var prompt string
	switch field {
	case "title":
		st, prompt = stateAdminEditTitle, "Send the new title."
	case "text":
		st, prompt = stateAdminEditText, "Send the new task text (HTML allowed)."
	case "media":
		st, prompt = stateAdminEditMedia, "Send a photo, or \"-\" to remove media."
	default:
		return c.Respond(&tele.CallbackResponse{Text: "Bad request."})
	}

	sess := b.sessions.set(u.TelegramID, st)
	sess.postID = postID
	if err := c.Respond(&tele.CallbackResponse{}); err != nil {
		return err
	}
	return c.Send(prompt)
}

func (b *Bot) handleAdminTaskDelete(c tele.Context) error {
	ctx := context.Background()
	u, err := b.requireAdmin(ctx, c)
	if u == nil || err != nil {
		return err
	}
	postID, err := parseID(c.Data())
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Unknown task."})
	}

	deleted, err := b.store.DeletePost(ctx, postID)
	if err != nil {
		return err
	}
	note := "Deleted. Later tasks shifted up."
	if !deleted {
		note = "Task not found."
	}
	if err := c.Respond(&tele.CallbackResponse{Text: note}); err != nil {
		return err
	}

	total, err := b.store.CountPosts(ctx)
	if err != nil {
		return err
	}
	posts, err := b.store.ListPosts(ctx, tasksPageSize, 0)
	if err != nil {
		return err
	}
	return c.Edit(fmt.Sprintf("<b>Tasks</b> (%d total)", total), adminTasksMarkup(posts, 0, total))
}

func (b *Bot) handleAdminTaskCreate(c tele.Context) error {
	ctx := context.Background()
	u, err := b.requireAdmin(ctx, c)
	if u == nil || err != nil {
		return err
	}
	b.sessions.set(u.TelegramID, stateAdminCreateTitle)
	if err := c.Respond(&tele.CallbackResponse{}); err != nil {
		return err
	}
	return c.Send("New task: send the title.")
}

func (b *Bot) handleAdminGreeting(c tele.Context) error {
	return b.promptSetting(c, stateAdminGreeting, "Send the new greeting text (shown after onboarding).")
}

func (b *Bot) handleAdminWindow(c tele.Context) error {
	return b.promptSetting(c, stateAdminWindow, "Send the response window in minutes.")
}

func (b *Bot) handleAdminInterval(c tele.Context) error {
	return b.promptSetting(c, stateAdminInterval, "Send the interval between tasks in minutes.")
}

func (b *Bot) handleAdminMaxResponses(c tele.Context) error {
	return b.promptSetting(c, stateAdminMaxResponses, "Send the maximum number of responses per task.")
}

func (b *Bot) promptSetting(c tele.Context, st state, prompt string) error {
	ctx := context.Background()
	u, err := b.requireAdmin(ctx, c)
	if u == nil || err != nil {
		return err
	}
	b.sessions.set(u.TelegramID, st)
	if err := c.Respond(&tele.CallbackResponse{}); err != nil {
		return err
	}
	return c.Send(prompt)
}

func (b *Bot) handleAdminExport(c tele.Context) error {
	ctx := context.Background()
	u, err := b.requireAdmin(ctx, c)
	if u == nil || err != nil {
		return err
	}
	if err := c.Respond(&tele.CallbackResponse{Text: "Building the export…"}); err != nil {
		return err
	}

	data, err := export.BuildWorkbook(ctx, b.store)
	if err != nil {
		return err
	}
	doc := &tele.Document{
		File:     tele.FromReader(bytes.NewReader(data)),
		FileName: fmt.Sprintf("responses-%s.xlsx", time.Now().UTC().Format("2006-01-02")),
	}
	_, err = b.tele.Send(&tele.User{ID: u.TelegramID}, doc)
	return err
}

func (b *Bot) handleAdminBroadcast(c tele.Context) error {
	return b.promptSetting(c, stateAdminBroadcast, "Send the broadcast message. It will go to every registered user after confirmation.")
}

func (b *Bot) handleAdminBroadcastGo(c tele.Context) error {
	ctx := context.Background()
	u, err := b.requireAdmin(ctx, c)
	if u == nil || err != nil {
		return err
	}

	sess := b.sessions.get(u.TelegramID)
	text := sess.text
	sess.text = ""
	if text == "" {
		return c.Respond(&tele.CallbackResponse{Text: "Nothing queued to send."})
	}
	if err := c.Respond(&tele.CallbackResponse{Text: "Sending…"}); err != nil {
		return err
	}

	users, err := b.store.ListUsers(ctx)
	if err != nil {
		return err
	}
	sent, failed := 0, 0
	for _, target := range users {
		if err := b.send(target.TelegramID, text); err != nil {
			b.log.Warn("broadcast delivery failed", "telegram_id", target.TelegramID, "error", err)
			failed++
			continue
		}
		sent++
	}
	return c.Send(fmt.Sprintf("Broadcast done: %d delivered, %d failed.", sent, failed))
}

func (b *Bot) handleAdminResetMe(c tele.Context) error {
	ctx := context.Background()
	u, err := b.requireAdmin(ctx, c)
	if u == nil || err != nil {
		return err
	}
	if err := b.engine.ResetUser(ctx, u.ID, time.Minute); err != nil {
		return err
	}
	if err := c.Respond(&tele.CallbackResponse{}); err != nil {
		return err
	}
	return c.Send("Your progress has been reset. The first task arrives within a minute.")
}

func (b *Bot) handleAdminResetAll(c tele.Context) error {
	ctx := context.Background()
	u, err := b.requireAdmin(ctx, c)
	if u == nil || err != nil {
		return err
	}
	if err := c.Respond(&tele.CallbackResponse{}); err != nil {
		return err
	}
	return c.Send("This wipes every user's progress and history. Are you sure?", resetAllConfirmMarkup())
}

func (b *Bot) handleAdminResetAllGo(c tele.Context) error {
	ctx := context.Background()
	u, err := b.requireAdmin(ctx, c)
	if u == nil || err != nil {
		return err
	}
	if err := c.Respond(&tele.CallbackResponse{Text: "Resetting…"}); err != nil {
		return err
	}

	users, err := b.store.ListUsers(ctx)
	if err != nil {
		return err
	}
	reset := 0
	for _, target := range users {
		if err := b.engine.ResetUser(ctx, target.ID, time.Minute); err != nil {
			b.log.Error("failed to reset user", "user_id", target.ID, "error", err)
			continue
		}
		reset++
	}
	return c.Send(fmt.Sprintf("Reset %d of %d users. First tasks go out within a minute.", reset, len(users)))
}

// handleAdminText consumes text while an admin flow is waiting for input.
func (b *Bot) handleAdminText(ctx context.Context, c tele.Context, u *models.User, text string) error {
	if !b.isAdmin(u) {
		b.sessions.clear(u.TelegramID)
		return nil
	}
	sess := b.sessions.get(u.TelegramID)

	switch sess.state {
	case stateAdminGreeting:
		if err := b.store.SetGreetingText(ctx, text); err != nil {
			return err
		}
		b.sessions.clear(u.TelegramID)
		return c.Send("Greeting updated.")

	case stateAdminWindow, stateAdminInterval, stateAdminMaxResponses:
		n, err := strconv.Atoi(text)
		if err != nil || n <= 0 {
			return c.Send("Send a positive whole number.")
		}
		var set func(context.Context, int) error
		switch sess.state {
		case stateAdminWindow:
			set = b.store.SetResponseWindowMinutes
		case stateAdminInterval:
			set = b.store.SetSendIntervalMinutes
		default:
			set = b.store.SetMaxResponsesPerTask
		}
		if err := set(ctx, n); err != nil {
			return err
		}
		b.sessions.clear(u.TelegramID)
		settings, err := b.store.GetSettings(ctx)
		if err != nil {
			return err
		}
		return c.Send(fmt.Sprintf(
			"Saved. Window: %d min, interval: %d min, responses per task: %d. Out-of-range values are clamped.",
			settings.ResponseWindowMinutes, settings.SendIntervalMinutes, settings.MaxResponsesPerTask))

	case stateAdminEditTitle, stateAdminEditText:
		post, err := b.store.GetPost(ctx, sess.postID)
		if err != nil {
			return err
		}
		if post == nil {
			b.sessions.clear(u.TelegramID)
			return c.Send("That task no longer exists.")
		}
		if sess.state == stateAdminEditTitle {
			post.Title = text
		} else {
			post.BodyHTML = text
		}
		if err := b.store.UpdatePost(ctx, post); err != nil {
			return err
		}
		b.sessions.clear(u.TelegramID)
		return c.Send(renderTaskCard(post), adminTaskMarkup(post.ID))

	case stateAdminEditMedia:
		if text != "-" {
			return c.Send("Send a photo, or \"-\" to remove media.")
		}
		post, err := b.store.GetPost(ctx, sess.postID)
		if err != nil {
			return err
		}
		if post == nil {
			b.sessions.clear(u.TelegramID)
			return c.Send("That task no longer exists.")
		}
		post.MediaType = nil
		post.FileID = nil
		if err := b.store.UpdatePost(ctx, post); err != nil {
			return err
		}
		b.sessions.clear(u.TelegramID)
		return c.Send(renderTaskCard(post), adminTaskMarkup(post.ID))

	case stateAdminCreateTitle:
		sess.title = text
		sess.state = stateAdminCreateText
		return c.Send("Now send the task text (HTML allowed).")

	case stateAdminCreateText:
		sess.text = text
		sess.state = stateAdminCreateMedia
		return c.Send("Attach a photo, or send \"-\" to skip.")

	case stateAdminCreateMedia:
		if text != "-" {
			return c.Send("Attach a photo, or send \"-\" to skip.")
		}
		return b.finishCreate(ctx, c, u, nil)

	case stateAdminBroadcast:
		sess.text = text
		sess.state = stateNone
		preview := text
		if r := []rune(preview); len(r) > 300 {
			preview = string(r[:300]) + "…"
		}
		return c.Send("About to broadcast:\n\n"+html.EscapeString(preview), broadcastConfirmMarkup())
	}
	return nil
}

// handleAdminMediaPhoto consumes a photo while an admin media step is open.
func (b *Bot) handleAdminMediaPhoto(ctx context.Context, c tele.Context, u *models.User) error {
	if !b.isAdmin(u) {
		b.sessions.clear(u.TelegramID)
		return nil
	}
	photo := c.Message().Photo
	if photo == nil {
		return nil
	}
	fileID := photo.FileID

	sess := b.sessions.get(u.TelegramID)
	if sess.state == stateAdminCreateMedia {
		return b.finishCreate(ctx, c, u, &fileID)
	}

	post, err := b.store.GetPost(ctx, sess.postID)
	if err != nil {
		return err
	}
	if post == nil {
		b.sessions.clear(u.TelegramID)
		return c.Send("That task no longer exists.")
	}
	mediaType := "photo"
	post.MediaType = &mediaType
	post.FileID = &fileID
	if err := b.store.UpdatePost(ctx, post); err != nil {
		return err
	}
	b.sessions.clear(u.TelegramID)
	return c.Send(renderTaskCard(post), adminTaskMarkup(post.ID))
}

func (b *Bot) finishCreate(ctx context.Context, c tele.Context, u *models.User, photoFileID *string) error {
	sess := b.sessions.get(u.TelegramID)
	post := &models.Post{
		Title:    sess.title,
		BodyHTML: sess.text,
	}
	if photoFileID != nil {
		mediaType := "photo"
		post.MediaType = &mediaType
		post.FileID = photoFileID
	}
	if err := b.store.CreatePost(ctx, post); err != nil {
		return err
	}
	b.sessions.clear(u.TelegramID)
	return c.Send(renderTaskCard(post), adminTaskMarkup(post.ID))
}
