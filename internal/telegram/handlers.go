package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/ldi/marathon/internal/engine"
	"github.com/ldi/marathon/pkg/models"
)

// dayPattern extracts the catalog position from a rendered task header so a
// reply-to routes the response to the right run.
var dayPattern = regexp.MustCompile(`^Day (\d+)\.`)

func (b *Bot) handleStart(c tele.Context) error {
	ctx := context.Background()
	u, err := b.user(ctx, c)
	if err != nil {
		return err
	}

	if u.Onboarded() {
		b.sessions.clear(u.TelegramID)
		return b.pushDue(ctx, c, u)
	}

	b.sessions.set(u.TelegramID, stateOnboardingName)
	return c.Send("Welcome! A couple of questions before we begin.\n\nWhat is your full name?")
}

func (b *Bot) handleText(c tele.Context) error {
	ctx := context.Background()
	u, err := b.user(ctx, c)
	if err != nil {
		return err
	}

	text := strings.TrimSpace(c.Text())
	switch b.sessions.current(u.TelegramID) {
	case stateOnboardingName:
		if text == "" {
			return c.Send("Please send your full name as text.")
		}
		if err := b.store.SetFullName(ctx, u.ID, text); err != nil {
			return err
		}
		b.sessions.set(u.TelegramID, stateOnboardingRegion)
		return c.Send("Nice to meet you! Which region are you from?")

	case stateOnboardingRegion:
		if text == "" {
			return c.Send("Please send your region as text.")
		}
		if err := b.store.SetRegion(ctx, u.ID, text); err != nil {
			return err
		}
		b.sessions.set(u.TelegramID, stateOnboardingEmail)
		return c.Send("And your email?")

	case stateOnboardingEmail:
		if !strings.Contains(text, "@") {
			return c.Send("That doesn't look like an email. Try again?")
		}
		if err := b.store.SetEmail(ctx, u.ID, text); err != nil {
			return err
		}
		b.sessions.clear(u.TelegramID)
		settings, err := b.store.GetSettings(ctx)
		if err != nil {
			return err
		}
		greeting := settings.GreetingText
		if greeting == "" {
			greeting = "You're all set. Tasks arrive one at a time; answer each one in this chat while its window is open."
		}
		return c.Send(greeting, beginMarkup())
	}

	if st := b.sessions.current(u.TelegramID); strings.HasPrefix(string(st), "admin:") {
		return b.handleAdminText(ctx, c, u, text)
	}

	return b.captureResponse(ctx, c, u, text)
}

func (b *Bot) handlePhoto(c tele.Context) error {
	ctx := context.Background()
	u, err := b.user(ctx, c)
	if err != nil {
		return err
	}
	switch b.sessions.current(u.TelegramID) {
	case stateAdminEditMedia, stateAdminCreateMedia:
		return b.handleAdminMediaPhoto(ctx, c, u)
	}
	// Photos are not accepted as responses; the program collects text.
	return nil
}

// handleBegin finishes onboarding and immediately delivers the first task.
func (b *Bot) handleBegin(c tele.Context) error {
	ctx := context.Background()
	u, err := b.user(ctx, c)
	if err != nil {
		return err
	}
	if !u.Onboarded() {
		now := time.Now().UTC().Truncate(time.Second)
		if err := b.store.MarkOnboarded(ctx, u.ID, now); err != nil {
			return err
		}
		u.OnboardedAt = &now
	}
	if err := c.Respond(&tele.CallbackResponse{}); err != nil {
		return err
	}
	return b.pushDue(ctx, c, u)
}

// pushDue runs an on-demand delivery attempt and narrates the outcome.
func (b *Bot) pushDue(ctx context.Context, c tele.Context, u *models.User) error {
	status, post, err := b.engine.PushDueTask(ctx, u, func(p *models.Post) error {
		return b.NotifyTask(ctx, u, p)
	})
	if err != nil {
		b.log.Error("push failed", "telegram_id", u.TelegramID, "error", err)
		return c.Send("Couldn't deliver your task right now, it will arrive with the next scheduled send.")
	}

	switch status {
	case engine.DueSent:
		return nil
	case engine.DueAlreadyPending:
		if post != nil {
			return b.NotifyTask(ctx, u, post)
		}
		return nil
	case engine.DueAlreadyActive:
		return c.Send("You already have a task in progress — finish it first.")
	case engine.DueTooEarly:
		return c.Send("Your next task will arrive on schedule. See you then!")
	case engine.DueCompleted:
		return c.Send("You've been through every task in the program!", summaryMarkup())
	case engine.DueMissingPost:
		return c.Send("The next task isn't published yet — it will arrive as soon as it is.")
	default:
		return nil
	}
}

// handleTaskStart opens the response window and sends the task content.
func (b *Bot) handleTaskStart(c tele.Context) error {
	ctx := context.Background()
	u, err := b.user(ctx, c)
	if err != nil {
		return err
	}
	postID, err := parseID(c.Data())
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Unknown task."})
	}

	result, err := b.engine.OpenTask(ctx, u.ID, postID)
	if errors.Is(err, engine.ErrPostNotFound) {
		return c.Respond(&tele.CallbackResponse{Text: "This task no longer exists."})
	}
	if err != nil {
		return err
	}
	if err := c.Respond(&tele.CallbackResponse{}); err != nil {
		return err
	}
	return b.sendTaskContent(u, result)
}

func (b *Bot) sendTaskContent(u *models.User, result *engine.OpenResult) error {
	post := result.Post

	if post.MediaType != nil && post.FileID != nil {
		var media any
		switch *post.MediaType {
		case "photo":
			media = &tele.Photo{File: tele.File{FileID: *post.FileID}}
		case "video":
			media = &tele.Video{File: tele.File{FileID: *post.FileID}}
		case "document":
			media = &tele.Document{File: tele.File{FileID: *post.FileID}}
		}
		if media != nil {
			if _, err := b.tele.Send(&tele.User{ID: u.TelegramID}, media); err != nil {
				b.log.Warn("failed to send task media", "post_id", post.ID, "error", err)
			}
		}
	}

	text := fmt.Sprintf("<b>Day %d. %s</b>\n\n%s", post.Position, html.EscapeString(post.Title), post.BodyHTML)
	if err := b.sendLong(u.TelegramID, text); err != nil {
		return err
	}

	footer := fmt.Sprintf(
		"Responses are accepted until <b>%s UTC</b> — up to %d of them. Write them here, or reply to the task message.",
		result.Run.Until.Format("15:04, 2 Jan"), result.MaxResponses)
	return b.send(u.TelegramID, footer, taskDoneMarkup(post.ID))
}

// handleTaskDone closes the window early at the user's request.
func (b *Bot) handleTaskDone(c tele.Context) error {
	ctx := context.Background()
	u, err := b.user(ctx, c)
	if err != nil {
		return err
	}
	postID, err := parseID(c.Data())
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Unknown task."})
	}

	closed, err := b.engine.CloseRunExplicit(ctx, u.ID, postID)
	if err != nil {
		return err
	}
	if err := c.Respond(&tele.CallbackResponse{}); err != nil {
		return err
	}
	if !closed {
		return c.Send("This task is already wrapped up.")
	}
	return c.Send("Great work! Your next task will arrive on schedule.")
}

// captureResponse routes free text into the current run, if any. Text
// outside an open window is ignored: arbitrary chatter is not an error.
func (b *Bot) captureResponse(ctx context.Context, c tele.Context, u *models.User, text string) error {
	if text == "" {
		return nil
	}

	var replyPos *int
	if reply := c.Message().ReplyTo; reply != nil {
		src := reply.Text
		if src == "" {
			src = reply.Caption
		}
		if m := dayPattern.FindStringSubmatch(src); m != nil {
			var pos int
			fmt.Sscanf(m[1], "%d", &pos)
			replyPos = &pos
		}
	}

	run, err := b.engine.ResolveRun(ctx, u.ID, replyPos)
	if err != nil {
		return err
	}
	if run == nil {
		return nil
	}

	result, err := b.engine.RecordResponse(ctx, u.ID, run.ID, text)
	if errors.Is(err, engine.ErrLimitReached) {
		return c.Send("You've already used all responses for this task. The next one will arrive on schedule.")
	}
	if err != nil {
		return err
	}

	if result.Closed {
		return c.Send("Saved — and that was the last response for this task. The next task will arrive on schedule.")
	}
	return c.Send(fmt.Sprintf("Saved. You can add %d more response(s) to this task.", result.Remaining))
}

func (b *Bot) handleSummaryCommand(c tele.Context) error {
	return b.sendSummary(c, false)
}

func (b *Bot) handleSummaryButton(c tele.Context) error {
	if err := c.Respond(&tele.CallbackResponse{}); err != nil {
		return err
	}
	return b.sendSummary(c, false)
}

func (b *Bot) handleSummaryFull(c tele.Context) error {
	if err := c.Respond(&tele.CallbackResponse{}); err != nil {
		return err
	}
	return b.sendSummary(c, true)
}

const summarySnippetRunes = 500

// sendSummary renders the user's response history. The short form truncates
// each response; the full form falls back to a text file when it would not
// fit in a reasonable number of messages.
func (b *Bot) sendSummary(c tele.Context, full bool) error {
	ctx := context.Background()
	u, err := b.user(ctx, c)
	if err != nil {
		return err
	}

	items, err := b.store.SummaryForUser(ctx, u.ID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return c.Send("Nothing here yet — your responses will show up as you complete tasks.")
	}

	var sb strings.Builder
	truncated := false
	for _, item := range items {
		fmt.Fprintf(&sb, "<b>Day %d. %s</b>\n", item.Post.Position, html.EscapeString(item.Post.Title))
		for _, resp := range item.Responses {
			text := resp.Text
			if !full {
				if r := []rune(text); len(r) > summarySnippetRunes {
					text = string(r[:summarySnippetRunes]) + "…"
					truncated = true
				}
			}
			fmt.Fprintf(&sb, "%d. %s\n", resp.Seq, html.EscapeString(text))
		}
		sb.WriteString("\n")
	}
	out := strings.TrimRight(sb.String(), "\n")

	if full && len(out) > maxMessageBytes {
		plain := summaryPlainText(items)
		doc := &tele.Document{
			File:     tele.FromReader(bytes.NewReader([]byte(plain))),
			FileName: "summary.txt",
		}
		_, err := b.tele.Send(&tele.User{ID: u.TelegramID}, doc)
		return err
	}

	var opts []any
	if truncated {
		opts = append(opts, summaryFullMarkup())
	}
	return b.sendLong(u.TelegramID, out, opts...)
}

func summaryPlainText(items []*models.PostSummary) string {
	var sb strings.Builder
	for _, item := range items {
		fmt.Fprintf(&sb, "Day %d. %s\n", item.Post.Position, item.Post.Title)
		for _, resp := range item.Responses {
			fmt.Fprintf(&sb, "  %d. %s\n", resp.Seq, resp.Text)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// handleSelfDelete wipes the sender's record (history cascades with it) so
// the whole flow can be exercised from scratch.
func (b *Bot) handleSelfDelete(c tele.Context) error {
	ctx := context.Background()
	b.sessions.clear(c.Sender().ID)
	deleted, err := b.store.DeleteUserByTelegramID(ctx, c.Sender().ID)
	if err != nil {
		return err
	}
	if !deleted {
		return c.Send("Nothing to delete.")
	}
	return c.Send("Your record has been deleted. Send /start to begin again.")
}
