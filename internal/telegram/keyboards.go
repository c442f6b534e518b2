package telegram

import (
	"fmt"
	"strconv"

	tele "gopkg.in/telebot.v3"

	"github.com/ldi/marathon/pkg/models"
)

// Button identities. Handlers are registered against the Unique values;
// per-message payloads are attached when a markup is built.
var (
	btnBegin       = tele.Btn{Unique: "onboarding_begin"}
	btnTaskStart   = tele.Btn{Unique: "task_start"}
	btnTaskDone    = tele.Btn{Unique: "task_done"}
	btnSummary     = tele.Btn{Unique: "summary_show"}
	btnSummaryFull = tele.Btn{Unique: "summary_full"}

	btnAdminTasks       = tele.Btn{Unique: "adm_tasks"}
	btnAdminTaskOpen    = tele.Btn{Unique: "adm_task"}
	btnAdminTaskMove    = tele.Btn{Unique: "adm_task_move"}
	btnAdminTaskEdit    = tele.Btn{Unique: "adm_task_edit"}
	btnAdminTaskDelete  = tele.Btn{Unique: "adm_task_del"}
	btnAdminTaskCreate  = tele.Btn{Unique: "adm_task_new"}
	btnAdminGreeting    = tele.Btn{Unique: "adm_greeting"}
	btnAdminWindow      = tele.Btn{Unique: "adm_window"}
	btnAdminInterval    = tele.Btn{Unique: "adm_interval"}
	btnAdminMaxResp     = tele.Btn{Unique: "adm_max_resp"}
	btnAdminExport      = tele.Btn{Unique: "adm_export"}
	btnAdminBroadcast   = tele.Btn{Unique: "adm_broadcast"}
	btnAdminBroadcastGo = tele.Btn{Unique: "adm_broadcast_go"}
	btnAdminResetMe     = tele.Btn{Unique: "adm_reset_me"}
	btnAdminResetAll    = tele.Btn{Unique: "adm_reset_all"}
	btnAdminResetAllGo  = tele.Btn{Unique: "adm_reset_all_go"}
	btnAdminBack        = tele.Btn{Unique: "adm_back"}
)

func beginMarkup() *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	m.Inline(m.Row(m.Data("Let's go!", btnBegin.Unique)))
	return m
}

func taskStartMarkup(postID int64) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	m.Inline(m.Row(m.Data("Start", btnTaskStart.Unique, strconv.FormatInt(postID, 10))))
	return m
}

func taskDoneMarkup(postID int64) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	m.Inline(m.Row(m.Data("I'm done", btnTaskDone.Unique, strconv.FormatInt(postID, 10))))
	return m
}

func summaryMarkup() *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	m.Inline(m.Row(m.Data("Show my summary", btnSummary.Unique)))
	return m
}

func summaryFullMarkup() *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	m.Inline(m.Row(m.Data("Show full responses", btnSummaryFull.Unique)))
	return m
}

func adminMenuMarkup() *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	m.Inline(
		m.Row(m.Data("Tasks", btnAdminTasks.Unique, "0")),
		m.Row(m.Data("Greeting text", btnAdminGreeting.Unique)),
		m.Row(m.Data("Response window", btnAdminWindow.Unique), m.Data("Send interval", btnAdminInterval.Unique)),
		m.Row(m.Data("Responses per task", btnAdminMaxResp.Unique)),
		m.Row(m.Data("Export responses (xlsx)", btnAdminExport.Unique)),
		m.Row(m.Data("Broadcast", btnAdminBroadcast.Unique)),
		m.Row(m.Data("My summary", btnSummary.Unique), m.Data("Reset my progress", btnAdminResetMe.Unique)),
		m.Row(m.Data("Reset everyone", btnAdminResetAll.Unique)),
	)
	return m
}

func resetAllConfirmMarkup() *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	m.Inline(m.Row(m.Data("Yes, reset everyone", btnAdminResetAllGo.Unique), m.Data("Cancel", btnAdminBack.Unique)))
	return m
}

const tasksPageSize = 10

func adminTasksMarkup(posts []*models.Post, page int, total int) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	rows := make([]tele.Row, 0, len(posts)+2)
	for _, p := range posts {
		label := fmt.Sprintf("%d. %s", p.Position, p.Title)
		rows = append(rows, m.Row(m.Data(label, btnAdminTaskOpen.Unique, strconv.FormatInt(p.ID, 10))))
	}

	var nav []tele.Btn
	if page > 0 {
		nav = append(nav, m.Data("« Prev", btnAdminTasks.Unique, strconv.Itoa(page-1)))
	}
	if (page+1)*tasksPageSize < total {
		nav = append(nav, m.Data("Next »", btnAdminTasks.Unique, strconv.Itoa(page+1)))
	}
	if len(nav) > 0 {
		rows = append(rows, m.Row(nav...))
	}
	rows = append(rows, m.Row(m.Data("+ New task", btnAdminTaskCreate.Unique), m.Data("« Menu", btnAdminBack.Unique)))
	m.Inline(rows...)
	return m
}

func adminTaskMarkup(postID int64) *tele.ReplyMarkup {
	id := strconv.FormatInt(postID, 10)
	m := &tele.ReplyMarkup{}
	m.Inline(
		m.Row(m.Data("↑ Up", btnAdminTaskMove.Unique, id+"|up"), m.Data("↓ Down", btnAdminTaskMove.Unique, id+"|down")),
		m.Row(
			m.Data("Edit title", btnAdminTaskEdit.Unique, id+"|title"),
			m.Data("Edit text", btnAdminTaskEdit.Unique, id+"|text"),
		),
		m.Row(m.Data("Edit media", btnAdminTaskEdit.Unique, id+"|media"), m.Data("Delete", btnAdminTaskDelete.Unique, id)),
		m.Row(m.Data("« Tasks", btnAdminTasks.Unique, "0")),
	)
	return m
}

func broadcastConfirmMarkup() *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	m.Inline(m.Row(m.Data("Send to everyone", btnAdminBroadcastGo.Unique), m.Data("Cancel", btnAdminBack.Unique)))
	return m
}
