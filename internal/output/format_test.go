package output

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tasky/internal/notify"
	"tasky/internal/service"
	"tasky/internal/testutil"
)

func TestFormatTask_Golden(t *testing.T) {
	tasks := []service.Task{
		{Name: "Write report", Status: service.StatusDone, Priority: service.PriorityHigh, Tags: service.Ptr("work, docs")},
		{Name: "Review\nnotes", Status: service.StatusTodo, Priority: service.PriorityMedium},
		{Name: "  ", Status: service.StatusInProgress, Priority: service.PriorityLow, Tags: service.Ptr(" , ")},
		{Name: "Old idea", Status: service.StatusCancelled, Priority: service.PriorityMedium},
	}

	var buf bytes.Buffer
	for i, task := range tasks {
		FormatTask(&buf, 9+i, task)
	}
	FormatPageFooter(&buf, service.PageMeta{Page: 1, TotalPages: 3, Total: 25})

	testutil.Golden(t, "tasks", buf.Bytes())
}

func TestFormatPageFooter_SinglePage(t *testing.T) {
	var buf bytes.Buffer
	FormatPageFooter(&buf, service.PageMeta{Page: 1, TotalPages: 1, Total: 3})
	assert.Empty(t, buf.String())
}

func TestFormatTaskDetail(t *testing.T) {
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	var buf bytes.Buffer
	FormatTaskDetail(&buf, service.Task{
		ID:          "t1",
		Name:        "Write report",
		Status:      service.StatusDone,
		Priority:    service.PriorityHigh,
		Description: service.Ptr("first draft"),
		Tags:        service.Ptr("work,docs"),
		Children:    service.Children{"t2", "t3"},
		CompletedAt: &created,
		CreatedAt:   created,
	})

	want := "ID:          t1\n" +
		"Name:        Write report\n" +
		"Status:      DONE\n" +
		"Priority:    HIGH\n" +
		"Description: first draft\n" +
		"Tags:        work, docs\n" +
		"Children:    t2, t3\n" +
		"Completed:   2025-01-02 03:04\n" +
		"Created:     2025-01-02 03:04\n"
	assert.Equal(t, want, buf.String())
}

func TestFormatNotificationAndUser(t *testing.T) {
	var buf bytes.Buffer
	FormatNotification(&buf, notify.Notification{Type: notify.Warning, Message: "Offline update only. Sync will retry later."})
	FormatUser(&buf, service.User{Name: "Ada Lovelace", Email: "ada@example.com"})
	FormatUser(&buf, service.User{Email: "anon@example.com"})

	assert.Equal(t, "[warning] Offline update only. Sync will retry later.\n"+
		"Ada Lovelace <ada@example.com>\n"+
		"(unnamed) <anon@example.com>\n", buf.String())
}

func TestNotificationPrinter_Quiet(t *testing.T) {
	var buf bytes.Buffer
	printer := NotificationPrinter(&buf, true)
	printer(notify.Notification{Type: notify.Success, Message: "Synced successfully"})
	printer(notify.Notification{Type: notify.Info, Message: "Reconnecting… Syncing tasks"})
	printer(notify.Notification{Type: notify.Error, Message: "Task deleted"})

	assert.Equal(t, "[error] Task deleted\n", buf.String())
}
