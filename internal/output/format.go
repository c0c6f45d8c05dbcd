// Package output provides formatters for CLI output.
package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"tasky/internal/notify"
	"tasky/internal/service"
)

// TimeLayout is used for every timestamp shown to the user.
const TimeLayout = "2006-01-02 15:04"

// FormatTask formats a task row.
// Format: "{N:>4}  {MARK} {NAME}[  ({priority})][  #tag...]\n"
// Medium priority is not shown.
func FormatTask(w io.Writer, num int, task service.Task) {
	var b strings.Builder
	fmt.Fprintf(&b, "%4d  %s %s", num, statusMark(task.Status), normalizeTitle(task.Name))
	if task.Priority != "" && task.Priority != service.PriorityMedium {
		fmt.Fprintf(&b, "  (%s)", strings.ToLower(string(task.Priority)))
	}
	if tags := splitTags(task.Tags); len(tags) > 0 {
		b.WriteString("  #")
		b.WriteString(strings.Join(tags, " #"))
	}
	b.WriteByte('\n')
	io.WriteString(w, b.String())
}

// FormatPageFooter prints the page position when there is more than one page.
func FormatPageFooter(w io.Writer, meta service.PageMeta) {
	if meta.TotalPages <= 1 {
		return
	}
	fmt.Fprintf(w, "page %d of %d (%d tasks)\n", meta.Page, meta.TotalPages, meta.Total)
}

// FormatTaskDetail prints every field of task, one per line. Empty optional
// fields are left out.
func FormatTaskDetail(w io.Writer, task service.Task) {
	row := func(label, value string) {
		fmt.Fprintf(w, "%-12s %s\n", label+":", value)
	}
	row("ID", task.ID)
	row("Name", normalizeTitle(task.Name))
	row("Status", string(task.Status))
	row("Priority", string(task.Priority))
	if task.Description != nil && *task.Description != "" {
		row("Description", *task.Description)
	}
	if tags := splitTags(task.Tags); len(tags) > 0 {
		row("Tags", strings.Join(tags, ", "))
	}
	if task.ParentID != nil {
		row("Parent", *task.ParentID)
	}
	if len(task.Children) > 0 {
		row("Children", strings.Join(task.Children, ", "))
	}
	if task.Archived {
		row("Archived", "yes")
	}
	if task.CompletedAt != nil {
		row("Completed", formatTime(*task.CompletedAt))
	}
	if !task.CreatedAt.IsZero() {
		row("Created", formatTime(task.CreatedAt))
	}
	if !task.UpdatedAt.IsZero() {
		row("Updated", formatTime(task.UpdatedAt))
	}
}

// FormatNotification formats one notification line.
// Format: "[{type}] {message}\n"
func FormatNotification(w io.Writer, n notify.Notification) {
	fmt.Fprintf(w, "[%s] %s\n", n.Type, n.Message)
}

// NotificationPrinter returns a notify listener that writes each
// notification to w. Success and info messages are dropped when quiet.
func NotificationPrinter(w io.Writer, quiet bool) func(notify.Notification) {
	return func(n notify.Notification) {
		if quiet && (n.Type == notify.Success || n.Type == notify.Info) {
			return
		}
		FormatNotification(w, n)
	}
}

// FormatUser formats the authenticated user.
// Format: "{NAME} <{EMAIL}>\n"
func FormatUser(w io.Writer, u service.User) {
	name := strings.TrimSpace(u.Name)
	if name == "" {
		name = "(unnamed)"
	}
	fmt.Fprintf(w, "%s <%s>\n", name, u.Email)
}

func statusMark(s service.Status) string {
	switch s {
	case service.StatusDone:
		return "[x]"
	case service.StatusInProgress:
		return "[~]"
	case service.StatusCancelled:
		return "[-]"
	default:
		return "[ ]"
	}
}

// splitTags splits the comma-separated tag string, dropping blanks.
func splitTags(tags *string) []string {
	if tags == nil {
		return nil
	}
	var out []string
	for _, t := range strings.Split(*tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// normalizeTitle normalizes a task name for display.
// - Empty or whitespace-only names become "(untitled)"
// - Newlines are replaced with spaces
func normalizeTitle(title string) string {
	title = strings.ReplaceAll(title, "\r", " ")
	title = strings.ReplaceAll(title, "\n", " ")

	if strings.TrimSpace(title) == "" {
		return "(untitled)"
	}
	return title
}
