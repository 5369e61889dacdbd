package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"todoList/internal/models/task"

	"github.com/charmbracelet/lipgloss"
)

const deadlineLayout = "02.01.2006 15:04"

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Underline(true)
	doneStyle      = lipgloss.NewStyle().Faint(true).Strikethrough(true)
	importantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	lowStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	overdueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	idStyle        = lipgloss.NewStyle().Width(38)
)

func renderList(w io.Writer, tasks []task.Task, completed int, dirty bool, now time.Time) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Выполнено: %d", completed)))

	if len(tasks) == 0 {
		fmt.Fprintln(w, "Задач нет")
	}
	for _, t := range tasks {
		fmt.Fprintln(w, renderTask(t, now))
	}

	if dirty {
		fmt.Fprintln(w, warnStyle.Render("Есть изменения, не отправленные на сервер"))
	}
}

func renderTask(t task.Task, now time.Time) string {
	mark := "[ ]"
	if t.IsDone {
		mark = "[x]"
	}

	var b strings.Builder
	b.WriteString(mark)
	b.WriteString(" ")
	b.WriteString(idStyle.Render(t.ID))

	text := t.Text
	switch {
	case t.IsDone:
		text = doneStyle.Render(text)
	case t.Importance == task.ImportanceImportant:
		text = importantStyle.Render("!! " + text)
	case t.Importance == task.ImportanceLow:
		text = lowStyle.Render(text)
	}
	b.WriteString(text)

	if t.Deadline != nil {
		d := "до " + t.Deadline.Local().Format(deadlineLayout)
		if !t.IsDone && t.Deadline.Before(now) {
			d = overdueStyle.Render(d + " (просрочено)")
		}
		b.WriteString("  ")
		b.WriteString(d)
	}
	return b.String()
}
