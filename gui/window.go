// Package gui содержит настольное окно сервера: статус, сводка каталога
// и живой журнал. Окно опционально и включается переменной USE_GUI
package gui

import (
	"fmt"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"importserver/internal/domain/models"
)

// maxLogLines сколько последних строк журнала держит окно
const maxLogLines = 200

// Window главное окно сервера
type Window struct {
	app fyne.App
	win fyne.Window

	statusLabel    *widget.Label
	runningLabel   *widget.Label
	totalLabel     *widget.Label
	publishedLabel *widget.Label
	jobLabel       *widget.Label

	logMu    sync.Mutex
	logLines []string
	logGrid  *widget.TextGrid
	logView  *container.Scroll
}

// NewWindow создает окно и подписывается на канал журнала сервера
func NewWindow(logChan <-chan models.LogEntry) *Window {
	a := app.New()
	win := a.NewWindow("Сервер импорта каталога")

	w := &Window{
		app:            a,
		win:            win,
		statusLabel:    widget.NewLabelWithStyle("Сервер запускается...", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		runningLabel:   widget.NewLabel("—"),
		totalLabel:     widget.NewLabel("—"),
		publishedLabel: widget.NewLabel("—"),
		jobLabel:       widget.NewLabel("—"),
		logGrid:        widget.NewTextGrid(),
	}

	stats := container.NewGridWithColumns(2,
		widget.NewLabel("Состояние:"), w.runningLabel,
		widget.NewLabel("Товаров в каталоге:"), w.totalLabel,
		widget.NewLabel("Опубликовано:"), w.publishedLabel,
		widget.NewLabel("Текущее задание:"), w.jobLabel,
	)

	w.logView = container.NewScroll(w.logGrid)
	w.logView.SetMinSize(fyne.NewSize(860, 360))

	content := container.NewBorder(
		container.NewVBox(
			w.statusLabel,
			widget.NewSeparator(),
			stats,
			widget.NewSeparator(),
			widget.NewLabelWithStyle("Журнал", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		),
		nil, nil, nil,
		w.logView,
	)

	win.SetContent(content)
	win.Resize(fyne.NewSize(900, 620))

	if logChan != nil {
		go w.consumeLogs(logChan)
	}

	return w
}

// consumeLogs читает записи журнала сервера до закрытия канала
func (w *Window) consumeLogs(logChan <-chan models.LogEntry) {
	for entry := range logChan {
		w.appendLog(entry)
	}
}

// appendLog добавляет строку в журнал окна, старые строки вытесняются
func (w *Window) appendLog(entry models.LogEntry) {
	marker := "•"
	switch entry.Level {
	case "ERROR":
		marker = "✗"
	case "WARN", "WARNING":
		marker = "⚠"
	}

	line := fmt.Sprintf("%s %s %s", entry.Timestamp.Format("15:04:05"), marker, entry.Message)
	if entry.Endpoint != "" {
		line += " [" + entry.Endpoint + "]"
	}

	w.logMu.Lock()
	w.logLines = append(w.logLines, line)
	if len(w.logLines) > maxLogLines {
		w.logLines = w.logLines[len(w.logLines)-maxLogLines:]
	}
	text := strings.Join(w.logLines, "\n")
	w.logMu.Unlock()

	fyne.Do(func() {
		w.logGrid.SetText(text)
		w.logView.ScrollToBottom()
	})
}

// UpdateStatsFromMain обновляет сводку каталога. Вызывается из main
// по тикеру, поэтому обновление уходит в UI-поток через fyne.Do
func (w *Window) UpdateStatsFromMain(stats models.ServerStats) {
	running := "⏹ остановлен"
	if stats.IsRunning {
		running = "▶ работает"
	}

	job := "—"
	if stats.ActiveJob != "" {
		job = stats.ActiveJob
	}

	fyne.Do(func() {
		w.runningLabel.SetText(running)
		w.totalLabel.SetText(fmt.Sprintf("%d", stats.TotalProducts))
		w.publishedLabel.SetText(fmt.Sprintf("%d", stats.PublishedProducts))
		w.jobLabel.SetText(job)
	})
}

// SetStatus меняет строку статуса вверху окна
func (w *Window) SetStatus(status string) {
	fyne.Do(func() {
		w.statusLabel.SetText(status)
	})
}

// ShowAndRun показывает окно и блокирует вызывающую горутину
// до закрытия окна
func (w *Window) ShowAndRun() {
	w.win.ShowAndRun()
}
