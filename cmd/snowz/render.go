package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"Snowz-Migrator/internal/app"
	"Snowz-Migrator/internal/descriptor"
	"Snowz-Migrator/internal/storage/mysql"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	keyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Width(18)
	okStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46"))
	failStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func row(key, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, keyStyle.Render(key), value)
}

func renderDescriptor(desc *descriptor.Descriptor) string {
	lines := []string{
		titleStyle.Render(desc.Coordinate()),
		row("group", desc.Group()),
		row("version", desc.Version()),
		row("language", fmt.Sprintf("%d", desc.LanguageVersion())),
		row("encoding", desc.Encoding()),
	}
	if plugins := desc.Plugins(); len(plugins) > 0 {
		lines = append(lines, row("plugins", strings.Join(plugins, ", ")))
	}
	for _, repo := range desc.Repositories() {
		lines = append(lines, row("repository", repo))
	}
	for _, dep := range desc.Dependencies() {
		lines = append(lines, row(string(dep.Scope), dep.Coordinate))
	}
	if pub := desc.Publication(); pub != "" {
		lines = append(lines, row("publication", pub))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderStatus(status string) string {
	if status == mysql.StatusSucceeded {
		return okStyle.Render(status)
	}
	return failStyle.Render(status)
}

func renderReport(report app.Report) string {
	rec := report.Record
	lines := []string{
		titleStyle.Render("migration " + rec.RunID),
		row("target", rec.Group+":"+rec.Version+" on "+rec.Dialect),
		row("status", renderStatus(rec.Status)),
		row("statements", fmt.Sprintf("%d planned, %d applied, %d skipped, %d failed", rec.Statements, rec.Applied, rec.Skipped, rec.Failed)),
	}
	for _, failure := range report.Result.Failures {
		lines = append(lines, failStyle.Render("✗ ")+failure.Statement.SQL+dimStyle.Render(" ("+failure.Err.Error()+")"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderHistory(records []mysql.HistoryRecord) string {
	if len(records) == 0 {
		return dimStyle.Render("no migrations recorded")
	}
	lines := make([]string, 0, len(records)+1)
	lines = append(lines, titleStyle.Render("recent migrations"))
	for _, rec := range records {
		when := time.Unix(rec.CreatedAt, 0).UTC().Format(time.RFC3339)
		lines = append(lines, fmt.Sprintf("%s  %s  %s:%s  %s  %d/%d applied",
			dimStyle.Render(when), rec.RunID, rec.Group, rec.Version, renderStatus(rec.Status), rec.Applied, rec.Statements))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
