package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("14"))

	keyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15"))

	subtleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// Render renders the status data to a string
func Render(data *Data) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("PTree v%s", data.Version)))
	b.WriteString("\n\n")

	b.WriteString(sectionStyle.Render("Cache"))
	b.WriteString("\n")
	writeKV(&b, "Index", fmt.Sprintf("%s (%s)", data.IndexPath, humanize.Bytes(uint64(data.IndexSize))))
	writeKV(&b, "Data", fmt.Sprintf("%s (%s)", data.DataPath, humanize.Bytes(uint64(data.DataSize))))
	writeKV(&b, "Entries", humanize.Comma(int64(data.Entries)))
	if data.Root != "" {
		writeKV(&b, "Root", data.Root)
	}
	if data.LastScannedRoot != "" && data.LastScannedRoot != data.Root {
		writeKV(&b, "Last scanned", data.LastScannedRoot)
	}
	if !data.LastScan.IsZero() {
		writeKV(&b, "Last scan", humanize.Time(data.LastScan))
	} else {
		writeKV(&b, "Last scan", "never")
	}
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render("Change journal"))
	b.WriteString("\n")
	if data.HasJournal() {
		writeKV(&b, "Journal ID", fmt.Sprintf("%d", data.Journal.JournalID))
		writeKV(&b, "Last USN", fmt.Sprintf("%d", data.Journal.LastUSN))
		if data.Journal.Drive != "" {
			writeKV(&b, "Drive", data.Journal.Drive)
		}
		if !data.Journal.LastRead.IsZero() {
			writeKV(&b, "Last read", humanize.Time(data.Journal.LastRead))
		}
		writeKV(&b, "Changes applied", humanize.Comma(int64(data.Journal.ChangeCount)))
	} else {
		b.WriteString(subtleStyle.Render("  (no journal observed)"))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render("Skipped directories"))
	b.WriteString("\n")
	if len(data.SkipStats) == 0 {
		b.WriteString(subtleStyle.Render("  (no directories skipped)"))
		b.WriteString("\n")
	} else {
		b.WriteString(data.SkipReport)
		b.WriteString("\n")
	}

	return b.String()
}

func writeKV(b *strings.Builder, key, value string) {
	b.WriteString("  ")
	b.WriteString(keyStyle.Render(fmt.Sprintf("%-14s", key)))
	b.WriteString(valueStyle.Render(value))
	b.WriteString("\n")
}
