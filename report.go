package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/shirou/gopsutil/v4/disk"

	"gitlab.com/tinyland/lab/iconpulse/pkg/acquire"
	"gitlab.com/tinyland/lab/iconpulse/pkg/cache"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280")).
			Width(10)

	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
)

// statsReport describes the on-disk cache and the volume it lives on.
func statsReport(store *cache.Store) (string, error) {
	entries, size, err := store.Usage()
	if err != nil {
		return "", err
	}

	rows := [][2]string{
		{"dir", store.Dir()},
		{"entries", fmt.Sprintf("%d", entries)},
		{"size", formatBytes(uint64(size))},
	}
	if usage, err := disk.Usage(existingParent(store.Dir())); err == nil {
		rows = append(rows, [2]string{"free", fmt.Sprintf("%s of %s (%.1f%% used)",
			formatBytes(usage.Free), formatBytes(usage.Total), usage.UsedPercent)})
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("icon cache"))
	for _, r := range rows {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render(r[0]))
		b.WriteString(r[1])
	}
	return b.String(), nil
}

// cacheCounters is the cache activity shown under a warm summary. A nil mem
// means the memory tier is disabled.
type cacheCounters struct {
	disk cache.Stats
	mem  *cache.MemoryStats
}

// warmReport lists each warmed path and a totals line, followed by cache
// counters when the cache is enabled.
func warmReport(results []acquire.WarmResult, counters *cacheCounters) string {
	var (
		b                   strings.Builder
		cached, fresh, fail int
		total               time.Duration
	)
	b.WriteString(titleStyle.Render("warm"))

	for _, r := range results {
		b.WriteString("\n")
		total += r.Duration
		switch {
		case r.Err != nil:
			fail++
			b.WriteString(failStyle.Render("fail  "))
			b.WriteString(r.Path + ": " + r.Err.Error())
		case r.FromCache:
			cached++
			b.WriteString(okStyle.Render("hit   "))
			b.WriteString(r.Path)
		default:
			fresh++
			b.WriteString(okStyle.Render("new   "))
			fmt.Fprintf(&b, "%s (%s)", r.Path, r.Duration.Round(time.Millisecond))
		}
		if r.Key != "" && r.Key != r.Path {
			b.WriteString(dimStyle.Render(" -> " + r.Key))
		}
	}

	fmt.Fprintf(&b, "\n%d cached, %d extracted, %d failed in %s",
		cached, fresh, fail, total.Round(time.Millisecond))

	if counters != nil {
		d := counters.disk
		b.WriteString("\n")
		b.WriteString(labelStyle.Render("disk"))
		fmt.Fprintf(&b, "%d hits, %d misses, %d corrupt, %d writes, %d write failures",
			d.Hits, d.Misses, d.Corrupt, d.Writes, d.WriteFailures)
		if m := counters.mem; m != nil {
			b.WriteString("\n")
			b.WriteString(labelStyle.Render("memory"))
			fmt.Fprintf(&b, "%d hits, %d misses, %d evictions, %d entries",
				m.Hits, m.Misses, m.Evictions, m.Entries)
		}
	}
	return b.String()
}

// existingParent walks up from dir to the first path that exists, so volume
// stats work before the cache directory has been created.
func existingParent(dir string) string {
	for {
		if _, err := os.Stat(dir); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

// formatBytes renders n using binary units.
func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
