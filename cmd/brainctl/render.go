package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	httpapi "github.com/bparpette/MistralHackathon/internal/http"
	"github.com/bparpette/MistralHackathon/internal/insights"
	"github.com/bparpette/MistralHackathon/internal/memory"
)

var (
	// Title style - bold bright cyan
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	healthyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)
)

// confidenceStyle colours a confidence value by strength.
func confidenceStyle(c float64) lipgloss.Style {
	switch {
	case c >= 0.8:
		return healthyStyle
	case c >= 0.5:
		return warningStyle
	default:
		return errorStyle
	}
}

func field(label, value string) string {
	return labelStyle.Render(label+":") + " " + value
}

func memoryCard(m *memory.Memory, extra ...string) string {
	lines := []string{
		titleStyle.Render(m.ID),
		m.Content,
		"",
		field("author", m.OwnerID) + "  " + field("category", m.Category) + "  " + field("visibility", string(m.Visibility)),
		field("confidence", confidenceStyle(m.Confidence).Render(fmt.Sprintf("%.2f", m.Confidence))) +
			"  " + field("verifiers", fmt.Sprint(len(m.Verifiers))) +
			"  " + field("views", fmt.Sprint(m.InteractionCount)),
	}
	if len(m.Tags) > 0 {
		lines = append(lines, field("tags", strings.Join(m.Tags, ", ")))
	}
	if len(m.RelatedIDs) > 0 {
		lines = append(lines, field("related", strings.Join(m.RelatedIDs, ", ")))
	}
	lines = append(lines, extra...)
	lines = append(lines, dimStyle.Render(m.CreatedAt.Format(time.RFC3339)))
	return cardStyle.Render(strings.Join(lines, "\n"))
}

func renderMemory(w io.Writer, m *memory.Memory) {
	fmt.Fprintln(w, memoryCard(m))
}

func renderAdded(w io.Writer, resp httpapi.AddMemoryResponse) {
	fmt.Fprintln(w, healthyStyle.Render("✓ stored")+" "+dimStyle.Render(resp.LinkStatus))
	if resp.Memory != nil {
		fmt.Fprintln(w, memoryCard(resp.Memory))
	}
}

func renderSearch(w io.Writer, resp httpapi.SearchResponse) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%d result(s)", resp.Count)))
	for i, r := range resp.Results {
		score := field("score", fmt.Sprintf("%.3f", r.Score)) + "  " + field("similarity", fmt.Sprintf("%.3f", r.Similarity))
		fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("#%d", i+1)))
		fmt.Fprintln(w, memoryCard(r.Memory, score))
	}
}

func renderPage(w io.Writer, page memory.PageResult) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%d of %d memories", len(page.Memories), page.Total)))
	for _, m := range page.Memories {
		fmt.Fprintln(w, memoryCard(m))
	}
	if page.NextOffset >= 0 {
		fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("more with --offset %d", page.NextOffset)))
	}
}

func renderVerified(w io.Writer, m *memory.Memory) {
	fmt.Fprintln(w, healthyStyle.Render("✓ verified")+" "+
		field("confidence", confidenceStyle(m.Confidence).Render(fmt.Sprintf("%.2f", m.Confidence)))+" "+
		field("verifiers", strings.Join(m.Verifiers, ", ")))
}

func renderDeleted(w io.Writer, resp httpapi.DeleteResponse) {
	fmt.Fprintln(w, healthyStyle.Render("✓ deleted")+" "+resp.MemoryID)
}

func renderInsights(w io.Writer, r *insights.Report) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Workspace %s (%s)", r.WorkspaceID, r.Timeframe)))
	fmt.Fprintln(w, field("memories", fmt.Sprint(r.TotalMemories))+"  "+
		field("last 24h", fmt.Sprint(r.RecentMemories24h))+"  "+
		field("important", fmt.Sprint(r.ImportantRecent)))

	counts := func(title string, cs []insights.Count) {
		if len(cs) == 0 {
			return
		}
		parts := make([]string, len(cs))
		for i, c := range cs {
			parts[i] = fmt.Sprintf("%s %s", c.Name, dimStyle.Render(fmt.Sprintf("(%d)", c.Count)))
		}
		fmt.Fprintln(w, field(title, strings.Join(parts, ", ")))
	}
	counts("categories", r.TopCategories)
	counts("tags", r.TopTags)
	counts("contributors", r.TopContributors)

	if len(r.MostAccessedMemories) > 0 {
		fmt.Fprintln(w, labelStyle.Render("most accessed:"))
		for _, m := range r.MostAccessedMemories {
			fmt.Fprintf(w, "  %s %s\n", dimStyle.Render(m.ID), m.Content)
		}
	}
	fmt.Fprintln(w, dimStyle.Render("generated "+r.GeneratedAt.Format(time.RFC3339)))
}

func renderHealth(w io.Writer, server string, resp httpapi.HealthResponse) {
	status := healthyStyle.Render("● " + resp.Status)
	if resp.Status != "ok" {
		status = errorStyle.Render("● " + resp.Status)
	}
	fmt.Fprintln(w, field("server", server)+"  "+status)
}
