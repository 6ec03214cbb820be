package commands

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"copilot/internal/backend"
)

var (
	cityStyle  = lipgloss.NewStyle().Bold(true)
	alertStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
)

func printWeather(out io.Writer, w backend.Weather) {
	fmt.Fprintf(out, "%s  %.0f°F %s\n", cityStyle.Render(w.City), w.Temperature, w.Condition)
	fmt.Fprintf(out, "humidity %.0f%%  wind %.0f mph  visibility %.1f mi\n", w.Humidity, w.WindSpeed, w.Visibility)

	for _, a := range w.Alerts {
		fmt.Fprintln(out, alertStyle.Render(fmt.Sprintf("⚠ [%s] %s: %s", a.Severity, a.Title, a.Description)))
	}
	for _, d := range w.Forecast {
		fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("%-10s %3.0f°/%3.0f°  %-12s %3.0f%%", d.Date, d.High, d.Low, d.Condition, d.Precipitation)))
	}
}
