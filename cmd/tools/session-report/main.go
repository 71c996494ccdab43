// Command session-report renders charts for a recorded control session:
// an interactive HTML report and, optionally, a PNG error trace.
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/pathtrack/internal/db"
)

var (
	dbFile    = flag.String("db", "sessions.db", "Path to the session database")
	sessionID = flag.String("session", "", "Session id (defaults to the most recent session)")
	htmlOut   = flag.String("out", "session-report.html", "Output HTML report path")
	pngOut    = flag.String("png", "", "Optional PNG error-trace output path")
)

func main() {
	flag.Parse()

	database, err := db.New(*dbFile)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	id := *sessionID
	if id == "" {
		id, err = database.LatestSessionID()
		if err != nil {
			log.Fatalf("no session to report on: %v", err)
		}
	}

	cycles, err := database.SessionCycles(id)
	if err != nil {
		log.Fatalf("failed to load cycles: %v", err)
	}
	if len(cycles) == 0 {
		log.Fatalf("session %s has no recorded cycles", id)
	}

	if err := renderHTML(id, cycles, *htmlOut); err != nil {
		log.Fatalf("failed to render report: %v", err)
	}
	log.Printf("wrote %s (%d cycles)", *htmlOut, len(cycles))

	if *pngOut != "" {
		if err := renderErrorTrace(cycles, *pngOut); err != nil {
			log.Fatalf("failed to render error trace: %v", err)
		}
		log.Printf("wrote %s", *pngOut)
	}
}

// elapsed returns each cycle's offset in seconds from the session start.
func elapsed(cycles []db.Cycle) []float64 {
	out := make([]float64, len(cycles))
	start := cycles[0].RecordedAt
	for i, c := range cycles {
		out[i] = c.RecordedAt.Sub(start).Seconds()
	}
	return out
}

func lineData(values []float64) []opts.LineData {
	out := make([]opts.LineData, len(values))
	for i, v := range values {
		out[i] = opts.LineData{Value: v}
	}
	return out
}

func renderHTML(sessionID string, cycles []db.Cycle, path string) error {
	xs := elapsed(cycles)
	labels := make([]string, len(xs))
	cte := make([]float64, len(cycles))
	speed := make([]float64, len(cycles))
	steering := make([]float64, len(cycles))
	throttle := make([]float64, len(cycles))
	for i, c := range cycles {
		labels[i] = fmt.Sprintf("%.1f", xs[i])
		cte[i] = c.CTE
		speed[i] = c.Speed
		steering[i] = c.Steering
		throttle[i] = c.Throttle
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Control session " + sessionID,
			Subtitle: fmt.Sprintf("%d cycles over %.1fs", len(cycles), xs[len(xs)-1]),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "seconds"}),
	)
	line.SetXAxis(labels).
		AddSeries("cross-track error (m)", lineData(cte)).
		AddSeries("speed", lineData(speed)).
		AddSeries("steering command", lineData(steering)).
		AddSeries("throttle", lineData(throttle))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()
	return line.Render(f)
}

func renderErrorTrace(cycles []db.Cycle, path string) error {
	xs := elapsed(cycles)

	p := plot.New()
	p.Title.Text = "Cross-track error"
	p.X.Label.Text = "seconds"
	p.Y.Label.Text = "metres"

	pts := make(plotter.XYs, len(cycles))
	for i, c := range cycles {
		pts[i].X = xs[i]
		pts[i].Y = c.CTE
	}
	trace, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("failed to build trace: %w", err)
	}
	trace.Color = color.RGBA{R: 196, A: 255}
	p.Add(plotter.NewGrid(), trace)

	return p.Save(10*vg.Inch, 4*vg.Inch, path)
}
