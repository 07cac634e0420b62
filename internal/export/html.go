package export

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/delivery.report/internal/delivery"
)

var pitchOrder = []delivery.PitchType{delivery.PitchYorker, delivery.PitchFull, delivery.PitchGood, delivery.PitchShort}

// RenderHTMLReport writes a self-contained go-echarts page for the session:
// speed per frame, ball paths, max speed per delivery and pitch lengths.
func RenderHTMLReport(w io.Writer, s Session) error {
	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("Deliveries - %s", s.VideoID)
	page.AddCharts(speedChart(s), pathChart(s), maxSpeedChart(s), pitchChart(s))
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

func speedChart(s Session) *charts.Scatter {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Speed", Subtitle: fmt.Sprintf("video=%s fps=%g", s.VideoID, s.FPS)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "km/h", NameLocation: "middle", NameGap: 30}),
	)
	for _, rec := range s.Deliveries {
		data := make([]opts.ScatterData, 0, len(rec.Trajectory))
		// The first point carries no speed reading.
		for _, p := range rec.Trajectory[min(1, len(rec.Trajectory)):] {
			data = append(data, opts.ScatterData{Value: []interface{}{p.Frame, p.SpeedKmph}})
		}
		scatter.AddSeries(deliveryLabel(rec), data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 5}))
	}
	return scatter
}

func pathChart(s Session) *charts.Scatter {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "720px"}),
		charts.WithTitleOpts(opts.Title{Title: "Ball path", Subtitle: "image pixels, y down"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "x (px)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "y (px)", NameLocation: "middle", NameGap: 30}),
	)
	for _, rec := range s.Deliveries {
		data := make([]opts.ScatterData, 0, len(rec.Trajectory))
		for _, p := range rec.Trajectory {
			data = append(data, opts.ScatterData{Value: []interface{}{p.X, p.Y}})
		}
		scatter.AddSeries(deliveryLabel(rec), data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))
	}
	return scatter
}

func maxSpeedChart(s Session) *charts.Bar {
	x := make([]string, 0, len(s.Deliveries))
	maxes := make([]opts.BarData, 0, len(s.Deliveries))
	releases := make([]opts.BarData, 0, len(s.Deliveries))
	for _, rec := range s.Deliveries {
		x = append(x, deliveryLabel(rec))
		maxes = append(maxes, opts.BarData{Value: rec.Speed.MaxKmph})
		release := 0.0
		if rec.Speed.ReleaseKmph != nil {
			release = *rec.Speed.ReleaseKmph
		}
		releases = append(releases, opts.BarData{Value: release})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Speed per delivery"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("release km/h", releases).
		AddSeries("max km/h", maxes,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}

func pitchChart(s Session) *charts.Bar {
	counts := s.PitchCounts()
	x := make([]string, 0, len(pitchOrder))
	y := make([]opts.BarData, 0, len(pitchOrder))
	for _, p := range pitchOrder {
		x = append(x, string(p))
		y = append(y, opts.BarData{Value: counts[p]})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "600px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Pitch length", Subtitle: fmt.Sprintf("pitch=%gm", s.PitchLengthMeters)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("deliveries", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}

func deliveryLabel(rec delivery.Record) string {
	return fmt.Sprintf("#%d", rec.DeliveryID)
}
