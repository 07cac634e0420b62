package export

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/delivery.report/internal/delivery"
)

// Plot file names written by PlotTrajectories.
const (
	PathPlotFile  = "delivery_paths.png"
	SpeedPlotFile = "delivery_speeds.png"
)

// PlotTrajectories writes two PNGs into dir: every delivery's pixel path,
// and its speed against frame. It returns the files written.
func PlotTrajectories(dir string, s Session) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create plot dir: %w", err)
	}

	pPath := plot.New()
	pPath.Title.Text = fmt.Sprintf("%s - Ball Path", s.VideoID)
	pPath.X.Label.Text = "x (px)"
	pPath.Y.Label.Text = "y (px)"

	pSpeed := plot.New()
	pSpeed.Title.Text = fmt.Sprintf("%s - Speed", s.VideoID)
	pSpeed.X.Label.Text = "Frame"
	pSpeed.Y.Label.Text = "Speed (km/h)"

	colors := generateColors(len(s.Deliveries))
	for i, rec := range s.Deliveries {
		label := deliveryLabel(rec)
		pathPts, speedPts := trajectoryXYs(rec)

		if len(pathPts) > 0 {
			// Image rows grow downwards; flip so the plot reads like the frame.
			flipped := make(plotter.XYs, len(pathPts))
			for j, p := range pathPts {
				flipped[j] = plotter.XY{X: p.X, Y: -p.Y}
			}
			line, err := plotter.NewLine(flipped)
			if err != nil {
				return nil, fmt.Errorf("path line for %s: %w", label, err)
			}
			line.Color = colors[i]
			line.Width = vg.Points(1.5)
			pPath.Add(line)
			pPath.Legend.Add(label, line)

			if rec.Bounce != nil {
				marker, err := plotter.NewScatter(plotter.XYs{{X: float64(rec.Bounce.X), Y: -float64(rec.Bounce.Y)}})
				if err != nil {
					return nil, fmt.Errorf("bounce marker for %s: %w", label, err)
				}
				marker.Color = colors[i]
				marker.Radius = vg.Points(4)
				pPath.Add(marker)
			}
		}

		if len(speedPts) > 0 {
			line, err := plotter.NewLine(speedPts)
			if err != nil {
				return nil, fmt.Errorf("speed line for %s: %w", label, err)
			}
			line.Color = colors[i]
			line.Width = vg.Points(1)
			pSpeed.Add(line)
			pSpeed.Legend.Add(label, line)
		}
	}

	for _, p := range []*plot.Plot{pPath, pSpeed} {
		p.Legend.Top = true
		p.Legend.Left = false
		p.Legend.XOffs = -10
		p.Legend.YOffs = -10
	}

	pathFile := filepath.Join(dir, PathPlotFile)
	if err := pPath.Save(10*vg.Inch, 6*vg.Inch, pathFile); err != nil {
		return nil, fmt.Errorf("save path plot: %w", err)
	}
	speedFile := filepath.Join(dir, SpeedPlotFile)
	if err := pSpeed.Save(14*vg.Inch, 6*vg.Inch, speedFile); err != nil {
		return nil, fmt.Errorf("save speed plot: %w", err)
	}
	return []string{pathFile, speedFile}, nil
}

// trajectoryXYs splits a record into its pixel path and its speed series.
// The first trajectory point has no speed reading and is left out of the
// speed series.
func trajectoryXYs(rec delivery.Record) (path, speed plotter.XYs) {
	path = make(plotter.XYs, 0, len(rec.Trajectory))
	speed = make(plotter.XYs, 0, len(rec.Trajectory))
	for i, p := range rec.Trajectory {
		path = append(path, plotter.XY{X: float64(p.X), Y: float64(p.Y)})
		if i > 0 {
			speed = append(speed, plotter.XY{X: float64(p.Frame), Y: p.SpeedKmph})
		}
	}
	return path, speed
}

// generateColors returns n evenly spaced hues.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}

	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64

	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}

	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	if t < 1.0/6.0 {
		return p + (q-p)*6*t
	}
	if t < 1.0/2.0 {
		return q
	}
	if t < 2.0/3.0 {
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
