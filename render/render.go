// Package render draws element positions as map frames for quick
// visual inspection of a run.
package render

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/pthm-cable/drift/components"
	"github.com/pthm-cable/drift/model"
)

// Canvas renders model snapshots to PNG frames in an output directory.
// The axes stay fixed to the run bounds so frames line up as an
// animation.
type Canvas struct {
	dir    string
	bounds model.Bounds
}

// NewCanvas creates a canvas writing into dir. Returns nil if dir is
// empty (rendering disabled).
func NewCanvas(dir string, bounds model.Bounds) (*Canvas, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating frames directory: %w", err)
	}
	return &Canvas{dir: dir, bounds: bounds}, nil
}

// WriteFrame renders one snapshot as frame_<step>.png. Forecast
// elements draw black, uncertainty elements red.
func (c *Canvas) WriteFrame(step int, views []model.ElementView) error {
	if c == nil {
		return nil
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("step %d", step)
	p.X.Label.Text = "Longitude"
	p.Y.Label.Text = "Latitude"
	p.X.Min = c.bounds.MinLon
	p.X.Max = c.bounds.MaxLon
	p.Y.Min = c.bounds.MinLat
	p.Y.Max = c.bounds.MaxLat

	forecast := make(plotter.XYs, 0, len(views))
	uncertain := make(plotter.XYs, 0)
	for _, v := range views {
		if v.Status != components.StatusInWater {
			continue
		}
		pt := plotter.XY{X: v.Lon, Y: v.Lat}
		if v.Kind == components.KindUncertainty {
			uncertain = append(uncertain, pt)
		} else {
			forecast = append(forecast, pt)
		}
	}

	// Uncertainty first so the forecast cloud stays visible on top.
	if len(uncertain) > 0 {
		s, err := plotter.NewScatter(uncertain)
		if err != nil {
			return fmt.Errorf("uncertainty scatter: %w", err)
		}
		s.GlyphStyle.Color = color.RGBA{R: 200, A: 255}
		s.GlyphStyle.Radius = vg.Points(1)
		p.Add(s)
	}
	if len(forecast) > 0 {
		s, err := plotter.NewScatter(forecast)
		if err != nil {
			return fmt.Errorf("forecast scatter: %w", err)
		}
		s.GlyphStyle.Color = color.Black
		s.GlyphStyle.Radius = vg.Points(1)
		p.Add(s)
	}

	file := filepath.Join(c.dir, fmt.Sprintf("frame_%05d.png", step))
	if err := p.Save(8*vg.Inch, 6*vg.Inch, file); err != nil {
		return fmt.Errorf("save frame: %w", err)
	}
	return nil
}
