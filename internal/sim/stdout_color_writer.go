// ColorStdoutWriter prints human-friendly, colorized samples to STDOUT.
package sim

import (
	"fmt"
	"io"
	"os"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/RickyDenton/SafeTunnels/internal/config"
	"github.com/RickyDenton/SafeTunnels/internal/telemetry"
)

const (
	colorReset   = "\x1b[0m"
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorBlue    = "\x1b[34m"
	colorMagenta = "\x1b[35m"
	colorCyan    = "\x1b[36m"
	colorGray    = "\x1b[90m"
)

var quantityPalette = []string{colorCyan, colorYellow, colorMagenta, colorBlue, colorGreen}

// ColorStdoutWriter prints sample rows using ANSI colors. The node
// configuration is printed once before the first row.
type ColorStdoutWriter struct {
	cfg    *config.Config
	nodeID string
	out    io.Writer
	once   sync.Once
	colors map[string]string
}

// NewColorStdoutWriter creates a ColorStdoutWriter writing to os.Stdout.
func NewColorStdoutWriter(cfg *config.Config, nodeID string) *ColorStdoutWriter {
	return &ColorStdoutWriter{cfg: cfg, nodeID: nodeID, out: os.Stdout, colors: make(map[string]string)}
}

func (w *ColorStdoutWriter) quantityColor(name string) string {
	if c, ok := w.colors[name]; ok {
		return c
	}
	c := quantityPalette[len(w.colors)%len(quantityPalette)]
	w.colors[name] = c
	return c
}

func (w *ColorStdoutWriter) printOverview() {
	if w.cfg == nil {
		return
	}
	fmt.Fprintln(w.out, "Sensor Configuration:")
	tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Node ID:\t%s\n", w.nodeID)
	fmt.Fprintf(tw, "Broker:\t%s (MQTT %s)\n", w.cfg.Broker.ConnectOptions().Address(), w.cfg.Broker.Protocol)
	fmt.Fprintf(tw, "Max Publish Period:\t%s\n", w.cfg.Broker.MaxPublishPeriod)
	fmt.Fprintf(tw, "Correlation Weight:\t%.2f\n", w.cfg.Simulator.CorrelationWeight)
	tw.Flush()

	fmt.Fprintln(w.out, "\nQuantities:")
	tw = tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Name\tMin\tMax\tBase Max Change\n")
	for _, q := range w.cfg.Quantities {
		fmt.Fprintf(tw, "%s%s%s\t%d\t%d\t%d\n", w.quantityColor(q.Name), q.Name, colorReset, q.Min, q.Max, q.BaseMaxChange)
	}
	tw.Flush()
	fmt.Fprintln(w.out)
}

func outcomeColor(outcome string) string {
	switch outcome {
	case telemetry.Published.String():
		return colorGreen
	case telemetry.Offline.String():
		return colorYellow
	case telemetry.Backpressure.String():
		return colorMagenta
	case telemetry.Failed.String():
		return colorRed
	default:
		return colorGray
	}
}

// Write outputs a single sample row in colorized format.
func (w *ColorStdoutWriter) Write(row telemetry.SampleRow) error {
	w.once.Do(w.printOverview)

	fmt.Fprintf(w.out, "%s[%s]%s ", colorGray, row.Timestamp.Format(time.RFC3339), colorReset)
	fmt.Fprintf(w.out, "%snode=%s%s ", colorBlue, row.NodeID, colorReset)
	fmt.Fprintf(w.out, "%s%s=%d%s ", w.quantityColor(row.Quantity), row.Quantity, row.Value, colorReset)
	fmt.Fprintf(w.out, "%seq=%d%s ", colorGray, row.EqPoint, colorReset)
	if row.CorrelationKnown {
		fmt.Fprintf(w.out, "%sfan=%d%%%s ", colorCyan, row.Correlation, colorReset)
	} else {
		fmt.Fprintf(w.out, "%sfan=?%s ", colorGray, colorReset)
	}
	fmt.Fprintf(w.out, "%sstate=%s%s ", colorBlue, row.ConnState, colorReset)
	_, err := fmt.Fprintf(w.out, "%s%s%s\n", outcomeColor(row.Outcome), row.Outcome, colorReset)
	return err
}
