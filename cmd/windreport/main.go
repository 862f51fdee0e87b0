// Command windreport renders a saved analysis payload as an XLSX or PDF
// report without running the service. The payload is the JSON body returned
// by the statistics endpoint; an optional weather payload supplies the raw
// series used when the analysis carries no time series.
//
// Usage:
//
//	go run ./cmd/windreport \
//	  -analysis testdata/analysis.json \
//	  -weather testdata/weather.json \
//	  -format pdf -unit kmh -height 100 -out reports/
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/couchcryptid/wind-explorer/internal/domain"
	"github.com/couchcryptid/wind-explorer/internal/report"
	"github.com/jonboulle/clockwork"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	analysisPath := flag.String("analysis", "", "path to the analysis JSON payload")
	weatherPath := flag.String("weather", "", "optional path to the weather JSON payload")
	format := flag.String("format", "xlsx", "output format: xlsx or pdf")
	unitFlag := flag.String("unit", "ms", "speed unit: ms or kmh")
	heightFlag := flag.String("height", "10", "measurement height: 10 or 100")
	outDir := flag.String("out", ".", "output directory")
	generated := flag.String("generated", "", "report date as YYYY-MM-DD (default today)")
	flag.Parse()

	if *analysisPath == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -analysis")
	}
	unit, err := domain.ParseSpeedUnit(*unitFlag)
	if err != nil {
		return err
	}
	height, err := domain.ParseHeight(*heightFlag)
	if err != nil {
		return err
	}

	// Pin the clock so the file name and report date are reproducible.
	if *generated != "" {
		day, err := domain.ParseDate("generated", *generated)
		if err != nil {
			return err
		}
		domain.SetClock(clockwork.NewFakeClockAt(day))
		defer domain.SetClock(nil)
	}

	raw, err := loadJSON(*analysisPath)
	if err != nil {
		return err
	}
	if !domain.HasSections(raw) {
		return fmt.Errorf("%s: %w", *analysisPath, report.ErrNoData)
	}
	n := domain.NormalizeAt(raw, height)

	var paired domain.PairedSeries
	if *weatherPath != "" {
		w, err := loadJSON(*weatherPath)
		if err != nil {
			return err
		}
		// Accept either the full {status, data} envelope or the bare data object.
		if data := domain.SafeGet(w, "data", nil); data != nil {
			w = data
		}
		paired = domain.PairFromWeather(w, height)
	}

	now := domain.Now()
	meta := report.Meta{Title: "Wind Resource Analysis", Unit: unit, Generated: now}
	rows := report.Rows(n, unit)

	var buf bytes.Buffer
	var prefix string
	switch *format {
	case "xlsx":
		prefix = report.XLSXPrefix
		err = report.WriteXLSX(&buf, rows, meta)
	case "pdf":
		prefix = report.PDFPrefix
		var charts []report.Chart
		charts, err = report.RenderCharts(domain.DeriveCharts(n, paired, unit))
		if err == nil {
			err = report.WritePDF(&buf, rows, charts, meta)
		}
	default:
		return fmt.Errorf("unsupported format %q", *format)
	}
	if err != nil {
		return fmt.Errorf("render %s: %w", *format, err)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(*outDir, report.FileName(prefix, *format, now))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	fmt.Printf("schema:   %s\n", n.Schema)
	fmt.Printf("sections: %d populated\n", len(n.Populated()))
	fmt.Printf("rows:     %d\n", len(rows))
	fmt.Printf("written:  %s\n", path)
	return nil
}

func loadJSON(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return v, nil
}
