// Package trajfile reads trip files and writes compressed trajectories.
//
// A trip file has one point per line: pid,lat,lon,t. The timestamp may be
// written as a decimal and is truncated toward zero.
package trajfile

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/okian/stcurve/internal/domain/curvature"
	"github.com/okian/stcurve/internal/domain/model"
)

const fieldsPerLine = 4

// Sentinel kinds for trip file errors.
var (
	ErrMalformedLine = errors.New("malformed trip line")
)

// Read parses every non-empty line of r into a point, in file order.
func Read(ctx context.Context, r io.Reader) ([]model.Point, error) {
	var points []model.Point
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for sc.Scan() {
		line++
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("read trip: %w", err)
			}
		}
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		p, err := parseLine(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		points = append(points, p)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read trip: %w", err)
	}
	return points, nil
}

// ReadFile opens path and reads it with Read.
func ReadFile(ctx context.Context, path string) ([]model.Point, error) {
	f, err := os.Open(path) //nolint:gosec // path is operator supplied
	if err != nil {
		return nil, fmt.Errorf("open trip file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Read(ctx, f)
}

func parseLine(text string) (model.Point, error) {
	fields := strings.Split(text, ",")
	if len(fields) < fieldsPerLine {
		return model.Point{}, fmt.Errorf("%w: want %d fields, got %d", ErrMalformedLine, fieldsPerLine, len(fields))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	lat, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return model.Point{}, fmt.Errorf("%w: lat %q", ErrMalformedLine, fields[1])
	}
	lon, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return model.Point{}, fmt.Errorf("%w: lon %q", ErrMalformedLine, fields[2])
	}
	ts, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return model.Point{}, fmt.Errorf("%w: t %q", ErrMalformedLine, fields[3])
	}
	if !finite(lat) || !finite(lon) || !finite(ts) || ts >= math.MaxInt64 || ts <= math.MinInt64 {
		return model.Point{}, fmt.Errorf("%w: non-finite or out of range value", ErrMalformedLine)
	}

	return model.Point{ID: fields[0], X: lon, Y: lat, T: int64(ts)}, nil
}

// Write emits "pid x y" for every point.
func Write(w io.Writer, points []model.Point) error {
	bw := bufio.NewWriter(w)
	for _, p := range points {
		if _, err := fmt.Fprintf(bw, "%s %s %s\n", p.ID, formatFloat(p.X), formatFloat(p.Y)); err != nil {
			return fmt.Errorf("write point %s: %w", p.ID, err)
		}
	}
	return bw.Flush()
}

// WriteRate emits the compression rate line for original/compressed.
func WriteRate(w io.Writer, original, compressed int) error {
	_, err := fmt.Fprintf(w, "compress rate: %.2f\n", curvature.Rate(original, compressed))
	return err
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// formatFloat prints the shortest round-tripping form of f, always with a
// fractional part or an exponent, so 116 is written as 116.0.
func formatFloat(f float64) string {
	if a := math.Abs(f); a != 0 && (a < 1e-4 || a >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}
