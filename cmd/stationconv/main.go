// Command stationconv converts station coordinates from the command line.
//
// Usage:
//
//	stationconv parse --mode dms --latitudes 48N,49N --longitudes 126W,144W \
//	  --lat-minutes 39,59.9 --lon-minutes 39.0,18.2
//	stationconv dms 48 39 0 N
//	stationconv --format json parse --latitudes 48.65 --longitudes -126.65
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/alecthomas/kong"
	"github.com/couchcryptid/station-mapper-service/internal/domain"
	"github.com/gookit/color"
)

type cli struct {
	Format string `help:"Output format." enum:"text,json" default:"text" short:"f"`
	Color  bool   `help:"Colorize text output."`

	Parse parseCmd `cmd:"" help:"Convert comma-separated station fields into a station table."`
	DMS   dmsCmd   `cmd:"" name:"dms" help:"Convert a single degrees/minutes/seconds reading to decimal degrees."`
}

// output carries the global flags to subcommands.
type output struct {
	w      io.Writer
	format string
	color  bool
}

type parseCmd struct {
	Mode       string `help:"Coordinate mode: decimal (d) or dms (s)." default:"decimal" short:"m"`
	Latitudes  string `help:"Latitudes, or latitude degrees with N/S in dms mode." required:""`
	Longitudes string `help:"Longitudes, or longitude degrees with E/W in dms mode." required:""`
	LatMinutes string `help:"Latitude minutes (dms mode)."`
	LatSeconds string `help:"Latitude seconds (dms mode)."`
	LonMinutes string `help:"Longitude minutes (dms mode)."`
	LonSeconds string `help:"Longitude seconds (dms mode)."`
}

func (c *parseCmd) Run(out *output) error {
	result := domain.ProcessSubmission(domain.Submission{
		ID:         "cli",
		Mode:       c.Mode,
		Latitudes:  c.Latitudes,
		Longitudes: c.Longitudes,
		LatMinutes: c.LatMinutes,
		LatSeconds: c.LatSeconds,
		LonMinutes: c.LonMinutes,
		LonSeconds: c.LonSeconds,
	})
	if result.Status == domain.StatusRejected {
		return errors.New(result.Error.Message)
	}

	if out.format == "json" {
		return writeJSON(out.w, result.Stations)
	}

	tw := tabwriter.NewWriter(out.w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, out.header("Station\tLatitude\tLongitude\t"))
	for _, row := range result.Stations {
		fmt.Fprintf(tw, "%d\t%s\t%s\t\n", row.Station, formatFloat(row.Latitude), formatFloat(row.Longitude))
	}
	return tw.Flush()
}

type dmsCmd struct {
	Degrees    string `arg:"" help:"Whole degrees, optionally suffixed with N, S, E or W."`
	Minutes    string `arg:"" optional:"" help:"Minutes."`
	Seconds    string `arg:"" optional:"" help:"Seconds."`
	Hemisphere string `arg:"" optional:"" help:"N, S, E or W when not suffixed to degrees."`
}

func (c *dmsCmd) Run(out *output) error {
	v, err := domain.ParseDMSValue(c.Degrees, c.Minutes, c.Seconds, c.Hemisphere)
	if err != nil {
		return err
	}

	if out.format == "json" {
		return writeJSON(out.w, struct {
			Decimal float64         `json:"decimal"`
			DMS     domain.DMSValue `json:"dms"`
		}{Decimal: v.Decimal(), DMS: v})
	}
	_, err = fmt.Fprintf(out.w, "%s = %s\n", v, formatFloat(v.Decimal()))
	return err
}

func (o *output) header(s string) string {
	if !o.color {
		return s
	}
	return color.RenderString(color.Bold.Code(), s)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// run parses args and executes the selected subcommand, returning the
// process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	var c cli
	exitCode := -1
	parser, err := kong.New(&c,
		kong.Name("stationconv"),
		kong.Description("Convert oceanographic station coordinates to decimal degrees."),
		kong.UsageOnError(),
		kong.Writers(stdout, stderr),
		// Western and southern decimal coordinates start with a minus sign.
		kong.WithHyphenPrefixedParameters(true),
		kong.Exit(func(code int) { exitCode = code }))
	if err != nil {
		fmt.Fprintf(stderr, "ERR: %s\n", err)
		return 2
	}

	kctx, err := parser.Parse(args)
	if exitCode >= 0 {
		// --help already printed usage.
		return exitCode
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERR: %s\n", err)
		return 2
	}

	if err := kctx.Run(&output{w: stdout, format: c.Format, color: c.Color}); err != nil {
		fmt.Fprintf(stderr, "ERR: %s\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
