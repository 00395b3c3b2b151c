// Package main provides vellogd-cli, a debugging client that connects to a
// running vellogd server and issues single drawing commands.
//
//	vellogd-cli -addr unix:/tmp/vellogd.sock circle 100 100 -radius 30 -fill f00
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/opd-ai/go-vellogd/internal/config"
	"github.com/opd-ai/go-vellogd/pkg/vellogd"
)

// Version is the current version of vellogd-cli.
var Version = "0.1.0-dev"

const usage = `usage: vellogd-cli [-addr address] <command> [flags] [args]

commands:
  close                       close the window
  clear                       start a new page
  circle CX CY                draw a circle
  line X0 Y0 X1 Y1            draw a line
  lines X0 Y0 X1 Y1 ...       draw a polyline
  polygon X0 Y0 X1 Y1 ...     draw a polygon
  text X Y [TEXT]             draw text
  save FILE                   save the scene as PNG
  sizes                       print the window size

colours are hex: f00, f00a, ff0000 or ff0000aa, with an optional #
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("vellogd-cli", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	addr := fs.String("addr", os.Getenv("VELLOGD_ADDR"), "Server address (unix:/path or tcp:host:port)")
	timeout := fs.Duration("timeout", 5*time.Second, "Connection timeout")
	version := fs.Bool("v", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *version {
		fmt.Fprintf(stdout, "vellogd-cli version %s\n", Version)
		return 0
	}

	cmd, err := parseCommand(fs.Args())
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n\n%s", err, usage)
		return 2
	}
	if *addr == "" {
		fmt.Fprintln(stderr, "No server address. Use -addr or set VELLOGD_ADDR.")
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	dev, err := vellogd.Connect(ctx, *addr, nil)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to connect: %v\n", err)
		return 1
	}

	// Disconnecting leaves the window open; only the close command asks
	// the server to close it.
	err = cmd(dev, stdout)
	if cerr := dev.Disconnect(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// command runs against a connected device.
type command func(dev vellogd.Device, out io.Writer) error

var errMissingCommand = errors.New("missing command")

func parseCommand(args []string) (command, error) {
	if len(args) == 0 {
		return nil, errMissingCommand
	}
	name, rest := args[0], args[1:]
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	switch name {
	case "close":
		return noArgs(fs, rest, func(d vellogd.Device, _ io.Writer) error { return d.Close() })

	case "clear":
		return noArgs(fs, rest, func(d vellogd.Device, _ io.Writer) error { return d.NewPage(vellogd.GC{}) })

	case "sizes":
		return noArgs(fs, rest, func(d vellogd.Device, out io.Writer) error {
			_, w, _, h, err := d.Size()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%g %g\n", w, h)
			return nil
		})

	case "circle":
		radius := fs.Float64("radius", 50, "Radius")
		gc := shapeFlags(fs, true)
		pos, err := parseNumbers(fs, rest, 2, false)
		if err != nil {
			return nil, err
		}
		g, err := gc()
		if err != nil {
			return nil, err
		}
		return func(d vellogd.Device, _ io.Writer) error {
			return d.Circle(vellogd.Pt(pos[0], pos[1]), *radius, g)
		}, nil

	case "line":
		gc := shapeFlags(fs, false)
		pos, err := parseNumbers(fs, rest, 4, false)
		if err != nil {
			return nil, err
		}
		g, err := gc()
		if err != nil {
			return nil, err
		}
		return func(d vellogd.Device, _ io.Writer) error {
			return d.Line(vellogd.Pt(pos[0], pos[1]), vellogd.Pt(pos[2], pos[3]), g)
		}, nil

	case "lines", "polygon":
		gc := shapeFlags(fs, name == "polygon")
		pos, err := parseNumbers(fs, rest, 4, true)
		if err != nil {
			return nil, err
		}
		g, err := gc()
		if err != nil {
			return nil, err
		}
		x, y := splitXY(pos)
		if name == "lines" {
			return func(d vellogd.Device, _ io.Writer) error { return d.Polyline(x, y, g) }, nil
		}
		return func(d vellogd.Device, _ io.Writer) error { return d.Polygon(x, y, g) }, nil

	case "text":
		return parseText(fs, rest)

	case "save":
		width := fs.Int("width", 0, "Output width (0 keeps the window width)")
		height := fs.Int("height", 0, "Output height (0 keeps the window height)")
		if err := fs.Parse(rest); err != nil {
			return nil, err
		}
		if fs.NArg() != 1 {
			return nil, errors.New("save: expected exactly one FILE")
		}
		file := fs.Arg(0)
		return func(d vellogd.Device, _ io.Writer) error {
			return d.SavePNG(file, *width, *height)
		}, nil

	default:
		return nil, fmt.Errorf("unknown command %q", name)
	}
}

func noArgs(fs *flag.FlagSet, args []string, cmd command) (command, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 0 {
		return nil, fmt.Errorf("%s: unexpected arguments %v", fs.Name(), fs.Args())
	}
	return cmd, nil
}

// shapeFlags registers the stroke flags, and the fill flag when filled
// is set. The returned function builds the context after parsing.
func shapeFlags(fs *flag.FlagSet, filled bool) func() (vellogd.GC, error) {
	width := fs.Float64("width", 8, "Line width")
	col := fs.String("color", "000", "Line colour")
	var fill *string
	if filled {
		fill = fs.String("fill", "999", "Fill colour")
	}
	return func() (vellogd.GC, error) {
		gc := vellogd.GC{Lwd: *width, Lmitre: 10, Lend: 1, Ljoin: 1}
		c, err := hostColor(*col)
		if err != nil {
			return gc, err
		}
		gc.Col = c
		if fill != nil {
			if gc.Fill, err = hostColor(*fill); err != nil {
				return gc, err
			}
		}
		return gc, nil
	}
}

func parseText(fs *flag.FlagSet, args []string) (command, error) {
	col := fs.String("color", "000", "Text colour")
	size := fs.Float64("size", 50, "Font size in points")
	lineHeight := fs.Float64("lineheight", 1, "Line height multiplier")
	face := fs.Int("face", 1, "Font face: 1 plain, 2 bold, 3 italic, 4 bold italic")
	family := fs.String("family", "", "Font family")
	angle := fs.Float64("angle", 0, "Rotation in degrees")
	hadj := fs.Float64("hadj", 0, "Horizontal justification in [0, 1]")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() < 2 || fs.NArg() > 3 {
		return nil, errors.New("text: expected X Y [TEXT]")
	}
	pos, err := floats(fs.Args()[:2])
	if err != nil {
		return nil, err
	}
	s := "vellogd"
	if fs.NArg() == 3 {
		s = fs.Arg(2)
	}
	c, err := hostColor(*col)
	if err != nil {
		return nil, err
	}
	gc := vellogd.GC{
		Col:        c,
		Cex:        1,
		Ps:         *size,
		LineHeight: *lineHeight,
		FontFace:   *face,
		FontFamily: *family,
	}
	return func(d vellogd.Device, _ io.Writer) error {
		return d.Text(vellogd.Pt(pos[0], pos[1]), s, *angle, *hadj, gc)
	}, nil
}

// parseNumbers parses the flags and n positional numbers, or at least n
// in pairs when variadic is set.
func parseNumbers(fs *flag.FlagSet, args []string, n int, variadic bool) ([]float64, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	switch {
	case !variadic && fs.NArg() != n:
		return nil, fmt.Errorf("%s: expected %d numbers, got %d", fs.Name(), n, fs.NArg())
	case variadic && (fs.NArg() < n || fs.NArg()%2 != 0):
		return nil, fmt.Errorf("%s: expected at least %d numbers in x y pairs, got %d", fs.Name(), n, fs.NArg())
	}
	return floats(fs.Args())
}

func floats(args []string) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", a)
		}
		out[i] = v
	}
	return out, nil
}

func splitXY(pos []float64) (x, y []float64) {
	for i := 0; i+1 < len(pos); i += 2 {
		x = append(x, pos[i])
		y = append(y, pos[i+1])
	}
	return x, y
}

// hostColor parses a hex colour into the packed form devices take.
func hostColor(s string) (uint32, error) {
	c, err := config.ParseColor(s)
	if err != nil {
		return 0, err
	}
	return c.Uint32(), nil
}
