package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/danmaku/internal/engine"
)

// WallConfigView is the printable form of a wall configuration.
type WallConfigView struct {
	Lanes          int     `json:"lanes"`
	LaneHeight     float64 `json:"lane_height"`
	TopPadding     float64 `json:"top_padding"`
	Speed          float64 `json:"speed"`
	MinDurationMS  int64   `json:"min_duration_ms"`
	GapPx          float64 `json:"gap_px"`
	SurfaceWidth   float64 `json:"surface_width"`
	FallbackCharPx float64 `json:"fallback_char_px"`
	FontFamily     string  `json:"font_family"`
	FontSizePx     float64 `json:"font_size_px"`
}

func newWallConfigView(c engine.Config) WallConfigView {
	return WallConfigView{
		Lanes:          c.Lanes,
		LaneHeight:     c.LaneHeight,
		TopPadding:     c.TopPadding,
		Speed:          c.SpeedPxPerSec,
		MinDurationMS:  c.MinDuration.Milliseconds(),
		GapPx:          c.GapPx,
		SurfaceWidth:   c.SurfaceWidth,
		FallbackCharPx: c.FallbackCharPx,
		FontFamily:     c.Font.Family,
		FontSizePx:     c.Font.SizePx,
	}
}

func (v WallConfigView) lines() []string {
	return []string{
		fmt.Sprintf("lanes:            %d", v.Lanes),
		fmt.Sprintf("lane_height:      %g", v.LaneHeight),
		fmt.Sprintf("top_padding:      %g", v.TopPadding),
		fmt.Sprintf("speed:            %g px/s", v.Speed),
		fmt.Sprintf("min_duration:     %dms", v.MinDurationMS),
		fmt.Sprintf("gap_px:           %g", v.GapPx),
		fmt.Sprintf("surface_width:    %g", v.SurfaceWidth),
		fmt.Sprintf("fallback_char_px: %g", v.FallbackCharPx),
		fmt.Sprintf("font:             %s %gpx", v.FontFamily, v.FontSizePx),
	}
}

// NewConfigCommand creates the config command.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config [file.cue]",
		Short: "Print the resolved wall configuration",
		Long: `Unify a CUE wall config file with the built-in schema and print the
result. Without a file the defaults are printed.

Example:
  danmaku config wall.cue
  danmaku config --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			return runConfig(rootOpts, path, cmd)
		},
	}
}

func runConfig(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	if path != "" {
		formatter.VerboseLog("Loading %s", path)
	}

	cfg, err := LoadWallConfig(path)
	if err != nil {
		code := ErrCodeGeneric
		var le *LoadError
		if errors.As(err, &le) {
			code = le.Code
		}
		return formatter.Fail(ExitCommandError, code, "invalid wall config", err)
	}

	view := newWallConfigView(cfg)
	return formatter.Success(view, view.lines()...)
}
