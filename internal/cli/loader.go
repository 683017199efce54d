package cli

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/danmaku/internal/engine"
)

//go:embed wall.cue
var wallSchema string

// LoadError represents an error that occurred while loading a wall
// config file.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// wallFile mirrors #Wall for decoding.
type wallFile struct {
	Lanes          int     `json:"lanes"`
	LaneHeight     float64 `json:"lane_height"`
	TopPadding     float64 `json:"top_padding"`
	Speed          float64 `json:"speed"`
	MinDurationMS  int64   `json:"min_duration_ms"`
	GapPx          float64 `json:"gap_px"`
	SurfaceWidth   float64 `json:"surface_width"`
	FallbackCharPx float64 `json:"fallback_char_px"`
	Font           struct {
		Family string  `json:"family"`
		SizePx float64 `json:"size_px"`
	} `json:"font"`
}

func (w wallFile) config() engine.Config {
	return engine.Config{
		Lanes:          w.Lanes,
		LaneHeight:     w.LaneHeight,
		TopPadding:     w.TopPadding,
		SpeedPxPerSec:  w.Speed,
		MinDuration:    time.Duration(w.MinDurationMS) * time.Millisecond,
		GapPx:          w.GapPx,
		SurfaceWidth:   w.SurfaceWidth,
		FallbackCharPx: w.FallbackCharPx,
		Font:           engine.Font{Family: w.Font.Family, SizePx: w.Font.SizePx},
	}
}

// LoadWallConfig reads a CUE wall config file and unifies it with the
// embedded schema. An empty path yields the schema defaults.
func LoadWallConfig(path string) (engine.Config, error) {
	var src []byte
	if path != "" {
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			return engine.Config{}, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("config file not found: %s", path)}
		}
		if err != nil {
			return engine.Config{}, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading config file: %v", err)}
		}
		src = data
	}
	return ParseWallConfig(src, path)
}

// ParseWallConfig unifies CUE source with the wall schema and decodes the
// result. filename is used in error positions.
func ParseWallConfig(src []byte, filename string) (engine.Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(wallSchema, cue.Filename("wall.cue"))
	if err := schema.Err(); err != nil {
		return engine.Config{}, fmt.Errorf("compiling wall schema: %w", err)
	}

	file := ctx.CompileBytes(src, cue.Filename(filename))
	if err := file.Err(); err != nil {
		return engine.Config{}, cueLoadError(ErrCodeLoadFailed, err)
	}

	value := schema.LookupPath(cue.ParsePath("#Wall")).Unify(file)
	if err := value.Validate(); err != nil {
		return engine.Config{}, cueLoadError(ErrCodeInvalidConfig, err)
	}

	var wf wallFile
	if err := value.Decode(&wf); err != nil {
		return engine.Config{}, cueLoadError(ErrCodeInvalidConfig, err)
	}

	cfg := wf.config()
	if err := cfg.Validate(); err != nil {
		return engine.Config{}, &LoadError{Code: ErrCodeInvalidConfig, Message: err.Error()}
	}
	return cfg, nil
}

// cueLoadError converts a CUE error to a LoadError carrying the first
// reported position.
func cueLoadError(code string, err error) *LoadError {
	le := &LoadError{Code: code, Message: err.Error()}
	var cerr cueerrors.Error
	if errors.As(err, &cerr) {
		if errs := cueerrors.Errors(cerr); len(errs) > 0 {
			le.Message = errs[0].Error()
			le.Pos = errs[0].Position()
		}
	}
	return le
}
