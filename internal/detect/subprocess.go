package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const maxStderrBytes = 8 * 1024 // tail of stderr kept for diagnostics

// Config holds the subprocess detector's configuration.
type Config struct {
	PythonPath string        // path to python binary; empty = auto-detect
	ModuleName string        // default "labelkit_detector"
	WorkDir    string        // scratch dir for prediction output files
	Timeout    time.Duration // per-call detection timeout
	Logger     *slog.Logger
}

// SubprocessDetector shells out to a Python detection module:
// `python -m <module> detect --image <path> --out <path> [flags]`.
// The module owns model loading; this side stays stateless.
type SubprocessDetector struct {
	cfg    Config
	python string
}

// NewSubprocessDetector resolves the Python binary and prepares the
// scratch directory.
func NewSubprocessDetector(cfg Config) (*SubprocessDetector, error) {
	python, err := resolvePython(cfg.PythonPath)
	if err != nil {
		return nil, fmt.Errorf("cannot locate python: %w", err)
	}

	if err := os.MkdirAll(cfg.WorkDir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create detector work dir: %w", err)
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("detector initialised",
			"python", python,
			"module", cfg.ModuleName,
		)
	}

	return &SubprocessDetector{cfg: cfg, python: python}, nil
}

func (d *SubprocessDetector) Available() bool {
	return true
}

// Detect runs one detection call. The class prompt and threshold are
// passed as explicit arguments to the subprocess.
func (d *SubprocessDetector) Detect(ctx context.Context, imagePath string, opts Options) ([]Prediction, error) {
	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}

	outPath := filepath.Join(d.cfg.WorkDir, fmt.Sprintf("detect-%d.json", time.Now().UnixNano()))
	defer os.Remove(outPath)

	args := []string{"-m", d.cfg.ModuleName, "detect",
		"--image", imagePath,
		"--out", outPath,
	}
	if len(opts.Classes) > 0 {
		args = append(args, "--classes", strings.Join(opts.Classes, ","))
	}
	if opts.ConfidenceThreshold > 0 {
		args = append(args, "--confidence", strconv.FormatFloat(opts.ConfidenceThreshold, 'f', -1, 64))
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, d.python, args...)

	var stderrBuf bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}
	cmd.Stdout = io.Discard // module writes to --out, not stdout

	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		if d.cfg.Logger != nil {
			d.cfg.Logger.Warn("detector command failed",
				"exit_code", exitCode,
				"duration_ms", elapsed.Milliseconds(),
				"stderr_tail", truncate(stderrBuf.String(), 512),
			)
		}
		return nil, fmt.Errorf("detector exited %d: %s", exitCode, truncate(stderrBuf.String(), 512))
	}

	preds, err := readPredictions(outPath)
	if err != nil {
		return nil, err
	}

	if d.cfg.Logger != nil {
		d.cfg.Logger.Info("detection complete",
			"predictions", len(preds),
			"duration_ms", elapsed.Milliseconds(),
		)
	}

	return Filter(preds, opts.ConfidenceThreshold), nil
}

// readPredictions parses the module's output file.
func readPredictions(path string) ([]Prediction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read detector output: %w", err)
	}

	var out struct {
		Predictions []Prediction `json:"predictions"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("cannot parse detector JSON: %w", err)
	}
	return out.Predictions, nil
}

// resolvePython finds a usable python binary.
func resolvePython(preferred string) (string, error) {
	if preferred != "" {
		if p, err := exec.LookPath(preferred); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("configured python %q not found", preferred)
	}
	for _, name := range []string{"python3", "python"} {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no python binary found on PATH (tried python3, python)")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter keeps only the last `limit` bytes written.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		lw.w.Reset()
		lw.w.Write(b[len(b)-lw.limit:])
	}
	return n, nil
}
