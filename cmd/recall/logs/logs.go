// Package logscmder provides the logs command for reading the JSON log file
// written by "recall serve --log-file".
package logscmder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/recall/pkg/cliui"
)

var (
	debugStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	infoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("192"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("204")).Bold(true)
)

// Keys printed in the record prefix rather than as attributes.
var reservedKeys = []string{"time", "level", "msg"}

type logsCommander struct {
	follow    bool
	sessionID string
	raw       bool
}

const logsLongDesc string = `Print the JSON log file written by "recall serve --log-file".

Records are printed as one line each. Use --session to show only the records
of one session and --follow to keep printing records as the server writes them.

Examples:
  recall logs recall.log
  recall logs recall.log --session user-42
  recall logs recall.log -f`

const logsShortDesc string = "Print server log records"

func NewLogsCmd() *cobra.Command {
	cmder := &logsCommander{}

	cmd := &cobra.Command{
		Use:   "logs <file>",
		Short: logsShortDesc,
		Long:  logsLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			err := cmder.run(ctx, args[0], cmd.OutOrStdout())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVarP(&cmder.follow, "follow", "f", false, "Keep printing records as they are written")
	cmd.Flags().StringVar(&cmder.sessionID, "session", "", "Only print records for this session id")
	cmd.Flags().BoolVar(&cmder.raw, "raw", false, "Print records as JSON")

	return cmd
}

func (c *logsCommander) run(ctx context.Context, path string, out io.Writer) error {
	lw := &lineWriter{emit: func(line []byte) error { return c.printRecord(out, line) }}
	if err := followLog(ctx, path, lw, c.follow); err != nil {
		return err
	}
	return lw.Flush()
}

// followLog copies path to out. With follow set it keeps copying data
// appended to the file until ctx is done.
func followLog(ctx context.Context, path string, out io.Writer, follow bool) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer file.Close()

	buf := make([]byte, 4096)
	readAvailable := func() error {
		for {
			n, err := file.Read(buf)
			if n > 0 {
				if _, writeErr := out.Write(buf[:n]); writeErr != nil {
					return writeErr
				}
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				return err
			}
		}
	}

	if !follow {
		return readAvailable()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating log watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching log dir: %w", err)
	}

	if err := readAvailable(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-watcher.Events:
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := readAvailable(); err != nil {
				return err
			}
		case err := <-watcher.Errors:
			return fmt.Errorf("log watcher error: %w", err)
		}
	}
}

// lineWriter splits written bytes into lines and holds back a trailing
// partial line until the rest of it arrives.
type lineWriter struct {
	pending []byte
	emit    func(line []byte) error
}

func (l *lineWriter) Write(p []byte) (int, error) {
	l.pending = append(l.pending, p...)
	for {
		i := bytes.IndexByte(l.pending, '\n')
		if i < 0 {
			return len(p), nil
		}
		line := l.pending[:i]
		l.pending = l.pending[i+1:]
		if err := l.emit(line); err != nil {
			return len(p), err
		}
	}
}

// Flush emits a final line that had no newline.
func (l *lineWriter) Flush() error {
	if len(l.pending) == 0 {
		return nil
	}
	line := l.pending
	l.pending = nil
	return l.emit(line)
}

func (c *logsCommander) printRecord(w io.Writer, line []byte) error {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil
	}

	var rec map[string]any
	if err := json.Unmarshal(line, &rec); err != nil {
		// Not a JSON record; only shown when unfiltered.
		if c.sessionID == "" {
			_, err := fmt.Fprintf(w, "%s\n", line)
			return err
		}
		return nil
	}

	if c.sessionID != "" && fmt.Sprint(rec["session_id"]) != c.sessionID {
		return nil
	}

	if c.raw {
		_, err := fmt.Fprintf(w, "%s\n", line)
		return err
	}

	_, err := fmt.Fprintln(w, formatRecord(rec))
	return err
}

func formatRecord(rec map[string]any) string {
	var b strings.Builder

	if ts, ok := rec["time"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			ts = t.Local().Format("15:04:05.000")
		}
		b.WriteString(cliui.DimStyle.Render(ts))
		b.WriteByte(' ')
	}

	level, _ := rec["level"].(string)
	b.WriteString(levelLabel(level))
	b.WriteByte(' ')

	msg, _ := rec["msg"].(string)
	b.WriteString(msg)

	keys := make([]string, 0, len(rec))
	for k := range rec {
		if !slices.Contains(reservedKeys, k) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(cliui.KeyStyle.Render(k + "="))
		b.WriteString(formatValue(rec[k]))
	}
	return b.String()
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		if strings.ContainsAny(val, " \t\"=") {
			return fmt.Sprintf("%q", val)
		}
		return val
	case map[string]any, []any:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	default:
		return fmt.Sprint(val)
	}
}

func levelLabel(level string) string {
	label := fmt.Sprintf("%-5s", strings.ToUpper(level))
	switch strings.ToUpper(level) {
	case "DEBUG":
		return debugStyle.Render(label)
	case "INFO":
		return infoStyle.Render(label)
	case "WARN":
		return warnStyle.Render(label)
	case "ERROR":
		return errorStyle.Render(label)
	default:
		return label
	}
}
