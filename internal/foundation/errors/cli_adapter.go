package errors

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// CLIErrorAdapter prints an error to stderr and exits with the code of its
// category.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
	stderr  io.Writer
	exit    func(int)
}

func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{
		verbose: verbose,
		logger:  logger,
		stderr:  os.Stderr,
		exit:    os.Exit,
	}
}

// ExitCodeFor returns the process exit code for err. Unclassified errors
// exit with 1.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	if classified, ok := AsClassified(err); ok {
		return traitsOf(classified.category).exitCode
	}
	return unclassifiedTraits.exitCode
}

// FormatError renders err for stderr. Without -v the cause of a classified
// error is hidden.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	if classified, ok := AsClassified(err); ok && !a.verbose && classified.cause != nil {
		return fmt.Sprintf("Error: %s (use -v for details)", classified.message)
	}
	return "Error: " + err.Error()
}

// HandleError reports err and exits. It does nothing for a nil error.
func (a *CLIErrorAdapter) HandleError(err error) {
	if err == nil {
		return
	}

	classified, ok := AsClassified(err)
	switch {
	case !ok:
		a.logger.Error("Unclassified error", "error", err)
	case a.verbose || classified.fatal:
		a.logClassified(classified)
	}

	fmt.Fprintln(a.stderr, a.FormatError(err))
	a.exit(a.ExitCodeFor(err))
}

func (a *CLIErrorAdapter) logClassified(e *ClassifiedError) {
	attrs := []slog.Attr{slog.String("category", string(e.category))}
	if e.retryable {
		attrs = append(attrs, slog.Bool("retryable", true))
	}
	if e.cause != nil {
		attrs = append(attrs, slog.String("error", e.cause.Error()))
	}
	for k, v := range e.context {
		attrs = append(attrs, slog.Any(k, v))
	}
	a.logger.LogAttrs(context.Background(), slog.LevelError, e.message, attrs...)
}
