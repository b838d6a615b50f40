package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/reloadgo/internal/app"
	"github.com/vk/reloadgo/internal/config"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("reloadgo", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
ReloadGo - A reactive build-and-run supervisor for Go projects.

Usage:
  reloadgo [options] [ROOT]

Arguments:
  ROOT
    Project directory to watch and build. Defaults to the current directory.

Options:
`)
		flagSet.PrintDefaults()
	}

	configFlag := flagSet.String("config", "", "Path to the config file. Defaults to reload.hcl under ROOT.")
	cFlag := flagSet.String("c", "", "Path to the config file (shorthand).")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	statusPortFlag := flagSet.Int("status-port", 0, "Port for the HTTP status server. 0 is disabled.")
	debounceFlag := flagSet.Int("debounce", 0, "Quiet period in milliseconds before a rebuild fires.")
	graceFlag := flagSet.Int("grace", 0, "Milliseconds a process group gets to exit before it is killed.")
	clearFlag := flagSet.Bool("clear", true, "Clear the screen at the start of each rebuild cycle.")
	buildFlag := flagSet.String("build", "", "Explicit build command, overriding the config file's build mode.")
	runFlag := flagSet.String("run", "", "Explicit run command instead of the built artifact.")
	packageFlag := flagSet.String("package", "", "Go import path to build, overriding the config file's build mode.")
	watchFlag := flagSet.String("watch", "", "Comma-separated list of paths to watch.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	if flagSet.NArg() > 1 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("unexpected argument: %s", flagSet.Arg(1))}
	}
	root := "."
	if flagSet.NArg() == 1 {
		root = flagSet.Arg(0)
	}
	slog.Debug("Project root determined.", "root", root)

	configPath := *configFlag
	if configPath == "" {
		configPath = *cFlag
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	// Only flags the user actually set become overrides, so file values and
	// defaults stay in charge of everything else.
	setFlags := make(map[string]bool)
	flagSet.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })

	ov := config.Overrides{}
	if setFlags["watch"] {
		for _, p := range strings.Split(*watchFlag, ",") {
			if p = strings.TrimSpace(p); p != "" {
				ov.Watch = append(ov.Watch, p)
			}
		}
	}
	if setFlags["debounce"] {
		ov.DebounceMS = debounceFlag
	}
	if setFlags["grace"] {
		ov.GraceMS = graceFlag
	}
	if setFlags["status-port"] {
		ov.StatusPort = statusPortFlag
	}
	if setFlags["clear"] {
		ov.Clear = clearFlag
	}
	if setFlags["build"] {
		ov.Build = buildFlag
	}
	if setFlags["run"] {
		ov.Run = runFlag
	}
	if setFlags["package"] {
		ov.Package = packageFlag
	}

	appConfig, err := app.NewConfig(app.Config{
		Root:       root,
		ConfigPath: configPath,
		LogFormat:  logFormat,
		LogLevel:   logLevel,
		Overrides:  ov,
	})

	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "root", root, "config_path", configPath)
	return appConfig, false, nil
}
