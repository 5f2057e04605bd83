// Package vnc starts a local VNC viewer pointed at an inventory host.
package vnc

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"

	"github.com/frahmantamala/opsboard/internal"
	"github.com/frahmantamala/opsboard/internal/eventlog"
)

var validHostname = regexp.MustCompile(`^[A-Za-z0-9.-]+$`)

// ValidHostname reports whether name is safe to hand to the viewer. A
// leading dash would be read as a viewer option.
func ValidHostname(name string) bool {
	return len(name) <= 255 && !strings.HasPrefix(name, "-") && validHostname.MatchString(name)
}

// Launcher starts a viewer session without waiting for it to end.
type Launcher interface {
	Launch(ctx context.Context, hostname string) error
}

// ExecLauncher runs the configured viewer binary.
type ExecLauncher struct {
	viewer   string
	password string
	logger   *slog.Logger
}

func NewExecLauncher(cfg internal.VNCConfig, logger *slog.Logger) *ExecLauncher {
	return &ExecLauncher{viewer: cfg.Viewer, password: cfg.Password, logger: logger}
}

// Args is the viewer command line for hostname.
func (l *ExecLauncher) Args(hostname string) []string {
	args := []string{"-connect", hostname}
	if l.password != "" {
		args = append(args, "-password", l.password)
	}
	return args
}

func (l *ExecLauncher) Launch(_ context.Context, hostname string) error {
	// not bound to the request context: the viewer outlives the request
	cmd := exec.Command(l.viewer, l.Args(hostname)...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			l.logger.Debug("vnc viewer exited", "hostname", hostname, "error", err)
		}
	}()
	return nil
}

type ServiceAPI interface {
	Connect(ctx context.Context, p *internal.Principal, hostname string) error
}

type Service struct {
	launcher Launcher
	events   eventlog.Recorder
	logger   *slog.Logger
}

var _ ServiceAPI = (*Service)(nil)

func NewService(launcher Launcher, events eventlog.Recorder, logger *slog.Logger) *Service {
	return &Service{launcher: launcher, events: events, logger: logger}
}

func (s *Service) Connect(ctx context.Context, p *internal.Principal, hostname string) error {
	hostname = strings.TrimSpace(hostname)
	if hostname == "" {
		return internal.NewValidationError("No hostname provided", internal.ErrCodeValidationFailed)
	}
	if !ValidHostname(hostname) {
		return internal.NewValidationFieldError("hostname", "Invalid hostname", internal.ErrCodeValidationFailed)
	}

	if err := s.launcher.Launch(ctx, hostname); err != nil {
		s.logger.Error("failed to start vnc viewer", "hostname", hostname, "error", err)
		s.events.Record(ctx, eventlog.SourceVNC, eventlog.SeverityError, hostname, fmt.Sprintf("Failed to start VNC viewer: %v", err))
		return internal.NewInternalError(fmt.Sprintf("Failed to start VNC viewer: %v", err), err)
	}

	s.logger.Info("vnc session started", "hostname", hostname, "by", p.Username)
	return nil
}
