// Package doctor runs readiness diagnostics for config, audio, transcription,
// the streaming recognizer, and the pronunciation scorer.
package doctor

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/audio"
	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/config"
	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/scoring"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", status, check.Name, check.Message)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// probes are swapped in tests.
var (
	selectDevice = audio.SelectDevice
	checkScorer  = func(ctx context.Context, cfg config.ScoringConfig) error {
		remote, err := scoring.DialRemote(ctx, scoring.RemoteConfig{
			Endpoint:    cfg.GRPCEndpoint,
			DialTimeout: cfg.DialTimeout(),
		})
		if err != nil {
			return err
		}
		defer remote.Close()
		return remote.Check(ctx)
	}
)

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, loaded config.Loaded) Report {
	cfg := loaded.Config
	checks := []Check{checkConfig(loaded)}

	checks = append(checks, checkAudioSelection(ctx, cfg))
	if cfg.Transcription.Enable {
		checks = append(checks, checkCredential("transcription.api_key", cfg.Transcription.APIKeyEnv))
	}
	if cfg.Recognizer.Enable {
		checks = append(checks, checkCredential("recognizer.token", cfg.Recognizer.TokenEnv))
		checks = append(checks, checkRecognizerReachable(ctx, cfg.Recognizer))
	}
	checks = append(checks, checkScoring(ctx, cfg.Scoring))
	checks = append(checks, checkListen(cfg.Server.Listen))

	if cfg.Feedback.SoundEnable {
		for _, file := range []string{cfg.Feedback.SoundSuccessFile, cfg.Feedback.SoundTryAgainFile} {
			if strings.TrimSpace(file) == "" {
				continue
			}
			checks = append(checks, checkFile("feedback.sound", config.ExpandUserPath(file)))
			checks = append(checks, checkBinary("pw-play", "custom cue playback"))
		}
	}
	if cfg.Feedback.Desktop {
		checks = append(checks, checkBinary("busctl", "desktop notifications"))
	}

	return Report{Checks: checks}
}

func checkConfig(loaded config.Loaded) Check {
	if !loaded.Exists {
		return Check{Name: "config", Pass: true, Message: fmt.Sprintf("%q not found; using defaults", loaded.Path)}
	}
	return Check{Name: "config", Pass: true, Message: fmt.Sprintf("loaded %q", loaded.Path)}
}

// checkCredential validates that the named environment variable holds a secret.
func checkCredential(name string, env string) Check {
	if strings.TrimSpace(os.Getenv(env)) == "" {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("%s is not set", env)}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("%s is set", env)}
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

func checkFile(name string, path string) Check {
	if _, err := os.Stat(path); err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("found %s", path)}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	selection, err := selectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkRecognizerReachable opens a TCP connection to the recognizer host.
func checkRecognizerReachable(ctx context.Context, cfg config.RecognizerConfig) Check {
	u, err := url.Parse(strings.TrimSpace(cfg.URL))
	if err != nil || u.Host == "" {
		return Check{Name: "recognizer.url", Pass: false, Message: fmt.Sprintf("invalid url %q", cfg.URL)}
	}
	host := u.Host
	if u.Port() == "" {
		port := "443"
		if u.Scheme == "ws" {
			port = "80"
		}
		host = net.JoinHostPort(u.Hostname(), port)
	}

	dialer := net.Dialer{Timeout: 2 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", host)
	if err != nil {
		return Check{Name: "recognizer.url", Pass: false, Message: fmt.Sprintf("dial %s: %v", host, err)}
	}
	_ = conn.Close()
	return Check{Name: "recognizer.url", Pass: true, Message: fmt.Sprintf("reachable at %s", host)}
}

func checkScoring(ctx context.Context, cfg config.ScoringConfig) Check {
	if !strings.EqualFold(strings.TrimSpace(cfg.Backend), config.ScoringBackendGRPC) {
		return Check{Name: "scoring", Pass: true, Message: fmt.Sprintf("local similarity scorer (pass threshold %d)", cfg.PassThreshold)}
	}

	probeCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout()+time.Second)
	defer cancel()
	if err := checkScorer(probeCtx, cfg); err != nil {
		return Check{Name: "scoring", Pass: false, Message: err.Error()}
	}
	return Check{Name: "scoring", Pass: true, Message: fmt.Sprintf("serving at %s", cfg.GRPCEndpoint)}
}

func checkListen(addr string) Check {
	if _, _, err := net.SplitHostPort(strings.TrimSpace(addr)); err != nil {
		return Check{Name: "server.listen", Pass: false, Message: err.Error()}
	}
	return Check{Name: "server.listen", Pass: true, Message: addr}
}
