package audio

import (
	"context"
	"log/slog"

	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/session"
)

// Microphone resolves the configured input on every acquisition so device
// changes between attempts are picked up.
type Microphone struct {
	Input    string
	Fallback string
	Format   Format
	Logger   *slog.Logger

	// selectDevice and start are swapped in tests.
	selectDevice func(ctx context.Context, input string, fallback string) (Selection, error)
	start        func(ctx context.Context, device Device, format Format) (session.Recorder, error)
}

// Acquire selects a device and starts capturing from it.
func (m *Microphone) Acquire(ctx context.Context) (session.Recorder, error) {
	selectFn := m.selectDevice
	if selectFn == nil {
		selectFn = SelectDevice
	}
	startFn := m.start
	if startFn == nil {
		startFn = func(ctx context.Context, device Device, format Format) (session.Recorder, error) {
			return StartCapture(ctx, device, format)
		}
	}

	selection, err := selectFn(ctx, m.Input, m.Fallback)
	if err != nil {
		return nil, err
	}
	if selection.Warning != "" && m.Logger != nil {
		m.Logger.Warn("audio input fallback", "warning", selection.Warning)
	}

	recorder, err := startFn(ctx, selection.Device, m.Format)
	if err != nil {
		return nil, err
	}
	if m.Logger != nil {
		m.Logger.Debug("audio capture started",
			"device", selection.Device.ID,
			"sample_rate", m.Format.SampleRate,
			"chunk_bytes", m.Format.ChunkBytes(),
		)
	}
	return recorder, nil
}
