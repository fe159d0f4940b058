package scoring

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/clip"
)

const (
	// ServiceName is the gRPC service remote scorers register.
	ServiceName = "elora.scoring.v1.Scorer"

	MethodJudge = "/" + ServiceName + "/Judge"
	MethodScore = "/" + ServiceName + "/Score"
)

// RemoteConfig controls the remote scorer connection.
type RemoteConfig struct {
	Endpoint    string
	DialTimeout time.Duration
	DialOptions []grpc.DialOption
}

// Remote calls a pronunciation service speaking structpb payloads:
//
//	Judge: {target, transcript} -> {correct: bool}
//	Score: {target, transcript, audio (base64 PCM), sample_rate, channels} -> {score: number}
type Remote struct {
	conn   *grpc.ClientConn
	health healthpb.HealthClient
}

// DialRemote connects to endpoint and waits until the channel is ready.
func DialRemote(ctx context.Context, cfg RemoteConfig) (*Remote, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("scoring endpoint is empty")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 3 * time.Second
	}

	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, cfg.DialOptions...)
	conn, err := grpc.NewClient(endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial scoring grpc %q: %w", endpoint, err)
	}

	readyCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	conn.Connect()
	if err := waitForReady(readyCtx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("wait for scoring grpc readiness: %w", err)
	}

	return &Remote{conn: conn, health: healthpb.NewHealthClient(conn)}, nil
}

// Close releases the underlying connection.
func (r *Remote) Close() error {
	return r.conn.Close()
}

// Check asks the standard health service whether the scorer is serving.
func (r *Remote) Check(ctx context.Context) error {
	resp, err := r.health.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return fmt.Errorf("scoring health check: %w", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("scoring service status %s", resp.GetStatus())
	}
	return nil
}

// IsCorrect asks the service whether transcript matches target.
func (r *Remote) IsCorrect(ctx context.Context, target string, heard string) (bool, error) {
	req, err := structpb.NewStruct(map[string]any{
		"target":     target,
		"transcript": heard,
	})
	if err != nil {
		return false, fmt.Errorf("build judge request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := r.conn.Invoke(ctx, MethodJudge, req, resp); err != nil {
		return false, fmt.Errorf("judge attempt: %w", err)
	}
	field, ok := resp.GetFields()["correct"]
	if !ok {
		return false, errors.New("judge response missing correct")
	}
	if _, isBool := field.GetKind().(*structpb.Value_BoolValue); !isBool {
		return false, errors.New("judge response correct is not a bool")
	}
	return field.GetBoolValue(), nil
}

// Score sends the clip and transcript and returns the clamped 0-100 score.
func (r *Remote) Score(ctx context.Context, target string, heard string, c clip.Clip) (int, error) {
	req, err := structpb.NewStruct(map[string]any{
		"target":      target,
		"transcript":  heard,
		"audio":       base64.StdEncoding.EncodeToString(c.PCM),
		"sample_rate": c.SampleRate,
		"channels":    c.Channels,
	})
	if err != nil {
		return 0, fmt.Errorf("build score request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := r.conn.Invoke(ctx, MethodScore, req, resp); err != nil {
		return 0, fmt.Errorf("score attempt: %w", err)
	}
	field, ok := resp.GetFields()["score"]
	if !ok {
		return 0, errors.New("score response missing score")
	}
	value := field.GetNumberValue()
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, errors.New("score response is not finite")
	}
	return Clamp(int(math.Round(value))), nil
}
