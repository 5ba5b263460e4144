package handler

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// mockPinger implements Pinger for tests.
type mockPinger struct {
	pingErr error
}

func (m *mockPinger) PingContext(context.Context) error {
	return m.pingErr
}

// mockConnection implements ConnectionChecker for tests.
type mockConnection struct {
	connected bool
}

func (m *mockConnection) Connected() bool {
	return m.connected
}

func TestCheck(t *testing.T) {
	pingFailure := &mockPinger{pingErr: errors.New("connection refused")}
	testCases := []struct {
		name      string
		pinger    Pinger
		telemetry ConnectionChecker
		service   string
		want      healthpb.HealthCheckResponse_ServingStatus
	}{
		{"nil dependencies", nil, nil, "", healthpb.HealthCheckResponse_SERVING},
		{"all healthy", &mockPinger{}, &mockConnection{connected: true}, "", healthpb.HealthCheckResponse_SERVING},
		{"ping failure", pingFailure, &mockConnection{connected: true}, "", healthpb.HealthCheckResponse_NOT_SERVING},
		{"skywalking disconnected", &mockPinger{}, &mockConnection{}, "", healthpb.HealthCheckResponse_NOT_SERVING},
		{"database only", &mockPinger{}, &mockConnection{}, ServiceDatabase, healthpb.HealthCheckResponse_SERVING},
		{"database failure", pingFailure, &mockConnection{connected: true}, ServiceDatabase, healthpb.HealthCheckResponse_NOT_SERVING},
		{"skywalking only", pingFailure, &mockConnection{connected: true}, ServiceSkyWalking, healthpb.HealthCheckResponse_SERVING},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := NewServer(tc.pinger, tc.telemetry)
			resp, err := srv.Check(context.Background(), &healthpb.HealthCheckRequest{Service: tc.service})
			if err != nil {
				t.Fatalf("Check must not return gRPC error on check failure: %v", err)
			}
			if resp.GetStatus() != tc.want {
				t.Errorf("status = %v, want %v", resp.GetStatus(), tc.want)
			}
		})
	}
}

func TestCheck_UnknownService(t *testing.T) {
	_, err := NewServer(nil, nil).Check(context.Background(), &healthpb.HealthCheckRequest{Service: "billing"})
	if status.Code(err) != codes.NotFound {
		t.Errorf("code = %v, want NotFound", status.Code(err))
	}
}

func TestProbe(t *testing.T) {
	failures := NewServer(&mockPinger{pingErr: errors.New("down")}, &mockConnection{}).Probe(context.Background())
	if len(failures) != 2 || failures[ServiceDatabase] == nil || failures[ServiceSkyWalking] == nil {
		t.Errorf("failures = %v", failures)
	}
	if failures := NewServer(&mockPinger{}, &mockConnection{connected: true}).Probe(context.Background()); len(failures) != 0 {
		t.Errorf("healthy probe failures = %v", failures)
	}
}
