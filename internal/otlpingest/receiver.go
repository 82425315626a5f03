package otlpingest

import (
	"context"
	"fmt"
	"net"
	"sync"

	collectortrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"google.golang.org/grpc"
)

// Config holds configuration for the OTLP receiver.
type Config struct {
	Host string // e.g., "127.0.0.1"
	Port int    // 0 for ephemeral port assignment
}

// Server is the OTLP gRPC endpoint feeding converted records into a
// RecordReceiver.
type Server struct {
	listener   net.Listener
	grpcServer *grpc.Server
	stopOnce   sync.Once
	stopChan   chan struct{}
	stopDone   chan struct{}
}

// NewServer binds the listener and registers the trace service. Use port
// 0 for an ephemeral port; Endpoint reports the actual address.
func NewServer(cfg Config, receiver RecordReceiver) (*Server, error) {
	if receiver == nil {
		return nil, fmt.Errorf("record receiver cannot be nil")
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	grpcServer := grpc.NewServer()
	collectortrace.RegisterTraceServiceServer(grpcServer, &traceService{receiver: receiver})

	return &Server{
		listener:   listener,
		grpcServer: grpcServer,
		stopChan:   make(chan struct{}),
		stopDone:   make(chan struct{}, 1),
	}, nil
}

// Start serves OTLP requests until Stop is called or ctx is cancelled.
// It blocks; run it in a goroutine.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.stopChan:
		}
	}()

	err := s.grpcServer.Serve(s.listener)
	s.stopDone <- struct{}{}
	return err
}

// Stop initiates graceful shutdown. Safe to call multiple times.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.grpcServer.GracefulStop()
		close(s.stopChan)
	})
}

// StopWait stops the server and waits for shutdown to complete.
func (s *Server) StopWait() {
	s.Stop()
	<-s.stopDone
}

// Endpoint returns the actual listening address, e.g. "127.0.0.1:54321".
func (s *Server) Endpoint() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

type traceService struct {
	collectortrace.UnimplementedTraceServiceServer
	receiver RecordReceiver
}

// Export converts incoming spans to records and forwards them.
func (t *traceService) Export(
	ctx context.Context,
	req *collectortrace.ExportTraceServiceRequest,
) (*collectortrace.ExportTraceServiceResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}

	records := RecordsFromResourceSpans(req.ResourceSpans)
	if len(records) > 0 {
		if err := t.receiver.Receive(ctx, records); err != nil {
			return nil, fmt.Errorf("failed to receive records: %w", err)
		}
	}

	return &collectortrace.ExportTraceServiceResponse{}, nil
}
