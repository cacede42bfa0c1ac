package main

import (
	"context"
	"net"
	"time"

	grpcprometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	config "github.com/NordCoder/Gatekeep/internal/config/auth-service"
	"github.com/NordCoder/Gatekeep/internal/obs"
)

const serviceName = "gatekeep.AuthService"

func buildGRPCServer(cfg *config.Config) (*grpc.Server, *health.Server, net.Listener, error) {
	grpcMetrics := grpcprometheus.NewServerMetrics()
	grpcMetrics.EnableHandlingTimeHistogram()
	if err := prometheus.Register(grpcMetrics); err != nil {
		if _, dup := err.(prometheus.AlreadyRegisteredError); !dup {
			return nil, nil, nil, err
		}
	}

	opts := obs.GRPCServerOpts()
	opts = append(opts,
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor()),
	)
	grpcServer := grpc.NewServer(opts...)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	reflection.Register(grpcServer)
	grpcMetrics.InitializeMetrics(grpcServer)

	ln, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return nil, nil, nil, err
	}
	return grpcServer, hs, ln, nil
}

// watchHealth flips the gRPC health status with the result of ping.
func watchHealth(ctx context.Context, hs *health.Server, ping func(context.Context) error, every time.Duration, logger *zap.Logger) {
	last := healthpb.HealthCheckResponse_UNKNOWN
	check := func() {
		status := healthpb.HealthCheckResponse_SERVING
		if err := ping(ctx); err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			if last != status {
				logger.Warn("db ping failed; reporting NOT_SERVING", zap.Error(err))
			}
		}
		if status != last {
			hs.SetServingStatus("", status)
			hs.SetServingStatus(serviceName, status)
			last = status
		}
	}

	t := time.NewTicker(every)
	defer t.Stop()
	check()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-t.C:
			check()
		}
	}
}

func serveGRPC(s *grpc.Server, ln net.Listener, logger *zap.Logger) error {
	logger.Info("grpc listening", zap.String("addr", ln.Addr().String()))
	return s.Serve(ln)
}
