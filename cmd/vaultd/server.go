package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"
	"vaultd/config"
	"vaultd/crt"
	"vaultd/handlers"
	"vaultd/logs"
	"vaultd/middleware"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
)

// servers 持有两个监听器：HTTP/3 (QUIC) 为主，TCP TLS 兜底
type servers struct {
	http3Server *http3.Server
	tcpServer   *http.Server
}

// startServers 启动HTTP服务
func startServers(cfg *config.Config, hm *handlers.HandlerManager) (*servers, error) {
	mux := http.NewServeMux()
	hm.RegisterRoutes(mux)

	// 应用中间件
	middleware.Configure(cfg.RateLimit)
	middleware.StartIPCleanup()
	handler := middleware.RateLimit(mux)

	// 生成自签名证书
	certFile := "server.crt"
	keyFile := "server.key"
	if err := crt.GenerateSelfSignedCert(certFile, keyFile, cfg.Server.CertValidityDays); err != nil {
		return nil, err
	}
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, err
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS13,
		MaxVersion:   tls.VersionTLS13,
		// ALPN：h3 走 QUIC，http/1.1 走 TCP
		NextProtos: []string{"h3", "h3-29", "http/1.1"},
	}

	quicConfig := &quic.Config{
		KeepAlivePeriod: cfg.Server.QUICKeepAlivePeriod,
		MaxIdleTimeout:  cfg.Server.QUICMaxIdleTimeout,
		Allow0RTT:       cfg.Server.QUICAllow0RTT,
	}

	srv := &servers{
		http3Server: &http3.Server{
			Addr:       ":" + cfg.Server.Port,
			Handler:    handler,
			TLSConfig:  tlsConfig,
			QUICConfig: quicConfig,
		},
		tcpServer: &http.Server{
			Addr:         ":" + cfg.Server.Port,
			Handler:      handler,
			TLSConfig:    tlsConfig,
			ReadTimeout:  cfg.Server.HTTPTimeout,
			WriteTimeout: cfg.Server.HTTPTimeout,
		},
	}

	go func() {
		logs.Info("Starting HTTP/3 server on port %s", cfg.Server.Port)
		if err := srv.http3Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logs.Error("HTTP/3 server error: %v", err)
		}
	}()
	go func() {
		if err := srv.tcpServer.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
			logs.Error("TCP TLS server error: %v", err)
		}
	}()

	return srv, nil
}

// Shutdown 优雅停机
func (s *servers) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.http3Server.Close(); err != nil {
		logs.Error("HTTP/3 server close error: %v", err)
	}
	if err := s.tcpServer.Shutdown(ctx); err != nil {
		logs.Error("TCP server shutdown error: %v", err)
	}
}
