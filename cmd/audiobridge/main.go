// Command audiobridge listens for RTP-carried PCM16 audio from
// multiple remote nodes and maintains one adaptive jitter buffer per
// node, exposing depth and loss statistics over Prometheus.
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/binaryvr/hifi/internal/config"
	"github.com/binaryvr/hifi/internal/metrics"
	"github.com/binaryvr/hifi/internal/nodestream"
	"github.com/binaryvr/hifi/pkg/jitter"
	"github.com/binaryvr/hifi/pkg/wire"
)

var instanceID = uuid.New().String()

func main() {
	flags := config.ParseFlags()
	if flags.Help {
		fmt.Println("audiobridge [--config file.yml] [--version]")
		os.Exit(0)
	}
	if flags.Version {
		fmt.Println("audiobridge (dev)")
		os.Exit(0)
	}

	cfg, err := config.Load(flags.ConfigFile)
	if err != nil {
		log.Fatalf("failed to load configuration: %s", err)
	}
	configureLog(cfg.Log.Level)

	log.WithField("instance", instanceID).Info("starting audiobridge")

	metrics.Register()
	if cfg.Prometheus.Enable {
		metrics.Serve(cfg.Prometheus.ListenAddress)
	}

	conn, err := net.ListenPacket("udp", cfg.Listen.Address)
	if err != nil {
		log.Fatalf("failed to listen on %s: %s", cfg.Listen.Address, err)
	}
	defer conn.Close()
	log.Infof("listening for audio on %s", cfg.Listen.Address)

	registry := nodestream.NewRegistry(func() jitter.StreamConfig {
		return jitter.StreamConfig{
			FrameSampleCount: cfg.Listen.FrameSampleCount,
			FrameCapacity:    cfg.Listen.FrameCapacity,
			SampleRate:       cfg.Listen.SampleRate,
			Settings:         cfg.Stream,
			Decoder:          wire.RawPCM16Decoder{},
		}
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go runTicker(registry, done)
	go runReceiveLoop(conn, registry)

	<-sigCh
	log.Info("shutting down")
	close(done)
}

func runReceiveLoop(conn net.PacketConn, registry *nodestream.Registry) {
	buf := make([]byte, 1500)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			log.Errorf("udp read failed: %s", err)
			return
		}

		node, err := registry.Get(addr.String())
		if err != nil {
			log.Errorf("failed to start stream for %s: %s", addr, err)
			continue
		}

		packet := make([]byte, n)
		copy(packet, buf[:n])
		node.Feed(packet)
	}
}

func runTicker(registry *nodestream.Registry, done <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			registry.Each(func(n *nodestream.Stream) { n.Tick() })
		case <-done:
			return
		}
	}
}

func configureLog(level string) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}
