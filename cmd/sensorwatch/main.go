// sensorwatch tails the kiosk's sensor topics. Useful when commissioning a
// site: it shows the temperature readings and advisory batches exactly as
// the loop sees them.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/your-org/kiosk/internal/config"
	"github.com/your-org/kiosk/internal/observability"
	"github.com/your-org/kiosk/internal/sensorbus"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	interval := flag.Duration("interval", 2*time.Second, "poll interval")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, "text")

	bus, err := sensorbus.Connect(cfg.NATS.URL, cfg.NATS.OpTimeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to sensor bus: %v\n", err)
		os.Exit(1)
	}
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := bus.EnsureStream(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "ensure sensor stream: %v\n", err)
		os.Exit(1)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		cancel()
	}()

	topics := []string{cfg.NATS.TemperatureTopic, cfg.NATS.SpeakerTopic, cfg.NATS.DoorTopic}
	fmt.Printf("watching topics: %s\n", strings.Join(topics, ", "))

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, topic := range topics {
				msgs, err := bus.ReadLatest(ctx, topic)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					fmt.Printf("%s  %-12s  read error: %v\n", time.Now().Format(time.TimeOnly), topic, err)
					continue
				}
				for _, m := range msgs {
					body := strings.ReplaceAll(m.Body, "\n", " | ")
					fmt.Printf("%s  %-12s  %s\n", m.Timestamp.Format(time.TimeOnly), topic, body)
				}
			}
		}
	}
}
