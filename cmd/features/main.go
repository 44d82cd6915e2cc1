package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/threading"

	"featuremill/internal/cli"
	"featuremill/internal/config"
	"featuremill/internal/svc"
	"featuremill/pkg/bus"
	"featuremill/pkg/features"
)

var configFile = flag.String("f", "etc/featuremill.yaml", "the config file")

const shutdownTimeout = 30 * time.Second

func main() {
	flag.Parse()

	cfg := config.MustLoad(*configFile)
	cli.LogConfigSummary(cfg)
	svcCtx := svc.NewServiceContext(cfg)

	if cfg.Features.Value == nil {
		log.Fatalf("[features] no features section in %s", *configFile)
	}
	if len(cfg.Kafka.Brokers) == 0 {
		log.Fatalf("[features] kafka brokers are required")
	}
	featCfg := cfg.Features.Value

	mapper, err := features.NewMapper(featCfg.Schema())
	if err != nil {
		log.Fatalf("[features] build mapper: %v", err)
	}
	buffer := features.NewBuffer()
	materializer := features.NewMaterializer(buffer, svcCtx.Sink, svcCtx.Journal,
		featCfg.Interval(), featCfg.Timeout())
	service := features.NewService(mapper, buffer, svcCtx.Journal)

	inNs, err := cfg.ResolveNamespace(featCfg.InputStage)
	if err != nil {
		log.Fatalf("[features] resolve input namespace: %v", err)
	}

	queue := bus.NewKafkaConsumer(cfg.Kafka, inNs, service)

	materializer.Start()
	healthStop := watchHealth(materializer, featCfg)
	logx.Infof("[features] consuming %s (%s), flushing %s/v%d every %s",
		inNs.Topic, inNs.Group, featCfg.Group, featCfg.Version, featCfg.Interval())
	go queue.Start()

	waitForSignal()
	close(healthStop)
	queue.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := materializer.Stop(ctx); err != nil {
		logx.Errorf("[features] final flush: %v", err)
	}
	logx.Info("[features] stopped")
}

// watchHealth surfaces repeated flush failures so operators notice a
// degraded sink before the journal fills up.
func watchHealth(m *features.Materializer, cfg *features.Config) chan struct{} {
	stop := make(chan struct{})
	threading.GoSafe(func() {
		ticker := time.NewTicker(cfg.Interval())
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if !m.Healthy(cfg.UnhealthyAfter) {
					logx.Severef("[features] sink degraded: %d consecutive flush failures",
						m.ConsecutiveFailures())
				}
			case <-stop:
				return
			}
		}
	})
	return stop
}

func waitForSignal() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	<-ch
}
