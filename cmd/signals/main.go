package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/zeromicro/go-zero/core/logx"

	"featuremill/internal/cli"
	"featuremill/internal/config"
	"featuremill/internal/signals"
	"featuremill/internal/svc"
	"featuremill/pkg/bus"
	"featuremill/pkg/namespace"
)

var configFile = flag.String("f", "etc/featuremill.yaml", "the config file")

func main() {
	flag.Parse()

	cfg := config.MustLoad(*configFile)
	cli.LogConfigSummary(cfg)
	svcCtx := svc.NewServiceContext(cfg)

	sigCfg := cfg.Signals.Value
	if sigCfg == nil {
		defaults, err := signals.LoadConfigFromReader(strings.NewReader(""))
		if err != nil {
			log.Fatalf("[signals] default config: %v", err)
		}
		sigCfg = defaults
	}
	if len(cfg.Kafka.Brokers) == 0 {
		log.Fatalf("[signals] kafka brokers are required")
	}

	inNs, err := cfg.ResolveNamespace(namespace.StageNews)
	if err != nil {
		log.Fatalf("[signals] resolve input namespace: %v", err)
	}
	outNs, err := cfg.ResolveNamespace(namespace.StageSignals)
	if err != nil {
		log.Fatalf("[signals] resolve output namespace: %v", err)
	}

	producer := bus.NewKafkaProducer(cfg.Kafka.Brokers, outNs.Topic)
	defer producer.Close()

	analyzer := sigCfg.NewAnalyzer()
	service := signals.NewService(analyzer, producer, svcCtx.Journal)
	queue := bus.NewKafkaConsumer(cfg.Kafka, inNs, service)

	model := "stub"
	if sigCfg.APIKey != "" {
		model = sigCfg.Model
	}
	logx.Infof("[signals] consuming %s (%s), publishing %s via %s",
		inNs.Topic, inNs.Group, outNs.Topic, model)
	go queue.Start()

	waitForSignal()
	queue.Stop()
	logx.Info("[signals] stopped")
}

func waitForSignal() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	<-ch
}
