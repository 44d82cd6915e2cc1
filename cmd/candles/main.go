package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/zeromicro/go-zero/core/logx"

	"featuremill/internal/cli"
	"featuremill/internal/config"
	"featuremill/internal/svc"
	"featuremill/pkg/bus"
	"featuremill/pkg/candles"
	"featuremill/pkg/namespace"
)

var configFile = flag.String("f", "etc/featuremill.yaml", "the config file")

func main() {
	flag.Parse()

	cfg := config.MustLoad(*configFile)
	cli.LogConfigSummary(cfg)
	svcCtx := svc.NewServiceContext(cfg)

	if cfg.Candles.Value == nil {
		log.Fatalf("[candles] no candles section in %s", *configFile)
	}
	if len(cfg.Kafka.Brokers) == 0 {
		log.Fatalf("[candles] kafka brokers are required")
	}

	inNs, err := cfg.ResolveNamespace(namespace.StageTrades)
	if err != nil {
		log.Fatalf("[candles] resolve input namespace: %v", err)
	}
	outNs, err := cfg.ResolveNamespace(namespace.StageCandles)
	if err != nil {
		log.Fatalf("[candles] resolve output namespace: %v", err)
	}

	producer := bus.NewKafkaProducer(cfg.Kafka.Brokers, outNs.Topic)
	defer producer.Close()

	service := candles.NewService(cfg.Candles.Value, producer, svcCtx.Journal, cfg.Kafka.Processors)
	queue := bus.NewKafkaConsumer(cfg.Kafka, inNs, service)

	logx.Infof("[candles] consuming %s (%s), publishing %s", inNs.Topic, inNs.Group, outNs.Topic)
	go queue.Start()

	waitForSignal()
	queue.Stop()
	service.Stop()
	logx.Info("[candles] stopped")
}

func waitForSignal() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	<-ch
}
