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
	"featuremill/pkg/namespace"
	"featuremill/pkg/ta"
)

var configFile = flag.String("f", "etc/featuremill.yaml", "the config file")

func main() {
	flag.Parse()

	cfg := config.MustLoad(*configFile)
	cli.LogConfigSummary(cfg)
	svcCtx := svc.NewServiceContext(cfg)

	taCfg := cfg.TA.Value
	if taCfg == nil {
		taCfg = &ta.Config{MaxHistory: 60}
	}
	if len(cfg.Kafka.Brokers) == 0 {
		log.Fatalf("[ta] kafka brokers are required")
	}

	inNs, err := cfg.ResolveNamespace(namespace.StageCandles)
	if err != nil {
		log.Fatalf("[ta] resolve input namespace: %v", err)
	}
	outNs, err := cfg.ResolveNamespace(namespace.StageTA)
	if err != nil {
		log.Fatalf("[ta] resolve output namespace: %v", err)
	}

	producer := bus.NewKafkaProducer(cfg.Kafka.Brokers, outNs.Topic)
	defer producer.Close()

	service := ta.NewService(taCfg, producer, svcCtx.Journal, cfg.Kafka.Processors)
	queue := bus.NewKafkaConsumer(cfg.Kafka, inNs, service)

	logx.Infof("[ta] consuming %s (%s), publishing %s", inNs.Topic, inNs.Group, outNs.Topic)
	go queue.Start()

	waitForSignal()
	queue.Stop()
	service.Stop()
	logx.Info("[ta] stopped")
}

func waitForSignal() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	<-ch
}
