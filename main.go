package main

import (
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"homewatt/internal/automation"
	"homewatt/internal/config"
	"homewatt/internal/db"
	"homewatt/internal/ingest"
	"homewatt/internal/mqtt"
	"homewatt/internal/realtime"
	"homewatt/internal/redis"
	"homewatt/internal/scheduler"
	"homewatt/internal/tariff"
	"homewatt/internal/taskqueue"
	"homewatt/internal/utils"
	"homewatt/internal/web"

	"github.com/pion/mdns/v2"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	utils.InitLogging(cfg.LogLevel)

	database, err := db.NewDB(cfg.DBURL)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer database.Close()

	redisClient := redis.NewRedisClient(cfg.RedisAddr)

	mqttClient, err := mqtt.NewMQTTClient(cfg.MQTTBroker, cfg.MQTTClientID)
	if err != nil {
		log.Fatalf("Failed to connect to MQTT: %v", err)
	}
	defer mqttClient.Disconnect(250)

	broadcaster := realtime.NewBroadcaster(redisClient)
	hub := realtime.NewHub(redisClient)
	commander := mqtt.NewCommander(mqttClient)
	tariffSource := tariff.NewSource(database, redisClient, cfg.TariffFallbackRate)

	eng := automation.NewEngine(database, database, database, database, broadcaster, tariffSource, commander)
	eng.SetUndoWindow(time.Duration(cfg.UndoWindowHours) * time.Hour)

	taskqueue.SetGlobalInstances(eng)
	go taskqueue.StartWorkers(cfg.RedisAddr)

	sched := scheduler.NewScheduler(database.ListHomeIDs, taskqueue.EnqueueHomeEvaluation)
	if err := sched.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	telemetry := ingest.NewIngest(mqttClient, redisClient, database)
	if err := telemetry.Start(); err != nil {
		log.Fatalf("Failed to start telemetry ingest: %v", err)
	}

	webServer := web.NewWebServer(database, redisClient, cfg.JWTSecret, eng, hub, broadcaster, commander)
	go webServer.Start(cfg.HTTPAddr)

	go startMDNSServer(cfg.MDNSLocalName)

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	telemetry.Stop()
	sched.Stop()
	taskqueue.StopWorkers()
	log.Println("Shutdown complete")
}

func startMDNSServer(localName string) {
	addr4, err := net.ResolveUDPAddr("udp4", mdns.DefaultAddressIPv4)
	if err != nil {
		log.Println("Failed to resolve UDP4 address for mDNS:", err)
		return
	}

	addr6, err := net.ResolveUDPAddr("udp6", mdns.DefaultAddressIPv6)
	if err != nil {
		log.Println("Failed to resolve UDP6 address for mDNS:", err)
		return
	}

	l4, err := net.ListenUDP("udp4", addr4)
	if err != nil {
		log.Println("Failed to listen on UDP4 for mDNS:", err)
		return
	}

	l6, err := net.ListenUDP("udp6", addr6)
	if err != nil {
		log.Println("Failed to listen on UDP6 for mDNS:", err)
		return
	}

	_, err = mdns.Server(ipv4.NewPacketConn(l4), ipv6.NewPacketConn(l6), &mdns.Config{
		LocalNames: []string{localName},
	})
	if err != nil {
		log.Println("Failed to start mDNS server:", err)
	}
}
