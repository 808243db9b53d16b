package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"starboard-bot/bot"
	"starboard-bot/command"
	"starboard-bot/config"
	grpcsrv "starboard-bot/grpc"
	"starboard-bot/handlers"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	// 容器健康检查: starboard-bot healthcheck
	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		os.Exit(healthcheck())
	}

	bot.Run(handlers.Register, command.GetCommandDefinitions())
}

func healthcheck() int {
	config.LoadConfig()
	status, err := grpcsrv.Probe(context.Background(), config.GRPC().HealthAddr, 3*time.Second)
	if err != nil {
		fmt.Fprintf(os.Stderr, "health check failed: %v\n", err)
		return 1
	}
	fmt.Println(status)
	if status != healthpb.HealthCheckResponse_SERVING {
		return 1
	}
	return 0
}
