package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/uengine-oss/robo-analyzer-vue3-sub003/internal/alarms"
	"github.com/uengine-oss/robo-analyzer-vue3-sub003/internal/api"
	"github.com/uengine-oss/robo-analyzer-vue3-sub003/internal/common"
	"github.com/uengine-oss/robo-analyzer-vue3-sub003/internal/config"
	"github.com/uengine-oss/robo-analyzer-vue3-sub003/internal/gateway"
	"github.com/uengine-oss/robo-analyzer-vue3-sub003/internal/prefs"
)

func main() {
	logger := common.Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := godotenv.Load(); err != nil {
		logger.Warn("robo: .env file not loaded", "error", err)
	} else {
		logger.Info("robo: environment loaded from .env")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("robo: config load failed", "error", err)
		fmt.Println("config error:", err)
		os.Exit(1)
	}

	addr := flag.String("addr", cfg.ListenAddr, "listen address")
	prefsPath := flag.String("prefs", cfg.PrefsPath, "path to the preference database")
	alarmsEnabled := flag.Bool("alarms", cfg.AlarmsEnabled, "subscribe to the backend alarm stream")
	flag.Parse()

	logger.Info("robo: startup initiated", "addr", *addr, "prefs", *prefsPath)

	store, err := prefs.Open(*prefsPath)
	if err != nil {
		logger.Error("robo: preference store open failed", "error", err)
		fmt.Println("prefs error:", err)
		os.Exit(1)
	}
	defer store.Close()

	gw, err := gateway.NewFromEnv()
	if err != nil {
		logger.Error("robo: gateway config load failed", "error", err)
		fmt.Println("gateway config error:", err)
		os.Exit(1)
	}
	defer gw.Close()

	sessionID, err := store.SessionID(ctx)
	if err != nil {
		logger.Error("robo: session id lookup failed", "error", err)
		fmt.Println("session id error:", err)
		os.Exit(1)
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
		if err := store.SetSessionID(ctx, sessionID); err != nil {
			logger.Error("robo: session id persist failed", "error", err)
			fmt.Println("session id error:", err)
			os.Exit(1)
		}
		logger.Info("robo: minted console session id", "session", sessionID)
	}

	var feed *alarms.Feed
	if *alarmsEnabled {
		feed = alarms.NewFeed(gw.AlarmStreamURL(), sessionID)
		go feed.Run(ctx)
		logger.Info("robo: alarm subscription started", "url", gw.AlarmStreamURL())
	} else {
		logger.Info("robo: alarm subscription disabled")
	}

	server, err := api.NewServer(ctx, gw, store, feed)
	if err != nil {
		logger.Error("robo: server construction failed", "error", err)
		fmt.Println("server error:", err)
		os.Exit(1)
	}

	logger.Info("robo: server listening", "addr", *addr, "health", "/healthz")
	fmt.Printf("Serving on %s\n", *addr)
	reachable := *addr
	if strings.HasPrefix(reachable, ":") {
		reachable = "localhost" + reachable
	}
	logger.Info("robo: verify reachability", "suggestion", fmt.Sprintf("curl http://%s/healthz", reachable))
	if err := http.ListenAndServe(*addr, server); err != nil {
		logger.Error("robo: server stopped", "error", err)
		fmt.Println("server stopped:", err)
	}
}
