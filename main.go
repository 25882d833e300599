package main

import (
	"log"
	"os"

	"github.com/rohanthewiz/logger"

	"dayplan/session"
	"dayplan/web"
)

func main() {
	// Initialize logger
	level := os.Getenv("DAYPLAN_LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	logger.SetLogLevel(level)

	cfg, err := session.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	sess, err := session.NewSession(cfg)
	if err != nil {
		log.Fatal("Failed to create sync session: ", err)
	}
	if err := sess.Start(); err != nil {
		log.Fatal("Failed to start sync session: ", err)
	}
	defer sess.Close()

	// Start server
	srv := web.NewServer(sess, cfg.HTTPAddr)
	logger.Info("Starting DayPlan", "plan_date", cfg.PlanDate, "addr", cfg.HTTPAddr)
	log.Fatal(web.Run(srv, cfg.HTTPAddr))
}
