package main

import (
	"chat-trigger-engine/internal/config"
	"chat-trigger-engine/internal/database"
	"chat-trigger-engine/internal/logger"
)

var log = logger.Get("sync_sequences")

// Tables with serial ids; the rest are keyed by string.
var tables = []string{
	"messages",
	"trigger_configs",
	"action_logs",
}

func main() {
	cfg := config.LoadConfig()
	if cfg.DBDriver != "postgres" {
		log.Fatalf("sync_sequences only applies to postgres, DB_DRIVER is %q", cfg.DBDriver)
	}
	database.InitGorm(cfg)
	db := database.GormDB

	log.Println("Syncing PostgreSQL sequences...")

	for _, table := range tables {
		query := "SELECT setval(pg_get_serial_sequence('" + table + "', 'id'), coalesce(max(id), 0) + 1, false) FROM " + table
		if err := db.Exec(query).Error; err != nil {
			log.Printf("Error syncing sequence for %s: %v", table, err)
		} else {
			log.Printf("Successfully synced sequence for %s", table)
		}
	}

	log.Println("DONE!")
}
