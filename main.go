package main

import (
	"fmt"
	"log"
	"path/filepath"

	"waveline/api"
	"waveline/config"
	"waveline/realtime"
	"waveline/storage"
	"waveline/ui"
)

func main() {
	cfg, cfgPath, err := config.LoadOrCreate()
	if err != nil {
		log.Fatalf("startup failed while loading config: %v", err)
	}
	if cfg.ProfileID == "" {
		log.Fatalf("profile id is not set: put WAVELINE_PROFILE_ID in the environment or profile_id in %s", cfgPath)
	}

	fmt.Printf("Profile ID:      %s\n", cfg.ProfileID)
	fmt.Printf("Device ID:       %s\n", cfg.DeviceID)
	fmt.Printf("Display Name:    %s\n", cfg.DisplayName)
	fmt.Printf("Backend URL:     %s\n", cfg.BackendBaseURL)
	fmt.Printf("Socket URL:      %s\n", cfg.SocketURL)
	fmt.Printf("Config File:     %s\n", cfgPath)
	dataDir := filepath.Dir(cfgPath)
	fmt.Printf("Data Directory:  %s\n", dataDir)

	store, dbPath, err := storage.Open(dataDir)
	if err != nil {
		log.Fatalf("startup failed while opening cache database: %v", err)
	}
	fmt.Printf("Cache File:      %s\n", dbPath)

	client, err := api.NewClient(cfg.BackendBaseURL, api.Options{AuthToken: cfg.AuthToken})
	if err != nil {
		log.Fatalf("startup failed while creating API client: %v", err)
	}

	bridge, err := realtime.NewBridge(realtime.Options{URL: cfg.SocketURL})
	if err != nil {
		log.Fatalf("startup failed while creating realtime bridge: %v", err)
	}

	if err := ui.Run(ui.RunOptions{
		Config:     cfg,
		ConfigPath: cfgPath,
		DataDir:    dataDir,
		Store:      store,
		Client:     client,
		Bridge:     bridge,
	}); err != nil {
		log.Fatalf("ui error: %v", err)
	}
}
