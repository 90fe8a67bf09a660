// ABOUTME: This file implements the -health-check probe used by container runtimes
// ABOUTME: It hits the health endpoint of the running instance; exit status is the contract

package main

import (
	"fmt"
	"net/http"
	"os"
	"time"
)

// localHealthURL resolves the probe target from the configured server port.
func localHealthURL() string {
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}
	return fmt.Sprintf("http://127.0.0.1:%s/v1/health", port)
}

// probeHealth requests the health endpoint and reports anything but a 200 as
// an error.
func probeHealth(url string) error {
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health endpoint returned status %d", resp.StatusCode)
	}

	return nil
}
