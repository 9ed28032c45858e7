// Command cli is a smoke-test driver for a running otakuverse service: it
// connects the wallet, streams playback progress until the episode becomes
// claimable, then claims the reward.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

func main() {
	base := flag.String("base", "http://localhost:8888/api", "service base URL")
	animeID := flag.String("anime", "anime-1", "anime id to watch")
	episode := flag.Int("episode", 1, "episode number")
	duration := flag.Float64("duration", 120, "episode duration in seconds")
	tick := flag.Duration("tick", 100*time.Millisecond, "delay between progress ticks")
	flag.Parse()

	connect, err := call(http.MethodPost, *base+"/wallet/connect", nil)
	if err != nil {
		log.Fatalf("wallet connect failed: %v", err)
	}
	fmt.Println("connected:", connect)

	// Stream second-by-second progress until the engine reports claimable.
	for pos := 1.0; pos <= *duration; pos++ {
		status, err := call(http.MethodPost, *base+"/playback/progress", map[string]any{
			"anime_id": *animeID,
			"episode":  *episode,
			"position": pos,
			"duration": *duration,
		})
		if err != nil {
			log.Fatalf("progress tick failed: %v", err)
		}
		if status["state"] == "claimable" {
			fmt.Printf("claimable after %.0fs watched\n", status["watched_seconds"])
			break
		}
		time.Sleep(*tick)
	}

	claim, err := call(http.MethodPost, *base+"/reward/claim", map[string]any{
		"anime_id": *animeID,
		"episode":  *episode,
	})
	if err != nil {
		log.Fatalf("claim failed: %v", err)
	}
	fmt.Println("claim result:", claim)
}

func call(method, url string, body any) (map[string]any, error) {
	var payload io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		payload = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, url, payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, raw)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}
