// Command viewer connects to the push channel endpoint and prints live
// transcripts and summaries, mimicking what the dashboard receives.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"

	"call-analytics-service/internal/models"
)

func main() {
	url := flag.String("url", "ws://localhost:8080/ws", "push channel endpoint")
	flag.Parse()

	ws, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		log.Fatalf("dial %s: %v", *url, err)
	}
	defer ws.Close()
	log.Printf("connected to %s", *url)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, msg, err := ws.ReadMessage()
			if err != nil {
				log.Printf("connection closed: %v", err)
				return
			}
			printMessage(msg)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-done:
	}
}

func printMessage(msg []byte) {
	var summary models.SummarizationMessage
	if err := json.Unmarshal(msg, &summary); err == nil && summary.Summarization != "" {
		fmt.Printf("\n=== SUMMARY ===\n%s\n===============\n", summary.Summarization)
		return
	}

	rec, err := models.DecodeTranscriptRecord(msg)
	if err != nil || rec.TranscriptEvent == nil {
		fmt.Printf("%s\n", msg)
		return
	}

	marker := ""
	if rec.TranscriptEvent.IsPartial {
		marker = " (partial)"
	}
	fmt.Printf("[%s]%s %s\n", rec.TranscriptEvent.ChannelID, marker, rec.TranscriptEvent.TopTranscript())
}
