// Manual smoke client for the live event feed. Connects to a running server
// and prints every broadcast until interrupted.
package main

import (
	"log"
	"os"
	"os/signal"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

type feedEvent struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

func main() {
	url := "ws://localhost:8888/api/v1/events"
	if len(os.Args) > 1 {
		url = os.Args[1]
	}

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer conn.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	go func() {
		for {
			_, p, err := conn.ReadMessage()
			if err != nil {
				log.Println("read error:", err)
				return
			}

			var event feedEvent
			if err := json.Unmarshal(p, &event); err != nil {
				log.Println("json unmarshal error:", err)
				continue
			}

			pretty, _ := json.MarshalIndent(event, "", "  ")
			log.Printf("Received:\n%s\n", pretty)
		}
	}()

	<-interrupt
}
