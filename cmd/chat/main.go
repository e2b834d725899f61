// Simple CLI that sends one chat message to the orchestrator and prints
// the response, including any order preview or confirmation.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/pharmaflow-project/pharmacy-multi-agent/types"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "orchestrator base URL")
	sessionID := flag.String("session", "cli-session", "session id")
	patientID := flag.String("patient", "P001", "patient id")
	message := flag.String("message", "I want 20 Paracetamol 500mg tablets", "chat message")
	flag.Parse()

	reqBody := types.ChatRequest{
		SessionID: *sessionID,
		PatientID: *patientID,
		Message:   *message,
	}
	b, _ := json.Marshal(reqBody)

	req, _ := http.NewRequest(http.MethodPost, strings.TrimRight(*server, "/")+"/api/chat", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "HTTP error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		fmt.Fprintf(os.Stderr, "HTTP %d: %s\n", resp.StatusCode, string(data))
		os.Exit(2)
	}

	var chat types.ChatResponse
	if err := json.Unmarshal(data, &chat); err != nil {
		fmt.Println(string(data))
		return
	}

	fmt.Println("=== Response ===")
	fmt.Println(chat.Response)
	if len(chat.AgentChain) > 0 {
		names := make([]string, 0, len(chat.AgentChain))
		for _, a := range chat.AgentChain {
			names = append(names, string(a))
		}
		fmt.Println("\n=== Chain ===")
		fmt.Println(strings.Join(names, " -> "))
	}
	if chat.Preview != nil {
		fmt.Println("\n=== Preview ===")
		fmt.Printf("%s: %d item(s), total $%.2f\n", chat.Preview.PreviewID, len(chat.Preview.Items), chat.Preview.Totals.Total)
	}
	if chat.Confirmation != nil {
		fmt.Println("\n=== Confirmation ===")
		fmt.Printf("%s: status %s, total $%.2f\n", chat.Confirmation.OrderID, chat.Confirmation.Status, chat.Confirmation.TotalAmount)
	}
	if chat.Error != nil {
		fmt.Printf("\nError: [%s] %s\n", chat.Error.Code, chat.Error.Message)
	}
}
