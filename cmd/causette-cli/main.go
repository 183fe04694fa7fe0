// Command causette-cli is a terminal chat client for a running causette
// server. It maintains the same rolling context window the browser client
// does, so long sessions stay bounded no matter how many turns are typed.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/ChamsBouzaiene/causette/internal/chat"
	"github.com/ChamsBouzaiene/causette/internal/history"
)

type chatPayload struct {
	Model        string      `json:"model,omitempty"`
	Messages     []chat.Turn `json:"messages"`
	DiscussionID string      `json:"discussionId"`
}

type chatReply struct {
	Reply   string `json:"reply"`
	Warning string `json:"warning,omitempty"`
	Error   string `json:"error,omitempty"`
}

func main() {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("causette-cli", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:3000", "Base URL of the causette server")
	model := fs.String("model", "", "Model override sent with each request")
	if err := fs.Parse(os.Args[1:]); err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	window := chat.NewWindow(nil)
	discussionID := uuid.NewString()

	fmt.Printf("Connected to %s (discussion %s). Ctrl-D to quit.\n", *serverURL, discussionID)

	s := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("vous> ")
		if !s.Scan() {
			break
		}
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}

		window.Append(chat.Turn{Role: chat.RoleUser, Content: line})
		msgs := append(
			[]chat.Turn{{Role: chat.RoleSystem, Content: history.DefaultSystemPrompt}},
			window.BuildContext()...,
		)

		reply, warning, err := send(ctx, *serverURL, chatPayload{
			Model:        *model,
			Messages:     msgs,
			DiscussionID: discussionID,
		})
		if err != nil {
			log.Printf("error: %v", err)
			continue
		}
		if warning != "" {
			log.Printf("warning: %s", warning)
		}
		fmt.Println(reply)
		fmt.Println()

		window.Append(chat.Turn{Role: chat.RoleAssistant, Content: reply})
		if err := window.Manage(ctx); err != nil {
			log.Printf("context management failed: %v", err)
		}
	}
	if err := s.Err(); err != nil {
		log.Fatalf("stdin read failed: %v", err)
	}
}

func send(ctx context.Context, baseURL string, payload chatPayload) (reply, warning string, err error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(baseURL, "/")+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", err
	}
	var out chatReply
	if err := json.Unmarshal(data, &out); err != nil {
		return "", "", fmt.Errorf("unexpected response (%d): %s", resp.StatusCode, data)
	}
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("server error (%d): %s", resp.StatusCode, out.Error)
	}
	return out.Reply, out.Warning, nil
}
