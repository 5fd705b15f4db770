// Command loadtest drives the request/accept/send flow end to end against
// a running server: register pairs of users, open a conversation, accept
// it from the other side, then exchange messages over the REST API while
// both sides hold a websocket open for event delivery.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	BaseURL   = "http://localhost:8080"
	WSURL     = "ws://localhost:8080/ws"
	PairCount = 50 // Pairs of users; start small, the DB chokes long before the hub does.
	MsgCount  = 20 // Messages per user
)

type authResponse struct {
	Token string `json:"access_token"`
	ID    int    `json:"id"`
}

type conversationResponse struct {
	ID int `json:"id"`
}

func main() {
	log.Printf("starting load test: %d users, %d messages each", PairCount*2, MsgCount)
	var wg sync.WaitGroup

	for i := 0; i < PairCount; i++ {
		wg.Add(1)
		go func(pairID int) {
			defer wg.Done()
			runPair(pairID)
		}(i)
	}

	wg.Wait()
	log.Println("load test complete")
}

func runPair(pairID int) {
	a := authenticate(fmt.Sprintf("load-%d-a@example.com", pairID))
	b := authenticate(fmt.Sprintf("load-%d-b@example.com", pairID))
	if a.Token == "" || b.Token == "" {
		return
	}

	convID := requestConversation(a.Token, b.ID)
	if convID == 0 {
		return
	}
	if !accept(b.Token, convID) {
		return
	}

	var wsWg sync.WaitGroup
	wsWg.Add(2)
	go spam(&wsWg, a.Token, convID, "a")
	go spam(&wsWg, b.Token, convID, "b")
	wsWg.Wait()
}

func authenticate(email string) authResponse {
	// Register, ignoring "already registered" on reruns.
	postJSON("", "/register", map[string]string{
		"name": email, "email": email, "password": "password123",
	})

	resp, err := postJSON("", "/login", map[string]string{
		"email": email, "password": "password123",
	})
	if err != nil {
		log.Printf("login failed [%s]: %v", email, err)
		return authResponse{}
	}
	defer resp.Body.Close()

	var data authResponse
	json.NewDecoder(resp.Body).Decode(&data)
	return data
}

func requestConversation(token string, otherID int) int {
	resp, err := postJSON(token, "/api/conversations", map[string]int{"user_id": otherID})
	if err != nil || (resp.StatusCode != 200 && resp.StatusCode != 201) {
		log.Printf("request conversation failed: %v", err)
		return 0
	}
	defer resp.Body.Close()

	var data conversationResponse
	json.NewDecoder(resp.Body).Decode(&data)
	return data.ID
}

func accept(token string, convID int) bool {
	resp, err := postJSON(token, fmt.Sprintf("/api/conversations/%d/accept", convID), struct{}{})
	if err != nil {
		log.Printf("accept failed: %v", err)
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == 200
}

func spam(wg *sync.WaitGroup, token string, convID int, tag string) {
	defer wg.Done()

	// Hold a websocket open so delivery fan-out is part of the load.
	conn, _, err := websocket.DefaultDialer.Dial(WSURL+"?token="+token, nil)
	if err != nil {
		log.Printf("ws connect failed [%s]: %v", tag, err)
		return
	}
	defer conn.Close()
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for i := 0; i < MsgCount; i++ {
		resp, err := postJSON(token, fmt.Sprintf("/api/conversations/%d/messages", convID),
			map[string]string{"content": fmt.Sprintf("load message %d from %s", i, tag)})
		if err != nil {
			log.Printf("send failed [%s]: %v", tag, err)
			break
		}
		resp.Body.Close()
		time.Sleep(10 * time.Millisecond)
	}
}

func postJSON(token, endpoint string, data interface{}) (*http.Response, error) {
	jsonData, _ := json.Marshal(data)
	req, err := http.NewRequest("POST", BaseURL+endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return http.DefaultClient.Do(req)
}
