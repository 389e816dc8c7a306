// Command chatclient is a terminal chat client for manual testing. It logs
// in, obtains a one-time chat token for a room and relays stdin lines as
// "send" frames while printing every event the room broadcasts.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/gorilla/websocket"
)

var httpClient = &http.Client{Timeout: 10 * time.Second}

func main() {
	host := flag.String("host", "localhost:8080", "API server host")
	login := flag.String("login", "", "Username or email")
	password := flag.String("password", "", "Password")
	room := flag.String("room", "", "Chat room id")
	flag.Parse()

	if *login == "" || *password == "" || *room == "" {
		flag.Usage()
		os.Exit(2)
	}

	access, err := signIn(*host, *login, *password)
	if err != nil {
		log.Fatalf("Login failed: %v", err)
	}
	token, err := chatToken(*host, access, *room)
	if err != nil {
		log.Fatalf("Chat token failed: %v", err)
	}

	u := url.URL{Scheme: "ws", Host: *host, Path: "/ws/" + token, RawQuery: "room_id=" + url.QueryEscape(*room)}
	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer func() { _ = conn.Close() }()
	fmt.Println(color.GreenString("connected to room %s, type a message and press enter", *room))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				var closeErr *websocket.CloseError
				if errors.As(err, &closeErr) {
					fmt.Println(color.RedString("closed by server: %d %s", closeErr.Code, closeErr.Text))
				}
				return
			}
			printEvent(data)
		}
	}()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-done:
			return
		case line, ok := <-lines:
			if !ok {
				closeGracefully(conn, done)
				return
			}
			frame, _ := json.Marshal(map[string]string{"action": "send", "message": line})
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Printf("write failed: %v", err)
				return
			}
		case <-interrupt:
			closeGracefully(conn, done)
			return
		}
	}
}

func closeGracefully(conn *websocket.Conn, done <-chan struct{}) {
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	select {
	case <-done:
	case <-time.After(time.Second):
	}
}

func printEvent(data []byte) {
	var event struct {
		Action  string `json:"action"`
		Message struct {
			ID      string  `json:"message_id"`
			OwnerID *string `json:"owner_id"`
			Text    string  `json:"text"`
		} `json:"message"`
	}
	if err := json.Unmarshal(data, &event); err != nil {
		fmt.Println(string(data))
		return
	}
	owner := "deleted user"
	if event.Message.OwnerID != nil {
		owner = *event.Message.OwnerID
	}
	fmt.Printf("%s %s: %s\n", color.CyanString("[%s]", event.Action), color.YellowString(owner), event.Message.Text)
}

func signIn(host, login, password string) (string, error) {
	body, _ := json.Marshal(map[string]string{"login": login, "password": password})
	resp, err := httpClient.Post(fmt.Sprintf("http://%s/login", host), "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	var result struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.AccessToken, nil
}

func chatToken(host, access, room string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("http://%s/chats/%s/token", host, url.PathEscape(room)), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+access)

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat token request failed with status %d", resp.StatusCode)
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Token, nil
}
