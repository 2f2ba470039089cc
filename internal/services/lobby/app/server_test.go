package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRunReturnsInitErrorForInvalidConfig(t *testing.T) {
	err := Run(context.Background(), Config{})
	if err == nil {
		t.Fatal("expected error for invalid config")
	}
	if !strings.Contains(err.Error(), "init lobby server") {
		t.Fatalf("error = %v, want init lobby server prefix", err)
	}
}

func TestNewRequiresDatabasePath(t *testing.T) {
	_, err := New(Config{HTTPAddr: "127.0.0.1:0"})
	if err == nil {
		t.Fatal("expected error for missing database path")
	}
	if !strings.Contains(err.Error(), "database path") {
		t.Fatalf("error = %v, want database path complaint", err)
	}
}

func TestRunStartsAndStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- Run(ctx, Config{
			HTTPAddr: "127.0.0.1:0",
			DBPath:   filepath.Join(t.TempDir(), "lobby.db"),
		})
	}()

	time.Sleep(25 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop on cancel")
	}
}

func TestListenAndServeAnswersHealthCheck(t *testing.T) {
	srv, err := New(Config{
		HTTPAddr: "127.0.0.1:0",
		DBPath:   filepath.Join(t.TempDir(), "lobby.db"),
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(ctx)
	}()

	waitForUp(t, "http://"+srv.Addr())

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("listen and serve returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop on cancel")
	}
}

func TestSweeperDissolvesIdleRooms(t *testing.T) {
	srv, err := New(Config{
		HTTPAddr:      "127.0.0.1:0",
		DBPath:        filepath.Join(t.TempDir(), "lobby.db"),
		WaitTTL:       10 * time.Millisecond,
		SweepInterval: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(ctx)
	}()

	baseURL := "http://" + srv.Addr()
	waitForUp(t, baseURL)

	var created struct {
		UserToken string `json:"user_token"`
	}
	postLobby(t, baseURL, "/user/create", "", map[string]any{
		"name":           "mio",
		"leader_card_id": 1,
	}, &created)
	if created.UserToken == "" {
		t.Fatal("expected a credential token")
	}

	var room struct {
		RoomID string `json:"room_id"`
	}
	postLobby(t, baseURL, "/room/create", created.UserToken, map[string]any{
		"live_id":           1001,
		"select_difficulty": 1,
	}, &room)
	if room.RoomID == "" {
		t.Fatal("expected a room id")
	}

	// Nobody polls the wait view, so the seat lease lapses and the sweep
	// dissolves the room.
	deadline := time.Now().Add(3 * time.Second)
	for {
		var listed struct {
			RoomInfoList []json.RawMessage `json:"room_info_list"`
		}
		postLobby(t, baseURL, "/room/list", created.UserToken, map[string]any{"live_id": 1001}, &listed)
		if len(listed.RoomInfoList) == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("room %s still listed after sweep deadline", room.RoomID)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("listen and serve returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop on cancel")
	}
}

func waitForUp(t *testing.T, baseURL string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get(baseURL + "/up")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("server at %s never became ready: %v", baseURL, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func postLobby(t *testing.T, baseURL, path, token string, body any, target any) {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal %s body: %v", path, err)
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+path, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new request %s: %v", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("bearer %s", token))
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("post %s status = %d, want 200", path, resp.StatusCode)
	}
	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			t.Fatalf("decode %s response: %v", path, err)
		}
	}
}
