package httpapi

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/websocket"
)

func TestWatchStreamsRoomChanges(t *testing.T) {
	srv := newTestServer(t)
	hostToken := registerUser(t, srv, "mio", 1)
	guestToken := registerUser(t, srv, "ritsu", 2)

	var created createRoomResponse
	if status := postJSON(t, srv, "/room/create", hostToken, createRoomRequest{LiveID: 1001, SelectDifficulty: 1}, &created); status != http.StatusOK {
		t.Fatalf("create status = %d, want 200", status)
	}

	conn := dialWatch(t, srv, created.RoomID, hostToken)
	defer conn.Close()

	frame := readWatchFrame(t, conn)
	if frame.Status != 1 || len(frame.RoomUserList) != 1 {
		t.Fatalf("initial frame = %+v, want waiting with one seat", frame)
	}
	if !frame.RoomUserList[0].IsMe || !frame.RoomUserList[0].IsHost {
		t.Fatalf("seat = %+v, want the watching host", frame.RoomUserList[0])
	}

	var joined joinRoomResponse
	if status := postJSON(t, srv, "/room/join", guestToken, joinRoomRequest{RoomID: created.RoomID, SelectDifficulty: 2}, &joined); status != http.StatusOK || joined.JoinRoomResult != 1 {
		t.Fatalf("join = %d %+v, want 200 OK", status, joined)
	}

	frame = readWatchFrame(t, conn)
	if len(frame.RoomUserList) != 2 {
		t.Fatalf("frame after join = %+v, want two seats", frame)
	}
	guest := frame.RoomUserList[1]
	if guest.IsMe || guest.IsHost || guest.SelectDifficulty != 2 {
		t.Fatalf("guest seat = %+v, want hard non-host seen from the host", guest)
	}

	if status := postJSON(t, srv, "/room/leave", guestToken, roomRequest{RoomID: created.RoomID}, nil); status != http.StatusOK {
		t.Fatalf("guest leave status = %d, want 200", status)
	}
	frame = readWatchFrame(t, conn)
	if len(frame.RoomUserList) != 1 || !frame.RoomUserList[0].IsHost {
		t.Fatalf("frame after leave = %+v, want the host alone", frame)
	}

	// The last member leaving dissolves the room; the feed reports it and
	// then shuts the stream down.
	if status := postJSON(t, srv, "/room/leave", hostToken, roomRequest{RoomID: created.RoomID}, nil); status != http.StatusOK {
		t.Fatalf("host leave status = %d, want 200", status)
	}
	frame = readWatchFrame(t, conn)
	if frame.Status != 3 || len(frame.RoomUserList) != 0 {
		t.Fatalf("final frame = %+v, want dissolved and empty", frame)
	}

	if err := conn.SetDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	var extra waitRoomResponse
	if err := websocket.JSON.Receive(conn, &extra); err == nil {
		t.Fatalf("read after dissolution = %+v, want closed stream", extra)
	}
}

func TestWatchRejectsBadCredential(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv, "mio", 1)

	var created createRoomResponse
	if status := postJSON(t, srv, "/room/create", token, createRoomRequest{LiveID: 1001, SelectDifficulty: 1}, &created); status != http.StatusOK {
		t.Fatalf("create status = %d, want 200", status)
	}

	wsURL := watchURL(srv, created.RoomID, "bogus-token")
	if _, err := websocket.Dial(wsURL, "", srv.URL); err == nil {
		t.Fatal("expected the handshake to be rejected")
	}
}

func TestWatchRequiresRoomID(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv, "mio", 1)

	wsURL := watchURL(srv, "", token)
	if _, err := websocket.Dial(wsURL, "", srv.URL); err == nil {
		t.Fatal("expected the handshake to be rejected")
	}
}

func TestWatchClosesOnUnknownRoom(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv, "mio", 1)

	// The credential is fine, so the upgrade succeeds; the stream closes
	// once the room lookup comes back empty.
	conn := dialWatch(t, srv, "no-such-room", token)
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	var frame waitRoomResponse
	if err := websocket.JSON.Receive(conn, &frame); err == nil {
		t.Fatalf("read = %+v, want closed stream", frame)
	}
}

func dialWatch(t *testing.T, srv *httptest.Server, roomID, token string) *websocket.Conn {
	t.Helper()
	conn, err := websocket.Dial(watchURL(srv, roomID, token), "", srv.URL)
	if err != nil {
		t.Fatalf("dial watch: %v", err)
	}
	return conn
}

func watchURL(srv *httptest.Server, roomID, token string) string {
	query := url.Values{}
	if roomID != "" {
		query.Set("room_id", roomID)
	}
	if token != "" {
		query.Set("token", token)
	}
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/room/watch?" + query.Encode()
}

func readWatchFrame(t *testing.T, conn *websocket.Conn) waitRoomResponse {
	t.Helper()
	if err := conn.SetDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	var frame waitRoomResponse
	if err := websocket.JSON.Receive(conn, &frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return frame
}
