package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

func newUpgrader(origins *originPolicy) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     origins.checkOrigin,
	}
}

// WebSocketHandler upgrades the request and hands the connection to the hub,
// which starts the client's read and write pumps.
func WebSocketHandler(hub *Hub, upgrader *websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.logger.Warn("websocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
			return
		}

		client := NewClient(conn, hub, r.RemoteAddr)
		if err := hub.Register(client); err != nil {
			client.logger.Warn("rejecting connection", "error", err)
			client.closeConnection()
		}
	}
}

// HealthHandler responds with a plain text message indicating the server is running.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Challenge hub is running!")
}

// HealthzHandler reports connection, room and goroutine counts as JSON.
func HealthzHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, hub.logger, http.StatusOK, map[string]int{
			"connections": hub.ClientCount(),
			"rooms":       hub.RoomCount(),
			"goroutines":  runtime.NumGoroutine(),
		})
	}
}

// RoomHandler serves the read-only snapshot of a challenge room.
func RoomHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		challengeID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || challengeID <= 0 {
			http.Error(w, "invalid challenge id", http.StatusBadRequest)
			return
		}

		snapshot, err := hub.Snapshot(r.Context(), challengeID)
		switch {
		case errors.Is(err, ErrChallengeNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, ErrNotCollaborative):
			http.Error(w, err.Error(), http.StatusConflict)
		case err != nil:
			hub.logger.Error("room snapshot failed", "challenge_id", challengeID, "error", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
		default:
			writeJSON(w, hub.logger, http.StatusOK, snapshot)
		}
	}
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("error writing JSON response", "error", err)
	}
}

// TestPageHandler serves an HTML page for exercising the room protocol by hand.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprint(w, testPageHTML)
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Challenge Hub Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #log {
            border: 1px solid #ccc;
            height: 320px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
            font-family: monospace;
            font-size: 12px;
        }
        fieldset { margin: 8px 0; }
        input[type="text"], input[type="number"] { padding: 4px; margin-right: 6px; }
        button {
            padding: 4px 12px;
            background-color: #007cba;
            color: white;
            border: none;
            cursor: pointer;
        }
        button:hover { background-color: #005a87; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>Challenge Hub Test</h1>

    <div id="status" class="status disconnected">Disconnected</div>
    <button id="connectButton" onclick="toggleConnection()">Connect</button>

    <fieldset>
        <legend>Session</legend>
        <input type="number" id="userId" placeholder="user id">
        <input type="text" id="token" placeholder="session token">
        <button onclick="send('authenticate', {userId: num('userId'), sessionToken: val('token')})">Authenticate</button>
    </fieldset>

    <fieldset>
        <legend>Room</legend>
        <input type="number" id="challengeId" placeholder="challenge id">
        <button onclick="send('join_challenge', {challengeId: num('challengeId')})">Join</button>
        <button onclick="send('leave_challenge')">Leave</button>
    </fieldset>

    <fieldset>
        <legend>Activity</legend>
        <input type="text" id="content" placeholder="message">
        <button onclick="send('challenge_message', {content: val('content')})">Send</button>
        <input type="number" id="progress" min="0" max="100" placeholder="progress">
        <label><input type="checkbox" id="completed"> completed</label>
        <button onclick="send('progress_update', {progress: num('progress'), completed: document.getElementById('completed').checked})">Update</button>
    </fieldset>

    <div id="log"></div>

    <script>
        let ws = null;
        const logDiv = document.getElementById('log');
        const statusDiv = document.getElementById('status');
        const connectButton = document.getElementById('connectButton');

        function val(id) { return document.getElementById(id).value; }
        function num(id) { return parseInt(val(id), 10); }

        function addLine(text, color) {
            const line = document.createElement('div');
            line.style.color = color || 'gray';
            line.textContent = text;
            logDiv.appendChild(line);
            logDiv.scrollTop = logDiv.scrollHeight;
        }

        function updateStatus(connected) {
            statusDiv.textContent = connected ? 'Connected' : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
            connectButton.textContent = connected ? 'Disconnect' : 'Connect';
        }

        function connect() {
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws');
            ws.onopen = function() { addLine('connected'); updateStatus(true); };
            ws.onmessage = function(event) { addLine('<- ' + event.data, 'green'); };
            ws.onclose = function() { addLine('connection closed'); updateStatus(false); ws = null; };
            ws.onerror = function() { addLine('connection error', 'red'); };
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.close();
            } else {
                connect();
            }
        }

        function send(type, payload) {
            if (!ws || ws.readyState !== WebSocket.OPEN) {
                addLine('not connected', 'red');
                return;
            }
            const frame = JSON.stringify(payload === undefined ? {type: type} : {type: type, payload: payload});
            ws.send(frame);
            addLine('-> ' + frame, 'blue');
        }
    </script>
</body>
</html>`
