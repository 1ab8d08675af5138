package server

import (
	"fmt"
	"net/http"
)

// TestPageHandler serves a small HTML client for trying the chat protocol
// from a browser.
func TestPageHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := fmt.Fprint(w, testPageHTML); err != nil {
			hub.logger.Warn("write test page", "error", err)
		}
	}
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Messenger WebSocket Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        #users { color: #555; margin: 5px 0; }
        #typing { color: #888; font-style: italic; height: 1.2em; }
        input[type="text"] {
            width: 300px;
            padding: 5px;
            margin-right: 10px;
        }
        button {
            padding: 5px 15px;
            background-color: #007cba;
            color: white;
            border: none;
            cursor: pointer;
        }
        button:hover { background-color: #005a87; }
        .status {
            margin: 10px 0;
            padding: 5px;
            border-radius: 3px;
        }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>Messenger WebSocket Test</h1>

    <div id="status" class="status disconnected">Disconnected</div>

    <div>
        <input type="text" id="usernameInput" placeholder="Username">
        <button id="connectButton" onclick="toggleConnection()">Join</button>
    </div>

    <div id="users"></div>
    <div id="messages"></div>
    <div id="typing"></div>

    <div>
        <input type="text" id="messageInput" placeholder="Type a message..." disabled>
        <input type="text" id="recipientInput" placeholder="Recipient id (private)" disabled>
        <button id="sendButton" onclick="sendMessage()" disabled>Send</button>
    </div>

    <script>
        let ws = null;
        let typing = false;
        let typingTimer = null;
        const users = new Map();
        const messagesDiv = document.getElementById('messages');
        const usersDiv = document.getElementById('users');
        const typingDiv = document.getElementById('typing');
        const messageInput = document.getElementById('messageInput');
        const recipientInput = document.getElementById('recipientInput');
        const usernameInput = document.getElementById('usernameInput');
        const sendButton = document.getElementById('sendButton');
        const connectButton = document.getElementById('connectButton');
        const statusDiv = document.getElementById('status');

        function emit(event, data) {
            ws.send(JSON.stringify(data === undefined ? { event } : { event, data }));
        }

        function addLine(text, color) {
            const el = document.createElement('div');
            el.style.margin = '5px 0';
            el.style.color = color || 'gray';
            el.textContent = text;
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function addMessage(m) {
            const prefix = m.type === 'private' ? '[private] ' : '';
            addLine(prefix + m.user.username + ': ' + m.text, m.type === 'private' ? 'purple' : 'black');
        }

        function renderUsers() {
            usersDiv.textContent = 'Online: ' + Array.from(users.values())
                .map(u => u.username + ' (' + u.id + ')').join(', ');
            typingDiv.textContent = Array.from(users.values())
                .filter(u => u.isTyping).map(u => u.username + ' is typing...').join(' ');
        }

        function updateStatus(connected) {
            statusDiv.textContent = connected ? 'Connected' : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
            messageInput.disabled = !connected;
            recipientInput.disabled = !connected;
            sendButton.disabled = !connected;
            usernameInput.disabled = connected;
            connectButton.textContent = connected ? 'Leave' : 'Join';
        }

        const handlers = {
            users_list(list) { users.clear(); list.forEach(u => users.set(u.id, u)); renderUsers(); },
            message_history(list) { list.forEach(addMessage); },
            new_message: addMessage,
            private_message: addMessage,
            user_joined(u) { users.set(u.id, u); renderUsers(); addLine(u.username + ' joined'); },
            user_left(u) { users.delete(u.id); renderUsers(); addLine(u.username + ' left'); },
            user_typing(t) {
                const u = users.get(t.userId);
                if (u) { u.isTyping = t.isTyping; renderUsers(); }
            },
            delivery_failed(f) { addLine('Not delivered to ' + f.recipient + ': ' + f.reason, 'red'); },
        };

        function connect() {
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws');

            ws.onopen = function() {
                emit('join', { username: usernameInput.value.trim() });
                updateStatus(true);
            };

            ws.onmessage = function(event) {
                const frame = JSON.parse(event.data);
                const handler = handlers[frame.event];
                if (handler) {
                    handler(frame.data);
                }
            };

            ws.onclose = function() {
                addLine('Connection closed');
                users.clear();
                renderUsers();
                updateStatus(false);
                ws = null;
            };

            ws.onerror = function() {
                addLine('Connection error', 'red');
            };
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.close();
            } else if (usernameInput.value.trim()) {
                connect();
            }
        }

        function stopTyping() {
            if (typing) {
                typing = false;
                emit('typing_stop');
            }
        }

        function sendMessage() {
            const text = messageInput.value.trim();
            if (!text || !ws || ws.readyState !== WebSocket.OPEN) {
                return;
            }
            const recipient = recipientInput.value.trim();
            if (recipient) {
                stopTyping();
                emit('private_message', { text, recipient });
            } else {
                typing = false;
                emit('send_message', { text });
            }
            messageInput.value = '';
        }

        messageInput.addEventListener('input', function() {
            if (!typing) {
                typing = true;
                emit('typing_start');
            }
            clearTimeout(typingTimer);
            typingTimer = setTimeout(stopTyping, 3000);
        });

        messageInput.addEventListener('keypress', function(e) {
            if (e.key === 'Enter') {
                sendMessage();
            }
        });
    </script>
</body>
</html>`
