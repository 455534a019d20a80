// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the subscription handlers.
const (
	BadSubprotocolError   = 3000 // Client connected with an unsupported subprotocol.
	InvalidAuthTokenError = 3001 // Provided auth token was invalid or expired.
	InvalidLobbyCodeError = 3003 // Lobby code in the WS URL does not exist or is malformed.
)
