/*
This file contains the HandleWebSocket function, which is responsible for rate
limiting, upgrading the HTTP connection to WebSocket, honoring an optional
session-resume token, and starting the session lifecycle.
*/
package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"mafiagame/internal/app/game"
	"mafiagame/internal/pkg/auth/jwt"
	"mafiagame/internal/pkg/errs"
	"mafiagame/internal/pkg/limiter"
	"mafiagame/internal/pkg/logx"
	"mafiagame/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection
// requests. A valid token query parameter resumes the identity issued at the
// last login without a fresh credential exchange.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !rateLimiter.AllowAddr(r.RemoteAddr) {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "remote_addr", r.RemoteAddr)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		resumeNickname := ""
		if token := r.URL.Query().Get("token"); token != "" {
			payload, err := jwt.ParseToken(token, deps.Config.JWTSecret)
			if err != nil {
				logx.Warn("WebSocket resume token rejected", "remote_addr", r.RemoteAddr, "error", err.Error())
			} else {
				resumeNickname = payload.Nickname
			}
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		session := game.NewSession(deps.Hub, conn, r.RemoteAddr)

		go session.WritePump()

		deps.Hub.Connect(session)

		if resumeNickname != "" {
			deps.Hub.ResumeSession(session, resumeNickname)
		}

		logx.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

		session.ReadPump()
	}
}
