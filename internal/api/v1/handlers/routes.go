package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	v1websocket "github.com/phoebe-ai/phoebe-client/internal/api/v1/handlers/websocket"
	v1mware "github.com/phoebe-ai/phoebe-client/internal/api/v1/middleware"
	"github.com/phoebe-ai/phoebe-client/internal/services"
)

func RegisterV1Routes(router *mux.Router, services *services.Services) {
	// v1 routes
	v1 := router.PathPrefix("/v1").Subrouter()

	sessionService := services.GetSessionService()
	backendService := services.GetBackendService()
	voiceController := services.GetVoiceController()

	// Conversation state
	v1.HandleFunc("/transcript", func(w http.ResponseWriter, r *http.Request) {
		HandleGetTranscript(sessionService, w, r)
	}).Methods("GET")

	// Chat routes
	v1chatRouter := v1.PathPrefix("/chat").Subrouter()
	v1chatRouter.Handle("/send", v1mware.RateLimit("chat_send")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		HandleChatSend(sessionService, w, r)
	}))).Methods("POST")
	v1chatRouter.HandleFunc("/cancel", func(w http.ResponseWriter, r *http.Request) {
		HandleChatCancel(sessionService, w, r)
	}).Methods("POST")
	v1chatRouter.Handle("/edit", v1mware.RateLimit("chat_send")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		HandleChatEdit(sessionService, w, r)
	}))).Methods("POST")

	// Session routes
	v1sessionRouter := v1.PathPrefix("/sessions").Subrouter()
	v1sessionRouter.HandleFunc("", func(w http.ResponseWriter, r *http.Request) {
		HandleListSessions(sessionService, w, r)
	}).Methods("GET")
	v1sessionRouter.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		HandleNewSession(sessionService, w, r)
	}).Methods("POST")
	v1sessionRouter.HandleFunc("/select", func(w http.ResponseWriter, r *http.Request) {
		HandleSelectSession(sessionService, w, r)
	}).Methods("POST")
	v1sessionRouter.Handle("/{id}/title", v1mware.RateLimit("session_mutation")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		HandleRenameSession(sessionService, w, r)
	}))).Methods("PUT")
	v1sessionRouter.Handle("/{id}", v1mware.RateLimit("session_mutation")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		HandleDeleteSession(sessionService, w, r)
	}))).Methods("DELETE")

	// Voice routes
	v1voiceRouter := v1.PathPrefix("/voice").Subrouter()
	v1voiceRouter.HandleFunc("/enter", func(w http.ResponseWriter, r *http.Request) {
		HandleVoiceEnter(voiceController, w, r)
	}).Methods("POST")
	v1voiceRouter.HandleFunc("/exit", func(w http.ResponseWriter, r *http.Request) {
		HandleVoiceExit(voiceController, w, r)
	}).Methods("POST")
	v1voiceRouter.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		HandleVoiceStatus(voiceController, w, r)
	}).Methods("GET")

	// Notes export
	v1.Handle("/notes", v1mware.RateLimit("notes_export")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		HandleExportNote(sessionService, w, r)
	}))).Methods("POST")
	v1.HandleFunc("/tags", func(w http.ResponseWriter, r *http.Request) {
		HandleListTags(backendService, w, r)
	}).Methods("GET")

	// Auth passthrough
	v1authRouter := v1.PathPrefix("/auth").Subrouter()
	v1authRouter.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		HandleLogin(backendService, w, r)
	}).Methods("POST")
	v1authRouter.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		HandleAuthStatus(backendService, w, r)
	}).Methods("GET")

	// UI push channel
	v1.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		v1websocket.HandleUI(services.GetConnectionManager(), services.GetAudioBridge(), sessionService, w, r)
	}).Methods("GET")
}
