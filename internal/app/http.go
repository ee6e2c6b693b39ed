package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"projectmate/api/internal/store"
)

const sessionCookieName = "projectmate_session"

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	// Auth routes (no session required)
	switch r.URL.Path {
	case "/api/auth/login":
		if s.requirePost(w, r) {
			s.handleAuthLogin(w, r)
		}
		return
	case "/api/auth/logout":
		if s.requirePost(w, r) {
			s.handleAuthLogout(w, r)
		}
		return
	case "/api/auth/send-otp":
		if s.requirePost(w, r) {
			s.handleAuthSendOTP(w, r)
		}
		return
	case "/api/auth/verify-otp":
		if s.requirePost(w, r) {
			s.handleAuthVerifyOTP(w, r)
		}
		return
	case "/api/auth/update-password":
		if s.requirePost(w, r) {
			s.handleAuthUpdatePassword(w, r)
		}
		return
	}

	if r.URL.Path == "/api/session" {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"authenticated": s.service.IsAuthed(r.Context(), sessionToken(r)),
		})
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || len(parts) > 3 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "not found", nil)
		return
	}

	// Every tree route requires a session.
	if !s.requireSession(w, r) {
		return
	}

	if len(parts) == 2 {
		s.handleCollection(w, r, parts[1])
		return
	}

	id, err := parseID(parts[2])
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "invalid id", nil)
		return
	}
	s.handleItem(w, r, parts[1], id)
}

func (s *HTTPServer) handleCollection(w http.ResponseWriter, r *http.Request, resource string) {
	switch resource {
	case "projects":
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.ListProjects(r.Context())
			if err != nil {
				s.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, payload)
		case http.MethodPost:
			var body struct {
				Title       string `json:"title"`
				Description string `json:"description"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.CreateProject(r.Context(), body.Title, body.Description)
			if err != nil {
				s.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, payload)
		default:
			writeMethodNotAllowed(w)
		}

	case "sections":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		var body struct {
			Title     string `json:"title"`
			ProjectID *int64 `json:"projectId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if body.ProjectID == nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "projectId is required", nil)
			return
		}
		payload, err := s.service.CreateSection(r.Context(), body.Title, *body.ProjectID)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case "topics":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		var body struct {
			Title     string `json:"title"`
			SectionID *int64 `json:"sectionId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if body.SectionID == nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "sectionId is required", nil)
			return
		}
		payload, err := s.service.CreateTopic(r.Context(), body.Title, *body.SectionID)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case "folders":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		var body struct {
			Title     string `json:"title"`
			ProjectID *int64 `json:"projectId"`
			SectionID *int64 `json:"sectionId"`
			TopicID   *int64 `json:"topicId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		placement, err := placementFromRefs(body.ProjectID, body.SectionID, body.TopicID, nil)
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateFolder(r.Context(), body.Title, placement)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case "files":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		var body struct {
			Filename  string `json:"filename"`
			Content   string `json:"content"`
			ProjectID *int64 `json:"projectId"`
			SectionID *int64 `json:"sectionId"`
			TopicID   *int64 `json:"topicId"`
			FolderID  *int64 `json:"folderId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		placement, err := placementFromRefs(body.ProjectID, body.SectionID, body.TopicID, body.FolderID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateFile(r.Context(), body.Filename, body.Content, placement)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "not found", nil)
	}
}

func (s *HTTPServer) handleItem(w http.ResponseWriter, r *http.Request, resource string, id int64) {
	switch r.Method {
	case http.MethodGet:
		var payload any
		var err error
		switch resource {
		case "projects":
			payload, err = s.service.GetProject(r.Context(), id)
		case "sections":
			payload, err = s.service.GetSection(r.Context(), id)
		case "topics":
			payload, err = s.service.GetTopic(r.Context(), id)
		case "folders":
			payload, err = s.service.GetFolder(r.Context(), id)
		case "files":
			payload, err = s.service.GetFile(r.Context(), id)
		default:
			writeError(w, http.StatusNotFound, "NOT_FOUND", "not found", nil)
			return
		}
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case http.MethodPut, http.MethodPatch:
		s.handleUpdate(w, r, resource, id)

	case http.MethodDelete:
		var err error
		switch resource {
		case "projects":
			err = s.service.DeleteProject(r.Context(), id)
		case "sections":
			err = s.service.DeleteSection(r.Context(), id)
		case "topics":
			err = s.service.DeleteTopic(r.Context(), id)
		case "folders":
			err = s.service.DeleteFolder(r.Context(), id)
		case "files":
			err = s.service.DeleteFile(r.Context(), id)
		default:
			writeError(w, http.StatusNotFound, "NOT_FOUND", "not found", nil)
			return
		}
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	default:
		writeMethodNotAllowed(w)
	}
}

func (s *HTTPServer) handleUpdate(w http.ResponseWriter, r *http.Request, resource string, id int64) {
	switch resource {
	case "projects":
		var body struct {
			Title       *string `json:"title"`
			Description *string `json:"description"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.UpdateProject(r.Context(), id, body.Title, body.Description)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case "sections", "topics", "folders":
		var body struct {
			Title *string `json:"title"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		var payload any
		var err error
		switch resource {
		case "sections":
			payload, err = s.service.UpdateSection(r.Context(), id, body.Title)
		case "topics":
			payload, err = s.service.UpdateTopic(r.Context(), id, body.Title)
		case "folders":
			payload, err = s.service.UpdateFolder(r.Context(), id, body.Title)
		}
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case "files":
		var body struct {
			Filename *string `json:"filename"`
			Content  *string `json:"content"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.UpdateFile(r.Context(), id, body.Filename, body.Content)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "not found", nil)
	}
}

// Auth handlers

func (s *HTTPServer) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	token, _, err := s.service.Login(r.Context(), body.Password)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.service.SessionTTL().Seconds()),
	})
	writeJSON(w, http.StatusOK, map[string]any{"message": "Login successful"})
}

func (s *HTTPServer) handleAuthLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Logout(r.Context()); err != nil {
		log.Printf("logout: %v", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleAuthSendOTP(w http.ResponseWriter, r *http.Request) {
	if err := s.service.SendOTP(r.Context()); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "OTP sent successfully"})
}

func (s *HTTPServer) handleAuthVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OTP string `json:"otp"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if err := s.service.VerifyOTP(r.Context(), body.OTP); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "OTP verified successfully"})
}

func (s *HTTPServer) handleAuthUpdatePassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if err := s.service.UpdatePassword(r.Context(), body.Password); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Password updated successfully"})
}

// Helpers

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) bool {
	if !s.service.IsAuthed(r.Context(), sessionToken(r)) {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return false
	}
	return true
}

func (s *HTTPServer) requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return false
	}
	return true
}

func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	if status == http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
	// Browsers refuse credentialed requests against a wildcard origin, so the
	// cookie is only offered cross-origin when an explicit origin is set.
	if corsOrigin != "*" {
		header.Set("Access-Control-Allow-Credentials", "true")
	}
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		// An absent body decodes the same as an empty object.
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func sessionToken(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func parseID(raw string) (int64, error) {
	return strconv.ParseInt(raw, 10, 64)
}

// placementFromRefs builds the placement variant from the optional parent
// references of a request body, rejecting more than one parent.
func placementFromRefs(projectID, sectionID, topicID, folderID *int64) (store.Placement, error) {
	var placement store.Placement
	count := 0
	if projectID != nil {
		placement = store.PlaceInProject(*projectID)
		count++
	}
	if sectionID != nil {
		placement = store.PlaceInSection(*sectionID)
		count++
	}
	if topicID != nil {
		placement = store.PlaceInTopic(*topicID)
		count++
	}
	if folderID != nil {
		placement = store.PlaceInFolder(*folderID)
		count++
	}
	if count > 1 {
		return store.Placement{}, fmt.Errorf("at most one parent reference may be set")
	}
	return placement, nil
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "not found", nil
	}
	if errors.Is(err, store.ErrParentNotFound) {
		return http.StatusBadRequest, "BAD_REFERENCE", "referenced parent does not exist", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
