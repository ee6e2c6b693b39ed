package app

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"projectmate/api/internal/config"
	"projectmate/api/internal/credential"
	"projectmate/api/internal/otp"
	"projectmate/api/internal/store"
)

type dataStore interface {
	InsertProject(context.Context, string, string) (store.Project, error)
	ListProjects(context.Context) ([]store.ProjectDetail, error)
	GetProject(context.Context, int64) (store.ProjectDetail, error)
	UpdateProject(context.Context, int64, *string, *string) (store.Project, error)
	DeleteProject(context.Context, int64) error
	InsertSection(context.Context, string, int64) (store.Section, error)
	GetSection(context.Context, int64) (store.SectionDetail, error)
	UpdateSection(context.Context, int64, *string) (store.Section, error)
	DeleteSection(context.Context, int64) error
	InsertTopic(context.Context, string, int64) (store.Topic, error)
	GetTopic(context.Context, int64) (store.TopicDetail, error)
	UpdateTopic(context.Context, int64, *string) (store.Topic, error)
	DeleteTopic(context.Context, int64) error
	InsertFolder(context.Context, string, store.Placement) (store.Folder, error)
	GetFolder(context.Context, int64) (store.FolderDetail, error)
	UpdateFolder(context.Context, int64, *string) (store.Folder, error)
	DeleteFolder(context.Context, int64) error
	InsertFile(context.Context, string, string, store.Placement) (store.File, error)
	GetFile(context.Context, int64) (store.FileDetail, error)
	UpdateFile(context.Context, int64, *string, *string) (store.File, error)
	DeleteFile(context.Context, int64) error
	Ping(ctx context.Context) error
}

type sessionGuard interface {
	IssueSession(ctx context.Context) (string, time.Time, error)
	IsAuthed(ctx context.Context, token string) bool
	Revoke(ctx context.Context) error
	SessionTTL() time.Duration
}

type credentialService interface {
	SetPassword(ctx context.Context, plaintext string) error
	VerifyPassword(ctx context.Context, plaintext string) (bool, error)
}

type otpIssuer interface {
	Issue() (string, error)
	Verify(code string) error
}

type notifier interface {
	IsConfigured() bool
	SendPasswordChangedEmail(to string) error
}

// Service composes the session guard, credential store, OTP issuer and
// content tree behind the HTTP surface.
type Service struct {
	cfg         config.Config
	store       dataStore
	guard       sessionGuard
	credentials credentialService
	otp         otpIssuer
	mailer      notifier
}

func New(cfg config.Config, data dataStore, guard sessionGuard, credentials credentialService, issuer otpIssuer, mailer notifier) *Service {
	return &Service{
		cfg:         cfg,
		store:       data,
		guard:       guard,
		credentials: credentials,
		otp:         issuer,
		mailer:      mailer,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Auth flows

func (s *Service) IsAuthed(ctx context.Context, token string) bool {
	return s.guard.IsAuthed(ctx, token)
}

func (s *Service) SessionTTL() time.Duration {
	return s.guard.SessionTTL()
}

// Login verifies the password and issues a fresh session, replacing any
// previous one.
func (s *Service) Login(ctx context.Context, password string) (string, time.Time, error) {
	ok, err := s.credentials.VerifyPassword(ctx, password)
	if err != nil {
		return "", time.Time{}, err
	}
	if !ok {
		return "", time.Time{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Invalid password", nil)
	}
	return s.guard.IssueSession(ctx)
}

func (s *Service) Logout(ctx context.Context) error {
	return s.guard.Revoke(ctx)
}

// SendOTP issues a reset code and dispatches it to the fixed recipient.
func (s *Service) SendOTP(ctx context.Context) error {
	if strings.TrimSpace(s.cfg.OTPRecipient) == "" {
		return domainError(http.StatusServiceUnavailable, "OTP_UNAVAILABLE", "Password reset is not configured", nil)
	}
	if _, err := s.otp.Issue(); err != nil {
		log.Printf("otp dispatch failed: %v", err)
		return domainError(http.StatusInternalServerError, "OTP_SEND_FAILED", "Failed to send OTP", nil)
	}
	return nil
}

func (s *Service) VerifyOTP(ctx context.Context, code string) error {
	switch err := s.otp.Verify(code); err {
	case nil:
		return nil
	case otp.ErrNoPending:
		return domainError(http.StatusBadRequest, "OTP_NOT_FOUND", "No OTP generated. Please request again.", nil)
	case otp.ErrExpired:
		return domainError(http.StatusBadRequest, "OTP_EXPIRED", "OTP expired. Please request again.", nil)
	case otp.ErrMismatch:
		return domainError(http.StatusBadRequest, "OTP_MISMATCH", "Invalid OTP. Please try again.", nil)
	default:
		return err
	}
}

// UpdatePassword replaces the stored credential and notifies the recipient
// out-of-band. Notification failure does not fail the update.
func (s *Service) UpdatePassword(ctx context.Context, password string) error {
	if err := s.credentials.SetPassword(ctx, password); err != nil {
		if err == credential.ErrTooShort {
			return domainError(http.StatusBadRequest, "VALIDATION_ERROR", "Invalid password", nil)
		}
		return err
	}

	if s.mailer != nil && s.mailer.IsConfigured() && strings.TrimSpace(s.cfg.OTPRecipient) != "" {
		if err := s.mailer.SendPasswordChangedEmail(s.cfg.OTPRecipient); err != nil {
			log.Printf("password changed notification failed: %v", err)
		}
	}
	return nil
}

// Projects

func (s *Service) ListProjects(ctx context.Context) ([]projectDetailPayload, error) {
	items, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	payload := make([]projectDetailPayload, 0, len(items))
	for _, item := range items {
		payload = append(payload, projectDetailFromStore(item))
	}
	return payload, nil
}

func (s *Service) CreateProject(ctx context.Context, title, description string) (projectPayload, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return projectPayload{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "title is required", nil)
	}
	item, err := s.store.InsertProject(ctx, title, description)
	if err != nil {
		return projectPayload{}, err
	}
	return projectFromStore(item), nil
}

func (s *Service) GetProject(ctx context.Context, projectID int64) (projectDetailPayload, error) {
	item, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return projectDetailPayload{}, err
	}
	return projectDetailFromStore(item), nil
}

func (s *Service) UpdateProject(ctx context.Context, projectID int64, title, description *string) (projectPayload, error) {
	if err := validateTitle(title); err != nil {
		return projectPayload{}, err
	}
	item, err := s.store.UpdateProject(ctx, projectID, title, description)
	if err != nil {
		return projectPayload{}, err
	}
	return projectFromStore(item), nil
}

func (s *Service) DeleteProject(ctx context.Context, projectID int64) error {
	return s.store.DeleteProject(ctx, projectID)
}

// Sections

func (s *Service) CreateSection(ctx context.Context, title string, projectID int64) (sectionPayload, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return sectionPayload{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "title is required", nil)
	}
	item, err := s.store.InsertSection(ctx, title, projectID)
	if err != nil {
		return sectionPayload{}, err
	}
	return sectionFromStore(item), nil
}

func (s *Service) GetSection(ctx context.Context, sectionID int64) (sectionDetailPayload, error) {
	item, err := s.store.GetSection(ctx, sectionID)
	if err != nil {
		return sectionDetailPayload{}, err
	}
	return sectionDetailFromStore(item), nil
}

func (s *Service) UpdateSection(ctx context.Context, sectionID int64, title *string) (sectionPayload, error) {
	if err := validateTitle(title); err != nil {
		return sectionPayload{}, err
	}
	item, err := s.store.UpdateSection(ctx, sectionID, title)
	if err != nil {
		return sectionPayload{}, err
	}
	return sectionFromStore(item), nil
}

func (s *Service) DeleteSection(ctx context.Context, sectionID int64) error {
	return s.store.DeleteSection(ctx, sectionID)
}

// Topics

func (s *Service) CreateTopic(ctx context.Context, title string, sectionID int64) (topicPayload, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return topicPayload{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "title is required", nil)
	}
	item, err := s.store.InsertTopic(ctx, title, sectionID)
	if err != nil {
		return topicPayload{}, err
	}
	return topicFromStore(item), nil
}

func (s *Service) GetTopic(ctx context.Context, topicID int64) (topicDetailPayload, error) {
	item, err := s.store.GetTopic(ctx, topicID)
	if err != nil {
		return topicDetailPayload{}, err
	}
	return topicDetailFromStore(item), nil
}

func (s *Service) UpdateTopic(ctx context.Context, topicID int64, title *string) (topicPayload, error) {
	if err := validateTitle(title); err != nil {
		return topicPayload{}, err
	}
	item, err := s.store.UpdateTopic(ctx, topicID, title)
	if err != nil {
		return topicPayload{}, err
	}
	return topicFromStore(item), nil
}

func (s *Service) DeleteTopic(ctx context.Context, topicID int64) error {
	return s.store.DeleteTopic(ctx, topicID)
}

// Folders

func (s *Service) CreateFolder(ctx context.Context, title string, placement store.Placement) (folderPayload, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return folderPayload{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "title is required", nil)
	}
	if placement.IsZero() {
		return folderPayload{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "a parent is required", nil)
	}
	if placement.Kind == store.PlacementFolder {
		return folderPayload{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "folders cannot be nested", nil)
	}
	item, err := s.store.InsertFolder(ctx, title, placement)
	if err != nil {
		return folderPayload{}, err
	}
	return folderFromStore(item), nil
}

func (s *Service) GetFolder(ctx context.Context, folderID int64) (folderDetailPayload, error) {
	item, err := s.store.GetFolder(ctx, folderID)
	if err != nil {
		return folderDetailPayload{}, err
	}
	return folderDetailFromStore(item), nil
}

func (s *Service) UpdateFolder(ctx context.Context, folderID int64, title *string) (folderPayload, error) {
	if err := validateTitle(title); err != nil {
		return folderPayload{}, err
	}
	item, err := s.store.UpdateFolder(ctx, folderID, title)
	if err != nil {
		return folderPayload{}, err
	}
	return folderFromStore(item), nil
}

func (s *Service) DeleteFolder(ctx context.Context, folderID int64) error {
	return s.store.DeleteFolder(ctx, folderID)
}

// Files

func (s *Service) CreateFile(ctx context.Context, filename, content string, placement store.Placement) (filePayload, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return filePayload{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "filename is required", nil)
	}
	item, err := s.store.InsertFile(ctx, filename, content, placement)
	if err != nil {
		return filePayload{}, err
	}
	return fileFromStore(item), nil
}

func (s *Service) GetFile(ctx context.Context, fileID int64) (fileDetailPayload, error) {
	item, err := s.store.GetFile(ctx, fileID)
	if err != nil {
		return fileDetailPayload{}, err
	}
	return fileDetailFromStore(item), nil
}

func (s *Service) UpdateFile(ctx context.Context, fileID int64, filename, content *string) (filePayload, error) {
	if filename != nil && strings.TrimSpace(*filename) == "" {
		return filePayload{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "filename must not be empty", nil)
	}
	item, err := s.store.UpdateFile(ctx, fileID, filename, content)
	if err != nil {
		return filePayload{}, err
	}
	return fileFromStore(item), nil
}

func (s *Service) DeleteFile(ctx context.Context, fileID int64) error {
	return s.store.DeleteFile(ctx, fileID)
}

func validateTitle(title *string) error {
	if title != nil && strings.TrimSpace(*title) == "" {
		return domainError(http.StatusBadRequest, "VALIDATION_ERROR", "title must not be empty", nil)
	}
	return nil
}
