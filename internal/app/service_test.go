package app

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"projectmate/api/internal/store"
)

func TestCreateFolderRejectsNesting(t *testing.T) {
	service, _ := newTestService(&fakeData{})

	_, err := service.CreateFolder(context.Background(), "Archive", store.PlaceInFolder(4))

	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("err = %v, want DomainError", err)
	}
	if domainErr.Status != http.StatusBadRequest || domainErr.Code != "VALIDATION_ERROR" {
		t.Errorf("got %d %s, want 400 VALIDATION_ERROR", domainErr.Status, domainErr.Code)
	}
}

func TestCreateFolderRequiresPlacement(t *testing.T) {
	service, _ := newTestService(&fakeData{})

	_, err := service.CreateFolder(context.Background(), "Archive", store.Placement{})

	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("err = %v, want DomainError", err)
	}
	if domainErr.Status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", domainErr.Status)
	}
}

func TestCreateFileAllowsUnattached(t *testing.T) {
	var gotPlacement store.Placement
	fs := &fakeData{
		insertFileFn: func(_ context.Context, filename, content string, placement store.Placement) (store.File, error) {
			gotPlacement = placement
			return store.File{ID: 1, Filename: filename, Content: content}, nil
		},
	}
	service, _ := newTestService(fs)

	if _, err := service.CreateFile(context.Background(), "loose.md", "", store.Placement{}); err != nil {
		t.Fatalf("CreateFile failed: %v", err)
	}
	if !gotPlacement.IsZero() {
		t.Errorf("placement = %+v, want zero", gotPlacement)
	}
}

func TestUpdateFileRejectsBlankFilename(t *testing.T) {
	service, _ := newTestService(&fakeData{})
	blank := "   "

	_, err := service.UpdateFile(context.Background(), 1, &blank, nil)

	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("err = %v, want DomainError", err)
	}
	if domainErr.Code != "VALIDATION_ERROR" {
		t.Errorf("code = %s, want VALIDATION_ERROR", domainErr.Code)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	service, _ := newTestService(&fakeData{})

	_, _, err := service.Login(context.Background(), "wrong")

	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("err = %v, want DomainError", err)
	}
	if domainErr.Status != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", domainErr.Status)
	}
}

func TestUpdatePasswordSurvivesNotifierFailure(t *testing.T) {
	service, mailer := newTestService(&fakeData{})
	mailer.sendErr = errSMTPDown

	if err := service.UpdatePassword(context.Background(), "newpass"); err != nil {
		t.Fatalf("UpdatePassword = %v, want nil despite notifier failure", err)
	}
}
