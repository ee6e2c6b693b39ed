package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// These tests run against a real postgres and cover the behavior that lives
// in SQL: the LEFT JOIN ancestry resolver and the ON DELETE CASCADE edges.

func setupTestStore(t *testing.T) *PostgresStore {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db, err := Open(ctx, getTestDatabaseURL(t))
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := ApplyMigrations(ctx, db, filepath.Join("..", "..", "db", "migrations")); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return NewPostgresStore(db)
}

func TestAncestryResolutionAcrossPlacements(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	project, err := store.InsertProject(ctx, "Thesis", "notes")
	if err != nil {
		t.Fatalf("insert project: %v", err)
	}
	defer func() { _ = store.DeleteProject(ctx, project.ID) }()

	section, err := store.InsertSection(ctx, "Research", project.ID)
	if err != nil {
		t.Fatalf("insert section: %v", err)
	}
	topic, err := store.InsertTopic(ctx, "Sources", section.ID)
	if err != nil {
		t.Fatalf("insert topic: %v", err)
	}
	folder, err := store.InsertFolder(ctx, "Archive", PlaceInTopic(topic.ID))
	if err != nil {
		t.Fatalf("insert folder: %v", err)
	}

	inTopic, err := store.InsertFile(ctx, "in-topic.md", "", PlaceInTopic(topic.ID))
	if err != nil {
		t.Fatalf("insert topic file: %v", err)
	}
	inSection, err := store.InsertFile(ctx, "in-section.md", "", PlaceInSection(section.ID))
	if err != nil {
		t.Fatalf("insert section file: %v", err)
	}
	inProject, err := store.InsertFile(ctx, "in-project.md", "", PlaceInProject(project.ID))
	if err != nil {
		t.Fatalf("insert project file: %v", err)
	}
	inFolder, err := store.InsertFile(ctx, "in-folder.md", "", PlaceInFolder(folder.ID))
	if err != nil {
		t.Fatalf("insert folder file: %v", err)
	}
	loose, err := store.InsertFile(ctx, "loose.md", "", Placement{})
	if err != nil {
		t.Fatalf("insert unattached file: %v", err)
	}
	defer func() { _ = store.DeleteFile(ctx, loose.ID) }()

	assertAncestry := func(name string, anc Ancestry, projectID, sectionID, topicID *int64) {
		t.Helper()
		checkRef := func(level string, got, want *int64) {
			t.Helper()
			switch {
			case want == nil && got != nil:
				t.Errorf("%s: %s = %d, want unresolved", name, level, *got)
			case want != nil && got == nil:
				t.Errorf("%s: %s unresolved, want %d", name, level, *want)
			case want != nil && *got != *want:
				t.Errorf("%s: %s = %d, want %d", name, level, *got, *want)
			}
		}
		checkRef("project", anc.ProjectID, projectID)
		checkRef("section", anc.SectionID, sectionID)
		checkRef("topic", anc.TopicID, topicID)
	}

	// Topic placement walks topic -> section -> project.
	detail, err := store.GetFile(ctx, inTopic.ID)
	if err != nil {
		t.Fatalf("get topic file: %v", err)
	}
	assertAncestry("topic file", detail.Ancestry, &project.ID, &section.ID, &topic.ID)
	if detail.Ancestry.ProjectTitle == nil || *detail.Ancestry.ProjectTitle != "Thesis" {
		t.Errorf("topic file project title = %v, want Thesis", detail.Ancestry.ProjectTitle)
	}
	if detail.Ancestry.SectionTitle == nil || *detail.Ancestry.SectionTitle != "Research" {
		t.Errorf("topic file section title = %v, want Research", detail.Ancestry.SectionTitle)
	}
	if detail.Ancestry.TopicTitle == nil || *detail.Ancestry.TopicTitle != "Sources" {
		t.Errorf("topic file topic title = %v, want Sources", detail.Ancestry.TopicTitle)
	}

	// Section placement resolves section and project only.
	detail, err = store.GetFile(ctx, inSection.ID)
	if err != nil {
		t.Fatalf("get section file: %v", err)
	}
	assertAncestry("section file", detail.Ancestry, &project.ID, &section.ID, nil)

	// Project placement resolves the project alone.
	detail, err = store.GetFile(ctx, inProject.ID)
	if err != nil {
		t.Fatalf("get project file: %v", err)
	}
	assertAncestry("project file", detail.Ancestry, &project.ID, nil, nil)

	// Folder placement does not walk through the folder.
	detail, err = store.GetFile(ctx, inFolder.ID)
	if err != nil {
		t.Fatalf("get folder file: %v", err)
	}
	assertAncestry("folder file", detail.Ancestry, nil, nil, nil)
	if detail.Placement != PlaceInFolder(folder.ID) {
		t.Errorf("folder file placement = %+v, want folder %d", detail.Placement, folder.ID)
	}

	// Unattached files resolve nothing.
	detail, err = store.GetFile(ctx, loose.ID)
	if err != nil {
		t.Fatalf("get unattached file: %v", err)
	}
	assertAncestry("unattached file", detail.Ancestry, nil, nil, nil)

	// The folder itself resolves its own chain and lists its files.
	folderDetail, err := store.GetFolder(ctx, folder.ID)
	if err != nil {
		t.Fatalf("get folder: %v", err)
	}
	assertAncestry("folder", folderDetail.Ancestry, &project.ID, &section.ID, &topic.ID)
	if len(folderDetail.Files) != 1 || folderDetail.Files[0].ID != inFolder.ID {
		t.Errorf("folder files = %+v, want the folder-placed file", folderDetail.Files)
	}
}

func TestDeleteProjectCascades(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	project, err := store.InsertProject(ctx, "Doomed", "")
	if err != nil {
		t.Fatalf("insert project: %v", err)
	}
	section, err := store.InsertSection(ctx, "Research", project.ID)
	if err != nil {
		t.Fatalf("insert section: %v", err)
	}
	topic, err := store.InsertTopic(ctx, "Sources", section.ID)
	if err != nil {
		t.Fatalf("insert topic: %v", err)
	}
	folder, err := store.InsertFolder(ctx, "Archive", PlaceInSection(section.ID))
	if err != nil {
		t.Fatalf("insert folder: %v", err)
	}
	file, err := store.InsertFile(ctx, "draft.md", "", PlaceInFolder(folder.ID))
	if err != nil {
		t.Fatalf("insert file: %v", err)
	}

	if err := store.DeleteProject(ctx, project.ID); err != nil {
		t.Fatalf("delete project: %v", err)
	}

	// Every descendant is gone, through folders included.
	if _, err := store.GetSection(ctx, section.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("get section = %v, want sql.ErrNoRows", err)
	}
	if _, err := store.GetTopic(ctx, topic.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("get topic = %v, want sql.ErrNoRows", err)
	}
	if _, err := store.GetFolder(ctx, folder.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("get folder = %v, want sql.ErrNoRows", err)
	}
	if _, err := store.GetFile(ctx, file.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("get file = %v, want sql.ErrNoRows", err)
	}

	// Deleting an already-cascaded node reports not found.
	if err := store.DeleteTopic(ctx, topic.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("delete topic = %v, want sql.ErrNoRows", err)
	}
	if err := store.DeleteProject(ctx, project.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("second delete = %v, want sql.ErrNoRows", err)
	}
}

func TestInsertRejectsMissingParent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	const missing = int64(1) << 40

	if _, err := store.InsertSection(ctx, "orphan", missing); !errors.Is(err, ErrParentNotFound) {
		t.Errorf("insert section = %v, want ErrParentNotFound", err)
	}
	if _, err := store.InsertTopic(ctx, "orphan", missing); !errors.Is(err, ErrParentNotFound) {
		t.Errorf("insert topic = %v, want ErrParentNotFound", err)
	}
	if _, err := store.InsertFolder(ctx, "orphan", PlaceInTopic(missing)); !errors.Is(err, ErrParentNotFound) {
		t.Errorf("insert folder = %v, want ErrParentNotFound", err)
	}
	if _, err := store.InsertFile(ctx, "orphan.md", "", PlaceInFolder(missing)); !errors.Is(err, ErrParentNotFound) {
		t.Errorf("insert file = %v, want ErrParentNotFound", err)
	}
}

// getTestDatabaseURL returns the database URL for integration tests,
// from TEST_DATABASE_URL or the standard postgres environment variables.
func getTestDatabaseURL(t *testing.T) string {
	t.Helper()

	if url := getenv("TEST_DATABASE_URL", ""); url != "" {
		return url
	}

	host := getenv("POSTGRES_HOST", "localhost")
	port := getenv("POSTGRES_PORT", "5432")
	user := getenv("POSTGRES_USER", "projectmate")
	pass := getenv("POSTGRES_PASSWORD", "projectmate")
	dbname := getenv("POSTGRES_DB", "projectmate_test")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + dbname + "?sslmode=disable"
}

func getenv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
