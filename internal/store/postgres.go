package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrParentNotFound reports a create that referenced a nonexistent parent.
var ErrParentNotFound = errors.New("parent does not exist")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Projects

func (s *PostgresStore) InsertProject(ctx context.Context, title, description string) (Project, error) {
	var item Project
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO projects (title, description)
		VALUES ($1, $2)
		RETURNING id, title, description, created_at, updated_at
	`, title, description).Scan(&item.ID, &item.Title, &item.Description, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Project{}, fmt.Errorf("insert project: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) ListProjects(ctx context.Context) ([]ProjectDetail, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, created_at, updated_at
		FROM projects
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	items := make([]ProjectDetail, 0)
	index := map[int64]int{}
	for rows.Next() {
		var item Project
		if err := rows.Scan(&item.ID, &item.Title, &item.Description, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		index[item.ID] = len(items)
		items = append(items, ProjectDetail{
			Project:  item,
			Sections: make([]Section, 0),
			Folders:  make([]Folder, 0),
			Files:    make([]File, 0),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}

	sections, err := s.listSections(ctx, ``)
	if err != nil {
		return nil, err
	}
	for _, section := range sections {
		if at, ok := index[section.ProjectID]; ok {
			items[at].Sections = append(items[at].Sections, section)
		}
	}

	folders, err := s.listFolders(ctx, `WHERE project_id IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	for _, folder := range folders {
		if at, ok := index[folder.Placement.ID]; ok {
			items[at].Folders = append(items[at].Folders, folder)
		}
	}

	files, err := s.listFiles(ctx, `WHERE project_id IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		if at, ok := index[file.Placement.ID]; ok {
			items[at].Files = append(items[at].Files, file)
		}
	}

	return items, nil
}

func (s *PostgresStore) GetProject(ctx context.Context, projectID int64) (ProjectDetail, error) {
	var item ProjectDetail
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, created_at, updated_at
		FROM projects
		WHERE id=$1
	`, projectID).Scan(&item.ID, &item.Title, &item.Description, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return ProjectDetail{}, err
	}

	if item.Sections, err = s.listSections(ctx, `WHERE project_id=$1`, projectID); err != nil {
		return ProjectDetail{}, err
	}
	if item.Folders, err = s.listFolders(ctx, `WHERE project_id=$1`, projectID); err != nil {
		return ProjectDetail{}, err
	}
	if item.Files, err = s.listFiles(ctx, `WHERE project_id=$1`, projectID); err != nil {
		return ProjectDetail{}, err
	}
	return item, nil
}

func (s *PostgresStore) UpdateProject(ctx context.Context, projectID int64, title, description *string) (Project, error) {
	var item Project
	err := s.db.QueryRowContext(ctx, `
		UPDATE projects
		SET title=COALESCE($2, title), description=COALESCE($3, description), updated_at=NOW()
		WHERE id=$1
		RETURNING id, title, description, created_at, updated_at
	`, projectID, title, description).Scan(&item.ID, &item.Title, &item.Description, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Project{}, err
	}
	return item, nil
}

// DeleteProject removes the project; sections, topics, folders and files
// owned by it go with it through the ON DELETE CASCADE edges.
func (s *PostgresStore) DeleteProject(ctx context.Context, projectID int64) error {
	return s.deleteByID(ctx, `DELETE FROM projects WHERE id=$1`, projectID)
}

// Sections

func (s *PostgresStore) InsertSection(ctx context.Context, title string, projectID int64) (Section, error) {
	var item Section
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO sections (title, project_id)
		SELECT $1, p.id FROM projects p WHERE p.id=$2
		RETURNING id, title, project_id, created_at, updated_at
	`, title, projectID).Scan(&item.ID, &item.Title, &item.ProjectID, &item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Section{}, ErrParentNotFound
	}
	if err != nil {
		return Section{}, fmt.Errorf("insert section: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) GetSection(ctx context.Context, sectionID int64) (SectionDetail, error) {
	var item SectionDetail
	err := s.db.QueryRowContext(ctx, `
		SELECT s.id, s.title, s.project_id, s.created_at, s.updated_at, p.title
		FROM sections s
		JOIN projects p ON p.id = s.project_id
		WHERE s.id=$1
	`, sectionID).Scan(&item.ID, &item.Title, &item.ProjectID, &item.CreatedAt, &item.UpdatedAt, &item.ProjectTitle)
	if err != nil {
		return SectionDetail{}, err
	}

	if item.Topics, err = s.listTopics(ctx, `WHERE section_id=$1`, sectionID); err != nil {
		return SectionDetail{}, err
	}
	if item.Folders, err = s.listFolders(ctx, `WHERE section_id=$1`, sectionID); err != nil {
		return SectionDetail{}, err
	}
	if item.Files, err = s.listFiles(ctx, `WHERE section_id=$1`, sectionID); err != nil {
		return SectionDetail{}, err
	}
	return item, nil
}

func (s *PostgresStore) UpdateSection(ctx context.Context, sectionID int64, title *string) (Section, error) {
	var item Section
	err := s.db.QueryRowContext(ctx, `
		UPDATE sections
		SET title=COALESCE($2, title), updated_at=NOW()
		WHERE id=$1
		RETURNING id, title, project_id, created_at, updated_at
	`, sectionID, title).Scan(&item.ID, &item.Title, &item.ProjectID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Section{}, err
	}
	return item, nil
}

func (s *PostgresStore) DeleteSection(ctx context.Context, sectionID int64) error {
	return s.deleteByID(ctx, `DELETE FROM sections WHERE id=$1`, sectionID)
}

// Topics

func (s *PostgresStore) InsertTopic(ctx context.Context, title string, sectionID int64) (Topic, error) {
	var item Topic
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO topics (title, section_id)
		SELECT $1, s.id FROM sections s WHERE s.id=$2
		RETURNING id, title, section_id, created_at, updated_at
	`, title, sectionID).Scan(&item.ID, &item.Title, &item.SectionID, &item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Topic{}, ErrParentNotFound
	}
	if err != nil {
		return Topic{}, fmt.Errorf("insert topic: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) GetTopic(ctx context.Context, topicID int64) (TopicDetail, error) {
	var item TopicDetail
	err := s.db.QueryRowContext(ctx, `
		SELECT t.id, t.title, t.section_id, t.created_at, t.updated_at, s.title, p.id, p.title
		FROM topics t
		JOIN sections s ON s.id = t.section_id
		JOIN projects p ON p.id = s.project_id
		WHERE t.id=$1
	`, topicID).Scan(&item.ID, &item.Title, &item.SectionID, &item.CreatedAt, &item.UpdatedAt,
		&item.SectionTitle, &item.ProjectID, &item.ProjectTitle)
	if err != nil {
		return TopicDetail{}, err
	}

	if item.Folders, err = s.listFolders(ctx, `WHERE topic_id=$1`, topicID); err != nil {
		return TopicDetail{}, err
	}
	if item.Files, err = s.listFiles(ctx, `WHERE topic_id=$1`, topicID); err != nil {
		return TopicDetail{}, err
	}
	return item, nil
}

func (s *PostgresStore) UpdateTopic(ctx context.Context, topicID int64, title *string) (Topic, error) {
	var item Topic
	err := s.db.QueryRowContext(ctx, `
		UPDATE topics
		SET title=COALESCE($2, title), updated_at=NOW()
		WHERE id=$1
		RETURNING id, title, section_id, created_at, updated_at
	`, topicID, title).Scan(&item.ID, &item.Title, &item.SectionID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Topic{}, err
	}
	return item, nil
}

func (s *PostgresStore) DeleteTopic(ctx context.Context, topicID int64) error {
	return s.deleteByID(ctx, `DELETE FROM topics WHERE id=$1`, topicID)
}

// Folders

func (s *PostgresStore) InsertFolder(ctx context.Context, title string, placement Placement) (Folder, error) {
	if err := s.parentExists(ctx, placement); err != nil {
		return Folder{}, err
	}
	projectID, sectionID, topicID, _ := placementValues(placement)
	var item Folder
	var gotProject, gotSection, gotTopic sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO folders (title, project_id, section_id, topic_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, title, project_id, section_id, topic_id, created_at, updated_at
	`, title, projectID, sectionID, topicID).Scan(
		&item.ID, &item.Title, &gotProject, &gotSection, &gotTopic, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Folder{}, fmt.Errorf("insert folder: %w", err)
	}
	item.Placement = placementFromColumns(gotProject, gotSection, gotTopic, sql.NullInt64{})
	return item, nil
}

func (s *PostgresStore) GetFolder(ctx context.Context, folderID int64) (FolderDetail, error) {
	var item FolderDetail
	var gotProject, gotSection, gotTopic sql.NullInt64
	var anc ancestryColumns
	err := s.db.QueryRowContext(ctx, `
		SELECT fo.id, fo.title, fo.project_id, fo.section_id, fo.topic_id, fo.created_at, fo.updated_at,
		       t.id, t.title, s.id, s.title, p.id, p.title
		FROM folders fo
		LEFT JOIN topics t ON t.id = fo.topic_id
		LEFT JOIN sections s ON s.id = COALESCE(fo.section_id, t.section_id)
		LEFT JOIN projects p ON p.id = COALESCE(fo.project_id, s.project_id)
		WHERE fo.id=$1
	`, folderID).Scan(
		&item.ID, &item.Title, &gotProject, &gotSection, &gotTopic, &item.CreatedAt, &item.UpdatedAt,
		&anc.topicID, &anc.topicTitle, &anc.sectionID, &anc.sectionTitle, &anc.projectID, &anc.projectTitle)
	if err != nil {
		return FolderDetail{}, err
	}
	item.Placement = placementFromColumns(gotProject, gotSection, gotTopic, sql.NullInt64{})
	item.Ancestry = anc.resolve()

	if item.Files, err = s.listFiles(ctx, `WHERE folder_id=$1`, folderID); err != nil {
		return FolderDetail{}, err
	}
	return item, nil
}

func (s *PostgresStore) UpdateFolder(ctx context.Context, folderID int64, title *string) (Folder, error) {
	var item Folder
	var gotProject, gotSection, gotTopic sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		UPDATE folders
		SET title=COALESCE($2, title), updated_at=NOW()
		WHERE id=$1
		RETURNING id, title, project_id, section_id, topic_id, created_at, updated_at
	`, folderID, title).Scan(
		&item.ID, &item.Title, &gotProject, &gotSection, &gotTopic, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Folder{}, err
	}
	item.Placement = placementFromColumns(gotProject, gotSection, gotTopic, sql.NullInt64{})
	return item, nil
}

func (s *PostgresStore) DeleteFolder(ctx context.Context, folderID int64) error {
	return s.deleteByID(ctx, `DELETE FROM folders WHERE id=$1`, folderID)
}

// Files

func (s *PostgresStore) InsertFile(ctx context.Context, filename, content string, placement Placement) (File, error) {
	if err := s.parentExists(ctx, placement); err != nil {
		return File{}, err
	}
	projectID, sectionID, topicID, folderID := placementValues(placement)
	var item File
	var gotProject, gotSection, gotTopic, gotFolder sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO files (filename, content, project_id, section_id, topic_id, folder_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, filename, content, project_id, section_id, topic_id, folder_id, created_at, updated_at
	`, filename, content, projectID, sectionID, topicID, folderID).Scan(
		&item.ID, &item.Filename, &item.Content,
		&gotProject, &gotSection, &gotTopic, &gotFolder, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return File{}, fmt.Errorf("insert file: %w", err)
	}
	item.Placement = placementFromColumns(gotProject, gotSection, gotTopic, gotFolder)
	return item, nil
}

// GetFile resolves the ancestry chain from whichever direct parent the file
// holds: a topic reference walks topic -> section -> project, a section
// reference walks section -> project, a project reference stands alone.
// Folder-placed and unattached files resolve with no ancestry.
func (s *PostgresStore) GetFile(ctx context.Context, fileID int64) (FileDetail, error) {
	var item FileDetail
	var gotProject, gotSection, gotTopic, gotFolder sql.NullInt64
	var anc ancestryColumns
	err := s.db.QueryRowContext(ctx, `
		SELECT f.id, f.filename, f.content, f.project_id, f.section_id, f.topic_id, f.folder_id,
		       f.created_at, f.updated_at,
		       t.id, t.title, s.id, s.title, p.id, p.title
		FROM files f
		LEFT JOIN topics t ON t.id = f.topic_id
		LEFT JOIN sections s ON s.id = COALESCE(f.section_id, t.section_id)
		LEFT JOIN projects p ON p.id = COALESCE(f.project_id, s.project_id)
		WHERE f.id=$1
	`, fileID).Scan(
		&item.ID, &item.Filename, &item.Content,
		&gotProject, &gotSection, &gotTopic, &gotFolder, &item.CreatedAt, &item.UpdatedAt,
		&anc.topicID, &anc.topicTitle, &anc.sectionID, &anc.sectionTitle, &anc.projectID, &anc.projectTitle)
	if err != nil {
		return FileDetail{}, err
	}
	item.Placement = placementFromColumns(gotProject, gotSection, gotTopic, gotFolder)
	item.Ancestry = anc.resolve()
	return item, nil
}

func (s *PostgresStore) UpdateFile(ctx context.Context, fileID int64, filename, content *string) (File, error) {
	var item File
	var gotProject, gotSection, gotTopic, gotFolder sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		UPDATE files
		SET filename=COALESCE($2, filename), content=COALESCE($3, content), updated_at=NOW()
		WHERE id=$1
		RETURNING id, filename, content, project_id, section_id, topic_id, folder_id, created_at, updated_at
	`, fileID, filename, content).Scan(
		&item.ID, &item.Filename, &item.Content,
		&gotProject, &gotSection, &gotTopic, &gotFolder, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return File{}, err
	}
	item.Placement = placementFromColumns(gotProject, gotSection, gotTopic, gotFolder)
	return item, nil
}

func (s *PostgresStore) DeleteFile(ctx context.Context, fileID int64) error {
	return s.deleteByID(ctx, `DELETE FROM files WHERE id=$1`, fileID)
}

// Credentials

func (s *PostgresStore) GetCredentialHash(ctx context.Context) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT password_hash FROM credentials WHERE id=1`).Scan(&hash)
	if err != nil {
		return "", err
	}
	return hash, nil
}

func (s *PostgresStore) SetCredentialHash(ctx context.Context, hash string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (id, password_hash)
		VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET password_hash=EXCLUDED.password_hash, updated_at=NOW()
	`, hash)
	if err != nil {
		return fmt.Errorf("set credential hash: %w", err)
	}
	return nil
}

// Helpers

func (s *PostgresStore) deleteByID(ctx context.Context, query string, id int64) error {
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) parentExists(ctx context.Context, placement Placement) error {
	if placement.IsZero() {
		return nil
	}
	var query string
	switch placement.Kind {
	case PlacementProject:
		query = `SELECT EXISTS(SELECT 1 FROM projects WHERE id=$1)`
	case PlacementSection:
		query = `SELECT EXISTS(SELECT 1 FROM sections WHERE id=$1)`
	case PlacementTopic:
		query = `SELECT EXISTS(SELECT 1 FROM topics WHERE id=$1)`
	case PlacementFolder:
		query = `SELECT EXISTS(SELECT 1 FROM folders WHERE id=$1)`
	default:
		return fmt.Errorf("unknown placement kind %q", placement.Kind)
	}
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, placement.ID).Scan(&exists); err != nil {
		return fmt.Errorf("check parent: %w", err)
	}
	if !exists {
		return ErrParentNotFound
	}
	return nil
}

func (s *PostgresStore) listSections(ctx context.Context, where string, args ...any) ([]Section, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, project_id, created_at, updated_at
		FROM sections
	`+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	defer rows.Close()

	items := make([]Section, 0)
	for rows.Next() {
		var item Section
		if err := rows.Scan(&item.ID, &item.Title, &item.ProjectID, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sections: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) listTopics(ctx context.Context, where string, args ...any) ([]Topic, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, section_id, created_at, updated_at
		FROM topics
	`+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	defer rows.Close()

	items := make([]Topic, 0)
	for rows.Next() {
		var item Topic
		if err := rows.Scan(&item.ID, &item.Title, &item.SectionID, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate topics: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) listFolders(ctx context.Context, where string, args ...any) ([]Folder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, project_id, section_id, topic_id, created_at, updated_at
		FROM folders
	`+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	items := make([]Folder, 0)
	for rows.Next() {
		var item Folder
		var gotProject, gotSection, gotTopic sql.NullInt64
		if err := rows.Scan(&item.ID, &item.Title, &gotProject, &gotSection, &gotTopic, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		item.Placement = placementFromColumns(gotProject, gotSection, gotTopic, sql.NullInt64{})
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate folders: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) listFiles(ctx context.Context, where string, args ...any) ([]File, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filename, content, project_id, section_id, topic_id, folder_id, created_at, updated_at
		FROM files
	`+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	items := make([]File, 0)
	for rows.Next() {
		var item File
		var gotProject, gotSection, gotTopic, gotFolder sql.NullInt64
		if err := rows.Scan(&item.ID, &item.Filename, &item.Content,
			&gotProject, &gotSection, &gotTopic, &gotFolder, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		item.Placement = placementFromColumns(gotProject, gotSection, gotTopic, gotFolder)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}
	return items, nil
}

func placementValues(p Placement) (projectID, sectionID, topicID, folderID sql.NullInt64) {
	switch p.Kind {
	case PlacementProject:
		projectID = sql.NullInt64{Int64: p.ID, Valid: true}
	case PlacementSection:
		sectionID = sql.NullInt64{Int64: p.ID, Valid: true}
	case PlacementTopic:
		topicID = sql.NullInt64{Int64: p.ID, Valid: true}
	case PlacementFolder:
		folderID = sql.NullInt64{Int64: p.ID, Valid: true}
	}
	return projectID, sectionID, topicID, folderID
}

func placementFromColumns(projectID, sectionID, topicID, folderID sql.NullInt64) Placement {
	switch {
	case projectID.Valid:
		return PlaceInProject(projectID.Int64)
	case sectionID.Valid:
		return PlaceInSection(sectionID.Int64)
	case topicID.Valid:
		return PlaceInTopic(topicID.Int64)
	case folderID.Valid:
		return PlaceInFolder(folderID.Int64)
	}
	return Placement{}
}

type ancestryColumns struct {
	projectID    sql.NullInt64
	projectTitle sql.NullString
	sectionID    sql.NullInt64
	sectionTitle sql.NullString
	topicID      sql.NullInt64
	topicTitle   sql.NullString
}

func (c ancestryColumns) resolve() Ancestry {
	var anc Ancestry
	if c.projectID.Valid {
		anc.ProjectID = &c.projectID.Int64
		anc.ProjectTitle = &c.projectTitle.String
	}
	if c.sectionID.Valid {
		anc.SectionID = &c.sectionID.Int64
		anc.SectionTitle = &c.sectionTitle.String
	}
	if c.topicID.Valid {
		anc.TopicID = &c.topicID.Int64
		anc.TopicTitle = &c.topicTitle.String
	}
	return anc
}
