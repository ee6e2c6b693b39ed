package app

import (
	"time"

	"projectmate/api/internal/store"
)

// Response shapes. Placement references serialize as nullable ids so the
// client can tell "attached at project level" from "unattached".

type projectPayload struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type projectDetailPayload struct {
	projectPayload
	Sections []sectionPayload `json:"sections"`
	Folders  []folderPayload  `json:"folders"`
	Files    []filePayload    `json:"files"`
}

type sectionPayload struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	ProjectID int64     `json:"projectId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type sectionDetailPayload struct {
	sectionPayload
	ProjectTitle string          `json:"projectTitle"`
	Topics       []topicPayload  `json:"topics"`
	Folders      []folderPayload `json:"folders"`
	Files        []filePayload   `json:"files"`
}

type topicPayload struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	SectionID int64     `json:"sectionId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type topicDetailPayload struct {
	topicPayload
	SectionTitle string          `json:"sectionTitle"`
	ProjectID    int64           `json:"projectId"`
	ProjectTitle string          `json:"projectTitle"`
	Folders      []folderPayload `json:"folders"`
	Files        []filePayload   `json:"files"`
}

type folderPayload struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	ProjectID *int64    `json:"projectId"`
	SectionID *int64    `json:"sectionId"`
	TopicID   *int64    `json:"topicId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// folderDetailPayload carries the resolved ancestry chain in place of the
// raw placement column, mirroring the file detail shape.
type folderDetailPayload struct {
	ID           int64         `json:"id"`
	Title        string        `json:"title"`
	ProjectID    *int64        `json:"projectId"`
	ProjectTitle *string       `json:"projectTitle"`
	SectionID    *int64        `json:"sectionId"`
	SectionTitle *string       `json:"sectionTitle"`
	TopicID      *int64        `json:"topicId"`
	TopicTitle   *string       `json:"topicTitle"`
	Files        []filePayload `json:"files"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

type filePayload struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	Content   string    `json:"content"`
	ProjectID *int64    `json:"projectId"`
	SectionID *int64    `json:"sectionId"`
	TopicID   *int64    `json:"topicId"`
	FolderID  *int64    `json:"folderId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type fileDetailPayload struct {
	ID           int64     `json:"id"`
	Filename     string    `json:"filename"`
	Content      string    `json:"content"`
	FolderID     *int64    `json:"folderId"`
	ProjectID    *int64    `json:"projectId"`
	ProjectTitle *string   `json:"projectTitle"`
	SectionID    *int64    `json:"sectionId"`
	SectionTitle *string   `json:"sectionTitle"`
	TopicID      *int64    `json:"topicId"`
	TopicTitle   *string   `json:"topicTitle"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func projectFromStore(item store.Project) projectPayload {
	return projectPayload{
		ID:          item.ID,
		Title:       item.Title,
		Description: item.Description,
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}
}

func projectDetailFromStore(item store.ProjectDetail) projectDetailPayload {
	detail := projectDetailPayload{
		projectPayload: projectFromStore(item.Project),
		Sections:       make([]sectionPayload, 0, len(item.Sections)),
		Folders:        make([]folderPayload, 0, len(item.Folders)),
		Files:          make([]filePayload, 0, len(item.Files)),
	}
	for _, section := range item.Sections {
		detail.Sections = append(detail.Sections, sectionFromStore(section))
	}
	for _, folder := range item.Folders {
		detail.Folders = append(detail.Folders, folderFromStore(folder))
	}
	for _, file := range item.Files {
		detail.Files = append(detail.Files, fileFromStore(file))
	}
	return detail
}

func sectionFromStore(item store.Section) sectionPayload {
	return sectionPayload{
		ID:        item.ID,
		Title:     item.Title,
		ProjectID: item.ProjectID,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}
}

func sectionDetailFromStore(item store.SectionDetail) sectionDetailPayload {
	detail := sectionDetailPayload{
		sectionPayload: sectionFromStore(item.Section),
		ProjectTitle:   item.ProjectTitle,
		Topics:         make([]topicPayload, 0, len(item.Topics)),
		Folders:        make([]folderPayload, 0, len(item.Folders)),
		Files:          make([]filePayload, 0, len(item.Files)),
	}
	for _, topic := range item.Topics {
		detail.Topics = append(detail.Topics, topicFromStore(topic))
	}
	for _, folder := range item.Folders {
		detail.Folders = append(detail.Folders, folderFromStore(folder))
	}
	for _, file := range item.Files {
		detail.Files = append(detail.Files, fileFromStore(file))
	}
	return detail
}

func topicFromStore(item store.Topic) topicPayload {
	return topicPayload{
		ID:        item.ID,
		Title:     item.Title,
		SectionID: item.SectionID,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}
}

func topicDetailFromStore(item store.TopicDetail) topicDetailPayload {
	detail := topicDetailPayload{
		topicPayload: topicFromStore(item.Topic),
		SectionTitle: item.SectionTitle,
		ProjectID:    item.ProjectID,
		ProjectTitle: item.ProjectTitle,
		Folders:      make([]folderPayload, 0, len(item.Folders)),
		Files:        make([]filePayload, 0, len(item.Files)),
	}
	for _, folder := range item.Folders {
		detail.Folders = append(detail.Folders, folderFromStore(folder))
	}
	for _, file := range item.Files {
		detail.Files = append(detail.Files, fileFromStore(file))
	}
	return detail
}

func folderFromStore(item store.Folder) folderPayload {
	projectID, sectionID, topicID, _ := placementRefs(item.Placement)
	return folderPayload{
		ID:        item.ID,
		Title:     item.Title,
		ProjectID: projectID,
		SectionID: sectionID,
		TopicID:   topicID,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}
}

func folderDetailFromStore(item store.FolderDetail) folderDetailPayload {
	detail := folderDetailPayload{
		ID:           item.ID,
		Title:        item.Title,
		ProjectID:    item.Ancestry.ProjectID,
		ProjectTitle: item.Ancestry.ProjectTitle,
		SectionID:    item.Ancestry.SectionID,
		SectionTitle: item.Ancestry.SectionTitle,
		TopicID:      item.Ancestry.TopicID,
		TopicTitle:   item.Ancestry.TopicTitle,
		Files:        make([]filePayload, 0, len(item.Files)),
		CreatedAt:    item.CreatedAt,
		UpdatedAt:    item.UpdatedAt,
	}
	for _, file := range item.Files {
		detail.Files = append(detail.Files, fileFromStore(file))
	}
	return detail
}

func fileFromStore(item store.File) filePayload {
	projectID, sectionID, topicID, folderID := placementRefs(item.Placement)
	return filePayload{
		ID:        item.ID,
		Filename:  item.Filename,
		Content:   item.Content,
		ProjectID: projectID,
		SectionID: sectionID,
		TopicID:   topicID,
		FolderID:  folderID,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}
}

func fileDetailFromStore(item store.FileDetail) fileDetailPayload {
	_, _, _, folderID := placementRefs(item.Placement)
	return fileDetailPayload{
		ID:           item.ID,
		Filename:     item.Filename,
		Content:      item.Content,
		FolderID:     folderID,
		ProjectID:    item.Ancestry.ProjectID,
		ProjectTitle: item.Ancestry.ProjectTitle,
		SectionID:    item.Ancestry.SectionID,
		SectionTitle: item.Ancestry.SectionTitle,
		TopicID:      item.Ancestry.TopicID,
		TopicTitle:   item.Ancestry.TopicTitle,
		CreatedAt:    item.CreatedAt,
		UpdatedAt:    item.UpdatedAt,
	}
}

func placementRefs(p store.Placement) (projectID, sectionID, topicID, folderID *int64) {
	id := p.ID
	switch p.Kind {
	case store.PlacementProject:
		projectID = &id
	case store.PlacementSection:
		sectionID = &id
	case store.PlacementTopic:
		topicID = &id
	case store.PlacementFolder:
		folderID = &id
	}
	return projectID, sectionID, topicID, folderID
}
