package store

import "time"

// PlacementKind names the parent level a folder or file is attached to.
type PlacementKind string

const (
	PlacementNone    PlacementKind = ""
	PlacementProject PlacementKind = "project"
	PlacementSection PlacementKind = "section"
	PlacementTopic   PlacementKind = "topic"
	PlacementFolder  PlacementKind = "folder"
)

// Placement is the single optional parent reference of a folder or file.
// The zero value means unattached.
type Placement struct {
	Kind PlacementKind
	ID   int64
}

func PlaceInProject(id int64) Placement { return Placement{Kind: PlacementProject, ID: id} }
func PlaceInSection(id int64) Placement { return Placement{Kind: PlacementSection, ID: id} }
func PlaceInTopic(id int64) Placement   { return Placement{Kind: PlacementTopic, ID: id} }
func PlaceInFolder(id int64) Placement  { return Placement{Kind: PlacementFolder, ID: id} }

func (p Placement) IsZero() bool {
	return p.Kind == PlacementNone
}

type Project struct {
	ID          int64
	Title       string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Section struct {
	ID        int64
	Title     string
	ProjectID int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Topic struct {
	ID        int64
	Title     string
	SectionID int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Folder struct {
	ID        int64
	Title     string
	Placement Placement
	CreatedAt time.Time
	UpdatedAt time.Time
}

type File struct {
	ID        int64
	Filename  string
	Content   string
	Placement Placement
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Ancestry is the resolved project/section/topic chain for an entity,
// derived from whichever direct parent reference it holds. Unset levels
// stay nil.
type Ancestry struct {
	ProjectID    *int64
	ProjectTitle *string
	SectionID    *int64
	SectionTitle *string
	TopicID      *int64
	TopicTitle   *string
}

// ProjectDetail is a project with its direct children, one level deep.
type ProjectDetail struct {
	Project
	Sections []Section
	Folders  []Folder
	Files    []File
}

// SectionDetail is a section with its direct children and ancestor project.
type SectionDetail struct {
	Section
	Topics       []Topic
	Folders      []Folder
	Files        []File
	ProjectTitle string
}

// TopicDetail is a topic with its direct children and resolved ancestors.
type TopicDetail struct {
	Topic
	Folders      []Folder
	Files        []File
	SectionTitle string
	ProjectID    int64
	ProjectTitle string
}

// FolderDetail is a folder with its direct files and resolved ancestry.
type FolderDetail struct {
	Folder
	Files    []File
	Ancestry Ancestry
}

// FileDetail is a file with its resolved ancestry.
type FileDetail struct {
	File
	Ancestry Ancestry
}
