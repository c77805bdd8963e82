package models

type CompletionStatus string

const (
	StatusNotStarted CompletionStatus = "not_started"
	StatusInProgress CompletionStatus = "in_progress"
	StatusCompleted  CompletionStatus = "completed"
	StatusAbandoned  CompletionStatus = "abandoned"
)

var CompletionStatuses = []CompletionStatus{
	StatusNotStarted, StatusInProgress, StatusCompleted, StatusAbandoned,
}

func (s CompletionStatus) Valid() bool {
	for _, v := range CompletionStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// GalleryMetadata holds per-game collection state. A game without a row is
// treated as not started, not a favorite and unrated.
type GalleryMetadata struct {
	ID               int64            `json:"-" gorm:"primaryKey"`
	GameID           int64            `json:"game_id"`
	TrailerURL       string           `json:"trailer_url"`
	GameFAQsURL      string           `json:"gamefaqs_url" gorm:"column:gamefaqs_url"`
	PowerPyxURL      string           `json:"powerpyx_url" gorm:"column:powerpyx_url"`
	MetacriticURL    string           `json:"metacritic_url"`
	SteamURL         string           `json:"steam_url"`
	PSNURL           string           `json:"psn_url" gorm:"column:psn_url"`
	XboxURL          string           `json:"xbox_url"`
	NintendoURL      string           `json:"nintendo_url"`
	DisplayPriority  int              `json:"display_priority"`
	GalleryEnabled   bool             `json:"gallery_enabled"`
	CompletionStatus CompletionStatus `json:"completion_status"`
	PersonalRating   *int             `json:"personal_rating"`
	PlayTimeHours    *float64         `json:"play_time_hours"`
	DateAcquired     *string          `json:"date_acquired"`
	DateStarted      *string          `json:"date_started"`
	DateCompleted    *string          `json:"date_completed"`
	Notes            string           `json:"notes"`
	Favorite         bool             `json:"favorite"`
	CreatedAt        string           `json:"created_at,omitempty"`
	UpdatedAt        string           `json:"updated_at,omitempty"`
}

func (GalleryMetadata) TableName() string {
	return "game_gallery_metadata"
}

func DefaultMetadata(gameID int64) GalleryMetadata {
	return GalleryMetadata{
		GameID:           gameID,
		GalleryEnabled:   true,
		CompletionStatus: StatusNotStarted,
	}
}

type Tag struct {
	ID           int64  `json:"id" gorm:"primaryKey"`
	Name         string `json:"name" gorm:"column:tag_name"`
	Color        string `json:"color" gorm:"column:tag_color"`
	Description  string `json:"description" gorm:"column:tag_description"`
	DisplayOrder int    `json:"display_order"`
	CreatedAt    string `json:"created_at,omitempty"`
}

func (Tag) TableName() string {
	return "game_tags"
}

type GameTag struct {
	ID        int64 `gorm:"primaryKey"`
	GameID    int64
	TagID     int64
	CreatedAt string
}

func (GameTag) TableName() string {
	return "game_tag_associations"
}

// GalleryGame is a game as shown on a gallery card.
type GalleryGame struct {
	Game
	Metadata GalleryMetadata `json:"gallery_metadata"`
	Tags     []Tag           `json:"tags"`
}

type GalleryFilter struct {
	Platform   string
	Completion string
	Favorite   *bool
	Genre      string
	Region     string
	Search     string
	Sort       string
	Page       int
	Limit      int
}

type Pagination struct {
	CurrentPage int   `json:"current_page"`
	TotalPages  int   `json:"total_pages"`
	TotalCount  int64 `json:"total_count"`
	PerPage     int   `json:"per_page"`
	HasNext     bool  `json:"has_next"`
	HasPrev     bool  `json:"has_prev"`
}

func NewPagination(page, limit int, total int64) Pagination {
	pages := int((total + int64(limit) - 1) / int64(limit))
	return Pagination{
		CurrentPage: page,
		TotalPages:  pages,
		TotalCount:  total,
		PerPage:     limit,
		HasNext:     page < pages,
		HasPrev:     page > 1,
	}
}

// MetadataPatch is a partial update; nil fields are left untouched.
type MetadataPatch struct {
	Favorite         *bool             `json:"favorite"`
	CompletionStatus *CompletionStatus `json:"completion_status"`
	PersonalRating   *int              `json:"personal_rating"`
	PlayTimeHours    *float64          `json:"play_time_hours"`
	DateAcquired     *string           `json:"date_acquired"`
	DateStarted      *string           `json:"date_started"`
	DateCompleted    *string           `json:"date_completed"`
	Notes            *string           `json:"notes"`
	DisplayPriority  *int              `json:"display_priority"`
	GalleryEnabled   *bool             `json:"gallery_enabled"`
	TrailerURL       *string           `json:"trailer_url"`
	GameFAQsURL      *string           `json:"gamefaqs_url"`
	PowerPyxURL      *string           `json:"powerpyx_url"`
	MetacriticURL    *string           `json:"metacritic_url"`
	SteamURL         *string           `json:"steam_url"`
	PSNURL           *string           `json:"psn_url"`
	XboxURL          *string           `json:"xbox_url"`
	NintendoURL      *string           `json:"nintendo_url"`
}

type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

var SortOptions = []Option{
	{Value: "title_asc", Label: "Title (A-Z)"},
	{Value: "title_desc", Label: "Title (Z-A)"},
	{Value: "date_desc", Label: "Release Date (Newest)"},
	{Value: "date_asc", Label: "Release Date (Oldest)"},
	{Value: "rating_desc", Label: "Personal Rating (High)"},
	{Value: "rating_asc", Label: "Personal Rating (Low)"},
	{Value: "price_desc", Label: "Price (High)"},
	{Value: "price_asc", Label: "Price (Low)"},
	{Value: "priority_desc", Label: "Display Priority"},
}

var CompletionOptions = []Option{
	{Value: string(StatusNotStarted), Label: "Not Started"},
	{Value: string(StatusInProgress), Label: "In Progress"},
	{Value: string(StatusCompleted), Label: "Completed"},
	{Value: string(StatusAbandoned), Label: "Abandoned"},
}

type GalleryFilters struct {
	Platforms          []string `json:"platforms"`
	Genres             []string `json:"genres"`
	Regions            []string `json:"regions"`
	CompletionStatuses []Option `json:"completion_statuses"`
	SortOptions        []Option `json:"sort_options"`
}
