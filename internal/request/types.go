package request

// Argument bag keys. Lookups are case-insensitive.
const (
	KeyBotToken       = "tg_bot_token"
	KeyChatID         = "tg_chat_id"
	KeyTopicID        = "tg_topic_id"
	KeyText           = "tg_text"
	KeyMediaPath      = "tg_media_path"
	KeyMediaType      = "tg_media_type"
	KeyLayout         = "tg_layout"
	KeyStateKey       = "tg_state_key"
	KeyDeletePrevious = "tg_delete_prev"
	KeyDeleteAll      = "tg_delete_all"
	KeyDeleteFile     = "tg_delete_file"
	KeyNotification   = "tg_notification"

	buttonTextPrefix = "tg_btn_text"
	buttonURLPrefix  = "tg_btn_url"
)

// MediaKind is the resolved content kind of a send request.
// Auto and Unknown only ever appear as hints, never on a parsed request.
type MediaKind int

const (
	Unknown MediaKind = iota
	Auto
	Text
	Photo
	Video
	PhotoURL
	VideoURL
)

func (k MediaKind) String() string {
	switch k {
	case Auto:
		return "auto"
	case Text:
		return "text"
	case Photo:
		return "photo"
	case Video:
		return "video"
	case PhotoURL:
		return "photo_url"
	case VideoURL:
		return "video_url"
	default:
		return "unknown"
	}
}

// IsMedia reports whether the kind carries a photo or video.
func (k MediaKind) IsMedia() bool {
	switch k {
	case Photo, Video, PhotoURL, VideoURL:
		return true
	}
	return false
}

// IsRemote reports whether the media is fetched by Telegram from a URL.
func (k MediaKind) IsRemote() bool { return k == PhotoURL || k == VideoURL }

// Button is an inline keyboard button that opens a URL.
type Button struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// SendRequest is a validated send call.
type SendRequest struct {
	ChatID  int64
	TopicID int // forum topic (message thread); 0 if none

	// Text is already escaped for Telegram Markdown.
	Text      string
	MediaPath string
	Kind      MediaKind
	Buttons   [][]Button

	// StateKey names the slot this message occupies; empty means untracked.
	StateKey        string
	ReplacePrevious bool
	DeleteAll       bool
	DeleteFile      bool
	Notify          bool

	// Warning is a non-fatal note from resolution (e.g. media degraded to text).
	Warning string
}

// DeleteRequest is a validated delete call. Either StateKey is set or DeleteAll is true.
type DeleteRequest struct {
	ChatID    int64
	TopicID   int
	StateKey  string
	DeleteAll bool
	Notify    bool
}
