// Package discord implements the Execute Webhook call of the Discord API.
package discord

// ExecuteWebhook is the request of
// https://discord.com/developers/docs/resources/webhook#execute-webhook.
// Wait and ThreadID travel as query parameters; Files switch the request to
// multipart/form-data.
type ExecuteWebhook struct {
	Wait     *bool  `json:"-"`
	ThreadID string `json:"-"`
	Files    []File `json:"-"`

	Content         string           `json:"content"`
	Username        string           `json:"username,omitempty"`
	AvatarURL       string           `json:"avatar_url,omitempty"`
	TTS             bool             `json:"tts,omitempty"`
	ThreadName      string           `json:"thread_name,omitempty"`
	Embeds          []Embed          `json:"embeds,omitempty"`
	AllowedMentions *AllowedMentions `json:"allowed_mentions,omitempty"`
	Components      []ActionRow      `json:"components,omitempty"`
	Attachments     []Attachment     `json:"attachments,omitempty"`
}

// Limits documented by Discord.
const (
	MaxContentLength   = 2000
	MaxEmbedTitle      = 256
	MaxEmbedAuthorName = 256
)

type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"` // ISO-8601
	Color       int          `json:"color,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Author      *EmbedAuthor `json:"author,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Image       *EmbedMedia  `json:"image,omitempty"`
	Thumbnail   *EmbedMedia  `json:"thumbnail,omitempty"`
}

type EmbedAuthor struct {
	Name    string `json:"name"`
	URL     string `json:"url,omitempty"`
	IconURL string `json:"icon_url,omitempty"`
}

type EmbedFooter struct {
	Text    string `json:"text"`
	IconURL string `json:"icon_url,omitempty"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type EmbedMedia struct {
	URL string `json:"url"`
}

// AllowedMentions controls which mentions in Content ping anyone.
type AllowedMentions struct {
	Parse       []string `json:"parse"` // "roles", "users", "everyone"
	Roles       []string `json:"roles,omitempty"`
	Users       []string `json:"users,omitempty"`
	RepliedUser bool     `json:"replied_user,omitempty"`
}

// NoMentions suppresses every ping.
func NoMentions() *AllowedMentions {
	return &AllowedMentions{Parse: []string{}}
}

type ComponentType int

const (
	ComponentActionRow ComponentType = 1
	ComponentButton    ComponentType = 2
)

type ButtonStyle int

// Webhooks not owned by an application may only send link buttons.
const ButtonLink ButtonStyle = 5

type ActionRow struct {
	Type       ComponentType `json:"type"`
	Components []Button      `json:"components"`
}

type Button struct {
	Type  ComponentType `json:"type"`
	Style ButtonStyle   `json:"style"`
	Label string        `json:"label,omitempty"`
	URL   string        `json:"url,omitempty"`
}

// LinkRow builds an action row of link buttons.
func LinkRow(buttons ...Button) ActionRow {
	for i := range buttons {
		buttons[i].Type = ComponentButton
		buttons[i].Style = ButtonLink
	}
	return ActionRow{Type: ComponentActionRow, Components: buttons}
}

// File is an uploaded attachment.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Attachment describes an uploaded file inside payload_json.
type Attachment struct {
	ID          int    `json:"id"`
	Filename    string `json:"filename"`
	Description string `json:"description,omitempty"`
}
