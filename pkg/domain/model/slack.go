package model

// SlackAction posts a message to a Slack incoming webhook
type SlackAction struct {
	WebhookURL string `yaml:"webhook_url"`
	Message    string `yaml:"message"`           // text/template over RunEvent fields
	Color      string `yaml:"color,omitempty"`   // good, warning, danger, or #hex
	IconEmoji  string `yaml:"icon_emoji,omitempty"`
	UserName   string `yaml:"username,omitempty"`
}

// SlackPayload represents the JSON payload for Slack webhook
type SlackPayload struct {
	Text        string       `json:"text"`
	UserName    string       `json:"username,omitempty"`
	IconEmoji   string       `json:"icon_emoji,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

type Attachment struct {
	Color     string  `json:"color,omitempty"`
	Title     string  `json:"title,omitempty"`
	TitleLink string  `json:"title_link,omitempty"`
	Text      string  `json:"text,omitempty"`
	Footer    string  `json:"footer,omitempty"`
	Timestamp int64   `json:"ts,omitempty"`
	Fields    []Field `json:"fields,omitempty"`
}

type Field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}
