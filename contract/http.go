package contract

type CreateRoomRequest struct {
	Members []string `json:"members"`
}

type CreateRoomResponse struct {
	RoomID string `json:"room_id"`
}

type AttachmentPayload struct {
	URL      string `json:"url"`
	Path     string `json:"path"`
	MimeType string `json:"mime_type"`
	Name     string `json:"name"`
	Size     int64  `json:"size,omitempty"`
}

type SendMessageRequest struct {
	RoomID      string              `json:"room_id"`
	Text        string              `json:"text"`
	Type        string              `json:"type,omitempty"`
	Attachments []AttachmentPayload `json:"attachments,omitempty"`
}

type SendMessageResponse struct {
	MessageID string `json:"message_id"`
}

type SummarizeRequest struct {
	RoomID string `json:"room_id"`
}

type SummarizeResponse struct {
	Summary     string `json:"summary"`
	SummaryHTML string `json:"summary_html"`
}
