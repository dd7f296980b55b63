package contract

import "time"

// Firestore document shapes. Field names are part of the wire contract shared
// with the web client and the security rules, do not rename them.

const (
	UsersCollection    = "users"
	RoomsCollection    = "chats"
	MessagesCollection = "messages"
	TypingCollection   = "typing"
)

type FirestoreUser struct {
	DisplayName string    `firestore:"displayName"`
	Avatar      string    `firestore:"avatar,omitempty"`
	Status      string    `firestore:"status,omitempty"`
	LastSeen    time.Time `firestore:"lastSeen,omitempty"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

type FirestoreRoom struct {
	Members       []string  `firestore:"members"`
	LastMessage   string    `firestore:"lastMessage,omitempty"`
	LastMessageAt time.Time `firestore:"lastMessageAt,omitempty"`
	CreatedAt     time.Time `firestore:"createdAt"`
}

type FirestoreMessage struct {
	Text        string                `firestore:"text"`
	SenderID    string                `firestore:"senderId"`
	Type        string                `firestore:"type"`
	Attachments []FirestoreAttachment `firestore:"attachments,omitempty"`
	ReadBy      map[string]time.Time  `firestore:"readBy"`
	CreatedAt   time.Time             `firestore:"createdAt"`
}

type FirestoreAttachment struct {
	URL      string `firestore:"url"`
	Path     string `firestore:"path"`
	MimeType string `firestore:"mimeType"`
	Name     string `firestore:"name"`
	Size     int64  `firestore:"size,omitempty"`
}

// FirestoreTypingFlag is ephemeral, existence of the document means the user
// is composing. At lets readers drop flags from clients that vanished.
type FirestoreTypingFlag struct {
	At time.Time `firestore:"at"`
}
