package threadly

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"cloud.google.com/go/compute/metadata"
	"cloud.google.com/go/firestore"
	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/santa-vitkovska/threadly/auth"
	"github.com/santa-vitkovska/threadly/chat"
	"github.com/santa-vitkovska/threadly/contract"
	"github.com/santa-vitkovska/threadly/log"
	"github.com/santa-vitkovska/threadly/message"
	"github.com/santa-vitkovska/threadly/summarize"
)

const (
	ErrorMsgLogField = "errorMsg"
	bodyLogField     = "body"
	userIDLogField   = "userID"
	roomIDLogField   = "roomID"
)

func init() {
	functions.HTTP("CreateRoom", CreateRoom)
	functions.HTTP("SendMessage", SendMessage)
	functions.HTTP("Summarize", Summarize)
}

func newFirestoreClient(ctx context.Context) (*firestore.Client, error) {
	projectID, err := metadata.ProjectIDWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return firestore.NewClient(ctx, projectID)
}

// authenticate runs the shared preamble of every function: method check,
// token verification, request decoding. It returns a nil identity after
// having written the error response itself.
func authenticate(w http.ResponseWriter, r *http.Request, body any) (*auth.Identity, *slog.Logger) {
	ctx := r.Context()
	logger := log.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.Error("invalid method: " + r.Method)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return nil, nil
	}

	identity, err := auth.Authenticate(r)
	if err != nil {
		logger.Error("error while authenticating", slog.String(ErrorMsgLogField, err.Error()))
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return nil, nil
	}
	logger = logger.With(slog.String(userIDLogField, identity.UID))

	data, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Error("error while reading request body", slog.String(ErrorMsgLogField, err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil, nil
	}
	logger.Info("incoming request", slog.String(bodyLogField, string(data)))

	if err := json.Unmarshal(data, body); err != nil {
		logger.Error("error while decoding request", slog.String(ErrorMsgLogField, err.Error()))
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return nil, nil
	}
	return identity, logger
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, body any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("error while encoding response", slog.String(ErrorMsgLogField, err.Error()))
	}
}

// CreateRoom creates or returns the room for a member set. The caller is
// always part of the set, their uid is added if the request omitted it.
func CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req contract.CreateRoomRequest
	identity, logger := authenticate(w, r, &req)
	if identity == nil {
		return
	}
	ctx := log.WithLogger(r.Context(), logger)

	fs, err := newFirestoreClient(ctx)
	if err != nil {
		logger.Error("error while creating firestore client", slog.String(ErrorMsgLogField, err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	defer fs.Close()

	members := append(req.Members, identity.UID)
	roomID, err := chat.NewStore(fs).CreateOrGetRoom(ctx, members)
	if err != nil {
		if errors.Is(err, chat.ErrNotEnoughMembers) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Error("error while creating room", slog.String(ErrorMsgLogField, err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, logger, contract.CreateRoomResponse{RoomID: roomID})
}

// SendMessage delivers a message to a room the caller is a member of.
func SendMessage(w http.ResponseWriter, r *http.Request) {
	var req contract.SendMessageRequest
	identity, logger := authenticate(w, r, &req)
	if identity == nil {
		return
	}
	logger = logger.With(slog.String(roomIDLogField, req.RoomID))
	ctx := log.WithLogger(r.Context(), logger)

	fs, err := newFirestoreClient(ctx)
	if err != nil {
		logger.Error("error while creating firestore client", slog.String(ErrorMsgLogField, err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	defer fs.Close()

	if !requireMembership(ctx, w, fs, req.RoomID, identity.UID, logger) {
		return
	}

	msg := message.Message{
		Text:     req.Text,
		SenderID: identity.UID,
		Type:     message.Type(req.Type),
	}
	for _, a := range req.Attachments {
		msg.Attachments = append(msg.Attachments, message.Attachment{
			URL:      a.URL,
			Path:     a.Path,
			MimeType: a.MimeType,
			Name:     a.Name,
			Size:     a.Size,
		})
	}

	messageID, err := message.NewStore(fs).Send(ctx, req.RoomID, msg)
	if err != nil {
		if errors.Is(err, message.ErrEmptyMessage) || errors.Is(err, message.ErrMissingSender) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Error("error while sending message", slog.String(ErrorMsgLogField, err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, logger, contract.SendMessageResponse{MessageID: messageID})
}

// Summarize runs the /summarize command over a room's recent history.
func Summarize(w http.ResponseWriter, r *http.Request) {
	var req contract.SummarizeRequest
	identity, logger := authenticate(w, r, &req)
	if identity == nil {
		return
	}
	logger = logger.With(slog.String(roomIDLogField, req.RoomID))
	ctx := log.WithLogger(r.Context(), logger)

	fs, err := newFirestoreClient(ctx)
	if err != nil {
		logger.Error("error while creating firestore client", slog.String(ErrorMsgLogField, err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	defer fs.Close()

	if !requireMembership(ctx, w, fs, req.RoomID, identity.UID, logger) {
		return
	}

	msgs, err := message.NewStore(fs).History(ctx, req.RoomID, summarize.Window)
	if err != nil {
		logger.Error("error while loading history", slog.String(ErrorMsgLogField, err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	summarizer, err := summarize.New()
	if err != nil {
		logger.Error("error while creating summarizer", slog.String(ErrorMsgLogField, err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	summary, err := summarizer.Summarize(ctx, msgs)
	if err != nil {
		logger.Error("error while summarizing", slog.String(ErrorMsgLogField, err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, logger, contract.SummarizeResponse{
		Summary:     summary,
		SummaryHTML: summarize.RenderHTML(summary),
	})
}

// requireMembership verifies the caller belongs to the room, writing the
// error response when not.
func requireMembership(ctx context.Context, w http.ResponseWriter, fs *firestore.Client, roomID, uid string, logger *slog.Logger) bool {
	room, err := chat.NewStore(fs).Room(ctx, roomID)
	if err != nil {
		logger.Error("error while fetching room", slog.String(ErrorMsgLogField, err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return false
	}
	if room == nil {
		http.Error(w, "Not Found", http.StatusNotFound)
		return false
	}
	for _, member := range room.Members {
		if member == uid {
			return true
		}
	}
	logger.Error("caller is not a room member")
	http.Error(w, "Forbidden", http.StatusForbidden)
	return false
}
