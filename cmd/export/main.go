// export archives rooms and messages from Firestore into Postgres for
// analytics. With an OpenAI key configured it also embeds message text so
// the archive supports semantic search.
//
//	DATABASE_URL=postgres://... go run cmd/export/main.go -project <id> [-room <roomID>]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"

	"cloud.google.com/go/compute/metadata"
	"cloud.google.com/go/firestore"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/api/iterator"

	"github.com/santa-vitkovska/threadly/chat"
	"github.com/santa-vitkovska/threadly/contract"
	"github.com/santa-vitkovska/threadly/log"
	"github.com/santa-vitkovska/threadly/message"
)

const dbDriver = "postgres"

var schema = `
CREATE TABLE IF NOT EXISTS chat_room (
	room_id TEXT PRIMARY KEY,
	members TEXT[] NOT NULL,
	last_message TEXT,
	last_message_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS chat_message (
	room_id TEXT NOT NULL,
	message_id TEXT NOT NULL,
	sender_id TEXT NOT NULL,
	type TEXT NOT NULL,
	text TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	raw_json JSONB NOT NULL,
	embedding DOUBLE PRECISION[],
	PRIMARY KEY (room_id, message_id)
);`

func main() {
	projectPtr := flag.String("project", "", "GCP project id (discovered on GCE when empty)")
	roomPtr := flag.String("room", "", "export a single room instead of all rooms")
	windowPtr := flag.Int("window", 500, "messages exported per room, newest first")
	flag.Parse()

	ctx := context.Background()
	logger, closeLogger, err := log.StandardLogger(ctx, "export")
	if err != nil {
		panic(err)
	}
	defer closeLogger()

	projectID := *projectPtr
	if projectID == "" {
		projectID, err = metadata.ProjectIDWithContext(ctx)
		if err != nil {
			logger.Fatalf("no -project flag and no metadata server: %v", err)
		}
	}

	fs, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		logger.Fatalf("failed to create firestore client: %v", err)
	}
	defer fs.Close()

	db, err := sqlx.Connect(dbDriver, os.Getenv("DATABASE_URL"))
	if err != nil {
		logger.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close()
	db.MustExec(schema)

	var embedder *openai.Client
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		embedder = openai.NewClient(key)
	} else {
		logger.Printf("OPENAI_API_KEY not set, skipping embeddings")
	}

	rooms, err := loadRooms(ctx, fs, *roomPtr)
	if err != nil {
		logger.Fatalf("failed to load rooms: %v", err)
	}

	msgStore := message.NewStore(fs)
	exported := 0
	for _, room := range rooms {
		if err := upsertRoom(db, room); err != nil {
			logger.Fatalf("failed to upsert room %s: %v", room.ID, err)
		}

		msgs, err := msgStore.History(ctx, room.ID, *windowPtr)
		if err != nil {
			logger.Fatalf("failed to load messages of room %s: %v", room.ID, err)
		}
		for _, msg := range msgs {
			embedding, err := embed(ctx, embedder, msg.Text)
			if err != nil {
				logger.Printf("embedding failed for %s/%s: %v", room.ID, msg.ID, err)
			}
			if err := upsertMessage(db, room.ID, msg, embedding); err != nil {
				logger.Fatalf("failed to upsert message %s/%s: %v", room.ID, msg.ID, err)
			}
			exported++
		}
		logger.Printf("room %s: %d messages", room.ID, len(msgs))
	}
	logger.Printf("export finished: %d rooms, %d messages", len(rooms), exported)
}

func loadRooms(ctx context.Context, fs *firestore.Client, onlyRoom string) ([]chat.Room, error) {
	store := chat.NewStore(fs)
	if onlyRoom != "" {
		room, err := store.Room(ctx, onlyRoom)
		if err != nil {
			return nil, err
		}
		if room == nil {
			return nil, nil
		}
		return []chat.Room{*room}, nil
	}

	iter := fs.Collection(contract.RoomsCollection).Documents(ctx)
	defer iter.Stop()

	var rooms []chat.Room
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		var doc contract.FirestoreRoom
		if err := snap.DataTo(&doc); err != nil {
			return nil, err
		}
		rooms = append(rooms, chat.Room{
			ID:            snap.Ref.ID,
			Members:       doc.Members,
			LastMessage:   doc.LastMessage,
			LastMessageAt: doc.LastMessageAt,
			CreatedAt:     doc.CreatedAt,
		})
	}
	return rooms, nil
}

func upsertRoom(db *sqlx.DB, room chat.Room) error {
	_, err := db.Exec(`
		INSERT INTO chat_room (room_id, members, last_message, last_message_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (room_id) DO UPDATE
		SET members = EXCLUDED.members,
		    last_message = EXCLUDED.last_message,
		    last_message_at = EXCLUDED.last_message_at`,
		room.ID, pq.Array(room.Members), room.LastMessage, nullableTime(room), room.CreatedAt,
	)
	return err
}

func upsertMessage(db *sqlx.DB, roomID string, msg message.Message, embedding []float64) error {
	rawJSON, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = db.Exec(`
		INSERT INTO chat_message (room_id, message_id, sender_id, type, text, created_at, raw_json, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (room_id, message_id) DO UPDATE
		SET raw_json = EXCLUDED.raw_json,
		    embedding = COALESCE(EXCLUDED.embedding, chat_message.embedding)`,
		roomID, msg.ID, msg.SenderID, string(msg.Type), msg.Text, msg.CreatedAt,
		rawJSON, embeddingArray(embedding),
	)
	return err
}

func embed(ctx context.Context, client *openai.Client, text string) ([]float64, error) {
	if client == nil || text == "" {
		return nil, nil
	}
	res, err := client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: text,
		Model: openai.AdaEmbeddingV2,
	})
	if err != nil {
		return nil, err
	}
	if len(res.Data) == 0 {
		return nil, nil
	}
	embedding := make([]float64, len(res.Data[0].Embedding))
	for i, v := range res.Data[0].Embedding {
		embedding[i] = float64(v)
	}
	return embedding, nil
}

func embeddingArray(embedding []float64) interface{} {
	if embedding == nil {
		return nil
	}
	return pq.Array(embedding)
}

func nullableTime(room chat.Room) interface{} {
	if room.LastMessageAt.IsZero() {
		return nil
	}
	return room.LastMessageAt
}
