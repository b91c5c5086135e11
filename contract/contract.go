//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Record is one row of a named collection. Values are strings, numbers or booleans.
type Record map[string]any

// Filter is an equality predicate on one field.
// Values are compared in their textual form, so true matches "true" and 2 matches "2".
type Filter struct {
	Field string
	Value string
}

func Eq(field, value string) Filter {
	return Filter{Field: field, Value: value}
}

// Gateway is the durable store for profiles, friendships, conversations,
// membership and messages. Every method may fail with a data access error.
type Gateway interface {
	// Query returns every record of the collection matching all filters.
	Query(ctx context.Context, collection string, filters ...Filter) ([]Record, error)
	// Insert stores the record and returns it with "id" and "created_at" filled in
	// when the caller left them empty.
	Insert(ctx context.Context, collection string, record Record) (Record, error)
	// Update merges the partial record into the record with the given id.
	Update(ctx context.Context, collection, id string, patch Record) error
}

type FrameKind int

const (
	FrameText FrameKind = iota
	FrameBinary
	FrameClose
)

// Frame is one message read from a client connection.
type Frame struct {
	Kind FrameKind
	Data []byte
}

// Stream is a bidirectional message stream accepted from one client.
// Read and Write may be called from two different goroutines.
// Close unblocks a pending Read and may be called more than once.
type Stream interface {
	Read(ctx context.Context) (Frame, error)
	Write(ctx context.Context, text []byte) error
	Close() error
}

// IMembershipAuthority decides whether a user may join or observe a conversation.
type IMembershipAuthority interface {
	IsMember(ctx context.Context, conversationID domain.ConversationID, userID domain.UserID) bool
	Verify(ctx context.Context, conversationID domain.ConversationID, userID domain.UserID) error
}

// IMessageStore records posted messages.
type IMessageStore interface {
	StoreMessage(ctx context.Context, message domain.Message) error
}
