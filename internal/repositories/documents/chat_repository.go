package documents

import (
	"context"
	"fmt"
	"time"

	"carhire/internal/models"
	"carhire/internal/repositories/interfaces"
	"carhire/pkg/docstore"
)

type chatRepository struct {
	store docstore.Store
}

func NewChatRepository(store docstore.Store) interfaces.ChatRepository {
	return &chatRepository{store: store}
}

func (r *chatRepository) GetThread(ctx context.Context, id string) (*models.ChatThread, error) {
	snap, err := r.store.Get(ctx, CollectionChats, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat thread: %w", storeError(err))
	}
	return DecodeThread(snap), nil
}

func (r *chatRepository) CreateThread(ctx context.Context, thread *models.ChatThread) error {
	if err := r.store.Set(ctx, CollectionChats, thread.ID, EncodeThread(thread)); err != nil {
		return fmt.Errorf("failed to create chat thread: %w", err)
	}
	return nil
}

func (r *chatRepository) GetMessages(ctx context.Context, threadID string) ([]*models.Message, error) {
	snaps, err := r.store.Query(ctx, docstore.Collection(MessagesCollection(threadID)).
		Order(FieldTimestamp, docstore.Asc))
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	messages := make([]*models.Message, 0, len(snaps))
	for _, snap := range snaps {
		messages = append(messages, DecodeMessage(snap))
	}
	if len(messages) > 0 {
		return messages, nil
	}

	thread, err := r.store.Get(ctx, CollectionChats, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat thread: %w", storeError(err))
	}
	for _, m := range EmbeddedMessages(thread) {
		m := m
		messages = append(messages, &m)
	}
	return messages, nil
}

func (r *chatRepository) WatchThreadsFor(ctx context.Context, userID string) (interfaces.Watch[[]*models.ChatThread], error) {
	sub, err := r.store.SubscribeQuery(ctx, docstore.Collection(CollectionChats).
		Where(FieldParticipants, docstore.OpArrayContains, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to watch chat threads: %w", err)
	}
	return watchEvents(sub, func(ev docstore.Event) interfaces.Change[[]*models.ChatThread] {
		if ev.Err != nil {
			return interfaces.Change[[]*models.ChatThread]{Err: ev.Err}
		}
		threads := make([]*models.ChatThread, 0, len(ev.Docs))
		for _, snap := range ev.Docs {
			if t := DecodeThread(snap); t != nil {
				threads = append(threads, t)
			}
		}
		return interfaces.Change[[]*models.ChatThread]{Value: threads, Exists: true}
	}), nil
}

func (r *chatRepository) FindInactiveSince(ctx context.Context, cutoff time.Time, limit int) ([]*models.ChatThread, error) {
	q := docstore.Collection(CollectionChats).Where(FieldLastActivity, docstore.OpLess, cutoff.UTC())
	if limit > 0 {
		q = q.Take(limit)
	}
	snaps, err := r.store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to find inactive chat threads: %w", err)
	}
	threads := make([]*models.ChatThread, 0, len(snaps))
	for _, snap := range snaps {
		threads = append(threads, DecodeThread(snap))
	}
	return threads, nil
}

func (r *chatRepository) DeleteThreads(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	batch := r.store.Batch()
	for _, id := range ids {
		msgs, err := r.store.Query(ctx, docstore.Collection(MessagesCollection(id)))
		if err != nil {
			return fmt.Errorf("failed to list messages of %s: %w", id, err)
		}
		for _, m := range msgs {
			batch.Delete(MessagesCollection(id), m.ID)
		}
		batch.Delete(CollectionChats, id)
	}
	if err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("failed to delete chat threads: %w", err)
	}
	return nil
}
