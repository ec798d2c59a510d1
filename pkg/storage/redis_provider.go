package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/chatflow-ai/chatflow/pkg/models"
)

const (
	redisFlowKeyPrefix    = "chatflow:flow:"
	redisFlowIndexKey     = "chatflow:flows"
	redisContactKeyPrefix = "chatflow:contact:"
	redisContactIndexKey  = "chatflow:contacts"
	redisPhoneIndexKey    = "chatflow:contacts:phone"
	redisMessagesKey      = "chatflow:messages"
	redisMessagesByOwner  = "chatflow:messages:contact:"
)

// RedisProvider implements StorageProvider on top of Redis. Records are
// stored as JSON values; ordering indexes are sorted sets scored by creation
// time.
type RedisProvider struct {
	client       *redis.Client
	flowStore    *RedisFlowStore
	contactStore *RedisContactStore
	messageStore *RedisMessageStore
}

// RedisProviderConfig contains Redis connection settings.
type RedisProviderConfig struct {
	Address  string
	Password string
	DB       int
}

// NewRedisProvider creates a Redis-backed storage provider.
func NewRedisProvider(cfg RedisProviderConfig) *RedisProvider {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisProvider{
		client:       client,
		flowStore:    &RedisFlowStore{client: client},
		contactStore: &RedisContactStore{client: client},
		messageStore: &RedisMessageStore{client: client},
	}
}

// Initialize verifies the connection.
func (p *RedisProvider) Initialize() error {
	if err := p.client.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	return nil
}

// Close releases the client.
func (p *RedisProvider) Close() error {
	return p.client.Close()
}

// GetFlowStore returns a store for conversation flows.
func (p *RedisProvider) GetFlowStore() FlowStore { return p.flowStore }

// GetContactStore returns a store for contacts.
func (p *RedisProvider) GetContactStore() ContactStore { return p.contactStore }

// GetMessageStore returns a store for message logs.
func (p *RedisProvider) GetMessageStore() MessageStore { return p.messageStore }

// RedisFlowStore implements FlowStore on Redis.
type RedisFlowStore struct {
	client *redis.Client
}

// SaveFlow inserts or replaces a flow.
func (s *RedisFlowStore) SaveFlow(flow models.Flow) error {
	ctx := context.Background()
	payload, err := json.Marshal(flow)
	if err != nil {
		return fmt.Errorf("failed to marshal flow: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, redisFlowKeyPrefix+flow.ID, payload, 0)
	pipe.ZAddNX(ctx, redisFlowIndexKey, &redis.Z{
		Score:  float64(time.Now().UnixNano()),
		Member: flow.ID,
	})
	_, err = pipe.Exec(ctx)
	return err
}

// GetFlow retrieves a flow by id.
func (s *RedisFlowStore) GetFlow(flowID string) (models.Flow, error) {
	raw, err := s.client.Get(context.Background(), redisFlowKeyPrefix+flowID).Bytes()
	if err == redis.Nil {
		return models.Flow{}, ErrFlowNotFound
	}
	if err != nil {
		return models.Flow{}, err
	}
	var flow models.Flow
	if err := json.Unmarshal(raw, &flow); err != nil {
		return models.Flow{}, fmt.Errorf("failed to unmarshal flow: %w", err)
	}
	return flow, nil
}

// ListFlows returns all flows in creation order.
func (s *RedisFlowStore) ListFlows() ([]models.Flow, error) {
	ctx := context.Background()
	ids, err := s.client.ZRange(ctx, redisFlowIndexKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	flows := make([]models.Flow, 0, len(ids))
	for _, id := range ids {
		flow, err := s.GetFlow(id)
		if err == ErrFlowNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		flows = append(flows, flow)
	}
	return flows, nil
}

// DeleteFlow removes a flow.
func (s *RedisFlowStore) DeleteFlow(flowID string) error {
	ctx := context.Background()
	deleted, err := s.client.Del(ctx, redisFlowKeyPrefix+flowID).Result()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrFlowNotFound
	}
	return s.client.ZRem(ctx, redisFlowIndexKey, flowID).Err()
}

// GetActiveFlow returns the flow marked active.
func (s *RedisFlowStore) GetActiveFlow() (models.Flow, error) {
	flows, err := s.ListFlows()
	if err != nil {
		return models.Flow{}, err
	}
	for _, flow := range flows {
		if flow.IsActive {
			return flow, nil
		}
	}
	return models.Flow{}, ErrNoActiveFlow
}

// DeactivateOthers clears is_active on every flow except flowID.
func (s *RedisFlowStore) DeactivateOthers(flowID string) error {
	flows, err := s.ListFlows()
	if err != nil {
		return err
	}
	for _, flow := range flows {
		if flow.ID != flowID && flow.IsActive {
			flow.IsActive = false
			if err := s.SaveFlow(flow); err != nil {
				return err
			}
		}
	}
	return nil
}

// RedisContactStore implements ContactStore on Redis.
type RedisContactStore struct {
	client *redis.Client
}

// SaveContact inserts or replaces a contact.
func (s *RedisContactStore) SaveContact(contact models.Contact) error {
	ctx := context.Background()
	payload, err := json.Marshal(contact)
	if err != nil {
		return fmt.Errorf("failed to marshal contact: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, redisContactKeyPrefix+contact.ID, payload, 0)
	pipe.ZAddNX(ctx, redisContactIndexKey, &redis.Z{
		Score:  float64(time.Now().UnixNano()),
		Member: contact.ID,
	})
	pipe.HSet(ctx, redisPhoneIndexKey, contact.PhoneNumber, contact.ID)
	_, err = pipe.Exec(ctx)
	return err
}

// GetContact retrieves a contact by id.
func (s *RedisContactStore) GetContact(contactID string) (models.Contact, error) {
	raw, err := s.client.Get(context.Background(), redisContactKeyPrefix+contactID).Bytes()
	if err == redis.Nil {
		return models.Contact{}, ErrContactNotFound
	}
	if err != nil {
		return models.Contact{}, err
	}
	var contact models.Contact
	if err := json.Unmarshal(raw, &contact); err != nil {
		return models.Contact{}, fmt.Errorf("failed to unmarshal contact: %w", err)
	}
	return contact, nil
}

// GetContactByPhone retrieves a contact by phone number.
func (s *RedisContactStore) GetContactByPhone(phoneNumber string) (models.Contact, error) {
	id, err := s.client.HGet(context.Background(), redisPhoneIndexKey, phoneNumber).Result()
	if err == redis.Nil {
		return models.Contact{}, ErrContactNotFound
	}
	if err != nil {
		return models.Contact{}, err
	}
	return s.GetContact(id)
}

// ListContacts returns contacts, optionally filtered by tags.
func (s *RedisContactStore) ListContacts(tags []string) ([]models.Contact, error) {
	ctx := context.Background()
	ids, err := s.client.ZRange(ctx, redisContactIndexKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.Contact, 0, len(ids))
	for _, id := range ids {
		contact, err := s.GetContact(id)
		if err == ErrContactNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		if len(tags) == 0 || hasAnyTag(contact.Tags, tags) {
			out = append(out, contact)
		}
	}
	return out, nil
}

// RedisMessageStore implements MessageStore on Redis. Messages live in a
// global sorted set scored by timestamp plus one per contact.
type RedisMessageStore struct {
	client *redis.Client
}

// SaveMessage appends a message log entry.
func (s *RedisMessageStore) SaveMessage(msg models.MessageLog) error {
	ctx := context.Background()
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	member := &redis.Z{
		Score:  float64(msg.Timestamp.UnixNano()),
		Member: string(payload),
	}
	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, redisMessagesKey, member)
	pipe.ZAdd(ctx, redisMessagesByOwner+msg.ContactID, member)
	_, err = pipe.Exec(ctx)
	return err
}

// ListMessagesByContact returns up to limit most recent messages for a
// contact, oldest first.
func (s *RedisMessageStore) ListMessagesByContact(contactID string, limit int) ([]models.MessageLog, error) {
	ctx := context.Background()
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	raws, err := s.client.ZRange(ctx, redisMessagesByOwner+contactID, start, -1).Result()
	if err != nil {
		return nil, err
	}
	return decodeMessages(raws)
}

// CountMessages returns the number of logged messages with the direction.
func (s *RedisMessageStore) CountMessages(direction string) (int, error) {
	raws, err := s.client.ZRange(context.Background(), redisMessagesKey, 0, -1).Result()
	if err != nil {
		return 0, err
	}
	msgs, err := decodeMessages(raws)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, m := range msgs {
		if m.Direction == direction {
			count++
		}
	}
	return count, nil
}

// ListMessagesSince returns every message logged at or after t.
func (s *RedisMessageStore) ListMessagesSince(t time.Time) ([]models.MessageLog, error) {
	raws, err := s.client.ZRangeByScore(context.Background(), redisMessagesKey, &redis.ZRangeBy{
		Min: fmt.Sprintf("%d", t.UnixNano()),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}
	return decodeMessages(raws)
}

// DeleteMessagesBefore removes messages older than t.
func (s *RedisMessageStore) DeleteMessagesBefore(t time.Time) (int, error) {
	ctx := context.Background()
	max := fmt.Sprintf("(%d", t.UnixNano())

	raws, err := s.client.ZRangeByScore(ctx, redisMessagesKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: max,
	}).Result()
	if err != nil {
		return 0, err
	}
	msgs, err := decodeMessages(raws)
	if err != nil {
		return 0, err
	}
	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisMessagesKey, "-inf", max)
	for _, m := range msgs {
		pipe.ZRemRangeByScore(ctx, redisMessagesByOwner+m.ContactID, "-inf", max)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return len(msgs), nil
}

func decodeMessages(raws []string) ([]models.MessageLog, error) {
	out := make([]models.MessageLog, 0, len(raws))
	for _, raw := range raws {
		var msg models.MessageLog
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message: %w", err)
		}
		out = append(out, msg)
	}
	return out, nil
}
