package storage

import (
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"

	"github.com/chatflow-ai/chatflow/pkg/models"
)

// DynamoDBProvider implements StorageProvider using DynamoDB. Each record is
// marshaled with dynamodbattribute; flows, contacts, and message logs each
// get a table under the configured prefix.
type DynamoDBProvider struct {
	client       dynamodbiface.DynamoDBAPI
	flowStore    *DynamoDBFlowStore
	contactStore *DynamoDBContactStore
	messageStore *DynamoDBMessageStore
	tablePrefix  string
}

// DynamoDBProviderConfig contains configuration for the DynamoDB provider.
type DynamoDBProviderConfig struct {
	Region      string
	AccessKey   string
	SecretKey   string
	TablePrefix string
	Endpoint    string // Optional, for local DynamoDB
}

// NewDynamoDBProvider creates a new DynamoDB storage provider.
func NewDynamoDBProvider(config DynamoDBProviderConfig) (*DynamoDBProvider, error) {
	awsConfig := &aws.Config{
		Region: aws.String(config.Region),
	}
	if config.AccessKey != "" && config.SecretKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(
			config.AccessKey, config.SecretKey, "")
	}
	if config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(config.Endpoint)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return NewDynamoDBProviderWithClient(dynamodb.New(sess), config.TablePrefix), nil
}

// NewDynamoDBProviderWithClient creates a provider with a custom client,
// primarily for testing with mocks.
func NewDynamoDBProviderWithClient(client dynamodbiface.DynamoDBAPI, tablePrefix string) *DynamoDBProvider {
	return &DynamoDBProvider{
		client:       client,
		tablePrefix:  tablePrefix,
		flowStore:    &DynamoDBFlowStore{client: client, table: tablePrefix + "flows"},
		contactStore: &DynamoDBContactStore{client: client, table: tablePrefix + "contacts"},
		messageStore: &DynamoDBMessageStore{client: client, table: tablePrefix + "message_logs"},
	}
}

// Initialize creates the tables when they do not exist yet.
func (p *DynamoDBProvider) Initialize() error {
	tables := []string{
		p.tablePrefix + "flows",
		p.tablePrefix + "contacts",
		p.tablePrefix + "message_logs",
	}
	for _, table := range tables {
		if err := p.ensureTable(table); err != nil {
			return err
		}
	}
	return nil
}

func (p *DynamoDBProvider) ensureTable(name string) error {
	_, err := p.client.DescribeTable(&dynamodb.DescribeTableInput{
		TableName: aws.String(name),
	})
	if err == nil {
		return nil
	}
	if aerr, ok := err.(awserr.Error); !ok || aerr.Code() != dynamodb.ErrCodeResourceNotFoundException {
		return fmt.Errorf("failed to describe table %s: %w", name, err)
	}

	_, err = p.client.CreateTable(&dynamodb.CreateTableInput{
		TableName: aws.String(name),
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			{AttributeName: aws.String("id"), AttributeType: aws.String("S")},
		},
		KeySchema: []*dynamodb.KeySchemaElement{
			{AttributeName: aws.String("id"), KeyType: aws.String("HASH")},
		},
		BillingMode: aws.String(dynamodb.BillingModePayPerRequest),
	})
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", name, err)
	}
	return nil
}

// Close cleans up resources.
func (p *DynamoDBProvider) Close() error {
	// The DynamoDB client holds no connections to release
	return nil
}

// GetFlowStore returns a store for conversation flows.
func (p *DynamoDBProvider) GetFlowStore() FlowStore { return p.flowStore }

// GetContactStore returns a store for contacts.
func (p *DynamoDBProvider) GetContactStore() ContactStore { return p.contactStore }

// GetMessageStore returns a store for message logs.
func (p *DynamoDBProvider) GetMessageStore() MessageStore { return p.messageStore }

// DynamoDBFlowStore implements FlowStore on DynamoDB.
type DynamoDBFlowStore struct {
	client dynamodbiface.DynamoDBAPI
	table  string
}

// SaveFlow inserts or replaces a flow.
func (s *DynamoDBFlowStore) SaveFlow(flow models.Flow) error {
	av, err := dynamodbattribute.MarshalMap(flow)
	if err != nil {
		return fmt.Errorf("failed to marshal flow: %w", err)
	}
	_, err = s.client.PutItem(&dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	})
	return err
}

// GetFlow retrieves a flow by id.
func (s *DynamoDBFlowStore) GetFlow(flowID string) (models.Flow, error) {
	result, err := s.client.GetItem(&dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]*dynamodb.AttributeValue{
			"id": {S: aws.String(flowID)},
		},
	})
	if err != nil {
		return models.Flow{}, err
	}
	if result.Item == nil {
		return models.Flow{}, ErrFlowNotFound
	}
	var flow models.Flow
	if err := dynamodbattribute.UnmarshalMap(result.Item, &flow); err != nil {
		return models.Flow{}, fmt.Errorf("failed to unmarshal flow: %w", err)
	}
	return flow, nil
}

// ListFlows returns all flows ordered by creation time.
func (s *DynamoDBFlowStore) ListFlows() ([]models.Flow, error) {
	var flows []models.Flow
	err := s.client.ScanPages(&dynamodb.ScanInput{TableName: aws.String(s.table)},
		func(page *dynamodb.ScanOutput, lastPage bool) bool {
			for _, item := range page.Items {
				var flow models.Flow
				if err := dynamodbattribute.UnmarshalMap(item, &flow); err == nil {
					flows = append(flows, flow)
				}
			}
			return true
		})
	if err != nil {
		return nil, err
	}
	sortFlowsByCreation(flows)
	return flows, nil
}

func sortFlowsByCreation(flows []models.Flow) {
	sort.SliceStable(flows, func(i, j int) bool {
		return flows[i].CreatedAt.Before(flows[j].CreatedAt)
	})
}

// DeleteFlow removes a flow.
func (s *DynamoDBFlowStore) DeleteFlow(flowID string) error {
	if _, err := s.GetFlow(flowID); err != nil {
		return err
	}
	_, err := s.client.DeleteItem(&dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key: map[string]*dynamodb.AttributeValue{
			"id": {S: aws.String(flowID)},
		},
	})
	return err
}

// GetActiveFlow returns the flow marked active.
func (s *DynamoDBFlowStore) GetActiveFlow() (models.Flow, error) {
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
func (s *DynamoDBFlowStore) DeactivateOthers(flowID string) error {
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

// DynamoDBContactStore implements ContactStore on DynamoDB.
type DynamoDBContactStore struct {
	client dynamodbiface.DynamoDBAPI
	table  string
}

// SaveContact inserts or replaces a contact.
func (s *DynamoDBContactStore) SaveContact(contact models.Contact) error {
	av, err := dynamodbattribute.MarshalMap(contact)
	if err != nil {
		return fmt.Errorf("failed to marshal contact: %w", err)
	}
	_, err = s.client.PutItem(&dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	})
	return err
}

// GetContact retrieves a contact by id.
func (s *DynamoDBContactStore) GetContact(contactID string) (models.Contact, error) {
	result, err := s.client.GetItem(&dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]*dynamodb.AttributeValue{
			"id": {S: aws.String(contactID)},
		},
	})
	if err != nil {
		return models.Contact{}, err
	}
	if result.Item == nil {
		return models.Contact{}, ErrContactNotFound
	}
	var contact models.Contact
	if err := dynamodbattribute.UnmarshalMap(result.Item, &contact); err != nil {
		return models.Contact{}, fmt.Errorf("failed to unmarshal contact: %w", err)
	}
	return contact, nil
}

// GetContactByPhone retrieves a contact by phone number.
func (s *DynamoDBContactStore) GetContactByPhone(phoneNumber string) (models.Contact, error) {
	contacts, err := s.ListContacts(nil)
	if err != nil {
		return models.Contact{}, err
	}
	for _, contact := range contacts {
		if contact.PhoneNumber == phoneNumber {
			return contact, nil
		}
	}
	return models.Contact{}, ErrContactNotFound
}

// ListContacts returns contacts, optionally filtered by tags.
func (s *DynamoDBContactStore) ListContacts(tags []string) ([]models.Contact, error) {
	var contacts []models.Contact
	err := s.client.ScanPages(&dynamodb.ScanInput{TableName: aws.String(s.table)},
		func(page *dynamodb.ScanOutput, lastPage bool) bool {
			for _, item := range page.Items {
				var contact models.Contact
				if err := dynamodbattribute.UnmarshalMap(item, &contact); err == nil {
					if len(tags) == 0 || hasAnyTag(contact.Tags, tags) {
						contacts = append(contacts, contact)
					}
				}
			}
			return true
		})
	if err != nil {
		return nil, err
	}
	return contacts, nil
}

// DynamoDBMessageStore implements MessageStore on DynamoDB.
type DynamoDBMessageStore struct {
	client dynamodbiface.DynamoDBAPI
	table  string
}

// SaveMessage appends a message log entry.
func (s *DynamoDBMessageStore) SaveMessage(msg models.MessageLog) error {
	av, err := dynamodbattribute.MarshalMap(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	_, err = s.client.PutItem(&dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	})
	return err
}

func (s *DynamoDBMessageStore) scanAll() ([]models.MessageLog, error) {
	var msgs []models.MessageLog
	err := s.client.ScanPages(&dynamodb.ScanInput{TableName: aws.String(s.table)},
		func(page *dynamodb.ScanOutput, lastPage bool) bool {
			for _, item := range page.Items {
				var msg models.MessageLog
				if err := dynamodbattribute.UnmarshalMap(item, &msg); err == nil {
					msgs = append(msgs, msg)
				}
			}
			return true
		})
	if err != nil {
		return nil, err
	}
	sortMessagesByTime(msgs)
	return msgs, nil
}

func sortMessagesByTime(msgs []models.MessageLog) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
}

// ListMessagesByContact returns up to limit most recent messages for a
// contact, oldest first.
func (s *DynamoDBMessageStore) ListMessagesByContact(contactID string, limit int) ([]models.MessageLog, error) {
	all, err := s.scanAll()
	if err != nil {
		return nil, err
	}
	var out []models.MessageLog
	for _, m := range all {
		if m.ContactID == contactID {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// CountMessages returns the number of logged messages with the direction.
func (s *DynamoDBMessageStore) CountMessages(direction string) (int, error) {
	all, err := s.scanAll()
	if err != nil {
		return 0, err
	}
	count := 0
	for _, m := range all {
		if m.Direction == direction {
			count++
		}
	}
	return count, nil
}

// ListMessagesSince returns every message logged at or after t.
func (s *DynamoDBMessageStore) ListMessagesSince(t time.Time) ([]models.MessageLog, error) {
	all, err := s.scanAll()
	if err != nil {
		return nil, err
	}
	var out []models.MessageLog
	for _, m := range all {
		if !m.Timestamp.Before(t) {
			out = append(out, m)
		}
	}
	return out, nil
}

// DeleteMessagesBefore removes messages older than t.
func (s *DynamoDBMessageStore) DeleteMessagesBefore(t time.Time) (int, error) {
	all, err := s.scanAll()
	if err != nil {
		return 0, err
	}
	dropped := 0
	for _, m := range all {
		if m.Timestamp.Before(t) {
			_, err := s.client.DeleteItem(&dynamodb.DeleteItemInput{
				TableName: aws.String(s.table),
				Key: map[string]*dynamodb.AttributeValue{
					"id": {S: aws.String(m.ID)},
				},
			})
			if err != nil {
				return dropped, err
			}
			dropped++
		}
	}
	return dropped, nil
}
