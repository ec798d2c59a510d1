package services

import (
	"fmt"
	"math"
	"time"

	"github.com/chatflow-ai/chatflow/pkg/models"
	"github.com/chatflow-ai/chatflow/pkg/storage"
)

const chartDays = 7

// DashboardService aggregates the numbers shown on the dashboard from the
// contact and message stores.
type DashboardService struct {
	contacts storage.ContactStore
	messages storage.MessageStore
	now      func() time.Time
}

// NewDashboardService creates a dashboard service.
func NewDashboardService(contacts storage.ContactStore, messages storage.MessageStore) *DashboardService {
	return &DashboardService{contacts: contacts, messages: messages, now: time.Now}
}

// Stats computes dashboard statistics: contact totals, message volumes, the
// automation success rate (outbound per inbound), and a 7-day chart with
// missing days zero-filled.
func (s *DashboardService) Stats() (models.DashboardStats, error) {
	now := s.now().UTC()

	contacts, err := s.contacts.ListContacts(nil)
	if err != nil {
		return models.DashboardStats{}, fmt.Errorf("failed to list contacts: %w", err)
	}
	thirtyDaysAgo := now.AddDate(0, 0, -30)
	newContacts := 0
	for _, c := range contacts {
		if !c.CreatedAt.Before(thirtyDaysAgo) {
			newContacts++
		}
	}

	inbound, err := s.messages.CountMessages(models.DirectionInbound)
	if err != nil {
		return models.DashboardStats{}, fmt.Errorf("failed to count inbound messages: %w", err)
	}
	outbound, err := s.messages.CountMessages(models.DirectionOutbound)
	if err != nil {
		return models.DashboardStats{}, fmt.Errorf("failed to count outbound messages: %w", err)
	}

	successRate := 0.0
	if inbound > 0 {
		successRate = math.Round(float64(outbound)/float64(inbound)*100*100) / 100
	}

	chart, err := s.chartData(now)
	if err != nil {
		return models.DashboardStats{}, err
	}

	return models.DashboardStats{
		TotalContacts:         len(contacts),
		NewContacts30Days:     newContacts,
		TotalMessagesIn:       inbound,
		TotalMessagesOut:      outbound,
		AutomationSuccessRate: successRate,
		ChartData:             chart,
	}, nil
}

func (s *DashboardService) chartData(now time.Time) ([]models.ChartDataPoint, error) {
	start := now.Truncate(24 * time.Hour).AddDate(0, 0, -(chartDays - 1))

	msgs, err := s.messages.ListMessagesSince(start)
	if err != nil {
		return nil, fmt.Errorf("failed to load chart messages: %w", err)
	}

	byDay := make(map[string]*models.ChartDataPoint, chartDays)
	chart := make([]models.ChartDataPoint, chartDays)
	for i := 0; i < chartDays; i++ {
		date := start.AddDate(0, 0, i).Format("2006-01-02")
		chart[i] = models.ChartDataPoint{Date: date}
		byDay[date] = &chart[i]
	}

	for _, m := range msgs {
		point, ok := byDay[m.Timestamp.UTC().Format("2006-01-02")]
		if !ok {
			continue
		}
		switch m.Direction {
		case models.DirectionInbound:
			point.Inbound++
		case models.DirectionOutbound:
			point.Outbound++
		}
	}
	return chart, nil
}
