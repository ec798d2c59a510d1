package models

// ChartDataPoint is one day of message volume for the dashboard chart.
type ChartDataPoint struct {
	Date     string `json:"date"`
	Inbound  int    `json:"inbound"`
	Outbound int    `json:"outbound"`
}

// DashboardStats aggregates the numbers shown on the dashboard.
type DashboardStats struct {
	TotalContacts         int              `json:"total_contacts"`
	NewContacts30Days     int              `json:"new_contacts_30_days"`
	TotalMessagesIn       int              `json:"total_messages_in"`
	TotalMessagesOut      int              `json:"total_messages_out"`
	AutomationSuccessRate float64          `json:"automation_success_rate"`
	ChartData             []ChartDataPoint `json:"chart_data"`
}
