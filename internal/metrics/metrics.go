package metrics

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	Database *DatabaseMetrics

	registrations       metric.Int64Counter
	logins              metric.Int64Counter
	emailsSent          metric.Int64Counter
	complaintsSubmitted metric.Int64Counter
	complaintsListed    metric.Int64Counter
}

func New(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.Database, err = NewDatabaseMetrics(meter)
	if err != nil {
		return nil, err
	}

	m.registrations, err = meter.Int64Counter(
		"complaint_service.accounts.registered",
		metric.WithDescription("Total number of accounts registered"),
		metric.WithUnit("{account}"),
	)
	if err != nil {
		return nil, err
	}

	m.logins, err = meter.Int64Counter(
		"complaint_service.accounts.logged_in",
		metric.WithDescription("Total number of successful logins"),
		metric.WithUnit("{login}"),
	)
	if err != nil {
		return nil, err
	}

	m.emailsSent, err = meter.Int64Counter(
		"complaint_service.emails.sent",
		metric.WithDescription("Total number of outbound emails sent"),
		metric.WithUnit("{email}"),
	)
	if err != nil {
		return nil, err
	}

	m.complaintsSubmitted, err = meter.Int64Counter(
		"complaint_service.complaints.submitted",
		metric.WithDescription("Total number of complaints submitted"),
		metric.WithUnit("{complaint}"),
	)
	if err != nil {
		return nil, err
	}

	m.complaintsListed, err = meter.Int64Counter(
		"complaint_service.complaints.list_viewed",
		metric.WithDescription("Total number of times a complaints list was viewed"),
		metric.WithUnit("{view}"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// NewMock creates a no-op Metrics instance for testing.
// The returned Metrics will safely ignore all Record* calls.
func NewMock() *Metrics {
	return &Metrics{Database: &DatabaseMetrics{}}
}

func (m *Metrics) RecordRegistration(ctx context.Context) {
	if m != nil && m.registrations != nil {
		m.registrations.Add(ctx, 1)
	}
}

func (m *Metrics) RecordLogin(ctx context.Context) {
	if m != nil && m.logins != nil {
		m.logins.Add(ctx, 1)
	}
}

func (m *Metrics) RecordEmailSent(ctx context.Context) {
	if m != nil && m.emailsSent != nil {
		m.emailsSent.Add(ctx, 1)
	}
}

func (m *Metrics) RecordComplaintSubmitted(ctx context.Context) {
	if m != nil && m.complaintsSubmitted != nil {
		m.complaintsSubmitted.Add(ctx, 1)
	}
}

func (m *Metrics) RecordComplaintsListViewed(ctx context.Context) {
	if m != nil && m.complaintsListed != nil {
		m.complaintsListed.Add(ctx, 1)
	}
}
